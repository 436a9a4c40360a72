package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roleDraft struct {
	Name string
}

func TestModalHappyPaths(t *testing.T) {
	var m Modal[roleDraft]
	assert.Equal(t, ModalIdle, m.State())

	require.NoError(t, m.OpenCreate(roleDraft{Name: "treasurer"}))
	assert.Equal(t, ModalCreating, m.State())

	d, err := m.BeginSave()
	require.NoError(t, err)
	assert.Equal(t, "treasurer", d.Name)
	assert.Equal(t, ModalSaving, m.State())

	require.NoError(t, m.Succeed())
	assert.Equal(t, ModalIdle, m.State())
	assert.Equal(t, roleDraft{}, m.Draft(), "draft is discarded after success")

	require.NoError(t, m.OpenEdit(42, roleDraft{Name: "admin"}))
	assert.Equal(t, ModalEditing, m.State())
	assert.Equal(t, int64(42), m.Target())
	require.NoError(t, m.Cancel())
	assert.Equal(t, ModalIdle, m.State())
}

func TestModalErrorKeepsDraft(t *testing.T) {
	var m Modal[roleDraft]
	require.NoError(t, m.OpenEdit(7, roleDraft{Name: "member"}))
	_, err := m.BeginSave()
	require.NoError(t, err)

	require.NoError(t, m.Fail(errBoom))
	assert.Equal(t, ModalError, m.State())
	assert.ErrorIs(t, m.Err(), errBoom)
	assert.Equal(t, "member", m.Draft().Name)

	t.Run("resume returns to origin", func(t *testing.T) {
		require.NoError(t, m.Resume())
		assert.Equal(t, ModalEditing, m.State())
		require.NoError(t, m.Update(func(d *roleDraft) { d.Name = "members" }))
	})

	t.Run("retry from error", func(t *testing.T) {
		_, err := m.BeginSave()
		require.NoError(t, err)
		require.NoError(t, m.Fail(errBoom))

		d, err := m.BeginSave()
		require.NoError(t, err)
		assert.Equal(t, "members", d.Name)
		assert.Nil(t, m.Err())
		require.NoError(t, m.Succeed())
	})
}

func TestModalRejectsInvalidTransitions(t *testing.T) {
	var m Modal[roleDraft]

	_, err := m.BeginSave()
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, m.Succeed(), ErrInvalidTransition)
	assert.ErrorIs(t, m.Fail(errBoom), ErrInvalidTransition)
	assert.ErrorIs(t, m.Resume(), ErrInvalidTransition)
	assert.ErrorIs(t, m.Cancel(), ErrInvalidTransition)

	require.NoError(t, m.OpenCreate(roleDraft{}))
	assert.ErrorIs(t, m.OpenEdit(1, roleDraft{}), ErrModalBusy)
	assert.ErrorIs(t, m.OpenCreate(roleDraft{}), ErrModalBusy)

	_, err = m.BeginSave()
	require.NoError(t, err)
	assert.ErrorIs(t, m.Cancel(), ErrInvalidTransition, "a save in flight cannot be cancelled")
	assert.ErrorIs(t, m.Update(func(*roleDraft) {}), ErrInvalidTransition)
	assert.True(t, errors.Is(m.OpenCreate(roleDraft{}), ErrModalBusy))
}

func TestModalBindTurnsCreateIntoEdit(t *testing.T) {
	var m Modal[roleDraft]
	require.NoError(t, m.OpenCreate(roleDraft{Name: "x"}))
	assert.ErrorIs(t, m.Bind(5), ErrInvalidTransition)

	_, err := m.BeginSave()
	require.NoError(t, err)
	require.NoError(t, m.Bind(5))
	require.NoError(t, m.Fail(errBoom))
	require.NoError(t, m.Resume())

	assert.Equal(t, ModalEditing, m.State())
	assert.Equal(t, int64(5), m.Target())
}
