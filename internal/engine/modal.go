package engine

import (
	"fmt"
	"sync"
)

// ModalState is a state of the create/edit modal
type ModalState int

const (
	ModalIdle ModalState = iota
	ModalCreating
	ModalEditing
	ModalSaving
	ModalError
)

func (s ModalState) String() string {
	switch s {
	case ModalIdle:
		return "idle"
	case ModalCreating:
		return "creating"
	case ModalEditing:
		return "editing"
	case ModalSaving:
		return "saving"
	case ModalError:
		return "error"
	default:
		return fmt.Sprintf("ModalState(%d)", int(s))
	}
}

// Modal tracks one create or edit dialog and its draft. Only one dialog may
// be open at a time; the draft survives a failed save so it can be retried.
//
//	Idle -> Creating | Editing            (OpenCreate, OpenEdit)
//	Creating | Editing -> Saving          (BeginSave)
//	Saving -> Idle | Error                (Succeed, Fail)
//	Error -> Creating | Editing           (Resume)
//	Error -> Saving                       (BeginSave)
//	Creating | Editing | Error -> Idle     (Cancel)
type Modal[T any] struct {
	mu     sync.Mutex
	state  ModalState
	origin ModalState
	target int64
	draft  T
	err    error
}

// State returns the current state
func (m *Modal[T]) State() ModalState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Origin returns Creating or Editing for an open modal, Idle otherwise
func (m *Modal[T]) Origin() ModalState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.origin
}

// Target returns the id of the entity being edited, 0 when creating
func (m *Modal[T]) Target() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.target
}

// Draft returns the current draft
func (m *Modal[T]) Draft() T {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.draft
}

// Err returns the error of the last failed save
func (m *Modal[T]) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// OpenCreate opens the modal for a new entity
func (m *Modal[T]) OpenCreate(draft T) error {
	return m.open(ModalCreating, 0, draft)
}

// OpenEdit opens the modal for the entity id
func (m *Modal[T]) OpenEdit(id int64, draft T) error {
	return m.open(ModalEditing, id, draft)
}

func (m *Modal[T]) open(state ModalState, id int64, draft T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != ModalIdle {
		return ErrModalBusy
	}
	m.state, m.origin, m.target, m.draft, m.err = state, state, id, draft, nil
	return nil
}

// Update edits the draft in place while the modal is Creating or Editing
func (m *Modal[T]) Update(fn func(*T)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != ModalCreating && m.state != ModalEditing {
		return fmt.Errorf("%w: update from %s", ErrInvalidTransition, m.state)
	}
	fn(&m.draft)
	return nil
}

// BeginSave moves to Saving and returns the draft to persist. From Error it
// acts as a retry with the preserved draft.
func (m *Modal[T]) BeginSave() (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case ModalCreating, ModalEditing, ModalError:
		m.state = ModalSaving
		m.err = nil
		return m.draft, nil
	default:
		var zero T
		return zero, fmt.Errorf("%w: save from %s", ErrInvalidTransition, m.state)
	}
}

// Bind records the id of an entity created during Saving, so that a retry
// edits it instead of creating it again
func (m *Modal[T]) Bind(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != ModalSaving {
		return fmt.Errorf("%w: bind from %s", ErrInvalidTransition, m.state)
	}
	m.origin, m.target = ModalEditing, id
	return nil
}

// Succeed closes the modal after a successful save
func (m *Modal[T]) Succeed() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != ModalSaving {
		return fmt.Errorf("%w: succeed from %s", ErrInvalidTransition, m.state)
	}
	m.reset()
	return nil
}

// Fail records a save error and keeps the draft
func (m *Modal[T]) Fail(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != ModalSaving {
		return fmt.Errorf("%w: fail from %s", ErrInvalidTransition, m.state)
	}
	m.state = ModalError
	m.err = err
	return nil
}

// Resume returns from Error to the editing state the modal was opened in
func (m *Modal[T]) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != ModalError {
		return fmt.Errorf("%w: resume from %s", ErrInvalidTransition, m.state)
	}
	m.state = m.origin
	return nil
}

// Cancel discards the draft. A save in flight cannot be cancelled.
func (m *Modal[T]) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case ModalCreating, ModalEditing, ModalError:
		m.reset()
		return nil
	default:
		return fmt.Errorf("%w: cancel from %s", ErrInvalidTransition, m.state)
	}
}

func (m *Modal[T]) reset() {
	var zero T
	m.state, m.origin, m.target, m.draft, m.err = ModalIdle, ModalIdle, 0, zero, nil
}
