package client_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/role-assignment-api/internal/api"
	"github.com/role-assignment-api/internal/client"
	"github.com/role-assignment-api/internal/engine"
	"github.com/role-assignment-api/internal/mocks"
	"github.com/role-assignment-api/internal/models"
	"github.com/role-assignment-api/internal/service"
	"github.com/role-assignment-api/internal/validation"
)

// newTestClient serves the real router over an in-memory store
func newTestClient(t *testing.T) (*client.Client, *mocks.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := mocks.NewStore()
	store.AddRole(1, "admin")
	store.AddRole(2, "Tresorier")
	store.AddRole(3, "member")
	store.AddUser(models.User{ID: 1, Firstname: "Alice", Lastname: "Martin", Username: "am"}, 1)
	store.AddUser(models.User{ID: 2, Firstname: "Bob", Lastname: "Durand", Username: "bd"}, 3)
	store.AddUser(models.User{ID: 3, Firstname: "Carl", Lastname: "Petit", Username: "cp", Active: models.NewFlag(false)})

	services := service.NewServices(store.Repositories(), zerolog.Nop())
	srv := httptest.NewServer(api.NewRouter(services, nil, zerolog.Nop()))
	t.Cleanup(srv.Close)

	return client.New(srv.URL+"/", "", 5*time.Second, zerolog.Nop()), store
}

func TestClientRoles(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	roles, err := c.ListRoles(ctx)
	require.NoError(t, err)
	assert.Len(t, roles, 3)

	created, err := c.CreateRole(ctx, "guest")
	require.NoError(t, err)
	assert.Equal(t, int64(4), created.ID)

	renamed, err := c.RenameRole(ctx, created.ID, "visitor")
	require.NoError(t, err)
	assert.Equal(t, "visitor", renamed.Name)

	_, err = c.CreateRole(ctx, "ADMIN")
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)

	require.NoError(t, c.DeleteRole(ctx, created.ID))
	_, err = c.GetRole(ctx, created.ID)
	assert.True(t, client.IsNotFound(err))
}

func TestClientUsers(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	active, err := c.ListUsers(ctx, models.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, active, 2)

	all, err := c.ListUsers(ctx, models.UserFilter{Status: models.StatusAll, Roles: []string{"member", "admin"}})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	user, err := c.CreateUser(ctx, &models.UserCreateRequest{Firstname: "Zoe", Lastname: "Blanc", Birthday: "2001-03-04"})
	require.NoError(t, err)
	assert.Equal(t, "zb2001", user.Username)
	assert.False(t, user.IsActive())

	email := "zoe@example.org"
	updated, err := c.UpdateUser(ctx, user.ID, &models.UserPatchRequest{Email: &email})
	require.NoError(t, err)
	assert.Equal(t, email, updated.Email)

	_, err = c.CreateUser(ctx, &models.UserCreateRequest{Firstname: "Zoe"})
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.NotEmpty(t, apiErr.Detail)

	require.NoError(t, c.DeactivateUser(ctx, 2))
	fetched, err := c.GetUser(ctx, 2)
	require.NoError(t, err)
	assert.False(t, fetched.IsActive())
}

func TestClientAttributionSentinels(t *testing.T) {
	c, store := newTestClient(t)
	ctx := context.Background()

	attr, err := c.AssignRole(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, "Tresorier", attr.Role)
	assert.True(t, store.Holds(2, 2))

	_, err = c.AssignRole(ctx, 2, 2)
	assert.ErrorIs(t, err, engine.ErrAlreadyAssigned)

	require.NoError(t, c.RemoveRole(ctx, 2, 2))
	assert.False(t, store.Holds(2, 2))

	err = c.RemoveRole(ctx, 2, 2)
	assert.ErrorIs(t, err, engine.ErrNotAssigned)

	// A missing user is a plain 404, not a converged removal
	_, err = c.UserRoles(ctx, 404)
	assert.True(t, client.IsNotFound(err))
	assert.False(t, errors.Is(err, engine.ErrNotAssigned))

	roles, err := c.UserRoles(ctx, 1)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, "admin", roles[0].Name)
}

func TestClientExportAttributions(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	attrs, err := c.ListAttributions(ctx, models.StatusActive)
	require.NoError(t, err)
	assert.Len(t, attrs, 2)

	var buf bytes.Buffer
	require.NoError(t, c.ExportAttributions(ctx, "", "csv", &buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "id,users_id,roles_id,username,firstname,lastname,role", lines[0])
	assert.Len(t, lines, 3)

	err = c.ExportAttributions(ctx, "", "xml", &buf)
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
}

func TestClientSendsBearerToken(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := client.New(srv.URL, "s3cret", time.Second, zerolog.Nop())
	_, err := c.ListRoles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer s3cret", got)
}

func TestClientErrorDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := client.New(srv.URL, "", time.Second, zerolog.Nop())
	_, err := c.ListRoles(context.Background())

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "upstream exploded", apiErr.Detail)
	assert.Contains(t, engine.Describe(err), "502 Bad Gateway")
}

func TestSessionBulkThroughClient(t *testing.T) {
	c, store := newTestClient(t)
	ctx := context.Background()

	session := engine.NewSession(c, engine.NewAssigner(c, 2, zerolog.Nop()), zerolog.Nop())
	require.NoError(t, session.Refresh(ctx))
	assert.Len(t, session.Users(), 3)

	session.SelectAll(true)
	res, err := session.Bulk(ctx, 1, engine.ActionAssign)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, res.Succeeded)
	assert.Equal(t, []int64{1}, res.Skipped)
	assert.Empty(t, session.Selected())

	for _, id := range []int64{1, 2, 3} {
		assert.True(t, store.Holds(id, 1), "user %d should hold admin", id)
	}

	session.SetFilter(session.Filter().WithRoles(engine.Include, 3))
	session.SelectAll(true)
	res, err = session.Bulk(ctx, 1, engine.ActionRemove)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, res.Succeeded)
	assert.False(t, store.Holds(2, 1))
	assert.True(t, store.Holds(1, 1))
}

func TestUserEditorThroughClient(t *testing.T) {
	c, store := newTestClient(t)
	ctx := context.Background()

	editor := engine.NewUserEditor(c, engine.NewAssigner(c, 2, zerolog.Nop()), validation.NewValidator(), zerolog.Nop())

	_, err := editor.StartEdit(ctx, 2, engine.NewIDSet(2, 3))
	require.NoError(t, err)
	require.NoError(t, editor.SetRoles(1, 2))

	user, err := editor.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), user.ID)

	// admin is outside the scope and stays untouched
	assert.True(t, store.Holds(2, 2))
	assert.False(t, store.Holds(2, 3))
	assert.False(t, store.Holds(2, 1))
	assert.Equal(t, engine.ModalIdle, editor.Modal().State())
}
