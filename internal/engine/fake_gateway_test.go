package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/role-assignment-api/internal/models"
)

var errBoom = errors.New("boom")

// fakeGateway is an in-memory role API with server semantics close to the
// real one: duplicate assignments return ErrAlreadyAssigned and removing an
// absent attribution returns ErrNotAssigned.
type fakeGateway struct {
	mu         sync.Mutex
	roles      []models.Role
	users      map[int64]*models.User
	held       map[int64]IDSet
	nextUserID int64

	failAssign map[int64]error
	failRemove map[int64]error
	failList   error

	assignCalls int
	removeCalls int
	lastQuery   models.UserFilter

	// beforeListUsers runs before ListUsers answers, outside the lock
	beforeListUsers func()
}

func newFakeGateway(roles []models.Role, users ...models.User) *fakeGateway {
	g := &fakeGateway{
		roles:      roles,
		users:      make(map[int64]*models.User),
		held:       make(map[int64]IDSet),
		failAssign: make(map[int64]error),
		failRemove: make(map[int64]error),
		nextUserID: 1000,
	}
	for i := range users {
		u := users[i]
		g.users[u.ID] = &u
		g.held[u.ID] = NewIDSet(u.RoleIDs()...)
	}
	return g
}

func (g *fakeGateway) roleByID(id int64) (models.Role, bool) {
	for _, r := range g.roles {
		if r.ID == id {
			return r, true
		}
	}
	return models.Role{}, false
}

func (g *fakeGateway) materialize(u *models.User) models.User {
	out := *u
	out.Roles = nil
	for _, id := range g.held[u.ID].Slice() {
		if r, ok := g.roleByID(id); ok {
			out.Roles = append(out.Roles, r)
		}
	}
	return out
}

func (g *fakeGateway) Holds(userID, roleID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held[userID].Has(roleID)
}

func (g *fakeGateway) ListRoles(ctx context.Context) ([]models.Role, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failList != nil {
		return nil, g.failList
	}
	return append([]models.Role(nil), g.roles...), nil
}

func (g *fakeGateway) CreateRole(ctx context.Context, name string) (*models.Role, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r := models.Role{ID: int64(len(g.roles) + 1), Name: name}
	g.roles = append(g.roles, r)
	return &r, nil
}

func (g *fakeGateway) RenameRole(ctx context.Context, id int64, name string) (*models.Role, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.roles {
		if g.roles[i].ID == id {
			g.roles[i].Name = name
			r := g.roles[i]
			return &r, nil
		}
	}
	return nil, fmt.Errorf("role %d not found", id)
}

func (g *fakeGateway) DeleteRole(ctx context.Context, id int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.roles {
		if g.roles[i].ID == id {
			g.roles = append(g.roles[:i], g.roles[i+1:]...)
			for _, held := range g.held {
				delete(held, id)
			}
			return nil
		}
	}
	return fmt.Errorf("role %d not found", id)
}

func (g *fakeGateway) ListUsers(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	if g.beforeListUsers != nil {
		g.beforeListUsers()
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastQuery = filter
	if g.failList != nil {
		return nil, g.failList
	}

	wanted := make(map[string]bool)
	for _, n := range filter.Roles {
		wanted[strings.ToLower(n)] = true
	}

	var out []models.User
	for id := int64(0); id <= g.nextUserID; id++ {
		u, ok := g.users[id]
		if !ok {
			continue
		}
		m := g.materialize(u)
		switch filter.Status {
		case models.StatusActive:
			if !m.IsActive() {
				continue
			}
		case models.StatusInactive:
			if m.IsActive() {
				continue
			}
		}
		if len(wanted) > 0 {
			match := false
			for _, r := range m.Roles {
				if wanted[strings.ToLower(r.Name)] {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, m)
	}
	return out, nil
}

func (g *fakeGateway) GetUser(ctx context.Context, id int64) (*models.User, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	u, ok := g.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d not found", id)
	}
	m := g.materialize(u)
	return &m, nil
}

func (g *fakeGateway) CreateUser(ctx context.Context, req *models.UserCreateRequest) (*models.User, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextUserID++
	u := &models.User{
		ID:        g.nextUserID,
		Firstname: req.Firstname,
		Lastname:  req.Lastname,
		Email:     req.Email,
	}
	g.users[u.ID] = u
	g.held[u.ID] = NewIDSet()
	m := g.materialize(u)
	return &m, nil
}

func (g *fakeGateway) UpdateUser(ctx context.Context, id int64, req *models.UserPatchRequest) (*models.User, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	u, ok := g.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d not found", id)
	}
	if req.Firstname != nil {
		u.Firstname = *req.Firstname
	}
	if req.Email != nil {
		u.Email = *req.Email
	}
	if req.Active != nil {
		u.Active = req.Active
	}
	m := g.materialize(u)
	return &m, nil
}

func (g *fakeGateway) UserRoles(ctx context.Context, id int64) ([]models.Role, error) {
	u, err := g.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return u.Roles, nil
}

func (g *fakeGateway) AssignRole(ctx context.Context, userID, roleID int64) (*models.RoleAttribution, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.assignCalls++
	if err := g.failAssign[userID]; err != nil {
		return nil, err
	}
	if g.held[userID].Has(roleID) {
		return nil, ErrAlreadyAssigned
	}
	if g.held[userID] == nil {
		g.held[userID] = NewIDSet()
	}
	g.held[userID].Add(roleID)
	return &models.RoleAttribution{UserID: userID, RoleID: roleID}, nil
}

func (g *fakeGateway) RemoveRole(ctx context.Context, userID, roleID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeCalls++
	if err := g.failRemove[userID]; err != nil {
		return err
	}
	if !g.held[userID].Has(roleID) {
		return ErrNotAssigned
	}
	delete(g.held[userID], roleID)
	return nil
}

func (g *fakeGateway) ListAttributions(ctx context.Context, status string) ([]models.RoleAttribution, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []models.RoleAttribution
	for userID, held := range g.held {
		for _, roleID := range held.Slice() {
			out = append(out, models.RoleAttribution{UserID: userID, RoleID: roleID})
		}
	}
	return out, nil
}

var _ Gateway = (*fakeGateway)(nil)

// Fixtures

var testRoles = []models.Role{
	{ID: 1, Name: "admin"},
	{ID: 2, Name: "Tresorier"},
	{ID: 3, Name: "member"},
	{ID: 4, Name: "admingroup"},
}

func testUser(id int64, first, last string, active bool, roleIDs ...int64) models.User {
	u := models.User{
		ID:        id,
		Firstname: first,
		Lastname:  last,
		Username:  strings.ToLower(first[:1] + last[:1]),
		Active:    models.NewFlag(active),
	}
	for _, rid := range roleIDs {
		for _, r := range testRoles {
			if r.ID == rid {
				u.Roles = append(u.Roles, r)
			}
		}
	}
	return u
}
