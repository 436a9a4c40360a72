package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/role-assignment-api/internal/models"
	"github.com/role-assignment-api/internal/repository"
)

// Store is an in-memory database shared by the mock repositories so that
// cascades and role aggregation behave like the PostgreSQL implementation
type Store struct {
	mu           sync.Mutex
	Roles        map[int64]*models.Role
	Users        map[int64]*models.User
	Attributions map[int64]*models.RoleAttribution

	nextUserID int64
	nextAttrID int64

	// AttributionErrors makes Create fail for the given user id
	AttributionErrors map[int64]error
	// CreateCalls counts attribution Create calls
	CreateCalls int
}

func NewStore() *Store {
	return &Store{
		Roles:             make(map[int64]*models.Role),
		Users:             make(map[int64]*models.User),
		Attributions:      make(map[int64]*models.RoleAttribution),
		AttributionErrors: make(map[int64]error),
	}
}

// Repositories returns repository implementations backed by the store
func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Role:        &MockRoleRepository{s},
		User:        &MockUserRepository{s},
		Attribution: &MockAttributionRepository{s},
	}
}

// AddRole seeds a role
func (s *Store) AddRole(id int64, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Roles[id] = &models.Role{ID: id, Name: name}
}

// AddUser seeds a user holding roleIDs and returns its id
func (s *Store) AddUser(user models.User, roleIDs ...int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == 0 {
		s.nextUserID++
		user.ID = s.nextUserID
	} else if user.ID > s.nextUserID {
		s.nextUserID = user.ID
	}
	if user.Active == nil {
		user.Active = models.NewFlag(true)
	}
	if user.FirstLogin == nil {
		user.FirstLogin = models.NewFlag(false)
	}
	user.Roles = nil
	s.Users[user.ID] = &user
	for _, rid := range roleIDs {
		s.nextAttrID++
		s.Attributions[s.nextAttrID] = &models.RoleAttribution{ID: s.nextAttrID, UserID: user.ID, RoleID: rid}
	}
	return user.ID
}

// Holds reports whether userID currently holds roleID
func (s *Store) Holds(userID, roleID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findAttribution(userID, roleID) != nil
}

func (s *Store) findAttribution(userID, roleID int64) *models.RoleAttribution {
	for _, a := range s.Attributions {
		if a.UserID == userID && a.RoleID == roleID {
			return a
		}
	}
	return nil
}

// rolesOf must be called with mu held
func (s *Store) rolesOf(userID int64) []models.Role {
	roles := []models.Role{}
	for _, a := range s.Attributions {
		if a.UserID == userID {
			if r, ok := s.Roles[a.RoleID]; ok {
				roles = append(roles, *r)
			}
		}
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].ID < roles[j].ID })
	return roles
}

// userCopy must be called with mu held
func (s *Store) userCopy(u *models.User) *models.User {
	c := *u
	c.Roles = s.rolesOf(u.ID)
	return &c
}

func (s *Store) denormalize(a *models.RoleAttribution) *models.RoleAttribution {
	c := *a
	if u, ok := s.Users[a.UserID]; ok {
		c.Username, c.Firstname, c.Lastname = u.Username, u.Firstname, u.Lastname
		if u.ImageURL != "" {
			img := u.ImageURL
			c.ImageURL = &img
		}
	}
	if r, ok := s.Roles[a.RoleID]; ok {
		c.Role = r.Name
	}
	return &c
}

// MockRoleRepository is an in-memory implementation of RoleRepository
type MockRoleRepository struct {
	s *Store
}

var _ repository.RoleRepository = (*MockRoleRepository)(nil)

func (m *MockRoleRepository) List(ctx context.Context) ([]models.Role, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	roles := make([]models.Role, 0, len(m.s.Roles))
	for _, r := range m.s.Roles {
		roles = append(roles, *r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].ID < roles[j].ID })
	return roles, nil
}

func (m *MockRoleRepository) GetByID(ctx context.Context, id int64) (*models.Role, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.Roles[id]
	if !ok {
		return nil, nil
	}
	c := *r
	return &c, nil
}

func (m *MockRoleRepository) Exists(ctx context.Context, id int64) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	_, ok := m.s.Roles[id]
	return ok, nil
}

func (m *MockRoleRepository) Create(ctx context.Context, role *models.Role) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.nameTaken(role.Name, 0) {
		return repository.ErrDuplicate
	}
	if role.ID == 0 {
		for id := range m.s.Roles {
			if id > role.ID {
				role.ID = id
			}
		}
		role.ID++
	} else if _, ok := m.s.Roles[role.ID]; ok {
		return repository.ErrDuplicate
	}
	c := *role
	m.s.Roles[role.ID] = &c
	return nil
}

func (m *MockRoleRepository) Rename(ctx context.Context, id int64, name string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.Roles[id]
	if !ok {
		return repository.ErrNotFound
	}
	if m.nameTaken(name, id) {
		return repository.ErrDuplicate
	}
	r.Name = name
	return nil
}

func (m *MockRoleRepository) Delete(ctx context.Context, id int64) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.Roles[id]; !ok {
		return 0, repository.ErrNotFound
	}
	var removed int64
	for aid, a := range m.s.Attributions {
		if a.RoleID == id {
			delete(m.s.Attributions, aid)
			removed++
		}
	}
	delete(m.s.Roles, id)
	return removed, nil
}

func (m *MockRoleRepository) nameTaken(name string, except int64) bool {
	for id, r := range m.s.Roles {
		if id != except && strings.EqualFold(r.Name, name) {
			return true
		}
	}
	return false
}

// MockUserRepository is an in-memory implementation of UserRepository
type MockUserRepository struct {
	s *Store
}

var _ repository.UserRepository = (*MockUserRepository)(nil)

func (m *MockUserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	q := strings.ToLower(strings.TrimSpace(filter.Query))
	wanted := make(map[string]bool)
	for _, name := range filter.Roles {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			wanted[name] = true
		}
	}

	users := []models.User{}
	for _, u := range m.s.Users {
		switch filter.Status {
		case models.StatusAll:
		case models.StatusInactive:
			if u.IsActive() {
				continue
			}
		default:
			if !u.IsActive() {
				continue
			}
		}
		if filter.FirstLogin == "yes" && !u.IsFirstLogin() || filter.FirstLogin == "no" && u.IsFirstLogin() {
			continue
		}
		if filter.ContributionTier != "" && u.ContributionTier != filter.ContributionTier {
			continue
		}
		if q != "" && !containsAny(q, u.Firstname, u.Lastname, u.Username, u.Email, u.Telephone) {
			continue
		}

		c := m.s.userCopy(u)
		if len(wanted) > 0 {
			held := false
			for _, r := range c.Roles {
				if wanted[strings.ToLower(r.Name)] {
					held = true
					break
				}
			}
			if !held {
				continue
			}
		}
		users = append(users, *c)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.Users[id]
	if !ok {
		return nil, nil
	}
	return m.s.userCopy(u), nil
}

func (m *MockUserRepository) Exists(ctx context.Context, id int64) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	_, ok := m.s.Users[id]
	return ok, nil
}

func (m *MockUserRepository) ExistingIDs(ctx context.Context, ids []int64) ([]int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var found []int64
	for _, id := range ids {
		if _, ok := m.s.Users[id]; ok {
			found = append(found, id)
		}
	}
	return found, nil
}

func (m *MockUserRepository) UsernamesWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var names []string
	for _, u := range m.s.Users {
		if strings.HasPrefix(u.Username, prefix) {
			names = append(names, u.Username)
		}
	}
	return names, nil
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, u := range m.s.Users {
		if u.Username == user.Username {
			return repository.ErrDuplicate
		}
	}
	m.s.nextUserID++
	user.ID = m.s.nextUserID
	c := *user
	c.Roles = nil
	m.s.Users[c.ID] = &c
	return nil
}

func (m *MockUserRepository) Update(ctx context.Context, id int64, p *models.UserPatchRequest) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.Users[id]
	if !ok {
		return repository.ErrNotFound
	}
	if p.Username != nil {
		for oid, o := range m.s.Users {
			if oid != id && o.Username == *p.Username {
				return repository.ErrDuplicate
			}
		}
	}
	setString(&u.Firstname, p.Firstname)
	setString(&u.Lastname, p.Lastname)
	setString(&u.Username, p.Username)
	setString(&u.Email, p.Email)
	setString(&u.Telephone, p.Telephone)
	setString(&u.Birthday, p.Birthday)
	setString(&u.ImageURL, p.ImageURL)
	setString(&u.ContributionTier, p.ContributionTier)
	if p.FatherID != nil {
		u.FatherID = p.FatherID
	}
	if p.MotherID != nil {
		u.MotherID = p.MotherID
	}
	if p.Active != nil {
		u.Active = models.NewFlag(bool(*p.Active))
	}
	if p.FirstLogin != nil {
		u.FirstLogin = models.NewFlag(bool(*p.FirstLogin))
	}
	return nil
}

func (m *MockUserRepository) Deactivate(ctx context.Context, id int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.Users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Active = models.NewFlag(false)
	return nil
}

func (m *MockUserRepository) Roles(ctx context.Context, id int64) ([]models.Role, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.s.rolesOf(id), nil
}

// MockAttributionRepository is an in-memory implementation of AttributionRepository
type MockAttributionRepository struct {
	s *Store
}

var _ repository.AttributionRepository = (*MockAttributionRepository)(nil)

func (m *MockAttributionRepository) Create(ctx context.Context, userID, roleID int64) (*models.RoleAttribution, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.CreateCalls++
	if err := m.s.AttributionErrors[userID]; err != nil {
		return nil, err
	}
	if _, ok := m.s.Users[userID]; !ok {
		return nil, repository.ErrNotFound
	}
	if _, ok := m.s.Roles[roleID]; !ok {
		return nil, repository.ErrNotFound
	}
	if m.s.findAttribution(userID, roleID) != nil {
		return nil, repository.ErrDuplicate
	}
	m.s.nextAttrID++
	a := &models.RoleAttribution{ID: m.s.nextAttrID, UserID: userID, RoleID: roleID}
	m.s.Attributions[a.ID] = a
	return m.s.denormalize(a), nil
}

func (m *MockAttributionRepository) Exists(ctx context.Context, userID, roleID int64) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.s.findAttribution(userID, roleID) != nil, nil
}

func (m *MockAttributionRepository) Delete(ctx context.Context, id int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.Attributions[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.s.Attributions, id)
	return nil
}

func (m *MockAttributionRepository) DeleteByUserRole(ctx context.Context, userID, roleID int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	a := m.s.findAttribution(userID, roleID)
	if a == nil {
		return repository.ErrNotFound
	}
	delete(m.s.Attributions, a.ID)
	return nil
}

func (m *MockAttributionRepository) StreamAll(ctx context.Context, status string, callback func(*models.RoleAttribution) error) error {
	m.s.mu.Lock()
	var attrs []*models.RoleAttribution
	for _, a := range m.s.Attributions {
		u, ok := m.s.Users[a.UserID]
		if !ok {
			continue
		}
		if status == models.StatusActive && !u.IsActive() || status == models.StatusInactive && u.IsActive() {
			continue
		}
		attrs = append(attrs, m.s.denormalize(a))
	}
	m.s.mu.Unlock()

	sort.Slice(attrs, func(i, j int) bool { return attrs[i].ID < attrs[j].ID })
	for _, a := range attrs {
		if err := callback(a); err != nil {
			return err
		}
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func containsAny(q string, values ...string) bool {
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), q) {
			return true
		}
	}
	return false
}
