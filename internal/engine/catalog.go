package engine

import (
	"sort"
	"strings"

	"github.com/role-assignment-api/internal/models"
)

// Scope restricts which roles an editor may change, by role name. A nil
// Scope means every role is editable.
type Scope []string

// RoleCatalog indexes the last fetched role list in both directions. Name
// lookups are case-insensitive.
type RoleCatalog struct {
	roles  []models.Role
	byID   map[int64]string
	byName map[string]int64
}

// NewRoleCatalog builds a catalog from a role list
func NewRoleCatalog(roles []models.Role) *RoleCatalog {
	c := &RoleCatalog{
		roles:  make([]models.Role, len(roles)),
		byID:   make(map[int64]string, len(roles)),
		byName: make(map[string]int64, len(roles)),
	}
	copy(c.roles, roles)
	for _, r := range roles {
		c.byID[r.ID] = r.Name
		c.byName[strings.ToLower(r.Name)] = r.ID
	}
	return c
}

// Len returns the number of roles
func (c *RoleCatalog) Len() int {
	return len(c.roles)
}

// Roles returns a copy of the role list in fetch order
func (c *RoleCatalog) Roles() []models.Role {
	out := make([]models.Role, len(c.roles))
	copy(out, c.roles)
	return out
}

// Name looks up a role name by id
func (c *RoleCatalog) Name(id int64) (string, bool) {
	name, ok := c.byID[id]
	return name, ok
}

// ID looks up a role id by name
func (c *RoleCatalog) ID(name string) (int64, bool) {
	id, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	return id, ok
}

// Has reports whether the role id is known
func (c *RoleCatalog) Has(id int64) bool {
	_, ok := c.byID[id]
	return ok
}

// Names maps ids to names, skipping unknown ids, sorted by name
func (c *RoleCatalog) Names(ids IDSet) []string {
	names := make([]string, 0, ids.Len())
	for id := range ids {
		if name, ok := c.byID[id]; ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ScopeIDs resolves a scope to role ids. A nil scope yields a nil set,
// meaning unrestricted; unknown names are dropped.
func (c *RoleCatalog) ScopeIDs(scope Scope) IDSet {
	if scope == nil {
		return nil
	}
	ids := NewIDSet()
	for _, name := range scope {
		if id, ok := c.ID(name); ok {
			ids.Add(id)
		}
	}
	return ids
}

// ServerRoleNames returns the role names to push to the server-side user
// query. Only an active Include filter can be pushed; Exclude has no server
// primitive and is applied client-side by the pipeline.
func (c *RoleCatalog) ServerRoleNames(f RoleFilter) ([]string, bool) {
	if f.Mode != Include || !f.Active() {
		return nil, false
	}
	names := c.Names(f.IDs)
	if len(names) == 0 {
		return nil, false
	}
	return names, true
}
