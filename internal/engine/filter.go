package engine

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/role-assignment-api/internal/models"
)

// StatusFilter narrows users by activity
type StatusFilter int

const (
	StatusAll StatusFilter = iota
	StatusActive
	StatusInactive
)

func (s StatusFilter) String() string {
	switch s {
	case StatusActive:
		return models.StatusActive
	case StatusInactive:
		return models.StatusInactive
	default:
		return models.StatusAll
	}
}

// ParseStatusFilter parses "active", "inactive" or "all"; empty means all
func ParseStatusFilter(s string) (StatusFilter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", models.StatusAll:
		return StatusAll, nil
	case models.StatusActive:
		return StatusActive, nil
	case models.StatusInactive:
		return StatusInactive, nil
	default:
		return StatusAll, fmt.Errorf("invalid status filter %q", s)
	}
}

// RoleMode selects whether a role filter keeps or drops holders
type RoleMode int

const (
	Include RoleMode = iota
	Exclude
)

func (m RoleMode) String() string {
	if m == Exclude {
		return "exclude"
	}
	return "include"
}

// RoleFilter narrows users by role membership. An empty IDs set disables
// the filter whatever the mode.
type RoleFilter struct {
	IDs  IDSet
	Mode RoleMode
}

// Active reports whether the filter narrows anything
func (f RoleFilter) Active() bool {
	return f.IDs.Len() > 0
}

// Keep applies the filter to a user's role set
func (f RoleFilter) Keep(held IDSet) bool {
	if !f.Active() {
		return true
	}
	overlap := held.Overlaps(f.IDs)
	if f.Mode == Exclude {
		return !overlap
	}
	return overlap
}

// FilterState is the full set of user list criteria. Values are immutable in
// practice: the With* methods return modified copies.
type FilterState struct {
	Search string
	Status StatusFilter
	Roles  RoleFilter
}

// WithSearch returns a copy with the search query replaced
func (s FilterState) WithSearch(q string) FilterState {
	s.Search = q
	return s
}

// WithStatus returns a copy with the status filter replaced
func (s FilterState) WithStatus(status StatusFilter) FilterState {
	s.Status = status
	return s
}

// WithRoles returns a copy with the role filter replaced
func (s FilterState) WithRoles(mode RoleMode, ids ...int64) FilterState {
	s.Roles = RoleFilter{IDs: NewIDSet(ids...), Mode: mode}
	return s
}

// Equal reports whether two states select the same users
func (s FilterState) Equal(other FilterState) bool {
	if s.Search != other.Search || s.Status != other.Status {
		return false
	}
	if !s.Roles.Active() && !other.Roles.Active() {
		return true
	}
	return s.Roles.Mode == other.Roles.Mode && s.Roles.IDs.Equal(other.Roles.IDs)
}

// MatchMode controls how the role and search stages combine
type MatchMode int

const (
	// MatchAll requires both the role filter and the search to pass
	MatchAll MatchMode = iota
	// MatchAny keeps a user passing either active stage; status is still required
	MatchAny
)

// Selector extracts the searchable values of a user
type Selector func(u *models.User) []string

// Status labels searched by the default selectors
const (
	LabelActive     = "active"
	LabelInactive   = "inactive"
	LabelFirstLogin = "first login"
)

// DefaultSelectors are tried in order for each search token
var DefaultSelectors = []Selector{
	func(u *models.User) []string { return []string{strconv.FormatInt(u.ID, 10)} },
	func(u *models.User) []string { return []string{u.Firstname} },
	func(u *models.User) []string { return []string{u.Lastname} },
	func(u *models.User) []string { return []string{u.FullName()} },
	func(u *models.User) []string { return []string{u.Username} },
	func(u *models.User) []string { return []string{u.Email} },
	func(u *models.User) []string { return []string{u.Telephone} },
	func(u *models.User) []string { return []string{u.Birthday} },
	func(u *models.User) []string {
		if u.IsActive() {
			return []string{LabelActive}
		}
		return []string{LabelInactive}
	},
	func(u *models.User) []string {
		if u.IsFirstLogin() {
			return []string{LabelFirstLogin}
		}
		return nil
	},
}

// Pipeline narrows a user population. The zero value uses MatchAll and
// DefaultSelectors.
type Pipeline struct {
	Match     MatchMode
	Selectors []Selector
}

// Compute runs the default pipeline
func Compute(users []models.User, state FilterState) []models.User {
	var p Pipeline
	return p.Compute(users, state)
}

// Compute returns the users passing every stage, in input order. It never
// mutates users.
func (p *Pipeline) Compute(users []models.User, state FilterState) []models.User {
	tokens := Tokenize(state.Search)
	selectors := p.Selectors
	if selectors == nil {
		selectors = DefaultSelectors
	}

	out := make([]models.User, 0, len(users))
	for i := range users {
		u := &users[i]
		if !statusKeeps(state.Status, u) {
			continue
		}

		roleActive := state.Roles.Active()
		searchActive := len(tokens) > 0
		roleOK := !roleActive || state.Roles.Keep(NewIDSet(u.RoleIDs()...))

		var keep bool
		if p.Match == MatchAny && roleActive && searchActive {
			keep = roleOK || matchTokens(u, tokens, selectors)
		} else {
			keep = roleOK && (!searchActive || matchTokens(u, tokens, selectors))
		}
		if keep {
			out = append(out, *u)
		}
	}
	return out
}

// VisibleIDs returns the ids of users in order
func VisibleIDs(users []models.User) []int64 {
	ids := make([]int64, len(users))
	for i := range users {
		ids[i] = users[i].ID
	}
	return ids
}

func statusKeeps(status StatusFilter, u *models.User) bool {
	switch status {
	case StatusActive:
		return u.IsActive()
	case StatusInactive:
		return !u.IsActive()
	default:
		return true
	}
}

func matchTokens(u *models.User, tokens []string, selectors []Selector) bool {
	var values []string
	for _, sel := range selectors {
		for _, v := range sel(u) {
			if v == "" {
				continue
			}
			values = append(values, Normalize(v))
		}
	}

	for _, token := range tokens {
		found := false
		for _, v := range values {
			if strings.Contains(v, token) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Normalize lower-cases s and strips diacritics through canonical decomposition
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// Tokenize splits a query on whitespace and normalizes each token. A blank
// query yields no tokens.
func Tokenize(query string) []string {
	fields := strings.Fields(query)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if t := Normalize(f); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}
