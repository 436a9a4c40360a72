package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/role-assignment-api/internal/models"
)

// Session ties a fetched population to the filter, the selection and bulk
// actions for one operator. Results of a refresh that was superseded by a
// newer refresh or by Close are discarded.
type Session struct {
	gw       Gateway
	assigner *Assigner
	log      zerolog.Logger

	mu        sync.Mutex
	gen       uint64
	closed    bool
	pipeline  Pipeline
	filter    FilterState
	lastQuery models.UserFilter
	catalog   *RoleCatalog
	users     []models.User
	visible   []models.User
	selection SelectionSet
}

// NewSession creates a session with an empty population
func NewSession(gw Gateway, assigner *Assigner, log zerolog.Logger) *Session {
	return &Session{
		gw:       gw,
		assigner: assigner,
		log:      log.With().Str("component", "session").Logger(),
		catalog:  NewRoleCatalog(nil),
	}
}

// SetMatchMode changes how role filter and search combine. A change clears
// the selection.
func (s *Session) SetMatchMode(m MatchMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pipeline.Match != m {
		s.selection.Clear()
	}
	s.pipeline.Match = m
	s.recompute()
}

// Filter returns the current filter state
func (s *Session) Filter() FilterState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// SetFilter replaces the filter state. Any change clears the selection. It
// reports whether the server-side query changed, in which case the caller
// should Refresh to see the complete population.
func (s *Session) SetFilter(state FilterState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.filter.Equal(state) {
		s.selection.Clear()
	}
	s.filter = state
	s.recompute()

	return !sameQuery(s.serverQuery(), s.lastQuery)
}

// Refresh fetches roles and users in parallel and replaces the population.
// The selection is cleared. ErrStaleRefresh means a newer refresh or Close
// happened meanwhile and this result was dropped.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStaleRefresh
	}
	s.gen++
	gen := s.gen
	query := s.serverQuery()
	s.mu.Unlock()

	var (
		roles []models.Role
		users []models.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		roles, err = s.gw.ListRoles(gctx)
		if err != nil {
			return fmt.Errorf("list roles: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		users, err = s.gw.ListUsers(gctx, query)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.log.Error().Err(err).Msg("Refresh failed")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.gen != gen {
		s.log.Debug().Uint64("generation", gen).Msg("Dropping stale refresh")
		return ErrStaleRefresh
	}

	s.catalog = NewRoleCatalog(roles)
	s.users = users
	s.lastQuery = query
	s.selection.Clear()
	s.recompute()

	s.log.Debug().
		Int("roles", len(roles)).
		Int("users", len(users)).
		Int("visible", len(s.visible)).
		Msg("Population refreshed")
	return nil
}

// Close invalidates in-flight refreshes; later refreshes fail with ErrStaleRefresh
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.gen++
}

// Catalog returns the role catalog of the last refresh
func (s *Session) Catalog() *RoleCatalog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog
}

// Users returns the full fetched population
func (s *Session) Users() []models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.User(nil), s.users...)
}

// Visible returns the users passing the filter
func (s *Session) Visible() []models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.User(nil), s.visible...)
}

// Toggle flips the selection of a visible user; ids not visible are ignored
func (s *Session) Toggle(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isVisible(id) {
		return false
	}
	return s.selection.Toggle(id)
}

// SelectAll selects every visible user, or clears the selection
func (s *Session) SelectAll(checked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.SelectAll(VisibleIDs(s.visible), checked)
}

// Selected returns the selected user ids
func (s *Session) Selected() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.IDs()
}

// Bulk applies action with roleID to the selection, then clears the
// selection and refreshes. A refresh failure is returned only when the bulk
// run itself succeeded.
func (s *Session) Bulk(ctx context.Context, roleID int64, action Action) (*BulkResult, error) {
	s.mu.Lock()
	req := BulkRequest{RoleID: roleID, UserIDs: s.selection.IDs(), Action: action}
	holdings := HoldingsOf(s.visible)
	known := s.catalog.Has(roleID)
	s.mu.Unlock()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !known {
		return nil, newValidationError("role", fmt.Sprintf("role %d is not in the catalog", roleID))
	}

	res, bulkErr := s.assigner.Bulk(ctx, req, holdings)

	s.mu.Lock()
	s.selection.Clear()
	s.mu.Unlock()

	if err := s.Refresh(ctx); err != nil && !errors.Is(err, ErrStaleRefresh) {
		if bulkErr == nil {
			return res, err
		}
		s.log.Warn().Err(err).Msg("Refresh after bulk operation failed")
	}
	return res, bulkErr
}

// ScopeIDs resolves role names against the current catalog; a nil scope stays unrestricted
func (s *Session) ScopeIDs(scope Scope) IDSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.ScopeIDs(scope)
}

// serverQuery builds the GET /users query for the current filter. Only an
// Include role filter is pushed down. Caller holds s.mu.
func (s *Session) serverQuery() models.UserFilter {
	q := models.UserFilter{Status: s.filter.Status.String()}
	if names, ok := s.catalog.ServerRoleNames(s.filter.Roles); ok {
		q.Roles = names
	}
	return q
}

// recompute refreshes the visible list. Caller holds s.mu.
func (s *Session) recompute() {
	s.visible = s.pipeline.Compute(s.users, s.filter)
}

func (s *Session) isVisible(id int64) bool {
	for i := range s.visible {
		if s.visible[i].ID == id {
			return true
		}
	}
	return false
}

func sameQuery(a, b models.UserFilter) bool {
	if a.Status != b.Status || a.Query != b.Query || a.FirstLogin != b.FirstLogin ||
		a.ContributionTier != b.ContributionTier || len(a.Roles) != len(b.Roles) {
		return false
	}
	for i := range a.Roles {
		if a.Roles[i] != b.Roles[i] {
			return false
		}
	}
	return true
}
