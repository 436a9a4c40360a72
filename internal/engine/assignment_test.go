package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/role-assignment-api/internal/models"
)

func TestComputeDiff(t *testing.T) {
	tests := []struct {
		name       string
		current    IDSet
		desired    IDSet
		scope      IDSet
		wantAdd    []int64
		wantRemove []int64
		wantAfter  []int64
	}{
		{
			name:       "unscoped",
			current:    NewIDSet(1, 2),
			desired:    NewIDSet(2, 3),
			wantAdd:    []int64{3},
			wantRemove: []int64{1},
			wantAfter:  []int64{2, 3},
		},
		{
			name:       "scope leaves outside roles untouched",
			current:    NewIDSet(1, 2, 4),
			desired:    NewIDSet(3),
			scope:      NewIDSet(2, 3),
			wantAdd:    []int64{3},
			wantRemove: []int64{2},
			wantAfter:  []int64{1, 3, 4},
		},
		{
			name:      "desired outside scope is ignored",
			current:   NewIDSet(1),
			desired:   NewIDSet(1, 5),
			scope:     NewIDSet(1),
			wantAdd:   []int64{},
			wantAfter: []int64{1},
		},
		{
			name:       "empty scope changes nothing",
			current:    NewIDSet(1),
			desired:    NewIDSet(2),
			scope:      NewIDSet(),
			wantAdd:    []int64{},
			wantRemove: []int64{},
			wantAfter:  []int64{1},
		},
		{
			name:       "nothing to do",
			current:    NewIDSet(1, 2),
			desired:    NewIDSet(2, 1),
			wantAdd:    []int64{},
			wantRemove: []int64{},
			wantAfter:  []int64{1, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := ComputeDiff(tt.current, tt.desired, tt.scope)
			if tt.wantAdd != nil {
				assert.Equal(t, tt.wantAdd, d.Add.Slice())
			}
			if tt.wantRemove != nil {
				assert.Equal(t, tt.wantRemove, d.Remove.Slice())
			}
			assert.Equal(t, tt.wantAfter, d.ApplyTo(tt.current).Slice())
		})
	}
}

func TestComputeDiffIdempotent(t *testing.T) {
	sets := []IDSet{NewIDSet(), NewIDSet(1), NewIDSet(1, 2), NewIDSet(2, 3, 4), NewIDSet(5)}
	for _, current := range sets {
		for _, desired := range sets {
			after := ComputeDiff(current, desired, nil).ApplyTo(current)
			assert.True(t, after.Equal(desired), "current %v desired %v", current.Slice(), desired.Slice())
			assert.True(t, ComputeDiff(after, desired, nil).Empty())
		}
	}
}

func newTestAssigner(gw AssignmentGateway) *Assigner {
	return NewAssigner(gw, 4, zerolog.Nop())
}

func TestBulkAssign(t *testing.T) {
	gw := newFakeGateway(testRoles,
		testUser(1, "Alice", "Martin", true),
		testUser(2, "Bob", "Durand", true, 3),
		testUser(3, "Carol", "Petit", true),
	)
	a := newTestAssigner(gw)

	res, err := a.Bulk(context.Background(), BulkRequest{RoleID: 3, UserIDs: []int64{1, 2, 3}, Action: ActionAssign}, nil)
	require.NoError(t, err)

	assert.NotEmpty(t, res.OperationID)
	assert.Equal(t, []int64{1, 3}, res.Succeeded)
	assert.Equal(t, []int64{2}, res.Skipped, "duplicate attribution counts as converged")
	assert.Empty(t, res.Failed)
	for _, id := range []int64{1, 2, 3} {
		assert.True(t, gw.Holds(id, 3))
	}
}

func TestBulkSkipsFromHoldings(t *testing.T) {
	users := []models.User{
		testUser(1, "Alice", "Martin", true, 2),
		testUser(2, "Bob", "Durand", true),
	}
	gw := newFakeGateway(testRoles, users...)
	a := newTestAssigner(gw)

	res, err := a.Bulk(context.Background(), BulkRequest{RoleID: 2, UserIDs: []int64{1, 2}, Action: ActionRemove}, HoldingsOf(users))
	require.NoError(t, err)

	assert.Equal(t, []int64{1}, res.Succeeded)
	assert.Equal(t, []int64{2}, res.Skipped)
	assert.Equal(t, 1, gw.removeCalls, "user without the role is never called")
	assert.False(t, gw.Holds(1, 2))
}

func TestBulkPartialFailure(t *testing.T) {
	gw := newFakeGateway(testRoles,
		testUser(1, "Alice", "Martin", true),
		testUser(2, "Bob", "Durand", true),
		testUser(3, "Carol", "Petit", true),
	)
	gw.failAssign[2] = errBoom
	a := newTestAssigner(gw)

	res, err := a.Bulk(context.Background(), BulkRequest{RoleID: 1, UserIDs: []int64{1, 2, 3}, Action: ActionAssign}, nil)
	require.Error(t, err)

	var bulkErr *BulkError
	require.True(t, errors.As(err, &bulkErr))
	assert.Equal(t, 1, bulkErr.Len())
	assert.Equal(t, 3, bulkErr.Attempted)
	assert.Equal(t, []int64{2}, bulkErr.FailedUsers())
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, res.OperationID, bulkErr.OperationID)

	assert.Equal(t, []int64{1, 3}, res.Succeeded)
	assert.Equal(t, []int64{2}, res.Failed)
	assert.True(t, gw.Holds(1, 1))
	assert.False(t, gw.Holds(2, 1))
	assert.True(t, gw.Holds(3, 1))

	t.Run("rerun converges", func(t *testing.T) {
		delete(gw.failAssign, 2)
		res, err := a.Bulk(context.Background(), BulkRequest{RoleID: 1, UserIDs: []int64{1, 2, 3}, Action: ActionAssign}, nil)
		require.NoError(t, err)
		assert.Equal(t, []int64{2}, res.Succeeded)
		assert.Equal(t, []int64{1, 3}, res.Skipped)
	})
}

func TestBulkDeduplicatesUsers(t *testing.T) {
	gw := newFakeGateway(testRoles, testUser(1, "Alice", "Martin", true))
	a := newTestAssigner(gw)

	res, err := a.Bulk(context.Background(), BulkRequest{RoleID: 1, UserIDs: []int64{1, 1, 1}, Action: ActionAssign}, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, res.Succeeded)
	assert.Equal(t, 1, gw.assignCalls)
}

// mockAssignments records calls so tests can assert none were made
type mockAssignments struct {
	mock.Mock
}

func (m *mockAssignments) AssignRole(ctx context.Context, userID, roleID int64) (*models.RoleAttribution, error) {
	args := m.Called(ctx, userID, roleID)
	attr, _ := args.Get(0).(*models.RoleAttribution)
	return attr, args.Error(1)
}

func (m *mockAssignments) RemoveRole(ctx context.Context, userID, roleID int64) error {
	args := m.Called(ctx, userID, roleID)
	return args.Error(0)
}

func (m *mockAssignments) ListAttributions(ctx context.Context, status string) ([]models.RoleAttribution, error) {
	args := m.Called(ctx, status)
	return nil, args.Error(1)
}

func TestBulkValidation(t *testing.T) {
	tests := []struct {
		name  string
		req   BulkRequest
		field string
	}{
		{name: "missing role", req: BulkRequest{UserIDs: []int64{1}, Action: ActionAssign}, field: "role"},
		{name: "empty selection", req: BulkRequest{RoleID: 1, Action: ActionAssign}, field: "selection"},
		{name: "unknown action", req: BulkRequest{RoleID: 1, UserIDs: []int64{1}}, field: "action"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := new(mockAssignments)
			a := newTestAssigner(gw)

			res, err := a.Bulk(context.Background(), tt.req, nil)
			assert.Nil(t, res)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
			gw.AssertNotCalled(t, "AssignRole", mock.Anything, mock.Anything, mock.Anything)
			gw.AssertNotCalled(t, "RemoveRole", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestBulkRecoversPanics(t *testing.T) {
	gw := new(mockAssignments)
	gw.On("AssignRole", mock.Anything, int64(1), int64(2)).Return(&models.RoleAttribution{ID: 1}, nil)
	gw.On("AssignRole", mock.Anything, int64(2), int64(2)).Panic("driver exploded")
	a := newTestAssigner(gw)

	res, err := a.Bulk(context.Background(), BulkRequest{RoleID: 2, UserIDs: []int64{1, 2}, Action: ActionAssign}, nil)
	require.Error(t, err)
	assert.Equal(t, []int64{1}, res.Succeeded)
	assert.Equal(t, []int64{2}, res.Failed)
}

func TestBulkCancelledContext(t *testing.T) {
	gw := newFakeGateway(testRoles, testUser(1, "Alice", "Martin", true))
	a := NewAssigner(gw, 1, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Fill the only slot so the run has to wait on ctx
	a.sem <- struct{}{}
	defer func() { <-a.sem }()

	res, err := a.Bulk(ctx, BulkRequest{RoleID: 1, UserIDs: []int64{1}, Action: ActionAssign}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []int64{1}, res.Failed)
	assert.Zero(t, gw.assignCalls)
}

func TestApplyDiff(t *testing.T) {
	gw := newFakeGateway(testRoles, testUser(7, "Eve", "Moreau", true, 1, 2, 4))
	a := newTestAssigner(gw)

	current := NewIDSet(1, 2, 4)
	diff := ComputeDiff(current, NewIDSet(3), NewIDSet(2, 3))
	require.NoError(t, a.ApplyDiff(context.Background(), 7, diff))

	for roleID, want := range map[int64]bool{1: true, 2: false, 3: true, 4: true} {
		assert.Equal(t, want, gw.Holds(7, roleID), "role %d", roleID)
	}

	// Reapplying the same diff converges without error
	require.NoError(t, a.ApplyDiff(context.Background(), 7, diff))
}

func TestApplyDiffPartialFailure(t *testing.T) {
	gw := newFakeGateway(testRoles, testUser(7, "Eve", "Moreau", true, 1))
	gw.failRemove[7] = errBoom
	a := newTestAssigner(gw)

	err := a.ApplyDiff(context.Background(), 7, Diff{Add: NewIDSet(2), Remove: NewIDSet(1)})

	var bulkErr *BulkError
	require.True(t, errors.As(err, &bulkErr))
	assert.Equal(t, 1, bulkErr.Len())
	assert.True(t, gw.Holds(7, 2), "addition is kept when the removal fails")
	assert.True(t, gw.Holds(7, 1))
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction("Assign")
	require.NoError(t, err)
	assert.Equal(t, ActionAssign, a)

	a, err = ParseAction("remove")
	require.NoError(t, err)
	assert.Equal(t, ActionRemove, a)

	_, err = ParseAction("toggle")
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "", Describe(nil))
	assert.Contains(t, Describe(newValidationError("role", "a target role is required")), "Invalid input")
	assert.Equal(t, "Another edit is already in progress", Describe(ErrModalBusy))
	assert.Equal(t, "Operation cancelled", Describe(context.Canceled))
	assert.Contains(t, Describe(errBoom), "boom")

	bulkErr := &BulkError{Attempted: 3}
	bulkErr.errs = multierrorOf(&OpError{Op: "assign", UserID: 2, RoleID: 1, Err: errBoom})
	assert.Contains(t, Describe(bulkErr), "1 of 3 changes failed")
}

func multierrorOf(errs ...error) *multierror.Error {
	return multierror.Append(nil, errs...)
}
