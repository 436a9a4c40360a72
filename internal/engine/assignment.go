package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/role-assignment-api/internal/metrics"
	"github.com/role-assignment-api/internal/models"
)

// Action is the bulk operation applied to every selected user
type Action int

const (
	ActionAssign Action = iota + 1
	ActionRemove
)

func (a Action) String() string {
	switch a {
	case ActionAssign:
		return "assign"
	case ActionRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// ParseAction parses "assign" or "remove"
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "assign", "add":
		return ActionAssign, nil
	case "remove", "delete":
		return ActionRemove, nil
	default:
		return 0, newValidationError("action", fmt.Sprintf("unknown action %q", s))
	}
}

// Diff is the set of role changes that turn a current role set into a desired one
type Diff struct {
	Add    IDSet
	Remove IDSet
}

// Empty reports whether there is nothing to change
func (d Diff) Empty() bool {
	return d.Add.Len() == 0 && d.Remove.Len() == 0
}

// ApplyTo returns the role set after the diff is applied to current
func (d Diff) ApplyTo(current IDSet) IDSet {
	return current.Minus(d.Remove).Union(d.Add)
}

// ComputeDiff reconciles current against desired. With a non-nil scope both
// sides are first intersected with it, so roles outside the scope are never
// added or removed.
func ComputeDiff(current, desired, scope IDSet) Diff {
	if scope != nil {
		current = current.Intersect(scope)
		desired = desired.Intersect(scope)
	}
	return Diff{
		Add:    desired.Minus(current),
		Remove: current.Minus(desired),
	}
}

// Holdings maps a user id to the role ids that user currently holds
type Holdings map[int64]IDSet

// HoldingsOf builds holdings from a fetched population
func HoldingsOf(users []models.User) Holdings {
	h := make(Holdings, len(users))
	for i := range users {
		h[users[i].ID] = NewIDSet(users[i].RoleIDs()...)
	}
	return h
}

// BulkRequest applies one action with one role to many users
type BulkRequest struct {
	RoleID  int64
	UserIDs []int64
	Action  Action
}

// Validate checks the request before any gateway call
func (r BulkRequest) Validate() error {
	if r.RoleID <= 0 {
		return newValidationError("role", "a target role is required")
	}
	if len(r.UserIDs) == 0 {
		return newValidationError("selection", "select at least one user")
	}
	if r.Action != ActionAssign && r.Action != ActionRemove {
		return newValidationError("action", "action must be assign or remove")
	}
	return nil
}

// BulkResult reports the per-user outcome of a bulk run
type BulkResult struct {
	OperationID string
	Action      Action
	RoleID      int64
	Succeeded   []int64
	Skipped     []int64
	Failed      []int64
	Duration    time.Duration
}

// Assigner issues attribution changes through a gateway, one request per
// user and role, with bounded concurrency. There is no cross-user atomicity:
// a failed request leaves its siblings applied.
type Assigner struct {
	gw  AssignmentGateway
	log zerolog.Logger
	// sem bounds in-flight gateway calls across all runs of this assigner
	sem chan struct{}
}

// NewAssigner creates an Assigner allowing at most concurrency calls in flight
func NewAssigner(gw AssignmentGateway, concurrency int, log zerolog.Logger) *Assigner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Assigner{
		gw:  gw,
		log: log.With().Str("component", "assigner").Logger(),
		sem: make(chan struct{}, concurrency),
	}
}

type outcome int

const (
	outcomeSucceeded outcome = iota
	outcomeSkipped
	outcomeFailed
)

type task struct {
	userID int64
	roleID int64
	action Action
	// skip marks a task already known to be converged
	skip bool
}

type taskResult struct {
	task
	outcome outcome
	err     error
}

// Bulk applies req to every user. holdings, when non-nil, lets the assigner
// skip users that already hold (assign) or lack (remove) the role. Failures
// are reported in BulkResult.Failed and returned as a *BulkError.
func (a *Assigner) Bulk(ctx context.Context, req BulkRequest, holdings Holdings) (*BulkResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	opID := uuid.NewString()
	log := a.log.With().
		Str("operation_id", opID).
		Str("action", req.Action.String()).
		Int64("role_id", req.RoleID).
		Logger()
	log.Info().Int("users", len(req.UserIDs)).Msg("Starting bulk role operation")

	seen := NewIDSet()
	tasks := make([]task, 0, len(req.UserIDs))
	for _, userID := range req.UserIDs {
		if seen.Has(userID) {
			continue
		}
		seen.Add(userID)

		t := task{userID: userID, roleID: req.RoleID, action: req.Action}
		if held, ok := holdings[userID]; ok {
			has := held.Has(req.RoleID)
			t.skip = (req.Action == ActionAssign && has) || (req.Action == ActionRemove && !has)
		}
		tasks = append(tasks, t)
	}

	results := a.run(ctx, tasks)

	res := &BulkResult{OperationID: opID, Action: req.Action, RoleID: req.RoleID}
	bulkErr := &BulkError{OperationID: opID}
	for _, r := range results {
		switch r.outcome {
		case outcomeSucceeded:
			res.Succeeded = append(res.Succeeded, r.userID)
		case outcomeSkipped:
			res.Skipped = append(res.Skipped, r.userID)
		case outcomeFailed:
			res.Failed = append(res.Failed, r.userID)
			bulkErr.errs = multierror.Append(bulkErr.errs, r.err)
		}
		if r.outcome != outcomeSkipped {
			bulkErr.Attempted++
		}
	}
	res.Succeeded = NewIDSet(res.Succeeded...).Slice()
	res.Skipped = NewIDSet(res.Skipped...).Slice()
	res.Failed = NewIDSet(res.Failed...).Slice()
	res.Duration = time.Since(start)

	metrics.RecordBulk(req.Action.String(), len(res.Succeeded), len(res.Skipped), len(res.Failed), res.Duration.Seconds())

	event := log.Info()
	if len(res.Failed) > 0 {
		event = log.Warn()
	}
	event.
		Int("succeeded", len(res.Succeeded)).
		Int("skipped", len(res.Skipped)).
		Int("failed", len(res.Failed)).
		Dur("duration", res.Duration).
		Msg("Bulk role operation finished")

	if len(res.Failed) > 0 {
		return res, bulkErr
	}
	return res, nil
}

// ApplyDiff issues the removals and additions of diff for one user as
// independent requests. Already-converged requests count as success.
func (a *Assigner) ApplyDiff(ctx context.Context, userID int64, diff Diff) error {
	if diff.Empty() {
		return nil
	}

	tasks := make([]task, 0, diff.Add.Len()+diff.Remove.Len())
	for _, roleID := range diff.Remove.Slice() {
		tasks = append(tasks, task{userID: userID, roleID: roleID, action: ActionRemove})
	}
	for _, roleID := range diff.Add.Slice() {
		tasks = append(tasks, task{userID: userID, roleID: roleID, action: ActionAssign})
	}

	bulkErr := &BulkError{OperationID: uuid.NewString(), Attempted: len(tasks)}
	for _, r := range a.run(ctx, tasks) {
		if r.outcome == outcomeFailed {
			bulkErr.errs = multierror.Append(bulkErr.errs, r.err)
		}
	}

	a.log.Debug().
		Int64("user_id", userID).
		Int("added", diff.Add.Len()).
		Int("removed", diff.Remove.Len()).
		Int("failed", bulkErr.Len()).
		Msg("Applied role diff")

	if bulkErr.Len() > 0 {
		return bulkErr
	}
	return nil
}

// run executes tasks with at most cap(a.sem) in flight and returns one result per task
func (a *Assigner) run(ctx context.Context, tasks []task) []taskResult {
	results := make([]taskResult, len(tasks))
	var wg sync.WaitGroup

	for i, t := range tasks {
		if t.skip {
			results[i] = taskResult{task: t, outcome: outcomeSkipped}
			continue
		}

		// Acquire a slot; stop issuing new requests once ctx is done
		select {
		case a.sem <- struct{}{}:
		case <-ctx.Done():
			results[i] = taskResult{task: t, outcome: outcomeFailed, err: a.opError(t, ctx.Err())}
			continue
		}

		wg.Add(1)
		go func(i int, t task) {
			defer wg.Done()
			defer func() { <-a.sem }()

			defer func() {
				if r := recover(); r != nil {
					a.log.Error().
						Interface("panic", r).
						Int64("user_id", t.userID).
						Int64("role_id", t.roleID).
						Msg("Role request panicked - recovered")
					results[i] = taskResult{task: t, outcome: outcomeFailed, err: a.opError(t, fmt.Errorf("panic: %v", r))}
				}
			}()

			results[i] = a.execute(ctx, t)
		}(i, t)
	}

	wg.Wait()
	return results
}

func (a *Assigner) execute(ctx context.Context, t task) taskResult {
	var err error
	switch t.action {
	case ActionAssign:
		_, err = a.gw.AssignRole(ctx, t.userID, t.roleID)
		if errors.Is(err, ErrAlreadyAssigned) {
			return taskResult{task: t, outcome: outcomeSkipped}
		}
	case ActionRemove:
		err = a.gw.RemoveRole(ctx, t.userID, t.roleID)
		if errors.Is(err, ErrNotAssigned) {
			return taskResult{task: t, outcome: outcomeSkipped}
		}
	default:
		err = fmt.Errorf("unknown action %d", t.action)
	}

	if err != nil {
		a.log.Warn().Err(err).
			Int64("user_id", t.userID).
			Int64("role_id", t.roleID).
			Str("action", t.action.String()).
			Msg("Role request failed")
		return taskResult{task: t, outcome: outcomeFailed, err: a.opError(t, err)}
	}
	return taskResult{task: t, outcome: outcomeSucceeded}
}

func (a *Assigner) opError(t task, err error) error {
	return &OpError{Op: t.action.String(), UserID: t.userID, RoleID: t.roleID, Err: err}
}
