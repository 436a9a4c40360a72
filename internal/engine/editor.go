package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/role-assignment-api/internal/models"
	"github.com/role-assignment-api/internal/validation"
)

// UserDraft is the content of the user modal. Create is used when the modal
// was opened for a new user and Patch when editing; Desired is the role set
// the operator wants, bounded by Scope when Scope is non-nil.
type UserDraft struct {
	Create  models.UserCreateRequest
	Patch   models.UserPatchRequest
	Current IDSet
	Desired IDSet
	Scope   IDSet
}

// UserEditor runs the create and edit user flows through a Modal. Input is
// validated before any gateway call; role changes go through the Assigner
// as a scoped diff.
type UserEditor struct {
	users     UserGateway
	assigner  *Assigner
	validator *validation.Validator
	modal     Modal[UserDraft]
	log       zerolog.Logger
}

// NewUserEditor creates a UserEditor
func NewUserEditor(users UserGateway, assigner *Assigner, v *validation.Validator, log zerolog.Logger) *UserEditor {
	return &UserEditor{
		users:     users,
		assigner:  assigner,
		validator: v,
		log:       log.With().Str("component", "user_editor").Logger(),
	}
}

// Modal exposes the editor state
func (e *UserEditor) Modal() *Modal[UserDraft] {
	return &e.modal
}

// StartCreate opens the modal for a new user that will receive roles
func (e *UserEditor) StartCreate(req models.UserCreateRequest, roles, scope IDSet) error {
	return e.modal.OpenCreate(UserDraft{
		Create:  req,
		Current: NewIDSet(),
		Desired: desiredOrEmpty(roles),
		Scope:   scope,
	})
}

// StartEdit loads user id and opens the modal with its current roles. The
// modal is left Idle when the load fails.
func (e *UserEditor) StartEdit(ctx context.Context, id int64, scope IDSet) (*models.User, error) {
	if e.modal.State() != ModalIdle {
		return nil, ErrModalBusy
	}

	user, err := e.users.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", id, err)
	}

	current := NewIDSet(user.RoleIDs()...)
	if err := e.modal.OpenEdit(id, UserDraft{
		Current: current,
		Desired: current.Clone(),
		Scope:   scope,
	}); err != nil {
		return nil, err
	}
	return user, nil
}

// SetRoles replaces the desired role set of the open draft
func (e *UserEditor) SetRoles(ids ...int64) error {
	return e.modal.Update(func(d *UserDraft) {
		d.Desired = NewIDSet(ids...)
	})
}

// SetPatch replaces the field changes of an edit draft
func (e *UserEditor) SetPatch(p models.UserPatchRequest) error {
	return e.modal.Update(func(d *UserDraft) {
		d.Patch = p
	})
}

// Save persists the draft. A *ValidationError keeps the modal open and
// untouched; any other failure moves it to Error with the draft preserved so
// Save can be called again as a retry.
func (e *UserEditor) Save(ctx context.Context) (*models.User, error) {
	draft := e.modal.Draft()
	origin := e.modal.Origin()

	if err := e.validate(origin, &draft); err != nil {
		return nil, err
	}

	draft, err := e.modal.BeginSave()
	if err != nil {
		return nil, err
	}

	user, err := e.persist(ctx, &draft)
	if err != nil {
		_ = e.modal.Fail(err)
		e.log.Warn().Err(err).Int64("user_id", e.modal.Target()).Msg("Saving user failed")
		return nil, err
	}

	_ = e.modal.Succeed()
	return user, nil
}

// Cancel closes the modal without saving
func (e *UserEditor) Cancel() error {
	return e.modal.Cancel()
}

func (e *UserEditor) validate(origin ModalState, d *UserDraft) error {
	if e.validator == nil {
		return nil
	}

	var err error
	switch origin {
	case ModalCreating:
		err = e.validator.ValidateUserCreate(&d.Create)
	case ModalEditing:
		err = e.validator.ValidateUserPatch(&d.Patch)
	default:
		return nil
	}

	var verrs validation.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &ValidationError{Field: verrs[0].Field, Message: verrs.Error()}
	}
	return err
}

func (e *UserEditor) persist(ctx context.Context, d *UserDraft) (*models.User, error) {
	var user *models.User

	switch e.modal.Origin() {
	case ModalCreating:
		created, err := e.users.CreateUser(ctx, &d.Create)
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		// A retry after a role failure must not create the user twice
		_ = e.modal.Bind(created.ID)
		user = created

	case ModalEditing:
		id := e.modal.Target()
		if d.Patch.Empty() {
			loaded, err := e.users.GetUser(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("load user %d: %w", id, err)
			}
			user = loaded
		} else {
			updated, err := e.users.UpdateUser(ctx, id, &d.Patch)
			if err != nil {
				return nil, fmt.Errorf("update user %d: %w", id, err)
			}
			user = updated
		}

	default:
		return nil, ErrInvalidTransition
	}

	diff := ComputeDiff(d.Current, d.Desired, d.Scope)
	if err := e.assigner.ApplyDiff(ctx, user.ID, diff); err != nil {
		return nil, err
	}

	user.Roles = rolesAfter(user.Roles, d.Current, diff)
	return user, nil
}

// rolesAfter drops removed roles from held and appends placeholders for added
// ones; callers refresh to get names for new roles
func rolesAfter(held []models.Role, current IDSet, diff Diff) []models.Role {
	out := make([]models.Role, 0, len(held)+diff.Add.Len())
	have := NewIDSet()
	for _, r := range held {
		if diff.Remove.Has(r.ID) {
			continue
		}
		out = append(out, r)
		have.Add(r.ID)
	}
	for _, id := range diff.ApplyTo(current).Slice() {
		if !have.Has(id) {
			out = append(out, models.Role{ID: id})
		}
	}
	return out
}

func desiredOrEmpty(ids IDSet) IDSet {
	if ids == nil {
		return NewIDSet()
	}
	return ids.Clone()
}
