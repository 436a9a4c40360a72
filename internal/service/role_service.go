package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/role-assignment-api/internal/metrics"
	"github.com/role-assignment-api/internal/models"
	"github.com/role-assignment-api/internal/repository"
	"github.com/role-assignment-api/internal/validation"
)

// roleService is the concrete implementation of RoleService
type roleService struct {
	repos     *repository.Repositories
	validator *validation.Validator
	log       zerolog.Logger
}

func newRoleService(repos *repository.Repositories, v *validation.Validator, log zerolog.Logger) *roleService {
	return &roleService{
		repos:     repos,
		validator: v,
		log:       log.With().Str("service", "role").Logger(),
	}
}

func (s *roleService) List(ctx context.Context) ([]models.Role, error) {
	return s.repos.Role.List(ctx)
}

func (s *roleService) Get(ctx context.Context, id int64) (*models.Role, error) {
	role, err := s.repos.Role.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, notFound("role", id)
	}
	return role, nil
}

// Create adds a role. Without an explicit id the next free id is used.
func (s *roleService) Create(ctx context.Context, req *models.RoleRequest) (*models.Role, error) {
	if err := s.validator.ValidateRole(req); err != nil {
		return nil, asInvalidInput(err)
	}

	role := &models.Role{Name: req.Name}
	if req.ID != nil {
		role.ID = *req.ID
	}

	if err := s.repos.Role.Create(ctx, role); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, conflict(fmt.Sprintf("role %q", req.Name))
		}
		return nil, err
	}

	s.log.Info().Int64("role_id", role.ID).Str("role", role.Name).Msg("Role created")
	return role, nil
}

func (s *roleService) Rename(ctx context.Context, id int64, req *models.RoleRequest) (*models.Role, error) {
	if err := s.validator.ValidateRole(req); err != nil {
		return nil, asInvalidInput(err)
	}

	switch err := s.repos.Role.Rename(ctx, id, req.Name); {
	case errors.Is(err, repository.ErrNotFound):
		return nil, notFound("role", id)
	case errors.Is(err, repository.ErrDuplicate):
		return nil, conflict(fmt.Sprintf("role %q", req.Name))
	case err != nil:
		return nil, err
	}

	s.log.Info().Int64("role_id", id).Str("role", req.Name).Msg("Role renamed")
	return &models.Role{ID: id, Name: req.Name}, nil
}

// Delete removes the role and every attribution of it
func (s *roleService) Delete(ctx context.Context, id int64) error {
	removed, err := s.repos.Role.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("role", id)
	}
	if err != nil {
		return err
	}

	metrics.AttributionChanges.WithLabelValues(metrics.ChangeDeleted).Add(float64(removed))
	s.log.Info().Int64("role_id", id).Int64("attributions_removed", removed).Msg("Role deleted")
	return nil
}
