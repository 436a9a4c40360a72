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

// attributionService is the concrete implementation of AttributionService
type attributionService struct {
	repos     *repository.Repositories
	validator *validation.Validator
	log       zerolog.Logger
}

func newAttributionService(repos *repository.Repositories, v *validation.Validator, log zerolog.Logger) *attributionService {
	return &attributionService{
		repos:     repos,
		validator: v,
		log:       log.With().Str("service", "attribution").Logger(),
	}
}

// Assign attributes a role to a user. A pair that already exists is a conflict.
func (s *attributionService) Assign(ctx context.Context, req *models.AttributionRequest) (*models.RoleAttribution, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, asInvalidInput(err)
	}

	if ok, err := s.repos.User.Exists(ctx, req.UserID); err != nil {
		return nil, err
	} else if !ok {
		return nil, notFound("user", req.UserID)
	}
	if ok, err := s.repos.Role.Exists(ctx, req.RoleID); err != nil {
		return nil, err
	} else if !ok {
		return nil, notFound("role", req.RoleID)
	}

	attr, err := s.repos.Attribution.Create(ctx, req.UserID, req.RoleID)
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return nil, conflict(fmt.Sprintf("role %d for user %d", req.RoleID, req.UserID))
	case errors.Is(err, repository.ErrNotFound):
		// user or role vanished between the checks and the insert
		return nil, fmt.Errorf("user %d or role %d %w", req.UserID, req.RoleID, ErrNotFound)
	case err != nil:
		return nil, err
	}

	metrics.AttributionChanges.WithLabelValues(metrics.ChangeCreated).Inc()
	s.log.Info().Int64("user_id", req.UserID).Int64("role_id", req.RoleID).Msg("Role attributed")
	return attr, nil
}

// Remove withdraws roleID from userID
func (s *attributionService) Remove(ctx context.Context, userID, roleID int64) error {
	err := s.repos.Attribution.DeleteByUserRole(ctx, userID, roleID)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("role %d of user %d %w", roleID, userID, ErrNotFound)
	}
	if err != nil {
		return err
	}

	metrics.AttributionChanges.WithLabelValues(metrics.ChangeDeleted).Inc()
	s.log.Info().Int64("user_id", userID).Int64("role_id", roleID).Msg("Role withdrawn")
	return nil
}

// Delete removes an attribution by its own id
func (s *attributionService) Delete(ctx context.Context, id int64) error {
	err := s.repos.Attribution.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("attribution", id)
	}
	if err != nil {
		return err
	}

	metrics.AttributionChanges.WithLabelValues(metrics.ChangeDeleted).Inc()
	s.log.Info().Int64("attribution_id", id).Msg("Attribution deleted")
	return nil
}

// List returns the denormalized attributions of users with the given status
func (s *attributionService) List(ctx context.Context, status string) ([]models.RoleAttribution, error) {
	if err := checkStatus(status); err != nil {
		return nil, err
	}

	attrs := []models.RoleAttribution{}
	err := s.repos.Attribution.StreamAll(ctx, status, func(a *models.RoleAttribution) error {
		attrs = append(attrs, *a)
		return nil
	})
	return attrs, err
}

func checkStatus(status string) error {
	switch status {
	case "", models.StatusActive, models.StatusInactive, models.StatusAll:
		return nil
	}
	return invalidInput("status", "must be one of: active, inactive, all")
}
