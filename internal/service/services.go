package service

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/role-assignment-api/internal/models"
	"github.com/role-assignment-api/internal/repository"
	"github.com/role-assignment-api/internal/validation"
)

// RoleService defines the interface for role management
type RoleService interface {
	List(ctx context.Context) ([]models.Role, error)
	Get(ctx context.Context, id int64) (*models.Role, error)
	Create(ctx context.Context, req *models.RoleRequest) (*models.Role, error)
	Rename(ctx context.Context, id int64, req *models.RoleRequest) (*models.Role, error)
	Delete(ctx context.Context, id int64) error
}

// UserService defines the interface for user management
type UserService interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, error)
	Get(ctx context.Context, id int64) (*models.User, error)
	Create(ctx context.Context, req *models.UserCreateRequest) (*models.User, error)
	Update(ctx context.Context, id int64, req *models.UserPatchRequest) (*models.User, error)
	Deactivate(ctx context.Context, id int64) error
	Roles(ctx context.Context, id int64) ([]models.Role, error)
}

// AttributionService defines the interface for role attribution operations
type AttributionService interface {
	Assign(ctx context.Context, req *models.AttributionRequest) (*models.RoleAttribution, error)
	Remove(ctx context.Context, userID, roleID int64) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, status string) ([]models.RoleAttribution, error)
}

// ExportService defines the interface for streaming exports
type ExportService interface {
	StreamAttributions(ctx context.Context, w http.ResponseWriter, status, format string) error
}

// Services holds all service interfaces
type Services struct {
	Role        RoleService
	User        UserService
	Attribution AttributionService
	Export      ExportService
}

// NewServices creates all services
func NewServices(repos *repository.Repositories, log zerolog.Logger) *Services {
	v := validation.NewValidator()

	return &Services{
		Role:        newRoleService(repos, v, log),
		User:        newUserService(repos, v, log),
		Attribution: newAttributionService(repos, v, log),
		Export:      newExportService(repos, log),
	}
}
