package engine

import (
	"context"

	"github.com/role-assignment-api/internal/models"
)

// RoleGateway reads and edits the role list
type RoleGateway interface {
	ListRoles(ctx context.Context) ([]models.Role, error)
	CreateRole(ctx context.Context, name string) (*models.Role, error)
	RenameRole(ctx context.Context, id int64, name string) (*models.Role, error)
	DeleteRole(ctx context.Context, id int64) error
}

// UserGateway reads and edits users
type UserGateway interface {
	ListUsers(ctx context.Context, filter models.UserFilter) ([]models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	CreateUser(ctx context.Context, req *models.UserCreateRequest) (*models.User, error)
	UpdateUser(ctx context.Context, id int64, req *models.UserPatchRequest) (*models.User, error)
	UserRoles(ctx context.Context, id int64) ([]models.Role, error)
}

// AssignmentGateway creates and deletes single role attributions.
// AssignRole returns ErrAlreadyAssigned for a duplicate and RemoveRole
// returns ErrNotAssigned when nothing was held.
type AssignmentGateway interface {
	AssignRole(ctx context.Context, userID, roleID int64) (*models.RoleAttribution, error)
	RemoveRole(ctx context.Context, userID, roleID int64) error
	ListAttributions(ctx context.Context, status string) ([]models.RoleAttribution, error)
}

// Gateway is everything the engine needs from the role API
type Gateway interface {
	RoleGateway
	UserGateway
	AssignmentGateway
}
