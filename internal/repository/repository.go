package repository

import (
	"context"
	"errors"

	"github.com/role-assignment-api/internal/database"
	"github.com/role-assignment-api/internal/models"
)

var (
	// ErrNotFound is returned by mutations whose target row does not exist
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint rejects a row
	ErrDuplicate = errors.New("duplicate record")
)

// RoleRepository defines the interface for role data operations
type RoleRepository interface {
	List(ctx context.Context) ([]models.Role, error)
	GetByID(ctx context.Context, id int64) (*models.Role, error)
	Exists(ctx context.Context, id int64) (bool, error)
	Create(ctx context.Context, role *models.Role) error
	Rename(ctx context.Context, id int64, name string) error
	Delete(ctx context.Context, id int64) (int64, error)
}

// UserRepository defines the interface for user data operations
type UserRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	Exists(ctx context.Context, id int64) (bool, error)
	ExistingIDs(ctx context.Context, ids []int64) ([]int64, error)
	UsernamesWithPrefix(ctx context.Context, prefix string) ([]string, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, id int64, patch *models.UserPatchRequest) error
	Deactivate(ctx context.Context, id int64) error
	Roles(ctx context.Context, id int64) ([]models.Role, error)
}

// AttributionRepository defines the interface for role attribution data operations
type AttributionRepository interface {
	Create(ctx context.Context, userID, roleID int64) (*models.RoleAttribution, error)
	Exists(ctx context.Context, userID, roleID int64) (bool, error)
	Delete(ctx context.Context, id int64) error
	DeleteByUserRole(ctx context.Context, userID, roleID int64) error
	StreamAll(ctx context.Context, status string, callback func(*models.RoleAttribution) error) error
}

// Repositories holds all repository interfaces
type Repositories struct {
	Role        RoleRepository
	User        UserRepository
	Attribution AttributionRepository
}

// New creates all repositories with the given database connection
func New(db *database.DB) *Repositories {
	return &Repositories{
		Role:        NewRoleRepo(db),
		User:        NewUserRepo(db),
		Attribution: NewAttributionRepo(db),
	}
}

// mapError turns constraint violations into repository sentinels
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case database.IsPQCode(err, database.CodeUniqueViolation):
		return ErrDuplicate
	case database.IsPQCode(err, database.CodeForeignKeyViolation):
		return ErrNotFound
	}
	return err
}
