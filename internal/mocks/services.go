package mocks

import (
	"context"
	"net/http"

	"github.com/role-assignment-api/internal/models"
	"github.com/role-assignment-api/internal/service"
)

// MockRoleService is a mock implementation of RoleService. Unset funcs
// return zero values.
type MockRoleService struct {
	ListFunc   func(ctx context.Context) ([]models.Role, error)
	GetFunc    func(ctx context.Context, id int64) (*models.Role, error)
	CreateFunc func(ctx context.Context, req *models.RoleRequest) (*models.Role, error)
	RenameFunc func(ctx context.Context, id int64, req *models.RoleRequest) (*models.Role, error)
	DeleteFunc func(ctx context.Context, id int64) error
	Deleted    []int64
}

// Verify interface compliance
var _ service.RoleService = (*MockRoleService)(nil)

func (m *MockRoleService) List(ctx context.Context) ([]models.Role, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return []models.Role{}, nil
}

func (m *MockRoleService) Get(ctx context.Context, id int64) (*models.Role, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return &models.Role{ID: id}, nil
}

func (m *MockRoleService) Create(ctx context.Context, req *models.RoleRequest) (*models.Role, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, req)
	}
	return &models.Role{ID: 1, Name: req.Name}, nil
}

func (m *MockRoleService) Rename(ctx context.Context, id int64, req *models.RoleRequest) (*models.Role, error) {
	if m.RenameFunc != nil {
		return m.RenameFunc(ctx, id, req)
	}
	return &models.Role{ID: id, Name: req.Name}, nil
}

func (m *MockRoleService) Delete(ctx context.Context, id int64) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	m.Deleted = append(m.Deleted, id)
	return nil
}

// MockUserService is a mock implementation of UserService
type MockUserService struct {
	ListFunc       func(ctx context.Context, filter models.UserFilter) ([]models.User, error)
	GetFunc        func(ctx context.Context, id int64) (*models.User, error)
	CreateFunc     func(ctx context.Context, req *models.UserCreateRequest) (*models.User, error)
	UpdateFunc     func(ctx context.Context, id int64, req *models.UserPatchRequest) (*models.User, error)
	DeactivateFunc func(ctx context.Context, id int64) error
	RolesFunc      func(ctx context.Context, id int64) ([]models.Role, error)
	LastFilter     models.UserFilter
}

// Verify interface compliance
var _ service.UserService = (*MockUserService)(nil)

func (m *MockUserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	m.LastFilter = filter
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	return []models.User{}, nil
}

func (m *MockUserService) Get(ctx context.Context, id int64) (*models.User, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return &models.User{ID: id}, nil
}

func (m *MockUserService) Create(ctx context.Context, req *models.UserCreateRequest) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, req)
	}
	return &models.User{ID: 1, Firstname: req.Firstname, Lastname: req.Lastname}, nil
}

func (m *MockUserService) Update(ctx context.Context, id int64, req *models.UserPatchRequest) (*models.User, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, req)
	}
	return &models.User{ID: id}, nil
}

func (m *MockUserService) Deactivate(ctx context.Context, id int64) error {
	if m.DeactivateFunc != nil {
		return m.DeactivateFunc(ctx, id)
	}
	return nil
}

func (m *MockUserService) Roles(ctx context.Context, id int64) ([]models.Role, error) {
	if m.RolesFunc != nil {
		return m.RolesFunc(ctx, id)
	}
	return []models.Role{}, nil
}

// MockAttributionService is a mock implementation of AttributionService
type MockAttributionService struct {
	AssignFunc func(ctx context.Context, req *models.AttributionRequest) (*models.RoleAttribution, error)
	RemoveFunc func(ctx context.Context, userID, roleID int64) error
	DeleteFunc func(ctx context.Context, id int64) error
	ListFunc   func(ctx context.Context, status string) ([]models.RoleAttribution, error)
}

// Verify interface compliance
var _ service.AttributionService = (*MockAttributionService)(nil)

func (m *MockAttributionService) Assign(ctx context.Context, req *models.AttributionRequest) (*models.RoleAttribution, error) {
	if m.AssignFunc != nil {
		return m.AssignFunc(ctx, req)
	}
	return &models.RoleAttribution{ID: 1, UserID: req.UserID, RoleID: req.RoleID}, nil
}

func (m *MockAttributionService) Remove(ctx context.Context, userID, roleID int64) error {
	if m.RemoveFunc != nil {
		return m.RemoveFunc(ctx, userID, roleID)
	}
	return nil
}

func (m *MockAttributionService) Delete(ctx context.Context, id int64) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockAttributionService) List(ctx context.Context, status string) ([]models.RoleAttribution, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, status)
	}
	return []models.RoleAttribution{}, nil
}

// MockExportService is a mock implementation of ExportService
type MockExportService struct {
	StreamFunc func(ctx context.Context, w http.ResponseWriter, status, format string) error
}

// Verify interface compliance
var _ service.ExportService = (*MockExportService)(nil)

func (m *MockExportService) StreamAttributions(ctx context.Context, w http.ResponseWriter, status, format string) error {
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, w, status, format)
	}
	return nil
}

// NewMockServices bundles zero-configured mock services
func NewMockServices() (*service.Services, *MockRoleService, *MockUserService, *MockAttributionService) {
	roles := &MockRoleService{}
	users := &MockUserService{}
	attrs := &MockAttributionService{}
	return &service.Services{
		Role:        roles,
		User:        users,
		Attribution: attrs,
		Export:      &MockExportService{},
	}, roles, users, attrs
}
