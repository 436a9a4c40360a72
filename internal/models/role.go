package models

// Role is a named grant that can be attributed to users
type Role struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"role" db:"role"`
}

// RoleRequest is the body of POST /roles and PATCH /roles/{id}
type RoleRequest struct {
	ID   *int64 `json:"id,omitempty" validate:"omitempty,gt=0"`
	Name string `json:"role" validate:"required,max=100"`
}
