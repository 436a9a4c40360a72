package models

// RoleAttribution links one user to one role. The display fields are
// denormalized from users and roles when listing.
type RoleAttribution struct {
	ID     int64 `json:"id" db:"id"`
	UserID int64 `json:"users_id" db:"users_id"`
	RoleID int64 `json:"roles_id" db:"roles_id"`

	Username  string  `json:"username,omitempty" db:"username"`
	Firstname string  `json:"firstname,omitempty" db:"firstname"`
	Lastname  string  `json:"lastname,omitempty" db:"lastname"`
	ImageURL  *string `json:"image_url,omitempty" db:"image_url"`
	Role      string  `json:"role,omitempty" db:"role"`
}

// AttributionRequest is the body of POST /role-attributions
type AttributionRequest struct {
	UserID int64 `json:"users_id" validate:"required,gt=0"`
	RoleID int64 `json:"roles_id" validate:"required,gt=0"`
}

// StatusResponse is returned by delete endpoints
type StatusResponse struct {
	Status string `json:"status"`
	ID     int64  `json:"id,omitempty"`
	UserID int64  `json:"user_id,omitempty"`
	RoleID int64  `json:"role_id,omitempty"`
}
