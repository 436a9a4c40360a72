package models

import (
	"bytes"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// Flag is a boolean column that older clients send as 0/1 and newer ones as
// true/false. A nil *Flag means the field was absent.
type Flag bool

// NewFlag returns a pointer to a Flag holding b
func NewFlag(b bool) *Flag {
	f := Flag(b)
	return &f
}

// MarshalJSON writes the flag as 1 or 0
func (f Flag) MarshalJSON() ([]byte, error) {
	if f {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

// UnmarshalJSON accepts 0, 1, true, false and their quoted forms
func (f *Flag) UnmarshalJSON(data []byte) error {
	raw := string(bytes.Trim(bytes.TrimSpace(data), `"`))
	switch strings.ToLower(raw) {
	case "1", "true":
		*f = true
	case "0", "false", "":
		*f = false
	default:
		return fmt.Errorf("invalid flag value %s", string(data))
	}
	return nil
}

// Scan implements sql.Scanner
func (f *Flag) Scan(src interface{}) error {
	switch v := src.(type) {
	case bool:
		*f = Flag(v)
	case int64:
		*f = v != 0
	case []byte:
		return f.UnmarshalJSON(v)
	case string:
		return f.UnmarshalJSON([]byte(v))
	case nil:
		*f = false
	default:
		return fmt.Errorf("cannot scan %T into Flag", src)
	}
	return nil
}

// Value implements driver.Valuer
func (f Flag) Value() (driver.Value, error) {
	return bool(f), nil
}

// User is a person known to the system together with the roles they hold
type User struct {
	ID               int64  `json:"id"`
	Firstname        string `json:"firstname"`
	Lastname         string `json:"lastname"`
	Username         string `json:"username"`
	Email            string `json:"email,omitempty"`
	Telephone        string `json:"telephone,omitempty"`
	Birthday         string `json:"birthday,omitempty"`
	ImageURL         string `json:"image_url,omitempty"`
	FatherID         *int64 `json:"id_father,omitempty"`
	MotherID         *int64 `json:"id_mother,omitempty"`
	ContributionTier string `json:"contribution_tier,omitempty"`
	Active           *Flag  `json:"isactive,omitempty"`
	FirstLogin       *Flag  `json:"isfirstlogin,omitempty"`
	Roles            []Role `json:"roles"`
}

// IsActive reports the activity status; an absent field counts as active
func (u *User) IsActive() bool {
	if u.Active == nil {
		return true
	}
	return bool(*u.Active)
}

// IsFirstLogin reports whether the user has not logged in yet; absent means false
func (u *User) IsFirstLogin() bool {
	if u.FirstLogin == nil {
		return false
	}
	return bool(*u.FirstLogin)
}

// FullName joins first and last name
func (u *User) FullName() string {
	return strings.TrimSpace(u.Firstname + " " + u.Lastname)
}

// RoleIDs returns the ids of the roles currently held
func (u *User) RoleIDs() []int64 {
	ids := make([]int64, 0, len(u.Roles))
	for _, r := range u.Roles {
		ids = append(ids, r.ID)
	}
	return ids
}

// RoleNames returns the names of the roles currently held
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}

// BirthYear returns the year part of Birthday, or 0 when it is missing or malformed
func (u *User) BirthYear() int {
	if u.Birthday == "" {
		return 0
	}
	t, err := time.Parse(DateLayout, u.Birthday)
	if err != nil {
		return 0
	}
	return t.Year()
}

// DateLayout is the wire format of birthdays
const DateLayout = "2006-01-02"

// UserCreateRequest is the body of POST /users
type UserCreateRequest struct {
	Firstname        string `json:"firstname" validate:"required,max=100"`
	Lastname         string `json:"lastname" validate:"required,max=100"`
	Email            string `json:"email,omitempty" validate:"omitempty,email"`
	Telephone        string `json:"telephone,omitempty" validate:"omitempty,phone"`
	Birthday         string `json:"birthday,omitempty" validate:"omitempty,datetime=2006-01-02"`
	ImageURL         string `json:"image_url,omitempty" validate:"omitempty,url"`
	FatherID         *int64 `json:"id_father,omitempty" validate:"omitempty,gt=0"`
	MotherID         *int64 `json:"id_mother,omitempty" validate:"omitempty,gt=0"`
	ContributionTier string `json:"contribution_tier,omitempty" validate:"omitempty,max=50"`
	Active           *Flag  `json:"isactive,omitempty"`
	FirstLogin       *Flag  `json:"isfirstlogin,omitempty"`
}

// UserPatchRequest is the body of PATCH /users/{id}; nil fields are left unchanged
type UserPatchRequest struct {
	Firstname        *string `json:"firstname,omitempty" validate:"omitempty,min=1,max=100"`
	Lastname         *string `json:"lastname,omitempty" validate:"omitempty,min=1,max=100"`
	Username         *string `json:"username,omitempty" validate:"omitempty,min=1,max=100"`
	Email            *string `json:"email,omitempty" validate:"omitempty,email"`
	Telephone        *string `json:"telephone,omitempty" validate:"omitempty,phone"`
	Birthday         *string `json:"birthday,omitempty" validate:"omitempty,datetime=2006-01-02"`
	ImageURL         *string `json:"image_url,omitempty" validate:"omitempty,url"`
	FatherID         *int64  `json:"id_father,omitempty" validate:"omitempty,gt=0"`
	MotherID         *int64  `json:"id_mother,omitempty" validate:"omitempty,gt=0"`
	ContributionTier *string `json:"contribution_tier,omitempty" validate:"omitempty,max=50"`
	Active           *Flag   `json:"isactive,omitempty"`
	FirstLogin       *Flag   `json:"isfirstlogin,omitempty"`
}

// Empty reports whether the patch carries no field at all
func (p *UserPatchRequest) Empty() bool {
	return p.Firstname == nil && p.Lastname == nil && p.Username == nil &&
		p.Email == nil && p.Telephone == nil && p.Birthday == nil &&
		p.ImageURL == nil && p.FatherID == nil && p.MotherID == nil &&
		p.ContributionTier == nil && p.Active == nil && p.FirstLogin == nil
}

// User status values accepted by GET /users
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusAll      = "all"
)

// UserFilter carries the server-side query parameters of GET /users
type UserFilter struct {
	Status           string   `form:"status" validate:"omitempty,oneof=active inactive all"`
	Query            string   `form:"q"`
	Roles            []string `form:"roles"`
	FirstLogin       string   `form:"firstLogin" validate:"omitempty,oneof=all yes no"`
	ContributionTier string   `form:"contribution_tier"`
}
