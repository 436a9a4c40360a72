package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/role-assignment-api/internal/models"
)

// phoneRegex accepts an optional leading + followed by digits, spaces, dashes,
// dots and parentheses, with 6 to 15 digits overall
var phoneRegex = regexp.MustCompile(`^\+?[0-9 ().-]{6,24}$`)

// phoneStrip removes the separators the server never stores
var phoneStrip = regexp.MustCompile(`[\s-]`)

// ValidationError represents a single field validation error
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// ValidationErrors is the error returned by Validate
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, e := range v {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return strings.Join(parts, "; ")
}

// Fields returns the names of the failing fields
func (v ValidationErrors) Fields() []string {
	out := make([]string, 0, len(v))
	for _, e := range v {
		out = append(out, e.Field)
	}
	return out
}

// Validator wraps go-playground/validator with the rules of user and role payloads
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a validator with custom rules registered
func NewValidator() *Validator {
	v := validator.New()

	// Report wire names rather than Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" {
			name = fld.Tag.Get("form")
		}
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("phone", validatePhone)
	v.RegisterStructValidation(validateCreateParents, models.UserCreateRequest{})
	v.RegisterStructValidation(validatePatchParents, models.UserPatchRequest{})

	return &Validator{validate: v}
}

// Validate checks s and returns ValidationErrors when it is invalid
func (v *Validator) Validate(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err
	}

	result := make(ValidationErrors, 0, len(fieldErrors))
	for _, e := range fieldErrors {
		result = append(result, ValidationError{
			Field:   e.Field(),
			Message: formatMessage(e),
			Value:   e.Value(),
		})
	}
	return result
}

// ValidateUserCreate validates a create payload
func (v *Validator) ValidateUserCreate(req *models.UserCreateRequest) error {
	return v.Validate(req)
}

// ValidateUserPatch validates a partial update payload
func (v *Validator) ValidateUserPatch(req *models.UserPatchRequest) error {
	return v.Validate(req)
}

// ValidateRole validates a role payload
func (v *Validator) ValidateRole(req *models.RoleRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	return v.Validate(req)
}

// NormalizePhone strips spaces and dashes from a telephone number
func NormalizePhone(s string) string {
	return phoneStrip.ReplaceAllString(strings.TrimSpace(s), "")
}

func validatePhone(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	if !phoneRegex.MatchString(value) {
		return false
	}
	digits := 0
	for _, r := range value {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 6 && digits <= 15
}

func validateCreateParents(sl validator.StructLevel) {
	req := sl.Current().Interface().(models.UserCreateRequest)
	checkParents(sl, req.FatherID, req.MotherID)
}

func validatePatchParents(sl validator.StructLevel) {
	req := sl.Current().Interface().(models.UserPatchRequest)
	checkParents(sl, req.FatherID, req.MotherID)
}

func checkParents(sl validator.StructLevel, father, mother *int64) {
	if father != nil && mother != nil && *father == *mother {
		sl.ReportError(*mother, "id_mother", "MotherID", "nefather", "")
	}
}

func formatMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", e.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", e.Param())
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "phone":
		return "must be a valid phone number"
	case "datetime":
		return fmt.Sprintf("must be a date formatted as %s", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(e.Param(), " ", ", "))
	case "nefather":
		return "father and mother must be different users"
	default:
		return fmt.Sprintf("failed %s validation", e.Tag())
	}
}
