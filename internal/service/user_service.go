package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/role-assignment-api/internal/models"
	"github.com/role-assignment-api/internal/repository"
	"github.com/role-assignment-api/internal/validation"
)

// maxUsernameSuffix bounds the numeric part of generated username suffixes
const maxUsernameSuffix = 999

// userService is the concrete implementation of UserService
type userService struct {
	repos     *repository.Repositories
	validator *validation.Validator
	log       zerolog.Logger
}

func newUserService(repos *repository.Repositories, v *validation.Validator, log zerolog.Logger) *userService {
	return &userService{
		repos:     repos,
		validator: v,
		log:       log.With().Str("service", "user").Logger(),
	}
}

// List returns the users matching filter, each with its roles
func (s *userService) List(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	if err := s.validator.Validate(&filter); err != nil {
		return nil, asInvalidInput(err)
	}
	return s.repos.User.List(ctx, filter)
}

func (s *userService) Get(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.repos.User.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, notFound("user", id)
	}
	return user, nil
}

// Create validates req, generates a unique username and inserts the user.
// Parent ids that match no user are dropped.
func (s *userService) Create(ctx context.Context, req *models.UserCreateRequest) (*models.User, error) {
	req.Firstname = strings.TrimSpace(req.Firstname)
	req.Lastname = strings.TrimSpace(req.Lastname)
	req.Telephone = validation.NormalizePhone(req.Telephone)

	if err := s.validator.ValidateUserCreate(req); err != nil {
		return nil, asInvalidInput(err)
	}

	father, mother, err := s.knownParents(ctx, req.FatherID, req.MotherID)
	if err != nil {
		return nil, err
	}

	username, err := s.generateUsername(ctx, req.Firstname, req.Lastname, req.Birthday)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Firstname:        req.Firstname,
		Lastname:         req.Lastname,
		Username:         username,
		Email:            strings.TrimSpace(req.Email),
		Telephone:        req.Telephone,
		Birthday:         req.Birthday,
		ImageURL:         req.ImageURL,
		FatherID:         father,
		MotherID:         mother,
		ContributionTier: req.ContributionTier,
		Active:           models.NewFlag(false),
		FirstLogin:       models.NewFlag(true),
	}
	if req.Active != nil {
		user.Active = models.NewFlag(bool(*req.Active))
	}
	if req.FirstLogin != nil {
		user.FirstLogin = models.NewFlag(bool(*req.FirstLogin))
	}

	if err := s.repos.User.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, conflict(fmt.Sprintf("username %q", username))
		}
		return nil, err
	}

	s.log.Info().Int64("user_id", user.ID).Str("username", username).Msg("User created")
	return s.Get(ctx, user.ID)
}

// Update applies a partial update. Unknown parent ids are ignored and the
// resulting father and mother must differ.
func (s *userService) Update(ctx context.Context, id int64, req *models.UserPatchRequest) (*models.User, error) {
	if req.Telephone != nil {
		phone := validation.NormalizePhone(*req.Telephone)
		req.Telephone = &phone
	}
	if err := s.validator.ValidateUserPatch(req); err != nil {
		return nil, asInvalidInput(err)
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	father, mother, err := s.knownParents(ctx, req.FatherID, req.MotherID)
	if err != nil {
		return nil, err
	}
	req.FatherID, req.MotherID = father, mother

	effFather, effMother := current.FatherID, current.MotherID
	if father != nil {
		effFather = father
	}
	if mother != nil {
		effMother = mother
	}
	if effFather != nil && effMother != nil && *effFather == *effMother {
		return nil, invalidInput("id_mother", "father and mother must be different users")
	}

	if req.Empty() {
		return current, nil
	}

	switch err := s.repos.User.Update(ctx, id, req); {
	case errors.Is(err, repository.ErrNotFound):
		return nil, notFound("user", id)
	case errors.Is(err, repository.ErrDuplicate) && req.Username != nil:
		return nil, conflict(fmt.Sprintf("username %q", *req.Username))
	case err != nil:
		return nil, err
	}

	s.log.Info().Int64("user_id", id).Msg("User updated")
	return s.Get(ctx, id)
}

// Deactivate soft-deletes a user
func (s *userService) Deactivate(ctx context.Context, id int64) error {
	err := s.repos.User.Deactivate(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("user", id)
	}
	if err != nil {
		return err
	}
	s.log.Info().Int64("user_id", id).Msg("User deactivated")
	return nil
}

func (s *userService) Roles(ctx context.Context, id int64) ([]models.Role, error) {
	exists, err := s.repos.User.Exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, notFound("user", id)
	}
	return s.repos.User.Roles(ctx, id)
}

// knownParents returns father and mother with ids of missing users set to nil
func (s *userService) knownParents(ctx context.Context, father, mother *int64) (*int64, *int64, error) {
	var ids []int64
	for _, p := range []*int64{father, mother} {
		if p != nil {
			ids = append(ids, *p)
		}
	}
	if len(ids) == 0 {
		return nil, nil, nil
	}

	found, err := s.repos.User.ExistingIDs(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	known := make(map[int64]bool, len(found))
	for _, id := range found {
		known[id] = true
	}

	keep := func(p *int64) *int64 {
		if p == nil || !known[*p] {
			if p != nil {
				s.log.Debug().Int64("parent_id", *p).Msg("Dropping unknown parent id")
			}
			return nil
		}
		return p
	}
	return keep(father), keep(mother), nil
}

func (s *userService) generateUsername(ctx context.Context, firstname, lastname, birthday string) (string, error) {
	base := baseUsername(firstname, lastname, birthday)
	if base == "" {
		return "", invalidInput("username", "cannot be derived from an empty name")
	}

	existing, err := s.repos.User.UsernamesWithPrefix(ctx, base)
	if err != nil {
		return "", err
	}
	taken := make(map[string]bool, len(existing))
	for _, name := range existing {
		taken[name] = true
	}

	name, ok := uniqueUsername(base, taken)
	if !ok {
		return "", conflict(fmt.Sprintf("every username derived from %q", base))
	}
	return name, nil
}

// baseUsername joins the lower-cased initial of every name part with the birth year
func baseUsername(firstname, lastname, birthday string) string {
	var b strings.Builder
	for _, part := range strings.Fields(firstname + " " + lastname) {
		r, _ := utf8.DecodeRuneInString(part)
		b.WriteRune(unicode.ToLower(r))
	}
	if t, err := time.Parse(models.DateLayout, birthday); err == nil {
		b.WriteString(strconv.Itoa(t.Year()))
	}
	return b.String()
}

// uniqueUsername tries base, then base+a..z, then base+a1..z999
func uniqueUsername(base string, taken map[string]bool) (string, bool) {
	if !taken[base] {
		return base, true
	}
	for c := 'a'; c <= 'z'; c++ {
		if candidate := base + string(c); !taken[candidate] {
			return candidate, true
		}
	}
	for c := 'a'; c <= 'z'; c++ {
		for i := 1; i <= maxUsernameSuffix; i++ {
			if candidate := base + string(c) + strconv.Itoa(i); !taken[candidate] {
				return candidate, true
			}
		}
	}
	return "", false
}
