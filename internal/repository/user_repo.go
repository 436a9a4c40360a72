package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/role-assignment-api/internal/database"
	"github.com/role-assignment-api/internal/models"
)

// userColumns selects a user row with its roles aggregated as a JSON array
const userColumns = `
	u.id, u.firstname, u.lastname, u.username,
	COALESCE(u.email, ''), COALESCE(u.telephone, ''),
	COALESCE(TO_CHAR(u.birthday, 'YYYY-MM-DD'), ''), COALESCE(u.image_url, ''),
	u.id_father, u.id_mother, COALESCE(u.contribution_tier, ''),
	u.isactive, u.isfirstlogin,
	COALESCE((
		SELECT json_agg(json_build_object('id', r.id, 'role', r.role) ORDER BY r.id)
		FROM role_attribution ra
		JOIN roles r ON r.id = ra.roles_id
		WHERE ra.users_id = u.id
	), '[]'::json)
`

// userRepo is the concrete implementation of UserRepository
type userRepo struct {
	db *database.DB
}

// NewUserRepo creates a new user repository
func NewUserRepo(db *database.DB) UserRepository {
	return &userRepo{db: db}
}

// List returns the users matching filter. An empty status means active users only.
func (r *userRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	var w where

	switch filter.Status {
	case models.StatusAll:
	case models.StatusInactive:
		w.add("u.isactive = FALSE")
	default:
		w.add("u.isactive = TRUE")
	}

	if q := strings.TrimSpace(filter.Query); q != "" {
		p := w.arg("%" + escapeLike(q) + "%")
		w.add(fmt.Sprintf(
			"(u.firstname ILIKE %[1]s OR u.lastname ILIKE %[1]s OR u.username ILIKE %[1]s OR u.email ILIKE %[1]s OR u.telephone ILIKE %[1]s)", p))
	}

	if names := lowerAll(filter.Roles); len(names) > 0 {
		w.add(fmt.Sprintf(`EXISTS (
			SELECT 1 FROM role_attribution ra
			JOIN roles r ON r.id = ra.roles_id
			WHERE ra.users_id = u.id AND LOWER(r.role) = ANY(%s)
		)`, w.arg(pq.Array(names))))
	}

	switch filter.FirstLogin {
	case "yes":
		w.add("u.isfirstlogin = TRUE")
	case "no":
		w.add("u.isfirstlogin = FALSE")
	}

	if filter.ContributionTier != "" {
		w.add("u.contribution_tier = " + w.arg(filter.ContributionTier))
	}

	query := "SELECT " + userColumns + " FROM users u" + w.clause() + " ORDER BY u.lastname, u.firstname, u.id"
	rows, err := r.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// GetByID retrieves a user by ID
func (r *userRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users u WHERE u.id = $1", id)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return user, err
}

// Exists checks if a user with the given ID exists
func (r *userRepo) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)", id).Scan(&exists)
	return exists, err
}

// ExistingIDs returns the subset of ids that belong to a user
func (r *userRepo) ExistingIDs(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, "SELECT id FROM users WHERE id = ANY($1) ORDER BY id", pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var found []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found = append(found, id)
	}
	return found, rows.Err()
}

// UsernamesWithPrefix lists the usernames starting with prefix
func (r *userRepo) UsernamesWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT username FROM users WHERE username LIKE $1", escapeLike(prefix)+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Create inserts a new user and sets its ID
func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (
			firstname, lastname, username, email, telephone, birthday, image_url,
			id_father, id_mother, contribution_tier, isactive, isfirstlogin
		)
		VALUES ($1, $2, $3, $4, $5, $6::DATE, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		user.Firstname, user.Lastname, user.Username,
		nullString(user.Email), nullString(user.Telephone), nullString(user.Birthday), nullString(user.ImageURL),
		nullInt(user.FatherID), nullInt(user.MotherID), nullString(user.ContributionTier),
		user.IsActive(), user.IsFirstLogin(),
	).Scan(&user.ID)
	return mapError(err)
}

// Update applies the non-nil fields of patch
func (r *userRepo) Update(ctx context.Context, id int64, patch *models.UserPatchRequest) error {
	var sets []string
	var w where

	set := func(column string, value interface{}) {
		sets = append(sets, column+" = "+w.arg(value))
	}
	if patch.Firstname != nil {
		set("firstname", *patch.Firstname)
	}
	if patch.Lastname != nil {
		set("lastname", *patch.Lastname)
	}
	if patch.Username != nil {
		set("username", *patch.Username)
	}
	if patch.Email != nil {
		set("email", nullString(*patch.Email))
	}
	if patch.Telephone != nil {
		set("telephone", nullString(*patch.Telephone))
	}
	if patch.Birthday != nil {
		sets = append(sets, "birthday = "+w.arg(nullString(*patch.Birthday))+"::DATE")
	}
	if patch.ImageURL != nil {
		set("image_url", nullString(*patch.ImageURL))
	}
	if patch.FatherID != nil {
		set("id_father", *patch.FatherID)
	}
	if patch.MotherID != nil {
		set("id_mother", *patch.MotherID)
	}
	if patch.ContributionTier != nil {
		set("contribution_tier", nullString(*patch.ContributionTier))
	}
	if patch.Active != nil {
		set("isactive", bool(*patch.Active))
	}
	if patch.FirstLogin != nil {
		set("isfirstlogin", bool(*patch.FirstLogin))
	}
	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = NOW()")
	query := "UPDATE users SET " + strings.Join(sets, ", ") + " WHERE id = " + w.arg(id)
	res, err := r.db.ExecContext(ctx, query, w.args...)
	if err != nil {
		return mapError(err)
	}
	return requireRow(res)
}

// Deactivate marks a user inactive
func (r *userRepo) Deactivate(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "UPDATE users SET isactive = FALSE, updated_at = NOW() WHERE id = $1", id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Roles returns the roles held by a user ordered by id
func (r *userRepo) Roles(ctx context.Context, id int64) ([]models.Role, error) {
	query := `
		SELECT r.id, r.role
		FROM role_attribution ra
		JOIN roles r ON r.id = ra.roles_id
		WHERE ra.users_id = $1
		ORDER BY r.id
	`
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := []models.Role{}
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(&role.ID, &role.Name); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		user               models.User
		father, mother     sql.NullInt64
		active, firstLogin models.Flag
		rolesJSON          []byte
	)
	err := row.Scan(
		&user.ID, &user.Firstname, &user.Lastname, &user.Username,
		&user.Email, &user.Telephone, &user.Birthday, &user.ImageURL,
		&father, &mother, &user.ContributionTier,
		&active, &firstLogin, &rolesJSON,
	)
	if err != nil {
		return nil, err
	}

	if father.Valid {
		user.FatherID = &father.Int64
	}
	if mother.Valid {
		user.MotherID = &mother.Int64
	}
	user.Active = &active
	user.FirstLogin = &firstLogin
	if err := json.Unmarshal(rolesJSON, &user.Roles); err != nil {
		return nil, fmt.Errorf("decode roles of user %d: %w", user.ID, err)
	}
	return &user, nil
}

// where accumulates AND-ed conditions and their positional arguments
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) arg(v interface{}) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *where) add(cond string) {
	w.conds = append(w.conds, cond)
}

func (w *where) clause() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func lowerAll(names []string) []string {
	var out []string
	for _, n := range names {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}
