package repository

import (
	"context"
	"database/sql"

	"github.com/role-assignment-api/internal/database"
	"github.com/role-assignment-api/internal/models"
)

// roleRepo is the concrete implementation of RoleRepository
type roleRepo struct {
	db *database.DB
}

// NewRoleRepo creates a new role repository
func NewRoleRepo(db *database.DB) RoleRepository {
	return &roleRepo{db: db}
}

// List returns every role ordered by id
func (r *roleRepo) List(ctx context.Context) ([]models.Role, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, role FROM roles ORDER BY id")
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

// GetByID retrieves a role by ID
func (r *roleRepo) GetByID(ctx context.Context, id int64) (*models.Role, error) {
	var role models.Role
	err := r.db.QueryRowContext(ctx, "SELECT id, role FROM roles WHERE id = $1", id).Scan(&role.ID, &role.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// Exists checks if a role with the given ID exists
func (r *roleRepo) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM roles WHERE id = $1)", id).Scan(&exists)
	return exists, err
}

// Create inserts a role. A zero ID takes the next id after the current maximum.
func (r *roleRepo) Create(ctx context.Context, role *models.Role) error {
	var explicit sql.NullInt64
	if role.ID > 0 {
		explicit = sql.NullInt64{Int64: role.ID, Valid: true}
	}

	query := `
		INSERT INTO roles (id, role)
		VALUES (COALESCE($1::BIGINT, (SELECT COALESCE(MAX(id), 0) + 1 FROM roles)), $2)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query, explicit, role.Name).Scan(&role.ID)
	return mapError(err)
}

// Rename changes the name of a role
func (r *roleRepo) Rename(ctx context.Context, id int64, name string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE roles SET role = $1 WHERE id = $2", name, id)
	if err != nil {
		return mapError(err)
	}
	return requireRow(res)
}

// Delete removes a role together with its attributions and returns how many
// attributions were removed
func (r *roleRepo) Delete(ctx context.Context, id int64) (int64, error) {
	var removed int64
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM role_attribution WHERE roles_id = $1", id)
		if err != nil {
			return err
		}
		removed, _ = res.RowsAffected()

		res, err = tx.ExecContext(ctx, "DELETE FROM roles WHERE id = $1", id)
		if err != nil {
			return err
		}
		return requireRow(res)
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
