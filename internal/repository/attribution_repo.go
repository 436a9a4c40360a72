package repository

import (
	"context"
	"database/sql"

	"github.com/role-assignment-api/internal/database"
	"github.com/role-assignment-api/internal/models"
)

// attributionRepo is the concrete implementation of AttributionRepository
type attributionRepo struct {
	db *database.DB
}

// NewAttributionRepo creates a new role attribution repository
func NewAttributionRepo(db *database.DB) AttributionRepository {
	return &attributionRepo{db: db}
}

// Create attributes roleID to userID and returns the denormalized row.
// ErrDuplicate when the pair already exists, ErrNotFound when either side is missing.
func (r *attributionRepo) Create(ctx context.Context, userID, roleID int64) (*models.RoleAttribution, error) {
	query := `
		WITH ins AS (
			INSERT INTO role_attribution (users_id, roles_id)
			VALUES ($1, $2)
			ON CONFLICT (users_id, roles_id) DO NOTHING
			RETURNING id, users_id, roles_id
		)
		SELECT ins.id, ins.users_id, ins.roles_id, u.username, u.firstname, u.lastname, u.image_url, r.role
		FROM ins
		JOIN users u ON u.id = ins.users_id
		JOIN roles r ON r.id = ins.roles_id
	`
	attr, err := scanAttribution(r.db.QueryRowContext(ctx, query, userID, roleID))
	if err == sql.ErrNoRows {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, mapError(err)
	}
	return attr, nil
}

// Exists checks if userID already holds roleID
func (r *attributionRepo) Exists(ctx context.Context, userID, roleID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM role_attribution WHERE users_id = $1 AND roles_id = $2)",
		userID, roleID,
	).Scan(&exists)
	return exists, err
}

// Delete removes an attribution by its own id
func (r *attributionRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM role_attribution WHERE id = $1", id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteByUserRole removes the attribution of roleID to userID
func (r *attributionRepo) DeleteByUserRole(ctx context.Context, userID, roleID int64) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM role_attribution WHERE users_id = $1 AND roles_id = $2",
		userID, roleID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// StreamAll streams the denormalized attributions for export (memory efficient).
// status filters on the holder's activity; empty or "all" streams everything.
func (r *attributionRepo) StreamAll(ctx context.Context, status string, callback func(*models.RoleAttribution) error) error {
	query := `
		SELECT ra.id, ra.users_id, ra.roles_id, u.username, u.firstname, u.lastname, u.image_url, r.role
		FROM role_attribution ra
		JOIN users u ON u.id = ra.users_id
		JOIN roles r ON r.id = ra.roles_id
	`
	var args []interface{}
	switch status {
	case models.StatusActive:
		query += " WHERE u.isactive = $1"
		args = append(args, true)
	case models.StatusInactive:
		query += " WHERE u.isactive = $1"
		args = append(args, false)
	}
	query += " ORDER BY u.lastname, u.firstname, r.id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		attr, err := scanAttribution(rows)
		if err != nil {
			return err
		}
		if err := callback(attr); err != nil {
			return err
		}
	}

	return rows.Err()
}

func scanAttribution(row rowScanner) (*models.RoleAttribution, error) {
	var (
		attr     models.RoleAttribution
		imageURL sql.NullString
	)
	err := row.Scan(
		&attr.ID, &attr.UserID, &attr.RoleID,
		&attr.Username, &attr.Firstname, &attr.Lastname, &imageURL, &attr.Role,
	)
	if err != nil {
		return nil, err
	}
	if imageURL.Valid {
		attr.ImageURL = &imageURL.String
	}
	return &attr, nil
}
