package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"maplocate/api/internal/models"
)

type RoleRepository struct {
	db DBTX
}

func NewRoleRepository(db DBTX) *RoleRepository {
	return &RoleRepository{db: db}
}

const roleColumns = `r.id, r.role_name, r.permissions, r.description`

func scanRole(row pgx.Row) (models.Role, error) {
	var role models.Role
	if err := row.Scan(
		&role.ID,
		&role.Name,
		&role.Permissions,
		&role.Description,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Role{}, ErrNotFound
		}
		return models.Role{}, err
	}
	if role.Permissions == nil {
		role.Permissions = []string{}
	}
	return role, nil
}

func collectRoles(rows pgx.Rows) ([]models.Role, error) {
	defer rows.Close()

	roles := make([]models.Role, 0)
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func permissionsArg(permissions []string) []string {
	if permissions == nil {
		return []string{}
	}
	return permissions
}

func (r *RoleRepository) Create(ctx context.Context, role *models.Role) error {
	const query = `
		INSERT INTO roles (role_name, permissions, description)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query, role.Name, permissionsArg(role.Permissions), role.Description).Scan(&role.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("create role: %w", err)
	}
	return nil
}

func (r *RoleRepository) GetByID(ctx context.Context, id int64) (models.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles r WHERE r.id = $1`
	return scanRole(r.db.QueryRow(ctx, query, id))
}

func (r *RoleRepository) List(ctx context.Context) ([]models.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles r ORDER BY r.id`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return collectRoles(rows)
}

func (r *RoleRepository) Update(ctx context.Context, role models.Role) error {
	const query = `
		UPDATE roles
		SET role_name = $2,
		    permissions = $3,
		    description = $4
		WHERE id = $1
	`
	cmd, err := r.db.Exec(ctx, query, role.ID, role.Name, permissionsArg(role.Permissions), role.Description)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("update role: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete fails with ErrRoleInUse while user_roles references the role
// (ON DELETE RESTRICT).
func (r *RoleRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrRoleInUse
		}
		return fmt.Errorf("delete role: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByUser returns the roles assigned to userID ordered by role id.
func (r *RoleRepository) ListByUser(ctx context.Context, userID int64) ([]models.Role, error) {
	query := `
		SELECT ` + roleColumns + `
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.id
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list user roles: %w", err)
	}
	return collectRoles(rows)
}

// PermissionSets returns the permissions array of every role assigned to userID.
func (r *RoleRepository) PermissionSets(ctx context.Context, userID int64) ([][]string, error) {
	const query = `
		SELECT r.permissions
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("role permissions: %w", err)
	}
	defer rows.Close()

	var sets [][]string
	for rows.Next() {
		var permissions []string
		if err := rows.Scan(&permissions); err != nil {
			return nil, err
		}
		sets = append(sets, permissions)
	}
	return sets, rows.Err()
}
