package repository

import (
	"context"
	"fmt"
)

// UserRoleRepository reconciles user_roles through a per-transaction staging table.
// Every method except Assigned must run on a pgx.Tx: desired_roles is created ON
// COMMIT DROP and lives only as long as the transaction.
type UserRoleRepository struct {
	db DBTX
}

func NewUserRoleRepository(db DBTX) *UserRoleRepository {
	return &UserRoleRepository{db: db}
}

// StageDesired creates desired_roles shaped like user_roles and fills it with one row
// per requested role id.
func (r *UserRoleRepository) StageDesired(ctx context.Context, userID int64, roleIDs []int64) error {
	if _, err := r.db.Exec(ctx, `CREATE TEMP TABLE desired_roles (LIKE user_roles) ON COMMIT DROP`); err != nil {
		return fmt.Errorf("create desired_roles: %w", err)
	}
	if roleIDs == nil {
		roleIDs = []int64{}
	}

	const query = `
		INSERT INTO desired_roles (user_id, role_id)
		SELECT $1, role_id FROM unnest($2::bigint[]) AS role_id
	`
	if _, err := r.db.Exec(ctx, query, userID, roleIDs); err != nil {
		return fmt.Errorf("stage desired roles: %w", err)
	}
	return nil
}

// UnknownRoleIDs returns staged role ids with no matching roles row, ascending.
func (r *UserRoleRepository) UnknownRoleIDs(ctx context.Context) ([]int64, error) {
	const query = `
		SELECT d.role_id
		FROM desired_roles d
		LEFT JOIN roles r ON r.id = d.role_id
		WHERE r.id IS NULL
		ORDER BY d.role_id
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("unknown role ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RemoveUndesired deletes assignments of userID that are not staged.
func (r *UserRoleRepository) RemoveUndesired(ctx context.Context, userID int64) (int64, error) {
	const query = `
		DELETE FROM user_roles ur
		WHERE ur.user_id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM desired_roles d
			WHERE d.user_id = ur.user_id AND d.role_id = ur.role_id
		  )
	`
	cmd, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("remove roles: %w", err)
	}
	return cmd.RowsAffected(), nil
}

// AddMissing inserts staged assignments not yet present in user_roles.
func (r *UserRoleRepository) AddMissing(ctx context.Context, userID int64) (int64, error) {
	const query = `
		INSERT INTO user_roles (user_id, role_id)
		SELECT d.user_id, d.role_id
		FROM desired_roles d
		WHERE d.user_id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM user_roles ur
			WHERE ur.user_id = d.user_id AND ur.role_id = d.role_id
		  )
	`
	cmd, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("add roles: %w", err)
	}
	return cmd.RowsAffected(), nil
}
