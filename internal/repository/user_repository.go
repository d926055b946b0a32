package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"maplocate/api/internal/models"
)

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, login, password, salt, is_superuser, firstname, lastname, disabled`

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(
		&user.ID,
		&user.Login,
		&user.PasswordHash,
		&user.Salt,
		&user.IsSuperuser,
		&user.Firstname,
		&user.Lastname,
		&user.Disabled,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

// Create inserts user and sets user.ID.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	const query = `
		INSERT INTO "user" (
			login, password, salt, is_superuser, firstname, lastname, disabled
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		user.Login,
		user.PasswordHash,
		user.Salt,
		user.IsSuperuser,
		user.Firstname,
		user.Lastname,
		user.Disabled,
	).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM "user" WHERE id = $1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

func (r *UserRepository) FindByLogin(ctx context.Context, login string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM "user" WHERE login = $1`
	return scanUser(r.db.QueryRow(ctx, query, login))
}

// LockByID fetches the user row with FOR UPDATE. Only meaningful inside a transaction.
func (r *UserRepository) LockByID(ctx context.Context, id int64) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM "user" WHERE id = $1 FOR UPDATE`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

func (r *UserRepository) List(ctx context.Context, limit int, offset int) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM "user" ORDER BY id LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM "user"`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// Update writes every mutable column of user. The superuser flag is not touched.
func (r *UserRepository) Update(ctx context.Context, user models.User) error {
	const query = `
		UPDATE "user"
		SET login = $2,
		    password = $3,
		    salt = $4,
		    firstname = $5,
		    lastname = $6,
		    disabled = $7
		WHERE id = $1
	`
	cmd, err := r.db.Exec(ctx, query,
		user.ID,
		user.Login,
		user.PasswordHash,
		user.Salt,
		user.Firstname,
		user.Lastname,
		user.Disabled,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("update user: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the user; user_roles rows go with it through ON DELETE CASCADE.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM "user" WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IsSuperuser returns false without error when the user does not exist.
func (r *UserRepository) IsSuperuser(ctx context.Context, id int64) (bool, error) {
	var isSuperuser bool
	err := r.db.QueryRow(ctx, `SELECT is_superuser FROM "user" WHERE id = $1`, id).Scan(&isSuperuser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("is superuser: %w", err)
	}
	return isSuperuser, nil
}
