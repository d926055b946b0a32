package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"maplocate/api/internal/apperror"
	"maplocate/api/internal/models"
	"maplocate/api/internal/permissions"
	"maplocate/api/internal/policy"
	"maplocate/api/internal/repository"
	"maplocate/api/internal/security"
	"maplocate/api/internal/session"
)

type UserService struct {
	users    *repository.UserRepository
	sessions *session.Manager
	policy   *policy.Policy
	log      zerolog.Logger
}

func NewUserService(
	users *repository.UserRepository,
	sessions *session.Manager,
	policy *policy.Policy,
	log zerolog.Logger,
) *UserService {
	return &UserService{
		users:    users,
		sessions: sessions,
		policy:   policy,
		log:      log,
	}
}

type CreateUserInput struct {
	Login       string
	Password    string
	Firstname   string
	Lastname    string
	Disabled    bool
	IsSuperuser bool
}

func (s *UserService) Create(ctx context.Context, input CreateUserInput) (models.User, error) {
	login := strings.TrimSpace(input.Login)
	if login == "" {
		return models.User{}, apperror.Validation("login", "login must not be empty")
	}
	if input.Password == "" {
		return models.User{}, apperror.Validation("password", "password must not be empty")
	}

	salt, err := security.GenerateSalt()
	if err != nil {
		return models.User{}, err
	}

	user := models.User{
		Login:        login,
		PasswordHash: security.HashPassword(input.Password, salt),
		Salt:         salt,
		IsSuperuser:  input.IsSuperuser,
		Firstname:    input.Firstname,
		Lastname:     input.Lastname,
		Disabled:     input.Disabled,
	}
	if err := s.users.Create(ctx, &user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return models.User{}, apperror.Exists("login", "user with this login already exists")
		}
		return models.User{}, err
	}
	return user, nil
}

type UserDetails struct {
	User           models.User
	ActiveSessions int
}

func (s *UserService) Get(ctx context.Context, id int64) (UserDetails, error) {
	user, err := s.get(ctx, id)
	if err != nil {
		return UserDetails{}, err
	}

	entries, err := s.sessions.ListUserSessions(ctx, id)
	if err != nil {
		return UserDetails{}, err
	}
	return UserDetails{User: user, ActiveSessions: len(entries)}, nil
}

func (s *UserService) get(ctx context.Context, id int64) (models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.User{}, apperror.NotFound()
		}
		return models.User{}, err
	}
	return user, nil
}

type UserPage struct {
	Users []models.User
	Total int64
}

func (s *UserService) List(ctx context.Context, limit int, offset int) (UserPage, error) {
	users, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return UserPage{}, err
	}
	total, err := s.users.Count(ctx)
	if err != nil {
		return UserPage{}, err
	}
	return UserPage{Users: users, Total: total}, nil
}

// UpdateUserInput carries only the fields present in the request.
type UpdateUserInput struct {
	Login       *string
	Password    *string
	OldPassword *string
	Firstname   *string
	Lastname    *string
	Disabled    *bool
}

// Update applies input to user id on behalf of actor. Changing your own password needs
// the old one; changing someone else's needs users_reset_password. A password change
// or disabling the account drops every session of the user.
func (s *UserService) Update(ctx context.Context, actor models.Session, id int64, input UpdateUserInput) (models.User, error) {
	user, err := s.get(ctx, id)
	if err != nil {
		return models.User{}, err
	}

	if input.Login != nil {
		login := strings.TrimSpace(*input.Login)
		if login == "" {
			return models.User{}, apperror.Validation("login", "login must not be empty")
		}
		user.Login = login
	}
	if input.Firstname != nil {
		user.Firstname = *input.Firstname
	}
	if input.Lastname != nil {
		user.Lastname = *input.Lastname
	}

	dropSessions := false
	if input.Disabled != nil {
		if *input.Disabled && actor.UID == id {
			return models.User{}, apperror.Validation("disabled", "cannot disable yourself")
		}
		dropSessions = *input.Disabled && !user.Disabled
		user.Disabled = *input.Disabled
	}

	if input.Password != nil {
		if *input.Password == "" {
			return models.User{}, apperror.Validation("password", "password must not be empty")
		}
		if actor.UID == id {
			if input.OldPassword == nil || !security.VerifyPassword(*input.OldPassword, user.PasswordHash, user.Salt) {
				return models.User{}, apperror.Validation("old_password", "old password does not match")
			}
		} else if err := s.policy.CheckPermission(ctx, actor.UID, permissions.UsersResetPassword); err != nil {
			return models.User{}, err
		}

		salt, err := security.GenerateSalt()
		if err != nil {
			return models.User{}, err
		}
		user.Salt = salt
		user.PasswordHash = security.HashPassword(*input.Password, salt)
		dropSessions = true
	}

	if err := s.users.Update(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return models.User{}, apperror.Exists("login", "user with this login already exists")
		case errors.Is(err, repository.ErrNotFound):
			return models.User{}, apperror.NotFound()
		}
		return models.User{}, err
	}

	if dropSessions {
		if _, err := s.sessions.Invalidate(ctx, id); err != nil {
			return models.User{}, fmt.Errorf("invalidate sessions: %w", err)
		}
	}
	return user, nil
}

// Delete removes user id together with its role assignments and sessions.
func (s *UserService) Delete(ctx context.Context, actor models.Session, id int64) error {
	if actor.UID == id {
		return apperror.Validation("uid", "cannot delete yourself")
	}

	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound()
		}
		return err
	}

	if _, err := s.sessions.Invalidate(ctx, id); err != nil {
		return fmt.Errorf("invalidate sessions: %w", err)
	}
	return nil
}
