package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"maplocate/api/internal/apperror"
	"maplocate/api/internal/models"
	"maplocate/api/internal/repository"
	"maplocate/api/internal/security"
	"maplocate/api/internal/session"
)

type AuthService struct {
	users    *repository.UserRepository
	sessions *session.Manager
	log      zerolog.Logger
}

func NewAuthService(users *repository.UserRepository, sessions *session.Manager, log zerolog.Logger) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		log:      log,
	}
}

type LoginInput struct {
	Login    string
	Password string
}

type AuthResult struct {
	Token string
	User  models.User
}

// Login checks the credentials and issues a new admin session. Unknown login and
// wrong password fail the same way.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	login := strings.TrimSpace(input.Login)
	user, err := s.users.FindByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return AuthResult{}, apperror.New(apperror.InvalidLogin, nil)
		}
		return AuthResult{}, err
	}

	if !security.VerifyPassword(input.Password, user.PasswordHash, user.Salt) {
		return AuthResult{}, apperror.New(apperror.InvalidLogin, nil)
	}
	if user.Disabled {
		return AuthResult{}, apperror.New(apperror.UserDisabled, nil)
	}

	token, err := s.sessions.Issue(ctx, models.Session{UID: user.ID, Username: user.Login})
	if err != nil {
		return AuthResult{}, err
	}

	s.log.Info().Int64("uid", user.ID).Str("username", user.Login).Msg("admin logged in")
	return AuthResult{Token: token, User: user}, nil
}

// Logout revokes the token carried by the Authorization header value.
func (s *AuthService) Logout(ctx context.Context, authorization string) error {
	token := session.TokenFromHeader(authorization)
	if token == "" {
		return apperror.New(apperror.NoAccessToken, nil)
	}
	return s.sessions.Revoke(ctx, token)
}
