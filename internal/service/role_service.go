package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"maplocate/api/internal/apperror"
	"maplocate/api/internal/models"
	"maplocate/api/internal/permissions"
	"maplocate/api/internal/repository"
)

type RoleService struct {
	roles *repository.RoleRepository
	log   zerolog.Logger
}

func NewRoleService(roles *repository.RoleRepository, log zerolog.Logger) *RoleService {
	return &RoleService{roles: roles, log: log}
}

type RoleInput struct {
	Name        string
	Permissions []string
	Description string
}

func (s *RoleService) Create(ctx context.Context, input RoleInput) (models.Role, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return models.Role{}, apperror.Validation("role_name", "role name must not be empty")
	}
	perms, err := normalizePermissions(input.Permissions)
	if err != nil {
		return models.Role{}, err
	}

	role := models.Role{Name: name, Permissions: perms, Description: input.Description}
	if err := s.roles.Create(ctx, &role); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return models.Role{}, apperror.Exists("role_name", "role with this name already exists")
		}
		return models.Role{}, err
	}
	return role, nil
}

func (s *RoleService) Get(ctx context.Context, id int64) (models.Role, error) {
	role, err := s.roles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.Role{}, apperror.NotFound()
		}
		return models.Role{}, err
	}
	return role, nil
}

func (s *RoleService) List(ctx context.Context) ([]models.Role, error) {
	return s.roles.List(ctx)
}

type UpdateRoleInput struct {
	Name        *string
	Permissions *[]string
	Description *string
}

func (s *RoleService) Update(ctx context.Context, id int64, input UpdateRoleInput) (models.Role, error) {
	role, err := s.Get(ctx, id)
	if err != nil {
		return models.Role{}, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return models.Role{}, apperror.Validation("role_name", "role name must not be empty")
		}
		role.Name = name
	}
	if input.Permissions != nil {
		perms, err := normalizePermissions(*input.Permissions)
		if err != nil {
			return models.Role{}, err
		}
		role.Permissions = perms
	}
	if input.Description != nil {
		role.Description = *input.Description
	}

	if err := s.roles.Update(ctx, role); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return models.Role{}, apperror.Exists("role_name", "role with this name already exists")
		case errors.Is(err, repository.ErrNotFound):
			return models.Role{}, apperror.NotFound()
		}
		return models.Role{}, err
	}
	return role, nil
}

// Delete refuses roles that are still assigned to a user.
func (s *RoleService) Delete(ctx context.Context, id int64) error {
	err := s.roles.Delete(ctx, id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperror.NotFound()
	case errors.Is(err, repository.ErrRoleInUse):
		return apperror.Validation("role_id", "role is assigned to users")
	}
	return err
}

func (s *RoleService) ListPermissions() []permissions.Info {
	return permissions.All()
}

// normalizePermissions checks every name against the catalog and drops repeats,
// keeping first occurrence order.
func normalizePermissions(names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, err := permissions.Parse(name); err != nil {
			return nil, apperror.Validation("permissions", "unknown permission: "+name)
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out, nil
}
