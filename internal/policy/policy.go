// Package policy answers whether an admin user may perform an action.
//
// Superusers pass every check. Other users hold the union of the permissions of their
// assigned roles. Nothing is cached: each check reads the current role assignments.
package policy

import (
	"context"
	"fmt"
	"slices"

	"maplocate/api/internal/apperror"
	"maplocate/api/internal/models"
	"maplocate/api/internal/permissions"
)

type SuperuserLookup interface {
	IsSuperuser(ctx context.Context, userID int64) (bool, error)
}

type PermissionLookup interface {
	PermissionSets(ctx context.Context, userID int64) ([][]string, error)
}

type SessionResolver interface {
	Resolve(ctx context.Context, authorization string) (models.Session, error)
}

type Policy struct {
	users    SuperuserLookup
	roles    PermissionLookup
	sessions SessionResolver
}

func New(users SuperuserLookup, roles PermissionLookup, sessions SessionResolver) *Policy {
	return &Policy{users: users, roles: roles, sessions: sessions}
}

// IsSuperuser is false for unknown users.
func (p *Policy) IsSuperuser(ctx context.Context, uid int64) (bool, error) {
	ok, err := p.users.IsSuperuser(ctx, uid)
	if err != nil {
		return false, fmt.Errorf("superuser lookup: %w", err)
	}
	return ok, nil
}

// CheckPermission returns nil when uid holds permission and apperror.PermissionDenied
// otherwise. A permission outside the catalog is a programming error and fails before
// any lookup.
func (p *Policy) CheckPermission(ctx context.Context, uid int64, permission permissions.Permission) error {
	if !permission.Valid() {
		return fmt.Errorf("check permission: %w: %q", permissions.ErrUnknownPermission, string(permission))
	}

	superuser, err := p.IsSuperuser(ctx, uid)
	if err != nil {
		return err
	}
	if superuser {
		return nil
	}

	sets, err := p.roles.PermissionSets(ctx, uid)
	if err != nil {
		return fmt.Errorf("permission lookup: %w", err)
	}
	for _, set := range sets {
		if slices.Contains(set, string(permission)) {
			return nil
		}
	}
	return apperror.Denied(string(permission))
}

// Superadmin resolves the session behind the Authorization header and requires the
// superuser flag.
func (p *Policy) Superadmin(ctx context.Context, authorization string) (models.Session, error) {
	s, err := p.sessions.Resolve(ctx, authorization)
	if err != nil {
		return models.Session{}, err
	}

	superuser, err := p.IsSuperuser(ctx, s.UID)
	if err != nil {
		return models.Session{}, err
	}
	if !superuser {
		return models.Session{}, apperror.Denied("").WithReason("Must be superadmin")
	}
	return s, nil
}

// Admin resolves the session behind the Authorization header and requires permission.
func (p *Policy) Admin(ctx context.Context, authorization string, permission permissions.Permission) (models.Session, error) {
	s, err := p.sessions.Resolve(ctx, authorization)
	if err != nil {
		return models.Session{}, err
	}
	if err := p.CheckPermission(ctx, s.UID, permission); err != nil {
		return models.Session{}, err
	}
	return s, nil
}
