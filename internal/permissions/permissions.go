// Package permissions holds the closed catalog of admin permission names. Roles
// reference these names in their permissions array; nothing here is stored in the database.
package permissions

import (
	"errors"
	"fmt"
)

var ErrUnknownPermission = errors.New("unknown permission")

type Permission string

const (
	RolesView Permission = "roles_view"
	RolesEdit Permission = "roles_edit"

	UsersView          Permission = "users_view"
	UsersAdd           Permission = "users_add"
	UsersEdit          Permission = "users_edit"
	UsersResetPassword Permission = "users_reset_password"
	UsersRolesEdit     Permission = "users_roles_edit"
)

type Info struct {
	Name        Permission `json:"name"`
	Description string     `json:"description"`
}

// catalog is ordered by subsystem; All returns it in this order.
var catalog = []Info{
	{RolesView, "View roles"},
	{RolesEdit, "Edit roles"},

	{UsersView, "View other admin user's profile(s)"},
	{UsersAdd, "Register admin user"},
	{UsersEdit, "Edit admin user profile"},
	{UsersResetPassword, "Reset user's password without confirmation"},
	{UsersRolesEdit, "Manage user's roles"},
}

var byName = func() map[Permission]Info {
	m := make(map[Permission]Info, len(catalog))
	for _, info := range catalog {
		m[info.Name] = info
	}
	return m
}()

func (p Permission) Valid() bool {
	_, ok := byName[p]
	return ok
}

func (p Permission) Description() string {
	return byName[p].Description
}

func (p Permission) String() string {
	return string(p)
}

func Parse(name string) (Permission, error) {
	p := Permission(name)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPermission, name)
	}
	return p, nil
}

func All() []Info {
	out := make([]Info, len(catalog))
	copy(out, catalog)
	return out
}

// Validate returns the first name in names that is not in the catalog.
func Validate(names []string) error {
	for _, name := range names {
		if _, err := Parse(name); err != nil {
			return err
		}
	}
	return nil
}
