package models

type User struct {
	ID           int64
	Login        string
	PasswordHash string
	Salt         string
	IsSuperuser  bool
	Firstname    string
	Lastname     string
	Disabled     bool
}

type Role struct {
	ID          int64
	Name        string
	Permissions []string
	Description string
}

// Session is the payload stored in Redis for an issued admin token.
type Session struct {
	UID      int64  `json:"uid"`
	Username string `json:"username"`
}
