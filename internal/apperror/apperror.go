// Package apperror defines the closed set of errors the admin API reports to clients.
//
// Every variant has a stable subcode, an HTTP status and a default reason. The JSON
// envelope is
//
//	{"error": {<field>: <message>}, "error_reason": "...", "error_subcode": 1, "error_code": 400}
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Code int

const (
	FieldValidation Code = iota + 1
	ObjectExists
	InvalidLogin
	NoAccessToken
	InvalidAccessToken
	PermissionDenied
	UserDisabled
	ObjectNotFound
)

type codeInfo struct {
	status int
	reason string
	name   string
}

var codes = map[Code]codeInfo{
	FieldValidation:    {http.StatusBadRequest, "Invalid JSON body", "field_validation"},
	ObjectExists:       {http.StatusBadRequest, "Object already exist", "object_exists"},
	InvalidLogin:       {http.StatusUnauthorized, "Invalid username/password", "invalid_login"},
	NoAccessToken:      {http.StatusUnauthorized, "Authorization required", "no_access_token"},
	InvalidAccessToken: {http.StatusUnauthorized, "Invalid Authorization", "invalid_access_token"},
	PermissionDenied:   {http.StatusForbidden, "Permission denied", "permission_denied"},
	UserDisabled:       {http.StatusUnauthorized, "User is disabled by administrator", "user_disabled"},
	ObjectNotFound:     {http.StatusNotFound, "Object not found", "object_not_found"},
}

func (c Code) Status() int {
	if info, ok := codes[c]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

func (c Code) String() string {
	if info, ok := codes[c]; ok {
		return info.name
	}
	return fmt.Sprintf("code(%d)", int(c))
}

type Error struct {
	Code   Code
	Reason string
	Fields map[string]any
}

// New builds an error with the code's default reason and the given field details.
func New(code Code, fields map[string]any) *Error {
	if fields == nil {
		fields = map[string]any{}
	}
	return &Error{Code: code, Reason: codes[code].reason, Fields: fields}
}

// WithReason replaces the default reason.
func (e *Error) WithReason(reason string) *Error {
	e.Reason = reason
	return e
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Reason)
	}
	return fmt.Sprintf("%s: %s %v", e.Code, e.Reason, e.Fields)
}

// Is matches any *Error with the same code, so errors.Is(err, apperror.New(code, nil)) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

func (e *Error) Status() int {
	return e.Code.Status()
}

type Envelope struct {
	Error    map[string]any `json:"error"`
	Reason   string         `json:"error_reason"`
	Subcode  int            `json:"error_subcode"`
	HTTPCode int            `json:"error_code"`
}

func (e *Error) Envelope() Envelope {
	fields := e.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	return Envelope{
		Error:    fields,
		Reason:   e.Reason,
		Subcode:  int(e.Code),
		HTTPCode: e.Status(),
	}
}

// As extracts the *Error carried by err, if any.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries an *Error with the given code.
func HasCode(err error, code Code) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

func Validation(field string, message string) *Error {
	return New(FieldValidation, map[string]any{field: message})
}

func Exists(field string, message string) *Error {
	return New(ObjectExists, map[string]any{field: message})
}

func NotFound() *Error {
	return New(ObjectNotFound, nil)
}

func Denied(permission string) *Error {
	if permission == "" {
		return New(PermissionDenied, nil)
	}
	return New(PermissionDenied, map[string]any{"permission": permission})
}
