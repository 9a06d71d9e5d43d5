// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const (
	MaxUserIDLen      = 64
	MaxDisplayNameLen = 36
)

var (
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrDisplayNameEmpty   = errors.New("display name empty")
	ErrUserIDInvalid      = errors.New("user id invalid")
)

type UserID string

type User struct {
	ID          UserID `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarRef   string `json:"avatar_ref,omitempty"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(id UserID, displayName string) (*User, error) {
	if id == "" || len(id) > MaxUserIDLen {
		return nil, ErrUserIDInvalid
	}
	u := &User{ID: id}
	if err := u.SetDisplayName(displayName); err != nil {
		return nil, err
	}
	return u, nil
}

func (u *User) SetDisplayName(name string) error {
	name = strings.TrimSpace(name)
	if len(name) == 0 {
		return ErrDisplayNameEmpty
	}
	if len(name) > MaxDisplayNameLen {
		return ErrDisplayNameTooLong
	}
	u.DisplayName = name
	return nil
}
