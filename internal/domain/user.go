package domain

import (
	"encoding/json"
	"strings"
)

// RoleAdmin is the role required for the admin console.
const RoleAdmin = "admin"

// User is the account record the backend returns on login.
type User struct {
	ID        ID     `json:"id,omitempty"`
	LegacyID  ID     `json:"_id,omitempty"`
	Email     string `json:"email,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"firstname,omitempty"`
	LastName  string `json:"lastname,omitempty"`
	Role      string `json:"role,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// Identity returns id, else _id, else email.
func (u User) Identity() string {
	for _, v := range []string{string(u.ID), string(u.LegacyID), u.Email} {
		if v != "" {
			return v
		}
	}
	return ""
}

// IsAdmin reports whether the user carries the admin role.
func (u User) IsAdmin() bool {
	return strings.EqualFold(u.Role, RoleAdmin)
}

// AuthResult is the backend reply to login and register.
type AuthResult struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// ParseUserRecord decodes a stored user record. Empty, "null" and
// "undefined" are absent; malformed data is reported as an error.
func ParseUserRecord(raw []byte) (User, bool, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" || s == "undefined" {
		return User{}, false, nil
	}
	var u User
	if err := json.Unmarshal([]byte(s), &u); err != nil {
		return User{}, false, err
	}
	return u, u.Identity() != "", nil
}
