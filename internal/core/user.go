package core

import (
	"strings"
	"time"
)

// Owner is the resolved identity of a caller. ID is the opaque subject
// issued by the identity provider; Email and Name are optional profile data.
type Owner struct {
	ID    string
	Email string
	Name  string
}

// User is the profile row materialized for an owner.
type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
}

// Resolved reports whether the owner carries a usable identity.
func (o Owner) Resolved() bool {
	return strings.TrimSpace(o.ID) != ""
}

func (o Owner) User() User {
	return User{ID: o.ID, Email: strings.TrimSpace(o.Email), Name: strings.TrimSpace(o.Name)}
}
