package entity

import (
	"time"

	"github.com/google/uuid"
)

// User is the aggregate root for user domain
// Passwords are stored as bcrypt hashes in PasswordHash; the hash never leaves
// the service layer.
type User struct {
	ID           uuid.UUID
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	IsActive     bool
	IsVerified   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FullName joins first and last name for greetings and the search index.
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
