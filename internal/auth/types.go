package auth

import "time"

// Roles accepted at signup.
const (
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// User is an account holder. PasswordHash never leaves this package.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Public returns the client-visible view of the user.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}

// Session maps an opaque token to a user for a bounded lifetime.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session has passed its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
