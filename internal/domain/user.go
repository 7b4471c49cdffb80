package domain

import (
	"errors"
	"time"
)

var (
	// ErrUserAlreadyExists is returned when trying to create a user with an existing username.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrUserNotFound is returned when looking up a non-existent user.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials is returned when the username/password combination is incorrect.
	// Unknown usernames and wrong passwords are reported identically.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// User represents an account that can log in.
type User struct {
	Username     string    // Login username, unique
	PasswordHash string    // PHC-encoded password hash
	Roles        RoleSet   // Never empty
	CreatedAt    time.Time // Time of account creation
	UpdatedAt    time.Time // Time of last modification
}

// Identity returns the identity a token issued for this user carries.
func (u User) Identity() Identity {
	return Identity{Username: u.Username, Roles: u.Roles}
}

// UserResponse is the public JSON view of a user.
type UserResponse struct {
	Username string  `json:"username"`
	Roles    RoleSet `json:"role"`
}

// NewUserResponse strips the secret fields of a user.
func NewUserResponse(u User) UserResponse {
	return UserResponse{Username: u.Username, Roles: u.Roles}
}

// UserRequest is the JSON body accepted by the user management endpoints.
// Absent fields are nil.
type UserRequest struct {
	Username *string  `json:"username"`
	Password *string  `json:"password"`
	Roles    *RoleSet `json:"role"`
}
