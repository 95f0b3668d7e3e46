package model

import (
	"strings"
	"time"
)

// UserRole represents the role of a user in the system
type UserRole string

const (
	UserRoleUser      UserRole = "user"      // Can register for events
	UserRoleOrganizer UserRole = "organizer" // Can also create and manage events
)

// User represents a user account
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Hash      string    `json:"-"` // Never expose password hash
	Role      UserRole  `json:"role"`
	CreatedOn time.Time `json:"created_on"`
	UpdatedOn time.Time `json:"updated_on"`
}

// IsOrganizer returns true if the user can create and manage events
func (u *User) IsOrganizer() bool {
	return u.Role == UserRoleOrganizer
}

// Constraints
const (
	MaxNameLength     = 100
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

// RegisterUserRequest is the payload for creating an account
type RegisterUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"` // defaults to "user"
}

// Validate validates a RegisterUserRequest
func (r *RegisterUserRequest) Validate() []FieldError {
	var errs []FieldError

	if strings.TrimSpace(r.Name) == "" {
		errs = append(errs, FieldError{Field: "name", Message: "name is required"})
	} else if len(r.Name) > MaxNameLength {
		errs = append(errs, FieldError{Field: "name", Message: "name too long"})
	}

	if !IsValidEmail(r.Email) {
		errs = append(errs, FieldError{Field: "email", Message: "invalid email format"})
	}

	if len(r.Password) < MinPasswordLength {
		errs = append(errs, FieldError{Field: "password", Message: "password must be at least 8 characters"})
	} else if len(r.Password) > MaxPasswordLength {
		errs = append(errs, FieldError{Field: "password", Message: "password must be at most 128 characters"})
	}

	if r.Role != "" && r.Role != string(UserRoleUser) && r.Role != string(UserRoleOrganizer) {
		errs = append(errs, FieldError{Field: "role", Message: "role must be 'user' or 'organizer'"})
	}

	return errs
}

// LoginRequest is the payload for logging in
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries an issued access token
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresOn time.Time `json:"expires_on"`
	User      *User     `json:"user,omitempty"`
}

// IsValidEmail performs a structural email check
func IsValidEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	return strings.Contains(domain, ".") && !strings.Contains(email[at+1:], "@")
}
