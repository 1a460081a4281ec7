// internal/domain/identity/entity.go
package identity

import "context"

// User is the authenticated caller as known to the user directory.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
}

// DisplayName falls back to the email when no full name is known.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}

// Directory verifies bearer credentials.
type Directory interface {
	VerifyCredential(ctx context.Context, token string) (*User, error)
}
