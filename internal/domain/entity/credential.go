package entity

import "time"

// Credential is the auth provider's record of one login identity.
type Credential struct {
	UID          string    // Provider-assigned identifier, reused as the actor ID.
	Email        string    // Normalized (lower-case, trimmed) login email.
	PasswordHash string    // bcrypt hash of the password.
	DisplayName  string    // Name given at signup.
	CreatedAt    time.Time // Timestamp of signup.
}
