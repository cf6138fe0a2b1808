// Package service declares the ports the use cases reach the outside world through.
package service

// PasswordHasher hashes and checks account passwords for the local auth provider.
type PasswordHasher interface {
	// Hash returns a salted hash. Passwords outside the accepted length fail
	// with ErrValidationFailed.
	Hash(password string) (string, error)

	// Check reports whether password matches hash.
	Check(password, hash string) bool
}
