// internal/app/system/authutil/authutil.go
// Package authutil provides centralized handling of account credential
// fields for signup and profile editing.
package authutil

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record
//   - Username / username: The handle users sign in with (3-15 characters)

import (
	"errors"
	"strings"

	"github.com/dalemusser/stratatrack/internal/app/system/normalize"
	"github.com/dalemusser/stratatrack/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
)

// CredentialInput holds the raw values submitted by signup or profile edit.
type CredentialInput struct {
	Name     string
	Username string
	Email    string
	Password string
	IsEdit   bool // If true, password is optional (leave blank to keep existing)
}

// Credentials holds the normalized fields ready for storage.
type Credentials struct {
	Name         string
	NameCI       string
	Username     string
	UsernameCI   string
	Email        string
	EmailCI      string
	PasswordHash *string // nil when an edit leaves the password unchanged
}

// Common validation errors
var (
	ErrNameRequired     = errors.New("Name is required.")
	ErrUsernameRequired = errors.New("Username is required.")
	ErrEmailRequired    = errors.New("Email is required.")
	ErrInvalidEmail     = errors.New("Please enter a valid email address.")
	ErrPasswordRequired = errors.New("Password is required.")
)

// isValidEmail performs a basic email format validation.
// It checks for the presence of @ and at least one character on each side.
func isValidEmail(email string) bool {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	if len(parts[0]) == 0 {
		return false
	}
	// Domain must contain at least one dot after @
	domain := parts[1]
	dotIdx := strings.LastIndex(domain, ".")
	if dotIdx < 1 || dotIdx >= len(domain)-1 {
		return false
	}
	return true
}

// ResolveCredentials normalizes the credential fields, checks the password
// rules, and hashes the password when one is given. Field length limits are
// enforced earlier by inputval; this covers the checks that depend on
// normalization.
func ResolveCredentials(input CredentialInput) (*Credentials, error) {
	name := normalize.Name(input.Name)
	username := normalize.Username(input.Username)
	email := normalize.Email(input.Email)

	if name == "" {
		return nil, ErrNameRequired
	}
	if username == "" {
		return nil, ErrUsernameRequired
	}
	if email == "" {
		return nil, ErrEmailRequired
	}
	if !isValidEmail(email) || len(email) > models.EmailMaxLength {
		return nil, ErrInvalidEmail
	}

	result := &Credentials{
		Name:       name,
		NameCI:     text.Fold(name),
		Username:   username,
		UsernameCI: text.Fold(username),
		Email:      email,
		EmailCI:    text.Fold(email),
	}

	if input.Password == "" {
		if input.IsEdit {
			return result, nil
		}
		return nil, ErrPasswordRequired
	}
	if err := ValidatePassword(input.Password); err != nil {
		return nil, err
	}
	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	result.PasswordHash = &hash
	return result, nil
}
