package authutil

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Password length limits, counted in bytes as bcrypt sees them.
const (
	MinPasswordLength = 6
	MaxPasswordLength = 20
)

// bcryptCost is the work factor for stored hashes.
const bcryptCost = 12

var (
	ErrPasswordTooShort = errors.New("Password must be at least 6 characters.")
	ErrPasswordTooLong  = errors.New("Password must be at most 20 characters.")
	ErrPasswordCommon   = errors.New("This password is too common. Please choose a different one.")
)

// blocklist holds passwords refused regardless of length, lowercased.
var blocklist = func() map[string]struct{} {
	words := strings.Fields(`
		123456 1234567 12345678 123456789 123123 654321 111111 000000
		password password1 qwerty qwerty123 abc123 abcdef
		iloveyou monkey dragon master letmein welcome login admin
		princess sunshine football baseball soccer hockey batman superman
		tracker progress weight`)
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

// ValidatePassword applies the length limits and the blocklist.
func ValidatePassword(password string) error {
	switch n := len(password); {
	case n < MinPasswordLength:
		return ErrPasswordTooShort
	case n > MaxPasswordLength:
		return ErrPasswordTooLong
	}
	if _, bad := blocklist[strings.ToLower(password)]; bad {
		return ErrPasswordCommon
	}
	return nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	return string(hash), err
}

// CheckPassword reports whether password matches hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
