package authutil

import (
	"strings"
	"testing"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		want     error
	}{
		{"abc123x", nil},
		{"my secret password", nil},
		{"P@ssw0rd!123", nil},
		{strings.Repeat("a", MinPasswordLength), nil},
		{strings.Repeat("a", MaxPasswordLength), nil},

		{"", ErrPasswordTooShort},
		{"abcde", ErrPasswordTooShort},
		{strings.Repeat("a", MaxPasswordLength+1), ErrPasswordTooLong},

		{"123456", ErrPasswordCommon},
		{"PASSWORD", ErrPasswordCommon},
		{"Tracker", ErrPasswordCommon},
		{"football", ErrPasswordCommon},
	}

	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			if got := ValidatePassword(tt.password); got != tt.want {
				t.Errorf("ValidatePassword(%q) = %v, want %v", tt.password, got, tt.want)
			}
		})
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("tracker42")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("hash %q is not bcrypt", hash)
	}

	again, _ := HashPassword("tracker42")
	if hash == again {
		t.Error("two hashes of one password should differ by salt")
	}

	if !CheckPassword("tracker42", hash) {
		t.Error("CheckPassword() rejected the right password")
	}
	for _, wrong := range []string{"tracker43", "Tracker42", "", "tracker42 "} {
		if CheckPassword(wrong, hash) {
			t.Errorf("CheckPassword(%q) accepted a wrong password", wrong)
		}
	}
	if CheckPassword("tracker42", "not-a-hash") {
		t.Error("CheckPassword() accepted a malformed hash")
	}
}
