package authutil

import (
	"testing"

	"github.com/dalemusser/waffle/pantry/text"
)

func TestIsValidEmailFormat(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"user@example.com", true},
		{"a@b.co", true},
		{"no-at-sign.com", false},
		{"@example.com", false},
		{"user@nodot", false},
		{"user@.com", false},
		{"user@example.", false},
		{"a@b@c.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			if got := isValidEmail(tt.email); got != tt.want {
				t.Errorf("isValidEmail(%q) = %v, want %v", tt.email, got, tt.want)
			}
		})
	}
}

func TestResolveCredentials(t *testing.T) {
	got, err := ResolveCredentials(CredentialInput{
		Name:     "  Val Az ",
		Username: " ValAz ",
		Email:    " Val@Example.com ",
		Password: "tracker42",
	})
	if err != nil {
		t.Fatalf("ResolveCredentials() error = %v", err)
	}

	if got.Name != "Val Az" {
		t.Errorf("Name = %q, want %q", got.Name, "Val Az")
	}
	if got.Username != "ValAz" {
		t.Errorf("Username = %q, want %q", got.Username, "ValAz")
	}
	if got.UsernameCI != text.Fold("ValAz") {
		t.Errorf("UsernameCI = %q, want folded username", got.UsernameCI)
	}
	if got.Email != "val@example.com" {
		t.Errorf("Email = %q, want lowercase", got.Email)
	}
	if got.PasswordHash == nil || !CheckPassword("tracker42", *got.PasswordHash) {
		t.Error("PasswordHash should verify the submitted password")
	}
}

func TestResolveCredentials_Errors(t *testing.T) {
	base := CredentialInput{Name: "Val", Username: "valaz", Email: "val@example.com", Password: "tracker42"}

	tests := []struct {
		name    string
		mutate  func(*CredentialInput)
		wantErr error
	}{
		{"blank name", func(in *CredentialInput) { in.Name = "   " }, ErrNameRequired},
		{"blank username", func(in *CredentialInput) { in.Username = "" }, ErrUsernameRequired},
		{"blank email", func(in *CredentialInput) { in.Email = "" }, ErrEmailRequired},
		{"bad email", func(in *CredentialInput) { in.Email = "val-at-example" }, ErrInvalidEmail},
		{"missing password", func(in *CredentialInput) { in.Password = "" }, ErrPasswordRequired},
		{"short password", func(in *CredentialInput) { in.Password = "abc" }, ErrPasswordTooShort},
		{"common password", func(in *CredentialInput) { in.Password = "password" }, ErrPasswordCommon},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.mutate(&in)
			_, err := ResolveCredentials(in)
			if err != tt.wantErr {
				t.Errorf("ResolveCredentials() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestResolveCredentials_EditKeepsPassword(t *testing.T) {
	got, err := ResolveCredentials(CredentialInput{
		Name:     "Val",
		Username: "valaz",
		Email:    "val@example.com",
		IsEdit:   true,
	})
	if err != nil {
		t.Fatalf("ResolveCredentials() error = %v", err)
	}
	if got.PasswordHash != nil {
		t.Error("PasswordHash should be nil when an edit leaves the password blank")
	}
}
