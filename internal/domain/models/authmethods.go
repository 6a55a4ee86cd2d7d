// internal/domain/models/authmethods.go
package models

// How an account was created and how it signs in.
const (
	AuthPassword = "password"
	AuthFacebook = "facebook"
	AuthDemo     = "demo"
)

// AuthMethod pairs a stored auth method with its display label.
type AuthMethod struct {
	Value string
	Label string
}

// AllAuthMethods lists every supported auth method.
var AllAuthMethods = []AuthMethod{
	{Value: AuthPassword, Label: "Password"},
	{Value: AuthFacebook, Label: "Facebook"},
	{Value: AuthDemo, Label: "Demo"},
}

// IsValidAuthMethod checks if a value is a valid auth method.
func IsValidAuthMethod(value string) bool {
	for _, m := range AllAuthMethods {
		if m.Value == value {
			return true
		}
	}
	return false
}

// AllAuthMethodValues returns the stored values of all auth methods.
func AllAuthMethodValues() []string {
	out := make([]string, len(AllAuthMethods))
	for i, m := range AllAuthMethods {
		out[i] = m.Value
	}
	return out
}
