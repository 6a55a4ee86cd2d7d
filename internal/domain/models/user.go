// internal/domain/models/user.go
package models

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record
//   - Username / username: The handle users sign in with (stored as typed, matched folded)

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is an account that owns indicators.
//
// Username and Email are both unique, compared case/diacritic-insensitively
// through their *CI companions. Demo users are created on demand and deleted
// by a background job once DemoExpiresAt passes.
type User struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name   string             `bson:"name" json:"name"`
	NameCI string             `bson:"name_ci" json:"-"`

	Username   string `bson:"username" json:"username"`
	UsernameCI string `bson:"username_ci" json:"-"`
	Email      string `bson:"email" json:"email"` // lowercase
	EmailCI    string `bson:"email_ci" json:"-"`

	AuthMethod   string  `bson:"auth_method" json:"authMethod"` // password, facebook, demo
	PasswordHash *string `bson:"password_hash,omitempty" json:"-"`

	FacebookUserID *string `bson:"facebook_user_id,omitempty" json:"-"`

	Role   string `bson:"role" json:"role"`
	Status string `bson:"status,omitempty" json:"status,omitempty"` // active, disabled

	IsDemo        bool       `bson:"is_demo" json:"isDemo"`
	DemoExpiresAt *time.Time `bson:"demo_expires_at,omitempty" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// IsSocialLogin reports whether the account was created through a social
// provider rather than signup.
func (u User) IsSocialLogin() bool {
	return u.AuthMethod == AuthFacebook
}

// User roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Account statuses. A disabled account cannot sign in and its sessions and
// tokens stop resolving.
const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// IsValidStatus reports whether s is a known account status.
func IsValidStatus(s string) bool {
	return s == StatusActive || s == StatusDisabled
}

// Field limits shared by validation and the collection schema.
const (
	NameMaxLength     = 40
	UsernameMinLength = 3
	UsernameMaxLength = 15
	EmailMaxLength    = 40
)

// AllRoles returns all valid user roles.
func AllRoles() []string {
	return []string{
		RoleUser,
		RoleAdmin,
	}
}

// IsValidRole checks if a role is valid.
func IsValidRole(role string) bool {
	for _, r := range AllRoles() {
		if r == role {
			return true
		}
	}
	return false
}
