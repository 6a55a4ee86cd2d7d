// Package normalize holds the canonical cleanup applied to user-entered
// strings before they are stored or compared.
package normalize

import "strings"

func lowerTrim(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Email trims and lowercases an address.
func Email(s string) string { return lowerTrim(s) }

// Identifier prepares a sign-in "username or email" value for lookup.
func Identifier(s string) string { return lowerTrim(s) }

// Role and Status compare case-insensitively.
func Role(s string) string   { return lowerTrim(s) }
func Status(s string) string { return lowerTrim(s) }

// Name trims a display name. Comparison keys go through text.Fold.
func Name(s string) string { return strings.TrimSpace(s) }

// Username trims a username and keeps its case for display.
func Username(s string) string { return strings.TrimSpace(s) }

// QueryParam trims a query string value.
func QueryParam(s string) string { return strings.TrimSpace(s) }

// Label trims a short label such as an indicator name or unit and collapses
// inner whitespace runs to one space.
func Label(s string) string { return strings.Join(strings.Fields(s), " ") }
