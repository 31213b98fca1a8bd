// Package util holds identifier checks shared by webdb packages.
package util

import (
	"fmt"
	"regexp"
	"strings"
)

var identifierRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// IsIdentifier reports whether name is a plain identifier of at most 63
// characters, optionally schema-qualified when qualified is set.
func IsIdentifier(name string, qualified bool) bool {
	parts := []string{name}
	if qualified {
		parts = strings.Split(name, ".")
		if len(parts) > 2 {
			return false
		}
	}
	for _, p := range parts {
		if !identifierRegex.MatchString(p) {
			return false
		}
	}
	return true
}

// SavepointName validates a savepoint name. Savepoint names cannot be bound
// as parameters, so only plain identifiers of at most 63 characters are
// accepted.
func SavepointName(name string) (string, error) {
	if !IsIdentifier(name, false) {
		return "", fmt.Errorf("invalid savepoint name %q", name)
	}
	return name, nil
}
