// Package cli validates flag values taken directly from the command line
// before they are folded into a Postgres connection string or an HTTP
// request, since both --pg-* flags and ticker lists ultimately end up
// inside DSNs and URLs built by string concatenation elsewhere in the
// pipeline.
package cli

import (
	"errors"
	"regexp"
	"strings"
)

// ErrSuspiciousInput is returned by ValidateInput for a value that looks
// like a shell/SQL injection attempt rather than a plain host, user,
// database name, or ticker.
var ErrSuspiciousInput = errors.New("potentially malicious input detected")

var sqlPattern = regexp.MustCompile(`['"]\s*;\s*|\b(DROP|DELETE|UPDATE|INSERT)\b`)

// ValidateInput rejects flag values containing shell metacharacters, path
// traversal sequences, or SQL keywords commonly used to break out of a
// quoted connection-string field.
func ValidateInput(input string) error {
	if strings.ContainsAny(input, ";") || strings.Contains(input, "&&") || strings.Contains(input, "||") {
		return ErrSuspiciousInput
	}

	if strings.Contains(input, "../") || strings.Contains(input, "..\\") {
		return ErrSuspiciousInput
	}

	if sqlPattern.MatchString(strings.ToUpper(input)) {
		return ErrSuspiciousInput
	}

	return nil
}

// ValidateFlags runs ValidateInput over every named, non-empty value and
// returns a single error joining every offending flag name, or nil if all
// pass. Callers use it right after flag.Parse to reject a malformed
// --pg-host/--pg-user/--pg-db/--pipe-path before it reaches a DSN or file
// path.
func ValidateFlags(named map[string]string) error {
	var bad []string
	for name, value := range named {
		if value == "" {
			continue
		}
		if err := ValidateInput(value); err != nil {
			bad = append(bad, name)
		}
	}
	if len(bad) == 0 {
		return nil
	}
	return errors.New("cli: invalid flag value(s): " + strings.Join(bad, ", "))
}
