package database

import (
	"fmt"
	"regexp"
	"strings"
)

var md5Pattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// ValidateFileName checks the File name invariant: a name is a bare
// basename and may not contain a slash.
func ValidateFileName(name string) error {
	if name == "" {
		return fmt.Errorf("illegal file name: empty")
	}
	if strings.ContainsRune(name, '/') {
		return fmt.Errorf("illegal file name %q: names may not contain \"/\"", name)
	}
	return nil
}

// NormalizeMD5 lowercases and trims an md5 digest and validates that
// the result is exactly 32 hex characters.
func NormalizeMD5(md5 string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(md5))
	if !md5Pattern.MatchString(normalized) {
		return "", fmt.Errorf("malformed md5 digest %q: expected 32 hex characters", md5)
	}
	return normalized, nil
}
