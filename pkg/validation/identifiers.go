package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var serialRegex = regexp.MustCompile(`^CERT-[0-9A-F]{16}$`)

// NormalizeSerial converts a certificate serial to upper case and validates format.
// Valid serials are "CERT-" followed by 16 hexadecimal digits.
func NormalizeSerial(value string) (string, error) {
	normalized := strings.TrimSpace(strings.ToUpper(value))
	if !serialRegex.MatchString(normalized) {
		return "", fmt.Errorf("invalid certificate serial. Use CERT- followed by 16 hexadecimal characters")
	}
	return normalized, nil
}
