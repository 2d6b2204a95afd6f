// Package testbed reads and writes the persisted inventory document: the
// YAML file a run is seeded from and the augmented document written back at
// the end. Loading also harvests the credential pool inherited by newly
// discovered devices.
package testbed

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const (
	encPrefix = "%ENC{"
	askMarker = "%ASK{}"
	suffix    = "}"
)

// EncodeSecret wraps a plaintext password in the encoded representation.
// Already-encoded values and prompt markers pass through unchanged.
func EncodeSecret(plain string) string {
	if plain == "" || IsEncoded(plain) || IsAskMarker(plain) {
		return plain
	}
	return encPrefix + base64.StdEncoding.EncodeToString([]byte(plain)) + suffix
}

// DecodeSecret returns the plaintext of an encoded password. Plain values
// and prompt markers pass through unchanged; a malformed encoded value is
// an error so a corrupted document fails loudly instead of logging in with
// garbage.
func DecodeSecret(value string) (string, error) {
	if !IsEncoded(value) {
		return value, nil
	}
	body := strings.TrimSuffix(strings.TrimPrefix(value, encPrefix), suffix)
	plain, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return "", fmt.Errorf("decode secret: %w", err)
	}
	return string(plain), nil
}

// IsEncoded reports whether the value carries the encoded wrapper.
func IsEncoded(value string) bool {
	return strings.HasPrefix(value, encPrefix) && strings.HasSuffix(value, suffix)
}

// IsAskMarker reports whether the value defers to a connect-time prompt.
func IsAskMarker(value string) bool { return value == askMarker }
