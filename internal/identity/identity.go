// Package identity defines the read-only view of the identity directory.
// The directory is owned elsewhere; this core only reads it to enrich
// successful matches and to gate face authentication.
package identity

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrNotFound is returned when an identity id is unknown to the directory.
var ErrNotFound = errors.New("identity not found")

// Identity is the minimal directory record the core needs.
type Identity struct {
	ID             string `json:"id"`
	DisplayName    string `json:"display_name"`
	Active         bool   `json:"active"`
	CanUseFaceAuth bool   `json:"can_use_face_auth"`
}

// Directory resolves identity ids to directory records.
type Directory interface {
	GetIdentity(ctx context.Context, id string) (*Identity, error)
}

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeName normalizes a display name for comparison (lowercase, no
// diacritics, spaces for dashes) so slugs and display names compare equal.
func NormalizeName(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", " ")
	return strings.TrimSpace(name)
}
