package util

import (
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// Key prefixes for rows created from remote metadata
const (
	PerformerKeyPrefix = "PRF"
	AlbumKeyPrefix     = "ALB"
	RecordingKeyPrefix = "REC"
)

// keyNamespace scopes derived keys so they never coincide with other SHA1 UUIDs
var keyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/franz/music-journeys/keys"))

// keySeparator cannot occur in normalized text, so ("ab","c") and ("a","bc") differ
const keySeparator = "\x1f"

// DeriveKey returns a deterministic identifier for a natural key.
// Parts are compared after NFC normalization, case folding and whitespace
// collapsing, so cosmetic variants of the same name map to the same key.
func DeriveKey(prefix string, parts ...string) string {
	normalized := make([]string, len(parts))
	for i, p := range parts {
		normalized[i] = NormalizeKeyPart(p)
	}
	id := uuid.NewSHA1(keyNamespace, []byte(strings.Join(normalized, keySeparator)))
	return prefix + "-" + id.String()
}

// NormalizeKeyPart folds a natural key component to its comparable form
func NormalizeKeyPart(s string) string {
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, keySeparator, " ")
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
