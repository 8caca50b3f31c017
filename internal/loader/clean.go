package loader

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/franz/music-journeys/internal/spotify"
	"github.com/franz/music-journeys/internal/store"
)

// isURLChar is the allow-list for reference columns. Hand-edited sheets
// leave zero-width spaces, smart quotes and stray whitespace inside links.
func isURLChar(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune(":/._?=&%#+~-", r)
}

// CleanURL strips every character outside the reference allow-list
func CleanURL(s string) string {
	return strings.Map(func(r rune) rune {
		if isURLChar(r) {
			return r
		}
		return -1
	}, s)
}

// ParseInteger accepts plain integers and integral decimals such as "1.0",
// which spreadsheet exports write for numeric columns containing blanks.
func ParseInteger(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return int64(f), nil
}

// ParseBool accepts 1/0, true/false and yes/no in any case
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "1.0":
		return true, nil
	case "0", "false", "no", "0.0":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}

// cleanValue converts one source cell to the value stored for its column.
// Empty cells, and URL cells that are empty after cleaning, become NULL.
// Playlist URLs and URIs are reduced to the playlist id.
func cleanValue(raw string, kind store.ColumnKind) (any, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}

	switch kind {
	case store.KindURL:
		if s = CleanURL(s); s == "" {
			return nil, nil
		}
		return s, nil
	case store.KindPlaylistRef:
		if s = CleanURL(s); s == "" {
			return nil, nil
		}
		if ref, err := spotify.ParseKind(s, spotify.KindPlaylist); err == nil {
			return ref.ID, nil
		}
		return s, nil
	case store.KindInteger:
		return ParseInteger(s)
	case store.KindBool:
		b, err := ParseBool(s)
		if err != nil {
			return nil, err
		}
		if b {
			return int64(1), nil
		}
		return int64(0), nil
	case store.KindGranularity:
		g, err := store.ParseGranularity(s)
		if err != nil {
			return nil, err
		}
		return string(g), nil
	case store.KindTimestamp:
		t, err := store.ParseTimestamp(s)
		if err != nil {
			return nil, err
		}
		return store.FormatTimestamp(t), nil
	default:
		return s, nil
	}
}
