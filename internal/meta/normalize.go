package meta

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// UnknownPerformer is attributed to remote items that carry no artists
const UnknownPerformer = "Unknown"

var (
	whitespaceRe = regexp.MustCompile(`\s+`)

	versionKeywords = `remix|live|acoustic|demo|instrumental|radio|edit|extended|version|mix|remaster|remastered|deluxe|bonus|anniversary|edition|unplugged|session|concert|recording|alternate|original|single|mono|stereo|explicit`

	versionSuffixRes = []*regexp.Regexp{
		// Parentheses: (Remastered 2011), (Live), (Original Version)
		regexp.MustCompile(`(?i)\s*\([^)]*?(` + versionKeywords + `).*?\)`),
		// Brackets: [Remaster], [Deluxe Edition]
		regexp.MustCompile(`(?i)\s*\[[^\]]*?(` + versionKeywords + `).*?\]`),
		// Dash suffixes as the streaming service writes them: "Title - Remastered 2011"
		regexp.MustCompile(`(?i)\s+-\s+[^-]*?(` + versionKeywords + `)[^-]*$`),
		// Trailing words without punctuation
		regexp.MustCompile(`(?i)\s+(remastered|remix|live|acoustic|demo|instrumental|unplugged)$`),
	}

	titleCaser = cases.Title(language.English)
)

// NormalizeArtist normalizes a performer name for comparison
func NormalizeArtist(artist string) string {
	if artist == "" {
		return ""
	}

	artist = strings.ToLower(strings.TrimSpace(norm.NFC.String(artist)))

	// Handle "Artist, The" -> "the artist"
	if strings.HasSuffix(artist, ", the") {
		artist = "the " + strings.TrimSuffix(artist, ", the")
	}

	return collapseWhitespace(removePunctuation(artist))
}

// NormalizeTitle normalizes a work, movement, track or album title for comparison.
// Version markers such as "(Live)" or "- Remastered 2011" are dropped.
func NormalizeTitle(title string) string {
	if title == "" {
		return ""
	}

	title = strings.ToLower(strings.TrimSpace(norm.NFC.String(title)))
	title = removeVersionSuffixes(title)
	title = removePunctuation(title)

	return collapseWhitespace(title)
}

// CleanString performs basic string cleaning (Unicode, trim, collapse)
func CleanString(s string) string {
	if s == "" {
		return ""
	}
	return collapseWhitespace(norm.NFC.String(s))
}

// ReleaseYear returns the year of a possibly partial release date
// ("1961-05-01", "1961-05", "1961"), or 0 when it does not start with four digits.
func ReleaseYear(date string) int {
	date = strings.TrimSpace(date)
	if len(date) < 4 {
		return 0
	}
	year := 0
	for _, r := range date[:4] {
		if r < '0' || r > '9' {
			return 0
		}
		year = year*10 + int(r-'0')
	}
	return year
}

// PerformerRole maps a remote artist type to the catalog role
func PerformerRole(artistType string) string {
	switch t := strings.ToLower(strings.TrimSpace(artistType)); t {
	case "", "artist":
		return "Artist"
	case "band":
		return "Band"
	default:
		return titleCaser.String(t)
	}
}

// JoinGenres renders a genre list as the comma-delimited warehouse value
func JoinGenres(genres []string) string {
	kept := make([]string, 0, len(genres))
	for _, g := range genres {
		if g = CleanString(g); g != "" {
			kept = append(kept, g)
		}
	}
	return strings.Join(kept, ",")
}

// removePunctuation removes common punctuation characters
func removePunctuation(s string) string {
	replacer := strings.NewReplacer(
		".", "",
		",", "",
		"!", "",
		"?", "",
		"'", "",
		"’", "",
		"\"", "",
		":", " ",
		";", " ",
		"-", " ",
		"–", " ",
		"_", " ",
		"&", "and",
		"/", " ",
	)
	return replacer.Replace(s)
}

// collapseWhitespace replaces runs of whitespace with a single space
func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// removeVersionSuffixes removes version markers so remasters and reissues
// compare equal to the catalog title
func removeVersionSuffixes(s string) string {
	for _, re := range versionSuffixRes {
		s = re.ReplaceAllString(s, "")
	}
	return strings.TrimSpace(s)
}

// SanitizeFilename removes or replaces characters that are unsafe in filenames
func SanitizeFilename(s string) string {
	if s == "" {
		return ""
	}

	s = norm.NFC.String(s)

	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "",
		"?", "",
		"\"", "'",
		"<", "",
		">", "",
		"|", "-",
	)
	s = replacer.Replace(s)
	s = removeControlChars(s)
	s = collapseWhitespace(s)

	// Trailing dots are not portable
	return strings.Trim(s, " .")
}

// removeControlChars removes non-printable control characters
func removeControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
