package spotify

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/franz/music-journeys/internal/util"
)

// Kind is the type segment of a remote reference
type Kind string

const (
	KindTrack    Kind = "track"
	KindAlbum    Kind = "album"
	KindPlaylist Kind = "playlist"
	KindArtist   Kind = "artist"
)

const (
	webHost   = "open.spotify.com"
	uriScheme = "spotify"
	idLength  = 22
)

// Ref identifies one remote object
type Ref struct {
	Kind Kind
	ID   string
}

// URI returns the spotify:<kind>:<id> form
func (r Ref) URI() string {
	return uriScheme + ":" + string(r.Kind) + ":" + r.ID
}

// URL returns the canonical web form
func (r Ref) URL() string {
	return "https://" + webHost + "/" + string(r.Kind) + "/" + r.ID
}

func (r Ref) String() string {
	return r.URI()
}

// ValidID reports whether id is a 22-character base62 identifier
func ValidID(id string) bool {
	if len(id) != idLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		default:
			return false
		}
	}
	return true
}

// ParseRef accepts a web URL (optionally with a locale segment such as
// /intl-de/ and a query string) or a spotify: URI.
func ParseRef(s string) (Ref, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Ref{}, fmt.Errorf("%w: empty reference", util.ErrInvalidReference)
	}

	var kind, id string
	if strings.HasPrefix(s, uriScheme+":") {
		// spotify:user:<owner>:playlist:<id> is still produced by old exports
		parts := strings.Split(s, ":")
		if len(parts) < 3 {
			return Ref{}, fmt.Errorf("%w: %q", util.ErrInvalidReference, s)
		}
		kind, id = parts[len(parts)-2], parts[len(parts)-1]
	} else {
		u, err := url.Parse(s)
		if err != nil {
			return Ref{}, fmt.Errorf("%w: %q: %w", util.ErrInvalidReference, s, err)
		}
		if u.Scheme != "https" && u.Scheme != "http" || !strings.EqualFold(u.Host, webHost) {
			return Ref{}, fmt.Errorf("%w: %q is not an %s link", util.ErrInvalidReference, s, webHost)
		}
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		for len(segments) > 0 && (strings.HasPrefix(segments[0], "intl-") || segments[0] == "embed") {
			segments = segments[1:]
		}
		if len(segments) != 2 {
			return Ref{}, fmt.Errorf("%w: %q", util.ErrInvalidReference, s)
		}
		kind, id = segments[0], segments[1]
	}

	ref := Ref{Kind: Kind(kind), ID: id}
	switch ref.Kind {
	case KindTrack, KindAlbum, KindPlaylist, KindArtist:
	default:
		return Ref{}, fmt.Errorf("%w: unknown kind %q in %q", util.ErrInvalidReference, kind, s)
	}
	if !ValidID(id) {
		return Ref{}, fmt.Errorf("%w: malformed id in %q", util.ErrInvalidReference, s)
	}
	return ref, nil
}

// ParseKind parses s and requires the given kind
func ParseKind(s string, kind Kind) (Ref, error) {
	ref, err := ParseRef(s)
	if err != nil {
		return Ref{}, err
	}
	if ref.Kind != kind {
		return Ref{}, fmt.Errorf("%w: %q is a %s, want %s", util.ErrInvalidReference, s, ref.Kind, kind)
	}
	return ref, nil
}

// ParsePlaylistRef also accepts a bare playlist id
func ParsePlaylistRef(s string) (Ref, error) {
	if id := strings.TrimSpace(s); ValidID(id) {
		return Ref{Kind: KindPlaylist, ID: id}, nil
	}
	return ParseKind(s, KindPlaylist)
}

// IsTrackRef reports whether s is a well-formed track URL or URI
func IsTrackRef(s string) bool {
	_, err := ParseKind(s, KindTrack)
	return err == nil
}

// IsAlbumRef reports whether s is a well-formed album URL or URI
func IsAlbumRef(s string) bool {
	_, err := ParseKind(s, KindAlbum)
	return err == nil
}
