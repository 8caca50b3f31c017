// Package spotifytest provides an in-memory stand-in for the Web API client.
package spotifytest

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/franz/music-journeys/internal/spotify"
)

// Call records one mutation sent to the fake
type Call struct {
	Method      string
	PlaylistID  string
	URIs        []string
	Name        string
	Description string
}

// Fake serves playlists, albums and tracks from memory and records every
// mutation. Failures are injected through Errors, keyed by "<Method> <id>"
// (for example "GetAlbum 4uLU6hMCjMI75M1A2tKUQC") or by "<Method>" alone.
type Fake struct {
	mu sync.Mutex

	User          spotify.User
	Playlists     map[string]*spotify.Playlist
	Albums        map[string]*spotify.Album
	AlbumTracks   map[string][]spotify.Track
	Tracks        map[string]*spotify.Track
	TrackSearches map[string][]spotify.Track
	AlbumSearches map[string][]spotify.SimpleAlbum
	Errors        map[string]error

	Calls    []Call
	Searches []string
	created  int
}

// New returns an empty fake authenticated as userID
func New(userID string) *Fake {
	return &Fake{
		User:          spotify.User{ID: userID, DisplayName: userID},
		Playlists:     make(map[string]*spotify.Playlist),
		Albums:        make(map[string]*spotify.Album),
		AlbumTracks:   make(map[string][]spotify.Track),
		Tracks:        make(map[string]*spotify.Track),
		TrackSearches: make(map[string][]spotify.Track),
		AlbumSearches: make(map[string][]spotify.SimpleAlbum),
		Errors:        make(map[string]error),
	}
}

// NotFound returns the error the API gives for a missing object
func NotFound(method, id string) error {
	return &spotify.APIError{Method: method, Endpoint: id, StatusCode: http.StatusNotFound, Message: "Resource not found"}
}

// ServerError returns a non-retryable API failure
func ServerError(method, id string) error {
	return &spotify.APIError{Method: method, Endpoint: id, StatusCode: http.StatusInternalServerError, Message: "Server error"}
}

// ID builds a well-formed 22-character id from a short label
func ID(label string) string {
	var b strings.Builder
	for _, r := range label {
		if r < 128 && (r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if len(s) >= 22 {
		return s[:22]
	}
	return s + strings.Repeat("0", 22-len(s))
}

// NewTrack builds a track with a derived id on the given album
func NewTrack(label, name string, number int, album spotify.SimpleAlbum, artists ...spotify.Artist) spotify.Track {
	id := ID(label)
	return spotify.Track{
		ID:          id,
		Name:        name,
		URI:         spotify.Ref{Kind: spotify.KindTrack, ID: id}.URI(),
		Type:        "track",
		TrackNumber: number,
		Artists:     artists,
		Album:       album,
		ExternalURLs: spotify.ExternalURLs{
			Spotify: spotify.Ref{Kind: spotify.KindTrack, ID: id}.URL(),
		},
	}
}

// NewAlbum builds an album with a derived id
func NewAlbum(label, name string, artists ...spotify.Artist) spotify.Album {
	id := ID(label)
	return spotify.Album{
		SimpleAlbum: spotify.SimpleAlbum{
			ID:      id,
			Name:    name,
			URI:     spotify.Ref{Kind: spotify.KindAlbum, ID: id}.URI(),
			Artists: artists,
			ExternalURLs: spotify.ExternalURLs{
				Spotify: spotify.Ref{Kind: spotify.KindAlbum, ID: id}.URL(),
			},
		},
	}
}

// AddAlbum registers an album and its track listing
func (f *Fake) AddAlbum(album spotify.Album, tracks ...spotify.Track) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := album
	f.Albums[album.ID] = &a
	f.AlbumTracks[album.ID] = tracks
	for i := range tracks {
		t := tracks[i]
		t.Album = album.SimpleAlbum
		f.Tracks[t.ID] = &t
	}
}

// AddPlaylist registers a playlist owned by owner with the given tracks
func (f *Fake) AddPlaylist(id, name, description, owner string, tracks ...spotify.Track) *spotify.Playlist {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &spotify.Playlist{
		ID:          id,
		Name:        name,
		Description: description,
		URI:         spotify.Ref{Kind: spotify.KindPlaylist, ID: id}.URI(),
		Owner:       spotify.User{ID: owner, DisplayName: owner},
	}
	for i := range tracks {
		t := tracks[i]
		p.Items = append(p.Items, spotify.PlaylistItem{Track: &t})
	}
	f.Playlists[id] = p
	return p
}

// Content returns the track URIs of a playlist in order
func (f *Fake) Content(id string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.Playlists[id]
	if !ok {
		return nil
	}
	uris := make([]string, 0, len(p.Items))
	for _, item := range p.Items {
		if item.Track != nil {
			uris = append(uris, item.Track.URI)
		}
	}
	return uris
}

// CallsTo returns the recorded mutations with the given method name
func (f *Fake) CallsTo(method string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.Calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls clears the mutation log
func (f *Fake) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = nil
	f.Searches = nil
}

func (f *Fake) injected(method, id string) error {
	if err, ok := f.Errors[method+" "+id]; ok {
		return err
	}
	return f.Errors[method]
}

func (f *Fake) CurrentUser(ctx context.Context) (*spotify.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.injected("CurrentUser", ""); err != nil {
		return nil, err
	}
	u := f.User
	return &u, nil
}

func (f *Fake) GetPlaylist(ctx context.Context, id string) (*spotify.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.injected("GetPlaylist", id); err != nil {
		return nil, err
	}
	p, ok := f.Playlists[id]
	if !ok {
		return nil, NotFound("GetPlaylist", id)
	}
	cp := *p
	cp.Items = append([]spotify.PlaylistItem(nil), p.Items...)
	return &cp, nil
}

func (f *Fake) GetAlbum(ctx context.Context, id string) (*spotify.Album, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.injected("GetAlbum", id); err != nil {
		return nil, err
	}
	a, ok := f.Albums[id]
	if !ok {
		return nil, NotFound("GetAlbum", id)
	}
	cp := *a
	return &cp, nil
}

func (f *Fake) GetAlbumTracks(ctx context.Context, id string) ([]spotify.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.injected("GetAlbumTracks", id); err != nil {
		return nil, err
	}
	tracks, ok := f.AlbumTracks[id]
	if !ok {
		return nil, NotFound("GetAlbumTracks", id)
	}
	return append([]spotify.Track(nil), tracks...), nil
}

func (f *Fake) GetTrack(ctx context.Context, id string) (*spotify.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.injected("GetTrack", id); err != nil {
		return nil, err
	}
	t, ok := f.Tracks[id]
	if !ok {
		return nil, NotFound("GetTrack", id)
	}
	cp := *t
	return &cp, nil
}

func (f *Fake) SearchTracks(ctx context.Context, q string, limit int) ([]spotify.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Searches = append(f.Searches, q)
	if err := f.injected("SearchTracks", q); err != nil {
		return nil, err
	}
	return limited(f.TrackSearches[q], limit), nil
}

func (f *Fake) SearchAlbums(ctx context.Context, q string, limit int) ([]spotify.SimpleAlbum, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Searches = append(f.Searches, q)
	if err := f.injected("SearchAlbums", q); err != nil {
		return nil, err
	}
	return limited(f.AlbumSearches[q], limit), nil
}

func limited[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return append([]T(nil), items...)
}

func (f *Fake) CreatePlaylist(ctx context.Context, owner, name string, public bool, description string) (*spotify.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.injected("CreatePlaylist", owner); err != nil {
		return nil, err
	}
	f.created++
	id := ID(fmt.Sprintf("created%d", f.created))
	p := &spotify.Playlist{
		ID:          id,
		Name:        name,
		Description: description,
		URI:         spotify.Ref{Kind: spotify.KindPlaylist, ID: id}.URI(),
		Owner:       spotify.User{ID: owner, DisplayName: owner},
	}
	f.Playlists[id] = p
	f.Calls = append(f.Calls, Call{Method: "CreatePlaylist", PlaylistID: id, Name: name, Description: description})
	cp := *p
	return &cp, nil
}

func (f *Fake) ReplaceItems(ctx context.Context, playlistID string, uris []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(uris) > spotify.MaxItemsPerRequest {
		return fmt.Errorf("replace of %d items exceeds the limit of %d", len(uris), spotify.MaxItemsPerRequest)
	}
	p, err := f.mutable("ReplaceItems", playlistID)
	if err != nil {
		return err
	}
	p.Items = itemsFor(uris)
	f.Calls = append(f.Calls, Call{Method: "ReplaceItems", PlaylistID: playlistID, URIs: append([]string(nil), uris...)})
	return nil
}

func (f *Fake) AddItems(ctx context.Context, playlistID string, uris []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(uris) == 0 || len(uris) > spotify.MaxItemsPerRequest {
		return fmt.Errorf("add of %d items outside 1..%d", len(uris), spotify.MaxItemsPerRequest)
	}
	p, err := f.mutable("AddItems", playlistID)
	if err != nil {
		return err
	}
	p.Items = append(p.Items, itemsFor(uris)...)
	f.Calls = append(f.Calls, Call{Method: "AddItems", PlaylistID: playlistID, URIs: append([]string(nil), uris...)})
	return nil
}

func (f *Fake) ChangeDetails(ctx context.Context, playlistID, name, description string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.mutable("ChangeDetails", playlistID)
	if err != nil {
		return err
	}
	p.Name, p.Description = name, description
	f.Calls = append(f.Calls, Call{Method: "ChangeDetails", PlaylistID: playlistID, Name: name, Description: description})
	return nil
}

func (f *Fake) UnfollowPlaylist(ctx context.Context, playlistID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.mutable("UnfollowPlaylist", playlistID); err != nil {
		return err
	}
	delete(f.Playlists, playlistID)
	f.Calls = append(f.Calls, Call{Method: "UnfollowPlaylist", PlaylistID: playlistID})
	return nil
}

func (f *Fake) mutable(method, playlistID string) (*spotify.Playlist, error) {
	if err := f.injected(method, playlistID); err != nil {
		return nil, err
	}
	p, ok := f.Playlists[playlistID]
	if !ok {
		return nil, NotFound(method, playlistID)
	}
	return p, nil
}

func itemsFor(uris []string) []spotify.PlaylistItem {
	items := make([]spotify.PlaylistItem, len(uris))
	for i, uri := range uris {
		t := &spotify.Track{URI: uri, Type: "track"}
		if ref, err := spotify.ParseRef(uri); err == nil {
			t.ID = ref.ID
		}
		items[i] = spotify.PlaylistItem{Track: t}
	}
	return items
}
