package spotify

// User is the authenticated account
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	URI         string `json:"uri"`
}

// Name returns the display name, falling back to the account id
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.ID
}

// ExternalURLs holds the web links of an object
type ExternalURLs struct {
	Spotify string `json:"spotify"`
}

// Artist is a simplified artist object
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	URI  string `json:"uri"`
}

// SimpleAlbum is the album object embedded in tracks and search results
type SimpleAlbum struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	URI          string       `json:"uri"`
	AlbumType    string       `json:"album_type"`
	ReleaseDate  string       `json:"release_date"`
	TotalTracks  int          `json:"total_tracks"`
	Artists      []Artist     `json:"artists"`
	ExternalURLs ExternalURLs `json:"external_urls"`
}

// URL returns the album's web link
func (a SimpleAlbum) URL() string {
	if a.ExternalURLs.Spotify != "" {
		return a.ExternalURLs.Spotify
	}
	return Ref{Kind: KindAlbum, ID: a.ID}.URL()
}

// Album is the full album object
type Album struct {
	SimpleAlbum
	Label  string   `json:"label"`
	Genres []string `json:"genres"`
}

// Track is a track object; Album is empty when listed under an album
type Track struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	URI          string       `json:"uri"`
	Type         string       `json:"type"`
	TrackNumber  int          `json:"track_number"`
	DiscNumber   int          `json:"disc_number"`
	DurationMs   int          `json:"duration_ms"`
	IsLocal      bool         `json:"is_local"`
	Artists      []Artist     `json:"artists"`
	Album        SimpleAlbum  `json:"album"`
	ExternalURLs ExternalURLs `json:"external_urls"`
}

// URL returns the track's web link
func (t Track) URL() string {
	if t.ExternalURLs.Spotify != "" {
		return t.ExternalURLs.Spotify
	}
	return Ref{Kind: KindTrack, ID: t.ID}.URL()
}

// PlaylistItem is one entry of a playlist; Track is nil for removed content
type PlaylistItem struct {
	AddedAt string `json:"added_at"`
	Track   *Track `json:"track"`
}

// Playlist is a playlist with its items fully paged in
type Playlist struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	URI          string         `json:"uri"`
	SnapshotID   string         `json:"snapshot_id"`
	Owner        User           `json:"owner"`
	ExternalURLs ExternalURLs   `json:"external_urls"`
	Items        []PlaylistItem `json:"-"`
}

// URL returns the playlist's web link
func (p Playlist) URL() string {
	if p.ExternalURLs.Spotify != "" {
		return p.ExternalURLs.Spotify
	}
	return Ref{Kind: KindPlaylist, ID: p.ID}.URL()
}

// page is the paging envelope shared by list endpoints
type page[T any] struct {
	Items  []T    `json:"items"`
	Next   string `json:"next"`
	Total  int    `json:"total"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

type playlistResponse struct {
	Playlist
	Tracks page[PlaylistItem] `json:"tracks"`
}

type searchResponse struct {
	Tracks *page[Track]       `json:"tracks"`
	Albums *page[SimpleAlbum] `json:"albums"`
}

type snapshotResponse struct {
	SnapshotID string `json:"snapshot_id"`
}

type errorResponse struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}
