package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Granularity is the unit a journey's steps are expressed in
type Granularity string

const (
	GranularityTrack Granularity = "Track"
	GranularityAlbum Granularity = "Album"
)

// ParseGranularity accepts Track or Album in any case
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "track":
		return GranularityTrack, nil
	case "album":
		return GranularityAlbum, nil
	default:
		return "", fmt.Errorf("invalid granularity %q (want Track or Album)", s)
	}
}

// Performer is a row of DimPerformer
type Performer struct {
	ID   string `db:"PerformerID"`
	Name string `db:"PerformerName"`
	Role string `db:"InstrumentOrRole"`
}

// Album is a row of DimAlbum
type Album struct {
	ID             string       `db:"AlbumID"`
	Title          string       `db:"AlbumTitle"`
	PerformerID    string       `db:"PerformerID"`
	SpotifyURL     string       `db:"SpotifyURL"`
	SpotifyTitle   string       `db:"SpotifyTitle"`
	TitleMatch     sql.NullBool `db:"TitleMatch"`
	RecordingLabel string       `db:"RecordingLabel"`
	ReleaseYear    int          `db:"SpotifyReleaseDate"`
	Genre          string       `db:"SpotifyGenre"`
}

// Recording is a row of DimRecording
type Recording struct {
	ID           string       `db:"RecordingID"`
	AlbumID      string       `db:"AlbumID"`
	MovementID   string       `db:"MovementID"`
	WorkID       string       `db:"WorkID"`
	PerformerID  string       `db:"PerformerID"`
	SpotifyURL   string       `db:"SpotifyURL"`
	SpotifyTitle string       `db:"SpotifyTitle"`
	TitleMatch   sql.NullBool `db:"TitleMatch"`
}

// Journey is a row of DimJourney
type Journey struct {
	ID          string      `db:"JourneyID"`
	Name        string      `db:"JourneyName"`
	Description string      `db:"JourneyDescription"`
	CreatorName string      `db:"CreatorName"`
	Granularity Granularity `db:"Granularity"`
	Theme       string      `db:"Theme"`
}

// DisplayName returns the journey name, falling back to its id
func (j Journey) DisplayName() string {
	if j.Name != "" {
		return j.Name
	}
	return j.ID
}

// JourneyStep is a row of FactJourneyStep
type JourneyStep struct {
	ID            string `db:"StepID"`
	JourneyID     string `db:"JourneyID"`
	RecordingID   string `db:"RecordingID"`
	AlbumID       string `db:"AlbumID"`
	Order         int    `db:"StepOrder"`
	ActTitle      string `db:"ActTitle"`
	CurationNotes string `db:"CurationNotes"`
}

// Ref returns the recording or album the step points at
func (s JourneyStep) Ref() string {
	if s.RecordingID != "" {
		return s.RecordingID
	}
	return s.AlbumID
}

// StepID returns the identifier of the step at order within a journey
func StepID(journeyID string, order int) string {
	return fmt.Sprintf("%s-%03d", journeyID, order)
}

// PlaylistXRef is a row of DimPlaylist
type PlaylistXRef struct {
	JourneyID     string
	ServiceID     string
	PlaylistID    string
	PlaylistTitle string
	LastUpdated   time.Time
}

// TrackStep is a track-granularity step joined to its recording and work
type TrackStep struct {
	Order          int    `db:"StepOrder"`
	RecordingID    string `db:"RecordingID"`
	SpotifyURL     string `db:"SpotifyURL"`
	SpotifyTitle   string `db:"SpotifyTitle"`
	MovementTitle  string `db:"MovementTitle"`
	WorkTitle      string `db:"WorkTitle"`
	AlbumTitle     string `db:"AlbumTitle"`
	PerformerName  string `db:"PerformerName"`
	RecordingLabel string `db:"RecordingLabel"`
	ReleaseYear    int    `db:"ReleaseYear"`
	ActTitle       string `db:"ActTitle"`
	CurationNotes  string `db:"CurationNotes"`
}

// AlbumStep is an album-granularity step joined to its album and performer
type AlbumStep struct {
	Order          int    `db:"StepOrder"`
	AlbumID        string `db:"AlbumID"`
	AlbumTitle     string `db:"AlbumTitle"`
	PerformerName  string `db:"PerformerName"`
	SpotifyURL     string `db:"SpotifyURL"`
	RecordingLabel string `db:"RecordingLabel"`
	ReleaseYear    int    `db:"ReleaseYear"`
	ActTitle       string `db:"ActTitle"`
	CurationNotes  string `db:"CurationNotes"`
}

// RecordingContext is a recording with the catalog titles needed to find it remotely
type RecordingContext struct {
	RecordingID     string `db:"RecordingID"`
	SpotifyURL      string `db:"SpotifyURL"`
	AlbumID         string `db:"AlbumID"`
	AlbumTitle      string `db:"AlbumTitle"`
	AlbumSpotifyURL string `db:"AlbumSpotifyURL"`
	PerformerName   string `db:"PerformerName"`
	MovementTitle   string `db:"MovementTitle"`
	WorkTitle       string `db:"WorkTitle"`
	TrackNumber     int    `db:"TrackNumber"`
}

// CatalogTitle returns the most specific catalog title for the recording
func (r RecordingContext) CatalogTitle() string {
	if r.MovementTitle != "" {
		return r.MovementTitle
	}
	return r.WorkTitle
}

// JourneySummary is one line of the status view
type JourneySummary struct {
	JourneyID     string      `db:"JourneyID"`
	Name          string      `db:"JourneyName"`
	Granularity   Granularity `db:"Granularity"`
	Steps         int         `db:"Steps"`
	PlaylistID    string      `db:"PlaylistID"`
	LastUpdateRaw string      `db:"LastUpdatedUTC"`
}

// LastUpdated parses the sync timestamp; zero when never synced
func (s JourneySummary) LastUpdated() time.Time {
	t, _ := parseTimestamp(s.LastUpdateRaw)
	return t
}

// TitleMismatch is an album or recording whose remote title differs from the catalog
type TitleMismatch struct {
	Kind         string `db:"Kind"`
	ID           string `db:"ID"`
	CatalogTitle string `db:"CatalogTitle"`
	RemoteTitle  string `db:"RemoteTitle"`
}

// TableCount is the row count of one warehouse table
type TableCount struct {
	Table string
	Rows  int
}
