package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ServiceSpotify identifies the streaming service in DimPlaylist
const ServiceSpotify = "Spotify"

type xrefRow struct {
	JourneyID      string `db:"JourneyID"`
	ServiceID      string `db:"ServiceID"`
	PlaylistID     string `db:"PlaylistID"`
	PlaylistTitle  string `db:"PlaylistTitle"`
	LastUpdatedUTC string `db:"LastUpdatedUTC"`
}

func (r xrefRow) toXRef() PlaylistXRef {
	updated, _ := parseTimestamp(r.LastUpdatedUTC)
	return PlaylistXRef{
		JourneyID:     r.JourneyID,
		ServiceID:     r.ServiceID,
		PlaylistID:    r.PlaylistID,
		PlaylistTitle: r.PlaylistTitle,
		LastUpdated:   updated,
	}
}

const xrefColumns = `
	JourneyID,
	ServiceID,
	PlaylistID,
	COALESCE(PlaylistTitle, '') AS PlaylistTitle,
	LastUpdatedUTC`

// GetXRef returns the cross-reference for a journey on a service, or nil
func (q *Queries) GetXRef(ctx context.Context, journeyID, serviceID string) (*PlaylistXRef, error) {
	var row xrefRow
	err := sqlx.GetContext(ctx, q.ext, &row,
		"SELECT "+xrefColumns+" FROM DimPlaylist WHERE JourneyID = ? AND ServiceID = ?",
		journeyID, serviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist xref for %s: %w", journeyID, err)
	}
	x := row.toXRef()
	return &x, nil
}

// ListXRefs returns every cross-reference
func (q *Queries) ListXRefs(ctx context.Context) ([]PlaylistXRef, error) {
	var rows []xrefRow
	if err := sqlx.SelectContext(ctx, q.ext, &rows,
		"SELECT "+xrefColumns+" FROM DimPlaylist ORDER BY JourneyID, ServiceID"); err != nil {
		return nil, fmt.Errorf("failed to list playlist xrefs: %w", err)
	}
	xrefs := make([]PlaylistXRef, len(rows))
	for i, r := range rows {
		xrefs[i] = r.toXRef()
	}
	return xrefs, nil
}

// UpsertXRef records the remote playlist of a journey; one row per (journey, service)
func (q *Queries) UpsertXRef(ctx context.Context, x *PlaylistXRef) error {
	if x.LastUpdated.IsZero() {
		x.LastUpdated = time.Now()
	}
	_, err := q.ext.ExecContext(ctx, `
		INSERT INTO DimPlaylist (JourneyID, ServiceID, PlaylistID, PlaylistTitle, LastUpdatedUTC)
		VALUES (?, ?, ?, NULLIF(?, ''), ?)
		ON CONFLICT(JourneyID, ServiceID) DO UPDATE SET
			PlaylistID = excluded.PlaylistID,
			PlaylistTitle = excluded.PlaylistTitle,
			LastUpdatedUTC = excluded.LastUpdatedUTC
	`, x.JourneyID, x.ServiceID, x.PlaylistID, x.PlaylistTitle, FormatTimestamp(x.LastUpdated))
	if err != nil {
		return fmt.Errorf("failed to upsert playlist xref for %s: %w", x.JourneyID, err)
	}
	return nil
}

// DeleteXRef removes the cross-reference for a journey on a service
func (q *Queries) DeleteXRef(ctx context.Context, journeyID, serviceID string) error {
	_, err := q.ext.ExecContext(ctx,
		"DELETE FROM DimPlaylist WHERE JourneyID = ? AND ServiceID = ?", journeyID, serviceID)
	if err != nil {
		return fmt.Errorf("failed to delete playlist xref for %s: %w", journeyID, err)
	}
	return nil
}

// FormatTimestamp renders t as the UTC text stored in the warehouse
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTimestamp accepts RFC 3339 and the naive ISO form of older exports (read as UTC)
func ParseTimestamp(s string) (time.Time, error) {
	return parseTimestamp(s)
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	layouts := []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05.999999999"}
	var err error
	for _, layout := range layouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
}
