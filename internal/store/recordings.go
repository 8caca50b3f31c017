package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const recordingColumns = `
	RecordingID,
	COALESCE(AlbumID, '') AS AlbumID,
	COALESCE(MovementID, '') AS MovementID,
	COALESCE(WorkID, '') AS WorkID,
	COALESCE(PerformerID, '') AS PerformerID,
	COALESCE(SpotifyURL, '') AS SpotifyURL,
	COALESCE(SpotifyTitle, '') AS SpotifyTitle,
	TitleMatch`

// RecordingByID returns the recording with this id, or nil
func (q *Queries) RecordingByID(ctx context.Context, id string) (*Recording, error) {
	return q.getRecording(ctx, "SELECT "+recordingColumns+" FROM DimRecording WHERE RecordingID = ?", id)
}

// RecordingByRemote returns the first recording stored under either form of a remote reference
func (q *Queries) RecordingByRemote(ctx context.Context, url, uri string) (*Recording, error) {
	return q.getRecording(ctx, "SELECT "+recordingColumns+` FROM DimRecording
		WHERE SpotifyURL IN (?, ?) ORDER BY RecordingID LIMIT 1`, url, uri)
}

func (q *Queries) getRecording(ctx context.Context, query string, args ...any) (*Recording, error) {
	var r Recording
	err := sqlx.GetContext(ctx, q.ext, &r, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recording: %w", err)
	}
	return &r, nil
}

// UpsertRecording inserts a recording or refreshes its remote fields.
// Catalog links (movement, work) of an existing recording are preserved.
func (q *Queries) UpsertRecording(ctx context.Context, r *Recording) error {
	_, err := sqlx.NamedExecContext(ctx, q.ext, `
		INSERT INTO DimRecording (
			RecordingID, AlbumID, MovementID, WorkID, PerformerID, SpotifyURL, SpotifyTitle, TitleMatch
		) VALUES (
			:RecordingID, NULLIF(:AlbumID, ''), NULLIF(:MovementID, ''), NULLIF(:WorkID, ''),
			NULLIF(:PerformerID, ''), NULLIF(:SpotifyURL, ''), NULLIF(:SpotifyTitle, ''), :TitleMatch
		)
		ON CONFLICT(RecordingID) DO UPDATE SET
			AlbumID = COALESCE(DimRecording.AlbumID, excluded.AlbumID),
			PerformerID = COALESCE(DimRecording.PerformerID, excluded.PerformerID),
			SpotifyURL = COALESCE(excluded.SpotifyURL, DimRecording.SpotifyURL),
			SpotifyTitle = COALESCE(excluded.SpotifyTitle, DimRecording.SpotifyTitle),
			TitleMatch = COALESCE(excluded.TitleMatch, DimRecording.TitleMatch)
	`, r)
	if err != nil {
		return fmt.Errorf("failed to upsert recording %s: %w", r.ID, err)
	}
	return nil
}

// UpdateRecordingRemote stores a resolved remote reference for a recording
func (q *Queries) UpdateRecordingRemote(ctx context.Context, id, url, title string, titleMatch bool) error {
	res, err := q.ext.ExecContext(ctx, `
		UPDATE DimRecording
		SET SpotifyURL = ?, SpotifyTitle = NULLIF(?, ''), TitleMatch = ?
		WHERE RecordingID = ?
	`, url, title, titleMatch, id)
	if err != nil {
		return fmt.Errorf("failed to update recording %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("recording %s does not exist", id)
	}
	return nil
}

// RecordingContexts returns every recording with the catalog titles used to search for it
func (q *Queries) RecordingContexts(ctx context.Context) ([]RecordingContext, error) {
	var rows []RecordingContext
	err := sqlx.SelectContext(ctx, q.ext, &rows, `
		SELECT
			r.RecordingID,
			COALESCE(r.SpotifyURL, '') AS SpotifyURL,
			COALESCE(a.AlbumID, '') AS AlbumID,
			COALESCE(a.AlbumTitle, '') AS AlbumTitle,
			COALESCE(a.SpotifyURL, '') AS AlbumSpotifyURL,
			COALESCE(p.PerformerName, ap.PerformerName, '') AS PerformerName,
			COALESCE(m.MovementTitle, '') AS MovementTitle,
			COALESCE(w.WorkTitle, '') AS WorkTitle,
			COALESCE((SELECT MIN(b.TrackNumber) FROM BridgeAlbumMovement b
				WHERE b.RecordingID = r.RecordingID), 0) AS TrackNumber
		FROM DimRecording r
		LEFT JOIN DimAlbum a ON a.AlbumID = COALESCE(r.AlbumID,
			(SELECT b.AlbumID FROM BridgeAlbumMovement b WHERE b.RecordingID = r.RecordingID
			 ORDER BY b.TrackNumber LIMIT 1))
		LEFT JOIN DimPerformer p ON p.PerformerID = r.PerformerID
		LEFT JOIN DimPerformer ap ON ap.PerformerID = a.PerformerID
		LEFT JOIN DimMovement m ON m.MovementID = r.MovementID
		LEFT JOIN DimMusicalWork w ON w.WorkID = COALESCE(r.WorkID, m.WorkID)
		ORDER BY r.RecordingID
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}
	return rows, nil
}
