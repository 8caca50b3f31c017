package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

const journeyColumns = `
	JourneyID,
	COALESCE(JourneyName, '') AS JourneyName,
	COALESCE(JourneyDescription, '') AS JourneyDescription,
	COALESCE(CreatorName, '') AS CreatorName,
	COALESCE(Granularity, 'Track') AS Granularity,
	COALESCE(Theme, '') AS Theme`

// JourneyFilter narrows the journeys a batch operation visits
type JourneyFilter struct {
	ID   string
	Name string // case-insensitive exact match
}

// GetJourney returns the journey with this id, or nil
func (q *Queries) GetJourney(ctx context.Context, id string) (*Journey, error) {
	var j Journey
	err := sqlx.GetContext(ctx, q.ext, &j, "SELECT "+journeyColumns+" FROM DimJourney WHERE JourneyID = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get journey %s: %w", id, err)
	}
	return &j, nil
}

// ListJourneys returns journeys matching the filter in id order
func (q *Queries) ListJourneys(ctx context.Context, f JourneyFilter) ([]Journey, error) {
	query := "SELECT " + journeyColumns + " FROM DimJourney"
	var where []string
	var args []any
	if f.ID != "" {
		where = append(where, "JourneyID = ?")
		args = append(args, f.ID)
	}
	if f.Name != "" {
		where = append(where, "JourneyName = ? COLLATE NOCASE")
		args = append(args, f.Name)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY JourneyID"

	var journeys []Journey
	if err := sqlx.SelectContext(ctx, q.ext, &journeys, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list journeys: %w", err)
	}
	return journeys, nil
}

// UpsertJourney inserts a journey or overwrites its definition.
// The theme is kept when the new one is empty.
func (q *Queries) UpsertJourney(ctx context.Context, j *Journey) error {
	_, err := sqlx.NamedExecContext(ctx, q.ext, `
		INSERT INTO DimJourney (JourneyID, JourneyName, JourneyDescription, CreatorName, Granularity, Theme)
		VALUES (:JourneyID, :JourneyName, NULLIF(:JourneyDescription, ''), NULLIF(:CreatorName, ''), :Granularity, NULLIF(:Theme, ''))
		ON CONFLICT(JourneyID) DO UPDATE SET
			JourneyName = excluded.JourneyName,
			JourneyDescription = excluded.JourneyDescription,
			CreatorName = excluded.CreatorName,
			Granularity = excluded.Granularity,
			Theme = COALESCE(excluded.Theme, DimJourney.Theme)
	`, j)
	if err != nil {
		return fmt.Errorf("failed to upsert journey %s: %w", j.ID, err)
	}
	return nil
}

// DeleteSteps removes every step of a journey and returns how many were removed
func (q *Queries) DeleteSteps(ctx context.Context, journeyID string) (int64, error) {
	res, err := q.ext.ExecContext(ctx, "DELETE FROM FactJourneyStep WHERE JourneyID = ?", journeyID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete steps of %s: %w", journeyID, err)
	}
	return res.RowsAffected()
}

// InsertStep adds one step; (JourneyID, StepOrder) must be unused
func (q *Queries) InsertStep(ctx context.Context, s *JourneyStep) error {
	_, err := sqlx.NamedExecContext(ctx, q.ext, `
		INSERT INTO FactJourneyStep (StepID, JourneyID, RecordingID, AlbumID, StepOrder, ActTitle, CurationNotes)
		VALUES (:StepID, :JourneyID, NULLIF(:RecordingID, ''), NULLIF(:AlbumID, ''), :StepOrder,
			NULLIF(:ActTitle, ''), NULLIF(:CurationNotes, ''))
	`, s)
	if err != nil {
		return fmt.Errorf("failed to insert step %d of %s: %w", s.Order, s.JourneyID, err)
	}
	return nil
}

// ListSteps returns the steps of a journey in order
func (q *Queries) ListSteps(ctx context.Context, journeyID string) ([]JourneyStep, error) {
	var steps []JourneyStep
	err := sqlx.SelectContext(ctx, q.ext, &steps, `
		SELECT
			StepID,
			JourneyID,
			COALESCE(RecordingID, '') AS RecordingID,
			COALESCE(AlbumID, '') AS AlbumID,
			StepOrder,
			COALESCE(ActTitle, '') AS ActTitle,
			COALESCE(CurationNotes, '') AS CurationNotes
		FROM FactJourneyStep
		WHERE JourneyID = ?
		ORDER BY StepOrder
	`, journeyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps of %s: %w", journeyID, err)
	}
	return steps, nil
}

// TrackSteps returns a journey's steps joined to recording, album and work titles
func (q *Queries) TrackSteps(ctx context.Context, journeyID string) ([]TrackStep, error) {
	var steps []TrackStep
	err := sqlx.SelectContext(ctx, q.ext, &steps, `
		SELECT
			s.StepOrder,
			COALESCE(s.RecordingID, '') AS RecordingID,
			COALESCE(r.SpotifyURL, '') AS SpotifyURL,
			COALESCE(r.SpotifyTitle, '') AS SpotifyTitle,
			COALESCE(m.MovementTitle, '') AS MovementTitle,
			COALESCE(w.WorkTitle, '') AS WorkTitle,
			COALESCE(a.AlbumTitle, '') AS AlbumTitle,
			COALESCE(p.PerformerName, '') AS PerformerName,
			COALESCE(a.RecordingLabel, '') AS RecordingLabel,
			COALESCE(a.SpotifyReleaseDate, 0) AS ReleaseYear,
			COALESCE(s.ActTitle, '') AS ActTitle,
			COALESCE(s.CurationNotes, '') AS CurationNotes
		FROM FactJourneyStep s
		LEFT JOIN DimRecording r ON r.RecordingID = s.RecordingID
		LEFT JOIN DimMovement m ON m.MovementID = r.MovementID
		LEFT JOIN DimMusicalWork w ON w.WorkID = COALESCE(r.WorkID, m.WorkID)
		LEFT JOIN DimAlbum a ON a.AlbumID = r.AlbumID
		LEFT JOIN DimPerformer p ON p.PerformerID = COALESCE(r.PerformerID, a.PerformerID)
		WHERE s.JourneyID = ?
		ORDER BY s.StepOrder
	`, journeyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list track steps of %s: %w", journeyID, err)
	}
	return steps, nil
}

// AlbumSteps returns a journey's steps joined to album and performer
func (q *Queries) AlbumSteps(ctx context.Context, journeyID string) ([]AlbumStep, error) {
	var steps []AlbumStep
	err := sqlx.SelectContext(ctx, q.ext, &steps, `
		SELECT
			s.StepOrder,
			COALESCE(s.AlbumID, '') AS AlbumID,
			COALESCE(a.AlbumTitle, '') AS AlbumTitle,
			COALESCE(p.PerformerName, '') AS PerformerName,
			COALESCE(a.SpotifyURL, '') AS SpotifyURL,
			COALESCE(a.RecordingLabel, '') AS RecordingLabel,
			COALESCE(a.SpotifyReleaseDate, 0) AS ReleaseYear,
			COALESCE(s.ActTitle, '') AS ActTitle,
			COALESCE(s.CurationNotes, '') AS CurationNotes
		FROM FactJourneyStep s
		LEFT JOIN DimAlbum a ON a.AlbumID = s.AlbumID
		LEFT JOIN DimPerformer p ON p.PerformerID = a.PerformerID
		WHERE s.JourneyID = ?
		ORDER BY s.StepOrder
	`, journeyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list album steps of %s: %w", journeyID, err)
	}
	return steps, nil
}
