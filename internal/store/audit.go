package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// JourneySummaries returns each journey with its step count and sync state on a service
func (q *Queries) JourneySummaries(ctx context.Context, serviceID string) ([]JourneySummary, error) {
	var rows []JourneySummary
	err := sqlx.SelectContext(ctx, q.ext, &rows, `
		SELECT
			j.JourneyID,
			COALESCE(j.JourneyName, '') AS JourneyName,
			COALESCE(j.Granularity, 'Track') AS Granularity,
			(SELECT COUNT(*) FROM FactJourneyStep s WHERE s.JourneyID = j.JourneyID) AS Steps,
			COALESCE(x.PlaylistID, '') AS PlaylistID,
			COALESCE(x.LastUpdatedUTC, '') AS LastUpdatedUTC
		FROM DimJourney j
		LEFT JOIN DimPlaylist x ON x.JourneyID = j.JourneyID AND x.ServiceID = ?
		ORDER BY j.JourneyID
	`, serviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize journeys: %w", err)
	}
	return rows, nil
}

// TitleMismatches returns albums and recordings flagged as not matching their remote title
func (q *Queries) TitleMismatches(ctx context.Context) ([]TitleMismatch, error) {
	var rows []TitleMismatch
	err := sqlx.SelectContext(ctx, q.ext, &rows, `
		SELECT 'Album' AS Kind, AlbumID AS ID,
			COALESCE(AlbumTitle, '') AS CatalogTitle, COALESCE(SpotifyTitle, '') AS RemoteTitle
		FROM DimAlbum WHERE TitleMatch = 0
		UNION ALL
		SELECT 'Recording' AS Kind, r.RecordingID AS ID,
			COALESCE(m.MovementTitle, w.WorkTitle, '') AS CatalogTitle, COALESCE(r.SpotifyTitle, '') AS RemoteTitle
		FROM DimRecording r
		LEFT JOIN DimMovement m ON m.MovementID = r.MovementID
		LEFT JOIN DimMusicalWork w ON w.WorkID = r.WorkID
		WHERE r.TitleMatch = 0
		ORDER BY Kind, ID
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list title mismatches: %w", err)
	}
	return rows, nil
}
