package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const albumColumns = `
	AlbumID,
	COALESCE(AlbumTitle, '') AS AlbumTitle,
	COALESCE(PerformerID, '') AS PerformerID,
	COALESCE(SpotifyURL, '') AS SpotifyURL,
	COALESCE(SpotifyTitle, '') AS SpotifyTitle,
	TitleMatch,
	COALESCE(RecordingLabel, '') AS RecordingLabel,
	COALESCE(SpotifyReleaseDate, 0) AS SpotifyReleaseDate,
	COALESCE(SpotifyGenre, '') AS SpotifyGenre`

// AlbumByID returns the album with this id, or nil
func (q *Queries) AlbumByID(ctx context.Context, id string) (*Album, error) {
	return q.getAlbum(ctx, "SELECT "+albumColumns+" FROM DimAlbum WHERE AlbumID = ?", id)
}

// AlbumByRemote returns the first album stored under any of the given remote references
func (q *Queries) AlbumByRemote(ctx context.Context, url, uri string) (*Album, error) {
	return q.getAlbum(ctx, "SELECT "+albumColumns+` FROM DimAlbum
		WHERE SpotifyURL IN (?, ?) ORDER BY AlbumID LIMIT 1`, url, uri)
}

// AlbumByNaturalKey returns the album matching the catalog title and performer,
// or stored under the key derived from them
func (q *Queries) AlbumByNaturalKey(ctx context.Context, title, performerID, derivedID string) (*Album, error) {
	return q.getAlbum(ctx, "SELECT "+albumColumns+` FROM DimAlbum
		WHERE (AlbumTitle = ? AND PerformerID = ?) OR AlbumID = ?
		ORDER BY AlbumID = ? DESC, AlbumID LIMIT 1`, title, performerID, derivedID, derivedID)
}

func (q *Queries) getAlbum(ctx context.Context, query string, args ...any) (*Album, error) {
	var a Album
	err := sqlx.GetContext(ctx, q.ext, &a, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get album: %w", err)
	}
	return &a, nil
}

// UpsertAlbum inserts an album or enriches an existing one with remote metadata.
// The catalog title of an existing album is preserved.
func (q *Queries) UpsertAlbum(ctx context.Context, a *Album) error {
	_, err := sqlx.NamedExecContext(ctx, q.ext, `
		INSERT INTO DimAlbum (
			AlbumID, AlbumTitle, PerformerID, SpotifyURL, SpotifyTitle, TitleMatch,
			RecordingLabel, SpotifyReleaseDate, SpotifyGenre
		) VALUES (
			:AlbumID, :AlbumTitle, NULLIF(:PerformerID, ''), NULLIF(:SpotifyURL, ''), NULLIF(:SpotifyTitle, ''), :TitleMatch,
			NULLIF(:RecordingLabel, ''), NULLIF(:SpotifyReleaseDate, 0), NULLIF(:SpotifyGenre, '')
		)
		ON CONFLICT(AlbumID) DO UPDATE SET
			PerformerID = COALESCE(excluded.PerformerID, DimAlbum.PerformerID),
			SpotifyURL = COALESCE(excluded.SpotifyURL, DimAlbum.SpotifyURL),
			SpotifyTitle = COALESCE(excluded.SpotifyTitle, DimAlbum.SpotifyTitle),
			TitleMatch = COALESCE(excluded.TitleMatch, DimAlbum.TitleMatch),
			RecordingLabel = COALESCE(excluded.RecordingLabel, DimAlbum.RecordingLabel),
			SpotifyReleaseDate = COALESCE(excluded.SpotifyReleaseDate, DimAlbum.SpotifyReleaseDate),
			SpotifyGenre = COALESCE(excluded.SpotifyGenre, DimAlbum.SpotifyGenre)
	`, a)
	if err != nil {
		return fmt.Errorf("failed to upsert album %s: %w", a.Title, err)
	}
	return nil
}
