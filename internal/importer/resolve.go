package importer

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/franz/music-journeys/internal/meta"
	"github.com/franz/music-journeys/internal/spotify"
	"github.com/franz/music-journeys/internal/store"
	"github.com/franz/music-journeys/internal/util"
)

// lookupError is a failed remote lookup during resolution, as opposed to a
// warehouse error
type lookupError struct{ err error }

func (e *lookupError) Error() string { return e.err.Error() }
func (e *lookupError) Unwrap() error { return e.err }

// resolver maps remote items onto warehouse rows. With write unset it only
// looks rows up, deriving the keys it would have created.
type resolver struct {
	q      *store.Queries
	remote Remote
	log    zerolog.Logger
	write  bool
}

// stepRefs returns the step sequence for the items: recording ids for Track
// granularity, album ids (first occurrence per album and performer) for Album.
func (r *resolver) stepRefs(ctx context.Context, tracks []spotify.Track, granularity store.Granularity) ([]string, error) {
	type albumKey struct{ album, performer string }
	seen := make(map[albumKey]bool)

	refs := make([]string, 0, len(tracks))
	for _, track := range tracks {
		performerID, err := r.performer(ctx, track.Artists)
		if err != nil {
			return nil, err
		}
		albumID, err := r.album(ctx, track.Album.ID, performerID)
		if err != nil {
			return nil, err
		}
		recordingID, err := r.recording(ctx, track, albumID, performerID)
		if err != nil {
			return nil, err
		}

		if granularity == store.GranularityAlbum {
			key := albumKey{albumID, performerID}
			if seen[key] {
				r.log.Debug().Str("album_id", albumID).Msg("album already in journey")
				continue
			}
			seen[key] = true
			refs = append(refs, albumID)
			continue
		}
		refs = append(refs, recordingID)
	}
	return refs, nil
}

func (r *resolver) performer(ctx context.Context, artists []spotify.Artist) (string, error) {
	name, artistType := meta.UnknownPerformer, ""
	if len(artists) > 0 {
		if n := meta.CleanString(artists[0].Name); n != "" {
			name, artistType = n, artists[0].Type
		}
	}

	existing, err := r.q.PerformerByName(ctx, name)
	if err != nil {
		return "", err
	}
	id := util.DeriveKey(util.PerformerKeyPrefix, name)
	if existing != nil {
		id = existing.ID
	}
	if !r.write {
		return id, nil
	}

	p := &store.Performer{ID: id, Name: name, Role: meta.PerformerRole(artistType)}
	if err := r.q.UpsertPerformer(ctx, p); err != nil {
		return "", err
	}
	return id, nil
}

func (r *resolver) album(ctx context.Context, remoteID, performerID string) (string, error) {
	if remoteID == "" {
		return "", fmt.Errorf("%w: track without album", util.ErrInvalidReference)
	}
	full, err := r.remote.GetAlbum(ctx, remoteID)
	if err != nil {
		return "", &lookupError{fmt.Errorf("failed to fetch album %s: %w", remoteID, err)}
	}

	title := meta.CleanString(full.Name)
	url := full.URL()
	catalogTitle := title

	var id string
	byRemote, err := r.q.AlbumByRemote(ctx, url, full.URI)
	if err != nil {
		return "", err
	}
	if byRemote != nil {
		id, catalogTitle = byRemote.ID, byRemote.Title
	} else {
		derived := util.DeriveKey(util.AlbumKeyPrefix, title, performerID)
		natural, err := r.q.AlbumByNaturalKey(ctx, title, performerID, derived)
		if err != nil {
			return "", err
		}
		switch {
		case natural == nil:
			id = derived
		case natural.SpotifyURL == "":
			id, catalogTitle = natural.ID, natural.Title
		default:
			// same title and performer, different remote album (a reissue or
			// another volume): keep both rows apart
			id = util.DeriveKey(util.AlbumKeyPrefix, title, performerID, full.ID)
			r.log.Debug().Str("album_id", id).Str("remote_id", full.ID).Msg("album title collision")
		}
	}
	if !r.write {
		return id, nil
	}

	album := &store.Album{
		ID:             id,
		Title:          title,
		PerformerID:    performerID,
		SpotifyURL:     url,
		SpotifyTitle:   full.Name,
		TitleMatch:     sql.NullBool{Bool: meta.TitlesMatch(catalogTitle, full.Name), Valid: true},
		RecordingLabel: meta.CleanString(full.Label),
		ReleaseYear:    meta.ReleaseYear(full.ReleaseDate),
		Genre:          meta.JoinGenres(full.Genres),
	}
	if err := r.q.UpsertAlbum(ctx, album); err != nil {
		return "", err
	}
	return id, nil
}

func (r *resolver) recording(ctx context.Context, track spotify.Track, albumID, performerID string) (string, error) {
	url := track.URL()
	existing, err := r.q.RecordingByRemote(ctx, url, track.URI)
	if err != nil {
		return "", err
	}
	id := util.DeriveKey(util.RecordingKeyPrefix, track.ID)
	if existing != nil {
		id = existing.ID
	}
	if !r.write {
		return id, nil
	}

	rec := &store.Recording{
		ID:           id,
		AlbumID:      albumID,
		PerformerID:  performerID,
		SpotifyURL:   url,
		SpotifyTitle: strings.TrimSpace(track.Name),
	}
	if err := r.q.UpsertRecording(ctx, rec); err != nil {
		return "", err
	}
	return id, nil
}
