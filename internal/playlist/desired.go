package playlist

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/franz/music-journeys/internal/spotify"
	"github.com/franz/music-journeys/internal/store"
)

// Desired is the item list a journey's playlist should hold
type Desired struct {
	URIs     []string
	Steps    int
	Excluded int // steps dropped for a missing, malformed or unavailable reference
}

// desired resolves a journey's steps into remote track URIs in step order
func (s *Synchronizer) desired(ctx context.Context, j store.Journey, log zerolog.Logger) (*Desired, error) {
	if j.Granularity == store.GranularityAlbum {
		return s.albumItems(ctx, j.ID, log)
	}
	return s.trackItems(ctx, j.ID, log)
}

func (s *Synchronizer) trackItems(ctx context.Context, journeyID string, log zerolog.Logger) (*Desired, error) {
	steps, err := s.store.Queries().TrackSteps(ctx, journeyID)
	if err != nil {
		return nil, err
	}

	d := &Desired{Steps: len(steps)}
	for _, step := range steps {
		title := step.MovementTitle
		if title == "" {
			title = step.WorkTitle
		}
		ref, err := spotify.ParseKind(step.SpotifyURL, spotify.KindTrack)
		if err != nil {
			d.Excluded++
			log.Warn().Err(err).
				Int("step", step.Order).
				Str("recording_id", step.RecordingID).
				Str("title", title).
				Msg("excluding step without a valid track reference")
			continue
		}
		if s.verifyTracks {
			if _, err := s.remote.GetTrack(ctx, ref.ID); err != nil {
				d.Excluded++
				log.Warn().Err(err).
					Int("step", step.Order).
					Str("recording_id", step.RecordingID).
					Str("track_id", ref.ID).
					Msg("excluding track that could not be found remotely")
				continue
			}
		}
		d.URIs = append(d.URIs, ref.URI())
	}
	return d, nil
}

func (s *Synchronizer) albumItems(ctx context.Context, journeyID string, log zerolog.Logger) (*Desired, error) {
	steps, err := s.store.Queries().AlbumSteps(ctx, journeyID)
	if err != nil {
		return nil, err
	}

	d := &Desired{Steps: len(steps)}
	for _, step := range steps {
		ref, err := spotify.ParseKind(step.SpotifyURL, spotify.KindAlbum)
		if err != nil {
			d.Excluded++
			log.Warn().Err(err).
				Int("step", step.Order).
				Str("album_id", step.AlbumID).
				Str("title", step.AlbumTitle).
				Msg("excluding step without a valid album reference")
			continue
		}
		tracks, err := s.remote.GetAlbumTracks(ctx, ref.ID)
		if err != nil {
			d.Excluded++
			log.Warn().Err(err).
				Int("step", step.Order).
				Str("album_id", step.AlbumID).
				Str("title", step.AlbumTitle).
				Msg("could not fetch album tracks")
			continue
		}
		n := 0
		for _, t := range tracks {
			if t.IsLocal || !spotify.ValidID(t.ID) {
				continue
			}
			d.URIs = append(d.URIs, spotify.Ref{Kind: spotify.KindTrack, ID: t.ID}.URI())
			n++
		}
		log.Debug().Str("album_id", step.AlbumID).Int("tracks", n).Msg("expanded album")
	}
	return d, nil
}
