// Package importer turns a remote playlist into a journey of the warehouse.
package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/franz/music-journeys/internal/report"
	"github.com/franz/music-journeys/internal/spotify"
	"github.com/franz/music-journeys/internal/store"
)

// Remote is the part of the Web API the importer reads
type Remote interface {
	GetPlaylist(ctx context.Context, id string) (*spotify.Playlist, error)
	GetAlbum(ctx context.Context, id string) (*spotify.Album, error)
}

// Options controls one import
type Options struct {
	JourneyID   string            // defaults to the playlist id
	Granularity store.Granularity // defaults to Track
	Link        bool              // record the playlist as the journey's cross-reference
}

// Result summarizes an import
type Result struct {
	JourneyID    string
	PlaylistID   string
	Name         string
	Steps        int
	Skipped      int // null items and local files
	Linked       bool
	Verification Verification
}

// Config holds importer configuration
type Config struct {
	Store  *store.Store
	Remote Remote
	User   spotify.User // the authenticated account; names the journey's creator
	Logger zerolog.Logger
	Events *report.EventLogger
}

// Importer imports playlists as journeys
type Importer struct {
	store  *store.Store
	remote Remote
	user   spotify.User
	log    zerolog.Logger
	events *report.EventLogger
}

// New creates an Importer
func New(cfg *Config) *Importer {
	return &Importer{
		store:  cfg.Store,
		remote: cfg.Remote,
		user:   cfg.User,
		log:    cfg.Logger,
		events: cfg.Events,
	}
}

// Import fetches the playlist behind reference and rewrites the journey's
// steps from it. All warehouse writes happen in one transaction.
func (im *Importer) Import(ctx context.Context, reference string, opts Options) (*Result, error) {
	ref, err := spotify.ParsePlaylistRef(reference)
	if err != nil {
		return nil, err
	}
	if opts.Granularity == "" {
		opts.Granularity = store.GranularityTrack
	}
	journeyID := opts.JourneyID
	if journeyID == "" {
		journeyID = ref.ID
	}
	log := im.log.With().Str("journey_id", journeyID).Str("playlist_id", ref.ID).Logger()

	playlist, err := im.remote.GetPlaylist(ctx, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch playlist %s: %w", ref.ID, err)
	}
	log.Info().
		Str("name", playlist.Name).
		Int("items", len(playlist.Items)).
		Str("granularity", string(opts.Granularity)).
		Msg("fetched playlist")

	tracks := make([]spotify.Track, 0, len(playlist.Items))
	for i, item := range playlist.Items {
		if item.Track == nil || item.Track.ID == "" || item.Track.IsLocal {
			log.Warn().Int("position", i+1).Msg("skipping unavailable or local playlist item")
			continue
		}
		tracks = append(tracks, *item.Track)
	}

	result := &Result{
		JourneyID:  journeyID,
		PlaylistID: ref.ID,
		Name:       playlist.Name,
		Skipped:    len(playlist.Items) - len(tracks),
	}

	err = im.store.Transaction(ctx, func(q *store.Queries) error {
		journey := &store.Journey{
			ID:          journeyID,
			Name:        playlist.Name,
			Description: playlist.Description,
			CreatorName: im.user.Name(),
			Granularity: opts.Granularity,
		}
		if err := q.UpsertJourney(ctx, journey); err != nil {
			return err
		}

		removed, err := q.DeleteSteps(ctx, journeyID)
		if err != nil {
			return err
		}
		log.Debug().Int64("removed", removed).Msg("cleared existing steps")

		r := &resolver{q: q, remote: im.remote, log: log, write: true}
		refs, err := r.stepRefs(ctx, tracks, opts.Granularity)
		if err != nil {
			return err
		}

		for i, stepRef := range refs {
			step := &store.JourneyStep{
				ID:        store.StepID(journeyID, i+1),
				JourneyID: journeyID,
				Order:     i + 1,
			}
			if opts.Granularity == store.GranularityAlbum {
				step.AlbumID = stepRef
			} else {
				step.RecordingID = stepRef
			}
			if err := q.InsertStep(ctx, step); err != nil {
				return err
			}
		}
		result.Steps = len(refs)

		if opts.Link {
			linked, err := im.link(ctx, q, journeyID, playlist)
			if err != nil {
				return err
			}
			result.Linked = linked
		}

		verification, err := im.verify(ctx, q, journeyID, tracks, opts.Granularity, log)
		if err != nil {
			return err
		}
		result.Verification = verification
		return nil
	})

	if logErr := im.events.LogImport(journeyID, ref.ID, result.Steps, err); logErr != nil {
		log.Debug().Err(logErr).Msg("failed to write audit event")
	}
	if err != nil {
		log.Error().Err(err).Str("op", "import").Msg("import rolled back")
		return nil, err
	}

	log.Info().
		Int("steps", result.Steps).
		Int("skipped", result.Skipped).
		Bool("verified", result.Verification.Passed).
		Msg("import committed")
	return result, nil
}

// link records the playlist as the journey's remote counterpart when the
// authenticated user owns it; the synchronizer can only edit owned playlists.
func (im *Importer) link(ctx context.Context, q *store.Queries, journeyID string, playlist *spotify.Playlist) (bool, error) {
	if playlist.Owner.ID != im.user.ID {
		im.log.Warn().
			Str("journey_id", journeyID).
			Str("owner", playlist.Owner.ID).
			Msg("playlist is owned by another user; not linking")
		return false, nil
	}
	err := q.UpsertXRef(ctx, &store.PlaylistXRef{
		JourneyID:     journeyID,
		ServiceID:     store.ServiceSpotify,
		PlaylistID:    playlist.ID,
		PlaylistTitle: playlist.Name,
		LastUpdated:   time.Now().UTC(),
	})
	return err == nil, err
}
