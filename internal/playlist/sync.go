// Package playlist reconciles journeys with their remote playlists.
package playlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/franz/music-journeys/internal/report"
	"github.com/franz/music-journeys/internal/spotify"
	"github.com/franz/music-journeys/internal/store"
	"github.com/franz/music-journeys/internal/util"
)

// Remote is the part of the Web API the synchronizer needs
type Remote interface {
	ItemWriter
	GetPlaylist(ctx context.Context, id string) (*spotify.Playlist, error)
	GetTrack(ctx context.Context, id string) (*spotify.Track, error)
	GetAlbumTracks(ctx context.Context, id string) ([]spotify.Track, error)
	CreatePlaylist(ctx context.Context, owner, name string, public bool, description string) (*spotify.Playlist, error)
	ChangeDetails(ctx context.Context, playlistID, name, description string) error
	UnfollowPlaylist(ctx context.Context, playlistID string) error
}

// Action is what a sync did to one journey's playlist
type Action string

const (
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionRecreated Action = "recreated"
	ActionSkipped   Action = "skipped"
	ActionFailed    Action = "failed"
)

// Filter selects journeys; empty fields match everything
type Filter struct {
	Name      string
	JourneyID string
}

// Outcome is the result of syncing one journey
type Outcome struct {
	JourneyID   string
	JourneyName string
	Action      Action
	PlaylistID  string
	Items       int
	Excluded    int
	Err         error
}

// Config holds synchronizer configuration
type Config struct {
	Store        *store.Store
	Remote       Remote
	User         spotify.User // owner of created playlists
	VerifyTracks bool         // confirm each track reference remotely before syncing
	Logger       zerolog.Logger
	Events       *report.EventLogger
}

// Synchronizer pushes journeys to the remote service
type Synchronizer struct {
	store        *store.Store
	remote       Remote
	user         spotify.User
	verifyTracks bool
	log          zerolog.Logger
	events       *report.EventLogger
	now          func() time.Time
}

// New creates a Synchronizer
func New(cfg *Config) *Synchronizer {
	return &Synchronizer{
		store:        cfg.Store,
		remote:       cfg.Remote,
		user:         cfg.User,
		verifyTracks: cfg.VerifyTracks,
		log:          cfg.Logger,
		events:       cfg.Events,
		now:          time.Now,
	}
}

// Sync reconciles every journey matching the filter, in id order. A failing
// journey is recorded in its outcome and the batch continues; the returned
// error is reserved for failures that stop the whole batch.
func (s *Synchronizer) Sync(ctx context.Context, filter Filter, recreate bool) ([]Outcome, error) {
	journeys, err := s.store.Queries().ListJourneys(ctx, store.JourneyFilter{ID: filter.JourneyID, Name: filter.Name})
	if err != nil {
		return nil, err
	}
	if len(journeys) == 0 {
		s.log.Warn().Str("name", filter.Name).Str("journey_id", filter.JourneyID).Msg("no journeys found")
		return nil, nil
	}

	outcomes := make([]Outcome, 0, len(journeys))
	for _, j := range journeys {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		o := s.syncJourney(ctx, j, recreate)
		s.report(o)
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}

func (s *Synchronizer) report(o Outcome) {
	ev := s.log.Info()
	switch o.Action {
	case ActionFailed:
		ev = s.log.Error().Err(o.Err)
	case ActionSkipped:
		ev = s.log.Warn()
	}
	ev.Str("journey_id", o.JourneyID).
		Str("op", "sync").
		Str("outcome", string(o.Action)).
		Str("playlist_id", o.PlaylistID).
		Int("items", o.Items).
		Int("excluded", o.Excluded).
		Msg(o.JourneyName)

	if err := s.events.LogSync(o.JourneyID, o.PlaylistID, string(o.Action), o.Items, o.Excluded, o.Err); err != nil {
		s.log.Debug().Err(err).Msg("failed to write audit event")
	}
}

func (s *Synchronizer) syncJourney(ctx context.Context, j store.Journey, recreate bool) Outcome {
	o := Outcome{JourneyID: j.ID, JourneyName: j.DisplayName()}
	log := s.log.With().Str("journey_id", j.ID).Logger()
	fail := func(op string, err error) Outcome {
		o.Action = ActionFailed
		o.Err = fmt.Errorf("%s: %w", op, err)
		return o
	}

	q := s.store.Queries()
	xref, err := q.GetXRef(ctx, j.ID, store.ServiceSpotify)
	if err != nil {
		return fail("lookup", err)
	}
	if xref != nil {
		if ref, err := spotify.ParseKind(xref.PlaylistID, spotify.KindPlaylist); err == nil {
			xref.PlaylistID = ref.ID
		}
	}

	recreated := false
	if recreate && xref != nil {
		log.Warn().Str("playlist_id", xref.PlaylistID).Msg("recreating playlist")
		if err := s.remote.UnfollowPlaylist(ctx, xref.PlaylistID); err != nil {
			o.PlaylistID = xref.PlaylistID
			return fail("unfollow", err)
		}
		if err := q.DeleteXRef(ctx, j.ID, store.ServiceSpotify); err != nil {
			return fail("unfollow", err)
		}
		xref, recreated = nil, true
	}

	d, err := s.desired(ctx, j, log)
	if err != nil {
		return fail("resolve items", err)
	}
	o.Excluded = d.Excluded
	if len(d.URIs) == 0 {
		o.Action = ActionSkipped
		return o
	}
	o.Items = len(d.URIs)

	if xref != nil {
		err := s.remote.ChangeDetails(ctx, xref.PlaylistID, o.JourneyName, j.Description)
		switch {
		case errors.Is(err, util.ErrNotFound):
			log.Warn().Str("playlist_id", xref.PlaylistID).Msg("linked playlist no longer exists; creating a new one")
			if err := q.DeleteXRef(ctx, j.ID, store.ServiceSpotify); err != nil {
				return fail("update", err)
			}
			xref = nil
		case err != nil:
			o.PlaylistID = xref.PlaylistID
			return fail("update", err)
		default:
			o.PlaylistID = xref.PlaylistID
			if _, err := Apply(ctx, s.remote, xref.PlaylistID, d.URIs, true); err != nil {
				return fail("update", err)
			}
			o.Action = ActionUpdated
		}
	}

	if xref == nil {
		created, err := s.remote.CreatePlaylist(ctx, s.user.ID, o.JourneyName, false, j.Description)
		if err != nil {
			return fail("create", err)
		}
		o.PlaylistID = created.ID
		if _, err := Apply(ctx, s.remote, created.ID, d.URIs, false); err != nil {
			return fail("create", err)
		}
		o.Action = ActionCreated
		if recreated {
			o.Action = ActionRecreated
		}
	}

	title := ""
	if p, err := s.remote.GetPlaylist(ctx, o.PlaylistID); err != nil {
		log.Warn().Err(err).Str("playlist_id", o.PlaylistID).Msg("could not fetch playlist title")
	} else {
		title = p.Name
	}

	err = q.UpsertXRef(ctx, &store.PlaylistXRef{
		JourneyID:     j.ID,
		ServiceID:     store.ServiceSpotify,
		PlaylistID:    o.PlaylistID,
		PlaylistTitle: title,
		LastUpdated:   s.now().UTC(),
	})
	if err != nil {
		return fail("record", err)
	}
	return o
}
