// Package resolve fills in missing remote track references of recordings.
package resolve

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"

	"github.com/franz/music-journeys/internal/meta"
	"github.com/franz/music-journeys/internal/report"
	"github.com/franz/music-journeys/internal/spotify"
	"github.com/franz/music-journeys/internal/store"
)

// Remote is the part of the Web API the resolver searches
type Remote interface {
	GetAlbumTracks(ctx context.Context, id string) ([]spotify.Track, error)
	SearchTracks(ctx context.Context, q string, limit int) ([]spotify.Track, error)
	SearchAlbums(ctx context.Context, q string, limit int) ([]spotify.SimpleAlbum, error)
}

// Options controls one resolver run
type Options struct {
	DryRun     bool   // search but write nothing to the warehouse
	ReportPath string // CSV of unresolved recordings; empty disables it
}

// Result summarizes a resolver run
type Result struct {
	Checked    int // recordings without a valid track reference
	Resolved   int
	Unresolved int
	Albums     int // albums that gained a remote reference
	ReportPath string
	Duration   time.Duration
}

// Config holds resolver configuration
type Config struct {
	Store         *store.Store
	Remote        Remote
	MinSimilarity float64 // title cutoff; defaults to meta.DefaultMinSimilarity
	Logger        zerolog.Logger
	Events        *report.EventLogger
	Progress      bool
}

// Resolver matches catalog recordings to remote tracks
type Resolver struct {
	store    *store.Store
	remote   Remote
	minSim   float64
	log      zerolog.Logger
	events   *report.EventLogger
	progress bool
}

// New creates a Resolver
func New(cfg *Config) *Resolver {
	minSim := cfg.MinSimilarity
	if minSim <= 0 || minSim > 1 {
		minSim = meta.DefaultMinSimilarity
	}
	return &Resolver{
		store:    cfg.Store,
		remote:   cfg.Remote,
		minSim:   minSim,
		log:      cfg.Logger,
		events:   cfg.Events,
		progress: cfg.Progress,
	}
}

// match is a remote track chosen for a recording
type match struct {
	recordingID string
	track       spotify.Track
	titleMatch  bool
	reason      string
}

// albumMatch is a remote album found for a catalog album without a reference
type albumMatch struct {
	albumID string
	album   spotify.SimpleAlbum
	title   string // catalog title
}

// Resolve looks up every recording lacking a well-formed track reference.
// Matches are written in one transaction after all lookups finish.
func (r *Resolver) Resolve(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()
	contexts, err := r.store.Queries().RecordingContexts(ctx)
	if err != nil {
		return nil, err
	}

	var pending []store.RecordingContext
	for _, rc := range contexts {
		if !spotify.IsTrackRef(rc.SpotifyURL) {
			pending = append(pending, rc)
		}
	}
	result := &Result{Checked: len(pending)}
	r.log.Info().Int("recordings", len(contexts)).Int("missing", len(pending)).Msg("resolving track references")

	var bar *progressbar.ProgressBar
	if r.progress && len(pending) > 0 {
		bar = progressbar.NewOptions(len(pending),
			progressbar.OptionSetDescription("Resolving"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionClearOnFinish(),
		)
	}

	var (
		matches    []match
		albums     []albumMatch
		unresolved []store.RecordingContext
	)
	// album references discovered during this run, by catalog album id
	albumRefs := make(map[string]string)

	for _, rc := range pending {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		log := r.log.With().Str("recording_id", rc.RecordingID).Logger()

		albumURL := rc.AlbumSpotifyURL
		if url, ok := albumRefs[rc.AlbumID]; ok {
			albumURL = url
		} else if !spotify.IsAlbumRef(albumURL) && rc.AlbumID != "" && rc.AlbumTitle != "" {
			if am := r.findAlbum(ctx, rc, log); am != nil {
				albums = append(albums, *am)
				albumURL = am.album.URL()
			}
			albumRefs[rc.AlbumID] = albumURL
		}

		m := r.fromAlbum(ctx, rc, albumURL, log)
		if m == nil {
			m = r.fromSearch(ctx, rc, log)
		}

		if m != nil {
			matches = append(matches, *m)
			log.Debug().Str("track", m.track.Name).Str("reason", m.reason).Msg("resolved")
			_ = r.events.LogResolve(rc.RecordingID, m.track.URL(), m.reason, true)
		} else {
			unresolved = append(unresolved, rc)
			log.Warn().
				Str("title", rc.CatalogTitle()).
				Str("album", rc.AlbumTitle).
				Str("performer", rc.PerformerName).
				Msg("no remote track found")
			_ = r.events.LogResolve(rc.RecordingID, "", "unresolved", false)
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	result.Resolved = len(matches)
	result.Unresolved = len(unresolved)
	result.Albums = len(albums)

	if !opts.DryRun && (len(matches) > 0 || len(albums) > 0) {
		if err := r.write(ctx, matches, albums); err != nil {
			return nil, err
		}
	}

	if opts.ReportPath != "" && len(unresolved) > 0 {
		if err := writeUnresolved(opts.ReportPath, unresolved); err != nil {
			return nil, err
		}
		result.ReportPath = opts.ReportPath
	}

	result.Duration = time.Since(start)
	r.log.Info().
		Int("checked", result.Checked).
		Int("resolved", result.Resolved).
		Int("unresolved", result.Unresolved).
		Int("albums", result.Albums).
		Bool("dry_run", opts.DryRun).
		Dur("duration", result.Duration).
		Msg("resolve complete")
	return result, nil
}

func (r *Resolver) write(ctx context.Context, matches []match, albums []albumMatch) error {
	return r.store.Transaction(ctx, func(q *store.Queries) error {
		for _, am := range albums {
			err := q.UpsertAlbum(ctx, &store.Album{
				ID:           am.albumID,
				Title:        am.title,
				SpotifyURL:   am.album.URL(),
				SpotifyTitle: am.album.Name,
				TitleMatch:   sql.NullBool{Bool: meta.TitlesMatch(am.title, am.album.Name), Valid: true},
				ReleaseYear:  meta.ReleaseYear(am.album.ReleaseDate),
			})
			if err != nil {
				return err
			}
		}
		for _, m := range matches {
			if err := q.UpdateRecordingRemote(ctx, m.recordingID, m.track.URL(), m.track.Name, m.titleMatch); err != nil {
				return fmt.Errorf("failed to record match: %w", err)
			}
		}
		return nil
	})
}
