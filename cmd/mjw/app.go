package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/franz/music-journeys/internal/report"
	"github.com/franz/music-journeys/internal/spotify"
	"github.com/franz/music-journeys/internal/store"
	"github.com/franz/music-journeys/internal/util"
)

// openWarehouse opens the configured warehouse, which must already exist
func openWarehouse() (*store.Store, error) {
	db, err := store.OpenExisting(settings.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open warehouse: %w", err)
	}
	return db, nil
}

// createWarehouse opens the configured warehouse, creating it if needed
func createWarehouse() (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(settings.DB), 0755); err != nil {
		return nil, fmt.Errorf("failed to create warehouse directory: %w", err)
	}
	db, err := store.Open(settings.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open warehouse: %w", err)
	}
	return db, nil
}

// openEventLog starts the audit trail under the artifacts directory. A
// failure degrades to a disabled logger.
func openEventLog() *report.EventLogger {
	level := report.LevelInfo
	if settings.Quiet {
		level = report.LevelWarning
	} else if settings.Verbose {
		level = report.LevelDebug
	}

	events, err := report.NewEventLogger(settings.ArtifactsDir, level)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to create event log")
		return report.NullLogger()
	}
	if events.Path() != "" {
		logger.Info().Str("file", events.Path()).Msg("event log")
	}
	return events
}

// authenticate builds the remote client for the configured account
func authenticate(ctx context.Context) (*spotify.Client, *spotify.User, error) {
	return spotify.Authenticate(ctx, settings.Credentials(), spotify.Options{
		Market:      settings.Spotify.Market,
		MinInterval: settings.Spotify.MinInterval,
		Logger:      logger.With().Str("component", "spotify").Logger(),
	})
}

func showProgress() bool {
	return util.ShowProgress(settings.Quiet)
}
