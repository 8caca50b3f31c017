package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/franz/music-journeys/internal/loader"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Rebuild the warehouse from the CSV sources",
	Long: `Rebuild the warehouse from one CSV file per table in the data directory.

Tables are loaded in dependency order, each in its own transaction. A missing
source file skips its table; a malformed file fails only that table. The
playlist cross-reference table is merged instead of replaced so a rebuild
never discards newer sync state.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Export every warehouse table back to its CSV source",
	Long: `Export every warehouse table to <data-dir>/<Table>.csv.

Each file is written beside its target and renamed into place, so a failed
export never leaves a truncated source behind. Requires an existing warehouse.`,
	Args: cobra.NoArgs,
	RunE: runBackup,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(backupCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	logger.Info().Msg("=== Rebuilding Warehouse ===")
	db, err := createWarehouse()
	if err != nil {
		return err
	}
	defer db.Close()

	events := openEventLog()
	defer events.Close()

	l := loader.New(&loader.Config{
		Store:    db,
		DataDir:  settings.DataDir,
		Logger:   logger.With().Str("component", "loader").Logger(),
		Events:   events,
		Progress: showProgress(),
	})

	result, err := l.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("rebuild interrupted: %w", err)
	}

	logger.Info().Msg("=== Rebuild Summary ===")
	for _, tr := range result.Tables {
		ev := logger.Info()
		switch tr.Outcome {
		case loader.OutcomeFailed:
			ev = logger.Error().Err(tr.Err)
		case loader.OutcomeSkipped:
			ev = logger.Warn()
		}
		ev.Str("table", tr.Table).Int("rows", tr.Rows).Str("outcome", string(tr.Outcome)).Send()
	}
	logger.Info().
		Int("loaded", result.Count(loader.OutcomeLoaded)).
		Int("skipped", result.Count(loader.OutcomeSkipped)).
		Int("failed", result.Count(loader.OutcomeFailed)).
		Dur("duration", result.Duration.Round(time.Millisecond)).
		Msg("warehouse rebuilt")
	logger.Info().Msg("Next step: mjw playlist")
	return nil
}

func runBackup(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	logger.Info().Msg("=== Backing Up Warehouse ===")
	db, err := openWarehouse()
	if err != nil {
		return err
	}
	defer db.Close()

	events := openEventLog()
	defer events.Close()

	l := loader.New(&loader.Config{
		Store:   db,
		DataDir: settings.DataDir,
		Logger:  logger.With().Str("component", "backup").Logger(),
		Events:  events,
	})

	result, err := l.Backup(ctx)
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	failed := 0
	for _, tr := range result.Tables {
		if tr.Outcome == loader.OutcomeFailed {
			failed++
		}
	}
	if failed > 0 {
		logger.Warn().Int("failed", failed).Int("tables", len(result.Tables)).Msg("backup finished with failures")
		return nil
	}
	logger.Info().Int("tables", len(result.Tables)).Str("data_dir", settings.DataDir).Msg("backup complete")
	return nil
}
