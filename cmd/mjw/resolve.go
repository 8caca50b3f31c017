package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/franz/music-journeys/internal/resolve"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Look up streaming tracks for recordings without one",
	Long: `Find a streaming track for every recording whose reference is missing or
malformed.

Recordings on an album with a known reference are matched against the album's
tracks; the rest are searched by track, album and performer. Matches are
stored in one transaction. Recordings that stay unresolved are listed in
<artifacts-dir>/reports/<timestamp>/unresolved_recordings.csv.`,
	Args: cobra.NoArgs,
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().Bool("dry-run", false, "search without writing to the warehouse")
	resolveCmd.Flags().Float64("min-similarity", 0, "title similarity cutoff (default from config, 0.7)")
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	minSimilarity := settings.Resolve.MinSimilarity
	if cmd.Flags().Changed("min-similarity") {
		minSimilarity, _ = cmd.Flags().GetFloat64("min-similarity")
	}

	logger.Info().Msg("=== Reference Resolution ===")
	if dryRun {
		logger.Info().Msg("dry run: nothing will be written")
	}
	db, err := openWarehouse()
	if err != nil {
		return err
	}
	defer db.Close()

	client, _, err := authenticate(ctx)
	if err != nil {
		return err
	}

	events := openEventLog()
	defer events.Close()

	r := resolve.New(&resolve.Config{
		Store:         db,
		Remote:        client,
		MinSimilarity: minSimilarity,
		Logger:        logger.With().Str("component", "resolve").Logger(),
		Events:        events,
		Progress:      showProgress(),
	})

	timestamp := time.Now().Format("20060102-150405")
	reportPath := filepath.Join(settings.ArtifactsDir, "reports", timestamp, "unresolved_recordings.csv")

	res, err := r.Resolve(ctx, resolve.Options{DryRun: dryRun, ReportPath: reportPath})
	if err != nil {
		return fmt.Errorf("resolve failed: %w", err)
	}

	logger.Info().Msg("=== Resolve Summary ===")
	logger.Info().
		Int("checked", res.Checked).
		Int("resolved", res.Resolved).
		Int("unresolved", res.Unresolved).
		Int("albums", res.Albums).
		Dur("duration", res.Duration.Round(time.Millisecond)).
		Bool("dry_run", dryRun).
		Msg("resolve complete")
	if res.ReportPath != "" {
		logger.Info().Str("file", res.ReportPath).Msg("unresolved recordings report")
	}
	return nil
}
