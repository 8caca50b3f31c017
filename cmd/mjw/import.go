package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/franz/music-journeys/internal/importer"
	"github.com/franz/music-journeys/internal/store"
	"github.com/franz/music-journeys/internal/util"
)

var importCmd = &cobra.Command{
	Use:   "import-playlist <url|uri|id>",
	Short: "Import a remote playlist as a journey",
	Long: `Import a playlist from the streaming service as a journey.

The journey's steps are replaced by the playlist's items in order. Performers,
albums and recordings are created or matched in the warehouse, and a read-only
verification pass compares the stored steps with the playlist. The import is
one transaction: any failure leaves the warehouse untouched.

With --link the playlist also becomes the journey's synced playlist, provided
it belongs to the authenticated account.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().String("journey-id", "", "journey id (default is the playlist id)")
	importCmd.Flags().String("granularity", string(store.GranularityTrack), "Track or Album")
	importCmd.Flags().Bool("link", false, "record the playlist as the journey's playlist")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	journeyID, _ := cmd.Flags().GetString("journey-id")
	link, _ := cmd.Flags().GetBool("link")
	g, _ := cmd.Flags().GetString("granularity")
	granularity, err := store.ParseGranularity(g)
	if err != nil {
		return fmt.Errorf("%w: %w", util.ErrInvalidConfig, err)
	}

	logger.Info().Msg("=== Playlist Import ===")
	db, err := createWarehouse()
	if err != nil {
		return err
	}
	defer db.Close()

	client, user, err := authenticate(ctx)
	if err != nil {
		return err
	}

	events := openEventLog()
	defer events.Close()

	imp := importer.New(&importer.Config{
		Store:  db,
		Remote: client,
		User:   *user,
		Logger: logger.With().Str("component", "importer").Logger(),
		Events: events,
	})

	res, err := imp.Import(ctx, args[0], importer.Options{
		JourneyID:   journeyID,
		Granularity: granularity,
		Link:        link,
	})
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	logger.Info().Msg("=== Import Summary ===")
	logger.Info().
		Str("journey_id", res.JourneyID).
		Str("name", res.Name).
		Str("granularity", string(granularity)).
		Int("steps", res.Steps).
		Int("skipped", res.Skipped).
		Bool("linked", res.Linked).
		Msg("journey imported")
	if res.Verification.Passed {
		logger.Info().Int("steps", res.Verification.Stored).Msg("verification passed")
	} else {
		logger.Warn().
			Int("stored", res.Verification.Stored).
			Int("expected", res.Verification.Expected).
			Int("mismatches", len(res.Verification.Mismatches)).
			Msg("verification found differences")
	}
	return nil
}
