package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/franz/music-journeys/internal/playlist"
)

var playlistCmd = &cobra.Command{
	Use:   "playlist",
	Short: "Create or update one remote playlist per journey",
	Long: `Synchronize journeys to the streaming service.

For every journey (or those selected with --name / --journey-id) the desired
track list is derived from the warehouse and applied to the journey's playlist:
an existing playlist has its details and contents replaced, otherwise a new
private playlist is created. Re-running with an unchanged warehouse yields the
same remote state.

With --recreate the existing playlist is unfollowed and a fresh one created.`,
	Args: cobra.NoArgs,
	RunE: runPlaylist,
}

func init() {
	rootCmd.AddCommand(playlistCmd)

	playlistCmd.Flags().String("name", "", "only sync the journey with this name")
	playlistCmd.Flags().String("journey-id", "", "only sync the journey with this id")
	playlistCmd.Flags().Bool("recreate", false, "unfollow and recreate existing playlists")
	playlistCmd.Flags().Bool("verify-tracks", false, "confirm every track reference remotely before syncing")
}

func runPlaylist(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	name, _ := cmd.Flags().GetString("name")
	journeyID, _ := cmd.Flags().GetString("journey-id")
	recreate, _ := cmd.Flags().GetBool("recreate")
	verify := settings.Playlist.VerifyTracks
	if cmd.Flags().Changed("verify-tracks") {
		verify, _ = cmd.Flags().GetBool("verify-tracks")
	}

	logger.Info().Msg("=== Playlist Sync ===")
	db, err := openWarehouse()
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

	syncer := playlist.New(&playlist.Config{
		Store:        db,
		Remote:       client,
		User:         *user,
		VerifyTracks: verify,
		Logger:       logger.With().Str("component", "playlist").Logger(),
		Events:       events,
	})

	outcomes, err := syncer.Sync(ctx, playlist.Filter{Name: name, JourneyID: journeyID}, recreate)
	if err != nil {
		return fmt.Errorf("playlist sync aborted: %w", err)
	}
	if len(outcomes) == 0 {
		logger.Warn().Str("name", name).Str("journey_id", journeyID).Msg("no journeys matched")
		return nil
	}

	logger.Info().Msg("=== Sync Summary ===")
	counts := map[playlist.Action]int{}
	for _, o := range outcomes {
		counts[o.Action]++
	}
	logger.Info().
		Int("journeys", len(outcomes)).
		Int("created", counts[playlist.ActionCreated]).
		Int("updated", counts[playlist.ActionUpdated]).
		Int("recreated", counts[playlist.ActionRecreated]).
		Int("skipped", counts[playlist.ActionSkipped]).
		Int("failed", counts[playlist.ActionFailed]).
		Msg("sync complete")
	for _, o := range outcomes {
		if o.Action == playlist.ActionFailed {
			logger.Error().Err(o.Err).Str("journey_id", o.JourneyID).Str("journey", o.JourneyName).Msg("journey failed")
		}
	}
	return nil
}
