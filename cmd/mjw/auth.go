package main

import (
	"context"

	"github.com/spf13/cobra"
)

var testAuthCmd = &cobra.Command{
	Use:   "test-auth",
	Short: "Check the streaming service credentials",
	Long: `Exchange the configured refresh token for an access token and print the
account it belongs to. Credentials come from the config file, the
MJW_SPOTIFY_* variables or SPOTIPY_CLIENT_ID, SPOTIPY_CLIENT_SECRET and
SPOTIFY_REFRESH_TOKEN.`,
	Args: cobra.NoArgs,
	RunE: runTestAuth,
}

func init() {
	rootCmd.AddCommand(testAuthCmd)
}

func runTestAuth(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	_, user, err := authenticate(ctx)
	if err != nil {
		return err
	}
	logger.Info().Str("user_id", user.ID).Str("display_name", user.Name()).Msg("authentication succeeded")
	return nil
}
