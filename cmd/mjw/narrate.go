package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/franz/music-journeys/internal/narrate"
)

var narrateCmd = &cobra.Command{
	Use:   "narrate <journey-id>",
	Short: "Write a listening guide for a journey",
	Long: `Render the journey's steps into a prompt, ask the Gemini model for a
listening guide and write it to <journeys-dir>/<journey-id>.md.

The prompt template can be replaced with gemini.template or --template; it
receives .Journey and .Steps. The API key comes from gemini.api_key,
MJW_GEMINI_API_KEY or GEMINI_API_KEY.`,
	Args: cobra.ExactArgs(1),
	RunE: runNarrate,
}

func init() {
	rootCmd.AddCommand(narrateCmd)

	narrateCmd.Flags().String("template", "", "prompt template file (default is the built-in prompt)")
	narrateCmd.Flags().String("model", "", "Gemini model (default from config, "+narrate.DefaultModel+")")
}

func runNarrate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	template := settings.Gemini.Template
	if t, _ := cmd.Flags().GetString("template"); t != "" {
		template = t
	}
	model := settings.Gemini.Model
	if m, _ := cmd.Flags().GetString("model"); m != "" {
		model = m
	}

	db, err := openWarehouse()
	if err != nil {
		return err
	}
	defer db.Close()

	gen, err := narrate.NewGemini(ctx, settings.Gemini.APIKey, model)
	if err != nil {
		return err
	}

	events := openEventLog()
	defer events.Close()

	n := narrate.New(&narrate.Config{
		Store:        db,
		Generator:    gen,
		JourneysDir:  settings.JourneysDir,
		TemplatePath: template,
		Logger:       logger.With().Str("component", "narrate").Str("model", model).Logger(),
		Events:       events,
	})

	path, err := n.Generate(ctx, args[0])
	if err != nil {
		return fmt.Errorf("narrative for %s failed: %w", args[0], err)
	}
	logger.Info().Str("journey_id", args[0]).Str("file", path).Msg("narrative written")
	return nil
}
