package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/franz/music-journeys/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a summary report of the warehouse",
	Long: `Generate a warehouse summary report in Markdown format.

The report includes:
- Row counts per table
- Journeys with their playlists and last sync time
- Playlist cross-references
- Albums and recordings whose remote title differs from the catalog
- Recordings without a streaming track reference

The report is saved to <artifacts-dir>/reports/<timestamp>/summary.md`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("out", "", "Output directory for report (default: <artifacts-dir>/reports/<timestamp>)")
	reportCmd.Flags().String("event-log", "", "Path to event log file to reference (optional)")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	logger.Info().Msg("=== Generating Summary Report ===")
	db, err := openWarehouse()
	if err != nil {
		return err
	}
	defer db.Close()

	eventLogPath, _ := cmd.Flags().GetString("event-log")

	summary, err := report.GenerateSummaryReport(ctx, db, eventLogPath)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	outputDir, _ := cmd.Flags().GetString("out")
	if outputDir == "" {
		timestamp := time.Now().Format("20060102-150405")
		outputDir = filepath.Join(settings.ArtifactsDir, "reports", timestamp)
	}
	outputPath := filepath.Join(outputDir, "summary.md")

	if err := report.WriteMarkdownReport(summary, outputPath); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	logger.Info().
		Str("file", outputPath).
		Int("journeys", len(summary.Journeys)).
		Int("title_mismatches", len(summary.TitleMismatches)).
		Int("missing_track_refs", summary.MissingRefsTotal).
		Msg("report generated")
	return nil
}
