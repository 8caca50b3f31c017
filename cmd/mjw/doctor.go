package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/franz/music-journeys/internal/store"
	"github.com/franz/music-journeys/internal/util"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the environment and configuration",
	Long: `Run diagnostic checks to ensure mjw can operate correctly.

This command checks:
- SQLite availability
- Warehouse file accessibility, schema version and integrity
- Warehouse location is not a network mount
- Data directory and CSV sources
- Streaming service and Gemini credentials
- Output directories (artifacts, journeys) are writable

Use this command to troubleshoot issues before running mjw operations.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	logger.Info().Msg("=== MJW Doctor - System Diagnostics ===")

	results := []checkResult{
		checkSQLite(),
		checkWarehouse(ctx, settings.DB),
		checkWarehouseLocation(settings.DB),
		checkDataDirectory(settings.DataDir),
		checkSpotifyCredentials(settings),
		checkGeminiKey(settings),
		checkWritableDirectory("Artifacts directory", settings.ArtifactsDir),
		checkWritableDirectory("Journeys directory", settings.JourneysDir),
	}

	logger.Info().Msg("=== Diagnostic Results ===")

	hasErrors := false
	hasWarnings := false
	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += ": " + r.message
		}

		switch {
		case r.error:
			logger.Error().Msg(line)
		case r.warning:
			logger.Warn().Msg(line)
		default:
			logger.Info().Msg(line)
		}
	}

	if hasErrors {
		logger.Error().Msg("Some critical checks failed. Please resolve errors before running mjw.")
		return fmt.Errorf("system diagnostics failed")
	} else if hasWarnings {
		logger.Warn().Msg("Some checks produced warnings. Review them before proceeding.")
	} else {
		logger.Info().Msg("All checks passed! System is ready for mjw operations.")
	}
	return nil
}

// checkSQLite verifies the embedded SQLite driver works
func checkSQLite() checkResult {
	version := store.SQLiteVersion()
	if version == "" {
		return checkResult{
			name:    "SQLite",
			error:   true,
			message: "unable to determine version",
		}
	}
	return checkResult{
		name:    "SQLite",
		message: fmt.Sprintf("version %s (built-in)", version),
	}
}

// checkWarehouse verifies the warehouse file is usable
func checkWarehouse(ctx context.Context, dbPath string) checkResult {
	if dbPath == "" {
		return checkResult{
			name:    "Warehouse",
			error:   true,
			message: "no warehouse path specified (use --db flag or config)",
		}
	}

	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return checkResult{
				name:    "Warehouse",
				warning: true,
				message: fmt.Sprintf("%s does not exist (run 'mjw build')", dbPath),
			}
		}
		return checkResult{
			name:    "Warehouse",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", dbPath, err),
		}
	}
	if !info.Mode().IsRegular() {
		return checkResult{
			name:    "Warehouse",
			error:   true,
			message: fmt.Sprintf("%s is not a regular file", dbPath),
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return checkResult{
			name:    "Warehouse",
			error:   true,
			message: fmt.Sprintf("cannot open %s: %v", dbPath, err),
		}
	}
	defer db.Close()

	if err := db.CheckIntegrity(ctx); err != nil {
		return checkResult{
			name:    "Warehouse",
			error:   true,
			message: err.Error(),
		}
	}

	version, _ := db.SchemaVersion()
	journeys, _ := db.Queries().CountRows(ctx, "DimJourney")
	return checkResult{
		name: "Warehouse",
		message: fmt.Sprintf("%s (%s, schema v%d, %d journeys)",
			dbPath, humanize.Bytes(uint64(info.Size())), version, journeys),
	}
}

// checkWarehouseLocation warns when the warehouse sits on a network mount,
// where SQLite's WAL mode and file locks are unreliable
func checkWarehouseLocation(dbPath string) checkResult {
	info, err := util.DetectMount(dbPath)
	if err != nil {
		return checkResult{
			name:    "Warehouse location",
			warning: true,
			message: fmt.Sprintf("cannot determine filesystem: %v", err),
		}
	}
	if info.IsNetwork {
		return checkResult{
			name:    "Warehouse location",
			warning: true,
			message: fmt.Sprintf("%s is on a network filesystem (%s at %s); keep the warehouse on a local disk", dbPath, info.Type, info.MountPath),
		}
	}
	return checkResult{
		name:    "Warehouse location",
		message: "local filesystem",
	}
}

// checkDataDirectory verifies the CSV sources a rebuild reads
func checkDataDirectory(path string) checkResult {
	info, err := os.Stat(path)
	if err != nil {
		return checkResult{
			name:    "Data directory",
			warning: true,
			message: fmt.Sprintf("cannot access %s: %v", path, err),
		}
	}
	if !info.IsDir() {
		return checkResult{
			name:    "Data directory",
			error:   true,
			message: fmt.Sprintf("%s is not a directory", path),
		}
	}

	var missing []string
	for _, t := range store.Tables {
		if _, err := os.Stat(filepath.Join(path, t.FileName())); err != nil {
			missing = append(missing, t.FileName())
		}
	}
	if len(missing) > 0 {
		return checkResult{
			name:    "Data directory",
			warning: true,
			message: fmt.Sprintf("%s lacks %s (those tables will be skipped)", path, strings.Join(missing, ", ")),
		}
	}
	return checkResult{
		name:    "Data directory",
		message: fmt.Sprintf("%s (%d sources)", path, len(store.Tables)),
	}
}

// checkSpotifyCredentials verifies credentials are configured without contacting the service
func checkSpotifyCredentials(s *Settings) checkResult {
	if err := s.Credentials().Validate(); err != nil {
		return checkResult{
			name:    "Spotify credentials",
			warning: true,
			message: fmt.Sprintf("%v (needed by playlist, import-playlist, resolve)", err),
		}
	}
	return checkResult{
		name:    "Spotify credentials",
		message: "configured (run 'mjw test-auth' to verify)",
	}
}

func checkGeminiKey(s *Settings) checkResult {
	if s.Gemini.APIKey == "" {
		return checkResult{
			name:    "Gemini API key",
			warning: true,
			message: "not set (needed by narrate)",
		}
	}
	return checkResult{
		name:    "Gemini API key",
		message: fmt.Sprintf("configured (model %s)", s.Gemini.Model),
	}
}

// checkWritableDirectory verifies an output directory exists or can be created, and is writable
func checkWritableDirectory(name, path string) checkResult {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(path, 0755); err != nil {
				return checkResult{
					name:    name,
					error:   true,
					message: fmt.Sprintf("cannot create %s: %v", path, err),
				}
			}
			return checkResult{
				name:    name,
				message: fmt.Sprintf("%s (created)", path),
			}
		}
		return checkResult{
			name:    name,
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", path, err),
		}
	}

	if !info.IsDir() {
		return checkResult{
			name:    name,
			error:   true,
			message: fmt.Sprintf("%s is not a directory", path),
		}
	}

	testFile := filepath.Join(path, ".mjw_write_test")
	f, err := os.Create(testFile)
	if err != nil {
		return checkResult{
			name:    name,
			error:   true,
			message: fmt.Sprintf("cannot write to %s: %v", path, err),
		}
	}
	f.Close()
	os.Remove(testFile)

	return checkResult{
		name:    name,
		message: fmt.Sprintf("%s (writable)", path),
	}
}
