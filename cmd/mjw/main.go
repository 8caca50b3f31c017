package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/music-journeys/internal/util"
)

// Exit codes
const (
	exitOK = iota
	exitFailure
	exitConfig
	exitAuth
	exitNotFound
)

var (
	// Version is set at build time
	Version = "dev"

	cfgFile   string
	configErr error

	settings  *Settings
	logger    = util.NopLogger()
	logCloser io.Closer

	rootCmd = &cobra.Command{
		Use:   "mjw",
		Short: "Music Journey Warehouse - curate listening journeys and sync them as playlists",
		Long: `mjw (Music Journey Warehouse) maintains a small SQLite warehouse of classical
works, recordings and curated listening journeys. It rebuilds the warehouse from
CSV sources, imports playlists as journeys, resolves catalog recordings to
streaming tracks and keeps one playlist per journey in sync.`,
		Version:           Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logCloser != nil {
				logCloser.Close()
			}
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ./configs/mjw.yaml)")
	pf.String("db", "", "warehouse database file (default output/music_journeys.db)")
	pf.String("data-dir", "", "directory of the CSV sources (default data)")
	pf.String("journeys-dir", "", "directory for journey narratives (default journeys)")
	pf.String("artifacts-dir", "", "directory for event logs and reports (default artifacts)")
	pf.String("log-file", "", "also write JSON logs to this rotated file")
	pf.String("log-format", "", "console or json")
	pf.BoolP("verbose", "v", false, "verbose output")
	pf.BoolP("quiet", "q", false, "quiet output (errors only)")

	// Bind flags to viper
	viper.BindPFlag("db", pf.Lookup("db"))
	viper.BindPFlag("data_dir", pf.Lookup("data-dir"))
	viper.BindPFlag("journeys_dir", pf.Lookup("journeys-dir"))
	viper.BindPFlag("artifacts_dir", pf.Lookup("artifacts-dir"))
	viper.BindPFlag("log_file", pf.Lookup("log-file"))
	viper.BindPFlag("log_format", pf.Lookup("log-format"))
	viper.BindPFlag("verbose", pf.Lookup("verbose"))
	viper.BindPFlag("quiet", pf.Lookup("quiet"))
}

func initConfig() {
	v := viper.GetViper()
	setDefaults(v)
	bindEnv(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		v.SetConfigName("mjw")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			configErr = fmt.Errorf("%w: %w", util.ErrInvalidConfig, err)
		}
	}
}

func setup(cmd *cobra.Command, args []string) error {
	if configErr != nil {
		return configErr
	}
	s, err := loadSettings(viper.GetViper())
	if err != nil {
		return err
	}
	settings = s

	logger, logCloser = util.NewLogger(s.LogOptions())

	if used := viper.ConfigFileUsed(); used != "" {
		logger.Debug().Str("file", used).Msg("using config file")
	}
	return nil
}

// exitCode maps a command error onto the process exit status
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, util.ErrInvalidConfig):
		return exitConfig
	case errors.Is(err, util.ErrRemoteAuth):
		return exitAuth
	case errors.Is(err, util.ErrNotFound):
		return exitNotFound
	default:
		return exitFailure
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}
