package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/franz/music-journeys/internal/meta"
	"github.com/franz/music-journeys/internal/narrate"
	"github.com/franz/music-journeys/internal/spotify"
	"github.com/franz/music-journeys/internal/util"
)

// Settings is the validated configuration of one invocation.
// Precedence: flag, MJW_* environment, legacy environment, config file, default.
type Settings struct {
	DB           string
	DataDir      string
	JourneysDir  string
	ArtifactsDir string

	Verbose   bool
	Quiet     bool
	LogFile   string
	LogFormat string

	Spotify  SpotifySettings
	Playlist PlaylistSettings
	Resolve  ResolveSettings
	Gemini   GeminiSettings
}

type SpotifySettings struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Market       string
	MinInterval  time.Duration
}

type PlaylistSettings struct {
	VerifyTracks bool
}

type ResolveSettings struct {
	MinSimilarity float64
}

type GeminiSettings struct {
	APIKey   string
	Model    string
	Template string
}

// legacyEnv lists the variable names the previous tooling read credentials from
var legacyEnv = map[string]string{
	"spotify.client_id":     "SPOTIPY_CLIENT_ID",
	"spotify.client_secret": "SPOTIPY_CLIENT_SECRET",
	"spotify.refresh_token": "SPOTIFY_REFRESH_TOKEN",
	"gemini.api_key":        "GEMINI_API_KEY",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db", "output/music_journeys.db")
	v.SetDefault("data_dir", "data")
	v.SetDefault("journeys_dir", "journeys")
	v.SetDefault("artifacts_dir", "artifacts")
	v.SetDefault("log_format", "console")
	v.SetDefault("spotify.min_interval_ms", int(spotify.MinRequestInterval/time.Millisecond))
	v.SetDefault("resolve.min_similarity", meta.DefaultMinSimilarity)
	v.SetDefault("gemini.model", narrate.DefaultModel)
}

// bindEnv maps MJW_SECTION_KEY variables onto dotted keys and accepts the
// legacy credential names as fallbacks
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("MJW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		envKey := "MJW_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, envKey, legacy)
	}
}

func loadSettings(v *viper.Viper) (*Settings, error) {
	s := &Settings{
		DB:           v.GetString("db"),
		DataDir:      v.GetString("data_dir"),
		JourneysDir:  v.GetString("journeys_dir"),
		ArtifactsDir: v.GetString("artifacts_dir"),
		Verbose:      v.GetBool("verbose"),
		Quiet:        v.GetBool("quiet"),
		LogFile:      v.GetString("log_file"),
		LogFormat:    strings.ToLower(v.GetString("log_format")),
		Spotify: SpotifySettings{
			ClientID:     v.GetString("spotify.client_id"),
			ClientSecret: v.GetString("spotify.client_secret"),
			RefreshToken: v.GetString("spotify.refresh_token"),
			Market:       strings.ToUpper(v.GetString("spotify.market")),
			MinInterval:  time.Duration(v.GetInt("spotify.min_interval_ms")) * time.Millisecond,
		},
		Playlist: PlaylistSettings{VerifyTracks: v.GetBool("playlist.verify_tracks")},
		Resolve:  ResolveSettings{MinSimilarity: v.GetFloat64("resolve.min_similarity")},
		Gemini: GeminiSettings{
			APIKey:   v.GetString("gemini.api_key"),
			Model:    v.GetString("gemini.model"),
			Template: v.GetString("gemini.template"),
		},
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the values every command depends on. Credentials are
// checked by the commands that need them.
func (s *Settings) Validate() error {
	var problems []string
	if s.DB == "" {
		problems = append(problems, "db must not be empty")
	}
	if s.DataDir == "" {
		problems = append(problems, "data_dir must not be empty")
	}
	if s.LogFormat != "console" && s.LogFormat != "json" {
		problems = append(problems, fmt.Sprintf("log_format %q is not console or json", s.LogFormat))
	}
	if s.Spotify.MinInterval < 0 {
		problems = append(problems, "spotify.min_interval_ms must not be negative")
	}
	if s.Spotify.Market != "" && len(s.Spotify.Market) != 2 {
		problems = append(problems, fmt.Sprintf("spotify.market %q is not a two-letter country code", s.Spotify.Market))
	}
	if s.Resolve.MinSimilarity <= 0 || s.Resolve.MinSimilarity > 1 {
		problems = append(problems, fmt.Sprintf("resolve.min_similarity %v is outside (0, 1]", s.Resolve.MinSimilarity))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", util.ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Credentials returns the remote service credentials
func (s *Settings) Credentials() spotify.Credentials {
	return spotify.Credentials{
		ClientID:     s.Spotify.ClientID,
		ClientSecret: s.Spotify.ClientSecret,
		RefreshToken: s.Spotify.RefreshToken,
	}
}

// LogOptions maps the logging settings onto the logger
func (s *Settings) LogOptions() util.LogOptions {
	return util.LogOptions{
		Verbose: s.Verbose,
		Quiet:   s.Quiet,
		JSON:    s.LogFormat == "json",
		File:    s.LogFile,
	}
}
