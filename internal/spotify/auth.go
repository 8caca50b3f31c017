package spotify

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/franz/music-journeys/internal/util"
)

// Scopes are the permissions needed to read and write the user's playlists
var Scopes = []string{
	"playlist-read-private",
	"playlist-modify-private",
	"playlist-modify-public",
}

// Endpoint is the accounts service
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://accounts.spotify.com/authorize",
	TokenURL:  "https://accounts.spotify.com/api/token",
	AuthStyle: oauth2.AuthStyleInHeader,
}

// Credentials authorize a client through the refresh-token grant
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	TokenURL     string // overrides Endpoint.TokenURL
}

// Validate reports every missing credential
func (c Credentials) Validate() error {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, "client id")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "client secret")
	}
	if c.RefreshToken == "" {
		missing = append(missing, "refresh token")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", util.ErrInvalidConfig, strings.Join(missing, ", "))
	}
	return nil
}

// OAuthConfig returns the oauth2 configuration for these credentials
func (c Credentials) OAuthConfig() *oauth2.Config {
	endpoint := Endpoint
	if c.TokenURL != "" {
		endpoint.TokenURL = c.TokenURL
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       Scopes,
	}
}

// Authenticate builds an authorized client and confirms the identity behind
// it. Any failure wraps util.ErrRemoteAuth.
func Authenticate(ctx context.Context, creds Credentials, opts Options) (*Client, *User, error) {
	if err := creds.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", util.ErrRemoteAuth, err)
	}

	base := opts.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: DefaultTimeout}
	}
	// Token refreshes go through the same transport as API calls
	tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, base)
	source := creds.OAuthConfig().TokenSource(tokenCtx, &oauth2.Token{RefreshToken: creds.RefreshToken})

	httpClient := oauth2.NewClient(tokenCtx, source)
	httpClient.Timeout = base.Timeout
	opts.HTTPClient = httpClient

	client := NewClient(opts)
	user, err := client.CurrentUser(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", util.ErrRemoteAuth, err)
	}

	opts.Logger.Info().Str("user_id", user.ID).Str("display_name", user.DisplayName).Msg("authenticated")
	return client, user, nil
}
