package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/franz/music-journeys/internal/util"
)

const (
	// BaseURL is the Web API base URL
	BaseURL = "https://api.spotify.com/v1"

	// UserAgent identifies this application to the Web API
	UserAgent = "mjw-MusicJourneyWarehouse/1.0 (https://github.com/franz/music-journeys)"

	// MinRequestInterval spaces consecutive requests
	MinRequestInterval = 100 * time.Millisecond

	// MaxItemsPerRequest is the most track URIs a single playlist mutation accepts
	MaxItemsPerRequest = 100

	// DefaultTimeout bounds each HTTP request
	DefaultTimeout = 30 * time.Second

	albumTracksPageSize = 50
	maxSearchLimit      = 50
)

// Options configures a Client
type Options struct {
	HTTPClient  *http.Client // already authorized; see Authenticate
	BaseURL     string
	Market      string // ISO country code for track relinking; empty uses the account's market
	MinInterval time.Duration
	Retry       *util.RetryConfig
	Logger      zerolog.Logger
}

// Client handles Web API requests with request spacing and retries
type Client struct {
	httpClient  *http.Client
	baseURL     string
	userAgent   string
	market      string
	minInterval time.Duration
	lastRequest time.Time
	retry       *util.RetryConfig
	log         zerolog.Logger
}

// NewClient creates a client. The HTTP client must attach credentials.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = BaseURL
	}
	minInterval := opts.MinInterval
	if minInterval <= 0 {
		minInterval = MinRequestInterval
	}
	retry := opts.Retry
	if retry == nil {
		retry = util.RemoteRetryConfig(opts.Logger)
	}
	return &Client{
		httpClient:  httpClient,
		baseURL:     baseURL,
		userAgent:   UserAgent,
		market:      opts.Market,
		minInterval: minInterval,
		retry:       retry,
		log:         opts.Logger,
	}
}

// APIError is a non-2xx answer from the Web API
type APIError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Message    string
	retryAfter time.Duration
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Endpoint, e.StatusCode, msg)
}

// Temporary reports whether the request may succeed when retried
func (e *APIError) Temporary() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// RetryAfter is the server's Retry-After hint
func (e *APIError) RetryAfter() time.Duration {
	return e.retryAfter
}

func (e *APIError) Unwrap() []error {
	errs := []error{util.ErrRemoteRequest}
	switch e.StatusCode {
	case http.StatusNotFound:
		errs = append(errs, util.ErrNotFound)
	case http.StatusUnauthorized, http.StatusForbidden:
		errs = append(errs, util.ErrRemoteAuth)
	}
	return errs
}

func newAPIError(method, endpoint string, resp *http.Response) *APIError {
	apiErr := &APIError{Method: method, Endpoint: endpoint, StatusCode: resp.StatusCode}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var parsed errorResponse
	if json.Unmarshal(body, &parsed) == nil && parsed.Error.Message != "" {
		apiErr.Message = parsed.Error.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}

	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			apiErr.retryAfter = time.Duration(secs) * time.Second
		}
	}
	return apiErr
}

// CurrentUser returns the authenticated account
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/me", nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetPlaylist fetches a playlist and every page of its items
func (c *Client) GetPlaylist(ctx context.Context, id string) (*Playlist, error) {
	var resp playlistResponse
	if err := c.do(ctx, http.MethodGet, "/playlists/"+url.PathEscape(id), c.marketQuery(), nil, &resp); err != nil {
		return nil, err
	}

	playlist := resp.Playlist
	playlist.Items = resp.Tracks.Items
	next := resp.Tracks.Next
	for next != "" {
		var p page[PlaylistItem]
		if err := c.do(ctx, http.MethodGet, next, nil, nil, &p); err != nil {
			return nil, fmt.Errorf("failed to page playlist %s: %w", id, err)
		}
		playlist.Items = append(playlist.Items, p.Items...)
		next = p.Next
	}

	c.log.Debug().Str("playlist_id", id).Int("items", len(playlist.Items)).Msg("fetched playlist")
	return &playlist, nil
}

// GetAlbum fetches full album metadata
func (c *Client) GetAlbum(ctx context.Context, id string) (*Album, error) {
	var album Album
	if err := c.do(ctx, http.MethodGet, "/albums/"+url.PathEscape(id), c.marketQuery(), nil, &album); err != nil {
		return nil, err
	}
	return &album, nil
}

// GetAlbumTracks lists every track of an album in album order
func (c *Client) GetAlbumTracks(ctx context.Context, id string) ([]Track, error) {
	query := c.marketQuery()
	if query == nil {
		query = url.Values{}
	}
	query.Set("limit", strconv.Itoa(albumTracksPageSize))

	var tracks []Track
	endpoint := "/albums/" + url.PathEscape(id) + "/tracks"
	for endpoint != "" {
		var p page[Track]
		if err := c.do(ctx, http.MethodGet, endpoint, query, nil, &p); err != nil {
			return nil, err
		}
		tracks = append(tracks, p.Items...)
		// next already carries the query
		endpoint, query = p.Next, nil
	}
	return tracks, nil
}

// GetTrack fetches a single track
func (c *Client) GetTrack(ctx context.Context, id string) (*Track, error) {
	var track Track
	if err := c.do(ctx, http.MethodGet, "/tracks/"+url.PathEscape(id), c.marketQuery(), nil, &track); err != nil {
		return nil, err
	}
	return &track, nil
}

// SearchTracks runs a track search; q uses the field filter syntax (track:"x" album:"y")
func (c *Client) SearchTracks(ctx context.Context, q string, limit int) ([]Track, error) {
	var resp searchResponse
	if err := c.do(ctx, http.MethodGet, "/search", c.searchQuery(q, "track", limit), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Tracks == nil {
		return nil, nil
	}
	return resp.Tracks.Items, nil
}

// SearchAlbums runs an album search
func (c *Client) SearchAlbums(ctx context.Context, q string, limit int) ([]SimpleAlbum, error) {
	var resp searchResponse
	if err := c.do(ctx, http.MethodGet, "/search", c.searchQuery(q, "album", limit), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Albums == nil {
		return nil, nil
	}
	return resp.Albums.Items, nil
}

// CreatePlaylist creates an empty playlist owned by owner
func (c *Client) CreatePlaylist(ctx context.Context, owner, name string, public bool, description string) (*Playlist, error) {
	body := map[string]any{
		"name":        name,
		"public":      public,
		"description": description,
	}
	var playlist Playlist
	endpoint := "/users/" + url.PathEscape(owner) + "/playlists"
	if err := c.do(ctx, http.MethodPost, endpoint, nil, body, &playlist); err != nil {
		return nil, err
	}
	c.log.Info().Str("playlist_id", playlist.ID).Str("name", name).Msg("created playlist")
	return &playlist, nil
}

// ReplaceItems sets the playlist content to uris (at most MaxItemsPerRequest)
func (c *Client) ReplaceItems(ctx context.Context, playlistID string, uris []string) error {
	if len(uris) > MaxItemsPerRequest {
		return fmt.Errorf("replace of %d items exceeds the limit of %d", len(uris), MaxItemsPerRequest)
	}
	return c.mutateItems(ctx, http.MethodPut, playlistID, uris)
}

// AddItems appends uris (1 to MaxItemsPerRequest) to the playlist
func (c *Client) AddItems(ctx context.Context, playlistID string, uris []string) error {
	if len(uris) == 0 || len(uris) > MaxItemsPerRequest {
		return fmt.Errorf("add of %d items outside 1..%d", len(uris), MaxItemsPerRequest)
	}
	return c.mutateItems(ctx, http.MethodPost, playlistID, uris)
}

func (c *Client) mutateItems(ctx context.Context, method, playlistID string, uris []string) error {
	if uris == nil {
		uris = []string{}
	}
	var resp snapshotResponse
	endpoint := "/playlists/" + url.PathEscape(playlistID) + "/tracks"
	if err := c.do(ctx, method, endpoint, nil, map[string]any{"uris": uris}, &resp); err != nil {
		return err
	}
	c.log.Debug().
		Str("playlist_id", playlistID).
		Str("method", method).
		Int("items", len(uris)).
		Str("snapshot", resp.SnapshotID).
		Msg("playlist items written")
	return nil
}

// ChangeDetails updates the playlist name and description
func (c *Client) ChangeDetails(ctx context.Context, playlistID, name, description string) error {
	body := map[string]any{"name": name, "description": description}
	return c.do(ctx, http.MethodPut, "/playlists/"+url.PathEscape(playlistID), nil, body, nil)
}

// UnfollowPlaylist removes the playlist from the current user's library
func (c *Client) UnfollowPlaylist(ctx context.Context, playlistID string) error {
	return c.do(ctx, http.MethodDelete, "/playlists/"+url.PathEscape(playlistID)+"/followers", nil, nil, nil)
}

func (c *Client) marketQuery() url.Values {
	if c.market == "" {
		return nil
	}
	return url.Values{"market": {c.market}}
}

func (c *Client) searchQuery(q, kind string, limit int) url.Values {
	if limit <= 0 || limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	query := url.Values{
		"q":     {q},
		"type":  {kind},
		"limit": {strconv.Itoa(limit)},
	}
	if c.market != "" {
		query.Set("market", c.market)
	}
	return query
}

// do sends one request, retrying transient failures, and decodes the JSON
// answer into out. endpoint is either a path below the base URL or an
// absolute paging URL returned by the API.
func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, body, out any) error {
	target := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		target = c.baseURL + endpoint
	}
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode %s request: %w", endpoint, err)
		}
	}

	op := method + " " + endpoint
	attempt := func() error {
		if err := c.waitForRateLimit(ctx); err != nil {
			return err
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			var tokenErr *oauth2.RetrieveError
			if errors.As(err, &tokenErr) {
				return fmt.Errorf("%w: token refresh: %w", util.ErrRemoteAuth, err)
			}
			return fmt.Errorf("%w: %s: %w", util.ErrRemoteRequest, op, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			apiErr := newAPIError(method, endpoint, resp)
			c.log.Debug().Str("op", op).Int("status", resp.StatusCode).Msg(apiErr.Message)
			return apiErr
		}

		if out == nil || resp.StatusCode == http.StatusNoContent {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: failed to decode %s response: %w", util.ErrRemoteRequest, op, err)
		}
		return nil
	}

	return util.Retry(ctx, c.retry, func() error {
		err := attempt()
		if err != nil && method == http.MethodPost && !resendable(err) {
			return finalError{err}
		}
		return err
	}, op)
}

// resendable reports whether a failed POST is known not to have been applied:
// the server rejected it with 429, or the connection was never established.
func resendable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// finalError stops the retry loop for an error that would otherwise be retried
type finalError struct{ error }

func (finalError) Temporary() bool { return false }

func (e finalError) Unwrap() error { return e.error }

// waitForRateLimit spaces requests by the minimum interval
func (c *Client) waitForRateLimit(ctx context.Context) error {
	wait := c.minInterval - time.Since(c.lastRequest)
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	c.lastRequest = time.Now()
	return nil
}
