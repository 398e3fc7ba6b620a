package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"forbias/pkg/domain"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTokenURL is the client-credentials token endpoint.
	DefaultTokenURL = "https://accounts.spotify.com/api/token"
	// DefaultAPIBaseURL is the Web API root that search paths are joined to.
	DefaultAPIBaseURL = "https://api.spotify.com/v1"
	// DefaultLimit is the number of tracks asked for when Limit is unset.
	DefaultLimit = 10

	maxLimit          = 50
	tokenExpiryMargin = 30 * time.Second
)

// SpotifyOptions configures SpotifyClient.
type SpotifyOptions struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	APIBaseURL   string
	Market       string
	Limit        int
	HTTPClient   *http.Client
	Now          func() time.Time
}

// SpotifyClient searches tracks with an app token from the client-credentials flow.
type SpotifyClient struct {
	clientID     string
	clientSecret string
	tokenURL     string
	apiBaseURL   string
	market       string
	limit        int
	httpClient   *http.Client
	now          func() time.Time

	tokens    singleflight.Group
	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewSpotifyClient validates credentials and applies defaults.
func NewSpotifyClient(opts SpotifyOptions) (*SpotifyClient, error) {
	if strings.TrimSpace(opts.ClientID) == "" || strings.TrimSpace(opts.ClientSecret) == "" {
		return nil, fmt.Errorf("spotify client id and secret are required")
	}
	tokenURL := strings.TrimSpace(opts.TokenURL)
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	apiBaseURL := strings.TrimRight(strings.TrimSpace(opts.APIBaseURL), "/")
	if apiBaseURL == "" {
		apiBaseURL = DefaultAPIBaseURL
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &SpotifyClient{
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
		tokenURL:     tokenURL,
		apiBaseURL:   apiBaseURL,
		market:       strings.TrimSpace(opts.Market),
		limit:        limit,
		httpClient:   httpClient,
		now:          now,
	}, nil
}

// Search returns up to the configured number of tracks matching query.
func (c *SpotifyClient) Search(ctx context.Context, query string) ([]domain.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", strconv.Itoa(c.limit))
	if c.market != "" {
		params.Set("market", c.market)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBaseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var resp searchResponse
	if err := c.do(req, &resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			c.dropToken(token)
		}
		return nil, err
	}
	tracks := make([]domain.Track, 0, len(resp.Tracks.Items))
	for _, item := range resp.Tracks.Items {
		tracks = append(tracks, item.toTrack())
	}
	return tracks, nil
}

func (c *SpotifyClient) accessToken(ctx context.Context) (string, error) {
	if token, ok := c.cachedToken(); ok {
		return token, nil
	}
	// Waiters share one fetch, so it must not die with the first caller's context.
	v, err, _ := c.tokens.Do("token", func() (any, error) {
		if token, ok := c.cachedToken(); ok {
			return token, nil
		}
		return c.fetchToken(context.WithoutCancel(ctx))
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *SpotifyClient) cachedToken() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.expiresAt) {
		return c.token, true
	}
	return "", false
}

func (c *SpotifyClient) fetchToken(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp tokenResponse
	if err := c.do(req, &resp); err != nil {
		return "", fmt.Errorf("spotify token: %w", err)
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("spotify token: empty access token")
	}
	expiresAt := c.now().Add(time.Duration(resp.ExpiresIn)*time.Second - tokenExpiryMargin)

	c.mu.Lock()
	c.token = resp.AccessToken
	c.expiresAt = expiresAt
	c.mu.Unlock()
	return resp.AccessToken, nil
}

// dropToken forgets a token the API rejected so the next search fetches a new one.
func (c *SpotifyClient) dropToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == token {
		c.token = ""
		c.expiresAt = time.Time{}
	}
}

func (c *SpotifyClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error            json.RawMessage `json:"error"`
			ErrorDescription string          `json:"error_description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errorMessage(errResp.Error, errResp.ErrorDescription)
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// errorMessage handles both error shapes: the Web API nests
// {"error":{"status":..,"message":..}} while the token endpoint returns
// {"error":"invalid_client","error_description":".."}.
func errorMessage(raw json.RawMessage, description string) string {
	if description != "" {
		return description
	}
	if len(raw) == 0 {
		return ""
	}
	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil && nested.Message != "" {
		return nested.Message
	}
	var flat string
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat
	}
	return ""
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type searchResponse struct {
	Tracks struct {
		Items []trackItem `json:"items"`
	} `json:"tracks"`
}

type trackItem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PreviewURL string `json:"preview_url"`
	Artists    []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name   string `json:"name"`
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	} `json:"album"`
}

func (t trackItem) toTrack() domain.Track {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	track := domain.Track{
		ID:         t.ID,
		Name:       t.Name,
		Artist:     strings.Join(names, ", "),
		AlbumName:  t.Album.Name,
		PreviewURL: t.PreviewURL,
	}
	if len(t.Album.Images) > 0 {
		track.AlbumImage = t.Album.Images[0].URL
	}
	return track
}

var _ Searcher = (*SpotifyClient)(nil)
