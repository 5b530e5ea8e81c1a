// Package jimaku queries the Jimaku subtitle index: entry search by AniList
// id or free text, and per-entry file listings.
package jimaku

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ksyasuda/jimaku-dl/internal/apperrors"
	"github.com/ksyasuda/jimaku-dl/internal/cache"
	"github.com/ksyasuda/jimaku-dl/internal/config"
	"github.com/ksyasuda/jimaku-dl/internal/models"
)

// Client defines the interface for querying the Jimaku subtitle index.
type Client interface {
	// SearchEntries finds show-level entries. Lookup by AniList id is
	// preferred (exact-match semantics on the index side); the free-text
	// query is the fallback when no canonical id is known.
	SearchEntries(ctx context.Context, anilistID int, query string) ([]models.Entry, error)

	// ListFiles returns the downloadable files attached to an entry.
	// An entry with zero files yields ErrNoFiles, a normal condition.
	ListFiles(ctx context.Context, entryID int64) ([]models.File, error)
}

// client implements the Client interface.
type client struct {
	httpClient *http.Client
	baseURL    string
	apiToken   string
	cache      cache.Cache
}

// Option configures a client.
type Option func(*client)

// WithCache attaches a response cache so repeated invocations skip the network.
func WithCache(c cache.Cache) Option {
	return func(cl *client) {
		cl.cache = c
	}
}

// NewClient creates a Jimaku client. The API token is required by the
// service; requests without a valid token fail with ErrAuth.
func NewClient(httpClient *http.Client, baseURL, apiToken string, opts ...Option) Client {
	cl := &client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiToken:   apiToken,
	}
	for _, opt := range opts {
		opt(cl)
	}
	return cl
}

// SearchEntries finds show-level entries by AniList id or free text.
func (c *client) SearchEntries(ctx context.Context, anilistID int, query string) ([]models.Entry, error) {
	logger := config.GetLogger()

	params := url.Values{}
	if anilistID > 0 {
		params.Set("anilist_id", strconv.Itoa(anilistID))
	} else {
		params.Set("query", query)
	}
	endpoint := fmt.Sprintf("%s/api/entries/search?%s", c.baseURL, params.Encode())

	logger.Debug().Int("anilistID", anilistID).Str("query", query).Msg("Searching jimaku entries")

	var entries []models.Entry
	if err := c.getJSON(ctx, endpoint, &entries); err != nil {
		return nil, fmt.Errorf("searching entries: %w", err)
	}

	logger.Info().Int("anilistID", anilistID).Int("entries", len(entries)).Msg("Jimaku entry search complete")
	return entries, nil
}

// ListFiles returns the downloadable files attached to an entry.
func (c *client) ListFiles(ctx context.Context, entryID int64) ([]models.File, error) {
	logger := config.GetLogger()

	endpoint := fmt.Sprintf("%s/api/entries/%d/files", c.baseURL, entryID)
	logger.Debug().Int64("entryID", entryID).Msg("Listing jimaku entry files")

	var files []models.File
	if err := c.getJSON(ctx, endpoint, &files); err != nil {
		return nil, fmt.Errorf("listing files for entry %d: %w", entryID, err)
	}

	if len(files) == 0 {
		return nil, &apperrors.ErrNoFiles{EntryID: entryID}
	}

	logger.Info().Int64("entryID", entryID).Int("files", len(files)).Msg("Jimaku file listing complete")
	return files, nil
}

// getJSON performs an authenticated GET and decodes the JSON response into
// out, consulting the cache first. Authentication failures are a distinguished
// error kind so callers can report a token-specific message.
func (c *client) getJSON(ctx context.Context, endpoint string, out any) error {
	logger := config.GetLogger()

	cacheKey := cache.Key("jimaku", endpoint)
	if c.cache != nil {
		if cached, ok := c.cache.Get(cacheKey); ok {
			logger.Debug().Str("endpoint", endpoint).Msg("Jimaku cache hit")
			return json.Unmarshal(cached, out)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", c.apiToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", config.GetUserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to decoding
	case http.StatusUnauthorized, http.StatusForbidden:
		return &apperrors.ErrAuth{Status: resp.StatusCode, Message: upstreamMessage(raw)}
	default:
		return fmt.Errorf("jimaku returned status %d: %s", resp.StatusCode, upstreamMessage(raw))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("malformed response: %w", err)
	}

	if c.cache != nil {
		c.cache.Set(cacheKey, raw)
	}
	return nil
}

// upstreamMessage extracts the service's error text from a response body,
// falling back to the trimmed body itself.
func upstreamMessage(raw []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
