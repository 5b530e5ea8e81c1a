// Package anilist resolves free-text show titles to canonical AniList media
// records over the AniList GraphQL API.
package anilist

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ksyasuda/jimaku-dl/internal/apperrors"
	"github.com/ksyasuda/jimaku-dl/internal/cache"
	"github.com/ksyasuda/jimaku-dl/internal/config"
	"github.com/ksyasuda/jimaku-dl/internal/models"
)

// searchPerPage caps how many candidates one fuzzy search returns. Only the
// first page is requested; the service's own relevance order is preserved.
const searchPerPage = 10

const mediaFields = `
id
title {
  romaji
  english
  native
}
synonyms
format
episodes
season
seasonYear`

var mediaByIDQuery = fmt.Sprintf(`query ($id: Int) {
  Media(id: $id, type: ANIME) {%s
  }
}`, mediaFields)

var mediaSearchQuery = fmt.Sprintf(`query ($search: String, $perPage: Int) {
  Page(page: 1, perPage: $perPage) {
    media(search: $search, type: ANIME) {%s
    }
  }
}`, mediaFields)

// Client defines the interface for resolving shows against AniList.
type Client interface {
	// GetByID fetches the canonical record for a known AniList id.
	GetByID(ctx context.Context, id int) (*models.Media, error)

	// Search performs a fuzzy title search and returns up to searchPerPage
	// candidates in the service's relevance order.
	Search(ctx context.Context, title string) ([]models.Media, error)
}

// client implements the Client interface.
type client struct {
	httpClient *http.Client
	endpoint   string
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

// NewClient creates an AniList client talking to the given GraphQL endpoint.
func NewClient(httpClient *http.Client, endpoint string, opts ...Option) Client {
	cl := &client{
		httpClient: httpClient,
		endpoint:   endpoint,
	}
	for _, opt := range opts {
		opt(cl)
	}
	return cl
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphqlError struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

// GetByID fetches the canonical record for a known AniList id.
func (c *client) GetByID(ctx context.Context, id int) (*models.Media, error) {
	logger := config.GetLogger()
	logger.Debug().Int("id", id).Msg("Resolving AniList media by id")

	data, err := c.execute(ctx, mediaByIDQuery, map[string]any{"id": id})
	if err != nil {
		return nil, &apperrors.ErrResolution{ID: id, Message: err.Error()}
	}

	var payload struct {
		Media *models.Media `json:"Media"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &apperrors.ErrResolution{ID: id, Message: fmt.Sprintf("malformed response: %v", err)}
	}
	if payload.Media == nil {
		return nil, &apperrors.ErrResolution{ID: id, Message: "no media in response"}
	}

	logger.Info().Int("id", id).Str("title", payload.Media.PreferredTitle()).Msg("Resolved AniList media")
	return payload.Media, nil
}

// Search performs a fuzzy title search, first page only.
func (c *client) Search(ctx context.Context, title string) ([]models.Media, error) {
	logger := config.GetLogger()
	logger.Debug().Str("title", title).Msg("Searching AniList")

	data, err := c.execute(ctx, mediaSearchQuery, map[string]any{
		"search":  title,
		"perPage": searchPerPage,
	})
	if err != nil {
		return nil, &apperrors.ErrResolution{Message: err.Error()}
	}

	var payload struct {
		Page struct {
			Media []models.Media `json:"media"`
		} `json:"Page"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &apperrors.ErrResolution{Message: fmt.Sprintf("malformed response: %v", err)}
	}

	if len(payload.Page.Media) == 0 {
		return nil, &apperrors.ErrNoMatch{Query: title}
	}

	logger.Info().Str("title", title).Int("candidates", len(payload.Page.Media)).Msg("AniList search complete")
	return payload.Page.Media, nil
}

// execute posts a GraphQL request and returns the raw data payload, consulting
// the cache first. GraphQL errors inside a 200 response are surfaced, never
// swallowed.
func (c *client) execute(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	logger := config.GetLogger()

	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	cacheKey := requestCacheKey(body)
	if c.cache != nil {
		if cached, ok := c.cache.Get(cacheKey); ok {
			logger.Debug().Str("key", cacheKey).Msg("AniList cache hit")
			return json.RawMessage(cached), nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", config.GetUserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var payload graphqlResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("status %d with malformed body: %w", resp.StatusCode, err)
	}

	if len(payload.Errors) > 0 {
		first := payload.Errors[0]
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, first.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	if c.cache != nil {
		c.cache.Set(cacheKey, payload.Data)
	}
	return payload.Data, nil
}

// requestCacheKey derives a stable cache key from the serialized request.
func requestCacheKey(body []byte) string {
	sum := sha256.Sum256(body)
	return cache.Key("anilist", hex.EncodeToString(sum[:8]))
}
