package anilist

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ksyasuda/jimaku-dl/internal/apperrors"
	"github.com/ksyasuda/jimaku-dl/internal/cache"
)

const mediaJSON = `{
	"id": 21,
	"title": {"romaji": "One Piece", "english": "ONE PIECE", "native": "ワンピース"},
	"synonyms": ["OP"],
	"format": "TV",
	"episodes": 1000,
	"season": "FALL",
	"seasonYear": 1999
}`

func graphqlServer(t *testing.T, handler func(query string, variables map[string]any) (int, string)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding graphql request: %v", err)
		}
		status, body := handler(req.Query, req.Variables)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestClient_GetByID(t *testing.T) {
	server := graphqlServer(t, func(query string, variables map[string]any) (int, string) {
		if id, _ := variables["id"].(float64); int(id) != 21 {
			t.Errorf("expected id variable 21, got %v", variables["id"])
		}
		return http.StatusOK, `{"data": {"Media": ` + mediaJSON + `}}`
	})
	defer server.Close()

	c := NewClient(server.Client(), server.URL)
	media, err := c.GetByID(context.Background(), 21)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if media.ID != 21 {
		t.Errorf("ID = %d, want 21", media.ID)
	}
	if media.PreferredTitle() != "ONE PIECE" {
		t.Errorf("PreferredTitle = %q, want english title", media.PreferredTitle())
	}
	if media.Episodes != 1000 {
		t.Errorf("Episodes = %d, want 1000", media.Episodes)
	}
}

func TestClient_GetByID_Unknown(t *testing.T) {
	server := graphqlServer(t, func(string, map[string]any) (int, string) {
		return http.StatusNotFound, `{"data": {"Media": null}, "errors": [{"message": "Not Found.", "status": 404}]}`
	})
	defer server.Close()

	c := NewClient(server.Client(), server.URL)
	_, err := c.GetByID(context.Background(), 999999999)
	if !errors.Is(err, &apperrors.ErrResolution{}) {
		t.Fatalf("expected ErrResolution, got %v", err)
	}
}

func TestClient_Search_MultipleCandidatesPreserveOrder(t *testing.T) {
	server := graphqlServer(t, func(query string, variables map[string]any) (int, string) {
		if search, _ := variables["search"].(string); search != "Frieren" {
			t.Errorf("expected search variable Frieren, got %v", variables["search"])
		}
		return http.StatusOK, `{"data": {"Page": {"media": [
			{"id": 3, "title": {"romaji": "C"}},
			{"id": 1, "title": {"romaji": "A"}},
			{"id": 2, "title": {"romaji": "B"}}
		]}}}`
	})
	defer server.Close()

	c := NewClient(server.Client(), server.URL)
	results, err := c.Search(context.Background(), "Frieren")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	wantIDs := []int{3, 1, 2}
	if len(results) != len(wantIDs) {
		t.Fatalf("got %d results, want %d", len(results), len(wantIDs))
	}
	for i, want := range wantIDs {
		if results[i].ID != want {
			t.Errorf("results[%d].ID = %d, want %d (service order must be preserved)", i, results[i].ID, want)
		}
	}
}

func TestClient_Search_ZeroResults(t *testing.T) {
	server := graphqlServer(t, func(string, map[string]any) (int, string) {
		return http.StatusOK, `{"data": {"Page": {"media": []}}}`
	})
	defer server.Close()

	c := NewClient(server.Client(), server.URL)
	_, err := c.Search(context.Background(), "zzzzz no such show")
	if !errors.Is(err, &apperrors.ErrNoMatch{}) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
}

func TestClient_Search_ServerErrorSurfaced(t *testing.T) {
	server := graphqlServer(t, func(string, map[string]any) (int, string) {
		return http.StatusInternalServerError, `{"errors": [{"message": "Internal Server Error", "status": 500}]}`
	})
	defer server.Close()

	c := NewClient(server.Client(), server.URL)
	_, err := c.Search(context.Background(), "anything")
	if err == nil {
		t.Fatal("expected an error for HTTP 500")
	}
	if !errors.Is(err, &apperrors.ErrResolution{}) {
		t.Fatalf("expected ErrResolution, got %v", err)
	}
}

func TestClient_Search_UsesCache(t *testing.T) {
	var calls atomic.Int32
	server := graphqlServer(t, func(string, map[string]any) (int, string) {
		calls.Add(1)
		return http.StatusOK, `{"data": {"Page": {"media": [` + mediaJSON + `]}}}`
	})
	defer server.Close()

	responseCache, err := cache.New("memory", cache.ProviderConfig{Size: 8, TTL: time.Minute})
	if err != nil {
		t.Fatalf("creating cache: %v", err)
	}
	defer responseCache.Close()

	c := NewClient(server.Client(), server.URL, WithCache(responseCache))
	for i := 0; i < 3; i++ {
		if _, err := c.Search(context.Background(), "One Piece"); err != nil {
			t.Fatalf("Search #%d: %v", i, err)
		}
	}

	if got := calls.Load(); got != 1 {
		t.Errorf("expected a single upstream call, got %d", got)
	}
}
