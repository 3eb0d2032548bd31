package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestHistory(baseURL string) *History {
	return NewHistory(HistoryOptions{
		BaseURL:   baseURL,
		FromSym:   "BTC",
		ToSym:     "USD",
		Limit:     3,
		Timeout:   time.Second,
		UserAgent: "test",
	}, zerolog.Nop())
}

func TestFetchHistorySuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("fsym"); got != "BTC" {
			t.Fatalf("fsym = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"Response": "Success",
			"Data": map[string]any{
				"Data": []map[string]any{
					{"time": 1700000000, "close": 50000.5},
					{"time": 1700000060, "close": 0}, // gap rows are skipped
					{"time": 1700000120, "close": 50010.25},
				},
			},
		})
	}))
	defer srv.Close()

	samples, err := newTestHistory(srv.URL).FetchHistory(context.Background())
	if err != nil {
		t.Fatalf("FetchHistory: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if samples[0].Time.UnixMilli() != 1700000000000 {
		t.Fatalf("seconds not converted to ms: %d", samples[0].Time.UnixMilli())
	}
	if samples[0].Price.String() != "50000.5" {
		t.Fatalf("price = %s", samples[0].Price)
	}
}

func TestFetchHistoryRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	if _, err := newTestHistory(srv.URL).FetchHistory(context.Background()); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestFetchHistoryServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := newTestHistory(srv.URL).FetchHistory(context.Background()); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestFetchHistoryAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"Response": "Error",
			"Message":  "fsym param is invalid",
		})
	}))
	defer srv.Close()

	_, err := newTestHistory(srv.URL).FetchHistory(context.Background())
	if err == nil || err.Error() != "history API error: fsym param is invalid" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFetchHistoryEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"Response": "Success",
			"Data":     map[string]any{"Data": []map[string]any{}},
		})
	}))
	defer srv.Close()

	if _, err := newTestHistory(srv.URL).FetchHistory(context.Background()); !errors.Is(err, ErrEmptyHistory) {
		t.Fatalf("expected ErrEmptyHistory, got %v", err)
	}
}
