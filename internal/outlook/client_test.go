package outlook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"btc-trend-watch/internal/series"
)

func sampleSeries(n int) []series.PriceSample {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	out := make([]series.PriceSample, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, series.PriceSample{
			Time:  base.Add(time.Duration(i) * 30 * time.Second),
			Price: decimal.NewFromFloat(50000 + float64(i)),
		})
	}
	return out
}

func newTestClient(baseURL string) *Client {
	return NewClient(Options{
		BaseURL: baseURL,
		APIKey:  "test-key",
		Model:   "test-model",
		Timeout: time.Second,
	}, zerolog.Nop())
}

func TestGenerateSuccess(t *testing.T) {
	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "test-model:generateContent") {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Fatal("api key header missing")
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		gotPrompt = req.Contents[0].Parts[0].Text
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"parts": []map[string]string{{"text": "  Momentum looks mildly positive.\n"}},
				},
			}},
		})
	}))
	defer srv.Close()

	text, err := newTestClient(srv.URL).Generate(context.Background(), sampleSeries(20))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "Momentum looks mildly positive." {
		t.Fatalf("text = %q", text)
	}
	if !strings.Contains(gotPrompt, "$50019.00") {
		t.Fatalf("prompt should carry the latest price, got: %q", gotPrompt)
	}
}

func TestGenerateSkipsOnTooFewSamples(t *testing.T) {
	c := newTestClient("http://127.0.0.1:0")
	if _, err := c.Generate(context.Background(), sampleSeries(MinSamples-1)); !errors.Is(err, ErrNotEnoughData) {
		t.Fatalf("expected ErrNotEnoughData, got %v", err)
	}
}

func TestGenerateRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).Generate(context.Background(), sampleSeries(20)); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestGenerateEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).Generate(context.Background(), sampleSeries(20)); err == nil {
		t.Fatal("expected error for empty candidates")
	}
}

func TestDownsample(t *testing.T) {
	samples := sampleSeries(200)

	out := Downsample(samples, MaxPromptPoints)
	if len(out) > MaxPromptPoints+1 {
		t.Fatalf("downsample produced %d points", len(out))
	}
	last := samples[len(samples)-1]
	if !out[len(out)-1].Time.Equal(last.Time) {
		t.Fatal("most recent sample must be preserved")
	}

	small := sampleSeries(5)
	if got := Downsample(small, MaxPromptPoints); len(got) != 5 {
		t.Fatalf("short input should pass through, got %d", len(got))
	}
}
