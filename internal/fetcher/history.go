package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"btc-trend-watch/internal/series"
)

const histoMinutePath = "/v2/histominute"

var (
	// ErrRateLimited maps the upstream 429 to a user-facing message.
	ErrRateLimited = errors.New("history API rate limit reached, wait a moment before retrying")
	// ErrUpstream maps 5xx responses to a user-facing message.
	ErrUpstream = errors.New("history service temporarily unavailable")
	// ErrEmptyHistory indicates a well-formed but useless payload.
	ErrEmptyHistory = errors.New("history API returned no data")
)

// HistoryOptions parameterise the CryptoCompare bootstrap fetch.
type HistoryOptions struct {
	BaseURL   string
	FromSym   string
	ToSym     string
	Limit     int
	Timeout   time.Duration
	UserAgent string
}

// History fetches minute-resolution close prices from CryptoCompare.
// It performs exactly one request; failure is surfaced to the caller
// and retried only by an operator reload.
type History struct {
	opts    HistoryOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewHistory constructs the bootstrap fetcher.
func NewHistory(opts HistoryOptions, logger zerolog.Logger) *History {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://min-api.cryptocompare.com/data"
	}
	if opts.FromSym == "" {
		opts.FromSym = "BTC"
	}
	if opts.ToSym == "" {
		opts.ToSym = "USD"
	}
	if opts.Limit <= 0 {
		opts.Limit = 1439
	}

	return &History{
		opts:    opts,
		logger:  logger.With().Str("component", "history_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchHistory returns up to Limit+1 minute closes, oldest first, with
// second-resolution upstream timestamps converted to milliseconds.
func (h *History) FetchHistory(ctx context.Context) ([]series.PriceSample, error) {
	endpoint := fmt.Sprintf("%s%s?fsym=%s&tsym=%s&limit=%d",
		h.baseURL, histoMinutePath, h.opts.FromSym, h.opts.ToSym, h.opts.Limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(h.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("history request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read history response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode >= 500:
		return nil, ErrUpstream
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("history API returned status %d", resp.StatusCode)
	}

	var parsed histoMinuteResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("decode history payload: %w", err)
	}

	if strings.EqualFold(parsed.Response, "Error") {
		if parsed.Message != "" {
			return nil, fmt.Errorf("history API error: %s", parsed.Message)
		}
		return nil, errors.New("history API returned an unspecified error")
	}
	if len(parsed.Data.Data) == 0 {
		return nil, ErrEmptyHistory
	}

	samples := make([]series.PriceSample, 0, len(parsed.Data.Data))
	for _, point := range parsed.Data.Data {
		if point.Close <= 0 {
			continue
		}
		samples = append(samples, series.PriceSample{
			Time:  time.UnixMilli(point.Time * 1000),
			Price: decimal.NewFromFloat(point.Close),
		})
	}
	if len(samples) == 0 {
		return nil, ErrEmptyHistory
	}

	h.logger.Info().Int("samples", len(samples)).Msg("bootstrap history loaded")
	return samples, nil
}

type histoMinuteResponse struct {
	Response string `json:"Response"`
	Message  string `json:"Message"`
	Data     struct {
		TimeFrom int64 `json:"TimeFrom"`
		TimeTo   int64 `json:"TimeTo"`
		Data     []struct {
			Time  int64   `json:"time"`
			Close float64 `json:"close"`
		} `json:"Data"`
	} `json:"Data"`
}

var _ HistoryFetcher = (*History)(nil)
