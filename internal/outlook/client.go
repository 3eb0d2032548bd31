package outlook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"btc-trend-watch/internal/series"
)

const (
	// MaxPromptPoints caps how many samples are embedded in a prompt.
	MaxPromptPoints = 60
	// MinSamples below which generation is skipped entirely.
	MinSamples = 10

	defaultModel    = "gemini-2.5-flash"
	defaultBaseURL  = "https://generativelanguage.googleapis.com"
	defaultMaxWords = 30
)

var (
	// ErrRateLimited signals upstream throttling; the next scheduled
	// attempt proceeds normally.
	ErrRateLimited = errors.New("outlook service is under high demand, try again shortly")
	// ErrNotEnoughData signals a skipped generation.
	ErrNotEnoughData = fmt.Errorf("need at least %d samples for an outlook", MinSamples)
)

// Options parameterise the outlook client.
type Options struct {
	BaseURL  string
	APIKey   string
	Model    string
	Timeout  time.Duration
	MaxWords int
}

// Client requests a short natural-language market outlook from a
// text-generation service.
type Client struct {
	opts   Options
	client *resty.Client
	logger zerolog.Logger
}

// NewClient constructs the outlook client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxWords <= 0 {
		opts.MaxWords = defaultMaxWords
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Content-Type", "application/json")

	return &Client{
		opts:   opts,
		client: client,
		logger: logger.With().Str("component", "outlook").Logger(),
	}
}

// Generate requests a one-sentence short-term outlook for the given
// sample slice. Callers pass the recent window (about 30 minutes);
// the slice is downsampled to at most MaxPromptPoints, always keeping
// the newest sample.
func (c *Client) Generate(ctx context.Context, samples []series.PriceSample) (string, error) {
	if len(samples) < MinSamples {
		return "", ErrNotEnoughData
	}

	sampled := Downsample(samples, MaxPromptPoints)
	prompt := c.buildPrompt(sampled)

	var result generateResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("x-goog-api-key", c.opts.APIKey).
		SetBody(generateRequest{
			Contents: []content{{Parts: []part{{Text: prompt}}}},
		}).
		SetResult(&result).
		Post(fmt.Sprintf("/v1beta/models/%s:generateContent", c.opts.Model))
	if err != nil {
		return "", fmt.Errorf("outlook request: %w", err)
	}

	switch {
	case resp.StatusCode() == 429:
		return "", ErrRateLimited
	case resp.IsError():
		return "", fmt.Errorf("outlook service returned status %d", resp.StatusCode())
	}

	text := result.text()
	if text == "" {
		return "", errors.New("outlook service returned an empty response")
	}

	c.logger.Debug().Int("points", len(sampled)).Msg("outlook generated")
	return text, nil
}

func (c *Client) buildPrompt(samples []series.PriceSample) string {
	latest := samples[len(samples)-1]

	points := make([]string, 0, len(samples))
	for _, p := range samples {
		points = append(points, fmt.Sprintf("[%s, %s]",
			p.Time.UTC().Format("15:04:05"), p.Price.StringFixed(2)))
	}

	return fmt.Sprintf(`You are a succinct financial analyst providing speculative insights for a crypto dashboard.
Based on the recent BTC/USD price trend shown in the following data from the last ~30 minutes (format: [time, price]), provide a brief, one-sentence outlook for the next 15 minutes.
The most recent price is $%s.
Focus on potential short-term momentum and volatility. Do not use overly confident or definitive language. Do not give financial advice.
Keep your analysis under %d words.

Data: %s`, latest.Price.StringFixed(2), c.opts.MaxWords, strings.Join(points, ", "))
}

// Downsample reduces samples to at most max points by striding, always
// including the most recent sample.
func Downsample(samples []series.PriceSample, max int) []series.PriceSample {
	if max <= 0 || len(samples) <= max {
		return samples
	}

	step := len(samples) / max
	out := make([]series.PriceSample, 0, max+1)
	for i := 0; i < len(samples); i += step {
		out = append(out, samples[i])
	}

	last := samples[len(samples)-1]
	if !out[len(out)-1].Time.Equal(last.Time) {
		out = append(out, last)
	}
	return out
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (r generateResponse) text() string {
	if len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	return strings.TrimSpace(r.Candidates[0].Content.Parts[0].Text)
}
