package series

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Span is a named display range for the visible slice of the series.
type Span string

const (
	Span10S Span = "10s"
	Span1M  Span = "1m"
	Span15M Span = "15m"
	Span30M Span = "30m"
	Span1H  Span = "1h"
	Span6H  Span = "6h"
	Span12H Span = "12h"
	Span24H Span = "24h"
)

var spanDurations = map[Span]time.Duration{
	Span10S: 10 * time.Second,
	Span1M:  time.Minute,
	Span15M: 15 * time.Minute,
	Span30M: 30 * time.Minute,
	Span1H:  time.Hour,
	Span6H:  6 * time.Hour,
	Span12H: 12 * time.Hour,
	Span24H: 24 * time.Hour,
}

// ParseSpan normalises a user-supplied range name.
func ParseSpan(raw string) (Span, error) {
	span := Span(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := spanDurations[span]; !ok {
		return "", fmt.Errorf("unknown range %q (valid: %s)", raw, strings.Join(SpanNames(), ", "))
	}
	return span, nil
}

// Duration returns the span's length.
func (s Span) Duration() time.Duration {
	return spanDurations[s]
}

// SpanNames lists the valid span names, shortest first.
func SpanNames() []string {
	names := make([]string, 0, len(spanDurations))
	for span := range spanDurations {
		names = append(names, string(span))
	}
	sort.Slice(names, func(i, j int) bool {
		return spanDurations[Span(names[i])] < spanDurations[Span(names[j])]
	})
	return names
}

// SelectVisible returns the suffix of samples inside the span, anchored
// to the last stored sample rather than wall clock so the displayed
// window stays consistent when ingestion stalls. The boundary is
// inclusive.
func SelectVisible(samples []PriceSample, span Span) []PriceSample {
	if len(samples) == 0 {
		return nil
	}
	last := samples[len(samples)-1].Time
	return Since(samples, last.Add(-span.Duration()))
}
