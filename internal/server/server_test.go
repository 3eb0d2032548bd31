package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"btc-trend-watch/internal/alert"
	"btc-trend-watch/internal/feed"
	"btc-trend-watch/internal/series"
	"btc-trend-watch/internal/service"
)

type fakeSession struct {
	status  service.Status
	samples []series.PriceSample
	rules   []alert.Rule

	createErr error
	deleteErr error
	created   []alert.Rule
	deleted   []string
}

func (f *fakeSession) Status() service.Status { return f.status }

func (f *fakeSession) VisibleRange(span series.Span) []series.PriceSample {
	return series.SelectVisible(f.samples, span)
}

func (f *fakeSession) Rules() []alert.Rule { return f.rules }

func (f *fakeSession) CreateRule(_ context.Context, threshold decimal.Decimal, condition alert.Condition) (alert.Rule, error) {
	if f.createErr != nil {
		return alert.Rule{}, f.createErr
	}
	rule, err := alert.NewRule(threshold, condition)
	if err != nil {
		return alert.Rule{}, err
	}
	f.created = append(f.created, rule)
	return rule, nil
}

func (f *fakeSession) DeleteRule(_ context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func request(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestStatusEndpoint(t *testing.T) {
	price := decimal.RequireFromString("50123.45")
	sess := &fakeSession{status: service.Status{
		ConnectionState: feed.StateConnected,
		Healthy:         true,
		Trend:           series.TrendUp,
		Price:           &price,
		Samples:         120,
	}}
	srv := New("127.0.0.1:0", sess, zerolog.Nop())

	rec := request(t, srv, http.MethodGet, "/api/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["trend"] != "up" {
		t.Errorf("trend = %v, want up", got["trend"])
	}
	if got["healthy"] != true {
		t.Errorf("healthy = %v, want true", got["healthy"])
	}
}

func TestSeriesEndpointRanges(t *testing.T) {
	now := time.Now().UTC()
	sess := &fakeSession{samples: []series.PriceSample{
		{Time: now.Add(-2 * time.Hour), Price: decimal.NewFromInt(49000)},
		{Time: now.Add(-30 * time.Minute), Price: decimal.NewFromInt(49500)},
		{Time: now, Price: decimal.NewFromInt(50000)},
	}}
	srv := New("127.0.0.1:0", sess, zerolog.Nop())

	rec := request(t, srv, http.MethodGet, "/api/series?range=1h", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Range   string               `json:"range"`
		Samples []series.PriceSample `json:"samples"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Range != "1h" {
		t.Errorf("range = %q, want 1h", resp.Range)
	}
	if len(resp.Samples) != 2 {
		t.Errorf("visible samples = %d, want 2", len(resp.Samples))
	}

	rec = request(t, srv, http.MethodGet, "/api/series?range=3d", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid range status = %d, want 400", rec.Code)
	}
}

func TestCreateAlertValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"valid", `{"threshold":"50000","condition":"above"}`, http.StatusCreated},
		{"missing condition", `{"threshold":"50000"}`, http.StatusBadRequest},
		{"bad threshold", `{"threshold":"abc","condition":"above"}`, http.StatusBadRequest},
		{"negative threshold", `{"threshold":"-5","condition":"below"}`, http.StatusBadRequest},
		{"bad condition", `{"threshold":"50000","condition":"sideways"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New("127.0.0.1:0", &fakeSession{}, zerolog.Nop())
			rec := request(t, srv, http.MethodPost, "/api/alerts", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestCreateAlertAtCapacity(t *testing.T) {
	sess := &fakeSession{createErr: alert.ErrCapacity}
	srv := New("127.0.0.1:0", sess, zerolog.Nop())

	rec := request(t, srv, http.MethodPost, "/api/alerts", `{"threshold":"50000","condition":"above"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestDeleteAlert(t *testing.T) {
	sess := &fakeSession{}
	srv := New("127.0.0.1:0", sess, zerolog.Nop())

	rec := request(t, srv, http.MethodDelete, "/api/alerts/abc-123", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if len(sess.deleted) != 1 || sess.deleted[0] != "abc-123" {
		t.Errorf("deleted = %v, want [abc-123]", sess.deleted)
	}

	sess.deleteErr = alert.ErrNotFound
	rec = request(t, srv, http.MethodDelete, "/api/alerts/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestAlertsListEmptyIsArray(t *testing.T) {
	srv := New("127.0.0.1:0", &fakeSession{}, zerolog.Nop())
	rec := request(t, srv, http.MethodGet, "/api/alerts", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"rules":[]`) {
		t.Errorf("expected empty rules array, got %s", rec.Body.String())
	}
}
