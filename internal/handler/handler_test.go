package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/web3-frozen/token-insight/internal/aggregator"
	"github.com/web3-frozen/token-insight/internal/analysis"
	"github.com/web3-frozen/token-insight/internal/monitor"
	"github.com/web3-frozen/token-insight/internal/store"
)

const wsol = "So11111111111111111111111111111111111111112"

type fakeGenerator struct {
	got    analysis.Request
	report *aggregator.Report
	err    error
	block  bool
}

func (g *fakeGenerator) Generate(ctx context.Context, req analysis.Request) (*aggregator.Report, error) {
	g.got = req
	if g.block {
		<-ctx.Done()
		return nil, fmt.Errorf("%s: %w: %w", req.Subject(), analysis.ErrCancelled, ctx.Err())
	}
	return g.report, g.err
}

type fakeSaver struct {
	saved int
	err   error
}

func (s *fakeSaver) SaveReport(ctx context.Context, r *aggregator.Report) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.saved++
	return int64(s.saved), nil
}

func postAnalysis(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/analysis", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeErrors(t *testing.T, rec *httptest.ResponseRecorder) []ValidationError {
	t.Helper()
	var body struct {
		Errors []ValidationError `json:"errors"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body.Errors
}

func TestAnalyzeSuccess(t *testing.T) {
	gen := &fakeGenerator{report: &aggregator.Report{Subject: "BONK:" + wsol, OverallScore: 64.2}}
	saver := &fakeSaver{}
	h := Analyze(gen, saver, time.Second, slog.Default())

	rec := postAnalysis(t, h, `{"symbol":"bonk","token_address":"`+wsol+`","repository":"acme/bonk"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body)
	}
	if gen.got.Chain != "solana" {
		t.Errorf("chain default not applied: %q", gen.got.Chain)
	}
	if saver.saved != 1 {
		t.Errorf("saved = %d, want 1", saver.saved)
	}
	var r aggregator.Report
	if err := json.NewDecoder(rec.Body).Decode(&r); err != nil || r.OverallScore != 64.2 {
		t.Errorf("report = %+v, %v", r, err)
	}
}

func TestAnalyzeDoesNotSaveCachedOrFailOnSaveError(t *testing.T) {
	cached := &aggregator.Report{Subject: "X"}
	cached.Metadata.Cached = true
	saver := &fakeSaver{}
	rec := postAnalysis(t, Analyze(&fakeGenerator{report: cached}, saver, time.Second, slog.Default()), `{"symbol":"x"}`)
	if rec.Code != http.StatusOK || saver.saved != 0 {
		t.Errorf("cached: status %d saved %d", rec.Code, saver.saved)
	}

	failing := &fakeSaver{err: errors.New("db down")}
	rec = postAnalysis(t, Analyze(&fakeGenerator{report: &aggregator.Report{}}, failing, time.Second, slog.Default()), `{"symbol":"x"}`)
	if rec.Code != http.StatusOK {
		t.Errorf("save failure: status %d", rec.Code)
	}
}

func TestAnalyzeValidation(t *testing.T) {
	h := Analyze(&fakeGenerator{report: &aggregator.Report{}}, nil, time.Second, slog.Default())
	tests := []struct {
		name  string
		body  string
		field string
		code  string
	}{
		{"missing symbol", `{"token_address":"` + wsol + `"}`, "symbol", "ERR_REQUIRED"},
		{"bad repository", `{"symbol":"x","repository":"nope"}`, "repository", "ERR_CONTAINS"},
		{"short address", `{"symbol":"x","token_address":"abc"}`, "token_address", "ERR_MIN"},
		{"nested social", `{"symbol":"x","social":{"subreddit":"` + strings.Repeat("a", 65) + `"}}`, "social.subreddit", "ERR_MAX"},
		{"invalid mint", `{"symbol":"x","token_address":"` + strings.Repeat("0", 44) + `"}`, "token_address", "ERR_MINT"},
		{"unknown field", `{"symbol":"x","colour":"red"}`, "", "ERR_INVALID_BODY"},
		{"not json", `symbol=x`, "", "ERR_INVALID_BODY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postAnalysis(t, h, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			errs := decodeErrors(t, rec)
			if len(errs) == 0 || errs[0].Field != tt.field || errs[0].Code != tt.code {
				t.Errorf("errors = %+v, want field %q code %q", errs, tt.field, tt.code)
			}
		})
	}
}

func TestAnalyzeBodyTooLarge(t *testing.T) {
	h := Analyze(&fakeGenerator{report: &aggregator.Report{}}, nil, time.Second, slog.Default())
	body := `{"symbol":"x","project_id":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	if rec := postAnalysis(t, h, body); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestAnalyzeErrorStatuses(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
		want int
	}{
		{"all unavailable", &fakeGenerator{err: fmt.Errorf("X: %w", aggregator.ErrAllDomainsUnavailable)}, http.StatusBadGateway},
		{"timeout", &fakeGenerator{block: true}, http.StatusGatewayTimeout},
		{"other", &fakeGenerator{err: errors.New("boom")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Analyze(tt.gen, nil, 20*time.Millisecond, slog.Default())
			if rec := postAnalysis(t, h, `{"symbol":"x"}`); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

type fakeHistory struct {
	filter string
	limit  int
	err    error
}

func (f *fakeHistory) ListReports(ctx context.Context, subject string, limit int) ([]store.StoredReport, error) {
	f.filter, f.limit = subject, limit
	return nil, f.err
}

func (f *fakeHistory) ListAlerts(ctx context.Context, symbol string, limit int) ([]store.StoredAlert, error) {
	f.filter, f.limit = symbol, limit
	if f.err != nil {
		return nil, f.err
	}
	return []store.StoredAlert{{ID: 1, Alert: monitor.Alert{Symbol: symbol}}}, nil
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestListReports(t *testing.T) {
	f := &fakeHistory{}
	h := ListReports(f, slog.Default())

	rec := get(h, "/api/reports?subject=BONK")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("status %d body %q", rec.Code, rec.Body)
	}
	if f.filter != "BONK" || f.limit != 20 {
		t.Errorf("filter %q limit %d", f.filter, f.limit)
	}

	for _, q := range []string{"limit=500", "limit=abc", "limit=-1"} {
		if rec := get(h, "/api/reports?"+q); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d", q, rec.Code)
		}
	}

	f.err = errors.New("db down")
	if rec := get(h, "/api/reports"); rec.Code != http.StatusInternalServerError {
		t.Errorf("store error: status %d", rec.Code)
	}
}

func TestListAlerts(t *testing.T) {
	f := &fakeHistory{}
	rec := get(ListAlerts(f, slog.Default()), "/api/alerts?symbol=WIF&limit=5")
	if rec.Code != http.StatusOK || f.limit != 5 || f.filter != "WIF" {
		t.Fatalf("status %d filter %q limit %d", rec.Code, f.filter, f.limit)
	}
	var alerts []store.StoredAlert
	if err := json.NewDecoder(rec.Body).Decode(&alerts); err != nil || len(alerts) != 1 || alerts[0].Symbol != "WIF" {
		t.Errorf("alerts = %+v, %v", alerts, err)
	}

	long := strings.Repeat("x", 129)
	rec = get(ListAlerts(f, slog.Default()), "/api/alerts?symbol="+long)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
	if errs := decodeErrors(t, rec); len(errs) != 1 || errs[0].Field != "symbol" {
		t.Errorf("errors = %+v", errs)
	}
}

type statuses []monitor.Status

func (s statuses) Statuses() []monitor.Status { return s }

func TestMonitors(t *testing.T) {
	rec := get(Monitors(nil), "/api/monitors")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("nil source body = %q", rec.Body)
	}

	rec = get(Monitors(statuses{{Symbol: "BONK", State: monitor.StateAlerting}}), "/api/monitors")
	var got []map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0]["state"] != "alerting" {
		t.Errorf("got = %v", got)
	}
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestHealthAndReady(t *testing.T) {
	if rec := get(Health(), "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("health = %d", rec.Code)
	}
	if rec := get(Ready(map[string]Pinger{"postgres": pinger{}}), "/readyz"); rec.Code != http.StatusOK {
		t.Errorf("ready = %d", rec.Code)
	}
	rec := get(Ready(map[string]Pinger{"postgres": pinger{}, "redis": pinger{errors.New("refused")}}), "/readyz")
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "redis") {
		t.Errorf("not ready = %d %s", rec.Code, rec.Body)
	}
}
