package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/abnlookup/pkg/abn"
	"github.com/hazyhaar/abnlookup/pkg/importer"
	"github.com/hazyhaar/abnlookup/pkg/search"
)

// stubService answers from fixed data and records the terms it was given.
type stubService struct {
	byABN  map[string]*abn.Record
	byName []abn.Record
	err    error
	terms  []string
}

func (s *stubService) SearchByABN(_ context.Context, id string) (*abn.Record, error) {
	s.terms = append(s.terms, id)
	if s.err != nil {
		return nil, s.err
	}
	return s.byABN[id], nil
}

func (s *stubService) SearchByName(_ context.Context, name string) ([]abn.Record, error) {
	s.terms = append(s.terms, name)
	if s.err != nil {
		return nil, s.err
	}
	return s.byName, nil
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newStub() *stubService {
	return &stubService{
		byABN: map[string]*abn.Record{
			"51824753556": {ABN: "51824753556", Name: "EXAMPLE HOLDINGS PTY LTD", Status: "Active"},
		},
		byName: []abn.Record{
			{ABN: "51824753556", Name: "EXAMPLE HOLDINGS PTY LTD", Score: 100},
			{ABN: "53004085616", Name: "EXAMPLE TRADING LTD", Score: 90},
		},
	}
}

func doRequest(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, searchResponse) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp searchResponse
	if strings.HasPrefix(target, "/v1/abn/") || strings.HasPrefix(target, "/v1/search") {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, target, err, rec.Body.String())
		}
	}
	return rec, resp
}

func TestLookupABN(t *testing.T) {
	svc := newStub()
	h := NewRouter(Config{Service: svc, Logger: quietLogger()})

	rec, resp := doRequest(t, h, "GET", "/v1/abn/51%20824%20753%20556", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("results = %d, want 1", len(resp.Results))
	}
	if got := resp.Results[0].FormattedABN; got != "51 824 753 556" {
		t.Errorf("formatted_abn = %q, want %q", got, "51 824 753 556")
	}
	if resp.Mode != "abn" || resp.Label != "ABN" || resp.Placeholder != "Enter 11-digit ABN" {
		t.Errorf("mode/label/placeholder = %q %q %q", resp.Mode, resp.Label, resp.Placeholder)
	}
	if len(svc.terms) != 1 || svc.terms[0] != "51824753556" {
		t.Errorf("service terms = %v, want [51824753556]", svc.terms)
	}
}

func TestLookupABN_NoMatch(t *testing.T) {
	h := NewRouter(Config{Service: newStub(), Logger: quietLogger()})

	rec, resp := doRequest(t, h, "GET", "/v1/abn/53004085616", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if resp.Results == nil || len(resp.Results) != 0 {
		t.Errorf("results = %v, want empty array", resp.Results)
	}
	if !strings.Contains(rec.Body.String(), `"results":[]`) {
		t.Errorf("body %s does not carry an empty results array", rec.Body.String())
	}
}

func TestLookupABN_Invalid(t *testing.T) {
	svc := newStub()
	h := NewRouter(Config{Service: svc, Logger: quietLogger()})

	rec, resp := doRequest(t, h, "GET", "/v1/abn/1234", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if resp.Error != "Please enter a valid 11-digit ABN" {
		t.Errorf("error = %q", resp.Error)
	}
	if len(svc.terms) != 0 {
		t.Errorf("service called with %v on invalid input", svc.terms)
	}
}

func TestSearchName(t *testing.T) {
	h := NewRouter(Config{Service: newStub(), Logger: quietLogger()})

	rec, resp := doRequest(t, h, "GET", "/v1/search?name=example", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(resp.Results) != 2 || resp.Results[0].ABN != "51824753556" || resp.Results[1].ABN != "53004085616" {
		t.Errorf("results = %+v", resp.Results)
	}
	if resp.Label != "Business Name" {
		t.Errorf("label = %q, want Business Name", resp.Label)
	}
}

func TestSearchName_TooShort(t *testing.T) {
	h := NewRouter(Config{Service: newStub(), Logger: quietLogger()})

	rec, resp := doRequest(t, h, "GET", "/v1/search?name=%20ab%20", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if resp.Error != "Please enter at least 3 characters for business name search" {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestSearchPost(t *testing.T) {
	svc := newStub()
	h := NewRouter(Config{Service: svc, Logger: quietLogger()})

	rec, resp := doRequest(t, h, "POST", "/v1/search", `{"mode":"name","term":"  example  "}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if resp.Mode != "name" || resp.Term != "  example  " {
		t.Errorf("mode/term = %q %q", resp.Mode, resp.Term)
	}
	if len(svc.terms) != 1 || svc.terms[0] != "example" {
		t.Errorf("service terms = %v, want [example]", svc.terms)
	}
}

func TestSearchPost_BadInput(t *testing.T) {
	h := NewRouter(Config{Service: newStub(), Logger: quietLogger()})

	tests := []struct {
		name string
		body string
	}{
		{"invalid JSON", `{"mode":`},
		{"unknown mode", `{"mode":"phone","term":"0400000000"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/v1/search", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestSearch_LookupFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"registry message", &search.LookupError{Op: "abn", Status: 200, Body: &search.ErrorBody{Message: "Search text is not a valid ABN or ACN"}}, "Search text is not a valid ABN or ACN"},
		{"transport failure", errors.New("connection refused"), search.FallbackMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newStub()
			svc.err = tt.err
			h := NewRouter(Config{Service: svc, Logger: quietLogger()})

			rec, resp := doRequest(t, h, "GET", "/v1/abn/51824753556", "")
			if rec.Code != http.StatusBadGateway {
				t.Errorf("status = %d, want 502", rec.Code)
			}
			if resp.Error != tt.want {
				t.Errorf("error = %q, want %q", resp.Error, tt.want)
			}
			if len(resp.Results) != 0 {
				t.Errorf("results = %v, want empty", resp.Results)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	h := NewRouter(Config{Service: newStub(), Logger: quietLogger()})

	req := httptest.NewRequest("GET", "/v1/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want abc-123", got)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/health", nil))
	if got := rec.Header().Get("X-Request-ID"); len(got) != 36 {
		t.Errorf("generated X-Request-ID = %q, want a UUID", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := NewRouter(Config{Service: newStub(), Logger: quietLogger()})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("OPTIONS", "/v1/search", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
}

func TestHealth(t *testing.T) {
	h := NewRouter(Config{
		Service: newStub(),
		Backend: "local",
		Count:   func(context.Context) (int, error) { return 42, nil },
		Logger:  quietLogger(),
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.Backend != "local" || resp.Records == nil || *resp.Records != 42 {
		t.Errorf("health = %+v", resp)
	}
}

func TestHealth_CountFails(t *testing.T) {
	h := NewRouter(Config{
		Service: newStub(),
		Count:   func(context.Context) (int, error) { return 0, errors.New("database is locked") },
		Logger:  quietLogger(),
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestListSources(t *testing.T) {
	sdb, err := importer.OpenSourceDB(filepath.Join(t.TempDir(), "sources.db"))
	if err != nil {
		t.Fatalf("OpenSourceDB: %v", err)
	}
	defer sdb.Close()
	if err := sdb.Seed(importer.All()); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	h := NewRouter(Config{Service: newStub(), Sources: sdb, Logger: quietLogger()})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/sources", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp sourcesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Sources) != len(importer.All()) {
		t.Errorf("sources = %d, want %d", len(resp.Sources), len(importer.All()))
	}
}

func TestListSources_NotMounted(t *testing.T) {
	h := NewRouter(Config{Service: newStub(), Logger: quietLogger()})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/sources", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
