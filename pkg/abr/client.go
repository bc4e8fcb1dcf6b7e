// Package abr is a client for the Australian Business Register JSON web
// services (AbnDetails and MatchingNames). It satisfies search.LookupService.
//
// Responses are JSONP ("callback({...})"); the wrapper is stripped before
// decoding. A non-empty Message in the payload is the service's way of
// reporting a failure and is surfaced as the LookupError body message.
package abr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hazyhaar/abnlookup/pkg/abn"
	"github.com/hazyhaar/abnlookup/pkg/search"
)

const (
	DefaultBaseURL    = "https://abr.business.gov.au/json"
	DefaultTimeout    = 10 * time.Second
	DefaultMaxResults = 20

	maxBodySize = 1 << 20 // 1 MiB
)

// ErrMissingGUID is returned by New when no authentication GUID is configured.
var ErrMissingGUID = errors.New("abr: authentication guid is required")

// Config holds the client settings.
type Config struct {
	BaseURL       string
	GUID          string
	Timeout       time.Duration
	RatePerSecond float64 // 0 = unlimited
	MaxResults    int
	HTTPClient    *http.Client
	Logger        *slog.Logger
}

// Client queries the ABR web services.
type Client struct {
	baseURL    string
	guid       string
	maxResults int
	http       *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	if cfg.GUID == "" {
		return nil, ErrMissingGUID
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		guid:       cfg.GUID,
		maxResults: cfg.MaxResults,
		http:       cfg.HTTPClient,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     cfg.Logger,
	}, nil
}

// abnDetails is the AbnDetails.aspx payload.
type abnDetails struct {
	Abn                    string   `json:"Abn"`
	AbnStatus              string   `json:"AbnStatus"`
	AbnStatusEffectiveFrom string   `json:"AbnStatusEffectiveFrom"`
	Acn                    string   `json:"Acn"`
	AddressPostcode        string   `json:"AddressPostcode"`
	AddressState           string   `json:"AddressState"`
	BusinessName           []string `json:"BusinessName"`
	EntityName             string   `json:"EntityName"`
	EntityTypeCode         string   `json:"EntityTypeCode"`
	EntityTypeName         string   `json:"EntityTypeName"`
	Gst                    *string  `json:"Gst"`
	Message                string   `json:"Message"`
}

// matchingNames is the MatchingNames.aspx payload.
type matchingNames struct {
	Message string `json:"Message"`
	Names   []struct {
		Abn       string `json:"Abn"`
		AbnStatus string `json:"AbnStatus"`
		IsCurrent bool   `json:"IsCurrent"`
		Name      string `json:"Name"`
		NameType  string `json:"NameType"`
		Postcode  string `json:"Postcode"`
		Score     int    `json:"Score"`
		State     string `json:"State"`
	} `json:"Names"`
}

// SearchByABN fetches the current details for an ABN. It returns nil when
// the register has no entry.
func (c *Client) SearchByABN(ctx context.Context, id string) (*abn.Record, error) {
	q := url.Values{}
	q.Set("abn", id)

	var d abnDetails
	if err := c.get(ctx, "abn", "AbnDetails.aspx", q, &d); err != nil {
		return nil, err
	}
	if d.Message != "" {
		return nil, &search.LookupError{Op: "abn", Status: http.StatusOK, Body: &search.ErrorBody{Message: d.Message}}
	}
	if d.Abn == "" {
		return nil, nil
	}

	rec := &abn.Record{
		ABN:           d.Abn,
		Name:          d.EntityName,
		Status:        d.AbnStatus,
		EntityType:    d.EntityTypeName,
		State:         d.AddressState,
		Postcode:      d.AddressPostcode,
		BusinessNames: d.BusinessName,
	}
	if d.Gst != nil {
		rec.GST = *d.Gst
	}
	attrs := map[string]string{}
	if d.Acn != "" {
		attrs["acn"] = d.Acn
	}
	if d.EntityTypeCode != "" {
		attrs["entity_type_code"] = d.EntityTypeCode
	}
	if d.AbnStatusEffectiveFrom != "" {
		attrs["status_from"] = d.AbnStatusEffectiveFrom
	}
	if len(attrs) > 0 {
		rec.Attributes = attrs
	}
	return rec, nil
}

// SearchByName runs a fuzzy name search, returning at most MaxResults
// records in the service's relevance order.
func (c *Client) SearchByName(ctx context.Context, name string) ([]abn.Record, error) {
	q := url.Values{}
	q.Set("name", name)
	q.Set("maxResults", strconv.Itoa(c.maxResults))

	var m matchingNames
	if err := c.get(ctx, "name", "MatchingNames.aspx", q, &m); err != nil {
		return nil, err
	}
	if m.Message != "" {
		return nil, &search.LookupError{Op: "name", Status: http.StatusOK, Body: &search.ErrorBody{Message: m.Message}}
	}

	recs := make([]abn.Record, 0, len(m.Names))
	for _, n := range m.Names {
		r := abn.Record{
			ABN:      n.Abn,
			Name:     n.Name,
			Status:   n.AbnStatus,
			State:    n.State,
			Postcode: n.Postcode,
			Score:    n.Score,
			Attributes: map[string]string{
				"name_type":  n.NameType,
				"is_current": strconv.FormatBool(n.IsCurrent),
			},
		}
		recs = append(recs, r)
	}
	return recs, nil
}

// get performs a rate-limited GET against endpoint and decodes the JSONP body into v.
func (c *Client) get(ctx context.Context, op, endpoint string, q url.Values, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &search.LookupError{Op: op, Err: err}
	}

	q.Set("guid", c.guid)
	q.Set("callback", "callback")
	u := c.baseURL + "/" + endpoint + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &search.LookupError{Op: op, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return &search.LookupError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return &search.LookupError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	c.logger.Debug("abr request", "endpoint", endpoint, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &search.LookupError{
			Op:     op,
			Status: resp.StatusCode,
			Body:   errorBody(body),
			Err:    fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}

	if err := json.Unmarshal(unwrapJSONP(body), v); err != nil {
		return &search.LookupError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// unwrapJSONP strips a "name(...)" wrapper and trailing semicolon, if any.
func unwrapJSONP(b []byte) []byte {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] == '{' || b[0] == '[' {
		return b
	}
	open := bytes.IndexByte(b, '(')
	end := bytes.LastIndexByte(b, ')')
	if open < 0 || end <= open {
		return b
	}
	return bytes.TrimSpace(b[open+1 : end])
}

// errorBody extracts a message from an error response, accepting both
// {"message": ...} and the ABR {"Message": ...} shapes.
func errorBody(b []byte) *search.ErrorBody {
	var eb struct {
		Message string `json:"message"`
	}
	// encoding/json matches keys case-insensitively, so "Message" binds too.
	if err := json.Unmarshal(unwrapJSONP(b), &eb); err != nil || eb.Message == "" {
		return nil
	}
	return &search.ErrorBody{Message: eb.Message}
}
