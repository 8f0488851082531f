// Package noaa adapts the NOAA NCEI access services (station discovery search
// and daily-summaries data) to the fetch.PageSource contract.
package noaa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/geoclimate-etl/internal/domain"
	"github.com/couchcryptid/geoclimate-etl/internal/fetch"
	"github.com/couchcryptid/geoclimate-etl/internal/observability"
)

const (
	datasetDailySummaries = "daily-summaries"
	searchPath            = "/access/services/search/v1/data"
	dataPath              = "/access/services/data/v1"

	// dataTypes are the daily variables requested from the data endpoint.
	dataTypes = "TMIN,TMAX,PRCP,SNOW,SNWD,AWND"
)

// Client issues authenticated requests against the NCEI access services.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates an NCEI client. baseURL is overridable for tests; pass ""
// for the production endpoint.
func NewClient(token, baseURL string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if baseURL == "" {
		baseURL = "https://www.ncei.noaa.gov"
	}
	return &Client{
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		logger:     logger,
		metrics:    metrics,
	}
}

// StationSearch returns a page source over all stations inside the bounding
// box. The search endpoint expects south,west,north,east with west as the
// lesser longitude, so the box edges are ordered here rather than trusting
// the box's delta-sign convention.
func (c *Client) StationSearch(box domain.Box) fetch.PageSource {
	bbox := fmt.Sprintf("%f,%f,%f,%f",
		box.South, math.Min(box.West, box.East), box.North, math.Max(box.West, box.East))

	params := url.Values{
		"dataset":     {datasetDailySummaries},
		"boundingBox": {bbox},
		"fields":      {"id,latitude,longitude"},
	}
	return &pageSource{client: c, path: searchPath, params: params}
}

// DailySummaries returns a page source over one station's daily observations
// in the inclusive date range. The data endpoint serves the whole range in
// one response, so the source reports no continuation.
func (c *Client) DailySummaries(stationID string, r domain.DateRange) fetch.PageSource {
	params := url.Values{
		"dataset":           {datasetDailySummaries},
		"dataTypes":         {dataTypes},
		"stations":          {stationID},
		"startDate":         {r.Start},
		"endDate":           {r.End},
		"format":            {"json"},
		"units":             {"standard"},
		"includeAttributes": {"false"},
	}
	return &pageSource{client: c, path: dataPath, params: params}
}

// pageSource binds a Client to one endpoint + query, fetching pages by offset.
type pageSource struct {
	client *Client
	path   string
	params url.Values
}

func (s *pageSource) FetchPage(ctx context.Context, offset int) (fetch.Page, error) {
	params := s.params
	if offset > 0 {
		params = cloneValues(params)
		params.Set("offset", strconv.Itoa(offset))
	}
	fullURL := s.client.baseURL + s.path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fetch.Page{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("token", s.client.token)

	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		return fetch.Page{}, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	rate := parseRateHeaders(resp.Header)

	if resp.StatusCode == http.StatusBadRequest {
		// Parameter errors never recover on retry; call them out separately.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fetch.Page{}, fmt.Errorf("bad request, check query parameters: %s", body)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fetch.Page{}, fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}

	var envelope struct {
		Results  []json.RawMessage `json:"results"`
		Metadata struct {
			Next       string `json:"next"`
			TotalCount int    `json:"totalCount"`
		} `json:"metadata"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fetch.Page{}, fmt.Errorf("%w: decode body: %v", domain.ErrMalformedResponse, err)
	}
	if envelope.Results == nil {
		return fetch.Page{}, fmt.Errorf("%w: no results field", domain.ErrMalformedResponse)
	}

	page := fetch.Page{
		Records:    envelope.Results,
		TotalCount: envelope.Metadata.TotalCount,
		Rate:       rate,
	}
	if next, ok := offsetFromNextURL(envelope.Metadata.Next); ok {
		page.NextOffset = next
		page.HasNext = true
	}
	return page, nil
}

// parseRateHeaders reads the provider's quota metadata. Retry-After is whole
// seconds; X-RateLimit-Remaining is a request count.
func parseRateHeaders(h http.Header) fetch.RateInfo {
	var info fetch.RateInfo
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			info.RetryAfter = time.Duration(secs) * time.Second
			info.HasRetryAfter = true
		}
	}
	if v := h.Get("X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			info.Remaining = n
			info.HasRemaining = true
		}
	}
	return info
}

// offsetFromNextURL extracts the offset query parameter from the metadata
// continuation URL.
func offsetFromNextURL(next string) (int, bool) {
	if next == "" {
		return 0, false
	}
	u, err := url.Parse(next)
	if err != nil {
		return 0, false
	}
	v := u.Query().Get("offset")
	if v == "" {
		return 0, false
	}
	offset, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return offset, true
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
