package noaa

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/geoclimate-etl/internal/domain"
	"github.com/couchcryptid/geoclimate-etl/internal/observability"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient("test-token", server.URL, 5*time.Second, discardLogger(), observability.NewMetricsForTesting())
}

func TestStationSearch_RequestShape(t *testing.T) {
	var gotPath, gotToken, gotBBox string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.Header.Get("token")
		gotBBox = r.URL.Query().Get("boundingBox")
		fmt.Fprint(w, `{"results":[],"metadata":{"totalCount":0}}`)
	})

	// West carries the larger longitude under the delta-sign convention; the
	// query must still order edges south,west,north,east by value.
	box := domain.Box{North: 49.39, West: -66.88, South: 24.39, East: -125.0}
	_, err := client.StationSearch(box).FetchPage(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, "/access/services/search/v1/data", gotPath)
	assert.Equal(t, "test-token", gotToken)
	assert.Equal(t, "24.390000,-125.000000,49.390000,-66.880000", gotBBox)
}

func TestDailySummaries_RequestShape(t *testing.T) {
	var query map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = map[string]string{}
		for k := range r.URL.Query() {
			query[k] = r.URL.Query().Get(k)
		}
		fmt.Fprint(w, `{"results":[],"metadata":{"totalCount":0}}`)
	})

	dr, err := domain.NewDateRange("2024-01-01", "2024-12-31")
	require.NoError(t, err)
	_, err = client.DailySummaries("USW00013904", dr).FetchPage(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, "daily-summaries", query["dataset"])
	assert.Equal(t, "TMIN,TMAX,PRCP,SNOW,SNWD,AWND", query["dataTypes"])
	assert.Equal(t, "USW00013904", query["stations"])
	assert.Equal(t, "2024-01-01", query["startDate"])
	assert.Equal(t, "2024-12-31", query["endDate"])
	assert.Equal(t, "json", query["format"])
	assert.Equal(t, "standard", query["units"])
	assert.Equal(t, "false", query["includeAttributes"])
	_, hasOffset := query["offset"]
	assert.False(t, hasOffset)
}

func TestFetchPage_OffsetParam(t *testing.T) {
	var gotOffset string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotOffset = r.URL.Query().Get("offset")
		fmt.Fprint(w, `{"results":[],"metadata":{"totalCount":0}}`)
	})

	box := domain.Box{}
	_, err := client.StationSearch(box).FetchPage(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, "50", gotOffset)
}

func TestFetchPage_ParsesEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "3")
		fmt.Fprint(w, `{
			"results": [{"id":"S1"},{"id":"S2"}],
			"metadata": {"next":"https://example.test/data?offset=25", "totalCount": 40}
		}`)
	})

	page, err := client.StationSearch(domain.Box{}).FetchPage(context.Background(), 0)
	require.NoError(t, err)

	assert.Len(t, page.Records, 2)
	assert.Equal(t, 40, page.TotalCount)
	assert.True(t, page.HasNext)
	assert.Equal(t, 25, page.NextOffset)
	assert.True(t, page.Rate.HasRemaining)
	assert.Equal(t, 3, page.Rate.Remaining)
	assert.False(t, page.Rate.HasRetryAfter)
}

func TestFetchPage_BadRequest(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown parameter", http.StatusBadRequest)
	})

	_, err := client.StationSearch(domain.Box{}).FetchPage(context.Background(), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "check query parameters")
	assert.NotErrorIs(t, err, domain.ErrMalformedResponse)
}

func TestFetchPage_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := client.StationSearch(domain.Box{}).FetchPage(context.Background(), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.NotErrorIs(t, err, domain.ErrMalformedResponse)
}

func TestFetchPage_MalformedBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>maintenance</html>`},
		{"missing results", `{"metadata":{"totalCount":10}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			})
			_, err := client.StationSearch(domain.Box{}).FetchPage(context.Background(), 0)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrMalformedResponse)
		})
	}
}

func TestParseRateHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "30")
	h.Set("X-RateLimit-Remaining", "2")
	info := parseRateHeaders(h)
	assert.True(t, info.HasRetryAfter)
	assert.Equal(t, 30*time.Second, info.RetryAfter)
	assert.True(t, info.HasRemaining)
	assert.Equal(t, 2, info.Remaining)

	info = parseRateHeaders(http.Header{})
	assert.False(t, info.HasRetryAfter)
	assert.False(t, info.HasRemaining)

	h = http.Header{}
	h.Set("Retry-After", "Wed, 21 Oct 2015 07:28:00 GMT")
	h.Set("X-RateLimit-Remaining", "lots")
	info = parseRateHeaders(h)
	assert.False(t, info.HasRetryAfter)
	assert.False(t, info.HasRemaining)
}

func TestOffsetFromNextURL(t *testing.T) {
	tests := []struct {
		name     string
		next     string
		offset   int
		expected bool
	}{
		{"absolute url with offset", "https://example.test/data?limit=25&offset=75", 75, true},
		{"empty string", "", 0, false},
		{"no offset param", "https://example.test/data?limit=25", 0, false},
		{"non-numeric offset", "https://example.test/data?offset=abc", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offset, ok := offsetFromNextURL(tt.next)
			assert.Equal(t, tt.expected, ok)
			assert.Equal(t, tt.offset, offset)
		})
	}
}
