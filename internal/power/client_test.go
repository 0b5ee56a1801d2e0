package power

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agroforecast/internal/timeseries"
)

const samplePayload = `{
	"properties": {
		"parameter": {
			"QV2M": {"20240101": 11.2, "20240102": 11.5, "20240103": -999},
			"GWETROOT": {"20240101": 0.61, "20240103": 0.58}
		}
	}
}`

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(srv.Client(), 21.01, 105.83, timeseries.FeatureSet{"QV2M", "GWETROOT"})
	c.baseURL = srv.URL
	c.backoff.initial = time.Millisecond
	return c
}

func fetchRange() (time.Time, time.Time) {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
}

func TestFetchDailyParsesUnion(t *testing.T) {
	var gotQuery string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(samplePayload))
	}))

	start, end := fetchRange()
	obs, err := c.FetchDaily(context.Background(), start, end)
	require.NoError(t, err)
	require.Len(t, obs, 3)

	assert.Contains(t, gotQuery, "parameters=QV2M%2CGWETROOT")
	assert.Contains(t, gotQuery, "start=20240101")
	assert.Contains(t, gotQuery, "end=20240103")
	assert.Contains(t, gotQuery, "community=RE")

	// Ordered by date, sentinel filled where a parameter has no reading.
	assert.Equal(t, start, obs[0].Date)
	assert.Equal(t, []float64{11.2, 0.61}, obs[0].Values)
	assert.Equal(t, []float64{11.5, SentinelMissing}, obs[1].Values)
	assert.Equal(t, []float64{SentinelMissing, 0.58}, obs[2].Values)
}

func TestFetchDailyEmptyPayload(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"properties": {"parameter": {}}}`))
	}))

	start, end := fetchRange()
	_, err := c.FetchDaily(context.Background(), start, end)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestFetchDailyRetriesServerErrors(t *testing.T) {
	var calls int
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(samplePayload))
	}))

	start, end := fetchRange()
	obs, err := c.FetchDaily(context.Background(), start, end)
	require.NoError(t, err)
	assert.Len(t, obs, 3)
	assert.Equal(t, 3, calls)
}

func TestFetchDailyGivesUpAfterRetries(t *testing.T) {
	var calls int
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	start, end := fetchRange()
	_, err := c.FetchDaily(context.Background(), start, end)
	require.Error(t, err)
	assert.Equal(t, c.backoff.maxRetries+1, calls)
}

func TestFetchDailyUnexpectedStatus(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))

	start, end := fetchRange()
	_, err := c.FetchDaily(context.Background(), start, end)
	assert.ErrorContains(t, err, "unexpected status code")
}

func TestFetchDailyRespectsContext(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	c.backoff.initial = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start, end := fetchRange()
	_, err := c.FetchDaily(ctx, start, end)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetchDailyMalformedBody(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))

	start, end := fetchRange()
	_, err := c.FetchDaily(context.Background(), start, end)
	assert.ErrorContains(t, err, "decode")
}
