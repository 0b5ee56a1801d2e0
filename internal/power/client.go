// Package power fetches daily point data from the NASA POWER API for one
// station. Responses keep the upstream −999 sentinel for missing values;
// filtering happens when the dataset is loaded into the core, not here,
// so the raw file stays byte-compatible with the NASA export format.
package power

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"agroforecast/internal/timeseries"
)

const defaultBaseURL = "https://power.larc.nasa.gov/api/temporal/daily/point"

// SentinelMissing is the NASA POWER missing-value indicator.
const SentinelMissing = -999.0

// ErrNoData is returned when the API responds successfully but carries no
// values for the requested range. Absence of data is reported as such,
// never as zeros.
var ErrNoData = errors.New("no data for requested range")

// Client fetches the configured parameters for a fixed station location.
type Client struct {
	baseURL    string
	lat, lon   float64
	features   timeseries.FeatureSet
	httpClient *http.Client
	backoff    backoff
	circuit    *gobreaker.CircuitBreaker
}

// NewClient creates a POWER API client for one station.
func NewClient(httpClient *http.Client, lat, lon float64, features timeseries.FeatureSet) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "nasa-power",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Client{
		baseURL:    defaultBaseURL,
		lat:        lat,
		lon:        lon,
		features:   features,
		httpClient: httpClient,
		backoff: backoff{
			maxRetries: 3,
			initial:    500 * time.Millisecond,
			max:        5 * time.Second,
		},
		circuit: cb,
	}
}

// powerResponse mirrors the slice of the POWER JSON payload we consume:
// one date-keyed value map per requested parameter.
type powerResponse struct {
	Properties struct {
		Parameter map[string]map[string]float64 `json:"parameter"`
	} `json:"properties"`
}

// FetchDaily returns one observation per day in [start, end], ordered by
// date. Days where every parameter is missing upstream are absent from
// the response and are skipped; days with a partial reading carry the
// −999 sentinel in the missing columns.
func (c *Client) FetchDaily(ctx context.Context, start, end time.Time) ([]timeseries.Observation, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("parameters", strings.Join(c.features, ","))
		values.Set("community", "RE")
		values.Set("latitude", fmt.Sprintf("%g", c.lat))
		values.Set("longitude", fmt.Sprintf("%g", c.lon))
		values.Set("start", start.Format("20060102"))
		values.Set("end", end.Format("20060102"))
		values.Set("format", "JSON")

		u := fmt.Sprintf("%s?%s", c.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := c.do(ctx, buildRequest)
	if err != nil {
		return nil, fmt.Errorf("power fetch: %w", err)
	}
	defer resp.Body.Close()

	var payload powerResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("power fetch: decode: %w", err)
	}
	return c.parseParameters(payload.Properties.Parameter)
}

func (c *Client) parseParameters(params map[string]map[string]float64) ([]timeseries.Observation, error) {
	if len(params) == 0 {
		return nil, ErrNoData
	}

	// Union of dates across all requested parameters.
	dateSet := make(map[string]struct{})
	for _, f := range c.features {
		for d := range params[f] {
			dateSet[d] = struct{}{}
		}
	}
	if len(dateSet) == 0 {
		return nil, ErrNoData
	}

	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	obs := make([]timeseries.Observation, 0, len(dates))
	for _, d := range dates {
		date, err := time.Parse("20060102", d)
		if err != nil {
			continue
		}
		values := make([]float64, len(c.features))
		for i, f := range c.features {
			v, ok := params[f][d]
			if !ok {
				v = SentinelMissing
			}
			values[i] = v
		}
		obs = append(obs, timeseries.Observation{Date: date, Values: values})
	}
	if len(obs) == 0 {
		return nil, ErrNoData
	}
	return obs, nil
}
