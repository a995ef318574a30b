// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package geocode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/trialmatch/internal/errs"
	"github.com/pdiddy/trialmatch/pkg/types"
)

func newTestClient(ts *httptest.Server) *OpenCageClient {
	return &OpenCageClient{Client: ts.Client(), APIKey: "test-key", BaseURL: ts.URL}
}

func TestGeocodeSuccess(t *testing.T) {
	var captured *http.Request
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r
		fmt.Fprint(w, `{"results":[{"geometry":{"lat":40.7128,"lng":-74.006}},{"geometry":{"lat":1,"lng":2}}]}`)
	}))
	defer ts.Close()

	pt, err := newTestClient(ts).Geocode(context.Background(), "New York, NY")
	require.NoError(t, err)
	assert.Equal(t, types.GeoPoint{Latitude: 40.7128, Longitude: -74.006}, pt)

	q := captured.URL.Query()
	assert.Equal(t, "New York, NY", q.Get("q"))
	assert.Equal(t, "test-key", q.Get("key"))
}

func TestGeocodeErrors(t *testing.T) {
	tests := []struct {
		name     string
		location string
		status   int
		body     string
		want     error
	}{
		{name: "empty location", location: "  ", want: errs.ErrInvalidInput},
		{name: "no results", location: "Atlantis", status: http.StatusOK, body: `{"results":[]}`, want: errs.ErrLocationNotFound},
		{name: "missing results field", location: "Atlantis", status: http.StatusOK, body: `{}`, want: errs.ErrLocationNotFound},
		{name: "upstream 401", location: "Boston", status: http.StatusUnauthorized, body: `{"status":{"message":"invalid key"}}`, want: errs.ErrUpstreamUnavailable},
		{name: "upstream 500", location: "Boston", status: http.StatusInternalServerError, body: "oops", want: errs.ErrUpstreamUnavailable},
		{name: "garbage body", location: "Boston", status: http.StatusOK, body: "<html>", want: errs.ErrParseFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls++
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer ts.Close()

			_, err := newTestClient(ts).Geocode(context.Background(), tt.location)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			if tt.want == errs.ErrInvalidInput {
				assert.Equal(t, 0, calls, "empty location must not reach the geocoder")
			}
			if tt.want == errs.ErrUpstreamUnavailable {
				var ue *errs.UpstreamError
				require.True(t, errors.As(err, &ue))
				assert.Equal(t, tt.status, ue.StatusCode)
				assert.Equal(t, tt.body, ue.Body)
				assert.Equal(t, 1, calls, "geocoder must not retry")
			}
		})
	}
}

func TestGeocodeNetworkFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer ts.Close()

	c := newTestClient(ts)
	c.Client = &http.Client{Timeout: 20 * time.Millisecond}

	_, err := c.Geocode(context.Background(), "Chicago")
	assert.ErrorIs(t, err, errs.ErrUpstreamUnavailable)
}

func TestNewOpenCageClientDefaultsBase(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"results":[{"geometry":{"lat":1.5,"lng":2.5}}]}`)
	}))
	defer ts.Close()

	old := openCageBase
	openCageBase = ts.URL
	defer func() { openCageBase = old }()

	c := NewOpenCageClient(types.GeocodeConfig{HTTPConfig: types.HTTPConfig{Timeout: time.Second}, APIKey: "k"})
	pt, err := c.Geocode(context.Background(), "Somewhere")
	require.NoError(t, err)
	assert.Equal(t, 1.5, pt.Latitude)
}
