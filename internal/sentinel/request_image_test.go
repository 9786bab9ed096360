package sentinel

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/forest-guardian/geoforecast/internal/logging"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tileBound = orb.Bound{Min: orb.Point{-54.2, -31.4}, Max: orb.Point{-53.2, -30.4}}

func testClient(url string, clients int) *Client {
	list := make([]*http.Client, clients)
	for i := range list {
		list[i] = http.DefaultClient
	}
	return newClient(Config{
		ProcessURL:    url,
		Resolution:    0.0009,
		MaxCloudCover: 99,
	}, list, logging.Discard())
}

func TestBuildPayload(t *testing.T) {
	c := testClient("", 1)
	date := time.Date(2025, 3, 27, 15, 30, 0, 0, time.UTC)

	body, err := c.buildPayload(tileBound, date)
	require.NoError(t, err)

	var payload struct {
		Input struct {
			Bounds struct {
				Geometry struct {
					Type        string         `json:"type"`
					Coordinates [][][2]float64 `json:"coordinates"`
				} `json:"geometry"`
				Properties struct {
					Crs string `json:"crs"`
				} `json:"properties"`
			} `json:"bounds"`
			Data []struct {
				Type       string `json:"type"`
				DataFilter struct {
					TimeRange struct {
						From string `json:"from"`
						To   string `json:"to"`
					} `json:"timeRange"`
					MaxCloudCoverage float64 `json:"maxCloudCoverage"`
				} `json:"dataFilter"`
			} `json:"data"`
		} `json:"input"`
		Output struct {
			Resx float64 `json:"resx"`
			Resy float64 `json:"resy"`
		} `json:"output"`
		Evalscript string `json:"evalscript"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))

	assert.Equal(t, "Polygon", payload.Input.Bounds.Geometry.Type)
	require.Len(t, payload.Input.Bounds.Geometry.Coordinates, 1)
	assert.Contains(t, payload.Input.Bounds.Geometry.Coordinates[0], [2]float64{-54.2, -31.4})
	assert.Contains(t, payload.Input.Bounds.Geometry.Coordinates[0], [2]float64{-53.2, -30.4})
	assert.Equal(t, crsWGS84, payload.Input.Bounds.Properties.Crs)

	require.Len(t, payload.Input.Data, 1)
	assert.Equal(t, "sentinel-2-l2a", payload.Input.Data[0].Type)
	assert.Equal(t, "2025-03-27T00:00:00Z", payload.Input.Data[0].DataFilter.TimeRange.From)
	assert.Equal(t, "2025-03-27T23:59:59Z", payload.Input.Data[0].DataFilter.TimeRange.To)
	assert.Equal(t, 99.0, payload.Input.Data[0].DataFilter.MaxCloudCoverage)
	assert.Equal(t, 0.0009, payload.Output.Resx)
	assert.Equal(t, 0.0009, payload.Output.Resy)
	assert.Contains(t, payload.Evalscript, `"B04", "B08", "dataMask"`)
}

func TestRequestImageStatuses(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"not found is no data", http.StatusNotFound, ErrNoData},
		{"server error is transient", http.StatusBadGateway, ErrTransient},
		{"rate limit is transient", http.StatusTooManyRequests, ErrTransient},
		{"forbidden exhausts credentials", http.StatusForbidden, ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error":{"message":"nope"}}`))
			}))
			defer srv.Close()

			_, err := testClient(srv.URL, 1).RequestImage(context.Background(), tileBound, time.Now())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRequestImageBadRequestIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 1).RequestImage(context.Background(), tileBound, time.Now())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTransient)
	assert.NotErrorIs(t, err, ErrNoData)
}

func TestRequestImageFallsBackToNextCredential(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "evalscript")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte("TIFF"))
	}))
	defer srv.Close()

	body, err := testClient(srv.URL, 2).RequestImage(context.Background(), tileBound, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "TIFF", string(body))
	assert.Equal(t, int32(2), calls.Load())
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(Config{}, nil)
	assert.Error(t, err)

	_, err = NewClient(Config{ClientIDs: "a,b", ClientSecrets: "x", TokenURL: "http://token"}, nil)
	assert.ErrorContains(t, err, "mismatched")

	c, err := NewClient(Config{ClientIDs: "a,b", ClientSecrets: "x,y", TokenURL: "http://token"}, nil)
	require.NoError(t, err)
	assert.Len(t, c.clients, 2)
	assert.Equal(t, DefaultProcessURL, c.processURL)
}
