package sentinel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

var (
	// ErrNoData means the collection holds no usable acquisition for the
	// requested day and area.
	ErrNoData = errors.New("no data available")
	// ErrTransient covers server side and network failures.
	ErrTransient = errors.New("transient server error")
	// ErrUnauthorized is returned once every credential pair was rejected.
	ErrUnauthorized = errors.New("unauthorized access, check your client ID and secret")
)

const DefaultProcessURL = "https://sh.dataspace.copernicus.eu/api/v1/process"

const crsWGS84 = "http://www.opengis.net/def/crs/EPSG/0/4326"

const ndviEvalscript = `
//VERSION=3
function setup() {
  return {
    input: [{ bands: ["B04", "B08", "dataMask"] }],
    output: {
      id: "default",
      bands: 1,
      sampleType: SampleType.FLOAT32,
    },
  }
}

function evaluatePixel(sample) {
  if (sample.dataMask === 0) {
    return [NaN];
  }
  return [index(sample.B08, sample.B04)];
}
`

type Config struct {
	ProcessURL string
	TokenURL   string
	// Comma separated, tried in order when a pair is rejected
	ClientIDs     string
	ClientSecrets string
	Collection    string
	// Pixel size in degrees
	Resolution    float64
	MaxCloudCover float64
	// 0 means no timeout
	Timeout time.Duration
}

type Client struct {
	processURL    string
	collection    string
	resolution    float64
	maxCloudCover float64
	clients       []*http.Client
	logger        *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.ClientIDs == "" || cfg.ClientSecrets == "" || cfg.TokenURL == "" {
		return nil, fmt.Errorf("missing required environment variables: COPERNICUS_CLIENT_ID, COPERNICUS_CLIENT_SECRET, or COPERNICUS_TOKEN_URL")
	}
	clientIDList := strings.Split(cfg.ClientIDs, ",")
	clientSecretList := strings.Split(cfg.ClientSecrets, ",")
	if len(clientIDList) != len(clientSecretList) {
		return nil, fmt.Errorf("mismatched number of client IDs and secrets")
	}

	// the oauth2 transport wraps the client found in the context
	base := &http.Client{Timeout: cfg.Timeout}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	clients := make([]*http.Client, 0, len(clientIDList))
	for i, clientID := range clientIDList {
		config := &clientcredentials.Config{
			ClientID:     strings.TrimSpace(clientID),
			ClientSecret: strings.TrimSpace(clientSecretList[i]),
			TokenURL:     cfg.TokenURL,
		}
		clients = append(clients, config.Client(ctx))
	}
	return newClient(cfg, clients, logger), nil
}

func newClient(cfg Config, clients []*http.Client, logger *slog.Logger) *Client {
	if cfg.ProcessURL == "" {
		cfg.ProcessURL = DefaultProcessURL
	}
	if cfg.Collection == "" {
		cfg.Collection = "sentinel-2-l2a"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		processURL:    cfg.ProcessURL,
		collection:    cfg.Collection,
		resolution:    cfg.Resolution,
		maxCloudCover: cfg.MaxCloudCover,
		clients:       clients,
		logger:        logger.With("module", "sentinel"),
	}
}

func (c *Client) buildPayload(bound orb.Bound, date time.Time) ([]byte, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	startDateStr := day.Format(time.RFC3339)
	endDateStr := day.Add(time.Hour*23 + time.Minute*59 + time.Second*59).Format(time.RFC3339)

	geometry, err := geojson.NewGeometry(bound.ToPolygon()).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode tile geometry: %w", err)
	}

	requestPayload := map[string]interface{}{
		"input": map[string]interface{}{
			"bounds": map[string]interface{}{
				"geometry": json.RawMessage(geometry),
				"properties": map[string]string{
					"crs": crsWGS84,
				},
			},
			"data": []map[string]interface{}{
				{
					"type": c.collection,
					"dataFilter": map[string]interface{}{
						"timeRange": map[string]string{
							"from": startDateStr,
							"to":   endDateStr,
						},
						"maxCloudCoverage": c.maxCloudCover,
						"mosaickingOrder":  "leastCC",
					},
				},
			},
		},
		"output": map[string]interface{}{
			"resx": c.resolution,
			"resy": c.resolution,
			"responses": []map[string]interface{}{
				{
					"identifier": "default",
					"format": map[string]string{
						"type": "image/tiff",
					},
				},
			},
		},
		"evalscript": ndviEvalscript,
	}

	requestBody, err := json.Marshal(requestPayload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}
	return requestBody, nil
}

// RequestImage downloads the NDVI GeoTIFF of bound for the day of date.
// Rejected credentials fall through to the next configured pair.
func (c *Client) RequestImage(ctx context.Context, bound orb.Bound, date time.Time) ([]byte, error) {
	requestBody, err := c.buildPayload(bound, date)
	if err != nil {
		return nil, err
	}

	for i, httpClient := range c.clients {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.processURL, bytes.NewReader(requestBody))
		if err != nil {
			return nil, fmt.Errorf("failed to build process request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "image/tiff")

		response, err := httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			var retrieveErr *oauth2.RetrieveError
			if errors.As(err, &retrieveErr) && isAuthStatus(retrieveErr.Response) {
				c.logger.Warn("credential rejected, trying next", "client", i+1, "error", err)
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrTransient, err)
		}

		body, err := io.ReadAll(response.Body)
		response.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read response body: %v", ErrTransient, err)
		}

		switch {
		case response.StatusCode == http.StatusOK:
			return body, nil
		case response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusForbidden:
			c.logger.Warn("credential rejected, trying next", "client", i+1, "status", response.StatusCode)
			continue
		case response.StatusCode == http.StatusNotFound:
			return nil, fmt.Errorf("%w: %s", ErrNoData, body)
		case response.StatusCode == http.StatusTooManyRequests || response.StatusCode >= 500:
			return nil, fmt.Errorf("%w: status %d: %s", ErrTransient, response.StatusCode, body)
		default:
			return nil, fmt.Errorf("process request failed with status %d: %s", response.StatusCode, body)
		}
	}
	return nil, ErrUnauthorized
}

func isAuthStatus(res *http.Response) bool {
	return res != nil && (res.StatusCode == http.StatusUnauthorized ||
		res.StatusCode == http.StatusForbidden || res.StatusCode == http.StatusBadRequest)
}
