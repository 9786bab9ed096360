package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/forest-guardian/geoforecast/internal/cache"
)

var ErrMalformedBody = errors.New("response is not valid JSON")

type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed: %d - %s", e.Code, e.Body)
}

type Options struct {
	Endpoint string
	ApiKey   string
	Units    string
	Lang     string
	// Cached responses younger than CacheTTL are reused, 0 disables it
	CacheTTL   time.Duration
	CacheDir   string
	HttpClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	opts   Options
	cache  *cache.FileCache[[]Entry]
	logger *slog.Logger
}

func NewClient(opts Options) *Client {
	if opts.HttpClient == nil {
		opts.HttpClient = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	c := &Client{opts: opts, logger: opts.Logger.With("module", "weather")}
	if opts.CacheTTL > 0 && opts.CacheDir != "" {
		c.cache = cache.NewFileCache[[]Entry](opts.CacheDir)
	}
	return c
}

func (c *Client) Units() string {
	return c.opts.Units
}

// Forecast issues a single forecast request for city and returns its list
// entries. There is no retry.
func (c *Client) Forecast(ctx context.Context, city string) ([]Entry, error) {
	var key string
	if c.cache != nil {
		key = c.cache.GenerateKey(city, c.opts.Units, c.opts.Lang)
		if entries, ok := c.cache.Get(key, c.opts.CacheTTL); ok {
			c.logger.Info("using cached forecast", "city", city)
			return entries, nil
		}
	}

	params := url.Values{}
	params.Set("q", city)
	params.Set("appid", c.opts.ApiKey)
	params.Set("units", c.opts.Units)
	params.Set("lang", c.opts.Lang)

	c.logger.Info("fetching forecast...", "city", city, "units", c.opts.Units)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build forecast request: %w", err)
	}
	res, err := c.opts.HttpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error getting forecast: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading forecast response body: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: res.StatusCode, Body: string(body)}
	}

	var forecast forecastResponse
	if err := json.Unmarshal(body, &forecast); err != nil {
		return nil, fmt.Errorf("%w: %v; body: %s", ErrMalformedBody, err, body)
	}

	if c.cache != nil {
		if err := c.cache.Set(key, forecast.List); err != nil {
			c.logger.Warn("failed to cache forecast", "error", err)
		}
	}
	return forecast.List, nil
}

// Export fetches the forecast for city and writes it as CSV to output.
// It returns the number of rows written.
func (c *Client) Export(ctx context.Context, city, output string) (int, error) {
	entries, err := c.Forecast(ctx, city)
	if err != nil {
		return 0, err
	}
	records := Reshape(entries, c.opts.Units)

	if dir := filepath.Dir(output); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	file, err := os.Create(output)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", output, err)
	}
	defer file.Close()

	if err := WriteCSV(file, records); err != nil {
		return 0, err
	}
	if err := file.Close(); err != nil {
		return 0, fmt.Errorf("failed to close %s: %w", output, err)
	}
	c.logger.Info("forecast written", "city", city, "rows", len(records), "output", output)
	return len(records), nil
}
