package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/forest-guardian/geoforecast/internal/logging"
	"github.com/forest-guardian/geoforecast/internal/properties"
	"github.com/spf13/viper"
)

type AppConfigLocation struct {
	Name   string
	City   string // Passed as-is in the "q" query parameter
	Output string // CSV file, relative paths are resolved against ROOT_PATH
}

type AppConfigWeather struct {
	Endpoint string
	ApiKey   string `mapstructure:"api_key"`
	// "metric" (Celsius), "standard" (Kelvin) or "imperial" (Fahrenheit)
	Units string
	Lang  string
	// Reuse a cached response younger than this, 0 disables the cache
	CacheMinutes int `mapstructure:"cache_minutes"`
	Locations    []AppConfigLocation
}

func (w AppConfigWeather) GetApiKey() string {
	if w.ApiKey != "" {
		return w.ApiKey
	}
	return properties.OpenWeatherApiKey()
}

func (w AppConfigWeather) Location(name string) (AppConfigLocation, bool) {
	for _, l := range w.Locations {
		if strings.EqualFold(l.Name, name) {
			return l, true
		}
	}
	return AppConfigLocation{}, false
}

type AppConfigNdvi struct {
	Region       string  // Vector file with the region of interest boundary
	OutputDir    string  `mapstructure:"output_dir"`
	Resolution   float64 // Output pixel size in degrees (EPSG:4326)
	QuadrantSize float64 `mapstructure:"quadrant_size"` // Tile side in degrees
	// Number of days to scan, ending today
	Days          int
	Backoff       time.Duration // Pause after a server side failure
	Collection    string
	MaxCloudCover float64 `mapstructure:"max_cloud_cover"`
	// Write a PNG quicklook next to every GeoTIFF
	Preview    bool
	ProcessUrl string `mapstructure:"process_url"`
}

type AppConfigStatus struct {
	// "fs" or "sqlite"
	Backend    string
	SqlitePath string `mapstructure:"sqlite_path"`
}

type AppConfigHttp struct {
	// 0 means no client side timeout
	Timeout time.Duration
}

type AppConfigLogging struct {
	// Min log level for the console: "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	ConsoleLevel *string `mapstructure:"console_level"`
}

func (l AppConfigLogging) GetConsoleLevel() slog.Level {
	return logging.LevelFromString(l.ConsoleLevel)
}

type AppConfig struct {
	Weather AppConfigWeather
	Ndvi    AppConfigNdvi
	Status  AppConfigStatus
	Http    AppConfigHttp
	Logging AppConfigLogging
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("weather.endpoint", "https://api.openweathermap.org/data/2.5/forecast")
	v.SetDefault("weather.api_key", "")
	v.SetDefault("weather.units", "metric")
	v.SetDefault("weather.lang", "pt")
	v.SetDefault("weather.cache_minutes", 0)
	v.SetDefault("weather.locations", []map[string]any{
		{"name": "sao-paulo", "city": "São Paulo", "output": "previsao_tempo.csv"},
		{"name": "bage", "city": "Bagé", "output": "previsao_tempoBG2.csv"},
	})

	v.SetDefault("ndvi.region", "")
	v.SetDefault("ndvi.output_dir", "data/ndvi")
	v.SetDefault("ndvi.resolution", 0.0009)
	v.SetDefault("ndvi.quadrant_size", 1.0)
	v.SetDefault("ndvi.days", 15)
	v.SetDefault("ndvi.backoff", 10*time.Second)
	v.SetDefault("ndvi.collection", "sentinel-2-l2a")
	v.SetDefault("ndvi.max_cloud_cover", 99.0)
	v.SetDefault("ndvi.preview", false)
	v.SetDefault("ndvi.process_url", "https://sh.dataspace.copernicus.eu/api/v1/process")

	v.SetDefault("status.backend", "fs")
	v.SetDefault("status.sqlite_path", "data/tile_status.db")

	v.SetDefault("http.timeout", time.Duration(0))
	v.SetDefault("logging.console_level", "INFO")
}

// Load reads the YAML config at path, or config/config.yaml when path is
// empty. A missing default file is not an error, defaults apply.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("unable to read config file: %w", err)
		}
	}

	var c AppConfig
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config file: %w", err)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *AppConfig) validate() error {
	if c.Ndvi.QuadrantSize <= 0 {
		return fmt.Errorf("ndvi.quadrant_size must be positive, got %v", c.Ndvi.QuadrantSize)
	}
	if c.Ndvi.Resolution <= 0 {
		return fmt.Errorf("ndvi.resolution must be positive, got %v", c.Ndvi.Resolution)
	}
	if c.Ndvi.Days <= 0 {
		return fmt.Errorf("ndvi.days must be positive, got %d", c.Ndvi.Days)
	}
	switch c.Status.Backend {
	case "fs", "sqlite":
	default:
		return fmt.Errorf("unknown status.backend %q", c.Status.Backend)
	}
	return nil
}
