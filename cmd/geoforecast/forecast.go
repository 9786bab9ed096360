package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/forest-guardian/geoforecast/internal/config"
	"github.com/forest-guardian/geoforecast/internal/weather"
	"github.com/spf13/cobra"
)

func newForecastCommand(a *app) *cobra.Command {
	var city, output string

	cmd := &cobra.Command{
		Use:   "forecast [location...]",
		Short: "Write the 5 day / 3 hour forecast of configured locations as CSV",
		Long: "Fetches the OpenWeatherMap forecast of each named location (all configured\n" +
			"locations when none is given) and writes one semicolon separated CSV per location.",
		RunE: func(cmd *cobra.Command, args []string) error {
			locations, err := pickLocations(a.cfg.Weather, args, city, output)
			if err != nil {
				return err
			}

			wc := a.cfg.Weather
			client := weather.NewClient(weather.Options{
				Endpoint:   wc.Endpoint,
				ApiKey:     wc.GetApiKey(),
				Units:      wc.Units,
				Lang:       wc.Lang,
				CacheTTL:   time.Duration(wc.CacheMinutes) * time.Minute,
				CacheDir:   resolvePath(filepath.Join("data", "cache", "forecast")),
				HttpClient: newHttpClient(a.cfg),
				Logger:     a.logger,
			})

			for _, l := range locations {
				rows, err := client.Export(cmd.Context(), l.City, resolvePath(l.Output))
				if err != nil {
					return fmt.Errorf("forecast for %s: %w", l.City, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows written to %s\n", l.City, rows, resolvePath(l.Output))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&city, "city", "", "ad hoc city query, used instead of the configured locations")
	cmd.Flags().StringVar(&output, "output", "previsao_tempo.csv", "CSV file for --city")
	return cmd
}

func pickLocations(wc config.AppConfigWeather, names []string, city, output string) ([]config.AppConfigLocation, error) {
	if city != "" {
		return []config.AppConfigLocation{{Name: city, City: city, Output: output}}, nil
	}
	if len(names) == 0 {
		if len(wc.Locations) == 0 {
			return nil, fmt.Errorf("no forecast location configured")
		}
		return wc.Locations, nil
	}
	locations := make([]config.AppConfigLocation, 0, len(names))
	for _, name := range names {
		l, ok := wc.Location(name)
		if !ok {
			return nil, fmt.Errorf("unknown location %q", name)
		}
		locations = append(locations, l)
	}
	return locations, nil
}
