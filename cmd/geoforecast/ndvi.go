package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/forest-guardian/geoforecast/internal/config"
	"github.com/forest-guardian/geoforecast/internal/grid"
	"github.com/forest-guardian/geoforecast/internal/ndvi"
	"github.com/forest-guardian/geoforecast/internal/properties"
	"github.com/forest-guardian/geoforecast/internal/region"
	"github.com/forest-guardian/geoforecast/internal/sentinel"
	"github.com/forest-guardian/geoforecast/internal/status"
	"github.com/spf13/cobra"
)

func newNdviCommand(a *app) *cobra.Command {
	var regionPath string
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "ndvi",
		Short: "Keep the most complete NDVI image of the last days for every quadrant of a region",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			nc := a.cfg.Ndvi
			if regionPath == "" {
				regionPath = nc.Region
			}
			if regionPath == "" {
				return fmt.Errorf("no region given, set ndvi.region or --region")
			}

			bound, err := region.Load(resolvePath(regionPath))
			if err != nil {
				return err
			}
			tiles, err := grid.Partition(bound, nc.QuadrantSize)
			if err != nil {
				return err
			}
			a.logger.Info("region partitioned", "region", regionPath, "quadrants", len(tiles))

			client, err := sentinel.NewClient(sentinel.Config{
				ProcessURL:    nc.ProcessUrl,
				TokenURL:      properties.CopernicusTokenUrl(),
				ClientIDs:     properties.CopernicusClientIDs(),
				ClientSecrets: properties.CopernicusClientSecrets(),
				Collection:    nc.Collection,
				Resolution:    nc.Resolution,
				MaxCloudCover: nc.MaxCloudCover,
				Timeout:       a.cfg.Http.Timeout,
			}, a.logger)
			if err != nil {
				return err
			}

			outputDir := resolvePath(nc.OutputDir)
			store, closeStore, err := openStore(ctx, a.cfg.Status, outputDir)
			if err != nil {
				return err
			}
			defer closeStore()

			selector := ndvi.NewSelector(client, nc.Backoff, a.logger)
			processor := ndvi.NewProcessor(selector, store, ndvi.GeoTIFFSink{Preview: nc.Preview, Logger: a.logger}, outputDir, a.logger).
				WithProgress(!noProgress)

			start := time.Now()
			summary, err := processor.Run(ctx, tiles, ndvi.LastDays(time.Now(), nc.Days))
			if err != nil {
				return err
			}
			a.logger.Info("ndvi finished", "summary", summary.String(), "took", time.Since(start).Round(time.Second))
			if err := a.notifier.SendSuccess(ctx, "NDVI: "+summary.String()); err != nil {
				a.logger.Warn("failed to send notification", "error", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&regionPath, "region", "", "vector file with the region boundary, overrides ndvi.region")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "do not draw the progress bar")
	return cmd
}

func openStore(ctx context.Context, sc config.AppConfigStatus, outputDir string) (status.Store, func(), error) {
	switch sc.Backend {
	case "sqlite":
		s, err := status.NewSQLiteStore(ctx, resolvePath(sc.SqlitePath))
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return status.NewFSStore(outputDir), func() {}, nil
	}
}

func newHttpClient(cfg *config.AppConfig) *http.Client {
	return &http.Client{Timeout: cfg.Http.Timeout}
}
