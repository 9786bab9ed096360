package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"

	"github.com/airbusgeo/godal"
	"github.com/common-nighthawk/go-figure"
	bannercolor "github.com/fatih/color"
	"github.com/forest-guardian/geoforecast/internal/config"
	"github.com/forest-guardian/geoforecast/internal/logging"
	"github.com/forest-guardian/geoforecast/internal/notification"
	"github.com/forest-guardian/geoforecast/internal/properties"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// app is filled by the root command before any subcommand runs.
type app struct {
	cfg      *config.AppConfig
	logger   *slog.Logger
	notifier *notification.Discord
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	defer func() {
		if r := recover(); r != nil {
			bannercolor.Red("PANIC: %v", r)
			a.notifyError(fmt.Sprintf("geoforecast panic:\n\n%v\n\nStack trace:\n%s", r, debug.Stack()))
			os.Exit(2)
		}
	}()

	if err := newRootCommand(a).ExecuteContext(ctx); err != nil {
		bannercolor.Red("Error: %s", err.Error())
		a.notifyError(err.Error())
		stop()
		os.Exit(1)
	}
}

func (a *app) notifyError(message string) {
	if a.notifier == nil {
		a.notifier = notification.NewDiscordFromEnv()
	}
	if err := a.notifier.SendError(context.Background(), message); err != nil {
		bannercolor.Red("Failed to send notification: %s", err.Error())
	}
}

func printBanner() {
	bannercolor.Cyan(figure.NewFigure("GeoForecast", "", true).String())
	fmt.Println()
}

func newRootCommand(a *app) *cobra.Command {
	var configPath string
	var verbose, quiet bool

	cmd := &cobra.Command{
		Use:   "geoforecast",
		Short: "Weather forecast CSV export and NDVI quadrant mosaics",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// .env is optional, the environment may already be set
			_ = godotenv.Load()
			a.notifier = notification.NewDiscordFromEnv()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			level := cfg.Logging.GetConsoleLevel()
			if verbose {
				level = slog.LevelDebug
			}
			a.cfg = cfg
			a.logger = logging.NewConsoleLogger(cmd.ErrOrStderr(), level)
			slog.SetDefault(a.logger)

			godal.RegisterAll()
			if !quiet {
				printBanner()
			}
			return nil
		},
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (default config/config.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	flags.BoolVarP(&quiet, "quiet", "q", false, "do not print the banner")

	cmd.AddCommand(newForecastCommand(a), newNdviCommand(a))
	return cmd
}

// resolvePath anchors relative paths to ROOT_PATH when it is set.
func resolvePath(p string) string {
	root := properties.RootPath()
	if p == "" || filepath.IsAbs(p) || root == "" {
		return p
	}
	return filepath.Join(root, p)
}
