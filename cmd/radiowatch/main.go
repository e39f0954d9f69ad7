// Command radiowatch plays internet radio stations and announces track
// changes on stdout. Stations come from a YAML catalog, preferences from the
// JSON config file.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/edward-ap/radiowatch/internal/catalog"
	"github.com/edward-ap/radiowatch/internal/config"
)

var (
	flagConfig   string
	flagStations string
)

var rootCmd = &cobra.Command{
	Use:           "radiowatch",
	Short:         "Internet radio player with track announcements",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config.json (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&flagStations, "stations", "", "path to stations.yaml (default: built-in catalog)")
	rootCmd.AddCommand(playCmd, stationsCmd, peekCmd)
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func loadConfig() (*config.Config, error) {
	if flagConfig != "" {
		cfg, err := config.LoadFrom(flagConfig)
		return cfg, errors.Wrap(err, "load config")
	}
	cfg, err := config.Load()
	return cfg, errors.Wrap(err, "load config")
}

func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	path := flagStations
	if path == "" {
		path = cfg.StationsFile
	}
	if path == "" {
		return catalog.Default(), nil
	}
	cat, err := catalog.Load(path)
	return cat, errors.Wrapf(err, "load stations from %s", path)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "radiowatch:", err)
		os.Exit(1)
	}
}
