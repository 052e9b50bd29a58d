package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HammamiKhaled/geospython/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "geospython",
	Short: "Geospatial analysis and interactive mapping toolkit",
	Long:  "Builds interactive Leaflet maps from GeoJSON and shapefile data, proxies and seeds basemap tiles, geocodes addresses, and serves it all over HTTP.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
