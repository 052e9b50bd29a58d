package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HammamiKhaled/geospython/internal/postgis"
	"github.com/HammamiKhaled/geospython/internal/server"
	"github.com/HammamiKhaled/geospython/internal/store"
	"github.com/HammamiKhaled/geospython/internal/tiles"
	"github.com/HammamiKhaled/geospython/internal/vector"
	"github.com/HammamiKhaled/geospython/internal/webmap"
)

var (
	servePort   int
	serveLayers []string
	serveDoc    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the map viewer, vector layers, and basemap tiles over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		proxy := tiles.NewProxy(
			newTileCache(),
			tiles.WithStore(st),
			tiles.WithUpstreamRate(cfg.Tiles.UpstreamRate),
			tiles.WithUserAgent(cfg.Tiles.UserAgent),
		)

		opts := server.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Proxy:          proxy,
			Store:          st,
		}

		if cfg.PostGIS.DatabaseURL != "" {
			provider, err := postgis.New(ctx, cfg.PostGIS.DatabaseURL)
			if err != nil {
				return err
			}
			defer provider.Close()
			opts.PostGIS = provider
			zap.L().Info("postgis layers enabled")
		}

		if serveDoc != "" {
			doc, err := webmap.LoadDocument(serveDoc)
			if err != nil {
				return err
			}
			viewer, err := doc.Build()
			if err != nil {
				return err
			}
			opts.Viewer = viewer
		}

		srv := server.New(opts)

		for _, path := range serveLayers {
			layer, err := vector.Read(path)
			if err != nil {
				return err
			}
			name := layer.Name
			if name == "" {
				name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			}
			srv.RegisterLayer(name, layer)
			zap.L().Info("layer registered",
				zap.String("name", name),
				zap.String("source", path),
				zap.Int("features", len(layer.Features.Features)),
			)
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		return srv.Run(ctx, fmt.Sprintf(":%d", port))
	},
}

// openStore opens the sqlite store and applies migrations.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// newTileCache builds the in-memory tile cache from configuration.
func newTileCache() *tiles.Cache {
	ttl, err := time.ParseDuration(cfg.Tiles.CacheTTL)
	if err != nil {
		ttl = time.Hour
	}
	return tiles.NewCache(cfg.Tiles.CacheSize, ttl)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringSliceVar(&serveLayers, "layer", nil, "vector files to serve (repeatable)")
	serveCmd.Flags().StringVar(&serveDoc, "map", "", "YAML map document for the viewer page")
	rootCmd.AddCommand(serveCmd)
}
