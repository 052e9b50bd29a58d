package main

import (
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HammamiKhaled/geospython/internal/tiles"
)

var tilesCmd = &cobra.Command{
	Use:   "tiles",
	Short: "Manage the basemap tile cache",
}

var (
	seedBasemap string
	seedBBox    string
	seedMinZoom int
	seedMaxZoom int
)

var tilesSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Pre-fetch basemap tiles for a bounding box into the local store",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("seed"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		req := tiles.SeedRequest{
			Basemap: seedBasemap,
			MinZoom: seedMinZoom,
			MaxZoom: seedMaxZoom,
		}
		var err error
		req.MinLng, req.MinLat, req.MaxLng, req.MaxLat, err = parseBBoxFlag(seedBBox)
		if err != nil {
			return err
		}

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
		seeder := tiles.NewSeeder(proxy, st, cfg.Tiles.SeedWorkers)

		result, err := seeder.Seed(ctx, req)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d tiles, %d fetched, %d failed in %s\n",
			result.RunID, result.Total, result.Fetched, result.Failed,
			result.Duration.Round(time.Millisecond))
		return nil
	},
}

var tilesRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent seed runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.ListSeedRuns(ctx, 20)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, run := range runs {
			fmt.Fprintf(out, "%s  %-12s %-9s total=%d fetched=%d failed=%d started=%s\n",
				run.ID, run.Basemap, run.Status, run.Total, run.Fetched, run.Failed,
				run.StartedAt.Format("2006-01-02 15:04:05"))
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "no seed runs recorded")
		}
		return nil
	},
}

var pruneOlderThan time.Duration

var tilesPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete stored tiles older than a cutoff",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.PruneTiles(ctx, time.Now().Add(-pruneOlderThan))
		if err != nil {
			return err
		}

		zap.L().Info("tiles pruned", zap.Int64("removed", n))
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d tiles\n", n)
		return nil
	},
}

// parseBBoxFlag parses "minLng,minLat,maxLng,maxLat".
func parseBBoxFlag(raw string) (minLng, minLat, maxLng, maxLat float64, err error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return 0, 0, 0, 0, eris.New("bbox must be minLng,minLat,maxLng,maxLat")
	}

	vals := make([]float64, 4)
	for i, part := range parts {
		vals[i], err = strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return 0, 0, 0, 0, eris.Errorf("invalid bbox value %q", part)
		}
	}
	return vals[0], vals[1], vals[2], vals[3], nil
}

func init() {
	tilesSeedCmd.Flags().StringVar(&seedBasemap, "basemap", "OpenStreetMap", "basemap to seed")
	tilesSeedCmd.Flags().StringVar(&seedBBox, "bbox", "", "bounding box minLng,minLat,maxLng,maxLat")
	tilesSeedCmd.Flags().IntVar(&seedMinZoom, "min-zoom", 0, "lowest zoom level to seed")
	tilesSeedCmd.Flags().IntVar(&seedMaxZoom, "max-zoom", 8, "highest zoom level to seed")
	_ = tilesSeedCmd.MarkFlagRequired("bbox")

	tilesPruneCmd.Flags().DurationVar(&pruneOlderThan, "older-than", 720*time.Hour, "age cutoff for stored tiles")

	tilesCmd.AddCommand(tilesSeedCmd)
	tilesCmd.AddCommand(tilesRunsCmd)
	tilesCmd.AddCommand(tilesPruneCmd)
	rootCmd.AddCommand(tilesCmd)
}
