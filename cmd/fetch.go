package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HammamiKhaled/geospython/internal/fetch"
)

var fetchDest string

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Download a dataset over HTTP or FTP, extracting ZIP archives",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		fetcher := fetch.New(fetch.Options{
			UserAgent:  cfg.Tiles.UserAgent,
			Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
			MaxRetries: cfg.Fetch.MaxRetries,
			TempDir:    cfg.Fetch.TempDir,
		})

		result, err := fetcher.Dataset(ctx, args[0], fetchDest)
		if err != nil {
			return err
		}

		zap.L().Info("dataset fetched",
			zap.String("url", result.URL),
			zap.Int64("bytes", result.Bytes),
			zap.Bool("extracted", result.Extracted),
			zap.Int("files", len(result.Files)),
		)

		out := cmd.OutOrStdout()
		for _, file := range result.Files {
			fmt.Fprintln(out, file)
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchDest, "dest", "d", "", "destination directory (default temp dir)")
	rootCmd.AddCommand(fetchCmd)
}
