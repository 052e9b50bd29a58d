package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HammamiKhaled/geospython/internal/vector"
)

var vectorCmd = &cobra.Command{
	Use:   "vector",
	Short: "Inspect and convert vector datasets",
}

var vectorInfoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "Summarize a GeoJSON or shapefile dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		layer, err := vector.Read(args[0])
		if err != nil {
			return err
		}

		stats := vector.Summarize(layer.Features)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "source:    %s\n", layer.Source)
		fmt.Fprintf(out, "features:  %d\n", stats.FeatureCount)

		types := make([]string, 0, len(stats.GeometryTypes))
		for name := range stats.GeometryTypes {
			types = append(types, name)
		}
		sort.Strings(types)
		for _, name := range types {
			fmt.Fprintf(out, "geometry:  %s (%d)\n", name, stats.GeometryTypes[name])
		}

		if len(stats.Properties) > 0 {
			fmt.Fprintf(out, "properties: %s\n", strings.Join(stats.Properties, ", "))
		}
		if stats.Bounds != nil {
			fmt.Fprintf(out, "bounds:    %s\n", stats.Bounds)
		}
		return nil
	},
}

var vectorConvertCmd = &cobra.Command{
	Use:   "convert <in> <out.geojson>",
	Short: "Convert a shapefile or GeoJSON file to GeoJSON",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if ext := strings.ToLower(filepath.Ext(args[1])); ext != ".geojson" && ext != ".json" {
			return eris.Errorf("vector: output must be .geojson or .json, got %q", ext)
		}

		layer, err := vector.Read(args[0])
		if err != nil {
			return err
		}

		if err := vector.WriteGeoJSON(args[1], layer.Features); err != nil {
			return err
		}

		zap.L().Info("vector converted",
			zap.String("in", args[0]),
			zap.String("out", args[1]),
			zap.Int("features", len(layer.Features.Features)),
		)
		return nil
	},
}

var vectorExportCmd = &cobra.Command{
	Use:   "export <in> <out.csv|out.xlsx>",
	Short: "Export a dataset's attribute table to CSV or XLSX",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		layer, err := vector.Read(args[0])
		if err != nil {
			return err
		}

		switch ext := strings.ToLower(filepath.Ext(args[1])); ext {
		case ".csv":
			err = vector.ExportCSV(args[1], layer.Features)
		case ".xlsx":
			err = vector.ExportXLSX(args[1], layer.Features)
		default:
			return eris.Errorf("vector: output must be .csv or .xlsx, got %q", ext)
		}
		if err != nil {
			return err
		}

		zap.L().Info("attributes exported",
			zap.String("in", args[0]),
			zap.String("out", args[1]),
		)
		return nil
	},
}

func init() {
	vectorCmd.AddCommand(vectorInfoCmd)
	vectorCmd.AddCommand(vectorConvertCmd)
	vectorCmd.AddCommand(vectorExportCmd)
	rootCmd.AddCommand(vectorCmd)
}
