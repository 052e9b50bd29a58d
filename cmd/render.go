package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HammamiKhaled/geospython/internal/webmap"
)

var renderOut string

var renderCmd = &cobra.Command{
	Use:   "render <map.yaml>",
	Short: "Render a map document to a standalone HTML page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := webmap.LoadDocument(args[0])
		if err != nil {
			return err
		}

		m, err := doc.Build()
		if err != nil {
			return err
		}
		applyMapDefaults(m, doc)

		out := os.Stdout
		if renderOut != "" {
			f, err := os.Create(renderOut)
			if err != nil {
				return eris.Wrap(err, "render: create output file")
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		if err := m.RenderHTML(out); err != nil {
			return err
		}

		if renderOut != "" {
			zap.L().Info("map rendered",
				zap.String("document", args[0]),
				zap.String("output", renderOut),
				zap.Int("layers", len(m.Layers)),
			)
		}
		return nil
	},
}

// applyMapDefaults fills document gaps from configuration.
func applyMapDefaults(m *webmap.Map, doc *webmap.Document) {
	if len(doc.Center) != 2 && (cfg.Map.CenterLat != 0 || cfg.Map.CenterLng != 0) {
		m.Center = [2]float64{cfg.Map.CenterLat, cfg.Map.CenterLng}
	}
	if doc.Zoom == nil && cfg.Map.Zoom != 0 {
		m.Zoom = cfg.Map.Zoom
	}
	if doc.Height == "" && cfg.Map.Height != "" {
		m.Height = cfg.Map.Height
	}
	if doc.Basemap == "" && len(m.Layers) == 0 {
		m.AddBasemap(cfg.Map.Basemap)
	}
}

func init() {
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "", "output HTML file (default stdout)")
	rootCmd.AddCommand(renderCmd)
}
