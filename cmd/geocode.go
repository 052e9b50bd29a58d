package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HammamiKhaled/geospython/internal/store"
	"github.com/HammamiKhaled/geospython/pkg/geocode"
)

var (
	geocodeCity    string
	geocodeState   string
	geocodeZip     string
	geocodeBatch   string
	geocodeReverse []float64
	geocodeNoCache bool
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode [street]",
	Short: "Geocode addresses via the Census Geocoder with Nominatim fallback",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("geocode"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		opts := []geocode.Option{
			geocode.WithRateLimit(cfg.Geocode.RatePerSec),
			geocode.WithNominatimURL(cfg.Geocode.NominatimURL),
		}

		if !geocodeNoCache {
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			opts = append(opts, geocode.WithCache(&store.GeocodeCache{
				Store:   st,
				TTLDays: cfg.Geocode.CacheTTLDays,
			}))
		}

		client := geocode.NewClient(opts...)
		out := cmd.OutOrStdout()

		if len(geocodeReverse) > 0 {
			if len(geocodeReverse) != 2 {
				return eris.New("geocode: --reverse takes lat,lng")
			}
			result, err := client.Reverse(ctx, geocodeReverse[0], geocodeReverse[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(out, result.DisplayName)
			return nil
		}

		if geocodeBatch != "" {
			return runBatchGeocode(ctx, cmd, client)
		}

		if len(args) == 0 {
			return eris.New("geocode: provide a street address, --batch file, or --reverse lat,lng")
		}

		result, err := client.Geocode(ctx, geocode.AddressInput{
			Street:  args[0],
			City:    geocodeCity,
			State:   geocodeState,
			ZipCode: geocodeZip,
		})
		if err != nil {
			return err
		}

		if !result.Matched {
			fmt.Fprintln(out, "no match")
			return nil
		}
		fmt.Fprintf(out, "%.6f,%.6f source=%s quality=%s\n",
			result.Latitude, result.Longitude, result.Source, result.Quality)
		return nil
	},
}

// runBatchGeocode reads street,city,state,zip rows from a CSV file and writes
// the same rows back with latitude, longitude, and source columns appended.
func runBatchGeocode(ctx context.Context, cmd *cobra.Command, client geocode.Client) error {
	f, err := os.Open(geocodeBatch)
	if err != nil {
		return eris.Wrap(err, "geocode: open batch file")
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	var addrs []geocode.AddressInput
	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return eris.Wrap(err, "geocode: read batch file")
		}
		if len(record) < 4 {
			return eris.Errorf("geocode: batch rows need street,city,state,zip, got %d columns", len(record))
		}
		rows = append(rows, record)
		addrs = append(addrs, geocode.AddressInput{
			Street:  record[0],
			City:    record[1],
			State:   record[2],
			ZipCode: record[3],
		})
	}

	results, err := client.BatchGeocode(ctx, addrs)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(cmd.OutOrStdout())
	matched := 0
	for i, row := range rows {
		result := results[i]
		if result.Matched {
			matched++
			row = append(row,
				strconv.FormatFloat(result.Latitude, 'f', 6, 64),
				strconv.FormatFloat(result.Longitude, 'f', 6, 64),
				result.Source,
			)
		} else {
			row = append(row, "", "", "")
		}
		if err := writer.Write(row); err != nil {
			return eris.Wrap(err, "geocode: write output row")
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return eris.Wrap(err, "geocode: flush output")
	}

	zap.L().Info("batch geocode complete",
		zap.Int("total", len(rows)),
		zap.Int("matched", matched),
	)
	return nil
}

func init() {
	geocodeCmd.Flags().StringVar(&geocodeCity, "city", "", "address city")
	geocodeCmd.Flags().StringVar(&geocodeState, "state", "", "address state")
	geocodeCmd.Flags().StringVar(&geocodeZip, "zip", "", "address zip code")
	geocodeCmd.Flags().StringVar(&geocodeBatch, "batch", "", "CSV file of street,city,state,zip rows")
	geocodeCmd.Flags().Float64SliceVar(&geocodeReverse, "reverse", nil, "reverse geocode lat,lng")
	geocodeCmd.Flags().BoolVar(&geocodeNoCache, "no-cache", false, "skip the persistent geocode cache")
	rootCmd.AddCommand(geocodeCmd)
}
