package geocode

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const censusBenchmark = "Public_AR_Current"

// censusLookup is the JSON shape of the Census one-line endpoint.
type censusLookup struct {
	Result struct {
		AddressMatches []struct {
			Coordinates struct {
				X float64 `json:"x"` // longitude
				Y float64 `json:"y"` // latitude
			} `json:"coordinates"`
		} `json:"addressMatches"`
	} `json:"result"`
}

// geocodeCensus geocodes a single address using the Census one-line API.
func (g *geocoder) geocodeCensus(ctx context.Context, addr AddressInput) (*Result, error) {
	params := url.Values{
		"address":   {formatOneLine(addr)},
		"benchmark": {censusBenchmark},
		"format":    {"json"},
	}

	var lookup censusLookup
	reqURL := g.censusBaseURL + "/geocoder/locations/onelineaddress?" + params.Encode()
	if err := g.getJSON(ctx, reqURL, "census", &lookup); err != nil {
		return nil, err
	}

	matches := lookup.Result.AddressMatches
	if len(matches) == 0 {
		zap.L().Debug("census returned no match", zap.String("address", formatOneLine(addr)))
		return &Result{Matched: false, Source: "census"}, nil
	}

	return &Result{
		Latitude:  matches[0].Coordinates.Y,
		Longitude: matches[0].Coordinates.X,
		Source:    "census",
		Quality:   "rooftop", // one-line matches are exact
		Matched:   true,
	}, nil
}

// batchGeocodeCensus uploads addresses to the Census batch endpoint as a
// CSV file and maps the response rows back to their inputs by row ID.
// The endpoint accepts up to 10,000 rows per call.
func (g *geocoder) batchGeocodeCensus(ctx context.Context, addrs []AddressInput) ([]Result, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: census batch rate limit")
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("benchmark", censusBenchmark); err != nil {
		return nil, eris.Wrap(err, "geocode: census batch benchmark field")
	}
	part, err := form.CreateFormFile("addressFile", "addresses.csv")
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census batch form file")
	}

	// Upload rows are id,street,city,state,zip.
	idToIdx := make(map[string]int, len(addrs))
	upload := csv.NewWriter(part)
	for i, addr := range addrs {
		id := addr.ID
		if id == "" {
			id = strconv.Itoa(i)
		}
		idToIdx[id] = i
		if err := upload.Write([]string{id, addr.Street, addr.City, addr.State, addr.ZipCode}); err != nil {
			return nil, eris.Wrap(err, "geocode: census batch write row")
		}
	}
	upload.Flush()
	if err := upload.Error(); err != nil {
		return nil, eris.Wrap(err, "geocode: census batch encode rows")
	}
	if err := form.Close(); err != nil {
		return nil, eris.Wrap(err, "geocode: census batch close form")
	}

	reqURL := g.censusBaseURL + "/geocoder/locations/addressbatch"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, &body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census batch build request")
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census batch request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: census batch returned status %d", resp.StatusCode)
	}

	zap.L().Debug("census batch submitted", zap.Int("addresses", len(addrs)))
	return parseCensusBatchResponse(resp.Body, idToIdx, len(addrs))
}

// parseCensusBatchResponse reads the batch response CSV. Matched rows carry
// id, input address, "Match", exactness, matched address, "lon,lat",
// TIGER line id, and side; unmatched rows stop after the third field.
func parseCensusBatchResponse(r io.Reader, idToIdx map[string]int, total int) ([]Result, error) {
	results := make([]Result, total)
	for i := range results {
		results[i] = Result{Matched: false, Source: "census"}
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census batch parse response")
	}

	for _, rec := range records {
		if len(rec) < 3 {
			continue
		}
		idx, ok := idToIdx[rec[0]]
		if !ok {
			continue
		}
		if !strings.EqualFold(rec[2], "Match") || len(rec) < 6 {
			continue
		}

		lon, lat, err := splitCoords(rec[5])
		if err != nil {
			zap.L().Warn("census batch row has bad coordinates",
				zap.String("id", rec[0]), zap.Error(err))
			continue
		}

		results[idx] = Result{
			Latitude:  lat,
			Longitude: lon,
			Source:    "census",
			Quality:   batchQuality(rec[3]),
			Matched:   true,
		}
	}
	return results, nil
}

// batchQuality maps Census batch exactness onto the quality scale shared
// with the other providers.
func batchQuality(exactness string) string {
	if strings.EqualFold(strings.TrimSpace(exactness), "exact") {
		return "rooftop"
	}
	return "range"
}

// splitCoords parses the "lon,lat" pair from a batch response row.
func splitCoords(s string) (lon, lat float64, err error) {
	lonStr, latStr, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, eris.Errorf("geocode: malformed coordinates %q", s)
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return 0, 0, eris.Wrap(err, "geocode: parse longitude")
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return 0, 0, eris.Wrap(err, "geocode: parse latitude")
	}
	return lon, lat, nil
}

// formatOneLine joins the populated address parts into the single-line
// form both providers accept.
func formatOneLine(addr AddressInput) string {
	var parts []string
	for _, p := range []string{addr.Street, addr.City, addr.State, addr.ZipCode} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
