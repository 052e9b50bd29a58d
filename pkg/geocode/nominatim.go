package geocode

import (
	"context"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"
)

type nominatimSearchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Class       string `json:"class"`
	Type        string `json:"type"`
}

type nominatimReverseResult struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		HouseNumber string `json:"house_number"`
		Road        string `json:"road"`
		City        string `json:"city"`
		Town        string `json:"town"`
		Village     string `json:"village"`
		State       string `json:"state"`
		Postcode    string `json:"postcode"`
		Country     string `json:"country"`
	} `json:"address"`
}

// geocodeNominatim geocodes an address via the Nominatim search API. Used as
// a fallback when the Census geocoder cannot match.
func (g *geocoder) geocodeNominatim(ctx context.Context, addr AddressInput) (*Result, error) {
	if g.nominatimBaseURL == "" {
		return nil, eris.New("geocode: nominatim disabled")
	}

	params := url.Values{
		"q":      {formatOneLine(addr)},
		"format": {"json"},
		"limit":  {"1"},
	}

	var results []nominatimSearchResult
	reqURL := g.nominatimBaseURL + "/search?" + params.Encode()
	if err := g.getJSON(ctx, reqURL, "nominatim", &results); err != nil {
		return nil, err
	}

	if len(results) == 0 {
		return &Result{Matched: false, Source: "nominatim"}, nil
	}

	hit := results[0]
	lat, err := strconv.ParseFloat(hit.Lat, 64)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse lat")
	}
	lng, err := strconv.ParseFloat(hit.Lon, 64)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse lon")
	}

	quality := "approximate"
	if hit.Class == "building" || hit.Type == "house" {
		quality = "rooftop"
	}

	return &Result{
		Latitude:  lat,
		Longitude: lng,
		Source:    "nominatim",
		Quality:   quality,
		Matched:   true,
	}, nil
}

// Reverse looks up the nearest address for a coordinate pair.
func (g *geocoder) Reverse(ctx context.Context, lat, lng float64) (*ReverseResult, error) {
	if g.nominatimBaseURL == "" {
		return nil, eris.New("geocode: reverse geocoding requires nominatim")
	}

	params := url.Values{
		"lat":    {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon":    {strconv.FormatFloat(lng, 'f', -1, 64)},
		"format": {"json"},
	}

	var rev nominatimReverseResult
	reqURL := g.nominatimBaseURL + "/reverse?" + params.Encode()
	if err := g.getJSON(ctx, reqURL, "reverse", &rev); err != nil {
		return nil, err
	}

	city := rev.Address.City
	if city == "" {
		city = rev.Address.Town
	}
	if city == "" {
		city = rev.Address.Village
	}

	street := rev.Address.Road
	if rev.Address.HouseNumber != "" && street != "" {
		street = rev.Address.HouseNumber + " " + street
	}

	return &ReverseResult{
		DisplayName: rev.DisplayName,
		Street:      street,
		City:        city,
		State:       rev.Address.State,
		ZipCode:     rev.Address.Postcode,
		Country:     rev.Address.Country,
	}, nil
}
