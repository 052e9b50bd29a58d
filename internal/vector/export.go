package vector

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// AttributeTable flattens feature properties into a header row plus one row
// per feature. Columns are sorted by name; a "geometry" column holds the
// geometry type. Missing values are empty strings.
func AttributeTable(fc *geojson.FeatureCollection) (header []string, rows [][]string) {
	propSet := make(map[string]bool)
	for _, f := range fc.Features {
		for k := range f.Properties {
			propSet[k] = true
		}
	}

	cols := make([]string, 0, len(propSet))
	for k := range propSet {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	header = append([]string{"geometry"}, cols...)

	for _, f := range fc.Features {
		row := make([]string, 0, len(header))
		row = append(row, geometryTypeName(f.Geometry))
		for _, col := range cols {
			v, ok := f.Properties[col]
			if !ok || v == nil {
				row = append(row, "")
				continue
			}
			row = append(row, formatValue(v))
		}
		rows = append(rows, row)
	}

	return header, rows
}

// formatValue renders a property value for tabular output.
func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		// Avoid scientific notation for integral values.
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// ExportCSV writes the attribute table to a CSV file.
func ExportCSV(path string, fc *geojson.FeatureCollection) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "vector: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	header, rows := AttributeTable(fc)
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "vector: write csv header")
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return eris.Wrap(err, "vector: write csv row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "vector: flush csv")
	}
	return nil
}

// ExportXLSX writes the attribute table to an XLSX workbook with a single
// "attributes" sheet.
func ExportXLSX(path string, fc *geojson.FeatureCollection) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("attributes")
	if err != nil {
		return eris.Wrap(err, "vector: add xlsx sheet")
	}

	header, rows := AttributeTable(fc)
	hr := sheet.AddRow()
	for _, col := range header {
		hr.AddCell().SetString(col)
	}
	for _, row := range rows {
		r := sheet.AddRow()
		for _, cell := range row {
			r.AddCell().SetString(cell)
		}
	}

	if err := file.Save(path); err != nil {
		return eris.Wrapf(err, "vector: save %s", path)
	}
	return nil
}
