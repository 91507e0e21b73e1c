package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"
)

// Options tunes how uploads are read.
type Options struct {
	// SheetName selects the worksheet of an Excel upload. Empty means the first sheet.
	SheetName string
}

// SupportedExtensions lists the upload extensions a reader exists for.
var SupportedExtensions = []string{".csv", ".tsv", ".txt", ".xlsx", ".xlsm"}

// IsSupported reports whether the file name carries a readable extension.
func IsSupported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// LoadHealthiness reads the primary dataset. The index column must be present
// and numeric; blank cells are kept as NaN.
func LoadHealthiness(name string, data []byte, opts Options) (Table, error) {
	return load(name, data, opts, ColIndex)
}

// LoadOKR reads the OKR target table. All non-key columns are kept as text.
func LoadOKR(name string, data []byte, opts Options) (Table, error) {
	return load(name, data, opts, "")
}

func load(name string, data []byte, opts Options, floatCol string) (Table, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Table{}, fmt.Errorf("%w: %s", ErrEmptyUpload, name)
	}
	records, err := readRecords(name, data, opts)
	if err != nil {
		return Table{}, err
	}
	df, err := buildFrame(name, records, floatCol)
	if err != nil {
		return Table{}, err
	}
	return Table{Name: name, Frame: df}, nil
}

func readRecords(name string, data []byte, opts Options) ([][]string, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".csv", ".tsv", ".txt", "":
		return readDelimited(data)
	case ".xlsx", ".xlsm":
		return readWorkbook(data, opts.SheetName)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func readDelimited(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var records [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: parse delimited: %w", ErrMalformed, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// sniffDelimiter picks the most frequent of tab, semicolon and comma on the header line.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestN := ',', bytes.Count(line, []byte{','})
	for _, d := range []rune{'\t', ';'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

func readWorkbook(data []byte, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %w", ErrMalformed, err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: workbook has no sheets", ErrEmptyUpload)
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %w", ErrMalformed, sheet, err)
	}
	return rows, nil
}

// buildFrame drops the leading row-label column, renames location to city,
// moves the key columns to the front and types every column.
func buildFrame(name string, records [][]string, floatCol string) (dataframe.DataFrame, error) {
	if len(records) == 0 || len(records[0]) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("%w: %s", ErrEmptyUpload, name)
	}
	header := normalizeHeader(records[0])
	width := len(header)
	body := records[1:]

	cols := make([][]string, width)
	for i := range cols {
		cols[i] = make([]string, 0, len(body))
	}
	for r, rec := range body {
		if isBlank(rec) {
			continue
		}
		if len(rec) > width {
			return dataframe.DataFrame{}, fmt.Errorf("%w: %s row %d has %d fields, header has %d", ErrRaggedRows, name, r+2, len(rec), width)
		}
		for c := 0; c < width; c++ {
			v := ""
			if c < len(rec) {
				v = rec[c]
			}
			cols[c] = append(cols[c], v)
		}
	}

	// Column 0 is the row label.
	header, cols = header[1:], cols[1:]

	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[h] = i
	}
	order := make([]int, 0, len(header))
	for _, k := range KeyColumns {
		i, ok := pos[k]
		if !ok {
			missing := k
			if k == ColCity {
				missing = ColLocation
			}
			return dataframe.DataFrame{}, fmt.Errorf("%w %q in %s", ErrMissingColumn, missing, name)
		}
		order = append(order, i)
	}
	if floatCol != "" {
		if _, ok := pos[floatCol]; !ok {
			return dataframe.DataFrame{}, fmt.Errorf("%w %q in %s", ErrMissingColumn, floatCol, name)
		}
	}
	for i, h := range header {
		if h != ColPeriod && h != ColCity && h != ColRegion {
			order = append(order, i)
		}
	}

	list := make([]series.Series, 0, len(order))
	for _, i := range order {
		h := header[i]
		if h == floatCol {
			vals, err := numericCells(name, h, cols[i])
			if err != nil {
				return dataframe.DataFrame{}, err
			}
			list = append(list, series.New(vals, series.Float, h))
			continue
		}
		list = append(list, series.New(cols[i], series.String, h))
	}
	df := dataframe.New(list...)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("dataset: build %s: %w", name, df.Err)
	}
	return df, nil
}

// normalizeHeader trims names, renames location to city, names blank columns
// "Unnamed: N" and suffixes duplicates with ".1", ".2", ...
func normalizeHeader(raw []string) []string {
	out := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		if h == ColLocation {
			h = ColCity
		}
		if n, dup := seen[h]; dup {
			seen[h] = n + 1
			h = fmt.Sprintf("%s.%d", h, n+1)
		} else {
			seen[h] = 0
		}
		out[i] = h
	}
	return out
}

func numericCells(name, col string, cells []string) ([]float64, error) {
	out := make([]float64, len(cells))
	for i, c := range cells {
		c = strings.TrimSpace(c)
		switch strings.ToLower(c) {
		case "", "nan", "na", "n/a", "null":
			out[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(c, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s column %q row %d: %q", ErrBadIndexValue, name, col, i+2, c)
		}
		out[i] = v
	}
	return out, nil
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
