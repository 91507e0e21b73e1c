package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/vinodismyname/hidash/internal/dataset"
	"github.com/vinodismyname/hidash/internal/pipeline"
	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

// Workbook writes every table section of res to its own sheet, in section
// order. Key columns stay text; other cells that parse as numbers are written
// as numbers.
func Workbook(w io.Writer, res *pipeline.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("render: workbook style: %w", err)
	}

	first := f.GetSheetName(0)
	used := make(map[string]int)
	wrote := false
	if res != nil {
		for _, s := range res.Sections {
			if s.Kind != pipeline.KindTable {
				continue
			}
			name := uniqueSheet(sheetName(s.Title), used)
			if !wrote {
				if err := f.SetSheetName(first, name); err != nil {
					return fmt.Errorf("render: rename sheet: %w", err)
				}
				wrote = true
			} else if _, err := f.NewSheet(name); err != nil {
				return fmt.Errorf("render: add sheet %q: %w", name, err)
			}
			if err := writeTable(f, name, s.Table, bold); err != nil {
				return err
			}
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("render: write workbook: %w", err)
	}
	return nil
}

func writeTable(f *excelize.File, sheet string, t dataset.Table, style int) error {
	header := t.Names()
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("render: %s header: %w", sheet, err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, style); err != nil {
		return fmt.Errorf("render: %s header style: %w", sheet, err)
	}
	keys := len(dataset.KeyColumns)
	for i, row := range t.Rows() {
		vals := make([]any, len(row))
		for c, v := range row {
			vals[c] = v
			if c < keys || v == "" {
				continue
			}
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				vals[c] = n
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
			return fmt.Errorf("render: %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}

// sheetName strips characters Excel rejects and truncates to the length limit.
func sheetName(title string) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(title))
	if name == "" {
		name = "Sheet"
	}
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	return name
}

func uniqueSheet(name string, used map[string]int) string {
	n, ok := used[name]
	used[name] = n + 1
	if !ok {
		return name
	}
	suffix := fmt.Sprintf(" (%d)", n+1)
	r := []rune(name)
	if len(r)+len(suffix) > maxSheetName {
		r = r[:maxSheetName-len(suffix)]
	}
	return string(r) + suffix
}
