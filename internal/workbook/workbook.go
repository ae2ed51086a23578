// Package workbook is a thin wrapper around xlsx parsing. It turns a report
// card workbook into per-sheet header lists and row dictionaries and performs
// no cleaning beyond mapping blank cells to nil; all typing and normalization
// happens downstream.
package workbook

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Sheet holds the parsed contents of one worksheet. Rows are keyed by the
// original (pre-normalization) header strings.
type Sheet struct {
	Headers []string
	Rows    []map[string]any
}

// ParseFile opens the workbook at path and parses every sheet.
func ParseFile(path string) (map[string]*Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("workbook: open %s: %w", path, err)
	}
	defer f.Close()
	return parse(f)
}

// Parse reads a workbook from r and parses every sheet.
func Parse(r io.Reader) (map[string]*Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("workbook: open: %w", err)
	}
	defer f.Close()
	return parse(f)
}

func parse(f *excelize.File) (map[string]*Sheet, error) {
	out := make(map[string]*Sheet, len(f.GetSheetList()))
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("workbook: read sheet %q: %w", name, err)
		}
		out[name] = buildSheet(rows)
	}
	return out, nil
}

// buildSheet converts raw cell rows into a Sheet. The first row is the
// header row; trailing unnamed headers are dropped, interior unnamed headers
// get positional names so row width stays stable.
func buildSheet(rows [][]string) *Sheet {
	if len(rows) == 0 {
		return &Sheet{Headers: []string{}, Rows: []map[string]any{}}
	}

	headers := headerRow(rows[0])
	sheet := &Sheet{Headers: headers, Rows: make([]map[string]any, 0, len(rows)-1)}

	for _, raw := range rows[1:] {
		if emptyRow(raw) {
			continue
		}
		row := make(map[string]any, len(headers))
		for i, h := range headers {
			var cell string
			if i < len(raw) {
				cell = strings.TrimSpace(raw[i])
			}
			if cell == "" {
				row[h] = nil
			} else {
				row[h] = cell
			}
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet
}

func headerRow(raw []string) []string {
	last := -1
	for i, h := range raw {
		if strings.TrimSpace(h) != "" {
			last = i
		}
	}
	headers := make([]string, 0, last+1)
	for i := 0; i <= last; i++ {
		h := strings.TrimSpace(raw[i])
		if h == "" {
			h = fmt.Sprintf("column_%d", i)
		}
		headers = append(headers, h)
	}
	return headers
}

func emptyRow(raw []string) bool {
	for _, c := range raw {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
