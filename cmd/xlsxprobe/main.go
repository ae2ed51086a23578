// Command xlsxprobe inspects a report card workbook without importing it:
// it parses the primary sheet, normalizes the headers, and prints the type
// and category that would be inferred for every column, plus whether any
// sampled value carries the suppression marker.
//
// Example:
//
//	xlsxprobe -file report_card_2024.xlsx -sheet General
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/kpfister44/illinois-report-card-api/internal/clean"
	"github.com/kpfister44/illinois-report-card-api/internal/schema"
	"github.com/kpfister44/illinois-report-card-api/internal/workbook"
)

func main() {
	log.SetFlags(0)

	file := flag.String("file", "", "workbook path (required)")
	sheetName := flag.String("sheet", "General", "sheet to probe")
	maxRows := flag.Int("max-rows", 0, "cap on sampled rows per column (0 = all)")
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(2)
	}

	sheets, err := workbook.ParseFile(*file)
	if err != nil {
		log.Fatalf("xlsxprobe: %v", err)
	}

	sheet, ok := sheets[*sheetName]
	if !ok {
		names := make([]string, 0, len(sheets))
		for n := range sheets {
			names = append(names, n)
		}
		sort.Strings(names)
		log.Fatalf("xlsxprobe: no %q sheet (have: %s)", *sheetName, strings.Join(names, ", "))
	}

	log.Printf("%s: %s rows, %d columns", *sheetName,
		humanize.Comma(int64(len(sheet.Rows))), len(sheet.Headers))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COLUMN\tTYPE\tCATEGORY\tSUPPRESSED\tSOURCE")
	for _, header := range sheet.Headers {
		name := clean.NormalizeLabel(header)
		samples := sampleColumn(sheet.Rows, header, *maxRows)
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\n",
			name,
			schema.InferType(name, samples),
			schema.InferCategory(name),
			anySuppressed(samples),
			header)
	}
	w.Flush()
}

func sampleColumn(rows []map[string]any, header string, cap int) []any {
	var out []any
	for _, row := range rows {
		v := row[header]
		if v == nil {
			continue
		}
		out = append(out, v)
		if cap > 0 && len(out) >= cap {
			break
		}
	}
	return out
}

func anySuppressed(samples []any) bool {
	for _, v := range samples {
		if strings.Contains(fmt.Sprint(v), clean.Marker) {
			return true
		}
	}
	return false
}
