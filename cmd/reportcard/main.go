// Command reportcard imports Illinois Report Card workbooks into
// year-partitioned tables and queries them.
//
// Usage:
//
//	reportcard import -kind schools 2024=report_card_2024.xlsx [2023=...]
//	reportcard list-years -kind schools
//	reportcard query -kind schools -year 2024 -fields rcdts,school_name -filters '{"city":"Chicago"}'
//	reportcard schema -kind schools -year 2024
//	reportcard search -q "Springfield" [-kind school]
//	reportcard rebuild-search
//	reportcard job -id <job-id>
//
// Store selection comes from -config / -store / -dsn; the default is a local
// SQLite file. Imports of different years run concurrently; duplicate years
// in one invocation are rejected because same-partition imports must be
// serialized.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/kpfister44/illinois-report-card-api/internal/catalog"
	"github.com/kpfister44/illinois-report-card-api/internal/config"
	"github.com/kpfister44/illinois-report-card-api/internal/entity"
	"github.com/kpfister44/illinois-report-card-api/internal/importer"
	"github.com/kpfister44/illinois-report-card-api/internal/metrics"
	"github.com/kpfister44/illinois-report-card-api/internal/metrics/prompush"
	"github.com/kpfister44/illinois-report-card-api/internal/partition"
	"github.com/kpfister44/illinois-report-card-api/internal/query"
	"github.com/kpfister44/illinois-report-card-api/internal/storage"

	// register all store backends with the storage factory.
	_ "github.com/kpfister44/illinois-report-card-api/internal/storage/all"
)

func main() {
	log.SetFlags(0)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	ctx := context.Background()

	var err error
	switch cmd {
	case "import":
		err = cmdImport(ctx, args)
	case "list-years":
		err = cmdListYears(ctx, args)
	case "query":
		err = cmdQuery(ctx, args)
	case "schema":
		err = cmdSchema(ctx, args)
	case "search":
		err = cmdSearch(ctx, args)
	case "rebuild-search":
		err = cmdRebuildSearch(ctx, args)
	case "job":
		err = cmdJob(ctx, args)
	case "-h", "-help", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("reportcard %s: %v", cmd, err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: reportcard <command> [flags]

commands:
  import          import one or more workbooks (YEAR=PATH args)
  list-years      list years that have data for an entity kind
  query           run a filtered, paginated query against one year
  schema          print the column catalog for one year
  search          full-text search over master entities
  rebuild-search  rebuild the entity search index
  job             show an import job record`)
}

// storeFlags holds the flags shared by every subcommand.
type storeFlags struct {
	configPath     string
	storeKind      string
	dsn            string
	metricsBackend string
	pushgatewayURL string
}

func registerStoreFlags(fs *flag.FlagSet) *storeFlags {
	var sf storeFlags
	fs.StringVar(&sf.configPath, "config", "", "optional JSON config file")
	fs.StringVar(&sf.storeKind, "store", "", "store kind (sqlite, postgres); overrides config")
	fs.StringVar(&sf.dsn, "dsn", "", "store DSN; overrides config")
	fs.StringVar(&sf.metricsBackend, "metrics-backend", "", "metrics backend (pushgateway, none); overrides config")
	fs.StringVar(&sf.pushgatewayURL, "pushgateway-url", "", "Pushgateway base URL; overrides config")
	return &sf
}

// openStore resolves flags over the config file, validates, installs the
// metrics backend, and opens the store.
func openStore(ctx context.Context, sf *storeFlags) (*storage.Store, config.Config, func(), error) {
	cfg, err := config.Load(sf.configPath)
	if err != nil {
		return nil, cfg, nil, err
	}
	if sf.storeKind != "" {
		cfg.Store.Kind = sf.storeKind
	}
	if sf.dsn != "" {
		cfg.Store.DSN = sf.dsn
	}
	if sf.metricsBackend != "" {
		cfg.Metrics.Backend = sf.metricsBackend
	}
	if sf.pushgatewayURL != "" {
		cfg.Metrics.PushgatewayURL = sf.pushgatewayURL
	}

	hasError := false
	for _, iss := range config.Validate(cfg) {
		fmt.Fprintln(os.Stderr, iss)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		return nil, cfg, nil, fmt.Errorf("invalid configuration")
	}

	if cfg.Metrics.Backend == "pushgateway" {
		backend, err := prompush.NewBackend("reportcard", cfg.Metrics.PushgatewayURL)
		if err != nil {
			return nil, cfg, nil, err
		}
		metrics.SetBackend(backend)
	}

	st, closeFn, err := storage.Open(ctx, cfg.Store.Kind, cfg.Store.DSN)
	if err != nil {
		return nil, cfg, nil, err
	}
	return st, cfg, closeFn, nil
}

func cmdImport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	sf := registerStoreFlags(fs)
	kind := fs.String("kind", "schools", "entity kind (schools, districts, state)")
	sheet := fs.String("sheet", "", "primary sheet name (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("at least one YEAR=PATH argument is required")
	}

	type target struct {
		year int
		path string
	}
	targets := make([]target, 0, fs.NArg())
	seen := map[int]bool{}
	for _, arg := range fs.Args() {
		yearStr, path, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("argument %q is not YEAR=PATH", arg)
		}
		year, err := strconv.Atoi(yearStr)
		if err != nil {
			return fmt.Errorf("argument %q: bad year: %w", arg, err)
		}
		// Same-partition imports must be serialized; refuse outright.
		if seen[year] {
			return fmt.Errorf("year %d given more than once", year)
		}
		seen[year] = true
		targets = append(targets, target{year: year, path: path})
	}

	st, cfg, closeStore, err := openStore(ctx, sf)
	if err != nil {
		return err
	}
	defer closeStore()
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush: %v", err)
		}
	}()

	sheetName := *sheet
	if sheetName == "" {
		sheetName = cfg.Import.PrimarySheet
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range targets {
		g.Go(func() error {
			job, err := importer.Run(gctx, st, importer.Options{
				Path:      t.path,
				Kind:      *kind,
				Year:      t.year,
				Sheet:     sheetName,
				SampleCap: cfg.Import.SampleCap,
			})
			if err != nil {
				return fmt.Errorf("%d=%s: %w", t.year, t.path, err)
			}
			log.Printf("job %s: %s %d: %s rows imported",
				job.ID, job.EntityKind, job.Year, humanize.Comma(int64(job.RowsImported)))
			return nil
		})
	}
	return g.Wait()
}

func cmdListYears(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list-years", flag.ExitOnError)
	sf := registerStoreFlags(fs)
	kind := fs.String("kind", "schools", "entity kind")
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, _, closeStore, err := openStore(ctx, sf)
	if err != nil {
		return err
	}
	defer closeStore()

	years, err := partition.ListYears(ctx, st, *kind)
	if err != nil {
		return err
	}
	if len(years) == 0 {
		fmt.Println("no data has been imported yet")
		return nil
	}
	for _, y := range years {
		fmt.Println(y)
	}
	return nil
}

func cmdQuery(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	sf := registerStoreFlags(fs)
	kind := fs.String("kind", "schools", "entity kind")
	year := fs.Int("year", 0, "data year (required)")
	fields := fs.String("fields", "", "comma-separated field list (default all)")
	filters := fs.String("filters", "", `JSON filter map, e.g. '{"city":"Chicago","student_enrollment":{"gte":500}}'`)
	sortCol := fs.String("sort", "", "sort column")
	sortDir := fs.String("dir", "asc", "sort direction (asc, desc)")
	limit := fs.Int("limit", query.DefaultLimit, "page size")
	offset := fs.Int("offset", 0, "page offset")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *year == 0 {
		return fmt.Errorf("-year is required")
	}

	req := query.Request{
		Kind:    *kind,
		Year:    *year,
		Sort:    *sortCol,
		SortDir: *sortDir,
		Limit:   *limit,
		Offset:  *offset,
	}
	if *fields != "" {
		req.Fields = strings.Split(*fields, ",")
	}
	if *filters != "" {
		if err := json.Unmarshal([]byte(*filters), &req.Filters); err != nil {
			return fmt.Errorf("bad -filters JSON: %w", err)
		}
	}

	st, _, closeStore, err := openStore(ctx, sf)
	if err != nil {
		return err
	}
	defer closeStore()

	res, err := query.Execute(ctx, st, req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"data": res.Rows,
		"meta": map[string]any{
			"total":  res.Total,
			"limit":  res.Limit,
			"offset": res.Offset,
		},
	})
}

func cmdSchema(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("schema", flag.ExitOnError)
	sf := registerStoreFlags(fs)
	kind := fs.String("kind", "schools", "entity kind")
	year := fs.Int("year", 0, "data year (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *year == 0 {
		return fmt.Errorf("-year is required")
	}

	table, err := partition.TableName(*kind, *year)
	if err != nil {
		return err
	}

	st, _, closeStore, err := openStore(ctx, sf)
	if err != nil {
		return err
	}
	defer closeStore()

	entries, err := catalog.ForPartition(ctx, st, table)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("no schema metadata for %s", table)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].ColumnName < entries[j].ColumnName })
	for _, e := range entries {
		suppressed := ""
		if e.IsSuppressedIndicator {
			suppressed = " (suppressed values present)"
		}
		fmt.Printf("%-40s %-12s %-14s %s%s\n",
			e.ColumnName, e.DataType, e.Category, e.SourceColumnName, suppressed)
	}
	return nil
}

func cmdSearch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	sf := registerStoreFlags(fs)
	q := fs.String("q", "", "search query (required)")
	kind := fs.String("kind", "", "entity type filter (school, district, state)")
	limit := fs.Int("limit", 50, "maximum results")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *q == "" {
		return fmt.Errorf("-q is required")
	}

	st, _, closeStore, err := openStore(ctx, sf)
	if err != nil {
		return err
	}
	defer closeStore()

	recs, err := entity.Search(ctx, st, *q, *kind, *limit)
	if err != nil {
		return err
	}
	for _, r := range recs {
		fmt.Printf("%-20s %-9s %s (%s, %s)\n", r.RCDTS, r.EntityType, r.Name, r.City, r.County)
	}
	log.Printf("%d result(s)", len(recs))
	return nil
}

func cmdRebuildSearch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("rebuild-search", flag.ExitOnError)
	sf := registerStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, _, closeStore, err := openStore(ctx, sf)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := entity.RebuildIndex(ctx, st); err != nil {
		return err
	}
	log.Println("entity search index rebuilt")
	return nil
}

func cmdJob(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("job", flag.ExitOnError)
	sf := registerStoreFlags(fs)
	id := fs.String("id", "", "job id (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("-id is required")
	}

	st, _, closeStore, err := openStore(ctx, sf)
	if err != nil {
		return err
	}
	defer closeStore()

	job, err := importer.GetJob(ctx, st, *id)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(job)
}
