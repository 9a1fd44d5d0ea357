package pricehistory

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"bullionwatch/lib/scrapers/bajus"
	"bullionwatch/services/pricehistory/db"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/pricehistory")

// DailyAverages is one per-date record of the rolling history. A zero
// average means the category had no entries that day; an observed true
// zero average is indistinguishable, which is accepted.
//
// Field order matters: the JSON key order (date, k22, k21, k18,
// traditional) differs from the CSV column order (date, k18, k21, k22,
// traditional) and both are preserved for compatibility with consumers
// of the existing files.
type DailyAverages struct {
	Date        string `json:"date"`
	K22         int    `json:"k22"`
	K21         int    `json:"k21"`
	K18         int    `json:"k18"`
	Traditional int    `json:"traditional"`
}

var csvHeader = []string{"date", "k18", "k21", "k22", "traditional"}

// ComputeAverages reduces one run's bucket to the per-category integer
// averages for the given date. Categories without entries stay 0.
func ComputeAverages(bucket *bajus.Bucket, date string) DailyAverages {
	averages := DailyAverages{Date: date}

	assign := map[bajus.Category]*int{
		bajus.Carat22:     &averages.K22,
		bajus.Carat21:     &averages.K21,
		bajus.Carat18:     &averages.K18,
		bajus.Traditional: &averages.Traditional,
	}
	for category, target := range assign {
		entries := bucket.ByCategory(category)
		if len(entries) == 0 {
			continue
		}
		sum := 0.0
		for _, e := range entries {
			sum += e.Value
		}
		*target = int(sum / float64(len(entries)))
	}
	return averages
}

// Service maintains the per-metal history stores: a CSV/JSON file pair
// per metal plus a sqlite mirror. Each store is rewritten wholesale on
// every merge.
type Service struct {
	dir string
	qry *db.Queries
}

// NewService creates a history service writing file stores under dir.
// database may be nil, in which case the sqlite mirror is skipped.
func NewService(dir string, database *sql.DB) Service {
	var qry *db.Queries
	if database != nil {
		qry = db.New(database)
	}
	return Service{dir: dir, qry: qry}
}

// Merge upserts the day's averages for one metal into every history
// store. A failing store is logged and skipped, the remaining stores are
// still updated; the joined error is returned. Merging the same
// averages twice in one day leaves the stores unchanged.
func (s Service) Merge(ctx context.Context, metal bajus.Metal, averages DailyAverages) error {
	ctx, span := tracer.Start(ctx, "Merge")
	defer span.End()
	span.SetAttributes(
		attribute.String("metal", string(metal)),
		attribute.String("date", averages.Date),
	)

	var errlist []error
	for _, step := range []struct {
		name string
		run  func() error
	}{
		{"csv", func() error { return s.mergeCsv(metal, averages) }},
		{"json", func() error { return s.mergeJson(metal, averages) }},
		{"sqlite", func() error { return s.mergeSqlite(ctx, metal, averages) }},
	} {
		err := step.run()
		if err != nil {
			slog.ErrorContext(ctx, "history store update failed",
				"metal", metal, "store", step.name, "err", err)
			span.RecordError(err)
			errlist = append(errlist, fmt.Errorf("%s: %w", step.name, err))
		}
	}

	if len(errlist) > 0 {
		err := errors.Join(errlist...)
		span.SetStatus(codes.Error, "one or more history stores failed")
		return err
	}
	slog.InfoContext(ctx, "history updated", "metal", metal, "date", averages.Date)
	return nil
}

func upsert(records []DailyAverages, today DailyAverages) []DailyAverages {
	for i := range records {
		if records[i].Date == today.Date {
			records[i] = today
			sortByDate(records)
			return records
		}
	}
	records = append(records, today)
	sortByDate(records)
	return records
}

func sortByDate(records []DailyAverages) {
	slices.SortFunc(records, func(a, b DailyAverages) int {
		return strings.Compare(a.Date, b.Date)
	})
}

func (s Service) csvPath(metal bajus.Metal) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_history.csv", metal))
}

func (s Service) jsonPath(metal bajus.Metal) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_history.json", metal))
}

func (s Service) mergeCsv(metal bajus.Metal, averages DailyAverages) error {
	path := s.csvPath(metal)
	records := loadCsv(path)
	records = upsert(records, averages)

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	w.Write(csvHeader)
	for _, r := range records {
		w.Write([]string{
			r.Date,
			strconv.Itoa(r.K18),
			strconv.Itoa(r.K21),
			strconv.Itoa(r.K22),
			strconv.Itoa(r.Traditional),
		})
	}
	w.Flush()
	return w.Error()
}

// a missing or unreadable store is a fresh start, not an error
func loadCsv(path string) []DailyAverages {
	file, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("failed to open history csv, starting empty", "path", path, "err", err)
		}
		return nil
	}
	defer file.Close()

	r := csv.NewReader(file)
	rows, err := r.ReadAll()
	if err != nil || len(rows) < 1 {
		slog.Warn("failed to parse history csv, starting empty", "path", path, "err", err)
		return nil
	}

	column := map[string]int{}
	for i, name := range rows[0] {
		column[name] = i
	}

	field := func(row []string, name string) int {
		i, ok := column[name]
		if !ok || i >= len(row) {
			return 0
		}
		n, _ := strconv.Atoi(row[i])
		return n
	}

	var records []DailyAverages
	for _, row := range rows[1:] {
		dateIdx, ok := column["date"]
		if !ok || dateIdx >= len(row) {
			continue
		}
		records = append(records, DailyAverages{
			Date:        row[dateIdx],
			K22:         field(row, "k22"),
			K21:         field(row, "k21"),
			K18:         field(row, "k18"),
			Traditional: field(row, "traditional"),
		})
	}
	return records
}

func (s Service) mergeJson(metal bajus.Metal, averages DailyAverages) error {
	path := s.jsonPath(metal)

	var records []DailyAverages
	contents, err := os.ReadFile(path)
	if err == nil {
		err = json.Unmarshal(contents, &records)
		if err != nil {
			slog.Warn("failed to parse history json, starting empty", "path", path, "err", err)
			records = nil
		}
	}

	records = upsert(records, averages)

	out, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0644)
}

func (s Service) mergeSqlite(ctx context.Context, metal bajus.Metal, averages DailyAverages) error {
	if s.qry == nil {
		return nil
	}
	return s.qry.UpsertDailyAverage(ctx, db.DailyAverageRow{
		Metal:       string(metal),
		Date:        averages.Date,
		K22:         int64(averages.K22),
		K21:         int64(averages.K21),
		K18:         int64(averages.K18),
		Traditional: int64(averages.Traditional),
	})
}

// Load reads the JSON history store for one metal, sorted ascending by
// date. Missing or corrupt stores read as empty.
func (s Service) Load(metal bajus.Metal) []DailyAverages {
	var records []DailyAverages
	contents, err := os.ReadFile(s.jsonPath(metal))
	if err != nil {
		return nil
	}
	err = json.Unmarshal(contents, &records)
	if err != nil {
		return nil
	}
	sortByDate(records)
	return records
}
