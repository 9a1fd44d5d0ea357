package prices

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"bullionwatch/lib/scrapers/bajus"
)

// EnsureDirectories creates the on-disk layout the exporters write into.
func EnsureDirectories(dataDir string) error {
	for _, sub := range []string{"gold", "silver", "raw", "history"} {
		err := os.MkdirAll(filepath.Join(dataDir, sub), 0777)
		if err != nil {
			return fmt.Errorf("create %s: %w", sub, err)
		}
	}
	return nil
}

// export writes every snapshot file. A failing file is logged and
// skipped so the remaining exports still run.
func (s Service) export(ctx context.Context, snapshot *bajus.Snapshot) error {
	steps := []struct {
		name string
		run  func() error
	}{
		{"gold json", func() error { return s.writeMetalJson(snapshot, bajus.Gold) }},
		{"gold csv", func() error { return s.writeMetalCsv(snapshot, bajus.Gold) }},
		{"silver json", func() error { return s.writeMetalJson(snapshot, bajus.Silver) }},
		{"silver csv", func() error { return s.writeMetalCsv(snapshot, bajus.Silver) }},
		{"raw summary", func() error { return s.writeRawSummary(snapshot) }},
	}

	var errlist []error
	for _, step := range steps {
		err := step.run()
		if err != nil {
			slog.ErrorContext(ctx, "export failed", "file", step.name, "err", err)
			errlist = append(errlist, fmt.Errorf("%s: %w", step.name, err))
			continue
		}
		slog.DebugContext(ctx, "export written", "file", step.name)
	}
	return errors.Join(errlist...)
}

type metalExport struct {
	Timestamp time.Time    `json:"timestamp"`
	Url       string       `json:"url"`
	Prices    bajus.Bucket `json:"prices"`
}

func (s Service) writeMetalJson(snapshot *bajus.Snapshot, metal bajus.Metal) error {
	out, err := json.MarshalIndent(metalExport{
		Timestamp: snapshot.Timestamp,
		Url:       snapshot.Url,
		Prices:    *snapshot.Bucket(metal),
	}, "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(s.dataDir, string(metal), fmt.Sprintf("%s_prices.json", metal))
	return os.WriteFile(path, out, 0644)
}

// sectionTitle renders a category heading for the tabular export,
// e.g. "22 carat" or "Traditional Silver".
func sectionTitle(category bajus.Category, metal bajus.Metal) string {
	title := strings.ReplaceAll(category.String(), "_", " ")
	runes := []rune(title)
	runes[0] = unicode.ToUpper(runes[0])
	title = string(runes)

	if metal == bajus.Silver {
		title += " Silver"
	}
	return title
}

var entryHeader = []string{"Price", "Original Text", "Table", "Time"}

func (s Service) writeMetalCsv(snapshot *bajus.Snapshot, metal bajus.Metal) error {
	path := filepath.Join(s.dataDir, string(metal), fmt.Sprintf("%s_prices.csv", metal))
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	bucket := snapshot.Bucket(metal)

	w := csv.NewWriter(file)
	w.Write([]string{"Timestamp", snapshot.Timestamp.Format(time.RFC3339)})
	w.Write([]string{"URL", snapshot.Url})
	w.Write([]string{""})

	for _, category := range bajus.Categories {
		w.Write([]string{sectionTitle(category, metal)})
		w.Write(entryHeader)
		for _, entry := range bucket.ByCategory(category) {
			w.Write([]string{
				strconv.FormatFloat(entry.Value, 'f', -1, 64),
				entry.OriginalText,
				strconv.Itoa(entry.Table),
				entry.Timestamp.Format(time.RFC3339),
			})
		}
		w.Write([]string{""})
	}

	w.Flush()
	return w.Error()
}

type rawSummary struct {
	Timestamp     time.Time      `json:"timestamp"`
	Url           string         `json:"url"`
	GoldSummary   map[string]int `json:"gold_summary"`
	SilverSummary map[string]int `json:"silver_summary"`
}

func bucketSummary(bucket *bajus.Bucket) map[string]int {
	summary := map[string]int{"all": len(bucket.All)}
	for _, category := range bajus.Categories {
		summary[category.String()] = len(bucket.ByCategory(category))
	}
	return summary
}

func (s Service) writeRawSummary(snapshot *bajus.Snapshot) error {
	out, err := json.MarshalIndent(rawSummary{
		Timestamp:     snapshot.Timestamp,
		Url:           snapshot.Url,
		GoldSummary:   bucketSummary(&snapshot.Gold),
		SilverSummary: bucketSummary(&snapshot.Silver),
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dataDir, "raw", "raw_data.json"), out, 0644)
}
