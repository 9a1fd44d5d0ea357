package pricehistory

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bullionwatch/lib/scrapers/bajus"
	"bullionwatch/lib/telemetry"
	"bullionwatch/services/pricehistory/db"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func entry(value float64) bajus.PriceEntry {
	return bajus.PriceEntry{Value: value, Timestamp: time.Now(), Table: 1}
}

func TestComputeAverages(t *testing.T) {
	bucket := &bajus.Bucket{}
	bucket.Add(bajus.Carat22, entry(100000))
	bucket.Add(bajus.Carat22, entry(110001))
	bucket.Add(bajus.Carat21, entry(95000))
	bucket.Add(bajus.Unclassified, entry(50000))

	averages := ComputeAverages(bucket, "2024-01-01")

	expect := DailyAverages{
		Date: "2024-01-01",
		// integer average truncates
		K22: 105000,
		K21: 95000,
		// no 18 carat or traditional entries today
		K18:         0,
		Traditional: 0,
	}
	if diff := cmp.Diff(expect, averages); diff != "" {
		t.Fatalf("averages mismatch (-want +got):\n%s", diff)
	}
}

func setupService(t *testing.T) (Service, *db.Queries) {
	t.Cleanup(telemetry.SetupForTesting("test:pricehistory"))

	sqlite, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return NewService(t.TempDir(), sqlite), db.New(sqlite)
}

func TestMergeUpsertIdempotence(t *testing.T) {
	service, qry := setupService(t)
	ctx := context.Background()

	err := service.Merge(ctx, bajus.Gold, DailyAverages{Date: "2024-01-01", K22: 100000})
	require.NoError(t, err)
	// same day again with a revised average: replaced, never duplicated
	err = service.Merge(ctx, bajus.Gold, DailyAverages{Date: "2024-01-01", K22: 105000})
	require.NoError(t, err)

	records := service.Load(bajus.Gold)
	require.Len(t, records, 1)
	require.Equal(t, "2024-01-01", records[0].Date)
	require.Equal(t, 105000, records[0].K22)

	rows, err := qry.GetDailyAverages(ctx, "gold")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, int64(105000), rows[0].K22)
}

func TestMergeSortsByDate(t *testing.T) {
	service, qry := setupService(t)
	ctx := context.Background()

	for _, date := range []string{"2024-01-03", "2024-01-01", "2024-01-02"} {
		err := service.Merge(ctx, bajus.Silver, DailyAverages{Date: date, Traditional: 1250})
		require.NoError(t, err)
	}

	records := service.Load(bajus.Silver)
	require.Len(t, records, 3)
	seen := map[string]bool{}
	for i := 1; i < len(records); i++ {
		require.Less(t, records[i-1].Date, records[i].Date)
	}
	for _, r := range records {
		require.False(t, seen[r.Date])
		seen[r.Date] = true
	}

	rows, err := qry.GetDailyAverages(ctx, "silver")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "2024-01-01", rows[0].Date)
	require.Equal(t, "2024-01-03", rows[2].Date)
}

func TestMergeSeparatesMetals(t *testing.T) {
	service, _ := setupService(t)
	ctx := context.Background()

	require.NoError(t, service.Merge(ctx, bajus.Gold, DailyAverages{Date: "2024-01-01", K22: 100000}))
	require.NoError(t, service.Merge(ctx, bajus.Silver, DailyAverages{Date: "2024-01-01", K22: 2100}))

	require.Equal(t, 100000, service.Load(bajus.Gold)[0].K22)
	require.Equal(t, 2100, service.Load(bajus.Silver)[0].K22)
}

func TestMergeCorruptStoresStartEmpty(t *testing.T) {
	service, _ := setupService(t)
	ctx := context.Background()

	err := os.WriteFile(service.jsonPath(bajus.Gold), []byte("{not json"), 0644)
	require.NoError(t, err)
	err = os.WriteFile(service.csvPath(bajus.Gold), []byte("\"unterminated"), 0644)
	require.NoError(t, err)

	err = service.Merge(ctx, bajus.Gold, DailyAverages{Date: "2024-01-01", K22: 100000})
	require.NoError(t, err)

	records := service.Load(bajus.Gold)
	require.Len(t, records, 1)
	require.Equal(t, 100000, records[0].K22)
}

func TestCsvColumnOrder(t *testing.T) {
	service, _ := setupService(t)
	ctx := context.Background()

	err := service.Merge(ctx, bajus.Gold, DailyAverages{
		Date: "2024-01-01", K22: 4, K21: 3, K18: 2, Traditional: 1,
	})
	require.NoError(t, err)

	file, err := os.Open(service.csvPath(bajus.Gold))
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Equal(t, []string{"date", "k18", "k21", "k22", "traditional"}, rows[0])
	require.Equal(t, []string{"2024-01-01", "2", "3", "4", "1"}, rows[1])
}

// the JSON key order intentionally differs from the CSV column order
func TestJsonKeyOrder(t *testing.T) {
	out, err := json.Marshal(DailyAverages{Date: "2024-01-01"})
	require.NoError(t, err)

	text := string(out)
	order := []string{`"date"`, `"k22"`, `"k21"`, `"k18"`, `"traditional"`}
	last := -1
	for _, key := range order {
		idx := strings.Index(text, key)
		require.Greater(t, idx, last, "key %s out of order in %s", key, text)
		last = idx
	}
}

func TestMergeSurvivesCsvReload(t *testing.T) {
	service, _ := setupService(t)
	ctx := context.Background()

	require.NoError(t, service.Merge(ctx, bajus.Gold, DailyAverages{Date: "2024-01-01", K18: 85000, K22: 100000}))

	// drop the json store so only the csv survives, then merge a new day
	require.NoError(t, os.Remove(service.jsonPath(bajus.Gold)))
	require.NoError(t, service.Merge(ctx, bajus.Gold, DailyAverages{Date: "2024-01-02", K22: 101000}))

	file, err := os.Open(service.csvPath(bajus.Gold))
	require.NoError(t, err)
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "2024-01-01", rows[1][0])
	require.Equal(t, "85000", rows[1][1])
	require.Equal(t, "2024-01-02", rows[2][0])
}

func TestMergeWithoutDatabase(t *testing.T) {
	dir := t.TempDir()
	service := NewService(dir, (*sql.DB)(nil))

	err := service.Merge(context.Background(), bajus.Gold, DailyAverages{Date: "2024-01-01", K22: 1})
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, "gold_history.csv"))
	require.FileExists(t, filepath.Join(dir, "gold_history.json"))
}
