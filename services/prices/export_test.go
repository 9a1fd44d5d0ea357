package prices

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"bullionwatch/lib/scrapers/bajus"
	"bullionwatch/lib/timezone"
	"bullionwatch/services/pricehistory"

	"github.com/stretchr/testify/require"
)

func testSnapshot() *bajus.Snapshot {
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, timezone.Location)
	snapshot := &bajus.Snapshot{
		Timestamp: now,
		Date:      "2024-01-01",
		Url:       bajus.DefaultUrl,
	}
	snapshot.Gold.Add(bajus.Carat22, bajus.PriceEntry{
		Value:        123456.5,
		OriginalText: "৳ 1,23,456.50",
		Row:          []string{"Gold", "22 Carat", "৳ 1,23,456.50"},
		Timestamp:    now,
		Table:        1,
	})
	snapshot.Silver.Add(bajus.Traditional, bajus.PriceEntry{
		Value:        1250,
		OriginalText: "1,250",
		Row:          []string{"Silver", "Traditional", "1,250"},
		Timestamp:    now,
		Table:        2,
	})
	return snapshot
}

func TestSectionTitle(t *testing.T) {
	require.Equal(t, "22 carat", sectionTitle(bajus.Carat22, bajus.Gold))
	require.Equal(t, "Traditional", sectionTitle(bajus.Traditional, bajus.Gold))
	require.Equal(t, "22 carat Silver", sectionTitle(bajus.Carat22, bajus.Silver))
	require.Equal(t, "Traditional Silver", sectionTitle(bajus.Traditional, bajus.Silver))
}

func TestWriteMetalCsvLayout(t *testing.T) {
	dataDir := t.TempDir()
	require.NoError(t, EnsureDirectories(dataDir))
	service := NewService(nil, pricehistory.Service{}, dataDir)

	snapshot := testSnapshot()
	require.NoError(t, service.writeMetalCsv(snapshot, bajus.Gold))

	file, err := os.Open(filepath.Join(dataDir, "gold", "gold_prices.csv"))
	require.NoError(t, err)
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	require.NoError(t, err)

	require.Equal(t, "Timestamp", rows[0][0])
	require.Equal(t, "URL", rows[1][0])
	// first section is 22 carat with the entry header and one entry
	require.Equal(t, []string{"22 carat"}, rows[3])
	require.Equal(t, []string{"Price", "Original Text", "Table", "Time"}, rows[4])
	require.Equal(t, "123456.5", rows[5][0])
	require.Equal(t, "৳ 1,23,456.50", rows[5][1])
	require.Equal(t, "1", rows[5][2])
}

// one failing export must not stop the others
func TestExportIndependentFailures(t *testing.T) {
	dataDir := t.TempDir()
	require.NoError(t, EnsureDirectories(dataDir))
	// replace the gold directory with a file so gold exports fail
	require.NoError(t, os.RemoveAll(filepath.Join(dataDir, "gold")))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "gold"), nil, 0644))

	service := NewService(nil, pricehistory.Service{}, dataDir)
	err := service.export(context.Background(), testSnapshot())
	require.Error(t, err)

	require.FileExists(t, filepath.Join(dataDir, "silver", "silver_prices.json"))
	require.FileExists(t, filepath.Join(dataDir, "silver", "silver_prices.csv"))
	require.FileExists(t, filepath.Join(dataDir, "raw", "raw_data.json"))
}
