package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"bullionwatch/lib/scrapers/bajus"
	"bullionwatch/lib/serviceutil"
	"bullionwatch/services/pricehistory"
	"bullionwatch/services/pricehistory/db"
	"bullionwatch/services/prices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var forceHistory *bool

func init() {
	forceHistory = scrapeCmd.Flags().Bool(
		"force-history", false,
		"Merge the daily history regardless of the 3-hour schedule.",
	)
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--force-history]",
	Short: "Scrapes the price page once, writing the snapshot and history files.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		err := prices.EnsureDirectories(cfg.DataDir)
		if err != nil {
			serviceutil.Fatal("failed to create data directories", err)
		}

		client, err := bajus.NewClient(bajus.ClientOptions{Url: cfg.SourceUrl})
		if err != nil {
			serviceutil.Fatal("failed to initialize client", err)
		}

		database, err := db.Open(cfg.Database)
		if err != nil {
			serviceutil.Fatal("failed to open history db", err)
		}
		defer database.Close()

		history := pricehistory.NewService(filepath.Join(cfg.DataDir, "history"), database)
		service := prices.NewService(client, history, cfg.DataDir)

		t1 := time.Now()
		snapshot, err := service.Run(cmd.Context(), prices.RunOptions{
			ForceHistory: *forceHistory,
		})
		if snapshot == nil {
			serviceutil.Fatal("scrape failed", err)
		}
		t2 := time.Now()
		slog.Info("scrape time", "seconds", t2.Sub(t1).Seconds())

		renderSummary(snapshot)

		if err != nil {
			serviceutil.Fatal("scrape completed with errors", err)
		}
	},
}

func renderSummary(snapshot *bajus.Snapshot) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Metal", "Category", "Entries", "Average"})

	for _, metal := range []bajus.Metal{bajus.Gold, bajus.Silver} {
		bucket := snapshot.Bucket(metal)
		for _, category := range bajus.Categories {
			entries := bucket.ByCategory(category)
			average := 0.0
			for _, e := range entries {
				average += e.Value
			}
			if len(entries) > 0 {
				average /= float64(len(entries))
			}
			t.AppendRow(table.Row{
				metal, category, len(entries), fmt.Sprintf("%.2f", average),
			})
		}
		t.AppendRow(table.Row{metal, "all", len(bucket.All), ""})
		t.AppendSeparator()
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
}
