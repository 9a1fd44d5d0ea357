package commands

import (
	"fmt"
	"os"

	"bullionwatch/lib/scrapers/bajus"
	"bullionwatch/lib/serviceutil"
	"bullionwatch/services/pricehistory/db"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var historyMetal *string

func init() {
	historyMetal = historyCmd.Flags().String("metal", "gold", "Metal to show, gold or silver.")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history [--metal gold|silver]",
	Short: "Prints the rolling daily average history for one metal.",
	Run: func(cmd *cobra.Command, args []string) {
		metal := bajus.Metal(*historyMetal)
		if metal != bajus.Gold && metal != bajus.Silver {
			serviceutil.Fatal("unknown metal", fmt.Errorf("%q is not gold or silver", *historyMetal))
		}

		cfg := loadConfig()
		database, err := db.Open(cfg.Database)
		if err != nil {
			serviceutil.Fatal("failed to open history db", err)
		}
		defer database.Close()

		rows, err := db.New(database).GetDailyAverages(cmd.Context(), string(metal))
		if err != nil {
			serviceutil.Fatal("failed to read history", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Date", "22 Carat", "21 Carat", "18 Carat", "Traditional"})
		for _, r := range rows {
			t.AppendRow(table.Row{r.Date, r.K22, r.K21, r.K18, r.Traditional})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
