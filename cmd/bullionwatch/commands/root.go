package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"bullionwatch/lib/configutil"
	"bullionwatch/lib/scrapers/bajus"
	"bullionwatch/lib/serviceutil"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "bullionwatch",
	Short: "bullionwatch scrapes bajus.org gold and silver prices and keeps a daily average history.",
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type Config struct {
	DataDir   string `json:"data_dir"`
	SourceUrl string `json:"source_url"`
	Database  string `json:"database"`
}

func loadConfig() Config {
	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil && !os.IsNotExist(err) {
		serviceutil.Fatal("failed to read config", err)
	}

	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.SourceUrl == "" {
		cfg.SourceUrl = bajus.DefaultUrl
	}
	if cfg.Database == "" {
		cfg.Database = filepath.Join(cfg.DataDir, "history", "history.db")
	}
	return cfg
}
