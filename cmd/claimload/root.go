package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/nmartin15/claimflow/internal/config"
)

var cfg = config.Default()

var rootCmd = &cobra.Command{
	Use:   "claimload",
	Short: "X12 claims and remittance ingest, reconciliation, and risk scoring",
	Long:  "Parses 837 claim and 835 remittance files into Postgres, links payments back to claims, and scores outbound claims for denial risk.",
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfg.DSN, "dsn", os.Getenv("DATABASE_URL"), "Postgres connection string (or set DATABASE_URL)")
	pf.StringVar(&cfg.LogFormat, "log-format", "text", "Log format: text or json")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
