// Command import loads a CSV export of profiles, cards and listings.
package main

import (
	"encoding/json" // Report output
	"os"            // Exit codes

	"collector_hub/internal/config"   // Custom import path (Config)
	"collector_hub/internal/db"       // Database connection and repository
	"collector_hub/internal/importer" // CSV importer

	"github.com/sirupsen/logrus" // Logrus for structured logging
	"github.com/spf13/cobra"     // Command line flags
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		dir          string
		fallbackUser string
		dryRun       bool
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import profiles.csv, user_cards.csv and marketplace_listings.csv",
		Long: "Reads the export directory and creates profiles, cards and listings. " +
			"Existing emails are skipped and mapped onto the existing profile; " +
			"rows whose user cannot be resolved are assigned to --fallback-user.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.LoadConfig()
			gdb, err := db.Open(cfg.DBDriver, cfg.DSN())
			if err != nil {
				return err
			}
			defer db.Close(gdb)

			report, err := importer.New(db.NewRepository(gdb), fallbackUser, dryRun).ImportDir(cmd.Context(), dir)
			if err != nil {
				logrus.WithField("error", err.Error()).Error("Import aborted")
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "directory holding the CSV export")
	cmd.Flags().StringVar(&fallbackUser, "fallback-user", "", "profile id that receives rows with unknown owners")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate and report without writing")
	return cmd
}
