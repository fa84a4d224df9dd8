package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"twinvoice/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "twinvoice",
	Short: "Taiwan e-invoice QR toolkit - parse, reconcile, and export paper invoice QR payloads",
	Long: `twinvoice is a command-line toolkit for the two QR codes printed on Taiwan
e-invoice (電子發票) paper.

It parses decoded QR payload strings best-effort (tolerating truncation,
leading garbage, and mojibake in item names), reconciles the two halves of an
invoice across multiple capture attempts, and appends finished invoices to a
CSV/TSV ledger or a Google Sheet. Seller names and item details can optionally
be enriched from the MOF e-invoice platform.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("twinvoice executed")

		fmt.Println("twinvoice - Taiwan e-invoice QR toolkit")
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
