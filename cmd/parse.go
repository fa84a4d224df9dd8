package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"twinvoice/internal/category"
	"twinvoice/internal/config"
	"twinvoice/internal/einvoice"
	"twinvoice/internal/export"
	"twinvoice/internal/logger"
	"twinvoice/internal/mof"
	"twinvoice/pkg/models"
)

var parseCmd = &cobra.Command{
	Use:   "parse <qr-a> [qr-b]",
	Short: "Parse one invoice from its decoded QR payload(s)",
	Long: `Parse a Taiwan e-invoice from its decoded QR payload text.

With two payloads the halves are aligned on the shared 21-character invoice
key and both the header fields and the item list are extracted. With one
payload (or "**" as the second) only the first QR is parsed, which yields the
header fields and whatever items that half carries.`,
	Example: `  # Both halves, in any order
  twinvoice parse "$QR_A" "$QR_B"

  # First QR only
  twinvoice parse "$QR_A"

  # JSON output, enriched with the seller name from the MOF platform
  twinvoice parse "$QR_A" "$QR_B" --json --enrich

  # Append the ledger row to a CSV instead of printing it
  twinvoice parse "$QR_A" "$QR_B" --output data/invoices/invoices.csv`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().Bool("json", false, "Print the invoice as JSON instead of a ledger row")
	parseCmd.Flags().Bool("enrich", false, "Enrich seller name and items from the MOF platform (needs MOF_ENDPOINT)")
	parseCmd.Flags().Bool("categorize", false, "Classify the invoice into a spending category (needs OPENAI_API_KEY)")
	parseCmd.Flags().StringP("output", "o", "", "Append the row to this ledger file instead of printing it")
	parseCmd.Flags().String("format", "csv", "Ledger format for --output: csv or tsv")
}

func runParse(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("parse-cmd")

	asJSON, _ := cmd.Flags().GetBool("json")
	enrich, _ := cmd.Flags().GetBool("enrich")
	categorize, _ := cmd.Flags().GetBool("categorize")
	outputPath, _ := cmd.Flags().GetString("output")
	format, _ := cmd.Flags().GetString("format")

	qrA := args[0]
	qrB := ""
	if len(args) == 2 {
		qrB = args[1]
	}

	inv, err := einvoice.ParseBestEffort(qrA, qrB)
	if err != nil {
		return fmt.Errorf("failed to parse invoice: %w", err)
	}

	ctx := cmd.Context()

	if enrich {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		client, err := mof.NewClient(cfg.MOFConfig())
		if err != nil {
			return fmt.Errorf("--enrich requires MOF_ENDPOINT to be set: %w", err)
		}
		inv, _ = client.Enrich(ctx, inv, qrA, qrB)
	}

	if categorize {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.OpenAIAPIKey == "" {
			return fmt.Errorf("--categorize requires OPENAI_API_KEY to be set")
		}
		classifier := category.NewChatGPTClassifier(openai.NewClient(cfg.OpenAIAPIKey), cfg.OpenAIModel)
		label, err := classifier.Categorize(ctx, inv)
		if err != nil {
			log.Warn().Err(err).Msg("Categorization failed, leaving category empty")
		} else {
			inv.Category = label
		}
	}

	if outputPath != "" {
		writer, err := export.NewWriter(outputPath, format)
		if err != nil {
			return err
		}
		if err := writer.Append(ctx, inv.Row()); err != nil {
			return err
		}
		log.Info().
			Str("invoice", inv.InvoiceNumberString()).
			Str("output", outputPath).
			Msg("Appended ledger row")
		return nil
	}

	if asJSON {
		data, err := json.MarshalIndent(inv, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal invoice: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	printRow(inv)
	return nil
}

func printRow(inv *models.Invoice) {
	row := inv.Row()
	w := 0
	for _, h := range models.RowHeaders {
		if n := len([]rune(h)); n > w {
			w = n
		}
	}
	for i, h := range models.RowHeaders {
		fmt.Fprintf(os.Stdout, "%-*s  %s\n", w+(len(h)-len([]rune(h))), h, row[i])
	}
}
