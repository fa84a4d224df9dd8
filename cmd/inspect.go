package cmd

import (
	"crypto/sha256"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"twinvoice/internal/einvoice"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <payload-or-file>...",
	Short: "Show privacy-safe summaries of decoded QR payloads",
	Long: `Inspect decoded QR payloads without printing their contents.

Each argument is a payload string, or a path to a file holding one payload per
line. For every payload the summary shows its length, colon count, masked
invoice key and a short content hash, so decode problems can be diagnosed and
shared without exposing purchase data.`,
	Example: `  twinvoice inspect "$QR_A" "$QR_B"
  twinvoice inspect data/invoices/decoded/capture-01.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	for _, arg := range args {
		texts, label, err := payloadsFromArg(arg)
		if err != nil {
			return err
		}
		for i, text := range texts {
			printPayloadSummary(label, i, text)
		}
	}
	return nil
}

func payloadsFromArg(arg string) ([]string, string, error) {
	info, err := os.Stat(arg)
	if err == nil && info.Mode().IsRegular() {
		texts, err := readPayloadLines(arg)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read %s: %w", arg, err)
		}
		return texts, arg, nil
	}
	return []string{arg}, "arg", nil
}

func printPayloadSummary(label string, index int, text string) {
	cleaned := einvoice.CleanPayload(text)

	keyField := "-"
	if key, _, ok := einvoice.FindKey(cleaned); ok {
		keyField = einvoice.MaskKey(key)
	}

	sum := sha256.Sum256([]byte(cleaned))

	fmt.Printf("%s[%d]  runes=%d  colons=%d  key=%s  sha=%x\n",
		label, index,
		len([]rune(cleaned)),
		strings.Count(cleaned, ":"),
		keyField,
		sum[:5])
}
