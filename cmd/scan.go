package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"twinvoice/internal/category"
	"twinvoice/internal/config"
	"twinvoice/internal/einvoice"
	"twinvoice/internal/export"
	"twinvoice/internal/logger"
	"twinvoice/internal/mof"
	"twinvoice/internal/scan"
	"twinvoice/internal/sheets"
)

var scanCmd = &cobra.Command{
	Use:   "scan <input-dir>",
	Short: "Reconcile decoded QR payloads from a directory (or stdin) into a ledger",
	Long: `Scan decoded QR payload text files and append one ledger row per invoice.

Each matched file holds one decoded QR payload per line (the output of any QR
decoder). Payloads are stashed per invoice key across files, so the two QR
halves of one invoice may arrive in different files and in any order. An
invoice is saved as soon as a locally parseable pair exists, at most once per
run.

Pass "-" as the input directory to read payloads line by line from stdin.`,
	Example: `  # Scan decoded payload dumps into a CSV ledger
  twinvoice scan data/invoices/decoded --output data/invoices/invoices.csv

  # TSV output, stop after 5 invoices
  twinvoice scan data/invoices/decoded --format tsv --max 5

  # Pipe payloads in, enrich from the MOF platform, append to a Google Sheet
  cat payloads.txt | twinvoice scan - --enrich --sheet

  # Require locally parseable pairs (no header-only fallback rows)
  twinvoice scan data/invoices/decoded --allow-single=false`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringP("output", "o", "data/invoices/invoices.csv", "Ledger file path")
	scanCmd.Flags().String("format", "csv", "Ledger format: csv or tsv")
	scanCmd.Flags().String("glob", "*.txt", "Comma-separated glob(s) for payload files in input-dir")
	scanCmd.Flags().Int("max", 0, "Stop after N invoices are saved (0 = no limit)")
	scanCmd.Flags().Bool("allow-single", true, "Save header-only rows for invoices whose second QR never decoded")
	scanCmd.Flags().Bool("debug-decode", false, "Log privacy-safe decode summaries (lengths/hashes/masked keys)")
	scanCmd.Flags().Bool("enrich", false, "Enrich seller name and items from the MOF platform (needs MOF_ENDPOINT)")
	scanCmd.Flags().Bool("categorize", false, "Classify each invoice into a spending category (needs OPENAI_API_KEY)")
	scanCmd.Flags().Bool("sheet", false, "Also append rows to the Google Sheet from GOOGLE_SHEET_URL")
}

func runScan(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("scan-cmd")

	outputPath, _ := cmd.Flags().GetString("output")
	format, _ := cmd.Flags().GetString("format")
	globs, _ := cmd.Flags().GetString("glob")
	maxSaves, _ := cmd.Flags().GetInt("max")
	allowSingle, _ := cmd.Flags().GetBool("allow-single")
	debugDecode, _ := cmd.Flags().GetBool("debug-decode")
	enrich, _ := cmd.Flags().GetBool("enrich")
	categorize, _ := cmd.Flags().GetBool("categorize")
	useSheet, _ := cmd.Flags().GetBool("sheet")

	inputDir := args[0]

	log.Info().
		Str("input", inputDir).
		Str("output", outputPath).
		Str("format", format).
		Int("max", maxSaves).
		Bool("allow_single", allowSingle).
		Bool("enrich", enrich).
		Bool("categorize", categorize).
		Bool("sheet", useSheet).
		Msg("Starting scan")

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(log)
	defer cancel()

	opts := scan.Options{MaxSaves: maxSaves}

	writer, err := export.NewWriter(outputPath, format)
	if err != nil {
		return err
	}
	opts.Sinks = append(opts.Sinks, writer)

	if useSheet {
		if cfg.GoogleSheetURL == "" {
			return fmt.Errorf("--sheet requires GOOGLE_SHEET_URL to be set")
		}
		sheetService, err := sheets.NewService(ctx, cfg.GoogleSheetURL, cfg.GoogleSheetWorksheet)
		if err != nil {
			return err
		}
		opts.Sinks = append(opts.Sinks, sheetService)
	}

	if enrich {
		client, err := mof.NewClient(cfg.MOFConfig())
		if err != nil {
			return fmt.Errorf("--enrich requires MOF_ENDPOINT to be set: %w", err)
		}
		opts.Enricher = client
	}

	if categorize {
		if cfg.OpenAIAPIKey == "" {
			return fmt.Errorf("--categorize requires OPENAI_API_KEY to be set")
		}
		opts.Classifier = category.NewChatGPTClassifier(openai.NewClient(cfg.OpenAIAPIKey), cfg.OpenAIModel)
	}

	session := scan.NewSession(opts)

	if inputDir == "-" {
		err = scanStdin(ctx, session, debugDecode)
	} else {
		err = scanDirectory(ctx, session, inputDir, globs, debugDecode, log)
	}
	if err != nil {
		return err
	}

	// Summarize invoices still missing their second QR, then optionally save
	// them header-only.
	for i, key := range session.IncompleteKeys() {
		if i >= 10 {
			break
		}
		log.Warn().Str("key", einvoice.MaskKey(key)).Msg("Incomplete invoice (second QR never decoded)")
	}
	if allowSingle && !session.Done() {
		session.FlushSingles(ctx)
	}

	log.Info().
		Int("saved", session.Saved()).
		Str("output", outputPath).
		Msg("Scan finished")
	return nil
}

// scanDirectory feeds every payload file matched under inputDir into the
// session, one file per batch.
func scanDirectory(ctx context.Context, session *scan.Session, inputDir, globs string, debugDecode bool, log zerolog.Logger) error {
	info, err := os.Stat(inputDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("input-dir not found or not a directory: %s", inputDir)
	}

	files, err := matchPayloadFiles(inputDir, globs)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		log.Warn().Str("dir", inputDir).Str("glob", globs).Msg("No payload files matched")
		return nil
	}

	for _, path := range files {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		texts, err := readPayloadLines(path)
		if err != nil {
			log.Warn().Err(err).Str("file", path).Msg("Skip unreadable payload file")
			continue
		}
		if debugDecode {
			log.Info().Str("file", path).Msg("Decode summary follows")
			session.LogDecodeSummary(texts)
		}
		if len(texts) == 0 {
			log.Warn().Str("file", path).Msg("No payload lines in file")
			continue
		}

		if _, err := session.Ingest(ctx, texts); err != nil {
			return err
		}
		if session.Done() {
			log.Info().Int("max", session.Saved()).Msg("Reached --max; stopping")
			break
		}
	}
	return nil
}

// scanStdin feeds each stdin line into the session as its own batch,
// mirroring one capture attempt per line.
func scanStdin(ctx context.Context, session *scan.Session, debugDecode bool) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if debugDecode {
			session.LogDecodeSummary([]string{line})
		}
		if _, err := session.Ingest(ctx, []string{line}); err != nil {
			return err
		}
		if session.Done() {
			break
		}
	}
	return scanner.Err()
}

// matchPayloadFiles expands the comma-separated globs under dir, sorted and
// deduplicated.
func matchPayloadFiles(dir, globs string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	for _, g := range strings.Split(globs, ",") {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		matches, err := filepath.Glob(filepath.Join(dir, g))
		if err != nil {
			return nil, fmt.Errorf("bad glob %q: %w", g, err)
		}
		for _, m := range matches {
			if info, err := os.Stat(m); err != nil || !info.Mode().IsRegular() {
				continue
			}
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

// readPayloadLines reads one decoded QR payload per non-blank line.
func readPayloadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var texts []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); strings.TrimSpace(line) != "" {
			texts = append(texts, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return texts, nil
}

// signalContext returns a context canceled by SIGINT/SIGTERM.
func signalContext(log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, stopping")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
