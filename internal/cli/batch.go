package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/render"
	"github.com/ppiankov/claimcheck/internal/worker"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
	formats      string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Check many documents from a list file in parallel",
	Long: `Batch checks multiple documents concurrently:
- Read document sources from the input file (one file path or URL per line,
  blank lines and # comments ignored)
- Check documents in parallel with a configurable worker count
- Each document's claims are verified concurrently as well
- Write one report per document into the output directory

Example:
  claimcheck batch sources.txt
  claimcheck batch sources.txt --concurrency 4 --output-dir ./reports
  claimcheck batch sources.txt --formats json,md,xlsx --timeout 30m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 2, "documents checked concurrently")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./claimcheck-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for the batch")
	batchCmd.Flags().StringVar(&formats, "formats", "json,md", "report formats to write (json, md, xlsx)")

	addPipelineFlags(batchCmd.Flags())
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]

	reportFormats, err := parseFormats(formats)
	if err != nil {
		return err
	}

	sources, err := worker.ReadSourcesFromFile(file)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	applyFlags(cmd.Flags(), &cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, batchTimeout)
	defer cancel()
	ctx = logging.With(ctx, logging.Default())

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  claimcheck batch\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s (%d documents)\n", file, len(sources))
	fmt.Fprintf(os.Stderr, "  Documents:    %d at a time\n", concurrency)
	fmt.Fprintf(os.Stderr, "  Claims:       %d at a time per document\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "  LLM:          %s %s\n", cfg.LLM.Provider, cfg.LLM.Model)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return goerr.Wrap(err, "create output directory", goerr.V("dir", outputDir))
	}

	p, cleanup, err := buildPipeline(ctx, cfg, cmd.InOrStdin())
	if err != nil {
		return err
	}
	defer cleanup()

	results := worker.NewBatchProcessor(p, concurrency).Process(ctx, sources)

	successCount := 0
	failureCount := 0

	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Source, result.Error)
			continue
		}

		base := filepath.Join(outputDir, reportBaseName(result.Index, result.Source))
		failed := false
		for _, f := range reportFormats {
			path := base + formatExt(f)
			if err := render.WriteFile(path, f, result.Report); err != nil {
				fmt.Fprintf(os.Stderr, "✗ %s: failed to write %s: %v\n", result.Source, path, err)
				failed = true
				break
			}
		}
		if failed {
			failureCount++
			continue
		}

		successCount++
		s := result.Report.Summary
		fmt.Fprintf(os.Stderr, "✓ %s (index: %d/100, %d claims, %d false, %d inaccurate)\n",
			result.Source, s.Index, s.Total, s.False, s.Inaccurate)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d documents\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if successCount == 0 && failureCount > 0 {
		return goerr.New("every document failed", goerr.V("failures", failureCount))
	}
	return nil
}

func parseFormats(s string) ([]render.Format, error) {
	var out []render.Format
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		f, err := render.FormatFromPath("report." + part)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil, goerr.New("no report formats given")
	}
	return out, nil
}

func formatExt(f render.Format) string {
	switch f {
	case render.FormatMarkdown:
		return ".md"
	case render.FormatXLSX:
		return ".xlsx"
	default:
		return ".json"
	}
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// reportBaseName derives a file name from a document source, prefixed with
// its position so two sources never collide
func reportBaseName(index int, source string) string {
	s := strings.TrimPrefix(strings.TrimPrefix(source, "https://"), "http://")
	s = strings.TrimSuffix(s, filepath.Ext(s))
	s = unsafeFilenameChars.ReplaceAllString(s, "_")
	s = strings.Trim(s, "._-")

	// Limit length
	if len(s) > 80 {
		s = s[len(s)-80:]
	}
	if s == "" {
		s = "document"
	}
	return fmt.Sprintf("%03d-%s", index+1, s)
}
