package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/pipeline"
	"github.com/ppiankov/claimcheck/internal/render"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	outJSON        string
	outMD          string
	outXLSX        string
	onlyVerdicts   string
	checkURL       string
	timeout        time.Duration
	workers        int
	llmProvider    string
	llmModel       string
	searchProvider string
	fixtures       string
	noCache        bool
	checkLinks     bool
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check [file|-]",
	Short: "Extract and verify the factual claims in one document",
	Long: `Check reads a document and:
- Extracts verifiable factual claims (statistics, dates, financial, technical)
- Searches the web for evidence on each claim
- Has a language model adjudicate each claim against that evidence
- Reports a verdict, explanation and cited sources per claim

Plain text and Markdown are read verbatim; HTML is reduced to its main text.
PDF and Word documents are not supported. Press Ctrl-C to stop early and
still get a report for the claims verified so far.

Example:
  claimcheck check article.md
  claimcheck check --url https://example.com/post --md report.md
  cat draft.txt | claimcheck check - --json - --only false,inaccurate
  claimcheck check notes.txt --search-provider static --fixtures fixtures.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&checkURL, "url", "", "fetch the document from this URL instead of a file")

	// Output flags
	checkCmd.Flags().StringVar(&outJSON, "json", "", "write the JSON report to this path (- for stdout)")
	checkCmd.Flags().StringVar(&outMD, "md", "", "write the Markdown report to this path")
	checkCmd.Flags().StringVar(&outXLSX, "xlsx", "", "write the XLSX report to this path")
	checkCmd.Flags().StringVar(&onlyVerdicts, "only", "", "show only these verdicts in the terminal summary (e.g. false,inaccurate)")

	addPipelineFlags(checkCmd.Flags())
	checkCmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "overall timeout; claims not verified by then are reported as pending")
}

// addPipelineFlags registers the flags shared by check and batch
func addPipelineFlags(fs *pflag.FlagSet) {
	fs.IntVar(&workers, "workers", 0, "claims verified concurrently (default from config: 4)")
	fs.StringVar(&llmProvider, "llm-provider", "", "LLM provider (openai, anthropic, ollama, gemini)")
	fs.StringVar(&llmModel, "llm-model", "", "LLM model name")
	fs.StringVar(&searchProvider, "search-provider", "", "search provider (tavily, static)")
	fs.StringVar(&fixtures, "fixtures", "", "YAML fixtures for the static search provider")
	fs.BoolVar(&noCache, "no-cache", false, "disable the response cache")
	fs.BoolVar(&checkLinks, "check-links", false, "check that cited source URLs are reachable")
}

// applyFlags overlays explicitly set flags on cfg
func applyFlags(fs *pflag.FlagSet, cfg *model.Config) {
	if fs.Changed("workers") {
		cfg.Concurrency.Workers = workers
	}
	if fs.Changed("llm-provider") {
		cfg.LLM.Provider = llmProvider
		cfg.LLM.APIKey = ""
	}
	if fs.Changed("llm-model") {
		cfg.LLM.Model = llmModel
	}
	if fs.Changed("search-provider") {
		cfg.Search.Provider = searchProvider
		cfg.Search.APIKey = ""
	}
	if fs.Changed("fixtures") {
		cfg.Search.Fixtures = fixtures
		if !fs.Changed("search-provider") {
			cfg.Search.Provider = "static"
		}
	}
	if noCache {
		cfg.Cache.Backend = "none"
	}
	if checkLinks {
		cfg.Verify.CheckLinks = true
	}
	// Provider switches need their own keys
	applyProviderEnv(cfg)
}

func runCheck(cmd *cobra.Command, args []string) error {
	source := checkURL
	if len(args) == 1 {
		if checkURL != "" {
			return goerr.New("pass either a file or --url, not both")
		}
		source = args[0]
	}
	if err := requireSource(source); err != nil {
		return err
	}

	var only []model.Verdict
	if onlyVerdicts != "" {
		var err error
		if only, err = render.ParseVerdictFilter(onlyVerdicts); err != nil {
			return err
		}
	}

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	applyFlags(cmd.Flags(), &cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ctx = logging.With(ctx, logging.Default())

	p, cleanup, err := buildPipeline(ctx, cfg, cmd.InOrStdin(), pipeline.WithObserver(progressObserver(os.Stderr)))
	if err != nil {
		return err
	}
	defer cleanup()

	if verbose {
		fmt.Fprintf(os.Stderr, "Checking: %s\n", source)
		fmt.Fprintf(os.Stderr, "LLM: %s %s\n", cfg.LLM.Provider, cfg.LLM.Model)
		fmt.Fprintf(os.Stderr, "Search: %s\n", cfg.Search.Provider)
		fmt.Fprintf(os.Stderr, "Workers: %d, timeout: %v, cache: %s\n\n", cfg.Concurrency.Workers, timeout, cfg.Cache.Backend)
	}

	report, err := p.RunSource(ctx, source)
	if err != nil {
		return goerr.Wrap(err, "check failed")
	}

	return writeOutputs(cmd.OutOrStdout(), report, only)
}

// writeOutputs writes the requested report files and the terminal summary
func writeOutputs(stdout io.Writer, report *model.Report, only []model.Verdict) error {
	if outJSON == "-" {
		return render.JSON(stdout, report)
	}

	outputs := []struct {
		path   string
		format render.Format
	}{
		{outJSON, render.FormatJSON},
		{outMD, render.FormatMarkdown},
		{outXLSX, render.FormatXLSX},
	}
	for _, out := range outputs {
		if out.path == "" {
			continue
		}
		if err := render.WriteFile(out.path, out.format, report); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", out.path)
	}

	return render.Terminal(stdout, report, render.TerminalOptions{Only: only, Verbose: verbose})
}

// progressObserver prints one line per verified claim
func progressObserver(w io.Writer) pipeline.Observer {
	return func(done, total int, res model.VerificationResult) {
		fmt.Fprintf(w, "[%d/%d] claim %d: %s\n", done, total, res.ClaimID, res.Verdict)
	}
}
