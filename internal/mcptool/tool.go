package mcptool

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/util"
)

// Checker runs the claim pipeline; *pipeline.Pipeline satisfies it
type Checker interface {
	Run(ctx context.Context, text string) (*model.Report, error)
	RunSource(ctx context.Context, source string) (*model.Report, error)
}

// MetadataCheckDocument describes the check_document tool
var MetadataCheckDocument = &mcp.Tool{
	Name: "check_document",
	Description: "Extract the factual claims from a document and verify each one against web evidence. " +
		"Pass either the document text or an http(s) URL. Each claim gets a verdict " +
		"(Verified, Inaccurate, False, Unverifiable), an explanation, a corrected figure when " +
		"the claim is wrong, and the cited source URLs.",
}

// InputCheckDocument is the input for the check_document tool
type InputCheckDocument struct {
	Text string `json:"text,omitempty" jsonschema:"Document text to check"`
	URL  string `json:"url,omitempty" jsonschema:"http(s) URL of a page to fetch and check instead of text"`
}

// ClaimVerdict is one checked claim in the tool output
type ClaimVerdict struct {
	ID          int      `json:"id"`
	Claim       string   `json:"claim"`
	Category    string   `json:"category"`
	Verdict     string   `json:"verdict"`
	Explanation string   `json:"explanation"`
	CorrectInfo string   `json:"correct_info,omitempty"`
	Sources     []string `json:"sources"`
	Confidence  *float64 `json:"confidence,omitempty"`
}

// OutputCheckDocument is the output for the check_document tool
type OutputCheckDocument struct {
	RunID    string         `json:"run_id"`
	Index    int            `json:"accuracy_index"`
	Rating   string         `json:"confidence"`
	Counts   map[string]int `json:"counts"`
	Claims   []ClaimVerdict `json:"claims"`
	Warnings []string       `json:"warnings,omitempty"`
	Pending  []int          `json:"pending,omitempty"`
}

// Tool binds the check_document handler to a pipeline
type Tool struct {
	checker  Checker
	resolver util.HostResolver
}

// Option configures a Tool
type Option func(*Tool)

// WithResolver sets the resolver used to vet document URLs
func WithResolver(r util.HostResolver) Option {
	return func(t *Tool) { t.resolver = r }
}

// New creates the tool
func New(checker Checker, opts ...Option) *Tool {
	t := &Tool{checker: checker}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// CheckDocument runs the pipeline over text or a URL
func (t *Tool) CheckDocument(ctx context.Context, _ *mcp.CallToolRequest, input InputCheckDocument) (*mcp.CallToolResult, OutputCheckDocument, error) {
	text := strings.TrimSpace(input.Text)
	rawURL := strings.TrimSpace(input.URL)

	if (text == "") == (rawURL == "") {
		return nil, OutputCheckDocument{}, goerr.New("exactly one of text or url is required")
	}

	var (
		report *model.Report
		err    error
	)
	if rawURL != "" {
		u, uerr := util.RemoteURL(ctx, rawURL, t.resolver)
		if uerr != nil {
			return nil, OutputCheckDocument{}, uerr
		}
		report, err = t.checker.RunSource(ctx, u.String())
	} else {
		report, err = t.checker.Run(ctx, input.Text)
	}
	if err != nil {
		logging.From(ctx).Warn("mcp.check.failed", "error", err)
		return nil, OutputCheckDocument{}, err
	}

	return nil, toOutput(report), nil
}

func toOutput(report *model.Report) OutputCheckDocument {
	out := OutputCheckDocument{
		RunID:  report.RunID,
		Index:  report.Summary.Index,
		Rating: report.Summary.Confidence,
		Counts: make(map[string]int, len(model.Verdicts)),
		Claims: make([]ClaimVerdict, 0, len(report.Results)),
	}
	for _, v := range model.Verdicts {
		out.Counts[strings.ToLower(string(v))] = report.Summary.Count(v)
	}

	for _, res := range report.Results {
		c, _ := report.Claim(res.ClaimID)
		sources := res.CitedSources
		if sources == nil {
			sources = []string{}
		}
		out.Claims = append(out.Claims, ClaimVerdict{
			ID:          res.ClaimID,
			Claim:       c.Text,
			Category:    string(c.Category),
			Verdict:     string(res.Verdict),
			Explanation: res.Explanation,
			CorrectInfo: res.CorrectInfo,
			Sources:     sources,
			Confidence:  res.Confidence,
		})
	}

	for _, w := range report.Warnings {
		out.Warnings = append(out.Warnings, w.Message)
	}
	out.Pending = report.Pending
	return out
}

// NewServer creates an MCP server exposing check_document
func NewServer(checker Checker, version string, opts ...Option) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "claimcheck",
		Version: version,
	}, nil)

	mcp.AddTool(server, MetadataCheckDocument, New(checker, opts...).CheckDocument)
	return server
}

// Serve runs the MCP server over stdio until the client disconnects or ctx is done
func Serve(ctx context.Context, checker Checker, version string) error {
	logging.From(ctx).Info("mcp.serve.start", "transport", "stdio")
	if err := NewServer(checker, version).Run(ctx, &mcp.StdioTransport{}); err != nil {
		return goerr.Wrap(err, "mcp server")
	}
	return nil
}
