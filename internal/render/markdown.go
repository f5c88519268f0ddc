package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/claimcheck/internal/model"
)

// Markdown writes a human-readable report
func Markdown(w io.Writer, report *model.Report) error {
	var b strings.Builder

	b.WriteString("# Claim check report\n\n")
	if report.Source != "" {
		fmt.Fprintf(&b, "Source: `%s`  \n", report.Source)
	}
	fmt.Fprintf(&b, "Run: `%s`  \n", report.RunID)
	if !report.FinishedAt.IsZero() {
		fmt.Fprintf(&b, "Finished: %s\n", report.FinishedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	b.WriteString("\n")

	s := report.Summary
	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "**Accuracy index: %d/100** (confidence: %s, coverage: %.0f%%)\n\n", s.Index, s.Confidence, s.Coverage*100)
	b.WriteString("| Verdict | Count |\n|---|---|\n")
	for _, v := range model.Verdicts {
		fmt.Fprintf(&b, "| %s | %d |\n", v, s.Count(v))
	}
	fmt.Fprintf(&b, "| **Total** | %d |\n\n", s.Total)

	if report.Cancelled {
		fmt.Fprintf(&b, "> Run cancelled: %d claim(s) were not verified.\n\n", len(report.Pending))
	}

	if len(report.Claims) == 0 {
		b.WriteString("No verifiable claims were found.\n")
	} else {
		b.WriteString("## Claims\n")
	}

	for _, c := range report.Claims {
		res, ok := report.Result(c.ID)
		fmt.Fprintf(&b, "\n### %d. %s\n\n", c.ID, escapeMarkdown(c.Text))
		fmt.Fprintf(&b, "- Category: %s\n", c.Category)
		if c.AssertedValue != "" {
			fmt.Fprintf(&b, "- Asserted value: %s\n", escapeMarkdown(c.AssertedValue))
		}
		if !ok {
			b.WriteString("- Verdict: _pending_\n")
			continue
		}
		fmt.Fprintf(&b, "- Verdict: **%s**", res.Verdict)
		if res.Confidence != nil {
			fmt.Fprintf(&b, " (%s)", confidenceText(res.Confidence))
		}
		b.WriteString("\n")
		if res.Explanation != "" {
			fmt.Fprintf(&b, "- Explanation: %s\n", escapeMarkdown(res.Explanation))
		}
		if res.CorrectInfo != "" {
			fmt.Fprintf(&b, "- Correct information: %s\n", escapeMarkdown(res.CorrectInfo))
		}
		if len(res.CitedSources) > 0 {
			b.WriteString("- Sources:\n")
			for i, u := range res.CitedSources {
				fmt.Fprintf(&b, "  %d. %s\n", i+1, sourceLine(res, u))
			}
		}
	}

	if len(report.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, wn := range report.Warnings {
			fmt.Fprintf(&b, "- chunk %d: %s\n", wn.Chunk+1, escapeMarkdown(wn.Message))
		}
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return goerr.Wrap(err, "write markdown report")
	}
	return nil
}

func sourceLine(res model.VerificationResult, u string) string {
	for _, s := range res.Sources {
		if s.URL != u {
			continue
		}
		line := u
		if s.Title != "" {
			line = fmt.Sprintf("[%s](%s)", escapeMarkdown(s.Title), u)
		}
		line += fmt.Sprintf(" (%s)", s.Authority)
		if s.Reachable != nil && !*s.Reachable {
			line += " **unreachable**"
		}
		return line
	}
	return u
}

var markdownEscaper = strings.NewReplacer(
	"|", `\|`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"\n", " ",
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
