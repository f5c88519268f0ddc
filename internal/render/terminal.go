package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/ppiankov/claimcheck/internal/model"
)

const (
	colorPrimary = "#7D56F4"
	colorSuccess = "#04B575"
	colorWarning = "#F2A900"
	colorError   = "#FF5F5F"
	colorMuted   = "#626262"
	colorBorder  = "#874BFD"
)

// TerminalOptions controls the console summary
type TerminalOptions struct {
	Only    []model.Verdict // Show only these verdicts; empty shows all
	Verbose bool            // Include explanations and sources
}

type terminalStyles struct {
	title   lipgloss.Style
	box     lipgloss.Style
	muted   lipgloss.Style
	verdict map[model.Verdict]lipgloss.Style
}

func newTerminalStyles(r *lipgloss.Renderer) terminalStyles {
	return terminalStyles{
		title: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color(colorPrimary)).
			Padding(0, 1),
		box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorBorder)).
			Padding(0, 1),
		muted: r.NewStyle().Foreground(lipgloss.Color(colorMuted)),
		verdict: map[model.Verdict]lipgloss.Style{
			model.VerdictVerified:     r.NewStyle().Bold(true).Foreground(lipgloss.Color(colorSuccess)),
			model.VerdictInaccurate:   r.NewStyle().Bold(true).Foreground(lipgloss.Color(colorWarning)),
			model.VerdictFalse:        r.NewStyle().Bold(true).Foreground(lipgloss.Color(colorError)),
			model.VerdictUnverifiable: r.NewStyle().Bold(true).Foreground(lipgloss.Color(colorMuted)),
		},
	}
}

// Terminal prints a styled summary. Colors are dropped when w is not a terminal.
func Terminal(w io.Writer, report *model.Report, opts TerminalOptions) error {
	st := newTerminalStyles(lipgloss.NewRenderer(w))
	var b strings.Builder

	title := "claimcheck"
	if report.Source != "" {
		title += " · " + report.Source
	}
	b.WriteString(st.title.Render(title))
	b.WriteString("\n")

	s := report.Summary
	var counts []string
	for _, v := range model.Verdicts {
		counts = append(counts, st.verdict[v].Render(fmt.Sprintf("%s %d", v, s.Count(v))))
	}
	summary := fmt.Sprintf("Accuracy index %d/100 · confidence %s · coverage %.0f%%\n%s",
		s.Index, s.Confidence, s.Coverage*100, strings.Join(counts, "  "))
	if report.Cancelled {
		summary += "\n" + st.verdict[model.VerdictInaccurate].Render(
			fmt.Sprintf("cancelled, %d claim(s) pending", len(report.Pending)))
	}
	b.WriteString(st.box.Render(summary))
	b.WriteString("\n")

	for _, res := range filterResults(report.Results, opts.Only) {
		c, _ := report.Claim(res.ClaimID)
		label := st.verdict[res.Verdict].Render(fmt.Sprintf("%-12s", res.Verdict))
		fmt.Fprintf(&b, "%3d  %s  %s\n", res.ClaimID, label, c.Text)

		if !opts.Verbose && res.Verdict == model.VerdictVerified {
			continue
		}
		if res.Explanation != "" {
			b.WriteString("     " + st.muted.Render(res.Explanation) + "\n")
		}
		if res.CorrectInfo != "" {
			b.WriteString("     correct: " + res.CorrectInfo + "\n")
		}
		if opts.Verbose {
			for _, u := range res.CitedSources {
				b.WriteString("     " + st.muted.Render("- "+u) + "\n")
			}
		}
	}

	for _, wn := range report.Warnings {
		b.WriteString(st.muted.Render(fmt.Sprintf("warning: chunk %d: %s", wn.Chunk+1, wn.Message)))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
