package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/claimcheck/internal/model"
)

// JSON writes the report as indented JSON
func JSON(w io.Writer, report *model.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return goerr.Wrap(err, "encode report")
	}
	return nil
}

// Format names a report file format
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatXLSX     Format = "xlsx"
)

// FormatFromPath picks a format from the file extension
func FormatFromPath(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return FormatJSON, nil
	case ".md", ".markdown":
		return FormatMarkdown, nil
	case ".xlsx":
		return FormatXLSX, nil
	default:
		return "", goerr.New("unknown report format", goerr.V("path", path), goerr.V("ext", ext))
	}
}

// WriteFile renders the report to path in the given format
func WriteFile(path string, format Format, report *model.Report) error {
	var buf bytes.Buffer

	switch format {
	case FormatJSON:
		if err := JSON(&buf, report); err != nil {
			return err
		}
	case FormatMarkdown:
		if err := Markdown(&buf, report); err != nil {
			return err
		}
	case FormatXLSX:
		data, err := XLSX(report)
		if err != nil {
			return err
		}
		buf.Write(data)
	default:
		return goerr.New("unknown report format", goerr.V("format", format))
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return goerr.Wrap(err, "create report directory", goerr.V("dir", dir))
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return goerr.Wrap(err, "write report", goerr.V("path", path))
	}
	return nil
}

// ParseVerdictFilter parses a comma-separated verdict list such as "false,inaccurate"
func ParseVerdictFilter(s string) ([]model.Verdict, error) {
	var out []model.Verdict
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, ok := model.ParseVerdict(part)
		if !ok {
			return nil, goerr.New("unknown verdict", goerr.V("verdict", part))
		}
		out = append(out, v)
	}
	return out, nil
}

// filterResults keeps results whose verdict is in only; an empty filter keeps everything
func filterResults(results []model.VerificationResult, only []model.Verdict) []model.VerificationResult {
	if len(only) == 0 {
		return results
	}
	keep := make(map[model.Verdict]bool, len(only))
	for _, v := range only {
		keep[v] = true
	}
	var out []model.VerificationResult
	for _, r := range results {
		if keep[r.Verdict] {
			out = append(out, r)
		}
	}
	return out
}

func confidenceText(c *float64) string {
	if c == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", *c*100)
}
