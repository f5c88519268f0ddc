package render

import (
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/xuri/excelize/v2"
)

const (
	resultsSheet = "Results"
	summarySheet = "Summary"
	maxCellChars = 32767 // Excel cell text limit
)

var resultsHeaders = []string{
	"ID",
	"Claim",
	"Category",
	"Asserted Value",
	"Verdict",
	"Confidence",
	"Explanation",
	"Correct Info",
	"Sources",
}

// XLSX returns the report as a workbook with a Results and a Summary sheet
func XLSX(report *model.Report) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return nil, goerr.Wrap(err, "rename results sheet")
	}
	if index, _ := f.GetSheetIndex(summarySheet); index == -1 {
		if _, err := f.NewSheet(summarySheet); err != nil {
			return nil, goerr.Wrap(err, "create summary sheet")
		}
	}
	activeIndex, _ := f.GetSheetIndex(resultsSheet)
	f.SetActiveSheet(activeIndex)

	for i, h := range resultsHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(resultsSheet, cell, h)
	}

	row := 2
	for _, c := range report.Claims {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			if s, ok := v.(string); ok && len(s) > maxCellChars {
				v = s[:maxCellChars]
			}
			_ = f.SetCellValue(resultsSheet, cell, v)
		}

		write(1, c.ID)
		write(2, c.Text)
		write(3, string(c.Category))
		write(4, c.AssertedValue)

		if res, ok := report.Result(c.ID); ok {
			write(5, string(res.Verdict))
			if res.Confidence != nil {
				write(6, *res.Confidence)
			}
			write(7, res.Explanation)
			write(8, res.CorrectInfo)
			write(9, strings.Join(res.CitedSources, "\n"))
		} else {
			write(5, "Pending")
		}
		row++
	}

	_ = f.SetColWidth(resultsSheet, "A", "A", 6)
	_ = f.SetColWidth(resultsSheet, "B", "B", 60)
	_ = f.SetColWidth(resultsSheet, "C", "C", 12)
	_ = f.SetColWidth(resultsSheet, "D", "D", 24)
	_ = f.SetColWidth(resultsSheet, "E", "F", 14)
	_ = f.SetColWidth(resultsSheet, "G", "G", 60)
	_ = f.SetColWidth(resultsSheet, "H", "H", 32)
	_ = f.SetColWidth(resultsSheet, "I", "I", 60)

	s := report.Summary
	rows := [][]any{
		{"Run ID", report.RunID},
		{"Source", report.Source},
		{"Total", s.Total},
		{"Verified", s.Verified},
		{"Inaccurate", s.Inaccurate},
		{"False", s.False},
		{"Unverifiable", s.Unverifiable},
		{"Accuracy Index", s.Index},
		{"Confidence", s.Confidence},
		{"Coverage", s.Coverage},
		{"Cancelled", report.Cancelled},
		{"Pending", len(report.Pending)},
	}
	for i, r := range rows {
		for j, v := range r {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+1)
			_ = f.SetCellValue(summarySheet, cell, v)
		}
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 18)
	_ = f.SetColWidth(summarySheet, "B", "B", 48)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, goerr.Wrap(err, "xlsx write")
	}

	logging.Default().Debug("render.xlsx.ok",
		"run_id", report.RunID,
		"rows", len(report.Claims),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
