package verify

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"text/template"

	"github.com/ppiankov/claimcheck/internal/llm"
	"github.com/ppiankov/claimcheck/internal/model"
)

const adjudicationSystem = `You are a precise fact-checker. You judge claims strictly against the evidence you are given and never rely on memory for figures.`

var adjudicationTemplate = template.Must(template.New("verdict").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(`Verify the claim below against the numbered evidence.

CLAIM:
"{{.Claim.Text}}"

ASSERTED VALUE: {{.Claim.AssertedValue}}
CATEGORY: {{.Claim.Category}}
{{- if .Claim.Context}}

CONTEXT FROM DOCUMENT:
"{{.Claim.Context}}"
{{- end}}

TODAY'S DATE: {{.Today}}

EVIDENCE:
{{range $i, $e := .Evidence}}
[{{inc $i}}] {{if $e.Title}}{{$e.Title}} {{end}}({{$e.Authority}} source{{if $e.PublishedAt}}, published {{$e.PublishedAt.Format "2006-01-02"}}{{end}})
URL: {{$e.SourceURL}}
{{$e.Snippet}}
{{end}}
Classify the claim into exactly one verdict:
- "Verified": the evidence corroborates the asserted value. Numeric values within {{.Tolerance}}% of the evidence, or within a small, clearly stated margin of error, still count as Verified.
- "Inaccurate": the claim was once true but is superseded by newer data (for example an outdated statistic), or it deviates slightly from current figures.
- "False": the evidence directly contradicts the claim, or none of the evidence supports it even though relevant evidence exists.

Rules:
- Prefer primary sources (statistics offices, official documents) over secondary and tertiary ones when they disagree.
- List in "cited_evidence" the numbers of the evidence items your verdict relies on.
- When the verdict is Inaccurate or False, put the correct figure in "correct_info". Otherwise use null.
- "confidence" is your confidence in the verdict, from 0.0 to 1.0.
- Keep "explanation" to two or three sentences that quote the specific figures from the evidence.`))

type adjudicationData struct {
	Claim     model.Claim
	Evidence  []model.Evidence
	Tolerance string
	Today     string
}

func renderAdjudication(d adjudicationData) (string, error) {
	var b strings.Builder
	if err := adjudicationTemplate.Execute(&b, d); err != nil {
		return "", err
	}
	return b.String(), nil
}

func formatTolerance(pct float64) string {
	return strconv.FormatFloat(pct, 'f', -1, 64)
}

// verdictShape is the adjudication response contract
var verdictShape = llm.MustShape("verdict", map[string]any{
	"type":     "object",
	"required": []string{"verdict", "explanation", "cited_evidence"},
	"properties": map[string]any{
		"verdict":     map[string]any{"type": "string", "enum": []string{"Verified", "Inaccurate", "False"}},
		"explanation": map[string]any{"type": "string", "minLength": 1},
		"cited_evidence": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "integer"},
		},
		"correct_info": map[string]any{"type": []string{"string", "null"}},
		"confidence":   map[string]any{"type": []string{"number", "null"}, "minimum": 0, "maximum": 1},
	},
}).WithNormalizer(normalizeVerdict)

type verdictReply struct {
	Verdict       string   `json:"verdict"`
	Explanation   string   `json:"explanation"`
	CitedEvidence []int    `json:"cited_evidence"`
	CorrectInfo   *string  `json:"correct_info"`
	Confidence    *float64 `json:"confidence"`
}

// normalizeVerdict repairs the common near-misses: verdict case, the
// "status" alias, citations given as strings and percentages as confidence
func normalizeVerdict(doc any) (any, []string) {
	obj, ok := doc.(map[string]any)
	if !ok {
		return doc, nil
	}
	var changed []string

	if _, has := obj["verdict"]; !has {
		if s, ok := obj["status"]; ok {
			obj["verdict"] = s
			delete(obj, "status")
			changed = append(changed, "status->verdict")
		}
	}

	if s, ok := obj["verdict"].(string); ok {
		if v, ok := model.ParseVerdict(s); ok && string(v) != s {
			obj["verdict"] = string(v)
			changed = append(changed, fmt.Sprintf("verdict %q->%q", s, v))
		}
	}

	switch cited := obj["cited_evidence"].(type) {
	case nil:
		obj["cited_evidence"] = []any{}
		changed = append(changed, "cited_evidence (defaulted)")
	case []any:
		fixed := make([]any, 0, len(cited))
		for _, c := range cited {
			switch n := c.(type) {
			case float64:
				fixed = append(fixed, math.Trunc(n))
			case string:
				if i, err := strconv.Atoi(strings.Trim(n, "[] ")); err == nil {
					fixed = append(fixed, float64(i))
					changed = append(changed, "cited_evidence string->int")
				}
			}
		}
		obj["cited_evidence"] = fixed
	}

	switch c := obj["confidence"].(type) {
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(c), "%"), 64); err == nil {
			if f > 1 {
				f /= 100
			}
			obj["confidence"] = f
			changed = append(changed, "confidence string->number")
		}
	case float64:
		if c > 1 && c <= 100 {
			obj["confidence"] = c / 100
			changed = append(changed, "confidence percent->fraction")
		}
	}

	return obj, changed
}
