package extract

import (
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/ppiankov/claimcheck/internal/llm"
)

const systemPrompt = `You are a meticulous fact-checking assistant. You extract specific, verifiable claims from documents. You never invent claims that are not in the text.`

var promptTemplate = template.Must(template.New("claims").Parse(`Extract every specific, verifiable claim from the text below.

Focus on claims that contain:
1. Statistics and numerical data (percentages, counts, measurements, growth rates)
2. Dates and temporal claims (when something happened, timelines, years)
3. Financial figures (prices, market caps, revenue, GDP, forecasts)
4. Technical specifications (product specs, scientific data)
5. Other factual assertions (who did what, where, organisational details)

For each claim return:
- "text": the claim exactly as stated in the document
- "category": one of statistic, date, financial, technical, other
- "asserted_value": the specific figure, date or fact being asserted (e.g. "3.2%", "March 2021", "$4.1 billion")
- "context": one or two surrounding sentences

Skip opinions, predictions without figures, and statements with nothing concrete to check.
Return {"claims": []} if the text contains no verifiable claims.

TEXT TO ANALYZE (part {{.Part}} of {{.Parts}}):
{{.Text}}`))

type promptData struct {
	Part  int
	Parts int
	Text  string
}

func renderPrompt(chunk Chunk, total int) (string, error) {
	var b strings.Builder
	err := promptTemplate.Execute(&b, promptData{Part: chunk.Index + 1, Parts: total, Text: chunk.Text})
	return b.String(), err
}

// claimsShape is the response contract for one extraction request
var claimsShape = llm.MustShape("claims", map[string]any{
	"type":     "object",
	"required": []string{"claims"},
	"properties": map[string]any{
		"claims": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []string{"text", "category", "asserted_value"},
				"properties": map[string]any{
					"text":           map[string]any{"type": "string"},
					"category":       map[string]any{"type": "string"},
					"asserted_value": map[string]any{"type": "string"},
					"context":        map[string]any{"type": "string"},
				},
			},
		},
	},
}).WithNormalizer(normalizeClaims)

type claimsReply struct {
	Claims []rawClaim `json:"claims"`
}

type rawClaim struct {
	Text          string `json:"text"`
	Category      string `json:"category"`
	AssertedValue string `json:"asserted_value"`
	Context       string `json:"context"`
}

// fieldAliases maps names models commonly use onto the shape's field names.
// Earlier entries win when a reply carries more than one alias for a field.
var fieldAliases = []struct{ alias, field string }{
	{"claim", "text"},
	{"claim_text", "text"},
	{"claim_type", "category"},
	{"type", "category"},
	{"value", "asserted_value"},
}

var stringFields = []string{"text", "category", "asserted_value", "context"}

// normalizeClaims accepts a bare array, aliased field names, and null or
// missing strings. Items that are not objects are dropped.
func normalizeClaims(doc any) (any, []string) {
	var changed []string

	if arr, ok := doc.([]any); ok {
		doc = map[string]any{"claims": arr}
		changed = append(changed, "claims (wrapped bare array)")
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return doc, changed
	}
	items, ok := obj["claims"].([]any)
	if !ok {
		return doc, changed
	}

	kept := make([]any, 0, len(items))
	for _, it := range items {
		item, ok := it.(map[string]any)
		if !ok {
			changed = append(changed, "claims (dropped non-object item)")
			continue
		}

		for _, a := range fieldAliases {
			v, has := item[a.alias]
			if !has {
				continue
			}
			if cur, exists := item[a.field]; !exists || cur == nil {
				item[a.field] = v
				changed = append(changed, a.alias+"->"+a.field)
			}
			delete(item, a.alias)
		}

		for _, field := range stringFields {
			switch v := item[field].(type) {
			case string:
			case nil:
				item[field] = ""
				changed = append(changed, field+" (defaulted)")
			case float64:
				item[field] = strconv.FormatFloat(v, 'f', -1, 64)
				changed = append(changed, field+" number->string")
			default:
				item[field] = fmt.Sprint(v)
				changed = append(changed, field+" (stringified)")
			}
		}
		kept = append(kept, item)
	}
	obj["claims"] = kept

	return obj, changed
}
