package model

import "strings"

// Claim represents a verifiable factual assertion extracted from a document
type Claim struct {
	ID            int      `json:"id"`                // Monotonic within a run, starting at 1
	Text          string   `json:"text"`              // The claim as stated in the document
	Category      Category `json:"category"`          // statistic, date, financial, technical, other
	AssertedValue string   `json:"asserted_value"`    // Raw asserted figure (e.g. "3.2% growth in 2019")
	Context       string   `json:"context,omitempty"` // Surrounding sentence(s) from the document
	Span          Span     `json:"source_span"`       // Byte offsets into the original text
}

// Span is a half-open byte range [Start, End) into the document text
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the span length in bytes
func (s Span) Len() int {
	return s.End - s.Start
}

// Category classifies the nature of the claim
type Category string

const (
	CategoryStatistic Category = "statistic" // Percentages, counts, measurements
	CategoryDate      Category = "date"      // When something happened
	CategoryFinancial Category = "financial" // Prices, revenue, market caps, GDP
	CategoryTechnical Category = "technical" // Specifications, scientific data
	CategoryOther     Category = "other"     // Any other factual assertion
)

// Categories lists every valid category in display order
var Categories = []Category{
	CategoryStatistic,
	CategoryDate,
	CategoryFinancial,
	CategoryTechnical,
	CategoryOther,
}

// ParseCategory maps a model-supplied label onto a Category.
// Unknown labels (including "factual") fall back to CategoryOther.
func ParseCategory(raw string) Category {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "statistic", "statistics", "statistical":
		return CategoryStatistic
	case "date", "dates", "temporal":
		return CategoryDate
	case "financial", "finance", "economic":
		return CategoryFinancial
	case "technical", "technology", "scientific":
		return CategoryTechnical
	default:
		return CategoryOther
	}
}

// NormalizeText lowercases and collapses whitespace; used for duplicate detection
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
