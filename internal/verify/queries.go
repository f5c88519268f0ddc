package verify

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ppiankov/claimcheck/internal/model"
)

const maxQueryChars = 200

// Queries are the search queries derived from one claim
type Queries struct {
	Primary string
	Broader string // Issued only when Primary finds nothing
}

// BuildQueries derives the search queries for a claim. now fixes the year
// used in recency qualifiers.
func BuildQueries(c model.Claim, now time.Time) Queries {
	subject := truncate(subjectOf(c), maxQueryChars)

	parts := make([]string, 0, 3)
	for _, p := range []string{subject, strings.TrimSpace(c.AssertedValue), recencyQualifier(c.Category, now)} {
		if p != "" {
			parts = append(parts, p)
		}
	}

	q := Queries{
		Primary: strings.Join(parts, " "),
		Broader: truncate(collapse(c.Text), maxQueryChars),
	}
	if q.Broader == q.Primary {
		q.Broader = ""
	}
	return q
}

// subjectOf returns the claim text with the asserted value removed
func subjectOf(c model.Claim) string {
	text := c.Text
	if v := strings.TrimSpace(c.AssertedValue); v != "" {
		re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(v))
		text = re.ReplaceAllString(text, " ")
	}
	return strings.Trim(collapse(text), " .,;:")
}

func recencyQualifier(cat model.Category, now time.Time) string {
	year := strconv.Itoa(now.Year())
	switch cat {
	case model.CategoryFinancial:
		return "current data " + year
	case model.CategoryStatistic:
		return "latest statistics " + year
	case model.CategoryDate:
		return year
	default:
		return "latest"
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return strings.TrimSpace(s[:n])
}
