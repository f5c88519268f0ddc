package document

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/net/html"
)

// minReadableChars is the shortest readability output accepted before falling back to all visible text
const minReadableChars = 200

// FromHTML extracts the main article text with readability, falling back to
// the page's visible text when readability finds too little.
func FromHTML(source string, data []byte, pageURL *url.URL) (*Document, error) {
	if pageURL == nil {
		pageURL, _ = url.Parse(source)
		if pageURL == nil {
			pageURL = &url.URL{}
		}
	}

	if article, err := readability.FromReader(bytes.NewReader(data), pageURL); err == nil {
		text := normalizeBlankLines(article.TextContent)
		if len(text) >= minReadableChars {
			return &Document{Source: source, Title: strings.TrimSpace(article.Title), Format: FormatHTML, Text: text}, nil
		}
	}

	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, goerr.Wrap(err, "parse HTML", goerr.V("source", source))
	}

	return &Document{
		Source: source,
		Title:  findTitle(root),
		Format: FormatHTML,
		Text:   normalizeBlankLines(VisibleText(root)),
	}, nil
}

var blockElements = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "header": true, "footer": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "ul": true, "ol": true, "table": true, "tr": true, "blockquote": true,
	"pre": true, "br": true, "hr": true, "main": true, "aside": true,
}

// VisibleText extracts text nodes from HTML, skipping scripts and styles.
// Block elements are separated by blank lines so paragraphs survive.
func VisibleText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "template", "svg", "head":
				return
			}
		}

		if n.Type == html.TextNode {
			text := strings.Join(strings.Fields(n.Data), " ")
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && blockElements[n.Data] {
			buf.WriteString("\n\n")
		}
	}

	walk(n)
	return buf.String()
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
		return strings.TrimSpace(n.FirstChild.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

var (
	reTrailingSpace = regexp.MustCompile(`[ \t]+\n`)
	reManyNewlines  = regexp.MustCompile(`\n{3,}`)
)

// normalizeBlankLines trims line-trailing whitespace and collapses runs of blank lines
func normalizeBlankLines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = reTrailingSpace.ReplaceAllString(s, "\n")
	s = reManyNewlines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
