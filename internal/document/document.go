package document

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
)

// ErrUnsupportedFormat is returned for binary documents (PDF, DOCX, ...)
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Format identifies how a document's text was obtained
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// Document is the plain text handed to the pipeline, plus where it came from
type Document struct {
	Source string // File path, URL, or "-" for stdin
	Title  string
	Format Format
	Text   string
}

// binaryExtensions are rejected before reading
var binaryExtensions = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true, ".odt": true, ".rtf": true,
	".ppt": true, ".pptx": true, ".xls": true, ".xlsx": true, ".epub": true,
	".zip": true, ".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
}

// Loader resolves a source string to a Document
type Loader struct {
	fetcher  *Fetcher
	stdin    io.Reader
	maxBytes int64
}

// NewLoader creates a loader. fetcher may be nil when URL sources are not needed.
func NewLoader(fetcher *Fetcher, stdin io.Reader, maxBytes int64) *Loader {
	if stdin == nil {
		stdin = os.Stdin
	}
	if maxBytes <= 0 {
		maxBytes = 10 * 1024 * 1024
	}
	return &Loader{fetcher: fetcher, stdin: stdin, maxBytes: maxBytes}
}

// Load reads "-" from stdin, http(s) URLs via the fetcher, and anything else as a file path
func (l *Loader) Load(ctx context.Context, source string) (*Document, error) {
	switch {
	case source == "-":
		data, err := io.ReadAll(io.LimitReader(l.stdin, l.maxBytes))
		if err != nil {
			return nil, goerr.Wrap(err, "read stdin")
		}
		return FromBytes("-", data, "")

	case strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://"):
		if l.fetcher == nil {
			return nil, goerr.New("URL sources are not enabled", goerr.V("url", source))
		}
		return l.fetcher.FetchDocument(ctx, source)

	default:
		return l.LoadFile(source)
	}
}

// LoadFile reads a local file, choosing the text extraction by extension
func (l *Loader) LoadFile(path string) (*Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if binaryExtensions[ext] {
		return nil, goerr.Wrap(ErrUnsupportedFormat, "cannot read binary document", goerr.V("path", path), goerr.V("ext", ext))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, goerr.Wrap(err, "open document", goerr.V("path", path))
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, l.maxBytes))
	if err != nil {
		return nil, goerr.Wrap(err, "read document", goerr.V("path", path))
	}

	return FromBytes(path, data, ext)
}

// FromBytes builds a Document from raw content. ext (with leading dot) is a
// hint; when empty the content is sniffed.
func FromBytes(source string, data []byte, ext string) (*Document, error) {
	if isBinary(data) {
		return nil, goerr.Wrap(ErrUnsupportedFormat, "content is not text", goerr.V("source", source),
			goerr.V("detected", http.DetectContentType(data)))
	}

	switch ext {
	case ".html", ".htm", ".xhtml":
		return FromHTML(source, data, nil)
	case ".md", ".markdown":
		return &Document{Source: source, Format: FormatMarkdown, Text: string(data)}, nil
	case "":
		if looksLikeHTML(data) {
			return FromHTML(source, data, nil)
		}
	}

	return &Document{Source: source, Format: FormatText, Text: string(data)}, nil
}

func isBinary(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	ct := http.DetectContentType(data)
	if strings.HasPrefix(ct, "text/") {
		return false
	}
	// DetectContentType reports octet-stream for UTF-8 text it cannot classify
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.IndexByte(head, 0) >= 0 || !utf8.Valid(trimPartialRune(head))
}

// trimPartialRune drops a rune cut in half by the sniff window
func trimPartialRune(b []byte) []byte {
	for i := 0; i < utf8.UTFMax && len(b) > 0; i++ {
		if utf8.Valid(b) {
			return b
		}
		b = b[:len(b)-1]
	}
	return b
}

func looksLikeHTML(data []byte) bool {
	return strings.HasPrefix(http.DetectContentType(data), "text/html")
}
