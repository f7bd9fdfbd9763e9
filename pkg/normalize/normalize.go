// Package normalize converts raw fetched payloads (HTML or PDF) into
// clean, whitespace-collapsed plain text.
package normalize

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// Payload classifications carried by NormalizationError.
const (
	KindHTML    = "html"
	KindPDF     = "pdf"
	KindUnknown = "unknown"
)

// minUsefulTextLength is the output length below which the source content
// was likely blocked, empty, or behind a challenge page.
const minUsefulTextLength = 50

// junkTags are removed from markup wholesale before text extraction.
var junkTags = []string{
	"script", "style", "meta", "noscript", "header", "footer", "nav",
	"iframe", "svg", "path", "link", "button", "input", "form",
	"select", "option", "aside", "ad", "banner",
}

// junkKeywordPattern matches id/class attribute values of boilerplate
// elements (cookie banners, popups, subscription prompts).
var junkKeywordPattern = regexp.MustCompile(`(?i)cookie|popup|modal|banner|footer|header|ads|tracking|subscribe|newsletter|consent`)

// whitespacePattern matches runs of whitespace including Unicode spaces
// such as the non-breaking space.
var whitespacePattern = regexp.MustCompile(`[\s\p{Z}]+`)

// NormalizationError indicates a payload could not be converted to text.
type NormalizationError struct {
	Kind    string // payload classification: html, pdf, or unknown
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *NormalizationError) Error() string {
	msg := fmt.Sprintf("normalize %s payload: %s", e.Kind, e.Message)
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *NormalizationError) Unwrap() error {
	return e.Cause
}

// Normalizer converts raw payloads into normalized plain text. Output is
// deterministic for identical input bytes.
type Normalizer struct {
	logger *zap.Logger
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(logger *zap.Logger) *Normalizer {
	return &Normalizer{logger: logger.Named("normalize")}
}

// Normalize converts a raw payload into clean plain text. The contentType
// hint is the server-reported MIME type; magic bytes override it for PDFs.
func (n *Normalizer) Normalize(raw []byte, contentType string) (string, error) {
	if len(raw) == 0 {
		return "", &NormalizationError{Kind: KindUnknown, Message: "empty payload"}
	}

	if isPDF(raw, contentType) {
		return n.normalizePDF(raw)
	}

	if !isMarkup(raw, contentType) {
		return "", &NormalizationError{Kind: KindUnknown, Message: "payload is neither PDF nor markup"}
	}

	return n.normalizeHTML(raw)
}

// normalizePDF extracts text page by page. Pages yielding no text
// contribute nothing; surviving pages are joined with a blank line.
func (n *Normalizer) normalizePDF(raw []byte) (string, error) {
	pages, err := extractPDFPages(raw)
	if err != nil {
		return "", &NormalizationError{Kind: KindPDF, Message: "failed to extract text", Cause: err}
	}

	cleaned := make([]string, 0, len(pages))
	for _, page := range pages {
		if collapsed := CollapseWhitespace(page); collapsed != "" {
			cleaned = append(cleaned, collapsed)
		}
	}

	text := strings.Join(cleaned, "\n\n")
	n.warnIfShort(text, KindPDF)
	return text, nil
}

// extractPDFPages returns the raw text of each page in order.
func extractPDFPages(raw []byte) (pages []string, err error) {
	// The parser panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, err
	}

	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil || text == "" {
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// normalizeHTML strips junk tags and boilerplate elements, then extracts
// the visible text with all whitespace collapsed.
func (n *Normalizer) normalizeHTML(raw []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return "", &NormalizationError{Kind: KindHTML, Message: "failed to parse markup", Cause: err}
	}

	doc.Find(strings.Join(junkTags, ", ")).Remove()

	doc.Find("[id], [class]").Each(func(_ int, sel *goquery.Selection) {
		id, _ := sel.Attr("id")
		class, _ := sel.Attr("class")
		if junkKeywordPattern.MatchString(id) || junkKeywordPattern.MatchString(class) {
			sel.Remove()
		}
	})

	text := CollapseWhitespace(doc.Text())
	n.warnIfShort(text, KindHTML)
	return text, nil
}

func (n *Normalizer) warnIfShort(text string, kind string) {
	if len(text) < minUsefulTextLength {
		n.logger.Warn("extracted text is very short, source content may be blocked or empty",
			zap.String("kind", kind),
			zap.Int("chars", len(text)))
	}
}

// CollapseWhitespace reduces every run of whitespace, including
// non-breaking spaces, to a single ASCII space.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}

// isPDF reports whether the payload is a PDF, by MIME hint or magic bytes.
func isPDF(raw []byte, contentType string) bool {
	if strings.Contains(strings.ToLower(contentType), "pdf") {
		return true
	}
	return bytes.HasPrefix(bytes.TrimLeft(raw, " \t\r\n"), []byte("%PDF"))
}

// isMarkup reports whether the payload is worth handing to the HTML parser.
func isMarkup(raw []byte, contentType string) bool {
	lower := strings.ToLower(contentType)
	if strings.Contains(lower, "html") || strings.Contains(lower, "xml") ||
		strings.HasPrefix(lower, "text/") {
		return true
	}
	trimmed := bytes.TrimLeft(raw, " \t\r\n\xef\xbb\xbf")
	return len(trimmed) > 0 && trimmed[0] == '<'
}
