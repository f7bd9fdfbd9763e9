package normalize

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func testNormalizer() *Normalizer {
	return NewNormalizer(zap.NewNop())
}

func TestNormalize_StripsScriptKeepsText(t *testing.T) {
	n := testNormalizer()

	text, err := n.Normalize([]byte("<html><script>x</script><p>Keep me</p></html>"), "text/html")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if !strings.Contains(text, "Keep me") {
		t.Errorf("expected output to contain 'Keep me', got %q", text)
	}
	if strings.Contains(text, "script") || strings.Contains(text, "x") {
		t.Errorf("expected script content to be removed, got %q", text)
	}
}

func TestNormalize_RemovesJunkTags(t *testing.T) {
	n := testNormalizer()

	html := `<html>
		<head><style>body { color: red }</style></head>
		<body>
			<nav>Home | About</nav>
			<p>Licensing requirements apply from 1 March 2026.</p>
			<footer>Copyright 2026</footer>
		</body>
	</html>`

	text, err := n.Normalize([]byte(html), "text/html")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if !strings.Contains(text, "Licensing requirements apply") {
		t.Errorf("expected body text to survive, got %q", text)
	}
	for _, junk := range []string{"Home | About", "Copyright", "color: red"} {
		if strings.Contains(text, junk) {
			t.Errorf("expected %q to be removed, got %q", junk, text)
		}
	}
}

func TestNormalize_RemovesBoilerplateByIDAndClass(t *testing.T) {
	n := testNormalizer()

	html := `<html><body>
		<div class="cookie-banner">We use cookies. Accept?</div>
		<div id="newsletter-signup">Subscribe to our newsletter</div>
		<div class="content">The reporting threshold is 10000 EUR.</div>
	</body></html>`

	text, err := n.Normalize([]byte(html), "text/html")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if !strings.Contains(text, "reporting threshold is 10000 EUR") {
		t.Errorf("expected content text to survive, got %q", text)
	}
	if strings.Contains(text, "cookies") || strings.Contains(text, "Subscribe") {
		t.Errorf("expected boilerplate to be removed, got %q", text)
	}
}

func TestNormalize_CollapsesWhitespace(t *testing.T) {
	n := testNormalizer()

	html := "<html><body><p>Article   12\n\n applies to   payment\tproviders.</p></body></html>"

	text, err := n.Normalize([]byte(html), "text/html")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	want := "Article 12 applies to payment providers."
	if text != want {
		t.Errorf("expected %q, got %q", want, text)
	}
}

func TestNormalize_MultipleBlocksJoinedWithSingleSpaces(t *testing.T) {
	n := testNormalizer()

	html := `<html><body>
		<h1>Capital Requirements</h1>
		<p>Tier 1 capital must exceed 8 percent.</p>
		<p>Reporting is quarterly.</p>
	</body></html>`

	text, err := n.Normalize([]byte(html), "text/html")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	want := "Capital Requirements Tier 1 capital must exceed 8 percent. Reporting is quarterly."
	if text != want {
		t.Errorf("expected %q, got %q", want, text)
	}
}

func TestNormalize_PlainTextPassthrough(t *testing.T) {
	n := testNormalizer()

	text, err := n.Normalize([]byte("Fee schedule updated. The annual fee is 50 EUR."), "text/plain")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if text != "Fee schedule updated. The annual fee is 50 EUR." {
		t.Errorf("unexpected output: %q", text)
	}
}

func TestNormalize_EmptyPayload(t *testing.T) {
	n := testNormalizer()

	_, err := n.Normalize(nil, "text/html")
	if err == nil {
		t.Fatal("expected error for empty payload")
	}
	var normErr *NormalizationError
	if !errors.As(err, &normErr) {
		t.Fatalf("expected NormalizationError, got %T", err)
	}
	if normErr.Kind != KindUnknown {
		t.Errorf("expected kind %q, got %q", KindUnknown, normErr.Kind)
	}
}

func TestNormalize_BinaryPayloadRejected(t *testing.T) {
	n := testNormalizer()

	_, err := n.Normalize([]byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a}, "application/octet-stream")
	if err == nil {
		t.Fatal("expected error for binary payload")
	}
	if !strings.Contains(err.Error(), "neither PDF nor markup") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestNormalize_InvalidPDFIsError(t *testing.T) {
	n := testNormalizer()

	_, err := n.Normalize([]byte("%PDF-1.7 this is not a real pdf"), "application/pdf")
	if err == nil {
		t.Fatal("expected error for malformed PDF")
	}
	var normErr *NormalizationError
	if !errors.As(err, &normErr) {
		t.Fatalf("expected NormalizationError, got %T", err)
	}
	if normErr.Kind != KindPDF {
		t.Errorf("expected kind %q, got %q", KindPDF, normErr.Kind)
	}
}

func TestNormalize_PDFMagicOverridesContentType(t *testing.T) {
	n := testNormalizer()

	// Served as HTML but carrying PDF magic bytes: must take the PDF path
	// and fail there rather than being parsed as markup.
	_, err := n.Normalize([]byte("%PDF-1.4 broken"), "text/html")
	if err == nil {
		t.Fatal("expected error")
	}
	var normErr *NormalizationError
	if !errors.As(err, &normErr) {
		t.Fatalf("expected NormalizationError, got %T", err)
	}
	if normErr.Kind != KindPDF {
		t.Errorf("expected kind %q, got %q", KindPDF, normErr.Kind)
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	n := testNormalizer()

	html := []byte(`<html><body>
		<div class="ads">Buy now</div>
		<p>Directive 2026/14 enters into force on 1 July 2026.</p>
	</body></html>`)

	first, err := n.Normalize(html, "text/html")
	if err != nil {
		t.Fatalf("first Normalize failed: %v", err)
	}
	second, err := n.Normalize(html, "text/html")
	if err != nil {
		t.Fatalf("second Normalize failed: %v", err)
	}
	if first != second {
		t.Errorf("expected identical output, got %q and %q", first, second)
	}
}

func TestCollapseWhitespace(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"already clean", "a b c", "a b c"},
		{"tabs and newlines", "a\tb\nc", "a b c"},
		{"runs", "a   b \n\n c", "a b c"},
		{"non-breaking space", "a b", "a b"},
		{"thin space", "a b", "a b"},
		{"leading and trailing", "  a b  ", "a b"},
		{"empty", "", ""},
		{"only whitespace", " \t\n  ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CollapseWhitespace(tt.input); got != tt.want {
				t.Errorf("CollapseWhitespace(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizationError_Unwrap(t *testing.T) {
	cause := errors.New("bad xref table")
	err := &NormalizationError{Kind: KindPDF, Message: "failed to extract text", Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
	if !strings.Contains(err.Error(), "pdf") || !strings.Contains(err.Error(), "bad xref table") {
		t.Errorf("unexpected error string: %v", err)
	}
}
