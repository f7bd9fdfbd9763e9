// Package fetch retrieves raw source content over HTTP.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lexwatch/lexwatch-engine/pkg/config"
	"github.com/lexwatch/lexwatch-engine/pkg/logging"
)

// ContentKind classifies a fetched payload for downstream processing.
type ContentKind string

const (
	ContentKindHTML    ContentKind = "html"
	ContentKindPDF     ContentKind = "pdf"
	ContentKindUnknown ContentKind = "unknown"
)

// Result holds a fetched payload and its classification.
type Result struct {
	Body        []byte
	ContentType string // Content-Type header as returned by the server
	Kind        ContentKind
	StatusCode  int
}

// FetchError indicates the content could not be retrieved. The pipeline
// does not retry fetch failures; job-level scheduling handles that.
type FetchError struct {
	URL        string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface. The URL is sanitized so inline
// credentials never reach logs.
func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s: %s", logging.SanitizeURL(e.URL), e.Message)
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// ContentFetcher retrieves the raw payload for a source URL.
type ContentFetcher interface {
	Fetch(ctx context.Context, url string, creds map[string]string) (*Result, error)
}

// HTTPFetcher fetches source content over plain HTTP(S).
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	maxBody   int64
	logger    *zap.Logger
}

// NewHTTPFetcher creates a fetcher from configuration.
func NewHTTPFetcher(cfg *config.FetcherConfig, logger *zap.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		userAgent: cfg.UserAgent,
		maxBody:   cfg.MaxBodyBytes,
		logger:    logger.Named("fetch"),
	}
}

// Fetch retrieves the content at url. Credentials are optional: a
// "username"/"password" pair becomes HTTP basic auth, a "bearer_token"
// entry becomes an Authorization header.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, creds map[string]string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Message: "invalid request", Cause: err}
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf;q=0.9,*/*;q=0.8")

	if username, ok := creds["username"]; ok {
		req.SetBasicAuth(username, creds["password"])
	}
	if token, ok := creds["bearer_token"]; ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	f.logger.Debug("fetching source content", zap.String("url", logging.SanitizeURL(url)))
	start := time.Now()

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode, Message: "failed to read body", Cause: err}
	}
	if int64(len(body)) > f.maxBody {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode,
			Message: fmt.Sprintf("response body exceeds %d bytes", f.maxBody)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode,
			Message: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	contentType := resp.Header.Get("Content-Type")
	kind := Classify(body, contentType)

	f.logger.Info("fetched source content",
		zap.String("url", logging.SanitizeURL(url)),
		zap.Int("bytes", len(body)),
		zap.String("kind", string(kind)),
		zap.Duration("elapsed", time.Since(start)))

	return &Result{
		Body:        body,
		ContentType: contentType,
		Kind:        kind,
		StatusCode:  resp.StatusCode,
	}, nil
}

// Classify determines the payload kind from magic bytes and the
// Content-Type header. Magic bytes win; servers mislabel PDFs often
// enough that the header alone cannot be trusted.
func Classify(body []byte, contentType string) ContentKind {
	if bytes.HasPrefix(bytes.TrimLeft(body, " \t\r\n"), []byte("%PDF")) {
		return ContentKindPDF
	}

	mediaType := contentType
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = parsed
	}
	mediaType = strings.ToLower(mediaType)

	switch {
	case strings.Contains(mediaType, "pdf"):
		return ContentKindPDF
	case strings.Contains(mediaType, "html"), strings.Contains(mediaType, "xml"):
		return ContentKindHTML
	case strings.HasPrefix(mediaType, "text/"):
		return ContentKindHTML
	}

	if looksLikeMarkup(body) {
		return ContentKindHTML
	}
	return ContentKindUnknown
}

// looksLikeMarkup reports whether the payload starts with a markup tag.
func looksLikeMarkup(body []byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n\xef\xbb\xbf")
	return len(trimmed) > 0 && trimmed[0] == '<'
}

// Ensure HTTPFetcher implements ContentFetcher at compile time.
var _ ContentFetcher = (*HTTPFetcher)(nil)
