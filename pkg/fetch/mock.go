package fetch

import "context"

// MockFetcher is a configurable mock for testing pipeline behavior
// without network access. Set FetchFunc to control responses.
type MockFetcher struct {
	// FetchFunc is called when Fetch is invoked. If nil, returns an
	// empty HTML result.
	FetchFunc func(ctx context.Context, url string, creds map[string]string) (*Result, error)

	// Call tracking for verification
	FetchCalls int
	URLs       []string
}

// Fetch implements ContentFetcher.
func (m *MockFetcher) Fetch(ctx context.Context, url string, creds map[string]string) (*Result, error) {
	m.FetchCalls++
	m.URLs = append(m.URLs, url)
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, url, creds)
	}
	return &Result{
		Body:        []byte("<html><body></body></html>"),
		ContentType: "text/html",
		Kind:        ContentKindHTML,
		StatusCode:  200,
	}, nil
}

// Ensure MockFetcher implements ContentFetcher at compile time.
var _ ContentFetcher = (*MockFetcher)(nil)
