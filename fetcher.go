package insightwatch

import (
	"context"

	"github.com/jpalmerr/insightwatch/internal/poller"
)

// HTTPFetcher is the [Fetcher] for insights served over HTTP by the insight
// service at GET {base}/issues/{id}/insight.
//
// HTTPFetcher is safe for concurrent use. Call [HTTPFetcher.Close] to
// release pooled connections when done.
type HTTPFetcher struct {
	source InsightSource
	client *poller.Client
}

var _ Fetcher[Insight] = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates an [HTTPFetcher] for src.
func NewHTTPFetcher(src InsightSource) *HTTPFetcher {
	return &HTTPFetcher{
		source: src,
		client: poller.NewClient(),
	}
}

// Fetch looks up the insight of issueID once.
//
// Transport failures are returned as errors. The response is interpreted by
// the source's [PayloadExtractor].
func (f *HTTPFetcher) Fetch(ctx context.Context, issueID string) (Result[Insight], error) {
	resp := f.client.GetInsight(ctx, poller.Request{
		BaseURL: f.source.baseURL,
		IssueID: issueID,
		Headers: f.source.requestHeaders(),
		Timeout: f.source.timeout,
	})
	if resp.Error != nil {
		return Result[Insight]{}, resp.Error
	}

	extractor := f.source.extractor
	if extractor == nil {
		extractor = DefaultPayloadExtractor
	}
	return extractor(resp.Body, resp.StatusCode)
}

// Source returns the source the fetcher was created with.
func (f *HTTPFetcher) Source() InsightSource {
	return f.source
}

// Close releases idle connections. Safe to call multiple times.
func (f *HTTPFetcher) Close() {
	f.client.Close()
}
