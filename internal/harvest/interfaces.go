package harvest

import (
	"context"
	"errors"
	"net/http"
)

// Sentinel errors used to classify failures.
var (
	// ErrFetchFailed is returned once a fetch has exhausted its retry budget.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrUnexpectedStatus reports a non-2xx response.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrDownloadLinkNotFound reports a viewer page without a download anchor.
	ErrDownloadLinkNotFound = errors.New("download link not found on viewer page")
)

// Response is the result of a successful GET.
type Response struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Fetcher performs one logical GET of a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Response, error)
}

// RecordStore is the append-only issues/articles table pair.
// Implementations must serialize appends and keep HasArticle consistent with
// every AppendArticle made through them.
type RecordStore interface {
	HasArticle(url string) bool
	AppendArticle(ctx context.Context, article Article) error
	AppendIssue(ctx context.Context, issue Issue) error
	Close() error
}

// ArtifactStore persists downloaded artifacts under a flat name and returns a
// URI for the stored object.
type ArtifactStore interface {
	PutObject(ctx context.Context, name string, contentType string, data []byte) (string, error)
}
