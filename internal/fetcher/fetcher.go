package fetcher

import (
	"context"

	"github.com/IshaanNene/chatprobe/internal/types"
)

// Fetcher retrieves a document for a feed source.
type Fetcher interface {
	// Get retrieves the content at rawURL.
	Get(ctx context.Context, rawURL string, headers map[string]string) (*types.Response, error)

	// Close releases any resources held by the fetcher.
	Close() error
}

var _ Fetcher = (*HTTPFetcher)(nil)
