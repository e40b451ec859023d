package ports

import (
	"context"

	"github.com/aretw0/agentwright/pkg/reasoning"
)

// Reasoner is the reasoning service every step delegates its decision to.
// Implementations must be safe for concurrent use across runs.
type Reasoner interface {
	Run(ctx context.Context, req reasoning.Request) (reasoning.Response, error)
}

// DocumentIndex is the documentation retrieval subsystem.
type DocumentIndex interface {
	// ListDocumentationPages returns the sorted, distinct page URLs.
	ListDocumentationPages(ctx context.Context) ([]string, error)

	// RetrieveRelevant returns the most relevant chunks for query, formatted
	// as markdown sections.
	RetrieveRelevant(ctx context.Context, query string) (string, error)

	// PageContent returns the full content of a page, chunks in order.
	PageContent(ctx context.Context, url string) (string, error)
}
