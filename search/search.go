package search

import (
	"context"
	"fmt"

	"deskresearch/repository"
)

type SearchRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
}

// SearchEngine fetches candidate documents from an external corpus.
// On failure it returns an empty slice together with a *FetchError.
type SearchEngine interface {
	Search(ctx context.Context, req *SearchRequest) ([]repository.Document, error)
}

type FetchErrorKind string

const (
	FetchTransport FetchErrorKind = "transport"
	FetchStatus    FetchErrorKind = "status"
	FetchDecode    FetchErrorKind = "decode"
)

type FetchError struct {
	Kind       FetchErrorKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == FetchStatus {
		return fmt.Sprintf("corpus fetch failed: status %d", e.StatusCode)
	}
	return fmt.Sprintf("corpus fetch failed (%s): %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
