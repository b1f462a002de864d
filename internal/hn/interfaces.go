package hn

import (
	"context"
	"time"
)

// Fetcher performs a single blocking GET and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Queue hands out pending identifiers. Pop never blocks; found is false once drained.
type Queue interface {
	Pop() (id ID, found bool)
}

// ItemSource retrieves and parses the detail for one identifier.
type ItemSource interface {
	FetchItem(ctx context.Context, id ID) (FetchResult, error)
}

// Reporter serializes worker output so concurrent lines never interleave.
type Reporter interface {
	Result(res FetchResult, workerID int) error
	Diagnostic(id ID, cause error, workerID int) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
