// Package hn defines the identifiers, results, and contracts shared by the
// harvester's queue, fetchers, workers, and pool.
package hn

import (
	"errors"
	"net/http"
	"strconv"
	"time"
)

// ID names one remote item. It is opaque and immutable once listed.
type ID uint64

// String renders the identifier in decimal, the form used in item URLs.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// FetchResult is the parsed detail for a single item. It is rendered once and discarded.
type FetchResult struct {
	ID    ID
	Title string
}

// Errors used to classify per-item failures.
var (
	// ErrTransport marks connection, timeout, TLS, and non-2xx failures.
	ErrTransport = errors.New("transport failure")
	// ErrMalformed marks responses whose JSON shape or fields are wrong.
	ErrMalformed = errors.New("malformed response")
)

// FetchRequest captures everything needed to GET one endpoint.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the raw result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}
