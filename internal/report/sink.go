// Package report serializes worker output so concurrent result and
// diagnostic lines never interleave.
package report

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/JakeFAU/hn-harvester/internal/hn"
)

// Sink writes one line per call under a single lock shared by both streams.
type Sink struct {
	mu  sync.Mutex
	out io.Writer
	err io.Writer
}

// NewSink builds a Sink. Nil writers fall back to stdout and stderr.
func NewSink(out, errOut io.Writer) *Sink {
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	return &Sink{out: out, err: errOut}
}

// Result writes "<id> : <title> (TID <worker-id>)".
func (s *Sink) Result(res hn.FetchResult, workerID int) error {
	return s.writeLine(s.out, fmt.Sprintf("%d : %s (TID %d)\n", res.ID, res.Title, workerID))
}

// Diagnostic writes one line describing a malformed item response.
func (s *Sink) Diagnostic(id hn.ID, cause error, workerID int) error {
	return s.writeLine(s.err, fmt.Sprintf("%d : %v (TID %d)\n", id, cause, workerID))
}

func (s *Sink) writeLine(w io.Writer, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(w, line); err != nil {
		return fmt.Errorf("write report line: %w", err)
	}
	return nil
}
