package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/hn-harvester/internal/hn"
)

func TestStackPopsInReverseListingOrder(t *testing.T) {
	t.Parallel()

	s := NewStack([]hn.ID{7, 8, 9})
	var got []hn.ID
	for {
		id, ok := s.Pop()
		if !ok {
			break
		}
		got = append(got, id)
	}
	require.Equal(t, []hn.ID{9, 8, 7}, got)
	require.Zero(t, s.Len())
}

func TestStackEmptyNeverBlocks(t *testing.T) {
	t.Parallel()

	s := NewStack(nil)
	id, ok := s.Pop()
	require.False(t, ok)
	require.Zero(t, id)
	// Draining twice should stay empty.
	_, ok = s.Pop()
	require.False(t, ok)
}

func TestStackDoesNotAliasInput(t *testing.T) {
	t.Parallel()

	ids := []hn.ID{1, 2}
	s := NewStack(ids)
	ids[1] = 99
	id, ok := s.Pop()
	require.True(t, ok)
	require.Equal(t, hn.ID(2), id)
}

func TestStackConcurrentPopsAreExactlyOnce(t *testing.T) {
	t.Parallel()

	const (
		total   = 5000
		callers = 32
	)
	ids := make([]hn.ID, total)
	for i := range ids {
		ids[i] = hn.ID(i + 1)
	}
	s := NewStack(ids)

	var (
		mu      sync.Mutex
		seen    = make(map[hn.ID]int, total)
		empties int
		wg      sync.WaitGroup
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				id, ok := s.Pop()
				mu.Lock()
				if !ok {
					empties++
					mu.Unlock()
					return
				}
				seen[id]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, total)
	for id, count := range seen {
		require.Equalf(t, 1, count, "id %d popped %d times", id, count)
	}
	require.Equal(t, callers, empties)

	_, ok := s.Pop()
	require.False(t, ok, "subsequent pops must report empty")
}
