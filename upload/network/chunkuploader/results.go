package chunkuploader

import (
	"fmt"
	"sync"
)

// Results collects chunk results keyed by chunk index.
// Chunks complete in arbitrary order, so results are only put in file order
// by Ordered. Safe for concurrent use.
type Results struct {
	byIndex map[int]ChunkResult
	length  int64
	mu      sync.Mutex
}

// NewResults creates an empty Results collection.
func NewResults() *Results {
	return &Results{byIndex: map[int]ChunkResult{}}
}

// Add records the result of a chunk. Every index can be added once.
func (r *Results) Add(result ChunkResult) error {
	if result.Index < 0 {
		return fmt.Errorf("invalid chunk index: %d", result.Index)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byIndex[result.Index]; ok {
		return fmt.Errorf("duplicate result for chunk %d", result.Index+1)
	}
	r.byIndex[result.Index] = result
	r.length += result.Length

	return nil
}

// Len returns the number of collected results.
func (r *Results) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byIndex)
}

// TotalLength returns the sum of the collected chunk lengths.
func (r *Results) TotalLength() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.length
}

// Ordered returns the results sorted by chunk index.
// It fails unless the indices are exactly [0, count) and the chunk lengths add up to totalSize.
func (r *Results) Ordered(count int, totalSize int64) ([]ChunkResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.byIndex) != count {
		return nil, fmt.Errorf("chunk count mismatch: expected %d results, got %d", count, len(r.byIndex))
	}

	ordered := make([]ChunkResult, 0, count)
	for i := 0; i < count; i++ {
		result, ok := r.byIndex[i]
		if !ok {
			return nil, fmt.Errorf("missing result for chunk %d", i+1)
		}
		ordered = append(ordered, result)
	}

	if r.length != totalSize {
		return nil, fmt.Errorf("size mismatch: uploaded %d bytes, expected %d", r.length, totalSize)
	}

	return ordered, nil
}
