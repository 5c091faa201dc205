// Package chunkuploader moves a file to a storage backend in fixed-size chunks.
// The file is read sequentially, chunks are sent in parallel with a bounded number
// of in-flight requests, and the per-chunk acknowledgments are collected by index.
package chunkuploader

import (
	"context"
)

// Chunk is a contiguous byte range of the source file.
type Chunk struct {
	// Index is the zero-based position of the chunk in the file.
	Index int
	// Start and End are the [Start, End) byte offsets of the chunk.
	Start int64
	End   int64
	Data  []byte
}

// Len returns the number of bytes in the chunk.
func (c Chunk) Len() int64 {
	return int64(len(c.Data))
}

// ChunkSender uploads single chunks to a backend.
type ChunkSender interface {
	// SendChunk uploads the chunk and returns the token the backend needs to
	// assemble the final object. It is called from multiple goroutines at once,
	// retries are up to the implementation.
	SendChunk(ctx context.Context, chunk Chunk) (string, error)
}

// ChunkResult represents the result of uploading a single chunk.
type ChunkResult struct {
	Index  int
	Token  string
	Length int64
}
