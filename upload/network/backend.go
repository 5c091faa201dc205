package network

import (
	"context"

	"github.com/bitrise-io/go-videoupload/upload/network/chunkuploader"
)

// Backend is a negotiated upload session of a single file on one storage backend.
type Backend interface {
	chunkuploader.ChunkSender

	// Kind returns the protocol of the backend.
	Kind() BackendKind
	// ChunkSize returns the size of every chunk but the last one.
	ChunkSize() int64
	// Finalize assembles the uploaded object from the results of all chunks,
	// ordered by index.
	Finalize(ctx context.Context, results []chunkuploader.ChunkResult) (UploadedPart, error)
}
