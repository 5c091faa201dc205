package chunkuploader

import "fmt"

// PartialFailureError is returned when a chunk could not be uploaded, even after
// the sender's retries. It aborts the whole transfer.
type PartialFailureError struct {
	// Index is the zero-based index of the failed chunk.
	Index int
	Err   error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("upload chunk %d: %v", e.Index+1, e.Err)
}

func (e *PartialFailureError) Unwrap() error {
	return e.Err
}
