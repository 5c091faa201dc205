package chunkuploader

import (
	"errors"
	"fmt"
	"io"
)

// Reader slices a stream into consecutive chunks of a fixed size.
// A single Read on the underlying stream may return fewer bytes than asked for,
// so every chunk is accumulated over as many reads as needed. Only the last
// chunk can be shorter than the chunk size, and an empty chunk is never returned.
type Reader struct {
	r         io.Reader
	chunkSize int64
	index     int
	offset    int64
	done      bool
}

// NewReader creates a Reader that emits chunkSize sized chunks from r.
func NewReader(r io.Reader, chunkSize int64) (*Reader, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("invalid chunk size: %d", chunkSize)
	}

	return &Reader{
		r:         r,
		chunkSize: chunkSize,
	}, nil
}

// Next returns the next chunk, or io.EOF once the stream is exhausted.
// Every chunk owns a freshly allocated buffer.
func (r *Reader) Next() (Chunk, error) {
	if r.done {
		return Chunk{}, io.EOF
	}

	buf := make([]byte, r.chunkSize)
	n, err := io.ReadFull(r.r, buf)
	switch {
	case errors.Is(err, io.EOF):
		r.done = true
		return Chunk{}, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		// short final chunk
		r.done = true
	case err != nil:
		return Chunk{}, fmt.Errorf("read chunk %d: %w", r.index+1, err)
	}

	chunk := Chunk{
		Index: r.index,
		Start: r.offset,
		End:   r.offset + int64(n),
		Data:  buf[:n],
	}
	r.index++
	r.offset += int64(n)

	return chunk, nil
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int64 {
	return r.offset
}
