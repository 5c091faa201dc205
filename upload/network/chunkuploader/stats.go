package chunkuploader

import (
	"sync/atomic"
	"time"
)

// Stats counts the completed chunk requests of an upload: how many, how many
// bytes and how long they took in total. Safe for concurrent updates.
type Stats struct {
	chunks  atomic.Int64
	bytes   atomic.Int64
	elapsed atomic.Int64 // nanoseconds
}

// NewStats ...
func NewStats() *Stats {
	return &Stats{}
}

// Update records a chunk of size bytes whose request took d.
func (s *Stats) Update(d time.Duration, size int64) {
	s.elapsed.Add(int64(d))
	s.bytes.Add(size)
	s.chunks.Add(1)
}

// FinishedCount ...
func (s *Stats) FinishedCount() int64 {
	return s.chunks.Load()
}

// Bytes ...
func (s *Stats) Bytes() int64 {
	return s.bytes.Load()
}

// Average is the mean request duration of the completed chunks.
func (s *Stats) Average() time.Duration {
	n := s.chunks.Load()
	if n == 0 {
		return 0
	}
	return time.Duration(s.elapsed.Load() / n)
}

// BytesPerSecond is the throughput of a single chunk request, not of the
// whole upload: parallel requests overlap.
func (s *Stats) BytesPerSecond() float64 {
	elapsed := time.Duration(s.elapsed.Load())
	if elapsed <= 0 {
		return 0
	}
	return float64(s.bytes.Load()) / elapsed.Seconds()
}
