package chunkuploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"
	"golang.org/x/sync/errgroup"
)

// Uploader handles parallel chunk uploads with a bounded number of in-flight chunks.
type Uploader struct {
	config Config
	logger log.Logger
	stats  *Stats
}

// New creates a new Uploader with the given configuration.
func New(config Config, logger log.Logger) *Uploader {
	if config.Concurrency < 1 {
		config.Concurrency = DefaultConcurrency
	}

	return &Uploader{
		config: config,
		logger: logger,
		stats:  NewStats(),
	}
}

// Upload reads totalSize bytes from r in chunkSize pieces and sends every chunk
// through the sender, at most Config.Concurrency at a time.
//
// Chunks are dispatched in file order but complete in any order. The length of
// every completed chunk is sent to progress (if not nil) in completion order.
// The first chunk that fails stops the transfer: no further chunks are read and
// the context of the in-flight chunks is cancelled.
//
// Returns the chunk results ordered by index.
func (u *Uploader) Upload(ctx context.Context, r io.Reader, totalSize, chunkSize int64, sender ChunkSender, progress chan<- int64) ([]ChunkResult, error) {
	numChunks := ChunkCount(totalSize, chunkSize)
	if numChunks == 0 {
		return nil, fmt.Errorf("nothing to upload: size %d, chunk size %d", totalSize, chunkSize)
	}

	// Bytes appended after the size was taken are not part of the upload.
	reader, err := NewReader(io.LimitReader(r, totalSize), chunkSize)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	u.logger.Debugf("Uploading %d chunks, %s each, %d in parallel",
		numChunks, units.HumanSizeWithPrecision(float64(chunkSize), 3), u.config.Concurrency)

	results := NewResults()
	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(u.config.Concurrency)

	var readErr error
	for groupCtx.Err() == nil {
		chunk, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			readErr = err
			cancel()
			break
		}

		// Blocks while Concurrency chunks are in flight.
		g.Go(func() error {
			return u.uploadChunk(groupCtx, sender, chunk, numChunks, results, progress)
		})
	}

	// In-flight chunks fail with a cancellation once reading fails, the read error is the cause.
	if err := g.Wait(); readErr != nil {
		return nil, readErr
	} else if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("upload cancelled: %w", err)
	}

	ordered, err := results.Ordered(numChunks, totalSize)
	if err != nil {
		return nil, err
	}

	u.logger.Debugf("Uploaded %d chunks [avg=%v] [throughput=%s/s]",
		numChunks, u.stats.Average().Round(time.Millisecond), units.HumanSize(u.stats.BytesPerSecond()))

	return ordered, nil
}

// Stats returns the upload statistics.
func (u *Uploader) Stats() *Stats {
	return u.stats
}

func (u *Uploader) uploadChunk(ctx context.Context, sender ChunkSender, chunk Chunk, numChunks int, results *Results, progress chan<- int64) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("chunk %d upload cancelled: %w", chunk.Index+1, err)
	}

	u.logger.Debugf("Uploading chunk %d/%d [%d-%d) [finished=%d] [avg=%v]",
		chunk.Index+1, numChunks, chunk.Start, chunk.End,
		u.stats.FinishedCount(), u.stats.Average().Round(time.Millisecond))

	start := time.Now()
	token, err := sender.SendChunk(ctx, chunk)
	if err != nil {
		return &PartialFailureError{Index: chunk.Index, Err: err}
	}
	took := time.Since(start)
	u.stats.Update(took, chunk.Len())

	if err := results.Add(ChunkResult{Index: chunk.Index, Token: token, Length: chunk.Len()}); err != nil {
		return err
	}
	u.logger.Debugf("Chunk %d/%d uploaded in %v", chunk.Index+1, numChunks, took.Round(time.Millisecond))

	if progress == nil {
		return nil
	}
	select {
	case progress <- chunk.Len():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("report progress of chunk %d: %w", chunk.Index+1, ctx.Err())
	}
}
