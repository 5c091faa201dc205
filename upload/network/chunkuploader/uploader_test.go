package chunkuploader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	delay    func(chunk Chunk) time.Duration
	fail     map[int]error
	started  chan int
	release  chan struct{}
	calls    int32
	inFlight int32
	maxSeen  int32
	mu       sync.Mutex
	received map[int][]byte
}

func newFakeSender() *fakeSender {
	return &fakeSender{
		fail:     map[int]error{},
		received: map[int][]byte{},
	}
}

func (s *fakeSender) SendChunk(ctx context.Context, chunk Chunk) (string, error) {
	atomic.AddInt32(&s.calls, 1)
	current := atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&s.maxSeen)
		if current <= seen || atomic.CompareAndSwapInt32(&s.maxSeen, seen, current) {
			break
		}
	}

	if s.started != nil {
		s.started <- chunk.Index
	}
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.delay != nil {
		select {
		case <-time.After(s.delay(chunk)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err, ok := s.fail[chunk.Index]; ok {
		return "", err
	}

	s.mu.Lock()
	s.received[chunk.Index] = chunk.Data
	s.mu.Unlock()

	return fmt.Sprintf("ctx-%d", chunk.Index), nil
}

func collectProgress(ch <-chan int64) (func() []int64, chan struct{}) {
	var values []int64
	done := make(chan struct{})
	go func() {
		defer close(done)
		for v := range ch {
			values = append(values, v)
		}
	}()
	return func() []int64 { return values }, done
}

func TestUploader_Upload_Success(t *testing.T) {
	data := testData(10 * mib)
	sender := newFakeSender()
	// later chunks finish first
	sender.delay = func(chunk Chunk) time.Duration { return time.Duration(3-chunk.Index) * 20 * time.Millisecond }

	progress := make(chan int64)
	values, done := collectProgress(progress)

	uploader := New(Config{Concurrency: 3}, log.NewLogger())
	results, err := uploader.Upload(context.Background(), bytes.NewReader(data), int64(len(data)), 4*mib, sender, progress)
	close(progress)
	<-done
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, []ChunkResult{
		{Index: 0, Token: "ctx-0", Length: 4 * mib},
		{Index: 1, Token: "ctx-1", Length: 4 * mib},
		{Index: 2, Token: "ctx-2", Length: 2 * mib},
	}, results)

	var sum int64
	for _, v := range values() {
		assert.Positive(t, v)
		sum += v
	}
	assert.Equal(t, int64(len(data)), sum)
	assert.Equal(t, int32(3), atomic.LoadInt32(&sender.calls))

	var joined []byte
	for i := 0; i < 3; i++ {
		joined = append(joined, sender.received[i]...)
	}
	assert.Equal(t, data, joined)
	assert.Equal(t, int64(3), uploader.Stats().FinishedCount())
}

func TestUploader_Upload_DispatchesUpToConcurrencyImmediately(t *testing.T) {
	data := testData(10 * mib)
	sender := newFakeSender()
	sender.started = make(chan int, 3)
	sender.release = make(chan struct{})

	type uploadResult struct {
		results []ChunkResult
		err     error
	}
	resultCh := make(chan uploadResult, 1)
	go func() {
		uploader := New(Config{Concurrency: 3}, log.NewLogger())
		results, err := uploader.Upload(context.Background(), bytes.NewReader(data), int64(len(data)), 4*mib, sender, nil)
		resultCh <- uploadResult{results: results, err: err}
	}()

	started := map[int]bool{}
	for len(started) < 3 {
		select {
		case index := <-sender.started:
			started[index] = true
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d chunks were dispatched before any completed", len(started))
		}
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&sender.inFlight))
	close(sender.release)

	result := <-resultCh
	require.NoError(t, result.err)
	assert.Len(t, result.results, 3)
}

func TestUploader_Upload_RespectsConcurrency(t *testing.T) {
	data := testData(1000)
	sender := newFakeSender()
	sender.delay = func(Chunk) time.Duration { return 5 * time.Millisecond }

	uploader := New(Config{Concurrency: 2}, log.NewLogger())
	results, err := uploader.Upload(context.Background(), bytes.NewReader(data), int64(len(data)), 100, sender, nil)
	require.NoError(t, err)

	assert.Len(t, results, 10)
	assert.LessOrEqual(t, atomic.LoadInt32(&sender.maxSeen), int32(2))
	assert.Equal(t, int32(10), atomic.LoadInt32(&sender.calls))
}

func TestUploader_Upload_ChunkFailureAbortsTransfer(t *testing.T) {
	data := testData(2000)
	errPermanent := errors.New("HTTP 500: giving up")
	sender := newFakeSender()
	sender.fail[1] = errPermanent
	sender.delay = func(chunk Chunk) time.Duration {
		if chunk.Index == 1 {
			return 0
		}
		return 50 * time.Millisecond
	}

	uploader := New(Config{Concurrency: 2}, log.NewLogger())
	results, err := uploader.Upload(context.Background(), bytes.NewReader(data), int64(len(data)), 100, sender, nil)

	require.Error(t, err)
	assert.Nil(t, results)

	var partialErr *PartialFailureError
	require.True(t, errors.As(err, &partialErr))
	assert.Equal(t, 1, partialErr.Index)
	assert.True(t, errors.Is(err, errPermanent))
	assert.Less(t, atomic.LoadInt32(&sender.calls), int32(20))
}

func TestUploader_Upload_ContextCancellation(t *testing.T) {
	data := testData(1000)
	sender := newFakeSender()
	sender.delay = func(Chunk) time.Duration { return 5 * time.Second }

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	uploader := New(DefaultConfig(), log.NewLogger())
	_, err := uploader.Upload(ctx, bytes.NewReader(data), int64(len(data)), 100, sender, nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestUploader_Upload_SizeMismatch(t *testing.T) {
	data := testData(250)
	sender := newFakeSender()

	uploader := New(DefaultConfig(), log.NewLogger())
	_, err := uploader.Upload(context.Background(), bytes.NewReader(data), 300, 100, sender, nil)

	require.EqualError(t, err, "size mismatch: uploaded 250 bytes, expected 300")
}

type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestUploader_Upload_ReadErrorIsReported(t *testing.T) {
	errDisk := errors.New("input/output error")
	sender := newFakeSender()
	// in-flight chunks only return once their context is cancelled
	sender.release = make(chan struct{})

	uploader := New(Config{Concurrency: 3}, log.NewLogger())
	results, err := uploader.Upload(context.Background(), &failingReader{data: testData(8), err: errDisk}, 16, 4, sender, nil)

	require.Error(t, err)
	assert.Nil(t, results)
	assert.True(t, errors.Is(err, errDisk), "unexpected error: %s", err)
	assert.False(t, errors.Is(err, context.Canceled), "unexpected error: %s", err)
}

func TestUploader_Upload_IgnoresBytesBeyondSize(t *testing.T) {
	data := testData(300)
	sender := newFakeSender()

	uploader := New(DefaultConfig(), log.NewLogger())
	results, err := uploader.Upload(context.Background(), bytes.NewReader(data), 200, 100, sender, nil)

	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&sender.calls))
	assert.Equal(t, data[:100], sender.received[0])
	assert.Equal(t, data[100:200], sender.received[1])
}

func TestUploader_Upload_NothingToUpload(t *testing.T) {
	uploader := New(DefaultConfig(), log.NewLogger())
	_, err := uploader.Upload(context.Background(), bytes.NewReader(nil), 0, 100, newFakeSender(), nil)

	require.Error(t, err)
}

func TestNew_DefaultsConcurrency(t *testing.T) {
	uploader := New(Config{}, log.NewLogger())
	assert.Equal(t, DefaultConcurrency, uploader.config.Concurrency)
}

func TestStats(t *testing.T) {
	stats := NewStats()

	assert.Equal(t, int64(0), stats.FinishedCount())
	assert.Equal(t, time.Duration(0), stats.Average())
	assert.Equal(t, float64(0), stats.BytesPerSecond())

	stats.Update(100*time.Millisecond, 100)
	stats.Update(200*time.Millisecond, 100)
	stats.Update(700*time.Millisecond, 800)

	assert.Equal(t, int64(3), stats.FinishedCount())
	assert.Equal(t, int64(1000), stats.Bytes())
	assert.Equal(t, 1000*time.Millisecond/3, stats.Average())
	assert.Equal(t, float64(1000), stats.BytesPerSecond())
}
