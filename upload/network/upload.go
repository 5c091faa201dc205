package network

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/go-units"

	"github.com/bitrise-io/go-videoupload/upload/network/chunkuploader"
)

// State is the progress of a single file upload.
type State int

// States of an upload, in the order they are entered.
const (
	SelectingLine State = iota
	Negotiating
	Transferring
	Finalizing
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case SelectingLine:
		return "selecting line"
	case Negotiating:
		return "negotiating"
	case Transferring:
		return "transferring"
	case Finalizing:
		return "finalizing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// UploadParams ...
type UploadParams struct {
	FilePath string
	// Line pins the upload line, if nil the fastest line is selected by probing.
	Line *Line
	// Title overrides the part title, which defaults to the file name without extension.
	Title string
	// Progress receives the size of every uploaded chunk, in completion order.
	Progress chan<- int64
	// OnState is called on every state transition.
	OnState func(State)
}

type uploadRun struct {
	state   State
	onState func(State)
}

func (r *uploadRun) enter(state State) {
	r.state = state
	if r.onState != nil {
		r.onState(state)
	}
}

func (r *uploadRun) fail(err error) error {
	failedIn := r.state
	r.enter(Failed)
	return &StateError{State: failedIn, Err: err}
}

// UploadFile uploads a single file and returns the part describing it.
// Errors are returned as *StateError naming the state the upload failed in.
func (c *Client) UploadFile(ctx context.Context, params UploadParams) (UploadedPart, error) {
	run := &uploadRun{onState: params.OnState}

	run.enter(SelectingLine)
	var line Line
	if params.Line != nil {
		line = *params.Line
		c.logger.Debugf("Using pinned line %s", line)
	} else {
		selected, err := c.SelectLine(ctx)
		if err != nil {
			return UploadedPart{}, run.fail(err)
		}
		line = selected
	}

	run.enter(Negotiating)
	file, err := os.Open(params.FilePath)
	if err != nil {
		return UploadedPart{}, run.fail(fmt.Errorf("open file: %w", err))
	}
	defer func(file *os.File) {
		err := file.Close()
		if err != nil {
			c.logger.Errorf("failed to close file: %s", err)
		}
	}(file)

	info, err := file.Stat()
	if err != nil {
		return UploadedPart{}, run.fail(fmt.Errorf("stat file: %w", err))
	}
	size := info.Size()
	if size == 0 {
		return UploadedPart{}, run.fail(fmt.Errorf("file is empty: %s", params.FilePath))
	}

	fileName := filepath.Base(params.FilePath)
	backend, err := c.Negotiate(ctx, line, fileName, size)
	if err != nil {
		return UploadedPart{}, run.fail(err)
	}

	run.enter(Transferring)
	c.logger.Infof("Uploading %s (%s) via %s", fileName, units.HumanSizeWithPrecision(float64(size), 3), line)
	start := time.Now()
	uploader := chunkuploader.New(chunkuploader.Config{Concurrency: c.config.Concurrency}, c.logger)
	results, err := uploader.Upload(ctx, file, size, backend.ChunkSize(), backend, params.Progress)
	if err != nil {
		return UploadedPart{}, run.fail(err)
	}
	took := time.Since(start)
	c.logger.TDebugf("Transferred %d chunks in %v", len(results), took.Round(time.Millisecond))

	run.enter(Finalizing)
	part, err := backend.Finalize(ctx, results)
	if err != nil {
		return UploadedPart{}, run.fail(err)
	}
	part.Title = params.Title
	if part.Title == "" {
		part.Title = fileStem(params.FilePath)
	}

	run.enter(Done)
	c.logger.Donef("Uploaded %s as %s in %v (%s/s)", fileName, part.Filename, took.Round(time.Millisecond),
		units.HumanSize(throughput(size, took)))

	return part, nil
}

func throughput(size int64, took time.Duration) float64 {
	if took <= 0 {
		return 0
	}
	return float64(size) / took.Seconds()
}
