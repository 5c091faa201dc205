package upload

import (
	"time"

	"github.com/bitrise-io/go-utils/v2/analytics"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/google/uuid"

	"github.com/bitrise-io/go-videoupload/upload/network"
	"github.com/bitrise-io/go-videoupload/upload/network/chunkuploader"
)

// uploadTracker sends upload events when analytics are enabled, otherwise it does nothing.
type uploadTracker struct {
	tracker analytics.Tracker
	logger  log.Logger
}

func newUploadTracker(enabled bool, config uploadConfig, logger log.Logger) uploadTracker {
	if !enabled {
		return uploadTracker{logger: logger}
	}

	return uploadTracker{
		tracker: analytics.NewDefaultTracker(logger, env.NewRepository(), runProperties(config, uuid.NewString())),
		logger:  logger,
	}
}

// runProperties are sent with every event of an upload run.
func runProperties(config uploadConfig, runID string) analytics.Properties {
	line := AutoLine
	if config.Line != nil {
		line = config.Line.String()
	}
	concurrency := config.Concurrency
	if concurrency == 0 {
		concurrency = chunkuploader.DefaultConcurrency
	}

	return analytics.Properties{
		"run_id":      runID,
		"line":        line,
		"concurrency": concurrency,
		"file_count":  len(config.Paths),
		"has_title":   config.Title != "",
	}
}

func (t *uploadTracker) logFileUploaded(sessionID string, uploadTime time.Duration, size int64, line network.Line) {
	if t.tracker == nil {
		return
	}
	properties := analytics.Properties{
		"session_id":        sessionID,
		"upload_time_s":     uploadTime.Truncate(time.Second).Seconds(),
		"upload_size_bytes": size,
		"backend":           string(line.Backend),
		"line":              line.Query,
	}
	t.tracker.Enqueue("video_upload_file_uploaded", properties)
}

func (t *uploadTracker) logFileFailed(sessionID string, state network.State) {
	if t.tracker == nil {
		return
	}
	properties := analytics.Properties{
		"session_id": sessionID,
		"state":      state.String(),
	}
	t.tracker.Enqueue("video_upload_file_failed", properties)
}

func (t *uploadTracker) logLineSelected(line network.Line) {
	if t.tracker == nil {
		return
	}
	properties := analytics.Properties{
		"backend": string(line.Backend),
		"line":    line.Query,
		"probed":  line.Cost != network.InfiniteCost,
	}
	if line.Cost != network.InfiniteCost {
		properties["probe_time_ms"] = line.Cost.Milliseconds()
	}
	t.tracker.Enqueue("video_upload_line_selected", properties)
}

func (t *uploadTracker) wait() {
	if t.tracker == nil {
		return
	}
	t.tracker.Wait()
}
