// Package upload uploads a set of local video files, one after the other, and
// returns the parts a submission can reference.
package upload

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/docker/go-units"
	"github.com/google/uuid"

	"github.com/bitrise-io/go-videoupload/upload/network"
)

// UploadInput is the information that comes from the caller of the shared upload implementation
type UploadInput struct {
	Verbose bool
	// Paths are the video files to upload, in submission order. Glob patterns are expanded.
	Paths []string
	// Line is AutoLine (or empty) to probe the fastest line, or the name of a pinned line.
	Line string
	// Concurrency is the number of chunks uploaded in parallel per file.
	// If not provided (0), the default value (3) will be used.
	Concurrency int
	UserAgent   string
	// Title overrides the part titles, which default to the file names without extension.
	// With multiple files the parts are numbered: "Title P1", "Title P2", ...
	Title         string
	SendAnalytics bool
}

// Uploader ...
type Uploader interface {
	Upload(ctx context.Context, input UploadInput) ([]network.UploadedPart, error)
}

// FileUploader uploads a single file over a negotiated upload line.
type FileUploader interface {
	SelectLine(ctx context.Context) (network.Line, error)
	UploadFile(ctx context.Context, params network.UploadParams) (network.UploadedPart, error)
}

// FileUploaderFactory creates the FileUploader of an upload run.
type FileUploaderFactory func(config network.Config, logger log.Logger) FileUploader

// DefaultFileUploaderFactory creates a network.Client.
func DefaultFileUploaderFactory(config network.Config, logger log.Logger) FileUploader {
	return network.NewClient(config, logger)
}

type uploader struct {
	logger          log.Logger
	pathModifier    pathutil.PathModifier
	pathChecker     pathutil.PathChecker
	httpClient      *http.Client
	newFileUploader FileUploaderFactory
}

// NewUploader creates a new video uploader instance.
// `httpClient` carries the authenticated session, `fileUploaderFactory` can be nil
// unless you want to provide a custom `FileUploader` implementation.
func NewUploader(
	logger log.Logger,
	pathModifier pathutil.PathModifier,
	pathChecker pathutil.PathChecker,
	httpClient *http.Client,
	fileUploaderFactory FileUploaderFactory,
) Uploader {
	if fileUploaderFactory == nil {
		fileUploaderFactory = DefaultFileUploaderFactory
	}
	return &uploader{
		logger:          logger,
		pathModifier:    pathModifier,
		pathChecker:     pathChecker,
		httpClient:      httpClient,
		newFileUploader: fileUploaderFactory,
	}
}

// Upload ...
func (u *uploader) Upload(ctx context.Context, input UploadInput) ([]network.UploadedPart, error) {
	u.logger.TDebugf("Upload start")
	defer func() {
		u.logger.TDebugf("Upload done")
	}()

	config, err := u.createConfig(input)
	if err != nil {
		return nil, fmt.Errorf("failed to parse inputs: %w", err)
	}
	u.logger.TDebugf("Config created")

	tracker := newUploadTracker(input.SendAnalytics, config, u.logger)
	defer tracker.wait()
	u.logger.TDebugf("Tracker created")

	fileUploader := u.newFileUploader(network.Config{
		HTTPClient:  u.httpClient,
		UserAgent:   config.UserAgent,
		Concurrency: config.Concurrency,
	}, u.logger)

	line := config.Line
	if line == nil {
		u.logger.Println()
		u.logger.Infof("Selecting upload line...")
		selected, err := fileUploader.SelectLine(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to select upload line: %w", err)
		}
		tracker.logLineSelected(selected)
		line = &selected
	}
	u.logger.Donef("Upload line: %s", line)

	parts := make([]network.UploadedPart, 0, len(config.Paths))
	for i, pth := range config.Paths {
		u.logger.Println()
		u.logger.Infof("Uploading video %d/%d: %s", i+1, len(config.Paths), pth)

		part, err := u.uploadFile(ctx, fileUploader, tracker, *line, pth, partTitle(config.Title, i, len(config.Paths)))
		if err != nil {
			return nil, fmt.Errorf("failed to upload %s: %w", pth, err)
		}
		parts = append(parts, part)
	}

	return parts, nil
}

func (u *uploader) uploadFile(ctx context.Context, fileUploader FileUploader, tracker uploadTracker, line network.Line, pth, title string) (network.UploadedPart, error) {
	info, err := os.Stat(pth)
	if err != nil {
		return network.UploadedPart{}, err
	}
	sessionID := uuid.NewString()
	u.logger.Printf("Size: %s", units.HumanSizeWithPrecision(float64(info.Size()), 3))
	u.logger.Debugf("Session ID: %s", sessionID)

	progress := make(chan int64)
	reporter := newProgressReporter(u.logger, filepath.Base(pth), info.Size())
	reported := make(chan int64, 1)
	go func() {
		reported <- reporter.run(progress)
	}()

	uploadStartTime := time.Now()
	part, err := fileUploader.UploadFile(ctx, network.UploadParams{
		FilePath: pth,
		Line:     &line,
		Title:    title,
		Progress: progress,
		OnState: func(state network.State) {
			u.logger.Debugf("[%s] %s", sessionID, state)
		},
	})
	close(progress)
	uploaded := <-reported
	uploadTime := time.Since(uploadStartTime)

	if err != nil {
		var stateErr *network.StateError
		if errors.As(err, &stateErr) {
			tracker.logFileFailed(sessionID, stateErr.State)
		}
		return network.UploadedPart{}, err
	}
	if uploaded != info.Size() {
		u.logger.Warnf("Reported progress (%d bytes) differs from the file size (%d bytes)", uploaded, info.Size())
	}

	u.logger.Donef("Uploaded as %s in %s", part.Filename, uploadTime.Round(time.Second))
	tracker.logFileUploaded(sessionID, uploadTime, info.Size(), line)

	return part, nil
}
