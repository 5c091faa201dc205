// Command video-upload uploads the configured video files and prints the parts
// a submission can reference. Inputs are read from environment variables.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/filedownloader"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"

	"github.com/bitrise-io/go-videoupload/stepconf"
	"github.com/bitrise-io/go-videoupload/upload"
	"github.com/bitrise-io/go-videoupload/upload/network"
)

type inputs struct {
	VideoPaths      []string        `env:"video_paths,required"`
	UploadLine      string          `env:"upload_line,opt[auto,bda2,ws,qn,kodo]"`
	Concurrency     int             `env:"concurrency"`
	UserAgent       string          `env:"user_agent"`
	PartTitle       string          `env:"part_title"`
	SessionCookie   stepconf.Secret `env:"session_cookie"`
	PartsOutputPath string          `env:"parts_output_path"`
	Verbose         bool            `env:"verbose"`
	SendAnalytics   bool            `env:"send_analytics"`
}

var inputDefaults = map[string]string{
	"upload_line": upload.AutoLine,
	"concurrency": "3",
	"user_agent":  network.DefaultUserAgent,
}

func main() {
	logger := log.NewLogger()
	if err := run(logger); err != nil {
		logger.Errorf("%s", err)
		os.Exit(1)
	}
}

func run(logger log.Logger) error {
	envRepo := env.NewRepository()

	var cfg inputs
	if err := stepconf.NewInputParserWithDefaults(envRepo, inputDefaults).Parse(&cfg); err != nil {
		return err
	}
	stepconf.Print(cfg)
	logger.EnableDebugLog(cfg.Verbose)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	httpClient, err := newSessionClient(string(cfg.SessionCookie))
	if err != nil {
		return fmt.Errorf("failed to load session cookie: %w", err)
	}

	pathModifier := pathutil.NewPathModifier()
	resolver := upload.NewSourceResolver(logger, filedownloader.NewDownloader(logger), pathutil.NewPathProvider(), pathModifier)
	paths, err := resolver.Resolve(ctx, cfg.VideoPaths)
	if err != nil {
		return err
	}

	uploader := upload.NewUploader(logger, pathModifier, pathutil.NewPathChecker(), httpClient, nil)
	parts, err := uploader.Upload(ctx, upload.UploadInput{
		Verbose:       cfg.Verbose,
		Paths:         paths,
		Line:          cfg.UploadLine,
		Concurrency:   cfg.Concurrency,
		UserAgent:     cfg.UserAgent,
		Title:         cfg.PartTitle,
		SendAnalytics: cfg.SendAnalytics,
	})
	if err != nil {
		return err
	}

	return writeParts(logger, parts, cfg.PartsOutputPath)
}

func writeParts(logger log.Logger, parts []network.UploadedPart, outputPath string) error {
	content, err := json.MarshalIndent(parts, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode uploaded parts: %w", err)
	}

	logger.Println()
	logger.Donef("Uploaded %d part(s):", len(parts))
	logger.Printf("%s", content)

	if outputPath == "" {
		return nil
	}
	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write uploaded parts to %s: %w", outputPath, err)
	}
	logger.Printf("Uploaded parts written to %s", outputPath)
	return nil
}
