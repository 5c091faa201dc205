package upload

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/bitrise-io/go-utils/v2/filedownloader"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
)

const fileScheme = "file://"

// SourceResolver turns video path inputs into local paths.
type SourceResolver interface {
	// Resolve keeps local paths and glob patterns as they are, strips the file://
	// scheme and downloads http(s) URLs into a temporary directory.
	Resolve(ctx context.Context, paths []string) ([]string, error)
}

type sourceResolver struct {
	logger       log.Logger
	downloader   filedownloader.Downloader
	pathProvider pathutil.PathProvider
	pathModifier pathutil.PathModifier
}

// NewSourceResolver ...
func NewSourceResolver(logger log.Logger, downloader filedownloader.Downloader, pathProvider pathutil.PathProvider, pathModifier pathutil.PathModifier) SourceResolver {
	return &sourceResolver{
		logger:       logger,
		downloader:   downloader,
		pathProvider: pathProvider,
		pathModifier: pathModifier,
	}
}

func (r *sourceResolver) Resolve(ctx context.Context, paths []string) ([]string, error) {
	resolved := make([]string, 0, len(paths))
	for _, pth := range paths {
		pth = strings.TrimSpace(pth)

		switch {
		case strings.HasPrefix(pth, fileScheme):
			absPath, err := r.pathModifier.AbsPath(strings.TrimPrefix(pth, fileScheme))
			if err != nil {
				return nil, err
			}
			resolved = append(resolved, absPath)
		case isRemote(pth):
			localPath, err := r.download(ctx, pth)
			if err != nil {
				return nil, err
			}
			resolved = append(resolved, localPath)
		default:
			resolved = append(resolved, pth)
		}
	}
	return resolved, nil
}

func (r *sourceResolver) download(ctx context.Context, videoURL string) (string, error) {
	parsedURL, err := url.Parse(videoURL)
	if err != nil {
		return "", fmt.Errorf("invalid video URL %s: %w", videoURL, err)
	}
	name := path.Base(parsedURL.Path)
	if name == "/" || name == "." {
		return "", fmt.Errorf("video URL has no file name: %s", videoURL)
	}

	// One directory per download, same-named videos must not overwrite each other.
	dir, err := r.pathProvider.CreateTempDir("video-upload")
	if err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}
	localPath := filepath.Join(dir, name)

	r.logger.Printf("Downloading %s", videoURL)
	if err := r.downloader.Download(ctx, localPath, videoURL); err != nil {
		return "", fmt.Errorf("failed to download video from %s: %w", videoURL, err)
	}
	return localPath, nil
}

func isRemote(pth string) bool {
	return strings.HasPrefix(pth, "http://") || strings.HasPrefix(pth, "https://")
}
