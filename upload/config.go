package upload

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/bitrise-io/go-videoupload/upload/network"
)

// AutoLine selects the upload line by probing the candidates announced by the API.
const AutoLine = "auto"

type uploadConfig struct {
	Verbose     bool
	Paths       []string
	Line        *network.Line
	Concurrency int
	UserAgent   string
	Title       string
}

func (u *uploader) createConfig(input UploadInput) (uploadConfig, error) {
	if len(input.Paths) == 0 {
		return uploadConfig{}, fmt.Errorf("video paths should not be empty")
	}

	finalPaths, err := u.evaluatePaths(input.Paths)
	u.logger.TDebugf("Final paths evaluated")
	if err != nil {
		return uploadConfig{}, fmt.Errorf("failed to parse paths: %w", err)
	}
	if len(finalPaths) == 0 {
		return uploadConfig{}, fmt.Errorf("none of the video paths exist: %s", strings.Join(input.Paths, ", "))
	}

	var line *network.Line
	lineName := strings.TrimSpace(input.Line)
	if lineName != "" && lineName != AutoLine {
		pinned, err := network.LineByName(lineName)
		if err != nil {
			return uploadConfig{}, err
		}
		line = &pinned
	}

	if input.Concurrency < 0 {
		return uploadConfig{}, fmt.Errorf("concurrency should not be negative: %d", input.Concurrency)
	}

	return uploadConfig{
		Verbose:     input.Verbose,
		Paths:       finalPaths,
		Line:        line,
		Concurrency: input.Concurrency,
		UserAgent:   input.UserAgent,
		Title:       strings.TrimSpace(input.Title),
	}, nil
}

func (u *uploader) evaluatePaths(paths []string) ([]string, error) {
	// Expand wildcard paths
	var expandedPaths []string
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		if !strings.Contains(path, "*") {
			expandedPaths = append(expandedPaths, path)
			continue
		}

		base, pattern := doublestar.SplitPattern(path)
		absBase, err := u.pathModifier.AbsPath(base) // resolves ~/ and expands any envs
		if err != nil {
			return nil, err
		}
		matches, err := doublestar.Glob(os.DirFS(absBase), pattern, doublestar.WithNoFollow(), doublestar.WithFilesOnly())
		if err != nil {
			u.logger.Warnf("Error in path pattern '%s': %s", path, err)
			continue
		}
		if len(matches) == 0 {
			u.logger.Warnf("No match for path pattern: %s", path)
			continue
		}

		for _, match := range matches {
			expandedPaths = append(expandedPaths, filepath.Join(base, match))
		}
	}

	// Validate and sanitize paths
	var finalPaths []string
	seen := map[string]bool{}
	for _, path := range expandedPaths {
		absPath, err := u.pathModifier.AbsPath(path)
		if err != nil {
			u.logger.Warnf("Failed to parse path %s, error: %s", path, err)
			continue
		}

		exists, err := u.pathChecker.IsPathExists(absPath)
		if err != nil {
			u.logger.Warnf("Failed to check path %s, error: %s", absPath, err)
		}
		if !exists {
			u.logger.Warnf("Video path doesn't exist: %s", path)
			continue
		}
		if seen[absPath] {
			continue
		}
		seen[absPath] = true

		finalPaths = append(finalPaths, absPath)
	}

	return finalPaths, nil
}

// partTitle returns the title of the i-th of count parts, empty for the default title.
func partTitle(title string, i, count int) string {
	if title == "" || count == 1 {
		return title
	}
	return fmt.Sprintf("%s P%d", title, i+1)
}
