package upload

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/bitrise-io/go-utils/v2/filedownloader"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSourceResolver() SourceResolver {
	logger := log.NewLogger()
	return NewSourceResolver(logger, filedownloader.NewDownloader(logger), pathutil.NewPathProvider(), pathutil.NewPathModifier())
}

func TestSourceResolver_Resolve(t *testing.T) {
	dir := writeFiles(t, "local.mp4")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte("remote video " + r.URL.Path))
		assert.NoError(t, err)
	}))
	defer server.Close()

	paths, err := newTestSourceResolver().Resolve(context.Background(), []string{
		filepath.Join(dir, "*.mp4"),
		"file://" + filepath.Join(dir, "local.mp4"),
		server.URL + "/a/clip.mp4",
		server.URL + "/b/clip.mp4",
	})

	require.NoError(t, err)
	require.Len(t, paths, 4)
	assert.Equal(t, filepath.Join(dir, "*.mp4"), paths[0])
	assert.Equal(t, filepath.Join(dir, "local.mp4"), paths[1])

	assert.Equal(t, "clip.mp4", filepath.Base(paths[2]))
	assert.Equal(t, "clip.mp4", filepath.Base(paths[3]))
	assert.NotEqual(t, paths[2], paths[3])

	content, err := os.ReadFile(paths[2])
	require.NoError(t, err)
	assert.Equal(t, "remote video /a/clip.mp4", string(content))
	content, err = os.ReadFile(paths[3])
	require.NoError(t, err)
	assert.Equal(t, "remote video /b/clip.mp4", string(content))
}

func TestSourceResolver_Resolve_NoFileName(t *testing.T) {
	_, err := newTestSourceResolver().Resolve(context.Background(), []string{"https://example.com/"})

	require.EqualError(t, err, "video URL has no file name: https://example.com/")
}
