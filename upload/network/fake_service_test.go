package network

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	mib            = 1024 * 1024
	uposObjectPath = "/ugcboss/n210101abc.mp4"
	kodoKey        = "video/n210101kodo.mp4"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// fakeService emulates the member API and both storage backends on a single host.
// Responses are configured before the first call of client, which starts the server.
type fakeService struct {
	t      *testing.T
	server *httptest.Server
	start  sync.Once
	// host is the protocol-relative address of the server, like "//127.0.0.1:1234".
	host string

	preuploadStatus  int
	uposPreupload    string
	kodoPreupload    string
	uploadIDResponse string
	completeResponse string
	mkfileStatus     int
	fetchResponse    string
	// chunkStatus returns the status of the attempt-th (1-based) request of an upos chunk.
	chunkStatus func(index, attempt int) int
	// blockResponse returns the status and body of a kodo mkblk request.
	blockResponse func(body []byte) (int, string)

	mu            sync.Mutex
	requests      []recordedRequest
	chunkAttempts map[int]int
}

func newFakeService(t *testing.T) *fakeService {
	s := &fakeService{
		t:             t,
		chunkAttempts: map[int]int{},
	}
	s.server = httptest.NewUnstartedServer(s)
	t.Cleanup(s.server.Close)
	s.host = "//" + s.server.Listener.Addr().String()

	s.preuploadStatus = http.StatusOK
	s.uposPreupload = fmt.Sprintf(`{"OK":1,"chunk_size":%d,"auth":"upos-auth","endpoint":"%s","biz_id":42,"upos_uri":"upos:/%s"}`,
		4*mib, s.host, uposObjectPath)
	s.kodoPreupload = fmt.Sprintf(`{"OK":1,"bili_filename":"n210101kodo","fetch_url":"%s/fetch","endpoint":"%s","uptoken":"kodo-token","key":"%s","fetch_headers":{"X-Fetch-Token":"fetch"}}`,
		s.host, s.host, kodoKey)
	s.uploadIDResponse = `{"OK":1,"upload_id":"upload-1"}`
	s.completeResponse = `{"OK":1,"location":"upos://ugcboss/n210101abc.mp4"}`
	s.mkfileStatus = http.StatusOK
	s.fetchResponse = `{"OK":1}`
	s.chunkStatus = func(int, int) int { return http.StatusOK }
	s.blockResponse = func(body []byte) (int, string) {
		return http.StatusOK, fmt.Sprintf(`{"ctx":"%s","checksum":"x"}`, blockContext(body))
	}

	return s
}

// blockContext derives the context the fake kodo backend returns for a block.
func blockContext(block []byte) string {
	return fmt.Sprintf("ctx-%d-%d", len(block), block[0])
}

func (s *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	assert.NoError(s.t, err)

	s.mu.Lock()
	s.requests = append(s.requests, recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
		Body:   body,
	})
	s.mu.Unlock()

	query := r.URL.Query()
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/preupload":
		switch query.Get("r") {
		case "upos":
			writeBody(w, s.preuploadStatus, s.uposPreupload)
		case "kodo":
			writeBody(w, s.preuploadStatus, s.kodoPreupload)
		default:
			http.NotFound(w, r)
		}
	case r.URL.Path == uposObjectPath && r.Method == http.MethodPost && query.Has("uploads"):
		writeBody(w, http.StatusOK, s.uploadIDResponse)
	case r.URL.Path == uposObjectPath && r.Method == http.MethodPut:
		index, err := strconv.Atoi(query.Get("chunk"))
		assert.NoError(s.t, err)
		s.mu.Lock()
		s.chunkAttempts[index]++
		attempt := s.chunkAttempts[index]
		s.mu.Unlock()
		writeBody(w, s.chunkStatus(index, attempt), "MULTIPART_PUT_SUCCESS")
	case r.URL.Path == uposObjectPath && r.Method == http.MethodPost:
		writeBody(w, http.StatusOK, s.completeResponse)
	case strings.HasPrefix(r.URL.Path, "/mkblk/"):
		status, resp := s.blockResponse(body)
		writeBody(w, status, resp)
	case strings.HasPrefix(r.URL.Path, "/mkfile/"):
		writeBody(w, s.mkfileStatus, fmt.Sprintf(`{"key":"%s"}`, kodoKey))
	case r.URL.Path == "/fetch":
		writeBody(w, http.StatusOK, s.fetchResponse)
	default:
		http.NotFound(w, r)
	}
}

func writeBody(w http.ResponseWriter, status int, body string) {
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (s *fakeService) find(method, pathPrefix string) []recordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found []recordedRequest
	for _, r := range s.requests {
		if r.Method == method && strings.HasPrefix(r.Path, pathPrefix) {
			found = append(found, r)
		}
	}
	return found
}

func (s *fakeService) attempts(index int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunkAttempts[index]
}

func (s *fakeService) completeRequests() []recordedRequest {
	var complete []recordedRequest
	for _, r := range s.find(http.MethodPost, uposObjectPath) {
		if !r.Query.Has("uploads") {
			complete = append(complete, r)
		}
	}
	return complete
}

func (s *fakeService) client() *Client {
	s.start.Do(s.server.Start)

	return NewClient(Config{
		HTTPClient: s.server.Client(),
		BaseURL:    "http:" + s.host,
		Scheme:     "http:",
		Retry:      testRetryPolicy(),
	}, log.NewLogger())
}

func testRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		MinWait:    time.Millisecond,
		MaxWait:    5 * time.Millisecond,
	}
}

func videoData(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func writeVideo(t *testing.T, name string, data []byte) string {
	t.Helper()

	pth := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(pth, data, 0600))
	return pth
}

func encodedKodoKey() string {
	return base64.URLEncoding.EncodeToString([]byte(kodoKey))
}
