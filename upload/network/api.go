package network

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httputil"
	"strings"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/hashicorp/go-retryablehttp"
)

type apiRequest struct {
	op      string
	method  string
	url     string
	body    []byte
	headers map[string]string
}

type apiResponse struct {
	statusCode int
	body       []byte
}

type apiClient struct {
	userAgent string
	scheme    string
	logger    log.Logger
}

func newAPIClient(userAgent, scheme string, logger log.Logger) apiClient {
	return apiClient{
		userAgent: userAgent,
		scheme:    scheme,
		logger:    logger,
	}
}

// resolve turns a protocol-relative URL ("//host/path") into an absolute one.
func (c apiClient) resolve(rawURL string) string {
	if strings.HasPrefix(rawURL, "//") {
		return c.scheme + rawURL
	}
	return rawURL
}

// send executes the request and reads the whole response body.
// Transport failures are returned as *NetworkError, non-2xx statuses as
// *ServerRejectionError.
func (c apiClient) send(ctx context.Context, client *retryablehttp.Client, r apiRequest) (apiResponse, error) {
	var body interface{}
	if r.body != nil {
		body = r.body
	}
	req, err := retryablehttp.NewRequest(r.method, r.url, body)
	if err != nil {
		return apiResponse{}, fmt.Errorf("%s: create request: %w", r.op, err)
	}
	req = req.WithContext(ctx)

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Referer", referer)
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	dump, err := httputil.DumpRequest(req.Request, false)
	if err != nil {
		c.logger.Warnf("error while dumping request: %s", err)
	}
	c.logger.Debugf("%s request dump: %s", r.op, string(dump))

	resp, err := client.Do(req)
	if err != nil {
		// CheckRetry can fail the request (e.g. on cancellation) and still hand back the response.
		if resp != nil {
			if cerr := resp.Body.Close(); cerr != nil {
				c.logger.Warnf("failed to close response body: %s", cerr)
			}
		}
		return apiResponse{}, &NetworkError{Op: r.op, URL: r.url, Err: err}
	}
	if resp == nil {
		return apiResponse{}, &NetworkError{Op: r.op, URL: r.url, Err: fmt.Errorf("no response")}
	}
	defer func(body io.ReadCloser) {
		err := body.Close()
		if err != nil {
			c.logger.Warnf("failed to close response body: %s", err)
		}
	}(resp.Body)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apiResponse{}, &NetworkError{Op: r.op, URL: r.url, Err: fmt.Errorf("read response body: %w", err)}
	}
	c.logger.Debugf("%s response: HTTP %d, %d bytes", r.op, resp.StatusCode, len(respBody))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiResponse{}, &ServerRejectionError{
			Op:         r.op,
			URL:        r.url,
			StatusCode: resp.StatusCode,
			Body:       truncateBody(respBody),
		}
	}

	return apiResponse{statusCode: resp.StatusCode, body: respBody}, nil
}

// sendJSON sends the request and decodes the response body into out.
func (c apiClient) sendJSON(ctx context.Context, client *retryablehttp.Client, r apiRequest, out interface{}) error {
	resp, err := c.send(ctx, client, r)
	if err != nil {
		return err
	}

	return decodeJSON(r, resp.body, out)
}

func decodeJSON(r apiRequest, body []byte, out interface{}) error {
	if err := json.Unmarshal(body, out); err != nil {
		return &ProtocolError{Op: r.op, URL: r.url, Body: truncateBody(body), Err: fmt.Errorf("decode json: %w", err)}
	}
	return nil
}

// okResponse is the success envelope of the member API.
type okResponse struct {
	OK int `json:"OK"`
}
