package network

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

const (
	preuploadVersion = "2.10.4"
	preuploadBuild   = "2100400"
)

// Negotiate opens an upload session for a file of the given name and size on the line.
// Every failure is returned as *SessionError.
func (c *Client) Negotiate(ctx context.Context, line Line, fileName string, size int64) (Backend, error) {
	var backend Backend
	var err error
	switch line.Backend {
	case Upos:
		backend, err = c.negotiateUpos(ctx, line, fileName, size)
	case Kodo:
		backend, err = c.negotiateKodo(ctx, line, fileName, size)
	default:
		err = fmt.Errorf("unknown backend: %s", line.Backend)
	}
	if err != nil {
		return nil, &SessionError{Line: line, Err: err}
	}

	return backend, nil
}

// preupload decodes the session description into out and returns the request URL.
func (c *Client) preupload(ctx context.Context, line Line, profile, fileName string, size int64, out interface{}) (string, error) {
	query := url.Values{}
	query.Set("r", string(line.Backend))
	query.Set("profile", profile)
	query.Set("ssl", "0")
	query.Set("version", preuploadVersion)
	query.Set("build", preuploadBuild)
	query.Set("name", fileName)
	query.Set("size", strconv.FormatInt(size, 10))

	rawQuery := query.Encode()
	if line.Query != "" {
		rawQuery = line.Query + "&" + rawQuery
	}

	r := apiRequest{
		op:     "preupload",
		method: http.MethodGet,
		url:    fmt.Sprintf("%s/preupload?%s", c.config.BaseURL, rawQuery),
	}
	resp, err := c.api.send(ctx, c.apiHTTPClient, r)
	if err != nil {
		return r.url, err
	}

	var ok okResponse
	if err := decodeJSON(r, resp.body, &ok); err != nil {
		return r.url, err
	}
	if ok.OK != 1 {
		return r.url, &ServerRejectionError{Op: r.op, URL: r.url, StatusCode: resp.statusCode, Body: truncateBody(resp.body)}
	}

	return r.url, decodeJSON(r, resp.body, out)
}

func missingField(op, requestURL, field string) error {
	return &ProtocolError{Op: op, URL: requestURL, Err: fmt.Errorf("missing field: %s", field)}
}
