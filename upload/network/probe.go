package network

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const probeBodySize = 100 * 1024

type probeResponse struct {
	OK    int `json:"OK"`
	Lines []struct {
		OS       string `json:"os"`
		ProbeURL string `json:"probe_url"`
		Query    string `json:"query"`
	} `json:"lines"`
	Probe struct {
		Get interface{} `json:"get"`
	} `json:"probe"`
}

// SelectLine probes the candidate lines announced by the API one after the other
// and returns the one that answered fastest. If none of them answered with 200,
// DefaultLine is returned with InfiniteCost.
//
// A network error while probing aborts the selection.
func (c *Client) SelectLine(ctx context.Context) (Line, error) {
	r := apiRequest{
		op:     "discover lines",
		method: http.MethodGet,
		url:    fmt.Sprintf("%s/preupload?r=probe", c.config.BaseURL),
	}
	var discovery probeResponse
	if err := c.api.sendJSON(ctx, c.apiHTTPClient, r, &discovery); err != nil {
		return Line{}, err
	}
	if discovery.OK != 1 {
		return Line{}, &ProtocolError{Op: r.op, URL: r.url, Err: fmt.Errorf("OK=%d", discovery.OK)}
	}

	method := http.MethodPost
	var body []byte
	if discovery.Probe.Get != nil {
		method = http.MethodGet
	} else {
		body = make([]byte, probeBodySize)
	}

	best := DefaultLine()
	for _, candidate := range discovery.Lines {
		backend, err := ParseBackendKind(candidate.OS)
		if err != nil {
			c.logger.Warnf("Skipping line %s: %s", candidate.Query, err)
			continue
		}
		line := newLine(backend, candidate.ProbeURL, candidate.Query)

		cost, err := c.probe(ctx, line, method, body)
		if err != nil {
			var rejection *ServerRejectionError
			if errors.As(err, &rejection) {
				c.logger.Warnf("Skipping line %s: %s", line, err)
				continue
			}
			return Line{}, fmt.Errorf("probe line %s: %w", line, err)
		}
		c.logger.Debugf("Line %s answered in %v", line, cost.Round(time.Millisecond))

		if cost < best.Cost {
			line.Cost = cost
			best = line
		}
	}

	if best.Cost == InfiniteCost {
		c.logger.Warnf("No line answered the probe, falling back to %s", best)
	} else {
		c.logger.Infof("Selected line %s (%v)", best, best.Cost.Round(time.Millisecond))
	}

	return best, nil
}

func (c *Client) probe(ctx context.Context, line Line, method string, body []byte) (time.Duration, error) {
	r := apiRequest{
		op:     "probe",
		method: method,
		url:    c.api.resolve(line.ProbeURL),
		body:   body,
	}

	start := time.Now()
	resp, err := c.api.send(ctx, c.apiHTTPClient, r)
	if err != nil {
		return 0, err
	}
	cost := time.Since(start)

	if resp.statusCode != http.StatusOK {
		return 0, &ServerRejectionError{Op: r.op, URL: r.url, StatusCode: resp.statusCode, Body: truncateBody(resp.body)}
	}

	return cost, nil
}
