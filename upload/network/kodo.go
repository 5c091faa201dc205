package network

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/bitrise-io/go-videoupload/upload/network/chunkuploader"
)

const (
	kodoProfile = "ugcupos/bupfetch"
	// KodoChunkSize is the fixed block size of the kodo backend.
	KodoChunkSize = 4 * 1024 * 1024
)

type kodoBucket struct {
	BiliFilename string            `json:"bili_filename"`
	FetchURL     string            `json:"fetch_url"`
	Endpoint     string            `json:"endpoint"`
	UpToken      string            `json:"uptoken"`
	Key          string            `json:"key"`
	FetchHeaders map[string]string `json:"fetch_headers"`
}

type kodoBlockResponse struct {
	Ctx string `json:"ctx"`
}

type kodoBackend struct {
	api         apiClient
	httpClient  *retryablehttp.Client
	chunkClient *retryablehttp.Client

	bucket    kodoBucket
	endpoint  string
	totalSize int64
}

func (c *Client) negotiateKodo(ctx context.Context, line Line, fileName string, size int64) (*kodoBackend, error) {
	var bucket kodoBucket
	requestURL, err := c.preupload(ctx, line, kodoProfile, fileName, size, &bucket)
	if err != nil {
		return nil, err
	}

	switch {
	case bucket.Endpoint == "":
		return nil, missingField("preupload", requestURL, "endpoint")
	case bucket.UpToken == "":
		return nil, missingField("preupload", requestURL, "uptoken")
	case bucket.Key == "":
		return nil, missingField("preupload", requestURL, "key")
	case bucket.FetchURL == "":
		return nil, missingField("preupload", requestURL, "fetch_url")
	case bucket.BiliFilename == "":
		return nil, missingField("preupload", requestURL, "bili_filename")
	}

	c.logger.Debugf("kodo session: key %s, %d blocks", bucket.Key, chunkuploader.ChunkCount(size, KodoChunkSize))

	return &kodoBackend{
		api:         c.api,
		httpClient:  c.apiHTTPClient,
		chunkClient: c.kodoHTTPClient,
		bucket:      bucket,
		endpoint:    c.api.resolve(bucket.Endpoint),
		totalSize:   size,
	}, nil
}

func (b *kodoBackend) Kind() BackendKind {
	return Kodo
}

func (b *kodoBackend) ChunkSize() int64 {
	return KodoChunkSize
}

func (b *kodoBackend) authHeader() string {
	return "UpToken " + b.bucket.UpToken
}

func (b *kodoBackend) SendChunk(ctx context.Context, chunk chunkuploader.Chunk) (string, error) {
	r := apiRequest{
		op:     fmt.Sprintf("upload block %d", chunk.Index+1),
		method: http.MethodPost,
		url:    fmt.Sprintf("%s/mkblk/%d", b.endpoint, chunk.Len()),
		body:   chunk.Data,
		headers: map[string]string{
			"Authorization": b.authHeader(),
			"Content-Type":  "application/octet-stream",
		},
	}

	var block kodoBlockResponse
	if err := b.api.sendJSON(ctx, b.chunkClient, r, &block); err != nil {
		return "", err
	}
	if block.Ctx == "" {
		return "", missingField(r.op, r.url, "ctx")
	}

	return block.Ctx, nil
}

func (b *kodoBackend) Finalize(ctx context.Context, results []chunkuploader.ChunkResult) (UploadedPart, error) {
	contexts := make([]string, 0, len(results))
	for _, result := range results {
		contexts = append(contexts, result.Token)
	}

	mkfile := apiRequest{
		op:     "make file",
		method: http.MethodPost,
		url:    fmt.Sprintf("%s/mkfile/%d/key/%s", b.endpoint, b.totalSize, base64.URLEncoding.EncodeToString([]byte(b.bucket.Key))),
		body:   []byte(strings.Join(contexts, ",")),
		headers: map[string]string{
			"Authorization": b.authHeader(),
			"Content-Type":  "text/plain",
		},
	}
	if _, err := b.api.send(ctx, b.httpClient, mkfile); err != nil {
		return UploadedPart{}, err
	}

	fetch := apiRequest{
		op:      "fetch",
		method:  http.MethodPost,
		url:     b.api.resolve(b.bucket.FetchURL),
		headers: b.bucket.FetchHeaders,
	}
	resp, err := b.api.send(ctx, b.httpClient, fetch)
	if err != nil {
		return UploadedPart{}, err
	}

	var ok okResponse
	if err := decodeJSON(fetch, resp.body, &ok); err != nil {
		return UploadedPart{}, err
	}
	if ok.OK != 1 {
		return UploadedPart{}, &ServerRejectionError{Op: fetch.op, URL: fetch.url, StatusCode: resp.statusCode, Body: truncateBody(resp.body)}
	}

	return UploadedPart{Filename: b.bucket.BiliFilename}, nil
}
