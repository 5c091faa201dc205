package network

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/bitrise-io/go-videoupload/upload/network/chunkuploader"
)

const (
	uposProfile = "ugcupos/bup"
	uposScheme  = "upos://"
	uposAuthKey = "X-Upos-Auth"
	// The chunk response carries no part tag, the server accepts this placeholder.
	uposETag = "etag"
)

type uposBucket struct {
	ChunkSize int64  `json:"chunk_size"`
	Auth      string `json:"auth"`
	Endpoint  string `json:"endpoint"`
	BizID     int64  `json:"biz_id"`
	UposURI   string `json:"upos_uri"`
}

type uposUploadIDResponse struct {
	UploadID string `json:"upload_id"`
}

type uposPart struct {
	PartNumber int    `json:"partNumber"`
	ETag       string `json:"eTag"`
}

type uposCompleteRequest struct {
	Parts []uposPart `json:"parts"`
}

type uposBackend struct {
	api         apiClient
	httpClient  *retryablehttp.Client
	chunkClient *retryablehttp.Client

	bucket    uposBucket
	url       string
	uploadID  string
	fileName  string
	totalSize int64
	numChunks int
}

func (c *Client) negotiateUpos(ctx context.Context, line Line, fileName string, size int64) (*uposBackend, error) {
	var bucket uposBucket
	requestURL, err := c.preupload(ctx, line, uposProfile, fileName, size, &bucket)
	if err != nil {
		return nil, err
	}

	switch {
	case bucket.ChunkSize <= 0:
		return nil, missingField("preupload", requestURL, "chunk_size")
	case bucket.Auth == "":
		return nil, missingField("preupload", requestURL, "auth")
	case bucket.Endpoint == "":
		return nil, missingField("preupload", requestURL, "endpoint")
	case bucket.UposURI == "":
		return nil, missingField("preupload", requestURL, "upos_uri")
	}

	backend := &uposBackend{
		api:         c.api,
		httpClient:  c.apiHTTPClient,
		chunkClient: c.uposHTTPClient,
		bucket:      bucket,
		url:         c.api.resolve(bucket.Endpoint) + "/" + strings.TrimPrefix(bucket.UposURI, uposScheme),
		fileName:    fileName,
		totalSize:   size,
		numChunks:   chunkuploader.ChunkCount(size, bucket.ChunkSize),
	}

	r := apiRequest{
		op:      "fetch upload id",
		method:  http.MethodPost,
		url:     backend.url + "?uploads&output=json",
		headers: map[string]string{uposAuthKey: bucket.Auth},
	}
	var uploadID uposUploadIDResponse
	if err := c.api.sendJSON(ctx, c.apiHTTPClient, r, &uploadID); err != nil {
		return nil, err
	}
	if uploadID.UploadID == "" {
		return nil, missingField(r.op, r.url, "upload_id")
	}
	backend.uploadID = uploadID.UploadID

	c.logger.Debugf("upos session: upload id %s, %d chunks of %d bytes", backend.uploadID, backend.numChunks, bucket.ChunkSize)

	return backend, nil
}

func (b *uposBackend) Kind() BackendKind {
	return Upos
}

func (b *uposBackend) ChunkSize() int64 {
	return b.bucket.ChunkSize
}

func (b *uposBackend) SendChunk(ctx context.Context, chunk chunkuploader.Chunk) (string, error) {
	query := url.Values{}
	query.Set("uploadId", b.uploadID)
	query.Set("chunks", strconv.Itoa(b.numChunks))
	query.Set("total", strconv.FormatInt(b.totalSize, 10))
	query.Set("chunk", strconv.Itoa(chunk.Index))
	query.Set("size", strconv.FormatInt(chunk.Len(), 10))
	query.Set("partNumber", strconv.Itoa(chunk.Index+1))
	query.Set("start", strconv.FormatInt(chunk.Start, 10))
	query.Set("end", strconv.FormatInt(chunk.End, 10))

	r := apiRequest{
		op:     fmt.Sprintf("upload chunk %d", chunk.Index+1),
		method: http.MethodPut,
		url:    b.url + "?" + query.Encode(),
		body:   chunk.Data,
		headers: map[string]string{
			uposAuthKey:    b.bucket.Auth,
			"Content-Type": "application/octet-stream",
		},
	}
	if _, err := b.api.send(ctx, b.chunkClient, r); err != nil {
		return "", err
	}

	return uposETag, nil
}

func (b *uposBackend) Finalize(ctx context.Context, results []chunkuploader.ChunkResult) (UploadedPart, error) {
	parts := make([]uposPart, 0, len(results))
	for _, result := range results {
		parts = append(parts, uposPart{PartNumber: result.Index + 1, ETag: result.Token})
	}
	body, err := json.Marshal(uposCompleteRequest{Parts: parts})
	if err != nil {
		return UploadedPart{}, err
	}

	query := url.Values{}
	query.Set("name", b.fileName)
	query.Set("uploadId", b.uploadID)
	query.Set("biz_id", strconv.FormatInt(b.bucket.BizID, 10))
	query.Set("output", "json")
	query.Set("profile", uposProfile)

	r := apiRequest{
		op:     "complete upload",
		method: http.MethodPost,
		url:    b.url + "?" + query.Encode(),
		body:   body,
		headers: map[string]string{
			uposAuthKey:    b.bucket.Auth,
			"Content-Type": "application/json",
		},
	}
	resp, err := b.api.send(ctx, b.httpClient, r)
	if err != nil {
		return UploadedPart{}, err
	}

	var ok okResponse
	if err := decodeJSON(r, resp.body, &ok); err != nil {
		return UploadedPart{}, err
	}
	if ok.OK != 1 {
		return UploadedPart{}, &ServerRejectionError{Op: r.op, URL: r.url, StatusCode: resp.statusCode, Body: truncateBody(resp.body)}
	}

	return UploadedPart{Filename: fileStem(b.bucket.UposURI)}, nil
}
