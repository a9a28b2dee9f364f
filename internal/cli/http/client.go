package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "classqa/pkg/errors"

	"github.com/google/uuid"
)

const traceIDHeader = "X-Trace-Id"

// ResponseInfo carries the raw response plus the decoded API envelope.
// Envelope fields stay zero when the body is not a classqa envelope.
type ResponseInfo struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration

	Code    pkgerrors.ErrorCode
	Kind    pkgerrors.Kind
	Message string
	Data    json.RawMessage
	TraceID string
}

// Failed reports whether the service rejected the request.
func (r ResponseInfo) Failed() bool {
	if r.StatusCode >= http.StatusBadRequest {
		return true
	}
	return r.Code != 0 && r.Code != pkgerrors.Success
}

type envelope struct {
	Code    pkgerrors.ErrorCode `json:"code"`
	Kind    pkgerrors.Kind      `json:"kind"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	TraceID string              `json:"trace_id"`
}

// Client sends CLI requests to the qa service.
type Client struct {
	baseURL       string
	http          *http.Client
	tokenProvider func() string
}

func New(baseURL string, timeout time.Duration, tokenProvider func() string) *Client {
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		http:          &http.Client{Timeout: timeout},
		tokenProvider: tokenProvider,
	}
}

func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimRight(baseURL, "/")
}

func (c *Client) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		c.http.Timeout = timeout
	}
}

// Do sends one request. Every request carries a trace id so the service logs
// for a CLI command can be found; a caller supplied X-Trace-Id wins.
func (c *Client) Do(ctx context.Context, method, path string, headers map[string]string, body []byte) (ResponseInfo, error) {
	var info ResponseInfo

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return info, fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(traceIDHeader, uuid.NewString())
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}
	if c.tokenProvider != nil {
		if token := c.tokenProvider(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	info.Duration = time.Since(start)
	if err != nil {
		return info, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	info.StatusCode = resp.StatusCode
	info.Headers = resp.Header
	info.Body, err = io.ReadAll(resp.Body)
	if err != nil {
		return info, fmt.Errorf("read response body failed: %w", err)
	}
	decodeEnvelope(&info)
	if info.TraceID == "" {
		info.TraceID = resp.Header.Get(traceIDHeader)
	}
	return info, nil
}

// decodeEnvelope fills the envelope fields when the body is a JSON object.
func decodeEnvelope(info *ResponseInfo) {
	trimmed := bytes.TrimSpace(info.Body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return
	}
	info.Code = env.Code
	info.Kind = env.Kind
	info.Message = env.Message
	info.Data = env.Data
	info.TraceID = env.TraceID
}
