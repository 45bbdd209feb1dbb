package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/kode4food/stepflow/pkg/api"
	"github.com/kode4food/stepflow/pkg/log"
)

type (
	// Client performs outbound HTTP calls on behalf of step handlers
	Client interface {
		Call(context.Context, *Request) (*Response, error)
	}

	// Request describes a single outbound call. A nil Body sends no
	// payload; anything else is encoded as JSON
	Request struct {
		Body    any
		Headers map[string]string
		Method  string
		URL     string
		StepID  api.StepID
	}

	// Response is the raw result of an outbound call
	Response struct {
		Body       []byte
		StatusCode int
	}

	HTTPClient struct {
		httpClient *http.Client
		timeout    time.Duration
	}
)

const userAgent = "Stepflow-Engine/1.0"

var (
	ErrHTTPError = errors.New("endpoint returned HTTP error")
	ErrNoURL     = errors.New("request has no URL")
)

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// Call sends the request and returns the response. Any status outside
// the 2xx range is reported as ErrHTTPError
func (c *HTTPClient) Call(
	ctx context.Context, req *Request,
) (*Response, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoURL, req.StepID)
	}

	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			slog.Error("Failed to marshal request body",
				log.StepID(req.StepID),
				log.Error(err))
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		slog.Error("Failed to create HTTP request",
			log.StepID(req.StepID),
			log.Error(err))
		return nil, err
	}

	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	dur := time.Since(start)

	if err != nil {
		slog.Error("HTTP request failed",
			log.StepID(req.StepID),
			slog.Duration("duration", dur),
			log.Error(err))
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Error("Failed to read response body",
			log.StepID(req.StepID),
			log.Error(err))
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Error("HTTP error",
			log.StepID(req.StepID),
			slog.Int("status_code", resp.StatusCode),
			slog.String("response_body", string(respBody)))
		return nil, fmt.Errorf("%w: HTTP %d", ErrHTTPError, resp.StatusCode)
	}

	slog.Debug("HTTP request completed",
		log.StepID(req.StepID),
		slog.Int("status_code", resp.StatusCode),
		slog.Duration("duration", dur))

	return &Response{
		Body:       respBody,
		StatusCode: resp.StatusCode,
	}, nil
}

// Value decodes the body as JSON when possible and falls back to the
// raw text otherwise. An empty body yields nil
func (r *Response) Value() any {
	if len(r.Body) == 0 {
		return nil
	}
	if !gjson.ValidBytes(r.Body) {
		return string(r.Body)
	}
	return gjson.ParseBytes(r.Body).Value()
}

// Get resolves a gjson path against the body
func (r *Response) Get(path string) gjson.Result {
	return gjson.GetBytes(r.Body, path)
}
