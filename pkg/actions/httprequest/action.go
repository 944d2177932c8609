// Package httprequest implements the webhook action as an outbound HTTP request.
package httprequest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 1 << 20
	userAgent      = "iverton-workflows/1.0"
)

var (
	ErrURLInvalid    = errors.New("missing or invalid 'url' parameter")
	ErrMethodInvalid = errors.New("unsupported http method")
	ErrHTTPStatus    = errors.New("http request returned an error status")
)

// Request is the decoded form of webhook parameters.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    any
	Timeout time.Duration
}

// ParseRequest reads url, method, headers, body and timeout_seconds from params.
func ParseRequest(params map[string]any) (Request, error) {
	raw, _ := params["url"].(string)

	target, err := url.Parse(raw)
	if raw == "" || err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return Request{}, fmt.Errorf("%w: %q", ErrURLInvalid, raw)
	}

	method, _ := params["method"].(string)
	method = strings.ToUpper(method)

	if method == "" {
		method = http.MethodPost
	}

	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return Request{}, fmt.Errorf("%w: %s", ErrMethodInvalid, method)
	}

	headers := map[string]string{
		"User-Agent": userAgent,
		"Accept":     "application/json",
	}

	if configured, ok := params["headers"].(map[string]any); ok {
		for k, v := range configured {
			if s, ok := v.(string); ok {
				headers[k] = s
			}
		}
	}

	timeout := defaultTimeout

	switch seconds := params["timeout_seconds"].(type) {
	case float64:
		timeout = time.Duration(seconds * float64(time.Second))
	case int:
		timeout = time.Duration(seconds) * time.Second
	}

	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return Request{
		Method:  method,
		URL:     target.String(),
		Headers: headers,
		Body:    params["body"],
		Timeout: timeout,
	}, nil
}

// Action sends webhook requests.
type Action struct {
	client *http.Client
	logger *slog.Logger
}

// NewAction creates a webhook action. A nil client uses http.DefaultClient.
func NewAction(client *http.Client, logger *slog.Logger) *Action {
	if client == nil {
		client = http.DefaultClient
	}

	return &Action{client: client, logger: logger.With("module", "http_request_action")}
}

// Execute sends the request. Statuses of 400 and above are errors so the executor retries them.
func (a *Action) Execute(ctx context.Context, service string, params map[string]any) (map[string]any, error) {
	request, err := ParseRequest(params)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, request.Timeout)
	defer cancel()

	req, err := a.buildRequest(ctx, request)
	if err != nil {
		return nil, err
	}

	a.logger.InfoContext(ctx, "Sending webhook", "method", request.Method, "url", request.URL, "service", service)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			a.logger.ErrorContext(ctx, "failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: %d", ErrHTTPStatus, resp.StatusCode)
	}

	headers := make(map[string]any, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	return map[string]any{
		"status_code": resp.StatusCode,
		"headers":     headers,
		"body":        decodeBody(body),
	}, nil
}

func (a *Action) buildRequest(ctx context.Context, request Request) (*http.Request, error) {
	var body io.Reader

	if request.Body != nil && request.Method != http.MethodGet {
		switch b := request.Body.(type) {
		case string:
			body = strings.NewReader(b)
		default:
			encoded, err := json.Marshal(b)
			if err != nil {
				return nil, fmt.Errorf("failed to encode request body: %w", err)
			}

			body = bytes.NewReader(encoded)
			request.Headers["Content-Type"] = "application/json"
		}
	}

	req, err := http.NewRequestWithContext(ctx, request.Method, request.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, v := range request.Headers {
		req.Header.Set(k, v)
	}

	return req, nil
}

// decodeBody returns parsed JSON when the body is JSON and the raw text otherwise.
func decodeBody(body []byte) any {
	var parsed any
	if err := json.Unmarshal(body, &parsed); err == nil {
		return parsed
	}

	return string(body)
}
