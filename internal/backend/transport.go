// Package backend talks to the POS backend API.
//
// Transport is the request/response boundary; Client adapts it to the
// collaborator interfaces of the engine packages.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Transport performs JSON requests against the backend. out may be nil.
type Transport interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Put(ctx context.Context, path string, body, out any) error
}

// Error is a failed backend request. Message and Exception come from the
// response body when the backend sent them.
type Error struct {
	StatusCode int
	Message    string
	Exception  string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("backend: %v", e.Err)
	case e.Message != "":
		return fmt.Sprintf("backend %d: %s", e.StatusCode, e.Message)
	case e.Exception != "":
		return fmt.Sprintf("backend %d: %s", e.StatusCode, e.Exception)
	default:
		return fmt.Sprintf("backend %d", e.StatusCode)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage is the backend's message, else its exception.
func (e *Error) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Exception
}

// errorBody is the backend's error envelope.
type errorBody struct {
	Message   string `json:"message"`
	Error     string `json:"error"`
	Exception string `json:"exception"`
}

// HTTPTransport is a Transport over net/http.
type HTTPTransport struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPTransport creates a transport for baseURL. A zero timeout means
// requests are bounded only by their context.
func NewHTTPTransport(baseURL, token string, timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (t *HTTPTransport) Get(ctx context.Context, path string, out any) error {
	return t.do(ctx, http.MethodGet, path, nil, out)
}

func (t *HTTPTransport) Post(ctx context.Context, path string, body, out any) error {
	return t.do(ctx, http.MethodPost, path, body, out)
}

func (t *HTTPTransport) Put(ctx context.Context, path string, body, out any) error {
	return t.do(ctx, http.MethodPut, path, body, out)
}

func (t *HTTPTransport) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return &Error{Err: fmt.Errorf("encode %s %s: %w", method, path, err)}
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, rd)
	if err != nil {
		return &Error{Err: fmt.Errorf("build %s %s: %w", method, path, err)}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return &Error{Err: fmt.Errorf("%s %s: %w", method, path, err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{StatusCode: resp.StatusCode, Err: fmt.Errorf("read %s %s: %w", method, path, err)}
	}

	if resp.StatusCode >= 400 {
		e := &Error{StatusCode: resp.StatusCode}
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil {
			e.Message = eb.Message
			if e.Message == "" {
				e.Message = eb.Error
			}
			e.Exception = eb.Exception
		}
		return e
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode %s %s: %w", method, path, err)}
	}
	return nil
}
