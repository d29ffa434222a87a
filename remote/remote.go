// Package remote holds the error taxonomy and request plumbing shared by the
// three service clients (registry, payment, agentic).
//
// Every remote call resolves to exactly one of three failure classes:
// TransportError (connectivity/timeout, retry later), ServiceError (remote
// 4xx/5xx with the remote message preserved), or DecodeError (malformed
// response, an inconsistency in the remote contract). Clients never retry;
// that decision belongs to the caller.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultTimeout = 30 * time.Second

// TransportError wraps a network-level failure: the request never produced
// an HTTP response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport error: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServiceError is a non-2xx response with whatever structured message the
// remote side supplied.
type ServiceError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: service error (%d)", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: service error (%d): %s", e.Op, e.StatusCode, e.Message)
}

// NotFound reports whether the remote side answered 404.
func (e *ServiceError) NotFound() bool { return e.StatusCode == http.StatusNotFound }

// DecodeError is a 2xx response whose body did not match the expected shape.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: decode error: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// AsService extracts a ServiceError from an error chain.
func AsService(err error) (*ServiceError, bool) {
	var se *ServiceError
	ok := errors.As(err, &se)
	return se, ok
}

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsDecode reports whether err is (or wraps) a DecodeError.
func IsDecode(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// Request describes one JSON request/response exchange.
type Request struct {
	Method  string
	URL     string
	Query   url.Values
	Headers map[string]string
	Body    any
}

// Do performs the exchange and decodes the response into out (skipped when
// out is nil). Op names the operation in error messages.
func Do(ctx context.Context, client *http.Client, op string, req Request, out any) error {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	var body io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("%s: failed to marshal request body: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}

	target := req.URL
	if len(req.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + req.Query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	httpReq.Header.Set("accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("content-type", "application/json")
	}
	for k, v := range req.Headers {
		if v != "" {
			httpReq.Header.Set(k, v)
		}
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	if resp.StatusCode >= 300 {
		return &ServiceError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    serviceMessage(raw),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &DecodeError{Op: op, Err: err}
	}
	return nil
}

// serviceMessage pulls the most useful message out of an error body. The
// Masumi services use {"error": {"message": ...}} or {"detail": ...};
// anything else is surfaced as trimmed raw text.
func serviceMessage(raw []byte) string {
	var envelope struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if envelope.Error != nil && envelope.Error.Message != "" {
			return envelope.Error.Message
		}
		if envelope.Message != "" {
			return envelope.Message
		}
		if len(envelope.Detail) > 0 {
			return detailMessage(envelope.Detail)
		}
	}
	return truncate(strings.TrimSpace(string(raw)), 500)
}

// detailMessage flattens FastAPI-style validation details, which arrive
// either as a plain string or as a list of {loc, msg} objects.
func detailMessage(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var items []struct {
		Loc []any  `json:"loc"`
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err == nil && len(items) > 0 {
		parts := make([]string, 0, len(items))
		for _, item := range items {
			field := "unknown"
			if len(item.Loc) > 1 {
				field = fmt.Sprintf("%v", item.Loc[1])
			}
			parts = append(parts, fmt.Sprintf("%s: %s", field, item.Msg))
		}
		return strings.Join(parts, "; ")
	}
	return truncate(strings.TrimSpace(string(raw)), 500)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
