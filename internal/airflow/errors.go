package airflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

// ErrorKind classifies a failed API call.
type ErrorKind int

const (
	KindNetwork ErrorKind = iota
	KindUnauthorized
	KindNotFound
	KindServerError
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network error"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not found"
	case KindServerError:
		return "server error"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown error"
	}
}

// APIError is the error type returned by every Client method.
type APIError struct {
	Kind ErrorKind
	// Status is the HTTP status code for KindServerError, KindNotFound and
	// KindUnauthorized. Zero otherwise.
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (%d)", e.Status)
	}
	switch {
	case e.Message != "":
		b.WriteString(": ")
		b.WriteString(e.Message)
	case e.Err != nil:
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *APIError) Unwrap() error { return e.Err }

// IsKind reports whether err is an APIError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// classifyTransportError turns an error from the HTTP round trip into an
// APIError.
func classifyTransportError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &APIError{Kind: KindTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &APIError{Kind: KindTimeout, Err: err}
	}
	return &APIError{Kind: KindNetwork, Err: err}
}

// problem is the RFC 7807 body Airflow returns on errors.
type problem struct {
	Title  string `json:"title"`
	Detail any    `json:"detail"`
}

// errorFromResponse builds an APIError from a non-2xx response and reads at
// most a small part of its body for the message.
func errorFromResponse(resp *http.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		apiErr.Kind = KindUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		apiErr.Kind = KindNotFound
	case resp.StatusCode == http.StatusGatewayTimeout || resp.StatusCode == http.StatusRequestTimeout:
		apiErr.Kind = KindTimeout
	default:
		apiErr.Kind = KindServerError
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var p problem
	if json.Unmarshal(body, &p) == nil && (p.Title != "" || p.Detail != nil) {
		switch d := p.Detail.(type) {
		case string:
			if d != "" && p.Title != "" {
				apiErr.Message = p.Title + ": " + d
			} else {
				apiErr.Message = p.Title + d
			}
		case nil:
			apiErr.Message = p.Title
		default:
			raw, _ := json.Marshal(d)
			apiErr.Message = strings.TrimSpace(p.Title + " " + string(raw))
		}
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
