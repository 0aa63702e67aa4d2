package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrorKind groups upstream failures by how they map to a gateway status.
type ErrorKind string

const (
	KindStatus      ErrorKind = "status"      // upstream answered non-2xx
	KindTimeout     ErrorKind = "timeout"     // no answer within the deadline
	KindUnreachable ErrorKind = "unreachable" // DNS, dial or connection failure
	KindInternal    ErrorKind = "internal"    // anything else
)

// Error is a failed upstream call.
type Error struct {
	Kind    ErrorKind
	Status  int    // upstream status, KindStatus only
	Message string // upstream "message" when present, else a summary

	// Detail is the upstream error body: its JSON when it parses, else the
	// text as a JSON string.
	Detail json.RawMessage
	Err    error
}

func (e *Error) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("upstream: status %d: %s", e.Status, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("upstream: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("upstream: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus is the status the gateway answers with.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindUnreachable:
		return http.StatusServiceUnavailable
	case KindStatus:
		if e.Status > 0 {
			return e.Status
		}
	}
	return http.StatusInternalServerError
}

// statusError builds the error for a non-2xx answer. A JSON body carrying
// "message" supplies the message.
func statusError(status int, body []byte) *Error {
	e := &Error{Kind: KindStatus, Status: status, Message: http.StatusText(status)}
	body = []byte(strings.TrimSpace(string(body)))
	if len(body) == 0 {
		return e
	}

	if json.Valid(body) {
		e.Detail = json.RawMessage(body)
		var msg struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(body, &msg); err == nil && msg.Message != "" {
			e.Message = msg.Message
		}
		return e
	}

	text, _ := json.Marshal(truncate(string(body), 512))
	e.Detail = text
	return e
}

// transportError classifies a failed round trip.
func transportError(err error) *Error {
	switch {
	case isTimeout(err):
		return &Error{Kind: KindTimeout, Message: "upstream did not answer in time", Err: err}
	case isUnreachable(err):
		return &Error{Kind: KindUnreachable, Message: "upstream unreachable", Err: err}
	default:
		return &Error{Kind: KindInternal, Message: "upstream request failed", Err: err}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// isUnreachable reports connection-level failures: the host could not be
// resolved, refused or dropped the connection.
func isUnreachable(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" || opErr.Op == "read" || opErr.Op == "write" {
			return true
		}
	}

	// Wrapped errors sometimes lose their type.
	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"temporary failure",
		"eof",
	} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// truncate limits string length for logging
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
