package npm

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrAuthConfig means the host, identity or secret is not configured.
	ErrAuthConfig = errors.New("control-plane configuration is incomplete")
	// ErrAuthRejected means the control-plane answered 401.
	ErrAuthRejected = errors.New("authentication failed")
	// ErrEndpointNotFound means the token endpoint answered 404.
	ErrEndpointNotFound = errors.New("control-plane API not found, check host configuration")
	// ErrNoToken means the token endpoint answered 2xx without a token.
	ErrNoToken = errors.New("no token received from control-plane")
	// ErrNotFound means the proxy host does not exist.
	ErrNotFound = errors.New("proxy not found")
	// ErrConflict means a proxy host already serves the domain.
	ErrConflict = errors.New("domain already exists")
)

// ValidationError reports malformed input, either caught locally or
// rejected by the control-plane with a 400.
type ValidationError struct {
	Field   string
	Message string
	Remote  bool
}

func (e *ValidationError) Error() string {
	if e.Remote {
		return "bad request: " + e.Message
	}
	return e.Message
}

// RemoteError is any control-plane failure without a more specific kind.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

type operation int

const (
	opRead operation = iota
	opCreate
	opUpdate
	opDelete
)

// statusError maps a non-2xx control-plane response onto the error taxonomy.
func statusError(op operation, status int, body []byte) error {
	msg := remoteMessage(status, body)
	switch {
	case status == http.StatusBadRequest:
		return &ValidationError{Message: msg, Remote: true}
	case status == http.StatusUnauthorized:
		return ErrAuthRejected
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusConflict && op == opCreate:
		return ErrConflict
	default:
		return &RemoteError{Status: status, Message: msg}
	}
}

// remoteMessage extracts the human message from an error body. The
// control-plane nests it under error.message; some proxies answer with a
// flat message field or plain text.
func remoteMessage(status int, body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error.Message != "" {
			return payload.Error.Message
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) <= 200 {
		return text
	}
	return http.StatusText(status)
}
