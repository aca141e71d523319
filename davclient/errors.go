package davclient

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/openchrono/calbridge/internal/httpclient"
)

// ConnectionError reports that the client is not connected or that the
// server could not be reached.
type ConnectionError struct {
	Message string
	Err     error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("connection error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("connection error: %s", e.Message)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// NotFoundError reports that a calendar or event does not exist, either on
// the server or in the client's cache.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s", e.Resource)
}

// PreconditionError reports a failed ETag precondition: the resource
// changed on the server since it was last fetched.
type PreconditionError struct {
	URL string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed for %s: resource was modified on the server", e.URL)
}

// ProtocolError reports an unexpected HTTP status from the server.
type ProtocolError struct {
	Status int
	Body   string
}

func (e *ProtocolError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("server returned status %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("server returned status %d", e.Status)
}

// ValidationError reports invalid or missing caller input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input: %s", e.Message)
}

// mapStatusError lifts a transport StatusError into the public taxonomy.
// Other errors pass through unchanged.
func mapStatusError(err error, url string) error {
	var statusErr *httpclient.StatusError
	if !errors.As(err, &statusErr) {
		return err
	}
	switch statusErr.Code {
	case http.StatusNotFound, http.StatusGone:
		return &NotFoundError{Resource: url}
	case http.StatusPreconditionFailed:
		return &PreconditionError{URL: url}
	default:
		return &ProtocolError{Status: statusErr.Code, Body: statusErr.Body}
	}
}
