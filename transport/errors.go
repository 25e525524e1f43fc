package transport

import (
	"errors"
	"fmt"
)

var (
	ErrRequestTimeout     = errors.New("request timed out")
	ErrClosed             = errors.New("transport closed")
	ErrBatchUnsupported   = errors.New("batch requests are not supported")
	ErrUnsupportedMessage = errors.New("unsupported message type")
	ErrDuplicateID        = errors.New("request id already pending")
)

// ResponseError is a JSON-RPC error returned by the server.
type ResponseError struct {
	Method  string
	Code    int64
	Message string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: server error %d: %s", e.Method, e.Code, e.Message)
}
