// ABOUTME: Classifies transport failures that mean the stream was lost rather than rejected.
// ABOUTME: A LostConnectionError tells the orchestrator the attempt can be retried.

package exec

import (
	"errors"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/2389/coven-link/internal/stream"
)

// LostConnectionError wraps a failure caused by the stream going away.
type LostConnectionError struct {
	Err error
}

func (e *LostConnectionError) Error() string { return "lost connection: " + e.Err.Error() }

func (e *LostConnectionError) Unwrap() error { return e.Err }

// IsLostConnection reports whether err indicates the stream was cut off:
// a missing end-of-stream marker, a write after the stream ended, an HTTP/2
// protocol reset, an unavailable transport, or a closed outbound channel.
func IsLostConnection(err error) bool {
	if err == nil {
		return false
	}
	var lost *LostConnectionError
	if errors.As(err, &lost) {
		return true
	}
	if errors.Is(err, stream.ErrClosed) {
		return true
	}

	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	msg := st.Message()
	switch st.Code() {
	case codes.Internal:
		return strings.Contains(msg, "server closed the stream without sending trailers") ||
			strings.Contains(msg, "missing EndStreamResponse") ||
			strings.Contains(msg, "NGHTTP2_PROTOCOL_ERROR") ||
			strings.Contains(msg, "PROTOCOL_ERROR")
	case codes.Aborted:
		return strings.Contains(msg, "ERR_STREAM_WRITE_AFTER_END") ||
			strings.Contains(msg, "write after end")
	case codes.Unavailable:
		return true
	}
	return false
}

// Classify wraps lost-connection failures in LostConnectionError and returns
// every other error unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var lost *LostConnectionError
	if errors.As(err, &lost) {
		return err
	}
	if IsLostConnection(err) {
		return &LostConnectionError{Err: err}
	}
	return err
}
