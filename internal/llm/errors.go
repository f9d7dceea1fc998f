package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrRateLimited marks a rejection by the provider's quota or rate limiter.
var ErrRateLimited = errors.New("llm: rate limited")

// IsRateLimited reports whether err is a quota rejection. Provider SDKs
// surface these as googleapi errors, gRPC statuses or plain text depending on
// the transport, so all three are checked.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return true
	}
	if st, ok := status.FromError(err); ok && st.Code() == codes.ResourceExhausted {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED") ||
		strings.Contains(strings.ToLower(msg), "rate limit")
}

func wrapSendError(err error) error {
	if IsRateLimited(err) && !errors.Is(err, ErrRateLimited) {
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	}
	return err
}
