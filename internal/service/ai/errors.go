package ai

import (
	"context"
	"net"
	"net/http"

	"github.com/google/generative-ai-go/genai"
	"github.com/pkg/errors"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind buckets completion failures for logging. Users always see the same message.
type Kind string

const (
	KindNone           Kind = ""
	KindRateLimited    Kind = "rate_limited"
	KindUnauthorized   Kind = "unauthorized"
	KindInvalidRequest Kind = "invalid_request"
	KindBlocked        Kind = "blocked"
	KindMalformed      Kind = "malformed"
	KindTimeout        Kind = "timeout"
	KindCanceled       Kind = "canceled"
	KindNetwork        Kind = "network"
	KindUnavailable    Kind = "unavailable"
	KindUnknown        Kind = "unknown"
)

// Classify inspects err and returns the matching Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, ErrEmptyResponse):
		return KindMalformed
	}

	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return KindBlocked
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return kindFromHTTP(apiErr.Code)
	}

	if st, ok := status.FromError(err); ok {
		if kind := kindFromGRPC(st.Code()); kind != KindUnknown {
			return kind
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}

	return KindUnknown
}

func kindFromHTTP(code int) Kind {
	switch {
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindUnauthorized
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return KindTimeout
	case code >= 500:
		return KindUnavailable
	case code >= 400:
		return KindInvalidRequest
	default:
		return KindUnknown
	}
}

func kindFromGRPC(code codes.Code) Kind {
	switch code {
	case codes.ResourceExhausted:
		return KindRateLimited
	case codes.Unauthenticated, codes.PermissionDenied:
		return KindUnauthorized
	case codes.InvalidArgument, codes.FailedPrecondition, codes.NotFound:
		return KindInvalidRequest
	case codes.DeadlineExceeded:
		return KindTimeout
	case codes.Canceled:
		return KindCanceled
	case codes.Unavailable, codes.Internal:
		return KindUnavailable
	default:
		return KindUnknown
	}
}
