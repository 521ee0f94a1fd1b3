package bigquery

import (
	"errors"
	"net/http"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Retryable reports whether a failed insert may succeed when sent again. A
// partial failure counts only if every row failed for a transient reason.
func Retryable(err error) bool {
	causes := flatten(err)
	if len(causes) == 0 {
		return false
	}
	for _, cause := range causes {
		if !transient(cause) {
			return false
		}
	}
	return true
}

func flatten(err error) []error {
	if err == nil {
		return nil
	}
	var put bigquery.PutMultiError
	if errors.As(err, &put) {
		var out []error
		for _, row := range put {
			out = append(out, flatten(row.Errors)...)
		}
		return out
	}
	var multi bigquery.MultiError
	if errors.As(err, &multi) {
		var out []error
		for _, inner := range multi {
			out = append(out, flatten(inner)...)
		}
		return out
	}
	return []error{err}
}

func transient(err error) bool {
	var rowErr *bigquery.Error
	if errors.As(err, &rowErr) {
		switch rowErr.Reason {
		// "stopped" rows were fine but rode along with a failed one.
		case "backendError", "internalError", "rateLimitExceeded", "timeout", "stopped":
			return true
		}
		return false
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusRequestTimeout,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		switch st.Code() {
		case codes.Aborted, codes.DeadlineExceeded, codes.Internal, codes.ResourceExhausted, codes.Unavailable:
			return true
		}
	}
	return false
}
