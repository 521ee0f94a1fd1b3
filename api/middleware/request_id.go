package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/harvestlink-backend/pkg/logger"
)

const (
	requestIDHeader  = "X-Request-Id"
	cloudTraceHeader = "X-Cloud-Trace-Context"
)

var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{8,128}$`)

// RequestID tags every request with an id that is echoed back to the caller
// and attached to log lines.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := inboundRequestID(r.Header)
			w.Header().Set(requestIDHeader, id)

			ctx := logger.ContextWithRequestID(r.Context(), id)
			if logg != nil {
				ctx = logg.WithRequestID(ctx, id)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// inboundRequestID prefers a well-formed client id, then the trace id the
// Cloud Run front end injects ("TRACE_ID/SPAN_ID;o=1"), then a fresh uuid.
func inboundRequestID(h http.Header) string {
	if id := h.Get(requestIDHeader); requestIDPattern.MatchString(id) {
		return id
	}
	trace, _, _ := strings.Cut(h.Get(cloudTraceHeader), "/")
	if requestIDPattern.MatchString(trace) {
		return trace
	}
	return uuid.NewString()
}
