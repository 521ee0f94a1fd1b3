package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/harvestlink-backend/pkg/logger"
)

func TestRequestIDSources(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{name: "client id", headers: map[string]string{requestIDHeader: "client-req-0001"}, want: "client-req-0001"},
		{name: "cloud trace", headers: map[string]string{cloudTraceHeader: "105445aa7843bc8bf206b12000100000/1;o=1"}, want: "105445aa7843bc8bf206b12000100000"},
		{name: "client wins over trace", headers: map[string]string{requestIDHeader: "client-req-0002", cloudTraceHeader: "abcdef0123456789/1"}, want: "client-req-0002"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var seen string
			handler := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = logger.RequestIDFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)

			if seen != tc.want {
				t.Fatalf("context id = %q, want %q", seen, tc.want)
			}
			if got := resp.Header().Get(requestIDHeader); got != tc.want {
				t.Fatalf("response header = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRequestIDReplacesMalformedIDs(t *testing.T) {
	handler := RequestID(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "bad id\nwith newline")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if _, err := uuid.Parse(resp.Header().Get(requestIDHeader)); err != nil {
		t.Fatalf("expected generated uuid, got %q", resp.Header().Get(requestIDHeader))
	}
}
