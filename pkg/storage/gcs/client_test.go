package gcs

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"google.golang.org/api/googleapi"

	"github.com/angelmondragon/harvestlink-backend/pkg/config"
)

func TestCleanObjectName(t *testing.T) {
	cases := map[string]string{
		"payments/qr/abc.png":       "payments/qr/abc.png",
		"/payments//proofs/x.jpg":   "payments/proofs/x.jpg",
		"../../etc/passwd":          "etc/passwd",
		"  ":                        "",
		"/":                         "",
		"payments/./qr/../qr/1.png": "payments/qr/1.png",
	}
	for in, want := range cases {
		if got := CleanObjectName(in); got != want {
			t.Fatalf("CleanObjectName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPublicURL(t *testing.T) {
	if got := PublicURL("https://cdn.example.com/", "harvest", "payments/qr/a.png"); got != "https://cdn.example.com/harvest/payments/qr/a.png" {
		t.Fatalf("unexpected url %s", got)
	}
	if got := PublicURL("", "harvest", "a.png"); got != "https://storage.googleapis.com/harvest/a.png" {
		t.Fatalf("unexpected default url %s", got)
	}
}

func TestNewClientRequiresBucket(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCSConfig{}, config.GCPConfig{}, nil)
	if !errors.Is(err, errBucketRequired) {
		t.Fatalf("expected bucket error, got %v", err)
	}
}

func TestNilClientGuards(t *testing.T) {
	var c *Client
	if _, err := c.Upload(context.Background(), "a.png", "image/png", strings.NewReader("x")); !errors.Is(err, errClientNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if err := c.Ping(context.Background()); !errors.Is(err, errClientNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
}

func TestIsNotFound(t *testing.T) {
	if !isNotFound(&googleapi.Error{Code: http.StatusNotFound}) {
		t.Fatalf("expected not found")
	}
	if isNotFound(errors.New("boom")) {
		t.Fatalf("plain error is not a not found")
	}
}
