package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	storage "google.golang.org/api/storage/v1"

	"github.com/angelmondragon/harvestlink-backend/pkg/config"
	"github.com/angelmondragon/harvestlink-backend/pkg/gcp"
	"github.com/angelmondragon/harvestlink-backend/pkg/logger"
)

const pingTimeout = 5 * time.Second

var (
	errBucketRequired       = errors.New("gcs bucket name is required")
	errObjectRequired       = errors.New("gcs object name is required")
	errClientNotInitialized = errors.New("gcs client not initialized")
)

// Uploader stores an object and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, object, contentType string, body io.Reader) (string, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Client writes payment artefacts (QR images, proof screenshots) to one bucket.
type Client struct {
	svc           *storage.Service
	bucket        string
	publicBaseURL string
	logg          *logger.Logger
}

func NewClient(ctx context.Context, cfg config.GCSConfig, gcpCfg config.GCPConfig, logg *logger.Logger) (*Client, error) {
	bucket := strings.TrimSpace(cfg.BucketName)
	if bucket == "" {
		return nil, errBucketRequired
	}

	svc, err := storage.NewService(ctx, gcp.ClientOptions(gcpCfg)...)
	if err != nil {
		return nil, fmt.Errorf("creating gcs service: %w", err)
	}

	client := &Client{
		svc:           svc,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		logg:          logg,
	}

	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", bucket), "gcs client initialized")
	}

	return client, nil
}

func (c *Client) Bucket() string {
	if c == nil {
		return ""
	}
	return c.bucket
}

// Ping checks the bucket is reachable with the configured credentials.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.svc == nil {
		return errClientNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if _, err := c.svc.Buckets.Get(c.bucket).Context(ctx).Do(); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("bucket %q does not exist", c.bucket)
		}
		return fmt.Errorf("checking bucket %q: %w", c.bucket, err)
	}
	return nil
}

// Upload writes body under object and returns the public URL for it.
func (c *Client) Upload(ctx context.Context, object, contentType string, body io.Reader) (string, error) {
	if c == nil || c.svc == nil {
		return "", errClientNotInitialized
	}
	name := CleanObjectName(object)
	if name == "" {
		return "", errObjectRequired
	}

	obj := &storage.Object{Name: name, ContentType: contentType}
	call := c.svc.Objects.Insert(c.bucket, obj).
		Media(body, googleapi.ContentType(contentType)).
		Context(ctx)
	stored, err := call.Do()
	if err != nil {
		return "", fmt.Errorf("uploading %q: %w", name, err)
	}

	if c.logg != nil {
		c.logg.Info(c.logg.WithFields(ctx, map[string]any{
			"bucket": c.bucket,
			"object": stored.Name,
			"size":   stored.Size,
		}), "gcs object stored")
	}
	return PublicURL(c.publicBaseURL, c.bucket, stored.Name), nil
}

// CleanObjectName normalises an object path and strips leading slashes.
func CleanObjectName(object string) string {
	trimmed := strings.TrimSpace(object)
	if trimmed == "" {
		return ""
	}
	cleaned := strings.TrimLeft(path.Clean("/"+trimmed), "/")
	if cleaned == "." {
		return ""
	}
	return cleaned
}

// PublicURL joins base, bucket and object into a browser-reachable URL.
func PublicURL(base, bucket, object string) string {
	if base == "" {
		base = "https://storage.googleapis.com"
	}
	return strings.TrimRight(base, "/") + "/" + bucket + "/" + object
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr != nil {
		return apiErr.Code == http.StatusNotFound
	}
	return false
}
