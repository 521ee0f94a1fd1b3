// Package messaging posts system messages into the buyer/farmer chat service.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/harvestlink-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/harvestlink-backend/pkg/errors"
)

const systemMessagePath = "/api/v1/messages/system"

// SystemMessage is a chat line sent on behalf of the platform.
type SystemMessage struct {
	OrderID     uuid.UUID `json:"orderId"`
	SenderID    uuid.UUID `json:"senderId"`
	RecipientID uuid.UUID `json:"recipientId"`
	Kind        string    `json:"kind"`
	Body        string    `json:"body"`
}

// Sender delivers a system message.
type Sender interface {
	SendSystemMessage(ctx context.Context, msg SystemMessage) error
}

type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

func NewClient(cfg config.MessagingConfig) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("messaging base url is required")
	}
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: base,
		apiKey:  cfg.APIKey,
	}, nil
}

// SendSystemMessage returns a retryable dependency error for 5xx and 429,
// and a non-retryable one for other rejections.
func (c *Client) SendSystemMessage(ctx context.Context, msg SystemMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode system message")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+systemMessagePath, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build messaging request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", msg.OrderID.String()+":"+msg.Kind+":"+msg.RecipientID.String())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "messaging service unreachable")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	cause := fmt.Errorf("messaging service returned %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, cause, "messaging service unavailable")
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, cause, "messaging service rejected message")
}
