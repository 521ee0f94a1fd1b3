// Package gateway wraps the hosted checkout provider: order creation through
// the Razorpay API plus the HMAC signature checks for callbacks and webhooks.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	razorpay "github.com/razorpay/razorpay-go"

	"github.com/angelmondragon/harvestlink-backend/pkg/config"
)

var ErrNotConfigured = errors.New("payment gateway is not configured")

// OrderRef is the gateway-side order the hosted checkout pays against.
type OrderRef struct {
	ID          string
	AmountPaise int64
	Currency    string
	Receipt     string
}

// OrderCreator opens a gateway order for an amount in paise.
type OrderCreator interface {
	CreateOrder(ctx context.Context, amountPaise int64, receipt string) (OrderRef, error)
}

type ordersAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// Client is the Razorpay-backed OrderCreator.
type Client struct {
	orders   ordersAPI
	keyID    string
	currency string
}

func NewClient(cfg config.GatewayConfig) (*Client, error) {
	if strings.TrimSpace(cfg.KeyID) == "" || strings.TrimSpace(cfg.KeySecret) == "" {
		return nil, ErrNotConfigured
	}
	rp := razorpay.NewClient(cfg.KeyID, cfg.KeySecret)
	return newClient(rp.Order, cfg), nil
}

func newClient(orders ordersAPI, cfg config.GatewayConfig) *Client {
	currency := cfg.Currency
	if currency == "" {
		currency = "INR"
	}
	return &Client{orders: orders, keyID: cfg.KeyID, currency: currency}
}

// KeyID is the public key the hosted checkout is opened with.
func (c *Client) KeyID() string {
	return c.keyID
}

func (c *Client) CreateOrder(ctx context.Context, amountPaise int64, receipt string) (OrderRef, error) {
	if amountPaise <= 0 {
		return OrderRef{}, fmt.Errorf("gateway order amount must be positive")
	}
	if err := ctx.Err(); err != nil {
		return OrderRef{}, err
	}
	body, err := c.orders.Create(map[string]interface{}{
		"amount":   amountPaise,
		"currency": c.currency,
		"receipt":  receipt,
	}, nil)
	if err != nil {
		return OrderRef{}, fmt.Errorf("gateway create order: %w", err)
	}
	id, _ := body["id"].(string)
	if id == "" {
		return OrderRef{}, errors.New("gateway create order: response missing id")
	}
	return OrderRef{ID: id, AmountPaise: amountPaise, Currency: c.currency, Receipt: receipt}, nil
}
