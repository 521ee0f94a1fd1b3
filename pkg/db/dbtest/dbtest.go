// Package dbtest opens isolated in-memory SQLite databases carrying the
// order and payment schema for repository and service tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/harvestlink-backend/pkg/db"
)

var schema = []string{
	`CREATE TABLE products (
		id TEXT PRIMARY KEY,
		farmer_id TEXT NOT NULL,
		name TEXT NOT NULL,
		unit TEXT NOT NULL,
		price_paise INTEGER NOT NULL,
		current_quantity INTEGER NOT NULL CHECK (current_quantity >= 0),
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME
	)`,
	`CREATE TABLE profiles (
		id TEXT PRIMARY KEY,
		role TEXT NOT NULL,
		name TEXT NOT NULL,
		email TEXT,
		phone TEXT,
		address TEXT,
		upi_id TEXT,
		wallet_balance_paise INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		checkout_id TEXT NOT NULL,
		buyer_id TEXT NOT NULL,
		farmer_id TEXT NOT NULL,
		buyer_snapshot TEXT NOT NULL,
		farmer_snapshot TEXT NOT NULL,
		total_paise INTEGER NOT NULL,
		otp_hash TEXT NOT NULL,
		otp_verified_at DATETIME,
		status TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		payment_status TEXT NOT NULL,
		stock_reserved BOOLEAN NOT NULL DEFAULT 0,
		cancel_reason TEXT,
		cancelled_by TEXT,
		cancelled_at DATETIME,
		shipped_at DATETIME,
		delivered_at DATETIME,
		delivery_sequence INTEGER,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE order_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		name TEXT NOT NULL,
		unit TEXT NOT NULL,
		unit_price_paise INTEGER NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		reviewed BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME
	)`,
	`CREATE TABLE payments (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL UNIQUE,
		buyer_id TEXT NOT NULL,
		farmer_id TEXT NOT NULL,
		amount_paise INTEGER NOT NULL,
		payment_method TEXT NOT NULL,
		channel TEXT NOT NULL,
		status TEXT NOT NULL,
		gateway_order_id TEXT,
		gateway_payment_id TEXT,
		gateway_signature TEXT,
		qr_image_url TEXT,
		proof TEXT,
		verification TEXT,
		failure_reason TEXT,
		credited_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE wallet_ledger_entries (
		id TEXT PRIMARY KEY,
		profile_id TEXT NOT NULL,
		payment_id TEXT NOT NULL,
		order_id TEXT NOT NULL,
		entry_type TEXT NOT NULL,
		amount_paise INTEGER NOT NULL,
		channel TEXT NOT NULL,
		created_at DATETIME,
		UNIQUE (payment_id, entry_type)
	)`,
	`CREATE TABLE notifications (
		id TEXT PRIMARY KEY,
		recipient_id TEXT NOT NULL,
		type TEXT NOT NULL,
		event TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		order_id TEXT,
		read_at DATETIME,
		created_at DATETIME
	)`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		next_attempt_at DATETIME,
		last_error TEXT
	)`,
	`CREATE TABLE outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at DATETIME,
		replayed_at DATETIME,
		created_at DATETIME
	)`,
	`CREATE TABLE payment_webhook_events (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL UNIQUE,
		event_type TEXT NOT NULL,
		payment_id TEXT,
		payload TEXT NOT NULL,
		outcome TEXT NOT NULL,
		received_at DATETIME
	)`,
}

// Open returns a fresh database with the full schema. The pool is pinned to a
// single connection so transactions and plain reads observe the same state.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return conn
}

// Client wraps Open in the shared db.Client type.
func Client(t *testing.T) *db.Client {
	t.Helper()
	return db.FromGorm(Open(t))
}
