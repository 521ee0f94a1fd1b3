package migrate

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestValidateDirAcceptsShippedMigrations(t *testing.T) {
	if err := ValidateDir("migrations"); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestEmbeddedFilesMatchDisk(t *testing.T) {
	embeddedNames, err := EmbeddedFiles()
	if err != nil {
		t.Fatalf("embedded files: %v", err)
	}
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(embeddedNames) != len(onDisk) {
		t.Fatalf("embedded %d files, disk has %d", len(embeddedNames), len(onDisk))
	}
}

func TestSchemaCarriesMoneyAndStockConstraints(t *testing.T) {
	checks := map[string][]string{
		"*_create_products_profiles.sql": {
			"CHECK (current_quantity >= 0)",
			"wallet_balance_paise bigint NOT NULL DEFAULT 0",
		},
		"*_create_orders.sql": {
			"CREATE TABLE IF NOT EXISTS orders",
			"stock_reserved boolean NOT NULL DEFAULT false",
			"CHECK (quantity > 0)",
		},
		"*_create_payments.sql": {
			"CONSTRAINT ux_payments_order UNIQUE (order_id)",
			"CONSTRAINT ux_wallet_ledger_payment_entry UNIQUE (payment_id, entry_type)",
			"CONSTRAINT ux_payment_webhook_events_event UNIQUE (event_id)",
		},
		"*_guard_payment_status.sql": {
			"BEFORE UPDATE OF status ON payments",
			"(NEW.status = 'refunded' AND OLD.status = 'paid')",
		},
		"*_create_outbox.sql": {
			"CREATE TABLE IF NOT EXISTS outbox_dlq",
			"ux_outbox_events_event_aggregate",
		},
	}

	for pattern, wants := range checks {
		matches, err := filepath.Glob(filepath.Join("migrations", pattern))
		if err != nil || len(matches) != 1 {
			t.Fatalf("expected one migration for %s, got %v (%v)", pattern, matches, err)
		}
		data, err := os.ReadFile(matches[0])
		if err != nil {
			t.Fatalf("read %s: %v", matches[0], err)
		}
		for _, want := range wants {
			if !strings.Contains(string(data), want) {
				t.Errorf("%s missing %q", matches[0], want)
			}
		}
	}
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Refund Columns!")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasSuffix(path, "_add_refund_columns.sql") {
		t.Fatalf("unexpected path %s", path)
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "001_init.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatalf("expected invalid filename error")
	}
}

func TestValidateDirRejectsUnbalancedBlocks(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\nSELECT 1;\n"
	if err := os.WriteFile(filepath.Join(dir, "20260901090000_broken.sql"), []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	err := ValidateDir(dir)
	if err == nil || !strings.Contains(err.Error(), "unbalanced") {
		t.Fatalf("expected unbalanced block error, got %v", err)
	}
}

func TestLatestEmbeddedVersion(t *testing.T) {
	latest, err := latestEmbeddedVersion()
	if err != nil {
		t.Fatalf("latest version: %v", err)
	}
	names, _ := EmbeddedFiles()
	newest := names[len(names)-1]
	if want := strings.SplitN(newest, "_", 2)[0]; want != strconv.FormatInt(latest, 10) {
		t.Fatalf("latest = %d, newest file %s", latest, newest)
	}
}
