package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/sethvargo/go-retry"

	pkgbigquery "github.com/angelmondragon/harvestlink-backend/pkg/bigquery"
)

const (
	defaultInsertAttempts = 3
	defaultInsertBackoff  = 250 * time.Millisecond
	maxInsertBackoff      = 2 * time.Second
)

type inserter interface {
	Insert(ctx context.Context, table string, rows ...bigquery.ValueSaver) error
}

type WriterConfig struct {
	Table    string
	Attempts int
	Backoff  time.Duration
}

// Writer streams settlement rows, retrying transient BigQuery failures with
// capped exponential backoff.
type Writer struct {
	client   inserter
	table    string
	attempts int
	backoff  time.Duration
}

func NewWriter(client inserter, cfg WriterConfig) (*Writer, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	table := strings.TrimSpace(cfg.Table)
	if table == "" {
		return nil, errors.New("settlement table required")
	}
	w := &Writer{client: client, table: table, attempts: cfg.Attempts, backoff: cfg.Backoff}
	if w.attempts <= 0 {
		w.attempts = defaultInsertAttempts
	}
	if w.backoff <= 0 {
		w.backoff = defaultInsertBackoff
	}
	return w, nil
}

func (w *Writer) Write(ctx context.Context, rows ...SettlementEventRow) error {
	if len(rows) == 0 {
		return nil
	}
	savers := make([]bigquery.ValueSaver, len(rows))
	for i := range rows {
		savers[i] = &rows[i]
	}

	policy := retry.WithMaxRetries(uint64(w.attempts-1),
		retry.WithCappedDuration(maxInsertBackoff, retry.NewExponential(w.backoff)))
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		err := w.client.Insert(ctx, w.table, savers...)
		if err != nil && pkgbigquery.Retryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("insert %d rows into %s: %w", len(rows), w.table, err)
	}
	return nil
}
