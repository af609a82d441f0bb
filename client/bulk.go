package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"auto_release_notes/store"
)

// GenerateAll runs one generation per item, strictly sequentially with a
// fixed delay between items. The serialization is deliberate: no
// concurrent fan-out against the upstream completion API. Items that
// already carry finalized notes are skipped. Per-item failures do not stop
// the pass; they are joined into the returned error.
func GenerateAll(ctx context.Context, baseURL string, hc *http.Client, records *store.Store, items []store.Item, delay time.Duration, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}
	var errs []error
	first := true
	for _, it := range items {
		if it.Finalized() {
			logger.Printf("[bulk] #%s already has notes, skipping", it.ID)
			continue
		}
		if !first && delay > 0 {
			select {
			case <-ctx.Done():
				errs = append(errs, ctx.Err())
				return errors.Join(errs...)
			case <-time.After(delay):
			}
		}
		first = false

		ctrl := NewController(baseURL, hc, records, it)
		if _, err := ctrl.Generate(ctx); err != nil {
			logger.Printf("[bulk] #%s failed: %v", it.ID, err)
			errs = append(errs, fmt.Errorf("#%s: %w", it.ID, err))
			continue
		}
		logger.Printf("[bulk] #%s done", it.ID)
	}
	return errors.Join(errs...)
}
