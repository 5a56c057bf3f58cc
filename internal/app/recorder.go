package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mask-calibrator/internal/config"
	"mask-calibrator/internal/ledger"
	"mask-calibrator/internal/session"
)

// ledgerRecorder stores session results in the review ledger.
type ledgerRecorder struct {
	store *ledger.Store
}

func (r ledgerRecorder) Record(ctx context.Context, res session.Result) error {
	return r.store.Record(ctx, entryFromResult(res))
}

func entryFromResult(res session.Result) ledger.Entry {
	e := ledger.Entry{
		Image:      res.Image,
		OutputDir:  res.OutputDir,
		Threshold:  float64(res.Threshold),
		Foreground: res.Foreground,
		Status:     string(res.Status),
		ReviewedAt: res.At,
	}
	if res.Err != nil {
		e.Error = res.Err.Error()
	}
	return e
}

// History returns up to limit ledger entries, newest first, without loading the model.
func History(ctx context.Context, cfg *config.Config, limit int) ([]ledger.Entry, error) {
	if cfg.Ledger.Path == "" {
		return nil, errors.New("ledger.path is not set")
	}
	store, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer store.Close()
	return store.List(ctx, limit)
}

// HistoryFields renders an entry for the logger.
func HistoryFields(e ledger.Entry) map[string]interface{} {
	fields := map[string]interface{}{
		"image":       e.Image,
		"status":      e.Status,
		"threshold":   e.Threshold,
		"foreground":  e.Foreground,
		"output":      e.OutputDir,
		"reviewed_at": e.ReviewedAt.Format(time.RFC3339),
	}
	if e.Error != "" {
		fields["error"] = e.Error
	}
	return fields
}
