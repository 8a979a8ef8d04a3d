package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"token-claim-gate/models"

	"github.com/google/uuid"
	"github.com/jinzhu/now"
)

// ObjectStore receives archive uploads.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

type ledgerArchive struct {
	Day     string               `json:"day"`
	Count   int                  `json:"count"`
	Records []models.ClaimRecord `json:"records"`
}

// LedgerArchiver copies one UTC day of ClaimRecords to object storage.
type LedgerArchiver struct {
	Ledger Ledger
	Store  ObjectStore
	Prefix string
	Logger *slog.Logger
}

func NewLedgerArchiver(ledger Ledger, store ObjectStore, logger *slog.Logger) *LedgerArchiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerArchiver{Ledger: ledger, Store: store, Prefix: "ledger", Logger: logger}
}

// ArchiveDay uploads the records of the UTC day containing day and returns the object key.
// Empty days are skipped and return "".
func (a *LedgerArchiver) ArchiveDay(ctx context.Context, day time.Time) (string, error) {
	start := now.With(day.UTC()).BeginningOfDay()
	end := start.AddDate(0, 0, 1)

	records, err := a.Ledger.ListInWindow(ctx, start, end)
	if err != nil {
		return "", fmt.Errorf("list claims for %s: %w", start.Format(time.DateOnly), err)
	}
	if len(records) == 0 {
		a.Logger.Info("no claims to archive", "event", "archive_skipped", "day", start.Format(time.DateOnly))
		return "", nil
	}

	body, err := json.Marshal(ledgerArchive{Day: start.Format(time.DateOnly), Count: len(records), Records: records})
	if err != nil {
		return "", fmt.Errorf("encode archive: %w", err)
	}
	key := fmt.Sprintf("%s/%s/%s.json", a.Prefix, start.Format("2006/01/02"), uuid.NewString())
	if err := a.Store.Put(ctx, key, body, "application/json"); err != nil {
		return "", fmt.Errorf("upload archive %s: %w", key, err)
	}
	a.Logger.Info("ledger archived", "event", "archive_uploaded", "key", key, "count", len(records))
	return key, nil
}
