package repository

import (
	"context"
	"errors"
	"fmt"

	"imagedetect/internal/models"
)

// DefaultRecentLimit caps QueryRecent when the caller passes no usable limit.
const DefaultRecentLimit = 50

// ErrPersistence marks any failure of the backing store.
var ErrPersistence = errors.New("persistence failure")

// DetectionRepository defines the operations on stored detection records.
type DetectionRepository interface {
	// InitializeSchema creates the record table if it does not exist.
	InitializeSchema(ctx context.Context) error

	// Save inserts rec in a transaction and populates rec.ID.
	Save(ctx context.Context, rec *models.DetectionRecord) error

	// QueryRecent returns up to limit records, newest first.
	QueryRecent(ctx context.Context, limit int) ([]models.DetectionRecord, error)

	Close() error
}

// Unavailable returns a repository whose every call fails with
// ErrPersistence wrapping cause. It stands in when the store could not be
// opened so the service stays reachable.
func Unavailable(cause error) DetectionRepository {
	return unavailable{cause: cause}
}

type unavailable struct {
	cause error
}

func (u unavailable) err(op string) error {
	return fmt.Errorf("%w: %s: store unavailable: %w", ErrPersistence, op, u.cause)
}

func (u unavailable) InitializeSchema(context.Context) error {
	return u.err("initialize schema")
}

func (u unavailable) Save(context.Context, *models.DetectionRecord) error {
	return u.err("save")
}

func (u unavailable) QueryRecent(context.Context, int) ([]models.DetectionRecord, error) {
	return nil, u.err("query recent")
}

func (unavailable) Close() error { return nil }

// NormalizeLimit maps non-positive limits to DefaultRecentLimit.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultRecentLimit
	}
	return limit
}
