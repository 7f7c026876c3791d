// Package provenance records where cached artifacts came from. Every
// successful install appends one record to a sqlite ledger kept next to the
// cache, so a dataset used in an analysis can be traced back to the exact
// URL, digest and fetch time that produced it.
package provenance

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Record is one provenance entry for an installed artifact
type Record struct {
	ID uint `gorm:"primaryKey"`

	// AttemptID is the unique id assigned to the fetch that installed the artifact
	AttemptID string `gorm:"index"`

	SourceID string `gorm:"index"`
	Version  string
	Region   string

	// Digest is the canonical digest of the installed artifact
	Digest string

	// URL is the concrete endpoint the artifact was fetched from
	URL string

	SizeBytes int64

	// Attempts is the number of transport attempts the fetch needed
	Attempts int

	FetchedAt time.Time
	Duration  time.Duration
}

// Ledger is a sqlite-backed provenance store
type Ledger struct {
	db *gorm.DB
}

// Open opens (creating if necessary) the ledger database at the given path
func Open(path string) (*Ledger, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open provenance ledger: %w", err)
	}

	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("failed to migrate provenance ledger: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Append adds a record to the ledger
func (l *Ledger) Append(ctx context.Context, rec *Record) error {
	if err := l.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to append provenance record: %w", err)
	}
	return nil
}

// BySource returns all records for a source, newest first
func (l *Ledger) BySource(ctx context.Context, sourceID string) ([]Record, error) {
	var records []Record
	err := l.db.WithContext(ctx).
		Where("source_id = ?", sourceID).
		Order("fetched_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query provenance records: %w", err)
	}
	return records, nil
}

// Close releases the underlying database handle
func (l *Ledger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
