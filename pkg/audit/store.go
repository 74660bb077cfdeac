// pkg/audit/store.go
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/medsendx/data-gateway/pkg/model"
)

// OperationStore persists sanitization operations to a Postgres
// tracking table, giving compliance reviewers a queryable trail of
// every field change made at the edge. The store is an optional
// collaborator: the pipeline runs fine without one.
type OperationStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Connect opens a Postgres connection for the audit store
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to audit store: %w", err)
	}
	return db, nil
}

// NewOperationStore creates the store and ensures the tracking table
// exists
func NewOperationStore(db *sqlx.DB, logger *zap.Logger) (*OperationStore, error) {
	if db == nil {
		return nil, errors.New("database connection cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	store := &OperationStore{db: db, logger: logger}
	if err := store.setupTrackingTable(); err != nil {
		return nil, fmt.Errorf("failed to setup tracking table: %w", err)
	}

	return store, nil
}

// setupTrackingTable ensures the sanitized_on_edge tracking table exists
func (s *OperationStore) setupTrackingTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS public.sanitized_on_edge (
			id SERIAL PRIMARY KEY,
			record_id TEXT NOT NULL,
			station_id TEXT NOT NULL,
			field_name TEXT NOT NULL,
			original_value TEXT,
			new_value TEXT NOT NULL,
			action TEXT NOT NULL,
			reason TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create tracking table: %w", err)
	}

	s.logger.Info("Ensured sanitized_on_edge table exists")
	return nil
}

// RecordOperations batch inserts sanitization operations into the
// tracking table inside a single transaction.
func (s *OperationStore) RecordOperations(ctx context.Context, operations []model.SanitizationOperation) error {
	if len(operations) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("Failed to rollback transaction",
					zap.Error(rbErr),
					zap.Error(err))
			}
		}
	}()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO public.sanitized_on_edge
		(record_id, station_id, field_name, original_value, new_value, action, reason, applied_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, op := range operations {
		if _, err = stmt.ExecContext(ctx,
			op.RecordID,
			op.StationID,
			op.FieldName,
			toNullableString(op.OriginalValue),
			op.NewValue,
			op.Action,
			op.Reason,
			op.AppliedAt,
		); err != nil {
			return fmt.Errorf("failed to insert sanitization operation: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("Recorded sanitization operations", zap.Int("count", len(operations)))
	return nil
}

// toNullableString converts an original value to a nullable column
// value, preserving NULL for fields that did not previously exist.
func toNullableString(value interface{}) interface{} {
	if value == nil {
		return nil
	}
	return fmt.Sprintf("%v", value)
}
