package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/visara/reading-engine/internal/reading"
)

// CreateReading persists a new reading. The caller supplies the id so it can
// double as the billing idempotency key.
func (db *DB) CreateReading(ctx context.Context, r *reading.Reading) error {
	var document []byte
	if r.Document != nil {
		var err error
		document, err = json.Marshal(r.Document)
		if err != nil {
			return fmt.Errorf("failed to marshal reading document: %w", err)
		}
	}

	err := db.pool.QueryRow(ctx,
		`INSERT INTO readings (id, subject_id, account_id, kind, document, text, unlocked, purchased)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at, updated_at`,
		r.ID, r.SubjectID, r.AccountID, r.Kind, document, r.Text, r.Unlocked, r.Purchased,
	).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create reading: %w", err)
	}
	return nil
}

// GetReading retrieves a reading by id. Returns (nil, nil) when absent.
func (db *DB) GetReading(ctx context.Context, id uuid.UUID) (*reading.Reading, error) {
	var r reading.Reading
	var document []byte

	err := db.pool.QueryRow(ctx,
		`SELECT id, subject_id, account_id, kind, document, text, unlocked, purchased, created_at, updated_at
		 FROM readings WHERE id = $1`, id,
	).Scan(&r.ID, &r.SubjectID, &r.AccountID, &r.Kind, &document, &r.Text,
		&r.Unlocked, &r.Purchased, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get reading: %w", err)
	}

	if len(document) > 0 {
		r.Document = &reading.ValidatedDocument{}
		if err := json.Unmarshal(document, r.Document); err != nil {
			return nil, fmt.Errorf("failed to unmarshal reading document: %w", err)
		}
	}
	return &r, nil
}

// DeleteReading removes a reading. Used only by the compensating rollback
// when the credit deduction fails after a billed generation.
func (db *DB) DeleteReading(ctx context.Context, id uuid.UUID) error {
	if _, err := db.pool.Exec(ctx, `DELETE FROM readings WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete reading: %w", err)
	}
	return nil
}

// MarkReadingPurchased flips the purchase flags after a successful deduction.
func (db *DB) MarkReadingPurchased(ctx context.Context, id uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE readings SET purchased = TRUE, unlocked = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark reading purchased: %w", err)
	}
	return nil
}
