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

// GetSubject looks up a subject by id. The subject table is written by the
// external capture flow; this service only reads it. Returns (nil, nil) when
// absent.
func (db *DB) GetSubject(ctx context.Context, id uuid.UUID) (*reading.Subject, error) {
	var s reading.Subject
	var quizAnswers []byte

	err := db.pool.QueryRow(ctx,
		`SELECT id, name, email, email_confirmed, COALESCE(birth_date, ''),
		        COALESCE(gender, ''), quiz_answers, image_url
		 FROM subjects WHERE id = $1`, id,
	).Scan(&s.ID, &s.Name, &s.Email, &s.EmailConfirmed, &s.BirthDate,
		&s.Gender, &quizAnswers, &s.ImageURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get subject: %w", err)
	}

	if len(quizAnswers) > 0 {
		if err := json.Unmarshal(quizAnswers, &s.QuizAnswers); err != nil {
			return nil, fmt.Errorf("failed to unmarshal quiz answers: %w", err)
		}
	}
	return &s, nil
}
