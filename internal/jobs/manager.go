// Package jobs owns the asynchronous generation lifecycle: idempotent job
// creation, out-of-band dispatch, the status state machine, the staleness
// timeout and the billing compensation around paid readings.
package jobs

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/visara/reading-engine/internal/config"
	"github.com/visara/reading-engine/internal/credits"
	"github.com/visara/reading-engine/internal/db"
	"github.com/visara/reading-engine/internal/generation"
	"github.com/visara/reading-engine/internal/reading"
)

// Store is the persistence surface the manager needs; *db.DB satisfies it.
type Store interface {
	CreateJobIfAbsent(ctx context.Context, job *db.Job) (*db.Job, bool, error)
	GetJob(ctx context.Context, id uuid.UUID) (*db.Job, error)
	MarkJobRunning(ctx context.Context, id uuid.UUID) error
	CompleteJob(ctx context.Context, id, readingID uuid.UUID) error
	FailJob(ctx context.Context, id uuid.UUID, code, message string, data []byte) error
	DeleteJob(ctx context.Context, id uuid.UUID) error
	GetSubject(ctx context.Context, id uuid.UUID) (*reading.Subject, error)
	CreateReading(ctx context.Context, r *reading.Reading) error
	DeleteReading(ctx context.Context, id uuid.UUID) error
	MarkReadingPurchased(ctx context.Context, id uuid.UUID) error
}

// Generator runs the generation pipelines; *generation.Orchestrator
// satisfies it.
type Generator interface {
	GenerateStructured(ctx context.Context, gctx reading.GenerationContext, kind reading.Kind) (*reading.ValidatedDocument, error)
	GenerateLegacy(ctx context.Context, gctx reading.GenerationContext) *generation.LegacyResult
}

// Ledger is the credit surface; *credits.Client satisfies it.
type Ledger interface {
	Check(ctx context.Context, accountID uuid.UUID) (*credits.Balance, error)
	Deduct(ctx context.Context, accountID uuid.UUID, idempotencyKey string) (*credits.Deduction, error)
}

// ResultNotifier sends the reading-ready email; *notify.Notifier satisfies it.
type ResultNotifier interface {
	ReadingReady(ctx context.Context, subject *reading.Subject, kind reading.Kind, readingID string) error
}

// lockoutStore tracks per-subject image failures; *redisc.Client satisfies it.
type lockoutStore interface {
	Incr(ctx context.Context, key string) (int64, error)
	Get(ctx context.Context, key string) (string, error)
}

// Manager coordinates job creation, dispatch and processing.
type Manager struct {
	store      Store
	gen        Generator
	ledger     Ledger
	notifier   ResultNotifier
	lockouts   lockoutStore
	cfg        config.JobsConfig
	dispatcher *Dispatcher
	logger     *zap.Logger
}

// NewManager wires the manager and its dispatcher.
func NewManager(store Store, gen Generator, ledger Ledger, notifier ResultNotifier, lockouts lockoutStore, cfg config.JobsConfig, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		store:    store,
		gen:      gen,
		ledger:   ledger,
		notifier: notifier,
		lockouts: lockouts,
		cfg:      cfg,
		logger:   logger,
	}
	m.dispatcher = NewDispatcher(cfg.Workers, m.dispatchHandler, logger)
	return m
}

// Start launches the dispatcher workers.
func (m *Manager) Start(ctx context.Context) {
	m.dispatcher.Start(ctx)
}

// Wait blocks until the dispatcher workers exit.
func (m *Manager) Wait() error {
	return m.dispatcher.Wait()
}

func (m *Manager) dispatchHandler(ctx context.Context, jobID uuid.UUID, token string) {
	if err := m.ProcessJob(ctx, jobID, token); err != nil {
		m.logger.Error("job processing failed",
			zap.String("job_id", jobID.String()), zap.Error(err))
	}
}

// CreateJob creates (or returns the existing) job for (subject, kind) and
// dispatches newly created jobs. It is idempotent by natural key: a second
// call while the first job is non-terminal returns the same job unchanged.
func (m *Manager) CreateJob(ctx context.Context, subjectID uuid.UUID, kind reading.Kind, accountID *uuid.UUID) (*db.Job, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown reading kind %q", kind)
	}

	subject, err := m.store.GetSubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if subject == nil {
		return nil, ErrSubjectNotFound
	}
	if !subject.EmailConfirmed {
		return nil, ErrSubjectNotConfirmed
	}
	if locked, err := m.subjectLocked(ctx, subjectID); err == nil && locked {
		return nil, ErrSubjectLocked
	}

	if kind.Billed() {
		if accountID == nil {
			return nil, ErrAccountRequired
		}
		balance, err := m.ledger.Check(ctx, *accountID)
		if err != nil {
			return nil, generation.NewError(generation.CodeCreditCheckFailed, "credit check failed").WithCause(err)
		}
		if balance.TotalAvailable < 1 {
			return nil, ErrInsufficientCredits
		}
	}

	token, err := newDispatchToken()
	if err != nil {
		return nil, err
	}
	job := &db.Job{
		ID:        uuid.New(),
		Token:     token,
		SubjectID: subjectID,
		Kind:      kind,
		AccountID: accountID,
	}

	winner, created, err := m.store.CreateJobIfAbsent(ctx, job)
	if err != nil {
		return nil, err
	}
	if created {
		m.logger.Info("job created",
			zap.String("job_id", winner.ID.String()),
			zap.String("subject_id", subjectID.String()),
			zap.String("kind", string(kind)))
		m.dispatcher.Submit(winner.ID, winner.Token)
	}
	return winner, nil
}

// GetJob returns the job, applying the lazy staleness timeout, and deletes
// terminal jobs once their result has been handed to the caller.
func (m *Manager) GetJob(ctx context.Context, id uuid.UUID) (*db.Job, error) {
	job, err := m.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}

	if job.Status == db.JobRunning && m.stale(job) {
		if err := m.failTimeout(ctx, job); err != nil {
			return nil, err
		}
		job.Status = db.JobFailed
		job.ErrorCode = string(generation.CodeTimeout)
		job.ErrorMessage = "job exceeded the processing deadline"
	}

	if job.Terminal() {
		if err := m.store.DeleteJob(ctx, job.ID); err != nil {
			m.logger.Warn("failed to delete consumed job", zap.Error(err))
		}
	}
	return job, nil
}

// ProcessJob executes one job. It is safe to call repeatedly: terminal jobs
// are skipped, and every persisted effect downstream is idempotent.
func (m *Manager) ProcessJob(ctx context.Context, id uuid.UUID, token string) error {
	job, err := m.store.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return ErrJobNotFound
	}
	if subtle.ConstantTimeCompare([]byte(job.Token), []byte(token)) != 1 {
		return ErrTokenMismatch
	}
	if job.Terminal() {
		return nil
	}

	if job.Status == db.JobRunning && m.stale(job) {
		return m.failTimeout(ctx, job)
	}

	if err := m.store.MarkJobRunning(ctx, job.ID); err != nil {
		return err
	}

	subject, err := m.store.GetSubject(ctx, job.SubjectID)
	if err != nil {
		return m.failJob(ctx, job, generation.NewError(generation.CodeGenerationFailed, "subject lookup failed").WithCause(err))
	}
	if subject == nil {
		return m.failJob(ctx, job, generation.NewError(generation.CodeGenerationFailed, "subject no longer exists"))
	}

	result, err := m.runGeneration(ctx, subject, job.Kind, job.AccountID)
	if err != nil {
		return m.failJob(ctx, job, err)
	}

	if err := m.store.CompleteJob(ctx, job.ID, result.ID); err != nil {
		return err
	}
	m.logger.Info("job completed",
		zap.String("job_id", job.ID.String()),
		zap.String("reading_id", result.ID.String()))

	if m.notifier != nil {
		if err := m.notifier.ReadingReady(ctx, subject, job.Kind, result.ID.String()); err != nil {
			m.logger.Warn("result notification failed", zap.Error(err))
		}
	}
	return nil
}

// GenerateTeaserReading runs the teaser pipeline synchronously.
func (m *Manager) GenerateTeaserReading(ctx context.Context, subjectID uuid.UUID) (*reading.Reading, error) {
	return m.generateFor(ctx, subjectID, reading.KindTeaser, nil)
}

// GeneratePaidReading runs the billed pipeline synchronously.
func (m *Manager) GeneratePaidReading(ctx context.Context, subjectID, accountID uuid.UUID) (*reading.Reading, error) {
	return m.generateFor(ctx, subjectID, reading.KindFull, &accountID)
}

// GenerateLegacyReading runs the free-text pipeline synchronously.
func (m *Manager) GenerateLegacyReading(ctx context.Context, subjectID uuid.UUID) (*reading.Reading, error) {
	return m.generateFor(ctx, subjectID, reading.KindLegacy, nil)
}

func (m *Manager) generateFor(ctx context.Context, subjectID uuid.UUID, kind reading.Kind, accountID *uuid.UUID) (*reading.Reading, error) {
	subject, err := m.store.GetSubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if subject == nil {
		return nil, ErrSubjectNotFound
	}
	if !subject.EmailConfirmed {
		return nil, ErrSubjectNotConfirmed
	}
	if locked, err := m.subjectLocked(ctx, subjectID); err == nil && locked {
		return nil, ErrSubjectLocked
	}
	if kind.Billed() {
		if accountID == nil {
			return nil, ErrAccountRequired
		}
		balance, err := m.ledger.Check(ctx, *accountID)
		if err != nil {
			return nil, generation.NewError(generation.CodeCreditCheckFailed, "credit check failed").WithCause(err)
		}
		if balance.TotalAvailable < 1 {
			return nil, ErrInsufficientCredits
		}
	}
	return m.runGeneration(ctx, subject, kind, accountID)
}

// runGeneration executes the pipeline for one subject and persists the
// result, including the billing compensation for paid kinds: the reading and
// the charge either both happen or neither survives.
func (m *Manager) runGeneration(ctx context.Context, subject *reading.Subject, kind reading.Kind, accountID *uuid.UUID) (*reading.Reading, error) {
	gctx := reading.GenerationContext{
		SubjectID:   subject.ID,
		Name:        subject.Name,
		BirthDate:   subject.BirthDate,
		Gender:      subject.Gender,
		QuizAnswers: subject.QuizAnswers,
		ImageURL:    subject.ImageURL,
	}

	result := &reading.Reading{
		ID:        uuid.New(),
		SubjectID: subject.ID,
		AccountID: accountID,
		Kind:      kind,
	}

	switch kind {
	case reading.KindLegacy:
		legacy := m.gen.GenerateLegacy(ctx, gctx)
		result.Text = legacy.Text
		result.Unlocked = true
		if legacy.FallbackUsed {
			m.logger.Warn("legacy reading served from deterministic fallback",
				zap.String("subject_id", subject.ID.String()))
		}
	default:
		doc, err := m.gen.GenerateStructured(ctx, gctx, kind)
		if err != nil {
			m.noteImageFailure(ctx, subject.ID, kind, accountID, err)
			return nil, err
		}
		result.Document = doc
		result.Unlocked = kind == reading.KindFull
	}

	if err := m.store.CreateReading(ctx, result); err != nil {
		return nil, generation.NewError(generation.CodeGenerationFailed, "failed to persist reading").WithCause(err)
	}

	if kind.Billed() {
		deduction, err := m.ledger.Deduct(ctx, *accountID, result.ID.String())
		if err != nil {
			// Compensating rollback: never leave content-without-charge.
			if delErr := m.store.DeleteReading(ctx, result.ID); delErr != nil {
				m.logger.Error("compensating reading delete failed",
					zap.String("reading_id", result.ID.String()), zap.Error(delErr))
			}
			return nil, generation.NewError(generation.CodeCreditDeductFailed, "credit deduction failed").
				WithData("reading_id", result.ID.String()).WithCause(err)
		}
		if deduction.Duplicate {
			m.logger.Info("deduction already applied for reading",
				zap.String("reading_id", result.ID.String()))
		}
		if err := m.store.MarkReadingPurchased(ctx, result.ID); err != nil {
			return nil, err
		}
		result.Purchased = true
		result.Unlocked = true
	}

	return result, nil
}

// noteImageFailure applies the anti-abuse policy around terminal image
// rejections: count them per subject, and once the subject hits the lockout
// threshold on the billed flow, charge the credit even though no reading was
// produced. The stable idempotency key caps the charge at one per lockout.
func (m *Manager) noteImageFailure(ctx context.Context, subjectID uuid.UUID, kind reading.Kind, accountID *uuid.UUID, err error) {
	if generation.CodeOf(err) != generation.CodeImageInvalid || m.lockouts == nil {
		return
	}
	count, incrErr := m.lockouts.Incr(ctx, lockoutKey(subjectID))
	if incrErr != nil {
		m.logger.Warn("failed to count image failure", zap.Error(incrErr))
		return
	}
	m.logger.Info("image attempt failed",
		zap.String("subject_id", subjectID.String()),
		zap.Int64("failures", count),
		zap.Int("limit", m.cfg.ImageAttemptLimit))

	if count >= int64(m.cfg.ImageAttemptLimit) && kind.Billed() && accountID != nil {
		if _, dErr := m.ledger.Deduct(ctx, *accountID, "image-lockout:"+subjectID.String()); dErr != nil {
			m.logger.Warn("lockout charge failed", zap.Error(dErr))
		}
	}
}

func (m *Manager) subjectLocked(ctx context.Context, subjectID uuid.UUID) (bool, error) {
	if m.lockouts == nil {
		return false, nil
	}
	raw, err := m.lockouts.Get(ctx, lockoutKey(subjectID))
	if err != nil || raw == "" {
		return false, err
	}
	count, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, nil
	}
	return count >= int64(m.cfg.ImageAttemptLimit), nil
}

func (m *Manager) stale(job *db.Job) bool {
	return time.Since(job.UpdatedAt) > m.cfg.StaleAfter
}

func (m *Manager) failTimeout(ctx context.Context, job *db.Job) error {
	m.logger.Warn("job stale, timing out",
		zap.String("job_id", job.ID.String()),
		zap.Duration("age", time.Since(job.UpdatedAt)))
	return m.store.FailJob(ctx, job.ID, string(generation.CodeTimeout),
		"job exceeded the processing deadline", nil)
}

func (m *Manager) failJob(ctx context.Context, job *db.Job, err error) error {
	code := generation.CodeOf(err)
	var data []byte
	var gerr *generation.Error
	if errors.As(err, &gerr) && gerr.Data != nil {
		data, _ = json.Marshal(gerr.Data)
	}
	if failErr := m.store.FailJob(ctx, job.ID, string(code), err.Error(), data); failErr != nil {
		return failErr
	}
	m.logger.Warn("job failed",
		zap.String("job_id", job.ID.String()),
		zap.String("code", string(code)),
		zap.Error(err))
	return nil
}

func newDispatchToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate dispatch token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func lockoutKey(subjectID uuid.UUID) string {
	return "lockout:image:" + subjectID.String()
}
