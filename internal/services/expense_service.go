package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"expensewizard/internal/core"
	"expensewizard/internal/log"
	"expensewizard/internal/sheets"
)

// DefaultSyncTimeout bounds how long a submission waits on the external mirror.
const DefaultSyncTimeout = 5 * time.Second

// ErrSyncDisabled is reported in Result.SyncErr when no external mirror is configured.
var ErrSyncDisabled = errors.New("external sync disabled")

type (
	// PrimaryStore is the authoritative record store.
	PrimaryStore interface {
		CreateExpense(ctx context.Context, rec core.ExpenseRecord) (core.StoredExpense, error)
		ListExpenses(ctx context.Context) ([]core.StoredExpense, error)
	}

	// AttachmentResolver turns an uploaded receipt into a stable URL.
	AttachmentResolver interface {
		Resolve(ctx context.Context, att *core.Attachment) (url string, err error)
	}

	// Recorder receives persistence outcomes; metrics.Metrics implements it.
	Recorder interface {
		PrimaryWrite(ok bool)
		ExternalSync(ok bool, kind string, elapsed time.Duration)
	}
)

// Result carries the two independent outcomes of a submission. Only the
// primary outcome decides success; the external one is informational.
type Result struct {
	Expense        core.StoredExpense
	ExternalSyncOK bool
	ExternalID     string
	SyncErr        error
}

// PrimaryID is the identifier assigned by the primary store.
func (r Result) PrimaryID() int64 {
	return r.Expense.ID
}

// Option configures an ExpenseService.
type Option func(*ExpenseService)

func WithAttachmentResolver(r AttachmentResolver) Option {
	return func(s *ExpenseService) { s.resolver = r }
}

func WithRecorder(r Recorder) Option {
	return func(s *ExpenseService) { s.recorder = r }
}

func WithLogger(l *log.Logger) Option {
	return func(s *ExpenseService) { s.logger = l.WithComponent(log.ComponentPersistence) }
}

func WithSyncTimeout(d time.Duration) Option {
	return func(s *ExpenseService) {
		if d > 0 {
			s.syncTimeout = d
		}
	}
}

// ExpenseService writes each record to the primary store, then mirrors it to
// the external service best-effort.
type ExpenseService struct {
	rules       core.Rules
	store       PrimaryStore
	external    sheets.ExternalSync
	resolver    AttachmentResolver
	recorder    Recorder
	logger      *log.Logger
	syncTimeout time.Duration
}

// NewExpenseService wires the coordinator. external may be nil, in which case
// every record is kept locally only.
func NewExpenseService(rules core.Rules, store PrimaryStore, external sheets.ExternalSync, opts ...Option) *ExpenseService {
	s := &ExpenseService{
		rules:       rules,
		store:       store,
		external:    external,
		recorder:    nopRecorder{},
		logger:      log.Discard(),
		syncTimeout: DefaultSyncTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates a raw candidate and persists it. It is the submission
// boundary for clients that do not go through the wizard.
func (s *ExpenseService) Submit(ctx context.Context, c core.Candidate, att *core.Attachment) (Result, error) {
	rec, err := s.rules.ValidateWithAttachment(c, att)
	if err != nil {
		return Result{}, err
	}
	return s.Persist(ctx, rec, att)
}

// Persist stores rec in the primary store and attempts the external mirror.
// It fails only when validation, a required attachment or the primary write
// fails; external failures are logged and reported in the Result.
func (s *ExpenseService) Persist(ctx context.Context, rec core.ExpenseRecord, att *core.Attachment) (Result, error) {
	if err := s.rules.Verify(rec, att); err != nil {
		s.logger.WarnContext(ctx, "Rejected invalid record at persistence boundary",
			log.FieldErrorType, log.ErrorTypeValidation,
			log.FieldError, err)
		return Result{}, err
	}

	if att.HasReceipt() {
		url, err := s.resolveAttachment(ctx, att)
		switch {
		case err == nil:
			rec.ReceiptURL = url
		case s.rules.Policy.ReceiptRequired && rec.ReceiptURL == "":
			return Result{}, fmt.Errorf("%w: %w", core.ErrAttachmentResolution, err)
		default:
			s.logger.WarnContext(ctx, "Receipt upload failed, saving without it",
				log.FieldOperation, log.OpResolve,
				log.FieldError, err)
		}
	}

	stored, err := s.store.CreateExpense(ctx, rec)
	s.recorder.PrimaryWrite(err == nil)
	if err != nil {
		fields := log.NewFields().
			WithExpense(0, rec.User, rec.Category, rec.SubCategory, rec.Amount.String(), rec.Date.String()).
			WithOperation(log.OpCreate).
			WithErrorType(log.ErrorTypeDatabase).
			WithError(err)
		s.logger.ErrorContext(ctx, "Primary store write failed", fields.ToSlice()...)
		return Result{}, fmt.Errorf("%w: %w", core.ErrPersistenceFailure, err)
	}

	s.logger.InfoContext(ctx, "Expense saved to primary store",
		log.FieldExpenseID, stored.ID,
		log.FieldCategory, stored.Category,
		log.FieldAmount, stored.Amount.String())

	res := Result{Expense: stored}
	res.ExternalID, res.SyncErr = s.syncExternal(ctx, stored)
	res.ExternalSyncOK = res.SyncErr == nil
	return res, nil
}

// ListExpenses reads back from the primary store.
func (s *ExpenseService) ListExpenses(ctx context.Context) ([]core.StoredExpense, error) {
	out, err := s.store.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return out, nil
}

func (s *ExpenseService) resolveAttachment(ctx context.Context, att *core.Attachment) (string, error) {
	if s.resolver == nil {
		return "", errors.New("no attachment store configured")
	}
	url, err := s.resolver.Resolve(ctx, att)
	if err != nil {
		return "", err
	}
	return url, nil
}

type syncOutcome struct {
	id  string
	err error
}

// syncExternal runs the mirror write detached from the caller's cancellation
// and abandons it after syncTimeout.
func (s *ExpenseService) syncExternal(ctx context.Context, stored core.StoredExpense) (string, error) {
	if s.external == nil {
		s.logger.WarnContext(ctx, "External sync not configured, record kept in primary store only", log.FieldExpenseID, stored.ID)
		return "", ErrSyncDisabled
	}

	doc := sheets.NewDocument(stored)
	syncCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.syncTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan syncOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- syncOutcome{err: fmt.Errorf("external sync panicked: %v", r)}
			}
		}()
		id, err := s.external.SyncExpense(syncCtx, doc)
		done <- syncOutcome{id: id, err: err}
	}()

	var out syncOutcome
	select {
	case out = <-done:
	case <-syncCtx.Done():
		out.err = sheets.NetworkError(fmt.Errorf("abandoned after %s: %w", s.syncTimeout, syncCtx.Err()))
	}
	elapsed := time.Since(start)

	if out.err != nil {
		kind := sheets.KindOf(out.err)
		s.recorder.ExternalSync(false, string(kind), elapsed)
		fields := log.NewFields().
			WithExpense(stored.ID, stored.User, stored.Category, stored.SubCategory, doc.Amount, doc.Date).
			WithOperation(log.OpSync).
			WithErrorType(errorType(out.err, kind)).
			WithError(out.err)
		s.logger.WarnContext(ctx, "External sync failed, record kept in primary store only", fields.ToSlice()...)
		return "", out.err
	}

	s.recorder.ExternalSync(true, "", elapsed)
	s.logger.InfoContext(ctx, "Expense mirrored to external service",
		log.FieldExpenseID, stored.ID,
		log.FieldExternalID, out.id)
	return out.id, nil
}

func errorType(err error, kind sheets.ErrorKind) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return log.ErrorTypeTimeout
	}
	switch kind {
	case sheets.KindAuth:
		return log.ErrorTypeAuth
	case sheets.KindSchema:
		return log.ErrorTypeSchema
	default:
		return log.ErrorTypeNetwork
	}
}

// Close releases the store and the external adapter when they hold resources.
func (s *ExpenseService) Close() error {
	var errs []error
	if c, ok := s.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.external.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("external sync: %w", err))
		}
	}
	return errors.Join(errs...)
}

type nopRecorder struct{}

func (nopRecorder) PrimaryWrite(bool)                        {}
func (nopRecorder) ExternalSync(bool, string, time.Duration) {}
