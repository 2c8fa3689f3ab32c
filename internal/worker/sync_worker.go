// Package worker mirrors queued expense documents into the external store.
package worker

import (
	"context"
	"fmt"
	"time"

	"expensewizard/internal/amqp"
	"expensewizard/internal/cache"
	"expensewizard/internal/log"
	"expensewizard/internal/sheets"
)

// Recorder receives mirror outcomes; metrics.Metrics implements it.
type Recorder interface {
	ExternalSync(ok bool, kind string, elapsed time.Duration)
}

// SyncWorker writes each queued Document to the external store once.
type SyncWorker struct {
	target   sheets.ExternalSync
	seen     cache.Cache[string]
	recorder Recorder
	timeout  time.Duration
	logger   *log.Logger
}

// NewSyncWorker builds a worker. seen remembers recently mirrored message
// ids so broker redeliveries do not append duplicate rows.
func NewSyncWorker(target sheets.ExternalSync, seen cache.Cache[string], recorder Recorder, timeout time.Duration, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &SyncWorker{
		target:   target,
		seen:     seen,
		recorder: recorder,
		timeout:  timeout,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleSyncMessage mirrors one message. It is an amqp.Handler.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.ExpenseSyncMessage) error {
	if w.seen != nil && msg.MessageID != "" {
		if ref, ok := w.seen.Get(msg.MessageID); ok {
			w.logger.InfoContext(ctx, "Skipping already mirrored message",
				log.FieldExpenseID, msg.Document.ID,
				log.FieldExternalID, ref)
			return nil
		}
	}

	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	start := time.Now()
	ref, err := w.target.SyncExpense(ctx, msg.Document)
	elapsed := time.Since(start)
	if err != nil {
		if w.recorder != nil {
			w.recorder.ExternalSync(false, string(sheets.KindOf(err)), elapsed)
		}
		return fmt.Errorf("mirror expense %d: %w", msg.Document.ID, err)
	}
	if w.recorder != nil {
		w.recorder.ExternalSync(true, "", elapsed)
	}
	if w.seen != nil && msg.MessageID != "" {
		w.seen.Set(msg.MessageID, ref)
	}

	w.logger.InfoContext(ctx, "Expense mirrored",
		log.FieldExpenseID, msg.Document.ID,
		log.FieldExternalID, ref,
		log.FieldDuration, elapsed.Milliseconds())
	return nil
}
