package sheets

import (
	"context"
	"errors"
	"strconv"
	"time"

	"expensewizard/internal/core"
)

// Ports for outbound adapters.
type (
	// ExternalSync mirrors a stored expense into a third-party document store.
	ExternalSync interface {
		SyncExpense(ctx context.Context, doc Document) (externalID string, err error)
	}

	// Document is the external representation of a stored expense. Dates are
	// ISO calendar dates, amounts canonical decimal strings and optional text
	// fields empty strings.
	Document struct {
		ID          int64  `json:"id"`
		User        string `json:"user"`
		Category    string `json:"category"`
		SubCategory string `json:"subCategory"`
		Description string `json:"description"`
		Amount      string `json:"amount"`
		Date        string `json:"date"`
		ReceiptURL  string `json:"receiptUrl"`
		Notes       string `json:"notes"`
		CreatedAt   string `json:"createdAt"`
	}
)

// NewDocument converts a primary-store record to the external format.
func NewDocument(e core.StoredExpense) Document {
	return Document{
		ID:          e.ID,
		User:        e.User,
		Category:    e.Category,
		SubCategory: e.SubCategory,
		Description: e.Description,
		Amount:      e.Amount.String(),
		Date:        e.Date.Format(core.DateLayout),
		ReceiptURL:  e.ReceiptURL,
		Notes:       e.Notes,
		CreatedAt:   e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Ref is a short identifier for logs.
func (d Document) Ref() string {
	return "expense:" + strconv.FormatInt(d.ID, 10)
}

// ErrorKind classifies external sync failures.
type ErrorKind string

const (
	KindAuth    ErrorKind = "auth"
	KindSchema  ErrorKind = "schema"
	KindNetwork ErrorKind = "network"
)

// SyncError is a failed external write.
type SyncError struct {
	Kind ErrorKind
	Err  error
}

func (e *SyncError) Error() string {
	return string(e.Kind) + " error: " + e.Err.Error()
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

func AuthError(err error) error    { return &SyncError{Kind: KindAuth, Err: err} }
func SchemaError(err error) error  { return &SyncError{Kind: KindSchema, Err: err} }
func NetworkError(err error) error { return &SyncError{Kind: KindNetwork, Err: err} }

// KindOf returns the kind of a sync failure. Unclassified errors, timeouts
// included, count as network errors.
func KindOf(err error) ErrorKind {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindNetwork
}
