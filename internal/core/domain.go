package core

import (
	"errors"
	"strings"
	"time"
)

// DateLayout is the canonical calendar-date form used at persistence and comparison boundaries.
const DateLayout = "2006-01-02"

type (
	// Date is a calendar date without a time component, always UTC midnight.
	Date struct {
		time.Time
	}

	// Candidate is a raw record as entered by a user, before validation.
	Candidate struct {
		User        string
		Category    string
		SubCategory string
		Description string
		Amount      string
		Date        Date
		ReceiptURL  string
		Notes       string
	}

	// ExpenseRecord is a validated record ready for persistence.
	ExpenseRecord struct {
		User        string
		Category    string
		SubCategory string
		Description string
		Amount      Amount
		Date        Date
		ReceiptURL  string
		Notes       string
	}

	// StoredExpense is a record as returned by the primary store.
	StoredExpense struct {
		ID        int64
		CreatedAt time.Time
		ExpenseRecord
	}

	// Attachment is an uploaded receipt file awaiting resolution to a stable URL.
	Attachment struct {
		Filename    string
		ContentType string
		Data        []byte
	}
)

var ErrInvalidDate = errors.New("invalid date")

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return DateOf(t), nil
}

// IsEmpty returns true if the date is zero
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// String returns the canonical YYYY-MM-DD form, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Validate only rejects the zero date; any real calendar day is accepted.
func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// Candidate converts the record back to its raw form so it can be re-validated.
func (r ExpenseRecord) Candidate() Candidate {
	return Candidate{
		User:        r.User,
		Category:    r.Category,
		SubCategory: r.SubCategory,
		Description: r.Description,
		Amount:      r.Amount.String(),
		Date:        r.Date,
		ReceiptURL:  r.ReceiptURL,
		Notes:       r.Notes,
	}
}

// HasReceipt reports whether the attachment carries any content.
func (a *Attachment) HasReceipt() bool {
	return a != nil && len(a.Data) > 0
}
