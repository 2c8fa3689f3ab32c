package core

import (
	"errors"
	"strings"
)

var (
	// ErrValidation marks field-level validation failures.
	ErrValidation = errors.New("validation failed")
	// ErrPersistenceFailure marks a failed primary store write.
	ErrPersistenceFailure = errors.New("persistence failure")
	// ErrAttachmentResolution marks a receipt that could not be turned into a URL.
	ErrAttachmentResolution = errors.New("attachment resolution failure")

	ErrInvalidAmount  = errors.New("amount must be a positive number")
	ErrRequired       = errors.New("required field")
	ErrUnknownUser    = errors.New("unknown user")
	ErrUnknownOption  = errors.New("not an allowed option")
	ErrMissingReceipt = errors.New("receipt required")
)

// Field names shared by the validator, the wizard and the HTTP layer.
const (
	FieldUser        = "user"
	FieldCategory    = "category"
	FieldSubCategory = "subCategory"
	FieldDescription = "description"
	FieldAmount      = "amount"
	FieldDate        = "date"
	FieldReceiptURL  = "receiptUrl"
	FieldNotes       = "notes"
)

// FieldError is a single failed field check.
type FieldError struct {
	Field string `json:"field"`
	Err   error  `json:"-"`
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e FieldError) Unwrap() error {
	return e.Err
}

// ValidationErrors collects every failed field of a candidate.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, fe := range v {
		parts[i] = fe.Error()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrValidation) true for any ValidationErrors.
func (v ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// Unwrap exposes the individual field errors to errors.Is and errors.As.
func (v ValidationErrors) Unwrap() []error {
	out := make([]error, len(v))
	for i, fe := range v {
		out[i] = fe
	}
	return out
}

// Fields lists the failing field names in check order.
func (v ValidationErrors) Fields() []string {
	out := make([]string, len(v))
	for i, fe := range v {
		out[i] = fe.Field
	}
	return out
}
