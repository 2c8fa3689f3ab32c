package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"expensewizard/internal/core"
)

const maxJSONBody = 64 << 10

// expenseRequest is the body of POST /api/expenses. Amount is a string so
// "12,50" and "12.50" both reach the validator untouched.
type expenseRequest struct {
	User        string `json:"user"`
	Category    string `json:"category"`
	SubCategory string `json:"subCategory"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Date        string `json:"date"`
	ReceiptURL  string `json:"receiptUrl"`
	Notes       string `json:"notes"`
}

// Candidate converts the request to a raw record. An omitted date means
// today; a malformed one is reported as a field error on date.
func (req expenseRequest) Candidate(today core.Date) (core.Candidate, error) {
	c := core.Candidate{
		User:        req.User,
		Category:    req.Category,
		SubCategory: req.SubCategory,
		Description: req.Description,
		Amount:      req.Amount,
		ReceiptURL:  req.ReceiptURL,
		Notes:       req.Notes,
	}
	if strings.TrimSpace(req.Date) == "" {
		c.Date = today
		return c, nil
	}
	d, err := core.ParseDate(strings.TrimSpace(req.Date))
	if err != nil {
		return c, core.ValidationErrors{{Field: core.FieldDate, Err: err}}
	}
	c.Date = d
	return c, nil
}

type fieldRequest struct {
	Value string `json:"value"`
}

// errBadRequest marks bodies that could not be decoded at all.
var errBadRequest = errors.New("malformed request body")

// decodeJSON reads a single JSON object, rejecting unknown fields and
// trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: unexpected data after JSON object", errBadRequest)
	}
	return nil
}

// pathParam returns an unescaped chi URL parameter. chi matches on the raw
// path when one is set, so "Food%20%26%20Beverage" arrives still encoded.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}
