// Package core provides money parsing and handling utilities.
//
// Amounts are exact decimals with two fractional digits. The canonical
// string form ("45.00") is what gets stored, mirrored and compared.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of fractional digits kept in the canonical form.
const AmountScale = 2

// Amount is a strictly positive decimal rounded to AmountScale places.
type Amount struct {
	d decimal.Decimal
}

// ParseAmount converts user input into a canonical Amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half away from zero on the third decimal place. Signs, exponents and values
// that round to zero are rejected with ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("12,34")  -> 12.34
//	ParseAmount("12.345") -> 12.35
//	ParseAmount("0.001")  -> error
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return Amount{}, ErrInvalidAmount
	}
	// Only digits and a single separator; this also rules out "+", "-" and "1e3".
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return Amount{}, ErrInvalidAmount
		}
	}
	if s == "." {
		return Amount{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, ErrInvalidAmount
	}
	d = d.Round(AmountScale)
	if !d.IsPositive() {
		return Amount{}, ErrInvalidAmount
	}
	return Amount{d: d}, nil
}

// MustAmount is ParseAmount for constants in tests and seeds.
func MustAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic("core: invalid amount " + s)
	}
	return a
}

// String returns the canonical decimal string, e.g. "45.00". The zero Amount renders as "".
func (a Amount) String() string {
	if a.d.IsZero() {
		return ""
	}
	return a.d.StringFixed(AmountScale)
}

// IsZero reports whether the amount was never set.
func (a Amount) IsZero() bool {
	return a.d.IsZero()
}

// Equal compares two amounts by value.
func (a Amount) Equal(b Amount) bool {
	return a.d.Equal(b.d)
}

// Float64 returns the value for external services that only take numbers.
// Use String for anything that gets stored or compared.
func (a Amount) Float64() float64 {
	return a.d.InexactFloat64()
}

func (a Amount) Validate() error {
	if !a.d.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}
