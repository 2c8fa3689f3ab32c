package core

import (
	"fmt"
	"strings"
)

// Taxonomy is the read-only view of the category catalog the rules need.
type Taxonomy interface {
	HasUser(name string) bool
	HasCategory(category string) bool
	HasSubCategory(category, subCategory string) bool
	Miscellaneous() string
}

// DescriptionPolicy decides when the description is shown and when it is required.
type DescriptionPolicy string

const (
	// DescriptionMisc shows the description only for the miscellaneous category, optional.
	DescriptionMisc DescriptionPolicy = "misc"
	// DescriptionMiscRequired shows it only for the miscellaneous category and requires it.
	DescriptionMiscRequired DescriptionPolicy = "misc-required"
	// DescriptionAlways shows it for every category, optional.
	DescriptionAlways DescriptionPolicy = "always"
	// DescriptionNever skips it entirely.
	DescriptionNever DescriptionPolicy = "never"
)

// ParseDescriptionPolicy maps a configuration value to a policy.
func ParseDescriptionPolicy(s string) (DescriptionPolicy, error) {
	switch p := DescriptionPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case DescriptionMisc, DescriptionMiscRequired, DescriptionAlways, DescriptionNever:
		return p, nil
	case "":
		return DescriptionMisc, nil
	default:
		return "", fmt.Errorf("unknown description policy %q", s)
	}
}

// Policy holds the configurable parts of the record rules.
type Policy struct {
	Description     DescriptionPolicy
	ReceiptRequired bool
}

// DefaultPolicy matches the reference flow: description only for misc, receipt optional.
func DefaultPolicy() Policy {
	return Policy{Description: DescriptionMisc}
}

// DescriptionVisible reports whether the description belongs to the flow for this category.
func (p Policy) DescriptionVisible(category, misc string) bool {
	switch p.Description {
	case DescriptionAlways:
		return true
	case DescriptionNever:
		return false
	default:
		return category != "" && category == misc
	}
}

// DescriptionRequired reports whether an empty description is a validation failure.
func (p Policy) DescriptionRequired(category, misc string) bool {
	return p.Description == DescriptionMiscRequired && category != "" && category == misc
}

// Rules is the record schema validator. The per-field checks are the only
// implementation of each rule; the wizard step gates call the same methods.
type Rules struct {
	Taxonomy Taxonomy
	Policy   Policy
}

func NewRules(t Taxonomy, p Policy) Rules {
	return Rules{Taxonomy: t, Policy: p}
}

func (r Rules) CheckUser(c Candidate) error {
	u := strings.TrimSpace(c.User)
	if u == "" {
		return ErrRequired
	}
	if !r.Taxonomy.HasUser(u) {
		return ErrUnknownUser
	}
	return nil
}

func (r Rules) CheckCategory(c Candidate) error {
	if strings.TrimSpace(c.Category) == "" {
		return ErrRequired
	}
	if !r.Taxonomy.HasCategory(c.Category) {
		return ErrUnknownOption
	}
	return nil
}

func (r Rules) CheckSubCategory(c Candidate) error {
	if strings.TrimSpace(c.SubCategory) == "" {
		return ErrRequired
	}
	if !r.Taxonomy.HasSubCategory(c.Category, c.SubCategory) {
		return ErrUnknownOption
	}
	return nil
}

func (r Rules) CheckDescription(c Candidate) error {
	if r.Policy.DescriptionRequired(c.Category, r.Taxonomy.Miscellaneous()) && strings.TrimSpace(c.Description) == "" {
		return ErrRequired
	}
	return nil
}

func (r Rules) CheckAmount(c Candidate) error {
	if strings.TrimSpace(c.Amount) == "" {
		return ErrRequired
	}
	_, err := ParseAmount(c.Amount)
	return err
}

func (r Rules) CheckDate(c Candidate) error {
	if c.Date.IsEmpty() {
		return ErrRequired
	}
	return c.Date.Validate()
}

// CheckReceipt passes when receipts are optional, or when either a URL or a
// pending attachment is present.
func (r Rules) CheckReceipt(c Candidate, pending *Attachment) error {
	if !r.Policy.ReceiptRequired {
		return nil
	}
	if strings.TrimSpace(c.ReceiptURL) == "" && !pending.HasReceipt() {
		return ErrMissingReceipt
	}
	return nil
}

// Validate checks every field of c independently of any step order.
func (r Rules) Validate(c Candidate) (ExpenseRecord, error) {
	return r.ValidateWithAttachment(c, nil)
}

// ValidateWithAttachment is Validate for a candidate whose receipt is still an
// unresolved upload.
func (r Rules) ValidateWithAttachment(c Candidate, pending *Attachment) (ExpenseRecord, error) {
	var errs ValidationErrors
	check := func(field string, err error) {
		if err != nil {
			errs = append(errs, FieldError{Field: field, Err: err})
		}
	}
	check(FieldUser, r.CheckUser(c))
	check(FieldCategory, r.CheckCategory(c))
	check(FieldSubCategory, r.CheckSubCategory(c))
	check(FieldDescription, r.CheckDescription(c))
	check(FieldAmount, r.CheckAmount(c))
	check(FieldDate, r.CheckDate(c))
	check(FieldReceiptURL, r.CheckReceipt(c, pending))
	if len(errs) > 0 {
		return ExpenseRecord{}, errs
	}

	amount, _ := ParseAmount(c.Amount)
	return ExpenseRecord{
		User:        strings.TrimSpace(c.User),
		Category:    c.Category,
		SubCategory: c.SubCategory,
		Description: strings.TrimSpace(c.Description),
		Amount:      amount,
		Date:        DateOf(c.Date.Time),
		ReceiptURL:  strings.TrimSpace(c.ReceiptURL),
		Notes:       strings.TrimSpace(c.Notes),
	}, nil
}

// Verify re-runs the validator over an already assembled record.
func (r Rules) Verify(rec ExpenseRecord, pending *Attachment) error {
	_, err := r.ValidateWithAttachment(rec.Candidate(), pending)
	return err
}
