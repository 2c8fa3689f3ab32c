package wizard

import "expensewizard/internal/core"

// StepID names a step of the flow.
type StepID string

const (
	StepUser        StepID = "user"
	StepCategory    StepID = "category"
	StepSubCategory StepID = "subCategory"
	StepDescription StepID = "description"
	StepAmount      StepID = "amount"
	StepDate        StepID = "date"
	StepReceipt     StepID = "receipt"
)

// Draft is the in-progress record plus the receipt upload held beside it.
type Draft struct {
	core.Candidate
	Attachment *core.Attachment
}

// FieldCheck is one completion rule of a step.
type FieldCheck struct {
	Field string
	Check func(Draft) error
}

// Step describes one screen of the wizard. Visible and Checks are pure
// functions of the draft; a nil Visible means the step is always shown and
// a step without checks is always complete.
type Step struct {
	ID      StepID
	Title   string
	Fields  []string
	Visible func(Draft) bool
	Checks  []FieldCheck
}

func (s Step) visible(d Draft) bool {
	return s.Visible == nil || s.Visible(d)
}

func (s Step) check(d Draft) core.ValidationErrors {
	var errs core.ValidationErrors
	for _, fc := range s.Checks {
		if err := fc.Check(d); err != nil {
			errs = append(errs, core.FieldError{Field: fc.Field, Err: err})
		}
	}
	return errs
}

// DefaultSteps is the reference seven-step flow. Every completion rule
// delegates to r, so the step gates and the record validator share one
// implementation.
func DefaultSteps(r core.Rules) []Step {
	misc := r.Taxonomy.Miscellaneous()
	receiptTitle := "Upload Receipt (Optional)"
	if r.Policy.ReceiptRequired {
		receiptTitle = "Upload Receipt"
	}
	return []Step{
		{
			ID:     StepUser,
			Title:  "Select User",
			Fields: []string{core.FieldUser},
			Checks: []FieldCheck{{core.FieldUser, onCandidate(r.CheckUser)}},
		},
		{
			ID:     StepCategory,
			Title:  "Select Category",
			Fields: []string{core.FieldCategory},
			Checks: []FieldCheck{{core.FieldCategory, onCandidate(r.CheckCategory)}},
		},
		{
			ID:     StepSubCategory,
			Title:  "Select Sub-Category",
			Fields: []string{core.FieldSubCategory},
			Checks: []FieldCheck{{core.FieldSubCategory, onCandidate(r.CheckSubCategory)}},
		},
		{
			ID:     StepDescription,
			Title:  "Description",
			Fields: []string{core.FieldDescription},
			Visible: func(d Draft) bool {
				return r.Policy.DescriptionVisible(d.Category, misc)
			},
			Checks: []FieldCheck{{core.FieldDescription, onCandidate(r.CheckDescription)}},
		},
		{
			ID:     StepAmount,
			Title:  "Enter Amount",
			Fields: []string{core.FieldAmount},
			Checks: []FieldCheck{{core.FieldAmount, onCandidate(r.CheckAmount)}},
		},
		{
			ID:     StepDate,
			Title:  "Select Date",
			Fields: []string{core.FieldDate},
			Checks: []FieldCheck{{core.FieldDate, onCandidate(r.CheckDate)}},
		},
		{
			ID:     StepReceipt,
			Title:  receiptTitle,
			Fields: []string{core.FieldReceiptURL, core.FieldNotes},
			Checks: []FieldCheck{{core.FieldReceiptURL, func(d Draft) error {
				return r.CheckReceipt(d.Candidate, d.Attachment)
			}}},
		},
	}
}

func onCandidate(check func(core.Candidate) error) func(Draft) error {
	return func(d Draft) error {
		return check(d.Candidate)
	}
}
