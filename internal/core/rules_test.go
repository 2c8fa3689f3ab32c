package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const misc = "Misc (please describe)"

type fakeTaxonomy map[string][]string

func (f fakeTaxonomy) HasUser(name string) bool { return name == "Tyler" || name == "Alexa" }

func (f fakeTaxonomy) HasCategory(category string) bool {
	_, ok := f[category]
	return ok
}

func (f fakeTaxonomy) HasSubCategory(category, sub string) bool {
	for _, s := range f[category] {
		if s == sub {
			return true
		}
	}
	return false
}

func (f fakeTaxonomy) Miscellaneous() string { return misc }

var taxonomy = fakeTaxonomy{
	"Home":  {"Utilities", "Supplies"},
	"Yoshi": {"Food", "Vet"},
	misc:    {"Other"},
}

func validCandidate() Candidate {
	return Candidate{
		User:        "Tyler",
		Category:    "Home",
		SubCategory: "Supplies",
		Amount:      "45",
		Date:        NewDate(2024, 5, 1),
	}
}

func TestRulesValidateCanonicalizes(t *testing.T) {
	c := validCandidate()
	c.Notes = "  paid cash  "

	rec, err := NewRules(taxonomy, DefaultPolicy()).Validate(c)
	require.NoError(t, err)
	assert.Equal(t, "45.00", rec.Amount.String())
	assert.Equal(t, "2024-05-01", rec.Date.String())
	assert.Equal(t, "paid cash", rec.Notes)
	assert.Equal(t, "", rec.ReceiptURL)
	assert.Equal(t, "", rec.Description)
}

func TestRulesValidateCollectsEveryField(t *testing.T) {
	_, err := NewRules(taxonomy, DefaultPolicy()).Validate(Candidate{Category: "Home", SubCategory: "Vet", Amount: "-5"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, []string{FieldUser, FieldSubCategory, FieldAmount, FieldDate}, verrs.Fields())
	assert.ErrorIs(t, verrs[2], ErrInvalidAmount)
}

func TestRulesCheckUser(t *testing.T) {
	r := NewRules(taxonomy, DefaultPolicy())
	assert.ErrorIs(t, r.CheckUser(Candidate{User: "  "}), ErrRequired)
	assert.ErrorIs(t, r.CheckUser(Candidate{User: "Mallory"}), ErrUnknownUser)
	assert.NoError(t, r.CheckUser(Candidate{User: "Alexa"}))
}

func TestRulesDescriptionPolicy(t *testing.T) {
	c := validCandidate()
	c.Category, c.SubCategory = misc, "Other"

	_, err := NewRules(taxonomy, DefaultPolicy()).Validate(c)
	assert.NoError(t, err, "description optional by default")

	strict := NewRules(taxonomy, Policy{Description: DescriptionMiscRequired})
	_, err = strict.Validate(c)
	assert.ErrorIs(t, err, ErrValidation)

	c.Description = "parking fine"
	_, err = strict.Validate(c)
	assert.NoError(t, err)

	assert.NoError(t, strict.CheckDescription(validCandidate()), "only misc requires it")
}

func TestPolicyDescriptionVisible(t *testing.T) {
	cases := []struct {
		policy   DescriptionPolicy
		category string
		want     bool
	}{
		{DescriptionMisc, misc, true},
		{DescriptionMisc, "Home", false},
		{DescriptionMisc, "", false},
		{DescriptionMiscRequired, misc, true},
		{DescriptionAlways, "Home", true},
		{DescriptionNever, misc, false},
	}
	for _, tc := range cases {
		p := Policy{Description: tc.policy}
		assert.Equal(t, tc.want, p.DescriptionVisible(tc.category, misc), "%s/%s", tc.policy, tc.category)
	}
}

func TestParseDescriptionPolicy(t *testing.T) {
	p, err := ParseDescriptionPolicy("")
	require.NoError(t, err)
	assert.Equal(t, DescriptionMisc, p)

	p, err = ParseDescriptionPolicy(" Always ")
	require.NoError(t, err)
	assert.Equal(t, DescriptionAlways, p)

	_, err = ParseDescriptionPolicy("sometimes")
	assert.Error(t, err)
}

func TestRulesReceiptRequired(t *testing.T) {
	r := NewRules(taxonomy, Policy{Description: DescriptionMisc, ReceiptRequired: true})
	c := validCandidate()

	_, err := r.Validate(c)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = r.ValidateWithAttachment(c, &Attachment{Filename: "r.jpg", Data: []byte{1}})
	assert.NoError(t, err)

	c.ReceiptURL = "https://example.com/r.jpg"
	_, err = r.Validate(c)
	assert.NoError(t, err)
}

func TestRulesVerify(t *testing.T) {
	r := NewRules(taxonomy, DefaultPolicy())
	rec, err := r.Validate(validCandidate())
	require.NoError(t, err)
	assert.NoError(t, r.Verify(rec, nil))

	rec.SubCategory = "Vet"
	assert.ErrorIs(t, r.Verify(rec, nil), ErrValidation)
}
