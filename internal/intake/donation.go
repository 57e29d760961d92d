package intake

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultCategory is used when a donation names no type.
const DefaultCategory = "General"

// Donation is a validated donation event ready to be appended to the ledger.
type Donation struct {
	Donor    string
	Category string
	Amount   float64
}

// InvalidInputError rejects a single donation. It never affects the ledger;
// callers skip the input or ask again.
type InvalidInputError struct {
	Line   int // 0 when the input has no line numbers
	Field  string
	Value  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: invalid %s %q: %s", e.Line, e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// Validate turns raw donor, type and amount text into a Donation.
func Validate(donor, category, amount string) (Donation, error) {
	donor = strings.Join(strings.Fields(donor), " ")
	if donor == "" {
		return Donation{}, &InvalidInputError{Field: "donor", Reason: "must not be empty"}
	}

	value, err := ParseAmount(amount)
	if err != nil {
		return Donation{}, err
	}

	return Donation{
		Donor:    donor,
		Category: NormalizeCategory(category),
		Amount:   value,
	}, nil
}

// NormalizeCategory title-cases a donation type, so "zakat" and "ZAKAT" are
// both recorded as "Zakat". A Caser is stateful, so each call builds its own;
// Discord handlers call this from several goroutines.
func NormalizeCategory(category string) string {
	category = strings.Join(strings.Fields(category), " ")
	if category == "" {
		return DefaultCategory
	}
	return cases.Title(language.Und).String(category)
}

// ParseAmount accepts plain decimals with an optional "$" prefix and
// thousands separators.
func ParseAmount(text string) (float64, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)

	invalid := func(reason string) error {
		return &InvalidInputError{Field: "amount", Value: text, Reason: reason}
	}
	if cleaned == "" {
		return 0, invalid("must not be empty")
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, invalid("not a number")
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, invalid("must be finite")
	}
	if value < 0 {
		return 0, invalid("must not be negative")
	}
	return value, nil
}
