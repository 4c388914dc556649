// Package money converts between client-facing decimal amounts and the
// integer cents stored by the service.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const centsExp = 2

var (
	ErrInvalid     = errors.New("invalid amount")
	ErrNotPositive = errors.New("amount must be positive")
	ErrPrecision   = errors.New("amount has more than two decimal places")
	ErrTooLarge    = errors.New("amount too large")
)

var hundred = decimal.NewFromInt(100)

// maxCents keeps amounts well inside int64 after any arithmetic callers do.
const maxCents = int64(1) << 53

// ParseCents parses a decimal string such as "12.50" into cents.
func ParseCents(s string) (int64, error) {
	const op = "money.ParseCents"

	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%s:%w", op, ErrInvalid)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, ErrInvalid)
	}

	return FromDecimal(d)
}

// FromDecimal converts d to cents, rejecting sub-cent precision.
func FromDecimal(d decimal.Decimal) (int64, error) {
	const op = "money.FromDecimal"

	if !d.IsPositive() {
		return 0, fmt.Errorf("%s:%w", op, ErrNotPositive)
	}

	if !d.Equal(d.Round(centsExp)) {
		return 0, fmt.Errorf("%s:%w", op, ErrPrecision)
	}

	cents := d.Mul(hundred)
	if cents.GreaterThan(decimal.NewFromInt(maxCents)) {
		return 0, fmt.Errorf("%s:%w", op, ErrTooLarge)
	}

	return cents.IntPart(), nil
}

// Decimal returns cents as a decimal amount.
func Decimal(cents int64) decimal.Decimal {
	return decimal.New(cents, -centsExp)
}

// Format renders cents with exactly two decimal places, e.g. 1250 as "12.50".
func Format(cents int64) string {
	return Decimal(cents).StringFixed(centsExp)
}
