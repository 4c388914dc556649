package money

import (
	"errors"
	"testing"

	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

func TestParseCents(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    int64
		wantErr error
	}{
		{"whole units", "10", 1000, nil},
		{"two decimals", "12.50", 1250, nil},
		{"one decimal", "0.5", 50, nil},
		{"one cent", "0.01", 1, nil},
		{"surrounding spaces", "  7.25 ", 725, nil},
		{"trailing zeros beyond cents", "3.100", 310, nil},
		{"sub-cent", "1.005", 0, ErrPrecision},
		{"zero", "0", 0, ErrNotPositive},
		{"negative", "-5", 0, ErrNotPositive},
		{"empty", "", 0, ErrInvalid},
		{"garbage", "ten", 0, ErrInvalid},
		{"too large", "1e20", 0, ErrTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCents(tt.in)
			if tt.wantErr != nil {
				check.True(t, errors.Is(err, tt.wantErr))
				return
			}
			check.NoError(t, err)
			check.Equal(t, tt.want, got)
		})
	}
}

func TestFormat(t *testing.T) {
	check.Equal(t, "12.50", Format(1250))
	check.Equal(t, "0.01", Format(1))
	check.Equal(t, "1000.00", Format(100000))
	check.True(t, Decimal(1550).Equal(decimal.RequireFromString("15.5")))
}
