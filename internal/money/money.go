package money

import (
	"errors"
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrOutOfRange    = errors.New("amount out of range")
)

var maxMajor = decimal.NewFromInt(1 << 53).Div(decimal.NewFromInt(100))

// ParseMinor converts a display string such as "-1234.565" into cents,
// rounding half away from zero at two decimal places.
func ParseMinor(input string) (int64, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return 0, ErrInvalidAmount
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if value.Abs().GreaterThan(maxMajor) {
		return 0, ErrOutOfRange
	}
	return value.Round(2).Shift(2).IntPart(), nil
}

func FormatMinor(value int64) string {
	return decimal.New(value, -2).StringFixed(2)
}

// Display formats cents for humans using the currency's symbol and separators.
func Display(value int64, currency string) string {
	return gomoney.New(value, currency).Display()
}

// Abs is the magnitude of a cent amount.
func Abs(value int64) int64 {
	if value < 0 {
		return -value
	}
	return value
}

// SplitEven divides total into parts equal shares, each rounded half away
// from zero to the cent. The rounding remainder is not redistributed.
func SplitEven(total int64, parts int) int64 {
	if parts <= 0 {
		return 0
	}
	return decimal.NewFromInt(total).Div(decimal.NewFromInt(int64(parts))).Round(0).IntPart()
}
