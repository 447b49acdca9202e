// Package period handles the "YYYY-MM" billing periods ledger entries and
// card invoices are bucketed into.
package period

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidPeriod = errors.New("invalid period")

const layout = "2006-01"

type Period struct {
	Year  int
	Month time.Month
}

func Parse(raw string) (Period, error) {
	if len(raw) != len(layout) {
		return Period{}, ErrInvalidPeriod
	}
	t, err := time.Parse(layout, raw)
	if err != nil {
		return Period{}, ErrInvalidPeriod
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

func Valid(raw string) bool {
	_, err := Parse(raw)
	return err == nil
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}
