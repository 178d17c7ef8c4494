package types

import (
	"database/sql/driver"
	"fmt"
	"time"

	ierr "github.com/petalpost/petalpost/internal/errors"
)

// CycleMonth is the calendar month a subscription invoice bills for.
// Its canonical text form is "YYYY-MM".
type CycleMonth struct {
	Year  int
	Month time.Month
}

const cycleMonthLayout = "2006-01"

// NewCycleMonth returns the cycle month containing t, in t's location
func NewCycleMonth(t time.Time) CycleMonth {
	return CycleMonth{Year: t.Year(), Month: t.Month()}
}

// ParseCycleMonth parses "YYYY-MM"
func ParseCycleMonth(s string) (CycleMonth, error) {
	t, err := time.Parse(cycleMonthLayout, s)
	if err != nil {
		return CycleMonth{}, ierr.WithError(err).
			WithHintf("cycle month %q must be formatted as YYYY-MM", s).
			Mark(ierr.ErrValidation)
	}
	return CycleMonth{Year: t.Year(), Month: t.Month()}, nil
}

func (c CycleMonth) String() string {
	return fmt.Sprintf("%04d-%02d", c.Year, int(c.Month))
}

// IsZero reports whether the month was never set
func (c CycleMonth) IsZero() bool {
	return c.Year == 0 && c.Month == 0
}

// Validate rejects zero and out-of-range months
func (c CycleMonth) Validate() error {
	if c.IsZero() || c.Month < time.January || c.Month > time.December || c.Year < 2000 {
		return ierr.NewError("invalid cycle month").
			WithHintf("cycle month %s is not a valid calendar month", c.String()).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Start returns midnight on the first day of the month in loc
func (c CycleMonth) Start(loc *time.Location) time.Time {
	return time.Date(c.Year, c.Month, 1, 0, 0, 0, 0, loc)
}

// Days returns the number of days in the month
func (c CycleMonth) Days() int {
	return time.Date(c.Year, c.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Next returns the following month, rolling the year over in December
func (c CycleMonth) Next() CycleMonth {
	return c.AddMonths(1)
}

// AddMonths shifts the month by n (n may be negative)
func (c CycleMonth) AddMonths(n int) CycleMonth {
	idx := c.Year*12 + int(c.Month-1) + n
	return CycleMonth{Year: idx / 12, Month: time.Month(idx%12 + 1)}
}

// Before reports whether c is strictly earlier than o
func (c CycleMonth) Before(o CycleMonth) bool {
	return c.index() < o.index()
}

// After reports whether c is strictly later than o
func (c CycleMonth) After(o CycleMonth) bool {
	return c.index() > o.index()
}

// Equal reports whether both months are the same
func (c CycleMonth) Equal(o CycleMonth) bool {
	return c.index() == o.index()
}

// Contains reports whether t falls inside the month, compared in t's location
func (c CycleMonth) Contains(t time.Time) bool {
	return t.Year() == c.Year && t.Month() == c.Month
}

func (c CycleMonth) index() int {
	return c.Year*12 + int(c.Month-1)
}

// MaxCycleMonth returns the later of the two months
func MaxCycleMonth(a, b CycleMonth) CycleMonth {
	if a.After(b) {
		return a
	}
	return b
}

func (c CycleMonth) MarshalText() ([]byte, error) {
	if c.IsZero() {
		return []byte(""), nil
	}
	return []byte(c.String()), nil
}

func (c *CycleMonth) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*c = CycleMonth{}
		return nil
	}
	parsed, err := ParseCycleMonth(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Scan implements the sql.Scanner interface
func (c *CycleMonth) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*c = CycleMonth{}
		return nil
	case string:
		return c.UnmarshalText([]byte(v))
	case []byte:
		return c.UnmarshalText(v)
	default:
		return fmt.Errorf("cannot scan %T into CycleMonth", value)
	}
}

// Value implements the driver.Valuer interface
func (c CycleMonth) Value() (driver.Value, error) {
	if c.IsZero() {
		return nil, nil
	}
	return c.String(), nil
}
