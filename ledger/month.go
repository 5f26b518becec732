package ledger

import (
	"fmt"
	"time"
)

// =============================================================================
// MONTH - Structured calendar month key with a total order
// =============================================================================

// Month identifies a calendar month. It is the key for every per-month
// aggregate in the engine (quotas, consumption, adjustments, balances).
//
// Using a structured value instead of "YYYY-MM" strings removes a whole class
// of formatting bugs (missing zero padding, lexicographic-vs-chronological
// ordering) and gives us cheap arithmetic via Index().
type Month struct {
	Year  int
	Month time.Month
}

// NewMonth creates a Month from a year and month number.
func NewMonth(year int, month time.Month) Month {
	return Month{Year: year, Month: month}
}

// MonthOf returns the calendar month containing t.
//
// Regularization dates are mapped to months in UTC, always. The upstream
// system matched either UTC or local month with a fallback OR, which could
// double-match near month boundaries; here UTC is the single canonical zone.
func MonthOf(t time.Time) Month {
	u := t.UTC()
	return Month{Year: u.Year(), Month: u.Month()}
}

// Index returns the number of months since year 0. Two months compare the
// way their indexes compare, and MonthsBetween is a plain subtraction.
func (m Month) Index() int { return m.Year*12 + int(m.Month) - 1 }

// Comparison
func (m Month) Before(other Month) bool { return m.Index() < other.Index() }
func (m Month) After(other Month) bool  { return m.Index() > other.Index() }
func (m Month) Equal(other Month) bool  { return m.Index() == other.Index() }

// Arithmetic
func (m Month) Next() Month { return m.Add(1) }

func (m Month) Add(n int) Month {
	idx := m.Index() + n
	return Month{Year: idx / 12, Month: time.Month(idx%12 + 1)}
}

// MonthsBetween returns the number of month steps from a to b.
// Zero when equal, negative when b is before a.
func MonthsBetween(a, b Month) int { return b.Index() - a.Index() }

// FirstDay returns midnight UTC on the first day of the month.
func (m Month) FirstDay() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Day returns midnight UTC on the given day of the month.
func (m Month) Day(day int) time.Time {
	return time.Date(m.Year, m.Month, day, 0, 0, 0, 0, time.UTC)
}

// Contains reports whether t falls inside the month (UTC).
func (m Month) Contains(t time.Time) bool { return MonthOf(t).Equal(m) }

func (m Month) String() string { return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month)) }
