package recurrence

import (
	"errors"
	"time"

	"github.com/samber/mo"
)

// Frequency is the repeat unit of a rule
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
	Custom  Frequency = "custom" // Recognized, but no occurrence can be computed
)

// Valid reports whether f is one of the recognized frequencies
func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly, Custom:
		return true
	}
	return false
}

// Supported reports whether occurrences can be computed for f
func (f Frequency) Supported() bool {
	return f.Valid() && f != Custom
}

// Rule describes a repeating schedule, independent of any task.
// Rules are never modified by this package.
type Rule struct {
	Frequency   Frequency  `json:"frequency"`
	Interval    int        `json:"interval,omitempty"`    // e.g. 2 with Weekly = every 2 weeks; 0 means 1
	EndDate     *time.Time `json:"endDate,omitempty"`     // No occurrence after this instant
	Occurrences *int       `json:"occurrences,omitempty"` // Cap on total repetitions
	ByWeekDay   []int      `json:"byWeekDay,omitempty"`   // 0 = Sunday, 6 = Saturday
	ByMonthDay  []int      `json:"byMonthDay,omitempty"`
}

// step returns the effective interval, treating an unset interval as 1
func (r Rule) step() int {
	if r.Interval == 0 {
		return 1
	}
	return r.Interval
}

// HasByRules reports whether the rule narrows its expansion by weekday or month day
func (r Rule) HasByRules() bool {
	return len(r.ByWeekDay) > 0 || len(r.ByMonthDay) > 0
}

// Partial converts the rule into its validation form
func (r Rule) Partial() PartialRule {
	p := PartialRule{
		Frequency:   r.Frequency,
		Occurrences: r.Occurrences,
		ByWeekDay:   r.ByWeekDay,
		ByMonthDay:  r.ByMonthDay,
	}
	if r.Interval != 0 {
		p.Interval = &r.Interval
	}
	if r.EndDate != nil {
		p.EndDate = r.EndDate.Format(time.RFC3339Nano)
	}
	return p
}

// PartialRule is a rule as received from a caller, where every field may be absent.
// It is the input of Validate.
type PartialRule struct {
	Frequency   Frequency // Empty when absent
	Interval    *int
	EndDate     string // Empty when absent, otherwise a date or date-time string
	Occurrences *int
	ByWeekDay   []int
	ByMonthDay  []int
}

// Reason explains why no occurrence was found
type Reason int

const (
	ReasonNone        Reason = iota // An occurrence was found
	ReasonUnsupported               // Frequency has no advancement rule (custom)
	ReasonExhausted                 // Past the end date, or occurrences used up
	ReasonInvalid                   // Interval is not positive
)

// String provides a human-readable representation of the Reason.
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonUnsupported:
		return "unsupported"
	case ReasonExhausted:
		return "exhausted"
	case ReasonInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Occurrence is the result of a next-occurrence computation
type Occurrence struct {
	Date   time.Time // Valid only when Found
	Found  bool
	Reason Reason // ReasonNone when Found
}

// Option collapses the result into a plain optional date, dropping the reason
func (o Occurrence) Option() mo.Option[time.Time] {
	if !o.Found {
		return mo.None[time.Time]()
	}
	return mo.Some(o.Date)
}

func found(t time.Time) Occurrence {
	return Occurrence{Date: t, Found: true}
}

func notFound(reason Reason) Occurrence {
	return Occurrence{Reason: reason}
}

var (
	// ErrUnsupportedFrequency is returned when a frequency has no mapping (custom)
	ErrUnsupportedFrequency = errors.New("unsupported recurrence frequency")
	// ErrInvalidFrequency is returned for a frequency outside the recognized set
	ErrInvalidFrequency = errors.New("invalid recurrence frequency")
	// ErrInvalidInterval is returned when the interval is not positive
	ErrInvalidInterval = errors.New("recurrence interval must be positive")
	// ErrInvalidWeekday is returned for a weekday index outside 0..6
	ErrInvalidWeekday = errors.New("weekday index out of range")
	// ErrNoRecurrenceRule is returned when a component carries no RRULE
	ErrNoRecurrenceRule = errors.New("component has no recurrence rule")
	// ErrNoStartDate is returned when a component carries no DTSTART
	ErrNoStartDate = errors.New("component has no start date")
)
