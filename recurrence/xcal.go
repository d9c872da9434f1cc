package recurrence

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/cyp0633/librecur/internal/xcal"
)

var (
	// ErrInvalidXCal is returned when an xCal recur value cannot be read as a Rule
	ErrInvalidXCal = errors.New("invalid xCal recur value")
	// ErrUntilWithCount is returned for a rule with both an end date and an
	// occurrence count, which a recur value cannot carry together
	ErrUntilWithCount = errors.New("recur value cannot have both until and count")
)

var weekdayCodes = [7]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

// EncodeXCal renders rule as an RFC 6321 <recur> element
func EncodeXCal(rule Rule) (*etree.Element, error) {
	r, err := toRecur(rule)
	if err != nil {
		return nil, err
	}
	return r.Encode(), nil
}

// FormatXCal renders rule as a standalone <recur> XML fragment
func FormatXCal(rule Rule) (string, error) {
	r, err := toRecur(rule)
	if err != nil {
		return "", err
	}
	s, err := r.String()
	if err != nil {
		return "", fmt.Errorf("failed to write xCal: %w", err)
	}
	return s, nil
}

// DecodeXCal reads a rule from an RFC 6321 <recur> element
func DecodeXCal(elem *etree.Element) (Rule, error) {
	var r xcal.Recur
	if err := r.Decode(elem); err != nil {
		return Rule{}, fmt.Errorf("%w: %w", ErrInvalidXCal, err)
	}
	return fromRecur(&r)
}

// ParseXCal reads a rule from the first <recur> element of an XML document,
// such as an xCal RRULE property
func ParseXCal(xmlStr string) (Rule, error) {
	r, err := xcal.ParseString(xmlStr)
	if err != nil {
		return Rule{}, fmt.Errorf("%w: %w", ErrInvalidXCal, err)
	}
	return fromRecur(r)
}

func toRecur(rule Rule) (*xcal.Recur, error) {
	if !rule.Frequency.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFrequency, rule.Frequency)
	}
	if rule.Frequency == Custom {
		return nil, ErrUnsupportedFrequency
	}
	if rule.EndDate != nil && rule.Occurrences != nil {
		return nil, ErrUntilWithCount
	}

	r := &xcal.Recur{
		Freq:       strings.ToUpper(string(rule.Frequency)),
		Until:      rule.EndDate,
		Count:      rule.Occurrences,
		Interval:   rule.Interval,
		ByMonthDay: rule.ByMonthDay,
	}
	for _, day := range rule.ByWeekDay {
		if day < 0 || day > 6 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidWeekday, day)
		}
		r.ByDay = append(r.ByDay, weekdayCodes[day])
	}
	return r, nil
}

func fromRecur(r *xcal.Recur) (Rule, error) {
	freq := Frequency(strings.ToLower(r.Freq))
	if !freq.Supported() {
		return Rule{}, fmt.Errorf("%w: unsupported freq %s", ErrInvalidXCal, r.Freq)
	}

	rule := Rule{
		Frequency:   freq,
		Interval:    r.Interval,
		EndDate:     r.Until,
		Occurrences: r.Count,
		ByMonthDay:  r.ByMonthDay,
	}
	for _, code := range r.ByDay {
		idx := weekdayIndex(code)
		if idx < 0 {
			return Rule{}, fmt.Errorf("%w: byday %s", ErrInvalidXCal, code)
		}
		rule.ByWeekDay = append(rule.ByWeekDay, idx)
	}
	return rule, nil
}

func weekdayIndex(code string) int {
	for i, c := range weekdayCodes {
		if c == code {
			return i
		}
	}
	return -1
}
