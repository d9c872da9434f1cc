package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// ErrUnsupportedRulePart is returned when an RRULE uses parts a Rule cannot hold
var ErrUnsupportedRulePart = errors.New("unsupported recurrence rule part")

var frequencyToRRule = map[Frequency]rrule.Frequency{
	Daily:   rrule.DAILY,
	Weekly:  rrule.WEEKLY,
	Monthly: rrule.MONTHLY,
	Yearly:  rrule.YEARLY,
}

var rruleToFrequency = map[rrule.Frequency]Frequency{
	rrule.DAILY:   Daily,
	rrule.WEEKLY:  Weekly,
	rrule.MONTHLY: Monthly,
	rrule.YEARLY:  Yearly,
}

// Indexed by ByWeekDay value, 0 = Sunday
var weekdayToRRule = [7]rrule.Weekday{
	rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA,
}

// RRuleProvider computes occurrences with full RFC 5545 semantics, including
// ByWeekDay, ByMonthDay and Occurrences.
type RRuleProvider struct{}

// NewRRuleProvider creates a new rrule-go backed provider
func NewRRuleProvider() *RRuleProvider {
	return &RRuleProvider{}
}

func (p *RRuleProvider) Name() string { return "rrule" }

// Next returns the first occurrence strictly after ref
func (p *RRuleProvider) Next(start time.Time, rule Rule, ref time.Time) (Occurrence, error) {
	// rrule-go reads COUNT=0 as unbounded
	if rule.Occurrences != nil && *rule.Occurrences <= 0 {
		return notFound(ReasonExhausted), nil
	}

	// rrule-go truncates DTSTART to whole seconds, so the rule runs on the
	// truncated start and every occurrence gets the fraction back
	frac := start.Sub(start.Truncate(time.Second))
	if frac > 0 && rule.EndDate != nil {
		end := rule.EndDate.Add(-frac)
		rule.EndDate = &end
	}

	r, err := p.build(start.Add(-frac), rule)
	if err != nil {
		return Occurrence{}, err
	}

	next := r.After(ref.Add(-frac), false)
	if next.IsZero() {
		return notFound(ReasonExhausted), nil
	}
	return found(next.Add(frac)), nil
}

// Check builds the rule without computing anything
func (p *RRuleProvider) Check(rule Rule) error {
	_, err := p.build(time.Now(), rule)
	return err
}

func (p *RRuleProvider) build(start time.Time, rule Rule) (*rrule.RRule, error) {
	opt, err := ToROption(start, rule)
	if err != nil {
		return nil, err
	}
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("failed to build rrule: %w", err)
	}
	return r, nil
}

// ToROption maps a rule onto rrule-go options with start as DTSTART
func ToROption(start time.Time, rule Rule) (*rrule.ROption, error) {
	freq, ok := frequencyToRRule[rule.Frequency]
	if !ok {
		if rule.Frequency == Custom {
			return nil, ErrUnsupportedFrequency
		}
		return nil, fmt.Errorf("%w: %q", ErrInvalidFrequency, rule.Frequency)
	}
	if rule.step() < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidInterval, rule.Interval)
	}
	if _, _, ok := stepSize(rule.Frequency, rule.step()); !ok {
		return nil, fmt.Errorf("%w: %d is too large", ErrInvalidInterval, rule.Interval)
	}

	opt := &rrule.ROption{
		Freq:     freq,
		Dtstart:  start,
		Interval: rule.step(),
	}
	if rule.EndDate != nil {
		opt.Until = *rule.EndDate
	}
	if rule.Occurrences != nil {
		opt.Count = *rule.Occurrences
	}
	for _, day := range rule.ByWeekDay {
		if day < 0 || day > 6 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidWeekday, day)
		}
		opt.Byweekday = append(opt.Byweekday, weekdayToRRule[day])
	}
	if len(rule.ByMonthDay) > 0 {
		opt.Bymonthday = append([]int(nil), rule.ByMonthDay...)
	}
	return opt, nil
}

// FromROption maps rrule-go options back onto a rule. DTSTART is not part of
// a Rule and is ignored.
func FromROption(opt *rrule.ROption) (Rule, error) {
	freq, ok := rruleToFrequency[opt.Freq]
	if !ok {
		return Rule{}, fmt.Errorf("%w: %v", ErrUnsupportedFrequency, opt.Freq)
	}

	switch {
	case len(opt.Bysetpos) > 0:
		return Rule{}, fmt.Errorf("%w: BYSETPOS", ErrUnsupportedRulePart)
	case len(opt.Bymonth) > 0:
		return Rule{}, fmt.Errorf("%w: BYMONTH", ErrUnsupportedRulePart)
	case len(opt.Byyearday) > 0:
		return Rule{}, fmt.Errorf("%w: BYYEARDAY", ErrUnsupportedRulePart)
	case len(opt.Byweekno) > 0:
		return Rule{}, fmt.Errorf("%w: BYWEEKNO", ErrUnsupportedRulePart)
	case len(opt.Byhour) > 0 || len(opt.Byminute) > 0 || len(opt.Bysecond) > 0:
		return Rule{}, fmt.Errorf("%w: time of day parts", ErrUnsupportedRulePart)
	}

	rule := Rule{
		Frequency: freq,
		Interval:  opt.Interval,
	}
	if !opt.Until.IsZero() {
		until := opt.Until
		rule.EndDate = &until
	}
	if opt.Count > 0 {
		count := opt.Count
		rule.Occurrences = &count
	}
	for _, wd := range opt.Byweekday {
		// Ordinals such as 1MO have no equivalent in ByWeekDay
		if wd.N() != 0 {
			return Rule{}, fmt.Errorf("%w: ordinal weekday %d", ErrUnsupportedRulePart, wd.N())
		}
		// rrule-go numbers weekdays from Monday
		rule.ByWeekDay = append(rule.ByWeekDay, (wd.Day()+1)%7)
	}
	if len(opt.Bymonthday) > 0 {
		rule.ByMonthDay = append([]int(nil), opt.Bymonthday...)
	}
	return rule, nil
}
