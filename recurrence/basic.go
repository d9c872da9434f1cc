package recurrence

import (
	"math"
	"time"

	"github.com/samber/mo"
)

// Steps longer than a million years are not computed
const (
	maxStepYears  = 1_000_000
	maxStepMonths = 12 * maxStepYears
	maxStepDays   = 366 * maxStepYears
)

const secondsPerDay = 24 * 60 * 60

// Shortest length of each month, February counted as 28 days
var shortestMonth = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// NextOccurrence returns the first occurrence of rule strictly after ref, treating
// start as the first occurrence. It returns mo.None when there is no such
// occurrence or when it cannot be computed; use FindNext to tell those apart.
func NextOccurrence(start time.Time, rule Rule, ref time.Time) mo.Option[time.Time] {
	return FindNext(start, rule, ref).Option()
}

// NextOccurrenceNow is NextOccurrence with the current time as reference
func NextOccurrenceNow(start time.Time, rule Rule) mo.Option[time.Time] {
	return NextOccurrence(start, rule, time.Now())
}

// FindNext computes the next occurrence using plain frequency/interval stepping.
//
// Monthly and yearly steps use calendar arithmetic and keep the rounding of
// time.AddDate: Jan 31 plus one month is Mar 3 (Mar 2 in leap years), and later
// steps continue from that day. ByWeekDay and ByMonthDay are not applied.
//
// An interval whose step exceeds a million years reports ReasonInvalid once
// stepping is needed, that is when start is not after ref.
func FindNext(start time.Time, rule Rule, ref time.Time) Occurrence {
	if rule.EndDate != nil && ref.After(*rule.EndDate) {
		return notFound(ReasonExhausted)
	}
	if rule.Occurrences != nil && *rule.Occurrences <= 0 {
		return notFound(ReasonExhausted)
	}
	if !rule.Frequency.Supported() {
		return notFound(ReasonUnsupported)
	}
	interval := rule.step()
	if interval < 0 {
		return notFound(ReasonInvalid)
	}

	next := start
	if !next.After(ref) {
		days, months, ok := stepSize(rule.Frequency, interval)
		if !ok {
			return notFound(ReasonInvalid)
		}
		if months > 0 {
			next, ok = stepMonths(start, months, ref)
		} else {
			next, ok = stepDays(start, days, ref)
		}
		if !ok {
			return notFound(ReasonInvalid)
		}
	}

	if rule.EndDate != nil && next.After(*rule.EndDate) {
		return notFound(ReasonExhausted)
	}
	return found(next)
}

// stepSize converts a frequency and a positive interval into a step of either
// days or months. It reports false when the step is longer than maxStepYears.
func stepSize(freq Frequency, interval int) (days, months int, ok bool) {
	switch freq {
	case Daily:
		days = interval
	case Weekly:
		if interval > maxStepDays/7 {
			return 0, 0, false
		}
		days = 7 * interval
	case Monthly:
		months = interval
	case Yearly:
		if interval > maxStepMonths/12 {
			return 0, 0, false
		}
		months = 12 * interval
	}
	return days, months, days <= maxStepDays && months <= maxStepMonths
}

// stepDays returns the first of start, start+days, start+2*days, ... after ref.
// Whole runs of steps that cannot pass ref are skipped at once. It reports
// false if the dates stop moving forward.
func stepDays(start time.Time, days int, ref time.Time) (time.Time, bool) {
	k := 0
	next := start
	for !next.After(ref) {
		skip := 1
		// One step of slack absorbs DST shifts in wall-clock days
		if n := (ref.Unix()-next.Unix())/secondsPerDay/int64(days) - 1; n > 1 {
			skip = int(n)
		}
		if k > math.MaxInt/days-skip {
			return time.Time{}, false
		}
		k += skip

		prev := next
		next = start.AddDate(0, 0, k*days)
		if !next.After(prev) {
			return time.Time{}, false
		}
	}
	return next, true
}

// stepMonths returns the first date after ref reached by repeatedly adding
// months to start. While a step may still roll over into the following month
// steps are taken one at a time; after that every step lands on the same day
// and runs are skipped. It reports false if the dates stop moving forward.
func stepMonths(start time.Time, months int, ref time.Time) (time.Time, bool) {
	anchor := start
	k := 0
	next := start
	for !next.After(ref) {
		prev := next
		if mayRollOver(anchor, months) {
			anchor = anchor.AddDate(0, months, 0)
			next = anchor
		} else {
			skip := 1
			if n := monthsBetween(next, ref)/months - 1; n > skip {
				skip = n
			}
			if k > math.MaxInt/months-skip {
				return time.Time{}, false
			}
			k += skip
			next = anchor.AddDate(0, k*months, 0)
		}
		if !next.After(prev) {
			return time.Time{}, false
		}
	}
	return next, true
}

// mayRollOver reports whether adding a multiple of months to t can land in a
// month shorter than t's day. A rollover always leaves a day of 3 or less, so
// this holds for at most one cycle of months.
func mayRollOver(t time.Time, months int) bool {
	if t.Day() <= 28 {
		return false
	}
	m := int(t.Month()) - 1
	for i := 0; i < 12; i++ {
		if shortestMonth[(m+i*(months%12))%12] < t.Day() {
			return true
		}
	}
	return false
}

func monthsBetween(from, to time.Time) int {
	to = to.In(from.Location())
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}
