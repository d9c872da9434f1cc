/*
Package recurrence computes occurrences of repeating tasks.

A Rule describes a schedule by frequency and interval, with optional end date,
occurrence cap and weekday / month-day constraints. The package never modifies
a Rule and keeps no state between calls, except for the optional result cache
of a Calculator.

# Validation

Validate reports every problem of a rule as a human-readable message:

	errs := recurrence.Validate(recurrence.PartialRule{Frequency: "hourly"})
	// ["Frequency must be daily, weekly, monthly, yearly, or custom"]

ValidateJSON does the same for a raw JSON object and also rejects values of
the wrong JSON type.

# Basic calculation

FindNext and NextOccurrence step from the start date by whole intervals until
they pass the reference date:

	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	rule := recurrence.Rule{Frequency: recurrence.Daily, Interval: 2}
	next := recurrence.NextOccurrence(start, rule, start.Add(25*time.Hour))
	// mo.Some(2026-01-03 10:00)

The basic calculation does not apply ByWeekDay, ByMonthDay or Occurrences
beyond rejecting a cap of zero.

# Calculator

A Calculator prefers a richer Provider (by default rrule-go, with full
RFC 5545 semantics) and falls back to FindNext whenever the provider is
unavailable or fails on a rule:

	calc := recurrence.NewCalculator(
		recurrence.WithLogger(logger),
		recurrence.WithConfig(recurrence.DefaultConfig),
	)
	defer calc.Close()

	occ := calc.Next(ctx, start, rule, time.Now())
	if !occ.Found {
		switch occ.Reason {
		case recurrence.ReasonUnsupported: // custom frequency
		case recurrence.ReasonExhausted:   // past the end date or count
		}
	}

# Interchange

RuleFromComponent, ApplyToComponent and NewToDo convert rules to and from
go-ical components (RRULE / DTSTART). EncodeXCal and DecodeXCal handle the
XML form of RFC 6321.
*/
package recurrence
