package recurrence

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
)

const productID = "-//librecur//Go Recurrence//EN"

// RuleFromComponent extracts the recurrence rule and its start from an iCal
// component. The start is DTSTART, or DUE for a VTODO without DTSTART.
func RuleFromComponent(comp *ical.Component) (Rule, time.Time, error) {
	opt, err := comp.Props.RecurrenceRule()
	if err != nil {
		return Rule{}, time.Time{}, fmt.Errorf("failed to parse RRULE: %w", err)
	}
	if opt == nil {
		return Rule{}, time.Time{}, ErrNoRecurrenceRule
	}

	start, err := componentStart(comp)
	if err != nil {
		return Rule{}, time.Time{}, err
	}

	rule, err := FromROption(opt)
	if err != nil {
		return Rule{}, time.Time{}, err
	}
	return rule, start, nil
}

func componentStart(comp *ical.Component) (time.Time, error) {
	start, err := comp.Props.DateTime(ical.PropDateTimeStart, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse DTSTART: %w", err)
	}
	if !start.IsZero() {
		return start, nil
	}

	if comp.Name == ical.CompToDo {
		due, err := comp.Props.DateTime(ical.PropDue, nil)
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to parse DUE: %w", err)
		}
		if !due.IsZero() {
			return due, nil
		}
	}
	return time.Time{}, ErrNoStartDate
}

// ApplyToComponent writes DTSTART and RRULE for rule into comp, replacing any
// existing values. Custom rules cannot be expressed and are rejected.
func ApplyToComponent(comp *ical.Component, start time.Time, rule Rule) error {
	opt, err := ToROption(start, rule)
	if err != nil {
		return err
	}
	// DTSTART is its own property, not part of the RRULE value
	opt.Dtstart = time.Time{}

	comp.Props.SetDateTime(ical.PropDateTimeStart, start)
	comp.Props.SetRecurrenceRule(opt)
	return nil
}

// NewToDo creates a recurring VTODO with a fresh UID
func NewToDo(summary string, due time.Time, rule Rule) (*ical.Component, error) {
	todo := ical.NewComponent(ical.CompToDo)
	todo.Props.SetText(ical.PropUID, uuid.NewString())
	todo.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	todo.Props.SetText(ical.PropSummary, summary)
	todo.Props.SetDateTime(ical.PropDue, due)

	if err := ApplyToComponent(todo, due, rule); err != nil {
		return nil, err
	}
	return todo, nil
}

// EncodeCalendar wraps components in a VCALENDAR and serializes it
func EncodeCalendar(comps ...*ical.Component) (string, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Children = append(cal.Children, comps...)

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return "", fmt.Errorf("failed to encode calendar: %w", err)
	}
	return buf.String(), nil
}

// DecodeToDos reads every VTODO from an iCalendar document
func DecodeToDos(ics string) ([]*ical.Component, error) {
	cal, err := ical.NewDecoder(strings.NewReader(ics)).Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to decode calendar: %w", err)
	}

	var todos []*ical.Component
	for _, child := range cal.Children {
		if child.Name == ical.CompToDo {
			todos = append(todos, child)
		}
	}
	return todos, nil
}

// NextForComponent computes the next occurrence of a recurring component
func (c *Calculator) NextForComponent(ctx context.Context, comp *ical.Component, ref time.Time) (Occurrence, error) {
	rule, start, err := RuleFromComponent(comp)
	if err != nil {
		return Occurrence{}, err
	}
	return c.Next(ctx, start, rule, ref), nil
}
