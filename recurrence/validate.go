package recurrence

import (
	"github.com/cyp0633/librecur/internal/datetime"
	"github.com/tidwall/gjson"
)

// Validation messages, one per independent check
const (
	MsgMissingFrequency    = "Recurrence rule must have a frequency"
	MsgInvalidFrequency    = "Frequency must be daily, weekly, monthly, yearly, or custom"
	MsgInvalidInterval     = "Interval must be a positive number"
	MsgInvalidEndDate      = "End date must be a valid date"
	MsgInvalidOccurrences  = "Occurrences must be a non-negative number"
	MsgMalformedRuleObject = "Recurrence rule must be a JSON object"
)

// Validate checks a recurrence rule and returns every problem found.
// The result is never nil; an empty slice means the rule is valid.
func Validate(p PartialRule) []string {
	errs := make([]string, 0)

	if p.Frequency == "" {
		errs = append(errs, MsgMissingFrequency)
	} else if !p.Frequency.Valid() {
		errs = append(errs, MsgInvalidFrequency)
	}

	if p.Interval != nil && *p.Interval <= 0 {
		errs = append(errs, MsgInvalidInterval)
	}

	if p.EndDate != "" && !datetime.Valid(p.EndDate) {
		errs = append(errs, MsgInvalidEndDate)
	}

	if p.Occurrences != nil && *p.Occurrences < 0 {
		errs = append(errs, MsgInvalidOccurrences)
	}

	return errs
}

// Validate checks the rule with the same checks as the package-level Validate.
// A zero Interval is the unset value of a typed Rule and means 1, so it is not
// reported; callers that must reject an explicit 0 validate a PartialRule or
// the raw payload with ValidateJSON instead.
func (r Rule) Validate() []string {
	return Validate(r.Partial())
}

// ValidateJSON validates a rule encoded as a JSON object, such as a stored task
// payload. Unlike Validate it also sees values of the wrong JSON type, so an
// interval of "2" (a string) is reported.
func ValidateJSON(doc []byte) []string {
	if !gjson.ValidBytes(doc) {
		return []string{MsgMalformedRuleObject}
	}
	rule := gjson.ParseBytes(doc)
	if !rule.IsObject() {
		return []string{MsgMalformedRuleObject}
	}

	errs := make([]string, 0)

	freq := rule.Get("frequency")
	if !truthy(freq) {
		errs = append(errs, MsgMissingFrequency)
	} else if freq.Type != gjson.String || !Frequency(freq.Str).Valid() {
		errs = append(errs, MsgInvalidFrequency)
	}

	if interval := rule.Get("interval"); interval.Exists() {
		if interval.Type != gjson.Number || interval.Num <= 0 {
			errs = append(errs, MsgInvalidInterval)
		}
	}

	if end := rule.Get("endDate"); truthy(end) {
		switch end.Type {
		case gjson.String:
			if !datetime.Valid(end.Str) {
				errs = append(errs, MsgInvalidEndDate)
			}
		case gjson.Number:
			// Milliseconds since the Unix epoch
		default:
			errs = append(errs, MsgInvalidEndDate)
		}
	}

	if occ := rule.Get("occurrences"); occ.Exists() {
		if occ.Type != gjson.Number || occ.Num < 0 {
			errs = append(errs, MsgInvalidOccurrences)
		}
	}

	return errs
}

// truthy treats missing, null, false, 0 and "" as absent
func truthy(r gjson.Result) bool {
	switch r.Type {
	case gjson.Null:
		return false
	case gjson.False:
		return false
	case gjson.Number:
		return r.Num != 0
	case gjson.String:
		return r.Str != ""
	default:
		return true
	}
}
