package xcal

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
)

// Namespace is the xCal namespace from RFC 6321
const Namespace = "urn:ietf:params:xml:ns:icalendar-2.0"

const untilLayout = "2006-01-02T15:04:05Z"

var (
	ErrNotRecur    = errors.New("element is not a recur value")
	ErrMissingFreq = errors.New("recur value has no freq")
)

// Recur is the xCal representation of an RRULE value (RFC 6321 section 3.6.10).
// Field values are kept in iCalendar vocabulary (DAILY, MO, ...).
type Recur struct {
	Freq       string
	Until      *time.Time
	Count      *int
	Interval   int
	ByDay      []string
	ByMonthDay []int
}

// Encode converts the recur value into an xCal <recur> element.
// Until and Count are exclusive in RFC 5545; when both are set only Until is written.
func (r *Recur) Encode() *etree.Element {
	elem := etree.NewElement("recur")
	elem.CreateAttr("xmlns", Namespace)

	elem.CreateElement("freq").SetText(strings.ToUpper(r.Freq))
	// RFC 6321 requires until/count before interval and the by* parts
	if r.Until != nil {
		elem.CreateElement("until").SetText(r.Until.UTC().Format(untilLayout))
	} else if r.Count != nil {
		elem.CreateElement("count").SetText(strconv.Itoa(*r.Count))
	}
	if r.Interval > 0 {
		elem.CreateElement("interval").SetText(strconv.Itoa(r.Interval))
	}
	for _, day := range r.ByDay {
		elem.CreateElement("byday").SetText(day)
	}
	for _, day := range r.ByMonthDay {
		elem.CreateElement("bymonthday").SetText(strconv.Itoa(day))
	}
	return elem
}

// Decode fills the recur value from an xCal <recur> element
func (r *Recur) Decode(elem *etree.Element) error {
	if elem == nil || localName(elem.Tag) != "recur" {
		return ErrNotRecur
	}

	*r = Recur{}
	for _, child := range elem.ChildElements() {
		text := strings.TrimSpace(child.Text())
		switch localName(child.Tag) {
		case "freq":
			r.Freq = strings.ToUpper(text)
		case "until":
			until, err := parseUntil(text)
			if err != nil {
				return fmt.Errorf("invalid until %q: %w", text, err)
			}
			r.Until = &until
		case "count":
			count, err := strconv.Atoi(text)
			if err != nil {
				return fmt.Errorf("invalid count %q: %w", text, err)
			}
			r.Count = &count
		case "interval":
			interval, err := strconv.Atoi(text)
			if err != nil {
				return fmt.Errorf("invalid interval %q: %w", text, err)
			}
			r.Interval = interval
		case "byday":
			r.ByDay = append(r.ByDay, strings.ToUpper(text))
		case "bymonthday":
			day, err := strconv.Atoi(text)
			if err != nil {
				return fmt.Errorf("invalid bymonthday %q: %w", text, err)
			}
			r.ByMonthDay = append(r.ByMonthDay, day)
		}
		// Unknown parts (bysetpos, wkst, ...) are ignored
	}

	if r.Freq == "" {
		return ErrMissingFreq
	}
	return nil
}

// ParseString reads the first <recur> element found in an XML document
func ParseString(xmlStr string) (*Recur, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xmlStr); err != nil {
		return nil, fmt.Errorf("failed to parse xCal: %w", err)
	}

	elem := doc.FindElement("//recur")
	if elem == nil {
		return nil, ErrNotRecur
	}

	r := new(Recur)
	if err := r.Decode(elem); err != nil {
		return nil, err
	}
	return r, nil
}

// String serializes the recur element as an XML fragment
func (r *Recur) String() (string, error) {
	doc := etree.NewDocument()
	doc.SetRoot(r.Encode())
	return doc.WriteToString()
}

func parseUntil(value string) (time.Time, error) {
	if t, err := time.Parse(untilLayout, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	// Date-only until values
	return time.Parse("2006-01-02", value)
}

func localName(tag string) string {
	if i := strings.LastIndex(tag, ":"); i >= 0 {
		return strings.ToLower(tag[i+1:])
	}
	return strings.ToLower(tag)
}
