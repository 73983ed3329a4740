package trigger

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Calendar answers "what day is it" in the fixed business timezone,
// independent of the host's locale.
type Calendar struct {
	loc *time.Location
}

// NewCalendar returns a calendar for a fixed UTC offset in hours (-6 for the
// business timezone).
func NewCalendar(offsetHours int) Calendar {
	name := fmt.Sprintf("UTC%+d", offsetHours)
	return Calendar{loc: time.FixedZone(name, offsetHours*60*60)}
}

// Location returns the business timezone
func (c Calendar) Location() *time.Location {
	return c.loc
}

// Today returns the business calendar date at instant now
func (c Calendar) Today(now time.Time) civil.Date {
	return civil.DateOf(now.In(c.loc))
}

// StartOfDay returns the instant the current business day began
func (c Calendar) StartOfDay(now time.Time) time.Time {
	return c.Today(now).In(c.loc)
}

// storedDate reads a date-only field persisted as UTC midnight
func storedDate(t *time.Time) civil.Date {
	return civil.DateOf(t.UTC())
}

// addMonths shifts d by whole months, clamping the day to the end of the
// target month (Mar 31 minus one month is Feb 28, not Mar 3)
func addMonths(d civil.Date, months int) civil.Date {
	target := d.Month + time.Month(months)
	last := civil.DateOf(time.Date(d.Year, target+1, 0, 0, 0, 0, 0, time.UTC))
	if d.Day < last.Day {
		last.Day = d.Day
	}
	return last
}

// monthsBetween counts whole calendar months elapsed from "from" to "to"
func monthsBetween(from, to civil.Date) int {
	months := (to.Year-from.Year)*12 + int(to.Month) - int(from.Month)
	if to.Day < from.Day {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// Formatter renders amounts and dates for message bindings
type Formatter struct {
	printer *message.Printer
}

// NewFormatter builds a formatter for a BCP 47 locale such as "es-MX".
// Unparseable locales fall back to Latin American Spanish.
func NewFormatter(locale string) Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.LatinAmericanSpanish
	}
	return Formatter{printer: message.NewPrinter(tag)}
}

// Amount formats a currency value with two decimals and locale grouping
func (f Formatter) Amount(v float64) string {
	return f.printer.Sprintf("$%.2f", v)
}

// Date formats a calendar date as DD/MM/YYYY
func (f Formatter) Date(d civil.Date) string {
	return fmt.Sprintf("%02d/%02d/%04d", d.Day, int(d.Month), d.Year)
}
