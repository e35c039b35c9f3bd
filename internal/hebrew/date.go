package hebrew

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Gregorian years accepted by FromGregorian.
const (
	MinGregorianYear = 1
	MaxGregorianYear = 9999
)

// unixEpochAbs is the absolute day number of 1970-01-01.
const unixEpochAbs = 719163

// ConversionError is returned when a date cannot be converted. Callers
// treat it as "Hebrew date unavailable" and fall back to Gregorian logic.
type ConversionError struct {
	Input  string
	Reason string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("hebrew: cannot convert %q: %s", e.Input, e.Reason)
}

// Date is a day in the Hebrew calendar.
type Date struct {
	Year  int
	Month Month
	Day   int
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Valid reports whether d names a real day.
func (d Date) Valid() bool {
	if d.Year < 1 || d.Year > 9999 {
		return false
	}
	if d.Month < Nisan || int(d.Month) > MonthsInYear(d.Year) {
		return false
	}
	return d.Day >= 1 && d.Day <= DaysInMonth(d.Month, d.Year)
}

// String renders the date as "27 Nisan 5771".
func (d Date) String() string {
	return fmt.Sprintf("%d %s %d", d.Day, MonthName(d.Month, d.Year), d.Year)
}

// Before reports whether d is earlier than other.
func (d Date) Before(other Date) bool {
	return d.absolute() < other.absolute()
}

func (d Date) absolute() int {
	return toAbsolute(d.Year, d.Month, d.Day)
}

// Gregorian returns the Gregorian day of d at midnight UTC.
func (d Date) Gregorian() time.Time {
	return fromAbsoluteGregorian(d.absolute())
}

// FromGregorian converts the calendar day of t (in t's location) to a
// Hebrew date. Time of day is ignored.
func FromGregorian(t time.Time) (Date, error) {
	if t.IsZero() {
		return Date{}, &ConversionError{Input: "0001-01-01", Reason: "date is not set"}
	}
	if t.Year() < MinGregorianYear || t.Year() > MaxGregorianYear {
		return Date{}, &ConversionError{Input: t.Format("2006-01-02"), Reason: "year out of range"}
	}
	y, m, d := fromAbsolute(gregorianAbsolute(t))
	return Date{Year: y, Month: m, Day: d}, nil
}

// ParseGregorian parses a YYYY-MM-DD string and converts it.
func ParseGregorian(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, &ConversionError{Input: s, Reason: "expected YYYY-MM-DD"}
	}
	return FromGregorian(t)
}

func gregorianAbsolute(t time.Time) int {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return int(midnight.Unix()/86400) + unixEpochAbs
}

func fromAbsoluteGregorian(abs int) time.Time {
	return time.Unix(int64(abs-unixEpochAbs)*86400, 0).UTC()
}

var monthNames = map[Month]string{
	Nisan:    "Nisan",
	Iyar:     "Iyar",
	Sivan:    "Sivan",
	Tammuz:   "Tammuz",
	Av:       "Av",
	Elul:     "Elul",
	Tishrei:  "Tishrei",
	Cheshvan: "Cheshvan",
	Kislev:   "Kislev",
	Tevet:    "Tevet",
	Shevat:   "Shevat",
	AdarI:    "Adar",
	AdarII:   "Adar II",
}

// MonthName returns the display name of month in year. The twelfth month
// is "Adar I" in leap years and "Adar" otherwise.
func MonthName(month Month, year int) string {
	if month == AdarI && IsLeapYear(year) {
		return "Adar I"
	}
	if name, ok := monthNames[month]; ok {
		return name
	}
	return fmt.Sprintf("Month(%d)", int(month))
}

var monthAliases = map[string]Month{
	"nisan":       Nisan,
	"nissan":      Nisan,
	"iyar":        Iyar,
	"iyyar":       Iyar,
	"sivan":       Sivan,
	"tammuz":      Tammuz,
	"tamuz":       Tammuz,
	"av":          Av,
	"elul":        Elul,
	"tishrei":     Tishrei,
	"tishri":      Tishrei,
	"cheshvan":    Cheshvan,
	"heshvan":     Cheshvan,
	"marcheshvan": Cheshvan,
	"kislev":      Kislev,
	"tevet":       Tevet,
	"teves":       Tevet,
	"shevat":      Shevat,
	"shvat":       Shevat,
	"adar":        AdarI,
	"adar i":      AdarI,
	"adar 1":      AdarI,
	"adar ii":     AdarII,
	"adar 2":      AdarII,
}

// Parse reads a date in the form produced by String, e.g. "1 Adar II 5784".
// Month names are case-insensitive and accept common transliterations.
func Parse(s string) (Date, error) {
	fields := strings.Fields(s)
	if len(fields) < 3 || len(fields) > 4 {
		return Date{}, &ConversionError{Input: s, Reason: "expected \"day month year\""}
	}

	day, err := strconv.Atoi(fields[0])
	if err != nil {
		return Date{}, &ConversionError{Input: s, Reason: "day is not a number"}
	}
	year, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		return Date{}, &ConversionError{Input: s, Reason: "year is not a number"}
	}

	name := strings.ToLower(strings.Join(fields[1:len(fields)-1], " "))
	month, ok := monthAliases[name]
	if !ok {
		return Date{}, &ConversionError{Input: s, Reason: "unknown month"}
	}
	if month == AdarII && !IsLeapYear(year) {
		return Date{}, &ConversionError{Input: s, Reason: "Adar II in a common year"}
	}

	d := Date{Year: year, Month: month, Day: day}
	if !d.Valid() {
		return Date{}, &ConversionError{Input: s, Reason: "day out of range"}
	}
	return d, nil
}
