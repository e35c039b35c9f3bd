// Package hebrew converts between the Gregorian and Hebrew calendars and
// computes calendar-sensitive ages. All functions are pure.
package hebrew

// Month is a Hebrew month number. Numbering starts at Nisan even though the
// year number changes at Tishrei.
type Month int

const (
	Nisan Month = iota + 1
	Iyar
	Sivan
	Tammuz
	Av
	Elul
	Tishrei
	Cheshvan
	Kislev
	Tevet
	Shevat
	AdarI
	AdarII
)

// Adar is the single Adar of a common year. It shares a number with Adar I.
const Adar = AdarI

// epoch is the absolute day number of 1 Tishrei AM 1 minus one, where
// absolute day 1 is 0001-01-01 in the proleptic Gregorian calendar.
const epoch = -1373428

// Molad arithmetic works in parts; 1080 parts make an hour.
const (
	partsPerHour = 1080
	hoursPerDay  = 24
)

// IsLeapYear reports whether the Hebrew year has a thirteenth month.
func IsLeapYear(year int) bool {
	return (1+7*year)%19 < 7
}

// MonthsInYear returns 13 for leap years and 12 otherwise.
func MonthsInYear(year int) int {
	if IsLeapYear(year) {
		return 13
	}
	return 12
}

// elapsedDays returns the number of days from the epoch to 1 Tishrei of
// year, applying the postponement rules.
func elapsedDays(year int) int {
	y := year - 1
	months := 235*(y/19) + 12*(y%19) + (7*(y%19)+1)/19
	parts := 204 + 793*(months%partsPerHour)
	hours := 5 + 12*months + 793*(months/partsPerHour) + parts/partsPerHour
	day := 1 + 29*months + hours/hoursPerDay
	partsOfDay := partsPerHour*(hours%hoursPerDay) + parts%partsPerHour

	alt := day
	switch {
	case partsOfDay >= 19440:
		alt++
	case day%7 == 2 && partsOfDay >= 9924 && !IsLeapYear(year):
		alt++
	case day%7 == 1 && partsOfDay >= 16789 && IsLeapYear(year-1):
		alt++
	}
	// Lo ADU Rosh: 1 Tishrei never falls on Sunday, Wednesday or Friday.
	if w := alt % 7; w == 0 || w == 3 || w == 5 {
		alt++
	}
	return alt
}

// DaysInYear returns the length of the Hebrew year: 353-355 days for a
// common year, 383-385 for a leap year.
func DaysInYear(year int) int {
	return elapsedDays(year+1) - elapsedDays(year)
}

func longCheshvan(year int) bool {
	return DaysInYear(year)%10 == 5
}

func shortKislev(year int) bool {
	return DaysInYear(year)%10 == 3
}

// DaysInMonth returns 29 or 30 depending on the month and the year type.
func DaysInMonth(month Month, year int) int {
	switch month {
	case Iyar, Tammuz, Elul, Tevet, AdarII:
		return 29
	case AdarI:
		if !IsLeapYear(year) {
			return 29
		}
	case Cheshvan:
		if !longCheshvan(year) {
			return 29
		}
	case Kislev:
		if shortKislev(year) {
			return 29
		}
	}
	return 30
}

// toAbsolute maps a Hebrew date to its absolute day number.
func toAbsolute(year int, month Month, day int) int {
	days := day
	if month < Tishrei {
		for m := Tishrei; m <= Month(MonthsInYear(year)); m++ {
			days += DaysInMonth(m, year)
		}
		for m := Nisan; m < month; m++ {
			days += DaysInMonth(m, year)
		}
	} else {
		for m := Tishrei; m < month; m++ {
			days += DaysInMonth(m, year)
		}
	}
	return epoch + elapsedDays(year) + days - 1
}

// fromAbsolute maps an absolute day number to a Hebrew date.
func fromAbsolute(abs int) (int, Month, int) {
	year := int(float64(abs-epoch) / 365.24682220597794)
	for epoch+elapsedDays(year+1) <= abs {
		year++
	}
	for epoch+elapsedDays(year) > abs {
		year--
	}

	month := Nisan
	if abs < toAbsolute(year, Nisan, 1) {
		month = Tishrei
	}
	for abs > toAbsolute(year, month, DaysInMonth(month, year)) {
		month++
	}
	return year, month, 1 + abs - toAbsolute(year, month, 1)
}
