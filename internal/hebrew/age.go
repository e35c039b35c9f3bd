package hebrew

import "time"

// BarMitzvahAge is the Hebrew age at which coming-of-age is observed.
const BarMitzvahAge = 13

// Birthday returns the observed anniversary of birth in the given Hebrew
// year. Days that do not exist in the target year move to the next month,
// and Adar births follow the usual leap-year rules.
func Birthday(birth Date, year int) Date {
	month, day := birth.Month, birth.Day

	switch {
	case month == Cheshvan && day == 30 && !longCheshvan(year):
		return Date{Year: year, Month: Kislev, Day: 1}
	case month == Kislev && day == 30 && shortKislev(year):
		return Date{Year: year, Month: Tevet, Day: 1}
	case month == AdarI && day == 30 && !IsLeapYear(year):
		return Date{Year: year, Month: Nisan, Day: 1}
	case month == AdarII && !IsLeapYear(year):
		month = Adar
	case month == Adar && !IsLeapYear(birth.Year) && IsLeapYear(year):
		month = AdarII
	}
	return Date{Year: year, Month: month, Day: day}
}

// Age returns the Hebrew-calendar age on asOf of someone born on birth.
// The age advances on the Hebrew birthday, not the Gregorian one. ok is
// false when birth is not a valid date or asOf cannot be converted.
func Age(birth Date, asOf time.Time) (int, bool) {
	if !birth.Valid() {
		return 0, false
	}
	now, err := FromGregorian(asOf)
	if err != nil {
		return 0, false
	}

	age := now.Year - birth.Year
	if now.Before(Birthday(birth, now.Year)) {
		age--
	}
	if age < 0 {
		return 0, false
	}
	return age, true
}

// AgeFromString parses a cached Hebrew birth date and returns the age on
// asOf. Malformed or empty input yields ok == false.
func AgeFromString(birth string, asOf time.Time) (int, bool) {
	if birth == "" {
		return 0, false
	}
	d, err := Parse(birth)
	if err != nil {
		return 0, false
	}
	return Age(d, asOf)
}

// BarMitzvahDate returns the Gregorian date of the 13th Hebrew birthday.
func BarMitzvahDate(birth Date) (time.Time, bool) {
	if !birth.Valid() {
		return time.Time{}, false
	}
	return Birthday(birth, birth.Year+BarMitzvahAge).Gregorian(), true
}
