package hebrew

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustFromGregorian(t *testing.T, s string) Date {
	t.Helper()
	d, err := FromGregorian(day(s))
	require.NoError(t, err)
	return d
}

func TestAgeAdvancesOnHebrewBirthday(t *testing.T) {
	birth := mustFromGregorian(t, "2011-05-01")

	tests := []struct {
		asOf string
		want int
	}{
		// The Gregorian birthday comes before the Hebrew one in 2024.
		{"2024-05-01", 12},
		{"2024-05-04", 12},
		{"2024-05-05", 13},
		{"2025-01-01", 13},
		{"2011-05-01", 0},
	}
	for _, tt := range tests {
		t.Run(tt.asOf, func(t *testing.T) {
			got, ok := Age(birth, day(tt.asOf))
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAgeBeforeBirthIsUnavailable(t *testing.T) {
	_, ok := Age(mustFromGregorian(t, "2011-05-01"), day("2011-04-30"))
	assert.False(t, ok)
}

func TestAgeFromString(t *testing.T) {
	got, ok := AgeFromString("27 Nisan 5771", day("2024-05-05"))
	require.True(t, ok)
	assert.Equal(t, 13, got)

	for _, bad := range []string{"", "garbage", "31 Nisan 5771"} {
		_, ok := AgeFromString(bad, day("2024-05-05"))
		assert.False(t, ok, bad)
	}
}

func TestAgeIsMonotonic(t *testing.T) {
	births := []string{"1990-03-10", "2011-03-06", "2019-03-20", "2024-12-01", "2024-12-31", "2000-01-01"}
	for _, b := range births {
		birth := mustFromGregorian(t, b)
		start := day(b)
		prev := 0
		steps := 0
		for i := 0; i < 15*366; i++ {
			got, ok := Age(birth, start.AddDate(0, 0, i))
			require.True(t, ok)
			require.Contains(t, []int{prev, prev + 1}, got, "%s day %d", b, i)
			if got == prev+1 {
				steps++
			}
			prev = got
		}
		assert.GreaterOrEqual(t, steps, 14, b)
	}
}

func TestBirthdayRules(t *testing.T) {
	tests := []struct {
		name  string
		birth Date
		year  int
		want  Date
	}{
		{"same month", Date{5771, Nisan, 27}, 5784, Date{5784, Nisan, 27}},
		{"adar ii into common year", Date{5779, AdarII, 13}, 5792, Date{5792, Adar, 13}},
		{"common adar into leap year", Date{5750, Adar, 13}, 5763, Date{5763, AdarII, 13}},
		{"adar i stays in leap year", Date{5771, AdarI, 30}, 5784, Date{5784, AdarI, 30}},
		{"30 adar i into common year", Date{5771, AdarI, 30}, 5785, Date{5785, Nisan, 1}},
		{"30 cheshvan short year", Date{5785, Cheshvan, 30}, 5786, Date{5786, Kislev, 1}},
		{"30 cheshvan long year", Date{5785, Cheshvan, 30}, 5798, Date{5798, Cheshvan, 30}},
		{"30 kislev short year", Date{5785, Kislev, 30}, 5781, Date{5781, Tevet, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Birthday(tt.birth, tt.year))
		})
	}
}

func TestBarMitzvahDate(t *testing.T) {
	tests := []struct {
		birth string
		want  string
	}{
		{"2011-05-01", "2024-05-05"},
		{"1990-03-10", "2003-03-17"},
		{"2011-03-06", "2024-03-10"},
		{"2019-03-20", "2032-02-25"},
		{"2024-12-01", "2037-11-08"},
	}
	for _, tt := range tests {
		t.Run(tt.birth, func(t *testing.T) {
			got, ok := BarMitzvahDate(mustFromGregorian(t, tt.birth))
			require.True(t, ok)
			assert.Equal(t, tt.want, got.Format("2006-01-02"))

			age, ok := Age(mustFromGregorian(t, tt.birth), got)
			require.True(t, ok)
			assert.Equal(t, BarMitzvahAge, age)
			age, _ = Age(mustFromGregorian(t, tt.birth), got.AddDate(0, 0, -1))
			assert.Equal(t, BarMitzvahAge-1, age)
		})
	}
}

func TestBarMitzvahDateInvalidBirth(t *testing.T) {
	_, ok := BarMitzvahDate(Date{})
	assert.False(t, ok)
}
