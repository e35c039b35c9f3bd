package hebrew

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestFromGregorianKnownDates(t *testing.T) {
	tests := []struct {
		gregorian string
		want      string
	}{
		{"1970-01-01", "23 Tevet 5730"},
		{"1990-03-10", "13 Adar 5750"},
		{"2000-01-01", "23 Tevet 5760"},
		{"2011-03-06", "30 Adar I 5771"},
		{"2011-04-05", "1 Nisan 5771"},
		{"2011-05-01", "27 Nisan 5771"},
		{"2014-02-01", "1 Adar I 5774"},
		{"2016-12-01", "1 Kislev 5777"},
		{"2019-03-20", "13 Adar II 5779"},
		{"2020-12-01", "15 Kislev 5781"},
		{"2022-03-03", "30 Adar I 5782"},
		{"2023-09-16", "1 Tishrei 5784"},
		{"2024-02-10", "1 Adar I 5784"},
		{"2024-03-11", "1 Adar II 5784"},
		{"2024-04-09", "1 Nisan 5784"},
		{"2024-05-04", "26 Nisan 5784"},
		{"2024-05-05", "27 Nisan 5784"},
		{"2024-10-03", "1 Tishrei 5785"},
		{"2024-12-01", "30 Cheshvan 5785"},
		{"2024-12-31", "30 Kislev 5785"},
		{"2025-03-01", "1 Adar 5785"},
	}

	for _, tt := range tests {
		t.Run(tt.gregorian, func(t *testing.T) {
			got, err := FromGregorian(day(tt.gregorian))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestFromGregorianIgnoresTimeOfDay(t *testing.T) {
	loc := time.FixedZone("IST", 2*60*60)
	got, err := FromGregorian(time.Date(2024, 10, 3, 23, 59, 0, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, Date{Year: 5785, Month: Tishrei, Day: 1}, got)
}

func TestFromGregorianRejectsZero(t *testing.T) {
	_, err := FromGregorian(time.Time{})
	var convErr *ConversionError
	require.ErrorAs(t, err, &convErr)
}

func TestYearStructure(t *testing.T) {
	tests := []struct {
		year   int
		leap   bool
		length int
	}{
		{5771, true, 385},
		{5782, true, 384},
		{5783, false, 355},
		{5784, true, 383},
		{5785, false, 355},
		{5786, false, 354},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.leap, IsLeapYear(tt.year), "leap %d", tt.year)
		assert.Equal(t, tt.length, DaysInYear(tt.year), "length %d", tt.year)

		total := 0
		for m := Nisan; int(m) <= MonthsInYear(tt.year); m++ {
			total += DaysInMonth(m, tt.year)
		}
		assert.Equal(t, tt.length, total, "month sum %d", tt.year)
	}
}

func TestMonthLengths(t *testing.T) {
	assert.Equal(t,
		[]int{30, 29, 30, 29, 30, 29, 30, 30, 30, 29, 30, 30, 29},
		monthLengths(5771))
	assert.Equal(t,
		[]int{30, 29, 30, 29, 30, 29, 30, 29, 29, 29, 30, 30, 29},
		monthLengths(5784))
}

func monthLengths(year int) []int {
	var out []int
	for m := Nisan; int(m) <= MonthsInYear(year); m++ {
		out = append(out, DaysInMonth(m, year))
	}
	return out
}

func TestRoundTrip(t *testing.T) {
	start := day("1900-01-01")
	for i := 0; i < 60000; i++ {
		g := start.AddDate(0, 0, i)
		h, err := FromGregorian(g)
		require.NoError(t, err)
		require.True(t, h.Valid(), h.String())
		require.True(t, g.Equal(h.Gregorian()), "%s -> %s -> %s", g.Format("2006-01-02"), h, h.Gregorian())
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Date
		wantErr bool
	}{
		{in: "27 Nisan 5771", want: Date{5771, Nisan, 27}},
		{in: "1 Adar II 5784", want: Date{5784, AdarII, 1}},
		{in: "30 adar i 5771", want: Date{5771, AdarI, 30}},
		{in: "13 Adar 5750", want: Date{5750, Adar, 13}},
		{in: "5 Heshvan 5785", want: Date{5785, Cheshvan, 5}},
		{in: "1 Adar II 5785", wantErr: true},
		{in: "30 Iyar 5784", wantErr: true},
		{in: "Nisan 5771", wantErr: true},
		{in: "x Nisan 5771", wantErr: true},
		{in: "1 Nowhere 5771", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				var convErr *ConversionError
				assert.ErrorAs(t, err, &convErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFormatsBack(t *testing.T) {
	for _, s := range []string{"1 Adar I 5784", "1 Adar II 5784", "1 Adar 5785", "30 Kislev 5785"} {
		d, err := Parse(s)
		require.NoError(t, err)
		assert.Equal(t, s, d.String())
	}
}

func TestRandomDatesStayValid(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		g := day("1800-01-01").AddDate(0, 0, rng.Intn(120000))
		h, err := FromGregorian(g)
		require.NoError(t, err)
		parsed, err := Parse(h.String())
		require.NoError(t, err)
		assert.Equal(t, h, parsed)
	}
}
