package temporal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	dates   = Subtype{Name: "date", Category: CategoryDateTime}
	numbers = Subtype{Name: "integer", Category: CategoryNumeric}
)

func TestNewSubtype(t *testing.T) {
	s, err := NewSubtype("date", "")
	require.NoError(t, err)
	assert.Equal(t, CategoryDateTime, s.Category)

	s, err = NewSubtype("bigint", "")
	require.NoError(t, err)
	assert.True(t, s.IsNumeric())

	s, err = NewSubtype("custom", "N")
	require.NoError(t, err)
	assert.True(t, s.IsNumeric())

	_, err = NewSubtype("text", "")
	require.Error(t, err)

	_, err = NewSubtype("text", "S")
	require.Error(t, err)
}

func TestCompareNumeric(t *testing.T) {
	assert.Equal(t, -1, numbers.Compare("9", "10"), "numeric bounds must not compare as text")
	assert.Equal(t, 0, numbers.Compare("1.0", "1"))
	assert.Equal(t, 1, numbers.Compare("infinity", "1000000"))
	assert.Equal(t, -1, numbers.Compare("-infinity", "-1000000"))
	assert.Equal(t, 0, numbers.Compare("infinity", "infinity"))
	assert.Equal(t, -1, numbers.Compare("-2.5", "-2"))
}

func TestCompareDates(t *testing.T) {
	assert.Equal(t, -1, dates.Compare("2024-01-01", "2024-02-01"))
	assert.Equal(t, 1, dates.Compare("infinity", "2999-12-31"))
	assert.Equal(t, -1, dates.Compare("-infinity", "0001-01-01"))
	assert.True(t, dates.Equal("2024-01-01", "2024-01-01"))
}

func TestCheckBound(t *testing.T) {
	assert.NoError(t, numbers.CheckBound("42"))
	assert.NoError(t, numbers.CheckBound(" -2.5 "))
	assert.NoError(t, numbers.CheckBound("infinity"))
	assert.NoError(t, dates.CheckBound("2024-01-01"))

	err := numbers.CheckBound("12abc")
	require.ErrorIs(t, err, ErrInvalidBound)
	assert.Contains(t, err.Error(), `"12abc" for integer`)

	assert.ErrorIs(t, dates.CheckBound(""), ErrInvalidBound)
	assert.ErrorIs(t, numbers.CheckInterval(Interval{From: "1", Until: "ten"}), ErrInvalidBound)
	assert.NoError(t, numbers.CheckInterval(Interval{From: "1", Until: "10"}))
}

func TestCompareNumeric_UnparsableIsNotZero(t *testing.T) {
	// "x" must not collapse onto 0 and compare equal to it.
	assert.NotEqual(t, 0, numbers.Compare("x", "0"))
	assert.False(t, numbers.Equal("x", "0.0"))
}

func TestUnitSteps(t *testing.T) {
	v, ok := dates.MinusOneUnit("2024-03-01")
	require.True(t, ok)
	assert.Equal(t, "2024-02-29", v)

	v, ok = dates.PlusOneUnit("2023-12-31")
	require.True(t, ok)
	assert.Equal(t, "2024-01-01", v)

	v, ok = numbers.MinusOneUnit("10")
	require.True(t, ok)
	assert.Equal(t, "9", v)

	v, ok = dates.MinusOneUnit("infinity")
	require.True(t, ok)
	assert.Equal(t, "infinity", v)

	_, ok = dates.MinusOneUnit("2024-01-01 10:00:00")
	assert.False(t, ok)
}

func TestFormatRange(t *testing.T) {
	assert.Equal(t, "[2024-01-01,infinity)", FormatRange("2024-01-01", "infinity"))
	assert.Equal(t, `["2024-01-01 10:00:00","2024-01-02 00:00:00")`,
		FormatRange("2024-01-01 10:00:00", "2024-01-02 00:00:00"))
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		in   string
		want Interval
	}{
		{"[2024-01-01,2025-01-01)", Interval{"2024-01-01", "2025-01-01"}},
		{`["2024-01-01 10:00:00","2024-01-02 00:00:00")`, Interval{"2024-01-01 10:00:00", "2024-01-02 00:00:00"}},
		{"[1,)", Interval{"1", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRange(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if tt.want.Until != "" {
				assert.Equal(t, tt.in, got.String())
			}
		})
	}

	_, err := ParseRange("(1,2]")
	require.Error(t, err)
	_, err = ParseRange(`["abc,2)`)
	require.Error(t, err)
}

func TestOverlapAndCovers(t *testing.T) {
	a := Interval{"2024-01-01", "2024-06-01"}
	b := Interval{"2024-06-01", "2024-12-01"}
	c := Interval{"2024-03-01", "2024-04-01"}

	assert.False(t, dates.Overlap(a, b), "adjacent half-open intervals do not overlap")
	assert.True(t, dates.Overlap(a, c))
	assert.True(t, dates.Covers(a, c))
	assert.False(t, dates.Covers(c, a))
	assert.True(t, dates.Empty(Interval{"2024-01-01", "2024-01-01"}))
}
