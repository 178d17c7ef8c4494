package delivery

import (
	"testing"
	"time"

	"github.com/petalpost/petalpost/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveMonth(t *testing.T) {
	tests := []struct {
		name     string
		month    types.CycleMonth
		expected []int
	}{
		{
			name:     "five_mondays",
			month:    types.CycleMonth{Year: 2024, Month: time.September},
			expected: []int{2, 9, 16, 23, 30},
		},
		{
			name:     "four_mondays",
			month:    types.CycleMonth{Year: 2024, Month: time.October},
			expected: []int{7, 14, 21, 28},
		},
		{
			name:     "non_leap_february",
			month:    types.CycleMonth{Year: 2026, Month: time.February},
			expected: []int{2, 9, 16, 23},
		},
		{
			name:     "leap_february_starting_thursday",
			month:    types.CycleMonth{Year: 2024, Month: time.February},
			expected: []int{5, 12, 19, 26},
		},
		{
			name:     "month_starting_on_monday",
			month:    types.CycleMonth{Year: 2025, Month: time.December},
			expected: []int{1, 8, 15, 22, 29},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal := ResolveMonth(tt.month, time.UTC)
			require.Len(t, cal.Mondays, len(tt.expected))
			for i, d := range cal.Mondays {
				assert.Equal(t, time.Monday, d.Weekday())
				assert.Equal(t, tt.expected[i], d.Day())
				assert.True(t, tt.month.Contains(d))
			}

			last, ok := cal.Date(types.OrdinalSlotLast)
			require.True(t, ok)
			assert.Equal(t, cal.Mondays[len(cal.Mondays)-1], last)

			first, ok := cal.Date(types.OrdinalSlotFirst)
			require.True(t, ok)
			assert.Equal(t, tt.expected[0], first.Day())
		})
	}
}

func TestResolveMonth_LastAliasesFourthInShortMonth(t *testing.T) {
	cal := ResolveMonth(types.CycleMonth{Year: 2024, Month: time.October}, time.UTC)

	fourth, ok := cal.Date(types.OrdinalSlotFourth)
	require.True(t, ok)
	last, ok := cal.Date(types.OrdinalSlotLast)
	require.True(t, ok)
	assert.Equal(t, fourth, last)
}

func TestResolveMonth_AcrossYearBoundary(t *testing.T) {
	loc, err := time.LoadLocation("Africa/Johannesburg")
	require.NoError(t, err)

	dec := ResolveMonth(types.CycleMonth{Year: 2024, Month: time.December}, loc)
	jan := ResolveMonth(types.CycleMonth{Year: 2024, Month: time.December}.Next(), loc)

	assert.Equal(t, 30, dec.Mondays[len(dec.Mondays)-1].Day())
	assert.Equal(t, 2025, jan.Mondays[0].Year())
	assert.Equal(t, 6, jan.Mondays[0].Day())
	assert.Equal(t, loc, jan.Mondays[0].Location())
}
