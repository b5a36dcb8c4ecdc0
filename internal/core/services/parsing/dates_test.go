package parsing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Time
	}{
		{"2018-10-13", time.Date(2018, 10, 13, 0, 0, 0, 0, time.UTC)},
		{"2018-10-13 03:27:00", time.Date(2018, 10, 13, 3, 27, 0, 0, time.UTC)},
		{"2018-10-13T03:27:00", time.Date(2018, 10, 13, 3, 27, 0, 0, time.UTC)},
		{"13/10/2018", time.Date(2018, 10, 13, 0, 0, 0, 0, time.UTC)},
		{"13 October 2018", time.Date(2018, 10, 13, 0, 0, 0, 0, time.UTC)},
		{"October 13, 2018", time.Date(2018, 10, 13, 0, 0, 0, 0, time.UTC)},
		{"13 Oct 2018", time.Date(2018, 10, 13, 0, 0, 0, 0, time.UTC)},
		{"13 octobre 2018", time.Date(2018, 10, 13, 0, 0, 0, 0, time.UTC)},
		{"14 Février 1985", time.Date(1985, 2, 14, 0, 0, 0, 0, time.UTC)},
		{"le 1er août 1990", time.Date(1990, 8, 1, 0, 0, 0, 0, time.UTC)},
		{"mardi 3 décembre 2019", time.Date(2019, 12, 3, 0, 0, 0, 0, time.UTC)},
		{"  1980-05-20 ", time.Date(1980, 5, 20, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseDate(tt.input)
			if assert.True(t, ok) {
				assert.Equal(t, tt.expected, got)
			}
		})
	}
}

func TestParseDate_Rejects(t *testing.T) {
	for _, input := range []string{"", "yesterday", "2018-13-45", "32 janvier 2020"} {
		_, ok := ParseDate(input)
		assert.False(t, ok, input)
	}
}

func TestSameDay(t *testing.T) {
	a := time.Date(2023, 5, 1, 10, 12, 0, 0, time.UTC)
	assert.True(t, SameDay(a, time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, SameDay(a, time.Date(2023, 5, 2, 0, 0, 0, 0, time.UTC)))
}
