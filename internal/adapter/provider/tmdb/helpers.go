package tmdb

import (
	"slices"
	"strconv"
)

func yearKey(year *int) string {
	if year == nil {
		return "any"
	}
	return strconv.Itoa(*year)
}

// releaseYear extracts the year from a YYYY-MM-DD date; 0 when unparsable.
func releaseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return y
}

func sortByOrder(cast []castMember) {
	slices.SortStableFunc(cast, func(a, b castMember) int {
		return a.Order - b.Order
	})
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func positiveInt(v int) *int {
	if v <= 0 {
		return nil
	}
	return &v
}

func positiveInt64(v int64) *int64 {
	if v <= 0 {
		return nil
	}
	return &v
}

func positiveFloat(v float64) *float64 {
	if v <= 0 {
		return nil
	}
	return &v
}
