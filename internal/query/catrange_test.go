package query

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCategoryBounds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		id, low, high int
	}{
		{100, 100, 200},
		{110, 110, 120},
		{250, 250, 300},
		{205, 205, 210},
		{13005000, 13005000, 13010000},
		{7, 7, 14},
		{0, 0, 1},
		{-5, -5, -4},
	}
	for _, tc := range cases {
		low, high := CategoryBounds(tc.id)
		require.Equal(t, tc.low, low, "id %d", tc.id)
		require.Equal(t, tc.high, high, "id %d", tc.id)
	}
}
