package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBankersDivide(t *testing.T) {
	cases := []struct {
		a, b int64
		want int64
	}{
		{10000, 10000, 1},
		{5000, 10000, 0},
		{15000, 10000, 2},
		{25000, 10000, 2},
		{35000, 10000, 4},
		{14999, 10000, 1},
		{15001, 10000, 2},
		{4999, 10000, 0},
		{5001, 10000, 1},
		{0, 10000, 0},
		{-5000, 10000, 0},
		{-15000, 10000, -2},
		{-25001, 10000, -3},
		{15000, -10000, -2},
		{5, 2, 2},
		{7, 2, 4},
	}
	for _, tc := range cases {
		require.Equalf(t, tc.want, BankersDivide(tc.a, tc.b), "BankersDivide(%d, %d)", tc.a, tc.b)
	}
}

func TestFloorCentagons(t *testing.T) {
	require.Equal(t, int64(0), FloorCentagons(9999))
	require.Equal(t, int64(1), FloorCentagons(19999))
	require.Equal(t, int64(0), FloorCentagons(-20000))
}
