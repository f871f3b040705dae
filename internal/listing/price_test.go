package listing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1.234,56 €", 1234.56, true},
		{"350.000", 350000, true},
		{"€ 1.250.000", 1250000, true},
		{"1,250,000", 1250000, true},
		{"12,5", 12.5, true},
		{"1,500", 1500, true},
		{"0.500", 0.5, true},
		{"99.5", 99.5, true},
		{"$2,100,000 USD", 2100000, true},
		{"Price on request", 0, false},
		{"", 0, false},
		{"...", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseAmount(tc.in)
		require.Equal(t, tc.ok, ok, tc.in)
		require.InDelta(t, tc.want, got, 1e-9, tc.in)
	}
}
