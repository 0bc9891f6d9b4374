package domain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRescale(t *testing.T) {
	cases := []struct {
		name   string
		amount string
		from   uint8
		to     uint8
		want   string
	}{
		{"same scale", "1000000", 6, 6, "1000000"},
		{"scale up", "1000000", 6, 18, "1000000000000000000"},
		{"scale down", "1000000000000000000", 18, 6, "1000000"},
		{"scale down truncates", "1999999999999", 18, 6, "0"},
		{"negative", "-5000000", 6, 18, "-5000000000000000000"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in, ok := new(big.Int).SetString(tc.amount, 10)
			require.True(t, ok)
			got := Rescale(in, tc.from, tc.to)
			assert.Equal(t, tc.want, got.String())
		})
	}
}

func TestRescaleDoesNotMutateInput(t *testing.T) {
	in := big.NewInt(1000000)
	Rescale(in, 6, 18)
	assert.Equal(t, "1000000", in.String())
}

func TestFormatUnits(t *testing.T) {
	cases := []struct {
		name     string
		amount   string
		decimals uint8
		want     string
	}{
		{"zero", "0", 18, "0"},
		{"whole", "5000000", 6, "5"},
		{"fraction", "5250000", 6, "5.25"},
		{"sub unit", "123", 6, "0.000123"},
		{"trims zeros", "1100000000000000000", 18, "1.1"},
		{"negative", "-2500000", 6, "-2.5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in, ok := new(big.Int).SetString(tc.amount, 10)
			require.True(t, ok)
			assert.Equal(t, tc.want, FormatUnits(in, tc.decimals))
		})
	}
}

func TestParseUnits(t *testing.T) {
	got, err := ParseUnits("1.5", 6)
	require.NoError(t, err)
	assert.Equal(t, "1500000", got.String())

	got, err = ParseUnits("1000000", 18)
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000000000", got.String())

	_, err = ParseUnits("1.1234567", 6)
	assert.Error(t, err)

	_, err = ParseUnits("abc", 6)
	assert.Error(t, err)
}

func TestParseUnitsFormatRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "1", "1.5", "123456.789", "0.000001"} {
		got, err := ParseUnits(s, 6)
		require.NoError(t, err)
		assert.Equal(t, s, FormatUnits(got, 6))
	}
}

func TestClaimableNow(t *testing.T) {
	assert.Equal(t, "70", ClaimableNow(big.NewInt(100), big.NewInt(30)).String())
	assert.Equal(t, "100", ClaimableNow(big.NewInt(100), nil).String())
	assert.Equal(t, "0", ClaimableNow(big.NewInt(30), big.NewInt(100)).String())
	assert.Equal(t, "0", ClaimableNow(nil, big.NewInt(5)).String())
}
