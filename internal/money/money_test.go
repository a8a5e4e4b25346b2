package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDiv(t *testing.T) {
	res, err := Div(d("10"), d("4"))
	require.NoError(t, err)
	assert.True(t, res.Equal(d("2.5")))

	_, err = Div(d("10"), decimal.Zero)
	assert.ErrorIs(t, err, ErrDivideByZero)

	assert.True(t, DivOrZero(d("10"), decimal.Zero).IsZero())
}

func TestRoundIrr(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.5", "2"},
		{"2.5", "3"},
		{"2.4999", "2"},
		{"-1.5", "-2"},
		{"1000000.49", "1000000"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, RoundIrr(d(tt.in)).String())
		})
	}
}

func TestRoundIrrIsIdempotent(t *testing.T) {
	v := d("123456789.5")
	once := RoundIrr(v)
	assert.True(t, once.Equal(RoundIrr(once)))
}

func TestFloorIrr(t *testing.T) {
	assert.Equal(t, "99", FloorIrr(d("99.999")).String())
	assert.Equal(t, "-100", FloorIrr(d("-99.1")).String())
}

func TestRoundCrypto(t *testing.T) {
	assert.Equal(t, "0.12345679", RoundCrypto(d("0.123456789")).String())
	assert.Equal(t, "1", RoundCrypto(d("1.000000001")).String())
}

func TestPercent(t *testing.T) {
	assert.True(t, Percent(d("25"), d("200")).Equal(d("12.5")))
	assert.True(t, Percent(d("25"), decimal.Zero).IsZero())
	assert.True(t, OfPercent(d("200"), d("12.5")).Equal(d("25")))
}

func TestSpread(t *testing.T) {
	spread := FromBps(30)
	assert.True(t, spread.Equal(d("0.003")))

	net := NetOfSpread(d("1000"), spread)
	assert.True(t, net.Equal(d("997")))
	assert.True(t, GrossOfSpread(net, spread).Equal(d("1000")))
}

func TestComparisons(t *testing.T) {
	assert.True(t, IsGreaterThan(d("1.0000001"), d("1")))
	assert.True(t, IsLessThan(d("0.9999999"), d("1")))
	assert.True(t, IsEqual(d("1.00"), d("1")))
	assert.False(t, IsEqual(d("1.00000001"), d("1")))

	assert.True(t, Min(d("1"), d("2")).Equal(d("1")))
	assert.True(t, Max(d("1"), d("2")).Equal(d("2")))
	assert.True(t, Abs(d("-3")).Equal(d("3")))
	assert.True(t, Sum(d("1"), d("2"), d("3")).Equal(d("6")))
}
