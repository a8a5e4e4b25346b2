package rebalance

import (
	"testing"

	"github.com/KotFed0t/blu_rebalancer/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gapOf(gaps []model.GapAnalysis, layer model.Layer) model.GapAnalysis {
	for _, g := range gaps {
		if g.Layer == layer {
			return g
		}
	}
	return model.GapAnalysis{}
}

func TestAnalyzeGapsHoldingsOnly(t *testing.T) {
	s := snapshot(portfolio(20*billion, balanced(),
		holding(model.USDT, 40*billion, true),
		holding(model.PAXG, 20*billion, false),
		holding(model.BTC, 30*billion, false),
		holding(model.SOL, 10*billion, false),
	))

	gaps := AnalyzeGaps(s, model.HoldingsOnly)
	require.Len(t, gaps, 3)

	f := gapOf(gaps, model.Foundation)
	assert.Equal(t, "-10", f.GapPct.String())
	assert.Equal(t, "-10000000000", f.GapIrr.String())
	assert.Equal(t, "20000000000", f.SellableIrr.String())
	assert.Equal(t, "40000000000", f.FrozenIrr.String())

	g := gapOf(gaps, model.Growth)
	assert.Equal(t, "5", g.GapPct.String())
	assert.Equal(t, "5000000000", g.GapIrr.String())

	u := gapOf(gaps, model.Upside)
	assert.Equal(t, "5", u.GapPct.String())
	assert.Equal(t, "5000000000", u.GapIrr.String())
}

func TestAnalyzeGapsCashAware(t *testing.T) {
	s := snapshot(portfolio(20*billion, balanced(),
		holding(model.USDT, 60*billion, false),
		holding(model.BTC, 30*billion, false),
		holding(model.SOL, 10*billion, false),
	))

	for _, mode := range []model.RebalanceMode{model.HoldingsPlusCash, model.Smart} {
		gaps := AnalyzeGaps(s, mode)

		// base is 120B: foundation target 60B is already held
		f := gapOf(gaps, model.Foundation)
		assert.True(t, f.GapIrr.IsZero(), mode)
		// percentage gap stays on the holdings-only basis
		assert.Equal(t, "-10", f.GapPct.String(), mode)

		assert.Equal(t, "12000000000", gapOf(gaps, model.Growth).GapIrr.String(), mode)
		assert.Equal(t, "8000000000", gapOf(gaps, model.Upside).GapIrr.String(), mode)
	}
}

func TestAnalyzeGapsZeroHoldings(t *testing.T) {
	s := snapshot(portfolio(10*billion, balanced()))

	for _, g := range AnalyzeGaps(s, model.HoldingsOnly) {
		assert.True(t, g.GapPct.Equal(g.TargetPct), g.Layer)
		assert.True(t, g.GapIrr.IsZero(), g.Layer)
	}

	gaps := AnalyzeGaps(s, model.HoldingsPlusCash)
	assert.Equal(t, "5000000000", gapOf(gaps, model.Foundation).GapIrr.String())
	assert.Equal(t, "3500000000", gapOf(gaps, model.Growth).GapIrr.String())
	assert.Equal(t, "1500000000", gapOf(gaps, model.Upside).GapIrr.String())
	for _, g := range gaps {
		assert.True(t, g.GapPct.Equal(g.TargetPct), g.Layer)
	}
}
