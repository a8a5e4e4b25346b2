package assets

import (
	"math"

	"github.com/KotFed0t/blu_rebalancer/internal/model"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

type WeightStrategy string

const (
	StrategyStatic WeightStrategy = "STATIC"
	StrategyHRAM   WeightStrategy = "HRAM"
)

// HRAM factor parameters.
const (
	VolWindow  = 30
	MomWindow  = 50
	CorrWindow = 60

	minWeight     = 0.05
	maxWeight     = 0.40
	clampPasses   = 3
	weightPlaces  = 6
	daysPerYear   = 365
	momentumGain  = 0.3
	momentumFloor = 0.1
	corrPenalty   = 0.2
	liquidBonus   = 1.1
)

var liquidAssets = map[model.AssetID]bool{
	model.BTC:  true,
	model.ETH:  true,
	model.USDT: true,
}

// Lookback is the number of daily closes HRAM needs per asset.
func Lookback() int {
	return max(VolWindow, MomWindow, CorrWindow)
}

// HRAMWeights derives intra-layer weights from daily close history
// (ascending by date). A layer falls back to static weights when any of its
// assets has fewer than Lookback closes. The second return value reports
// whether at least one layer used the dynamic weights.
func (r *Registry) HRAMWeights(history map[model.AssetID][]float64) (Weights, bool) {
	res := r.StaticWeights()
	dynamic := false

	lookback := Lookback()
	for _, layer := range model.Layers {
		ids := r.AssetsOf(layer)
		windows := make([][]float64, 0, len(ids))
		enough := true
		for _, id := range ids {
			closes := history[id]
			if len(closes) < lookback {
				enough = false
				break
			}
			windows = append(windows, closes[len(closes)-lookback:])
		}
		if !enough {
			continue
		}

		raw := hramRaw(ids, windows)
		if raw == nil {
			continue
		}

		res[layer] = toDecimalWeights(ids, clamp(raw))
		dynamic = true
	}

	return res, dynamic
}

func hramRaw(ids []model.AssetID, windows [][]float64) []float64 {
	returns := make([][]float64, len(windows))
	for i, win := range windows {
		returns[i] = pctChange(win)
	}

	raw := make([]float64, len(ids))
	total := 0.0
	for i, id := range ids {
		vol := stat.StdDev(returns[i][len(returns[i])-VolWindow:], nil) * math.Sqrt(daysPerYear)
		fRisk := 1 / (vol + 1e-6)

		win := windows[i]
		sma := stat.Mean(win[len(win)-MomWindow:], nil)
		fMom := momentumFloor
		if sma > 0 {
			fMom = math.Max(momentumFloor, 1+(win[len(win)-1]/sma-1)*momentumGain)
		}

		fCorr := 1 - meanCorrelation(returns, i)*corrPenalty

		fLiq := 1.0
		if liquidAssets[id] {
			fLiq = liquidBonus
		}

		raw[i] = fRisk * fMom * fCorr * fLiq
		if math.IsNaN(raw[i]) || math.IsInf(raw[i], 0) || raw[i] < 0 {
			return nil
		}
		total += raw[i]
	}

	if total <= 0 {
		return nil
	}
	for i := range raw {
		raw[i] /= total
	}
	return raw
}

// meanCorrelation averages the correlation of asset i with every asset of the
// layer (itself included) over the last CorrWindow returns, skipping
// undefined pairs.
func meanCorrelation(returns [][]float64, i int) float64 {
	x := tail(returns[i], CorrWindow)
	sum, n := 0.0, 0
	for j := range returns {
		c := stat.Correlation(x, tail(returns[j], CorrWindow), nil)
		if math.IsNaN(c) {
			continue
		}
		sum += c
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func clamp(w []float64) []float64 {
	res := append([]float64(nil), w...)
	for pass := 0; pass < clampPasses; pass++ {
		total := 0.0
		for _, v := range res {
			total += v
		}
		for i, v := range res {
			res[i] = math.Max(minWeight, math.Min(maxWeight, v/total))
		}
	}

	total := 0.0
	for _, v := range res {
		total += v
	}
	for i := range res {
		res[i] /= total
	}
	return res
}

// toDecimalWeights rounds to weightPlaces and gives the rounding remainder to
// the last asset so the layer sums to exactly 1.
func toDecimalWeights(ids []model.AssetID, w []float64) []AssetWeight {
	res := make([]AssetWeight, len(ids))
	sum := decimal.Zero
	for i, id := range ids {
		var d decimal.Decimal
		if i == len(ids)-1 {
			d = decimal.NewFromInt(1).Sub(sum)
		} else {
			d = decimal.NewFromFloat(w[i]).Round(weightPlaces)
			sum = sum.Add(d)
		}
		res[i] = AssetWeight{AssetID: id, Weight: d}
	}
	return res
}

func pctChange(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	res := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev := closes[i-1]
		if prev == 0 {
			res = append(res, 0)
			continue
		}
		res = append(res, closes[i]/prev-1)
	}
	return res
}

func tail(xs []float64, n int) []float64 {
	if len(xs) <= n {
		return xs
	}
	return xs[len(xs)-n:]
}
