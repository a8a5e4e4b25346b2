// Package assets is the static asset catalogue: which layer each asset
// belongs to, the intra-layer weights and the target allocation presets.
package assets

import (
	"errors"
	"fmt"

	"github.com/KotFed0t/blu_rebalancer/internal/model"
	"github.com/shopspring/decimal"
)

var ErrUnknownPreset = errors.New("unknown target preset")

type AssetWeight struct {
	AssetID model.AssetID
	Weight  decimal.Decimal
}

// Weights holds the intra-layer target weights per layer, in registry order.
// Weights within a layer sum to exactly 1.
type Weights map[model.Layer][]AssetWeight

func (w Weights) Of(layer model.Layer, assetID model.AssetID) decimal.Decimal {
	for _, aw := range w[layer] {
		if aw.AssetID == assetID {
			return aw.Weight
		}
	}
	return decimal.Zero
}

type Registry struct {
	layerOf map[model.AssetID]model.Layer
	static  Weights
}

func w(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// NewRegistry returns the catalogue of the fifteen tradable assets.
func NewRegistry() *Registry {
	static := Weights{
		model.Foundation: {
			{model.USDT, w("0.40")},
			{model.PAXG, w("0.30")},
			{model.IRRFixedIncome, w("0.30")},
		},
		model.Growth: {
			{model.BTC, w("0.25")},
			{model.ETH, w("0.20")},
			{model.BNB, w("0.15")},
			{model.XRP, w("0.10")},
			{model.KAG, w("0.15")},
			{model.QQQ, w("0.15")},
		},
		model.Upside: {
			{model.SOL, w("0.20")},
			{model.TON, w("0.18")},
			{model.LINK, w("0.18")},
			{model.AVAX, w("0.16")},
			{model.MATIC, w("0.14")},
			{model.ARB, w("0.14")},
		},
	}

	layerOf := make(map[model.AssetID]model.Layer, 15)
	for layer, aws := range static {
		for _, aw := range aws {
			layerOf[aw.AssetID] = layer
		}
	}

	return &Registry{layerOf: layerOf, static: static}
}

func (r *Registry) LayerOf(assetID model.AssetID) (model.Layer, bool) {
	l, ok := r.layerOf[assetID]
	return l, ok
}

func (r *Registry) Valid(assetID model.AssetID) bool {
	_, ok := r.layerOf[assetID]
	return ok
}

// AssetsOf returns the layer's assets in a stable order.
func (r *Registry) AssetsOf(layer model.Layer) []model.AssetID {
	aws := r.static[layer]
	res := make([]model.AssetID, 0, len(aws))
	for _, aw := range aws {
		res = append(res, aw.AssetID)
	}
	return res
}

// All returns every asset, layer by layer.
func (r *Registry) All() []model.AssetID {
	res := make([]model.AssetID, 0, len(r.layerOf))
	for _, l := range model.Layers {
		res = append(res, r.AssetsOf(l)...)
	}
	return res
}

func (r *Registry) StaticWeights() Weights {
	res := make(Weights, len(r.static))
	for l, aws := range r.static {
		res[l] = append([]AssetWeight(nil), aws...)
	}
	return res
}

type Preset string

const (
	Conservative Preset = "CONSERVATIVE"
	Balanced     Preset = "BALANCED"
	Aggressive   Preset = "AGGRESSIVE"
)

// TargetFor returns the layer split for a risk preset.
func TargetFor(p Preset) (model.Allocation, error) {
	switch p {
	case Conservative:
		return model.NewAllocation(65, 30, 5), nil
	case Balanced:
		return model.NewAllocation(50, 35, 15), nil
	case Aggressive:
		return model.NewAllocation(35, 40, 25), nil
	}
	return model.Allocation{}, fmt.Errorf("%w: %s", ErrUnknownPreset, p)
}
