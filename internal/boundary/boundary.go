// Package boundary labels how risky a portfolio mutation is.
package boundary

import (
	"github.com/KotFed0t/blu_rebalancer/internal/model"
	"github.com/shopspring/decimal"
)

var transitions = map[model.PortfolioStatus]map[model.PortfolioStatus]model.Boundary{
	model.StatusBalanced: {
		model.StatusBalanced:          model.BoundarySafe,
		model.StatusSlightlyOff:       model.BoundaryDrift,
		model.StatusAttentionRequired: model.BoundaryStructural,
	},
	model.StatusSlightlyOff: {
		model.StatusBalanced:          model.BoundarySafe,
		model.StatusSlightlyOff:       model.BoundaryDrift,
		model.StatusAttentionRequired: model.BoundaryStructural,
	},
	model.StatusAttentionRequired: {
		model.StatusBalanced:          model.BoundarySafe,
		model.StatusSlightlyOff:       model.BoundaryDrift,
		model.StatusAttentionRequired: model.BoundaryStress,
	},
}

// Classify returns SAFE for any change that reduces drift, otherwise looks
// the (before, after) status pair up in the transition table. Unknown
// statuses are treated as the worst case.
func Classify(before, after model.PortfolioStatus, movesTowardTarget bool) model.Boundary {
	if movesTowardTarget {
		return model.BoundarySafe
	}
	if row, ok := transitions[before]; ok {
		if b, ok := row[after]; ok {
			return b
		}
	}
	return model.BoundaryStress
}

type StatusFunc func(drift decimal.Decimal) model.PortfolioStatus

// ForDrift classifies a change from driftBefore to driftAfter.
func ForDrift(driftBefore, driftAfter decimal.Decimal, status StatusFunc) model.Boundary {
	return Classify(status(driftBefore), status(driftAfter), driftAfter.LessThan(driftBefore))
}
