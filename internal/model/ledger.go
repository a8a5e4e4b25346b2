package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Boundary string

const (
	BoundarySafe       Boundary = "SAFE"
	BoundaryDrift      Boundary = "DRIFT"
	BoundaryStructural Boundary = "STRUCTURAL"
	BoundaryStress     Boundary = "STRESS"
)

// RequiresAcknowledgment reports whether a mutation labelled b needs explicit
// user confirmation.
func (b Boundary) RequiresAcknowledgment() bool {
	return b == BoundaryStructural || b == BoundaryStress
}

type EntryType string

const (
	EntryRebalance     EntryType = "REBALANCE"
	EntryDeposit       EntryType = "DEPOSIT"
	EntryPositionClose EntryType = "POSITION_CLOSE"
)

type ActionType string

const (
	ActionRebalance     ActionType = "REBALANCE"
	ActionDeposit       ActionType = "DEPOSIT"
	ActionPositionClose ActionType = "POSITION_CLOSE"
)

// LedgerEntry is an append-only audit record of one mutation.
type LedgerEntry struct {
	ID          uuid.UUID
	PortfolioID int64
	EntryType   EntryType
	Before      PortfolioSnapshot
	After       PortfolioSnapshot
	Boundary    Boundary
	Message     string
	Metadata    map[string]any
	CreatedAt   time.Time
}

type ActionLog struct {
	PortfolioID int64
	ActionType  ActionType
	Boundary    Boundary
	Message     string
	AmountIrr   *decimal.Decimal
	CreatedAt   time.Time
}
