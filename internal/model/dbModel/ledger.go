package dbModel

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LedgerEntry struct {
	EntryID        int64     `db:"entry_id"`
	PublicID       uuid.UUID `db:"public_id"`
	PortfolioID    int64     `db:"portfolio_id"`
	EntryType      string    `db:"entry_type"`
	Boundary       string    `db:"boundary"`
	Message        string    `db:"message"`
	BeforeSnapshot []byte    `db:"before_snapshot"`
	AfterSnapshot  []byte    `db:"after_snapshot"`
	Metadata       []byte    `db:"metadata"`
	CreatedAt      time.Time `db:"dt_create"`
}

type ActionLog struct {
	ActionID    int64               `db:"action_id"`
	PortfolioID int64               `db:"portfolio_id"`
	ActionType  string              `db:"action_type"`
	Boundary    string              `db:"boundary"`
	Message     string              `db:"message"`
	AmountIrr   decimal.NullDecimal `db:"amount_irr"`
	CreatedAt   time.Time           `db:"dt_create"`
}

// SnapshotDoc is the jsonb shape stored in ledger before/after columns.
type SnapshotDoc struct {
	CashIrr          string            `json:"cash_irr"`
	HoldingsValueIrr string            `json:"holdings_value_irr"`
	TotalValueIrr    string            `json:"total_value_irr"`
	Allocation       map[string]string `json:"allocation"`
	DriftPct         string            `json:"drift_pct"`
	Status           string            `json:"status"`
	Holdings         []SnapshotHolding `json:"holdings"`
}

type SnapshotHolding struct {
	AssetID  string `json:"asset_id"`
	Quantity string `json:"quantity"`
	ValueIrr string `json:"value_irr"`
	Frozen   bool   `json:"frozen"`
}
