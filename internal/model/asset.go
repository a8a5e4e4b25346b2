package model

type AssetID string

const (
	USDT           AssetID = "USDT"
	PAXG           AssetID = "PAXG"
	IRRFixedIncome AssetID = "IRR_FIXED_INCOME"

	BTC AssetID = "BTC"
	ETH AssetID = "ETH"
	BNB AssetID = "BNB"
	XRP AssetID = "XRP"
	KAG AssetID = "KAG"
	QQQ AssetID = "QQQ"

	SOL   AssetID = "SOL"
	TON   AssetID = "TON"
	LINK  AssetID = "LINK"
	AVAX  AssetID = "AVAX"
	MATIC AssetID = "MATIC"
	ARB   AssetID = "ARB"
)

type Layer string

const (
	Foundation Layer = "FOUNDATION"
	Growth     Layer = "GROWTH"
	Upside     Layer = "UPSIDE"
)

// Layers is the fixed iteration order used by every computation.
var Layers = []Layer{Foundation, Growth, Upside}

func (l Layer) Valid() bool {
	switch l {
	case Foundation, Growth, Upside:
		return true
	}
	return false
}
