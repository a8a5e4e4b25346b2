package tgCallback

// Callback button uniques. The payload after the unique carries the mode.
const (
	ConfirmRebalance string = "confirm_rebalance"
	CancelRebalance  string = "cancel_rebalance"
	ExecuteRebalance string = "execute_rebalance"
	ExportReport     string = "export_report"
)
