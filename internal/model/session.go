package model

type State int

const (
	DefaultState State = iota
	ExpectingDepositAmount
	ExpectingRebalanceConfirmation
)

type Session struct {
	State State
	Mode  RebalanceMode
}
