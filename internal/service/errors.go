package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound               = errors.New("error not found")
	ErrValidation             = errors.New("error validation failed")
	ErrRebalanceCooldown      = errors.New("error rebalance cooldown not elapsed")
	ErrNoRebalanceNeeded      = errors.New("error no rebalance needed")
	ErrNoTrades               = errors.New("error no trades")
	ErrAcknowledgmentRequired = errors.New("error acknowledgment required")
	ErrInsufficientFunds      = errors.New("error insufficient funds")
	ErrAlreadyExists          = errors.New("error already exists")
	ErrFrozenHolding          = errors.New("error holding is frozen")
	ErrConflict               = errors.New("error concurrent update conflict")
)

const (
	CodeNotFound               = "NOT_FOUND"
	CodeValidation             = "VALIDATION_ERROR"
	CodeRebalanceCooldown      = "REBALANCE_COOLDOWN"
	CodeNoRebalanceNeeded      = "NO_REBALANCE_NEEDED"
	CodeNoTrades               = "NO_TRADES"
	CodeAcknowledgmentRequired = "ACKNOWLEDGMENT_REQUIRED"
	CodeInsufficientFunds      = "INSUFFICIENT_FUNDS"
	CodeAlreadyExists          = "ALREADY_EXISTS"
	CodeFrozenHolding          = "HOLDING_FROZEN"
	CodeConflict               = "CONFLICT"
	CodeInternal               = "INTERNAL"
)

var codes = []struct {
	err  error
	code string
}{
	{ErrNotFound, CodeNotFound},
	{ErrValidation, CodeValidation},
	{ErrRebalanceCooldown, CodeRebalanceCooldown},
	{ErrNoRebalanceNeeded, CodeNoRebalanceNeeded},
	{ErrNoTrades, CodeNoTrades},
	{ErrAcknowledgmentRequired, CodeAcknowledgmentRequired},
	{ErrInsufficientFunds, CodeInsufficientFunds},
	{ErrAlreadyExists, CodeAlreadyExists},
	{ErrFrozenHolding, CodeFrozenHolding},
	{ErrConflict, CodeConflict},
}

// Code maps an error to its stable client-facing code.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

type CooldownError struct {
	HoursRemaining int
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s: %dh remaining", ErrRebalanceCooldown, e.HoursRemaining)
}

func (e *CooldownError) Unwrap() error {
	return ErrRebalanceCooldown
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
