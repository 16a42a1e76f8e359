// Package model holds the JSON shapes the HTTP API exchanges with clients.
package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/JuggerNaut63/AA/core/ledger"
)

// DepositInfo is the API view of one account's ledger record.
type DepositInfo struct {
	Account         common.Address `json:"account"`
	Deposit         *big.Int       `json:"deposit"`
	Stake           *big.Int       `json:"stake"`
	Staked          bool           `json:"staked"`
	UnstakeDelaySec uint32         `json:"unstakeDelaySec"`
	WithdrawTime    int64          `json:"withdrawTime"`
}

func DepositInfoFromRecord(account common.Address, rec *ledger.DepositRecord) *DepositInfo {
	return &DepositInfo{
		Account:         account,
		Deposit:         rec.Deposit,
		Stake:           rec.Stake,
		Staked:          rec.Staked(),
		UnstakeDelaySec: rec.UnstakeDelaySec,
		WithdrawTime:    rec.WithdrawTime,
	}
}

// DepositRequest funds an account's deposit.
type DepositRequest struct {
	Account string `json:"account" validate:"required,eth_addr"`
	Amount  string `json:"amount" validate:"required"`
}

// WithdrawRequest moves deposit out of the caller's record.
type WithdrawRequest struct {
	Caller    string `json:"caller" validate:"required,eth_addr"`
	Recipient string `json:"recipient" validate:"required,eth_addr"`
	Amount    string `json:"amount" validate:"required"`
}

// StakeRequest adds stake with an unstake delay.
type StakeRequest struct {
	Caller          string `json:"caller" validate:"required,eth_addr"`
	UnstakeDelaySec uint32 `json:"unstakeDelaySec" validate:"gt=0"`
	Amount          string `json:"amount" validate:"required"`
}

// UnlockStakeRequest starts the caller's stake cooldown.
type UnlockStakeRequest struct {
	Caller string `json:"caller" validate:"required,eth_addr"`
}

// WithdrawStakeRequest pays out an unlocked stake.
type WithdrawStakeRequest struct {
	Caller    string `json:"caller" validate:"required,eth_addr"`
	Recipient string `json:"recipient" validate:"required,eth_addr"`
}
