// Package wallet provides the reference account and factory implementations
// the engine's tests and the sample deployments run against. Production
// accounts are expected to bring their own validation rules; the entrypoint
// only sees the capability interfaces.
package wallet

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/JuggerNaut63/AA/core/chainio/signer"
	"github.com/JuggerNaut63/AA/core/entrypoint"
	"github.com/JuggerNaut63/AA/pkg/erc4337/userop"
)

// Per-call flat gas charges. Real contracts meter per opcode; the reference
// implementations charge representative flat amounts so cost accounting
// stays deterministic.
const (
	GasValidate = 30_000
	GasExecute  = 21_000
	GasDeploy   = 32_000
)

var (
	ErrWrongSignature = errors.New("wrong signature")
	ErrInvalidNonce   = errors.New("invalid account nonce")

	executeABI abi.ABI
)

const executeABIJSON = `[{"type":"function","name":"execute","inputs":[` +
	`{"name":"target","type":"address"},` +
	`{"name":"value","type":"uint256"},` +
	`{"name":"data","type":"bytes"}]}]`

func init() {
	var err error
	executeABI, err = abi.JSON(strings.NewReader(executeABIJSON))
	if err != nil {
		panic(fmt.Errorf("invalid execute ABI: %w", err))
	}
}

// PackExecute builds the callData dispatching a call through a
// SimpleAccount, mirroring the on-chain execute(target, value, data) shape.
func PackExecute(target common.Address, ethValue *big.Int, calldata []byte) ([]byte, error) {
	if ethValue == nil {
		ethValue = new(big.Int)
	}
	return executeABI.Pack("execute", target, ethValue, calldata)
}

// SimpleAccount is an ECDSA-owned smart wallet: one owner key, a sequential
// nonce, and a native balance it tops its entrypoint deposit up from.
type SimpleAccount struct {
	Address common.Address
	Owner   common.Address

	// Balance is the wallet's own funds, spent on deposit top-ups and
	// value transfers.
	Balance *big.Int

	nonce uint64
}

func NewSimpleAccount(address, owner common.Address) *SimpleAccount {
	return &SimpleAccount{
		Address: address,
		Owner:   owner,
		Balance: new(big.Int),
	}
}

// Nonce returns the next expected operation nonce.
func (a *SimpleAccount) Nonce() uint64 {
	return a.nonce
}

// ValidateUserOp implements the account leg of the validation phase:
// nonce check, owner signature over the request id, and prefund top-up.
//
// A structurally broken signature reverts with ErrWrongSignature; a
// well-formed signature by the wrong key reports sigFailed through
// validationData instead, so off-chain simulation can tell the two apart.
func (a *SimpleAccount) ValidateUserOp(env *entrypoint.CallEnv, op *userop.UserOperation, requestID common.Hash, missingAccountFunds *big.Int) (*big.Int, error) {
	if err := env.Gas.UseGas(GasValidate); err != nil {
		return nil, err
	}

	if op.Nonce == nil || !op.Nonce.IsUint64() || op.Nonce.Uint64() != a.nonce {
		return nil, ErrInvalidNonce
	}
	prevNonce := a.nonce
	env.World.Journal(func() { a.nonce = prevNonce })
	a.nonce++

	recovered, err := signer.RecoverAddress(requestID.Bytes(), op.Signature)
	if err != nil {
		return nil, ErrWrongSignature
	}
	sigFailed := recovered != a.Owner

	if missingAccountFunds != nil && missingAccountFunds.Sign() > 0 {
		if a.Balance.Cmp(missingAccountFunds) < 0 {
			return nil, fmt.Errorf("account balance %s cannot cover prefund shortfall %s", a.Balance, missingAccountFunds)
		}
		a.spend(env, missingAccountFunds)
		if err := env.Ledger.DepositTo(a.Address, missingAccountFunds); err != nil {
			return nil, err
		}
	}

	return entrypoint.PackValidationData(sigFailed, 0, 0), nil
}

// Execute unpacks execute(target, value, data) and dispatches to the target
// contract under the call gas budget.
func (a *SimpleAccount) Execute(env *entrypoint.CallEnv, callData []byte) error {
	if err := env.Gas.UseGas(GasExecute); err != nil {
		return err
	}

	target, value, data, err := unpackExecute(callData)
	if err != nil {
		return fmt.Errorf("malformed execute calldata: %w", err)
	}

	if value.Sign() > 0 {
		if a.Balance.Cmp(value) < 0 {
			return fmt.Errorf("account balance %s cannot cover transfer %s", a.Balance, value)
		}
		a.spend(env, value)
	}

	callee, ok := env.World.CallableAt(target)
	if !ok {
		return fmt.Errorf("call target %s not deployed", target.Hex())
	}
	return callee.Call(env, data)
}

// spend debits the wallet balance, journaled so a rolled-back operation
// restores it.
func (a *SimpleAccount) spend(env *entrypoint.CallEnv, amount *big.Int) {
	prev := new(big.Int).Set(a.Balance)
	env.World.Journal(func() { a.Balance.Set(prev) })
	a.Balance.Sub(a.Balance, amount)
}

func unpackExecute(callData []byte) (common.Address, *big.Int, []byte, error) {
	method := executeABI.Methods["execute"]
	if len(callData) < 4 {
		return common.Address{}, nil, nil, errors.New("calldata too short")
	}
	args, err := method.Inputs.Unpack(callData[4:])
	if err != nil {
		return common.Address{}, nil, nil, err
	}
	target := args[0].(common.Address)
	value := args[1].(*big.Int)
	data := args[2].([]byte)
	return target, value, data, nil
}
