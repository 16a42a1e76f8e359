package entrypoint

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/JuggerNaut63/AA/core/ledger"
	"github.com/JuggerNaut63/AA/pkg/erc4337/userop"
)

// PostOpMode tells a paymaster's post-execution hook how the operation went.
type PostOpMode int

const (
	PostOpSucceeded PostOpMode = iota
	PostOpReverted
)

// CallEnv is what the entrypoint hands to untrusted account and paymaster
// code for one nested call: a metered gas budget, the batch ledger overlay,
// the contract registry, and the ambient clock/fee context. Everything a
// callee does must go through it so the pipeline can roll the call back.
type CallEnv struct {
	Gas        *GasMeter
	Ledger     *ledger.Tx
	World      *World
	Now        time.Time
	BaseFee    *big.Int
	EntryPoint common.Address
	ChainID    *big.Int
}

// Account is the self-validation and execution surface of a smart wallet.
// Both calls are untrusted and budget-limited; errors are captured by the
// pipeline, never propagated as panics.
type Account interface {
	// ValidateUserOp authenticates the operation against the account's own
	// rule and pays missingAccountFunds into its entrypoint deposit. The
	// returned validationData packs (sigFailed, validAfter, validUntil).
	ValidateUserOp(env *CallEnv, op *userop.UserOperation, requestID common.Hash, missingAccountFunds *big.Int) (*big.Int, error)

	// Execute dispatches the operation's callData.
	Execute(env *CallEnv, callData []byte) error
}

// Paymaster optionally sponsors an operation's gas from its own deposit.
type Paymaster interface {
	// ValidatePaymasterUserOp decides whether to sponsor the operation.
	// The returned context, if any, is forwarded to PostOp.
	ValidatePaymasterUserOp(env *CallEnv, op *userop.UserOperation, requestID common.Hash, maxCost *big.Int) (context []byte, validationData *big.Int, err error)

	// PostOp settles after execution with the final gas cost.
	PostOp(env *CallEnv, mode PostOpMode, context []byte, actualGasCost *big.Int) error
}

// Factory deploys accounts from initCode calldata. The entrypoint imposes no
// interface beyond "the deployed address must match the declared sender".
type Factory interface {
	Deploy(env *CallEnv, initData []byte) (common.Address, Account, error)
}

// Callable is any deployed contract an account's call can target.
type Callable interface {
	Call(env *CallEnv, input []byte) error
}

// World is the registry of deployed contracts the engine dispatches into.
// Every mutation made during an operation — deployments, and contract-local
// state changes reported through Journal — is recorded as an undo entry so
// a failed or simulated operation leaves no side effects.
type World struct {
	contracts map[common.Address]interface{}
	journal   []func()
}

func NewWorld() *World {
	return &World{contracts: make(map[common.Address]interface{})}
}

// Register installs a contract at an address outside of any operation
// (test fixtures, pre-deployed factories and paymasters).
func (w *World) Register(addr common.Address, contract interface{}) {
	w.contracts[addr] = contract
}

// Journal records an undo closure to run if the current operation is rolled
// back. Contracts must call this before mutating their own state, the same
// way on-chain state writes are reverted with the frame.
func (w *World) Journal(undo func()) {
	w.journal = append(w.journal, undo)
}

// deploy installs a contract during validation, journaled for rollback.
func (w *World) deploy(addr common.Address, contract interface{}) {
	w.contracts[addr] = contract
	w.journal = append(w.journal, func() { delete(w.contracts, addr) })
}

// HasCode reports whether anything is deployed at addr.
func (w *World) HasCode(addr common.Address) bool {
	_, ok := w.contracts[addr]
	return ok
}

func (w *World) AccountAt(addr common.Address) (Account, bool) {
	a, ok := w.contracts[addr].(Account)
	return a, ok
}

func (w *World) PaymasterAt(addr common.Address) (Paymaster, bool) {
	p, ok := w.contracts[addr].(Paymaster)
	return p, ok
}

func (w *World) FactoryAt(addr common.Address) (Factory, bool) {
	f, ok := w.contracts[addr].(Factory)
	return f, ok
}

func (w *World) CallableAt(addr common.Address) (Callable, bool) {
	c, ok := w.contracts[addr].(Callable)
	return c, ok
}

// Snapshot marks the journal for RevertTo.
func (w *World) Snapshot() int {
	return len(w.journal)
}

// commit discards undo entries back to snapshot without running them; the
// mutations they guard are now permanent.
func (w *World) commit(snapshot int) {
	w.journal = w.journal[:snapshot]
}

// RevertTo runs every undo entry journaled after the snapshot, newest first.
func (w *World) RevertTo(snapshot int) {
	for i := len(w.journal) - 1; i >= snapshot; i-- {
		w.journal[i]()
	}
	w.journal = w.journal[:snapshot]
}
