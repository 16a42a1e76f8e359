package entrypoint

import (
	"math/big"

	"github.com/JuggerNaut63/AA/core/ledger"
	"github.com/JuggerNaut63/AA/pkg/eip1559"
	"github.com/JuggerNaut63/AA/pkg/erc4337/userop"
)

// execOutcome is what one executed operation settles to.
type execOutcome struct {
	success       bool
	actualGasCost *big.Int
	actualGasUsed *big.Int
}

// executeOp runs the execution phase for a validated operation: debit the
// prefund, perform the account's call, run the paymaster's post-op hook,
// settle the refund. The account call failing is an outcome, not an error;
// an error return here means the operation must be rolled back entirely.
func (e *EntryPoint) executeOp(tx *ledger.Tx, op *userop.UserOperation, vr *ValidationResult) (*execOutcome, error) {
	if vr.SigFailed {
		return nil, validationFailed(ReasonSignatureError)
	}
	// the validity window is re-checked at the execution instant, not just
	// at validation: a batch assembled early must not execute expired ops
	now := uint64(e.now().Unix())
	if now < vr.ValidAfter || (vr.ValidUntil != 0 && now > vr.ValidUntil) {
		return nil, validationFailed(ReasonExpiredOrNotDue)
	}

	// debit before the account call: a reentrant handleOps sees the
	// correctly reduced balance
	if err := tx.ChargeFrom(vr.Payer, vr.Prefund); err != nil {
		return nil, &FatalInvariantError{Reason: "validated payer cannot cover prefund: " + err.Error()}
	}

	execMeter := NewGasMeter(bigToGas(op.CallGasLimit))
	execEnv := e.callEnv(tx, execMeter)

	// a reverting call aborts only its own nested scope: every side effect
	// it made is undone, but the gas it burned stays charged
	callSnap := tx.Snapshot()
	callWorldSnap := e.world.Snapshot()
	callErr := vr.account.Execute(execEnv, op.CallData)
	success := callErr == nil
	if callErr != nil {
		tx.RevertTo(callSnap)
		e.world.RevertTo(callWorldSnap)
		e.logger.Debug("account call reverted", "sender", op.Sender.Hex(), "requestId", vr.RequestID.Hex(), "err", callErr)
	}

	price := eip1559.EffectiveGasPrice(op.MaxFeePerGas, op.MaxPriorityFeePerGas, e.baseFee)

	// settlement arithmetic runs in big.Int: preVerificationGas is bounded
	// to 120 bits, well past what uint64 sums can carry
	actualGasUsed := new(big.Int).SetUint64(vr.GasUsed)
	actualGasUsed.Add(actualGasUsed, new(big.Int).SetUint64(execMeter.Used()))
	if op.PreVerificationGas != nil {
		actualGasUsed.Add(actualGasUsed, op.PreVerificationGas)
	}

	// the hook is quoted the cost accrued so far; its own gas is added on
	// top afterwards
	if op.HasPaymaster() && vr.PaymasterContext != nil {
		accruedCost := new(big.Int).Mul(actualGasUsed, price)
		postOpGas := e.runPostOp(tx, op, vr, success, accruedCost)
		actualGasUsed.Add(actualGasUsed, new(big.Int).SetUint64(postOpGas))
	}

	actualGasCost := new(big.Int).Mul(actualGasUsed, price)

	// prefund is sized conservatively; a cost above it cannot happen with a
	// correct validation phase
	if actualGasCost.Cmp(vr.Prefund) > 0 {
		return nil, &FatalInvariantError{Reason: "actual gas cost exceeds prefund"}
	}

	refund := new(big.Int).Sub(vr.Prefund, actualGasCost)
	if refund.Sign() > 0 {
		if err := tx.CreditTo(vr.Payer, refund); err != nil {
			return nil, err
		}
	}

	return &execOutcome{
		success:       success,
		actualGasCost: actualGasCost,
		actualGasUsed: actualGasUsed,
	}, nil
}

// runPostOp invokes the paymaster's post-execution hook inside a nested
// rollback scope: a reverting postOp undoes its own ledger effects but not
// the already-performed account call. Returns the gas it consumed.
func (e *EntryPoint) runPostOp(tx *ledger.Tx, op *userop.UserOperation, vr *ValidationResult, callSucceeded bool, actualGasCost *big.Int) uint64 {
	paymaster, ok := e.world.PaymasterAt(op.Paymaster)
	if !ok {
		return 0
	}

	mode := PostOpSucceeded
	if !callSucceeded {
		mode = PostOpReverted
	}

	// remaining verification budget covers the hook
	budget := bigToGas(op.VerificationGasLimit)
	if vr.GasUsed < budget {
		budget -= vr.GasUsed
	} else {
		budget = 0
	}
	meter := NewGasMeter(budget)
	env := e.callEnv(tx, meter)

	snapshot := tx.Snapshot()
	worldSnapshot := e.world.Snapshot()
	if err := paymaster.PostOp(env, mode, vr.PaymasterContext, actualGasCost); err != nil {
		tx.RevertTo(snapshot)
		e.world.RevertTo(worldSnapshot)
		e.logger.Warn("paymaster postOp reverted", "paymaster", op.Paymaster.Hex(), "requestId", vr.RequestID.Hex(), "err", err)
	}
	return meter.Used()
}
