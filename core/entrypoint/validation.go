package entrypoint

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/JuggerNaut63/AA/core/ledger"
	"github.com/JuggerNaut63/AA/pkg/erc4337/userop"
)

// ValidationResult is the ephemeral outcome of the validation phase. It is
// never persisted; the execution phase consumes it within the same batch.
type ValidationResult struct {
	RequestID common.Hash

	// Prefund is the worst-case cost reserved from the payer before
	// execution.
	Prefund *big.Int

	// Payer is whoever the prefund is charged to: the paymaster when set,
	// else the sender itself.
	Payer common.Address

	SigFailed  bool
	ValidAfter uint64
	ValidUntil uint64 // 0 means no expiry

	// PaymasterContext is forwarded to the paymaster's PostOp hook.
	// Nil when the sender self-pays or the paymaster returned nothing.
	PaymasterContext []byte

	// GasUsed is the verification gas consumed, including deployment.
	GasUsed uint64

	account Account
}

// parseValidationData unpacks the (sigFailed, validAfter, validUntil) word
// returned by account and paymaster validation. Layout follows the packed
// convention: low 160 bits carry the signature-failure sentinel, then 48
// bits of validUntil and 48 bits of validAfter.
func parseValidationData(v *big.Int) (sigFailed bool, validAfter, validUntil uint64) {
	if v == nil {
		return false, 0, 0
	}
	mask160 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 160), big.NewInt(1))
	sentinel := new(big.Int).And(v, mask160)
	sigFailed = sentinel.Cmp(big.NewInt(1)) == 0

	mask48 := new(big.Int).SetUint64(1<<48 - 1)
	validUntil = new(big.Int).And(new(big.Int).Rsh(v, 160), mask48).Uint64()
	validAfter = new(big.Int).And(new(big.Int).Rsh(v, 208), mask48).Uint64()
	return sigFailed, validAfter, validUntil
}

// PackValidationData is the inverse of parseValidationData; accounts and
// paymasters use it to build their return word.
func PackValidationData(sigFailed bool, validAfter, validUntil uint64) *big.Int {
	v := new(big.Int)
	if sigFailed {
		v.SetUint64(1)
	}
	v.Or(v, new(big.Int).Lsh(new(big.Int).SetUint64(validUntil), 160))
	v.Or(v, new(big.Int).Lsh(new(big.Int).SetUint64(validAfter), 208))
	return v
}

// intersectWindows combines the account's and the paymaster's validity
// windows: the later start and the earlier expiry win. Zero validUntil
// means "no expiry" and never tightens the window.
func intersectWindows(aAfter, aUntil, bAfter, bUntil uint64) (validAfter, validUntil uint64) {
	validAfter = aAfter
	if bAfter > validAfter {
		validAfter = bAfter
	}
	validUntil = aUntil
	if bUntil != 0 && (validUntil == 0 || bUntil < validUntil) {
		validUntil = bUntil
	}
	return validAfter, validUntil
}

// validateOp runs the full validation phase for one operation against the
// batch overlay. Strictly sequential; any failure aborts this operation
// only. Side effects (deployment, deposit movements) stay in the overlay
// and are rolled back by the dispatcher when an error is returned.
func (e *EntryPoint) validateOp(tx *ledger.Tx, op *userop.UserOperation) (*ValidationResult, error) {
	// numeric bounds come first: everything downstream multiplies these
	if err := op.ValidateGasFields(); err != nil {
		return nil, malformed(ReasonGasValuesOverflow)
	}

	requestID := op.GetRequestID(e.address, e.chainID)
	meter := NewGasMeter(bigToGas(op.VerificationGasLimit))
	env := e.callEnv(tx, meter)

	account, err := e.resolveSender(env, op)
	if err != nil {
		return nil, err
	}

	prefund := op.MaxPrefund()

	// When the account pays for itself it may still be short on deposit;
	// the validation call is told how much it must transfer in.
	missingAccountFunds := new(big.Int)
	if !op.HasPaymaster() {
		rec, err := tx.GetDepositInfo(op.Sender)
		if err != nil {
			return nil, err
		}
		if rec.Deposit.Cmp(prefund) < 0 {
			missingAccountFunds.Sub(prefund, rec.Deposit)
		}
	}

	validationData, err := account.ValidateUserOp(env, op, requestID, missingAccountFunds)
	if err != nil {
		// the account's revert reason is part of the contract; pass through
		return nil, validationFailed(err.Error())
	}
	sigFailed, validAfter, validUntil := parseValidationData(validationData)

	result := &ValidationResult{
		RequestID:  requestID,
		Prefund:    prefund,
		Payer:      op.Sender,
		SigFailed:  sigFailed,
		ValidAfter: validAfter,
		ValidUntil: validUntil,
		GasUsed:    meter.Used(),
		account:    account,
	}

	if op.HasPaymaster() {
		if err := e.validatePaymaster(env, op, requestID, prefund, result); err != nil {
			return nil, err
		}
	} else {
		// prefund enforcement: the account must have paid up during its
		// own validation call
		rec, err := tx.GetDepositInfo(op.Sender)
		if err != nil {
			return nil, err
		}
		if rec.Deposit.Cmp(prefund) < 0 {
			return nil, validationFailed(ReasonDidntPayPrefund)
		}
	}

	result.GasUsed = meter.Used()
	return result, nil
}

// resolveSender deploys the sender from initCode when it has no code yet,
// and rejects the inconsistent combinations.
func (e *EntryPoint) resolveSender(env *CallEnv, op *userop.UserOperation) (Account, error) {
	if e.world.HasCode(op.Sender) {
		if len(op.InitCode) != 0 {
			return nil, malformed(ReasonSenderConstructed)
		}
		account, ok := e.world.AccountAt(op.Sender)
		if !ok {
			return nil, validationFailed("sender is not an account")
		}
		return account, nil
	}

	if len(op.InitCode) == 0 {
		return nil, malformed(ReasonSenderNoCode)
	}

	factoryAddr, initData := op.InitCodeFactory()
	factory, ok := e.world.FactoryAt(factoryAddr)
	if !ok {
		return nil, malformed(ReasonFactoryUnknown)
	}

	deployedAddr, account, err := factory.Deploy(env, initData)
	if err != nil {
		return nil, validationFailed(err.Error())
	}
	if deployedAddr != op.Sender {
		return nil, malformed(ReasonSenderMismatch)
	}
	e.world.deploy(deployedAddr, account)
	e.logger.Debug("sender deployed from initCode", "sender", deployedAddr.Hex(), "factory", factoryAddr.Hex())
	return account, nil
}

// validatePaymaster runs the co-validation leg and intersects the validity
// windows. Staking is optional for paymasters; only the deposit must cover
// the prefund.
func (e *EntryPoint) validatePaymaster(env *CallEnv, op *userop.UserOperation, requestID common.Hash, prefund *big.Int, result *ValidationResult) error {
	paymaster, ok := e.world.PaymasterAt(op.Paymaster)
	if !ok {
		return validationFailed(ReasonPaymasterUnknown)
	}

	rec, err := env.Ledger.GetDepositInfo(op.Paymaster)
	if err != nil {
		return err
	}
	if rec.Deposit.Cmp(prefund) < 0 {
		return validationFailed(ReasonPaymasterDepositLow)
	}

	context, validationData, err := paymaster.ValidatePaymasterUserOp(env, op, requestID, prefund)
	if err != nil {
		return validationFailed(err.Error())
	}

	pmSigFailed, pmAfter, pmUntil := parseValidationData(validationData)
	result.SigFailed = result.SigFailed || pmSigFailed
	result.ValidAfter, result.ValidUntil = intersectWindows(result.ValidAfter, result.ValidUntil, pmAfter, pmUntil)
	result.Payer = op.Paymaster
	result.PaymasterContext = context
	return nil
}
