package entrypoint

import (
	"errors"
	"fmt"
)

// Revert reasons that are part of the contract surface. Off-chain tooling
// matches on these strings, so they are constants rather than ad-hoc text.
const (
	ReasonGasValuesOverflow   = "gas values overflow"
	ReasonSenderMismatch      = "sender doesn't match initCode address"
	ReasonSenderConstructed   = "sender already constructed"
	ReasonSenderNoCode        = "sender has no code and no initCode"
	ReasonFactoryUnknown      = "initCode factory not deployed"
	ReasonPaymasterDepositLow = "paymaster deposit too low"
	ReasonPaymasterUnknown    = "paymaster not deployed"
	ReasonDidntPayPrefund     = "didn't pay prefund"
	ReasonSignatureError      = "signature error"
	ReasonExpiredOrNotDue     = "expired or not due"
	ReasonMustCallOffChain    = "must be called off-chain"
)

var ErrOutOfGas = errors.New("out of gas")

// MalformedRequestError marks a structurally invalid operation: numeric
// overflow, sender/initCode mismatch, already-constructed sender. Always
// fatal to the operation, never retried.
type MalformedRequestError struct {
	Reason string
}

func (e *MalformedRequestError) Error() string {
	return e.Reason
}

// ValidationFailedError is the account's or paymaster's rejection of an
// operation. The reason string is reported back to the submitter verbatim.
type ValidationFailedError struct {
	Reason string
}

func (e *ValidationFailedError) Error() string {
	return e.Reason
}

// FatalInvariantError reports a condition validation already ruled out, such
// as actual gas cost exceeding the prefund. It aborts the current operation
// and is flagged for audit; the batch continues.
type FatalInvariantError struct {
	Reason string
}

func (e *FatalInvariantError) Error() string {
	return fmt.Sprintf("invariant violation: %s", e.Reason)
}

func malformed(reason string) *MalformedRequestError {
	return &MalformedRequestError{Reason: reason}
}

func validationFailed(reason string) *ValidationFailedError {
	return &ValidationFailedError{Reason: reason}
}

// IsOpRevert reports whether err belongs to the class that reverts a
// single-operation batch (malformed request or validation failure).
func IsOpRevert(err error) bool {
	var mr *MalformedRequestError
	var vf *ValidationFailedError
	return errors.As(err, &mr) || errors.As(err, &vf)
}
