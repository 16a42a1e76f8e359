// Package userop models the EIP-4337 style UserOperation processed by the
// entrypoint engine, together with its canonical packing and request id
// derivation.
package userop

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// MaxGasValueBits bounds every numeric gas/fee field of a UserOperation.
// Anything wider opens up overflow when the fields are multiplied together
// for prefund sizing.
const MaxGasValueBits = 120

var ErrGasValuesOverflow = errors.New("gas values overflow")

// UserOperation is a gas-metered request for a smart account to perform an
// action. The paymaster is optional; the zero address means the sender pays
// for its own gas from its entrypoint deposit.
type UserOperation struct {
	Sender               common.Address `json:"sender"`
	Nonce                *big.Int       `json:"nonce"`
	InitCode             []byte         `json:"initCode"`
	CallData             []byte         `json:"callData"`
	CallGasLimit         *big.Int       `json:"callGasLimit"`
	VerificationGasLimit *big.Int       `json:"verificationGasLimit"`
	PreVerificationGas   *big.Int       `json:"preVerificationGas"`
	MaxFeePerGas         *big.Int       `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *big.Int       `json:"maxPriorityFeePerGas"`
	Paymaster            common.Address `json:"paymaster"`
	PaymasterData        []byte         `json:"paymasterData"`
	Signature            []byte         `json:"signature"`
}

// HasPaymaster reports whether a third party sponsors this operation.
func (op *UserOperation) HasPaymaster() bool {
	return op.Paymaster != (common.Address{})
}

// InitCodeFactory returns the factory address encoded in the first 20 bytes
// of InitCode, and the remaining deployment calldata.
func (op *UserOperation) InitCodeFactory() (common.Address, []byte) {
	if len(op.InitCode) < common.AddressLength {
		return common.Address{}, nil
	}
	return common.BytesToAddress(op.InitCode[:common.AddressLength]), op.InitCode[common.AddressLength:]
}

// gasFields returns every numeric field subject to the 120-bit bound.
func (op *UserOperation) gasFields() []*big.Int {
	return []*big.Int{
		op.Nonce,
		op.CallGasLimit,
		op.VerificationGasLimit,
		op.PreVerificationGas,
		op.MaxFeePerGas,
		op.MaxPriorityFeePerGas,
	}
}

// ValidateGasFields enforces the 120-bit bound on every numeric field and
// rejects negative values, which BitLen alone would let through. A nil field
// counts as zero.
func (op *UserOperation) ValidateGasFields() error {
	for _, v := range op.gasFields() {
		if v == nil {
			continue
		}
		if v.Sign() < 0 || v.BitLen() > MaxGasValueBits {
			return ErrGasValuesOverflow
		}
	}
	return nil
}

// MaxPrefund is the worst-case amount the payer must have on deposit before
// execution starts. VerificationGasLimit is counted twice to budget both the
// validation calls and the post-execution hook.
func (op *UserOperation) MaxPrefund() *big.Int {
	gas := new(big.Int).Mul(orZero(op.VerificationGasLimit), big.NewInt(2))
	gas.Add(gas, orZero(op.CallGasLimit))
	gas.Add(gas, orZero(op.PreVerificationGas))
	return gas.Mul(gas, orZero(op.MaxFeePerGas))
}

// Pack produces the canonical encoding of the operation with the signature
// excluded: fixed 32-byte words for addresses and numerics, keccak digests
// for the dynamic byte fields. This is the preimage of the request id and
// must stay identical to what off-chain tooling computes.
func (op *UserOperation) Pack() []byte {
	buf := make([]byte, 0, 10*common.HashLength)
	buf = appendAddress(buf, op.Sender)
	buf = appendBig(buf, op.Nonce)
	buf = append(buf, crypto.Keccak256(op.InitCode)...)
	buf = append(buf, crypto.Keccak256(op.CallData)...)
	buf = appendBig(buf, op.CallGasLimit)
	buf = appendBig(buf, op.VerificationGasLimit)
	buf = appendBig(buf, op.PreVerificationGas)
	buf = appendBig(buf, op.MaxFeePerGas)
	buf = appendBig(buf, op.MaxPriorityFeePerGas)
	buf = appendAddress(buf, op.Paymaster)
	buf = append(buf, crypto.Keccak256(op.PaymasterData)...)
	return buf
}

// GetRequestID derives the unique fingerprint of the operation, bound to a
// specific entrypoint deployment and chain. It is the message an account
// signature authenticates, so the Signature field never contributes to it.
func (op *UserOperation) GetRequestID(entryPoint common.Address, chainID *big.Int) common.Hash {
	inner := crypto.Keccak256(op.Pack())
	outer := make([]byte, 0, 3*common.HashLength)
	outer = append(outer, inner...)
	outer = appendAddress(outer, entryPoint)
	outer = appendBig(outer, chainID)
	return crypto.Keccak256Hash(outer)
}

func appendAddress(buf []byte, addr common.Address) []byte {
	word := make([]byte, common.HashLength)
	copy(word[common.HashLength-common.AddressLength:], addr.Bytes())
	return append(buf, word...)
}

func appendBig(buf []byte, v *big.Int) []byte {
	word := make([]byte, common.HashLength)
	if v != nil {
		b := v.Bytes()
		if len(b) > common.HashLength {
			b = b[len(b)-common.HashLength:]
		}
		copy(word[common.HashLength-len(b):], b)
	}
	return append(buf, word...)
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
