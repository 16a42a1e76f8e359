package model

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/JuggerNaut63/AA/pkg/erc4337/userop"
)

// UserOp is the wire form of a UserOperation: addresses and byte blobs as
// hex strings, numerics as hex or base-10 strings, matching what bundler
// RPC clients submit.
type UserOp struct {
	Sender               string `json:"sender" validate:"required,eth_addr"`
	Nonce                string `json:"nonce"`
	InitCode             string `json:"initCode"`
	CallData             string `json:"callData"`
	CallGasLimit         string `json:"callGasLimit"`
	VerificationGasLimit string `json:"verificationGasLimit"`
	PreVerificationGas   string `json:"preVerificationGas"`
	MaxFeePerGas         string `json:"maxFeePerGas"`
	MaxPriorityFeePerGas string `json:"maxPriorityFeePerGas"`
	Paymaster            string `json:"paymaster,omitempty"`
	PaymasterData        string `json:"paymasterData,omitempty"`
	Signature            string `json:"signature"`
}

// ToUserOperation decodes the wire form into the engine's operation type.
func (w *UserOp) ToUserOperation() (*userop.UserOperation, error) {
	op := &userop.UserOperation{
		Sender: common.HexToAddress(w.Sender),
	}
	if w.Paymaster != "" {
		op.Paymaster = common.HexToAddress(w.Paymaster)
	}

	var err error
	if op.Nonce, err = ParseQuantity(w.Nonce); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	if op.CallGasLimit, err = ParseQuantity(w.CallGasLimit); err != nil {
		return nil, fmt.Errorf("callGasLimit: %w", err)
	}
	if op.VerificationGasLimit, err = ParseQuantity(w.VerificationGasLimit); err != nil {
		return nil, fmt.Errorf("verificationGasLimit: %w", err)
	}
	if op.PreVerificationGas, err = ParseQuantity(w.PreVerificationGas); err != nil {
		return nil, fmt.Errorf("preVerificationGas: %w", err)
	}
	if op.MaxFeePerGas, err = ParseQuantity(w.MaxFeePerGas); err != nil {
		return nil, fmt.Errorf("maxFeePerGas: %w", err)
	}
	if op.MaxPriorityFeePerGas, err = ParseQuantity(w.MaxPriorityFeePerGas); err != nil {
		return nil, fmt.Errorf("maxPriorityFeePerGas: %w", err)
	}

	if op.InitCode, err = parseBytes(w.InitCode); err != nil {
		return nil, fmt.Errorf("initCode: %w", err)
	}
	if op.CallData, err = parseBytes(w.CallData); err != nil {
		return nil, fmt.Errorf("callData: %w", err)
	}
	if op.PaymasterData, err = parseBytes(w.PaymasterData); err != nil {
		return nil, fmt.Errorf("paymasterData: %w", err)
	}
	if op.Signature, err = parseBytes(w.Signature); err != nil {
		return nil, fmt.Errorf("signature: %w", err)
	}
	return op, nil
}

// FromUserOperation encodes an operation for the wire.
func FromUserOperation(op *userop.UserOperation) *UserOp {
	w := &UserOp{
		Sender:               op.Sender.Hex(),
		Nonce:                quantity(op.Nonce),
		InitCode:             hexutil.Encode(op.InitCode),
		CallData:             hexutil.Encode(op.CallData),
		CallGasLimit:         quantity(op.CallGasLimit),
		VerificationGasLimit: quantity(op.VerificationGasLimit),
		PreVerificationGas:   quantity(op.PreVerificationGas),
		MaxFeePerGas:         quantity(op.MaxFeePerGas),
		MaxPriorityFeePerGas: quantity(op.MaxPriorityFeePerGas),
		PaymasterData:        hexutil.Encode(op.PaymasterData),
		Signature:            hexutil.Encode(op.Signature),
	}
	if op.HasPaymaster() {
		w.Paymaster = op.Paymaster.Hex()
	}
	return w
}

// HandleOpsRequest submits a batch for processing.
type HandleOpsRequest struct {
	Ops         []*UserOp `json:"ops" validate:"required,min=1,dive"`
	Beneficiary string    `json:"beneficiary" validate:"required,eth_addr"`
}

// SubmitOpRequest submits a single operation.
type SubmitOpRequest struct {
	Op          *UserOp `json:"op" validate:"required"`
	Beneficiary string  `json:"beneficiary" validate:"required,eth_addr"`
}

// SimulateRequest probes one operation off-chain.
type SimulateRequest struct {
	Op *UserOp `json:"op" validate:"required"`
}

// ParseQuantity accepts a 0x-prefixed hex or base-10 decimal amount.
// Empty means zero. Quantities are unsigned; a leading minus is rejected so
// negative amounts can never reach the ledger or the gas math.
func ParseQuantity(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return hexutil.DecodeBig(s)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("not a quantity: %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative quantity: %q", s)
	}
	return v, nil
}

func quantity(v *big.Int) string {
	if v == nil {
		return "0x0"
	}
	return hexutil.EncodeBig(v)
}

func parseBytes(s string) ([]byte, error) {
	if s == "" || s == "0x" {
		return nil, nil
	}
	if !strings.HasPrefix(s, "0x") {
		return nil, fmt.Errorf("hex data must be 0x-prefixed: %q", s)
	}
	return hexutil.Decode(s)
}
