// Package paymaster holds the reference sponsoring paymaster. It approves
// operations carrying a time window countersigned by its verifying key,
// the flow used by gas-sponsorship services.
package paymaster

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/JuggerNaut63/AA/core/chainio/signer"
	"github.com/JuggerNaut63/AA/core/entrypoint"
	"github.com/JuggerNaut63/AA/pkg/erc4337/userop"
	"github.com/JuggerNaut63/AA/pkg/logger"
)

const (
	GasValidate = 40_000
	GasPostOp   = 15_000

	// PaymasterData layout: two 32-byte words (validUntil, validAfter)
	// followed by the 65-byte verifier signature.
	windowWords = 64
	sigLength   = 65
)

var ErrBadPaymasterData = errors.New("paymaster data malformed")

// VerifyingPaymaster sponsors any operation whose data carries a validity
// window signed by the verifier key. Its deposit at the entrypoint pays for
// sponsored gas; staking is optional and only affects relayer reputation.
type VerifyingPaymaster struct {
	Address  common.Address
	Verifier common.Address

	logger logger.Logger
}

func New(address, verifier common.Address, lgr logger.Logger) *VerifyingPaymaster {
	return &VerifyingPaymaster{
		Address:  address,
		Verifier: verifier,
		logger:   logger.EnsureLogger(lgr),
	}
}

// approvalDigest is what the verifier signs: the operation identity with
// the paymaster fields excluded (they embed this very signature), plus the
// granted window and the deployment domain.
func approvalDigest(op *userop.UserOperation, validUntil, validAfter uint64, entryPoint common.Address, chainID *big.Int) []byte {
	stripped := *op
	stripped.PaymasterData = nil
	stripped.Signature = nil

	buf := stripped.Pack()
	buf = append(buf, common.BigToHash(new(big.Int).SetUint64(validUntil)).Bytes()...)
	buf = append(buf, common.BigToHash(new(big.Int).SetUint64(validAfter)).Bytes()...)
	buf = append(buf, entryPoint.Bytes()...)
	if chainID != nil {
		buf = append(buf, common.BigToHash(chainID).Bytes()...)
	}
	digest, _ := signer.Byte32Digest(buf)
	return digest[:]
}

// BuildPaymasterData signs the approval window for op with the verifier key
// and returns the PaymasterData blob the submitter attaches.
func BuildPaymasterData(key *ecdsa.PrivateKey, op *userop.UserOperation, validUntil, validAfter uint64, entryPoint common.Address, chainID *big.Int) ([]byte, error) {
	digest := approvalDigest(op, validUntil, validAfter, entryPoint, chainID)
	sig, err := signer.SignMessage(key, digest)
	if err != nil {
		return nil, err
	}

	data := make([]byte, 0, windowWords+sigLength)
	data = append(data, common.BigToHash(new(big.Int).SetUint64(validUntil)).Bytes()...)
	data = append(data, common.BigToHash(new(big.Int).SetUint64(validAfter)).Bytes()...)
	data = append(data, sig...)
	return data, nil
}

// ValidatePaymasterUserOp checks the countersigned window and agrees to
// sponsor up to maxCost. The returned context carries the sender and the
// quoted cost through to PostOp.
func (p *VerifyingPaymaster) ValidatePaymasterUserOp(env *entrypoint.CallEnv, op *userop.UserOperation, requestID common.Hash, maxCost *big.Int) ([]byte, *big.Int, error) {
	if err := env.Gas.UseGas(GasValidate); err != nil {
		return nil, nil, err
	}

	if len(op.PaymasterData) != windowWords+sigLength {
		return nil, nil, fmt.Errorf("%w: got %d bytes", ErrBadPaymasterData, len(op.PaymasterData))
	}
	validUntil := new(big.Int).SetBytes(op.PaymasterData[:32]).Uint64()
	validAfter := new(big.Int).SetBytes(op.PaymasterData[32:64]).Uint64()
	sig := op.PaymasterData[64:]

	digest := approvalDigest(op, validUntil, validAfter, env.EntryPoint, env.ChainID)
	recovered, err := signer.RecoverAddress(digest, sig)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrBadPaymasterData, err)
	}
	sigFailed := recovered != p.Verifier

	context := append(op.Sender.Bytes(), common.BigToHash(maxCost).Bytes()...)
	return context, entrypoint.PackValidationData(sigFailed, validAfter, validUntil), nil
}

// PostOp settles a sponsored operation. The reference implementation only
// records the spend; policy paymasters reconcile their own accounting here.
func (p *VerifyingPaymaster) PostOp(env *entrypoint.CallEnv, mode entrypoint.PostOpMode, context []byte, actualGasCost *big.Int) error {
	if err := env.Gas.UseGas(GasPostOp); err != nil {
		return err
	}
	sender := common.BytesToAddress(context[:common.AddressLength])
	p.logger.Debug("paymaster settled",
		"paymaster", p.Address.Hex(),
		"sender", sender.Hex(),
		"mode", int(mode),
		"actualGasCost", actualGasCost.String(),
	)
	return nil
}
