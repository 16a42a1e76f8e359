package entrypoint

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/JuggerNaut63/AA/pkg/erc4337/userop"
)

// SimulationCaller is the sentinel "null" identity simulateValidation must
// be invoked with. No normal transaction can originate from the zero
// address, which is how the engine knows it is being probed off-chain.
var SimulationCaller = common.Address{}

// SimulationResult is the structured payload a relayer decodes to decide
// whether to include an operation in a batch. It reflects what validation
// WOULD do; no state was committed to produce it.
type SimulationResult struct {
	RequestID  common.Hash    `json:"requestId"`
	Prefund    *big.Int       `json:"prefund"`
	Payer      common.Address `json:"payer"`
	SigFailed  bool           `json:"sigFailed"`
	ValidAfter uint64         `json:"validAfter"`
	ValidUntil uint64         `json:"validUntil"`

	// PayerDeposit and PayerStake snapshot the payer's collateral at
	// simulation time, for the relayer's reputation accounting.
	PayerDeposit *big.Int `json:"payerDeposit"`
	PayerStake   *big.Int `json:"payerStake"`
	PayerStaked  bool     `json:"payerStaked"`
}

// SimulateValidation runs exactly the validation phase and reports the
// outcome without committing anything. Every side effect — deployment from
// initCode, deposit movements made by the account — is rolled back before
// returning, so invoking it twice yields the same snapshot.
func (e *EntryPoint) SimulateValidation(caller common.Address, op *userop.UserOperation) (*SimulationResult, error) {
	if caller != SimulationCaller {
		return nil, validationFailed(ReasonMustCallOffChain)
	}

	tx := e.ledger.Begin()
	defer tx.Discard()

	worldSnap := e.world.Snapshot()
	defer e.world.RevertTo(worldSnap)

	e.metrics.IncSimulation()

	vr, err := e.validateOp(tx, op)
	if err != nil {
		return nil, err
	}

	payerRec, err := tx.GetDepositInfo(vr.Payer)
	if err != nil {
		return nil, err
	}

	return &SimulationResult{
		RequestID:    vr.RequestID,
		Prefund:      vr.Prefund,
		Payer:        vr.Payer,
		SigFailed:    vr.SigFailed,
		ValidAfter:   vr.ValidAfter,
		ValidUntil:   vr.ValidUntil,
		PayerDeposit: payerRec.Deposit,
		PayerStake:   payerRec.Stake,
		PayerStaked:  payerRec.Staked(),
	}, nil
}
