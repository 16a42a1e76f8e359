// Package entrypoint implements the UserOperation processing pipeline: the
// two-phase validate/execute state machine, batch dispatch with per-operation
// isolation, and the off-chain simulation path.
package entrypoint

import (
	"errors"
	"math/big"
	"math/rand"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/oklog/ulid/v2"
	"github.com/samber/lo"

	"github.com/JuggerNaut63/AA/core/ledger"
	"github.com/JuggerNaut63/AA/metrics"
	"github.com/JuggerNaut63/AA/pkg/erc4337/userop"
	"github.com/JuggerNaut63/AA/pkg/logger"
	"github.com/JuggerNaut63/AA/storage"
)

var ErrEmptyBatch = errors.New("no operations in batch")

// Config pins the engine to one deployment identity and fee environment.
type Config struct {
	Address common.Address
	ChainID *big.Int

	// BaseFee of the execution environment. Nil means legacy fee rules.
	BaseFee *big.Int
}

// EntryPoint is the central dispatcher. One instance owns the world
// registry and fronts the deposit ledger; everything it runs inside
// HandleOps is serialized by the ledger batch transaction.
type EntryPoint struct {
	address common.Address
	chainID *big.Int
	baseFee *big.Int

	ledger  *ledger.Ledger
	world   *World
	store   storage.Storage
	logger  logger.Logger
	metrics *metrics.Metrics

	now     func() time.Time
	entropy *rand.Rand
}

func New(cfg Config, l *ledger.Ledger, world *World, store storage.Storage, lgr logger.Logger, m *metrics.Metrics) *EntryPoint {
	chainID := cfg.ChainID
	if chainID == nil {
		chainID = big.NewInt(1)
	}
	return &EntryPoint{
		address: cfg.Address,
		chainID: chainID,
		baseFee: cfg.BaseFee,
		ledger:  l,
		world:   world,
		store:   store,
		logger:  logger.EnsureLogger(lgr),
		metrics: m,
		now:     time.Now,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetClock overrides the engine clock. Test hook for validity windows.
func (e *EntryPoint) SetClock(now func() time.Time) {
	e.now = now
}

func (e *EntryPoint) Address() common.Address {
	return e.address
}

func (e *EntryPoint) ChainID() *big.Int {
	return new(big.Int).Set(e.chainID)
}

func (e *EntryPoint) World() *World {
	return e.world
}

func (e *EntryPoint) Ledger() *ledger.Ledger {
	return e.ledger
}

// GetRequestID derives the fingerprint of op bound to this deployment.
func (e *EntryPoint) GetRequestID(op *userop.UserOperation) common.Hash {
	return op.GetRequestID(e.address, e.chainID)
}

func (e *EntryPoint) callEnv(tx *ledger.Tx, meter *GasMeter) *CallEnv {
	return &CallEnv{
		Gas:        meter,
		Ledger:     tx,
		World:      e.world,
		Now:        e.now(),
		BaseFee:    e.baseFee,
		EntryPoint: e.address,
		ChainID:    e.chainID,
	}
}

// HandleOps validates and executes a batch of operations in input order.
// One operation failing does not abort the batch: the failure becomes that
// operation's outcome event and processing continues. The single exception
// is a batch of exactly one operation, whose validation failure is surfaced
// as the call error with the original reason, to aid debugging.
//
// The cumulative collected fees are credited to the beneficiary's deposit
// in one transfer after the last operation.
func (e *EntryPoint) HandleOps(ops []*userop.UserOperation, beneficiary common.Address) ([]*UserOperationEvent, error) {
	if len(ops) == 0 {
		return nil, ErrEmptyBatch
	}

	batchID := ulid.MustNew(ulid.Timestamp(e.now()), e.entropy).String()
	singleOp := len(ops) == 1

	tx := e.ledger.Begin()
	defer tx.Discard()

	// world mutations from ops that will never commit must not outlive
	// this call
	batchSnap := e.world.Snapshot()
	committed := false
	defer func() {
		if !committed {
			e.world.RevertTo(batchSnap)
		}
	}()

	events := make([]*UserOperationEvent, 0, len(ops))
	collected := new(big.Int)

	for _, op := range ops {
		ident := opIdentity{
			requestID: e.GetRequestID(op),
			sender:    op.Sender,
			paymaster: op.Paymaster,
			nonce:     op.Nonce,
		}

		ledgerSnap := tx.Snapshot()
		worldSnap := e.world.Snapshot()

		outcome, err := e.processOp(tx, op)
		if err != nil {
			tx.RevertTo(ledgerSnap)
			e.world.RevertTo(worldSnap)

			if singleOp && IsOpRevert(err) {
				// surfaces the verbatim reason; nothing is committed
				return nil, err
			}

			var fatal *FatalInvariantError
			if errors.As(err, &fatal) {
				e.logger.Error("operation aborted on invariant violation", "requestId", ident.requestID.Hex(), "err", err)
			}

			events = append(events, e.newEvent(batchID, ident, false, nil, nil, err.Error()))
			e.metrics.IncOpProcessed("rejected")
			continue
		}

		events = append(events, e.newEvent(batchID, ident, outcome.success, outcome.actualGasCost, outcome.actualGasUsed, ""))
		collected.Add(collected, outcome.actualGasCost)
		if outcome.success {
			e.metrics.IncOpProcessed("success")
		} else {
			e.metrics.IncOpProcessed("call_reverted")
		}
	}

	if collected.Sign() > 0 {
		if err := tx.CreditTo(beneficiary, collected); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	e.world.commit(batchSnap)
	if err := e.persistEvents(events); err != nil {
		e.logger.Error("outcome event log write failed", "batch", batchID, "err", err)
	}

	e.metrics.IncBatch()
	collectedF, _ := new(big.Float).SetInt(collected).Float64()
	e.metrics.AddGasCollected(collectedF)

	succeeded := lo.CountBy(events, func(ev *UserOperationEvent) bool { return ev.Success })
	e.logger.Info("batch processed",
		"batch", batchID,
		"ops", len(ops),
		"succeeded", succeeded,
		"beneficiary", beneficiary.Hex(),
		"collected", collected.String(),
	)
	return events, nil
}

// HandleOp is the single-operation convenience form of HandleOps.
func (e *EntryPoint) HandleOp(op *userop.UserOperation, beneficiary common.Address) (*UserOperationEvent, error) {
	events, err := e.HandleOps([]*userop.UserOperation{op}, beneficiary)
	if err != nil {
		return nil, err
	}
	return events[0], nil
}

// processOp runs both phases for one operation against the batch overlay.
func (e *EntryPoint) processOp(tx *ledger.Tx, op *userop.UserOperation) (*execOutcome, error) {
	vr, err := e.validateOp(tx, op)
	if err != nil {
		return nil, err
	}
	return e.executeOp(tx, op, vr)
}
