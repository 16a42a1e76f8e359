package entrypoint

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	eventKeyByRequest = "events:req:"
	eventKeyByBatch   = "events:batch:"
)

// UserOperationEvent is the one outcome record every processed operation
// produces, successful or not.
type UserOperationEvent struct {
	BatchID       string         `json:"batchId"`
	RequestID     common.Hash    `json:"requestId"`
	Sender        common.Address `json:"sender"`
	Paymaster     common.Address `json:"paymaster"`
	Nonce         *big.Int       `json:"nonce"`
	Success       bool           `json:"success"`
	ActualGasCost *big.Int       `json:"actualGasCost"`
	ActualGasUsed *big.Int       `json:"actualGasUsed"`

	// Reason carries the failure text for operations excluded before
	// execution; empty for executed operations.
	Reason string `json:"reason,omitempty"`

	Timestamp int64 `json:"timestamp"`
}

func (e *EntryPoint) newEvent(batchID string, op opIdentity, success bool, cost, used *big.Int, reason string) *UserOperationEvent {
	if cost == nil {
		cost = new(big.Int)
	}
	if used == nil {
		used = new(big.Int)
	}
	return &UserOperationEvent{
		BatchID:       batchID,
		RequestID:     op.requestID,
		Sender:        op.sender,
		Paymaster:     op.paymaster,
		Nonce:         op.nonce,
		Success:       success,
		ActualGasCost: cost,
		ActualGasUsed: used,
		Reason:        reason,
		Timestamp:     e.now().Unix(),
	}
}

// opIdentity is the event-relevant slice of an operation, captured before
// processing so failure events can still name the op.
type opIdentity struct {
	requestID common.Hash
	sender    common.Address
	paymaster common.Address
	nonce     *big.Int
}

// persistEvents appends the batch's outcome events to the store, indexed by
// request id and by batch position. Event log writes happen after the
// ledger commit; a crash in between loses only the log, never the money.
func (e *EntryPoint) persistEvents(events []*UserOperationEvent) error {
	updates := make(map[string][]byte, 2*len(events))
	for i, ev := range events {
		raw, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		updates[eventKeyByRequest+ev.RequestID.Hex()] = raw
		updates[fmt.Sprintf("%s%s:%04d", eventKeyByBatch, ev.BatchID, i)] = raw
	}
	return e.store.BatchWrite(updates)
}

// GetEvent looks up the outcome of a processed operation by request id.
func (e *EntryPoint) GetEvent(requestID common.Hash) (*UserOperationEvent, error) {
	raw, err := e.store.GetKey([]byte(eventKeyByRequest + requestID.Hex()))
	if err != nil {
		return nil, err
	}
	ev := &UserOperationEvent{}
	if err := json.Unmarshal(raw, ev); err != nil {
		return nil, err
	}
	return ev, nil
}
