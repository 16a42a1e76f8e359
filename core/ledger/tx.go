package ledger

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Tx is a journaled overlay over the ledger used by the batch pipeline.
// Reads fall through to the store; writes stay in memory until Commit.
// Snapshot/RevertTo give the execution phase its nested rollback scope
// (a failing postOp undoes only the postOp's ledger effects).
type Tx struct {
	ledger  *Ledger
	dirty   map[common.Address]*DepositRecord
	journal []journalEntry
	done    bool
}

// journalEntry records the state of one account record before a mutation.
type journalEntry struct {
	account common.Address
	prev    *DepositRecord // nil: account was not in the overlay yet
}

func (tx *Tx) record(account common.Address) (*DepositRecord, error) {
	if rec, ok := tx.dirty[account]; ok {
		return rec, nil
	}
	rec, err := tx.ledger.load(account)
	if err != nil {
		return nil, err
	}
	tx.dirty[account] = rec
	tx.journal = append(tx.journal, journalEntry{account: account, prev: nil})
	return rec, nil
}

func (tx *Tx) mutate(account common.Address) (*DepositRecord, error) {
	rec, err := tx.record(account)
	if err != nil {
		return nil, err
	}
	tx.journal = append(tx.journal, journalEntry{account: account, prev: rec.clone()})
	return rec, nil
}

// Snapshot marks a rollback point for RevertTo.
func (tx *Tx) Snapshot() int {
	return len(tx.journal)
}

// RevertTo undoes every mutation made after the given snapshot.
func (tx *Tx) RevertTo(snapshot int) {
	for i := len(tx.journal) - 1; i >= snapshot; i-- {
		e := tx.journal[i]
		if e.prev == nil {
			delete(tx.dirty, e.account)
		} else {
			tx.dirty[e.account] = e.prev
		}
	}
	tx.journal = tx.journal[:snapshot]
}

// GetDepositInfo reads through the overlay.
func (tx *Tx) GetDepositInfo(account common.Address) (*DepositRecord, error) {
	rec, err := tx.record(account)
	if err != nil {
		return nil, err
	}
	return rec.clone(), nil
}

// DepositTo credits an account inside the batch.
func (tx *Tx) DepositTo(account common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	rec, err := tx.mutate(account)
	if err != nil {
		return err
	}
	rec.Deposit.Add(rec.Deposit, amount)
	return nil
}

// ChargeFrom debits a validated payer. Validation guarantees sufficiency, so
// a shortfall here is an invariant violation surfaced to the dispatcher.
func (tx *Tx) ChargeFrom(account common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	rec, err := tx.mutate(account)
	if err != nil {
		return err
	}
	if rec.Deposit.Cmp(amount) < 0 {
		return fmt.Errorf("%w: charge %s exceeds deposit %s", ErrInsufficientFunds, amount, rec.Deposit)
	}
	rec.Deposit.Sub(rec.Deposit, amount)
	return nil
}

// CreditTo is the inverse of ChargeFrom; used for refunds and for moving the
// beneficiary's earned fee into withdrawable deposit.
func (tx *Tx) CreditTo(account common.Address, amount *big.Int) error {
	return tx.DepositTo(account, amount)
}

// Commit flushes the overlay to the store in one batch write and releases
// the ledger.
func (tx *Tx) Commit() error {
	if tx.done {
		return nil
	}
	defer tx.release()

	updates := make(map[string][]byte, len(tx.dirty))
	for account, rec := range tx.dirty {
		raw, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		updates[string(depositKey(account))] = raw
	}
	return tx.ledger.store.BatchWrite(updates)
}

// Discard drops every buffered write and releases the ledger.
func (tx *Tx) Discard() {
	if tx.done {
		return
	}
	tx.release()
}

func (tx *Tx) release() {
	tx.done = true
	tx.dirty = nil
	tx.journal = nil
	tx.ledger.mu.Unlock()
}
