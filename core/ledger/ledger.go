// Package ledger implements the entrypoint deposit and stake accounting.
//
// Every account interacting with the entrypoint owns one DepositRecord: a
// withdrawable deposit used to pay for gas, and an optional locked stake
// used as an anti-spam bond. Stake withdrawal goes through an unlock
// cooldown; deposits never do.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/ethereum/go-ethereum/common"

	"github.com/JuggerNaut63/AA/pkg/logger"
	"github.com/JuggerNaut63/AA/storage"
)

const depositKeyPrefix = "ledger:deposit:"

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNegativeAmount    = errors.New("negative amount")
	ErrNotDue            = errors.New("withdraw not due")

	ErrStakeTooLow      = errors.New("stake value too low")
	ErrStakeDelayTooLow = errors.New("stake delay too low")
	ErrNotStaked        = errors.New("not staked")
	ErrAlreadyUnstaking = errors.New("already unstaking")
)

// DepositRecord is the per-account ledger entry. WithdrawTime zero means the
// stake is not unlocking; otherwise it is the unix second at which
// WithdrawStake becomes legal.
type DepositRecord struct {
	Deposit         *big.Int `json:"deposit"`
	Stake           *big.Int `json:"stake"`
	UnstakeDelaySec uint32   `json:"unstakeDelaySec"`
	WithdrawTime    int64    `json:"withdrawTime"`
}

// Staked reports whether the record carries a stake that is not mid-unlock.
func (r *DepositRecord) Staked() bool {
	return r.Stake.Sign() > 0 && r.WithdrawTime == 0
}

func newRecord() *DepositRecord {
	return &DepositRecord{
		Deposit: new(big.Int),
		Stake:   new(big.Int),
	}
}

func (r *DepositRecord) clone() *DepositRecord {
	return &DepositRecord{
		Deposit:         new(big.Int).Set(r.Deposit),
		Stake:           new(big.Int).Set(r.Stake),
		UnstakeDelaySec: r.UnstakeDelaySec,
		WithdrawTime:    r.WithdrawTime,
	}
}

// Config carries the anti-spam staking floor.
type Config struct {
	MinStakeWei        *big.Int
	MinUnstakeDelaySec uint32
}

// Ledger is the authoritative deposit table, persisted in the node store.
// All mutations are serialized by an internal mutex; the batch pipeline
// additionally holds the mutex for the whole batch through Begin/Commit.
type Ledger struct {
	mu     sync.Mutex
	store  storage.Storage
	cfg    Config
	logger logger.Logger

	// injected clock, replaced in tests
	now func() time.Time
}

func New(store storage.Storage, cfg Config, lgr logger.Logger) *Ledger {
	if cfg.MinStakeWei == nil {
		cfg.MinStakeWei = new(big.Int)
	}
	return &Ledger{
		store:  store,
		cfg:    cfg,
		logger: logger.EnsureLogger(lgr),
		now:    time.Now,
	}
}

// SetClock overrides the ledger clock. Test hook for the unlock cooldown.
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

func depositKey(account common.Address) []byte {
	return []byte(depositKeyPrefix + account.Hex())
}

// checkAmount guards every value-moving primitive: amounts come straight off
// the wire, and a negative one would turn a credit into a drain.
func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w: %s", ErrNegativeAmount, amount)
	}
	return nil
}

func (l *Ledger) load(account common.Address) (*DepositRecord, error) {
	raw, err := l.store.GetKey(depositKey(account))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			// absent record reads as zero-valued; created on first deposit
			return newRecord(), nil
		}
		return nil, err
	}
	rec := newRecord()
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, fmt.Errorf("corrupt deposit record for %s: %w", account.Hex(), err)
	}
	return rec, nil
}

func (l *Ledger) persist(account common.Address, rec *DepositRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return l.store.Set(depositKey(account), raw)
}

// DepositTo credits the account's withdrawable deposit. Any caller may fund
// any account.
func (l *Ledger) DepositTo(account common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.depositToLocked(account, amount)
}

func (l *Ledger) depositToLocked(account common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	rec, err := l.load(account)
	if err != nil {
		return err
	}
	rec.Deposit.Add(rec.Deposit, amount)
	if err := l.persist(account, rec); err != nil {
		return err
	}
	l.logger.Debug("ledger deposit", "account", account.Hex(), "amount", amount.String(), "deposit", rec.Deposit.String())
	return nil
}

// WithdrawTo debits the caller's own deposit and returns the amount paid to
// the recipient. Deposits are never subject to the stake cooldown.
func (l *Ledger) WithdrawTo(caller, recipient common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := checkAmount(amount); err != nil {
		return err
	}
	rec, err := l.load(caller)
	if err != nil {
		return err
	}
	if rec.Deposit.Cmp(amount) < 0 {
		return fmt.Errorf("%w: withdraw %s exceeds deposit %s", ErrInsufficientFunds, amount, rec.Deposit)
	}
	rec.Deposit.Sub(rec.Deposit, amount)
	if err := l.persist(caller, rec); err != nil {
		return err
	}
	l.logger.Info("deposit withdrawn", "account", caller.Hex(), "recipient", recipient.Hex(), "amount", amount.String())
	return nil
}

// AddStake increases the caller's stake and records its unstake delay.
// Re-staking while an unlock is pending cancels the unlock.
func (l *Ledger) AddStake(caller common.Address, unstakeDelaySec uint32, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := checkAmount(amount); err != nil {
		return err
	}
	rec, err := l.load(caller)
	if err != nil {
		return err
	}
	if unstakeDelaySec < l.cfg.MinUnstakeDelaySec && unstakeDelaySec < rec.UnstakeDelaySec {
		return ErrStakeDelayTooLow
	}
	total := new(big.Int).Add(rec.Stake, amount)
	if total.Cmp(l.cfg.MinStakeWei) < 0 {
		return ErrStakeTooLow
	}

	rec.Stake = total
	if unstakeDelaySec > rec.UnstakeDelaySec {
		rec.UnstakeDelaySec = unstakeDelaySec
	}
	rec.WithdrawTime = 0
	if err := l.persist(caller, rec); err != nil {
		return err
	}
	l.logger.Info("stake added", "account", caller.Hex(), "stake", rec.Stake.String(), "delay", rec.UnstakeDelaySec)
	return nil
}

// UnlockStake starts the withdrawal cooldown. The stake amount is untouched;
// it just stops counting as a live bond.
func (l *Ledger) UnlockStake(caller common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, err := l.load(caller)
	if err != nil {
		return err
	}
	if rec.Stake.Sign() == 0 {
		return ErrNotStaked
	}
	if rec.WithdrawTime != 0 {
		return ErrAlreadyUnstaking
	}
	rec.WithdrawTime = l.now().Unix() + int64(rec.UnstakeDelaySec)
	return l.persist(caller, rec)
}

// WithdrawStake pays out an unlocked stake after its cooldown and clears the
// staking fields. Returns the amount paid to the recipient.
func (l *Ledger) WithdrawStake(caller, recipient common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, err := l.load(caller)
	if err != nil {
		return nil, err
	}
	if rec.WithdrawTime == 0 {
		return nil, fmt.Errorf("%w: must call unlockStake() first", ErrNotDue)
	}
	if l.now().Unix() < rec.WithdrawTime {
		return nil, fmt.Errorf("%w: Stake withdrawal is not due", ErrNotDue)
	}

	paid := new(big.Int).Set(rec.Stake)
	rec.Stake = new(big.Int)
	rec.UnstakeDelaySec = 0
	rec.WithdrawTime = 0
	if err := l.persist(caller, rec); err != nil {
		return nil, err
	}
	l.logger.Info("stake withdrawn", "account", caller.Hex(), "recipient", recipient.Hex(), "amount", paid.String())
	return paid, nil
}

// GetDepositInfo returns a copy of the account's record; absent accounts
// read as zero-valued.
func (l *Ledger) GetDepositInfo(account common.Address) (*DepositRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, err := l.load(account)
	if err != nil {
		return nil, err
	}
	return rec.clone(), nil
}

// Begin opens a batch transaction. The ledger mutex is held until Commit or
// Discard, which is what serializes the whole validate/execute pipeline
// against the public deposit API.
func (l *Ledger) Begin() *Tx {
	l.mu.Lock()
	return &Tx{ledger: l, dirty: make(map[common.Address]*DepositRecord)}
}
