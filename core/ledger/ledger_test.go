package ledger

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JuggerNaut63/AA/storage"
)

var (
	alice = common.HexToAddress("0x804e49e8C4eDb560AE7c48B554f6d2e27Bb81557")
	bob   = common.HexToAddress("0x578B110b0a7c06e66b7B1a33C39635304aaF733c")
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	store, err := storage.New(&storage.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return New(store, Config{
		MinStakeWei:        big.NewInt(1_000),
		MinUnstakeDelaySec: 60,
	}, nil)
}

func TestDepositAdditivity(t *testing.T) {
	l := newTestLedger(t)

	require.NoError(t, l.DepositTo(alice, big.NewInt(100)))
	require.NoError(t, l.DepositTo(alice, big.NewInt(250)))

	rec, err := l.GetDepositInfo(alice)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(350), rec.Deposit, "two deposits must sum exactly")
	assert.Zero(t, rec.Stake.Sign())
}

func TestAnyCallerMayFundAnyAccount(t *testing.T) {
	l := newTestLedger(t)

	require.NoError(t, l.DepositTo(bob, big.NewInt(42)))
	rec, err := l.GetDepositInfo(bob)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(42), rec.Deposit)
}

func TestWithdrawTo(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.DepositTo(alice, big.NewInt(100)))

	err := l.WithdrawTo(alice, bob, big.NewInt(101))
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	require.NoError(t, l.WithdrawTo(alice, bob, big.NewInt(60)))
	rec, err := l.GetDepositInfo(alice)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(40), rec.Deposit)
}

func TestNegativeAmountsRejected(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.DepositTo(alice, big.NewInt(1_000)))

	// a negative deposit is a drain, a negative withdraw is a mint
	assert.ErrorIs(t, l.DepositTo(alice, big.NewInt(-900)), ErrNegativeAmount)
	assert.ErrorIs(t, l.WithdrawTo(bob, bob, big.NewInt(-1_000_000)), ErrNegativeAmount)
	assert.ErrorIs(t, l.AddStake(alice, 120, big.NewInt(-5_000)), ErrNegativeAmount)

	rec, err := l.GetDepositInfo(alice)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1_000), rec.Deposit, "rejected amounts must not move funds")
	assert.Zero(t, rec.Stake.Sign())

	rec, err = l.GetDepositInfo(bob)
	require.NoError(t, err)
	assert.Zero(t, rec.Deposit.Sign())
}

func TestTxNegativeAmountsRejected(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.DepositTo(alice, big.NewInt(1_000)))

	tx := l.Begin()
	assert.ErrorIs(t, tx.ChargeFrom(alice, big.NewInt(-100)), ErrNegativeAmount)
	assert.ErrorIs(t, tx.CreditTo(alice, big.NewInt(-100)), ErrNegativeAmount)
	assert.ErrorIs(t, tx.DepositTo(bob, big.NewInt(-100)), ErrNegativeAmount)
	require.NoError(t, tx.Commit())

	rec, err := l.GetDepositInfo(alice)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1_000), rec.Deposit)
}

func TestAddStakeFloors(t *testing.T) {
	l := newTestLedger(t)

	assert.ErrorIs(t, l.AddStake(alice, 120, big.NewInt(999)), ErrStakeTooLow)
	assert.ErrorIs(t, l.AddStake(alice, 10, big.NewInt(5_000)), ErrStakeDelayTooLow)

	require.NoError(t, l.AddStake(alice, 120, big.NewInt(5_000)))
	rec, err := l.GetDepositInfo(alice)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(5_000), rec.Stake)
	assert.Equal(t, uint32(120), rec.UnstakeDelaySec)
	assert.True(t, rec.Staked())
}

func TestStakeUnlockRestakeCancelsUnlock(t *testing.T) {
	l := newTestLedger(t)

	require.NoError(t, l.AddStake(alice, 120, big.NewInt(5_000)))
	require.NoError(t, l.UnlockStake(alice))

	rec, err := l.GetDepositInfo(alice)
	require.NoError(t, err)
	assert.NotZero(t, rec.WithdrawTime, "unlock must start the cooldown")
	assert.False(t, rec.Staked())

	// re-staking mid-unlock returns the record to the staked state
	require.NoError(t, l.AddStake(alice, 120, big.NewInt(1_000)))
	rec, err = l.GetDepositInfo(alice)
	require.NoError(t, err)
	assert.Zero(t, rec.WithdrawTime, "re-staking must cancel the pending unlock")
	assert.Equal(t, big.NewInt(6_000), rec.Stake)
	assert.True(t, rec.Staked())
}

func TestUnlockStakeErrors(t *testing.T) {
	l := newTestLedger(t)

	assert.ErrorIs(t, l.UnlockStake(alice), ErrNotStaked)

	require.NoError(t, l.AddStake(alice, 120, big.NewInt(5_000)))
	require.NoError(t, l.UnlockStake(alice))
	assert.ErrorIs(t, l.UnlockStake(alice), ErrAlreadyUnstaking)
}

func TestWithdrawStakeCooldown(t *testing.T) {
	l := newTestLedger(t)
	current := time.Unix(1_700_000_000, 0)
	l.SetClock(func() time.Time { return current })

	require.NoError(t, l.AddStake(alice, 120, big.NewInt(5_000)))

	// before unlock
	_, err := l.WithdrawStake(alice, bob)
	require.ErrorIs(t, err, ErrNotDue)
	assert.Contains(t, err.Error(), "must call unlockStake() first")

	require.NoError(t, l.UnlockStake(alice))

	// one second before the deadline
	current = current.Add(119 * time.Second)
	_, err = l.WithdrawStake(alice, bob)
	require.ErrorIs(t, err, ErrNotDue)
	assert.Contains(t, err.Error(), "Stake withdrawal is not due")

	// exactly at the deadline
	current = current.Add(1 * time.Second)
	paid, err := l.WithdrawStake(alice, bob)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(5_000), paid)

	rec, err := l.GetDepositInfo(alice)
	require.NoError(t, err)
	assert.Zero(t, rec.Stake.Sign())
	assert.Zero(t, rec.UnstakeDelaySec)
	assert.Zero(t, rec.WithdrawTime)
}

func TestTxChargeAndRefund(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.DepositTo(alice, big.NewInt(1_000)))

	tx := l.Begin()
	require.NoError(t, tx.ChargeFrom(alice, big.NewInt(400)))
	require.NoError(t, tx.CreditTo(alice, big.NewInt(150)))

	err := tx.ChargeFrom(alice, big.NewInt(10_000))
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	require.NoError(t, tx.Commit())

	rec, err := l.GetDepositInfo(alice)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(750), rec.Deposit)
}

func TestTxSnapshotRevert(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.DepositTo(alice, big.NewInt(1_000)))

	tx := l.Begin()
	require.NoError(t, tx.ChargeFrom(alice, big.NewInt(100)))

	snap := tx.Snapshot()
	require.NoError(t, tx.ChargeFrom(alice, big.NewInt(500)))
	require.NoError(t, tx.DepositTo(bob, big.NewInt(500)))
	tx.RevertTo(snap)

	require.NoError(t, tx.Commit())

	recA, err := l.GetDepositInfo(alice)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(900), recA.Deposit, "only the pre-snapshot charge survives")

	recB, err := l.GetDepositInfo(bob)
	require.NoError(t, err)
	assert.Zero(t, recB.Deposit.Sign(), "reverted credit must not persist")
}

func TestTxDiscard(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.DepositTo(alice, big.NewInt(1_000)))

	tx := l.Begin()
	require.NoError(t, tx.ChargeFrom(alice, big.NewInt(999)))
	tx.Discard()

	rec, err := l.GetDepositInfo(alice)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1_000), rec.Deposit)
}
