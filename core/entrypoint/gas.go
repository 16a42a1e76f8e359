package entrypoint

import (
	"math/big"
)

// GasMeter enforces the hard ceiling on a nested call into untrusted
// account or paymaster code. Exhausting the meter aborts only that nested
// scope; the pipeline converts it into an outcome.
type GasMeter struct {
	limit uint64
	used  uint64
}

func NewGasMeter(limit uint64) *GasMeter {
	return &GasMeter{limit: limit}
}

// UseGas consumes amount from the budget, or fails with ErrOutOfGas leaving
// the meter fully spent.
func (m *GasMeter) UseGas(amount uint64) error {
	if m.used+amount > m.limit || m.used+amount < m.used {
		m.used = m.limit
		return ErrOutOfGas
	}
	m.used += amount
	return nil
}

func (m *GasMeter) Used() uint64 {
	return m.used
}

func (m *GasMeter) Remaining() uint64 {
	return m.limit - m.used
}

// bigToGas clamps a gas field to uint64 for metering. Fields are already
// bounded to 120 bits by validation; anything above uint64 range is treated
// as unlimited-within-prefund.
func bigToGas(v *big.Int) uint64 {
	if v == nil {
		return 0
	}
	if !v.IsUint64() {
		return ^uint64(0)
	}
	return v.Uint64()
}
