package eip1559

import (
	"math/big"
)

// EffectiveGasPrice resolves the price an operation actually pays under the
// EIP-1559 rule: min(maxFeePerGas, baseFee + maxPriorityFeePerGas).
//
// When maxPriorityFeePerGas == maxFeePerGas the caller requested legacy fee
// semantics and the cap is returned directly. Some legacy calling contexts
// cannot read the base fee at all, so this path must stay base-fee free.
func EffectiveGasPrice(maxFeePerGas, maxPriorityFeePerGas, baseFee *big.Int) *big.Int {
	if maxFeePerGas == nil {
		return new(big.Int)
	}
	if maxPriorityFeePerGas != nil && maxPriorityFeePerGas.Cmp(maxFeePerGas) == 0 {
		return new(big.Int).Set(maxFeePerGas)
	}

	effective := new(big.Int)
	if baseFee != nil {
		effective.Set(baseFee)
	}
	if maxPriorityFeePerGas != nil {
		effective.Add(effective, maxPriorityFeePerGas)
	}
	if effective.Cmp(maxFeePerGas) > 0 {
		effective.Set(maxFeePerGas)
	}
	return effective
}
