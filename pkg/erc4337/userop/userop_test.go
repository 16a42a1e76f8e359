package userop

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEntryPoint = common.HexToAddress("0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789")

func sampleOp() *UserOperation {
	return &UserOperation{
		Sender:               common.HexToAddress("0x804e49e8C4eDb560AE7c48B554f6d2e27Bb81557"),
		Nonce:                big.NewInt(7),
		CallData:             []byte{0xca, 0x11, 0xda, 0x7a},
		CallGasLimit:         big.NewInt(200_000),
		VerificationGasLimit: big.NewInt(150_000),
		PreVerificationGas:   big.NewInt(21_000),
		MaxFeePerGas:         big.NewInt(30_000_000_000),
		MaxPriorityFeePerGas: big.NewInt(2_000_000_000),
		Signature:            []byte{0x01, 0x02},
	}
}

func TestGetRequestID_Deterministic(t *testing.T) {
	op := sampleOp()
	id1 := op.GetRequestID(testEntryPoint, big.NewInt(1))
	id2 := op.GetRequestID(testEntryPoint, big.NewInt(1))
	assert.Equal(t, id1, id2, "same op, entrypoint and chain must hash identically")
}

func TestGetRequestID_SignatureExcluded(t *testing.T) {
	op := sampleOp()
	id1 := op.GetRequestID(testEntryPoint, big.NewInt(1))

	op.Signature = []byte{0xde, 0xad, 0xbe, 0xef}
	id2 := op.GetRequestID(testEntryPoint, big.NewInt(1))
	assert.Equal(t, id1, id2, "signature must not contribute to the request id")
}

func TestGetRequestID_FieldSensitivity(t *testing.T) {
	base := sampleOp()
	baseID := base.GetRequestID(testEntryPoint, big.NewInt(1))

	mutations := map[string]func(*UserOperation){
		"sender":               func(o *UserOperation) { o.Sender = common.HexToAddress("0x1") },
		"nonce":                func(o *UserOperation) { o.Nonce = big.NewInt(8) },
		"initCode":             func(o *UserOperation) { o.InitCode = []byte{0x01} },
		"callData":             func(o *UserOperation) { o.CallData = []byte{0x00} },
		"callGasLimit":         func(o *UserOperation) { o.CallGasLimit = big.NewInt(1) },
		"verificationGasLimit": func(o *UserOperation) { o.VerificationGasLimit = big.NewInt(1) },
		"preVerificationGas":   func(o *UserOperation) { o.PreVerificationGas = big.NewInt(1) },
		"maxFeePerGas":         func(o *UserOperation) { o.MaxFeePerGas = big.NewInt(1) },
		"maxPriorityFeePerGas": func(o *UserOperation) { o.MaxPriorityFeePerGas = big.NewInt(1) },
		"paymaster":            func(o *UserOperation) { o.Paymaster = common.HexToAddress("0x2") },
		"paymasterData":        func(o *UserOperation) { o.PaymasterData = []byte{0x09} },
	}

	for field, mutate := range mutations {
		op := sampleOp()
		mutate(op)
		assert.NotEqual(t, baseID, op.GetRequestID(testEntryPoint, big.NewInt(1)),
			"changing %s must change the request id", field)
	}
}

func TestGetRequestID_DomainSeparation(t *testing.T) {
	op := sampleOp()
	id := op.GetRequestID(testEntryPoint, big.NewInt(1))

	assert.NotEqual(t, id, op.GetRequestID(testEntryPoint, big.NewInt(11155111)),
		"different chain ids must produce different request ids")
	assert.NotEqual(t, id, op.GetRequestID(common.HexToAddress("0x3"), big.NewInt(1)),
		"different entrypoint deployments must produce different request ids")
}

func TestValidateGasFields(t *testing.T) {
	op := sampleOp()
	require.NoError(t, op.ValidateGasFields())

	overflow := new(big.Int).Lsh(big.NewInt(1), MaxGasValueBits)
	op.MaxFeePerGas = overflow
	assert.ErrorIs(t, op.ValidateGasFields(), ErrGasValuesOverflow)

	op = sampleOp()
	op.CallGasLimit = overflow
	assert.ErrorIs(t, op.ValidateGasFields(), ErrGasValuesOverflow)

	// exactly 120 bits is still legal
	op = sampleOp()
	op.CallGasLimit = new(big.Int).Sub(overflow, big.NewInt(1))
	assert.NoError(t, op.ValidateGasFields())

	// negative values fit any bit length and must be caught by sign
	op = sampleOp()
	op.MaxFeePerGas = big.NewInt(-2)
	assert.ErrorIs(t, op.ValidateGasFields(), ErrGasValuesOverflow)

	op = sampleOp()
	op.PreVerificationGas = big.NewInt(-1)
	assert.ErrorIs(t, op.ValidateGasFields(), ErrGasValuesOverflow)
}

func TestMaxPrefund(t *testing.T) {
	op := sampleOp()
	// (150k*2 + 200k + 21k) * 30 gwei
	want := new(big.Int).Mul(big.NewInt(521_000), big.NewInt(30_000_000_000))
	assert.Equal(t, want, op.MaxPrefund())
}

func TestInitCodeFactory(t *testing.T) {
	op := sampleOp()
	factory, data := op.InitCodeFactory()
	assert.Equal(t, common.Address{}, factory, "empty initCode has no factory")
	assert.Nil(t, data)

	wantFactory := common.HexToAddress("0xB99BC2E399e06CddCF5E725c0ea341E8f0322834")
	op.InitCode = append(wantFactory.Bytes(), 0xaa, 0xbb)
	factory, data = op.InitCodeFactory()
	assert.Equal(t, wantFactory, factory)
	assert.Equal(t, []byte{0xaa, 0xbb}, data)
}
