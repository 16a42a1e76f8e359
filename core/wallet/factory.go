package wallet

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/JuggerNaut63/AA/core/entrypoint"
)

var factoryABI abi.ABI

const factoryABIJSON = `[{"type":"function","name":"createAccount","inputs":[` +
	`{"name":"owner","type":"address"},` +
	`{"name":"salt","type":"uint256"}]}]`

func init() {
	var err error
	factoryABI, err = abi.JSON(strings.NewReader(factoryABIJSON))
	if err != nil {
		panic(fmt.Errorf("invalid factory ABI: %w", err))
	}
}

// SimpleFactory deploys SimpleAccounts at CREATE2-deterministic addresses,
// so a sender address is computable before the account exists.
type SimpleFactory struct {
	Address common.Address
}

func NewSimpleFactory(address common.Address) *SimpleFactory {
	return &SimpleFactory{Address: address}
}

// PackCreateAccount builds the initCode tail for deploying an account owned
// by owner. The full initCode is factory address ‖ this calldata.
func (f *SimpleFactory) PackCreateAccount(owner common.Address, salt *big.Int) ([]byte, error) {
	if salt == nil {
		salt = new(big.Int)
	}
	return factoryABI.Pack("createAccount", owner, salt)
}

// InitCode returns the complete initCode blob for a UserOperation.
func (f *SimpleFactory) InitCode(owner common.Address, salt *big.Int) ([]byte, error) {
	calldata, err := f.PackCreateAccount(owner, salt)
	if err != nil {
		return nil, err
	}
	return append(f.Address.Bytes(), calldata...), nil
}

// GetAddress computes the deterministic deployment address for an owner and
// salt: keccak256(0xff ‖ factory ‖ salt ‖ keccak256(initData))[12:].
func (f *SimpleFactory) GetAddress(owner common.Address, salt *big.Int) (common.Address, error) {
	initData, err := f.PackCreateAccount(owner, salt)
	if err != nil {
		return common.Address{}, err
	}
	return f.addressOf(initData, salt), nil
}

func (f *SimpleFactory) addressOf(initData []byte, salt *big.Int) common.Address {
	saltBytes := make([]byte, 32)
	if salt != nil {
		salt.FillBytes(saltBytes)
	}

	var b []byte
	b = append(b, 0xff)
	b = append(b, f.Address.Bytes()...)
	b = append(b, saltBytes...)
	b = append(b, crypto.Keccak256(initData)...)
	return common.BytesToAddress(crypto.Keccak256(b)[12:])
}

// Deploy implements entrypoint.Factory: unpacks createAccount(owner, salt)
// and constructs the account at its deterministic address.
func (f *SimpleFactory) Deploy(env *entrypoint.CallEnv, initData []byte) (common.Address, entrypoint.Account, error) {
	if err := env.Gas.UseGas(GasDeploy); err != nil {
		return common.Address{}, nil, err
	}

	method := factoryABI.Methods["createAccount"]
	if len(initData) < 4 {
		return common.Address{}, nil, fmt.Errorf("initCode calldata too short")
	}
	args, err := method.Inputs.Unpack(initData[4:])
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("malformed createAccount calldata: %w", err)
	}
	owner := args[0].(common.Address)
	salt := args[1].(*big.Int)

	addr := f.addressOf(initData, salt)
	return addr, NewSimpleAccount(addr, owner), nil
}
