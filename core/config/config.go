package config

import (
	"fmt"
	"math/big"
	"os"

	sdklogging "github.com/Layr-Labs/eigensdk-go/logging"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"
)

// Config is the resolved runtime configuration of the node.
type Config struct {
	Logger sdklogging.Logger

	ChainID           *big.Int
	EntryPointAddress common.Address

	DbPath          string
	HttpBindAddress string

	// FactoryAddress, when set, is the account factory the node registers
	// at startup so fresh deployments can construct wallets from initCode.
	FactoryAddress common.Address

	MinStakeWei        *big.Int
	MinUnstakeDelaySec uint32

	// BaseFeeWei models the execution environment's base fee for the
	// EIP-1559 effective price rule. Nil means legacy fee semantics.
	BaseFeeWei *big.Int
}

// ConfigRaw is what the yaml file carries.
type ConfigRaw struct {
	Environment sdklogging.LogLevel `yaml:"environment"`

	ChainID           int64  `yaml:"chain_id" validate:"gt=0"`
	EntryPointAddress string `yaml:"entry_point_address" validate:"required"`

	DbPath          string `yaml:"db_path" validate:"required"`
	HttpBindAddress string `yaml:"http_bind_address"`
	FactoryAddress  string `yaml:"factory_address" validate:"omitempty,eth_addr"`

	MinStakeWei        string `yaml:"min_stake_wei"`
	MinUnstakeDelaySec uint32 `yaml:"min_unstake_delay_sec"`
	BaseFeeWei         string `yaml:"base_fee_wei"`
}

// NewConfig reads and validates the yaml config at configFilePath and
// builds the runtime Config, including the node logger.
func NewConfig(configFilePath string) (*Config, error) {
	raw, err := os.ReadFile(configFilePath)
	if err != nil {
		return nil, fmt.Errorf("cannot read config %s: %w", configFilePath, err)
	}

	var configRaw ConfigRaw
	if err := yaml.Unmarshal(raw, &configRaw); err != nil {
		return nil, fmt.Errorf("cannot parse config %s: %w", configFilePath, err)
	}

	if err := validator.New().Struct(&configRaw); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFilePath, err)
	}

	if configRaw.Environment == "" {
		configRaw.Environment = sdklogging.Production
	}
	logger, err := sdklogging.NewZapLogger(configRaw.Environment)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Logger:             logger,
		ChainID:            big.NewInt(configRaw.ChainID),
		EntryPointAddress:  common.HexToAddress(configRaw.EntryPointAddress),
		DbPath:             configRaw.DbPath,
		HttpBindAddress:    configRaw.HttpBindAddress,
		MinUnstakeDelaySec: configRaw.MinUnstakeDelaySec,
	}
	if configRaw.FactoryAddress != "" {
		cfg.FactoryAddress = common.HexToAddress(configRaw.FactoryAddress)
	}

	if cfg.MinStakeWei, err = parseWei(configRaw.MinStakeWei); err != nil {
		return nil, fmt.Errorf("invalid min_stake_wei: %w", err)
	}
	if configRaw.BaseFeeWei != "" {
		if cfg.BaseFeeWei, err = parseWei(configRaw.BaseFeeWei); err != nil {
			return nil, fmt.Errorf("invalid base_fee_wei: %w", err)
		}
	}
	return cfg, nil
}

func parseWei(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("not a base-10 integer: %q", s)
	}
	return v, nil
}
