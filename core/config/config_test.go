package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestNewConfigParsesFullFile(t *testing.T) {
	path := writeConfig(t, `
environment: production
chain_id: 1337
entry_point_address: "0x0576a174D229E3cFA37253523E645A78A0C91B57"
db_path: /tmp/aa-test/badger
http_bind_address: 127.0.0.1:8080
factory_address: "0x9406Cc6185a346906296840746125a0E44976454"
min_stake_wei: "1000000000000000000"
min_unstake_delay_sec: 86400
base_fee_wei: "7"
`)

	cfg, err := NewConfig(path)
	require.NoError(t, err)

	assert.Equal(t, int64(1337), cfg.ChainID.Int64())
	assert.Equal(t, common.HexToAddress("0x0576a174D229E3cFA37253523E645A78A0C91B57"), cfg.EntryPointAddress)
	assert.Equal(t, "/tmp/aa-test/badger", cfg.DbPath)
	assert.Equal(t, "127.0.0.1:8080", cfg.HttpBindAddress)
	assert.Equal(t, common.HexToAddress("0x9406Cc6185a346906296840746125a0E44976454"), cfg.FactoryAddress)
	assert.Equal(t, "1000000000000000000", cfg.MinStakeWei.String())
	assert.Equal(t, uint32(86400), cfg.MinUnstakeDelaySec)
	assert.Equal(t, int64(7), cfg.BaseFeeWei.Int64())
	assert.NotNil(t, cfg.Logger)
}

func TestNewConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
chain_id: 1
entry_point_address: "0x0576a174D229E3cFA37253523E645A78A0C91B57"
db_path: /tmp/aa-test/badger
`)

	cfg, err := NewConfig(path)
	require.NoError(t, err)

	assert.Empty(t, cfg.HttpBindAddress)
	assert.Zero(t, cfg.MinStakeWei.Sign())
	assert.Nil(t, cfg.BaseFeeWei, "unset base fee means legacy fee rules")
	assert.Equal(t, common.Address{}, cfg.FactoryAddress)
}

func TestNewConfigRejectsMissingRequiredFields(t *testing.T) {
	_, err := NewConfig(writeConfig(t, `
chain_id: 0
entry_point_address: "0x0576a174D229E3cFA37253523E645A78A0C91B57"
db_path: /tmp/x
`))
	assert.Error(t, err, "chain_id must be positive")

	_, err = NewConfig(writeConfig(t, `
chain_id: 1
db_path: /tmp/x
`))
	assert.Error(t, err, "entry_point_address is required")

	_, err = NewConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
