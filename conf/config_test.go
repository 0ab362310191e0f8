package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lagrangedao/go-akash-deployer/constants"
)

func writeConfig(t *testing.T, content string) string {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644))
	return dir
}

func TestInitConfigAppliesDefaults(t *testing.T) {
	dir := writeConfig(t, `
[CHAIN]
Endpoints = ["https://api.akash.example", "https://rest.akash.example"]

[WALLET]
Address = "akash1owner"
`)
	require.NoError(t, InitConfig(dir))

	cfg := GetConfig()
	assert.Equal(t, []string{"https://api.akash.example", "https://rest.akash.example"}, cfg.CHAIN.Endpoints)
	assert.Equal(t, constants.DefaultChainId, cfg.CHAIN.ChainId)
	assert.Equal(t, constants.DefaultDenom, cfg.CHAIN.Denom)
	assert.Equal(t, constants.DefaultGasPrice, cfg.CHAIN.GasPrice)
	assert.Equal(t, constants.DefaultDeposit, cfg.CHAIN.Deposit)
	assert.Equal(t, constants.BidGracePeriod, cfg.BID.GracePeriod.Duration)
	assert.Equal(t, constants.BidTimeout, cfg.BID.Timeout.Duration)
	assert.Equal(t, 8085, cfg.API.Port)
}

func TestInitConfigReadsDurations(t *testing.T) {
	dir := writeConfig(t, `
[CHAIN]
Endpoints = ["https://api.akash.example"]
QueryTimeout = "3s"

[BID]
PreferredProviders = ["akash1provider"]
GracePeriod = "10s"
PollInterval = "2s"
Timeout = "90s"

[WALLET]
Address = "akash1owner"
`)
	require.NoError(t, InitConfig(dir))

	cfg := GetConfig()
	assert.Equal(t, 3*time.Second, cfg.CHAIN.QueryTimeout.Duration)
	assert.Equal(t, []string{"akash1provider"}, cfg.BID.PreferredProviders)
	assert.Equal(t, 10*time.Second, cfg.BID.GracePeriod.Duration)
	assert.Equal(t, 2*time.Second, cfg.BID.PollInterval.Duration)
	assert.Equal(t, 90*time.Second, cfg.BID.Timeout.Duration)
}

func TestInitConfigRequiresEndpointsAndWallet(t *testing.T) {
	dir := writeConfig(t, `
[CHAIN]
ChainId = "akashnet-2"

[WALLET]
Address = "akash1owner"
`)
	err := InitConfig(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Endpoints")
}

func TestInitConfigMissingFile(t *testing.T) {
	assert.Error(t, InitConfig(t.TempDir()))
}
