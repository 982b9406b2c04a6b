package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	assert := assert.New(t)

	// set up some defaults
	cfg := DefaultConfig()
	assert.NotNil(cfg.Chain)
	assert.NotNil(cfg.RPC)
	assert.NotNil(cfg.Analysis)

	// check the root dir stuff...
	cfg.SetRoot("/foo")
	cfg.DBPath = "/opt/data"

	assert.Equal("/opt/data", cfg.DBDir())
	assert.Equal("/foo/config/keystore.json", cfg.Chain.KeystoreFile())

	cfg.Chain.Keystore = "/keys/wallet.json"
	assert.Equal("/keys/wallet.json", cfg.Chain.KeystoreFile())
}

func TestDefaultChainConfig(t *testing.T) {
	cfg := DefaultChainConfig()

	assert.EqualValues(t, 89, cfg.ChainIDBig().Int64())
	assert.Equal(t, DefaultTokenAddress, cfg.Token().Hex())
	assert.Equal(t, DefaultMarketplaceAddress, cfg.Marketplace().Hex())
}

func TestConfigValidateBasic(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.ValidateBasic())

	// tamper with poll interval
	cfg.Chain.PollInterval = -10 * time.Second
	err := cfg.ValidateBasic()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[chain]")
}

func TestBaseConfigValidateBasic(t *testing.T) {
	cfg := TestBaseConfig()
	assert.NoError(t, cfg.ValidateBasic())

	// tamper with log format
	cfg.LogFormat = "invalid"
	assert.Error(t, cfg.ValidateBasic())

	cfg = TestBaseConfig()
	cfg.DBBackend = "cleveldb"
	assert.Error(t, cfg.ValidateBasic())
}

func TestChainConfigValidateBasic(t *testing.T) {
	testCases := map[string]func(*ChainConfig){
		"rpc url":        func(c *ChainConfig) { c.RPCURL = "" },
		"chain id":       func(c *ChainConfig) { c.ChainID = 0 },
		"token":          func(c *ChainConfig) { c.TokenAddress = "0x1234" },
		"marketplace":    func(c *ChainConfig) { c.MarketplaceAddress = "marketplace" },
		"poll interval":  func(c *ChainConfig) { c.PollInterval = 0 },
		"confirmations":  func(c *ChainConfig) { c.Confirmations = 0 },
		"gas multiplier": func(c *ChainConfig) { c.GasMultiplier = 0.5 },
	}

	assert.NoError(t, TestChainConfig().ValidateBasic())
	for name, tamper := range testCases {
		tamper := tamper
		t.Run(name, func(t *testing.T) {
			cfg := TestChainConfig()
			tamper(cfg)
			assert.Error(t, cfg.ValidateBasic())
		})
	}
}

func TestRPCConfigValidateBasic(t *testing.T) {
	cfg := TestRPCConfig()
	assert.NoError(t, cfg.ValidateBasic())
	assert.False(t, cfg.IsCorsEnabled())

	cfg.CORSAllowedOrigins = []string{"*"}
	assert.True(t, cfg.IsCorsEnabled())

	cfg.MaxBodyBytes = -1
	assert.Error(t, cfg.ValidateBasic())
}

func TestAnalysisConfigValidateBasic(t *testing.T) {
	cfg := DefaultAnalysisConfig()
	assert.NoError(t, cfg.ValidateBasic())
	assert.True(t, cfg.Enabled())

	cfg.Model = ""
	assert.Error(t, cfg.ValidateBasic())

	cfg = TestAnalysisConfig()
	assert.NoError(t, cfg.ValidateBasic())
	assert.False(t, cfg.Enabled())

	cfg.Provider = "openai"
	assert.Error(t, cfg.ValidateBasic())
}

func TestInstrumentationConfigValidateBasic(t *testing.T) {
	cfg := TestInstrumentationConfig()
	assert.NoError(t, cfg.ValidateBasic())

	// tamper with maximum open connections
	cfg.MaxOpenConnections = -1
	assert.Error(t, cfg.ValidateBasic())
}
