package config

import (
	"errors"
	"fmt"
	"math/big"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/agrimarket/agridash/libs/log"
)

// NOTE: Most of the structs & relevant comments + the
// default configuration options were used to manually
// generate the config.toml. Please reflect any changes
// made here in the defaultConfigTemplate constant in
// config/toml.go
// NOTE: libs/cli must know to look in the config dir!
var (
	DefaultAgridashDir = ".agridash"
	defaultConfigDir   = "config"
	defaultDataDir     = "data"

	defaultConfigFileName = "config.toml"
	defaultKeystoreName   = "keystore.json"

	defaultConfigFilePath = filepath.Join(defaultConfigDir, defaultConfigFileName)
	defaultKeystorePath   = filepath.Join(defaultConfigDir, defaultKeystoreName)
)

// Viction testnet deployment.
const (
	DefaultRPCURL             = "https://89.rpc.thirdweb.com/"
	DefaultChainID            = 89
	DefaultTokenAddress       = "0x87D58253DE27A6247Aa76223B773D326AC77Ea2c"
	DefaultMarketplaceAddress = "0x322D6EaEC87180F0695fe4da899C76C9b9216141"
)

// Config defines the top level configuration for agridash.
type Config struct {
	// Top level options use an anonymous struct
	BaseConfig `mapstructure:",squash"`

	// Options for services
	Chain           *ChainConfig           `mapstructure:"chain"`
	RPC             *RPCConfig             `mapstructure:"rpc"`
	Analysis        *AnalysisConfig        `mapstructure:"analysis"`
	Instrumentation *InstrumentationConfig `mapstructure:"instrumentation"`
}

// DefaultConfig returns a default configuration targeting the Viction
// testnet.
func DefaultConfig() *Config {
	return &Config{
		BaseConfig:      DefaultBaseConfig(),
		Chain:           DefaultChainConfig(),
		RPC:             DefaultRPCConfig(),
		Analysis:        DefaultAnalysisConfig(),
		Instrumentation: DefaultInstrumentationConfig(),
	}
}

// TestConfig returns a configuration that can be used for testing
func TestConfig() *Config {
	return &Config{
		BaseConfig:      TestBaseConfig(),
		Chain:           TestChainConfig(),
		RPC:             TestRPCConfig(),
		Analysis:        TestAnalysisConfig(),
		Instrumentation: TestInstrumentationConfig(),
	}
}

// SetRoot sets the RootDir for all Config structs
func (cfg *Config) SetRoot(root string) *Config {
	cfg.BaseConfig.RootDir = root
	cfg.Chain.RootDir = root
	cfg.RPC.RootDir = root
	return cfg
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *Config) ValidateBasic() error {
	if err := cfg.BaseConfig.ValidateBasic(); err != nil {
		return err
	}
	if err := cfg.Chain.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [chain] section: %w", err)
	}
	if err := cfg.RPC.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [rpc] section: %w", err)
	}
	if err := cfg.Analysis.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [analysis] section: %w", err)
	}
	if err := cfg.Instrumentation.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [instrumentation] section: %w", err)
	}
	return nil
}

//-----------------------------------------------------------------------------
// BaseConfig

// BaseConfig defines the base configuration for agridash
type BaseConfig struct {
	// The root directory for all data.
	// This should be set in viper so it can unmarshal into this struct
	RootDir string `mapstructure:"home"`

	// Database backend: goleveldb | memdb
	DBBackend string `mapstructure:"db-backend"`

	// Database directory
	DBPath string `mapstructure:"db-dir"`

	// Output level for logging
	LogLevel string `mapstructure:"log-level"`

	// Output format: 'plain' (colored text) or 'json'
	LogFormat string `mapstructure:"log-format"`
}

// DefaultBaseConfig returns a default base configuration
func DefaultBaseConfig() BaseConfig {
	return BaseConfig{
		LogLevel:  log.LogLevelInfo,
		LogFormat: log.LogFormatPlain,
		DBBackend: "goleveldb",
		DBPath:    defaultDataDir,
	}
}

// TestBaseConfig returns a base configuration for testing
func TestBaseConfig() BaseConfig {
	cfg := DefaultBaseConfig()
	cfg.DBBackend = "memdb"
	cfg.LogLevel = log.LogLevelDebug
	return cfg
}

// DBDir returns the full path to the database directory
func (cfg BaseConfig) DBDir() string {
	return rootify(cfg.DBPath, cfg.RootDir)
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg BaseConfig) ValidateBasic() error {
	switch cfg.LogFormat {
	case log.LogFormatPlain, log.LogFormatText, log.LogFormatJSON:
	default:
		return errors.New("unknown log-format (must be 'plain', 'text' or 'json')")
	}
	switch cfg.LogLevel {
	case log.LogLevelDebug, log.LogLevelInfo, log.LogLevelWarn, log.LogLevelError:
	default:
		return fmt.Errorf("unknown log-level %q", cfg.LogLevel)
	}
	switch cfg.DBBackend {
	case "goleveldb", "memdb":
	default:
		return fmt.Errorf("unsupported db-backend %q (must be 'goleveldb' or 'memdb')", cfg.DBBackend)
	}
	return nil
}

//-----------------------------------------------------------------------------
// ChainConfig

// ChainConfig defines how agridash reaches the chain and signs transactions.
type ChainConfig struct {
	RootDir string `mapstructure:"home"`

	// JSON-RPC endpoint of the chain
	RPCURL string `mapstructure:"rpc-url"`

	// EIP-155 chain id
	ChainID int64 `mapstructure:"chain-id"`

	// Address of the AGT token contract
	TokenAddress string `mapstructure:"token-address"`

	// Address of the marketplace contract
	MarketplaceAddress string `mapstructure:"marketplace-address"`

	// Path to an encrypted go-ethereum keystore file
	Keystore string `mapstructure:"keystore-file"`

	// Environment variable holding the keystore passphrase
	PassphraseEnv string `mapstructure:"passphrase-env"`

	// Environment variable holding a hex private key, used when the
	// keystore file does not exist
	KeyEnv string `mapstructure:"key-env"`

	// How often to poll for transaction receipts
	PollInterval time.Duration `mapstructure:"poll-interval"`

	// Blocks a receipt must be buried under to count as confirmed
	Confirmations uint64 `mapstructure:"confirmations"`

	// Factor applied to estimated gas limits
	GasMultiplier float64 `mapstructure:"gas-multiplier"`
}

// DefaultChainConfig returns the Viction testnet deployment.
func DefaultChainConfig() *ChainConfig {
	return &ChainConfig{
		RPCURL:             DefaultRPCURL,
		ChainID:            DefaultChainID,
		TokenAddress:       DefaultTokenAddress,
		MarketplaceAddress: DefaultMarketplaceAddress,
		Keystore:           defaultKeystorePath,
		PassphraseEnv:      "AGRIDASH_PASSPHRASE",
		KeyEnv:             "AGRIDASH_PRIVATE_KEY",
		PollInterval:       2 * time.Second,
		Confirmations:      1,
		GasMultiplier:      1.2,
	}
}

// TestChainConfig returns a chain configuration for testing
func TestChainConfig() *ChainConfig {
	cfg := DefaultChainConfig()
	cfg.RPCURL = "http://127.0.0.1:8545"
	cfg.PollInterval = 10 * time.Millisecond
	return cfg
}

// KeystoreFile returns the full path to the keystore file
func (cfg *ChainConfig) KeystoreFile() string {
	return rootify(cfg.Keystore, cfg.RootDir)
}

func (cfg *ChainConfig) ChainIDBig() *big.Int {
	return big.NewInt(cfg.ChainID)
}

func (cfg *ChainConfig) Token() common.Address {
	return common.HexToAddress(cfg.TokenAddress)
}

func (cfg *ChainConfig) Marketplace() common.Address {
	return common.HexToAddress(cfg.MarketplaceAddress)
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *ChainConfig) ValidateBasic() error {
	if cfg.RPCURL == "" {
		return errors.New("rpc-url is required")
	}
	if cfg.ChainID <= 0 {
		return errors.New("chain-id must be positive")
	}
	if !common.IsHexAddress(cfg.TokenAddress) {
		return fmt.Errorf("invalid token-address %q", cfg.TokenAddress)
	}
	if !common.IsHexAddress(cfg.MarketplaceAddress) {
		return fmt.Errorf("invalid marketplace-address %q", cfg.MarketplaceAddress)
	}
	if cfg.PollInterval <= 0 {
		return errors.New("poll-interval must be positive")
	}
	if cfg.Confirmations == 0 {
		return errors.New("confirmations must be at least 1")
	}
	if cfg.GasMultiplier < 1 {
		return errors.New("gas-multiplier can't be below 1")
	}
	return nil
}

//-----------------------------------------------------------------------------
// RPCConfig

// RPCConfig defines the configuration options for the dashboard API server
type RPCConfig struct {
	RootDir string `mapstructure:"home"`

	// TCP or UNIX socket address for the API server to listen on
	ListenAddress string `mapstructure:"laddr"`

	// A list of origins a cross-domain request can be executed from.
	// If the special '*' value is present in the list, all origins will be allowed.
	// An origin may contain a wildcard (*) to replace 0 or more characters (i.e.: http://*.domain.com).
	// Only one wildcard can be used per origin.
	// Requests, websocket upgrades included, that carry an Origin header not
	// in this list are rejected. An empty list admits only clients that send
	// no Origin, such as curl or the CLI.
	CORSAllowedOrigins []string `mapstructure:"cors-allowed-origins"`

	// A list of methods the client is allowed to use with cross-domain requests.
	CORSAllowedMethods []string `mapstructure:"cors-allowed-methods"`

	// A list of non simple headers the client is allowed to use with cross-domain requests.
	CORSAllowedHeaders []string `mapstructure:"cors-allowed-headers"`

	// Maximum number of simultaneous connections, websockets included.
	// 0 - unlimited.
	MaxOpenConnections int `mapstructure:"max-open-connections"`

	// Maximum size of request body, in bytes
	MaxBodyBytes int64 `mapstructure:"max-body-bytes"`

	// Maximum size of request header, in bytes
	MaxHeaderBytes int `mapstructure:"max-header-bytes"`

	// How long to wait for in-flight requests on shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`
}

// DefaultRPCConfig returns a default configuration for the API server
func DefaultRPCConfig() *RPCConfig {
	return &RPCConfig{
		ListenAddress:      "tcp://127.0.0.1:26680",
		CORSAllowedOrigins: []string{},
		CORSAllowedMethods: []string{"HEAD", "GET", "POST"},
		CORSAllowedHeaders: []string{"Origin", "Accept", "Content-Type", "X-Requested-With"},
		MaxOpenConnections: 900,
		MaxBodyBytes:       int64(1000000), // 1MB
		MaxHeaderBytes:     1 << 20,        // same as the net/http default
		ShutdownTimeout:    10 * time.Second,
	}
}

// TestRPCConfig returns a configuration for testing the API server
func TestRPCConfig() *RPCConfig {
	cfg := DefaultRPCConfig()
	cfg.ListenAddress = "tcp://127.0.0.1:36680"
	cfg.ShutdownTimeout = time.Second
	return cfg
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *RPCConfig) ValidateBasic() error {
	if cfg.MaxOpenConnections < 0 {
		return errors.New("max-open-connections can't be negative")
	}
	if cfg.MaxBodyBytes < 0 {
		return errors.New("max-body-bytes can't be negative")
	}
	if cfg.MaxHeaderBytes < 0 {
		return errors.New("max-header-bytes can't be negative")
	}
	if cfg.ShutdownTimeout < 0 {
		return errors.New("shutdown-timeout can't be negative")
	}
	return nil
}

// IsCorsEnabled returns true if cross-origin resource sharing is enabled.
func (cfg *RPCConfig) IsCorsEnabled() bool {
	return len(cfg.CORSAllowedOrigins) != 0
}

//-----------------------------------------------------------------------------
// AnalysisConfig

const (
	AnalysisProviderGemini = "gemini"
	AnalysisProviderNone   = "none"
)

// AnalysisConfig configures the AI market-analysis service.
type AnalysisConfig struct {
	// gemini | none
	Provider string `mapstructure:"provider"`

	// Model name passed to the provider
	Model string `mapstructure:"model"`

	// Environment variable holding the provider API key
	APIKeyEnv string `mapstructure:"api-key-env"`

	// Deadline of a single report request
	Timeout time.Duration `mapstructure:"timeout"`
}

// DefaultAnalysisConfig returns a default analysis configuration
func DefaultAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{
		Provider:  AnalysisProviderGemini,
		Model:     "gemini-2.0-flash",
		APIKeyEnv: "GEMINI_API_KEY",
		Timeout:   60 * time.Second,
	}
}

// TestAnalysisConfig returns an analysis configuration for testing
func TestAnalysisConfig() *AnalysisConfig {
	cfg := DefaultAnalysisConfig()
	cfg.Provider = AnalysisProviderNone
	cfg.Timeout = time.Second
	return cfg
}

// Enabled reports whether a provider is configured.
func (cfg *AnalysisConfig) Enabled() bool {
	return cfg.Provider != AnalysisProviderNone
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *AnalysisConfig) ValidateBasic() error {
	switch cfg.Provider {
	case AnalysisProviderGemini:
		if cfg.Model == "" {
			return errors.New("model is required")
		}
	case AnalysisProviderNone:
	default:
		return fmt.Errorf("unknown provider %q (must be 'gemini' or 'none')", cfg.Provider)
	}
	if cfg.Timeout < 0 {
		return errors.New("timeout can't be negative")
	}
	return nil
}

//-----------------------------------------------------------------------------
// InstrumentationConfig

// InstrumentationConfig defines the configuration for metrics reporting.
type InstrumentationConfig struct {
	// When true, Prometheus metrics are served under /metrics on
	// PrometheusListenAddr.
	// Check out the documentation for the list of available metrics.
	Prometheus bool `mapstructure:"prometheus"`

	// Address to listen for Prometheus collector(s) connections.
	PrometheusListenAddr string `mapstructure:"prometheus-listen-addr"`

	// Maximum number of simultaneous connections.
	// 0 - unlimited.
	MaxOpenConnections int `mapstructure:"max-open-connections"`

	// Instrumentation namespace.
	Namespace string `mapstructure:"namespace"`
}

// DefaultInstrumentationConfig returns a default configuration for metrics
// reporting.
func DefaultInstrumentationConfig() *InstrumentationConfig {
	return &InstrumentationConfig{
		Prometheus:           false,
		PrometheusListenAddr: ":26660",
		MaxOpenConnections:   3,
		Namespace:            "agridash",
	}
}

// TestInstrumentationConfig returns a default configuration for metrics
// reporting.
func TestInstrumentationConfig() *InstrumentationConfig {
	return DefaultInstrumentationConfig()
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *InstrumentationConfig) ValidateBasic() error {
	if cfg.MaxOpenConnections < 0 {
		return errors.New("max-open-connections can't be negative")
	}
	return nil
}

//-----------------------------------------------------------------------------
// Utils

// helper function to make config creation independent of root dir
func rootify(path, root string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
