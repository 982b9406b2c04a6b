package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/creachadair/atomicfile"

	tmos "github.com/agrimarket/agridash/libs/os"
)

// defaultDirPerm is the default permissions used when creating directories.
const defaultDirPerm = 0700

var configTemplate *template.Template

func init() {
	var err error
	tmpl := template.New("configFileTemplate").Funcs(template.FuncMap{
		"StringsJoin": strings.Join,
	})
	if configTemplate, err = tmpl.Parse(defaultConfigTemplate); err != nil {
		panic(err)
	}
}

// EnsureRoot creates the home directory with its config and data
// subdirectories and writes the default config file if there is none. It
// panics on failure.
func EnsureRoot(rootDir string) {
	for _, dir := range []string{rootDir, filepath.Join(rootDir, defaultConfigDir), filepath.Join(rootDir, defaultDataDir)} {
		if err := tmos.EnsureDir(dir, defaultDirPerm); err != nil {
			panic(err.Error())
		}
	}
	if err := writeDefaultConfigFileIfNone(rootDir); err != nil {
		panic(err.Error())
	}
}

// WriteConfigFile renders config into config/config.toml under rootDir.
func WriteConfigFile(rootDir string, config *Config) error {
	return config.WriteToTemplate(filepath.Join(rootDir, defaultConfigFilePath))
}

// WriteToTemplate writes the config to the exact file specified by
// the path, in the default toml template and does not mangle the path
// or filename at all.
func (cfg *Config) WriteToTemplate(path string) error {
	var buffer bytes.Buffer

	if err := configTemplate.Execute(&buffer, cfg); err != nil {
		return err
	}

	return writeFile(path, buffer.Bytes(), 0644)
}

func writeDefaultConfigFileIfNone(rootDir string) error {
	configFilePath := filepath.Join(rootDir, defaultConfigFilePath)
	if !tmos.FileExists(configFilePath) {
		return WriteConfigFile(rootDir, DefaultConfig())
	}
	return nil
}

// Note: any changes to the comments/variables/mapstructure
// must be reflected in the appropriate struct in config/config.go
const defaultConfigTemplate = `# This is a TOML config file.
# For more information, see https://github.com/toml-lang/toml

# NOTE: Any path below can be absolute (e.g. "/var/agridash/data") or
# relative to the home directory (e.g. "data"). The home directory is
# "$HOME/.agridash" by default, but could be changed via $AGRIDASH_HOME env
# variable or --home cmd flag.

#######################################################################
###                   Main Base Config Options                      ###
#######################################################################

# Database backend: goleveldb | memdb
db-backend = "{{ .BaseConfig.DBBackend }}"

# Database directory
db-dir = "{{ js .BaseConfig.DBPath }}"

# Output level for logging: debug | info | warn | error
log-level = "{{ .BaseConfig.LogLevel }}"

# Output format: 'plain' (colored text) or 'json'
log-format = "{{ .BaseConfig.LogFormat }}"

#######################################################################
###                    Chain Configuration Options                  ###
#######################################################################
[chain]

# JSON-RPC endpoint of the chain
rpc-url = "{{ .Chain.RPCURL }}"

# EIP-155 chain id
chain-id = {{ .Chain.ChainID }}

# AGT token contract
token-address = "{{ .Chain.TokenAddress }}"

# Marketplace contract
marketplace-address = "{{ .Chain.MarketplaceAddress }}"

# Encrypted go-ethereum keystore file holding the wallet key
keystore-file = "{{ js .Chain.Keystore }}"

# Environment variable holding the keystore passphrase. When it is unset
# the passphrase is asked for on the terminal.
passphrase-env = "{{ .Chain.PassphraseEnv }}"

# Environment variable holding a hex encoded private key. Used when the
# keystore file does not exist.
key-env = "{{ .Chain.KeyEnv }}"

# How often to poll for transaction receipts
poll-interval = "{{ .Chain.PollInterval }}"

# Number of blocks a receipt must be buried under to count as confirmed
confirmations = {{ .Chain.Confirmations }}

# Factor applied to estimated gas limits
gas-multiplier = {{ .Chain.GasMultiplier }}

#######################################################################
###                 Dashboard API Configuration Options             ###
#######################################################################
[rpc]

# TCP or UNIX socket address for the API server to listen on
laddr = "{{ .RPC.ListenAddress }}"

# A list of origins a cross-domain request can be executed from
# Default value '[]' disables cors support and rejects every request that
# carries an Origin header, so browser pages cannot reach the API
# Use '["*"]' to allow any origin
cors-allowed-origins = [{{ range .RPC.CORSAllowedOrigins }}{{ printf "%q, " . }}{{end}}]

# A list of methods the client is allowed to use with cross-domain requests
cors-allowed-methods = [{{ range .RPC.CORSAllowedMethods }}{{ printf "%q, " . }}{{end}}]

# A list of non simple headers the client is allowed to use with cross-domain requests
cors-allowed-headers = [{{ range .RPC.CORSAllowedHeaders }}{{ printf "%q, " . }}{{end}}]

# Maximum number of simultaneous connections, websockets included.
# 0 - unlimited.
max-open-connections = {{ .RPC.MaxOpenConnections }}

# Maximum size of request body, in bytes
max-body-bytes = {{ .RPC.MaxBodyBytes }}

# Maximum size of request header, in bytes
max-header-bytes = {{ .RPC.MaxHeaderBytes }}

# How long to wait for in-flight requests on shutdown
shutdown-timeout = "{{ .RPC.ShutdownTimeout }}"

#######################################################################
###                 Market Analysis Configuration Options           ###
#######################################################################
[analysis]

# AI provider used for market analysis reports: gemini | none
provider = "{{ .Analysis.Provider }}"

# Model name passed to the provider
model = "{{ .Analysis.Model }}"

# Environment variable holding the provider API key
api-key-env = "{{ .Analysis.APIKeyEnv }}"

# Deadline of a single report request
timeout = "{{ .Analysis.Timeout }}"

#######################################################################
###       Instrumentation Configuration Options                     ###
#######################################################################
[instrumentation]

# When true, Prometheus metrics are served under /metrics on
# PrometheusListenAddr.
# Check out the documentation for the list of available metrics.
prometheus = {{ .Instrumentation.Prometheus }}

# Address to listen for Prometheus collector(s) connections
prometheus-listen-addr = "{{ .Instrumentation.PrometheusListenAddr }}"

# Maximum number of simultaneous connections.
# 0 - unlimited.
max-open-connections = {{ .Instrumentation.MaxOpenConnections }}

# Instrumentation namespace
namespace = "{{ .Instrumentation.Namespace }}"
`

// ResetTestRoot creates a fresh home directory for testName under dir and
// returns a test config rooted there.
func ResetTestRoot(dir, testName string) (*Config, error) {
	rootDir, err := os.MkdirTemp(dir, fmt.Sprintf("%s-", testName))
	if err != nil {
		return nil, err
	}
	EnsureRoot(rootDir)

	config := TestConfig().SetRoot(rootDir)
	if err := WriteConfigFile(rootDir, config); err != nil {
		return nil, err
	}
	return config, nil
}

func writeFile(filePath string, contents []byte, mode os.FileMode) error {
	if _, err := atomicfile.WriteAll(filePath, bytes.NewReader(contents), mode); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
