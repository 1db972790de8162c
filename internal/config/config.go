package config

import (
	"fmt"
	"regexp"

	"github.com/spf13/viper"
)

const ENV_PREFIX = "VAULTSIM"

type Chain string

const (
	Chain_Mainnet  Chain = "mainnet"
	Chain_Optimism Chain = "optimism"
	Chain_Polygon  Chain = "polygon"
	Chain_Arbitrum Chain = "arbitrum"
	Chain_Base     Chain = "base"
)

func (c Chain) String() string {
	return string(c)
}

var ChainNetworkIds = map[Chain]uint64{
	Chain_Mainnet:  1,
	Chain_Optimism: 10,
	Chain_Polygon:  137,
	Chain_Arbitrum: 42161,
	Chain_Base:     8453,
}

// WrappedNativeTokenAddresses maps each chain to its canonical wrapped
// native-asset contract (WETH, WMATIC).
var WrappedNativeTokenAddresses = map[Chain]string{
	Chain_Mainnet:  "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
	Chain_Optimism: "0x4200000000000000000000000000000000000006",
	Chain_Polygon:  "0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270",
	Chain_Arbitrum: "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1",
	Chain_Base:     "0x4200000000000000000000000000000000000006",
}

// NativeDepositHelperAddresses maps chains to the helper contract that wraps
// the native asset and deposits it into a vault in one call. Chains without
// an entry have no native shortcut.
var NativeDepositHelperAddresses = map[Chain]string{
	Chain_Mainnet: "0x5dcA27e2308ec72Bde54d817AD49E0f7C1d332A3",
	Chain_Base:    "0x27fD2D77eB9a82a76aaE57007bE0DB08E925d8bc",
}

type Config struct {
	Chain             Chain
	Debug             bool
	EthereumRpcConfig EthereumRpcConfig
	SimulationConfig  SimulationConfig
	OracleConfig      OracleConfig
	ZapConfig         ZapConfig
	AlertingConfig    AlertingConfig
	StatsdConfig      StatsdConfig
	PreviewConfig     PreviewConfig
}

type EthereumRpcConfig struct {
	BaseUrl string
}

// SimulationConfig points at the remote forked-state simulation backend.
type SimulationConfig struct {
	BaseUrl   string
	AccessKey string
	Account   string
	Project   string
}

type OracleConfig struct {
	BaseUrl string
}

type ZapConfig struct {
	PortalsBaseUrl string
	WidoBaseUrl    string
}

type AlertingConfig struct {
	Enabled bool
}

type StatsdConfig struct {
	Enabled bool
	Url     string
}

// PreviewConfig carries the per-invocation parameters of the preview command.
type PreviewConfig struct {
	Sender        string
	Vault         string
	Token         string
	Amount        string
	Slippage      float64
	SaveOnFailure bool
}

func (c *Config) NetworkId() (uint64, error) {
	id, ok := ChainNetworkIds[c.Chain]
	if !ok {
		return 0, fmt.Errorf("unsupported chain %s", c.Chain)
	}
	return id, nil
}

func (c *Config) WrappedNativeTokenAddress() string {
	return WrappedNativeTokenAddresses[c.Chain]
}

// Kebab-case flag names, bound to snake_case env vars by the root command.
var (
	Debug               = "debug"
	ChainFlag           = "chain"
	EthereumRpcBaseUrl  = "ethereum.rpc-url"
	SimulationBaseUrl   = "simulation.base-url"
	SimulationAccessKey = "simulation.access-key"
	SimulationAccount   = "simulation.account"
	SimulationProject   = "simulation.project"
	OracleBaseUrl       = "oracle.base-url"
	ZapPortalsBaseUrl   = "zaps.portals.base-url"
	ZapWidoBaseUrl      = "zaps.wido.base-url"
	AlertingEnabled     = "alerting.enabled"
	StatsdEnabled       = "datadog.statsd.enabled"
	StatsdUrl           = "datadog.statsd.url"

	PreviewSender        = "preview.sender"
	PreviewVault         = "preview.vault"
	PreviewToken         = "preview.token"
	PreviewAmount        = "preview.amount"
	PreviewSlippage      = "preview.slippage"
	PreviewSaveOnFailure = "preview.save-on-failure"
)

var kebabRegex = regexp.MustCompile(`[-.]`)

func KebabToSnakeCase(s string) string {
	return kebabRegex.ReplaceAllString(s, "_")
}

// NewConfig builds a Config from viper, which the root command has bound to
// flags and VAULTSIM_* environment variables.
func NewConfig() *Config {
	return &Config{
		Chain: Chain(viper.GetString(KebabToSnakeCase(ChainFlag))),
		Debug: viper.GetBool(KebabToSnakeCase(Debug)),

		EthereumRpcConfig: EthereumRpcConfig{
			BaseUrl: viper.GetString(KebabToSnakeCase(EthereumRpcBaseUrl)),
		},

		SimulationConfig: SimulationConfig{
			BaseUrl:   viper.GetString(KebabToSnakeCase(SimulationBaseUrl)),
			AccessKey: viper.GetString(KebabToSnakeCase(SimulationAccessKey)),
			Account:   viper.GetString(KebabToSnakeCase(SimulationAccount)),
			Project:   viper.GetString(KebabToSnakeCase(SimulationProject)),
		},

		OracleConfig: OracleConfig{
			BaseUrl: viper.GetString(KebabToSnakeCase(OracleBaseUrl)),
		},

		ZapConfig: ZapConfig{
			PortalsBaseUrl: viper.GetString(KebabToSnakeCase(ZapPortalsBaseUrl)),
			WidoBaseUrl:    viper.GetString(KebabToSnakeCase(ZapWidoBaseUrl)),
		},

		AlertingConfig: AlertingConfig{
			Enabled: viper.GetBool(KebabToSnakeCase(AlertingEnabled)),
		},

		StatsdConfig: StatsdConfig{
			Enabled: viper.GetBool(KebabToSnakeCase(StatsdEnabled)),
			Url:     viper.GetString(KebabToSnakeCase(StatsdUrl)),
		},

		PreviewConfig: PreviewConfig{
			Sender:        viper.GetString(KebabToSnakeCase(PreviewSender)),
			Vault:         viper.GetString(KebabToSnakeCase(PreviewVault)),
			Token:         viper.GetString(KebabToSnakeCase(PreviewToken)),
			Amount:        viper.GetString(KebabToSnakeCase(PreviewAmount)),
			Slippage:      viper.GetFloat64(KebabToSnakeCase(PreviewSlippage)),
			SaveOnFailure: viper.GetBool(KebabToSnakeCase(PreviewSaveOnFailure)),
		},
	}
}
