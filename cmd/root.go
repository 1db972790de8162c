package cmd

import (
	"os"
	"strings"

	"github.com/meridian-fi/vaultsim/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "vaultsim",
	Short: "Vaultsim previews vault deposits and withdrawals against a forked chain snapshot",
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	initConfig(rootCmd)

	rootCmd.PersistentFlags().Bool(config.Debug, false, `"true" or "false"`)
	rootCmd.PersistentFlags().StringP(config.ChainFlag, "c", "mainnet", "The chain to use (mainnet, optimism, polygon, arbitrum, base)")

	rootCmd.PersistentFlags().String(config.EthereumRpcBaseUrl, "", `e.g. "http://<hostname>:8545"`)

	rootCmd.PersistentFlags().String(config.SimulationBaseUrl, "", `Base url of the simulation backend`)
	rootCmd.PersistentFlags().String(config.SimulationAccessKey, "", `Access key for the simulation backend`)
	rootCmd.PersistentFlags().String(config.SimulationAccount, "", `Simulation backend account slug`)
	rootCmd.PersistentFlags().String(config.SimulationProject, "", `Simulation backend project slug`)

	rootCmd.PersistentFlags().String(config.OracleBaseUrl, "", `Base url of the token price oracle`)

	rootCmd.PersistentFlags().String(config.ZapPortalsBaseUrl, "https://api.portals.fi", `Base url of the Portals zap api`)
	rootCmd.PersistentFlags().String(config.ZapWidoBaseUrl, "https://api.joinwido.com", `Base url of the Wido zap api`)

	rootCmd.PersistentFlags().Bool(config.AlertingEnabled, false, `Report simulation anomalies to the statsd event stream`)

	rootCmd.PersistentFlags().Bool(config.StatsdEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().String(config.StatsdUrl, "", `e.g. "localhost:8125"`)

	rootCmd.AddCommand(previewCmd)

	previewCmd.PersistentFlags().String(config.PreviewSender, "", `Address the previewed transaction is sent from`)
	previewCmd.PersistentFlags().String(config.PreviewVault, "", `Vault address`)
	previewCmd.PersistentFlags().String(config.PreviewToken, "", `Token to deposit from or withdraw into`)
	previewCmd.PersistentFlags().String(config.PreviewAmount, "", `Amount in base units`)
	previewCmd.PersistentFlags().Float64(config.PreviewSlippage, 0, `Slippage tolerance in percent (required for zap routes)`)
	previewCmd.PersistentFlags().Bool(config.PreviewSaveOnFailure, false, `Replay failed simulations with persistence for diagnostics`)

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		key := config.KebabToSnakeCase(f.Name)
		viper.BindPFlag(key, f) //nolint:errcheck
		viper.BindEnv(key)      //nolint:errcheck
	})
}

func initConfig(cmd *cobra.Command) {
	viper.SetEnvPrefix(config.ENV_PREFIX)

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.AutomaticEnv()
}
