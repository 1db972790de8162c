package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/meridian-fi/vaultsim/internal/config"
	"github.com/meridian-fi/vaultsim/pkg/alerting"
	"github.com/meridian-fi/vaultsim/pkg/chainReader"
	"github.com/meridian-fi/vaultsim/pkg/clients/ethereum"
	"github.com/meridian-fi/vaultsim/pkg/clients/simulation"
	"github.com/meridian-fi/vaultsim/pkg/logger"
	"github.com/meridian-fi/vaultsim/pkg/metrics/dogstatsd"
	"github.com/meridian-fi/vaultsim/pkg/metrics/metricsTypes"
	"github.com/meridian-fi/vaultsim/pkg/pricing"
	"github.com/meridian-fi/vaultsim/pkg/simulator"
	"github.com/meridian-fi/vaultsim/pkg/utils"
	"github.com/meridian-fi/vaultsim/pkg/zaps"
	"github.com/meridian-fi/vaultsim/pkg/zaps/portals"
	"github.com/meridian-fi/vaultsim/pkg/zaps/wido"
	"github.com/meridian-fi/vaultsim/pkg/zaps/zapTypes"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var previewCmd = &cobra.Command{
	Use:   "preview [deposit|withdraw]",
	Short: "Preview a vault deposit or withdrawal without broadcasting anything",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		initPreviewCmd(cmd)
		cfg := config.NewConfig()

		operation := args[0]
		if operation != "deposit" && operation != "withdraw" {
			return fmt.Errorf("unknown operation %q, expected deposit or withdraw", operation)
		}

		l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		amount, err := utils.ParseBaseUnitAmount(cfg.PreviewConfig.Amount)
		if err != nil {
			return err
		}

		ctx := context.Background()

		executor, err := buildExecutor(cfg, l)
		if err != nil {
			return err
		}

		var outcome *simulator.TransactionOutcome
		if operation == "deposit" {
			request := &simulator.DepositRequest{
				Sender: cfg.PreviewConfig.Sender,
				Vault:  cfg.PreviewConfig.Vault,
				Token:  cfg.PreviewConfig.Token,
				Amount: amount,
			}
			if cmd.Flags().Changed(config.PreviewSlippage) {
				request.Slippage = &cfg.PreviewConfig.Slippage
			}
			outcome, err = executor.Deposit(ctx, request)
		} else {
			request := &simulator.WithdrawRequest{
				Sender: cfg.PreviewConfig.Sender,
				Vault:  cfg.PreviewConfig.Vault,
				Token:  cfg.PreviewConfig.Token,
				Amount: amount,
			}
			if cmd.Flags().Changed(config.PreviewSlippage) {
				request.Slippage = &cfg.PreviewConfig.Slippage
			}
			outcome, err = executor.Withdraw(ctx, request)
		}
		if err != nil {
			return fmt.Errorf("preview failed: %w", err)
		}

		rendered, err := json.MarshalIndent(outcome, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(rendered))
		return nil
	},
}

func buildExecutor(cfg *config.Config, l *zap.Logger) (*simulator.Executor, error) {
	networkId, err := cfg.NetworkId()
	if err != nil {
		return nil, err
	}
	networkIdStr := strconv.FormatUint(networkId, 10)

	var metricsClient metricsTypes.IMetricsClient = metricsTypes.NewNoopMetricsClient()
	if cfg.StatsdConfig.Enabled {
		metricsClient, err = dogstatsd.NewDogStatsdMetricsClient(cfg.StatsdConfig.Url, l)
		if err != nil {
			return nil, fmt.Errorf("failed to setup statsd client: %w", err)
		}
	}

	var sink alerting.ISink = alerting.NewNoopSink()
	if cfg.AlertingConfig.Enabled {
		sink, err = alerting.NewDogStatsdSink(cfg.StatsdConfig.Url, l)
		if err != nil {
			return nil, fmt.Errorf("failed to setup alerting sink: %w", err)
		}
	}

	client := ethereum.NewClient(&ethereum.EthereumClientConfig{BaseUrl: cfg.EthereumRpcConfig.BaseUrl}, l)
	cr := chainReader.NewChainReader(client, l)

	backend := simulation.NewClient(&cfg.SimulationConfig, sink, metricsClient, l)
	oracle := pricing.NewClient(&cfg.OracleConfig, networkIdStr, l)

	registry := zaps.NewRegistry(
		zaps.DefaultEligibilityTable,
		[]zapTypes.IZapProvider{
			portals.NewClient(&cfg.ZapConfig, networkIdStr, l),
			wido.NewClient(&cfg.ZapConfig, networkIdStr, l),
		}...,
	)

	return simulator.NewExecutor(cfg, cr, backend, oracle, registry, metricsClient, l, &simulator.ExecutorOptions{
		DiagnosticReplayOnFailure: cfg.PreviewConfig.SaveOnFailure,
	})
}

func initPreviewCmd(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(config.KebabToSnakeCase(f.Name), f); err != nil {
			fmt.Printf("Failed to bind flag '%s' - %+v\n", f.Name, err)
		}
		if err := viper.BindEnv(f.Name); err != nil {
			fmt.Printf("Failed to bind env '%s' - %+v\n", f.Name, err)
		}
	})
}
