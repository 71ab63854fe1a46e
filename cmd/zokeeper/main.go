// Command zokeeper runs the crank, event-queue consumer, liquidator, and
// recorder workers for a zo-protocol margin market deployment.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zo-protocol/zo-keeper-go/internal/accounts"
	"github.com/zo-protocol/zo-keeper-go/internal/chain"
	"github.com/zo-protocol/zo-keeper-go/internal/config"
	"github.com/zo-protocol/zo-keeper-go/internal/consumer"
	"github.com/zo-protocol/zo-keeper-go/internal/crank"
	"github.com/zo-protocol/zo-keeper-go/internal/liquidator"
	"github.com/zo-protocol/zo-keeper-go/internal/recorder"
	"github.com/zo-protocol/zo-keeper-go/internal/specialorders"
)

var (
	configPath string
	envPath    string
)

func main() {
	root := &cobra.Command{
		Use:   "zokeeper",
		Short: "Off-chain keeper and liquidator for a zo-protocol margin market",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the deployment's YAML config")
	root.PersistentFlags().StringVar(&envPath, "env", ".env", "path to an optional .env file carrying secrets")

	root.AddCommand(
		newCrankCmd(),
		newConsumerCmd(),
		newLiquidatorCmd(),
		newRecorderCmd(),
		newSpecialOrdersCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCrankCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crank",
		Short: "Run cache_oracle / cache_interest_rates / update_perp_funding on a timer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), func(ctx context.Context, app *chain.AppState, d *chain.Dispatcher, cfg *config.Config) error {
				crankCfg := crank.DefaultConfig()
				crankCfg.OracleSource = oracleSourceMap(cfg)
				return crank.New(app, crankCfg, d).Run(ctx)
			})
		},
	}
}

func newConsumerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consumer",
		Short: "Consume each live market's event queue and crank realized PnL",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), func(ctx context.Context, app *chain.AppState, d *chain.Dispatcher, cfg *config.Config) error {
				return consumer.New(app, consumer.DefaultConfig(), d).Run(ctx)
			})
		},
	}
}

func newLiquidatorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "liquidator",
		Short: "Mirror Margin/Control accounts and liquidate unsafe ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), func(ctx context.Context, app *chain.AppState, d *chain.Dispatcher, cfg *config.Config) error {
				liqCfg := liquidator.DefaultConfig()
				liqCfg.WorkerIndex = cfg.WorkerIndex
				liqCfg.WorkerCount = cfg.WorkerCount
				liqCfg.CollateralSymbols = cfg.CollateralSymbols()
				return liquidator.New(app, liqCfg, d).Run(ctx)
			})
		},
	}
}

func newRecorderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recorder",
		Short: "Record trades, funding, liquidations, and TWAPs to MongoDB",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), func(ctx context.Context, app *chain.AppState, d *chain.Dispatcher, cfg *config.Config) error {
				store, err := recorder.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
				if err != nil {
					return err
				}
				defer store.Close(ctx)
				return recorder.New(app, recorder.DefaultConfig(), store).Run(ctx)
			})
		},
	}
}

func newSpecialOrdersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "special-orders",
		Short: "Trigger conditional orders against the cached mark price",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), func(ctx context.Context, app *chain.AppState, d *chain.Dispatcher, cfg *config.Config) error {
				return specialorders.New(app, specialorders.DefaultConfig(), d).Run(ctx)
			})
		},
	}
}

// run wires the shared AppState/Dispatcher/Config boilerplate every
// subcommand needs, then runs fn until SIGINT/SIGTERM.
func run(parentCtx context.Context, fn func(ctx context.Context, app *chain.AppState, d *chain.Dispatcher, cfg *config.Config) error) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, err := config.Load(configPath, envPath)
	if err != nil {
		return err
	}

	payer, err := solana.PrivateKeyFromSolanaKeygenFile(cfg.PayerKeypairPath)
	if err != nil {
		return fmt.Errorf("load payer keypair: %w", err)
	}

	ctx, stop := signal.NotifyContext(parentCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := chain.New(ctx, chain.Config{
		RPCURL:      cfg.RPCURL,
		WSURL:       cfg.WSURL,
		Payer:       payer,
		ProgramID:   solana.MustPublicKeyFromBase58(cfg.ProgramID),
		DexProgram:  solana.MustPublicKeyFromBase58(cfg.DexProgram),
		StatePubkey: solana.MustPublicKeyFromBase58(cfg.StatePubkey),
		CachePubkey: solana.MustPublicKeyFromBase58(cfg.CachePubkey),
		OracleCount: cfg.OracleCount,
		Commitment:  rpc.CommitmentConfirmed,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("initialize app state: %w", err)
	}

	d := chain.NewDispatcher(8)
	return fn(ctx, app, d, cfg)
}

func oracleSourceMap(cfg *config.Config) map[accounts.Symbol]solana.PublicKey {
	out := make(map[accounts.Symbol]solana.PublicKey, len(cfg.Oracles))
	for symbol, source := range cfg.OracleSources() {
		out[symbol] = solana.MustPublicKeyFromBase58(source)
	}
	return out
}
