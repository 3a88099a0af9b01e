package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/interchainx/fusion-escrow/pkg/config"
	"github.com/interchainx/fusion-escrow/pkg/escrow"
	"github.com/interchainx/fusion-escrow/pkg/ledger"
	"github.com/interchainx/fusion-escrow/pkg/orderbook"
	"github.com/interchainx/fusion-escrow/pkg/resolver"
	"github.com/interchainx/fusion-escrow/pkg/server"
	"github.com/interchainx/fusion-escrow/pkg/types"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "resolverd",
	Short: "Fusion escrow resolver service",
	Long: `Runs the cross-chain escrow resolver over a pair of local in-process
chains, together with the HTTP/WS observability API. Intended for protocol
development and integration testing.`,
	RunE: runResolver,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the resolver service",
	RunE:  runResolver,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("fusion-escrow resolverd v0.1.0")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(versionCmd)
}

// Local simulation identities. The resolver treasury doubles as the owning
// identity for the demo deployment.
var (
	ownerAddr   = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	srcFactory  = common.HexToAddress("0x0000000000000000000000000000000000fac101")
	dstFactory  = common.HexToAddress("0x0000000000000000000000000000000000fac102")
	bookAddr    = common.HexToAddress("0x0000000000000000000000000000000000b00c01")
	genesisFund = math.NewInt(1_000_000_000)
)

func runResolver(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := config.BuildLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting fusion escrow resolver",
		zap.Duration("timelock_margin", cfg.Resolver.TimelockMargin),
		zap.String("listen_addr", cfg.Server.ListenAddr))

	src := newChain("source", srcFactory, logger)
	dst := newChain("destination", dstFactory, logger)

	r := resolver.NewResolver(ownerAddr, ownerAddr, src, dst, cfg.Resolver.TimelockMargin, logger.Named("resolver"))
	svc := resolver.NewService(r, cfg.Resolver, logger.Named("service"))

	book := orderbook.NewBook(bookAddr, dst.Ledger, dst.Clock, dst.Bus, logger.Named("orderbook"))

	apiServer := server.NewServer(cfg.Server, r, svc, book, logger.Named("server"), src.Bus, dst.Bus)

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start resolver service: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start api server: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("context cancelled")
	}

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api server shutdown failed", zap.Error(err))
	}
	if err := svc.Stop(); err != nil {
		logger.Error("resolver service shutdown failed", zap.Error(err))
		return err
	}

	logger.Info("resolver stopped")
	return nil
}

// newChain builds one in-process chain with a genesis balance for the
// resolver treasury.
func newChain(name string, factoryID common.Address, logger *zap.Logger) *resolver.Chain {
	l := ledger.NewInMemory()
	clock := types.SystemClock{}
	bus := types.NewBus()
	factory := escrow.NewFactory(factoryID, l, clock, bus, logger.Named(name))

	l.Mint(types.NativeAsset(), ownerAddr, genesisFund)

	return &resolver.Chain{
		Name:    name,
		Factory: factory,
		Ledger:  l,
		Clock:   clock,
		Bus:     bus,
	}
}
