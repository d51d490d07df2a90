// Command evmnode runs a standalone evmcore node: an in-process EVM
// execution engine fronted by a JSON-RPC server. It has no P2P layer and
// no consensus-client Engine API; it only accepts transactions and calls
// over its own RPC endpoint.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/evmcore/evmcore/node"
	"github.com/urfave/cli/v2"
)

var gitCommit = "dev"

var (
	dataDirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "Data directory for chain state",
		Value: node.DefaultConfig().DataDir,
	}
	networkFlag = &cli.StringFlag{
		Name:  "network",
		Usage: "Network genesis to load (mainnet, sepolia, holesky)",
		Value: "mainnet",
	}
	networkIDFlag = &cli.Uint64Flag{
		Name:  "networkid",
		Usage: "Explicit network identifier",
		Value: 1,
	}
	syncModeFlag = &cli.StringFlag{
		Name:  "syncmode",
		Usage: "Sync mode label recorded in node config (full, snap)",
		Value: "snap",
	}
	rpcPortFlag = &cli.IntFlag{
		Name:  "http.port",
		Usage: "HTTP-RPC server listening port",
		Value: 8545,
	}
	verbosityFlag = &cli.IntFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=trace",
		Value: 3,
	}
	metricsFlag = &cli.BoolFlag{
		Name:  "metrics",
		Usage: "Enable metrics collection",
	}
	memoryFlag = &cli.BoolFlag{
		Name:  "memory",
		Usage: "Keep chain data in memory instead of writing to datadir/chaindata",
	}
)

func main() {
	app := &cli.App{
		Name:    "evmnode",
		Usage:   "in-process EVM execution node",
		Version: gitCommit,
		Flags: []cli.Flag{
			dataDirFlag,
			networkFlag,
			networkIDFlag,
			syncModeFlag,
			rpcPortFlag,
			verbosityFlag,
			metricsFlag,
			memoryFlag,
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	cfg := node.DefaultConfig()
	cfg.DataDir = c.String(dataDirFlag.Name)
	cfg.Network = c.String(networkFlag.Name)
	cfg.NetworkID = c.Uint64(networkIDFlag.Name)
	cfg.SyncMode = c.String(syncModeFlag.Name)
	cfg.RPCPort = c.Int(rpcPortFlag.Name)
	cfg.Verbosity = c.Int(verbosityFlag.Name)
	cfg.LogLevel = node.VerbosityToLogLevel(cfg.Verbosity)
	cfg.Metrics = c.Bool(metricsFlag.Name)
	cfg.Persistent = !c.Bool(memoryFlag.Name)

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.InitDataDir(); err != nil {
		return fmt.Errorf("init datadir: %w", err)
	}

	n, err := node.New(&cfg)
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}

	if err := n.Start(); err != nil {
		return fmt.Errorf("start node: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %s, shutting down", sig)

	if err := n.Stop(); err != nil {
		return fmt.Errorf("stop node: %w", err)
	}
	return nil
}
