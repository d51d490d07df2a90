// Package node implements the evmcore process lifecycle, wiring together
// the blockchain, block builder, and JSON-RPC server. There is no P2P layer
// and no consensus-client Engine API: this is a self-contained, in-process
// node substitute, not a syncing participant on a live network.
package node

import (
	"errors"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/evmcore/evmcore/core"
	"github.com/evmcore/evmcore/core/rawdb"
	"github.com/evmcore/evmcore/core/state"
	"github.com/evmcore/evmcore/metrics"
	"github.com/evmcore/evmcore/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Node is the top-level evmcore node that manages the blockchain, block
// builder, and RPC server.
type Node struct {
	config *Config

	// Subsystems.
	db         rawdb.Database
	blockchain *core.Blockchain
	builder    *core.BlockBuilder
	rpcServer  *http.Server
	rpcHandler *rpc.Server
	events     *EventBus

	lifecycle *LifecycleManager
	health    *HealthChecker

	// chainMu serializes eth_sendTransaction so that block building and
	// insertion is never interleaved between concurrent RPC calls.
	chainMu sync.Mutex

	mu      sync.Mutex
	running bool
	stop    chan struct{}
}

// New creates a new Node with the given configuration. It initializes
// all subsystems but does not start any network services.
func New(config *Config) (*Node, error) {
	if config == nil {
		c := DefaultConfig()
		config = &c
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	n := &Node{
		config: config,
		stop:   make(chan struct{}),
		events: NewEventBus(32),
	}

	// Initialize the backing key-value store. Persistent nodes keep chain
	// data in a pebble database under the data directory; everything else
	// (tests, ephemeral instances) uses a plain in-memory map.
	if config.Persistent {
		chainDataDir := config.ResolvePath("chaindata")
		pdb, err := rawdb.NewPebbleDB(chainDataDir)
		if err != nil {
			return nil, fmt.Errorf("open chaindata: %w", err)
		}
		n.db = pdb
	} else {
		n.db = rawdb.NewMemoryDB()
	}

	// Initialize blockchain with a genesis block. There is a single fixed
	// chain configuration: no fork ladder to select between networks.
	genesis := genesisForNetwork(config.Network)
	statedb := state.NewMemoryStateDB()
	genesisBlock := genesis.SetupGenesisBlock(statedb)

	bc, err := core.NewBlockchain(genesis.Config, genesisBlock, statedb, n.db)
	if err != nil {
		return nil, fmt.Errorf("init blockchain: %w", err)
	}
	n.blockchain = bc
	n.builder = core.NewBlockBuilder(bc.Config(), bc)

	// Initialize RPC server with blockchain backend.
	backend := newNodeBackend(n)
	n.rpcHandler = rpc.NewServer(backend)

	n.lifecycle = NewLifecycleManager(DefaultLifecycleConfig())
	if err := n.lifecycle.Register(&rpcService{node: n}, 0); err != nil {
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	n.health = NewHealthChecker()
	n.health.RegisterSubsystem("blockchain", &blockchainChecker{chain: n.blockchain})
	n.health.RegisterSubsystem("rpc", &rpcChecker{node: n})

	return n, nil
}

// Start starts all node subsystems in order.
func (n *Node) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.running {
		return errors.New("node already running")
	}

	log.Printf("Starting evmcore node (network=%s)", n.config.Network)

	if errs := n.lifecycle.StartAll(); len(errs) > 0 {
		return fmt.Errorf("start services: %v", errs)
	}
	n.health.SetStartTime(time.Now().Unix())

	n.running = true
	log.Println("Node started successfully")
	return nil
}

// Stop gracefully shuts down all subsystems in reverse order.
func (n *Node) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.running {
		return nil
	}

	log.Println("Stopping evmcore node...")

	if errs := n.lifecycle.StopAll(); len(errs) > 0 {
		log.Printf("service stop errors: %v", errs)
	}

	n.events.Close()

	// Close database.
	if err := n.db.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	n.running = false
	close(n.stop)
	log.Println("Node stopped")
	return nil
}

// Wait blocks until the node is stopped.
func (n *Node) Wait() {
	<-n.stop
}

// Blockchain returns the blockchain instance.
func (n *Node) Blockchain() *core.Blockchain {
	return n.blockchain
}

// Events returns the node's event bus.
func (n *Node) Events() *EventBus {
	return n.events
}

// Config returns the node configuration.
func (n *Node) Config() *Config {
	return n.config
}

// Running reports whether the node is currently running.
func (n *Node) Running() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.running
}

// Health returns a consolidated health report across all subsystems.
func (n *Node) Health() *HealthReport {
	return n.health.CheckAll()
}

// rpcService adapts the HTTP RPC server to the Service interface so the
// lifecycle manager can start and stop it alongside other subsystems.
type rpcService struct {
	node *Node
}

func (s *rpcService) Name() string { return "rpc" }

func (s *rpcService) Start() error {
	n := s.node

	mux := http.NewServeMux()
	mux.Handle("/", n.rpcHandler.Handler())
	if n.config.Metrics {
		promReg := prometheus.NewRegistry()
		promReg.MustRegister(metrics.NewRegistryCollector(metrics.DefaultRegistry, "evmcore"))
		mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	}

	n.rpcServer = &http.Server{
		Addr:    n.config.RPCAddr(),
		Handler: mux,
	}
	go func() {
		log.Printf("RPC server listening on %s", n.config.RPCAddr())
		if err := n.rpcServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("RPC server error: %v", err)
		}
	}()
	return nil
}

func (s *rpcService) Stop() error {
	if s.node.rpcServer == nil {
		return nil
	}
	return s.node.rpcServer.Close()
}

// blockchainChecker reports the blockchain subsystem healthy as long as it
// has a current head block.
type blockchainChecker struct {
	chain *core.Blockchain
}

func (c *blockchainChecker) Check() *SubsystemHealth {
	if c.chain == nil || c.chain.CurrentBlock() == nil {
		return &SubsystemHealth{Status: StatusUnhealthy, Message: "no current block"}
	}
	return &SubsystemHealth{Status: StatusHealthy}
}

// rpcChecker reports the RPC subsystem healthy once its HTTP server has
// been started.
type rpcChecker struct {
	node *Node
}

func (c *rpcChecker) Check() *SubsystemHealth {
	if c.node.rpcServer == nil {
		return &SubsystemHealth{Status: StatusDegraded, Message: "rpc server not started"}
	}
	return &SubsystemHealth{Status: StatusHealthy}
}

// genesisForNetwork returns the genesis specification for the given network
// label. The label only selects the pre-funded allocation and chain id; the
// instruction set and block-processing rules are identical across all of
// them, since this core has no historical hardfork ladder.
func genesisForNetwork(network string) *core.Genesis {
	genesis := core.DefaultGenesisBlock()
	switch network {
	case "sepolia":
		genesis.Config = &core.ChainConfig{ChainID: big.NewInt(11155111)}
	case "holesky":
		genesis.Config = &core.ChainConfig{ChainID: big.NewInt(17000)}
	default:
		genesis.Config = &core.ChainConfig{ChainID: big.NewInt(1)}
	}
	return genesis
}
