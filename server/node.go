// Package server hosts one EntryPoint engine behind an HTTP JSON API and
// owns the node lifecycle around it: storage, ledger, scheduler, metrics.
package server

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-co-op/gocron/v2"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/JuggerNaut63/AA/core/config"
	"github.com/JuggerNaut63/AA/core/entrypoint"
	"github.com/JuggerNaut63/AA/core/ledger"
	"github.com/JuggerNaut63/AA/core/wallet"
	"github.com/JuggerNaut63/AA/metrics"
	"github.com/JuggerNaut63/AA/pkg/logger"
	"github.com/JuggerNaut63/AA/storage"
)

type NodeStatus = int32

const (
	initStatus NodeStatus = iota
	runningStatus
	shutdownStatus
)

// RunWithConfig starts a node from the yaml config at configPath and blocks
// until the process receives SIGINT or SIGTERM.
func RunWithConfig(configPath string) error {
	nodeConfig, err := config.NewConfig(configPath)
	if err != nil {
		return fmt.Errorf("cannot load config %s: %w", configPath, err)
	}

	node, err := NewNode(nodeConfig)
	if err != nil {
		return fmt.Errorf("cannot initialize node: %w", err)
	}
	defer node.Stop()

	if nodeConfig.FactoryAddress != (common.Address{}) {
		node.world.Register(nodeConfig.FactoryAddress, wallet.NewSimpleFactory(nodeConfig.FactoryAddress))
		node.logger.Info("account factory registered", "address", nodeConfig.FactoryAddress.Hex())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return node.Run(ctx)
}

// Node wires the engine to its runtime dependencies. One Node owns one
// badger store and one EntryPoint instance.
type Node struct {
	config *config.Config
	logger logger.Logger

	store  storage.Storage
	ledger *ledger.Ledger
	world  *entrypoint.World
	engine *entrypoint.EntryPoint

	// simulation results cache, keyed by request id
	cache *bigcache.BigCache

	scheduler gocron.Scheduler
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	validator *validator.Validate

	http *echo.Echo

	status NodeStatus
}

// NewNode builds a Node from the resolved config. The caller starts it with
// Run and is responsible for Stop on the way out.
func NewNode(c *config.Config) (*Node, error) {
	store, err := storage.New(&storage.Config{Path: c.DbPath})
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	lgr := logger.EnsureLogger(c.Logger)

	led := ledger.New(store, ledger.Config{
		MinStakeWei:        c.MinStakeWei,
		MinUnstakeDelaySec: c.MinUnstakeDelaySec,
	}, lgr)

	world := entrypoint.NewWorld()
	engine := entrypoint.New(entrypoint.Config{
		Address: c.EntryPointAddress,
		ChainID: c.ChainID,
		BaseFee: c.BaseFeeWei,
	}, led, world, store, lgr, m)

	cache, err := bigcache.New(context.Background(), bigcache.Config{
		// number of shards (must be a power of 2)
		Shards: 64,

		// a simulation snapshot goes stale as soon as ledger state moves,
		// so keep entries short-lived
		LifeWindow:  30 * time.Second,
		CleanWindow: time.Minute,

		MaxEntriesInWindow: 1000,
		MaxEntrySize:       500,

		// cache will not allocate more memory than this limit, value in MB
		HardMaxCacheSize: 64,
	})
	if err != nil {
		return nil, err
	}

	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}

	return &Node{
		config:    c,
		logger:    lgr,
		store:     store,
		ledger:    led,
		world:     world,
		engine:    engine,
		cache:     cache,
		scheduler: scheduler,
		registry:  registry,
		metrics:   m,
		validator: validator.New(),
		status:    initStatus,
	}, nil
}

// Engine exposes the underlying EntryPoint, mainly so a host process can
// register accounts, factories and paymasters before serving traffic.
func (n *Node) Engine() *entrypoint.EntryPoint {
	return n.engine
}

// Run blocks serving HTTP until ctx is cancelled or the listener fails.
func (n *Node) Run(ctx context.Context) error {
	_, err := n.scheduler.NewJob(
		gocron.DurationJob(time.Minute*10),
		gocron.NewTask(func() {
			if err := n.store.Vacuum(); err != nil {
				n.logger.Errorf("storage vacuum failed: %v", err)
			}
		}),
	)
	if err != nil {
		return err
	}
	n.scheduler.Start()

	n.status = runningStatus
	n.logger.Info("node started",
		"entrypoint", n.config.EntryPointAddress.Hex(),
		"chainId", n.config.ChainID.String(),
		"db", n.store.DbPath(),
	)

	return n.startHttpServer(ctx)
}

// Stop tears the node down in dependency order. Safe to call once.
func (n *Node) Stop() {
	n.status = shutdownStatus

	if n.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := n.http.Shutdown(ctx); err != nil {
			n.logger.Errorf("http shutdown: %v", err)
		}
	}
	if err := n.scheduler.Shutdown(); err != nil {
		n.logger.Errorf("scheduler shutdown: %v", err)
	}
	if err := n.cache.Close(); err != nil {
		n.logger.Errorf("cache close: %v", err)
	}
	if err := n.store.Close(); err != nil {
		n.logger.Errorf("storage close: %v", err)
	}
	n.logger.Info("node stopped")
}
