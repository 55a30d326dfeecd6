package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	grpcHandler "github.com/anthanhphan/go-shard-ring/internal/node/adapter/inbound/grpc"
	httpHandler "github.com/anthanhphan/go-shard-ring/internal/node/adapter/inbound/http"
	"github.com/anthanhphan/go-shard-ring/internal/node/adapter/outbound/etcd"
	"github.com/anthanhphan/go-shard-ring/internal/node/adapter/outbound/logstore"
	"github.com/anthanhphan/go-shard-ring/internal/node/adapter/outbound/memstore"
	"github.com/anthanhphan/go-shard-ring/internal/node/adapter/outbound/mongostore"
	"github.com/anthanhphan/go-shard-ring/internal/node/adapter/outbound/peer"
	promMetrics "github.com/anthanhphan/go-shard-ring/internal/node/adapter/outbound/prometheus"
	"github.com/anthanhphan/go-shard-ring/internal/node/adapter/outbound/redisstore"
	"github.com/anthanhphan/go-shard-ring/internal/node/adapter/outbound/zookeeper"
	"github.com/anthanhphan/go-shard-ring/internal/node/config"
	"github.com/anthanhphan/go-shard-ring/internal/node/port"
	"github.com/anthanhphan/go-shard-ring/internal/node/service"
	"github.com/anthanhphan/go-shard-ring/pkg/gossip"
	"github.com/anthanhphan/go-shard-ring/pkg/idgen"
	"github.com/anthanhphan/go-shard-ring/pkg/resilience"
	"github.com/anthanhphan/go-shard-ring/pkg/ring"
	"github.com/anthanhphan/gosdk/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
)

const shutdownTimeout = 10 * time.Second

// Option adjusts the loaded configuration before validation.
type Option func(cfg *config.Config)

// WithName overrides server.name.
func WithName(name string) Option {
	return func(cfg *config.Config) {
		if name != "" {
			cfg.Server.Name = name
		}
	}
}

// WithPort overrides server.port.
func WithPort(p int) Option {
	return func(cfg *config.Config) {
		if p > 0 {
			cfg.Server.Port = p
		}
	}
}

type App struct {
	cfg  *config.Config
	self ring.Node
	ring *ring.Ring

	gateway port.CoordinationGateway
	gossip  *gossip.GossipAdapter
	repo    port.RecordRepository
	redis   *redis.Client

	watcher   *service.MembershipWatcher
	registrar *service.SelfRegistrar
	peers     *peer.Client

	server *httpHandler.Server
	health *grpcHandler.HealthServer

	backgroundStop context.CancelFunc
	background     sync.WaitGroup
}

func New(configPath string, opts ...Option) (*App, error) {
	// 1. Load Config
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// 2. Initialize Logger
	logger.InitLogger(&cfg.Logger)

	a := &App{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			a.closeOutbound()
		}
	}()

	// 3. Ring and self descriptor
	hasher, err := ring.NewHasher(cfg.App.Hash, cfg.App.RingSize)
	if err != nil {
		return nil, fmt.Errorf("failed to init hasher: %w", err)
	}
	a.ring = ring.NewRing(hasher)
	a.self = selfDescriptor(cfg, hasher)

	// 4. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := promMetrics.NewMetrics(registry)

	// 5. Redis (record store and/or request ID clock)
	if cfg.Storage.Driver == config.StoreRedis || cfg.App.IDClock == config.ClockRedis {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	// 6. Record store
	a.repo, err = a.openStore()
	if err != nil {
		return nil, err
	}

	// 7. Coordination gateway
	a.gateway, err = a.openGateway()
	if err != nil {
		return nil, err
	}

	// 8. Request IDs
	var clock idgen.Clock = &idgen.SystemClock{}
	if cfg.App.IDClock == config.ClockRedis {
		clock = idgen.NewRedisClock(a.redis)
	}
	ids, err := idgen.New(idgen.NodeIDFor(a.self.Key), clock)
	if err != nil {
		return nil, fmt.Errorf("failed to init snowflake: %w", err)
	}

	// 9. Membership, registration and routing
	retry := cfg.Coordination.Retry.RetryPolicy()
	a.watcher = service.NewMembershipWatcher(a.gateway, a.ring, service.WatcherConfig{
		Directory:        cfg.Coordination.Directory,
		OperationTimeout: cfg.Coordination.OperationTimeout(),
		FetchConcurrency: cfg.Coordination.FetchConcurrency,
		Retry:            retry,
	}, metrics)
	a.registrar = service.NewSelfRegistrar(a.gateway, a.watcher, a.ring, a.self, service.RegistrarConfig{
		Directory:        cfg.Coordination.Directory,
		OperationTimeout: cfg.Coordination.OperationTimeout(),
		Retry:            retry,
	}, metrics)
	router := service.NewRouter(a.ring, a.self, metrics)

	// 10. Forwarding
	a.peers = peer.NewClient(peer.Config{
		Timeout: cfg.Forwarding.Timeout(),
		Breaker: cfg.Forwarding.Breaker(),
	}, metrics)

	// 11. Service and servers
	svc := service.NewNodeService(a.ring, a.self, router, a.repo, a.peers, a.watcher, a.registrar)
	var gatherer prometheus.Gatherer
	if cfg.Metrics.Enabled {
		gatherer = registry
	}
	a.server = httpHandler.NewServer(cfg, svc, ids, gatherer)

	if cfg.Health.GRPCPort > 0 {
		a.health = grpcHandler.NewHealthServer(cfg.Health.GRPCPort)
		a.registrar.OnChange(a.health.SetRegistered)
	}

	ok = true
	return a, nil
}

// selfDescriptor derives the node's ring key from its name, host and port
// unless server.ring_key pins it.
func selfDescriptor(cfg *config.Config, hasher ring.Hasher) ring.Node {
	key := cfg.Server.RingKey
	if key < 0 {
		key = hasher.Position([]byte(cfg.Server.Name + cfg.Server.Host + strconv.Itoa(cfg.Server.Port)))
	}
	return ring.Node{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
		Name: cfg.Server.Name,
		Key:  key,
	}
}

func (a *App) openStore() (port.RecordRepository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Coordination.SessionTimeout())
	defer cancel()

	var repo port.RecordRepository
	switch a.cfg.Storage.Driver {
	case config.StoreMongo:
		store, err := mongostore.Connect(ctx, mongostore.Config{
			URI:        a.cfg.Storage.Mongo.URI,
			Database:   a.cfg.Storage.Mongo.Database,
			Collection: a.cfg.Storage.Mongo.Collection,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to init mongo store: %w", err)
		}
		repo = store
	case config.StoreRedis:
		repo = redisstore.New(a.redis, a.cfg.Storage.RedisKey)
	case config.StoreLog:
		store, err := logstore.Open(logstore.Config{
			DataDir:        a.cfg.Storage.Log.DataDir,
			FSync:          a.cfg.Storage.Log.FSync,
			MaxSegmentSize: a.cfg.Storage.Log.MaxSegmentSize(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to init record log: %w", err)
		}
		repo = store
	default:
		repo = memstore.New()
	}

	if err := repo.Ping(ctx); err != nil {
		_ = repo.Close(context.Background())
		return nil, fmt.Errorf("record store %s unreachable: %w", a.cfg.Storage.Driver, err)
	}
	logger.Infow("Record store connected", "driver", a.cfg.Storage.Driver)
	return repo, nil
}

func (a *App) openGateway() (port.CoordinationGateway, error) {
	coord := a.cfg.Coordination
	ctx, cancel := context.WithTimeout(context.Background(), coord.SessionTimeout())
	defer cancel()

	switch coord.Driver {
	case config.DriverEtcd:
		gw, err := etcd.Connect(ctx, etcd.Config{
			Endpoints:   coord.Servers,
			DialTimeout: coord.OperationTimeout(),
			LeaseTTL:    coord.SessionTimeout(),
			Retry:       coord.Retry.RetryPolicy(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect etcd: %w", err)
		}
		return gw, nil
	case config.DriverGossip:
		gw, err := gossip.NewGossipAdapter(gossip.Config{
			NodeName:  a.cfg.Server.Name,
			BindAddr:  coord.Gossip.BindAddr,
			BindPort:  coord.Gossip.Port,
			Directory: coord.Directory,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to init gossip: %w", err)
		}
		a.gossip = gw
		return gw, nil
	default:
		gw, err := zookeeper.Connect(ctx, zookeeper.Config{
			Servers:        coord.Servers,
			SessionTimeout: coord.SessionTimeout(),
			ConnectTimeout: coord.OperationTimeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect zookeeper: %w", err)
		}
		return gw, nil
	}
}

func (a *App) Run() error {
	if a.gossip != nil {
		a.joinGossip()
	}

	bgCtx, cancel := context.WithCancel(context.Background())
	a.backgroundStop = cancel

	changes := a.watcher.Subscribe()
	a.goBackground(func() {
		if err := a.watcher.Run(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Errorw("Membership watcher stopped", "error", err.Error())
		}
	})
	a.goBackground(func() {
		if err := a.registrar.Run(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Errorw("Self-registrar stopped", "error", err.Error())
		}
	})
	a.goBackground(func() {
		for {
			select {
			case <-bgCtx.Done():
				return
			case <-changes:
				a.peers.Prune(a.ring.Snapshot().Nodes())
			}
		}
	})

	logger.Infow("Shard node starting",
		"name", a.self.Name,
		"addr", a.self.Addr(),
		"key", a.self.Key,
		"coordination", a.cfg.Coordination.Driver,
		"storage", a.cfg.Storage.Driver)

	serverErrCh := make(chan error, 2)
	go func() {
		if err := a.server.Start(); err != nil {
			serverErrCh <- fmt.Errorf("http server failed: %w", err)
		}
	}()
	if a.health != nil {
		go func() {
			if err := a.health.Start(); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				serverErrCh <- fmt.Errorf("health server failed: %w", err)
			}
		}()
	}

	// Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	var runErr error
	select {
	case sig := <-stop:
		logger.Infow("Shutdown signal received", "signal", sig.String())
	case err := <-serverErrCh:
		runErr = err
		logger.Errorw("Shard node server exited unexpectedly", "error", err.Error())
	}

	a.shutdown()
	return runErr
}

// joinGossip joins the configured seeds, skipping this node's own address.
func (a *App) joinGossip() {
	gossipCfg := a.cfg.Coordination.Gossip
	seeds := make([]string, 0, len(gossipCfg.Seeds))
	selfSeedSuffix := fmt.Sprintf(":%d", gossipCfg.Port)
	for _, seed := range gossipCfg.Seeds {
		if seed == "" {
			continue
		}
		if strings.HasSuffix(seed, selfSeedSuffix) && strings.Contains(seed, a.cfg.Server.Host) {
			continue
		}
		seeds = append(seeds, seed)
	}
	if len(seeds) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	err := resilience.Retry(ctx, resilience.DefaultRetryPolicy(), func(context.Context) error {
		return a.gossip.Join(seeds)
	}, func(attempt int, err error) {
		logger.Warnw("Failed to join cluster, retrying...", "attempt", attempt, "error", err.Error())
	})
	if err != nil {
		logger.Errorw("Failed to join cluster after retries", "error", err.Error())
	}
}

func (a *App) shutdown() {
	logger.Info("Shutting down shard node")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.server.Stop(ctx); err != nil {
		logger.Errorw("HTTP shutdown error", "error", err.Error())
	}
	if a.health != nil {
		a.health.Stop()
	}

	if a.backgroundStop != nil {
		a.backgroundStop()
	}
	a.background.Wait()

	if err := a.registrar.Deregister(ctx); err != nil {
		logger.Warnw("Deregistration failed, entry expires with the session", "path", a.registrar.Path(), "error", err.Error())
	}
	a.closeOutbound()
}

// closeOutbound releases the coordination session, the store and Redis.
func (a *App) closeOutbound() {
	if a.gateway != nil {
		if err := a.gateway.Close(); err != nil {
			logger.Warnw("Coordination session close failed", "error", err.Error())
		}
	}
	if a.repo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := a.repo.Close(ctx); err != nil {
			logger.Warnw("Record store close failed", "error", err.Error())
		}
		cancel()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			logger.Warnw("Redis close failed", "error", err.Error())
		}
	}
}

func (a *App) goBackground(fn func()) {
	a.background.Add(1)
	go func() {
		defer a.background.Done()
		fn()
	}()
}
