package coordinator

import (
	"fmt"
	"net/http"

	goredis "github.com/redis/go-redis/v9"

	"github.com/cuemby/task-sentinel/pkg/balancer"
	"github.com/cuemby/task-sentinel/pkg/events"
	"github.com/cuemby/task-sentinel/pkg/heartbeat"
	"github.com/cuemby/task-sentinel/pkg/lock"
	"github.com/cuemby/task-sentinel/pkg/memstore"
	"github.com/cuemby/task-sentinel/pkg/memsync"
	"github.com/cuemby/task-sentinel/pkg/metrics"
	"github.com/cuemby/task-sentinel/pkg/registry"
	"github.com/cuemby/task-sentinel/pkg/taskstate"
	"github.com/cuemby/task-sentinel/pkg/ticketstore"
)

// Config selects the backing store and carries every component's own
// Config, typically produced via pkg/config.
type Config struct {
	WorkerID string
	NodeID   string

	// StoreBackend is "bolt" or "redis".
	StoreBackend string
	BoltPath     string
	RedisAddr    string

	// TicketStoreKind is "embedded" (shares the bolt backend; New rejects it
	// with the redis backend) or "http" (a remote REST ticket store).
	TicketStoreKind string
	TicketStoreURL  string

	Lock      lock.Config
	Heartbeat heartbeat.Config
	Registry  registry.Config
	// Memsync carries the read-through cache's sizing via its CacheSize
	// field; the Memory Synchronizer constructs its own pkg/cache.Cache
	// internally, so there is no separate cache config here.
	Memsync  memsync.Config
	Balancer balancer.Config
}

// Coordinator owns every process-wide component and their lifecycle.
type Coordinator struct {
	backend memstore.Backend
	sync    *memsync.Synchronizer
	ticket  ticketstore.Adapter
	events  *events.Broker

	Lock      *lock.Manager
	Heartbeat *heartbeat.Monitor
	Registry  *registry.Registry
	Balancer  *balancer.Balancer
	TaskState *taskstate.Store

	collector *metrics.Collector
}

// New constructs every component in dependency order: backend, synchronizer,
// ticket store adapter, event broker, heartbeat monitor (the Lock Manager's
// Registrar), lock manager, worker registry, load balancer, the task-state/
// advisory-lock store, and the metrics collector that polls the registry
// and lock manager.
func New(cfg Config) (*Coordinator, error) {
	backend, err := newBackend(cfg)
	if err != nil {
		return nil, fmt.Errorf("coordinator: backend: %w", err)
	}

	syncCfg := cfg.Memsync
	syncCfg.WorkerID = cfg.WorkerID
	sync, err := memsync.New(syncCfg, backend)
	if err != nil {
		return nil, fmt.Errorf("coordinator: memsync: %w", err)
	}

	ticket, err := newTicketStore(cfg, backend)
	if err != nil {
		return nil, fmt.Errorf("coordinator: ticketstore: %w", err)
	}

	broker := events.NewBroker()

	hbCfg := cfg.Heartbeat
	hbCfg.WorkerID = cfg.WorkerID
	hbCfg.NodeID = cfg.NodeID
	hb := heartbeat.New(hbCfg, ticket, sync, broker, nil)

	lockMgr := lock.New(cfg.Lock, ticket, sync, hb, broker)

	reg := registry.New(cfg.Registry, sync, broker)

	lb := balancer.New(cfg.Balancer)

	taskStore := taskstate.New(sync)

	collector := metrics.NewCollector(reg, lockMgr)

	return &Coordinator{
		backend:   backend,
		sync:      sync,
		ticket:    ticket,
		events:    broker,
		Lock:      lockMgr,
		Heartbeat: hb,
		Registry:  reg,
		Balancer:  lb,
		TaskState: taskStore,
		collector: collector,
	}, nil
}

func newBackend(cfg Config) (memstore.Backend, error) {
	switch cfg.StoreBackend {
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("redis backend requires an address")
		}
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		return memstore.NewRedisBackend(client), nil
	case "", "bolt":
		path := cfg.BoltPath
		if path == "" {
			path = "./sentinel-data"
		}
		return memstore.NewBoltBackend(path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func newTicketStore(cfg Config, backend memstore.Backend) (ticketstore.Adapter, error) {
	switch cfg.TicketStoreKind {
	case "http":
		if cfg.TicketStoreURL == "" {
			return nil, fmt.Errorf("http ticket store requires a base URL")
		}
		return ticketstore.NewHTTPAdapter(cfg.TicketStoreURL, http.DefaultClient), nil
	case "", "embedded":
		boltBackend, ok := backend.(*memstore.BoltBackend)
		if !ok {
			return nil, fmt.Errorf("embedded ticket store requires a bolt backend")
		}
		return ticketstore.NewBoltAdapter(boltBackend), nil
	default:
		return nil, fmt.Errorf("unknown ticket store kind %q", cfg.TicketStoreKind)
	}
}

// Start begins every component's background loops: the synchronizer's batch
// flusher, the worker registry's cleanup sweep, the heartbeat monitor's send
// and stale-lock sweep loops, and the metrics collector's poll loop.
func (c *Coordinator) Start() {
	c.events.Start()
	c.sync.Start()
	c.Registry.Start()
	c.Heartbeat.Start()
	c.collector.Start()
}

// Stop halts every component in reverse order and closes the backend.
func (c *Coordinator) Stop() error {
	c.collector.Stop()
	c.Heartbeat.Stop()
	c.Registry.Stop()
	c.sync.Stop()
	c.events.Stop()
	return c.backend.Close()
}
