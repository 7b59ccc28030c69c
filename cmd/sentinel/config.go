package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/task-sentinel/pkg/config"
	"github.com/cuemby/task-sentinel/pkg/coordinator"
)

// buildCoordinatorConfig assembles a coordinator.Config from --config (if
// given) and the command's own flags, the same precedence pkg/config
// documents: file values override component defaults, flags override the
// identity/backend fields the file doesn't own exclusively.
func buildCoordinatorConfig(cmd *cobra.Command) (coordinator.Config, error) {
	var fileCfg config.Config

	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		var err error
		fileCfg, err = config.Load(path)
		if err != nil {
			return coordinator.Config{}, fmt.Errorf("loading %s: %w", path, err)
		}
	}

	workerID, _ := cmd.Flags().GetString("worker-id")
	nodeID, _ := cmd.Flags().GetString("node-id")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	storeBackend, _ := cmd.Flags().GetString("store-backend")
	redisAddr, _ := cmd.Flags().GetString("redis-addr")
	ticketStoreKind, _ := cmd.Flags().GetString("ticketstore")
	ticketStoreURL, _ := cmd.Flags().GetString("ticketstore-url")

	if workerID == "" {
		workerID = fileCfg.WorkerID
	}
	if !cmd.Flags().Changed("node-id") && fileCfg.NodeID != "" {
		nodeID = fileCfg.NodeID
	}
	if !cmd.Flags().Changed("store-backend") && fileCfg.Store.Backend != "" {
		storeBackend = fileCfg.Store.Backend
	}
	if !cmd.Flags().Changed("data-dir") && fileCfg.Store.BoltPath != "" {
		dataDir = fileCfg.Store.BoltPath
	}
	if redisAddr == "" {
		redisAddr = fileCfg.Store.RedisAddr
	}
	if !cmd.Flags().Changed("ticketstore") && fileCfg.Store.TicketStore != "" {
		ticketStoreKind = fileCfg.Store.TicketStore
	}
	if ticketStoreURL == "" {
		ticketStoreURL = fileCfg.Store.TicketStoreURL
	}

	lockCfg, err := fileCfg.Lock.ToLockConfig()
	if err != nil {
		return coordinator.Config{}, err
	}
	hbCfg, err := fileCfg.Heartbeat.ToHeartbeatConfig()
	if err != nil {
		return coordinator.Config{}, err
	}
	regCfg, err := fileCfg.Registry.ToRegistryConfig()
	if err != nil {
		return coordinator.Config{}, err
	}
	syncCfg, err := fileCfg.Memsync.ToMemsyncConfig()
	if err != nil {
		return coordinator.Config{}, err
	}
	balCfg, err := fileCfg.Balancer.ToBalancerConfig()
	if err != nil {
		return coordinator.Config{}, err
	}

	return coordinator.Config{
		WorkerID:        workerID,
		NodeID:          nodeID,
		StoreBackend:    storeBackend,
		BoltPath:        dataDir,
		RedisAddr:       redisAddr,
		TicketStoreKind: ticketStoreKind,
		TicketStoreURL:  ticketStoreURL,
		Lock:            lockCfg,
		Heartbeat:       hbCfg,
		Registry:        regCfg,
		Memsync:         syncCfg,
		Balancer:        balCfg,
	}, nil
}

func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("worker-id", "", "Worker identifier (generated by the registry if running as a fresh worker)")
	cmd.Flags().String("node-id", "node-1", "Node identifier reported in registration and heartbeats")
	cmd.Flags().String("data-dir", "./sentinel-data", "Bolt data directory (bolt backend only)")
	cmd.Flags().String("store-backend", "bolt", "Shared memory backend: bolt or redis")
	cmd.Flags().String("redis-addr", "", "Redis address (redis backend only)")
	cmd.Flags().String("ticketstore", "embedded", "Ticket store adapter: embedded or http")
	cmd.Flags().String("ticketstore-url", "", "Ticket store base URL (http adapter only)")
}
