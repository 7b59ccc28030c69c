package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/task-sentinel/pkg/balancer"
	"github.com/cuemby/task-sentinel/pkg/cache"
	"github.com/cuemby/task-sentinel/pkg/heartbeat"
	"github.com/cuemby/task-sentinel/pkg/lock"
	"github.com/cuemby/task-sentinel/pkg/memsync"
	"github.com/cuemby/task-sentinel/pkg/registry"
)

// Config is the top-level shape of sentinel.yaml. Every duration field is a
// string (e.g. "5m", "250ms") so the file stays human-editable; Load only
// decodes the file, and each section's To*Config method parses and
// validates them, filling anything left unset from the component's own
// Default*Config().
type Config struct {
	WorkerID   string `yaml:"worker_id"`
	NodeID     string `yaml:"node_id"`
	ListenAddr string `yaml:"listen_addr"`

	Store StoreConfig `yaml:"store"`

	Lock      LockConfig      `yaml:"lock"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Registry  RegistryConfig  `yaml:"registry"`
	Memsync   MemsyncConfig   `yaml:"memsync"`
	Cache     CacheConfig     `yaml:"cache"`
	Balancer  BalancerConfig  `yaml:"balancer"`
}

// StoreConfig selects and configures the Shared Memory Backend Adapter and
// the Ticket Store Adapter.
type StoreConfig struct {
	// Backend is "bolt" (embedded, default) or "redis".
	Backend string `yaml:"backend"`
	// BoltPath is the data directory used when Backend is "bolt".
	BoltPath string `yaml:"bolt_path"`
	// RedisAddr is the server address used when Backend is "redis".
	RedisAddr string `yaml:"redis_addr"`

	// TicketStore is "embedded" (bbolt, local/dev) or "http" (remote REST).
	TicketStore string `yaml:"ticketstore"`
	// TicketStoreURL is the base URL used when TicketStore is "http".
	TicketStoreURL string `yaml:"ticketstore_url"`
}

type LockConfig struct {
	InitialBackoff   string  `yaml:"initial_backoff"`
	MaxBackoff       string  `yaml:"max_backoff"`
	MaxRetries       int     `yaml:"max_retries"`
	RateLimitBackoff string  `yaml:"rate_limit_backoff"`
	LockTimeout      string  `yaml:"lock_timeout"`
	JitterFraction   float64 `yaml:"jitter_fraction"`
}

type HeartbeatConfig struct {
	HeartbeatInterval   string  `yaml:"heartbeat_interval"`
	RetryAttempts       int     `yaml:"retry_attempts"`
	RetryDelay          string  `yaml:"retry_delay"`
	DetectionInterval   string  `yaml:"detection_interval"`
	StaleThreshold      string  `yaml:"stale_threshold"`
	HealthyThreshold    string  `yaml:"healthy_threshold"`
	DegradedThreshold   string  `yaml:"degraded_threshold"`
	CPUUnhealthyPercent float64 `yaml:"cpu_unhealthy_percent"`
}

type RegistryConfig struct {
	WorkerTTL         string `yaml:"worker_ttl"`
	HealthyThreshold  string `yaml:"healthy_threshold"`
	DegradedThreshold string `yaml:"degraded_threshold"`
	CleanupInterval   string `yaml:"cleanup_interval"`
}

type MemsyncConfig struct {
	DefaultTTL    string `yaml:"default_ttl"`
	CacheSize     int    `yaml:"cache_size"`
	BatchInterval string `yaml:"batch_interval"`
}

type CacheConfig struct {
	MaxEntries int `yaml:"max_entries"`
}

type BalancerConfig struct {
	LoadThreshold           float64 `yaml:"load_threshold"`
	UnderutilizedThreshold  float64 `yaml:"underutilized_threshold"`
	ReliabilityWindow       string  `yaml:"reliability_window"`
	WeightFloor             float64 `yaml:"weight_floor"`
	WeightCeiling           float64 `yaml:"weight_ceiling"`
	WeightRecomputeInterval string  `yaml:"weight_recompute_interval"`
	VarianceThreshold       float64 `yaml:"variance_threshold"`
	SpreadThreshold         float64 `yaml:"spread_threshold"`
}

// Load reads path, unmarshals it into Config, and returns it unchanged
// beyond parsing; callers convert individual sections to their component
// Config via the To*Config methods, which fill unset fields from defaults.
func Load(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// duration parses s, falling back to def if s is empty. An invalid
// (non-empty, unparseable) value is an error the caller should surface at
// startup rather than silently ignore.
func duration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}

// ToLockConfig fills c's parsed values over lock.DefaultConfig(), erroring
// if any duration string fails to parse.
func (c LockConfig) ToLockConfig() (lock.Config, error) {
	out := lock.DefaultConfig()
	var err error
	if out.InitialBackoff, err = duration(c.InitialBackoff, out.InitialBackoff); err != nil {
		return out, fmt.Errorf("lock.initial_backoff: %w", err)
	}
	if out.MaxBackoff, err = duration(c.MaxBackoff, out.MaxBackoff); err != nil {
		return out, fmt.Errorf("lock.max_backoff: %w", err)
	}
	if out.RateLimitBackoff, err = duration(c.RateLimitBackoff, out.RateLimitBackoff); err != nil {
		return out, fmt.Errorf("lock.rate_limit_backoff: %w", err)
	}
	if out.LockTimeout, err = duration(c.LockTimeout, out.LockTimeout); err != nil {
		return out, fmt.Errorf("lock.lock_timeout: %w", err)
	}
	if c.MaxRetries != 0 {
		out.MaxRetries = c.MaxRetries
	}
	if c.JitterFraction != 0 {
		out.JitterFraction = c.JitterFraction
	}
	return out, nil
}

// ToHeartbeatConfig fills c's parsed values over heartbeat.DefaultConfig().
// WorkerID/NodeID are set separately by the caller from Config's top-level
// fields, matching DefaultConfig's documented contract.
func (c HeartbeatConfig) ToHeartbeatConfig() (heartbeat.Config, error) {
	out := heartbeat.DefaultConfig()
	var err error
	if out.HeartbeatInterval, err = duration(c.HeartbeatInterval, out.HeartbeatInterval); err != nil {
		return out, fmt.Errorf("heartbeat.heartbeat_interval: %w", err)
	}
	if out.RetryDelay, err = duration(c.RetryDelay, out.RetryDelay); err != nil {
		return out, fmt.Errorf("heartbeat.retry_delay: %w", err)
	}
	if out.DetectionInterval, err = duration(c.DetectionInterval, out.DetectionInterval); err != nil {
		return out, fmt.Errorf("heartbeat.detection_interval: %w", err)
	}
	if out.StaleThreshold, err = duration(c.StaleThreshold, out.StaleThreshold); err != nil {
		return out, fmt.Errorf("heartbeat.stale_threshold: %w", err)
	}
	if out.HealthyThreshold, err = duration(c.HealthyThreshold, out.HealthyThreshold); err != nil {
		return out, fmt.Errorf("heartbeat.healthy_threshold: %w", err)
	}
	if out.DegradedThreshold, err = duration(c.DegradedThreshold, out.DegradedThreshold); err != nil {
		return out, fmt.Errorf("heartbeat.degraded_threshold: %w", err)
	}
	if c.RetryAttempts != 0 {
		out.RetryAttempts = c.RetryAttempts
	}
	if c.CPUUnhealthyPercent != 0 {
		out.CPUUnhealthyPercent = c.CPUUnhealthyPercent
	}
	return out, nil
}

// ToRegistryConfig fills c's parsed values over registry.DefaultConfig().
func (c RegistryConfig) ToRegistryConfig() (registry.Config, error) {
	out := registry.DefaultConfig()
	var err error
	if out.WorkerTTL, err = duration(c.WorkerTTL, out.WorkerTTL); err != nil {
		return out, fmt.Errorf("registry.worker_ttl: %w", err)
	}
	if out.HealthyThreshold, err = duration(c.HealthyThreshold, out.HealthyThreshold); err != nil {
		return out, fmt.Errorf("registry.healthy_threshold: %w", err)
	}
	if out.DegradedThreshold, err = duration(c.DegradedThreshold, out.DegradedThreshold); err != nil {
		return out, fmt.Errorf("registry.degraded_threshold: %w", err)
	}
	if out.CleanupInterval, err = duration(c.CleanupInterval, out.CleanupInterval); err != nil {
		return out, fmt.Errorf("registry.cleanup_interval: %w", err)
	}
	return out, nil
}

// ToMemsyncConfig fills c's parsed values over memsync.DefaultConfig().
func (c MemsyncConfig) ToMemsyncConfig() (memsync.Config, error) {
	out := memsync.DefaultConfig()
	var err error
	if out.DefaultTTL, err = duration(c.DefaultTTL, out.DefaultTTL); err != nil {
		return out, fmt.Errorf("memsync.default_ttl: %w", err)
	}
	if out.BatchInterval, err = duration(c.BatchInterval, out.BatchInterval); err != nil {
		return out, fmt.Errorf("memsync.batch_interval: %w", err)
	}
	if c.CacheSize != 0 {
		out.CacheSize = c.CacheSize
	}
	return out, nil
}

// ToCacheConfig fills c's parsed values over cache.DefaultConfig().
func (c CacheConfig) ToCacheConfig() cache.Config {
	out := cache.DefaultConfig()
	if c.MaxEntries != 0 {
		out.MaxEntries = c.MaxEntries
	}
	return out
}

// ToBalancerConfig fills c's parsed values over balancer.DefaultConfig().
func (c BalancerConfig) ToBalancerConfig() (balancer.Config, error) {
	out := balancer.DefaultConfig()
	var err error
	if out.ReliabilityWindow, err = duration(c.ReliabilityWindow, out.ReliabilityWindow); err != nil {
		return out, fmt.Errorf("balancer.reliability_window: %w", err)
	}
	if out.WeightRecomputeInterval, err = duration(c.WeightRecomputeInterval, out.WeightRecomputeInterval); err != nil {
		return out, fmt.Errorf("balancer.weight_recompute_interval: %w", err)
	}
	if c.LoadThreshold != 0 {
		out.LoadThreshold = c.LoadThreshold
	}
	if c.UnderutilizedThreshold != 0 {
		out.UnderutilizedThreshold = c.UnderutilizedThreshold
	}
	if c.WeightFloor != 0 {
		out.WeightFloor = c.WeightFloor
	}
	if c.WeightCeiling != 0 {
		out.WeightCeiling = c.WeightCeiling
	}
	if c.VarianceThreshold != 0 {
		out.VarianceThreshold = c.VarianceThreshold
	}
	if c.SpreadThreshold != 0 {
		out.SpreadThreshold = c.SpreadThreshold
	}
	return out, nil
}
