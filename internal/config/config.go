// Package config loads and validates the Maestro runtime TOML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration that unmarshals from TOML strings like "30s" or "2m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the root runtime configuration, loaded from maestro.toml.
type Config struct {
	General  General  `toml:"general"`
	API      API      `toml:"api"`
	Health   Health   `toml:"health"`
	Watch    Watch    `toml:"watch"`
	Dispatch Dispatch `toml:"dispatch"`
	Temporal Temporal `toml:"temporal"`
}

// General holds store-location and process-wide settings.
type General struct {
	StoreRoot         string `toml:"store_root"`
	ActiveProjectSlug string `toml:"active_project_slug"`
	LogLevel          string `toml:"log_level"`
	LockFile          string `toml:"lock_file"`
}

// API configures the HTTP + WebSocket live transport (spec §4.G).
type API struct {
	Bind             string   `toml:"bind"`
	CommandCenterURL string   `toml:"command_center_url"`
	AllowedTokens    []string `toml:"allowed_tokens"`
}

// Health configures heartbeat freshness and posture probing (spec §4.H, §4.N).
type Health struct {
	CheckInterval     Duration `toml:"check_interval"`
	HeartbeatInterval Duration `toml:"heartbeat_interval"`
	HeartbeatTTL      Duration `toml:"heartbeat_ttl"`
	GatewayProbeURL   string   `toml:"gateway_probe_url"`
}

// Watch configures the file watcher / event bus (spec §4.F).
type Watch struct {
	DebounceMillis int `toml:"debounce_millis"`
	QueueDepth     int `toml:"queue_depth"`
}

// Dispatch configures the Action Dispatcher's ingest delegate backend (spec §4.O).
type Dispatch struct {
	Backend                string `toml:"backend"` // "docker" or "tmux"
	DockerImage             string `toml:"docker_image"`
	TmuxPrefix              string `toml:"tmux_prefix"`
	DefaultDeadlineSeconds  int    `toml:"default_deadline_seconds"`
}

// Temporal configures the optional workflow engine backing long-running actions (spec §4.P).
type Temporal struct {
	HostPort  string `toml:"host_port"`
	Namespace string `toml:"namespace"`
	TaskQueue string `toml:"task_queue"`
}

func defaultConfig() *Config {
	return &Config{
		General: General{
			StoreRoot: "./store",
			LogLevel:  "info",
			LockFile:  "/tmp/maestro.lock",
		},
		API: API{
			Bind: "127.0.0.1:8765",
		},
		Health: Health{
			CheckInterval:     Duration{30 * time.Second},
			HeartbeatInterval: Duration{30 * time.Second},
			HeartbeatTTL:      Duration{90 * time.Second},
		},
		Watch: Watch{
			DebounceMillis: 150,
			QueueDepth:     256,
		},
		Dispatch: Dispatch{
			Backend:                "tmux",
			TmuxPrefix:             "maestro-ingest",
			DefaultDeadlineSeconds: 10,
		},
		Temporal: Temporal{
			Namespace: "default",
			TaskQueue: "maestro-actions",
		},
	}
}

// Load reads and validates a maestro.toml file, falling back to defaults for
// anything left unset, then applies environment variable overrides (spec §6).
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("config: decode %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: stat %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	normalizePaths(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Reload is a convenience wrapper used by SIGHUP handlers.
func Reload(path string) (*Config, error) {
	return Load(path)
}

// LoadManager loads config and wraps it in a hot-reloadable Manager.
func LoadManager(path string) (ConfigManager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return NewManager(cfg), nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("MAESTRO_STORE")); v != "" {
		cfg.General.StoreRoot = v
	}
	if v := strings.TrimSpace(os.Getenv("MAESTRO_ACTIVE_PROJECT_SLUG")); v != "" {
		cfg.General.ActiveProjectSlug = v
	}
	if v := strings.TrimSpace(os.Getenv("MAESTRO_HEARTBEAT_TTL_SECONDS")); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.Health.HeartbeatTTL = Duration{time.Duration(secs) * time.Second}
		}
	}
	if v := strings.TrimSpace(os.Getenv("MAESTRO_EVENT_QUEUE_DEPTH")); v != "" {
		if depth, err := strconv.Atoi(v); err == nil && depth > 0 {
			cfg.Watch.QueueDepth = depth
		}
	}
}

func normalizePaths(cfg *Config) {
	cfg.General.StoreRoot = ExpandHome(cfg.General.StoreRoot)
	cfg.General.LockFile = ExpandHome(cfg.General.LockFile)
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.General.StoreRoot) == "" {
		return fmt.Errorf("config: general.store_root is required")
	}
	if cfg.Health.HeartbeatTTL.Duration <= 0 {
		return fmt.Errorf("config: health.heartbeat_ttl must be positive")
	}
	if cfg.Watch.QueueDepth <= 0 {
		return fmt.Errorf("config: watch.queue_depth must be positive")
	}
	switch cfg.Dispatch.Backend {
	case "docker", "tmux", "":
	default:
		return fmt.Errorf("config: dispatch.backend %q must be docker or tmux", cfg.Dispatch.Backend)
	}
	return nil
}

// Clone returns a deep-enough copy for safe handoff across the Manager's lock.
func (cfg *Config) Clone() *Config {
	if cfg == nil {
		return nil
	}
	out := *cfg
	out.API.AllowedTokens = append([]string(nil), cfg.API.AllowedTokens...)
	return &out
}

// ExpandHome expands a leading "~" to the user's home directory.
func ExpandHome(path string) string {
	path = strings.TrimSpace(path)
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

// ValidateRuntimeConfigReload rejects reloads that change fields that require
// a process restart to take effect (listener bind address, store root).
func ValidateRuntimeConfigReload(oldCfg, newCfg *Config) error {
	if oldCfg == nil || newCfg == nil {
		return nil
	}
	if oldCfg.General.StoreRoot != newCfg.General.StoreRoot {
		return fmt.Errorf("config: general.store_root change requires restart")
	}
	if oldCfg.API.Bind != newCfg.API.Bind {
		return fmt.Errorf("config: api.bind change requires restart")
	}
	return nil
}
