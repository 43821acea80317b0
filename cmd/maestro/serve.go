package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/antigravity-dev/maestro/internal/actions"
	"github.com/antigravity-dev/maestro/internal/audit"
	"github.com/antigravity-dev/maestro/internal/config"
	"github.com/antigravity-dev/maestro/internal/control"
	"github.com/antigravity-dev/maestro/internal/directive"
	"github.com/antigravity-dev/maestro/internal/fleet"
	"github.com/antigravity-dev/maestro/internal/health"
	"github.com/antigravity-dev/maestro/internal/knowledge"
	"github.com/antigravity-dev/maestro/internal/pathresolve"
	"github.com/antigravity-dev/maestro/internal/tools"
	"github.com/antigravity-dev/maestro/internal/transport"
	"github.com/antigravity-dev/maestro/internal/watch"
	"github.com/antigravity-dev/maestro/internal/workspace"
)

func runUp(args []string) int {
	fs := flag.NewFlagSet("up", flag.ContinueOnError)
	tui := fs.Bool("tui", false, "run the interactive TUI (not yet implemented; falls back to serve)")
	port := fs.Int("port", 0, "override api.bind port")
	configPath := fs.String("config", "maestro.toml", "path to config file")
	if err := fs.Parse(args); err != nil {
		return exitBadArg
	}
	if *tui {
		fmt.Fprintln(os.Stderr, "maestro: --tui rendering is out of scope for this build; running as serve")
	}
	return serve(*configPath, *port, "")
}

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	port := fs.Int("port", 0, "override api.bind port")
	store := fs.String("store", "", "override general.store_root")
	configPath := fs.String("config", "maestro.toml", "path to config file")
	if err := fs.Parse(args); err != nil {
		return exitBadArg
	}
	return serve(*configPath, *port, *store)
}

func serve(configPath string, portOverride int, storeOverride string) int {
	cfgManager, err := config.LoadManager(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "maestro: failed to load config: %v\n", err)
		return exitOtherError
	}
	cfg := cfgManager.Get()

	if storeOverride != "" {
		cfg.General.StoreRoot = config.ExpandHome(storeOverride)
	}
	if portOverride > 0 {
		host := "127.0.0.1"
		if idx := lastColon(cfg.API.Bind); idx >= 0 {
			host = cfg.API.Bind[:idx]
		}
		cfg.API.Bind = fmt.Sprintf("%s:%d", host, portOverride)
	}
	cfgManager.Set(cfg)

	logger := configureLogger(cfg.General.LogLevel, false)

	lockPath := "/tmp/maestro.lock"
	if cfg.General.LockFile != "" {
		lockPath = cfg.General.LockFile
	}
	lockFile, err := health.AcquireFlock(lockPath)
	if err != nil {
		logger.Error("failed to acquire single-instance lock", "path", lockPath, "error", err)
		return exitOtherError
	}
	defer health.ReleaseFlock(lockFile)

	if err := os.MkdirAll(cfg.General.StoreRoot, 0o755); err != nil {
		logger.Error("failed to create store root", "path", cfg.General.StoreRoot, "error", err)
		return exitOtherError
	}

	store, err := pathresolve.OpenStore(cfg.General.StoreRoot)
	if err != nil {
		logger.Error("failed to open store", "path", cfg.General.StoreRoot, "error", err)
		return exitOtherError
	}

	bus := watch.NewBus(cfg.Watch.QueueDepth)
	loader := knowledge.NewLoader(store)
	mutator := workspace.New(store, bus)
	surface := tools.NewSurface(cfg.General.StoreRoot, store, loader, mutator)

	registry := fleet.NewRegistry(cfg.General.StoreRoot, bus)
	heartbeat := fleet.NewHeartbeatStore(cfg.General.StoreRoot, cfg.Health.HeartbeatTTL.Duration, bus)
	directives := directive.NewStore(cfg.General.StoreRoot, bus)
	conversations := fleet.NewConversationStore(cfg.General.StoreRoot)

	posture := health.NewPostureProbe(cfg.General.StoreRoot, cfg.Health.GatewayProbeURL, cfg.Health.CheckInterval.Duration, logger.With("component", "posture"))
	aggregator := control.New(cfg.General.StoreRoot, registry, heartbeat, directives, posture)

	auditPath := filepath.Join(cfg.General.StoreRoot, ".command_center", "audit.db")
	if err := os.MkdirAll(filepath.Dir(auditPath), 0o755); err != nil {
		logger.Error("failed to create audit directory", "path", auditPath, "error", err)
		return exitOtherError
	}
	auditStore, err := audit.Open(auditPath)
	if err != nil {
		logger.Error("failed to open audit store", "path", auditPath, "error", err)
		return exitCorruptStore
	}
	defer auditStore.Close()

	var delegate actions.IngestDelegate
	switch cfg.Dispatch.Backend {
	case "docker":
		delegate = actions.NewDockerDelegate(cfg.Dispatch.DockerImage)
	default:
		delegate = actions.NewTmuxDelegate(cfg.Dispatch.TmuxPrefix)
	}

	workflowEngine, err := actions.NewWorkflowEngine(cfg.Temporal.HostPort, cfg.Temporal.Namespace, cfg.Temporal.TaskQueue, logger.With("component", "workflow"))
	if err != nil {
		logger.Error("failed to construct workflow engine", "error", err)
		return exitOtherError
	}
	if err := workflowEngine.Start(); err != nil {
		logger.Error("failed to start workflow engine", "error", err)
		return exitOtherError
	}
	defer workflowEngine.Stop()

	dispatcher := actions.New(cfg.General.StoreRoot, store, registry, heartbeat, directives, bus, delegate, workflowEngine, auditStore, logger.With("component", "actions"))

	watcher, err := watch.NewWatcher(cfg.General.StoreRoot, time.Duration(cfg.Watch.DebounceMillis)*time.Millisecond, bus, logger.With("component", "watch"))
	if err != nil {
		logger.Error("failed to construct file watcher", "error", err)
		return exitOtherError
	}

	xport := transport.New(transport.Config{Bind: cfg.API.Bind, AllowedTokens: cfg.API.AllowedTokens}, surface, dispatcher, aggregator, registry, heartbeat, directives, conversations, bus, logger.With("component", "transport"))

	ctx, cancel, sigCh := notifyShutdown()
	defer cancel()

	// Forward cache-invalidating bus events to the aggregator; it stays
	// free of a direct dependency on the bus so control never needs to
	// know how events are transported.
	invalidation := bus.Subscribe()
	go func() {
		defer invalidation.Close()
		for {
			select {
			case evt, ok := <-invalidation.Events():
				if !ok {
					return
				}
				aggregator.OnEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()

	go posture.Start(ctx)

	if err := watcher.Start(ctx); err != nil {
		logger.Error("failed to start file watcher", "error", err)
		return exitOtherError
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := xport.Start(ctx); err != nil {
			logger.Error("live transport stopped with error", "error", err)
		}
	}()

	logger.Info("maestro running", "bind", cfg.API.Bind, "store_root", cfg.General.StoreRoot, "dispatch_backend", cfg.Dispatch.Backend)

	var cfgMu sync.Mutex
	for {
		select {
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				cfgMu.Lock()
				if err := cfgManager.Reload(configPath); err != nil {
					logger.Error("config reload failed", "error", err)
				} else {
					logger.Info("config reloaded")
				}
				cfgMu.Unlock()
			case syscall.SIGINT, syscall.SIGTERM:
				logger.Info("received signal, shutting down", "signal", sig)
				cancel()
				wg.Wait()
				logger.Info("maestro stopped")
				return exitOK
			}
		case <-ctx.Done():
			wg.Wait()
			return exitOK
		}
	}
}

func lastColon(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ':' {
			return i
		}
	}
	return -1
}
