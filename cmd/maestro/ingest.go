package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/antigravity-dev/maestro/internal/actions"
	"github.com/antigravity-dev/maestro/internal/config"
	"github.com/antigravity-dev/maestro/internal/directive"
	"github.com/antigravity-dev/maestro/internal/events"
	"github.com/antigravity-dev/maestro/internal/fleet"
	"github.com/antigravity-dev/maestro/internal/pathresolve"
)

func runIngest(args []string) int {
	flagArgs, positional := splitFlagsAndPositional(args,
		map[string]bool{},
		map[string]bool{"project-name": true, "project-slug": true, "config": true},
	)

	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	projectName := fs.String("project-name", "", "project display name, used when creating a new project node")
	projectSlug := fs.String("project-slug", "", "project slug; defaults to the --project-name value")
	configPath := fs.String("config", "maestro.toml", "path to config file")
	if err := fs.Parse(flagArgs); err != nil {
		return exitBadArg
	}
	if len(positional) != 1 {
		fmt.Fprintln(os.Stderr, "maestro: ingest requires exactly one <path> argument")
		return exitBadArg
	}
	sourcePath := positional[0]

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "maestro: failed to load config: %v\n", err)
		return exitOtherError
	}

	store, err := pathresolve.OpenStore(cfg.General.StoreRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "maestro: failed to open store: %v\n", err)
		return exitOtherError
	}

	registry := fleet.NewRegistry(cfg.General.StoreRoot, events.NopPublisher{})
	heartbeat := fleet.NewHeartbeatStore(cfg.General.StoreRoot, cfg.Health.HeartbeatTTL.Duration, events.NopPublisher{})
	directives := directive.NewStore(cfg.General.StoreRoot, events.NopPublisher{})

	var delegate actions.IngestDelegate
	switch cfg.Dispatch.Backend {
	case "docker":
		delegate = actions.NewDockerDelegate(cfg.Dispatch.DockerImage)
	default:
		delegate = actions.NewTmuxDelegate(cfg.Dispatch.TmuxPrefix)
	}

	workflowEngine, err := actions.NewWorkflowEngine(cfg.Temporal.HostPort, cfg.Temporal.Namespace, cfg.Temporal.TaskQueue, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "maestro: failed to construct workflow engine: %v\n", err)
		return exitOtherError
	}

	dispatcher := actions.New(cfg.General.StoreRoot, store, registry, heartbeat, directives, events.NopPublisher{}, delegate, workflowEngine, nil, nil)

	slug := *projectSlug
	if slug == "" {
		slug = *projectName
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "maestro: interrupted, cancelling ingest")
		cancel()
	}()

	result, err := dispatcher.Dispatch(ctx, actions.Request{
		Action: actions.IngestCommand, ProjectSlug: slug, ProjectName: *projectName, SourcePath: sourcePath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "maestro: ingest_command failed: %v\n", err)
		return exitCodeForErr(err)
	}
	fmt.Printf("ingest handle: %s\n", result.Handle)

	if !workflowEngine.Enabled() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return exitOK
			case <-ticker.C:
				if delegate.IsAlive(result.Handle) {
					if tail, err := delegate.Tail(result.Handle); err == nil {
						fmt.Print(tail)
					}
					continue
				}
				if tail, err := delegate.Tail(result.Handle); err == nil {
					fmt.Print(tail)
				}
				fmt.Println("maestro: ingest delegate exited")
				return exitOK
			}
		}
	}
	return exitOK
}
