package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/antigravity-dev/maestro/internal/actions"
	"github.com/antigravity-dev/maestro/internal/config"
	"github.com/antigravity-dev/maestro/internal/directive"
	"github.com/antigravity-dev/maestro/internal/events"
	"github.com/antigravity-dev/maestro/internal/fleet"
	"github.com/antigravity-dev/maestro/internal/health"
	"github.com/antigravity-dev/maestro/internal/pathresolve"
)

func runDoctor(args []string) int {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	fix := fs.Bool("fix", false, "create the store root's .command_center directory if missing")
	asJSON := fs.Bool("json", false, "print the report as JSON")
	configPath := fs.String("config", "maestro.toml", "path to config file")
	if err := fs.Parse(args); err != nil {
		return exitBadArg
	}

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

	posture := health.NewPostureProbe(cfg.General.StoreRoot, cfg.Health.GatewayProbeURL, cfg.Health.CheckInterval.Duration, nil)
	status := posture.CheckOnce(context.Background())

	registry := fleet.NewRegistry(cfg.General.StoreRoot, events.NopPublisher{})
	heartbeat := fleet.NewHeartbeatStore(cfg.General.StoreRoot, cfg.Health.HeartbeatTTL.Duration, events.NopPublisher{})
	directives := directive.NewStore(cfg.General.StoreRoot, events.NopPublisher{})
	dispatcher := actions.New(cfg.General.StoreRoot, store, registry, heartbeat, directives, events.NopPublisher{}, nil, nil, nil, nil)

	result, err := dispatcher.Dispatch(context.Background(), actions.Request{Action: actions.DoctorFix, Fix: *fix})
	if err != nil {
		fmt.Fprintf(os.Stderr, "maestro: doctor_fix failed: %v\n", err)
		return exitCodeForErr(err)
	}

	report := struct {
		Posture health.PostureStatus `json:"posture"`
		Fix     any                  `json:"fix_report"`
	}{Posture: status, Fix: result.Data}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fmt.Fprintf(os.Stderr, "maestro: failed to encode report: %v\n", err)
			return exitOtherError
		}
	} else {
		fmt.Printf("posture: %s (store_reachable=%v gateway_reachable=%v)\n", status.Posture, status.StoreReachable, status.GatewayReachable)
		if status.Detail != "" {
			fmt.Printf("  detail: %s\n", status.Detail)
		}
		fmt.Printf("fix_report: %+v\n", result.Data)
	}

	if status.Posture != health.PostureHealthy {
		return exitOtherError
	}
	return exitOK
}
