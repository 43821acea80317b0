package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/antigravity-dev/maestro/internal/config"
	"github.com/antigravity-dev/maestro/internal/knowledge"
	"github.com/antigravity-dev/maestro/internal/pathresolve"
	"github.com/antigravity-dev/maestro/internal/tools"
	"github.com/antigravity-dev/maestro/internal/workspace"
)

// runTools invokes a single named tools.Surface operation and prints its
// JSON result, for scripting and for exercising the surface without a
// running transport (spec §6).
func runTools(args []string) int {
	flagArgs, positional := splitFlagsAndPositional(args, map[string]bool{}, map[string]bool{"config": true})

	fs := flag.NewFlagSet("tools", flag.ContinueOnError)
	configPath := fs.String("config", "maestro.toml", "path to config file")
	if err := fs.Parse(flagArgs); err != nil {
		return exitBadArg
	}
	if len(positional) == 0 {
		fmt.Fprintln(os.Stderr, "maestro: tools requires an operation name")
		return exitBadArg
	}
	op := positional[0]
	opArgs := positional[1:]

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
	loader := knowledge.NewLoader(store)
	mutator := workspace.New(store, nil)
	surface := tools.NewSurface(cfg.General.StoreRoot, store, loader, mutator)

	var (
		result any
		opErr  error
	)

	switch op {
	case "list_pages":
		result, opErr = surface.ListPages(arg(opArgs, 0), arg(opArgs, 1))
	case "search":
		limit := 10
		if n, err := strconv.Atoi(arg(opArgs, 2)); err == nil {
			limit = n
		}
		result, opErr = surface.Search(arg(opArgs, 0), arg(opArgs, 1), limit)
	case "sheet_summary":
		result, opErr = surface.GetSheetSummary(arg(opArgs, 0), arg(opArgs, 1))
	case "region_detail":
		result, opErr = surface.GetRegionDetail(arg(opArgs, 0), arg(opArgs, 1), arg(opArgs, 2))
	case "cross_references":
		result, opErr = surface.FindCrossReferences(arg(opArgs, 0), arg(opArgs, 1))
	case "project_context":
		result, opErr = surface.ProjectContext(arg(opArgs, 0))
	case "list_workspaces":
		result, opErr = surface.ListWorkspaces(arg(opArgs, 0))
	case "get_workspace":
		result, opErr = surface.GetWorkspace(arg(opArgs, 0), arg(opArgs, 1))
	case "schedule_status":
		result, opErr = surface.GetScheduleStatus(arg(opArgs, 0))
	case "notes":
		result, opErr = surface.GetProjectNotes(arg(opArgs, 0))
	default:
		fmt.Fprintf(os.Stderr, "maestro: unknown tools operation %q\n", op)
		return exitBadArg
	}

	if opErr != nil {
		fmt.Fprintf(os.Stderr, "maestro: %s failed: %v\n", op, opErr)
		return exitCodeForErr(opErr)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "maestro: failed to encode result: %v\n", err)
		return exitOtherError
	}
	return exitOK
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
