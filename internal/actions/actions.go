// Package actions implements the Action Dispatcher: a closed, named set
// of operations exposed over POST /api/command-center/actions, each run
// under a per-target exclusive lock and logged to the audit store.
package actions

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/antigravity-dev/maestro/internal/directive"
	"github.com/antigravity-dev/maestro/internal/events"
	"github.com/antigravity-dev/maestro/internal/fleet"
	"github.com/antigravity-dev/maestro/internal/jsonstore"
	"github.com/antigravity-dev/maestro/internal/knowledge"
	"github.com/antigravity-dev/maestro/internal/pathresolve"
	"github.com/antigravity-dev/maestro/internal/tools"
	"github.com/google/uuid"
)

// Name is one of the closed set of action names accepted by the
// dispatcher. Any other string is rejected with UnsupportedAction.
type Name string

const (
	SyncRegistry           Name = "sync_registry"
	ListSystemDirectives   Name = "list_system_directives"
	UpsertSystemDirective  Name = "upsert_system_directive"
	ArchiveSystemDirective Name = "archive_system_directive"
	DoctorFix              Name = "doctor_fix"
	CreateProjectNode      Name = "create_project_node"
	OnboardProjectStore    Name = "onboard_project_store"
	IngestCommand          Name = "ingest_command"
	PreflightIngest        Name = "preflight_ingest"
	IndexCommand           Name = "index_command"
	MoveProjectStore       Name = "move_project_store"
	RegisterProjectAgent   Name = "register_project_agent"
)

var knownActions = map[Name]bool{
	SyncRegistry: true, ListSystemDirectives: true, UpsertSystemDirective: true,
	ArchiveSystemDirective: true, DoctorFix: true, CreateProjectNode: true,
	OnboardProjectStore: true, IngestCommand: true, PreflightIngest: true,
	IndexCommand: true, MoveProjectStore: true, RegisterProjectAgent: true,
}

// UnsupportedAction is returned for any action name outside the closed
// set (spec §4.K, HTTP 400).
type UnsupportedAction struct {
	Name string
}

func (e *UnsupportedAction) Error() string    { return fmt.Sprintf("unsupported action: %q", e.Name) }
func (e *UnsupportedAction) Kind() tools.Kind { return tools.KindUnsupportedAction }

// Request is the decoded POST body for one action invocation.
type Request struct {
	Action       Name                 `json:"action"`
	ProjectSlug  string               `json:"project_slug"`
	AgentID      string               `json:"agent_id"`
	Directive    *directive.Directive `json:"directive,omitempty"`
	DirectiveID  string               `json:"directive_id,omitempty"`
	SourcePath   string               `json:"source_path,omitempty"`
	NewStoreRoot string               `json:"new_store_root,omitempty"`
	ProjectName  string               `json:"project_name,omitempty"`
	Fix          bool                 `json:"fix,omitempty"`
}

// Result is the dispatcher's response envelope. Handle is set only for
// long-running actions (ingest_command, index_command); Data carries
// every other action's domain-object result.
type Result struct {
	Handle string      `json:"handle,omitempty"`
	Data   interface{} `json:"data,omitempty"`
}

// Record is one row of the audit store's action log (spec §3, Action
// Record). The audit store persists these; the dispatcher only
// populates them.
type Record struct {
	ID         string
	Action     string
	Target     string
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time
	Detail     string
}

// Recorder is satisfied by the audit store; nil is a valid no-op.
type Recorder interface {
	RecordAction(Record)
}

// Dispatcher wires together the fleet registry, heartbeat store,
// directive store, knowledge store, ingest delegate, and workflow
// engine behind the single named-action entry point.
type Dispatcher struct {
	storeRoot  string
	store      *pathresolve.Store
	registry   *fleet.Registry
	heartbeat  *fleet.HeartbeatStore
	directives *directive.Store
	bus        events.Publisher
	delegate   IngestDelegate
	workflow   *WorkflowEngine
	recorder   Recorder
	logger     *slog.Logger
	now        func() time.Time
}

// New wires a Dispatcher. delegate and workflow may be nil: ingest/index
// actions then fail closed with a descriptive Internal error rather than
// panicking.
func New(storeRoot string, store *pathresolve.Store, registry *fleet.Registry, heartbeat *fleet.HeartbeatStore, directives *directive.Store, bus events.Publisher, delegate IngestDelegate, wf *WorkflowEngine, recorder Recorder, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		storeRoot: storeRoot, store: store, registry: registry, heartbeat: heartbeat,
		directives: directives, bus: bus, delegate: delegate, workflow: wf,
		recorder: recorder, logger: logger, now: time.Now,
	}
}

// Dispatch validates the action name, acquires the target's exclusive
// lock, runs the action, and records it to the audit store.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Result, error) {
	if !knownActions[req.Action] {
		return Result{}, &UnsupportedAction{Name: string(req.Action)}
	}

	target := lockTarget(req)
	lockPath := filepath.Join(d.storeRoot, ".command_center", "locks", target+".lock")
	rec := Record{ID: uuid.NewString(), Action: string(req.Action), Target: target, StartedAt: d.now()}

	var result Result
	err := jsonstore.WithLockRetry(lockPath, jsonstore.LockExclusive, jsonstore.DefaultLockDeadline, func() error {
		if err := d.guardProjectWrite(req); err != nil {
			return wrapErr(err)
		}
		var runErr error
		result, runErr = d.run(ctx, req)
		return wrapErr(runErr)
	})

	rec.FinishedAt = d.now()
	if err != nil {
		rec.Status = "failed"
		rec.Detail = err.Error()
	} else {
		rec.Status = "completed"
	}
	if d.recorder != nil {
		d.recorder.RecordAction(rec)
	}
	if err != nil {
		d.logger.Warn("action failed", "action", req.Action, "target", target, "error", err)
	}
	return result, err
}

// lockTarget picks the per-target lock key: the project slug when one is
// given, otherwise a fixed fleet-wide key.
func lockTarget(req Request) string {
	if req.ProjectSlug != "" {
		return req.ProjectSlug
	}
	return "fleet"
}

func (d *Dispatcher) run(ctx context.Context, req Request) (Result, error) {
	switch req.Action {
	case SyncRegistry:
		return d.syncRegistry()
	case ListSystemDirectives:
		return d.listDirectives()
	case UpsertSystemDirective:
		return d.upsertDirective(req)
	case ArchiveSystemDirective:
		return d.archiveDirective(req)
	case DoctorFix:
		return d.doctorFix(req)
	case CreateProjectNode:
		return d.createProjectNode(req)
	case OnboardProjectStore:
		return d.onboardProjectStore(req)
	case IngestCommand:
		return d.ingestCommand(ctx, req, "ingest")
	case PreflightIngest:
		return d.preflightIngest(req)
	case IndexCommand:
		return d.ingestCommand(ctx, req, "index")
	case MoveProjectStore:
		return d.moveProjectStore(req)
	case RegisterProjectAgent:
		return d.registerProjectAgent(req)
	default:
		return Result{}, &UnsupportedAction{Name: string(req.Action)}
	}
}

// projectWriteActions is the subset of the closed action set that
// mutates a project store, and so falls under the chain-of-command
// guard: the write must be routed through that project's own agent_id.
var projectWriteActions = map[Name]bool{
	CreateProjectNode:   true,
	OnboardProjectStore: true,
	IngestCommand:       true,
	IndexCommand:        true,
}

// guardProjectWrite enforces spec §4's chain-of-command rule for the
// Action Dispatcher: the commander role can orchestrate these actions
// but never write a project store directly, and a project-role agent
// may only write its own project.
func (d *Dispatcher) guardProjectWrite(req Request) error {
	if !projectWriteActions[req.Action] || req.ProjectSlug == "" {
		return nil
	}
	if req.AgentID == "" {
		return &tools.InvalidArgument{Field: "agent_id", Reason: "required for actions that write a project store"}
	}
	writer, err := d.registry.Find(req.AgentID)
	if err != nil {
		return err
	}
	return fleet.GuardProjectWrite(writer, req.ProjectSlug)
}

func (d *Dispatcher) syncRegistry() (Result, error) {
	agents, err := d.registry.List()
	if err != nil {
		return Result{}, err
	}
	return Result{Data: agents}, nil
}

func (d *Dispatcher) listDirectives() (Result, error) {
	dirs, err := d.directives.List(false)
	if err != nil {
		return Result{}, err
	}
	return Result{Data: dirs}, nil
}

func (d *Dispatcher) upsertDirective(req Request) (Result, error) {
	if req.Directive == nil {
		return Result{}, &tools.InvalidArgument{Field: "directive", Reason: "required"}
	}
	saved, err := d.directives.Upsert(*req.Directive)
	if err != nil {
		return Result{}, err
	}
	return Result{Data: saved}, nil
}

func (d *Dispatcher) archiveDirective(req Request) (Result, error) {
	if req.DirectiveID == "" {
		return Result{}, &tools.InvalidArgument{Field: "directive_id", Reason: "required"}
	}
	if err := d.directives.Archive(req.DirectiveID); err != nil {
		return Result{}, err
	}
	return Result{}, nil
}

// doctorFix backs the `doctor --fix` CLI path. With Fix set it makes sure
// the store root's .command_center directory exists and reports it under
// "fixed"; it does not inspect or remove lock files and does not create
// per-project .command_center directories.
func (d *Dispatcher) doctorFix(req Request) (Result, error) {
	report := map[string]interface{}{"checked": true, "fixed": []string{}}
	if !req.Fix {
		return Result{Data: report}, nil
	}
	ccDir := filepath.Join(d.storeRoot, ".command_center")
	fixed := ensureDir(ccDir)
	report["fixed"] = fixed
	return Result{Data: report}, nil
}

func (d *Dispatcher) createProjectNode(req Request) (Result, error) {
	if req.ProjectSlug == "" {
		return Result{}, &tools.InvalidArgument{Field: "project_slug", Reason: "required"}
	}
	dir, err := d.store.ProjectDir(req.ProjectSlug)
	if err != nil {
		if _, ok := err.(*pathresolve.NotFound); !ok {
			return Result{}, err
		}
		dir = filepath.Join(d.store.Root, req.ProjectSlug)
	}
	proj := knowledge.Project{Name: req.ProjectName, Slug: req.ProjectSlug, CreatedAt: d.now().UTC().Format(time.RFC3339)}
	if proj.Name == "" {
		proj.Name = req.ProjectSlug
	}
	if err := jsonstore.WriteJSON(filepath.Join(dir, "project.json"), &proj); err != nil {
		return Result{}, err
	}
	d.bus.Publish(events.Event{Type: events.TypeInit, Project: req.ProjectSlug})
	return Result{Data: proj}, nil
}

// onboardProjectStore registers the filesystem layout for a project that
// already has pages on disk (e.g. dropped in by the ingest pipeline)
// without requiring create_project_node first.
func (d *Dispatcher) onboardProjectStore(req Request) (Result, error) {
	dir, err := d.store.ProjectDir(req.ProjectSlug)
	if err != nil {
		return Result{}, err
	}
	ensureDir(filepath.Join(dir, "pages"))
	ensureDir(filepath.Join(dir, "workspaces"))
	return Result{Data: map[string]string{"project_dir": dir}}, nil
}

func (d *Dispatcher) preflightIngest(req Request) (Result, error) {
	if req.SourcePath == "" {
		return Result{}, &tools.InvalidArgument{Field: "source_path", Reason: "required"}
	}
	return Result{Data: map[string]bool{"ready": d.delegate != nil}}, nil
}

func (d *Dispatcher) ingestCommand(ctx context.Context, req Request, mode string) (Result, error) {
	if req.SourcePath == "" {
		return Result{}, &tools.InvalidArgument{Field: "source_path", Reason: "required"}
	}
	if d.delegate == nil && (d.workflow == nil || !d.workflow.Enabled()) {
		return Result{}, fmt.Errorf("actions: no ingest delegate configured")
	}

	job := IngestJob{ProjectSlug: req.ProjectSlug, SourcePath: req.SourcePath, StoreRoot: d.storeRoot, Mode: mode}

	if d.workflow != nil && d.workflow.Enabled() {
		handle, err := d.workflow.SubmitWorkflow(ctx, ActionWorkflowRequest{
			Action: mode, ProjectSlug: req.ProjectSlug, SourcePath: req.SourcePath, StoreRoot: d.storeRoot,
		})
		if err != nil {
			return Result{}, err
		}
		return Result{Handle: handle}, nil
	}

	handle, err := d.delegate.Start(ctx, job)
	if err != nil {
		return Result{}, err
	}
	return Result{Handle: handle}, nil
}

func (d *Dispatcher) moveProjectStore(req Request) (Result, error) {
	if req.NewStoreRoot == "" {
		return Result{}, &tools.InvalidArgument{Field: "new_store_root", Reason: "required"}
	}
	return Result{}, fmt.Errorf("actions: move_project_store requires an offline migration step, not yet automated")
}

func (d *Dispatcher) registerProjectAgent(req Request) (Result, error) {
	if req.AgentID == "" || req.ProjectSlug == "" {
		return Result{}, &tools.InvalidArgument{Field: "agent_id/project_slug", Reason: "both required"}
	}
	agent, err := d.registry.Register(fleet.Agent{AgentID: req.AgentID, ProjectSlug: req.ProjectSlug, Role: fleet.RoleProject})
	if err != nil {
		return Result{}, err
	}
	return Result{Data: agent}, nil
}

// wrapErr translates fleet/directive errors, which predate the tool
// surface's error taxonomy, into its Classified types so the HTTP layer
// maps every action failure the same way it maps a tool-surface failure.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	switch e := err.(type) {
	case *fleet.Conflict:
		return &tools.Conflict{Detail: e.Detail}
	case *fleet.NotFound:
		return &tools.NotFound{Kind_: "agent", Token: e.AgentID}
	case *directive.NotFound:
		return &tools.NotFound{Kind_: "directive", Token: e.ID}
	case *pathresolve.NotFound:
		return &tools.NotFound{Kind_: e.Kind, Token: e.Token}
	case *jsonstore.Corrupt:
		return &tools.Corrupt{Path: e.Path}
	}
	if err == jsonstore.ErrConflict {
		return &tools.Conflict{Detail: "lock held"}
	}
	return err
}

func ensureDir(dir string) []string {
	fixed := []string{}
	if err := jsonstore.WriteJSON(filepath.Join(dir, ".keep"), &struct{}{}); err == nil {
		fixed = append(fixed, dir)
	}
	return fixed
}
