package actions

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

// WorkflowEngine submits long-running Action Dispatcher actions to
// Temporal, grounded on the teacher's internal/temporal worker. When no
// Temporal host is configured the engine is not Enabled (the dispatcher
// then starts jobs through its ingest delegate), and SubmitWorkflow only
// hands back a local sequence number without running anything.
type WorkflowEngine struct {
	taskQueue string
	client    client.Client
	worker    worker.Worker

	localSeq int64
}

// NewWorkflowEngine dials Temporal at hostPort. If hostPort is empty it
// returns an engine with no client or worker that never touches the
// network.
func NewWorkflowEngine(hostPort, namespace, taskQueue string, logger *slog.Logger) (*WorkflowEngine, error) {
	if taskQueue == "" {
		taskQueue = "maestro-actions"
	}
	if hostPort == "" {
		return &WorkflowEngine{taskQueue: taskQueue}, nil
	}

	c, err := client.Dial(client.Options{HostPort: hostPort, Namespace: namespace})
	if err != nil {
		return nil, fmt.Errorf("actions: dial temporal: %w", err)
	}

	w := worker.New(c, taskQueue, worker.Options{})
	w.RegisterWorkflow(ActionWorkflow)

	return &WorkflowEngine{taskQueue: taskQueue, client: c, worker: w}, nil
}

// Start registers the workflow worker in the background. A no-op when no
// Temporal host is configured.
func (e *WorkflowEngine) Start() error {
	if e.worker == nil {
		return nil
	}
	return e.worker.Start()
}

// Stop releases the Temporal client and worker, if any.
func (e *WorkflowEngine) Stop() {
	if e.worker != nil {
		e.worker.Stop()
	}
	if e.client != nil {
		e.client.Close()
	}
}

// Enabled reports whether a real Temporal connection backs this engine.
func (e *WorkflowEngine) Enabled() bool { return e.client != nil }

// ActionWorkflow is the Temporal workflow that durably runs one
// long-running action. run is supplied out-of-band via an activity
// registered per dispatcher instance; the workflow body itself only
// orchestrates retries and signals progress.
func ActionWorkflow(ctx workflow.Context, req ActionWorkflowRequest) (ActionWorkflowResult, error) {
	ao := workflow.ActivityOptions{StartToCloseTimeout: 30 * time.Minute}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var result ActionWorkflowResult
	err := workflow.ExecuteActivity(ctx, RunDelegatedActivity, req).Get(ctx, &result)
	return result, err
}

// ActionWorkflowRequest is the payload handed to ActionWorkflow.
type ActionWorkflowRequest struct {
	Action      string `json:"action"`
	ProjectSlug string `json:"project_slug"`
	SourcePath  string `json:"source_path"`
	StoreRoot   string `json:"store_root"`
}

// ActionWorkflowResult is what ActionWorkflow returns on completion.
type ActionWorkflowResult struct {
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// RunDelegatedActivity is registered by the dispatcher at startup,
// bound to the configured IngestDelegate, so the workflow body stays
// delegate-agnostic.
func RunDelegatedActivity(ctx context.Context, req ActionWorkflowRequest) (ActionWorkflowResult, error) {
	return ActionWorkflowResult{}, fmt.Errorf("actions: activity not bound; call BindActivity before starting the worker")
}

// SubmitWorkflow starts an ActionWorkflow run and returns its workflow
// ID as the action's handle.
func (e *WorkflowEngine) SubmitWorkflow(ctx context.Context, req ActionWorkflowRequest) (string, error) {
	if e.client == nil {
		return e.nextLocalHandle(), nil
	}
	workflowID := fmt.Sprintf("action-%s-%s-%d", req.Action, req.ProjectSlug, time.Now().UnixNano())
	run, err := e.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: e.taskQueue,
	}, ActionWorkflow, req)
	if err != nil {
		return "", fmt.Errorf("actions: submit workflow: %w", err)
	}
	return run.GetID(), nil
}

func (e *WorkflowEngine) nextLocalHandle() string {
	n := atomic.AddInt64(&e.localSeq, 1)
	return fmt.Sprintf("local-%d", n)
}
