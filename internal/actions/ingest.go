package actions

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// IngestDelegate launches the out-of-process ingest pipeline and reports
// its liveness. The runtime never decodes PDFs itself; it only starts,
// polls, and tails the delegate's own process.
type IngestDelegate interface {
	Start(ctx context.Context, job IngestJob) (string, error)
	IsAlive(handle string) bool
	Tail(handle string) (string, error)
	Kill(handle string) error
}

// IngestJob describes a single ingest_command/index_command invocation.
type IngestJob struct {
	ProjectSlug string
	SourcePath  string
	StoreRoot   string
	Mode        string // "ingest" or "index"
}

// DockerDelegate runs the ingest pipeline as a container, grounded on the
// teacher's docker dispatch backend.
type DockerDelegate struct {
	image string

	mu       sync.Mutex
	cli      *client.Client
	sessions map[string]string
}

// NewDockerDelegate wires a Docker-backed delegate for the given image.
func NewDockerDelegate(image string) *DockerDelegate {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		cli = nil
	}
	return &DockerDelegate{image: image, cli: cli, sessions: make(map[string]string)}
}

func (d *DockerDelegate) Start(ctx context.Context, job IngestJob) (string, error) {
	if d.cli == nil {
		return "", fmt.Errorf("actions: docker client unavailable")
	}
	handle := fmt.Sprintf("maestro-%s-%s-%d", job.Mode, job.ProjectSlug, time.Now().UnixNano())

	containerConfig := &container.Config{
		Image:      d.image,
		Cmd:        []string{"ingest", job.Mode, "--project", job.ProjectSlug, "--source", "/source"},
		Tty:        false,
		WorkingDir: "/store",
	}
	hostConfig := &container.HostConfig{
		Mounts: []mount.Mount{
			{Type: mount.TypeBind, Source: job.SourcePath, Target: "/source", ReadOnly: true},
			{Type: mount.TypeBind, Source: job.StoreRoot, Target: "/store"},
		},
	}

	resp, err := d.cli.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, handle)
	if err != nil {
		return "", fmt.Errorf("actions: create ingest container: %w", err)
	}
	if err := d.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("actions: start ingest container: %w", err)
	}

	d.mu.Lock()
	d.sessions[handle] = handle
	d.mu.Unlock()
	return handle, nil
}

func (d *DockerDelegate) IsAlive(handle string) bool {
	if d.cli == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	inspect, err := d.cli.ContainerInspect(ctx, handle)
	if err != nil {
		return false
	}
	return inspect.State.Running
}

func (d *DockerDelegate) Tail(handle string) (string, error) {
	if d.cli == nil {
		return "", fmt.Errorf("actions: docker client unavailable")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logs, err := d.cli.ContainerLogs(ctx, handle, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", err
	}
	defer logs.Close()
	var stdout, stderr bytes.Buffer
	stdcopy.StdCopy(&stdout, &stderr, logs)
	return strings.TrimSpace(stdout.String() + "\n" + stderr.String()), nil
}

func (d *DockerDelegate) Kill(handle string) error {
	if d.cli == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	d.cli.ContainerRemove(ctx, handle, container.RemoveOptions{Force: true, RemoveVolumes: true})
	d.mu.Lock()
	delete(d.sessions, handle)
	d.mu.Unlock()
	return nil
}

// TmuxDelegate runs the ingest pipeline as a long-lived CLI process in a
// named tmux session, grounded on the teacher's tmux dispatch backend.
// Used when no Docker daemon is configured.
type TmuxDelegate struct {
	prefix       string
	historyLimit int
	liveness     *sessionChecker

	mu       sync.Mutex
	sessions map[string]bool
}

// NewTmuxDelegate wires a tmux-backed delegate with the given session
// name prefix.
func NewTmuxDelegate(prefix string) *TmuxDelegate {
	if prefix == "" {
		prefix = "maestro-ingest"
	}
	return &TmuxDelegate{prefix: prefix, historyLimit: 10000, liveness: newSessionChecker(2 * time.Second), sessions: make(map[string]bool)}
}

func sessionName(prefix string, job IngestJob) string {
	h := fnv.New32a()
	h.Write([]byte(job.ProjectSlug + job.SourcePath + strconv.FormatInt(time.Now().UnixNano(), 10)))
	return fmt.Sprintf("%s-%s-%x", prefix, job.Mode, h.Sum32())
}

func (t *TmuxDelegate) Start(ctx context.Context, job IngestJob) (string, error) {
	name := sessionName(t.prefix, job)
	cmdline := fmt.Sprintf("maestro-ingest-cli %s --project %s --source %q --store %q",
		job.Mode, job.ProjectSlug, job.SourcePath, job.StoreRoot)

	args := []string{"new-session", "-d", "-s", name, "sh", "-c", cmdline}
	cmd := exec.CommandContext(ctx, "tmux", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("actions: create tmux session %q: %w (%s)", name, err, strings.TrimSpace(string(out)))
	}
	if out, err := exec.Command("tmux", "set", "-t", name, "remain-on-exit", "on").CombinedOutput(); err != nil {
		_ = t.Kill(name)
		return "", fmt.Errorf("actions: set remain-on-exit for %q: %w (%s)", name, err, strings.TrimSpace(string(out)))
	}

	t.mu.Lock()
	t.sessions[name] = true
	t.mu.Unlock()
	return name, nil
}

func (t *TmuxDelegate) IsAlive(handle string) bool {
	return t.liveness.check(context.Background(), handle).state == sessionLive
}

func (t *TmuxDelegate) Tail(handle string) (string, error) {
	out, err := exec.Command("tmux", "capture-pane", "-t", handle, "-p", "-S", "-200").Output()
	if err != nil {
		return "", fmt.Errorf("actions: capture tmux pane %q: %w", handle, err)
	}
	return string(out), nil
}

func (t *TmuxDelegate) Kill(handle string) error {
	_ = exec.Command("tmux", "kill-session", "-t", handle).Run()
	t.mu.Lock()
	delete(t.sessions, handle)
	t.mu.Unlock()
	return nil
}

// sessionLiveness is the result of a bounded tmux has-session probe.
type sessionLiveness string

const (
	sessionLive    sessionLiveness = "live"
	sessionMissing sessionLiveness = "missing"
	sessionUnknown sessionLiveness = "unknown"
)

type sessionCheckResult struct {
	state  sessionLiveness
	detail string
}

// sessionChecker probes tmux session liveness with a bounded timeout and
// exact session-name matching, so a stuck tmux binary can never hang the
// dispatcher's lock-held window.
type sessionChecker struct {
	timeout time.Duration
	runCmd  func(ctx context.Context, name string, args ...string) *exec.Cmd
}

func newSessionChecker(timeout time.Duration) *sessionChecker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &sessionChecker{timeout: timeout, runCmd: exec.CommandContext}
}

func (c *sessionChecker) check(ctx context.Context, handle string) sessionCheckResult {
	if strings.TrimSpace(handle) == "" {
		return sessionCheckResult{state: sessionUnknown, detail: "empty_session_id"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := c.runCmd(checkCtx, "tmux", "has-session", "-t", "="+handle)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(checkCtx.Err(), context.DeadlineExceeded) {
			return sessionCheckResult{state: sessionUnknown, detail: "tmux_timeout"}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			errText := strings.ToLower(strings.TrimSpace(stderr.String()))
			if strings.Contains(errText, "can't find session") || strings.Contains(errText, "no such session") {
				return sessionCheckResult{state: sessionMissing, detail: "session_missing"}
			}
		}
		return sessionCheckResult{state: sessionUnknown, detail: fmt.Sprintf("tmux_error:%v", err)}
	}

	return sessionCheckResult{state: sessionLive, detail: "session_exists"}
}
