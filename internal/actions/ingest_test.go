package actions

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func TestSessionCheckerCheck(t *testing.T) {
	tests := []struct {
		name      string
		sessionID string
		runCmd    func(ctx context.Context, name string, args ...string) *exec.Cmd
		wantState sessionLiveness
		wantIn    string
	}{
		{
			name:      "live session",
			sessionID: "ctx-test-live",
			runCmd: func(ctx context.Context, name string, args ...string) *exec.Cmd {
				return exec.CommandContext(ctx, "sh", "-c", "exit 0")
			},
			wantState: sessionLive,
			wantIn:    "session_exists",
		},
		{
			name:      "missing session",
			sessionID: "ctx-test-missing",
			runCmd: func(ctx context.Context, name string, args ...string) *exec.Cmd {
				return exec.CommandContext(ctx, "sh", "-c", "echo \"can't find session\" >&2; exit 1")
			},
			wantState: sessionMissing,
			wantIn:    "session_missing",
		},
		{
			name:      "timeout",
			sessionID: "ctx-test-timeout",
			runCmd: func(ctx context.Context, name string, args ...string) *exec.Cmd {
				return exec.CommandContext(ctx, "sh", "-c", "sleep 1")
			},
			wantState: sessionUnknown,
			wantIn:    "tmux_timeout",
		},
		{
			name:      "command failure",
			sessionID: "ctx-test-error",
			runCmd: func(ctx context.Context, name string, args ...string) *exec.Cmd {
				return exec.CommandContext(ctx, "sh", "-c", "echo boom >&2; exit 2")
			},
			wantState: sessionUnknown,
			wantIn:    "tmux_error",
		},
		{
			name:      "empty session id",
			sessionID: "   ",
			runCmd: func(ctx context.Context, name string, args ...string) *exec.Cmd {
				return exec.CommandContext(ctx, "sh", "-c", "exit 0")
			},
			wantState: sessionUnknown,
			wantIn:    "empty_session_id",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			checker := newSessionChecker(50 * time.Millisecond)
			checker.runCmd = tc.runCmd

			got := checker.check(context.Background(), tc.sessionID)
			if got.state != tc.wantState {
				t.Fatalf("state=%q want=%q", got.state, tc.wantState)
			}
			if !strings.Contains(got.detail, tc.wantIn) {
				t.Fatalf("detail=%q does not contain %q", got.detail, tc.wantIn)
			}
		})
	}
}
