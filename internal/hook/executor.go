package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// Executor runs hooks under a timeout.
type Executor struct {
	timeout time.Duration
}

// NewExecutor creates an Executor that kills hooks running longer than
// timeout.
func NewExecutor(timeout time.Duration) *Executor {
	return &Executor{timeout: timeout}
}

// Execute runs h with ev as JSON on stdin and parses its stdout as a
// Response. A hook that reports failure is returned as a Response, not an
// error.
func (e *Executor) Execute(ctx context.Context, h *Hook, ev Event) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	cmd := exec.CommandContext(ctx, h.Executable)
	cmd.Dir = h.Path
	cmd.Stdin = bytes.NewReader(payload)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("hook %s: timeout after %s", h.Manifest.Name, e.timeout)
	}
	if err != nil {
		if s := stderr.String(); s != "" {
			return nil, fmt.Errorf("hook %s failed: %w, stderr: %s", h.Manifest.Name, err, s)
		}
		return nil, fmt.Errorf("hook %s failed: %w", h.Manifest.Name, err)
	}

	var resp Response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("hook %s: parse response: %w, stdout: %s", h.Manifest.Name, err, stdout.String())
	}
	return &resp, nil
}

// Dispatcher fires events at every subscribed hook.
type Dispatcher struct {
	manager  *Manager
	executor *Executor
}

// NewDispatcher pairs a Manager with an Executor.
func NewDispatcher(m *Manager, e *Executor) *Dispatcher {
	return &Dispatcher{manager: m, executor: e}
}

// Fire runs the hooks subscribed to ev.Type one after another and returns
// how many succeeded. Failures are logged.
func (d *Dispatcher) Fire(ctx context.Context, ev Event) int {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	ok := 0
	for _, h := range d.manager.For(ev.Type) {
		resp, err := d.executor.Execute(ctx, h, ev)
		switch {
		case err != nil:
			slog.Error("hook: execution failed", "hook", h.Manifest.Name, "event", ev.Type, "err", err)
		case !resp.Success:
			slog.Warn("hook: reported failure", "hook", h.Manifest.Name, "event", ev.Type, "error", resp.Error)
		default:
			ok++
		}
	}
	return ok
}
