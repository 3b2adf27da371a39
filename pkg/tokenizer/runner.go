package tokenizer

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os/exec"
	"sync"
	"time"
)

// Compile-time check that *Runner satisfies [Service].
var _ Service = (*Runner)(nil)

const (
	// connectRetryInterval is the pause between dial attempts while the
	// child process is still booting.
	connectRetryInterval = 500 * time.Millisecond

	// connectDeadline bounds the whole reconnect loop after a spawn.
	connectDeadline = 30 * time.Second

	// requestTimeout bounds a single request/response round trip.
	requestTimeout = 10 * time.Second
)

// Config holds the launch and dial parameters for a [Runner].
type Config struct {
	// Command is the tokenization service binary, invoked as
	// "{Command} {locale}" through a shell.
	Command string

	// Addr is the TCP address the service listens on, e.g. "127.0.0.1:1342".
	Addr string
}

// Runner owns the tokenization child process and its socket. It implements
// [Service]. All exported methods are safe for concurrent use.
type Runner struct {
	cfg Config

	mu          sync.Mutex
	cmd         *exec.Cmd
	conn        net.Conn
	reader      *bufio.Reader
	onConnected func()
	generation  int // bumped on every Restart to cancel stale connect loops
}

// NewRunner creates a Runner. No process is spawned until [Runner.Restart].
func NewRunner(cfg Config) *Runner {
	return &Runner{cfg: cfg}
}

// OnConnected replaces the connected handler.
func (r *Runner) OnConnected(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onConnected = fn
}

// PID returns the child process ID, or 0 when not running.
func (r *Runner) PID() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd == nil || r.cmd.Process == nil {
		return 0
	}
	return r.cmd.Process.Pid
}

// Restart kills the current process tree, spawns the service for locale, and
// reconnects in the background.
func (r *Runner) Restart(ctx context.Context, locale string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.killLocked()
	r.generation++
	gen := r.generation

	cmd := shellCommand(r.cfg.Command, locale)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("tokenizer: spawn %q for %s: %w", r.cfg.Command, locale, err)
	}
	r.cmd = cmd
	slog.Info("tokenizer: spawned", "locale", locale, "pid", cmd.Process.Pid)

	// Reap the child when it exits so it never lingers as a zombie.
	go func() {
		if err := cmd.Wait(); err != nil {
			slog.Debug("tokenizer: process exited", "pid", cmd.Process.Pid, "err", err)
		}
	}()

	go r.connectLoop(ctx, gen)
	return nil
}

// connectLoop dials the service until it answers or the deadline passes,
// then fires the connected handler once. A newer generation aborts the loop.
func (r *Runner) connectLoop(ctx context.Context, gen int) {
	deadline := time.Now().Add(connectDeadline)

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r.mu.Lock()
		if r.generation != gen {
			r.mu.Unlock()
			return
		}
		r.mu.Unlock()

		conn, err := net.DialTimeout("tcp", r.cfg.Addr, connectRetryInterval)
		if err != nil {
			time.Sleep(connectRetryInterval)
			continue
		}

		r.mu.Lock()
		if r.generation != gen {
			r.mu.Unlock()
			_ = conn.Close()
			return
		}
		r.conn = conn
		r.reader = bufio.NewReader(conn)
		fn := r.onConnected
		r.mu.Unlock()

		slog.Info("tokenizer: connected", "addr", r.cfg.Addr)
		if fn != nil {
			fn()
		}
		return
	}

	slog.Warn("tokenizer: gave up connecting", "addr", r.cfg.Addr)
}

// spacyRequest is one request line on the wire.
type spacyRequest struct {
	Method    string `json:"method"`
	Utterance string `json:"utterance"`
}

// spacyResponse is one response line on the wire.
type spacyResponse struct {
	Entities []SpacyEntity `json:"entities"`
	Error    string        `json:"error,omitempty"`
}

// SpacyEntities extracts auxiliary entities from the utterance. Requests are
// serialized; the line protocol carries one in-flight request at a time.
func (r *Runner) SpacyEntities(ctx context.Context, utterance string) ([]SpacyEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		return nil, fmt.Errorf("tokenizer: not connected")
	}

	deadline := time.Now().Add(requestTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := r.conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("tokenizer: set deadline: %w", err)
	}

	req, err := json.Marshal(spacyRequest{Method: "get_spacy_entities", Utterance: utterance})
	if err != nil {
		return nil, fmt.Errorf("tokenizer: encode request: %w", err)
	}
	if _, err := r.conn.Write(append(req, '\n')); err != nil {
		return nil, fmt.Errorf("tokenizer: write request: %w", err)
	}

	line, err := r.reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("tokenizer: read response: %w", err)
	}

	var resp spacyResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("tokenizer: decode response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("tokenizer: service error: %s", resp.Error)
	}
	return resp.Entities, nil
}

// Close kills the process tree and closes the socket.
func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation++
	r.killLocked()
	return nil
}

// killLocked tears down the socket and the child process tree.
// Must be called with r.mu held.
func (r *Runner) killLocked() {
	if r.conn != nil {
		_ = r.conn.Close()
		r.conn = nil
		r.reader = nil
	}
	if r.cmd != nil && r.cmd.Process != nil {
		pid := r.cmd.Process.Pid
		if err := killTree(pid); err != nil {
			slog.Warn("tokenizer: kill process tree", "pid", pid, "err", err)
		} else {
			slog.Info("tokenizer: killed process tree", "pid", pid)
		}
	}
	r.cmd = nil
}
