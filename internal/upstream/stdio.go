package upstream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/vyrodovalexey/avamcp/internal/observability"
)

const stdioLineBuffer = 1 << 20

// errProcessExited is returned when the child process closed its stdout.
var errProcessExited = errors.New("upstream process exited")

// StdioTransport runs an MCP server as a child process. The process starts
// on the first call and is restarted after it exits. Calls are serialized,
// and a queued call gives up when its own context ends. Replies are matched
// to requests by id.
type StdioTransport struct {
	command string
	args    []string
	env     []string
	logger  observability.Logger

	// sem is a one-slot lock guarding proc and closed.
	sem    chan struct{}
	proc   *process
	closed bool
}

type process struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	replies chan []byte
	done    chan struct{}
}

// StdioOption is a functional option for the stdio transport.
type StdioOption func(*StdioTransport)

// WithStdioLogger sets the logger for the stdio transport.
func WithStdioLogger(logger observability.Logger) StdioOption {
	return func(t *StdioTransport) {
		t.logger = logger
	}
}

// WithEnv appends environment variables for the child process.
func WithEnv(env ...string) StdioOption {
	return func(t *StdioTransport) {
		t.env = append(t.env, env...)
	}
}

// NewStdioTransport creates a transport for command.
func NewStdioTransport(command string, args []string, opts ...StdioOption) *StdioTransport {
	t := &StdioTransport{
		command: command,
		args:    append([]string(nil), args...),
		logger:  observability.NopLogger(),
		sem:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Call writes body as one line and waits for the reply with the same id.
// The path is ignored.
func (t *StdioTransport) Call(ctx context.Context, _ string, body []byte) ([]byte, error) {
	id, err := messageID(body)
	if err != nil {
		return nil, err
	}
	var line bytes.Buffer
	if err := json.Compact(&line, body); err != nil {
		return nil, fmt.Errorf("compact message: %w", err)
	}
	line.WriteByte('\n')

	if err := t.lock(ctx); err != nil {
		return nil, err
	}
	defer t.unlock()

	p, err := t.running()
	if err != nil {
		return nil, err
	}
	if _, err := p.stdin.Write(line.Bytes()); err != nil {
		t.stop()
		return nil, fmt.Errorf("write to upstream process: %w", err)
	}
	if id == nil {
		return nil, nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case reply, ok := <-p.replies:
			if !ok {
				t.stop()
				return nil, errProcessExited
			}
			got, err := messageID(reply)
			if err != nil || !bytes.Equal(got, id) {
				continue
			}
			return reply, nil
		}
	}
}

func (t *StdioTransport) lock(ctx context.Context) error {
	select {
	case t.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *StdioTransport) unlock() {
	<-t.sem
}

// running returns the live process, starting one if needed. the lock is held.
func (t *StdioTransport) running() (*process, error) {
	if t.closed {
		return nil, errors.New("transport closed")
	}
	if t.proc != nil {
		return t.proc, nil
	}

	cmd := exec.Command(t.command, t.args...) //nolint:gosec // command comes from configuration
	cmd.Env = append(os.Environ(), t.env...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start upstream process: %w", err)
	}

	p := &process{
		cmd:     cmd,
		stdin:   stdin,
		replies: make(chan []byte, 64),
		done:    make(chan struct{}),
	}
	go t.readLoop(p, stdout)

	t.logger.Info("upstream process started",
		observability.String("command", t.command),
		observability.Int("pid", cmd.Process.Pid),
	)
	t.proc = p
	return p, nil
}

func (t *StdioTransport) readLoop(p *process, stdout io.Reader) {
	defer close(p.replies)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64<<10), stdioLineBuffer)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			t.logger.Warn("skipping malformed line from upstream process",
				observability.String("command", t.command))
			continue
		}
		reply := append([]byte(nil), line...)
		select {
		case p.replies <- reply:
		case <-p.done:
			return
		}
	}
}

// stop kills the current process. the lock is held.
func (t *StdioTransport) stop() {
	p := t.proc
	if p == nil {
		return
	}
	t.proc = nil
	close(p.done)
	_ = p.stdin.Close()
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	_ = p.cmd.Wait()
	for range p.replies { //nolint:revive // drain until the reader exits
	}
}

// Close stops the process.
func (t *StdioTransport) Close() error {
	_ = t.lock(context.Background())
	defer t.unlock()
	t.closed = true
	t.stop()
	return nil
}
