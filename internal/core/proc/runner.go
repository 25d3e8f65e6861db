package proc

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// killGrace is how long a killed process group has to exit after SIGTERM
// before it is sent SIGKILL.
var killGrace = 500 * time.Millisecond

type Options struct {
	// Env is the complete child environment; nil inherits the parent's.
	Env     []string
	Dir     string
	Stdin   io.Reader
	Cleanup func()
	// Format is applied to every stdout line before it is yielded.
	Format func(string) string

	MaxCount     int
	IgnoreStderr bool
	CheckExit    bool
}

type Runner struct {
	Shell     string
	ShellFlag string
	MaxCount  int
	Logger    *slog.Logger
}

func NewRunner() *Runner {
	shell, flag := defaultShell()
	return &Runner{Shell: shell, ShellFlag: flag}
}

func (r *Runner) logger() *slog.Logger {
	if r == nil || r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

// Execute starts command through the shell and returns its stdout as a lazy
// line sequence. The caller must drain or Close the result.
func (r *Runner) Execute(ctx context.Context, command string, opts Options) (*Result, error) {
	if r == nil {
		r = NewRunner()
	}
	if strings.TrimSpace(command) == "" {
		failedTotal.WithLabelValues("spawn").Inc()
		return nil, &Error{Kind: ErrSpawn, Err: fmt.Errorf("command is required")}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.MaxCount == 0 {
		opts.MaxCount = r.MaxCount
	}

	shell, flag := r.Shell, r.ShellFlag
	if shell == "" {
		shell, flag = defaultShell()
	}
	cmd := shellCommand(shell, flag, command)
	cmd.Dir = opts.Dir
	cmd.Env = opts.Env
	cmd.Stdin = opts.Stdin
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		failedTotal.WithLabelValues("spawn").Inc()
		return nil, &Error{Kind: ErrSpawn, Command: command, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		_ = stdout.Close()
		failedTotal.WithLabelValues("spawn").Inc()
		return nil, &Error{Kind: ErrSpawn, Command: command, Err: err}
	}
	if err := cmd.Start(); err != nil {
		failedTotal.WithLabelValues("spawn").Inc()
		return nil, &Error{Kind: ErrSpawn, Command: command, Err: err}
	}
	spawnedTotal.Inc()
	r.logger().Debug("process started", "cmd", command, "pid", cmd.Process.Pid, "dir", opts.Dir)

	res := &Result{
		command:  command,
		opts:     opts,
		log:      r.logger(),
		cmd:      cmd,
		stdout:   stdout,
		stderr:   stderr,
		out:      newLineQueue(),
		errq:     newLineQueue(),
		killed:   make(chan struct{}),
		finished: make(chan struct{}),
	}
	res.readers.Add(2)
	go res.read(stdout, res.out)
	go res.read(stderr, res.errq)

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				res.mu.Lock()
				res.ctxErr = ctx.Err()
				res.mu.Unlock()
				res.Kill()
			case <-res.finished:
			}
		}()
	}
	return res, nil
}

// Result is a single-pass sequence over one process's stdout.
type Result struct {
	command string
	opts    Options
	log     *slog.Logger

	cmd     *exec.Cmd
	stdout  io.ReadCloser
	stderr  io.ReadCloser
	out     *lineQueue
	errq    *lineQueue
	readers sync.WaitGroup

	mu        sync.Mutex
	streamErr error
	ctxErr    error
	reaping   bool
	reaped    bool
	hardKill  *time.Timer

	killOnce   sync.Once
	killed     chan struct{}
	finishOnce sync.Once
	finished   chan struct{}

	line      string
	count     int
	truncated bool
	done      bool
	err       error
}

func (r *Result) Command() string { return r.command }

func (r *Result) Next() bool {
	if r == nil || r.done {
		return false
	}
	if r.truncated || r.isKilled() {
		r.finish()
		return false
	}

	raw, ok := r.out.pop(r.killed)
	if !ok {
		r.finish()
		return false
	}

	line := string(trimEOL(raw))
	if r.opts.Format != nil {
		line = r.opts.Format(line)
	}
	r.line = line
	r.count++

	if r.opts.MaxCount > 0 && r.count >= r.opts.MaxCount {
		r.truncated = true
		r.Kill()
	}
	return true
}

func (r *Result) Line() string {
	if r == nil {
		return ""
	}
	return r.line
}

func (r *Result) Count() int {
	if r == nil {
		return 0
	}
	return r.count
}

func (r *Result) Err() error {
	if r == nil {
		return nil
	}
	return r.err
}

// Close abandons the sequence: the process is killed if still running,
// pipes are closed and the cleanup callback runs.
func (r *Result) Close() error {
	if r == nil {
		return nil
	}
	if !r.done {
		r.Kill()
		r.finish()
	}
	return r.err
}

// Kill terminates the process group and wakes a consumer blocked in Next.
// It is safe to call repeatedly and from any goroutine.
func (r *Result) Kill() {
	if r == nil {
		return
	}
	r.killOnce.Do(func() {
		close(r.killed)
		r.terminate()
	})
}

// Complete reports whether stdout was read to its end without error, kill
// or truncation.
func (r *Result) Complete() bool {
	if r == nil || !r.done {
		return false
	}
	return r.err == nil && !r.truncated && !r.isKilled()
}

// Done is closed once the process has been reaped.
func (r *Result) Done() <-chan struct{} { return r.finished }

func (r *Result) isKilled() bool {
	select {
	case <-r.killed:
		return true
	default:
		return false
	}
}

func (r *Result) terminate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd.Process == nil || r.reaped {
		return
	}
	if r.hardKill == nil {
		r.hardKill = time.AfterFunc(killGrace, r.forceKill)
	}
	if r.reaping {
		_ = r.cmd.Process.Kill()
		return
	}
	if err := killProcessGroup(r.cmd.Process); err != nil {
		r.log.Debug("kill process group", "pid", r.cmd.Process.Pid, "err", err)
	}
}

// forceKill runs when a group ignored SIGTERM for killGrace.
func (r *Result) forceKill() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reaped {
		return
	}
	r.log.Debug("process ignored termination", "cmd", r.command, "pid", r.cmd.Process.Pid)
	if err := forceKillProcessGroup(r.cmd.Process); err != nil {
		r.log.Debug("force kill process group", "pid", r.cmd.Process.Pid, "err", err)
	}
}

func (r *Result) read(src io.Reader, q *lineQueue) {
	defer r.readers.Done()
	defer q.close()

	br := bufio.NewReader(src)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			q.push(line)
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) || errors.Is(err, fs.ErrClosed) || r.isKilled() {
			return
		}
		r.mu.Lock()
		if r.streamErr == nil {
			r.streamErr = err
		}
		r.mu.Unlock()
		r.terminate()
		return
	}
}

func (r *Result) finish() {
	r.finishOnce.Do(func() {
		r.done = true

		var errText []byte
		if r.isKilled() {
			_ = r.stderr.Close()
		} else {
			errText = r.errq.drain(r.killed)
		}
		_ = r.stdout.Close()
		_ = r.stderr.Close()
		r.readers.Wait()

		r.mu.Lock()
		r.reaping = true
		r.mu.Unlock()
		waitErr := r.cmd.Wait()

		r.mu.Lock()
		r.reaped = true
		if r.hardKill != nil {
			r.hardKill.Stop()
		}
		streamErr := r.streamErr
		ctxErr := r.ctxErr
		r.mu.Unlock()
		close(r.finished)

		stderrText := decode(errText)
		switch {
		case ctxErr != nil:
			r.err = ctxErr
		case streamErr != nil:
			r.err = &Error{Kind: ErrStream, Command: r.command, Err: streamErr}
			failedTotal.WithLabelValues("stream").Inc()
		case r.isKilled() || r.truncated:
		case stderrText != "" && !r.opts.IgnoreStderr:
			r.err = &Error{Kind: ErrTool, Command: r.command, Stderr: stderrText}
			failedTotal.WithLabelValues("tool").Inc()
		case r.opts.CheckExit && waitErr != nil:
			r.err = &Error{Kind: ErrTool, Command: r.command, Stderr: stderrText, Err: waitErr}
			failedTotal.WithLabelValues("tool").Inc()
		}
		r.log.Debug("process finished", "cmd", r.command, "lines", r.count, "killed", r.isKilled(), "err", r.err)

		if r.opts.Cleanup != nil {
			r.opts.Cleanup()
		}
	})
}

func trimEOL(b []byte) []byte {
	return bytes.TrimRight(b, "\r\n")
}

func decode(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return strings.ToValidUTF8(string(b), "�")
}
