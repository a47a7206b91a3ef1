package process

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/agentbroker/pkg/log"
)

const defaultStderrCap = 4 * 1024 * 1024 // 4 MiB, per §4.1

// Spec describes one child invocation.
type Spec struct {
	Argv []string
	Dir  string
	Env  map[string]string

	// StdinBytes, when non-nil, is written once and the pipe is closed.
	// When nil, stdin is connected to the null device — never inherited,
	// since the broker's own stdin is the client's JSON-RPC channel.
	StdinBytes []byte
}

// Runner spawns and supervises agent subprocesses (C1). The zero value
// is usable, though NewRunner is the normal entry point since it applies
// the spec's default timeouts.
type Runner struct {
	TermTimeout     time.Duration
	KillTimeout     time.Duration
	FatalPatterns   []*regexp.Regexp
	Ignorable       func(line string) bool
	RepeatThreshold int
	StderrCap       int64
}

// NewRunner builds a Runner with the §5 default timeouts and the
// built-in fatal-error pattern list.
func NewRunner() *Runner {
	return &Runner{
		TermTimeout:     2 * time.Second,
		KillTimeout:     1 * time.Second,
		FatalPatterns:   defaultFatalPatterns(),
		RepeatThreshold: 3,
		StderrCap:       defaultStderrCap,
	}
}

// Process is a running (or just-exited) child, returned by Runner.Start.
// Lines() yields stdout, Fatal() fires at most once if the stderr
// detector trips, and Wait()/Terminate() reap and/or kill the child.
type Process struct {
	logger zerolog.Logger

	cmd *exec.Cmd
	pid int

	lines chan string
	fatal chan string

	ring *ringBuffer

	termTimeout time.Duration
	killTimeout time.Duration
	termOnce    sync.Once

	waitDone chan struct{}
	exitCode int
	waitErr  error
}

// Start spawns the child described by spec, in its own process group,
// and begins pumping stdout/stderr in background goroutines. The
// returned Process is usable immediately; Lines() closes when stdout
// reaches EOF. Wait() returns once both stdout and stderr have reached
// EOF and the child has been reaped.
func (r *Runner) Start(spec Spec) (*Process, error) {
	if len(spec.Argv) == 0 {
		return nil, fmt.Errorf("process: empty argv")
	}

	cmd := exec.Command(spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = mergeEnv(spec.Env)
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("process: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("process: stderr pipe: %w", err)
	}

	var stdinPipe io.WriteCloser
	if spec.StdinBytes != nil {
		stdinPipe, err = cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("process: stdin pipe: %w", err)
		}
	} else {
		devNull, err := os.OpenFile(os.DevNull, os.O_RDONLY, 0)
		if err != nil {
			return nil, fmt.Errorf("process: open devnull: %w", err)
		}
		cmd.Stdin = devNull
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("process: start: %w", err)
	}

	stderrCap := r.StderrCap
	if stderrCap <= 0 {
		stderrCap = defaultStderrCap
	}

	p := &Process{
		logger:      log.WithComponent("process").With().Int("pid", cmd.Process.Pid).Logger(),
		cmd:         cmd,
		pid:         cmd.Process.Pid,
		lines:       make(chan string, 64),
		fatal:       make(chan string, 1),
		ring:        newRingBuffer(stderrCap),
		termTimeout: r.TermTimeout,
		killTimeout: r.KillTimeout,
		waitDone:    make(chan struct{}),
	}

	if stdinPipe != nil {
		go func() {
			defer stdinPipe.Close()
			_, _ = stdinPipe.Write(spec.StdinBytes)
		}()
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go p.pumpStdout(stdout, &wg)
	go p.pumpStderr(stderr, &wg, newFatalDetector(r.FatalPatterns, r.Ignorable, r.RepeatThreshold))

	go func() {
		wg.Wait()
		err := cmd.Wait()
		p.exitCode = exitCodeOf(cmd, err)
		p.waitErr = err
		close(p.waitDone)
	}()

	return p, nil
}

func (p *Process) pumpStdout(r io.ReadCloser, wg *sync.WaitGroup) {
	defer wg.Done()
	defer r.Close()
	defer close(p.lines)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		p.lines <- scanner.Text()
	}
}

func (p *Process) pumpStderr(r io.ReadCloser, wg *sync.WaitGroup, detector *fatalDetector) {
	defer wg.Done()
	defer r.Close()

	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			p.ring.Append([]byte(line))
			trimmed := bytes.TrimRight([]byte(line), "\r\n")
			if triggering, fatal := detector.Check(string(trimmed)); fatal {
				select {
				case p.fatal <- triggering:
				default:
				}
				p.logger.Warn().Str("line", triggering).Msg("fatal stderr pattern detected")
			}
		}
		if err != nil {
			return
		}
	}
}

// Lines is the stdout line stream; it closes when the child's stdout
// reaches EOF.
func (p *Process) Lines() <-chan string { return p.lines }

// Fatal fires at most once, carrying the stderr line (or masked-repeat
// line) that tripped the fatal-error detector. Callers that receive from
// this channel are expected to Terminate the child (§4.1).
func (p *Process) Fatal() <-chan string { return p.fatal }

// StderrTail returns the last n lines currently held in the stderr ring
// buffer, used to compose exit_error messages (§4.3 step 7).
func (p *Process) StderrTail(n int) []string {
	text := p.ring.String()
	lines := splitNonEmptyLines(text)
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}

// Wait blocks until the child has been reaped and returns its exit code.
// Safe to call multiple times and concurrently with Terminate.
func (p *Process) Wait() (int, error) {
	<-p.waitDone
	return p.exitCode, p.waitErr
}

// Terminate runs the §4.1 escalation sequence against the whole process
// group: SIGTERM, wait up to termTimeout, SIGKILL, wait up to
// killTimeout, then always Wait() to reap the zombie. It is idempotent —
// calling it more than once, including concurrently, performs the
// sequence exactly once and every caller observes its completion.
//
// Unlike the original asyncio source, which had to asyncio.shield this
// sequence (and shield the shield) to survive the caller's own
// cancellation, this goroutine is not subject to the caller's context at
// all: once called, it always runs to completion. Callers that want a
// bound on how long they wait for Terminate to return may select on
// their own context and a completion channel, but the underlying
// TERM/KILL/wait sequence is never interrupted.
func (p *Process) Terminate() {
	p.termOnce.Do(func() {
		select {
		case <-p.waitDone:
			return
		default:
		}

		if err := signalGroup(p.pid, termSignal); err != nil {
			p.logger.Debug().Err(err).Msg("group terminate failed, falling back to process")
			_ = p.cmd.Process.Signal(termSignal)
		}

		if waitWithTimeout(p.waitDone, p.termTimeout) {
			<-p.waitDone
			return
		}

		p.logger.Warn().Msg("child survived term_timeout, sending kill")
		if err := signalGroup(p.pid, killSignal); err != nil {
			_ = p.cmd.Process.Kill()
		}

		if !waitWithTimeout(p.waitDone, p.killTimeout) {
			p.logger.Error().Msg("child still alive after kill_timeout")
		}
		<-p.waitDone
	})
}

func waitWithTimeout(done <-chan struct{}, d time.Duration) bool {
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}

func splitNonEmptyLines(s string) []string {
	raw := strings.Split(s, "\n")
	out := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimRight(line, "\r")
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func mergeEnv(overrides map[string]string) []string {
	env := os.Environ()
	for k, v := range overrides {
		env = append(env, k+"="+v)
	}
	return env
}
