package process

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunnerStartStdoutLines(t *testing.T) {
	r := NewRunner()
	p, err := r.Start(Spec{Argv: []string{"/bin/sh", "-c", "echo one; echo two"}})
	require.NoError(t, err)

	var lines []string
	for line := range p.Lines() {
		lines = append(lines, line)
	}
	code, err := p.Wait()
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, []string{"one", "two"}, lines)
}

func TestRunnerNonZeroExit(t *testing.T) {
	r := NewRunner()
	p, err := r.Start(Spec{Argv: []string{"/bin/sh", "-c", "exit 7"}})
	require.NoError(t, err)
	for range p.Lines() {
	}
	code, err := p.Wait()
	require.NoError(t, err)
	assert.Equal(t, 7, code)
}

func TestRunnerStdinWritten(t *testing.T) {
	r := NewRunner()
	p, err := r.Start(Spec{Argv: []string{"/bin/cat"}, StdinBytes: []byte("hello\n")})
	require.NoError(t, err)

	var lines []string
	for line := range p.Lines() {
		lines = append(lines, line)
	}
	_, _ = p.Wait()
	assert.Equal(t, []string{"hello"}, lines)
}

func TestRunnerTerminateEscalation(t *testing.T) {
	r := NewRunner()
	r.TermTimeout = 50 * time.Millisecond
	r.KillTimeout = 50 * time.Millisecond

	p, err := r.Start(Spec{Argv: []string{"/bin/sh", "-c", "trap '' TERM; sleep 30"}})
	require.NoError(t, err)

	go func() {
		for range p.Lines() {
		}
	}()

	p.Terminate()
	code, _ := p.Wait()
	assert.NotEqual(t, 0, code)
}

func TestRunnerTerminateIdempotent(t *testing.T) {
	r := NewRunner()
	p, err := r.Start(Spec{Argv: []string{"/bin/sleep", "5"}})
	require.NoError(t, err)

	go func() {
		for range p.Lines() {
		}
	}()

	done := make(chan struct{})
	for i := 0; i < 3; i++ {
		go func() {
			p.Terminate()
			done <- struct{}{}
		}()
	}
	for i := 0; i < 3; i++ {
		<-done
	}
	_, _ = p.Wait()
}

func TestFatalDetectorPatternMatch(t *testing.T) {
	d := newFatalDetector(defaultFatalPatterns(), nil, 3)
	_, fatal := d.Check("some benign line")
	assert.False(t, fatal)

	line, fatal := d.Check("Error resuming session: Invalid session identifier")
	assert.True(t, fatal)
	assert.Contains(t, line, "Invalid session identifier")
}

func TestFatalDetectorRepeatThreshold(t *testing.T) {
	d := newFatalDetector(nil, nil, 3)
	assertFatal := func(msg string, want bool) {
		_, fatal := d.Check(msg)
		assert.Equal(t, want, fatal)
	}
	assertFatal("retrying request 1 of 10 at 12:00:01", false)
	assertFatal("retrying request 2 of 10 at 12:00:02", false)
	assertFatal("retrying request 3 of 10 at 12:00:03", true)
}

func TestFatalDetectorIgnorable(t *testing.T) {
	ignorable := func(line string) bool { return line == "reconnecting..." }
	d := newFatalDetector(nil, ignorable, 1)
	_, fatal := d.Check("reconnecting...")
	assert.False(t, fatal)
}

func TestRingBufferCapsAtMax(t *testing.T) {
	b := newRingBuffer(10)
	b.Append([]byte("0123456789"))
	b.Append([]byte("ABCDE"))
	assert.Equal(t, "56789ABCDE", b.String())
}
