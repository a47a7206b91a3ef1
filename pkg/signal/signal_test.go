package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cuemby/agentbroker/pkg/config"
)

type fakeRegistry struct {
	active      bool
	cancelCalls int
}

func (f *fakeRegistry) HasActive() bool { return f.active }
func (f *fakeRegistry) CancelAll() int {
	f.cancelCalls++
	f.active = false
	return 1
}

func TestCancelModeCancelsThenShutsDownWhenIdle(t *testing.T) {
	reg := &fakeRegistry{active: true}
	m := New(config.SigintCancel, time.Second, reg)

	m.HandleInterrupt()
	assert.Equal(t, 1, reg.cancelCalls)
	select {
	case <-m.ShutdownRequested():
		t.Fatal("should not shut down while requests were active")
	default:
	}

	m.HandleInterrupt()
	select {
	case <-m.ShutdownRequested():
	default:
		t.Fatal("should shut down once idle")
	}
	assert.False(t, m.IsForceExit())
}

func TestExitModeAlwaysShutsDown(t *testing.T) {
	reg := &fakeRegistry{active: true}
	m := New(config.SigintExit, time.Second, reg)

	m.HandleInterrupt()
	select {
	case <-m.ShutdownRequested():
	default:
		t.Fatal("exit mode must request shutdown immediately")
	}
	assert.Equal(t, 0, reg.cancelCalls)
}

func TestCancelThenExitRequiresDoubleTap(t *testing.T) {
	reg := &fakeRegistry{active: true}
	m := New(config.SigintCancelThenExit, 50*time.Millisecond, reg)

	m.HandleInterrupt()
	assert.Equal(t, 1, reg.cancelCalls)
	select {
	case <-m.ShutdownRequested():
		t.Fatal("first interrupt must only arm, not shut down")
	default:
	}

	m.HandleInterrupt()
	select {
	case <-m.ShutdownRequested():
	default:
		t.Fatal("second interrupt within the window must force shutdown")
	}
	assert.True(t, m.IsForceExit())
}

func TestCancelThenExitWindowExpires(t *testing.T) {
	reg := &fakeRegistry{active: true}
	m := New(config.SigintCancelThenExit, 10*time.Millisecond, reg)

	m.HandleInterrupt()
	time.Sleep(20 * time.Millisecond)
	m.HandleInterrupt()

	select {
	case <-m.ShutdownRequested():
		t.Fatal("interrupt after the window elapsed must re-arm, not force exit")
	default:
	}
}

func TestTerminateAlwaysShutsDownGracefully(t *testing.T) {
	reg := &fakeRegistry{active: true}
	m := New(config.SigintCancelThenExit, time.Second, reg)

	m.HandleTerminate()
	select {
	case <-m.ShutdownRequested():
	default:
		t.Fatal("terminate must always request shutdown")
	}
	assert.False(t, m.IsForceExit())
	assert.Equal(t, 1, reg.cancelCalls)
}
