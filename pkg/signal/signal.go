package signal

import (
	"sync"
	"time"

	"github.com/cuemby/agentbroker/pkg/config"
	"github.com/cuemby/agentbroker/pkg/log"
	"github.com/cuemby/agentbroker/pkg/metrics"
)

// Registry is the subset of pkg/registry.Registry the Signal Manager
// needs: whether anything is in flight, and a way to cancel everything.
type Registry interface {
	HasActive() bool
	CancelAll() int
}

// Manager implements the §4.5 mode table. The zero value is not usable;
// build one with New.
type Manager struct {
	mode            config.SigintMode
	doubleTapWindow time.Duration
	registry        Registry

	mu                 sync.Mutex
	shutdownArmed      bool
	shutdownArmedAt    time.Time
	forceExit          bool
	shutdown           chan struct{}
	shutdownClosedOnce sync.Once
}

// New builds a Manager for the given mode and double-tap window
// (already clamped by pkg/config), driving cancellation through
// registry.
func New(mode config.SigintMode, doubleTapWindow time.Duration, registry Registry) *Manager {
	return &Manager{
		mode:            mode,
		doubleTapWindow: doubleTapWindow,
		registry:        registry,
		shutdown:        make(chan struct{}),
	}
}

// ShutdownRequested closes once a shutdown has been requested, by any
// mode or by HandleTerminate. The main loop selects on this.
func (m *Manager) ShutdownRequested() <-chan struct{} {
	return m.shutdown
}

// IsForceExit reports whether shutdown was triggered by a forced
// (double-tap) exit rather than a graceful one. The caller's main loop
// checks this after its own cleanup completes, and only then chooses
// an exit code — the Manager itself never calls os.Exit (§4.5).
func (m *Manager) IsForceExit() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.forceExit
}

func (m *Manager) requestShutdown(force bool) {
	m.mu.Lock()
	if force {
		m.forceExit = true
	}
	m.mu.Unlock()
	m.shutdownClosedOnce.Do(func() { close(m.shutdown) })
}

// HandleInterrupt processes one interrupt-equivalent signal delivery
// per the active mode.
func (m *Manager) HandleInterrupt() {
	logger := log.WithComponent("signal")

	switch m.mode {
	case config.SigintExit:
		logger.Warn().Msg("interrupt received, shutting down")
		metrics.SignalsReceivedTotal.WithLabelValues("INT", "shutdown").Inc()
		m.requestShutdown(false)

	case config.SigintCancelThenExit:
		m.mu.Lock()
		doubleTap := m.shutdownArmed && time.Since(m.shutdownArmedAt) <= m.doubleTapWindow
		if !doubleTap {
			m.shutdownArmed = true
			m.shutdownArmedAt = time.Now()
		}
		m.mu.Unlock()

		if doubleTap {
			logger.Warn().Msg("second interrupt within double-tap window, forcing shutdown")
			metrics.SignalsReceivedTotal.WithLabelValues("INT", "force_exit").Inc()
			m.requestShutdown(true)
			return
		}
		n := m.registry.CancelAll()
		logger.Warn().Int("cancelled", n).Msg("interrupt received, cancelling active requests (press again to force exit)")
		metrics.SignalsReceivedTotal.WithLabelValues("INT", "cancel").Inc()

	default: // config.SigintCancel
		if m.registry.HasActive() {
			n := m.registry.CancelAll()
			logger.Warn().Int("cancelled", n).Msg("interrupt received, cancelling active requests")
			metrics.SignalsReceivedTotal.WithLabelValues("INT", "cancel").Inc()
			return
		}
		logger.Warn().Msg("interrupt received, no active requests, shutting down")
		metrics.SignalsReceivedTotal.WithLabelValues("INT", "shutdown").Inc()
		m.requestShutdown(false)
	}
}

// HandleTerminate processes a terminate-equivalent signal: always a
// graceful shutdown regardless of mode (§4.5).
func (m *Manager) HandleTerminate() {
	logger := log.WithComponent("signal")
	n := m.registry.CancelAll()
	logger.Warn().Int("cancelled", n).Msg("terminate received, shutting down")
	metrics.SignalsReceivedTotal.WithLabelValues("TERM", "shutdown").Inc()
	m.requestShutdown(false)
}
