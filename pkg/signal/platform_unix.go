//go:build !windows

package signal

import (
	"os"
	"os/signal"
	"syscall"
)

// Notify arms ch for both the interrupt-equivalent and the
// terminate-equivalent signal (§4.5 "On POSIX, signals are installed on
// the event loop").
func Notify(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
}

// IsTerminate reports whether sig is the terminate-equivalent signal,
// as opposed to the interrupt-equivalent.
func IsTerminate(sig os.Signal) bool {
	return sig == syscall.SIGTERM
}
