//go:build windows

package signal

import (
	"os"
	"os/signal"
)

// Notify arms ch for only the interrupt-equivalent signal; Windows has
// no portable terminate-equivalent to also install (§4.5 "On Windows,
// only the interrupt equivalent is installed").
func Notify(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt)
}

// IsTerminate always reports false on Windows: every delivery Notify
// can produce is the interrupt-equivalent.
func IsTerminate(sig os.Signal) bool {
	return false
}
