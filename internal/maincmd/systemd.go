package maincmd

import (
	"net"

	"github.com/coreos/go-systemd/v22/activation"
)

// systemdListeners returns the listeners systemd passed down via socket
// activation (LISTEN_FDS/LISTEN_PID), or nil if the process wasn't started
// that way.
func systemdListeners() ([]net.Listener, error) {
	return activation.Listeners()
}
