package app

import "github.com/coreos/go-systemd/v22/daemon"

const (
	sdReady    = daemon.SdNotifyReady
	sdStopping = daemon.SdNotifyStopping
)

// sdNotify reports service state to systemd. Outside a Type=notify unit
// NOTIFY_SOCKET is unset and this is a no-op.
func sdNotify(state string) {
	_, _ = daemon.SdNotify(false, state)
}
