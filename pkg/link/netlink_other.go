//go:build !linux

package link

import (
	"fmt"
	"runtime"

	"github.com/kioskbus/kioskbus-go/pkg/canbus"
)

// SocketCAN is Linux-only. On other platforms the production implementations
// fail at use time; tests supply fakes and the loopback bus instead.

type unsupported struct{}

// NewNetLink returns a NetLink whose operations all fail on this platform.
func NewNetLink() NetLink {
	return unsupported{}
}

func (unsupported) IsUp(string) (bool, error) { return false, errUnsupported() }
func (unsupported) SetUp(string) error        { return errUnsupported() }
func (unsupported) SetDown(string) error      { return errUnsupported() }
func (unsupported) SetBitrate(string, uint32) error {
	return errUnsupported()
}
func (unsupported) ErrorCounters(string) (uint64, uint64, error) {
	return 0, 0, errUnsupported()
}

func platformDial(Config) DialFunc {
	return func() (canbus.Bus, error) { return nil, errUnsupported() }
}

func errUnsupported() error {
	return fmt.Errorf("link: SocketCAN is not supported on %s", runtime.GOOS)
}
