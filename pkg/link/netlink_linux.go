//go:build linux

package link

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"unsafe"

	"github.com/kioskbus/kioskbus-go/pkg/canbus"
)

// iproute2 implements NetLink using ioctl for flag queries, the system `ip`
// tool (iproute2) for configuration, and sysfs for error counters.
type iproute2 struct{}

// NewNetLink returns the production NetLink implementation.
func NewNetLink() NetLink {
	return iproute2{}
}

// platformDial returns the SocketCAN dialer for the configured channel.
func platformDial(config Config) DialFunc {
	return func() (canbus.Bus, error) {
		return canbus.DialSocketCAN(config.Channel, config.HardwareFilters)
	}
}

const (
	ifNameSize   = 16     // IFNAMSIZ
	siocGIFFlags = 0x8913 // SIOCGIFFLAGS
	iffUp        = 0x1    // IFF_UP
)

// ifreqFlags mirrors the layout of struct ifreq for flag operations on Linux.
type ifreqFlags struct {
	Name  [ifNameSize]byte
	Flags uint16
	pad   [22]byte
}

func (iproute2) IsUp(name string) (bool, error) {
	if len(name) == 0 || len(name) >= ifNameSize {
		return false, fmt.Errorf("link: invalid interface name %q", name)
	}
	fd, err := syscall.Socket(syscall.AF_INET, syscall.SOCK_DGRAM, 0)
	if err != nil {
		return false, err
	}
	defer syscall.Close(fd)
	var ifr ifreqFlags
	copy(ifr.Name[:], name)
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), uintptr(siocGIFFlags), uintptr(unsafe.Pointer(&ifr)))
	if errno != 0 {
		return false, errno
	}
	return ifr.Flags&iffUp != 0, nil
}

func (iproute2) SetUp(name string) error {
	return runIP("link", "set", "dev", name, "up")
}

func (iproute2) SetDown(name string) error {
	return runIP("link", "set", "dev", name, "down")
}

func (iproute2) SetBitrate(name string, bitrate uint32) error {
	return runIP("link", "set", "dev", name, "type", "can", "bitrate", strconv.FormatUint(uint64(bitrate), 10))
}

func (iproute2) ErrorCounters(name string) (uint64, uint64, error) {
	rx, err := readCounter(name, "rx_errors")
	if err != nil {
		return 0, 0, err
	}
	tx, err := readCounter(name, "tx_errors")
	if err != nil {
		return 0, 0, err
	}
	return rx, tx, nil
}

func readCounter(name, counter string) (uint64, error) {
	path := fmt.Sprintf("/sys/class/net/%s/statistics/%s", name, counter)
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(string(raw)), 10, 64)
}

func runIP(args ...string) error {
	cmd := exec.Command("ip", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return capNetAdminHint(fmt.Errorf("ip %s failed: %w; output: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out))))
	}
	return nil
}

// capNetAdminHint maps EPERM to a clearer error message.
func capNetAdminHint(err error) error {
	if errors.Is(err, syscall.EPERM) {
		return fmt.Errorf("operation requires CAP_NET_ADMIN (or root): %w", err)
	}
	return err
}
