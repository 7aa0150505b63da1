package link

// NetLink abstracts the OS-level operations the Manager performs on a CAN
// network interface. The production implementation shells out to iproute2
// and reads sysfs; tests substitute a fake.
type NetLink interface {
	// IsUp reports whether the interface has IFF_UP set.
	IsUp(name string) (bool, error)

	// SetUp brings the interface up. Requires CAP_NET_ADMIN.
	SetUp(name string) error

	// SetDown brings the interface down. Requires CAP_NET_ADMIN.
	SetDown(name string) error

	// SetBitrate configures the CAN arbitration bitrate. The interface must
	// be down for the change to apply on most drivers.
	SetBitrate(name string, bitrate uint32) error

	// ErrorCounters returns the interface receive and transmit error counts.
	ErrorCounters(name string) (rx, tx uint64, err error)
}
