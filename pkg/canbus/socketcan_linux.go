//go:build linux

package canbus

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"
	"unsafe"
)

// SocketCAN constants not exposed by package syscall.
const (
	afCAN        = 29 // AF_CAN
	canRawProto  = 1  // CAN_RAW
	solCANRaw    = 101
	canRawFilter = 1 // CAN_RAW_FILTER socket option
)

// socketCAN implements Bus over Linux SocketCAN using raw syscalls only.
type socketCAN struct {
	fd     int
	file   *os.File
	closed chan struct{}
}

// DialSocketCAN opens a raw CAN socket bound to the given interface name
// (e.g. "can0") and applies the optional kernel acceptance filters.
func DialSocketCAN(iface string, filters []HardwareFilter) (Bus, error) {
	fd, err := syscall.Socket(afCAN, syscall.SOCK_RAW, canRawProto)
	if err != nil {
		return nil, fmt.Errorf("%w: socket: %w", ErrTransport, err)
	}

	netIf, err := net.InterfaceByName(iface)
	if err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("%w: interface %q: %w", ErrTransport, iface, err)
	}

	if len(filters) > 0 {
		if err := applyRawFilters(fd, filters); err != nil {
			syscall.Close(fd)
			return nil, err
		}
	}

	// struct sockaddr_can { sa_family_t can_family; int can_ifindex; union { ... } addr; }
	type sockaddrCAN struct {
		Family  uint16
		_pad    uint16
		Ifindex int32
		Addr    [8]byte
	}
	sa := sockaddrCAN{Family: afCAN, Ifindex: int32(netIf.Index)}
	if _, _, e := syscall.Syscall(syscall.SYS_BIND, uintptr(fd), uintptr(unsafe.Pointer(&sa)), unsafe.Sizeof(sa)); e != 0 {
		syscall.Close(fd)
		return nil, fmt.Errorf("%w: bind: %w", ErrTransport, e)
	}

	if err := syscall.SetNonblock(fd, true); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	f := os.NewFile(uintptr(fd), "socketcan")
	return &socketCAN{fd: fd, file: f, closed: make(chan struct{})}, nil
}

// applyRawFilters installs kernel acceptance filters via CAN_RAW_FILTER.
func applyRawFilters(fd int, filters []HardwareFilter) error {
	// struct can_filter { canid_t can_id; canid_t can_mask; }
	type canFilter struct {
		ID   uint32
		Mask uint32
	}
	raw := make([]canFilter, len(filters))
	for i, f := range filters {
		raw[i] = canFilter{ID: f.ID, Mask: f.Mask}
	}
	_, _, e := syscall.Syscall6(
		syscall.SYS_SETSOCKOPT,
		uintptr(fd),
		uintptr(solCANRaw),
		uintptr(canRawFilter),
		uintptr(unsafe.Pointer(&raw[0])),
		unsafe.Sizeof(raw[0])*uintptr(len(raw)),
		0,
	)
	if e != 0 {
		return fmt.Errorf("%w: setsockopt CAN_RAW_FILTER: %w", ErrTransport, e)
	}
	return nil
}

func (s *socketCAN) Close() error {
	select {
	case <-s.closed:
		return nil
	default:
	}
	close(s.closed)
	// Closing the file also closes the fd.
	return s.file.Close()
}

// Send writes one frame using the Linux can_frame binary layout. EAGAIN from
// a full transmit queue is retried briefly; a queue that stays full surfaces
// as a transport error so the caller's retry policy can take over.
func (s *socketCAN) Send(frame Frame) error {
	if s.isClosed() {
		return ErrClosed
	}
	buf, err := frame.MarshalBinary()
	if err != nil {
		return err
	}
	deadline := time.Now().Add(100 * time.Millisecond)
	for {
		n, werr := syscall.Write(s.fd, buf)
		if werr == nil {
			if n != len(buf) {
				return fmt.Errorf("%w: short write", ErrTransport)
			}
			return nil
		}
		if werr == syscall.EAGAIN || werr == syscall.EWOULDBLOCK {
			if time.Now().After(deadline) {
				return fmt.Errorf("%w: transmit queue full: %w", ErrTransport, werr)
			}
			syscall.Select(0, nil, nil, nil, &syscall.Timeval{Usec: 1000})
			continue
		}
		if errors.Is(werr, syscall.EBADF) {
			return ErrClosed
		}
		return fmt.Errorf("%w: %w", ErrTransport, werr)
	}
}

// Receive waits up to timeout for one frame using select(2) on the socket.
func (s *socketCAN) Receive(timeout time.Duration) (Frame, bool, error) {
	if s.isClosed() {
		return Frame{}, false, ErrClosed
	}

	tv := syscall.NsecToTimeval(timeout.Nanoseconds())
	var set syscall.FdSet
	set.Bits[s.fd/64] |= 1 << (uint(s.fd) % 64)
	n, err := syscall.Select(s.fd+1, &set, nil, nil, &tv)
	if err != nil {
		if err == syscall.EINTR {
			return Frame{}, false, nil
		}
		return Frame{}, false, fmt.Errorf("%w: select: %w", ErrTransport, err)
	}
	if n == 0 {
		// Timeout: normal outcome.
		return Frame{}, false, nil
	}

	buf := make([]byte, frameWireSize)
	rn, rerr := syscall.Read(s.fd, buf)
	if rerr != nil {
		if rerr == syscall.EAGAIN || rerr == syscall.EWOULDBLOCK {
			return Frame{}, false, nil
		}
		if errors.Is(rerr, syscall.EBADF) {
			return Frame{}, false, ErrClosed
		}
		return Frame{}, false, fmt.Errorf("%w: %w", ErrTransport, rerr)
	}
	if rn != len(buf) {
		return Frame{}, false, fmt.Errorf("%w: short read", ErrTransport)
	}
	var f Frame
	if err := f.UnmarshalBinary(buf); err != nil {
		return Frame{}, false, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return f, true, nil
}

func (s *socketCAN) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}
