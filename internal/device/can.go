//go:build linux

package device

import (
	"encoding/binary"
	"fmt"
	"net"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/vwdiag/obdkit/internal/xerrors"
)

// CAN socket constants, from linux/can.h. There is no canonical Go package
// for these on every distribution, so they are declared the way
// AndySze/klipper's canbus.go declares them for its own raw SocketCAN
// implementation.
const (
	afCAN        = 29
	pfCAN        = afCAN
	canRAW       = 1
	canRawFilter = 1
	solCanRaw    = 101

	canFrameSize = 16 // sizeof(struct can_frame)
	// MaxFrameData is the maximum payload of one classic CAN frame.
	MaxFrameData = 8
)

// Frame is one classic (non-FD) CAN data frame.
type Frame struct {
	ID   uint32
	Data []byte // 0..8 bytes
}

type canFrameWire struct {
	canID  uint32
	canDLC uint8
	pad    uint8
	res0   uint8
	res1   uint8
	data   [8]byte
}

type sockaddrCAN struct {
	family  uint16
	ifindex int32
	addr    [8]byte
}

// CAN is a raw SocketCAN connection bound to an already-configured
// interface. It does not bring the interface up or set its bitrate — that
// is an operator/OS-level responsibility.
type CAN struct {
	fd int
}

// OpenCAN binds a raw CAN_RAW socket to iface. iface must already be
// administratively up with a bit rate configured; a bind failure (interface
// absent) surfaces as IoError.
func OpenCAN(iface string) (*CAN, error) {
	ifindex, err := interfaceIndex(iface)
	if err != nil {
		return nil, xerrors.IO(fmt.Sprintf("CAN interface %q not found", iface), err)
	}

	fd, err := syscall.Socket(pfCAN, syscall.SOCK_RAW, canRAW)
	if err != nil {
		return nil, xerrors.IO("failed to create CAN socket", err)
	}

	addr := sockaddrCAN{family: afCAN, ifindex: ifindex}
	_, _, errno := syscall.Syscall(syscall.SYS_BIND, uintptr(fd), uintptr(unsafe.Pointer(&addr)), unsafe.Sizeof(addr))
	if errno != 0 {
		syscall.Close(fd)
		return nil, xerrors.IO(fmt.Sprintf("failed to bind to %q (is it up?)", iface), errno)
	}

	return &CAN{fd: fd}, nil
}

func interfaceIndex(name string) (int32, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return 0, err
	}
	return int32(iface.Index), nil
}

// SetFilter installs a single acceptance filter (id/mask) so the kernel
// only delivers frames this session cares about.
func (c *CAN) SetFilter(id, mask uint32) error {
	type canFilter struct {
		canID   uint32
		canMask uint32
	}
	f := canFilter{canID: id, canMask: mask}
	_, _, errno := syscall.Syscall6(syscall.SYS_SETSOCKOPT, uintptr(c.fd), solCanRaw, canRawFilter,
		uintptr(unsafe.Pointer(&f)), unsafe.Sizeof(f), 0)
	if errno != 0 {
		return xerrors.IO("failed to set CAN filter", errno)
	}
	return nil
}

// Send writes one frame, blocking until the kernel accepts it.
func (c *CAN) Send(f Frame) error {
	if len(f.Data) > MaxFrameData {
		return xerrors.Unsupported("CAN frame payload exceeds 8 bytes")
	}
	wire := canFrameWire{canID: f.ID, canDLC: uint8(len(f.Data))}
	copy(wire.data[:], f.Data)

	buf := make([]byte, canFrameSize)
	binary.LittleEndian.PutUint32(buf[0:4], wire.canID)
	buf[4] = wire.canDLC
	copy(buf[8:16], wire.data[:])

	n, err := syscall.Write(c.fd, buf)
	if err != nil {
		return xerrors.IO("CAN write failed", err)
	}
	if n != canFrameSize {
		return xerrors.IO("short CAN write", nil)
	}
	return nil
}

// Receive blocks for at most deadline waiting for one frame.
func (c *CAN) Receive(deadline time.Duration) (Frame, error) {
	pfd := []unix.PollFd{{Fd: int32(c.fd), Events: unix.POLLIN}}
	timeoutMs := int(deadline.Milliseconds())
	if timeoutMs <= 0 {
		timeoutMs = 1
	}
	n, err := unix.Poll(pfd, timeoutMs)
	if err != nil {
		return Frame{}, xerrors.IO("poll on CAN socket failed", err)
	}
	if n == 0 {
		return Frame{}, xerrors.Timeout("timed out waiting for CAN frame")
	}

	buf := make([]byte, canFrameSize)
	nr, err := syscall.Read(c.fd, buf)
	if err != nil {
		return Frame{}, xerrors.IO("CAN read failed", err)
	}
	if nr != canFrameSize {
		return Frame{}, xerrors.IO("short CAN read", nil)
	}

	dlc := buf[4]
	data := make([]byte, dlc)
	copy(data, buf[8:8+dlc])
	return Frame{ID: binary.LittleEndian.Uint32(buf[0:4]), Data: data}, nil
}

// Close releases the socket.
func (c *CAN) Close() error {
	if c.fd < 0 {
		return nil
	}
	err := syscall.Close(c.fd)
	c.fd = -1
	return err
}
