//go:build linux

package device

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/vwdiag/obdkit/internal/xerrors"
)

// GPIO chardev ioctl numbers and request/data layouts, from linux/gpio.h.
// golang.org/x/sys/unix does not expose these at the Go-type level, so they
// are hand-declared the same way internal/device/can.go hand-declares the
// SocketCAN wire structs.
const (
	gpioHandleRequestInput  = 1 << 0
	gpioHandleRequestOutput = 1 << 1

	gpioGetLineHandleIOCTL       = 0xc16cb403
	gpioHandleGetLineValuesIOCTL = 0xc040b408
	gpioHandleSetLineValuesIOCTL = 0xc040b409
)

type gpioHandleRequest struct {
	lineOffsets   [64]uint32
	flags         uint32
	defaultValues [64]uint8
	consumerLabel [32]byte
	lines         uint32
	fd            int32
}

type gpioHandleData struct {
	values [64]uint8
}

// Direction of a GPIO line.
type Direction int

const (
	DirectionIn Direction = iota
	DirectionOut
)

// GPIOLine is one requested line on a GPIO character device, used for the
// 5-baud address init bit-banging.
type GPIOLine struct {
	fd    int
	label string
}

// OpenGPIOLine opens chipPath (e.g. "/dev/gpiochip0") and requests offset
// with the given direction and initial output value (ignored for input).
func OpenGPIOLine(chipPath string, offset uint32, dir Direction, initial uint8, label string) (*GPIOLine, error) {
	chip, err := os.OpenFile(chipPath, os.O_RDWR, 0)
	if err != nil {
		return nil, xerrors.IO("failed to open GPIO chip "+chipPath, err)
	}
	defer chip.Close()

	req := gpioHandleRequest{lines: 1}
	req.lineOffsets[0] = offset
	copy(req.consumerLabel[:], label)
	if dir == DirectionOut {
		req.flags = gpioHandleRequestOutput
		req.defaultValues[0] = initial
	} else {
		req.flags = gpioHandleRequestInput
	}

	if err := ioctl(chip.Fd(), gpioGetLineHandleIOCTL, uintptr(unsafe.Pointer(&req))); err != nil {
		return nil, xerrors.IO("failed to request GPIO line", err)
	}

	return &GPIOLine{fd: int(req.fd), label: label}, nil
}

func ioctl(fd uintptr, req uintptr, arg uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, arg)
	if errno != 0 {
		return errno
	}
	return nil
}

// SetValue drives the line to 0 or 1. Only valid for output lines.
func (l *GPIOLine) SetValue(v uint8) error {
	data := gpioHandleData{}
	data.values[0] = v
	if err := ioctl(uintptr(l.fd), gpioHandleSetLineValuesIOCTL, uintptr(unsafe.Pointer(&data))); err != nil {
		return xerrors.IO("failed to set GPIO line value", err)
	}
	return nil
}

// Value samples the current line level. Only meaningful for input lines,
// but works for output lines too (reads back the driven value).
func (l *GPIOLine) Value() (uint8, error) {
	var data gpioHandleData
	if err := ioctl(uintptr(l.fd), gpioHandleGetLineValuesIOCTL, uintptr(unsafe.Pointer(&data))); err != nil {
		return 0, xerrors.IO("failed to read GPIO line value", err)
	}
	return data.values[0], nil
}

// Close releases the line handle back to the kernel.
func (l *GPIOLine) Close() error {
	if l.fd < 0 {
		return nil
	}
	err := unix.Close(l.fd)
	l.fd = -1
	return err
}
