// Package kwp2000 implements the KWP2000/ISO 14230 session over the
// K-line — slow init with a target address, key-byte exchange, framed
// request/response with a summed checksum, and tester-present keepalive.
package kwp2000

import (
	"fmt"
	"time"

	"github.com/vwdiag/obdkit/dtc"
	"github.com/vwdiag/obdkit/internal/kline"
	"github.com/vwdiag/obdkit/internal/obdlog"
	"github.com/vwdiag/obdkit/internal/xerrors"
)

const (
	serviceStartDiagnosticSession byte = 0x10
	serviceReadDTCs               byte = 0x18
	serviceClearDTCs              byte = 0x14
	serviceReadECUID              byte = 0x1a
	serviceTesterPresent          byte = 0x3e

	keepAliveInterval = 5 * time.Second

	// maxNegativeResponseRetries bounds how many times request() will retry
	// after a busy/response-pending negative response before giving up.
	maxNegativeResponseRetries = 3
	negativeResponseRetryDelay = 50 * time.Millisecond
)

// Session is one established KWP2000 conversation with a single ECU.
type Session struct {
	line       *kline.Line
	target     byte
	lastActive time.Time
	log        *obdlog.Logger
}

// Open performs the slow-init handshake: 5-baud address, KB1/KB2 exchange,
// complement-of-KB2 reply, address-complement confirmation, then starts a
// diagnostic session (service 0x10, sub-function 0x89).
func Open(cfg kline.Config, wakeupAddress byte) (*Session, error) {
	line, err := kline.Init(cfg, wakeupAddress)
	if err != nil {
		return nil, err
	}

	if _, err := line.ReadByte(false); err != nil { // KB1
		return nil, err
	}
	kb2, err := line.ReadByte(false)
	if err != nil {
		return nil, err
	}

	if err := line.WriteByte(0xff-kb2, false); err != nil {
		return nil, err
	}

	echoAddr, err := line.ReadByte(false)
	if err != nil {
		return nil, err
	}
	if echoAddr != 0xff-addressWireByte(wakeupAddress) {
		return nil, xerrors.ComplementMismatch("unexpected address complement during KWP2000 init")
	}

	s := &Session{
		line:       line,
		target:     frameTargetFor(wakeupAddress),
		lastActive: time.Now(),
		log:        obdlog.New(fmt.Sprintf("kwp2000 ecu=0x%02x", wakeupAddress)),
	}

	if _, err := s.request(serviceStartDiagnosticSession, []byte{0x89}); err != nil {
		return nil, err
	}
	return s, nil
}

// addressWireByte reconstructs the 8-bit value the 5-baud address frame
// actually carries: the 7-bit address plus the odd-parity bit in the top
// position. The ECU's address-complement confirmation is the bitwise
// complement of this byte, not of the bare 7-bit address.
func addressWireByte(addr byte) byte {
	data := addr & 0x7f
	var ones int
	for i := 0; i < 7; i++ {
		if data&(1<<i) != 0 {
			ones++
		}
	}
	var parity byte
	if ones%2 == 0 {
		parity = 1
	}
	return data | (parity << 7)
}

func (s *Session) writeBlock(data []byte) error {
	msg := buildFrame(s.target, TesterAddress, data)
	for _, b := range msg {
		if err := s.line.WriteByte(b, false); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) readBlock() ([]byte, error) {
	header, err := s.line.ReadByte(false)
	if err != nil {
		return nil, err
	}
	length := int(header & 0x3f)

	msg := make([]byte, 0, length+4)
	msg = append(msg, header)
	for i := 0; i < length+3; i++ {
		b, err := s.line.ReadByte(false)
		if err != nil {
			return nil, err
		}
		msg = append(msg, b)
	}

	if checksum(msg[:len(msg)-1]) != msg[len(msg)-1] {
		return nil, xerrors.ChecksumMismatch("KWP2000 frame checksum did not match")
	}

	return msg[3 : length+3], nil
}

// request sends one service+args frame and validates the response's
// service id, returning whatever data follows it. Which of that data is an
// echo of the request sub-function and which is a genuine reply is
// service-specific, so callers interpret their own response body. A
// busy/response-pending negative response is retried in place, up to
// maxNegativeResponseRetries times, rather than surfaced to the caller.
func (s *Session) request(service byte, args []byte) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		resp, nrc, err := s.requestOnce(service, args)
		if err == nil {
			return resp, nil
		}
		if nrc == 0 || !isRetryable(nrc) || attempt >= maxNegativeResponseRetries {
			return nil, err
		}
		s.log.Infof("retrying service 0x%02x after %s", service, nrcDescription(nrc))
		time.Sleep(negativeResponseRetryDelay)
	}
}

// requestOnce sends one service+args frame and reads one response, without
// retrying. nrc is non-zero only when err is a negative response, so the
// caller can decide whether it's worth retrying.
func (s *Session) requestOnce(service byte, args []byte) (data []byte, nrc byte, err error) {
	msg := append([]byte{service}, args...)
	if err := s.writeBlock(msg); err != nil {
		return nil, 0, err
	}
	s.lastActive = time.Now()

	response, err := s.readBlock()
	if err != nil {
		return nil, 0, err
	}
	if len(response) == 0 {
		return nil, 0, xerrors.UnexpectedBlock("empty KWP2000 response", response)
	}
	if response[0] == 0x7f {
		if len(response) < 3 {
			return nil, 0, xerrors.NegativeResponse("malformed negative response", response)
		}
		return nil, response[2], xerrors.NegativeResponse(nrcDescription(response[2]), response)
	}
	if response[0] != service+0x40 {
		return nil, 0, xerrors.UnexpectedBlock("KWP2000 response service id did not match request", response)
	}
	return response[1:], 0, nil
}

// keepAliveIfIdle sends tester-present when more than keepAliveInterval has
// passed since the last request.
func (s *Session) keepAliveIfIdle() error {
	if time.Since(s.lastActive) < keepAliveInterval {
		return nil
	}
	_, err := s.request(serviceTesterPresent, nil)
	return err
}

// ReadDTCs sends service 0x18 with the "all stored DTCs" status filter.
func (s *Session) ReadDTCs() ([]dtc.Record, error) {
	if err := s.keepAliveIfIdle(); err != nil {
		return nil, err
	}
	resp, err := s.request(serviceReadDTCs, []byte{0x02, 0xff, 0x00})
	if err != nil {
		return nil, err
	}
	if len(resp) < 1 {
		return nil, xerrors.UnexpectedBlock("read-DTCs response missing count byte", resp)
	}
	count := int(resp[0])
	records := make([]dtc.Record, 0, count)
	body := resp[1:]
	for i := 0; i+3 <= len(body) && len(records) < count; i += 3 {
		if rec, ok := dtc.DecodeVAG3(body[i], body[i+1], body[i+2]); ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

// ClearDTCs sends service 0x14.
func (s *Session) ClearDTCs() error {
	if err := s.keepAliveIfIdle(); err != nil {
		return err
	}
	_, err := s.request(serviceClearDTCs, nil)
	return err
}

// ReadECUID sends service 0x1A with sub-function 0x9B.
func (s *Session) ReadECUID() ([]byte, error) {
	if err := s.keepAliveIfIdle(); err != nil {
		return nil, err
	}
	return s.request(serviceReadECUID, []byte{0x9b})
}

// Close releases the underlying K-line.
func (s *Session) Close() error {
	return s.line.Close()
}
