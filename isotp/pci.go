// Package isotp implements ISO 15765-2 segmentation over a classic 8-byte
// CAN frame, carrying single request/response exchanges the way the OBD-II
// service layer needs them.
package isotp

import (
	"github.com/vwdiag/obdkit/internal/xerrors"
)

const (
	pciSingleFrame      = 0x00
	pciFirstFrame       = 0x10
	pciConsecutiveFrame = 0x20
	pciFlowControl      = 0x30

	// MaxFrameData is the payload capacity of one classic CAN frame.
	MaxFrameData = 8
)

// FlowStatus is the first nibble of a flow-control frame's PCI byte.
type FlowStatus byte

const (
	FlowContinueToSend FlowStatus = 0
	FlowWait           FlowStatus = 1
	FlowOverflow       FlowStatus = 2
)

// buildSingleFrame builds an SF PCI + payload, up to 7 bytes of data.
func buildSingleFrame(data []byte) ([]byte, error) {
	if len(data) > 7 {
		return nil, xerrors.Unsupported("single frame payload exceeds 7 bytes")
	}
	out := make([]byte, 0, 1+len(data))
	out = append(out, pciSingleFrame|byte(len(data)))
	out = append(out, data...)
	return out, nil
}

// buildFirstFrame builds an FF PCI carrying totalLength and the first six
// bytes of the payload. totalLength must fit the 12-bit length field; the
// 32-bit escape form CAN-FD uses is not needed for classic 8-byte frames.
func buildFirstFrame(totalLength int, firstChunk []byte) ([]byte, error) {
	if totalLength > 4095 {
		return nil, xerrors.Unsupported("first frame payload exceeds 4095 bytes")
	}
	out := make([]byte, 0, 2+len(firstChunk))
	out = append(out, pciFirstFrame|byte((totalLength>>8)&0x0f), byte(totalLength&0xff))
	out = append(out, firstChunk...)
	return out, nil
}

// buildConsecutiveFrame builds a CF PCI carrying sequenceNumber (wraps 0-15)
// and up to seven bytes of the remaining payload.
func buildConsecutiveFrame(sequenceNumber int, chunk []byte) []byte {
	out := make([]byte, 0, 1+len(chunk))
	out = append(out, pciConsecutiveFrame|byte(sequenceNumber&0x0f))
	out = append(out, chunk...)
	return out
}

// buildFlowControl builds an FC frame requesting blockSize consecutive
// frames per pause, spaced stMinMs milliseconds apart.
func buildFlowControl(status FlowStatus, blockSize int, stMinMs int) []byte {
	stMin := byte(stMinMs)
	if stMinMs > 127 {
		stMin = 0x7f
	}
	return []byte{pciFlowControl | byte(status), byte(blockSize), stMin}
}

// parsedPCI describes the frame type and any fields carried in the PCI.
type parsedPCI struct {
	kind          int
	length        int // SF/FF: payload/total length
	sequence      int // CF: sequence number
	flowStatus    FlowStatus
	blockSize     int
	separationMs  int
}

func parsePCI(frame []byte) (parsedPCI, []byte, error) {
	if len(frame) == 0 {
		return parsedPCI{}, nil, xerrors.UnexpectedBlock("empty CAN frame payload", frame)
	}
	switch frame[0] & 0xf0 {
	case pciSingleFrame:
		length := int(frame[0] & 0x0f)
		if length > len(frame)-1 {
			return parsedPCI{}, nil, xerrors.UnexpectedBlock("single frame length exceeds frame payload", frame)
		}
		return parsedPCI{kind: pciSingleFrame, length: length}, frame[1 : 1+length], nil
	case pciFirstFrame:
		if len(frame) < 2 {
			return parsedPCI{}, nil, xerrors.UnexpectedBlock("truncated first frame", frame)
		}
		length := (int(frame[0]&0x0f) << 8) | int(frame[1])
		return parsedPCI{kind: pciFirstFrame, length: length}, frame[2:], nil
	case pciConsecutiveFrame:
		return parsedPCI{kind: pciConsecutiveFrame, sequence: int(frame[0] & 0x0f)}, frame[1:], nil
	case pciFlowControl:
		if len(frame) < 3 {
			return parsedPCI{}, nil, xerrors.UnexpectedBlock("truncated flow control frame", frame)
		}
		sep := int(frame[2])
		if sep > 127 {
			sep = 0
		}
		return parsedPCI{
			kind:         pciFlowControl,
			flowStatus:   FlowStatus(frame[0] & 0x0f),
			blockSize:    int(frame[1]),
			separationMs: sep,
		}, nil, nil
	default:
		return parsedPCI{}, nil, xerrors.UnexpectedBlock("unknown ISO-TP PCI type", frame)
	}
}
