// Package obd implements the OBD-II service layer (modes 01/02/03/04/09)
// built on top of an ISO-TP transport.
package obd

import (
	"github.com/vwdiag/obdkit/dtc"
	"github.com/vwdiag/obdkit/internal/xerrors"
	"github.com/vwdiag/obdkit/isotp"
)

const (
	serviceCurrentData  byte = 0x01
	serviceFreezeFrame  byte = 0x02
	serviceStoredDTCs   byte = 0x03
	serviceClearDTCs    byte = 0x04
	serviceVehicleInfo  byte = 0x09
)

// Client wraps one ISO-TP transport with the OBD-II request/response
// convention: the response service id is the request plus 0x40, and a
// negative response starts with 0x7F.
type Client struct {
	tr *isotp.Transport
}

// NewClient wraps an already-bound ISO-TP transport.
func NewClient(tr *isotp.Transport) *Client {
	return &Client{tr: tr}
}

func (c *Client) query(service byte, args []byte) ([]byte, error) {
	request := append([]byte{service}, args...)
	response, err := c.tr.Request(request)
	if err != nil {
		return nil, err
	}
	if len(response) == 0 {
		return nil, xerrors.UnexpectedBlock("empty OBD-II response", response)
	}
	if response[0] == 0x7f {
		if len(response) < 3 {
			return nil, xerrors.NegativeResponse("malformed OBD-II negative response", response)
		}
		return nil, xerrors.NegativeResponse("ECU rejected the request", response)
	}
	if response[0] != service+0x40 {
		return nil, xerrors.UnexpectedBlock("OBD-II response service id did not match request", response)
	}
	body := response[1:]
	if len(args) > 0 && len(body) >= len(args) && string(body[:len(args)]) == string(args) {
		body = body[len(args):]
	}
	return body, nil
}

// ReadData reads one live-data PID, or the equivalent freeze-frame value
// when freezeFrame is set.
func (c *Client) ReadData(pid byte, freezeFrame bool) ([]byte, error) {
	service := serviceCurrentData
	if freezeFrame {
		service = serviceFreezeFrame
	}
	return c.query(service, []byte{pid})
}

// ReadDataFormatted reads a PID and renders it with its known formula, or
// falls back to a hex dump for a PID with no known formula.
func (c *Client) ReadDataFormatted(pid byte, freezeFrame bool) (string, error) {
	data, err := c.ReadData(pid, freezeFrame)
	if err != nil {
		return "", err
	}
	return FormatPID(pid, data), nil
}

// ReadDTCs reads stored DTCs (service 0x03), or pending DTCs (service 0x07)
// when pending is set.
func (c *Client) ReadDTCs(pending bool) ([]dtc.Record, error) {
	service := serviceStoredDTCs
	if pending {
		service = 0x07
	}
	resp, err := c.query(service, nil)
	if err != nil {
		return nil, err
	}
	if len(resp) < 1 {
		return nil, nil
	}
	body := resp[1:] // resp[0] is the DTC count
	records := make([]dtc.Record, 0, len(body)/2)
	for i := 0; i+2 <= len(body); i += 2 {
		records = append(records, dtc.DecodeISO15031(body[i], body[i+1]))
	}
	return records, nil
}

// ClearDTCs sends service 0x04.
func (c *Client) ClearDTCs() error {
	_, err := c.query(serviceClearDTCs, nil)
	return err
}

// VehicleInfo sends service 0x09 with the given information type, e.g. 0x02
// for the VIN.
func (c *Client) VehicleInfo(infoType byte) ([]byte, error) {
	return c.query(serviceVehicleInfo, []byte{infoType})
}
