package session

import (
	"encoding/binary"
	"fmt"

	"plctag/cip"
)

// forwardOpenLocked drives the SEND_FORWARD_OPEN/RECEIVE_FORWARD_OPEN
// loop: try ForwardOpenEx first (unless legacyFwd
// is already latched), shrink the requested size on a 0x0109 response,
// retry with a fresh connection serial on a 0x0100 duplicate-connection
// response, and fall back to legacy ForwardOpen on an unsupported-
// service response. Caller holds s.mu.
func (s *Session) forwardOpenLocked() error {
	route, err := cip.ParseRoutePath(s.cfg.Path)
	if err != nil {
		return fmt.Errorf("forward open: %w", err)
	}
	s.connPath = route.Encoded

	size := s.cfg.Family.DefaultPayloadSize()
	large := !s.legacyFwd

	const maxAttempts = 6
	for attempt := 0; attempt < maxAttempts; attempt++ {
		cfg := cip.DefaultForwardOpenConfig()
		cfg.ConnectionPath = s.connPath
		cfg.OTConnectionSize = size
		cfg.TOConnectionSize = size

		var reqData []byte
		var serial uint16
		if large {
			reqData, serial, err = cip.BuildForwardOpenRequest(cfg)
		} else {
			reqData, serial, err = cip.BuildForwardOpenRequestSmall(cfg)
		}
		if err != nil {
			return fmt.Errorf("forward open: build request: %w", err)
		}

		resp, err := s.client.SendRRData(*unconnectedCpf(reqData))
		if err != nil {
			return fmt.Errorf("forward open: send: %w", err)
		}
		if len(resp.Items) < 2 {
			return fmt.Errorf("forward open: expected 2 CPF items, got %d", len(resp.Items))
		}

		foResp, cipErr := parseForwardOpenReply(resp.Items[1].Data)
		if cipErr == nil {
			s.conn = &cip.Connection{
				OTConnID:     foResp.OTConnectionID,
				TOConnID:     foResp.TOConnectionID,
				SerialNumber: serial,
				VendorID:     cfg.VendorID,
				OrigSerial:   cfg.OriginatorSerial,
			}
			s.connSize = size
			s.legacyFwd = !large
			return nil
		}

		ce, ok := cipErr.(*cip.CipError)
		if !ok {
			return fmt.Errorf("forward open: %w", cipErr)
		}

		switch {
		case ce.IsUnsupportedService() && large:
			large = false
			continue
		case ce.IsInvalidConnectionSize() && ce.SupportedSize != nil:
			size = *ce.SupportedSize
			continue
		case ce.IsDuplicateConnection():
			// a fresh attempt draws a new connection serial automatically
			// (DefaultForwardOpenConfig reseeds it).
			continue
		default:
			return fmt.Errorf("forward open: %w", ce)
		}
	}

	return fmt.Errorf("forward open: exhausted negotiation attempts")
}

// parseForwardOpenReply parses the CIP service reply header wrapping a
// Forward Open response and translates a non-success status into a
// *cip.CipError.
func parseForwardOpenReply(data []byte) (*cip.ForwardOpenResponse, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("forward open reply too short: %d bytes", len(data))
	}

	status := data[2]
	addlStatusSize := int(data[3])

	if status != cip.GeneralStatusSuccess {
		var extended []uint16
		if addlStatusSize > 0 && len(data) >= 4+addlStatusSize*2 {
			extended = make([]uint16, addlStatusSize)
			for i := 0; i < addlStatusSize; i++ {
				extended[i] = binary.LittleEndian.Uint16(data[4+i*2:])
			}
		}
		return nil, cip.TranslateStatus(status, extended)
	}

	dataStart := 4 + addlStatusSize*2
	if dataStart >= len(data) {
		return nil, fmt.Errorf("forward open reply missing data")
	}
	return cip.ParseForwardOpenResponse(data[dataStart:])
}
