package cip

import (
	"encoding/binary"
	"fmt"
)

// connectionManagerPath is the fixed class/instance path to the target's
// own Connection Manager object (class 0x06, instance 1), the object that
// a routed Unconnected Send is always addressed to regardless of what the
// embedded request ultimately targets.
var connectionManagerPath = EPath_t{0x20, 0x06, 0x24, 0x01}

// unconnectedSendReplyService is SvcUnconnectedSend's reply bit set (0xD2).
const unconnectedSendReplyService = SvcUnconnectedSend | 0x80

// WrapUnconnectedSend wraps cipRequest in an Unconnected Send (service
// 0x52) envelope addressed to routePath, for delivery through a router
// (e.g. a ControlLogix's backplane) rather than directly to the device
// holding the TCP socket. An empty routePath means the request can be
// sent as-is; callers should skip this wrapper in that case.
func WrapUnconnectedSend(cipRequest []byte, routePath []byte) []byte {
	ucmm := make([]byte, 0, 4+len(cipRequest)+1+2+len(routePath))
	ucmm = append(ucmm, 0x0A) // priority/time tick: 10 -> 160ms tick
	ucmm = append(ucmm, 0x05) // timeout ticks: 5 -> 800ms
	ucmm = binary.LittleEndian.AppendUint16(ucmm, uint16(len(cipRequest)))
	ucmm = append(ucmm, cipRequest...)
	if len(cipRequest)%2 != 0 {
		ucmm = append(ucmm, 0x00)
	}
	ucmm = append(ucmm, byte(len(routePath)/2)) // route path size in words
	ucmm = append(ucmm, 0x00)                   // reserved
	ucmm = append(ucmm, routePath...)

	full := make([]byte, 0, 2+len(connectionManagerPath)+len(ucmm))
	full = append(full, SvcUnconnectedSend)
	full = append(full, connectionManagerPath.WordLen())
	full = append(full, connectionManagerPath...)
	full = append(full, ucmm...)
	return full
}

// UnwrapUnconnectedSendReply strips an Unconnected Send reply envelope to
// recover the embedded service reply. If data isn't an Unconnected Send
// reply (e.g. the request went out unrouted) it is returned unchanged, so
// callers can apply this unconditionally when they don't track whether
// the matching request was routed.
func UnwrapUnconnectedSendReply(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("cip: unconnected send reply too short: %d bytes", len(data))
	}
	if data[0] != unconnectedSendReplyService {
		return data, nil
	}

	status := data[2]
	addlStatusSize := int(data[3])
	if status != GeneralStatusSuccess {
		var extended []uint16
		if addlStatusSize > 0 && len(data) >= 4+addlStatusSize*2 {
			extended = make([]uint16, addlStatusSize)
			for i := 0; i < addlStatusSize; i++ {
				extended[i] = binary.LittleEndian.Uint16(data[4+i*2:])
			}
		}
		return nil, TranslateStatus(status, extended)
	}

	start := 4 + addlStatusSize*2
	if start > len(data) {
		return nil, fmt.Errorf("cip: unconnected send reply missing embedded data")
	}
	return data[start:], nil
}
