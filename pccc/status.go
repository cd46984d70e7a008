package pccc

import "fmt"

// Status byte values for the local (non-extended) PCCC STS codes.
const (
	StsSuccess            byte = 0x00
	StsIllegalCmd         byte = 0x01
	StsHostHasError       byte = 0x02
	StsRemoteNodeMissing  byte = 0x03
	StsHardwareFault      byte = 0x04
	StsAddressingError    byte = 0x05
	StsCmdNotSupported    byte = 0x06
	StsProcessorInRun     byte = 0x07
	StsCompatibilityMode  byte = 0x08
	StsRemoteDown         byte = 0x09
	StsDuplicateLabel     byte = 0x0A
	StsFileIsWrongSize    byte = 0x0B
	StsCannotCompleteCmd  byte = 0x0C
	StsRemoteBufferFull   byte = 0x0D
	StsWaitAck            byte = 0x0E
	StsFileNotOpen        byte = 0x0F
)

var statusMessages = map[byte]string{
	StsIllegalCmd:        "illegal command or format",
	StsHostHasError:      "host has a problem and will not communicate",
	StsRemoteNodeMissing: "remote node host is missing, disconnected, or shut down",
	StsHardwareFault:     "host could not complete function due to hardware fault",
	StsAddressingError:   "addressing problem or memory protect rungs",
	StsCmdNotSupported:   "function not allowed due to command protection selection",
	StsProcessorInRun:    "processor is in program mode",
	StsCompatibilityMode: "compatibility mode file missing or communication zone problem",
	StsRemoteDown:        "remote node cannot buffer command",
	StsDuplicateLabel:    "wait ACK (1775-KA buffer full)",
	StsFileIsWrongSize:   "remote node problem due to download",
	StsCannotCompleteCmd: "cannot complete function in the time specified",
	StsRemoteBufferFull:  "remote node buffer full",
	StsWaitAck:           "wait ACK",
	StsFileNotOpen:       "file is open, another node owns it",
}

// StatusError wraps a non-zero PCCC STS byte as an error.
type StatusError byte

func (e StatusError) Error() string {
	if msg, ok := statusMessages[byte(e)]; ok {
		return fmt.Sprintf("pccc: status 0x%02X: %s", byte(e), msg)
	}
	return fmt.Sprintf("pccc: status 0x%02X", byte(e))
}
