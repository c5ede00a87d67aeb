package acs

// Packet types (byte 4 of a frame).
const (
	packetTypeCommand uint8 = 0x00
	packetTypeData    uint8 = 0x01
	packetTypeSystem  uint8 = 0xC0
)

// Format byte values (byte 5 of a frame). Only the unencrypted, unaddressed
// variant is implemented; the panel's format byte also carries encryption
// and addressing bits this core never sets or expects.
const (
	formatPlain uint8 = 0x00
)

// Checksum modes, selected independently of the format byte by the caller
// of encodeFrame/decodeFrame. A Session uses the 8-bit sum unless
// Config.ChecksumMode selects CRC-16; ChecksumNone never reaches a
// Session's wire, since Config.checksumMode maps it to the 8-bit sum.
type ChecksumMode uint8

const (
	ChecksumNone ChecksumMode = iota
	ChecksumSum8
	ChecksumCRC16
)

func (m ChecksumMode) size() int {
	switch m {
	case ChecksumSum8:
		return 1
	case ChecksumCRC16:
		return 2
	default:
		return 0
	}
}

// Command groups, carried as the first payload byte of a COMMAND frame
// (the subcommand follows). cmdSystem = 0xC0 is ground truth from spec.md §8 scenario
// S1's literal login bytes (`C0 02 01 02 03 04 FF`), not a guess — it
// happens to equal packetTypeSystem's frame-type byte, but the two are
// unrelated fields that coincide in value.
const (
	cmdSystem uint8 = 0xC0
	cmdDoor   uint8 = 0x01
	cmdInput  uint8 = 0x02
	cmdOutput uint8 = 0x03
	cmdArea   uint8 = 0x04
)

// subcmdLogin = 0x02 is likewise S1 ground truth. The remaining SYSTEM
// subcommands have no literal scenario bytes to anchor them (const.py is
// absent from original_source/), so they're numbered sequentially in the
// reference client's order of first use, recorded as an open question in
// DESIGN.md.
const (
	subcmdAreYouThere    uint8 = 0x01
	subcmdLogin          uint8 = 0x02
	subcmdLogout         uint8 = 0x03
	subcmdPanelDesc      uint8 = 0x04
	subcmdSetLoginTime   uint8 = 0x05
	subcmdAckConfig      uint8 = 0x06
	subcmdRequestEvents  uint8 = 0x07
	subcmdRequestMonitor uint8 = 0x08
)

const (
	subcmdLockDoor           uint8 = 0x01
	subcmdUnlockDoor         uint8 = 0x02
	subcmdUnlockDoorLatched  uint8 = 0x03
	subcmdRequestDoorStatus  uint8 = 0x04
)

const (
	subcmdOutputOn          uint8 = 0x01
	subcmdOutputOff         uint8 = 0x02
	subcmdOutputOnTimed     uint8 = 0x03
	subcmdRequestOutStatus  uint8 = 0x04
)

const (
	subcmdRequestInStatus     uint8 = 0x01
	subcmdBypassInputTemp     uint8 = 0x02
	subcmdBypassInputPerm     uint8 = 0x03
	subcmdRemoveInputBypass   uint8 = 0x04
)

const (
	subcmdArmNormal         uint8 = 0x01
	subcmdArmForce          uint8 = 0x02
	subcmdArmStay           uint8 = 0x03
	subcmdArmInstant        uint8 = 0x04
	subcmdDisarmArea        uint8 = 0x05
	subcmdDisarmAll         uint8 = 0x06
	subcmdRequestAreaStatus uint8 = 0x07
)

// ArmMode selects the arming variant for Area.Arm.
type ArmMode uint8

const (
	ArmNormal ArmMode = iota
	ArmForce
	ArmStay
	ArmInstant
)

// MonitorKind identifies the entity class passed to REQUEST_TO_MONITOR.
// These numeric assignments are an Open Question in the source spec
// ("implementers must supply them from vendor documentation"); the values
// below are this implementation's resolution, recorded in DESIGN.md.
type MonitorKind uint16

const (
	MonitorDoor   MonitorKind = 1
	MonitorInput  MonitorKind = 2
	MonitorOutput MonitorKind = 3
	MonitorArea   MonitorKind = 4
)

// TLV record types carried in DATA frames. Unknown types are tolerated and
// skipped by the TLV codec; this list is non-exhaustive by design.
const (
	tlvTypeEnd              uint16 = 0xFFFF
	tlvTypePanelSerial       uint16 = 0x0001
	tlvTypeFirmwareType      uint16 = 0x0002
	tlvTypeFirmwareVersion   uint16 = 0x0003
	tlvTypeFirmwareBuild     uint16 = 0x0004
	tlvTypeDoorStatus        uint16 = 0x0100
	tlvTypeInputStatus       uint16 = 0x0101
	tlvTypeOutputStatus      uint16 = 0x0102
	tlvTypeAreaStatus        uint16 = 0x0103
	tlvTypeEventReadable     uint16 = 0x0200
)

// Panel-defined state numerics (§4.7). Treated as opaque by the wire
// protocol itself; resolved here from the integer literals that
// original_source/protege_client.py's status parsers compare against, so
// get_status parsing matches the reference behavior
// and Testable Property scenario S3.
const (
	doorLocked      uint8 = 1
	doorStateClosed uint8 = 0
	doorStateForced uint8 = 4

	inputOpen uint8 = 1

	outputOff uint8 = 0

	areaArmed uint8 = 1
)

// Known panel NACK error codes (§4.4). Implementations branch on the
// numeric code; these names exist for logging only.
const (
	ErrCodeCommandNotValid  uint16 = 0x0120
	ErrCodeIndexNotValid    uint16 = 0x0121
	ErrCodeInvalidUser      uint16 = 0x0302
	ErrCodeNoAccessRights   uint16 = 0x0303
	ErrCodeAccessDenied     uint16 = 0x030F
	ErrCodeAreaNoChange     uint16 = 0x0869
	ErrCodeDoorAlreadyState uint16 = 0x0A32
)

// ACK_CONFIG's payload is carried verbatim per spec.md §9: its per-byte
// meaning is undocumented and should not be guessed at beyond "enable full
// acknowledgment mode".
var ackConfigFullPayload = []byte{0x01, 0x03, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00}

const (
	ackByte  uint8 = 0xFF
	ackOK    uint8 = 0x00
	nackByte uint8 = 0xFF
)
