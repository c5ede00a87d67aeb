package acs

import (
	"encoding/binary"
	"strconv"
	"strings"
)

// Door is the cached state of one door entity.
type Door struct {
	Index     uint32
	LockState uint8
	DoorState uint8
	IsLocked  bool
	IsOpen    bool
	IsJammed  bool
}

func parseDoorStatus(v []byte) (Door, error) {
	if len(v) < 8 {
		return Door{}, &TruncationError{Type: tlvTypeDoorStatus, Length: 8, Have: len(v)}
	}
	index := binary.LittleEndian.Uint32(v[0:4])
	lockState := v[4]
	doorState := v[5]
	return Door{
		Index:     index,
		LockState: lockState,
		DoorState: doorState,
		IsLocked:  lockState == doorLocked,
		IsOpen:    doorState != doorStateClosed,
		IsJammed:  doorState == doorStateForced,
	}, nil
}

// Input is the cached state of one input entity.
type Input struct {
	Index       uint32
	Reference   string
	State       uint8
	BypassFlags uint8
	IsOpen      bool
	IsBypassed  bool
}

func parseInputStatus(v []byte) (Input, error) {
	if len(v) < 14 {
		return Input{}, &TruncationError{Type: tlvTypeInputStatus, Length: 14, Have: len(v)}
	}
	index := binary.LittleEndian.Uint32(v[0:4])
	reference := strings.TrimRight(string(v[4:12]), "\x00 ")
	state := v[12]
	bypass := v[13]
	return Input{
		Index:       index,
		Reference:   reference,
		State:       state,
		BypassFlags: bypass,
		IsOpen:      state == inputOpen,
		IsBypassed:  bypass&0x01 != 0,
	}, nil
}

// Output is the cached state of one output entity.
type Output struct {
	Index     uint32
	Reference string
	State     uint8
	IsOn      bool
}

func parseOutputStatus(v []byte) (Output, error) {
	if len(v) < 13 {
		return Output{}, &TruncationError{Type: tlvTypeOutputStatus, Length: 13, Have: len(v)}
	}
	index := binary.LittleEndian.Uint32(v[0:4])
	reference := strings.TrimRight(string(v[4:12]), "\x00 ")
	state := v[12]
	return Output{
		Index:     index,
		Reference: reference,
		State:     state,
		IsOn:      state != outputOff,
	}, nil
}

// Area is the cached state of one area (zone) entity.
type Area struct {
	Index        uint32
	State        uint8
	TamperState  uint8
	Flags        uint8
	IsArmed      bool
	AlarmActive  bool
}

func parseAreaStatus(v []byte) (Area, error) {
	if len(v) < 7 {
		return Area{}, &TruncationError{Type: tlvTypeAreaStatus, Length: 7, Have: len(v)}
	}
	index := binary.LittleEndian.Uint32(v[0:4])
	state := v[4]
	tamper := v[5]
	flags := v[6]
	return Area{
		Index:       index,
		State:       state,
		TamperState: tamper,
		Flags:       flags,
		IsArmed:     state >= areaArmed,
		AlarmActive: flags&0x01 != 0,
	}, nil
}

// PanelDescriptor is assembled from the TLVs of a panel-description
// response.
type PanelDescriptor struct {
	Serial          uint32
	FirmwareType    string
	FirmwareVersion string // "minor.major", matching the reference client's format
	FirmwareBuild   uint16
}

func parsePanelDescriptor(records []tlvRecord) PanelDescriptor {
	var d PanelDescriptor
	for _, r := range records {
		switch r.Type {
		case tlvTypePanelSerial:
			if len(r.Value) >= 4 {
				d.Serial = binary.LittleEndian.Uint32(r.Value)
			}
		case tlvTypeFirmwareType:
			d.FirmwareType = string(r.Value)
		case tlvTypeFirmwareVersion:
			if len(r.Value) >= 2 {
				d.FirmwareVersion = formatFirmwareVersion(r.Value[1], r.Value[0])
			}
		case tlvTypeFirmwareBuild:
			if len(r.Value) >= 2 {
				d.FirmwareBuild = binary.LittleEndian.Uint16(r.Value)
			}
		}
	}
	return d
}

func formatFirmwareVersion(minor, major uint8) string {
	return strconv.Itoa(int(minor)) + "." + strconv.Itoa(int(major))
}
