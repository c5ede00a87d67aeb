package acs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDoorStatus(t *testing.T) {
	v := []byte{0x05, 0x00, 0x00, 0x00, doorLocked, 0x02, 0x00, 0x00}
	d, err := parseDoorStatus(v)
	require.NoError(t, err)
	require.Equal(t, uint32(5), d.Index)
	require.True(t, d.IsLocked)
	require.True(t, d.IsOpen) // door_state=2 != doorStateClosed(0)
	require.False(t, d.IsJammed)
}

func TestParseDoorStatusTruncated(t *testing.T) {
	_, err := parseDoorStatus([]byte{0x01})
	require.Error(t, err)
	var te *TruncationError
	require.ErrorAs(t, err, &te)
}

func TestParseInputStatus(t *testing.T) {
	ref := []byte("FRONT   ")
	v := append(append([]byte{0x02, 0x00, 0x00, 0x00}, ref...), inputOpen, 0x01)
	in, err := parseInputStatus(v)
	require.NoError(t, err)
	require.Equal(t, uint32(2), in.Index)
	require.Equal(t, "FRONT", in.Reference)
	require.True(t, in.IsOpen)
	require.True(t, in.IsBypassed)
}

func TestParseOutputStatus(t *testing.T) {
	ref := []byte("SIREN   ")
	v := append(append([]byte{0x03, 0x00, 0x00, 0x00}, ref...), 0x01)
	out, err := parseOutputStatus(v)
	require.NoError(t, err)
	require.Equal(t, uint32(3), out.Index)
	require.True(t, out.IsOn)
}

func TestParseAreaStatus(t *testing.T) {
	v := []byte{0x01, 0x00, 0x00, 0x00, areaArmed, 0x00, 0x00}
	a, err := parseAreaStatus(v)
	require.NoError(t, err)
	require.True(t, a.IsArmed)
	require.False(t, a.AlarmActive)
}

func TestFormatFirmwareVersion(t *testing.T) {
	require.Equal(t, "3.12", formatFirmwareVersion(3, 12))
}

func TestParsePanelDescriptor(t *testing.T) {
	records := []tlvRecord{
		{Type: tlvTypePanelSerial, Value: []byte{0x78, 0x56, 0x34, 0x12}},
		{Type: tlvTypeFirmwareType, Value: []byte("WX")},
		{Type: tlvTypeFirmwareVersion, Value: []byte{12, 3}},
		{Type: tlvTypeFirmwareBuild, Value: []byte{0x0A, 0x00}},
	}
	d := parsePanelDescriptor(records)
	require.Equal(t, uint32(0x12345678), d.Serial)
	require.Equal(t, "WX", d.FirmwareType)
	require.Equal(t, "3.12", d.FirmwareVersion)
	require.Equal(t, uint16(10), d.FirmwareBuild)
}
