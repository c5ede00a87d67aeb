package acs

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCRC16CCITTTestVector(t *testing.T) {
	require.Equal(t, uint16(0x29B1), crc16CCITT([]byte("123456789")))
}

func TestEncodeDecodeFrameRoundTrip(t *testing.T) {
	for _, mode := range []ChecksumMode{ChecksumNone, ChecksumSum8, ChecksumCRC16} {
		payload := []byte{0x01, 0x02, 0x03, 0x04}
		b := encodeFrame(packetTypeCommand, payload, mode)

		fr, err := decodeFrame(bufio.NewReader(bytes.NewReader(b)), mode)
		require.NoError(t, err)
		require.Equal(t, packetTypeCommand, fr.Type)
		require.Equal(t, formatPlain, fr.Format)
		require.Equal(t, payload, fr.Payload)
	}
}

func TestDecodeFrameBadMagic(t *testing.T) {
	b := encodeFrame(packetTypeCommand, []byte{0x01}, ChecksumSum8)
	b[0] = 'X'
	_, err := decodeFrame(bufio.NewReader(bytes.NewReader(b)), ChecksumSum8)
	require.Error(t, err)
	var fe *FramingError
	require.ErrorAs(t, err, &fe)
}

func TestDecodeFrameBadLength(t *testing.T) {
	b := encodeFrame(packetTypeCommand, []byte{0x01}, ChecksumSum8)
	b[2] = 0xFF
	b[3] = 0xFF
	_, err := decodeFrame(bufio.NewReader(bytes.NewReader(b)), ChecksumSum8)
	require.Error(t, err)
	var fe *FramingError
	require.ErrorAs(t, err, &fe)
}

func TestDecodeFrameChecksumMismatch(t *testing.T) {
	b := encodeFrame(packetTypeCommand, []byte{0x01, 0x02}, ChecksumSum8)
	b[len(b)-1] ^= 0xFF
	_, err := decodeFrame(bufio.NewReader(bytes.NewReader(b)), ChecksumSum8)
	require.Error(t, err)
	var ce *ChecksumError
	require.ErrorAs(t, err, &ce)
}

func TestDecodeFrameChecksumMismatchCRC16(t *testing.T) {
	b := encodeFrame(packetTypeData, []byte{0xAA, 0xBB, 0xCC}, ChecksumCRC16)
	b[len(b)-1] ^= 0x01
	_, err := decodeFrame(bufio.NewReader(bytes.NewReader(b)), ChecksumCRC16)
	require.Error(t, err)
	var ce *ChecksumError
	require.ErrorAs(t, err, &ce)
}
