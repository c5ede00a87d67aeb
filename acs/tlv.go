package acs

// tlvRecord is one decoded (type, value) pair from a DATA frame's payload.
type tlvRecord struct {
	Type  uint16
	Value []byte
}

// decodeTLV walks payload as a sequence of 2-byte-type/1-byte-length/value
// records, stopping at the 0xFFFF terminator (which itself carries no
// length or value). Unknown types are returned like any other record; it
// is the Dispatcher's job to skip types it doesn't recognize, not the
// codec's.
//
// A declared length that runs past the end of payload aborts decoding of
// this frame with *TruncationError; records already decoded are returned
// alongside the error so a caller may still act on what it has.
func decodeTLV(payload []byte) ([]tlvRecord, error) {
	var records []tlvRecord
	pos := 0
	for pos < len(payload) {
		if pos+2 > len(payload) {
			return records, &TruncationError{Length: 2, Have: len(payload) - pos}
		}
		typ := uint16(payload[pos]) | uint16(payload[pos+1])<<8
		pos += 2
		if typ == tlvTypeEnd {
			return records, nil
		}
		if pos+1 > len(payload) {
			return records, &TruncationError{Type: typ, Length: 1, Have: len(payload) - pos}
		}
		length := int(payload[pos])
		pos++
		if pos+length > len(payload) {
			return records, &TruncationError{Type: typ, Length: length, Have: len(payload) - pos}
		}
		value := make([]byte, length)
		copy(value, payload[pos:pos+length])
		pos += length
		records = append(records, tlvRecord{Type: typ, Value: value})
	}
	return records, nil
}

// encodeTLV is only needed for fixed known records in tests; the panel
// never requires client-encoded TLV in the commands this core issues
// (parameters are raw little-endian integers, per spec.md §4.2).
func encodeTLV(records []tlvRecord) []byte {
	var buf []byte
	for _, r := range records {
		buf = append(buf, byte(r.Type), byte(r.Type>>8), byte(len(r.Value)))
		buf = append(buf, r.Value...)
	}
	buf = append(buf, byte(tlvTypeEnd), byte(tlvTypeEnd>>8))
	return buf
}
