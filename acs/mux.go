package acs

import (
	"context"
	"encoding/binary"
	"fmt"

	log "github.com/sirupsen/logrus"
)

type ackKind uint8

const (
	ackKindNone ackKind = iota
	ackKindAck
	ackKindNack
)

// classifyAck inspects a SYSTEM response frame's payload for the two-byte
// ACK/NACK discriminator the reference client calls is_ack: [0xFF, 0x00]
// is a plain ACK, [0xFF, 0xFF, lo, hi] is a NACK carrying a little-endian
// error code. Anything else is ackKindNone — the frame wasn't an
// acknowledgment at all.
func classifyAck(fr frame) (ackKind, uint16) {
	if fr.Type != packetTypeSystem || len(fr.Payload) < 2 || fr.Payload[0] != ackByte {
		return ackKindNone, 0
	}
	if fr.Payload[1] == ackOK {
		return ackKindAck, 0
	}
	if fr.Payload[1] == nackByte {
		var code uint16
		if len(fr.Payload) >= 4 {
			code = binary.LittleEndian.Uint16(fr.Payload[2:4])
		}
		return ackKindNack, code
	}
	return ackKindNone, 0
}

// sendRaw writes a complete wire frame through the send gate shared by
// the multiplexer, the reader's ACK replies and the keepalive loop — the
// only mutex ever held while writing to the socket, so frames never
// interleave on the wire.
func (s *Session) sendRaw(b []byte, packetType uint8) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.conn.Write(b)
	if err == nil {
		s.metrics.FramesSent.WithLabelValues(packetTypeName(packetType)).Inc()
	}
	return err
}

func (s *Session) sendAck() error {
	b := encodeFrame(packetTypeSystem, []byte{ackByte, ackOK}, s.cfg.checksumMode())
	return s.sendRaw(b, packetTypeSystem)
}

// drainStaleResponse discards any frame left over in the response channel
// from a previous call whose timeout already fired — spec.md §4.4's
// "drain stale response entries before transmitting a new command".
func (s *Session) drainStaleResponse() {
	for {
		select {
		case <-s.responseCh:
		default:
			return
		}
	}
}

// call issues one COMMAND and waits for the next SYSTEM (or unsolicited
// COMMAND) response, honoring the single in-flight command invariant via
// callMu. It returns the raw response frame; callers that need ACK/NACK
// semantics use classifyAck on the result.
func (s *Session) call(ctx context.Context, cmdGroup, subcmd uint8, params []byte) (frame, error) {
	s.callMu.Lock()
	defer s.callMu.Unlock()

	if s.conn == nil {
		return frame{}, ErrClosed
	}

	// Only the are-you-there probe and login itself are allowed before
	// Authenticated (spec.md §3: "Only Authenticated permits command
	// traffic other than the initial handshakes").
	if !isHandshakeCommand(cmdGroup, subcmd) && s.State() != Authenticated {
		return frame{}, ErrNotAuthenticated
	}

	s.drainStaleResponse()

	payload := make([]byte, 0, 2+len(params))
	payload = append(payload, cmdGroup, subcmd)
	payload = append(payload, params...)

	b := encodeFrame(packetTypeCommand, payload, s.cfg.checksumMode())
	if err := s.sendRaw(b, packetTypeCommand); err != nil {
		s.handleReaderError(err)
		return frame{}, ErrConnectionLost
	}

	timer := s.clock.NewTimer(callTimeout)
	defer timer.Stop()

	select {
	case resp := <-s.responseCh:
		return resp, nil
	case <-timer.Chan():
		return frame{}, ErrTimeout
	case <-s.lostCh:
		return frame{}, ErrConnectionLost
	case <-ctx.Done():
		return frame{}, ctx.Err()
	}
}

// callStatus issues a get_status-style COMMAND whose successful response
// arrives as a DATA push rather than a SYSTEM ACK (spec.md §4.7). It
// returns (value, true, nil) on a matching DATA record, (zero, false, nil)
// on an index-not-valid NACK, and (zero, false, err) for anything else —
// the distinction the reference implementation's get_*_status collapsed
// that this core restores (spec.md §9).
func (s *Session) callStatus(ctx context.Context, cmdGroup, subcmd uint8, index uint32, tlvType uint16) (any, bool, error) {
	s.callMu.Lock()
	defer s.callMu.Unlock()

	if s.conn == nil {
		return nil, false, ErrClosed
	}

	if s.State() != Authenticated {
		return nil, false, ErrNotAuthenticated
	}

	s.drainStaleResponse()

	w := s.disp.awaitStatus(tlvType, index)
	defer s.disp.clearWait(w)

	payload := append([]byte{cmdGroup, subcmd}, le32(index)...)
	b := encodeFrame(packetTypeCommand, payload, s.cfg.checksumMode())
	if err := s.sendRaw(b, packetTypeCommand); err != nil {
		s.handleReaderError(err)
		return nil, false, ErrConnectionLost
	}

	timer := s.clock.NewTimer(callTimeout)
	defer timer.Stop()

	for {
		select {
		case v := <-w.ch:
			return v, true, nil
		case resp := <-s.responseCh:
			kind, code := classifyAck(resp)
			switch kind {
			case ackKindNack:
				if code == ErrCodeIndexNotValid {
					return nil, false, nil
				}
				s.metrics.PanelErrors.WithLabelValues(codeLabel(code)).Inc()
				return nil, false, &PanelError{Code: code}
			default:
				// A plain ACK (or unrecognized frame) carries no status; the
				// real answer is still the DATA push we're waiting on.
				continue
			}
		case <-timer.Chan():
			return nil, false, ErrTimeout
		case <-s.lostCh:
			return nil, false, ErrConnectionLost
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
}

// isHandshakeCommand reports whether cmdGroup/subcmd is one of the two
// SYSTEM commands legitimately sent before the session reaches
// Authenticated: the are-you-there probe (Connecting/Connected) and login
// itself (LoggingIn). Everything else, including SET_LOGIN_TIME and
// ACK_CONFIG, only ever runs after Login has already set Authenticated.
func isHandshakeCommand(cmdGroup, subcmd uint8) bool {
	if cmdGroup != cmdSystem {
		return false
	}
	return subcmd == subcmdAreYouThere || subcmd == subcmdLogin
}

func codeLabel(code uint16) string {
	return fmt.Sprintf("0x%04x", code)
}

// keepaliveLoop fires SYSTEM/ARE_YOU_THERE every 30 seconds through the
// shared send gate. It never waits for a reply: a write failure alone
// marks the session Lost, mirroring the reference client's fire-and-forget
// keepalive (spec.md §4.6).
func (s *Session) keepaliveLoop(ctx context.Context) {
	defer s.bgWG.Done()
	ticker := s.clock.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.lostCh:
			return
		case <-ticker.Chan():
			b := encodeFrame(packetTypeCommand, []byte{cmdSystem, subcmdAreYouThere}, s.cfg.checksumMode())
			if err := s.sendRaw(b, packetTypeCommand); err != nil {
				log.WithError(err).Warn("acs: keepalive write failed")
				s.handleReaderError(err)
				return
			}
		}
	}
}
