package acs

import (
	"context"
	"errors"
	"io"

	log "github.com/sirupsen/logrus"
)

// readLoop is the Packet Reader: the single goroutine that ever calls
// decodeFrame on this session's socket. It decodes one frame at a time and
// routes it by packet type, per spec.md §4.3:
//
//   - SYSTEM, and any COMMAND arriving unsolicited, go to the response
//     channel the Multiplexer's call() waits on.
//   - DATA goes to the Dispatcher for cache update and listener fan-out,
//     then this loop enqueues exactly one ACK before decoding the next
//     frame — the mandatory ACK-after-DATA ordering invariant.
//
// A decode error (bad framing, bad checksum, EOF) is fatal for the stream:
// the loop marks the session Lost, which wakes every pending call with
// ErrConnectionLost, and returns.
func (s *Session) readLoop(ctx context.Context) {
	defer s.bgWG.Done()
	mode := s.cfg.checksumMode()

	for {
		fr, err := decodeFrame(s.reader, mode)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.handleReaderError(err)
			return
		}

		s.metrics.FramesReceived.WithLabelValues(packetTypeName(fr.Type)).Inc()

		switch fr.Type {
		case packetTypeData:
			s.disp.handleData(fr.Payload)
			if err := s.sendAck(); err != nil {
				s.handleReaderError(err)
				return
			}
			s.metrics.AcksSent.Inc()

		default: // SYSTEM or an unsolicited COMMAND
			s.pushResponse(fr)
		}
	}
}

// pushResponse hands a frame to the waiting call(), if any. The channel is
// small and non-blocking: an unsolicited frame that nobody is waiting for
// (an are-you-there reply after its timeout already fired, for instance)
// must never stall the reader, so a full channel has its oldest entry
// dropped to admit the new one.
func (s *Session) pushResponse(fr frame) {
	for {
		select {
		case s.responseCh <- fr:
			return
		default:
		}
		select {
		case <-s.responseCh:
		default:
		}
	}
}

func (s *Session) handleReaderError(err error) {
	if errors.Is(err, io.EOF) {
		log.Warn("acs: connection closed by panel")
	} else {
		log.WithError(err).Warn("acs: packet reader terminating")
	}
	s.setState(Lost)
	s.markLost(err)
}

func packetTypeName(t uint8) string {
	switch t {
	case packetTypeCommand:
		return "command"
	case packetTypeData:
		return "data"
	case packetTypeSystem:
		return "system"
	default:
		return "unknown"
	}
}
