package acs

import "context"

// doorCommands exposes the door-control commands (CMD_DOOR) for one
// Session; outputCommands, inputCommands, areaCommands and systemCommands
// do the same for their groups. The types are unexported; callers reach
// them through the Session methods Door, Output, Input, Area and System
// below rather than constructing them directly.
type doorCommands struct{ s *Session }
type outputCommands struct{ s *Session }
type inputCommands struct{ s *Session }
type areaCommands struct{ s *Session }
type systemCommands struct{ s *Session }

// Door returns the door-control command surface.
func (s *Session) Door() doorCommands { return doorCommands{s} }

// Output returns the output-control command surface.
func (s *Session) Output() outputCommands { return outputCommands{s} }

// Input returns the input-control command surface.
func (s *Session) Input() inputCommands { return inputCommands{s} }

// Area returns the area-control command surface.
func (s *Session) Area() areaCommands { return areaCommands{s} }

// System returns the panel-level command surface.
func (s *Session) System() systemCommands { return systemCommands{s} }

func (d doorCommands) call(ctx context.Context, subcmd uint8, index uint32) error {
	_, err := requireAck(d.s.call(ctx, cmdDoor, subcmd, le32(index)))
	return err
}

// Lock sends LOCK_DOOR for the given door index.
func (d doorCommands) Lock(ctx context.Context, index uint32) error {
	return d.call(ctx, subcmdLockDoor, index)
}

// Unlock sends UNLOCK_DOOR.
func (d doorCommands) Unlock(ctx context.Context, index uint32) error {
	return d.call(ctx, subcmdUnlockDoor, index)
}

// UnlockLatched sends UNLOCK_DOOR_LATCHED: the door stays unlocked until
// explicitly relocked, rather than the panel's normal auto-relock timer.
func (d doorCommands) UnlockLatched(ctx context.Context, index uint32) error {
	return d.call(ctx, subcmdUnlockDoorLatched, index)
}

// GetStatus requests REQUEST_DOOR_STATUS. It returns (door, true, nil) on
// a matching status push, (zero, false, nil) if the panel NACKs with
// "index not valid" (the door does not exist), and (zero, false, err) for
// any other failure including timeout.
func (d doorCommands) GetStatus(ctx context.Context, index uint32) (Door, bool, error) {
	v, ok, err := d.s.callStatus(ctx, cmdDoor, subcmdRequestDoorStatus, index, tlvTypeDoorStatus)
	if !ok || err != nil {
		return Door{}, ok, err
	}
	return v.(Door), true, nil
}

func (o outputCommands) call(ctx context.Context, subcmd uint8, index uint32) error {
	_, err := requireAck(o.s.call(ctx, cmdOutput, subcmd, le32(index)))
	return err
}

// On sends OUTPUT_ON.
func (o outputCommands) On(ctx context.Context, index uint32) error {
	return o.call(ctx, subcmdOutputOn, index)
}

// Off sends OUTPUT_OFF.
func (o outputCommands) Off(ctx context.Context, index uint32) error {
	return o.call(ctx, subcmdOutputOff, index)
}

// OnTimed sends OUTPUT_ON_TIMED, activating the output for seconds before
// the panel automatically turns it back off.
func (o outputCommands) OnTimed(ctx context.Context, index uint32, seconds uint16) error {
	params := append(le32(index), le16(seconds)...)
	_, err := requireAck(o.s.call(ctx, cmdOutput, subcmdOutputOnTimed, params))
	return err
}

// GetStatus requests REQUEST_OUTPUT_STATUS, with the same (entity, found,
// err) contract as doorCommands.GetStatus.
func (o outputCommands) GetStatus(ctx context.Context, index uint32) (Output, bool, error) {
	v, ok, err := o.s.callStatus(ctx, cmdOutput, subcmdRequestOutStatus, index, tlvTypeOutputStatus)
	if !ok || err != nil {
		return Output{}, ok, err
	}
	return v.(Output), true, nil
}

// GetStatus requests REQUEST_INPUT_STATUS.
func (in inputCommands) GetStatus(ctx context.Context, index uint32) (Input, bool, error) {
	v, ok, err := in.s.callStatus(ctx, cmdInput, subcmdRequestInStatus, index, tlvTypeInputStatus)
	if !ok || err != nil {
		return Input{}, ok, err
	}
	return v.(Input), true, nil
}

// Bypass suppresses alarms from this input. permanent selects
// BYPASS_INPUT_PERM over the temporary variant, which the panel clears at
// the next area disarm/arm cycle.
func (in inputCommands) Bypass(ctx context.Context, index uint32, permanent bool) error {
	subcmd := subcmdBypassInputTemp
	if permanent {
		subcmd = subcmdBypassInputPerm
	}
	_, err := requireAck(in.s.call(ctx, cmdInput, subcmd, le32(index)))
	return err
}

// RemoveBypass clears a previously set bypass on this input.
func (in inputCommands) RemoveBypass(ctx context.Context, index uint32) error {
	_, err := requireAck(in.s.call(ctx, cmdInput, subcmdRemoveInputBypass, le32(index)))
	return err
}

// Arm sends the ARM command for the given area and ArmMode.
func (a areaCommands) Arm(ctx context.Context, index uint32, mode ArmMode) error {
	var subcmd uint8
	switch mode {
	case ArmForce:
		subcmd = subcmdArmForce
	case ArmStay:
		subcmd = subcmdArmStay
	case ArmInstant:
		subcmd = subcmdArmInstant
	default:
		subcmd = subcmdArmNormal
	}
	_, err := requireAck(a.s.call(ctx, cmdArea, subcmd, le32(index)))
	return err
}

// Disarm sends DISARM_AREA, or DISARM_ALL (the panel's 24-hour disarm
// variant) when disarm24hr is set.
func (a areaCommands) Disarm(ctx context.Context, index uint32, disarm24hr bool) error {
	subcmd := subcmdDisarmArea
	if disarm24hr {
		subcmd = subcmdDisarmAll
	}
	_, err := requireAck(a.s.call(ctx, cmdArea, subcmd, le32(index)))
	return err
}

// GetStatus requests REQUEST_AREA_STATUS.
func (a areaCommands) GetStatus(ctx context.Context, index uint32) (Area, bool, error) {
	v, ok, err := a.s.callStatus(ctx, cmdArea, subcmdRequestAreaStatus, index, tlvTypeAreaStatus)
	if !ok || err != nil {
		return Area{}, ok, err
	}
	return v.(Area), true, nil
}

// GetPanelDescription requests the panel's serial number and firmware
// identity (SYSTEM/PANEL_DESCRIPTION). Like the entity get_status
// commands, the answer arrives as a DATA push rather than inside the
// SYSTEM response, so this awaits the next DATA frame's raw payload
// directly instead of going through the typed entity waiter.
func (sc systemCommands) GetPanelDescription(ctx context.Context) (PanelDescriptor, error) {
	s := sc.s
	s.callMu.Lock()
	defer s.callMu.Unlock()

	if s.conn == nil {
		return PanelDescriptor{}, ErrClosed
	}
	if s.State() != Authenticated {
		return PanelDescriptor{}, ErrNotAuthenticated
	}
	s.drainStaleResponse()

	raw := s.disp.awaitRawData()
	defer s.disp.clearRawWait(raw)

	b := encodeFrame(packetTypeCommand, []byte{cmdSystem, subcmdPanelDesc}, s.cfg.checksumMode())
	if err := s.sendRaw(b, packetTypeCommand); err != nil {
		s.handleReaderError(err)
		return PanelDescriptor{}, ErrConnectionLost
	}

	timer := s.clock.NewTimer(callTimeout)
	defer timer.Stop()

	for {
		select {
		case payload := <-raw:
			records, err := decodeTLV(payload)
			if err != nil {
				return PanelDescriptor{}, err
			}
			return parsePanelDescriptor(records), nil
		case resp := <-s.responseCh:
			if kind, code := classifyAck(resp); kind == ackKindNack {
				return PanelDescriptor{}, &PanelError{Code: code}
			}
			continue
		case <-timer.Chan():
			return PanelDescriptor{}, ErrTimeout
		case <-s.lostCh:
			return PanelDescriptor{}, ErrConnectionLost
		case <-ctx.Done():
			return PanelDescriptor{}, ctx.Err()
		}
	}
}

// requireAck turns a raw response frame into an error unless it is a plain
// ACK: used by every command that only confirms success/failure, never
// carrying a value of its own.
func requireAck(resp frame, err error) (frame, error) {
	if err != nil {
		return resp, err
	}
	kind, code := classifyAck(resp)
	if kind == ackKindNack {
		return resp, &PanelError{Code: code}
	}
	return resp, nil
}
