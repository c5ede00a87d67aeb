package acs

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

// fakePanel drives the server side of a net.Pipe as a scripted Protege
// panel: it decodes COMMAND frames the Session sends and lets the test
// script arbitrary SYSTEM/DATA replies, mirroring how the reference
// client's own test fixtures would stand in for real hardware.
type fakePanel struct {
	conn net.Conn
	r    *bufio.Reader
}

func newFakePanel(conn net.Conn) *fakePanel {
	return &fakePanel{conn: conn, r: bufio.NewReader(conn)}
}

func (p *fakePanel) recv(t *testing.T) frame {
	t.Helper()
	fr, err := decodeFrame(p.r, ChecksumSum8)
	require.NoError(t, err)
	return fr
}

func (p *fakePanel) send(t *testing.T, packetType uint8, payload []byte) {
	t.Helper()
	_, err := p.conn.Write(encodeFrame(packetType, payload, ChecksumSum8))
	require.NoError(t, err)
}

func (p *fakePanel) sendAck(t *testing.T) {
	p.send(t, packetTypeSystem, []byte{ackByte, ackOK})
}

func (p *fakePanel) sendNack(t *testing.T, code uint16) {
	p.send(t, packetTypeSystem, []byte{ackByte, nackByte, byte(code), byte(code >> 8)})
}

// newTestSession wires a Session directly to the client half of a
// net.Pipe, bypassing Connect's real dial — the approach this core's test
// suite uses throughout to exercise the packet reader and multiplexer
// without a real socket.
func newTestSession(t *testing.T, clock clockwork.Clock) (*Session, *fakePanel) {
	t.Helper()
	client, panelConn := net.Pipe()

	s := New(Config{Host: "panel.test", Port: 4001, Clock: clock})
	s.conn = client
	s.reader = bufio.NewReader(client)
	s.bgCtx, s.bgCancel = context.WithCancel(context.Background())
	s.setState(Connected)

	s.bgWG.Add(1)
	go s.readLoop(s.bgCtx)

	t.Cleanup(func() {
		s.bgCancel()
		client.Close()
		panelConn.Close()
	})

	return s, newFakePanel(panelConn)
}

func TestLoginSuccessAndKeepalive(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s, panel := newTestSession(t, clock)

	done := make(chan struct{})
	go func() {
		defer close(done)
		fr := panel.recv(t)
		require.Equal(t, packetTypeCommand, fr.Type)
		require.Equal(t, []byte{cmdSystem, subcmdLogin, 1, 2, 3, 4, 0xFF}, fr.Payload)
		panel.sendAck(t)

		fr = panel.recv(t) // SET_LOGIN_TIME
		require.Equal(t, uint8(subcmdSetLoginTime), fr.Payload[1])
		panel.sendAck(t)

		fr = panel.recv(t) // ACK_CONFIG
		require.Equal(t, uint8(subcmdAckConfig), fr.Payload[1])
		panel.sendAck(t)
	}()

	err := s.Login(context.Background(), "1234")
	require.NoError(t, err)
	require.Equal(t, Authenticated, s.State())
	<-done

	keepaliveDone := make(chan struct{})
	go func() {
		defer close(keepaliveDone)
		fr := panel.recv(t)
		require.Equal(t, packetTypeCommand, fr.Type)
		require.Equal(t, []byte{cmdSystem, subcmdAreYouThere}, fr.Payload)
	}()
	clock.BlockUntil(1)
	clock.Advance(keepaliveInterval)
	<-keepaliveDone
}

// TestLoginWireBytesMatchScenarioS1 pins the login COMMAND frame's packet
// type and payload to the literal bytes the source spec's S1 scenario
// gives, rather than the symbolic constants — catching a wrong numeric assignment that a
// symbol-only assertion would miss.
func TestLoginWireBytesMatchScenarioS1(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s, panel := newTestSession(t, clock)

	done := make(chan struct{})
	go func() {
		defer close(done)
		fr := panel.recv(t)
		require.Equal(t, uint8(0x00), fr.Type) // COMMAND
		require.Equal(t, []byte{0xC0, 0x02, 0x01, 0x02, 0x03, 0x04, 0xFF}, fr.Payload)
		panel.send(t, 0xC0, []byte{0xFF, 0x00}) // SYSTEM ACK

		panel.recv(t) // SET_LOGIN_TIME
		panel.sendAck(t)
		panel.recv(t) // ACK_CONFIG
		panel.sendAck(t)
	}()

	require.NoError(t, s.Login(context.Background(), "1234"))
	<-done
}

func TestLoginAuthenticationFailed(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s, panel := newTestSession(t, clock)

	go func() {
		panel.recv(t)
		panel.sendNack(t, ErrCodeInvalidUser)
	}()

	err := s.Login(context.Background(), "0000")
	var authErr *AuthenticationFailed
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, Connected, s.State())
}

func TestDataPushUpdatesCacheAndSendsExactlyOneAck(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s, panel := newTestSession(t, clock)

	doorCh := make(chan Door, 1)
	s.OnDoor(func(d Door) { doorCh <- d })

	ackDone := make(chan struct{})
	go func() {
		defer close(ackDone)
		fr := panel.recv(t)
		require.Equal(t, packetTypeSystem, fr.Type)
		require.Equal(t, []byte{ackByte, ackOK}, fr.Payload)
	}()

	payload := encodeTLV([]tlvRecord{
		{Type: tlvTypeDoorStatus, Value: []byte{3, 0, 0, 0, doorLocked, doorStateClosed, 0, 0}},
	})
	panel.send(t, packetTypeData, payload)

	select {
	case d := <-doorCh:
		require.Equal(t, uint32(3), d.Index)
		require.True(t, d.IsLocked)
	case <-time.After(time.Second):
		t.Fatal("door listener was never invoked")
	}
	<-ackDone

	door, ok := s.disp.Door(3)
	require.True(t, ok)
	require.True(t, door.IsLocked)
}

func TestGetDoorStatusIndexNotValidReturnsNotFound(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s, panel := newTestSession(t, clock)
	s.setState(Authenticated)

	go func() {
		fr := panel.recv(t)
		require.Equal(t, []byte{cmdDoor, subcmdRequestDoorStatus, 0xE7, 0x03, 0x00, 0x00}, fr.Payload)
		panel.sendNack(t, ErrCodeIndexNotValid)
	}()

	door, ok, err := s.Door().GetStatus(context.Background(), 999)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, Door{}, door)
}

func TestGetDoorStatusSuccessViaDataPush(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s, panel := newTestSession(t, clock)
	s.setState(Authenticated)

	go func() {
		panel.recv(t)
		payload := encodeTLV([]tlvRecord{
			{Type: tlvTypeDoorStatus, Value: []byte{5, 0, 0, 0, doorLocked, doorStateClosed, 0, 0}},
		})
		panel.send(t, packetTypeData, payload)
		panel.recv(t) // the client's mandatory ACK for the DATA frame
	}()

	door, ok, err := s.Door().GetStatus(context.Background(), 5)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(5), door.Index)
	require.True(t, door.IsLocked)
}

func TestConcurrentCallsSerialize(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s, panel := newTestSession(t, clock)
	s.setState(Authenticated)

	received := make(chan struct{}, 2)
	go func() {
		for i := 0; i < 2; i++ {
			panel.recv(t)
			received <- struct{}{}
			panel.sendAck(t)
		}
	}()

	errs := make(chan error, 2)
	go func() { errs <- s.Door().Lock(context.Background(), 1) }()
	go func() { errs <- s.Door().Lock(context.Background(), 2) }()

	for i := 0; i < 2; i++ {
		require.NoError(t, <-errs)
	}
	require.Len(t, received, 2)
}

func TestLoginRejectsPinWithNoDigits(t *testing.T) {
	s, _ := newTestSession(t, clockwork.NewFakeClock())
	err := s.Login(context.Background(), "----")
	require.Error(t, err)
	require.Equal(t, Connected, s.State())
}

func TestLoginTruncatesPinToSixDigits(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s, panel := newTestSession(t, clock)

	go func() {
		fr := panel.recv(t)
		require.Equal(t, []byte{cmdSystem, subcmdLogin, 1, 2, 3, 4, 5, 6, 0xFF}, fr.Payload)
		panel.sendAck(t)
		panel.recv(t)
		panel.sendAck(t)
		panel.recv(t)
		panel.sendAck(t)
	}()

	require.NoError(t, s.Login(context.Background(), "1-2-3-4-5-6-7-8"))
}

func TestDisconnectClosesSocketAndWakesPendingCalls(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s, panel := newTestSession(t, clock)
	s.setState(Authenticated)
	_ = panel

	errCh := make(chan error, 1)
	go func() { errCh <- s.Door().Lock(context.Background(), 1) }()

	// Give the call a moment to register before tearing down.
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, s.Disconnect(context.Background()))
	require.ErrorIs(t, <-errCh, ErrConnectionLost)
	require.Equal(t, Disconnected, s.State())
}

func TestCommandBeforeLoginReturnsNotAuthenticated(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s, _ := newTestSession(t, clock)
	require.Equal(t, Connected, s.State()) // connected, not yet logged in

	err := s.Door().Lock(context.Background(), 1)
	require.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestGetStatusBeforeLoginReturnsNotAuthenticated(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s, _ := newTestSession(t, clock)

	_, ok, err := s.Door().GetStatus(context.Background(), 1)
	require.False(t, ok)
	require.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestGetPanelDescriptionBeforeLoginReturnsNotAuthenticated(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s, _ := newTestSession(t, clock)

	_, err := s.System().GetPanelDescription(context.Background())
	require.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestGetPanelDescription(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s, panel := newTestSession(t, clock)
	s.setState(Authenticated)

	go func() {
		fr := panel.recv(t)
		require.Equal(t, []byte{cmdSystem, subcmdPanelDesc}, fr.Payload)
		payload := encodeTLV([]tlvRecord{
			{Type: tlvTypePanelSerial, Value: []byte{0x01, 0x00, 0x00, 0x00}},
			{Type: tlvTypeFirmwareType, Value: []byte("WX")},
		})
		panel.send(t, packetTypeData, payload)
		panel.recv(t) // mandatory ACK for the DATA frame
	}()

	desc, err := s.System().GetPanelDescription(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint32(1), desc.Serial)
	require.Equal(t, "WX", desc.FirmwareType)
}

func TestCallTimeout(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s, panel := newTestSession(t, clock)
	s.setState(Authenticated)
	_ = panel // the panel intentionally never replies

	recvDone := make(chan struct{})
	go func() {
		defer close(recvDone)
		panel.recv(t)
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- s.Door().Lock(context.Background(), 1) }()

	<-recvDone
	clock.BlockUntil(1)
	clock.Advance(callTimeout)

	require.ErrorIs(t, <-errCh, ErrTimeout)
}
