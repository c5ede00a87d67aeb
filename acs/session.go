package acs

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

// Config is the construction object for a Session: everything needed to
// reach and authenticate against one panel.
type Config struct {
	Host string
	Port int
	PIN  string

	// ChecksumMode overrides the wire checksum; the zero value resolves to
	// ChecksumSum8, the default mode for this core (spec.md §4.1).
	ChecksumMode ChecksumMode

	// Clock overrides the source of time for timeouts and keepalive
	// scheduling. Tests inject a clockwork.FakeClock; production code
	// leaves this nil and gets clockwork.NewRealClock().
	Clock clockwork.Clock
}

func (c Config) checksumMode() ChecksumMode {
	if c.ChecksumMode == ChecksumNone {
		return ChecksumSum8
	}
	return c.ChecksumMode
}

const (
	connectTimeout     = 10 * time.Second
	areYouThereTimeout = 3 * time.Second
	callTimeout        = 5 * time.Second
	loginTimeSeconds   = 600
	keepaliveInterval  = 30 * time.Second
)

// Session is a single long-lived connection to one Protege panel. It owns
// the TCP socket, the entity caches, listener registrations and every
// background task (packet reader, keepalive, reconnect supervisor) for the
// life of the connection. A Session is not reused across panels; construct
// a new one per panel.
type Session struct {
	cfg   Config
	clock clockwork.Clock

	stateMu sync.Mutex
	state   State

	conn   net.Conn
	reader *bufio.Reader

	writeMu sync.Mutex // send gate shared by the multiplexer, ACKs and keepalive
	callMu  sync.Mutex // single in-flight command gate

	responseCh chan frame
	lostCh     chan struct{}
	lostOnce   sync.Once
	lastErr    error

	disp    *dispatcher
	metrics *Metrics

	bgWG     sync.WaitGroup
	bgCtx    context.Context
	bgCancel context.CancelFunc

	closeOnce sync.Once
}

// New constructs a Session attached to no socket yet; call Connect to dial.
func New(cfg Config) *Session {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	m := newMetrics()
	s := &Session{
		cfg:        cfg,
		clock:      clock,
		responseCh: make(chan frame, 1),
		lostCh:     make(chan struct{}),
		disp:       newDispatcher(m),
		metrics:    m,
	}
	s.setState(Disconnected)
	return s
}

func (s *Session) setState(st State) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
	s.metrics.setState(st)
}

// State returns the session's current state.
func (s *Session) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// IsConnected is true iff the TCP socket is up AND the session is
// Authenticated, per spec.md §6.
func (s *Session) IsConnected() bool {
	return s.State() == Authenticated
}

// Metrics returns the session's prometheus collectors, for callers that
// want to register them on their own registry.
func (s *Session) Metrics() *Metrics { return s.metrics }

// Err returns the error that caused the session to transition to Lost, or
// nil if the session was never lost.
func (s *Session) Err() error {
	select {
	case <-s.lostCh:
		return s.lastErr
	default:
		return nil
	}
}

// Doors, Inputs, Outputs, Areas are read-only snapshots of the entity
// caches, per spec.md §6.
func (s *Session) Doors() map[uint32]Door     { return s.disp.Doors() }
func (s *Session) Inputs() map[uint32]Input   { return s.disp.Inputs() }
func (s *Session) Outputs() map[uint32]Output { return s.disp.Outputs() }
func (s *Session) Areas() map[uint32]Area     { return s.disp.Areas() }

// OnDoor, OnInput, OnOutput, OnArea, OnEvent register listeners for the
// matching entity class or, for OnEvent, for human-readable event text.
// Each returns a ListenerHandle usable with RemoveListener.
func (s *Session) OnDoor(fn func(Door)) ListenerHandle     { return s.disp.OnDoor(fn) }
func (s *Session) OnInput(fn func(Input)) ListenerHandle   { return s.disp.OnInput(fn) }
func (s *Session) OnOutput(fn func(Output)) ListenerHandle { return s.disp.OnOutput(fn) }
func (s *Session) OnArea(fn func(Area)) ListenerHandle     { return s.disp.OnArea(fn) }
func (s *Session) OnEvent(fn func(string)) ListenerHandle  { return s.disp.OnEvent(fn) }

// RemoveListener deregisters a previously registered listener. A handle
// from an already-removed or never-registered listener is a no-op.
func (s *Session) RemoveListener(h ListenerHandle) { s.disp.Remove(h) }

// Connect opens the TCP socket, starts the packet reader, and probes the
// panel with an "are you there" SYSTEM command (absence of a response is
// logged, not fatal — spec.md §4.6).
func (s *Session) Connect(ctx context.Context) error {
	if s.State() != Disconnected {
		return ErrAlreadyConnected
	}
	s.setState(Connecting)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	dialer := net.Dialer{Timeout: connectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		s.setState(Disconnected)
		return &ConnectFailedError{Err: err}
	}

	s.conn = conn
	s.reader = bufio.NewReader(conn)
	s.lostCh = make(chan struct{})
	s.lostOnce = sync.Once{}
	s.closeOnce = sync.Once{}
	s.responseCh = make(chan frame, 1)

	bgCtx, cancel := context.WithCancel(context.Background())
	s.bgCtx = bgCtx
	s.bgCancel = cancel

	s.setState(Connected)

	s.bgWG.Add(1)
	go s.readLoop(bgCtx)

	log.Infof("acs: connected to %s", addr)

	probeCtx, probeCancel := context.WithTimeout(ctx, areYouThereTimeout)
	defer probeCancel()
	if _, err := s.call(probeCtx, cmdSystem, subcmdAreYouThere, nil); err != nil {
		log.WithError(err).Warn("acs: no response to are-you-there, continuing")
	} else {
		log.Debug("acs: panel responded to are-you-there")
	}

	return nil
}

// Login extracts up to 6 ASCII digits from pin, appends the terminator
// byte, and issues SYSTEM/LOGIN. On success it configures the login
// timeout and full acknowledgment mode, and starts the keepalive task.
func (s *Session) Login(ctx context.Context, pin string) error {
	if s.State() != Connected {
		return fmt.Errorf("acs: login requires Connected state, have %s", s.State())
	}

	var digits []byte
	for _, r := range pin {
		if r >= '0' && r <= '9' {
			digits = append(digits, byte(r-'0'))
			if len(digits) == 6 {
				break
			}
		}
	}
	if len(digits) == 0 {
		return fmt.Errorf("acs: pin must contain at least one digit")
	}

	s.setState(LoggingIn)

	params := append(append([]byte{}, digits...), 0xFF)
	resp, err := s.call(ctx, cmdSystem, subcmdLogin, params)
	if err != nil {
		s.setState(Connected)
		return err
	}

	if ackKind, code := classifyAck(resp); ackKind == ackKindNack {
		s.setState(Connected)
		if isAuthError(code) {
			return &AuthenticationFailed{Code: code}
		}
		return &PanelError{Code: code}
	}

	s.setState(Authenticated)
	log.Info("acs: authenticated")

	if _, err := s.call(ctx, cmdSystem, subcmdSetLoginTime, le16(loginTimeSeconds)); err != nil {
		log.WithError(err).Warn("acs: set-login-time failed")
	}
	if _, err := s.call(ctx, cmdSystem, subcmdAckConfig, ackConfigFullPayload); err != nil {
		log.WithError(err).Warn("acs: ack-config failed")
	}

	s.bgWG.Add(1)
	go s.keepaliveLoop(s.bgCtx)

	return nil
}

// StartEvents requests human-readable event notifications (spec.md §4.6).
func (s *Session) StartEvents(ctx context.Context) error {
	_, err := s.call(ctx, cmdSystem, subcmdRequestEvents, []byte{0x01, 0x01})
	return err
}

// Monitor subscribes (enable=true) or unsubscribes (enable=false) to
// status pushes for one entity.
func (s *Session) Monitor(ctx context.Context, kind MonitorKind, index uint32, enable bool, forceUpdate bool) error {
	var flags uint8
	if enable {
		flags |= 0x01
	}
	if forceUpdate {
		flags |= 0x02
	}
	params := make([]byte, 0, 7)
	params = append(params, le16(uint16(kind))...)
	params = append(params, le32(index)...)
	params = append(params, flags)
	_, err := s.call(ctx, cmdSystem, subcmdRequestMonitor, params)
	return err
}

// Logout issues SYSTEM/LOGOUT best-effort; errors are logged, not
// returned, matching spec.md §4.6's "best-effort logout".
func (s *Session) Logout(ctx context.Context) {
	if s.State() != Authenticated {
		return
	}
	if _, err := s.call(ctx, cmdSystem, subcmdLogout, nil); err != nil {
		log.WithError(err).Warn("acs: logout failed")
	}
}

// Disconnect cancels background tasks in reverse-start order, sends
// logout if authenticated, closes the socket, and drains any pending
// response with ErrConnectionLost — spec.md §3's shutdown lifecycle.
func (s *Session) Disconnect(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		// Best-effort logout: skipped, not blocked on, if a call is already
		// in flight — that caller will be woken with ErrConnectionLost once
		// markLost below runs, rather than this goroutine waiting behind it.
		if s.callMu.TryLock() {
			s.callMu.Unlock()
			s.Logout(ctx)
		}

		s.setState(Disconnecting)

		if s.bgCancel != nil {
			s.bgCancel()
		}
		s.markLost(ErrClosed)

		// readLoop is almost certainly blocked in a socket read, which
		// ctx cancellation alone can't interrupt — closing the conn is
		// what unblocks it so bgWG.Wait() below can return.
		if s.conn != nil {
			err = s.conn.Close()
		}
		s.bgWG.Wait()
		s.callMu.Lock()
		s.conn = nil
		s.callMu.Unlock()
		s.setState(Disconnected)
	})
	return err
}

func (s *Session) markLost(cause error) {
	s.lostOnce.Do(func() {
		s.lastErr = cause
		close(s.lostCh)
	})
}

// backoffReconnector drives a supervised reconnect+login loop: Session
// Manager responsibility "reconnect policy" (spec.md §2 item 6). Multi-
// panel failover is explicitly out of scope; this only re-establishes the
// same Session against the same panel after a transient loss.
func (s *Session) backoffReconnector(ctx context.Context, pin string, onReady func(*Session)) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 60 * time.Second
	b.MaxElapsedTime = 0 // retry until ctx is cancelled

	return backoff.Retry(func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if err := s.Connect(ctx); err != nil {
			return err
		}
		if err := s.Login(ctx, pin); err != nil {
			_ = s.Disconnect(ctx)
			return err
		}
		s.metrics.Reconnects.Inc()
		if onReady != nil {
			onReady(s)
		}
		return nil
	}, backoff.WithContext(b, ctx))
}

// Supervise runs backoffReconnector once, then watches for connection loss
// and reconnects automatically until ctx is cancelled. It returns when ctx
// is done or a permanent (non-retryable) error occurs.
func (s *Session) Supervise(ctx context.Context, pin string, onReady func(*Session)) error {
	for {
		if err := s.backoffReconnector(ctx, pin, onReady); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			_ = s.Disconnect(context.Background())
			return ctx.Err()
		case <-s.lostCh:
			log.Warn("acs: connection lost, reconnecting")
			s.resetForReconnect()
		}
	}
}

// resetForReconnect prepares the Session to run backoffReconnector again
// after a loss: it closes the previous socket so a packet reader still
// blocked in a read returns (keepaliveLoop already exits on lostCh close),
// waits for both background tasks to stop, and resets the one-shot
// synchronization primitives.
func (s *Session) resetForReconnect() {
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.bgWG.Wait()
	s.closeOnce = sync.Once{}
	s.lostOnce = sync.Once{}
	s.setState(Disconnected)
}

func le16(v uint16) []byte { return []byte{byte(v), byte(v >> 8)} }
func le32(v uint32) []byte { return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)} }
