package acs

import (
	"sync"

	"github.com/rs/xid"
	log "github.com/sirupsen/logrus"
)

// ListenerHandle identifies a registered listener for later removal. It is
// opaque and comparable.
type ListenerHandle struct {
	id xid.ID
}

// listenerQueueSize bounds the per-listener delivery queue. Once full, the
// dispatcher drops the oldest queued item to admit the newest one — a
// documented, observable policy (spec.md §4.5) rather than ever blocking
// the packet reader on a slow listener.
const listenerQueueSize = 64

type listenerEntry struct {
	handle ListenerHandle
	ch     chan any
	fn     func(any)
}

func newListenerEntry(fn func(any)) *listenerEntry {
	e := &listenerEntry{
		handle: ListenerHandle{id: xid.New()},
		ch:     make(chan any, listenerQueueSize),
		fn:     fn,
	}
	go e.run()
	return e
}

func (e *listenerEntry) run() {
	for v := range e.ch {
		e.fn(v)
	}
}

// deliver enqueues v for this listener, dropping the oldest queued item
// (not v itself) if the queue is already full. This keeps delivery roughly
// in order while guaranteeing the newest update is never the one silently
// lost.
func (e *listenerEntry) deliver(v any) {
	for {
		select {
		case e.ch <- v:
			return
		default:
		}
		select {
		case <-e.ch:
		default:
		}
	}
}

func (e *listenerEntry) close() {
	close(e.ch)
}

// dispatcher owns the entity caches, the listener lists and the bounded
// delivery queues fed from the packet reader. Every exported method that
// touches cache/listener state takes dispatcher.mu, held only briefly —
// per spec.md §5, mutation happens on the reader task and the lock exists
// only because Go's runtime is multi-threaded even for a single logical
// reader goroutine.
type dispatcher struct {
	mu sync.Mutex

	doors   map[uint32]Door
	inputs  map[uint32]Input
	outputs map[uint32]Output
	areas   map[uint32]Area

	doorListeners   []*listenerEntry
	inputListeners  []*listenerEntry
	outputListeners []*listenerEntry
	areaListeners   []*listenerEntry
	eventListeners  []*listenerEntry

	waiter  *statusWait
	rawWait chan []byte

	metrics *Metrics
}

// awaitRawData installs a one-shot slot for the next DATA frame's raw
// payload, regardless of which TLV types it carries. GetPanelDescription
// uses this instead of awaitStatus: a panel descriptor isn't one of the
// cached entity classes, so there's no per-type record to key off of —
// the next DATA frame after the request is assumed to be the answer, the
// same assumption the reference client makes.
func (d *dispatcher) awaitRawData() chan []byte {
	ch := make(chan []byte, 1)
	d.mu.Lock()
	d.rawWait = ch
	d.mu.Unlock()
	return ch
}

func (d *dispatcher) clearRawWait(ch chan []byte) {
	d.mu.Lock()
	if d.rawWait == ch {
		d.rawWait = nil
	}
	d.mu.Unlock()
}

// statusWait lets a pending get_status call claim the next DATA record of
// a given type and index as its own response, instead of only the generic
// cache update. The protocol answers a status request with a DATA push
// rather than a SYSTEM ACK carrying the payload, so the Multiplexer and
// the Dispatcher must meet here (spec.md §4.7). Only one call is ever in
// flight (the single in-flight command invariant), so a single slot
// suffices.
type statusWait struct {
	tlvType uint16
	index   uint32
	ch      chan any
}

// awaitStatus installs the wait slot for the duration of one get_status
// call. Callers must clearWait with the same pointer when done, successful
// or not.
func (d *dispatcher) awaitStatus(tlvType uint16, index uint32) *statusWait {
	w := &statusWait{tlvType: tlvType, index: index, ch: make(chan any, 1)}
	d.mu.Lock()
	d.waiter = w
	d.mu.Unlock()
	return w
}

func (d *dispatcher) clearWait(w *statusWait) {
	d.mu.Lock()
	if d.waiter == w {
		d.waiter = nil
	}
	d.mu.Unlock()
}

// satisfyWait delivers v to the pending waiter if its type and index match,
// non-blocking since the slot's channel is always empty when a call is the
// only one allowed in flight.
func (d *dispatcher) satisfyWait(tlvType uint16, index uint32, v any) {
	d.mu.Lock()
	w := d.waiter
	d.mu.Unlock()
	if w == nil || w.tlvType != tlvType || w.index != index {
		return
	}
	select {
	case w.ch <- v:
	default:
	}
}

func newDispatcher(m *Metrics) *dispatcher {
	return &dispatcher{
		doors:   make(map[uint32]Door),
		inputs:  make(map[uint32]Input),
		outputs: make(map[uint32]Output),
		areas:   make(map[uint32]Area),
		metrics: m,
	}
}

// handleData processes one DATA frame's TLV records: it updates caches and
// fans each recognized record out to the matching listener class. Parse
// errors inside a single record are logged and skipped — the rest of the
// frame, and the frame's ACK obligation, still go ahead (spec.md §7:
// "absence would stall the panel").
func (d *dispatcher) handleData(payload []byte) {
	d.mu.Lock()
	rawWait := d.rawWait
	d.mu.Unlock()
	if rawWait != nil {
		select {
		case rawWait <- payload:
		default:
		}
	}

	records, err := decodeTLV(payload)
	if err != nil {
		log.WithError(err).Warn("acs: truncated DATA payload, dropping frame")
		return
	}

	for _, r := range records {
		switch r.Type {
		case tlvTypeDoorStatus:
			door, err := parseDoorStatus(r.Value)
			if err != nil {
				log.WithError(err).Warn("acs: bad door status record")
				continue
			}
			d.mu.Lock()
			d.doors[door.Index] = door
			listeners := append([]*listenerEntry(nil), d.doorListeners...)
			d.mu.Unlock()
			d.satisfyWait(tlvTypeDoorStatus, door.Index, door)
			for _, l := range listeners {
				l.deliver(door)
			}

		case tlvTypeInputStatus:
			in, err := parseInputStatus(r.Value)
			if err != nil {
				log.WithError(err).Warn("acs: bad input status record")
				continue
			}
			d.mu.Lock()
			d.inputs[in.Index] = in
			listeners := append([]*listenerEntry(nil), d.inputListeners...)
			d.mu.Unlock()
			d.satisfyWait(tlvTypeInputStatus, in.Index, in)
			for _, l := range listeners {
				l.deliver(in)
			}

		case tlvTypeOutputStatus:
			out, err := parseOutputStatus(r.Value)
			if err != nil {
				log.WithError(err).Warn("acs: bad output status record")
				continue
			}
			d.mu.Lock()
			d.outputs[out.Index] = out
			listeners := append([]*listenerEntry(nil), d.outputListeners...)
			d.mu.Unlock()
			d.satisfyWait(tlvTypeOutputStatus, out.Index, out)
			for _, l := range listeners {
				l.deliver(out)
			}

		case tlvTypeAreaStatus:
			area, err := parseAreaStatus(r.Value)
			if err != nil {
				log.WithError(err).Warn("acs: bad area status record")
				continue
			}
			d.mu.Lock()
			d.areas[area.Index] = area
			listeners := append([]*listenerEntry(nil), d.areaListeners...)
			d.mu.Unlock()
			d.satisfyWait(tlvTypeAreaStatus, area.Index, area)
			for _, l := range listeners {
				l.deliver(area)
			}

		case tlvTypeEventReadable:
			text := trimNullTerminated(r.Value)
			d.mu.Lock()
			listeners := append([]*listenerEntry(nil), d.eventListeners...)
			d.mu.Unlock()
			for _, l := range listeners {
				l.deliver(text)
			}

		default:
			// Unknown record type: tolerated and skipped, per spec.md §4.2.
		}
	}
}

func trimNullTerminated(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// OnDoor registers fn to be invoked (on its own delivery goroutine, never
// inline on the packet reader) for every door status update. Registration
// is idempotent by identity of the returned handle, not of fn: calling
// OnDoor twice with the same closure registers two independent listeners.
func (d *dispatcher) OnDoor(fn func(Door)) ListenerHandle {
	e := newListenerEntry(func(v any) { fn(v.(Door)) })
	d.mu.Lock()
	d.doorListeners = append(d.doorListeners, e)
	d.mu.Unlock()
	return e.handle
}

func (d *dispatcher) OnInput(fn func(Input)) ListenerHandle {
	e := newListenerEntry(func(v any) { fn(v.(Input)) })
	d.mu.Lock()
	d.inputListeners = append(d.inputListeners, e)
	d.mu.Unlock()
	return e.handle
}

func (d *dispatcher) OnOutput(fn func(Output)) ListenerHandle {
	e := newListenerEntry(func(v any) { fn(v.(Output)) })
	d.mu.Lock()
	d.outputListeners = append(d.outputListeners, e)
	d.mu.Unlock()
	return e.handle
}

func (d *dispatcher) OnArea(fn func(Area)) ListenerHandle {
	e := newListenerEntry(func(v any) { fn(v.(Area)) })
	d.mu.Lock()
	d.areaListeners = append(d.areaListeners, e)
	d.mu.Unlock()
	return e.handle
}

func (d *dispatcher) OnEvent(fn func(string)) ListenerHandle {
	e := newListenerEntry(func(v any) { fn(v.(string)) })
	d.mu.Lock()
	d.eventListeners = append(d.eventListeners, e)
	d.mu.Unlock()
	return e.handle
}

// Remove deregisters a listener by the handle returned from its
// registration call. Removing an unknown handle is a no-op.
func (d *dispatcher) Remove(h ListenerHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.doorListeners = removeHandle(d.doorListeners, h)
	d.inputListeners = removeHandle(d.inputListeners, h)
	d.outputListeners = removeHandle(d.outputListeners, h)
	d.areaListeners = removeHandle(d.areaListeners, h)
	d.eventListeners = removeHandle(d.eventListeners, h)
}

func removeHandle(list []*listenerEntry, h ListenerHandle) []*listenerEntry {
	for i, e := range list {
		if e.handle == h {
			e.close()
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}

func (d *dispatcher) Door(index uint32) (Door, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.doors[index]
	return v, ok
}

func (d *dispatcher) Input(index uint32) (Input, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.inputs[index]
	return v, ok
}

func (d *dispatcher) Output(index uint32) (Output, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.outputs[index]
	return v, ok
}

func (d *dispatcher) Area(index uint32) (Area, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.areas[index]
	return v, ok
}

func (d *dispatcher) Doors() map[uint32]Door     { return snapshotDoors(d) }
func (d *dispatcher) Inputs() map[uint32]Input   { return snapshotInputs(d) }
func (d *dispatcher) Outputs() map[uint32]Output { return snapshotOutputs(d) }
func (d *dispatcher) Areas() map[uint32]Area     { return snapshotAreas(d) }

func snapshotDoors(d *dispatcher) map[uint32]Door {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[uint32]Door, len(d.doors))
	for k, v := range d.doors {
		out[k] = v
	}
	return out
}

func snapshotInputs(d *dispatcher) map[uint32]Input {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[uint32]Input, len(d.inputs))
	for k, v := range d.inputs {
		out[k] = v
	}
	return out
}

func snapshotOutputs(d *dispatcher) map[uint32]Output {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[uint32]Output, len(d.outputs))
	for k, v := range d.outputs {
		out[k] = v
	}
	return out
}

func snapshotAreas(d *dispatcher) map[uint32]Area {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[uint32]Area, len(d.areas))
	for k, v := range d.areas {
		out[k] = v
	}
	return out
}
