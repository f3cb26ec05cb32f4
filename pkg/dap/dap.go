// Package dap bridges debug-adapter-protocol conversations between the
// editor and the runtime's debugger. One base adapter exists per connected
// runtime; every actual debug stop spawns a nested adapter. All adapters
// share the notifier conversation, distinguished by a per-adapter numeric
// tag.
package dap

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/replkit/replkit/pkg/notify"
	"github.com/replkit/replkit/pkg/session"
)

// lifecycleEvents are the events the base adapter relays unconditionally,
// before and between debug stops.
var lifecycleEvents = map[string]bool{
	"initialized": true,
	"exited":      true,
	"terminated":  true,
}

// Sink receives the protocol traffic an adapter relays toward the editor.
type Sink interface {
	HandleResponse(payload json.RawMessage)
	HandleEvent(payload json.RawMessage)
}

// Spec configures a Bridge.
type Spec struct {
	Session *session.Session
	// AutoStart starts the base adapter as soon as the runtime connects.
	// When false, the base adapter must be started explicitly.
	AutoStart bool
	// NewSink builds the editor-side sink for each adapter as it is created,
	// receiving the adapter so the editor can send requests through it.
	NewSink func(a *Adapter) Sink

	Logger *zap.Logger
}

// Bridge multiplexes adapters over the shared notifier conversation.
// Responses are matched to adapters purely by tag; a response whose tag
// matches no live adapter is discarded.
type Bridge struct {
	sess    *session.Session
	newSink func(a *Adapter) Sink
	auto    bool
	logger  *zap.Logger

	mu       sync.Mutex
	nextTag  int
	base     *Adapter
	adapters map[int]*Adapter

	subs []notify.Subscription
}

// NewBridge returns a Bridge listening for adaptor responses, adaptor events
// and debug-state changes.
func NewBridge(spec Spec) *Bridge {
	logger := spec.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bridge{
		sess:     spec.Session,
		newSink:  spec.NewSink,
		auto:     spec.AutoStart,
		logger:   logger,
		adapters: make(map[int]*Adapter),
	}
	n := spec.Session.Notifier()
	b.subs = []notify.Subscription{
		n.Subscribe(notify.DebugAdaptorRespChan, b.onResponse),
		n.Subscribe(notify.DebugAdaptorEventChan, b.onEvent),
		spec.Session.Watch(b.onSessionEvent),
	}
	return b
}

// Close detaches the bridge and drops all adapters.
func (b *Bridge) Close() {
	for _, s := range b.subs {
		s.Close()
	}
	b.subs = nil
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dropAllLocked()
}

// Base returns the base adapter, starting it on first use.
func (b *Bridge) Base() *Adapter {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.baseLocked()
}

func (b *Bridge) baseLocked() *Adapter {
	if b.base == nil {
		b.base = b.spawnLocked(false)
	}
	return b.base
}

// Adapters returns the number of live adapters, the base included.
func (b *Bridge) Adapters() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.adapters)
}

func (b *Bridge) spawnLocked(nested bool) *Adapter {
	b.nextTag++
	a := &Adapter{bridge: b, tag: b.nextTag, nested: nested}
	if b.newSink != nil {
		a.sink = b.newSink(a)
	}
	b.adapters[a.tag] = a
	return a
}

func (b *Bridge) dropAllLocked() {
	b.base = nil
	b.adapters = make(map[int]*Adapter)
}

func (b *Bridge) onSessionEvent(e session.Event) {
	switch e := e.(type) {
	case session.StateChanged:
		if e.New == session.Disconnected {
			b.mu.Lock()
			b.dropAllLocked()
			b.mu.Unlock()
		} else if e.Old == session.Disconnected && b.auto {
			b.Base()
		}
	case session.DebugMode:
		if e.Debugging {
			b.mu.Lock()
			if b.auto {
				b.baseLocked()
			}
			if b.base != nil {
				b.spawnLocked(true)
			}
			b.mu.Unlock()
		} else {
			b.mu.Lock()
			for tag, a := range b.adapters {
				if a.nested {
					delete(b.adapters, tag)
				}
			}
			b.mu.Unlock()
		}
	}
}

// onResponse delivers a response to the adapter whose tag it carries.
// Mismatched tags are discarded; that covers responses to an adapter that
// was dropped as well as cross-adapter confusion.
func (b *Bridge) onResponse(m notify.Message) {
	resp, ok := m.(notify.DebugAdaptorResponse)
	if !ok {
		return
	}
	b.mu.Lock()
	a := b.adapters[resp.Tag]
	b.mu.Unlock()
	if a == nil {
		b.logger.Debug("adaptor response with no live adapter", zap.Int("tag", resp.Tag))
		return
	}
	if a.sink != nil {
		a.sink.HandleResponse(resp.Payload)
	}
}

// onEvent fans an untagged event out to the adapters allowed to relay it:
// the base adapter relays lifecycle events unconditionally; any adapter
// relays once its own initialize request has been dispatched.
func (b *Bridge) onEvent(m notify.Message) {
	ev, ok := m.(notify.DebugAdaptorEvent)
	if !ok {
		return
	}
	var head struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(ev.Payload, &head); err != nil {
		b.logger.Debug("malformed adaptor event", zap.Error(err))
		return
	}
	lifecycle := lifecycleEvents[head.Event]

	b.mu.Lock()
	targets := make([]*Adapter, 0, len(b.adapters))
	for _, a := range b.adapters {
		if a.sink == nil {
			continue
		}
		if (lifecycle && !a.nested) || a.started {
			targets = append(targets, a)
		}
	}
	b.mu.Unlock()
	for _, a := range targets {
		a.sink.HandleEvent(ev.Payload)
	}
}

// Adapter is one debug-adapter conversation, base or nested.
type Adapter struct {
	bridge *Bridge
	tag    int
	nested bool
	// started is set once this adapter has dispatched its initialize
	// request; events are withheld from a nested adapter before that.
	// Guarded by the bridge mutex.
	started bool
	sink    Sink
}

// Tag returns the adapter's numeric identity on the shared conversation.
func (a *Adapter) Tag() int { return a.tag }

// Nested reports whether this adapter serves a single debug stop.
func (a *Adapter) Nested() bool { return a.nested }

// Started reports whether the adapter has dispatched its initialize request.
func (a *Adapter) Started() bool {
	a.bridge.mu.Lock()
	defer a.bridge.mu.Unlock()
	return a.started
}

// Send forwards a protocol request to the runtime debugger, tagged with this
// adapter's identity. Dispatching an initialize request opens the adapter's
// event relay.
func (a *Adapter) Send(payload json.RawMessage) error {
	var head struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(payload, &head); err == nil && head.Command == "initialize" {
		a.bridge.mu.Lock()
		a.started = true
		a.bridge.mu.Unlock()
	}
	return a.bridge.sess.Notifier().Send(notify.DebugAdaptorRequest{
		Tag:     a.tag,
		Payload: payload,
	})
}
