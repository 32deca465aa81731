// Package bridge wires MIDI input, the mapping table and the OSC client
// and listener into one engine.
package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/PixPMusic/gopher-osc/internal/capture"
	"github.com/PixPMusic/gopher-osc/internal/mapping"
	"github.com/PixPMusic/gopher-osc/internal/midi"
	"github.com/PixPMusic/gopher-osc/internal/monitor"
	"github.com/PixPMusic/gopher-osc/internal/osc"
	"github.com/PixPMusic/gopher-osc/internal/preset"
)

// Options configures a new engine. Zero values use defaults.
type Options struct {
	PollInterval time.Duration
	FeedLimit    int

	// MIDIListen opens MIDI ports; nil uses the registered gomidi driver
	MIDIListen midi.ListenFunc

	// Chooser picks the destination of captured controls
	Chooser capture.Chooser
}

// Engine is the single bridge instance shared by every UI adapter
type Engine struct {
	store      *mapping.Store
	capture    *capture.Controller
	midi       *midi.Manager
	client     *osc.Client
	listener   *osc.Listener
	dispatcher *Dispatcher
	presets    *preset.Service
	midiFeed   *monitor.Feed
	oscFeed    *monitor.Feed

	pollInterval time.Duration
}

// New builds an engine. Nothing is opened until OpenDevice, Connect or
// Listen is called.
func New(opts Options) *Engine {
	if opts.PollInterval <= 0 {
		opts.PollInterval = midi.DefaultPollInterval
	}

	e := &Engine{
		store:        mapping.NewStore(),
		client:       osc.NewClient(),
		listener:     osc.NewListener(),
		midiFeed:     monitor.NewFeed(opts.FeedLimit),
		oscFeed:      monitor.NewFeed(opts.FeedLimit),
		pollInterval: opts.PollInterval,
	}

	if opts.MIDIListen != nil {
		e.midi = midi.NewManagerWithListener(opts.MIDIListen)
	} else {
		e.midi = midi.NewManager()
	}

	e.capture = capture.NewController(e.store, opts.Chooser)
	e.dispatcher = NewDispatcher(e.store, e.client, e.midiFeed)
	e.presets = preset.NewService(e.store, e.client)

	e.midi.OnControlChange(e.handleControlChange)
	e.listener.OnMessage(func(address string, args []interface{}) {
		e.oscFeed.Append(fmt.Sprintf("%s: %v", address, args))
	})
	return e
}

// handleControlChange runs capture before dispatch so a mapping learned
// from this event also fires for it.
func (e *Engine) handleControlChange(ev midi.Event) {
	cc, value := int(ev.Controller), int(ev.Value)
	e.capture.OnControlChange(cc)
	e.dispatcher.OnControlChange(cc, value)
}

// Devices lists the available MIDI inputs
func (e *Engine) Devices() []string {
	return e.midi.ListInPorts()
}

// OpenDevice makes name the active MIDI input
func (e *Engine) OpenDevice(name string) error {
	return e.midi.Open(name)
}

// Device returns the active MIDI input, or ""
func (e *Engine) Device() string {
	return e.midi.PortName()
}

// Poll drains pending MIDI input once
func (e *Engine) Poll() int {
	return e.midi.Poll()
}

// Connect points the OSC client at the mixer
func (e *Engine) Connect(ip string, port int) error {
	return e.client.Connect(ip, port)
}

// Target returns the mixer address
func (e *Engine) Target() osc.ConnectionConfig {
	return e.client.Target()
}

// Connected reports whether the OSC client has a socket
func (e *Engine) Connected() bool {
	return e.client.Connected()
}

// Listen (re)starts the OSC listener on port
func (e *Engine) Listen(port int) error {
	return e.listener.Listen(port)
}

// ListenPort returns the listener's port, or 0 when stopped
func (e *Engine) ListenPort() int {
	return e.listener.Port()
}

// ToggleCapture arms or disarms learning and reports the new state
func (e *Engine) ToggleCapture() bool {
	return e.capture.Toggle()
}

// Capturing reports whether the next CC will be learned
func (e *Engine) Capturing() bool {
	return e.capture.State() == capture.Armed
}

// SetChooser sets how captured controls get their destination
func (e *Engine) SetChooser(c capture.Chooser) {
	e.capture.SetChooser(c)
}

// Store returns the live mapping table
func (e *Engine) Store() *mapping.Store {
	return e.store
}

// MIDIFeed returns the raw control change feed
func (e *Engine) MIDIFeed() *monitor.Feed {
	return e.midiFeed
}

// OSCFeed returns the inbound OSC feed
func (e *Engine) OSCFeed() *monitor.Feed {
	return e.oscFeed
}

// SavePreset writes the table and target to path
func (e *Engine) SavePreset(path string) error {
	return e.presets.Save(path)
}

// LoadPreset replaces the table and target from path and reconnects
func (e *Engine) LoadPreset(path string) (preset.Preset, error) {
	return e.presets.Load(path)
}

// Run polls MIDI input until ctx is done
func (e *Engine) Run(ctx context.Context) error {
	return e.midi.Run(ctx, e.pollInterval)
}

// Close releases the MIDI input and both sockets
func (e *Engine) Close() {
	e.midi.Close()
	e.listener.Stop()
	_ = e.client.Close()
}
