package midi

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// DefaultPollInterval is how often Run drains the input queue
const DefaultPollInterval = 10 * time.Millisecond

// ErrOpen is returned when an input port cannot be opened
var ErrOpen = errors.New("midi input unavailable")

// Event is a control change received from the active input
type Event struct {
	Channel    uint8
	Controller uint8
	Value      uint8
}

// EventHandler is called for every control change, in arrival order
type EventHandler func(ev Event)

// ListenFunc starts delivering raw messages from the named input port and
// returns a function that stops delivery and releases the port.
type ListenFunc func(portName string, recv func(msg midi.Message)) (stop func(), err error)

// Manager owns the single active MIDI input. Messages delivered by the
// driver are queued and handed to observers by Poll.
type Manager struct {
	mu       sync.RWMutex
	listen   ListenFunc
	portName string
	stopFn   func()
	handlers []EventHandler

	// queue is separate from mu so the driver callback never waits on Open or Close
	qmu     sync.Mutex
	gen     uint64
	pending []midi.Message
}

// NewManager creates a manager backed by the registered gomidi driver
func NewManager() *Manager {
	return NewManagerWithListener(listenToPort)
}

// NewManagerWithListener creates a manager that opens ports through listen
func NewManagerWithListener(listen ListenFunc) *Manager {
	return &Manager{listen: listen}
}

// ListInPorts returns the names of available MIDI input ports
func (m *Manager) ListInPorts() []string {
	ins := midi.GetInPorts()
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	return names
}

// GetInPort returns an input port by name
func GetInPort(name string) (drivers.In, error) {
	for _, in := range midi.GetInPorts() {
		if in.String() == name {
			return in, nil
		}
	}
	return nil, errors.Errorf("input port not found: %s", name)
}

func listenToPort(portName string, recv func(msg midi.Message)) (func(), error) {
	inPort, err := GetInPort(portName)
	if err != nil {
		return nil, err
	}

	stop, err := midi.ListenTo(inPort, func(msg midi.Message, timestampms int32) {
		recv(msg)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to start listening")
	}

	return func() {
		stop()
		if err := inPort.Close(); err != nil {
			log.Debugf("midi: closing %s: %v", portName, err)
		}
	}, nil
}

// OnControlChange registers an observer for control change events
func (m *Manager) OnControlChange(h EventHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, h)
}

// Open makes portName the active input. Any previously open input is closed
// first, so on failure the manager is left disconnected.
func (m *Manager) Open(portName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeLocked()

	if portName == "" {
		return errors.Wrap(ErrOpen, "no port name")
	}

	gen := m.generation()
	stop, err := m.listen(portName, func(msg midi.Message) {
		m.enqueue(gen, msg)
	})
	if err != nil {
		return errors.Wrapf(ErrOpen, "%s: %v", portName, err)
	}

	m.portName = portName
	m.stopFn = stop
	log.Infof("midi: listening on %s", portName)
	return nil
}

func (m *Manager) generation() uint64 {
	m.qmu.Lock()
	defer m.qmu.Unlock()
	return m.gen
}

// enqueue is called from the driver's goroutine. Messages from a port that
// has since been closed are dropped.
func (m *Manager) enqueue(gen uint64, msg midi.Message) {
	m.qmu.Lock()
	defer m.qmu.Unlock()

	if gen != m.gen {
		return
	}
	m.pending = append(m.pending, msg)
}

// Close releases the active input, if any
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
}

func (m *Manager) closeLocked() {
	if m.stopFn != nil {
		m.stopFn()
		log.Infof("midi: closed %s", m.portName)
	}
	m.stopFn = nil
	m.portName = ""

	m.qmu.Lock()
	m.gen++
	m.pending = nil
	m.qmu.Unlock()
}

// PortName returns the active input, or "" when disconnected
func (m *Manager) PortName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.portName
}

// Connected reports whether an input is open
func (m *Manager) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stopFn != nil
}

// Poll drains every pending message and hands the control changes to the
// observers in arrival order. Other message types are dropped. Returns the
// number of control changes delivered.
func (m *Manager) Poll() int {
	m.mu.RLock()
	handlers := append([]EventHandler(nil), m.handlers...)
	m.mu.RUnlock()

	m.qmu.Lock()
	msgs := m.pending
	m.pending = nil
	m.qmu.Unlock()

	delivered := 0
	for _, msg := range msgs {
		var channel, controller, value uint8
		if !msg.GetControlChange(&channel, &controller, &value) {
			continue
		}

		ev := Event{Channel: channel, Controller: controller, Value: value}
		for _, h := range handlers {
			h(ev)
		}
		delivered++
	}
	return delivered
}

// Run polls on every tick of interval until ctx is done
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Poll()
		}
	}
}

// CloseDriver shuts down the gomidi driver
func CloseDriver() {
	midi.CloseDriver()
}
