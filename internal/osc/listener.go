package osc

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/hypebeast/go-osc/osc"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultListenPort is the port the mixer replies to
const DefaultListenPort = 10023

// maxPacketSize is the largest UDP payload
const maxPacketSize = 65535

// Read errors back off from minReadBackoff, doubling up to maxReadBackoff
const (
	minReadBackoff = 5 * time.Millisecond
	maxReadBackoff = 250 * time.Millisecond
)

// ErrListen is returned when the listener cannot bind its port
var ErrListen = errors.New("osc listener unavailable")

// MessageHandler receives every inbound message, whatever its address
type MessageHandler func(address string, args []interface{})

// Listener receives OSC from the mixer. Only one receive loop runs at a
// time; it is stopped by closing its socket.
type Listener struct {
	mu   sync.Mutex
	conn net.PacketConn
	done chan struct{}
	port int

	// hmu is taken by the receive loop; Stop holds mu while waiting for it
	hmu      sync.RWMutex
	handlers []MessageHandler
}

// NewListener creates a stopped listener
func NewListener() *Listener {
	return &Listener{}
}

// OnMessage registers an observer for inbound messages
func (l *Listener) OnMessage(h MessageHandler) {
	l.hmu.Lock()
	defer l.hmu.Unlock()
	l.handlers = append(l.handlers, h)
}

// Listen stops any running receive loop, then binds port on all interfaces
// and starts a new one.
func (l *Listener) Listen(port int) error {
	if !ValidPort(port) {
		return errors.Wrapf(ErrListen, "port %d", port)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.stopLocked()

	conn, err := net.ListenPacket("udp", ":"+strconv.Itoa(port))
	if err != nil {
		return errors.Wrapf(ErrListen, "port %d: %v", port, err)
	}

	l.conn = conn
	l.port = port
	l.done = make(chan struct{})
	go l.receive(conn, l.done)

	log.Infof("osc: listening on %s", conn.LocalAddr())
	return nil
}

// Stop closes the socket and waits for the receive loop to exit
func (l *Listener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLocked()
}

func (l *Listener) stopLocked() {
	if l.conn == nil {
		return
	}
	_ = l.conn.Close()
	<-l.done

	log.Infof("osc: stopped listening on port %d", l.port)
	l.conn = nil
	l.done = nil
	l.port = 0
}

// Port returns the bound port, or 0 when stopped
func (l *Listener) Port() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.port
}

// LocalAddr returns the bound address, or nil when stopped
func (l *Listener) LocalAddr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

func (l *Listener) receive(conn net.PacketConn, done chan struct{}) {
	defer close(done)

	buf := make([]byte, maxPacketSize)
	var backoff time.Duration
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			if backoff == 0 {
				backoff = minReadBackoff
				log.Warnf("osc: read: %v", err)
			} else {
				backoff *= 2
				if backoff > maxReadBackoff {
					backoff = maxReadBackoff
				}
				log.Debugf("osc: read: %v, retrying in %s", err, backoff)
			}
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		packet, err := osc.ParsePacket(string(buf[:n]))
		if err != nil {
			log.Debugf("osc: dropping malformed packet from %s: %v", from, err)
			continue
		}
		l.dispatch(packet)
	}
}

// dispatch forwards every message in packet. Bundles are flattened and their
// timetags ignored.
func (l *Listener) dispatch(packet osc.Packet) {
	l.hmu.RLock()
	handlers := append([]MessageHandler(nil), l.handlers...)
	l.hmu.RUnlock()

	for _, msg := range flatten(packet) {
		for _, h := range handlers {
			h(msg.Address, msg.Arguments)
		}
	}
}

func flatten(packet osc.Packet) []*osc.Message {
	switch p := packet.(type) {
	case *osc.Message:
		return []*osc.Message{p}
	case *osc.Bundle:
		msgs := append([]*osc.Message(nil), p.Messages...)
		for _, b := range p.Bundles {
			msgs = append(msgs, flatten(b)...)
		}
		return msgs
	}
	return nil
}
