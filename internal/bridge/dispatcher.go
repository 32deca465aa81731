package bridge

import (
	"fmt"

	"github.com/PixPMusic/gopher-osc/internal/mapping"
	"github.com/PixPMusic/gopher-osc/internal/monitor"
	"github.com/PixPMusic/gopher-osc/internal/osc"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Sender delivers one OSC value to the mixer
type Sender interface {
	Send(address string, value float64) error
}

// Lookup finds the mappings bound to a controller number
type Lookup interface {
	Matching(cc int) []mapping.Mapping
}

// Dispatcher turns control changes into OSC sends
type Dispatcher struct {
	lookup Lookup
	sender Sender
	feed   *monitor.Feed
}

// NewDispatcher creates a dispatcher. feed may be nil.
func NewDispatcher(lookup Lookup, sender Sender, feed *monitor.Feed) *Dispatcher {
	return &Dispatcher{lookup: lookup, sender: sender, feed: feed}
}

// OnControlChange records the raw event, then sends one message for every
// mapping bound to cc, in table order. Returns how many messages were sent.
func (d *Dispatcher) OnControlChange(cc, value int) int {
	if d.feed != nil {
		d.feed.Append(fmt.Sprintf("CC: %d Value: %d", cc, value))
	}

	sent := 0
	for _, m := range d.lookup.Matching(cc) {
		v, err := mapping.Scale(value, m)
		if err != nil {
			log.Errorf("dispatch: %s: %v", m.OSCAddress, err)
			continue
		}

		if err := d.sender.Send(m.OSCAddress, v); err != nil {
			if errors.Is(err, osc.ErrNotConnected) {
				log.Debugf("dispatch: CC %d -> %s skipped, not connected", cc, m.OSCAddress)
			} else {
				log.Warnf("dispatch: %s: %v", m.OSCAddress, err)
			}
			continue
		}

		log.WithFields(log.Fields{
			"cc":    cc,
			"value": value,
			"osc":   m.OSCAddress,
			"out":   v,
		}).Debug("dispatch: sent")
		sent++
	}
	return sent
}
