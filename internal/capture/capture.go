// Package capture implements the "learn" workflow: arm it, move a physical
// control once, and the next control change becomes a new mapping.
package capture

import (
	"sync"

	"github.com/PixPMusic/gopher-osc/internal/mapping"
	log "github.com/sirupsen/logrus"
)

// State is the arm state of the controller
type State int

const (
	NotArmed State = iota
	Armed
)

func (s State) String() string {
	if s == Armed {
		return "armed"
	}
	return "not armed"
}

// Choice is the OSC destination picked for a captured controller
type Choice struct {
	Address     string
	ControlType mapping.ControlType
}

// Chooser asks the user which address and control type a captured CC should
// get. Returning false cancels the capture.
type Chooser interface {
	Choose(cc int) (Choice, bool)
}

// ChooserFunc adapts a function to the Chooser interface
type ChooserFunc func(cc int) (Choice, bool)

func (f ChooserFunc) Choose(cc int) (Choice, bool) {
	return f(cc)
}

// FixedChoice answers every capture with the same destination
func FixedChoice(address string, controlType mapping.ControlType) Chooser {
	return ChooserFunc(func(int) (Choice, bool) {
		return Choice{Address: address, ControlType: controlType}, true
	})
}

// Controller is a manual arm/disarm toggle. While armed, the next control
// change creates one mapping and disarms it.
type Controller struct {
	mu      sync.Mutex
	state   State
	store   *mapping.Store
	chooser Chooser
}

// NewController creates a disarmed controller adding to store
func NewController(store *mapping.Store, chooser Chooser) *Controller {
	return &Controller{
		store:   store,
		chooser: chooser,
	}
}

// SetChooser replaces the chooser used for the next capture
func (c *Controller) SetChooser(chooser Chooser) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chooser = chooser
}

// Toggle flips the arm state and reports whether the controller is now armed
func (c *Controller) Toggle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Armed {
		c.state = NotArmed
	} else {
		c.state = Armed
	}
	log.Debugf("capture %s", c.state)
	return c.state == Armed
}

// State returns the current arm state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnControlChange turns cc into a new mapping if the controller is armed.
// It returns the mapping that was added, if any. The controller is disarmed
// before the chooser is asked, so the chooser may block.
func (c *Controller) OnControlChange(cc int) (mapping.Mapping, bool) {
	c.mu.Lock()
	if c.state != Armed {
		c.mu.Unlock()
		return mapping.Mapping{}, false
	}
	c.state = NotArmed
	chooser := c.chooser
	c.mu.Unlock()

	if chooser == nil {
		log.Warnf("capture: no chooser for CC %d, capture cancelled", cc)
		return mapping.Mapping{}, false
	}

	choice, ok := chooser.Choose(cc)
	if !ok || choice.Address == "" {
		log.Infof("capture: CC %d cancelled", cc)
		return mapping.Mapping{}, false
	}

	m := c.store.Add(mapping.New(cc, choice.Address, mapping.ParseControlType(string(choice.ControlType))))
	log.WithFields(log.Fields{
		"cc":   m.CC,
		"osc":  m.OSCAddress,
		"type": m.ControlType,
	}).Info("capture: mapping added")
	return m, true
}
