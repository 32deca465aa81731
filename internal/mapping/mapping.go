package mapping

import (
	"github.com/google/uuid"
)

// ControlType describes how a MIDI value is turned into an OSC value
type ControlType string

const (
	ControlTypeFader  ControlType = "fader"  // continuous, scaled between Min and Max
	ControlTypeButton ControlType = "button" // 1 for any non-zero value, else 0
)

// DefaultName is given to mappings created by capture
const DefaultName = "New Parameter"

// ParseControlType maps free text to a control type. Anything that is not
// "button" is a fader.
func ParseControlType(s string) ControlType {
	if ControlType(s) == ControlTypeButton {
		return ControlTypeButton
	}
	return ControlTypeFader
}

// Mapping binds one MIDI controller number to one OSC address
type Mapping struct {
	ID          string      `json:"-"` // Generated, stable while the row lives in memory
	CC          int         `json:"cc"`
	OSCAddress  string      `json:"osc"`
	Min         float64     `json:"min"`
	Max         float64     `json:"max"`
	Name        string      `json:"name"`
	ControlType ControlType `json:"control_type"`
}

// New creates a mapping with a generated ID
func New(cc int, address string, controlType ControlType) Mapping {
	min, max := DefaultRange(controlType)
	return Mapping{
		ID:          uuid.New().String(),
		CC:          cc,
		OSCAddress:  address,
		Min:         min,
		Max:         max,
		Name:        DefaultName,
		ControlType: controlType,
	}
}

// DefaultRange returns the range a freshly created mapping starts with.
// Faders keep the historical 0..127 range.
func DefaultRange(controlType ControlType) (min, max float64) {
	if controlType == ControlTypeButton {
		return 0, 1
	}
	return 0.0, 127
}

// Equal compares two mappings ignoring their IDs
func (m Mapping) Equal(o Mapping) bool {
	return m.CC == o.CC &&
		m.OSCAddress == o.OSCAddress &&
		m.Min == o.Min &&
		m.Max == o.Max &&
		m.Name == o.Name &&
		m.ControlType == o.ControlType
}
