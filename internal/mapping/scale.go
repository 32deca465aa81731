package mapping

import (
	"github.com/pkg/errors"
)

// ErrValueOutOfRange is returned when a MIDI value is not a 7-bit value
var ErrValueOutOfRange = errors.New("midi value out of range")

// MaxValue is the largest 7-bit MIDI value
const MaxValue = 127

// Scale converts a 7-bit MIDI value to the OSC value for the mapping.
// Buttons collapse to 0 or 1; faders are linear and unclamped, so a mapping
// with Min > Max responds inverted.
func Scale(value int, m Mapping) (float64, error) {
	if value < 0 || value > MaxValue {
		return 0, errors.Wrapf(ErrValueOutOfRange, "value %d", value)
	}

	if m.ControlType == ControlTypeButton {
		if value > 0 {
			return 1, nil
		}
		return 0, nil
	}

	return m.Min + (float64(value)/MaxValue)*(m.Max-m.Min), nil
}
