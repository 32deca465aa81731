package preset

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PixPMusic/gopher-osc/internal/mapping"
	"github.com/PixPMusic/gopher-osc/internal/osc"
	"github.com/pkg/errors"
)

// ErrFile is returned when a preset cannot be read, written or decoded
var ErrFile = errors.New("preset file error")

// Preset is the saved unit: the mixer target plus the whole mapping table
type Preset struct {
	HostIP   string
	HostPort int
	Mappings []mapping.Mapping
}

// Equal compares presets ignoring mapping IDs
func (p Preset) Equal(o Preset) bool {
	if p.HostIP != o.HostIP || p.HostPort != o.HostPort || len(p.Mappings) != len(o.Mappings) {
		return false
	}
	for i := range p.Mappings {
		if !p.Mappings[i].Equal(o.Mappings[i]) {
			return false
		}
	}
	return true
}

// file is the on-disk layout. host_port is kept as text.
type file struct {
	HostIP   string            `json:"host_ip"`
	HostPort portText          `json:"host_port"`
	Mappings []mapping.Mapping `json:"mappings"`
}

// portText reads a port written either as a string or as a number
type portText string

func (p *portText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = portText(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*p = portText(n.String())
	return nil
}

// Encode serializes a preset
func Encode(p Preset) ([]byte, error) {
	mappings := p.Mappings
	if mappings == nil {
		mappings = []mapping.Mapping{}
	}
	data, err := json.MarshalIndent(file{
		HostIP:   p.HostIP,
		HostPort: portText(strconv.Itoa(p.HostPort)),
		Mappings: mappings,
	}, "", "  ")
	if err != nil {
		return nil, errors.Wrapf(ErrFile, "encoding: %v", err)
	}
	return data, nil
}

// Decode parses a preset. Missing fields take their defaults; a mapping
// without a control type is a fader.
func Decode(data []byte) (Preset, error) {
	f := file{
		HostIP:   osc.DefaultHostIP,
		HostPort: portText(strconv.Itoa(osc.DefaultHostPort)),
		Mappings: []mapping.Mapping{},
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return Preset{}, errors.Wrapf(ErrFile, "decoding: %v", err)
	}

	port, err := strconv.Atoi(strings.TrimSpace(string(f.HostPort)))
	if err != nil || !osc.ValidPort(port) {
		return Preset{}, errors.Wrapf(osc.ErrConnection, "host_port %q", string(f.HostPort))
	}

	mappings := make([]mapping.Mapping, 0, len(f.Mappings))
	for i, m := range f.Mappings {
		if m.CC < 0 || m.CC > mapping.MaxValue {
			return Preset{}, errors.Wrapf(ErrFile, "mapping %d: cc %d out of range", i, m.CC)
		}
		m.ControlType = mapping.ParseControlType(string(m.ControlType))
		mappings = append(mappings, m)
	}

	return Preset{
		HostIP:   f.HostIP,
		HostPort: port,
		Mappings: mappings,
	}, nil
}
