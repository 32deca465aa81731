// Package preset saves and restores the mixer target and the mapping table.
package preset

import (
	"os"
	"path/filepath"

	"github.com/PixPMusic/gopher-osc/internal/mapping"
	"github.com/PixPMusic/gopher-osc/internal/osc"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Connector is the outbound OSC client as seen by presets
type Connector interface {
	Connect(ip string, port int) error
	Target() osc.ConnectionConfig
}

// Service persists the live table and target
type Service struct {
	store  *mapping.Store
	client Connector
}

// NewService creates a preset service over the live store and client
func NewService(store *mapping.Store, client Connector) *Service {
	return &Service{store: store, client: client}
}

// Current snapshots the live state as a preset
func (s *Service) Current() Preset {
	target := s.client.Target()
	return Preset{
		HostIP:   target.HostIP,
		HostPort: target.HostPort,
		Mappings: s.store.All(),
	}
}

// Save writes the live state to path. The file is replaced atomically, so a
// failed save leaves any previous file in place.
func (s *Service) Save(path string) error {
	data, err := Encode(s.Current())
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(ErrFile, "creating %s: %v", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".preset-*.json")
	if err != nil {
		return errors.Wrapf(ErrFile, "writing %s: %v", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(ErrFile, "writing %s: %v", path, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(ErrFile, "writing %s: %v", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return errors.Wrapf(ErrFile, "writing %s: %v", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(ErrFile, "writing %s: %v", path, err)
	}

	log.Infof("preset: saved %d mappings to %s", s.store.Len(), path)
	return nil
}

// Load reads the preset at path, reconnects the client to its target and
// replaces the table. Nothing changes unless every step succeeds.
func (s *Service) Load(path string) (Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Preset{}, errors.Wrapf(ErrFile, "reading %s: %v", path, err)
	}

	p, err := Decode(data)
	if err != nil {
		return Preset{}, errors.Wrapf(err, "loading %s", path)
	}

	if err := s.client.Connect(p.HostIP, p.HostPort); err != nil {
		return Preset{}, errors.Wrapf(err, "loading %s", path)
	}

	s.store.ReplaceAll(p.Mappings)
	log.Infof("preset: loaded %d mappings from %s", len(p.Mappings), path)
	return Preset{HostIP: p.HostIP, HostPort: p.HostPort, Mappings: s.store.All()}, nil
}
