package console

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PixPMusic/gopher-osc/internal/bridge"
	"github.com/PixPMusic/gopher-osc/internal/mapping"
	"github.com/PixPMusic/gopher-osc/internal/midi"
	"github.com/PixPMusic/gopher-osc/internal/osc"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"
)

type fakeInput struct {
	recv func(msg gomidi.Message)
}

func (f *fakeInput) listen(portName string, recv func(msg gomidi.Message)) (func(), error) {
	if portName != "Test Port" {
		return nil, errors.New("no such port")
	}
	f.recv = recv
	return func() {}, nil
}

func newConsole(t *testing.T) (*Console, *bridge.Engine, *fakeInput) {
	t.Helper()
	in := &fakeInput{}
	e := bridge.New(bridge.Options{MIDIListen: in.listen})
	t.Cleanup(e.Close)
	return New(e, ""), e, in
}

func run(t *testing.T, c *Console, line string) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Execute(line, &buf), line)
	return buf.String()
}

func TestExecuteEmptyAndUnknown(t *testing.T) {
	c, _, _ := newConsole(t)

	assert.NoError(t, c.Execute("   ", &bytes.Buffer{}))
	err := c.Execute("frobnicate", &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frobnicate")
}

func TestHelpListsEveryCommand(t *testing.T) {
	c, _, _ := newConsole(t)
	out := run(t, c, "help")

	for _, name := range []string{"help", "devices", "open", "connect", "listen", "learn",
		"list", "add", "set", "del", "save", "load", "monitor", "catalog", "quit"} {
		assert.Contains(t, out, name)
	}
}

func TestQuit(t *testing.T) {
	c, _, _ := newConsole(t)
	assert.True(t, errors.Is(c.Execute("quit", &bytes.Buffer{}), ErrQuit))
}

func TestAddListSetDel(t *testing.T) {
	c, e, _ := newConsole(t)

	run(t, c, "add 1 1")
	run(t, c, "add 64 /bus/16/mix/fader button Mute All")
	run(t, c, "add 2 33 fader")

	all := e.Store().All()
	require.Len(t, all, 3)
	assert.Equal(t, "/ch/01/mix/01/level", all[0].OSCAddress)
	assert.Equal(t, mapping.DefaultName, all[0].Name)
	assert.Equal(t, 127.0, all[0].Max)
	assert.Equal(t, "Mute All", all[1].Name)
	assert.Equal(t, mapping.ControlTypeButton, all[1].ControlType)
	assert.Equal(t, "/bus/1/mix/fader", all[2].OSCAddress)

	out := run(t, c, "list")
	assert.Contains(t, out, "Mute All")
	assert.Contains(t, out, "/bus/16/mix/fader")

	run(t, c, "set 1 name=Lead min=10 max=20 cc=5")
	m, ok := e.Store().At(0)
	require.True(t, ok)
	assert.Equal(t, "Lead", m.Name)
	assert.Equal(t, 5, m.CC)
	assert.Equal(t, 10.0, m.Min)
	assert.Equal(t, 20.0, m.Max)
	assert.Equal(t, all[0].ID, m.ID)

	run(t, c, "set 1 name=Main Lead Vox max=30")
	m, _ = e.Store().At(0)
	assert.Equal(t, "Main Lead Vox", m.Name)
	assert.Equal(t, 30.0, m.Max)

	run(t, c, "set 1 min=loud")
	m, _ = e.Store().At(0)
	assert.Equal(t, 0.0, m.Min)
	assert.Equal(t, 1.0, m.Max)

	assert.Contains(t, run(t, c, "del 3 1"), "deleted 2")
	all = e.Store().All()
	require.Len(t, all, 1)
	assert.Equal(t, "Mute All", all[0].Name)
}

func TestCommandErrors(t *testing.T) {
	c, _, _ := newConsole(t)
	run(t, c, "add 1 1")

	tests := []struct {
		line string
		want error
	}{
		{"add 200 1", mapping.ErrCCOutOfRange},
		{"set 9 name=x", mapping.ErrRowOutOfRange},
		{"set 1 cc=128", mapping.ErrCCOutOfRange},
		{"connect 127.0.0.1 port", osc.ErrConnection},
		{"connect 127.0.0.1 0", osc.ErrConnection},
		{"listen 70000", osc.ErrListen},
		{"open Nope", midi.ErrOpen},
	}
	for _, tt := range tests {
		err := c.Execute(tt.line, &bytes.Buffer{})
		assert.True(t, errors.Is(err, tt.want), "%s: %v", tt.line, err)
	}

	for _, line := range []string{"add 1", "connect 127.0.0.1", "del", "save", "set 1 name", "set 1 cc=3 Lead"} {
		err := c.Execute(line, &bytes.Buffer{})
		require.Error(t, err, line)
		assert.True(t, strings.HasPrefix(err.Error(), "usage:"), "%s: %v", line, err)
	}
}

func TestLearnArmsAndCancels(t *testing.T) {
	c, e, in := newConsole(t)
	run(t, c, "open Test Port")

	run(t, c, "learn 40 button")
	assert.True(t, e.Capturing())

	in.recv(gomidi.ControlChange(0, 21, 127))
	e.Poll()

	assert.False(t, e.Capturing())
	all := e.Store().All()
	require.Len(t, all, 1)
	assert.Equal(t, 21, all[0].CC)
	assert.Equal(t, "/bus/8/mix/fader", all[0].OSCAddress)
	assert.Equal(t, mapping.ControlTypeButton, all[0].ControlType)

	run(t, c, "learn 1")
	assert.True(t, e.Capturing())
	run(t, c, "learn")
	assert.False(t, e.Capturing())
}

func TestSaveAndLoadRememberPath(t *testing.T) {
	c, e, _ := newConsole(t)
	path := filepath.Join(t.TempDir(), "show.json")

	run(t, c, "connect 127.0.0.1 9000")
	run(t, c, "add 7 /ch/07/mix/07/level")
	run(t, c, "save "+path)
	assert.Equal(t, path, c.PresetPath())

	run(t, c, "del 1")
	assert.Equal(t, 0, e.Store().Len())

	assert.Contains(t, run(t, c, "load"), "loaded 1 mappings")
	assert.Equal(t, 1, e.Store().Len())
	assert.Equal(t, 9000, e.Target().HostPort)
}

func TestMonitorShowsFeeds(t *testing.T) {
	c, e, in := newConsole(t)
	run(t, c, "open Test Port")

	in.recv(gomidi.ControlChange(0, 4, 90))
	e.Poll()

	assert.Equal(t, "[midi] CC: 4 Value: 90\n", run(t, c, "monitor midi"))
	run(t, c, "monitor clear")
	assert.Empty(t, run(t, c, "monitor"))
}

func TestCatalog(t *testing.T) {
	c, _, _ := newConsole(t)
	out := run(t, c, "catalog")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 48)
	assert.Contains(t, lines[0], "/ch/01/mix/01/level")
	assert.Contains(t, lines[47], "/bus/16/mix/fader")
}
