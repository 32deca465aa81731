// Package console is the interactive terminal front end of the bridge.
package console

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"text/tabwriter"

	"github.com/PixPMusic/gopher-osc/internal/bridge"
	"github.com/PixPMusic/gopher-osc/internal/capture"
	"github.com/PixPMusic/gopher-osc/internal/mapping"
	"github.com/PixPMusic/gopher-osc/internal/monitor"
	"github.com/PixPMusic/gopher-osc/internal/osc"
	"github.com/chzyer/readline"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const prompt = "osc> "

var (
	// ErrQuit is returned by Execute for the quit command
	ErrQuit = errors.New("quit")

	// ErrUsage is returned when a command gets the wrong arguments
	ErrUsage = errors.New("usage")
)

type handler func(c *Console, args []string, w io.Writer) error

type command struct {
	usage string
	help  string
	run   handler
}

// Console runs commands against one engine
type Console struct {
	engine   *bridge.Engine
	commands map[string]command

	mu         sync.Mutex
	out        io.Writer
	presetPath string
	follow     atomic.Bool
}

// New creates a console for engine. lastPreset is the default path for
// save and load.
func New(engine *bridge.Engine, lastPreset string) *Console {
	c := &Console{
		engine:     engine,
		out:        io.Discard,
		presetPath: lastPreset,
		commands: map[string]command{
			"help":    {"help", "list commands", cmdHelp},
			"devices": {"devices", "list MIDI inputs", cmdDevices},
			"open":    {"open <device>", "listen to a MIDI input", cmdOpen},
			"connect": {"connect <ip> <port>", "send OSC to the mixer at ip:port", cmdConnect},
			"listen":  {"listen <port>", "receive OSC on port", cmdListen},
			"learn":   {"learn [<osc|index> [fader|button]]", "map the next control moved; without arguments, cancel", cmdLearn},
			"list":    {"list", "show the mapping table", cmdList},
			"add":     {"add <cc> <osc|index> [fader|button] [name]", "add a mapping", cmdAdd},
			"set":     {"set <row> key=value...", "edit a row (name, cc, osc, min, max, type)", cmdSet},
			"del":     {"del <row>...", "delete rows", cmdDel},
			"save":    {"save [path]", "save a preset", cmdSave},
			"load":    {"load [path]", "load a preset and reconnect", cmdLoad},
			"monitor": {"monitor [midi|osc|follow|clear]", "show recent traffic", cmdMonitor},
			"catalog": {"catalog", "list known mixer addresses", cmdCatalog},
			"quit":    {"quit", "exit", cmdQuit},
		},
	}

	engine.MIDIFeed().Subscribe(func(line string) { c.echo("midi", line) })
	engine.OSCFeed().Subscribe(func(line string) { c.echo("osc", line) })
	return c
}

// PresetPath returns the last preset saved or loaded
func (c *Console) PresetPath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.presetPath
}

func (c *Console) setPresetPath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.presetPath = path
}

func (c *Console) echo(feed, line string) {
	if !c.follow.Load() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "[%s] %s\n", feed, line)
}

// Execute runs one command line, writing its output to w
func (c *Console) Execute(line string, w io.Writer) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	cmd, ok := c.commands[fields[0]]
	if !ok {
		return errors.Errorf("unknown command %q, try help", fields[0])
	}

	err := cmd.run(c, fields[1:], w)
	if errors.Is(err, ErrUsage) {
		return errors.Errorf("usage: %s", cmd.usage)
	}
	return err
}

func (c *Console) completer() *readline.PrefixCompleter {
	items := make([]readline.PrefixCompleterInterface, 0, len(c.commands))
	for _, name := range c.names() {
		switch name {
		case "open":
			items = append(items, readline.PcItem(name, readline.PcItemDynamic(func(string) []string {
				return c.engine.Devices()
			})))
		case "monitor":
			items = append(items, readline.PcItem(name,
				readline.PcItem("midi"), readline.PcItem("osc"),
				readline.PcItem("follow"), readline.PcItem("clear")))
		default:
			items = append(items, readline.PcItem(name))
		}
	}
	return readline.NewPrefixCompleter(items...)
}

func (c *Console) names() []string {
	names := make([]string, 0, len(c.commands))
	for name := range c.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run reads commands from the terminal until quit, EOF or ctx is done
func (c *Console) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		AutoComplete:    c.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return errors.Wrap(err, "starting console")
	}
	defer func() { _ = rl.Close() }()

	c.mu.Lock()
	c.out = rl.Stdout()
	c.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = rl.Close() })
	defer stop()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				return nil
			}
			continue
		}
		if err != nil {
			if err == io.EOF || ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "reading command")
		}

		if err := c.Execute(line, rl.Stdout()); err != nil {
			if errors.Is(err, ErrQuit) {
				return nil
			}
			fmt.Fprintf(rl.Stderr(), "error: %v\n", err)
		}
	}
}

func cmdHelp(c *Console, _ []string, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, name := range c.names() {
		cmd := c.commands[name]
		fmt.Fprintf(tw, "%s\t%s\n", cmd.usage, cmd.help)
	}
	return tw.Flush()
}

func cmdDevices(c *Console, _ []string, w io.Writer) error {
	active := c.engine.Device()
	devices := c.engine.Devices()
	if len(devices) == 0 {
		fmt.Fprintln(w, "no MIDI inputs found")
		return nil
	}
	for _, d := range devices {
		marker := " "
		if d == active {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s\n", marker, d)
	}
	return nil
}

func cmdOpen(c *Console, args []string, w io.Writer) error {
	if len(args) == 0 {
		return ErrUsage
	}
	name := strings.Join(args, " ")
	if err := c.engine.OpenDevice(name); err != nil {
		return err
	}
	fmt.Fprintf(w, "listening on %s\n", name)
	return nil
}

func cmdConnect(c *Console, args []string, w io.Writer) error {
	if len(args) != 2 {
		return ErrUsage
	}
	port, err := strconv.Atoi(args[1])
	if err != nil {
		return errors.Wrapf(osc.ErrConnection, "port %q", args[1])
	}
	if err := c.engine.Connect(args[0], port); err != nil {
		return err
	}
	fmt.Fprintf(w, "sending to %s\n", c.engine.Target())
	return nil
}

func cmdListen(c *Console, args []string, w io.Writer) error {
	if len(args) != 1 {
		return ErrUsage
	}
	port, err := strconv.Atoi(args[0])
	if err != nil {
		return errors.Wrapf(osc.ErrListen, "port %q", args[0])
	}
	if err := c.engine.Listen(port); err != nil {
		return err
	}
	fmt.Fprintf(w, "receiving on port %d\n", port)
	return nil
}

func cmdLearn(c *Console, args []string, w io.Writer) error {
	if len(args) == 0 {
		if c.engine.Capturing() {
			c.engine.ToggleCapture()
		}
		fmt.Fprintln(w, "learn cancelled")
		return nil
	}
	if len(args) > 2 {
		return ErrUsage
	}

	address, ok := osc.ResolveAddress(args[0])
	if !ok {
		return errors.Errorf("unknown address %q", args[0])
	}
	ct := mapping.ControlTypeFader
	if len(args) == 2 {
		ct = mapping.ParseControlType(args[1])
	}

	c.engine.SetChooser(capture.FixedChoice(address, ct))
	if !c.engine.Capturing() {
		c.engine.ToggleCapture()
	}
	fmt.Fprintf(w, "move a control to map it to %s (%s)\n", address, ct)
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func cmdList(c *Console, _ []string, w io.Writer) error {
	all := c.engine.Store().All()
	if len(all) == 0 {
		fmt.Fprintln(w, "no mappings")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tNAME\tCC\tOSC\tMIN\tMAX\tTYPE")
	for i, m := range all {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\t%s\n",
			i+1, m.Name, m.CC, m.OSCAddress, formatFloat(m.Min), formatFloat(m.Max), m.ControlType)
	}
	return tw.Flush()
}

func parseCC(s string) (int, error) {
	cc, err := strconv.Atoi(s)
	if err != nil || cc < 0 || cc > mapping.MaxValue {
		return 0, errors.Wrapf(mapping.ErrCCOutOfRange, "cc %q", s)
	}
	return cc, nil
}

// parseRow converts a 1-based row as shown by list
func parseRow(s string) (int, error) {
	row, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Wrapf(mapping.ErrRowOutOfRange, "row %q", s)
	}
	return row - 1, nil
}

func cmdAdd(c *Console, args []string, w io.Writer) error {
	if len(args) < 2 {
		return ErrUsage
	}
	cc, err := parseCC(args[0])
	if err != nil {
		return err
	}
	address, ok := osc.ResolveAddress(args[1])
	if !ok {
		return errors.Errorf("unknown address %q", args[1])
	}

	ct := mapping.ControlTypeFader
	rest := args[2:]
	if len(rest) > 0 && (rest[0] == string(mapping.ControlTypeFader) || rest[0] == string(mapping.ControlTypeButton)) {
		ct = mapping.ParseControlType(rest[0])
		rest = rest[1:]
	}

	m := mapping.New(cc, address, ct)
	if len(rest) > 0 {
		m.Name = strings.Join(rest, " ")
	}
	c.engine.Store().Add(m)
	fmt.Fprintf(w, "row %d: CC %d -> %s\n", c.engine.Store().Len(), cc, address)
	return nil
}

// splitAssignments parses key=value words. Words without "=" continue the
// preceding name value, so names may contain spaces.
func splitAssignments(words []string) ([][2]string, error) {
	var pairs [][2]string
	for _, word := range words {
		key, value, found := strings.Cut(word, "=")
		if !found {
			if len(pairs) == 0 || pairs[len(pairs)-1][0] != "name" {
				return nil, ErrUsage
			}
			pairs[len(pairs)-1][1] += " " + word
			continue
		}
		pairs = append(pairs, [2]string{key, value})
	}
	return pairs, nil
}

func cmdSet(c *Console, args []string, w io.Writer) error {
	if len(args) < 2 {
		return ErrUsage
	}
	row, err := parseRow(args[0])
	if err != nil {
		return err
	}
	current, ok := c.engine.Store().At(row)
	if !ok {
		return errors.Wrapf(mapping.ErrRowOutOfRange, "row %s", args[0])
	}

	f := mapping.Fields{
		Name:        current.Name,
		CC:          current.CC,
		OSCAddress:  current.OSCAddress,
		Min:         formatFloat(current.Min),
		Max:         formatFloat(current.Max),
		ControlType: string(current.ControlType),
	}
	pairs, err := splitAssignments(args[1:])
	if err != nil {
		return err
	}
	for _, kv := range pairs {
		key, value := kv[0], kv[1]
		switch key {
		case "name":
			f.Name = value
		case "cc":
			if f.CC, err = parseCC(value); err != nil {
				return err
			}
		case "osc":
			address, ok := osc.ResolveAddress(value)
			if !ok {
				return errors.Errorf("unknown address %q", value)
			}
			f.OSCAddress = address
		case "min":
			f.Min = value
		case "max":
			f.Max = value
		case "type":
			f.ControlType = value
		default:
			return errors.Errorf("unknown field %q", key)
		}
	}

	if err := c.engine.Store().Replace(row, f); err != nil {
		return err
	}
	return cmdList(c, nil, w)
}

func cmdDel(c *Console, args []string, w io.Writer) error {
	if len(args) == 0 {
		return ErrUsage
	}
	rows := make([]int, 0, len(args))
	for _, a := range args {
		row, err := parseRow(a)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	n := c.engine.Store().RemoveAt(rows...)
	fmt.Fprintf(w, "deleted %d rows\n", n)
	return nil
}

func (c *Console) pathArg(args []string) (string, error) {
	if len(args) > 1 {
		return "", ErrUsage
	}
	if len(args) == 1 {
		return args[0], nil
	}
	if path := c.PresetPath(); path != "" {
		return path, nil
	}
	return "", ErrUsage
}

func cmdSave(c *Console, args []string, w io.Writer) error {
	path, err := c.pathArg(args)
	if err != nil {
		return err
	}
	if err := c.engine.SavePreset(path); err != nil {
		return err
	}
	c.setPresetPath(path)
	fmt.Fprintf(w, "saved %s\n", path)
	return nil
}

func cmdLoad(c *Console, args []string, w io.Writer) error {
	path, err := c.pathArg(args)
	if err != nil {
		return err
	}
	p, err := c.engine.LoadPreset(path)
	if err != nil {
		return err
	}
	c.setPresetPath(path)
	fmt.Fprintf(w, "loaded %d mappings, sending to %s:%d\n", len(p.Mappings), p.HostIP, p.HostPort)
	return nil
}

func printFeed(w io.Writer, name string, f *monitor.Feed) {
	for _, line := range f.Lines() {
		fmt.Fprintf(w, "[%s] %s\n", name, line)
	}
}

func cmdMonitor(c *Console, args []string, w io.Writer) error {
	if len(args) > 1 {
		return ErrUsage
	}
	what := ""
	if len(args) == 1 {
		what = args[0]
	}

	switch what {
	case "":
		printFeed(w, "midi", c.engine.MIDIFeed())
		printFeed(w, "osc", c.engine.OSCFeed())
	case "midi":
		printFeed(w, "midi", c.engine.MIDIFeed())
	case "osc":
		printFeed(w, "osc", c.engine.OSCFeed())
	case "follow":
		on := !c.follow.Load()
		c.follow.Store(on)
		log.Debugf("console: follow %v", on)
		if on {
			fmt.Fprintln(w, "following traffic")
		} else {
			fmt.Fprintln(w, "stopped following")
		}
	case "clear":
		c.engine.MIDIFeed().Clear()
		c.engine.OSCFeed().Clear()
	default:
		return ErrUsage
	}
	return nil
}

func cmdCatalog(_ *Console, _ []string, w io.Writer) error {
	for i, address := range osc.Catalog() {
		fmt.Fprintf(w, "%2d  %s\n", i+1, address)
	}
	return nil
}

func cmdQuit(_ *Console, _ []string, _ io.Writer) error {
	return ErrQuit
}
