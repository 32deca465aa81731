package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/PixPMusic/gopher-osc/internal/bridge"
	"github.com/PixPMusic/gopher-osc/internal/config"
	"github.com/PixPMusic/gopher-osc/internal/console"
	"github.com/PixPMusic/gopher-osc/internal/midi"
	log "github.com/sirupsen/logrus"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		configPath string
		logLevel   string
		device     string
		hostIP     string
		hostPort   int
		listenPort int
		presetPath string
	)
	flag.StringVar(&configPath, "config", "", "settings file (default: user config dir)")
	flag.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flag.StringVar(&device, "device", "", "MIDI input to open")
	flag.StringVar(&hostIP, "host", "", "mixer IP address")
	flag.IntVar(&hostPort, "port", 0, "mixer OSC port")
	flag.IntVar(&listenPort, "listen", 0, "local port for OSC replies")
	flag.StringVar(&presetPath, "preset", "", "preset to load at startup")
	flag.Parse()

	// Load configuration
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	log.SetLevel(cfg.ParseLogLevel())

	if device != "" {
		cfg.MIDIDevice = device
	}
	if hostIP != "" {
		cfg.HostIP = hostIP
	}
	if hostPort != 0 {
		cfg.HostPort = hostPort
	}
	if listenPort != 0 {
		cfg.ListenPort = listenPort
	}
	if presetPath != "" {
		cfg.LastPreset = presetPath
	}

	defer midi.CloseDriver()

	engine := bridge.New(bridge.Options{PollInterval: cfg.PollInterval})
	defer engine.Close()

	if err := engine.Connect(cfg.HostIP, cfg.HostPort); err != nil {
		log.Errorf("OSC target %s:%d: %v", cfg.HostIP, cfg.HostPort, err)
	}
	if err := engine.Listen(cfg.ListenPort); err != nil {
		log.Errorf("OSC listener: %v", err)
	}
	if cfg.MIDIDevice != "" {
		if err := engine.OpenDevice(cfg.MIDIDevice); err != nil {
			log.Errorf("MIDI input: %v", err)
		}
	}
	if cfg.LastPreset != "" {
		if _, err := engine.LoadPreset(cfg.LastPreset); err != nil {
			log.Errorf("Preset: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	term := console.New(engine, cfg.LastPreset)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return engine.Run(ctx)
	})
	g.Go(func() error {
		defer stop()
		return term.Run(ctx)
	})
	if err := g.Wait(); err != nil {
		log.Errorf("Exiting: %v", err)
	}

	cfg.MIDIDevice = engine.Device()
	target := engine.Target()
	cfg.HostIP, cfg.HostPort = target.HostIP, target.HostPort
	if port := engine.ListenPort(); port != 0 {
		cfg.ListenPort = port
	}
	cfg.LastPreset = term.PresetPath()

	if configPath != "" {
		err = cfg.SaveTo(configPath)
	} else {
		err = cfg.Save()
	}
	if err != nil {
		log.Errorf("Failed to save config: %v", err)
	}
}
