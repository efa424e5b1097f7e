// ABOUTME: Entry point for the radiowatch station monitor
// ABOUTME: Loads configuration, wires playback, sampling, history and the control API
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/harperreed/radiowatch/internal/analytics"
	"github.com/harperreed/radiowatch/internal/api"
	"github.com/harperreed/radiowatch/internal/artwork"
	"github.com/harperreed/radiowatch/internal/config"
	"github.com/harperreed/radiowatch/internal/discovery"
	"github.com/harperreed/radiowatch/internal/ingest"
	"github.com/harperreed/radiowatch/internal/sampling"
	"github.com/harperreed/radiowatch/internal/session"
	"github.com/harperreed/radiowatch/internal/store"
	"github.com/harperreed/radiowatch/internal/stream"
	"github.com/harperreed/radiowatch/internal/ui"
	"github.com/harperreed/radiowatch/internal/version"
	"github.com/harperreed/radiowatch/pkg/audio/output"
)

const (
	outputSampleRate = 48000
	outputChannels   = 2
	shutdownTimeout  = 10 * time.Second
)

var (
	configPath = flag.String("config", "", "Config file (default: search XDG config dir and working directory)")
	listen     = flag.String("listen", "", "Control API address (overrides config)")
	useTUI     = flag.Bool("tui", false, "Show the station dashboard instead of streaming logs")
	noAudio    = flag.Bool("no-audio", false, "Decode and sample without opening an audio device")
	logFile    = flag.String("log-file", "", "Log file path (overrides config)")
	debug      = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Set up logging
	f, err := os.OpenFile(cfg.Log.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if *useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		// Streaming logs mode: log to both stdout and file
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	log.Printf("Starting %s %s with %d stations", version.Product, version.Version, len(cfg.Stations))
	if cfg.Path != "" {
		log.Printf("Config loaded from %s", cfg.Path)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out output.Output
	if cfg.Playback.Output == config.OutputNull {
		out = output.NewNull()
		log.Printf("Audio output disabled")
	} else {
		out = output.NewOto(outputSampleRate, outputChannels)
	}

	opener := stream.NewHTTPOpener(stream.HTTPConfig{
		ConnectTimeout: cfg.Playback.ConnectTimeout,
		HeaderTimeout:  cfg.Playback.ConnectTimeout,
		UserAgent:      cfg.Playback.UserAgent,
	})

	// A nil uploader keeps sampling off
	var uploader sampling.Uploader
	if cfg.Sampling.Enabled {
		client, err := ingest.NewClient(cfg.IngestParams())
		if err != nil {
			log.Fatalf("Failed to create ingest client: %v", err)
		}
		uploader = client
		log.Printf("Sampling %s every %s to %s", cfg.Sampling.Duration, cfg.Sampling.Interval, cfg.Ingest.URL)
	} else {
		log.Printf("Sampling disabled")
	}

	sess := session.New(session.Config{
		Opener:        opener,
		Output:        out,
		StallTimeout:  cfg.Playback.StallTimeout,
		DefaultVolume: cfg.Playback.DefaultVolume,
		Debug:         cfg.Log.Debug,
	}, cfg.SamplingParams(), uploader)

	apiCfg := api.Config{Session: sess, Debug: cfg.Log.Debug}

	var history *store.Store
	if cfg.Store.Driver != "" {
		history, err = store.Open(ctx, store.Config{Driver: cfg.Store.Driver, DSN: cfg.Store.DSN})
		if err != nil {
			log.Fatalf("Failed to open upload history: %v", err)
		}
		defer func() { _ = history.Close() }()
		apiCfg.History = history
	}

	sess.Sampler.OnOutcome(func(o sampling.Outcome) {
		if o.OK() {
			log.Printf("[%s] Uploaded %s (%d bytes, status %d)", o.StationID, o.Filename, o.Bytes, o.StatusCode)
		} else {
			log.Printf("[%s] Upload of %s failed: %v", o.StationID, o.Filename, o.Err)
		}
		if history == nil {
			return
		}
		if err := history.Record(context.Background(), o); err != nil {
			log.Printf("Failed to record upload: %v", err)
		}
	})

	if cfg.Analytics.Artists != "" || cfg.Analytics.MultiChannel != "" {
		reports := analytics.NewService(analytics.Config{
			Artists:      cfg.Analytics.Artists,
			MultiChannel: cfg.Analytics.MultiChannel,
		})
		if err := reports.Load(ctx); err != nil {
			log.Printf("Analytics not fully loaded: %v", err)
		}
		apiCfg.Analytics = reports
	}

	logoDir := cfg.Logos.CacheDir
	if logoDir == "" {
		logoDir = artwork.DefaultDir()
	}
	logos, err := artwork.NewCache(logoDir, cfg.Log.Debug)
	if err != nil {
		log.Printf("Station logos disabled: %v", err)
	} else {
		apiCfg.Logos = logos
		go logos.Warm(ctx, cfg.StationLogos())
	}

	var disc *discovery.Manager
	if cfg.Discovery.Enabled {
		disc = discovery.NewManager(discovery.Config{
			ServiceName: cfg.Discovery.Name,
			Port:        listenPort(cfg.Listen),
			Stations:    len(cfg.Stations),
		})
		if err := disc.Advertise(); err != nil {
			log.Printf("mDNS advertisement failed: %v", err)
		}
		apiCfg.Peers = disc
	}

	server := api.New(apiCfg)
	go func() {
		if err := server.ListenAndServe(cfg.Listen); err != nil {
			log.Printf("Control API stopped: %v", err)
		}
	}()

	// TUI setup
	var tuiDone chan struct{}
	if *useTUI {
		prog := ui.Run(sess, ui.SessionSource(sess), version.Product)
		sess.Registry.OnChange(func() {
			// Send blocks while the model handles a key, so never call it inline
			go prog.Send(ui.RefreshMsg{})
		})
		tuiDone = make(chan struct{})
		go func() {
			defer close(tuiDone)
			if _, err := prog.Run(); err != nil {
				log.Printf("TUI error: %v", err)
			}
		}()
		defer prog.Quit()
	}

	go func() {
		// Close waits for this; cancelling ctx cuts it short on early shutdown
		if err := sess.Start(ctx, cfg.Stations); err != nil {
			if !errors.Is(err, session.ErrSessionClosed) {
				log.Printf("Station initialization failed: %v", err)
			}
			return
		}
		sum := sess.Registry.Summary()
		log.Printf("Stations initialized: %d playing, %d loading, %d failed", sum.Active, sum.Loading, sum.Errors)
	}()

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Wait for quit signal from TUI or OS
	select {
	case <-tuiDone:
		log.Printf("Received quit signal from TUI")
	case <-sigChan:
		log.Printf("Shutdown signal received")
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()

	if disc != nil {
		disc.Stop()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error stopping control API: %v", err)
	}
	if err := sess.Close(shutdownCtx); err != nil {
		log.Printf("Uploads abandoned at shutdown: %v", err)
	}
	if err := out.Close(); err != nil {
		log.Printf("Error closing audio output: %v", err)
	}

	log.Printf("Monitor stopped")
}

// applyFlags lets command line flags override the loaded config
func applyFlags(cfg *config.Config) {
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *noAudio {
		cfg.Playback.Output = config.OutputNull
	}
	if *logFile != "" {
		cfg.Log.File = *logFile
	}
	if *debug {
		cfg.Log.Debug = true
	}
}

// listenPort extracts the port advertised over mDNS
func listenPort(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}
	return port
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags]\n\nMonitors internet radio stations and uploads periodic samples.\n\nFlags:\n", os.Args[0])
		flag.PrintDefaults()
	}
}
