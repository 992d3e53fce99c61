// Program vatop renders a terminal dashboard for an external video-analytics
// pipeline, merging REST snapshot polls with websocket push events into one
// continuously refreshed view (tview, ANSI, or headless log output).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	httppprof "net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	pprof "runtime/pprof"
	"strings"
	"syscall"
	"time"

	"vatop/config"
	"vatop/live"
	"vatop/pipeline"
	"vatop/stats"
	"vatop/ui"
	"vatop/viewstate"

	"golang.org/x/term"
)

const (
	defaultConfigPath = "vatop.yaml"
	envConfigPath     = "VATOP_CONFIG_PATH"

	// envHeapLogInterval enables periodic heap stats logging when set to a
	// parseable duration (example: "60s"). Empty or invalid disables it.
	envHeapLogInterval = "VATOP_HEAP_LOG_INTERVAL"

	// envPprofAddr exposes /debug/pprof/* and /debug/heapdump when set
	// (example: VATOP_PPROF_ADDR=localhost:6061). Default is off.
	envPprofAddr = "VATOP_PPROF_ADDR"
)

// Version will be set at build time
var Version = "dev"

// Purpose: Report whether stdout is a TTY for UI gating.
// Key aspects: Uses term.IsTerminal on stdout fd.
// Upstream: main UI selection.
// Downstream: term.IsTerminal.
func isStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Purpose: Load configuration from flag/env/default locations.
// Key aspects: An explicit path must load; env and default candidates fall
// through to built-in defaults when the file is missing.
// Upstream: main startup.
// Downstream: config.Load and fs.ErrNotExist.
func loadDashboardConfig(explicit string) (config.Config, string, error) {
	if explicit != "" {
		cfg, err := config.Load(explicit)
		return cfg, explicit, err
	}

	candidates := make([]string, 0, 2)
	if envPath := strings.TrimSpace(os.Getenv(envConfigPath)); envPath != "" {
		candidates = append(candidates, envPath)
	}
	candidates = append(candidates, defaultConfigPath)

	for _, path := range candidates {
		cfg, err := config.Load(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return cfg, path, err
		}
		return cfg, path, nil
	}

	cfg, _ := config.Load("")
	return cfg, "defaults", nil
}

// Purpose: Program entrypoint; wires polling, live ingest, and presentation.
// Key aspects: Selects the console surface, routes logging through the
// fanout, and manages graceful shutdown.
// Upstream: OS process start.
// Downstream: Startup helpers, goroutines, and the pipeline origins.
func main() {
	configPath := flag.String("config", "", "path to YAML config (overrides VATOP_CONFIG_PATH)")
	flag.Parse()

	cfg, configSource, err := loadDashboardConfig(strings.TrimSpace(*configPath))
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	fanout, logErr := setupLogging(cfg.Logging, os.Stdout)
	fanout.SetDeduper(newFetchLogDeduper(defaultFetchLogDedupeWindow, defaultFetchLogDedupeMaxKeys))
	defer fanout.Close()
	// The fanout stamps every line itself; disable the default log prefixes.
	log.SetFlags(0)
	log.SetOutput(fanout)
	if logErr != nil {
		log.Printf("Warning: file logging disabled: %v", logErr)
	}
	log.Printf("Loaded configuration from %s", configSource)

	renderAllowed := isStdoutTTY()

	quitRequests := make(chan struct{}, 1)
	onQuit := func() {
		select {
		case quitRequests <- struct{}{}:
		default:
		}
	}

	var surface ui.Surface
	switch cfg.UI.Mode {
	case "headless":
		log.Printf("UI disabled (mode=headless)")
	case "tview":
		if !renderAllowed {
			log.Printf("UI disabled (tview requires an interactive console)")
		} else if dash := ui.NewDashboard(cfg.UI, cfg.Dashboard.Name, onQuit, true); dash != nil {
			surface = dash
		}
	case "ansi":
		if !renderAllowed {
			log.Printf("UI disabled (ansi renderer requires an interactive console)")
		} else {
			surface = ui.NewANSIConsole(cfg.UI, renderAllowed)
		}
	default:
		log.Printf("UI mode %q not recognized; defaulting to headless", cfg.UI.Mode)
	}

	if surface != nil {
		surface.WaitReady()
		defer surface.Stop()
		// Keep the file sink attached by swapping only the console side of
		// the fanout onto the system pane.
		fanout.SetConsoleSink(surface.SystemWriter(), true)
		log.Printf("Configuration loaded for %s", cfg.Dashboard.Name)
	} else {
		cfg.Print()
	}

	log.Printf("Video pipeline dashboard v%s starting...", Version)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracker := stats.NewTracker()
	store := viewstate.NewStore()

	client := pipeline.NewClient(cfg.API.BaseURL, time.Duration(cfg.API.RequestTimeoutSec)*time.Second)
	poller := newSnapshotPoller(client, store, tracker,
		time.Duration(cfg.API.PollIntervalSec)*time.Second,
		time.Duration(cfg.API.RequestTimeoutSec)*time.Second,
		cfg.API.DetectionsLimit)
	poller.Start(ctx)

	channel := live.NewChannel(live.Config{
		URL:              cfg.Live.URL,
		HandshakeTimeout: time.Duration(cfg.Live.HandshakeTimeoutSec) * time.Second,
		MinReconnect:     time.Duration(cfg.Live.MinReconnectSec) * time.Second,
		MaxReconnect:     time.Duration(cfg.Live.MaxReconnectSec) * time.Second,
	}, store, tracker, log.Default())
	channel.OnDetection(func(d live.Detection) {
		line := ui.FeedLine(d)
		if surface != nil {
			surface.AppendFeed(line)
		}
		fanout.WriteFileOnlyLine("live: detection "+line, time.Now().UTC())
	})
	channel.Start(ctx)

	session := newSessionStats(tracker)
	startSessionStats(ctx, session, sessionStatsInterval, fanout)
	fanout.SetRotateHook(func(prevDate time.Time, prevPath, newPath string) {
		now := time.Now().UTC()
		fanout.WriteFileOnlyLine(fmt.Sprintf("Log rotated from %s", filepath.Base(prevPath)), now)
		for _, line := range session.Lines() {
			fanout.WriteFileOnlyLine("Session: "+line, now)
		}
	})

	go runRenderLoop(ctx, store, surface, tracker, session, cfg.Dashboard.Name)
	startSourceHealthMonitor(ctx, []sourceHealth{
		pollHealthSource("api", poller),
		liveHealthSource("live", channel, store),
	})

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Println("Dashboard is running. Press Ctrl+C to stop.")
	log.Printf("Polling %s every %ds...", cfg.API.BaseURL, cfg.API.PollIntervalSec)
	log.Printf("Live updates from %s...", cfg.Live.URL)
	log.Println("Architecture: poll + live -> merge store -> console surface")
	log.Println("---")
	maybeStartHeapLogger()
	maybeStartDiagServer()

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
	case <-quitRequests:
		log.Printf("Quit requested from dashboard")
	}
	log.Println("Shutting down gracefully...")

	poller.Stop()
	channel.Stop()
	cancel()

	log.Println("Dashboard stopped")
}

// maybeStartHeapLogger starts periodic heap logging when VATOP_HEAP_LOG_INTERVAL
// is set (e.g., "60s"). Defaults to disabled when the variable is empty or invalid.
// Purpose: Optionally start a periodic heap profile logger.
// Key aspects: Controlled by environment variables.
// Upstream: main startup.
// Downstream: runtime.ReadMemStats and time.NewTicker.
func maybeStartHeapLogger() {
	intervalStr := strings.TrimSpace(os.Getenv(envHeapLogInterval))
	if intervalStr == "" {
		return
	}
	interval, err := time.ParseDuration(intervalStr)
	if err != nil || interval <= 0 {
		log.Printf("Heap logger disabled (invalid %s=%q)", envHeapLogInterval, intervalStr)
		return
	}
	ticker := time.NewTicker(interval)
	// Purpose: Emit periodic heap stats to the log.
	// Key aspects: Runs on ticker cadence until process exit.
	// Upstream: maybeStartHeapLogger.
	// Downstream: runtime.ReadMemStats and log.Printf.
	go func() {
		log.Printf("Heap logger enabled (every %s)", interval)
		for range ticker.C {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			log.Printf("Heap: alloc=%.1f MB sys=%.1f MB objects=%d gc=%d next_gc=%.1f MB",
				bytesToMB(m.HeapAlloc),
				bytesToMB(m.Sys),
				m.HeapObjects,
				m.NumGC,
				bytesToMB(m.NextGC))
		}
	}()
}

// maybeStartDiagServer exposes /debug/pprof/* and /debug/heapdump when
// VATOP_PPROF_ADDR is set (example: VATOP_PPROF_ADDR=localhost:6061).
// Purpose: Optionally start the pprof/diagnostic HTTP server.
// Key aspects: Reads env vars and starts http server in background.
// Upstream: main startup.
// Downstream: http.ListenAndServe and net/http/pprof.
func maybeStartDiagServer() {
	addr := strings.TrimSpace(os.Getenv(envPprofAddr))
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	// Purpose: Serve a heap dump endpoint that writes a pprof file to disk.
	// Key aspects: Creates diagnostics dir, forces GC, and writes heap profile.
	// Upstream: HTTP /debug/heapdump request.
	// Downstream: os.MkdirAll, os.Create, pprof.WriteHeapProfile.
	mux.HandleFunc("/debug/heapdump", func(w http.ResponseWriter, r *http.Request) {
		ts := time.Now().UTC().Format("2006-01-02T15-04-05Z")
		dir := filepath.Join("logs", "diagnostics")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			http.Error(w, fmt.Sprintf("mkdir diagnostics: %v", err), http.StatusInternalServerError)
			return
		}
		path := filepath.Join(dir, fmt.Sprintf("heap-%s.pprof", ts))
		f, err := os.Create(path)
		if err != nil {
			http.Error(w, fmt.Sprintf("create heap dump: %v", err), http.StatusInternalServerError)
			return
		}
		defer f.Close()
		runtime.GC() // collect latest data
		if err := pprof.WriteHeapProfile(f); err != nil {
			http.Error(w, fmt.Sprintf("write heap profile: %v", err), http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, "heap profile written to %s\n", path)
	})
	mux.Handle("/debug/pprof/", http.HandlerFunc(httppprof.Index))
	mux.Handle("/debug/pprof/cmdline", http.HandlerFunc(httppprof.Cmdline))
	mux.Handle("/debug/pprof/profile", http.HandlerFunc(httppprof.Profile))
	mux.Handle("/debug/pprof/symbol", http.HandlerFunc(httppprof.Symbol))
	mux.Handle("/debug/pprof/trace", http.HandlerFunc(httppprof.Trace))

	// Purpose: Run the diagnostics HTTP server.
	// Key aspects: Logs startup and reports server errors.
	// Upstream: maybeStartDiagServer.
	// Downstream: http.ListenAndServe.
	go func() {
		log.Printf("Diagnostics server listening on %s (pprof + /debug/heapdump)", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("Diagnostics server error: %v", err)
		}
	}()
}
