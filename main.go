// vigil is the monitoring and persistence core of a desktop companion
// application: it watches the app's subsystems, persists their state with
// crash recovery, and serves health over a TUI, a console report, or MCP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"vigil/internal/actions"
	"vigil/internal/advisor"
	"vigil/internal/appstate"
	"vigil/internal/archive"
	"vigil/internal/detector"
	"vigil/internal/diagnostics"
	"vigil/internal/logging"
	"vigil/internal/mcpserver"
	"vigil/internal/metrics"
	"vigil/internal/monitor"
	"vigil/internal/persist"
	"vigil/ui/console"
	"vigil/ui/tui"
)

func main() {
	var (
		dataDir  = flag.String("data-dir", defaultDataDir(), "directory for state, logs, and the archive database")
		mcpMode  = flag.Bool("mcp", false, "serve MCP on stdio instead of the TUI")
		headless = flag.Bool("headless", false, "print a one-shot health report and exit")
	)
	flag.Parse()

	if err := run(*dataDir, *mcpMode, *headless); err != nil {
		fmt.Fprintf(os.Stderr, "vigil: %v\n", err)
		os.Exit(1)
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "vigil")
	}
	return ".vigil"
}

func run(dataDir string, mcpMode, headless bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	log, err := logging.New(logging.DefaultConfig(filepath.Join(dataDir, "logs")))
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer log.Close()

	store := appstate.NewStore()

	// Persistence comes up first so crash detection and restore happen
	// before anything mutates the state.
	eng, err := persist.New(persist.DefaultConfig(filepath.Join(dataDir, "state")), store, log)
	if err != nil {
		return fmt.Errorf("init persistence: %w", err)
	}

	if rec, err := eng.ConsumeCrashRecord(); err == nil {
		log.Warn("recovering from previous crash", "crashedAt", rec.Timestamp)
	} else if !errors.Is(err, persist.ErrNotFound) {
		log.Warn("could not read crash record", "error", err.Error())
	}

	if _, err := eng.Restore(ctx); err != nil {
		switch {
		case errors.Is(err, persist.ErrNotFound):
			log.Info("no persisted state, starting fresh")
		case errors.Is(err, persist.ErrRestoreFailed):
			// Corrupt canonical file and backups. Keep them on disk for
			// inspection and continue with empty state, loudly.
			log.Error("persistence", "all persisted state unusable, starting with empty state", "error", err.Error())
			log.Audit("state_restore_failed", "error", err.Error())
		default:
			return fmt.Errorf("restore state: %w", err)
		}
	}

	settings, err := persist.OpenConfigStore(filepath.Join(dataDir, "state"))
	if err != nil {
		return fmt.Errorf("open settings: %w", err)
	}

	collector, err := metrics.NewCollector(metrics.DefaultConfig())
	if err != nil {
		return fmt.Errorf("init metrics collector: %w", err)
	}
	mon, err := monitor.New(metrics.DefaultConfig(), collector, log)
	if err != nil {
		return fmt.Errorf("init monitor: %w", err)
	}

	registry := actions.NewRegistry()
	registerDefaultActions(registry, store, log)

	det, err := detector.New(detector.DefaultConfig(), store, registry, log, mon.Counters())
	if err != nil {
		return fmt.Errorf("init detector: %w", err)
	}
	for _, rule := range detector.DefaultRules() {
		if err := det.Register(rule); err != nil {
			return fmt.Errorf("register rule: %w", err)
		}
	}

	db, err := archive.NewFileDB(filepath.Join(dataDir, "archive.db"))
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer db.Close()
	repo := archive.NewRepo(db.DB())
	if err := repo.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate archive: %w", err)
	}
	recorder, err := archive.NewRecorder(repo, mon, log)
	if err != nil {
		return fmt.Errorf("init recorder: %w", err)
	}
	det.AddObserver(recorder)

	gen, err := diagnostics.NewGenerator(filepath.Join(dataDir, "diagnostics"), mon, mon.History(), store, log)
	if err != nil {
		return fmt.Errorf("init diagnostics: %w", err)
	}

	var adv *advisor.Advisor
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		adv, err = advisor.New(ctx, key, os.Getenv("GEMINI_MODEL"), log)
		if err != nil {
			log.Warn("advisor unavailable", "error", err.Error())
		} else {
			defer adv.Close()
		}
	}

	// Crash path: persist a crash record and emergency snapshot, then
	// re-panic so the exit status and stack stay intact.
	defer func() {
		if r := recover(); r != nil {
			eng.CaptureCrash(r)
			panic(r)
		}
	}()

	// Prime the history so the first health report has data.
	if _, err := mon.CollectOnce(ctx); err != nil {
		log.Warn("initial metrics collection failed", "error", err.Error())
	}

	if headless {
		det.Evaluate(ctx)
		report, snap, totals := mon.Current(ctx)
		console.Print(os.Stdout, report, snap, totals, det.ActiveIssues())
		eng.Shutdown(context.Background())
		return settings.Flush()
	}

	if err := mon.Start(ctx); err != nil {
		return fmt.Errorf("start monitor: %w", err)
	}
	defer mon.Stop()
	if err := det.Start(ctx); err != nil {
		return fmt.Errorf("start detector: %w", err)
	}
	defer det.Stop()
	if err := recorder.Start(ctx); err != nil {
		return fmt.Errorf("start recorder: %w", err)
	}
	defer recorder.Stop()
	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("start persistence: %w", err)
	}
	defer func() {
		eng.Shutdown(context.Background())
		if err := settings.Flush(); err != nil {
			log.Warn("failed to flush settings", "error", err.Error())
		}
	}()

	if mcpMode {
		srv, err := mcpserver.NewServer(mcpserver.DefaultConfig(), mon, store, det, repo, gen, adv, log)
		if err != nil {
			return fmt.Errorf("init mcp server: %w", err)
		}
		if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	}

	return tui.Start(tui.Sources{
		Monitor: mon,
		Issues:  det.ActiveIssues,
		Log:     log,
	})
}

// registerDefaultActions wires the built-in recovery actions. The host
// application replaces these with real subsystem handlers; the defaults
// reset the tracked state optimistically and log the attempt.
func registerDefaultActions(reg *actions.Registry, store *appstate.Store, log *logging.Logger) {
	reg.Register("reconnect-camera", func(ctx context.Context, params map[string]any) actions.Result {
		store.Update(func(st *appstate.State) {
			st.Camera.DeviceConnected = true
		})
		log.Action("reconnect-camera")
		return actions.Result{Success: true, Message: "camera reconnect requested"}
	})
	reg.Register("restart-pipeline", func(ctx context.Context, params map[string]any) actions.Result {
		store.Update(func(st *appstate.State) {
			st.Camera.FPS = 0
		})
		log.Action("restart-pipeline")
		return actions.Result{Success: true, Message: "pipeline restart requested"}
	})
	reg.Register("reconnect-obs", func(ctx context.Context, params map[string]any) actions.Result {
		store.Update(func(st *appstate.State) {
			st.OBS.ReconnectAttempts = 0
			st.OBS.Connected = true
		})
		log.Action("reconnect-obs")
		return actions.Result{Success: true, Message: "obs reconnect requested"}
	})
	reg.Register("reload-webview", func(ctx context.Context, params map[string]any) actions.Result {
		store.Update(func(st *appstate.State) {
			for id, w := range st.Windows {
				w.Responsive = true
				st.Windows[id] = w
			}
		})
		log.Action("reload-webview")
		return actions.Result{Success: true, Message: "webview reload requested"}
	})
}
