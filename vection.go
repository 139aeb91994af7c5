package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"reflect"
	"sync"
	"syscall"
	"time"

	"vectionlab.net/vection/config"
	"vectionlab.net/vection/datalog"
	"vectionlab.net/vection/host"
	"vectionlab.net/vection/logging"
	"vectionlab.net/vection/monitor"
	"vectionlab.net/vection/sensor"
	"vectionlab.net/vection/session"
)

var (
	configFile  = flag.String("config", config.CONFILE, "path to the YAML configuration file")
	monitorMode = flag.Bool("monitor", false, "show the terminal monitor")
	simulate    = flag.Bool("simulate", false, "read the simulated sensor instead of the serial port")
	participant = flag.String("participant", "", "override Session.Participant")
	trialNumber = flag.Int("trial", -1, "override Session.TrialNumber")
)

func main() {
	flag.Parse()

	cfg, err := config.ReadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logCfg := cfg.Logging.Plain
	if *monitorMode {
		logCfg = cfg.Logging.Monitor
	}
	if err := logging.Init(*monitorMode, logCfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error initialising logging: %v\n", err)
		os.Exit(1)
	}

	ossignal := make(chan os.Signal, 1)
	signal.Notify(ossignal, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	app := NewApp(Options{
		ConfigFile:  *configFile,
		Monitor:     *monitorMode,
		Simulate:    *simulate,
		Participant: *participant,
		TrialNumber: *trialNumber,
	}, ossignal)
	err = app.Run(context.Background())

	if cerr := logging.Close(); cerr != nil {
		fmt.Fprintf(os.Stderr, "Error closing log: %v\n", cerr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Options are the command line settings that survive a reload.
type Options struct {
	ConfigFile  string
	Monitor     bool
	Simulate    bool
	Participant string
	TrialNumber int // negative keeps the configured value
}

// configDebounce collapses the burst of events an editor save produces.
const configDebounce = 250 * time.Millisecond

// outcome says why a session stopped.
type outcome int

const (
	finished outcome = iota
	reloadRequested
	interrupted
)

// App runs sessions one after the other. An explicit reload (SIGHUP or
// the monitor's r key) ends the current session and starts a new one
// from the re-read config. A changed config file is queued and starts a
// new session once the running one has finished. Otherwise the end of a
// session or an interrupt ends the program.
type App struct {
	opts     Options
	ossignal chan os.Signal
	hold     *host.HoldInput
	mon      *monitor.Monitor
	now      func() time.Time
	saved    []string

	mu      sync.Mutex // guards latest and pending
	latest  *config.Config
	pending *config.Config
}

func NewApp(opts Options, ossignal chan os.Signal) *App {
	return &App{
		opts:     opts,
		ossignal: ossignal,
		now:      time.Now,
	}
}

// Saved lists the data log files written so far.
func (a *App) Saved() []string {
	return a.saved
}

// Run blocks until the program should exit.
func (a *App) Run(ctx context.Context) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	a.use(cfg)

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		slog.Info("Graceful shutdown complete")
	}()

	a.hold = host.NewHoldInput(cfg.Host.ResponseHold)

	if a.opts.Monitor {
		a.mon = monitor.New(a.ossignal, a.hold)
		stopMonitor := make(chan struct{})
		wg.Add(1)
		go a.mon.Start(stopMonitor, &wg)
		defer close(stopMonitor)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := config.Watch(ctx, a.opts.ConfigFile, configDebounce, a.configChanged); err != nil {
			slog.Error("Config watcher stopped", "error", err)
		}
	}()

	if cfg.Web.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.serveWeb(ctx, cfg.Web.Address)
		}()
	}

	for {
		why, err := a.runSession(ctx, cfg)
		if err != nil {
			return err
		}

		switch why {
		case reloadRequested:
			slog.Info("Reloading configuration", "file", a.opts.ConfigFile)
			next, err := a.loadConfig()
			if err != nil {
				slog.Error("Reload failed, keeping previous configuration", "error", err)
				next = cfg
			}
			cfg = next
		case finished:
			next := a.takePending()
			if next == nil {
				return nil
			}
			slog.Info("Starting next session with the changed configuration")
			cfg = next
		default:
			return nil
		}

		a.use(cfg)
		logCfg := cfg.Logging.Plain
		if a.opts.Monitor {
			logCfg = cfg.Logging.Monitor
		}
		logging.SetLevel(logCfg.Level)
	}
}

func (a *App) loadConfig() (*config.Config, error) {
	cfg, err := config.ReadConfig(a.opts.ConfigFile)
	if err != nil {
		return nil, err
	}
	if a.opts.Simulate {
		cfg.Sensor.Enabled = true
		cfg.Sensor.Simulate = true
	}
	if a.opts.Participant != "" {
		cfg.Session.Participant = a.opts.Participant
	}
	if a.opts.TrialNumber >= 0 {
		cfg.Session.TrialNumber = a.opts.TrialNumber
	}
	return cfg, nil
}

// use makes cfg the configuration of the next session and drops
// whatever change was queued before.
func (a *App) use(cfg *config.Config) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.latest = cfg
	a.pending = nil
}

func (a *App) takePending() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	next := a.pending
	a.pending = nil
	return next
}

// configChanged runs after the config file was written. Only a parsed
// configuration that differs from the latest known one is queued; the
// running session is never touched.
func (a *App) configChanged() {
	next, err := a.loadConfig()
	if err != nil {
		slog.Error("Ignoring invalid config file change", "error", err)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if reflect.DeepEqual(next, a.latest) {
		slog.Debug("Config file written without changes", "file", a.opts.ConfigFile)
		return
	}
	a.latest = next
	a.pending = next
	slog.Info("Config changed, it applies to the next session", "file", a.opts.ConfigFile)
}

// runSession runs one session until it finishes by itself, ctx is done
// or a signal arrives. The session's log is saved in every case.
func (a *App) runSession(ctx context.Context, cfg *config.Config) (outcome, error) {
	source, status := a.openSensor(cfg.Sensor)

	engine, err := session.New(cfg.Session, source)
	if err != nil {
		if s, ok := source.(session.Stopper); ok {
			s.Stop()
		}
		return interrupted, err
	}

	inputs := host.AnyInput{a.hold}
	if cfg.Host.ResponseGPIO > 0 {
		button, err := host.OpenGPIOButton(cfg.Host.ResponseGPIO)
		if err != nil {
			slog.Warn("Response button unavailable, using keyboard only", "gpio", cfg.Host.ResponseGPIO, "error", err)
		} else {
			defer func() {
				if err := button.Close(); err != nil {
					slog.Error("Error closing response button", "error", err)
				}
			}()
			inputs = append(inputs, button)
		}
	}

	runner := host.NewRunner(cfg.Host, engine, inputs)

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup
	if a.mon != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.mon.Follow(sessionCtx, cfg.Session, runner.Snapshots(), status)
		}()
	}

	slog.Info("Session started", "pattern", cfg.Session.Pattern, "direction", cfg.Session.Direction,
		"participant", cfg.Session.Participant, "trial", cfg.Session.TrialNumber)

	done := make(chan error, 1)
	go func() { done <- runner.Run(sessionCtx) }()

	why := interrupted
	select {
	case err = <-done:
		if err == nil {
			why = finished
			slog.Info("Session finished", "ticks", engine.Ticks())
		}
	case sig := <-a.ossignal:
		slog.Info("Received signal", "signal", sig)
		if sig == syscall.SIGHUP {
			why = reloadRequested
		}
		cancel()
		<-done
	case <-ctx.Done():
		cancel()
		<-done
	}
	cancel()
	wg.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	engine.Shutdown()
	a.save(engine, cfg)
	return why, err
}

// openSensor starts the sensor channel when enabled. An unavailable port
// is not fatal: the session then runs on the configured default value.
// status is nil unless a channel is running.
func (a *App) openSensor(cfg config.SensorConfig) (source session.SensorSource, status monitor.SensorStatus) {
	if !cfg.Enabled {
		return session.ConstantSensor(1), nil
	}

	ch := sensor.NewChannel(cfg, nil)
	if err := ch.Start(); err != nil {
		if errors.Is(err, sensor.ErrTransportUnavailable) {
			slog.Warn("Sensor unavailable, using default value", "value", cfg.DefaultValue, "error", err)
		} else {
			slog.Error("Can't start sensor channel", "error", err)
		}
		return session.ConstantSensor(cfg.DefaultValue), nil
	}
	return ch, ch
}

func (a *App) save(engine *session.Engine, cfg *config.Config) {
	log := engine.Log()
	if log.Len() == 0 {
		slog.Info("No rows logged, nothing to save")
		return
	}
	name := datalog.FileName(a.now(), cfg.Session, cfg.Host.TickRate)
	path, err := log.Save(cfg.Session.OutputDir, name)
	if err != nil {
		slog.Error("Can't save data log", "dir", cfg.Session.OutputDir, "error", err)
		return
	}
	a.saved = append(a.saved, path)
	slog.Info("Data log saved", "file", path, "rows", log.Len())
}

func (a *App) serveWeb(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/config", config.ConfigHandler(a.opts.ConfigFile))

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		slog.Info("Starting web server", "address", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Web server failed", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down web server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Web server shutdown error", "error", err)
		if err := server.Close(); err != nil {
			slog.Error("Web server force close error", "error", err)
		}
	}
}

// signal must never block the caller; one pending signal is enough.
func (a *App) signal(sig os.Signal) {
	select {
	case a.ossignal <- sig:
	default:
	}
}

// Local Variables:
// compile-command: "go build"
// End:
