// Command kioskd is the unattended kiosk controller.
//
// It owns the CAN link, runs the listener and responder workers, and drives
// the single-threaded presentation loop. Remote panels steer playback with
// control frames; the controller answers with periodic status frames.
//
// Usage:
//
//	kioskd [flags]
//
// Flags:
//
//	-config string   Configuration file path (default "kioskd.yaml")
//	-version         Print version and exit
//
// Signals:
//
//	SIGINT, SIGTERM  Orderly shutdown
//	SIGHUP           Restart: tear down the bus side and reinitialize
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/kioskbus/kioskbus-go/pkg/buslog"
	"github.com/kioskbus/kioskbus-go/pkg/canbus"
	"github.com/kioskbus/kioskbus-go/pkg/config"
	"github.com/kioskbus/kioskbus-go/pkg/discovery"
	"github.com/kioskbus/kioskbus-go/pkg/dispatch"
	"github.com/kioskbus/kioskbus-go/pkg/filter"
	"github.com/kioskbus/kioskbus-go/pkg/lifecycle"
	"github.com/kioskbus/kioskbus-go/pkg/link"
	"github.com/kioskbus/kioskbus-go/pkg/presentation"
	"github.com/kioskbus/kioskbus-go/pkg/version"
	"github.com/kioskbus/kioskbus-go/pkg/worker"
)

func main() {
	configPath := flag.String("config", "kioskd.yaml", "configuration file path")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "kioskd:", err)
		os.Exit(1)
	}
}

// stopFunc adapts a lookup to the lifecycle worker interface. The listener
// and responder are rebuilt on restart, so teardown resolves the current one.
type stopFunc func() error

func (f stopFunc) Stop() error { return f() }

// app wires the controller together. The listener, responder and transport
// are replaced on restart; everything else lives for the process.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	busLog  buslog.Logger
	session string

	deviceID uint32
	rules    []filter.Rule
	table    *dispatch.HandlerTable

	queue     *dispatch.Queue
	loop      *presentation.Loop
	countdown *presentation.Countdown
	hint      *presentation.HintState
	playback  *presentation.Playback

	link       *link.Manager
	orch       *lifecycle.Orchestrator
	advertiser discovery.Advertiser

	countdownSeconds int

	mu        sync.Mutex
	listener  *worker.Listener
	responder *worker.Responder
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	level, err := cfg.Logging.SlogLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	busLoggers := []buslog.Logger{buslog.NewSlogAdapter(logger)}
	if cfg.Logging.BusLogFile != "" {
		fileLog, err := buslog.NewFileLogger(cfg.Logging.BusLogFile)
		if err != nil {
			return err
		}
		defer fileLog.Close()
		busLoggers = append(busLoggers, fileLog)
	}
	busLog := buslog.NewMultiLogger(busLoggers...)

	session := uuid.NewString()
	logger.Info("kioskd starting", "version", version.String(), "session", session)

	a, err := newApp(cfg, logger, busLog, session)
	if err != nil {
		return err
	}

	if err := a.startBus(context.Background()); err != nil {
		return err
	}

	if err := a.advertiser.Start(a.maintenanceInfo()); err != nil {
		logger.Warn("maintenance announcement failed", "err", err)
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)
	go func() {
		for sig := range sigCh {
			a.handleSignal(sig)
		}
	}()

	// Blocks until the shutdown teardown posts its terminal action.
	a.loop.Run()

	logger.Info("kioskd stopped", "session", session)
	return nil
}

// newApp builds the presentation side and the handler table. The bus side
// comes up separately in startBus.
func newApp(cfg *config.Config, logger *slog.Logger, busLog buslog.Logger, session string) (*app, error) {
	deviceID, err := cfg.CAN.DeviceIDValue()
	if err != nil {
		return nil, err
	}
	rules, err := cfg.CAN.Rules()
	if err != nil {
		return nil, err
	}
	folders, err := cfg.Presentation.FolderMap()
	if err != nil {
		return nil, err
	}
	defaultFolder, err := cfg.Presentation.DefaultFolderValue()
	if err != nil {
		return nil, err
	}
	hints, err := cfg.Presentation.HintMap()
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		busLog:   busLog,
		session:  session,
		deviceID: deviceID,
		rules:    rules,
	}

	a.queue = dispatch.NewQueue(logger)
	a.loop = presentation.NewLoop(a.queue, cfg.Presentation.TickInterval.Std(), logger)

	countdownDuration := cfg.Presentation.CountdownDuration.Std()
	if countdownDuration <= 0 {
		countdownDuration = presentation.DefaultCountdownDuration
	}
	a.countdownSeconds = int(countdownDuration / time.Second)
	a.countdown = presentation.NewCountdown(countdownDuration, a.onCountdownExpired, logger)
	a.loop.OnTick(a.countdown.Tick)

	a.hint = presentation.NewHintState(hints, cfg.Presentation.HintDuration.Std(), a.countdown, a.loop, logger)

	surface := presentation.NewHeadlessSurface(cfg.Presentation.NominalVideoDuration.Std(), func() {
		a.loop.Post("video-ended", a.playback.NotifyEnded)
	}, logger)
	a.playback = presentation.NewPlayback(surface, a.loop, presentation.PlaybackConfig{
		Folders:       folders,
		DefaultFolder: defaultFolder,
		MaxVideo:      cfg.Presentation.MaxVideo,
		Chain:         cfg.Presentation.Chain,
		ChainDelay:    cfg.Presentation.ChainDelay.Std(),
		Logger:        logger,
	})

	a.table = dispatch.NewHandlerTable(map[dispatch.MessageKind]dispatch.HandlerFunc{
		dispatch.KindControl: a.handleControl,
		dispatch.KindTimer:   a.handleTimer,
		dispatch.KindHint:    a.handleHint,
	})

	hardwareFilters, err := cfg.CAN.Filters()
	if err != nil {
		return nil, err
	}
	a.link = link.NewManager(link.Config{
		Channel:         cfg.CAN.Channel,
		Bitrate:         cfg.CAN.Bitrate,
		HardwareFilters: hardwareFilters,
		UpRetries:       cfg.Manager.UpRetries,
		UpRetryDelay:    cfg.Manager.UpRetryDelay.Std(),
		ErrorCooldown:   cfg.Manager.ErrorCooldown.Std(),
		Stabilization:   cfg.Manager.Stabilization.Std(),
		SessionID:       session,
		Logger:          logger,
		BusLogger:       busLog,
	}, nil, nil)

	a.orch = lifecycle.New(lifecycle.Deps{
		Queue:      a.queue,
		Listener:   stopFunc(a.stopListener),
		Responder:  stopFunc(a.stopResponder),
		Link:       a.link,
		StopTimers: func() { a.countdown.Stop(); a.hint.Stop() },
		Poster:     a.loop,
	}, lifecycle.Config{
		QueueStopTimeout: cfg.Manager.QueueStopTimeout.Std(),
		SessionID:        session,
		Logger:           logger,
		BusLogger:        busLog,
	})

	if cfg.Discovery.Enabled {
		a.advertiser = discovery.NewMDNSAdvertiser(discovery.AdvertiserConfig{
			Instance: cfg.Discovery.Instance,
			Port:     cfg.Discovery.Port,
			Logger:   logger,
		})
	} else {
		a.advertiser = discovery.NoopAdvertiser{}
	}

	return a, nil
}

// startBus brings the link up and starts a fresh listener/responder pair over
// a new transport. Called at boot and again from the restart reinit.
func (a *app) startBus(ctx context.Context) error {
	if err := a.link.Open(ctx); err != nil {
		return err
	}
	bus, err := a.link.Bus()
	if err != nil {
		return err
	}

	transport := canbus.NewTransport(bus, canbus.TransportConfig{
		DeviceID:  a.deviceID,
		Channel:   a.cfg.CAN.Channel,
		SessionID: a.session,
		BusLogger: a.busLog,
	})

	listener := worker.NewListener(transport, worker.ListenerConfig{
		PollInterval:    a.cfg.Manager.ListenerPollInterval.Std(),
		ReceiveTimeout:  a.cfg.Manager.ReceiveTimeout.Std(),
		FailureCap:      a.cfg.Manager.FailureCap,
		StopJoinTimeout: a.cfg.Manager.StopJoinTimeout.Std(),
		SessionID:       a.session,
		Logger:          a.logger,
		BusLogger:       a.busLog,
	})
	responder := worker.NewResponder(transport, worker.ResponderConfig{
		InitialDelay:    a.cfg.Manager.ResponderInitialDelay.Std(),
		Interval:        a.cfg.Manager.ResponderInterval.Std(),
		PollInterval:    a.cfg.Manager.ResponderPollInterval.Std(),
		FailureCap:      a.cfg.Manager.FailureCap,
		StopJoinTimeout: a.cfg.Manager.StopJoinTimeout.Std(),
		Retry: worker.RetryPolicy{
			MaxAttempts: a.cfg.Manager.SendMaxRetries,
			Delay:       a.cfg.Manager.SendRetryDelay.Std(),
		},
		Status:    a.playback.Status,
		Progress:  a.playback.Progress,
		SessionID: a.session,
		Logger:    a.logger,
		BusLogger: a.busLog,
	})

	if err := listener.Start(a.rules, a.table); err != nil {
		return err
	}
	if err := responder.Start(); err != nil {
		if stopErr := listener.Stop(); stopErr != nil {
			a.logger.Warn("listener did not stop cleanly", "err", stopErr)
		}
		return err
	}

	a.mu.Lock()
	a.listener = listener
	a.responder = responder
	a.mu.Unlock()
	return nil
}

func (a *app) stopListener() error {
	a.mu.Lock()
	l := a.listener
	a.mu.Unlock()
	if l == nil {
		return nil
	}
	return l.Stop()
}

func (a *app) stopResponder() error {
	a.mu.Lock()
	r := a.responder
	a.mu.Unlock()
	if r == nil {
		return nil
	}
	return r.Stop()
}

func (a *app) currentResponder() *worker.Responder {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.responder
}

// handleControl runs on the listener goroutine: queue the presentation work
// and answer out of schedule.
func (a *app) handleControl(_ uint32, data [canbus.PayloadSize]byte) {
	a.queue.Enqueue("control", func() { a.playback.HandleControl(data) })
	if r := a.currentResponder(); r != nil {
		r.TriggerImmediate()
	}
}

func (a *app) handleTimer(_ uint32, data [canbus.PayloadSize]byte) {
	seconds := int(data[2])<<8 | int(data[3])
	a.queue.Enqueue("timer", func() { a.countdown.SetFromBus(seconds) })
}

func (a *app) handleHint(_ uint32, data [canbus.PayloadSize]byte) {
	key := data[1]
	a.queue.Enqueue("hint", func() { a.hint.ShowByKey(key) })
}

// onCountdownExpired runs on the presentation loop via the countdown tick.
func (a *app) onCountdownExpired() {
	a.logger.Info("countdown expired, stopping playback")
	a.playback.StopPlayback()
	if r := a.currentResponder(); r != nil {
		r.TriggerImmediate()
	}
}

func (a *app) maintenanceInfo() discovery.MaintenanceInfo {
	return discovery.MaintenanceInfo{
		SessionID: a.session,
		Version:   version.Version,
		DeviceID:  a.deviceID,
		LinkState: a.link.State().String(),
	}
}

// handleSignal converts one OS signal into a single enqueued command, so the
// teardown starts from the presentation loop like any other work. Repeats of
// a signal while teardown is pending enqueue commands the orchestrator's flag
// turns into no-ops.
func (a *app) handleSignal(sig os.Signal) {
	switch sig {
	case syscall.SIGHUP:
		a.logger.Info("restart requested", "signal", sig.String())
		a.queue.Enqueue("restart", a.requestRestart)
	default:
		a.logger.Info("shutdown requested", "signal", sig.String())
		a.queue.Enqueue("shutdown", a.requestShutdown)
	}
}

// requestShutdown starts the shutdown teardown; the terminal action stops the
// announcement and the loop itself.
func (a *app) requestShutdown() {
	a.orch.RequestShutdown(func() {
		a.advertiser.Stop()
		a.loop.Stop()
	})
}

// requestRestart tears the bus side down and reinitializes it. The loop and
// the presentation state survive; a reinit failure falls through to a stop.
func (a *app) requestRestart() {
	a.orch.RequestRestart(func() {
		a.queue.Resume()
		if err := a.startBus(context.Background()); err != nil {
			a.logger.Error("reinitialization failed, stopping", "err", err)
			a.advertiser.Stop()
			a.loop.Stop()
			return
		}
		a.countdown.Restart(a.countdownSeconds)
		if err := a.advertiser.Update(a.maintenanceInfo()); err != nil {
			a.logger.Warn("announcement update failed", "err", err)
		}
		a.logger.Info("reinitialization complete")
	})
}
