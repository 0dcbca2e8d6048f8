// @title        UPS Trap Gateway API
// @version      1.0
// @description  Alarm status, journal and mute control for the UPS/ATS SNMP trap gateway.
// @BasePath     /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	_ "ups_trap_gateway/docs"
	"ups_trap_gateway/internal/alarms"
	"ups_trap_gateway/internal/audible"
	"ups_trap_gateway/internal/classifier"
	"ups_trap_gateway/internal/config"
	"ups_trap_gateway/internal/dispatch"
	"ups_trap_gateway/internal/handlers"
	"ups_trap_gateway/internal/indicator"
	"ups_trap_gateway/internal/knowledge"
	"ups_trap_gateway/internal/logger"
	"ups_trap_gateway/internal/metrics"
	"ups_trap_gateway/internal/models"
	"ups_trap_gateway/internal/notify"
	"ups_trap_gateway/internal/repository"
	"ups_trap_gateway/internal/repository/db"
	"ups_trap_gateway/internal/server"
	"ups_trap_gateway/internal/service"
	"ups_trap_gateway/internal/trap"
)

const (
	shutdownTimeout = 10 * time.Second
	sweepInterval   = time.Minute
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to config file (default configs/config.yml)")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	log := logger.Get(cfg.Log.Level)
	metrics.Init(nil)

	conn, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()
	repos := repository.NewRepository(conn)

	kb, err := knowledge.Load(cfg.Knowledge.Path)
	if err != nil {
		log.Fatalw("failed to load event table", "err", err)
	}
	log.Infow("event_table_loaded", "events", kb.Len(), "base", kb.Base())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	directory := newDirectory(cfg)
	tracker := alarms.NewTracker()
	indicators := newIndicator(cfg, log)
	beeper, err := newAudible(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to init audible output", "err", err)
	}

	gate := notify.NewGate(
		notify.WithDefaultWindow(cfg.Notify.Cooldown),
		notify.WithChannelWindow(dispatch.ChannelEmail, cfg.EmailCooldown()),
		notify.WithChannelWindow(dispatch.ChannelSMS, cfg.SMSCooldown()),
	)
	dispatchOpts, err := notifyOptions(cfg, log)
	if err != nil {
		log.Fatalw("failed to init notifications", "err", err)
	}
	dispatchOpts = append(dispatchOpts,
		dispatch.WithGate(gate),
		dispatch.WithRecorder(repos.NotificationRepo),
		dispatch.WithDeliveryTimeout(cfg.Notify.Timeout),
		dispatch.WithLogger(log.Channel("dispatch")),
	)

	deps := service.Deps{
		Classifier: classifier.New(kb, classifier.WithDevices(directory), classifier.WithLogger(log)),
		Alarms:     tracker,
		Indicators: indicators,
		SigningKey: cfg.Auth.SigningKey,
		TokenTTL:   cfg.Auth.TokenTTL,
		QueueSize:  cfg.Trap.QueueSize,
		MaxEvents:  cfg.Journal.MaxEvents,
		Log:        log.Channel("ingest"),
	}
	var audibleOut dispatch.Audible
	if beeper != nil {
		audibleOut = beeper
		deps.AudioControl = beeper
	}
	orchestrator := dispatch.New(tracker, indicators, audibleOut, dispatchOpts...)
	deps.Dispatcher = orchestrator
	deps.Resetter = orchestrator

	services := service.NewService(repos, deps)
	if err := services.SeedUsers(cfg.Auth.Users); err != nil {
		log.Fatalw("failed to seed operators", "err", err)
	}
	if !services.Enabled() {
		log.Warnw("api_auth_disabled", "reason", "no auth.users configured")
	}

	var workers sync.WaitGroup

	ingestCtx, stopIngest := context.WithCancel(context.Background())
	workers.Add(1)
	go func() {
		defer workers.Done()
		_ = services.Run(ingestCtx)
	}()

	listenerCtx, stopListener := context.WithCancel(ctx)
	listenerDone := make(chan struct{})
	listener := trap.NewListener(cfg.Trap.Listen, services,
		trap.WithAllowedSources(cfg.Trap.AllowedSources),
		trap.WithCommunity(cfg.Trap.Community),
		trap.WithLogger(log.Channel("trap")),
	)
	go func() {
		defer close(listenerDone)
		if err := listener.Run(listenerCtx); err != nil {
			log.Fatalw("trap listener failed", "err", err)
		}
	}()

	go sweepGate(ctx, gate)

	srv := server.New(cfg.HTTP)
	runHTTPServer(srv, cfg.HTTP.Port, handlers.NewHandler(services, log.Channel("http")), log)

	waitForSignal(log)

	// receivers first, then drain, then outputs
	stopListener()
	<-listenerDone
	stopIngest()
	workers.Wait()
	if err := orchestrator.Close(); err != nil {
		log.Errorw("dispatcher_close_failed", "err", err)
	}
	if err := indicators.Close(); err != nil {
		log.Errorw("indicator_close_failed", "err", err)
	}
	if beeper != nil {
		_ = beeper.Close()
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
	log.Infow("gateway_stopped")
}

func newDirectory(cfg *config.Config) *trap.Directory {
	devices := make(map[string]models.Device, len(cfg.Devices))
	for _, d := range cfg.Devices {
		devices[d.Address] = models.Device{Name: d.Name, Location: d.Location}
	}
	fallback := models.Device{Name: cfg.Trap.DefaultDevice.Name, Location: cfg.Trap.DefaultDevice.Location}
	return trap.NewDirectory(devices, fallback)
}

func newIndicator(cfg *config.Config, log *logger.Logger) *indicator.Controller {
	mapping := make(map[models.Severity]int, len(cfg.Indicator.Channels))
	for name, ch := range cfg.Indicator.Channels {
		mapping[models.SeverityOrInfo(name)] = ch
	}

	var driver indicator.Driver
	switch cfg.Indicator.Driver {
	case "sysfs":
		driver = indicator.NewSysfsDriver(afero.NewOsFs(), cfg.Indicator.SysfsRoot, cfg.Indicator.ActiveHigh)
	default:
		driver = indicator.NewLogDriver(log.Channel("indicator"))
	}
	return indicator.New(driver, mapping,
		indicator.WithBlink(cfg.Indicator.Blink),
		indicator.WithBlinkInterval(cfg.Indicator.BlinkInterval),
		indicator.WithLogger(log.Channel("indicator")),
	)
}

// newAudible returns nil when audible.enabled is false.
func newAudible(ctx context.Context, cfg *config.Config, log *logger.Logger) (*audible.Controller, error) {
	if !cfg.Audible.Enabled {
		return nil, nil
	}
	alog := log.Channel("audible")
	backend, err := audible.SelectBackend(cfg.Audible.Backend, cfg.Audible.Command, alog)
	if err != nil {
		return nil, err
	}
	ctrl := audible.New(backend,
		audible.WithBeepDuration(cfg.Audible.BeepDuration),
		audible.WithMuted(cfg.Audible.Muted),
		audible.WithLogger(alog),
	)
	if cfg.Audible.MuteFile != "" {
		go func() {
			if err := audible.WatchMuteFile(ctx, cfg.Audible.MuteFile, ctrl, alog); err != nil {
				alog.Errorw("mute_file_watch_failed", "path", cfg.Audible.MuteFile, "err", err)
			}
		}()
	}
	return ctrl, nil
}

func notifyOptions(cfg *config.Config, log *logger.Logger) ([]dispatch.Option, error) {
	var opts []dispatch.Option

	if e := cfg.Notify.Email; e.Enabled {
		sender, err := notify.NewSMTPSender(notify.SMTPConfig{
			Server:   e.Server,
			Port:     e.Port,
			UseTLS:   e.UseTLS,
			UseSSL:   e.UseSSL,
			Username: e.Username,
			Password: e.Password,
			From:     e.From,
			FromName: e.FromName,
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, dispatch.WithEmail(sender, e.Recipients))
		log.Infow("email_enabled", "server", e.Server, "recipients", len(e.Recipients), "cooldown", cfg.EmailCooldown())
	}

	if s := cfg.Notify.SMS; s.Enabled {
		sender, err := notify.NewHTTPSMSSender(notify.SMSGatewayConfig{
			APIURL:     s.APIURL,
			Username:   s.Username,
			Password:   s.Password,
			Type:       s.Type,
			ReturnMode: s.ReturnMode,
		}, notify.WithSMSHTTPClient(&http.Client{Timeout: cfg.Notify.Timeout}), notify.WithSMSLogger(log.Channel(dispatch.ChannelSMS)))
		if err != nil {
			return nil, err
		}
		windows, err := cfg.SMSSchedule()
		if err != nil {
			return nil, err
		}
		loc, err := cfg.SMSLocation()
		if err != nil {
			return nil, err
		}
		opts = append(opts, dispatch.WithSMS(sender, notify.NewResolver(s.Recipients, windows, loc)))
		log.Infow("sms_enabled", "windows", len(windows), "recipients", len(s.Recipients), "timezone", loc.String())
	}

	return opts, nil
}

func sweepGate(ctx context.Context, gate *notify.Gate) {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			gate.Sweep(now)
		}
	}
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

func waitForSignal(log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Infow("shutting down gateway...", "signal", sig.String())
}
