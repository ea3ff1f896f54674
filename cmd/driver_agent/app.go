package driveragent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"courier-driver/internal/domain/geo"
	"courier-driver/internal/general/backend"
	"courier-driver/internal/general/config"
	"courier-driver/internal/general/logger"
	"courier-driver/internal/general/rabbitmq"
	"courier-driver/internal/ports"
	"courier-driver/internal/software/confirm"
	"courier-driver/internal/software/dashboard"
	"courier-driver/internal/software/journal"
	"courier-driver/internal/software/lifecycle"
	"courier-driver/internal/software/location"
	"courier-driver/internal/software/notify"
	"courier-driver/internal/software/presence"
	"courier-driver/internal/software/realtime"
	"courier-driver/internal/software/session"
)

const serviceName = "driver-agent"

// Options control one headless agent run.
type Options struct {
	ConfigPath string
	Email      string
	Password   string
	GoOnline   bool
	DeliveryID string      // open this delivery after sign-in
	Route      []geo.Point // simulated GPS route
	Tick       time.Duration
	Steps      int // fixes per route segment

	LocationPermission location.Permission // simulated platform answer; empty means granted
}

// DefaultRoute is a short loop around Place de la Concorde.
var DefaultRoute = []geo.Point{
	{Lat: 48.8656, Lng: 2.3212},
	{Lat: 48.8638, Lng: 2.3135},
	{Lat: 48.8606, Lng: 2.3176},
	{Lat: 48.8625, Lng: 2.3254},
}

// Run wires every component and blocks until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	log := logger.New(serviceName)
	ctx = logger.WithRequestID(ctx, "startup-001")

	// load configuration
	cfg, err := config.LoadFromFile(opts.ConfigPath)
	if err != nil {
		log.Error(ctx, "config_load_failed", "Failed to load config", err, map[string]any{"path": opts.ConfigPath})
		return err
	}

	// persistent state
	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "storage_open_failed", "Failed to open storage", err, map[string]any{"driver": cfg.Storage.Driver})
		return err
	}
	defer closeStore()

	// backend and presentation
	api, err := backend.NewClient(backend.Config{BaseURL: cfg.API.BaseURL, Timeout: cfg.API.Timeout}, log)
	if err != nil {
		return err
	}
	notifier := notify.NewLogNotifier(log)
	nav := notify.NewLogNavigator(log)

	// journal: broker is optional
	var jrnl ports.Journal = journal.Nop{}
	var mqJournal *journal.Journal
	if cfg.RabbitMQ.Enabled {
		rmq, err := rabbitmq.ConnectRabbitMQ(ctx, cfg, log)
		if err != nil {
			log.Error(ctx, "rabbitmq_connection_failed", "Failed to connect to RabbitMQ", err, nil)
			return err
		}
		defer rmq.Close()
		mqJournal = journal.New(log, rabbitmq.NewMQPublisher(rmq, serviceName), serviceName, 0)
		jrnl = mqJournal
	}

	// session is the lifecycle root; the backend reads its token and reports 401s to it
	sessions := session.NewManager(log, store, api, notifier, nav)
	api.SetTokenSource(backend.TokenFunc(sessions.Token))
	api.OnUnauthorized(sessions.HandleUnauthorized)

	// realtime channel follows the session
	channel := realtime.NewChannel(realtime.Config{
		URL:          cfg.Realtime.URL,
		DialTimeout:  cfg.Realtime.DialTimeout,
		WriteTimeout: cfg.Realtime.WriteTimeout,
	}, log)
	sessions.Subscribe(channel.OnSession)

	// location
	route := opts.Route
	if len(route) == 0 {
		route = DefaultRoute
	}
	source, err := location.NewSimulatedSource(route, opts.Tick, opts.Steps)
	if err != nil {
		return err
	}
	defer source.Close()
	if opts.LocationPermission != "" {
		source.SetPermission(opts.LocationPermission)
	}
	tracker := location.NewTracker(source, location.Options{
		HighAccuracy: cfg.Location.HighAccuracy,
		MaximumAge:   cfg.Location.MaximumAge,
		Timeout:      cfg.Location.Timeout,
	}, log)

	// presence
	pres := presence.NewController(log, store, tracker, channel, sessions, notifier, jrnl)
	defer pres.Close()
	sessions.OnBeforeLogout(pres.BeforeLogout)
	channel.Subscribe(pres.Listener())
	if err := pres.Restore(ctx); err != nil {
		log.Warn(ctx, "presence_restore_failed", "Online flag unreadable; starting offline", map[string]any{"error": err.Error()})
	}

	// delivery lifecycle
	lc := lifecycle.NewController(log, api, confirm.NewGate(log), sessions, notifier, nav, jrnl, lifecycle.Config{
		CloseDelay: cfg.Lifecycle.CloseDelay,
	})
	channel.Subscribe(lc.Listener())
	sessions.Subscribe(func(ctx context.Context, s *session.Session) {
		if s == nil {
			lc.Reset(ctx)
		}
	})

	// dashboard
	board := dashboard.NewBoard(log, api, api, sessions, notifier, cfg.Dashboard.StatsInterval)
	channel.Subscribe(board.Listener())
	sessions.Subscribe(board.OnSession)

	// sign in: persisted session first, then credentials
	if err := sessions.Restore(ctx); err != nil {
		log.Warn(ctx, "session_restore_failed", "Persisted session unreadable", map[string]any{"error": err.Error()})
	}
	if sessions.Current() == nil && opts.Email != "" {
		if err := sessions.Login(ctx, session.Credentials{Email: opts.Email, Password: opts.Password}); err != nil {
			return err
		}
	}
	if sessions.Current() == nil {
		return errors.New("no session: pass --email/--password or restore a saved session")
	}

	if opts.GoOnline && !pres.Online() {
		if err := pres.GoOnline(ctx); err != nil {
			log.Warn(ctx, "go_online_failed", "Could not go online", map[string]any{"error": err.Error()})
		}
	}
	if opts.DeliveryID != "" {
		if err := lc.Load(ctx, opts.DeliveryID); err != nil {
			log.Warn(ctx, "delivery_open_failed", "Could not open delivery", map[string]any{"delivery_id": opts.DeliveryID, "error": err.Error()})
		}
	}

	log.Info(ctx, "service_started", fmt.Sprintf("Driver agent running as %s", sessions.Current().UserID()), map[string]any{
		"online": pres.Online(), "realtime": cfg.Realtime.URL, "storage": cfg.Storage.Driver,
	})

	// background work until shutdown
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return board.RunStatsPoller(gctx) })
	if mqJournal != nil {
		g.Go(func() error { return mqJournal.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		// shutdown is not logout: the session and the online flag stay persisted
		shutdownCtx := context.WithoutCancel(ctx)
		tracker.Stop(shutdownCtx)
		channel.Close(shutdownCtx)
		lc.Wait()
		return nil
	})

	err = g.Wait()
	log.Info(context.WithoutCancel(ctx), "service_stopped", "Driver agent stopped", nil)
	return err
}
