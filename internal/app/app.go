package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/atvirokodosprendimai/mailroom/internal/adapters/events"
	"github.com/atvirokodosprendimai/mailroom/internal/adapters/httpapi"
	"github.com/atvirokodosprendimai/mailroom/internal/adapters/media"
	"github.com/atvirokodosprendimai/mailroom/internal/adapters/notify"
	"github.com/atvirokodosprendimai/mailroom/internal/adapters/remotestore"
	sqliteadapter "github.com/atvirokodosprendimai/mailroom/internal/adapters/sqlite"
	"github.com/atvirokodosprendimai/mailroom/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/mailroom/internal/core/ports"
	"github.com/atvirokodosprendimai/mailroom/internal/core/usecase"
	"github.com/atvirokodosprendimai/mailroom/migrations"
)

type Config struct {
	Addr     string
	DBPath   string
	PhotoDir string
	Log      logrus.FieldLogger
	DebugSQL bool

	BootstrapAPIKey  string
	BootstrapKeyName string
	AllowedOrigins   []string

	WebhookURL    string
	WebhookSecret string

	AutoCreateCompanies bool
	RefreshDelay        time.Duration
	// UpstreamURL, when set, is the mailroom the company list is re-read from
	// after intake creates a company. Without it no refresh runs.
	UpstreamURL    string
	UpstreamAPIKey string

	SMTP notify.SMTPConfig
}

type resourceCloser struct {
	closers []io.Closer
}

func (r resourceCloser) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func NewServer(ctx context.Context, cfg Config) (*http.Server, io.Closer, error) {
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	db, err := openDatabase(startCtx, cfg.DBPath, log, cfg.DebugSQL)
	if err != nil {
		return nil, nil, err
	}

	stateStore := sqliteadapter.NewStateStore(db)
	apiKeyRepo := sqliteadapter.NewAPIKeyRepository(db)
	outboxRepo := sqliteadapter.NewOutboxRepository(db)

	bus := usecase.NewBus()
	manager := usecase.NewManager(
		usecase.WithStateStore(stateStore),
		usecase.WithBus(bus),
		usecase.WithLogger(log.WithField("component", "manager")),
	)
	if err := manager.Hydrate(startCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("hydrate manager: %w", err)
	}

	closers := []io.Closer{}
	if refresher := newRefresher(cfg, manager, log); refresher != nil {
		detach := refresher.Attach(bus)
		closers = append(closers, closerFunc(func() error {
			detach()
			return nil
		}), refresher)
	}

	var publisher ports.EventPublisher = events.NewLogPublisher(log.WithField("component", "outbox"))
	if cfg.WebhookURL != "" {
		publisher = events.NewWebhookPublisher(cfg.WebhookURL, cfg.WebhookSecret)
	}
	dispatcher := usecase.NewOutboxDispatcher(outboxRepo, publisher, usecase.OutboxOptions{
		BatchSize: 100,
		Log:       log.WithField("component", "outbox"),
	})
	detachDispatcher := dispatcher.Attach(bus)
	dispatcher.Start(context.Background())

	closer := resourceCloser{closers: append(closers,
		closerFunc(func() error {
			detachDispatcher()
			return nil
		}),
		dispatcher,
		closerFunc(func() error {
			totals := dispatcher.Totals()
			log.WithFields(logrus.Fields{
				"delivered": totals.Delivered,
				"retried":   totals.Retried,
				"dead":      totals.Dead,
			}).Info("outbox dispatcher stopped")
			return nil
		}),
		db,
	)}

	authService := usecase.NewAuthService(apiKeyRepo)
	if err := authService.Bootstrap(startCtx, cfg.BootstrapAPIKey, cfg.BootstrapKeyName); err != nil {
		_ = closer.Close()
		return nil, nil, fmt.Errorf("bootstrap api key: %w", err)
	}

	var photos *usecase.PhotoService
	if cfg.PhotoDir != "" {
		store, err := media.NewFSStore(cfg.PhotoDir)
		if err != nil {
			_ = closer.Close()
			return nil, nil, err
		}
		photos = usecase.NewPhotoService(store)
	}

	var notifier ports.Notifier = notify.NewLogNotifier(log.WithField("component", "notify"))
	if cfg.SMTP.Host != "" {
		smtpNotifier, err := notify.NewSMTPNotifier(cfg.SMTP)
		if err != nil {
			_ = closer.Close()
			return nil, nil, fmt.Errorf("configure smtp: %w", err)
		}
		notifier = smtpNotifier
	}

	payloads, err := usecase.NewPayloadValidator()
	if err != nil {
		_ = closer.Close()
		return nil, nil, err
	}

	handler := httpapi.NewHandler(httpapi.Services{
		Manager:  manager,
		Intake:   usecase.NewIntakeService(manager, photos, notifier, usecase.IntakeOptions{AutoCreateCompanies: cfg.AutoCreateCompanies}, log.WithField("component", "intake")),
		Audit:    usecase.NewAuditService(manager),
		Photos:   photos,
		Auth:     authService,
		Payloads: payloads,
	}, httpapi.Options{AllowedOrigins: cfg.AllowedOrigins, Log: log.WithField("component", "http")})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return server, closer, nil
}

// newRefresher returns nil without an upstream: the local store only ever
// holds what the manager wrote, so memory is already the fresher copy.
func newRefresher(cfg Config, manager *usecase.Manager, log logrus.FieldLogger) *usecase.Refresher {
	if cfg.UpstreamURL == "" {
		return nil
	}
	source := remotestore.NewClient(cfg.UpstreamURL, cfg.UpstreamAPIKey)
	return usecase.NewRefresher(source, manager, cfg.RefreshDelay, log.WithField("component", "refresher"))
}

// OpenKeys gives direct access to the API keys stored at dbPath, for
// administering keys without a running server.
func OpenKeys(ctx context.Context, dbPath string, log logrus.FieldLogger) (*usecase.AuthService, io.Closer, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	db, err := openDatabase(ctx, dbPath, log, false)
	if err != nil {
		return nil, nil, err
	}
	return usecase.NewAuthService(sqliteadapter.NewAPIKeyRepository(db)), db, nil
}

func openDatabase(ctx context.Context, path string, log logrus.FieldLogger, debug bool) (*gormsqlite.DB, error) {
	db, err := gormsqlite.Open(path, gormsqlite.Options{Log: log, Debug: debug})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	writeSQLDB, err := db.WriteSQLDB()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("resolve writer sql db: %w", err)
	}
	if err := migrations.Up(ctx, writeSQLDB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
