package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/samber/do/v2"

	profileinadapter "tempo/internal/modules/profile/adapter/in"
	profileoutadapter "tempo/internal/modules/profile/adapter/out"
	profilein "tempo/internal/modules/profile/port/in"
	profileout "tempo/internal/modules/profile/port/out"
	profileservice "tempo/internal/modules/profile/service"
	profileusecase "tempo/internal/modules/profile/usecase"
	timerinadapter "tempo/internal/modules/timer/adapter/in"
	timeroutadapter "tempo/internal/modules/timer/adapter/out"
	timerin "tempo/internal/modules/timer/port/in"
	timerout "tempo/internal/modules/timer/port/out"
	timerservice "tempo/internal/modules/timer/service"
	timerusecase "tempo/internal/modules/timer/usecase"
	"tempo/internal/platform/clock"
	"tempo/internal/platform/config"
	"tempo/internal/platform/id"
	"tempo/internal/platform/logging"
	"tempo/internal/platform/storage"
	"tempo/internal/platform/tx"
	uiapp "tempo/internal/ui/app"
)

const databaseInitTimeout = 15 * time.Second

type App struct {
	Config     config.Config
	Logger     logging.Logger
	TimerCLI   timerinadapter.CLIHandler
	ProfileCLI profileinadapter.CLIHandler
	closers    []func() error
}

// backend groups the adapters that share one database handle and transaction manager.
type backend struct {
	sessions timerout.SessionRepository
	marker   profileout.SessionMarker
	profiles profileout.ProfileRepository
	tx       tx.Manager
	close    func() error

	// precision is the finest instant the store keeps; zero means exact.
	precision time.Duration
}

type publisher struct {
	timerout.EventPublisher
	close func() error
}

func New(cfg config.Config) (*App, error) {
	injector := do.New()
	do.ProvideValue(injector, cfg)
	registerPlatform(injector)
	registerStorage(injector)
	registerTimer(injector)
	registerProfile(injector)

	logger, err := do.Invoke[logging.Logger](injector)
	if err != nil {
		return nil, fmt.Errorf("resolve logger: %w", err)
	}
	store, err := do.Invoke[backend](injector)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Backend, err)
	}
	events, err := do.Invoke[publisher](injector)
	if err != nil {
		_ = store.close()
		return nil, fmt.Errorf("open event publisher: %w", err)
	}
	timerUC, err := do.Invoke[timerin.Usecase](injector)
	if err != nil {
		_ = store.close()
		return nil, fmt.Errorf("resolve timer usecase: %w", err)
	}
	profileUC := do.MustInvoke[profilein.Usecase](injector)

	logger.Debugf("tempo ready backend=%s kafka=%t journal=%q", cfg.Storage.Backend, len(cfg.Kafka.Brokers) > 0, cfg.JournalDir)
	return &App{
		Config:     cfg,
		Logger:     logger,
		TimerCLI:   timerinadapter.NewCLIHandler(timerUC, cfg.UserID),
		ProfileCLI: profileinadapter.NewCLIHandler(profileUC, cfg.UserID),
		closers:    []func() error{events.close, store.close, syncLogger(logger)},
	}, nil
}

// Close flushes the publisher, then storage, then the logger.
func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if c == nil {
			continue
		}
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// syncLogger drops the EINVAL zap reports when stderr is a terminal.
func syncLogger(logger logging.Logger) func() error {
	return func() error {
		_ = logger.Sync()
		return nil
	}
}

func RunTUI(app *App) error {
	model := uiapp.NewModel(app.TimerCLI, app.ProfileCLI)
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}

func registerPlatform(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (logging.Logger, error) {
		cfg := do.MustInvoke[config.Config](i)
		return logging.New(cfg.Env, cfg.LogLevel)
	})
	do.ProvideValue[clock.Clock](injector, clock.SystemClock{})
	do.ProvideValue[id.Generator](injector, id.UUID{})
}

func registerStorage(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (backend, error) {
		cfg := do.MustInvoke[config.Config](i)
		switch cfg.Storage.Backend {
		case config.BackendPostgres:
			return openPostgres(cfg)
		default:
			return openSQLite(cfg)
		}
	})
}

func openSQLite(cfg config.Config) (backend, error) {
	db, err := storage.OpenSQLite(cfg.Storage.SQLitePath)
	if err != nil {
		return backend{}, err
	}
	sessions, err := timeroutadapter.NewSQLiteSessionRepository(db)
	if err != nil {
		return backend{}, closeWith(db, err)
	}
	profiles, err := profileoutadapter.NewSQLiteProfileRepository(db)
	if err != nil {
		return backend{}, closeWith(db, err)
	}
	return backend{
		sessions: sessions,
		marker:   sessions,
		profiles: profiles,
		tx:       storage.NewSQLiteTxManager(db),
		close:    db.Close,
	}, nil
}

func closeWith(db *sql.DB, err error) error {
	_ = db.Close()
	return err
}

func openPostgres(cfg config.Config) (backend, error) {
	ctx, cancel := context.WithTimeout(context.Background(), databaseInitTimeout)
	defer cancel()
	pool, err := storage.OpenPostgres(ctx, cfg.Storage.PostgresURL)
	if err != nil {
		return backend{}, err
	}
	if err := storage.MigratePostgres(ctx, pool); err != nil {
		pool.Close()
		return backend{}, err
	}
	sessions := timeroutadapter.NewPostgresSessionRepository(pool)
	return backend{
		sessions: sessions,
		marker:   sessions,
		profiles: profileoutadapter.NewPostgresProfileRepository(pool),
		tx:       storage.NewPgxTxManager(pool),
		close: func() error {
			pool.Close()
			return nil
		},
		precision: time.Microsecond,
	}, nil
}

func registerTimer(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (publisher, error) {
		cfg := do.MustInvoke[config.Config](i)
		if len(cfg.Kafka.Brokers) == 0 {
			return publisher{EventPublisher: timeroutadapter.NoopEventPublisher{}}, nil
		}
		kafka := timeroutadapter.NewKafkaEventPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		return publisher{EventPublisher: kafka, close: kafka.Close}, nil
	})
	do.Provide(injector, func(i do.Injector) (*timerservice.TimerService, error) {
		store := do.MustInvoke[backend](i)
		return timerservice.NewTimerService(
			do.MustInvoke[clock.Clock](i),
			do.MustInvoke[id.Generator](i),
			store.sessions,
			store.tx,
			timerservice.WithPrecision(store.precision),
		), nil
	})
	do.Provide(injector, func(i do.Injector) (timerin.Usecase, error) {
		cfg := do.MustInvoke[config.Config](i)
		var journal timerout.Journal
		if cfg.JournalDir != "" {
			journal = timeroutadapter.NewVaultJournal(cfg.JournalDir)
		}
		logger := do.MustInvoke[logging.Logger](i).With("module", "timer")
		return timerusecase.NewInteractor(
			do.MustInvoke[*timerservice.TimerService](i),
			do.MustInvoke[profilein.Usecase](i),
			do.MustInvoke[publisher](i),
			journal,
			logger,
			timerusecase.Options{PendingBatch: cfg.Learning.PendingBatch},
		), nil
	})
}

func registerProfile(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*profileservice.ProfileService, error) {
		cfg := do.MustInvoke[config.Config](i)
		store := do.MustInvoke[backend](i)
		return profileservice.NewProfileService(
			do.MustInvoke[clock.Clock](i),
			do.MustInvoke[id.Generator](i),
			store.profiles,
			store.marker,
			store.tx,
			profileservice.Options{MaxRetries: cfg.Learning.MaxRetries, Location: cfg.Location()},
		), nil
	})
	do.Provide(injector, func(i do.Injector) (profilein.Usecase, error) {
		logger := do.MustInvoke[logging.Logger](i).With("module", "profile")
		return profileusecase.NewInteractor(do.MustInvoke[*profileservice.ProfileService](i), logger), nil
	})
}
