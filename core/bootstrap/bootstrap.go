// Package bootstrap opens the process-wide infrastructure in a fixed order:
// logger, database, migrations, then any extra resources such as the session
// backend. A failure closes whatever was opened before it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/reviewbot/core/config"
	coredatabase "github.com/m3rciful/reviewbot/core/database"
	"github.com/m3rciful/reviewbot/core/logger"
)

// Resource is an extra dependency opened after the database.
type Resource struct {
	Name string
	Open func(ctx context.Context) (io.Closer, error)
}

// Options control the bootstrap pipeline. Nil funcs use the core defaults.
type Options struct {
	Config    *coreconfig.Config
	Database  coredatabase.Config
	Resources []Resource
	// OpenTimeout bounds each Resource.Open; 0 means 10s.
	OpenTimeout time.Duration

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) error
}

type opened struct {
	name   string
	closer io.Closer
}

// Result holds what Run opened.
type Result struct {
	DB        *sqlx.DB
	resources []opened
}

// Resource returns the closer opened under name.
func (r *Result) Resource(name string) (io.Closer, bool) {
	for _, o := range r.resources {
		if o.name == name {
			return o.closer, true
		}
	}
	return nil, false
}

// Close releases the resources in reverse opening order, then the database.
func (r *Result) Close() error {
	var errs []error
	for i := len(r.resources) - 1; i >= 0; i-- {
		if err := r.resources[i].closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", r.resources[i].name, err))
		}
	}
	r.resources = nil
	if r.DB != nil {
		if err := r.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
		r.DB = nil
	}
	return errors.Join(errs...)
}

// Run initializes the logger, connects to the database, applies migrations
// and opens opts.Resources in order.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config provided")
	}
	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}
	timeout := opts.OpenTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}
	ctx := logger.WithLogger(logger.Background(), logger.Component("bootstrap"))

	start := time.Now()
	db, err := connect(opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}
	res := &Result{DB: db}
	if err := migrate(opts.Database); err != nil {
		_ = res.Close()
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}
	logger.Info(ctx, "bootstrap", "database.ready",
		slog.String("driver", opts.Database.Driver),
		slog.Duration("duration", time.Since(start)),
	)

	for _, rs := range opts.Resources {
		start := time.Now()
		openCtx, cancel := context.WithTimeout(ctx, timeout)
		closer, err := rs.Open(openCtx)
		cancel()
		if err != nil {
			_ = res.Close()
			return nil, fmt.Errorf("bootstrap: open %s: %w", rs.Name, err)
		}
		res.resources = append(res.resources, opened{name: rs.Name, closer: closer})
		logger.Info(ctx, "bootstrap", "resource.ready",
			slog.String("resource", rs.Name),
			slog.Duration("duration", time.Since(start)),
		)
	}
	return res, nil
}
