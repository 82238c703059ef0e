package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/moneytime-app/moneytime/internal/api"
	"github.com/moneytime-app/moneytime/internal/app/ledgercache"
	"github.com/moneytime-app/moneytime/internal/app/preview"
	"github.com/moneytime-app/moneytime/internal/domain"
	"github.com/moneytime-app/moneytime/internal/infra/apiclient"
	"github.com/moneytime-app/moneytime/internal/infra/observability"
	"github.com/moneytime-app/moneytime/internal/infra/sqlite"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

// Daemon owns every long-lived component of a moneytime session.
type Daemon struct {
	cfg      Config
	backend  domain.Ledger // uncached collaborator
	cache    *ledgercache.Ledger
	previews *preview.Store
	server   *api.Server
	tracer   *observability.Tracer
	closer   io.Closer // local store, nil for the remote backend

	Now func() time.Time
}

// New builds the ledger, cache, preview store and HTTP server from cfg.
func New(cfg Config) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &Daemon{
		cfg:    cfg,
		tracer: observability.NewTracer(observability.DefaultTracerConfig()),
		Now:    time.Now,
	}

	var smart domain.SmartParser
	switch cfg.Ledger.Backend {
	case BackendLocal:
		db, err := sqlite.Open(cfg.Storage.Dir)
		if err != nil {
			return nil, fmt.Errorf("open local ledger: %w", err)
		}
		d.backend = db
		d.closer = db
	default:
		client := apiclient.New(apiclient.Config{
			BaseURL: cfg.Ledger.BaseURL,
			Token:   cfg.Ledger.Token,
			Timeout: parseDuration(cfg.Ledger.Timeout, apiclient.DefaultConfig().Timeout),
		}, d.tracer)
		d.backend = client
		smart = client
	}

	d.cache = ledgercache.New(d.backend, ledgercache.Config{
		TTL: parseDuration(cfg.Ledger.CacheTTL, ledgercache.DefaultConfig().TTL),
	})

	// Promotions write to the backend directly; the store drops the preview
	// before it invalidates the cache, so no fresh read sees both.
	pdef := preview.DefaultConfig()
	d.previews = preview.New(preview.Config{
		TTL:           parseDuration(cfg.Preview.TTL, pdef.TTL),
		SweepInterval: parseDuration(cfg.Preview.SweepInterval, pdef.SweepInterval),
	}, d.backend)
	d.previews.SetInvalidator(d.cache)

	d.server = api.NewServer(d.cache, d.previews)
	d.server.SetTracer(d.tracer)
	if smart != nil {
		d.server.SetSmartParser(smart)
	}
	if cfg.Metrics.Enabled {
		d.server.EnableMetrics()
	}
	return d, nil
}

// Ledger returns the cached collaborator every component reads through.
func (d *Daemon) Ledger() domain.Ledger { return d.cache }

// Previews returns the session's preview store.
func (d *Daemon) Previews() *preview.Store { return d.previews }

// Server returns the HTTP API server.
func (d *Daemon) Server() *api.Server { return d.server }

// Close releases the local store, if any.
func (d *Daemon) Close() error {
	if d.closer != nil {
		return d.closer.Close()
	}
	return nil
}

// Run serves HTTP and runs the background loops until ctx is cancelled.
// It returns only after the loops have stopped, so Close is safe afterwards.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.previews.Run(ctx)
	}()
	if d.cfg.Recurring.AutoMaterialize {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.runMaterializer(ctx)
		}()
	}

	srv := &http.Server{
		Addr:              d.cfg.Addr(),
		Handler:           d.server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[daemon] listening on %s (ledger: %s)", srv.Addr, d.cfg.Ledger.Backend)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Printf("[daemon] shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// runMaterializer turns due recurring rules into transactions once at
// start and then on every tick.
func (d *Daemon) runMaterializer(ctx context.Context) {
	interval := parseDuration(d.cfg.Recurring.Interval, time.Hour)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.MaterializeDue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.MaterializeDue(ctx)
		}
	}
}

// MaterializeDue materializes every occurrence due through today.
func (d *Daemon) MaterializeDue(ctx context.Context) (domain.MaterializeResult, error) {
	today := domain.Today(d.Now(), time.Local)
	res, err := d.cache.MaterializeRecurring(ctx, today)
	if err != nil {
		log.Printf("[daemon] materialize through %s: %v", today, err)
		return res, err
	}
	observability.RecurringMaterialized.Add(float64(res.Created))
	return res, nil
}
