package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samvad-hq/wcag-scrapper/internal/bridge"
	"github.com/samvad-hq/wcag-scrapper/internal/config"
	"github.com/samvad-hq/wcag-scrapper/internal/crashreport"
	"github.com/samvad-hq/wcag-scrapper/internal/logger"
	"github.com/samvad-hq/wcag-scrapper/internal/manifest"
	"github.com/samvad-hq/wcag-scrapper/internal/observability"
	"github.com/samvad-hq/wcag-scrapper/pkg/async"
	"github.com/samvad-hq/wcag-scrapper/pkg/scraper"
)

// Runtime wires config, logging, metrics and the fetcher for the binaries.
type Runtime struct {
	cfg      *config.Config
	log      logger.Logger
	fetcher  *scraper.Fetcher
	registry *prometheus.Registry
}

// NewRuntime builds a runtime from config. It installs the crash hook, so it must
// run before any scrape is issued.
func NewRuntime(cfg *config.Config, log logger.Logger, opts ...scraper.Option) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log = logger.Ensure(log)

	crashreport.Install(log)

	registry := prometheus.NewRegistry()
	metrics, err := observability.NewMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	fetcherOpts := []scraper.Option{
		scraper.WithUserAgent(cfg.UserAgent),
		scraper.WithCABundle(cfg.CABundleFile),
		scraper.WithLogger(log),
		scraper.WithRecorder(metrics),
	}
	if z, ok := log.(*logger.ZapLogger); ok {
		fetcherOpts = append(fetcherOpts, scraper.WithHTTPLogger(z.Sugar()))
	}
	fetcherOpts = append(fetcherOpts, opts...)

	log.InfoObj("runtime initialized", "runtime_config", map[string]any{
		"app_name":       cfg.AppName,
		"app_env":        cfg.Env,
		"user_agent":     cfg.UserAgent,
		"ca_bundle_file": cfg.CABundleFile,
		"metrics_addr":   cfg.MetricsAddr,
	})

	return &Runtime{
		cfg:      cfg,
		log:      log,
		fetcher:  scraper.New(fetcherOpts...),
		registry: registry,
	}, nil
}

// Fetcher returns the configured fetcher.
func (r *Runtime) Fetcher() *scraper.Fetcher { return r.fetcher }

// Gatherer exposes the runtime's metrics registry.
func (r *Runtime) Gatherer() prometheus.Gatherer { return r.registry }

// Serve runs the stdio bridge on in/out until in is exhausted or ctx is done.
// When a metrics address is configured, /metrics is served alongside.
func (r *Runtime) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	if r == nil || r.fetcher == nil {
		return fmt.Errorf("runtime is not initialized")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	metricsDone := make(chan struct{})
	if r.cfg.MetricsAddr != "" {
		go func() {
			defer close(metricsDone)
			if err := observability.Serve(ctx, r.cfg.MetricsAddr, r.registry); err != nil {
				r.log.ErrorObj("metrics server stopped", "error", err.Error())
			}
		}()
	} else {
		close(metricsDone)
	}

	r.log.InfoObj("stdio bridge starting", "bridge_state", map[string]any{
		"metrics_addr": r.cfg.MetricsAddr,
	})
	err := bridge.NewStdio(r.fetcher, r.log).Serve(ctx, in, out)
	reason := "input closed"
	if ctx.Err() != nil {
		reason = "context done"
	}

	cancel()
	<-metricsDone
	if err != nil {
		r.log.ErrorObj("stdio bridge exiting", "error", err.Error())
		return err
	}
	r.log.InfoObj("stdio bridge exiting", "reason", reason)
	return nil
}

// FetchTo scrapes url and copies the body to w.
func (r *Runtime) FetchTo(ctx context.Context, url string, w io.Writer) error {
	body, err := r.fetcher.Scrape(ctx, url).Await(ctx)
	if err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

// RunManifest scrapes every job concurrently and writes each body to its out path.
// It returns the joined errors of the jobs that failed.
func (r *Runtime) RunManifest(ctx context.Context, jobs []manifest.Job) error {
	if len(jobs) == 0 {
		return fmt.Errorf("no jobs to run")
	}

	start := time.Now()
	futures := make([]*async.Future[[]byte], len(jobs))
	for i, job := range jobs {
		futures[i] = r.fetcher.Scrape(ctx, job.URL)
	}

	var errs []error
	written := 0
	for i, job := range jobs {
		body, err := futures[i].Await(ctx)
		if err == nil {
			err = writeFile(job.Out, body)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("job %s: %w", job.ID, err))
			continue
		}
		written++
		r.log.InfoObj("job completed", "job_result", map[string]any{
			"job_id": job.ID,
			"out":    job.Out,
			"bytes":  len(body),
		})
	}

	r.log.InfoObj("manifest completed", "manifest_result", map[string]any{
		"jobs":       len(jobs),
		"written":    written,
		"failed":     len(errs),
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return errors.Join(errs...)
}

func writeFile(path string, body []byte) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
