package scraper

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/samvad-hq/wcag-scrapper/internal/crashreport"
	"github.com/samvad-hq/wcag-scrapper/internal/logger"
	"github.com/samvad-hq/wcag-scrapper/pkg/async"
	"github.com/samvad-hq/wcag-scrapper/pkg/httpclient"
)

// State is a step of a single scrape. A scrape moves strictly forward and ends in
// StateResolved or StateRejected.
type State int

const (
	StateIdle State = iota
	StateClientBuilding
	StateRequesting
	StateStatusCheck
	StateBodyReading
	StateResolved
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateClientBuilding:
		return "client_building"
	case StateRequesting:
		return "requesting"
	case StateStatusCheck:
		return "status_check"
	case StateBodyReading:
		return "body_reading"
	case StateResolved:
		return "resolved"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Outcome labels a finished scrape for metrics.
const OutcomeOK = "ok"

// Recorder receives one observation per finished scrape. outcome is OutcomeOK or
// a Kind string.
type Recorder interface {
	ObserveScrape(outcome string, bodyBytes int, elapsed time.Duration)
}

// Fetcher fetches raw page bytes. It holds configuration only; every call builds
// and discards its own HTTP client, so calls never share state.
type Fetcher struct {
	build    httpclient.Builder
	opts     httpclient.Options
	log      logger.Logger
	recorder Recorder
	onState  func(id string, s State)
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithBuilder overrides how per-call HTTP clients are constructed.
func WithBuilder(b httpclient.Builder) Option {
	return func(f *Fetcher) {
		if b != nil {
			f.build = b
		}
	}
}

// WithUserAgent sets the User-Agent sent on every request.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.opts.UserAgent = ua }
}

// WithCABundle trusts the PEM certificates in path in addition to the system pool.
func WithCABundle(path string) Option {
	return func(f *Fetcher) { f.opts.CABundleFile = path }
}

// WithHTTPLogger routes the HTTP client's own warnings to log.
func WithHTTPLogger(log httpclient.Logger) Option {
	return func(f *Fetcher) { f.opts.Logger = log }
}

// WithLogger sets the diagnostic sink failures are reported to.
func WithLogger(log logger.Logger) Option {
	return func(f *Fetcher) { f.log = logger.Ensure(log) }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(f *Fetcher) { f.recorder = r }
}

// WithStateHook is called on every state transition of every scrape.
func WithStateHook(fn func(id string, s State)) Option {
	return func(f *Fetcher) { f.onState = fn }
}

// New constructs a Fetcher using resty-backed clients by default.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		build: httpclient.Build,
		opts:  httpclient.Options{UserAgent: httpclient.DefaultUserAgent},
		log:   logger.NopLogger{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Scrape starts fetching url and returns a pending future right away. The work is
// detached from ctx cancellation: once issued, the request runs to completion.
// Values carried by ctx are preserved.
func (f *Fetcher) Scrape(ctx context.Context, url string) *async.Future[[]byte] {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithoutCancel(ctx)

	return async.Go(func() ([]byte, error) {
		defer crashreport.Capture()
		return f.Fetch(ctx, url)
	})
}

// Fetch performs a single GET and returns the full response body. Failures are
// always *Error values.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	id := uuid.NewString()
	start := time.Now()

	body, err := f.fetch(ctx, id, url)
	f.observe(id, url, start, body, err)
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (f *Fetcher) fetch(ctx context.Context, id, url string) ([]byte, error) {
	f.enter(id, StateClientBuilding)
	client, err := f.build(f.opts)
	if err == nil && client == nil {
		err = errors.New("builder returned no client")
	}
	if err != nil {
		return nil, newError(KindClientBuild, err)
	}
	defer client.Close()

	f.enter(id, StateRequesting)
	resp, err := client.Get(ctx, url)
	if err != nil {
		return nil, newError(KindTransport, err)
	}
	body := resp.RawBody()
	defer body.Close()

	f.enter(id, StateStatusCheck)
	if !resp.IsSuccess() {
		return nil, &Error{
			Kind:       KindStatus,
			Detail:     resp.Status(),
			StatusCode: resp.StatusCode(),
		}
	}

	f.enter(id, StateBodyReading)
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, newError(KindBodyRead, err)
	}
	if raw == nil {
		raw = []byte{}
	}
	return raw, nil
}

func (f *Fetcher) enter(id string, s State) {
	if f.onState != nil {
		f.onState(id, s)
	}
}

// observe logs the failure line (if any), settles the state machine and records metrics.
func (f *Fetcher) observe(id, url string, start time.Time, body []byte, err error) {
	elapsed := time.Since(start)

	if err != nil {
		outcome := "unknown"
		if kind, ok := KindOf(err); ok {
			outcome = kind.String()
		}
		f.log.ErrorObj("scrape failed", "scrape_error", map[string]any{
			"scrape_id":  id,
			"url":        url,
			"kind":       outcome,
			"error":      err.Error(),
			"elapsed_ms": elapsed.Milliseconds(),
		})
		f.enter(id, StateRejected)
		if f.recorder != nil {
			f.recorder.ObserveScrape(outcome, 0, elapsed)
		}
		return
	}

	f.log.DebugObj("scrape completed", "scrape_result", map[string]any{
		"scrape_id":  id,
		"url":        url,
		"bytes":      len(body),
		"elapsed_ms": elapsed.Milliseconds(),
	})
	f.enter(id, StateResolved)
	if f.recorder != nil {
		f.recorder.ObserveScrape(OutcomeOK, len(body), elapsed)
	}
}
