// Package mapper implements the orchestrator that turns a domain into a
// sealed sitemap.Map: discovery, the concurrent per-URL acquisition
// pipeline (Structured Extractor -> Pattern Engine -> API Probe -> Action
// Discoverer, with the Browser Fallback as a threshold escape hatch),
// classification/encoding, edge construction, and sealing. Grounded on the
// teacher's internal/crawler orchestration style but rebuilt around
// github.com/sourcegraph/conc/pool for bounded fan-out and
// golang.org/x/sync/singleflight for same-domain dedup rather than the
// teacher's job-queue/worker-pool split, since a single mapping attempt is
// one coherent unit of work rather than a stream of independent jobs.
package mapper

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/cortexmap/cortex/internal/cortexerr"
	"github.com/cortexmap/cortex/internal/discovery"
	"github.com/cortexmap/cortex/internal/fetch"
	"github.com/cortexmap/cortex/internal/mapbuilder"
	"github.com/cortexmap/cortex/internal/progress"
	"github.com/cortexmap/cortex/internal/render"
	"github.com/cortexmap/cortex/internal/sitemap"
	"github.com/cortexmap/cortex/internal/telemetry"
)

// Request is the map() call's input.
type Request struct {
	Domain        string
	MaxNodes      int
	MaxTimeMs     int64
	RespectRobots bool
	NoBrowser     bool
	Fresh         bool
}

// Config bounds every mapping attempt this Mapper runs.
type Config struct {
	DefaultMaxNodes      int
	DefaultMaxTimeMs     int64
	GlobalConcurrency    int // default 64
	PerHostConcurrency   int // default 5
	PerHostQPS           float64
	UserAgent            string
	RenderConfidenceFloor float32 // defaulted but not read; escalation is decided by shouldEscalate
	PrivacyStrip         bool
}

func (c Config) withDefaults() Config {
	if c.DefaultMaxNodes <= 0 {
		c.DefaultMaxNodes = 500
	}
	if c.DefaultMaxTimeMs <= 0 {
		c.DefaultMaxTimeMs = 120_000
	}
	if c.GlobalConcurrency <= 0 {
		c.GlobalConcurrency = 64
	}
	if c.PerHostConcurrency <= 0 {
		c.PerHostConcurrency = 5
	}
	if c.PerHostQPS <= 0 {
		c.PerHostQPS = 4
	}
	if c.RenderConfidenceFloor <= 0 {
		c.RenderConfidenceFloor = 0.4
	}
	return c
}

// Result is what Map returns on success: the sealed Map, its encoded
// bytes (ready for BlobStore), and whether the attempt was cut short by
// its deadline.
type Result struct {
	Map     *sitemap.Map
	Bytes   []byte
	Partial bool
}

// Mapper runs mapping attempts. One Mapper instance is shared across many
// concurrent attempts; per-attempt state (Fetcher, cookie jar, render
// pool checkout) lives entirely inside a single Map call.
type Mapper struct {
	cfg        Config
	logger     *zap.Logger
	renderPool *render.Pool
	hub        *progress.Hub

	sf singleflight.Group
}

// New constructs a Mapper. renderPool may be nil or unavailable; the
// pipeline degrades to Layer 1/1.5/2/2.5-only in that case.
func New(cfg Config, logger *zap.Logger, renderPool *render.Pool, hub *progress.Hub) *Mapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mapper{cfg: cfg.withDefaults(), logger: logger, renderPool: renderPool, hub: hub}
}

// Map runs (or attaches to an in-flight) mapping attempt for req.Domain.
// Concurrent calls for the same domain share one attempt rather than
// racing two independent crawls against the same host; singleflight.Group
// is exactly this primitive.
func (m *Mapper) Map(ctx context.Context, req Request) (Result, error) {
	domain, scheme, err := NormalizeDomain(req.Domain)
	if err != nil {
		return Result{}, err
	}
	req.Domain = domain

	v, err, _ := m.sf.Do(domain, func() (any, error) {
		return m.runAttempt(ctx, req, scheme)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (m *Mapper) runAttempt(ctx context.Context, req Request, scheme string) (Result, error) {
	attemptID := newAttemptID()
	start := time.Now()

	maxNodes := req.MaxNodes
	if maxNodes <= 0 {
		maxNodes = m.cfg.DefaultMaxNodes
	}
	maxTimeMs := req.MaxTimeMs
	if maxTimeMs <= 0 {
		maxTimeMs = m.cfg.DefaultMaxTimeMs
	}

	attemptCtx, cancel := context.WithTimeout(ctx, time.Duration(maxTimeMs)*time.Millisecond)
	defer cancel()

	m.emit(progress.Event{AttemptID: attemptID, TS: start, Stage: progress.StageAttemptStart, Domain: req.Domain})

	fetcher := fetch.New(fetch.Config{
		UserAgent:          m.cfg.UserAgent,
		PerHostConcurrency: m.cfg.PerHostConcurrency,
		PerHostQPS:         m.cfg.PerHostQPS,
		RespectRobots:      req.RespectRobots,
	}, m.logger)

	disc := discovery.New(fetcher, m.logger)
	candidates, err := disc.Discover(attemptCtx, RootURL(req.Domain, scheme))
	if err != nil {
		m.emit(progress.Event{AttemptID: attemptID, TS: time.Now(), Stage: progress.StageAttemptError, Domain: req.Domain, Note: err.Error()})
		telemetry.ObserveMappingAttempt("error", time.Since(start))
		return Result{}, fetch.ToCortexErr(err)
	}
	if len(candidates) > maxNodes {
		candidates = candidates[:maxNodes]
	}

	builder := mapbuilder.NewBuilder(req.Domain)
	pipe := &pipeline{
		mapper:    m,
		fetcher:   fetcher,
		attemptID: attemptID,
		noBrowser: req.NoBrowser,
	}

	results := runFanOut(attemptCtx, m.cfg.GlobalConcurrency, candidates, pipe.process)

	var errs error
	for _, res := range results {
		if res.err != nil {
			errs = multierr.Append(errs, res.err)
		}
		builder.AddNode(res.node)
		for _, e := range res.edges {
			builder.AddEdge(e)
		}
	}

	partial := attemptCtx.Err() != nil
	if partial {
		builder.MarkPartial()
	}

	sealed, bytes, err := builder.Seal(time.Now(), m.cfg.PrivacyStrip)
	if err != nil {
		m.emit(progress.Event{AttemptID: attemptID, TS: time.Now(), Stage: progress.StageAttemptError, Domain: req.Domain, Note: err.Error()})
		telemetry.ObserveMappingAttempt("error", time.Since(start))
		return Result{}, cortexerr.Wrap(cortexerr.CodeInternal, "seal map", err)
	}

	status := "success"
	if partial {
		status = "partial"
	}
	m.emit(progress.Event{AttemptID: attemptID, TS: time.Now(), Stage: progress.StageAttemptDone, Domain: req.Domain, Dur: time.Since(start), Note: status})
	telemetry.ObserveMappingAttempt(status, time.Since(start))

	if errs != nil {
		m.logger.Debug("mapping attempt completed with per-url errors", zap.String("domain", req.Domain), zap.Error(errs))
	}

	return Result{Map: sealed, Bytes: bytes, Partial: partial}, nil
}

func (m *Mapper) emit(evt progress.Event) {
	if m.hub == nil {
		return
	}
	m.hub.Emit(evt)
}
