package render

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cortexmap/cortex/internal/telemetry"
)

// Config controls Pool construction and its resource bounds.
type Config struct {
	ChromiumPath    string
	UserAgent       string
	MaxConcurrency  int           // default 8
	PerDomainQPS    float64       // default 1
	PageTimeout     time.Duration // default 20s
	ContextLifetime time.Duration // default 30m
	ContextIdleTTL  time.Duration // default 5m
	ContextMaxPages int           // default 50
	ReapInterval    time.Duration // default 1m
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 8
	}
	if c.PerDomainQPS <= 0 {
		c.PerDomainQPS = 1
	}
	if c.PageTimeout <= 0 {
		c.PageTimeout = 20 * time.Second
	}
	if c.ContextLifetime <= 0 {
		c.ContextLifetime = 30 * time.Minute
	}
	if c.ContextIdleTTL <= 0 {
		c.ContextIdleTTL = 5 * time.Minute
	}
	if c.ContextMaxPages <= 0 {
		c.ContextMaxPages = 50
	}
	if c.ReapInterval <= 0 {
		c.ReapInterval = time.Minute
	}
	if c.UserAgent == "" {
		c.UserAgent = "CortexMapper/1.0 (+https://cortexmap.dev/bot)"
	}
	return c
}

// pooledContext is one chromedp tab living inside the shared browser
// process, recycled once it has served ContextMaxPages pages or lived
// past ContextLifetime, and reaped if it sits idle past ContextIdleTTL.
type pooledContext struct {
	ctx         context.Context
	cancel      context.CancelFunc
	createdAt   time.Time
	lastUsedAt  time.Time
	pagesServed int
}

func (p *pooledContext) expired(now time.Time, cfg Config) bool {
	return now.Sub(p.createdAt) > cfg.ContextLifetime || p.pagesServed >= cfg.ContextMaxPages
}

func (p *pooledContext) idle(now time.Time, cfg Config) bool {
	return now.Sub(p.lastUsedAt) > cfg.ContextIdleTTL
}

// Pool is the bounded browser-context pool. It owns exactly one chromedp
// allocator and browser process; each pooledContext is a tab within it.
type Pool struct {
	cfg    Config
	logger *zap.Logger

	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc

	sem chan struct{}

	mu   sync.Mutex
	free []*pooledContext

	domainLimiters sync.Map // host -> *rate.Limiter

	reapStop chan struct{}
	reapDone chan struct{}

	unavailable bool
}

// NewPool warms up the chromedp allocator. If warm-up fails (no Chromium
// binary, sandbox denied, etc.) it returns a Pool in the "unavailable"
// state rather than an error: every Render call on it returns
// ErrRendererUnavailable, and callers never need a nil check.
func NewPool(cfg Config, logger *zap.Logger) *Pool {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool{cfg: cfg, logger: logger, sem: make(chan struct{}, cfg.MaxConcurrency)}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(cfg.UserAgent),
	)
	if cfg.ChromiumPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromiumPath))
	}
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		logger.Warn("chromedp warmup failed, browser fallback disabled", zap.Error(err))
		allocatorCancel()
		browserCancel()
		p.unavailable = true
		return p
	}

	p.allocatorCancel = allocatorCancel
	p.browserCtx = browserCtx
	p.browserCancel = browserCancel
	p.reapStop = make(chan struct{})
	p.reapDone = make(chan struct{})
	go p.reapLoop()
	return p
}

// Render checks out a tab context, navigates rawURL, and returns the
// rendered DOM snapshot.
func (p *Pool) Render(ctx context.Context, rawURL string) (Outcome, error) {
	if p.unavailable {
		return Outcome{}, ErrRendererUnavailable
	}

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return Outcome{}, fmt.Errorf("render: acquire slot: %w", ctx.Err())
	}
	telemetry.SetRenderPoolActive(p.activeCount())
	defer func() {
		<-p.sem
		telemetry.SetRenderPoolActive(p.activeCount())
	}()

	if err := p.waitDomainBudget(ctx, rawURL); err != nil {
		return Outcome{}, fmt.Errorf("render: domain rate limit: %w", err)
	}

	pc := p.checkout()
	outcome, err := p.render(ctx, pc, rawURL)
	p.checkin(pc)
	return outcome, err
}

func (p *Pool) activeCount() int {
	return len(p.sem)
}

func (p *Pool) checkout() *pooledContext {
	now := timeNow()
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.free) > 0 {
		pc := p.free[len(p.free)-1]
		p.free = p.free[:len(p.free)-1]
		if pc.expired(now, p.cfg) {
			pc.cancel()
			continue
		}
		return pc
	}
	tabCtx, cancel := chromedp.NewContext(p.browserCtx)
	return &pooledContext{ctx: tabCtx, cancel: cancel, createdAt: now, lastUsedAt: now}
}

func (p *Pool) checkin(pc *pooledContext) {
	if pc.expired(timeNow(), p.cfg) {
		pc.cancel()
		return
	}
	p.mu.Lock()
	p.free = append(p.free, pc)
	p.mu.Unlock()
}

func (p *Pool) render(ctx context.Context, pc *pooledContext, rawURL string) (Outcome, error) {
	taskCtx, cancelTask := context.WithTimeout(pc.ctx, p.cfg.PageTimeout)
	defer cancelTask()
	stop := forwardCancel(ctx, cancelTask)
	defer stop()

	meta := newResponseMeta()
	chromedp.ListenTarget(pc.ctx, func(ev any) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Type != network.ResourceTypeDocument {
			return
		}
		meta.record(int(resp.Response.Status), resp.Response.URL, resp.Response.Headers)
	})

	var html string
	tasks := chromedp.Tasks{
		network.Enable(),
		emulation.SetUserAgentOverride(p.cfg.UserAgent),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	err := chromedp.Run(taskCtx, tasks)

	pc.lastUsedAt = timeNow()
	pc.pagesServed++

	if err != nil {
		return Outcome{}, fmt.Errorf("render: chromedp run: %w", err)
	}
	return Outcome{
		FinalURL:   meta.finalURL(rawURL),
		StatusCode: meta.statusCode,
		Headers:    meta.headers,
		HTML:       html,
	}, nil
}

func (p *Pool) waitDomainBudget(ctx context.Context, rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse render url: %w", err)
	}
	host := strings.ToLower(parsed.Host)
	val, _ := p.domainLimiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(p.cfg.PerDomainQPS), 1))
	limiter, ok := val.(*rate.Limiter)
	if !ok {
		return fmt.Errorf("unexpected limiter type %T", val)
	}
	return limiter.Wait(ctx)
}

// reapLoop periodically evicts contexts that have sat idle in the free
// list past ContextIdleTTL, so a pool that goes quiet doesn't hold
// Chrome tabs open indefinitely.
func (p *Pool) reapLoop() {
	defer close(p.reapDone)
	ticker := time.NewTicker(p.cfg.ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.reapStop:
			return
		case <-ticker.C:
			p.reapIdle()
		}
	}
}

func (p *Pool) reapIdle() {
	now := timeNow()
	p.mu.Lock()
	kept := p.free[:0]
	for _, pc := range p.free {
		if pc.idle(now, p.cfg) || pc.expired(now, p.cfg) {
			pc.cancel()
			continue
		}
		kept = append(kept, pc)
	}
	p.free = kept
	p.mu.Unlock()
}

// Close tears down every pooled context plus the shared browser process.
func (p *Pool) Close(ctx context.Context) error {
	if p.unavailable {
		return nil
	}
	if p.reapStop != nil {
		close(p.reapStop)
		<-p.reapDone
	}
	p.mu.Lock()
	for _, pc := range p.free {
		pc.cancel()
	}
	p.free = nil
	p.mu.Unlock()

	p.browserCancel()
	p.allocatorCancel()
	select {
	case <-ctx.Done():
	default:
	}
	return nil
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// timeNow is a seam so tests could swap in a fixed clock; production
// always uses wall-clock time.
var timeNow = time.Now
