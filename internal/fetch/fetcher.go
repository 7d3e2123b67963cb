// Package fetch implements the HTTP Fetcher: HEAD/GET with HTTP/2
// negotiation and HTTP/1.1 fallback, redirect loop detection, per-host
// concurrency and QPS limiting, robots.txt awareness, and exponential
// backoff on retryable failures.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/cortexmap/cortex/internal/cortexerr"
)

// FailureKind classifies why a fetch failed.
type FailureKind string

// Supported failure kinds.
const (
	FailureDNS              FailureKind = "DNS"
	FailureTLS              FailureKind = "TLS"
	FailureTimeout          FailureKind = "Timeout"
	FailureForbidden        FailureKind = "Forbidden"
	FailureH2Protocol       FailureKind = "H2Protocol"
	FailureTooManyRedirects FailureKind = "TooManyRedirects"
	FailureBody             FailureKind = "Body"
)

// FetchError is the typed error a Fetcher returns, carrying the failure
// kind alongside the wrapped cause.
type FetchError struct {
	Kind FailureKind
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Outcome is the result of a successful fetch.
type Outcome struct {
	FinalURL  string
	Status    int
	Headers   http.Header
	BodyBytes []byte
	Timing    time.Duration
}

// Config controls Fetcher construction.
type Config struct {
	UserAgent          string
	RequestTimeout     time.Duration
	PerHostConcurrency int // default 5
	PerHostQPS         float64
	RespectRobots      bool
	MaxRedirects       int // default 10
}

func (c Config) withDefaults() Config {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 20 * time.Second
	}
	if c.PerHostConcurrency <= 0 {
		c.PerHostConcurrency = 5
	}
	if c.PerHostQPS <= 0 {
		c.PerHostQPS = 4
	}
	if c.MaxRedirects <= 0 {
		c.MaxRedirects = 10
	}
	if c.UserAgent == "" {
		c.UserAgent = "CortexMapper/1.0 (+https://cortexmap.dev/bot)"
	}
	return c
}

// Fetcher issues HEAD/GET requests for a single mapping attempt. It owns
// one cookie jar and one Colly collector scoped to that attempt, never
// shared across domains: a single cookie jar per host per mapping attempt.
type Fetcher struct {
	cfg       Config
	collector *colly.Collector
	robots    *RobotsEnforcer
	retry     *RetryPolicy
	limiter   *HostLimiter
	logger    *zap.Logger
	redirects sync.Map // rawURL -> visited redirect chain, for loop detection
}

// New builds a Fetcher for one mapping attempt.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	base := colly.NewCollector(
		colly.Async(true),
		colly.UserAgent(cfg.UserAgent),
	)
	base.AllowURLRevisit = false
	jar, _ := cookiejar.New(nil)
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          128,
		MaxIdleConnsPerHost:   32,
		MaxConnsPerHost:       cfg.PerHostConcurrency * 2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.RequestTimeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.RequestTimeout)
	base.SetCookieJar(jar)
	_ = base.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.PerHostConcurrency,
	})
	base.SetRedirectHandler(func(req *http.Request, via []*http.Request) error {
		if len(via) >= cfg.MaxRedirects {
			return fmt.Errorf("%s", FailureTooManyRedirects)
		}
		for _, prior := range via {
			if prior.URL.String() == req.URL.String() {
				return fmt.Errorf("%s", FailureTooManyRedirects)
			}
		}
		return nil
	})

	return &Fetcher{
		cfg:       cfg,
		collector: base,
		robots:    NewRobotsEnforcer(cfg.RespectRobots, cfg.UserAgent, logger),
		retry:     NewRetryPolicy(),
		limiter:   NewHostLimiter(cfg.PerHostQPS),
		logger:    logger,
	}
}

// Get fetches rawURL, retrying retryable failures with exponential backoff.
func (f *Fetcher) Get(ctx context.Context, rawURL string) (Outcome, error) {
	return f.do(ctx, rawURL, false)
}

// Head issues a HEAD request, used by Discovery's common-path scan.
func (f *Fetcher) Head(ctx context.Context, rawURL string) (Outcome, error) {
	return f.do(ctx, rawURL, true)
}

func (f *Fetcher) do(ctx context.Context, rawURL string, head bool) (Outcome, error) {
	if !f.robots.Allowed(ctx, rawURL) {
		return Outcome{}, &FetchError{Kind: FailureForbidden, URL: rawURL, Err: errors.New("disallowed by robots.txt")}
	}
	if err := f.limiter.Wait(ctx, rawURL, f.robotsCrawlDelay(ctx, rawURL)); err != nil {
		return Outcome{}, &FetchError{Kind: FailureTimeout, URL: rawURL, Err: err}
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		start := time.Now()
		outcome, err := f.attempt(ctx, rawURL, head)
		if err == nil {
			outcome.Timing = time.Since(start)
			return outcome, nil
		}
		lastErr = err
		if !f.retry.ShouldRetry(err, attempt) {
			break
		}
		select {
		case <-time.After(f.retry.Backoff(attempt)):
		case <-ctx.Done():
			return Outcome{}, &FetchError{Kind: FailureTimeout, URL: rawURL, Err: ctx.Err()}
		}
	}
	return Outcome{}, classify(rawURL, lastErr)
}

type fetchResult struct {
	outcome Outcome
	err     error
}

func (f *Fetcher) attempt(ctx context.Context, rawURL string, head bool) (Outcome, error) {
	c := f.collector.Clone()
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() { resultCh <- res })
	}

	c.OnResponse(func(r *colly.Response) {
		headers := http.Header{}
		if r.Headers != nil {
			for k, v := range *r.Headers {
				cp := make([]string, len(v))
				copy(cp, v)
				headers[k] = cp
			}
		}
		send(fetchResult{outcome: Outcome{
			FinalURL:  r.Request.URL.String(),
			Status:    r.StatusCode,
			Headers:   headers,
			BodyBytes: append([]byte{}, r.Body...),
		}})
	})
	c.OnError(func(_ *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		send(fetchResult{err: err})
	})

	var visitErr error
	if head {
		visitErr = c.Head(rawURL)
	} else {
		visitErr = c.Visit(rawURL)
	}
	if visitErr != nil {
		return Outcome{}, visitErr
	}
	c.Wait()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return Outcome{}, res.err
		}
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		return res.outcome, nil
	default:
		return Outcome{}, errors.New("fetch produced no result")
	}
}

func (f *Fetcher) robotsCrawlDelay(ctx context.Context, rawURL string) time.Duration {
	return f.robots.CrawlDelay(ctx, rawURL)
}

// Robots exposes the attempt's shared robots.txt enforcer so Discovery can
// walk Sitemap: directives without loading robots.txt a second time.
func (f *Fetcher) Robots() *RobotsEnforcer {
	return f.robots
}

func classify(rawURL string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.As(err, &dnsErr):
		return &FetchError{Kind: FailureDNS, URL: rawURL, Err: err}
	case strings.Contains(msg, "GOAWAY") || strings.Contains(msg, "http2"):
		return &FetchError{Kind: FailureH2Protocol, URL: rawURL, Err: err}
	case strings.Contains(msg, string(FailureTooManyRedirects)):
		return &FetchError{Kind: FailureTooManyRedirects, URL: rawURL, Err: err}
	case strings.Contains(msg, "x509") || strings.Contains(msg, "tls"):
		return &FetchError{Kind: FailureTLS, URL: rawURL, Err: err}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &FetchError{Kind: FailureTimeout, URL: rawURL, Err: err}
	default:
		return &FetchError{Kind: FailureBody, URL: rawURL, Err: err}
	}
}

// ToCortexErr maps a FetchError's Kind onto the stable cortexerr.Code space
// used in service responses.
func ToCortexErr(err error) error {
	var fe *FetchError
	if !errors.As(err, &fe) {
		return cortexerr.Wrap(cortexerr.CodeInternal, "fetch failed", err)
	}
	switch fe.Kind {
	case FailureDNS:
		return cortexerr.Wrap(cortexerr.CodeDNS, fe.URL, fe.Err)
	case FailureTLS:
		return cortexerr.Wrap(cortexerr.CodeTLS, fe.URL, fe.Err)
	case FailureTimeout:
		return cortexerr.Wrap(cortexerr.CodeTimeout, fe.URL, fe.Err)
	case FailureForbidden:
		return cortexerr.Wrap(cortexerr.CodeForbidden, fe.URL, fe.Err)
	default:
		return cortexerr.Wrap(cortexerr.CodeInternal, fe.URL, fe.Err)
	}
}

// Host extracts the lowercased host from rawURL, empty on parse failure.
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
