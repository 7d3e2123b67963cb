package mapper

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/cortexmap/cortex/internal/action"
	"github.com/cortexmap/cortex/internal/apiprobe"
	"github.com/cortexmap/cortex/internal/classify"
	"github.com/cortexmap/cortex/internal/discovery"
	"github.com/cortexmap/cortex/internal/extract"
	"github.com/cortexmap/cortex/internal/fetch"
	"github.com/cortexmap/cortex/internal/mapbuilder"
	"github.com/cortexmap/cortex/internal/pattern"
	"github.com/cortexmap/cortex/internal/progress"
	"github.com/cortexmap/cortex/internal/sitemap"
	"github.com/cortexmap/cortex/internal/telemetry"
)

// knownPlatforms are the fingerprints apiprobe.Probe has an endpoint table
// for; probing anything else would just burn two requests for nothing.
var knownPlatforms = map[string]bool{"shopify": true, "woocommerce": true, "bigcommerce": true}

// renderWordFloor is the Layer-1 word count below which a page is thin
// enough that its confidence is too low to trust the static HTML, and an
// escalation to the Browser Fallback is worth the cost.
const renderWordFloor = 40

// pipeline runs one URL through Layer 1 (Structured Extractor) through
// Layer 2.5 (Action Discoverer), escalating to Layer 3 (Browser Fallback)
// when the static page looks too thin to classify confidently.
type pipeline struct {
	mapper    *Mapper
	fetcher   *fetch.Fetcher
	attemptID [16]byte
	noBrowser bool
}

// observation is what one acquisition pass (static or rendered) produces:
// the classification signals, the raw extraction result (for its link and
// form lists), the fingerprint used to pick pattern/action rules, and the
// parsed document those rules ran against.
type observation struct {
	sig         classify.Signals
	res         extract.Result
	doc         *goquery.Document
	fingerprint string
}

func (p *pipeline) process(ctx context.Context, cand discovery.Candidate) urlResult {
	start := time.Now()
	p.mapper.emit(progress.Event{AttemptID: p.attemptID, TS: start, Stage: progress.StageFetchStart, Domain: fetch.Host(cand.URL), URL: cand.URL})

	outcome, err := p.fetcher.Get(ctx, cand.URL)
	if err != nil {
		p.mapper.emit(progress.Event{AttemptID: p.attemptID, TS: time.Now(), Stage: progress.StageFetchDone, Domain: fetch.Host(cand.URL), URL: cand.URL, Dur: time.Since(start), StatusClass: progress.StatusOther, Note: err.Error()})
		telemetry.ObserveFetch(fetch.Host(cand.URL), "error", 0, time.Since(start))
		return urlResult{node: estimatedNode(cand.URL), err: fetch.ToCortexErr(err)}
	}
	p.mapper.emit(progress.Event{AttemptID: p.attemptID, TS: time.Now(), Stage: progress.StageFetchDone, Domain: fetch.Host(cand.URL), URL: cand.URL, Dur: time.Since(start), Bytes: int64(len(outcome.BodyBytes)), Visits: 1, StatusClass: progress.ClassifyStatus(outcome.Status)})
	telemetry.ObserveFetch(fetch.Host(cand.URL), "ok", len(outcome.BodyBytes), time.Since(start))

	finalURL, err := url.Parse(outcome.FinalURL)
	if err != nil {
		finalURL, _ = url.Parse(cand.URL)
	}

	obs, err := p.observe(ctx, outcome, finalURL, false)
	if err != nil {
		return urlResult{node: estimatedNode(cand.URL), err: err}
	}
	obs.sig.HTTPStatus = outcome.Status
	obs.sig.LoadTimeMs = float64(time.Since(start).Milliseconds())

	if p.shouldEscalate(obs.sig) {
		if escalated, ok := p.escalate(ctx, finalURL.String()); ok {
			escalated.sig.LoadTimeMs = float64(time.Since(start).Milliseconds())
			obs = escalated
		}
	}

	actions := action.Discover(obs.doc, obs.fingerprint, obs.res.Forms)
	obs.sig.ActionCount = len(actions)
	safe, cautious, destructive := actionRatios(actions)
	obs.sig.SafeActionRatio = safe
	obs.sig.CautiousActionRatio = cautious
	obs.sig.DestructiveActionRatio = destructive

	verdict := classify.Classify(obs.sig)
	telemetry.ObserveClassification(verdict.PageType.String())
	features := classify.Encode(obs.sig, verdict)
	flags := sitemap.NewNodeFlags()
	if outcome.Status >= 200 && outcome.Status < 300 {
		flags = flags.Set(sitemap.FlagHTTPStatusOK)
	}
	flags = classify.DeriveFlags(obs.sig, flags)

	node := mapbuilder.NodeObservation{
		URL:        finalURL.String(),
		PageType:   verdict.PageType,
		Confidence: verdict.Confidence,
		Features:   features,
		Flags:      flags,
		Actions:    actions,
	}

	edges := buildEdges(finalURL.String(), finalURL, obs.res, obs.doc)

	return urlResult{node: node, edges: edges}
}

// observe runs Layer 1 (extraction), fingerprinting, Layer 1.5 (pattern
// matching), and Layer 2 (API probing) against one HTML body, producing a
// fully populated Signals ready for classification. fromRender is true
// when body came back from the Browser Fallback, which skips the API
// probe since a rendered page has already executed any client-side
// storefront calls that probing would otherwise recover statically.
func (p *pipeline) observe(ctx context.Context, outcome fetch.Outcome, finalURL *url.URL, fromRender bool) (observation, error) {
	contentType := outcome.Headers.Get("Content-Type")
	res, err := extract.Extract(outcome.BodyBytes, finalURL, contentType)
	if err != nil {
		return observation{}, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(outcome.BodyBytes)))
	if err != nil {
		return observation{}, err
	}

	sig := signalsFromResult(res, finalURL)
	tracker := classify.NewFieldConfidence()

	extract.ApplyLinkedData(res.LinkedData, &sig, tracker)

	fingerprint := pattern.Fingerprint(pattern.Signature{
		HTML:        string(outcome.BodyBytes),
		ScriptURLs:  scriptSrcs(doc),
		CookieNames: cookieNames(outcome.Headers),
	})

	if err := pattern.Apply(doc, fingerprint, &sig, tracker); err != nil {
		p.mapper.logger.Debug("pattern apply failed", zap.String("url", finalURL.String()), zap.Error(err))
	}

	if !fromRender && knownPlatforms[fingerprint] {
		prober := apiprobe.New(p.fetcher, p.mapper.logger)
		origin := finalURL.Scheme + "://" + finalURL.Host
		if err := prober.Probe(ctx, origin, fingerprint, &sig, tracker); err != nil {
			p.mapper.logger.Debug("api probe failed", zap.String("url", finalURL.String()), zap.Error(err))
		}
	}

	return observation{sig: sig, res: res, doc: doc, fingerprint: fingerprint}, nil
}

// shouldEscalate reports whether the page is too thin for the static
// layers to have classified it with any confidence.
func (p *pipeline) shouldEscalate(sig classify.Signals) bool {
	if p.noBrowser || p.mapper.renderPool == nil {
		return false
	}
	return sig.WordCount < renderWordFloor && sig.FormCount == 0 && len(sig.JSONLD) == 0
}

func (p *pipeline) escalate(ctx context.Context, rawURL string) (observation, bool) {
	out, err := p.mapper.renderPool.Render(ctx, rawURL)
	if err != nil {
		telemetry.ObserveRenderFallback("error")
		return observation{}, false
	}
	telemetry.ObserveRenderFallback("ok")

	finalURL, err := url.Parse(out.FinalURL)
	if err != nil {
		finalURL, _ = url.Parse(rawURL)
	}
	fetchOutcome := fetch.Outcome{
		FinalURL:  out.FinalURL,
		Status:    out.StatusCode,
		Headers:   out.Headers,
		BodyBytes: []byte(out.HTML),
	}
	obs, err := p.observe(ctx, fetchOutcome, finalURL, true)
	if err != nil {
		return observation{}, false
	}
	return obs, true
}

func signalsFromResult(res extract.Result, finalURL *url.URL) classify.Signals {
	var jsonldTypes []string
	for _, rec := range res.LinkedData {
		jsonldTypes = append(jsonldTypes, rec.Type)
	}
	for _, rec := range res.Microdata {
		jsonldTypes = append(jsonldTypes, rec.Type)
	}
	depth := strings.Count(strings.Trim(finalURL.Path, "/"), "/")
	if trimmed := strings.Trim(finalURL.Path, "/"); trimmed != "" {
		depth++
	}
	return classify.Signals{
		URL:          finalURL.String(),
		Path:         finalURL.Path,
		JSONLD:       jsonldTypes,
		OGType:       res.OpenGraph["type"],
		Title:        res.Title,
		MetaDesc:     res.MetaDesc,
		Text:         res.Text,
		WordCount:    res.WordCount,
		HeadingCount: res.HeadingCount,
		ImageCount:   res.ImageCount,
		LinkCount:    res.LinkCount,
		LinkDensity:  res.LinkDensity,
		FormCount:    res.FormCount,
		TableCount:   res.TableCount,
		URLDepth:     depth,
		TLS:          finalURL.Scheme == "https",
	}
}

func scriptSrcs(doc *goquery.Document) []string {
	var out []string
	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			out = append(out, src)
		}
	})
	return out
}

func cookieNames(headers http.Header) []string {
	var out []string
	for _, raw := range headers.Values("Set-Cookie") {
		if i := strings.Index(raw, "="); i > 0 {
			out = append(out, strings.TrimSpace(raw[:i]))
		}
	}
	return out
}

// estimatedNode builds a minimal NodeObservation for a URL whose fetch or
// extraction failed, so the pipeline degrades gracefully instead of
// dropping the URL outright.
func estimatedNode(rawURL string) mapbuilder.NodeObservation {
	var feat [sitemap.FeatureDims]float32
	if idx := sitemap.PageTypeOther.OneHotIndex(); idx >= 0 {
		feat[idx] = 1
	}
	return mapbuilder.NodeObservation{
		URL:        rawURL,
		PageType:   sitemap.PageTypeOther,
		Confidence: 0,
		Features:   feat,
		Flags:      sitemap.NewNodeFlags().Set(sitemap.FlagEstimated),
	}
}
