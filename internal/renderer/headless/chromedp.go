// Package headless renders quiz pages in headless Chrome via chromedp.
package headless

import (
	"context"
	"errors"
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

	"github.com/JakeFAU/quizchain/internal/extract"
	"github.com/JakeFAU/quizchain/internal/metrics"
	"github.com/JakeFAU/quizchain/internal/quiz"
)

const (
	defaultNavTimeout = 60 * time.Second
	// idleWindow is how long the page must go without in-flight requests to
	// count as network idle.
	idleWindow = 500 * time.Millisecond
	// maxIdleWait bounds the network idle wait; pages that keep polling are
	// captured anyway once it elapses.
	maxIdleWait  = 15 * time.Second
	idlePollTick = 50 * time.Millisecond

	innerTextScript = `document.body ? document.body.innerText : ""`
)

// Config controls the behavior of the renderer.
type Config struct {
	// MaxParallel caps concurrent browser sessions; zero means unlimited.
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
	SettleDelay       time.Duration
	NoSandbox         bool
	// DomainQPS paces renders per host; zero disables pacing.
	DomainQPS float64
}

// Renderer implements quiz.Renderer. Every Render starts its own browser and
// tab and tears both down before returning.
type Renderer struct {
	cfg            Config
	logger         *zap.Logger
	sem            chan struct{}
	domainLimiters sync.Map
}

// NewChromedp creates a renderer backed by chromedp.
func NewChromedp(cfg Config, logger *zap.Logger) (*Renderer, error) {
	if cfg.MaxParallel < 0 {
		return nil, errors.New("max parallel must be >= 0")
	}
	if cfg.DomainQPS < 0 {
		return nil, errors.New("domain qps must be >= 0")
	}
	if cfg.SettleDelay < 0 {
		return nil, errors.New("settle delay must be >= 0")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var sem chan struct{}
	if cfg.MaxParallel > 0 {
		sem = make(chan struct{}, cfg.MaxParallel)
	}
	return &Renderer{cfg: cfg, logger: logger, sem: sem}, nil
}

// Render navigates to rawURL, waits for the page to settle and returns its
// HTML and visible text. All failures are *quiz.RenderError.
func (r *Renderer) Render(ctx context.Context, rawURL string) (quiz.Page, error) {
	page, err := r.render(ctx, rawURL)
	if err != nil {
		metrics.ObserveRender(rawURL, "error")
		return quiz.Page{}, &quiz.RenderError{URL: rawURL, Err: err}
	}
	metrics.ObserveRender(rawURL, "ok")
	return page, nil
}

func (r *Renderer) render(ctx context.Context, rawURL string) (quiz.Page, error) {
	release, err := r.acquireSlot(ctx)
	if err != nil {
		return quiz.Page{}, err
	}
	defer release()

	if err := r.waitDomainBudget(ctx, rawURL); err != nil {
		return quiz.Page{}, fmt.Errorf("render rate limit: %w", err)
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, r.allocatorOptions()...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, r.navTimeout())
	defer cancelTask()

	tracker := newIdleTracker(time.Now)
	chromedp.ListenTarget(tabCtx, tracker.observe)

	start := time.Now()
	var html, finalURL string
	tasks := chromedp.Tasks{
		r.networkSetupAction(),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		waitNetworkIdle(tracker, r.logger),
		chromedp.Sleep(r.cfg.SettleDelay),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return quiz.Page{}, fmt.Errorf("chromedp run: %w", err)
	}

	var text string
	if err := chromedp.Run(taskCtx, chromedp.Evaluate(innerTextScript, &text)); err != nil {
		r.logger.Debug("innerText unavailable, using parsed text", zap.String("url", rawURL), zap.Error(err))
	}
	if strings.TrimSpace(text) == "" {
		text = extract.VisibleText(html)
	}
	if finalURL == "" {
		finalURL = rawURL
	}

	return quiz.Page{
		URL:      rawURL,
		FinalURL: finalURL,
		HTML:     html,
		Text:     text,
		Duration: time.Since(start),
	}, nil
}

func (r *Renderer) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if r.cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox, chromedp.Flag("disable-dev-shm-usage", true))
	}
	if r.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(r.cfg.UserAgent))
	}
	return opts
}

func (r *Renderer) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if r.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(r.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (r *Renderer) acquireSlot(ctx context.Context) (func(), error) {
	if r.sem == nil {
		return func() {}, nil
	}
	select {
	case r.sem <- struct{}{}:
		return func() { <-r.sem }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire render slot: %w", ctx.Err())
	}
}

func (r *Renderer) waitDomainBudget(ctx context.Context, rawURL string) error {
	if r.cfg.DomainQPS <= 0 {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse render url: %w", err)
	}
	host := strings.ToLower(parsed.Host)
	val, _ := r.domainLimiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(r.cfg.DomainQPS), 1))
	limiter, ok := val.(*rate.Limiter)
	if !ok {
		return fmt.Errorf("unexpected limiter type %T", val)
	}
	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait limiter: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(host, waited)
	}
	return nil
}

func (r *Renderer) navTimeout() time.Duration {
	if r.cfg.NavigationTimeout > 0 {
		return r.cfg.NavigationTimeout
	}
	return defaultNavTimeout
}

// idleTracker counts in-flight network requests from CDP events.
type idleTracker struct {
	mu       sync.Mutex
	now      func() time.Time
	inflight map[network.RequestID]struct{}
	last     time.Time
}

func newIdleTracker(now func() time.Time) *idleTracker {
	return &idleTracker{now: now, inflight: make(map[network.RequestID]struct{}), last: now()}
}

func (t *idleTracker) observe(ev any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		// Redirects reuse the request ID.
		t.inflight[e.RequestID] = struct{}{}
	case *network.EventLoadingFinished:
		delete(t.inflight, e.RequestID)
	case *network.EventLoadingFailed:
		delete(t.inflight, e.RequestID)
	default:
		return
	}
	t.last = t.now()
}

// idle reports whether nothing has been in flight for at least window.
func (t *idleTracker) idle(window time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight) == 0 && t.now().Sub(t.last) >= window
}

func waitNetworkIdle(t *idleTracker, logger *zap.Logger) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		deadline := time.NewTimer(maxIdleWait)
		defer deadline.Stop()
		tick := time.NewTicker(idlePollTick)
		defer tick.Stop()
		for {
			if t.idle(idleWindow) {
				return nil
			}
			select {
			case <-ctx.Done():
				return fmt.Errorf("wait network idle: %w", ctx.Err())
			case <-deadline.C:
				logger.Debug("network never went idle, capturing anyway")
				return nil
			case <-tick.C:
			}
		}
	})
}
