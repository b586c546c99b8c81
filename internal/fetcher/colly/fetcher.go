// Package collyfetcher downloads quiz attachments using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/quizchain/internal/metrics"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxBodyBytes = 50 << 20
)

var (
	// ErrEmptyBody is returned when the server answered 2xx with no content.
	ErrEmptyBody = errors.New("empty response body")
	// ErrBodyTooLarge is returned when the attachment exceeds MaxBodyBytes.
	ErrBodyTooLarge = errors.New("response body exceeds size limit")
)

// Config controls collector behavior.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int
}

// Downloader implements quiz.Downloader on top of a Colly collector. Each
// download runs on a clone of the base collector so callbacks never leak
// between calls; the transport is shared.
type Downloader struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponseHeaders(colly.ResponseHeadersCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Downloader.
func New(cfg Config) *Downloader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		// colly silently truncates at MaxBodySize; one extra byte tells a
		// body that fits exactly apart from a cut one.
		colly.MaxBodySize(cfg.MaxBodyBytes+1),
	)
	c.WithTransport(newHTTPTransport())
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	return &Downloader{cfg: cfg, baseCollector: c}
}

// Download performs a single GET and returns the body. Non-2xx responses,
// timeouts, oversized and empty bodies are errors. The request is bound to
// ctx, so cancellation aborts it in flight.
func (d *Downloader) Download(ctx context.Context, url string) ([]byte, error) {
	var (
		body     []byte
		fetchErr error
	)
	collector := d.baseCollector.Clone()
	collector.Context = ctx
	collector.SetRequestTimeout(d.cfg.Timeout)
	d.configureHooks(collector, &body, &fetchErr)

	if err := d.runCollector(ctx, collector, url, &fetchErr); err != nil {
		outcome := "error"
		if errors.Is(err, ErrBodyTooLarge) {
			outcome = "too_large"
		}
		metrics.ObserveDownload(url, outcome, 0)
		return nil, err
	}
	if len(body) == 0 {
		metrics.ObserveDownload(url, "empty", 0)
		return nil, fmt.Errorf("download %s: %w", url, ErrEmptyBody)
	}
	metrics.ObserveDownload(url, "ok", len(body))
	return body, nil
}

func (d *Downloader) configureHooks(hooks collectorHooks, body *[]byte, fetchErr *error) {
	limit := d.cfg.MaxBodyBytes
	hooks.OnResponseHeaders(func(r *colly.Response) {
		if cl := r.Headers.Get("Content-Length"); cl != "" {
			if n, err := strconv.ParseInt(cl, 10, 64); err == nil && n > int64(limit) {
				*fetchErr = fmt.Errorf("content length %d: %w", n, ErrBodyTooLarge)
				r.Request.Abort()
			}
		}
	})
	hooks.OnResponse(func(r *colly.Response) {
		if len(r.Body) > limit {
			*fetchErr = fmt.Errorf("more than %d bytes: %w", limit, ErrBodyTooLarge)
			return
		}
		*body = append([]byte(nil), r.Body...)
	})
	hooks.OnError(func(r *colly.Response, err error) {
		if *fetchErr != nil {
			return
		}
		if r != nil && r.StatusCode != 0 {
			*fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
			return
		}
		*fetchErr = err
	})
}

// runCollector always waits for Visit to return before reading fetchErr. The
// request carries ctx, so a cancellation unblocks it promptly.
func (d *Downloader) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	var err error
	select {
	case <-ctx.Done():
		<-done
		return fmt.Errorf("download canceled: %w", ctx.Err())
	case err = <-done:
	}
	if *fetchErr != nil {
		return fmt.Errorf("download %s: %w", url, *fetchErr)
	}
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	return nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
	}
}
