package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/require"
)

func TestDownloadReturnsBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "quiz-agent", r.UserAgent())
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("value\n1\n2\n"))
	}))
	defer srv.Close()

	d := New(Config{UserAgent: "quiz-agent", Timeout: 5 * time.Second})
	body, err := d.Download(context.Background(), srv.URL+"/data.csv")
	require.NoError(t, err)
	require.Equal(t, "value\n1\n2\n", string(body))

	// Revisits are allowed so the same attachment can be fetched twice.
	body, err = d.Download(context.Background(), srv.URL+"/data.csv")
	require.NoError(t, err)
	require.NotEmpty(t, body)
}

func TestDownloadNon2xxIsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	d := New(Config{Timeout: 5 * time.Second})
	_, err := d.Download(context.Background(), srv.URL+"/missing.pdf")
	require.Error(t, err)
	require.Contains(t, err.Error(), "404")
}

func TestDownloadEmptyBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := New(Config{})
	_, err := d.Download(context.Background(), srv.URL+"/empty.csv")
	require.ErrorIs(t, err, ErrEmptyBody)
}

func TestDownloadCanceledContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = w.Write([]byte("late"))
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	d := New(Config{Timeout: 5 * time.Second})
	start := time.Now()
	_, err := d.Download(ctx, srv.URL+"/slow.csv")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	// The in-flight request is aborted rather than left to the request timeout.
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestDownloadRejectsOversizedBody(t *testing.T) {
	t.Parallel()

	csv := "value\n" + strings.Repeat("10\n", 100)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/streamed.csv" {
			// Flushing early forces chunked encoding, so no Content-Length.
			_, _ = w.Write([]byte(csv[:10]))
			w.(http.Flusher).Flush()
			_, _ = w.Write([]byte(csv[10:]))
			return
		}
		_, _ = w.Write([]byte(csv))
	}))
	defer srv.Close()

	d := New(Config{MaxBodyBytes: 50, Timeout: 5 * time.Second})
	for _, path := range []string{"/a.csv", "/streamed.csv"} {
		body, err := d.Download(context.Background(), srv.URL+path)
		require.ErrorIs(t, err, ErrBodyTooLarge, path)
		require.Nil(t, body, path)
	}

	fits := New(Config{MaxBodyBytes: len(csv), Timeout: 5 * time.Second})
	body, err := fits.Download(context.Background(), srv.URL+"/streamed.csv")
	require.NoError(t, err)
	require.Equal(t, csv, string(body))
}

func TestNewAppliesDefaults(t *testing.T) {
	t.Parallel()

	d := New(Config{})
	require.Equal(t, defaultTimeout, d.cfg.Timeout)
	require.Equal(t, defaultMaxBodyBytes, d.cfg.MaxBodyBytes)
	require.Equal(t, defaultMaxBodyBytes+1, d.baseCollector.MaxBodySize)
	require.True(t, d.baseCollector.AllowURLRevisit)
	require.True(t, d.baseCollector.IgnoreRobotsTxt)
}

func TestConfigureHooks(t *testing.T) {
	t.Parallel()

	hooks := &stubHooks{}
	var (
		body     []byte
		fetchErr error
	)
	d := New(Config{})
	d.configureHooks(hooks, &body, &fetchErr)
	require.NotNil(t, hooks.headers)
	require.NotNil(t, hooks.response)
	require.NotNil(t, hooks.err)

	hooks.response(&colly.Response{StatusCode: http.StatusOK, Body: []byte("abc")})
	require.Equal(t, "abc", string(body))
	require.NoError(t, fetchErr)

	hooks.err(&colly.Response{StatusCode: http.StatusBadGateway}, errors.New("bad gateway"))
	require.EqualError(t, fetchErr, "status 502: bad gateway")

	fetchErr = nil
	hooks.err(nil, errors.New("dial tcp: refused"))
	require.EqualError(t, fetchErr, "dial tcp: refused")
}

func TestConfigureHooksSizeLimit(t *testing.T) {
	t.Parallel()

	hooks := &stubHooks{}
	var (
		body     []byte
		fetchErr error
	)
	d := New(Config{MaxBodyBytes: 4})
	d.configureHooks(hooks, &body, &fetchErr)

	headers := http.Header{"Content-Length": []string{"5"}}
	hooks.headers(&colly.Response{Headers: &headers, Request: &colly.Request{}})
	require.ErrorIs(t, fetchErr, ErrBodyTooLarge)

	// A later transport error does not mask the size failure.
	hooks.err(nil, colly.ErrAbortedAfterHeaders)
	require.ErrorIs(t, fetchErr, ErrBodyTooLarge)

	fetchErr = nil
	hooks.response(&colly.Response{StatusCode: http.StatusOK, Body: []byte("12345")})
	require.ErrorIs(t, fetchErr, ErrBodyTooLarge)
	require.Empty(t, body)

	fetchErr = nil
	hooks.response(&colly.Response{StatusCode: http.StatusOK, Body: []byte("1234")})
	require.NoError(t, fetchErr)
	require.Equal(t, "1234", string(body))
}

type stubHooks struct {
	headers  colly.ResponseHeadersCallback
	response colly.ResponseCallback
	err      colly.ErrorCallback
}

func (s *stubHooks) OnResponseHeaders(cb colly.ResponseHeadersCallback) { s.headers = cb }
func (s *stubHooks) OnResponse(cb colly.ResponseCallback)               { s.response = cb }
func (s *stubHooks) OnError(cb colly.ErrorCallback)                     { s.err = cb }
