package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, SanitizeSite(tc.input))
		})
	}
}

func TestObserversInitializeLazily(t *testing.T) {
	Init()
	Init()

	before := testutil.ToFloat64(downloadsTotal.WithLabelValues("files.example", "ok"))
	ObserveDownload("https://files.example/data.csv", "ok", 128)
	require.Equal(t, before+1, testutil.ToFloat64(downloadsTotal.WithLabelValues("files.example", "ok")))
	require.GreaterOrEqual(t, testutil.ToFloat64(downloadBytesTotal.WithLabelValues("files.example")), 128.0)

	ObserveSubmission("sent")
	require.GreaterOrEqual(t, testutil.ToFloat64(submissionsTotal.WithLabelValues("sent")), 1.0)

	ObserveRender("https://quiz.example/q1", "ok")
	ObserveRateLimitDelay("quiz.example", 10*time.Millisecond)
	require.Positive(t, testutil.CollectAndCount(rateLimitDelaysSeconds))

	IncActiveRuns()
	DecActiveRuns()
}

func FuzzSanitizeSite(f *testing.F) {
	for _, tc := range []string{"http://example.com", "https://google.com", "ftp://example.com"} {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SanitizeSite(orig) == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
