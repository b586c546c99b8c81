package headless

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/quizchain/internal/quiz"
)

func TestNewChromedpValidation(t *testing.T) {
	t.Parallel()

	_, err := NewChromedp(Config{MaxParallel: -1}, nil)
	require.Error(t, err)
	_, err = NewChromedp(Config{DomainQPS: -1}, nil)
	require.Error(t, err)
	_, err = NewChromedp(Config{SettleDelay: -time.Second}, nil)
	require.Error(t, err)

	r, err := NewChromedp(Config{}, nil)
	require.NoError(t, err)
	require.Nil(t, r.sem)
	require.Equal(t, defaultNavTimeout, r.navTimeout())
}

func TestAllocatorOptions(t *testing.T) {
	t.Parallel()

	bare, err := NewChromedp(Config{}, zap.NewNop())
	require.NoError(t, err)
	full, err := NewChromedp(Config{NoSandbox: true, UserAgent: "quiz-agent"}, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, full.allocatorOptions(), len(bare.allocatorOptions())+3)
}

func TestAcquireSlotHonorsCapacity(t *testing.T) {
	t.Parallel()

	r, err := NewChromedp(Config{MaxParallel: 1}, zap.NewNop())
	require.NoError(t, err)

	release, err := r.acquireSlot(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = r.acquireSlot(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release2, err := r.acquireSlot(context.Background())
	require.NoError(t, err)
	release2()
}

func TestWaitDomainBudgetSharesLimiterPerHost(t *testing.T) {
	t.Parallel()

	r, err := NewChromedp(Config{DomainQPS: 1000}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, r.waitDomainBudget(context.Background(), "https://Quiz.Example/a"))
	require.NoError(t, r.waitDomainBudget(context.Background(), "https://quiz.example/b"))

	count := 0
	r.domainLimiters.Range(func(_, _ any) bool {
		count++
		return true
	})
	require.Equal(t, 1, count)

	require.Error(t, r.waitDomainBudget(context.Background(), "://bad"))
}

func TestIdleTracker(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	now := time.Unix(100, 0)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	tr := newIdleTracker(clock)
	require.False(t, tr.idle(idleWindow))
	advance(idleWindow)
	require.True(t, tr.idle(idleWindow))

	tr.observe(&network.EventRequestWillBeSent{RequestID: "a"})
	tr.observe(&network.EventRequestWillBeSent{RequestID: "a"})
	tr.observe(&network.EventRequestWillBeSent{RequestID: "b"})
	advance(time.Second)
	require.False(t, tr.idle(idleWindow))

	tr.observe(&network.EventLoadingFinished{RequestID: "a"})
	tr.observe(&network.EventLoadingFailed{RequestID: "b"})
	require.False(t, tr.idle(idleWindow))
	advance(idleWindow)
	require.True(t, tr.idle(idleWindow))

	// Unrelated events do not reset the quiet period.
	tr.observe(&network.EventDataReceived{RequestID: "c"})
	require.True(t, tr.idle(idleWindow))
}

func TestNoopRender(t *testing.T) {
	t.Parallel()

	_, err := NewNoop().Render(context.Background(), "https://quiz.example")
	var renderErr *quiz.RenderError
	require.ErrorAs(t, err, &renderErr)
	require.ErrorIs(t, err, ErrDisabled)
	require.Equal(t, quiz.KindRender, quiz.KindOf(err))
}

func TestRenderFailureIsRenderError(t *testing.T) {
	t.Parallel()

	r, err := NewChromedp(Config{MaxParallel: 1}, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Render(ctx, "https://quiz.example")
	var renderErr *quiz.RenderError
	require.ErrorAs(t, err, &renderErr)
	require.Equal(t, "https://quiz.example", renderErr.URL)
}

func TestRenderDynamicPage(t *testing.T) {
	if testing.Short() {
		t.Skip("requires a local Chrome")
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<!doctype html><html><body><script>document.body.innerHTML = '<p>answer: 42</p><a href="/submit">go</a>';</script></body></html>`)
	}))
	defer srv.Close()

	r, err := NewChromedp(Config{MaxParallel: 1, NavigationTimeout: 20 * time.Second, NoSandbox: true}, zap.NewNop())
	require.NoError(t, err)

	page, err := r.Render(context.Background(), srv.URL)
	if err != nil {
		var renderErr *quiz.RenderError
		if errors.As(err, &renderErr) {
			t.Skipf("chrome unavailable: %v", err)
		}
		t.Fatal(err)
	}
	require.Contains(t, page.HTML, `href="/submit"`)
	require.True(t, strings.Contains(page.Text, "answer: 42"))
	require.Equal(t, srv.URL+"/", page.FinalURL)
}
