package headless

import (
	"context"
	"errors"

	"github.com/JakeFAU/quizchain/internal/quiz"
)

// ErrDisabled is wrapped by Noop renders.
var ErrDisabled = errors.New("headless renderer not configured")

// Noop implements quiz.Renderer but always fails, for builds or tests
// without a browser.
type Noop struct{}

// NewNoop creates a new Noop renderer.
func NewNoop() *Noop {
	return &Noop{}
}

// Render always returns a *quiz.RenderError wrapping ErrDisabled.
func (Noop) Render(_ context.Context, rawURL string) (quiz.Page, error) {
	return quiz.Page{}, &quiz.RenderError{URL: rawURL, Err: ErrDisabled}
}
