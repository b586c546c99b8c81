package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSystemNowMonotonic(t *testing.T) {
	t.Parallel()

	clk := New()
	first := clk.Now()
	time.Sleep(time.Millisecond)
	second := clk.Now()
	require.False(t, second.Before(first))
	require.Positive(t, second.Sub(first))
}
