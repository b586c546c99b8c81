package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewDevelopmentLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(true)
	require.NoError(t, err)
	require.NotNil(t, logger)
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("development logger ready")
}

func TestNewProductionLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(false)
	require.NoError(t, err)
	require.NotNil(t, logger)
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("production logger ready")
}

func TestSecretFieldNeverCarriesValue(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	zap.New(core).Info("request", Secret("secret", "hunter2"), Secret("empty", ""))

	fields := logs.All()[0].ContextMap()
	require.Equal(t, Redacted, fields["secret"])
	require.Equal(t, "", fields["empty"])
}

func TestScrub(t *testing.T) {
	t.Parallel()

	require.Equal(t, `{"secret":"***REDACTED***"}`, Scrub(`{"secret":"s3cr3t"}`, "s3cr3t"))
	require.Equal(t, "unchanged", Scrub("unchanged", ""))
}
