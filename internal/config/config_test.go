package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadWithFileOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
auth:
  secret: from-file
workflow:
  time_budget_seconds: 60
  max_steps: 3
  max_payload_bytes: 2048
  submit_timeout_seconds: 5
  download_timeout_seconds: 7
  response_excerpt_bytes: 100
headless:
  nav_timeout_seconds: 20
  settle_delay_ms: 500
  user_agent: quiz-agent
  no_sandbox: false
  max_parallel: 4
  domain_qps: 1.5
parser:
  column_name: Amount
  pdf_page: 1
  max_download_bytes: 1024
logging:
  development: false
telemetry:
  tracing_enabled: true
  service_name: quiz-test
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "from-file", cfg.Auth.Secret)
	require.Equal(t, 3, cfg.Workflow.MaxSteps)
	require.Equal(t, 2048, cfg.Workflow.MaxPayloadBytes)
	require.Equal(t, "quiz-agent", cfg.Headless.UserAgent)
	require.False(t, cfg.Headless.NoSandbox)
	require.InDelta(t, 1.5, cfg.Headless.DomainQPS, 1e-9)
	require.Equal(t, "Amount", cfg.Parser.ColumnName)
	require.False(t, cfg.Logging.Development)
	require.True(t, cfg.Telemetry.TracingEnabled)
	require.Equal(t, "quiz-test", cfg.Telemetry.ServiceName)

	require.Equal(t, time.Minute, cfg.TimeBudget())
	require.Equal(t, 500*time.Millisecond, cfg.SettleDelay())
	require.Equal(t, 20*time.Second+500*time.Millisecond+7*time.Second+5*time.Second, cfg.StepSlack())
	require.Equal(t, time.Minute+cfg.StepSlack(), cfg.HardTimeout())
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("QUIZ_SECRET", "legacy")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "legacy", cfg.Auth.Secret)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 180, cfg.Workflow.TimeBudgetSeconds)
	require.Equal(t, 6, cfg.Workflow.MaxSteps)
	require.Equal(t, 1_000_000, cfg.Workflow.MaxPayloadBytes)
	require.Equal(t, 30, cfg.Workflow.SubmitTimeoutSeconds)
	require.Equal(t, 2000, cfg.Workflow.ResponseExcerptBytes)
	require.Equal(t, 60, cfg.Headless.NavTimeoutSeconds)
	require.Equal(t, 1000, cfg.Headless.SettleDelayMs)
	require.True(t, cfg.Headless.NoSandbox)
	require.Equal(t, 2, cfg.Headless.MaxParallel)
	require.Equal(t, "value", cfg.Parser.ColumnName)
	require.Equal(t, 2, cfg.Parser.PDFPage)
	require.Equal(t, 50<<20, cfg.Parser.MaxDownloadBytes)
	require.True(t, cfg.Logging.Development)
	require.Equal(t, "quizchain", cfg.Telemetry.ServiceName)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("QUIZ_AUTH_SECRET", "prefixed")
	t.Setenv("PORT", "7000")
	t.Setenv("QUIZ_WORKFLOW_MAX_STEPS", "9")
	t.Setenv("QUIZ_WORKFLOW_HARD_TIMEOUT_SECONDS", "42")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "prefixed", cfg.Auth.Secret)
	require.Equal(t, 7000, cfg.Server.Port)
	require.Equal(t, 9, cfg.Workflow.MaxSteps)
	require.Equal(t, 42*time.Second, cfg.HardTimeout())
}

func TestWithSecretOverride(t *testing.T) {
	t.Setenv("QUIZ_SECRET", "")
	t.Setenv("QUIZ_AUTH_SECRET", "")

	_, err := Load("")
	require.ErrorContains(t, err, "auth.secret is required")

	cfg, err := Load("", WithSecret("flag"))
	require.NoError(t, err)
	require.Equal(t, "flag", cfg.Auth.Secret)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorContains(t, err, "read config")
}

func TestValidateCollectsAllErrors(t *testing.T) {
	t.Parallel()

	err := Config{}.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"server.port",
		"auth.secret",
		"workflow.time_budget_seconds",
		"workflow.max_steps",
		"headless.max_parallel",
		"parser.column_name",
	} {
		require.ErrorContains(t, err, want)
	}
}
