package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, time.Hour, cfg.SchedulerCheckInterval)
	require.Equal(t, 7*24*time.Hour, cfg.FeedbackTTL)
	require.Equal(t, 60*time.Second, cfg.ExternalCallTimeout)
	require.Equal(t, SchedulerModeInProcess, cfg.SchedulerMode)
	require.Equal(t, "nova", cfg.TTSVoice)
	require.True(t, cfg.SchedulerEnabled)
}

func TestLoadFromEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("SCHEDULER_CHECK_INTERVAL", "15m")
	t.Setenv("SUMMARIZER_STUB", "true")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("SCHEDULER_MODE", "queue")

	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Port)
	require.Equal(t, 15*time.Minute, cfg.SchedulerCheckInterval)
	require.True(t, cfg.SummarizerStub)
	require.Equal(t, 2525, cfg.SMTPPort)
	require.Equal(t, SchedulerModeQueue, cfg.SchedulerMode)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			LogLevel:               "info",
			Port:                   "8080",
			SchedulerMode:          SchedulerModeInProcess,
			SchedulerCheckInterval: time.Hour,
			ExternalCallTimeout:    time.Minute,
			FeedbackTTL:            time.Hour,
		}
	}
	require.NoError(t, func() error { c := valid(); return c.Validate() }())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"port", func(c *Config) { c.Port = "0" }},
		{"interval", func(c *Config) { c.SchedulerCheckInterval = 30 * time.Second }},
		{"timeout", func(c *Config) { c.ExternalCallTimeout = 0 }},
		{"ttl", func(c *Config) { c.FeedbackTTL = 0 }},
		{"mode", func(c *Config) { c.SchedulerMode = "cron" }},
		{"queue without redis", func(c *Config) { c.SchedulerMode = SchedulerModeQueue }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			require.Error(t, c.Validate())
		})
	}
}

func TestWarnings(t *testing.T) {
	has := func(warnings []string, prefix string) bool {
		for _, w := range warnings {
			if strings.HasPrefix(w, prefix) {
				return true
			}
		}
		return false
	}

	c := Config{}
	warnings := c.Warnings()
	require.Len(t, warnings, 3)
	require.True(t, has(warnings, "OPERATOR_API_KEY"))
	require.True(t, has(warnings, "SUMMARIZER_URL"))
	require.True(t, has(warnings, "TTS_URL"))

	c = Config{
		OperatorAPIKey: "secret",
		SummarizerStub: true,
		TTSURL:         "http://tts.local/v1/audio/speech",
	}
	require.Empty(t, c.Warnings())

	c.TTSURL = ""
	require.Equal(t, []string{"TTS_URL not set, digests for premium users will fail at the render_audio step"}, c.Warnings())
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
