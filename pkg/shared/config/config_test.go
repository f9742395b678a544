package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	content := `
logger:
  level: debug
llm:
  endpoint: http://localhost:8000/v1/chat/completions
  model: qwen
  api_batch_size: 10
pipeline:
  language: python
  force_refresh: true
codeql:
  search_paths: [/opt/ql]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path, true)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "qwen", cfg.LLM.Model)
	assert.Equal(t, 10, cfg.APIBatchSize())
	assert.Equal(t, DefaultFuncParamBatchSize, cfg.FuncParamBatchSize())
	assert.Equal(t, "python", cfg.Language())
	assert.True(t, cfg.Pipeline.ForceRefresh)
	assert.Equal(t, []string{"/opt/ql"}, cfg.CodeQL.SearchPaths)
}

func TestLoadConfigMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yml")

	cfg, err := LoadConfig(missing, false)
	require.NoError(t, err)
	assert.Equal(t, DefaultHugeProjectLimit, cfg.HugeProjectThreshold())

	_, err = LoadConfig(missing, true)
	assert.Error(t, err)
}

func TestGetBoolValue(t *testing.T) {
	cfg := &Config{Logger: Logger{JSONFormat: boolPtr(true)}}

	assert.True(t, GetBoolValue(cfg, "Logger.JSONFormat", false))
	assert.False(t, GetBoolValue(cfg, "Logger.DisableTime", false))
	assert.True(t, GetBoolValue(cfg, "Logger.Missing", true))
	assert.True(t, GetBoolValue(nil, "Logger.JSONFormat", true))
	assert.True(t, GetBoolValue(cfg, "Pipeline.SkipOrphanReplayOnRefresh", true))
}

func TestSkipOrphanReplay(t *testing.T) {
	cfg := &Config{}
	assert.True(t, cfg.SkipOrphanReplay())

	cfg.Pipeline.SkipOrphanReplayOnRefresh = boolPtr(false)
	assert.False(t, cfg.SkipOrphanReplay())
}

func TestValidateConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv(EnvHome, home)
	t.Setenv(EnvLLMAPIKey, "secret")

	cfg := &Config{}
	require.NoError(t, ValidateConfig(cfg))

	assert.Equal(t, home, cfg.TaintIO.HomeFolder)
	assert.Equal(t, filepath.Join(home, "cache"), cfg.TaintIO.CacheFolder)
	assert.DirExists(t, cfg.TaintIO.OutputFolder)
	assert.Equal(t, "secret", cfg.LLM.APIKey)
}

func TestValidateConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "temperature", cfg: Config{LLM: LLM{Temperature: 3}}},
		{name: "top_p", cfg: Config{LLM: LLM{TopP: 1.5}}},
		{name: "negative batch", cfg: Config{LLM: LLM{APIBatchSize: -1}}},
		{name: "negative threshold", cfg: Config{Pipeline: Pipeline{SkipHugeProjectNumAPIsThreshold: -5}}},
		{name: "retry count", cfg: Config{HTTPClient: HTTPClient{RetryCount: 50}}},
		{name: "retry wait", cfg: Config{HTTPClient: HTTPClient{RetryWaitTime: time.Hour}}},
		{name: "proxy port", cfg: Config{HTTPClient: HTTPClient{Proxy: Proxy{Host: "proxy", Port: 70000}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvHome, t.TempDir())
			cfg := tt.cfg
			assert.Error(t, ValidateConfig(&cfg))
		})
	}
}

func TestRestyConfigFrom(t *testing.T) {
	cfg := &Config{HTTPClient: HTTPClient{
		RetryCount:      7,
		TLSClientConfig: TLSClientConfig{Verify: boolPtr(false)},
		Proxy:           Proxy{Host: "http://proxy", Port: 3128},
	}}

	rc := RestyConfigFrom(cfg)
	assert.Equal(t, 7, rc.RetryCount)
	assert.Equal(t, DefaultHttpConfig().Timeout, rc.Timeout)
	assert.True(t, rc.TLSClientConfig.InsecureSkipVerify)
	assert.Equal(t, "http://proxy:3128", rc.Proxy)
}
