package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/scan-io-git/taint-io/pkg/shared/files"
)

const (
	EnvHome         = "TAINTIO_HOME"
	EnvLLMAPIKey    = "TAINTIO_LLM_API_KEY"
	EnvLLMEndpoint  = "TAINTIO_LLM_ENDPOINT"
	EnvCodeQLBinary = "TAINTIO_CODEQL"
	EnvGithubToken  = "TAINTIO_GITHUB_TOKEN"
	EnvGitlabToken  = "TAINTIO_GITLAB_TOKEN"
)

// ValidateConfig checks if the global configurations have valid values.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("YAML global config: configuration object is nil")
	}
	if err := ValidateTaintIOConfig(cfg); err != nil {
		return fmt.Errorf("YAML global config: taintio directive is invalid: %w", err)
	}
	if err := ValidateLLMConfig(&cfg.LLM); err != nil {
		return fmt.Errorf("YAML global config: llm directive is invalid: %w", err)
	}
	if err := ValidatePipelineConfig(&cfg.Pipeline); err != nil {
		return fmt.Errorf("YAML global config: pipeline directive is invalid: %w", err)
	}
	if err := ValidateHTTPConfig(&cfg.HTTPClient); err != nil {
		return fmt.Errorf("YAML global config: http_client directive is invalid: %w", err)
	}
	applyEnvOverrides(cfg)
	return nil
}

// ValidateTaintIOConfig resolves every working folder and creates the missing ones.
func ValidateTaintIOConfig(cfg *Config) error {
	if err := updateHome(cfg); err != nil {
		return fmt.Errorf("failed to update home folder: %w", err)
	}
	folders := []struct {
		value  *string
		env    string
		subDir string
	}{
		{&cfg.TaintIO.OutputFolder, "TAINTIO_OUTPUT_FOLDER", "output"},
		{&cfg.TaintIO.CacheFolder, "TAINTIO_CACHE_FOLDER", "cache"},
		{&cfg.TaintIO.ProjectsFolder, "TAINTIO_PROJECTS_FOLDER", "projects"},
		{&cfg.TaintIO.DatabasesFolder, "TAINTIO_DATABASES_FOLDER", "databases"},
		{&cfg.TaintIO.PackageListsFolder, "TAINTIO_PACKAGE_LISTS_FOLDER", "package-names"},
		{&cfg.TaintIO.ManualRulesFolder, "TAINTIO_MANUAL_RULES_FOLDER", "manual-rules"},
		{&cfg.TaintIO.ArtifactsFolder, "TAINTIO_ARTIFACTS_FOLDER", "artifacts"},
	}
	for _, f := range folders {
		if err := updateFolder(f.value, f.env, f.subDir, cfg); err != nil {
			return fmt.Errorf("failed to update %s folder: %w", f.subDir, err)
		}
	}
	return nil
}

// ValidateLLMConfig checks the sampling and batching parameters of the model client.
func ValidateLLMConfig(llm *LLM) error {
	if llm == nil {
		return fmt.Errorf("llm configuration is nil")
	}
	if llm.Temperature < 0 || llm.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2: %v", llm.Temperature)
	}
	if llm.TopP < 0 || llm.TopP > 1 {
		return fmt.Errorf("top_p must be between 0 and 1: %v", llm.TopP)
	}
	for name, v := range map[string]int{
		"max_tokens":            llm.MaxTokens,
		"concurrency":           llm.Concurrency,
		"api_batch_size":        llm.APIBatchSize,
		"func_param_batch_size": llm.FuncParamBatchSize,
	} {
		if v < 0 {
			return fmt.Errorf("%s cannot be negative: %d", name, v)
		}
	}
	if llm.Endpoint != "" {
		if _, err := url.ParseRequestURI(llm.Endpoint); err != nil {
			return fmt.Errorf("invalid endpoint %q: %w", llm.Endpoint, err)
		}
	}
	return nil
}

func ValidatePipelineConfig(p *Pipeline) error {
	if p == nil {
		return fmt.Errorf("pipeline configuration is nil")
	}
	if p.SkipHugeProjectNumAPIsThreshold < 0 {
		return fmt.Errorf("skip_huge_project_num_apis_threshold cannot be negative: %d", p.SkipHugeProjectNumAPIsThreshold)
	}
	if p.PredicateBatchSize < 0 {
		return fmt.Errorf("predicate_batch_size cannot be negative: %d", p.PredicateBatchSize)
	}
	return nil
}

// ValidateHTTPConfig checks if the HTTP configurations have valid values.
func ValidateHTTPConfig(httpConfig *HTTPClient) error {
	if httpConfig == nil {
		return fmt.Errorf("HTTP configuration is nil")
	}
	if httpConfig.RetryCount < 0 || httpConfig.RetryCount > 20 {
		return fmt.Errorf("retry_count must be between 0 and 20: %d", httpConfig.RetryCount)
	}

	durations := map[string]time.Duration{
		"RetryMaxWaitTime": httpConfig.RetryMaxWaitTime,
		"RetryWaitTime":    httpConfig.RetryWaitTime,
	}
	for name, duration := range durations {
		if err := validateDuration(duration, name, 100*time.Second); err != nil {
			return err
		}
	}
	// model completions are slow, so the request timeout gets more room
	if err := validateDuration(httpConfig.Timeout, "Timeout", 30*time.Minute); err != nil {
		return err
	}
	return validateProxy(&httpConfig.Proxy)
}

func validateDuration(d time.Duration, name string, max time.Duration) error {
	if d < 0 {
		return fmt.Errorf("invalid duration for %q: %v cannot be negative", name, d)
	}
	if d > max {
		return fmt.Errorf("%q duration is too long: %v exceeds maximum of %v", name, d, max)
	}
	return nil
}

func validateProxy(proxy *Proxy) error {
	if proxy.Host == "" || proxy.Port == 0 {
		return nil
	}
	if !strings.Contains(proxy.Host, "://") {
		proxy.Host = "http://" + proxy.Host
	}
	proxy.Host = strings.TrimRight(proxy.Host, "/")
	if _, err := url.Parse(proxy.Host); err != nil {
		return fmt.Errorf("invalid host URL: %w", err)
	}
	if proxy.Port < 1 || proxy.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", proxy.Port)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvLLMAPIKey); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv(EnvLLMEndpoint); v != "" {
		cfg.LLM.Endpoint = v
	}
	if v := os.Getenv(EnvCodeQLBinary); v != "" {
		cfg.CodeQL.Binary = v
	}
	if v := os.Getenv(EnvGithubToken); v != "" {
		cfg.VCS.GithubToken = v
	}
	if v := os.Getenv(EnvGitlabToken); v != "" {
		cfg.VCS.GitlabToken = v
	}
}

// updateHome sets the home folder from the environment or falls back to ~/.taintio.
func updateHome(cfg *Config) error {
	if home := os.Getenv(EnvHome); home != "" {
		cfg.TaintIO.HomeFolder = home
	} else if cfg.TaintIO.HomeFolder == "" {
		homeFolder, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("unable to get user home folder: %w", err)
		}
		cfg.TaintIO.HomeFolder = filepath.Join(homeFolder, ".taintio")
	}

	expanded, err := files.ExpandPath(cfg.TaintIO.HomeFolder)
	if err != nil {
		return fmt.Errorf("failed to expand home path %q: %w", cfg.TaintIO.HomeFolder, err)
	}
	cfg.TaintIO.HomeFolder = expanded
	return files.CreateFolderIfNotExists(expanded)
}

func updateFolder(folder *string, envVar, defaultSubFolder string, cfg *Config) error {
	if envVarValue := os.Getenv(envVar); envVarValue != "" {
		*folder = envVarValue
	} else if *folder == "" {
		*folder = filepath.Join(cfg.TaintIO.HomeFolder, defaultSubFolder)
	}

	expanded, err := files.ExpandPath(*folder)
	if err != nil {
		return fmt.Errorf("failed to expand path %q: %w", *folder, err)
	}
	*folder = expanded

	if err := files.CreateFolderIfNotExists(expanded); err != nil {
		return fmt.Errorf("failed to create folder %q: %w", expanded, err)
	}
	return nil
}
