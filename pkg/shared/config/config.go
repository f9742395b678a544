package config

import (
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"
)

type Config struct {
	Logger     Logger     `yaml:"logger"`
	TaintIO    TaintIO    `yaml:"taintio"`
	LLM        LLM        `yaml:"llm"`
	CodeQL     CodeQL     `yaml:"codeql"`
	Pipeline   Pipeline   `yaml:"pipeline"`
	HTTPClient HTTPClient `yaml:"http_client"`
	VCS        VCS        `yaml:"vcs"`
}

type Logger struct {
	Level           string `yaml:"level"`
	DisableTime     *bool  `yaml:"disable_time"`
	JSONFormat      *bool  `yaml:"json_format"`
	IncludeLocation *bool  `yaml:"include_location"`
}

// TaintIO holds the folder layout of a taintio installation.
type TaintIO struct {
	HomeFolder         string `yaml:"home_folder"`
	OutputFolder       string `yaml:"output_folder"`
	CacheFolder        string `yaml:"cache_folder"`
	ProjectsFolder     string `yaml:"projects_folder"`
	DatabasesFolder    string `yaml:"databases_folder"`
	PackageListsFolder string `yaml:"package_lists_folder"`
	ManualRulesFolder  string `yaml:"manual_rules_folder"`
	ArtifactsFolder    string `yaml:"artifacts_folder"`
}

// LLM configures the chat-completion endpoint used for labelling.
type LLM struct {
	Endpoint           string  `yaml:"endpoint"`
	Model              string  `yaml:"model"`
	APIKey             string  `yaml:"api_key"`
	Temperature        float64 `yaml:"temperature"`
	TopP               float64 `yaml:"top_p"`
	MaxTokens          int     `yaml:"max_tokens"`
	Seed               int     `yaml:"seed"`
	Concurrency        int     `yaml:"concurrency"`
	APIBatchSize       int     `yaml:"api_batch_size"`
	FuncParamBatchSize int     `yaml:"func_param_batch_size"`
}

type CodeQL struct {
	Binary      string            `yaml:"binary"`
	SearchPaths []string          `yaml:"search_paths"`
	Threads     int               `yaml:"threads"`
	RAM         int               `yaml:"ram"`
	FactQueries map[string]string `yaml:"fact_queries"`
}

// Pipeline holds the knobs of a single labelling run.
type Pipeline struct {
	Language                        string `yaml:"language"`
	FilterByModule                  bool   `yaml:"filter_by_module"`
	FilterByModuleLarge             bool   `yaml:"filter_by_module_large"`
	SkipHugeProject                 bool   `yaml:"skip_huge_project"`
	SkipHugeProjectNumAPIsThreshold int    `yaml:"skip_huge_project_num_apis_threshold"`
	ForceRefresh                    bool   `yaml:"force_refresh"`
	SkipOrphanReplayOnRefresh       *bool  `yaml:"skip_orphan_replay_on_refresh"`
	NoSummaryModel                  bool   `yaml:"no_summary_model"`
	ManualRules                     bool   `yaml:"manual_rules"`
	PredicateBatchSize              int    `yaml:"predicate_batch_size"`
}

type HTTPClient struct {
	Debug            *bool           `yaml:"debug"`
	RetryCount       int             `yaml:"retry_count"`
	RetryWaitTime    time.Duration   `yaml:"retry_wait_time"`
	RetryMaxWaitTime time.Duration   `yaml:"retry_max_wait_time"`
	Timeout          time.Duration   `yaml:"timeout"`
	TLSClientConfig  TLSClientConfig `yaml:"tls_client_config"`
	Proxy            Proxy           `yaml:"proxy"`
}

type TLSClientConfig struct {
	Verify *bool `yaml:"verify"`
}

type Proxy struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// VCS holds credentials used to pull project metadata from hosting services.
type VCS struct {
	GithubToken   string `yaml:"github_token"`
	GitlabToken   string `yaml:"gitlab_token"`
	GitlabBaseURL string `yaml:"gitlab_base_url"`
}

func ValidateConfigPath(path string) error {
	s, err := os.Stat(path)
	if err != nil {
		return err
	}
	if s.IsDir() {
		return fmt.Errorf("'%s' is a directory, not a file", path)
	}
	return nil
}

// LoadYAML decodes the YAML file at configPath into data.
func LoadYAML(configPath string, data interface{}) error {
	if err := ValidateConfigPath(configPath); err != nil {
		return err
	}

	file, err := os.Open(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(data); err != nil {
		return fmt.Errorf("failed to decode %q: %w", configPath, err)
	}
	return nil
}

// LoadConfig reads the configuration file. A missing file at the default
// location yields an empty configuration so that defaults and environment
// variables still apply.
func LoadConfig(configPath string, required bool) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(configPath); os.IsNotExist(err) && !required {
		return cfg, nil
	}
	if err := LoadYAML(configPath, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
