package config

const (
	DefaultAPIBatchSize       = 30
	DefaultFuncParamBatchSize = 20
	DefaultLLMConcurrency     = 4
	DefaultMaxTokens          = 2048
	DefaultHugeProjectLimit   = 3000
	DefaultPredicateBatchSize = 300
	DefaultCodeQLBinary       = "codeql"
	DefaultLanguage           = "java"
)

// APIBatchSize returns the number of API candidates sent in a single prompt.
func (c *Config) APIBatchSize() int {
	return SetThen(c.LLM.APIBatchSize, DefaultAPIBatchSize)
}

// FuncParamBatchSize returns the number of function-parameter candidates sent in a single prompt.
func (c *Config) FuncParamBatchSize() int {
	return SetThen(c.LLM.FuncParamBatchSize, DefaultFuncParamBatchSize)
}

func (c *Config) LLMConcurrency() int {
	return SetThen(c.LLM.Concurrency, DefaultLLMConcurrency)
}

func (c *Config) MaxTokens() int {
	return SetThen(c.LLM.MaxTokens, DefaultMaxTokens)
}

func (c *Config) HugeProjectThreshold() int {
	return SetThen(c.Pipeline.SkipHugeProjectNumAPIsThreshold, DefaultHugeProjectLimit)
}

func (c *Config) PredicateBatchSize() int {
	return SetThen(c.Pipeline.PredicateBatchSize, DefaultPredicateBatchSize)
}

func (c *Config) CodeQLBinary() string {
	return SetThen(c.CodeQL.Binary, DefaultCodeQLBinary)
}

func (c *Config) Language() string {
	return SetThen(c.Pipeline.Language, DefaultLanguage)
}

// SkipOrphanReplay reports whether orphaned model responses are ignored
// when a forced refresh is requested. It defaults to true.
func (c *Config) SkipOrphanReplay() bool {
	return GetBoolValue(c, "Pipeline.SkipOrphanReplayOnRefresh", true)
}
