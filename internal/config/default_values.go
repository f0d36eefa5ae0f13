package config

const (
	PlannerModeRemote = "remote"
	PlannerModeOpenAI = "openai"

	DefaultPlannerTimeoutMS   = 60000
	DefaultContextTokenLimit  = 16000
	DefaultEmbeddingCacheSize = 1024

	DefaultSearchThreshold    = 0.2
	DefaultSearchMaxUnranked  = 100
	DefaultDuplicateThreshold = 0.985
)
