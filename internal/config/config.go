// Package config implements Config, loaded from an optional YAML file
// and overlaid with ZKF_*-prefixed environment variables, grounded on
// the teacher's internal/config (config.go's struct-of-structs shape,
// loader.go's file-then-env precedence).
package config

import (
	"fmt"
	"time"
)

// Config mirrors the recognized options of spec.md §6, grouped by the
// component that consumes them.
type Config struct {
	ModelRuntime ModelRuntimeConfig `yaml:"model_runtime"`
	Pipeline     PipelineConfig     `yaml:"pipeline"`
	Retrieval    RetrievalConfig    `yaml:"retrieval"`
	Logging      LoggingConfig      `yaml:"logging"`
	WebSearch    WebSearchConfig    `yaml:"web_search"`
	VectorStore  VectorStoreConfig  `yaml:"vector_store"`
	Citation     CitationConfig     `yaml:"citation"`

	Version string `yaml:"-"`
}

// ModelRuntimeConfig configures ModelRuntimeClient and ModelSlot.
type ModelRuntimeConfig struct {
	OllamaBaseURL          string        `yaml:"ollama_base_url"`
	ModelID                string        `yaml:"model_id"`
	ModelLoadRetries       int           `yaml:"model_load_retries"`
	ModelLoadBackoffBase   time.Duration `yaml:"model_load_backoff_base"`
	ModelSwapSettleWait    time.Duration `yaml:"model_swap_settle_wait"`
	LoadAttemptTimeout     time.Duration `yaml:"load_attempt_timeout"`
	GenerateAttemptTimeout time.Duration `yaml:"generate_attempt_timeout"`
	MaxGenerationTokens    int           `yaml:"max_generation_tokens"`
	MaxContextTokens       int           `yaml:"max_context_tokens"`
	Temperature            float64       `yaml:"temperature"`
	RepeatPenalty          float64       `yaml:"repeat_penalty"`
	TopK                   int           `yaml:"top_k"`
	TopP                   float64       `yaml:"top_p"`

	// MaxModelMemoryMB is the accelerator's usable memory ceiling. Every
	// agent's declared MinMemoryMB is checked against it at startup; a
	// ModelDescriptor that exceeds it can never load, so Load fails fast
	// instead of surfacing as a runtime ModelLoadFailed mid-run. Zero
	// means unconstrained (no check performed).
	MaxModelMemoryMB int `yaml:"max_model_memory_mb"`

	// Agents names the per-agent ModelDescriptor: each deliberation agent
	// is built from a separate, differently-sized model by default,
	// mirroring the six distinct model/VRAM pairings a multi-agent
	// pipeline uses to spread load across a single accelerator.
	Agents map[string]AgentModelConfig `yaml:"agents"`

	// SingleModel, when non-empty, collapses every agent onto this one
	// model id regardless of its own Agents entry — for hardware that
	// cannot fit the largest per-agent model (e.g. Judge's 14B) even
	// with single-model residency. SingleModelMemoryMB is that model's
	// declared memory footprint. Set only via ZKF_SINGLE_MODEL /
	// ZKF_SINGLE_MODEL_MEMORY_MB; there is no YAML key for it, matching
	// its role as a hardware-escape-hatch override rather than ordinary
	// configuration.
	SingleModel         string `yaml:"-"`
	SingleModelMemoryMB int    `yaml:"-"`
}

// AgentModelConfig is one entry of ModelRuntimeConfig.Agents: the
// ModelDescriptor a single named agent is constructed with.
type AgentModelConfig struct {
	ModelID     string  `yaml:"model_id"`
	MinMemoryMB int     `yaml:"min_memory_mb"`
	Temperature float64 `yaml:"temperature"`
}

// ResolveAgentModel returns the ModelDescriptor for agentName: cfg.Agents'
// entry for that name, or cfg.SingleModel's override if one is set.
// Falls back to cfg's own ModelID/Temperature/token limits if agentName
// has no Agents entry (a config predating this agent, or a typo'd name).
func (c *Config) ResolveAgentModel(agentName string) AgentModelConfig {
	if c.ModelRuntime.SingleModel != "" {
		return AgentModelConfig{
			ModelID:     c.ModelRuntime.SingleModel,
			MinMemoryMB: c.ModelRuntime.SingleModelMemoryMB,
			Temperature: c.ModelRuntime.Temperature,
		}
	}
	if m, ok := c.ModelRuntime.Agents[agentName]; ok {
		return m
	}
	return AgentModelConfig{
		ModelID:     c.ModelRuntime.ModelID,
		Temperature: c.ModelRuntime.Temperature,
	}
}

// PipelineConfig configures PipelineEngine and AgentBase.
type PipelineConfig struct {
	AgentTimeBudget    time.Duration `yaml:"agent_time_budget"`
	MaxDeliberationRounds int        `yaml:"max_deliberation_rounds"`
	ConsensusThreshold float64       `yaml:"consensus_threshold"`
	MaxParseRetries    int           `yaml:"max_parse_retries"`
}

// RetrievalConfig configures EvidenceRetriever.
type RetrievalConfig struct {
	VectorK               int `yaml:"vector_k"`
	WebK                  int `yaml:"web_k"`
	MaxSourcesPerQuestion int `yaml:"max_sources_per_question"`
	MaxConcurrentFanout   int `yaml:"max_concurrent_fanout"`
}

// LoggingConfig configures the internal/logging package.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	FilePath string `yaml:"file_path"`
}

// WebSearchConfig configures internal/retrieval/websearch.Client.
type WebSearchConfig struct {
	Provider    string        `yaml:"provider"`
	APIKey      string        `yaml:"api_key,omitempty"`
	GoogleCX    string        `yaml:"google_cx,omitempty"`
	CacheTTLDays int          `yaml:"cache_ttl_days"`
}

// CitationConfig configures internal/citation.Registry's bibliography
// rendering.
type CitationConfig struct {
	// BibliographyStyle selects Registry.FormatBibliography's output:
	// apa, ieee, mla, or plain.
	BibliographyStyle string `yaml:"bibliography_style"`
}

// VectorStoreConfig configures internal/retrieval/vectorstore.Store.
type VectorStoreConfig struct {
	DBPath             string `yaml:"db_path"`
	EmbeddingDimensions int   `yaml:"embedding_dimensions"`
	EmbeddingModel     string `yaml:"embedding_model"`
}

// ValidateHardwareCompatibility reports an error if MaxModelMemoryMB is
// set (non-zero) and not a single configured agent model fits under it —
// running would otherwise fail every agent's first load with
// ModelLoadFailed instead of refusing to start. SingleModel bypasses the
// per-agent check since it is the operator's explicit statement that
// only this one model needs to fit.
func (c *Config) ValidateHardwareCompatibility() error {
	ceiling := c.ModelRuntime.MaxModelMemoryMB
	if ceiling <= 0 {
		return nil
	}
	if c.ModelRuntime.SingleModel != "" {
		if c.ModelRuntime.SingleModelMemoryMB > ceiling {
			return fmt.Errorf("config: single_model %q needs %dMB, exceeds max_model_memory_mb %dMB",
				c.ModelRuntime.SingleModel, c.ModelRuntime.SingleModelMemoryMB, ceiling)
		}
		return nil
	}

	minRequired := 0
	for _, m := range c.ModelRuntime.Agents {
		if m.MinMemoryMB <= ceiling {
			return nil
		}
		if minRequired == 0 || m.MinMemoryMB < minRequired {
			minRequired = m.MinMemoryMB
		}
	}
	if len(c.ModelRuntime.Agents) == 0 {
		return nil
	}
	return fmt.Errorf("config: no agent model fits in max_model_memory_mb %dMB (smallest configured agent needs %dMB)",
		ceiling, minRequired)
}

// Default returns spec.md §6's documented defaults.
func Default() *Config {
	return &Config{
		ModelRuntime: ModelRuntimeConfig{
			OllamaBaseURL:          "http://localhost:11434",
			ModelID:                "llama3.1",
			ModelLoadRetries:       3,
			ModelLoadBackoffBase:   2 * time.Second,
			ModelSwapSettleWait:    2 * time.Second,
			LoadAttemptTimeout:     30 * time.Second,
			GenerateAttemptTimeout: 1800 * time.Second,
			MaxGenerationTokens:    4096,
			MaxContextTokens:       16384,
			Temperature:            0.3,
			RepeatPenalty:          1.15,
			TopK:                   40,
			TopP:                   0.95,
			MaxModelMemoryMB:       24000,
			Agents: map[string]AgentModelConfig{
				"interpreter": {ModelID: "llama3.1:8b-instruct-q4_K_M", MinMemoryMB: 5000, Temperature: 0.3},
				"planner":     {ModelID: "mistral-nemo:12b-instruct-q4_K_M", MinMemoryMB: 7500, Temperature: 0.3},
				"grounder":    {ModelID: "qwen2.5:7b-instruct-q4_K_M", MinMemoryMB: 4500, Temperature: 0.3},
				"auditor":     {ModelID: "gemma2:9b-instruct-q4_K_M", MinMemoryMB: 5500, Temperature: 0.3},
				"visualizer":  {ModelID: "phi3.5:3.8b-mini-instruct-q4_K_M", MinMemoryMB: 2500, Temperature: 0.3},
				"judge":       {ModelID: "qwen2.5:14b-instruct-q4_K_M", MinMemoryMB: 9000, Temperature: 0.3},
			},
		},
		Pipeline: PipelineConfig{
			AgentTimeBudget:       1800 * time.Second,
			MaxDeliberationRounds: 7,
			ConsensusThreshold:    0.85,
			MaxParseRetries:       2,
		},
		Retrieval: RetrievalConfig{
			VectorK:               5,
			WebK:                  5,
			MaxSourcesPerQuestion: 10,
			MaxConcurrentFanout:   4,
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
		WebSearch: WebSearchConfig{
			Provider:     "serpapi",
			CacheTTLDays: 7,
		},
		VectorStore: VectorStoreConfig{
			DBPath:              "",
			EmbeddingDimensions: 768,
			EmbeddingModel:      "text-embedding-004",
		},
		Citation: CitationConfig{
			BibliographyStyle: "apa",
		},
	}
}
