package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads an optional YAML config file, overlays ZKF_*-prefixed
// environment variables, and returns the merged Config. A missing file is
// not an error, mirroring the teacher's loader.Load.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = defaultConfigPath()
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	loadFromEnv(cfg)
	return cfg, nil
}

func defaultConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "zkf", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "zkf", "config.yaml")
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func loadFromEnv(cfg *Config) {
	setString("ZKF_OLLAMA_BASE_URL", &cfg.ModelRuntime.OllamaBaseURL)
	setString("ZKF_MODEL_ID", &cfg.ModelRuntime.ModelID)
	setInt("ZKF_MODEL_LOAD_RETRIES", &cfg.ModelRuntime.ModelLoadRetries)
	setDuration("ZKF_MODEL_LOAD_BACKOFF_BASE_SECONDS", &cfg.ModelRuntime.ModelLoadBackoffBase)
	setDuration("ZKF_MODEL_SWAP_SETTLE_SECONDS", &cfg.ModelRuntime.ModelSwapSettleWait)
	setInt("ZKF_MAX_GENERATION_TOKENS", &cfg.ModelRuntime.MaxGenerationTokens)
	setInt("ZKF_MAX_CONTEXT_TOKENS", &cfg.ModelRuntime.MaxContextTokens)
	setFloat("ZKF_REPEAT_PENALTY", &cfg.ModelRuntime.RepeatPenalty)
	setInt("ZKF_TOP_K", &cfg.ModelRuntime.TopK)
	setFloat("ZKF_TOP_P", &cfg.ModelRuntime.TopP)
	setInt("ZKF_MAX_MODEL_MEMORY_MB", &cfg.ModelRuntime.MaxModelMemoryMB)
	setString("ZKF_SINGLE_MODEL", &cfg.ModelRuntime.SingleModel)
	setInt("ZKF_SINGLE_MODEL_MEMORY_MB", &cfg.ModelRuntime.SingleModelMemoryMB)

	setInt("ZKF_MAX_DELIBERATION_ROUNDS", &cfg.Pipeline.MaxDeliberationRounds)
	setFloat("ZKF_CONSENSUS_THRESHOLD", &cfg.Pipeline.ConsensusThreshold)
	setInt("ZKF_MAX_PARSE_RETRIES", &cfg.Pipeline.MaxParseRetries)
	setDuration("ZKF_AGENT_TIME_BUDGET_SECONDS", &cfg.Pipeline.AgentTimeBudget)

	setInt("ZKF_VECTOR_K", &cfg.Retrieval.VectorK)
	setInt("ZKF_WEB_K", &cfg.Retrieval.WebK)
	setInt("ZKF_MAX_SOURCES_PER_QUESTION", &cfg.Retrieval.MaxSourcesPerQuestion)

	setString("ZKF_LOG_LEVEL", &cfg.Logging.Level)
	setString("ZKF_LOG_FILE", &cfg.Logging.FilePath)

	setString("ZKF_WEB_SEARCH_PROVIDER", &cfg.WebSearch.Provider)
	setString("ZKF_WEB_SEARCH_API_KEY", &cfg.WebSearch.APIKey)
	setString("ZKF_GOOGLE_CX", &cfg.WebSearch.GoogleCX)

	setString("ZKF_VECTOR_DB_PATH", &cfg.VectorStore.DBPath)
	setInt("ZKF_VECTOR_DIMENSIONS", &cfg.VectorStore.EmbeddingDimensions)

	setString("ZKF_BIBLIOGRAPHY_STYLE", &cfg.Citation.BibliographyStyle)
}

func setString(env string, dst *string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setInt(env string, dst *int) {
	v := os.Getenv(env)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

func setFloat(env string, dst *float64) {
	v := os.Getenv(env)
	if v == "" {
		return
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		*dst = f
	}
}

func setDuration(env string, dst *time.Duration) {
	v := os.Getenv(env)
	if v == "" {
		return
	}
	if secs, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(secs) * time.Second
	}
}
