package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultMatchesDocumentedDefaults(t *testing.T) {
	cfg := Default()
	if cfg.ModelRuntime.ModelLoadRetries != 3 {
		t.Errorf("expected model_load_retries=3, got %d", cfg.ModelRuntime.ModelLoadRetries)
	}
	if cfg.Pipeline.ConsensusThreshold != 0.85 {
		t.Errorf("expected consensus_threshold=0.85, got %f", cfg.Pipeline.ConsensusThreshold)
	}
	if cfg.Pipeline.MaxDeliberationRounds != 7 {
		t.Errorf("expected max_deliberation_rounds=7, got %d", cfg.Pipeline.MaxDeliberationRounds)
	}
	if cfg.Retrieval.MaxSourcesPerQuestion != 10 {
		t.Errorf("expected max_sources_per_question=10, got %d", cfg.Retrieval.MaxSourcesPerQuestion)
	}
}

func TestLoadOverlaysEnvVars(t *testing.T) {
	t.Setenv("ZKF_MODEL_ID", "custom-model")
	t.Setenv("ZKF_CONSENSUS_THRESHOLD", "0.9")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ModelRuntime.ModelID != "custom-model" {
		t.Errorf("expected env override for model id, got %q", cfg.ModelRuntime.ModelID)
	}
	if cfg.Pipeline.ConsensusThreshold != 0.9 {
		t.Errorf("expected env override for consensus threshold, got %f", cfg.Pipeline.ConsensusThreshold)
	}
}

func TestLoadFromMissingFileIsNotAnError(t *testing.T) {
	_, err := Load(filepath.Join(os.TempDir(), "zkf-config-does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("expected missing file to be tolerated, got %v", err)
	}
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("model_runtime:\n  model_id: file-model\n"), 0o600); err != nil {
		t.Fatalf("write test config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ModelRuntime.ModelID != "file-model" {
		t.Errorf("expected file override, got %q", cfg.ModelRuntime.ModelID)
	}
}

func TestResolveAgentModelReturnsPerAgentEntry(t *testing.T) {
	cfg := Default()
	got := cfg.ResolveAgentModel("judge")
	if got.ModelID != "qwen2.5:14b-instruct-q4_K_M" {
		t.Errorf("expected judge's own model, got %q", got.ModelID)
	}
	if got.MinMemoryMB != 9000 {
		t.Errorf("expected judge's own memory footprint, got %d", got.MinMemoryMB)
	}
}

func TestResolveAgentModelFallsBackForUnknownAgent(t *testing.T) {
	cfg := Default()
	got := cfg.ResolveAgentModel("does-not-exist")
	if got.ModelID != cfg.ModelRuntime.ModelID {
		t.Errorf("expected fallback to model_runtime.model_id, got %q", got.ModelID)
	}
}

func TestResolveAgentModelSingleModelOverridesAgents(t *testing.T) {
	cfg := Default()
	cfg.ModelRuntime.SingleModel = "shared-model"
	cfg.ModelRuntime.SingleModelMemoryMB = 6000

	got := cfg.ResolveAgentModel("judge")
	if got.ModelID != "shared-model" || got.MinMemoryMB != 6000 {
		t.Errorf("expected single_model override, got %+v", got)
	}
}

func TestValidateHardwareCompatibilityPassesWhenUnconstrained(t *testing.T) {
	cfg := Default()
	cfg.ModelRuntime.MaxModelMemoryMB = 0
	if err := cfg.ValidateHardwareCompatibility(); err != nil {
		t.Errorf("expected no error when unconstrained, got %v", err)
	}
}

func TestValidateHardwareCompatibilityFailsWhenNoAgentFits(t *testing.T) {
	cfg := Default()
	cfg.ModelRuntime.MaxModelMemoryMB = 1000
	if err := cfg.ValidateHardwareCompatibility(); err == nil {
		t.Error("expected error when no agent model fits the ceiling")
	}
}

func TestValidateHardwareCompatibilityPassesWhenOneAgentFits(t *testing.T) {
	cfg := Default()
	cfg.ModelRuntime.MaxModelMemoryMB = 3000
	if err := cfg.ValidateHardwareCompatibility(); err != nil {
		t.Errorf("expected visualizer's 2500MB to fit, got %v", err)
	}
}

func TestValidateHardwareCompatibilitySingleModelChecksOnlyThatModel(t *testing.T) {
	cfg := Default()
	cfg.ModelRuntime.MaxModelMemoryMB = 5000
	cfg.ModelRuntime.SingleModel = "shared-model"
	cfg.ModelRuntime.SingleModelMemoryMB = 5500
	if err := cfg.ValidateHardwareCompatibility(); err == nil {
		t.Error("expected error when single_model exceeds the ceiling")
	}
}

func TestLoadOverlaysNewEnvVars(t *testing.T) {
	t.Setenv("ZKF_REPEAT_PENALTY", "1.3")
	t.Setenv("ZKF_TOP_K", "20")
	t.Setenv("ZKF_TOP_P", "0.8")
	t.Setenv("ZKF_MAX_MODEL_MEMORY_MB", "8000")
	t.Setenv("ZKF_SINGLE_MODEL", "override-model")
	t.Setenv("ZKF_SINGLE_MODEL_MEMORY_MB", "4000")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ModelRuntime.RepeatPenalty != 1.3 {
		t.Errorf("expected repeat_penalty override, got %f", cfg.ModelRuntime.RepeatPenalty)
	}
	if cfg.ModelRuntime.TopK != 20 {
		t.Errorf("expected top_k override, got %d", cfg.ModelRuntime.TopK)
	}
	if cfg.ModelRuntime.TopP != 0.8 {
		t.Errorf("expected top_p override, got %f", cfg.ModelRuntime.TopP)
	}
	if cfg.ModelRuntime.MaxModelMemoryMB != 8000 {
		t.Errorf("expected max_model_memory_mb override, got %d", cfg.ModelRuntime.MaxModelMemoryMB)
	}
	if cfg.ModelRuntime.SingleModel != "override-model" {
		t.Errorf("expected single_model override, got %q", cfg.ModelRuntime.SingleModel)
	}
	if cfg.ModelRuntime.SingleModelMemoryMB != 4000 {
		t.Errorf("expected single_model_memory_mb override, got %d", cfg.ModelRuntime.SingleModelMemoryMB)
	}
}
