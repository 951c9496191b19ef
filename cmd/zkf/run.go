package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"google.golang.org/genai"

	"github.com/Niruuu2005/ZenKnowledgeForge/internal/agentcore"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/agents"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/citation"
	zkfconfig "github.com/Niruuu2005/ZenKnowledgeForge/internal/config"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/logging"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/modelruntime"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/modelslot"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/pipeline"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/retrieval"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/retrieval/vectorstore"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/retrieval/websearch"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/state"
)

// exitAccept/exitGateFailed/exitCancelled implement spec.md §6's process
// exit codes for the run command specifically; exitConfigOrFatal (1) is
// main's default for anything that surfaces as a returned error.
const (
	exitAccept     = 0
	exitGateFailed = 2
	exitCancelled  = 130
)

func newRunCmd() *cobra.Command {
	var brief string
	var modeFlag string
	var sessionID string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the deliberation pipeline over a user brief",
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := state.Mode(modeFlag)
			switch mode {
			case state.ModeResearch, state.ModeProject, state.ModeLearn:
			default:
				return fmt.Errorf("--mode must be one of research|project|learn, got %q", modeFlag)
			}
			if brief == "" {
				return fmt.Errorf("--brief is required")
			}
			if sessionID == "" {
				sessionID = uuid.NewString()
			}

			return runPipeline(brief, mode, sessionID)
		},
	}

	cmd.Flags().StringVar(&brief, "brief", "", "the user's brief to deliberate over (required)")
	cmd.Flags().StringVar(&modeFlag, "mode", "research", "deliberation mode: research|project|learn")
	cmd.Flags().StringVar(&sessionID, "session-id", "", "session id (generated if omitted)")
	return cmd
}

func runPipeline(brief string, mode state.Mode, sessionID string) error {
	cfg, err := zkfconfig.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.SetLevel(logging.ParseLevel(cfg.Logging.Level))
	if err := cfg.ValidateHardwareCompatibility(); err != nil {
		return err
	}

	runtimeClient, err := modelruntime.NewOllamaClient(modelruntime.OllamaConfig{BaseURL: cfg.ModelRuntime.OllamaBaseURL})
	if err != nil {
		return fmt.Errorf("construct model runtime client: %w", err)
	}

	slot := modelslot.New(runtimeClient, modelslot.Config{
		MaxLoadRetries:    cfg.ModelRuntime.ModelLoadRetries,
		LoadBackoffBase:   cfg.ModelRuntime.ModelLoadBackoffBase,
		SwapSettleWait:    cfg.ModelRuntime.ModelSwapSettleWait,
		PerAttemptTimeout: cfg.ModelRuntime.LoadAttemptTimeout,
	})

	base := agentcore.New(slot, runtimeClient, agentcore.Config{MaxParseRetries: cfg.Pipeline.MaxParseRetries})

	descriptorFor := func(agentName string) state.ModelDescriptor {
		am := cfg.ResolveAgentModel(agentName)
		return state.ModelDescriptor{
			ModelID:          am.ModelID,
			MinMemoryMB:      am.MinMemoryMB,
			Temperature:      am.Temperature,
			MaxContextTokens: cfg.ModelRuntime.MaxContextTokens,
			MaxGenTokens:     cfg.ModelRuntime.MaxGenerationTokens,
			RepeatPenalty:    cfg.ModelRuntime.RepeatPenalty,
			TopK:             cfg.ModelRuntime.TopK,
			TopP:             cfg.ModelRuntime.TopP,
		}
	}

	citations := citation.New()
	webClient := websearch.New(websearch.Config{
		Provider: websearch.Provider(cfg.WebSearch.Provider),
		APIKey:   cfg.WebSearch.APIKey,
		GoogleCX: cfg.WebSearch.GoogleCX,
		CacheTTL: time.Duration(cfg.WebSearch.CacheTTLDays) * 24 * time.Hour,
	})

	var vectorSearcher vectorstore.Searcher
	genaiClient, err := genai.NewClient(context.Background(), &genai.ClientConfig{})
	if err != nil {
		logging.Warn("genai client unavailable, vector search disabled", "error", err)
	} else {
		store, err := vectorstore.Open(vectorstore.Config{
			DBPath:     cfg.VectorStore.DBPath,
			Dimensions: cfg.VectorStore.EmbeddingDimensions,
		}, vectorstore.NewGenaiEmbedder(genaiClient, cfg.VectorStore.EmbeddingModel))
		if err != nil {
			logging.Warn("vector store unavailable", "error", err)
		} else {
			defer store.Close()
			vectorSearcher = store
		}
	}

	retriever := retrieval.New(retrieval.Config{
		VectorK:           cfg.Retrieval.VectorK,
		WebK:              cfg.Retrieval.WebK,
		MaxOutboundFanout: cfg.Retrieval.MaxConcurrentFanout,
	}, vectorSearcher, webClient, citations)

	engine := pipeline.New(slot, pipeline.Config{
		AgentTimeBudget:       cfg.Pipeline.AgentTimeBudget,
		MaxDeliberationRounds: cfg.Pipeline.MaxDeliberationRounds,
	})
	engine.Register(state.AgentInterpreter, agents.NewInterpreter(base, descriptorFor("interpreter")))
	engine.Register(state.AgentPlanner, agents.NewPlanner(base, descriptorFor("planner")))
	engine.Register(state.AgentGrounder, agents.NewGrounder(base, descriptorFor("grounder"), retriever, cfg.Retrieval.MaxSourcesPerQuestion))
	engine.Register(state.AgentAuditor, agents.NewAuditor(base, descriptorFor("auditor")))
	engine.Register(state.AgentVisualizer, agents.NewVisualizer(base, descriptorFor("visualizer")))
	engine.Register(state.AgentJudge, agents.NewJudge(base, descriptorFor("judge"), cfg.Pipeline.ConsensusThreshold, cfg.Pipeline.MaxDeliberationRounds))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	overallDeadline := time.Now().Add(overallBudgetMultiplier * cfg.Pipeline.AgentTimeBudget)
	result := engine.Run(ctx, brief, mode, nil, sessionID, overallDeadline)

	if result.FinalArtifact != nil && citations.Len() > 0 {
		if result.FinalArtifact.Metadata == nil {
			result.FinalArtifact.Metadata = map[string]any{}
		}
		result.FinalArtifact.Metadata["bibliography"] = citations.FormatBibliography(citation.BibliographyStyle(cfg.Citation.BibliographyStyle))
		result.FinalArtifact.Metadata["citation_stats"] = citations.Stats()
		if issues := citations.Validate(); len(issues) > 0 {
			logging.Warn("citation validation found issues", "count", len(issues))
			result.FinalArtifact.Metadata["citation_issues"] = issues
		}
	}

	encoded, err := json.MarshalIndent(result.FinalArtifact, "", "  ")
	if err != nil {
		return fmt.Errorf("encode final artifact: %w", err)
	}
	fmt.Println(string(encoded))

	if ctx.Err() != nil {
		os.Exit(exitCancelled)
	}
	if result.FinalArtifact == nil || result.FinalArtifact.Decision != "accept" || result.HasErrorFor(state.AgentJudge) {
		os.Exit(exitGateFailed)
	}
	os.Exit(exitAccept)
	return nil
}

// overallBudgetMultiplier bounds the overall deadline at six agent-time
// budgets — the longest mode's sequence plus one revision round — so a
// run under default config gets roughly 3 hours of wall-clock headroom.
const overallBudgetMultiplier = 6
