package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	zkfconfig "github.com/Niruuu2005/ZenKnowledgeForge/internal/config"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/modelruntime"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Probe the configured model runtime for reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := zkfconfig.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			if err := cfg.ValidateHardwareCompatibility(); err != nil {
				fmt.Printf("hardware compatibility: FAIL (%v)\n", err)
				return nil
			}
			fmt.Println("hardware compatibility: OK")

			client, err := modelruntime.NewOllamaClient(modelruntime.OllamaConfig{BaseURL: cfg.ModelRuntime.OllamaBaseURL})
			if err != nil {
				fmt.Printf("model runtime: FAIL (%v)\n", err)
				return nil
			}

			for _, agentName := range []string{"interpreter", "planner", "grounder", "auditor", "visualizer", "judge"} {
				am := cfg.ResolveAgentModel(agentName)
				deadline := time.Now().Add(cfg.ModelRuntime.LoadAttemptTimeout)
				if err := client.EnsurePresent(context.Background(), am.ModelID, deadline); err != nil {
					fmt.Printf("%s model %q at %s: FAIL (%v)\n", agentName, am.ModelID, cfg.ModelRuntime.OllamaBaseURL, err)
					continue
				}
				fmt.Printf("%s model %q at %s: OK\n", agentName, am.ModelID, cfg.ModelRuntime.OllamaBaseURL)
			}
			return nil
		},
	}
}
