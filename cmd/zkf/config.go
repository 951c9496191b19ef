package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	zkfconfig "github.com/Niruuu2005/ZenKnowledgeForge/internal/config"
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective merged configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := zkfconfig.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			encoded, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			fmt.Println(string(encoded))
			return nil
		},
	}
}
