package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"termsheet/internal/catalog"
)

var promptsJSON bool

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Validate and list the prompt catalog",
	Args:  cobra.NoArgs,
	RunE:  runPrompts,
}

func init() {
	promptsCmd.Flags().BoolVar(&promptsJSON, "json", false, "print the parsed catalog as JSON")
	rootCmd.AddCommand(promptsCmd)
}

func runPrompts(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	prompts, err := catalog.Load(cfg.Pipeline.PromptsFile)
	if err != nil {
		return err
	}

	if promptsJSON {
		data, err := json.MarshalIndent(prompts, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal prompts: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	cmd.Printf("%d prompts in %s\n\n", len(prompts), cfg.Pipeline.PromptsFile)
	for i := range prompts {
		p := &prompts[i]
		id := p.ID
		if id == "" {
			id = "-"
		}
		cmd.Printf("[%d] %s (scope: %s)\n    %s\n", i+1, id, p.Scope(), p.Instruction)
	}
	return nil
}
