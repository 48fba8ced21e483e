package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kspringfield13/xenosync/internal/prompt"
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Manage build prompts",
}

var promptListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available prompts",
	RunE:  runPromptList,
}

var promptValidateCmd = &cobra.Command{
	Use:   "validate prompt-file",
	Short: "Validate a prompt file",
	Args:  cobra.ExactArgs(1),
	RunE:  runPromptValidate,
}

var promptConvertCmd = &cobra.Command{
	Use:   "convert input-file output-file",
	Short: "Convert a prompt between text and YAML formats",
	Args:  cobra.ExactArgs(2),
	RunE:  runPromptConvert,
}

func init() {
	promptCmd.AddCommand(promptListCmd, promptValidateCmd, promptConvertCmd)
	rootCmd.AddCommand(promptCmd)
}

func runPromptList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig("")
	if err != nil {
		return err
	}
	prompts, err := prompt.List(cfg.PromptsDir)
	if err != nil {
		return err
	}
	if len(prompts) == 0 {
		fmt.Println("No prompts found")
		return nil
	}
	fmt.Println("Available Prompts:")
	for _, p := range prompts {
		fmt.Printf("  %s - %d steps\n", p.Name, len(p.Tasks))
		if p.Description != "" {
			fmt.Printf("    %s\n", p.Description)
		}
	}
	return nil
}

func runPromptValidate(cmd *cobra.Command, args []string) error {
	p, err := prompt.Load(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ Invalid prompt: %v\n", err)
		os.Exit(1)
	}
	if err := prompt.Validate(p); err != nil {
		fmt.Fprintf(os.Stderr, "✗ Invalid prompt: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Prompt is valid: %s\n", p.Name)
	fmt.Printf("  Steps: %d\n", len(p.Tasks))
	fmt.Printf("  Format: %s\n", p.Format)
	return nil
}

func runPromptConvert(cmd *cobra.Command, args []string) error {
	input, output := args[0], args[1]
	p, err := prompt.Load(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Conversion failed: %v\n", err)
		os.Exit(1)
	}

	var data []byte
	switch strings.ToLower(filepath.Ext(output)) {
	case ".yaml", ".yml":
		data, err = prompt.ToYAML(p)
	case ".txt":
		data = prompt.ToText(p)
	default:
		err = fmt.Errorf("unsupported output extension %q", filepath.Ext(output))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Conversion failed: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(output, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("Converted %s to %s\n", input, output)
	return nil
}
