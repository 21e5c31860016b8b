package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"slidesmith-backend/internal/analyzer"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [prompt]",
	Short: "Classify a prompt and list the clarifying questions",
	Long: `Analyze a free-form prompt. Without --answer the analysis is printed as
JSON. With one or more --answer flags the generation request built from the
analysis and the answers is printed instead, ready for "generate --request".

Examples:
  slidesmith analyze "A deck about renewable energy"
  slidesmith analyze --file notes.md
  slidesmith analyze "Pitch for our CRM" --answer numberOfSlides=6 --answer style=creative`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringP("file", "f", "", "Read the prompt from a file")
	analyzeCmd.Flags().StringToString("answer", nil, "Answer a question (field=value); repeatable")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	prompt, err := promptFromArgs(cmd, args)
	if err != nil {
		return err
	}
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	res, err := a.analyzer.Analyze(cmd.Context(), prompt, a.provider)
	if err != nil {
		return err
	}
	answers, _ := cmd.Flags().GetStringToString("answer")
	if len(answers) == 0 {
		return printJSON(cmd.OutOrStdout(), res)
	}

	req := analyzer.ApplyAnswers(*res, answers)
	req.ModelProvider = a.provider
	if err := req.Validate(); err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), req)
}

func promptFromArgs(cmd *cobra.Command, args []string) (string, error) {
	path, _ := cmd.Flags().GetString("file")
	switch {
	case path != "" && len(args) > 0:
		return "", fmt.Errorf("pass either a prompt or --file, not both")
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read prompt: %w", err)
		}
		return string(data), nil
	case len(args) == 1:
		return args[0], nil
	}
	return "", fmt.Errorf("a prompt is required")
}
