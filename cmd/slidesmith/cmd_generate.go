package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"slidesmith-backend/internal/deck"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the deck content (title, summary and slides) as JSON",
	Long: `Generate deck content for a request. The request comes from flags or from
a JSON file written by "analyze --answer".

Examples:
  slidesmith generate --topic "Q3 results" --slides 6 --audience executives
  slidesmith generate --content-file notes.md --slides 1 --stream
  slidesmith generate --request request.json -p openai`,
	RunE: runGenerate,
}

func init() {
	addRequestFlags(generateCmd)
	generateCmd.Flags().Bool("stream", false, "Print raw model fragments as they arrive instead of the parsed deck")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	req, err := requestFromFlags(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	req = req.WithDefaults(a.provider)

	if stream, _ := cmd.Flags().GetBool("stream"); stream {
		seq, err := a.content.StreamDeckContent(cmd.Context(), req)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for text, err := range seq {
			if err != nil {
				return err
			}
			if _, err := io.WriteString(out, text); err != nil {
				return err
			}
		}
		_, err = fmt.Fprintln(out)
		return err
	}

	doc, err := a.content.GenerateDeck(cmd.Context(), req)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), doc)
}

func addRequestFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("request", "", "Read the generation request from a JSON file (flags override its fields)")
	f.StringP("topic", "t", "", "Presentation topic")
	f.IntP("slides", "n", deck.DefaultSlides, "Number of slides (3-20, or 1 with --content-file)")
	f.StringP("audience", "a", deck.DefaultAudience, "Target audience")
	f.StringP("style", "s", string(deck.DefaultStyle), "Style: professional, creative, minimal, corporate")
	f.String("instructions", "", "Additional instructions for the model")
	f.String("content-file", "", "Structure the content of this file instead of writing from a topic")
}

// requestFromFlags builds a GenerationRequest. Flags the user set win over
// the --request file; unset flags only fill fields the file left empty.
func requestFromFlags(cmd *cobra.Command) (deck.GenerationRequest, error) {
	f := cmd.Flags()
	var req deck.GenerationRequest
	if path, _ := f.GetString("request"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return req, fmt.Errorf("read request: %w", err)
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return req, fmt.Errorf("parse request: %w", err)
		}
	}

	str := func(name string, dst *string) {
		if v, _ := f.GetString(name); f.Changed(name) || strings.TrimSpace(*dst) == "" {
			*dst = v
		}
	}
	str("topic", &req.Topic)
	str("audience", &req.Audience)
	str("instructions", &req.AdditionalInstructions)

	style := string(req.Style)
	str("style", &style)
	req.Style = deck.Style(style)

	if n, _ := f.GetInt("slides"); f.Changed("slides") || req.NumberOfSlides == 0 {
		req.NumberOfSlides = n
	}
	if path, _ := f.GetString("content-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return req, fmt.Errorf("read content: %w", err)
		}
		req.UserContent = string(data)
		req.HasUserContent = true
	}
	if req.HasUserContent && strings.TrimSpace(req.Topic) == "" {
		req.Topic = deck.DefaultTopic
	}
	if raw, _ := cmd.Flags().GetString("provider"); raw != "" {
		req.ModelProvider = ""
	}
	return req, nil
}
