package main

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"slidesmith-backend/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the whole pipeline and write the assembled HTML document",
	Long: `Generate the content, render every slide in parallel and assemble the
final document. Stage changes and slide progress are reported on stderr.

Examples:
  slidesmith run --topic "Onboarding" --out deck.html
  slidesmith run --request request.json --allow-partial -p anthropic`,
	RunE: runRun,
}

func init() {
	addRequestFlags(runCmd)
	runCmd.Flags().StringP("out", "o", "", "Write the document to this file instead of stdout")
	runCmd.Flags().Bool("allow-partial", false, "Assemble the slides that rendered when some fail")
}

func runRun(cmd *cobra.Command, args []string) error {
	req, err := requestFromFlags(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	allowPartial, _ := cmd.Flags().GetBool("allow-partial")

	progress := pipeline.NewProgress()
	type outcome struct {
		res *pipeline.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := a.pipeline.Run(cmd.Context(), req, progress, pipeline.Options{AllowPartial: allowPartial})
		done <- outcome{res, err}
	}()

	errOut := cmd.ErrOrStderr()
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	var last pipeline.Snapshot
	report := func() {
		snap := progress.Snapshot()
		if snap.Stage != last.Stage || snap.CompletedSlides != last.CompletedSlides {
			if snap.TotalSlides > 0 {
				fmt.Fprintf(errOut, "%s %d/%d\n", snap.Stage, snap.CompletedSlides, snap.TotalSlides)
			} else {
				fmt.Fprintf(errOut, "%s\n", snap.Stage)
			}
		}
		last = snap
	}

	for {
		select {
		case <-ticker.C:
			report()
		case o := <-done:
			report()
			for _, i := range slices.Sorted(maps.Keys(last.SlideErrors)) {
				fmt.Fprintf(errOut, "slide %d failed: %s\n", i, last.SlideErrors[i])
			}
			if o.err != nil {
				return o.err
			}
			return writeDocument(cmd, o.res.Document)
		}
	}
}

func writeDocument(cmd *cobra.Command, doc string) error {
	path, _ := cmd.Flags().GetString("out")
	if path == "" {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), doc)
		return err
	}
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", path)
	return nil
}
