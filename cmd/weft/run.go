package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	weft "github.com/tapestrylab/weft"
	"github.com/tapestrylab/weft/internal/logging"
	"github.com/tapestrylab/weft/internal/presentation/tui"
	"github.com/tapestrylab/weft/pkg/adapters/genhttp"
	"github.com/tapestrylab/weft/pkg/domain"
	"github.com/tapestrylab/weft/pkg/ingest"
)

var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Generate a document and preview it in the terminal",
	Long: `Sends the prompt to the generation backend, streams the resulting
document, and renders a terminal preview of the generated UI tree.
With --input, replays a recorded NDJSON edit stream instead of calling
a backend.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		debug, _ := cmd.Flags().GetBool("debug")
		backend, _ := cmd.Flags().GetString("backend")
		apiKey, _ := cmd.Flags().GetString("api-key")
		input, _ := cmd.Flags().GetString("input")
		retries, _ := cmd.Flags().GetInt("max-retries")
		asJSON, _ := cmd.Flags().GetBool("json")

		level := slog.LevelWarn
		if debug {
			level = slog.LevelDebug
		}
		logger := logging.New(level)

		if input != "" {
			return runFromFile(cmd, input, logger, asJSON)
		}

		if len(args) == 0 {
			return fmt.Errorf("a prompt is required unless --input is given")
		}
		if backend == "" {
			return fmt.Errorf("--backend is required (or use --input to replay a stream)")
		}

		genOpts := []genhttp.Option{genhttp.WithLogger(logger)}
		if apiKey != "" {
			genOpts = append(genOpts, genhttp.WithAPIKey(apiKey))
		}
		engine := weft.New(genhttp.New(backend, genOpts...),
			weft.WithLogger(logger),
			weft.WithMaxRetries(retries),
		)
		defer engine.Close()

		if !asJSON {
			tui.PrintBanner()
		}

		res, err := engine.Generate(cmd.Context(), args[0], nil)
		if err != nil {
			reportIssues(res)
			return err
		}
		return printResult(cmd, engine.Spec(), engine.State().Snapshot(), res, asJSON)
	},
}

func runFromFile(cmd *cobra.Command, path string, logger *slog.Logger, asJSON bool) error {
	var in io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening stream: %w", err)
		}
		defer f.Close()
		in = f
	}

	ing := ingest.New(nil, ingest.WithLogger(logger), ingest.WithoutValidation())
	res, err := ing.IngestReader(cmd.Context(), in, nil)
	if err != nil {
		return err
	}
	return printResult(cmd, res.Spec, res.Spec.State, res, asJSON)
}

func printResult(cmd *cobra.Command, spec *domain.Spec, stateDoc map[string]any, res *ingest.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(spec)
	}

	md := tui.SpecMarkdown(spec, stateDoc)
	render := tui.NewRenderer()
	out, err := render(md)
	if err != nil {
		// Unstyled fallback when the terminal profile cannot be probed.
		out = md
	}
	fmt.Fprint(cmd.OutOrStdout(), out)

	fmt.Fprintf(cmd.OutOrStdout(), "\n%d patches applied in %d round(s)", res.Applied, res.Rounds)
	if res.Recovered > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), ", %d lines recovered", res.Recovered)
	}
	fmt.Fprintln(cmd.OutOrStdout())
	reportIssues(res)
	return nil
}

func reportIssues(res *ingest.Result) {
	if res == nil {
		return
	}
	for _, iss := range res.Issues {
		fmt.Fprintf(os.Stderr, "  %s: %s (%s)\n", iss.Severity, iss.Message, iss.Path)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("backend", "", "Generation backend base URL")
	runCmd.Flags().String("api-key", "", "Bearer token for the backend")
	runCmd.Flags().String("input", "", "Replay a recorded NDJSON edit stream from a file, or - for stdin")
	runCmd.Flags().Int("max-retries", ingest.DefaultMaxRetries, "Repair retry budget")
	runCmd.Flags().Bool("json", false, "Print the raw document JSON instead of the preview")
}
