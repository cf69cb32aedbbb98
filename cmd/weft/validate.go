package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tapestrylab/weft/internal/logging"
	"github.com/tapestrylab/weft/internal/presentation/graph"
	"github.com/tapestrylab/weft/pkg/domain"
	"github.com/tapestrylab/weft/pkg/ingest"
	"github.com/tapestrylab/weft/pkg/validate"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a document for structural consistency",
	Long: `Loads a document from a JSON file or a recorded NDJSON edit stream,
applies deterministic auto-fixes, and reports any remaining structural
errors such as dangling child references.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mermaid, _ := cmd.Flags().GetBool("graph")

		spec, err := loadDocument(cmd, args[0])
		if err != nil {
			return err
		}

		spec, fixes := validate.AutoFix(spec)
		for _, fix := range fixes {
			fmt.Fprintf(cmd.OutOrStdout(), "fixed: %s\n", fix)
		}

		res := validate.Validate(spec)
		for _, iss := range res.Issues {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s)\n", iss.Severity, iss.Message, iss.Path)
		}

		if mermaid {
			fmt.Fprintln(cmd.OutOrStdout(), graph.GenerateMermaid(spec))
		}

		if !res.Valid {
			return fmt.Errorf("document has %d structural error(s)", len(res.Errors()))
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Document is valid! ✅")
		return nil
	},
}

// loadDocument reads either a full document JSON file or an NDJSON edit
// stream, keyed off the file extension.
func loadDocument(cmd *cobra.Command, path string) (*domain.Spec, error) {
	if strings.HasSuffix(path, ".ndjson") || strings.HasSuffix(path, ".jsonl") {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening stream: %w", err)
		}
		defer f.Close()

		ing := ingest.New(nil, ingest.WithLogger(logging.NewNop()), ingest.WithoutValidation())
		res, err := ing.IngestReader(cmd.Context(), f, nil)
		if err != nil {
			return nil, err
		}
		return res.Spec, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	spec := domain.NewSpec()
	if err := json.Unmarshal(data, spec); err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	return spec, nil
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Bool("graph", false, "Print a mermaid graph of the document tree")
}
