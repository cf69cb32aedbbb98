package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "weft",
	Short: "Weft turns prompts into live, scriptable UI documents",
	Long: `Weft drives a generation backend that emits UI documents as a stream
of JSON patches, validates and repairs the result, and executes the
document's event and action bindings against a state store.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
}
