package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"gantry/cli/internal/generator"
)

var newOutputDir string

var newCmd = &cobra.Command{
	Use:   "new <plugin|middleware|route-middleware> <name>",
	Short: "Scaffold a plugin source file",
	Long: `New generates a plugin source file ready to build with
-buildmode=plugin.

Example:
  gantry new plugin users
  gantry new middleware logger
  gantry new route-middleware auth
`,
	Args: cobra.ExactArgs(2),
	RunE: runNew,
}

func init() {
	newCmd.Flags().StringVarP(&newOutputDir, "dir", "d", ".", "Directory to write the generated file into")
}

func runNew(_ *cobra.Command, args []string) error {
	kind, name := args[0], args[1]

	result, err := generator.Generate(generator.Kind(kind), name, newOutputDir)
	if err != nil {
		return fmt.Errorf("failed to generate %s: %w", kind, err)
	}

	fmt.Printf("Wrote %s\n", result.SourcePath)
	fmt.Printf("Build it with:\n  %s\n", result.BuildCommand)
	return nil
}
