package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/skillet-data/skillet/internal/schema"
	"github.com/skillet-data/skillet/internal/steps"
)

var schemaOut string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Generate the JSON Schema for recipe documents",
	Long: `Generates a JSON Schema describing every registered step kind and
its configuration, suitable for editor integration. The output is
deterministic: the same registry always produces the same bytes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := schema.Generate(steps.Defaults())
		if err != nil {
			return err
		}
		if schemaOut != "" {
			return os.WriteFile(schemaOut, out, 0o644)
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	schemaCmd.Flags().StringVarP(&schemaOut, "output", "o", "", "write the schema to a file instead of stdout")
	rootCmd.AddCommand(schemaCmd)
}
