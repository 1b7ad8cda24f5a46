package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skillet-data/skillet/internal/recipe"
	"github.com/skillet-data/skillet/internal/schema"
	"github.com/skillet-data/skillet/internal/steps"
)

var validateVariables []string

var validateCmd = &cobra.Command{
	Use:   "validate <recipe.yaml>",
	Short: "Check a recipe against the step schemas without running it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		variables, err := parseVariables(validateVariables)
		if err != nil {
			return err
		}
		r, err := recipe.Load(args[0], variables)
		if err != nil {
			return err
		}

		violations := schema.Validate(r, steps.Defaults())
		if len(violations) == 0 {
			fmt.Println("recipe is valid")
			return nil
		}
		for _, v := range violations {
			fmt.Println(v.Error())
		}
		return fmt.Errorf("%d validation error(s)", len(violations))
	},
}

func init() {
	validateCmd.Flags().StringSliceVarP(&validateVariables, "variable", "v", nil, "recipe variable as key=value (repeatable)")
	rootCmd.AddCommand(validateCmd)
}
