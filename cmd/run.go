package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/skillet-data/skillet/internal/config"
	"github.com/skillet-data/skillet/internal/connector"
	"github.com/skillet-data/skillet/internal/custom"
	"github.com/skillet-data/skillet/internal/engine"
	"github.com/skillet-data/skillet/internal/logger"
	"github.com/skillet-data/skillet/internal/recipe"
	"github.com/skillet-data/skillet/internal/steps"
)

var (
	runVariables []string
	runFunctions []string
)

var runCmd = &cobra.Command{
	Use:   "run <recipe.yaml>",
	Short: "Execute a recipe end to end",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		variables, err := parseVariables(runVariables)
		if err != nil {
			return err
		}

		r, err := recipe.Load(args[0], variables)
		if err != nil {
			return err
		}

		loader := custom.NewLoader()
		for _, path := range runFunctions {
			if err := loader.LoadFile(path); err != nil {
				return err
			}
		}

		p, err := engine.New(r, engine.Options{
			Kinds:      steps.Defaults(),
			Connectors: connector.Defaults(),
			Functions:  loader,
			Variables:  variables,
			Credentials: func(name string) connector.Credentials {
				return connector.Credentials(config.CredentialBundle(name))
			},
			RowConcurrency: config.Instance.Engine.RowConcurrency,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.LogInfo("running recipe", map[string]interface{}{"recipe": args[0]})
		summary := p.Run(ctx)

		out, err := summary.JSON()
		if err != nil {
			return err
		}
		fmt.Println(string(out))

		if !summary.Succeeded() {
			return fmt.Errorf("run %s failed: %s", summary.RunID, summary.Error)
		}
		return nil
	},
}

// parseVariables turns repeated --variable key=value flags into the
// substitution map handed to the recipe loader.
func parseVariables(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid variable %q, want key=value", pair)
		}
		out[key] = value
	}
	return out, nil
}

func init() {
	runCmd.Flags().StringSliceVarP(&runVariables, "variable", "v", nil, "recipe variable as key=value (repeatable)")
	runCmd.Flags().StringSliceVarP(&runFunctions, "functions", "f", nil, "custom function plugin file (repeatable)")
	rootCmd.AddCommand(runCmd)
}
