package main

import (
	"fmt"

	"github.com/metalagman/tickwise/internal/intent"
	"github.com/metalagman/tickwise/internal/orchestrator"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func applyCmd() *cobra.Command {
	var (
		asJSON    bool
		keepGoing bool
	)
	cmd := &cobra.Command{
		Use:   "apply <file>",
		Short: "Apply structured intents from a JSON or YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			intents, err := intent.ReadFile(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			var (
				results []orchestrator.Result
				failed  int
			)
			for i, in := range intents {
				res, err := a.engine.Execute(cmd.Context(), in)
				results = append(results, res)
				if !asJSON {
					if perr := printResult(cmd.OutOrStdout(), res, false); perr != nil {
						return perr
					}
				}
				if err == nil {
					continue
				}
				failed++
				if !keepGoing {
					log.Debug().Int("intent", i).Msg("stopping at first failure")
					break
				}
			}
			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), results); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d intents failed", failed, len(intents))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	cmd.Flags().BoolVar(&keepGoing, "keep-going", false, "continue after a failed intent")
	return cmd
}
