package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func sayCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "say <message>",
		Short: "Parse a free-text message and apply it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return fmt.Errorf("message is required")
			}
			a, err := openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.engine.Handle(cmd.Context(), text)
			if perr := printResult(cmd.OutOrStdout(), res, asJSON); perr != nil {
				return perr
			}
			if err != nil {
				return fmt.Errorf("command %s failed: %s", res.CorrelationID, res.Code)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}
