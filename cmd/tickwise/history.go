package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func historyCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently executed commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openIndexOnly()
			if err != nil {
				return err
			}
			defer a.Close()

			cmds, err := a.journal.RecentCommands(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), cmds)
			}
			if len(cmds) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("no commands recorded"))
				return nil
			}
			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("WHEN", "ACTION", "CODE", "RESULT")
			for _, c := range cmds {
				t.Row(c.StartedAt.Local().Format("2006-01-02 15:04:05"), c.Action, c.Code, c.Text)
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.String())
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of commands to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	cmd.AddCommand(historyPruneCmd())
	return cmd
}

func historyPruneCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete journal entries older than a duration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be > 0")
			}
			a, err := openIndexOnly()
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.journal.PruneCommands(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			log.Info().Msgf("deleted %d journal entries", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "delete entries older than this")
	return cmd
}
