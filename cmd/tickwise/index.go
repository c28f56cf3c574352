package main

import (
	"fmt"

	"github.com/metalagman/tickwise/internal/index"
	"github.com/metalagman/tickwise/internal/model"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func indexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Inspect the local task index",
	}
	cmd.AddCommand(indexListCmd())
	cmd.AddCommand(indexShowCmd())
	cmd.AddCommand(indexForgetCmd())
	return cmd
}

func indexListCmd() *cobra.Command {
	var (
		f      index.Filter
		status string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List indexed tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch model.Status(status) {
			case "", model.StatusActive, model.StatusCompleted:
				f.Status = model.Status(status)
			default:
				return fmt.Errorf("--status must be active or completed")
			}
			a, err := openIndexOnly()
			if err != nil {
				return err
			}
			defer a.Close()

			recs, err := a.index.List(cmd.Context(), f)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), recs)
			}
			if len(recs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("no tasks indexed"))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), taskTable(recs))
			return nil
		},
	}
	cmd.Flags().StringVar(&f.ContainerID, "container", "", "filter by container id")
	cmd.Flags().StringVar(&f.Tag, "tag", "", "filter by tag")
	cmd.Flags().StringVar(&f.TitleContains, "title", "", "filter by title text")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (active or completed)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func indexShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one indexed task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openIndexOnly()
			if err != nil {
				return err
			}
			defer a.Close()

			rec, err := a.index.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rec)
		},
	}
}

func indexForgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget <id>...",
		Short: "Drop tasks from the local index without touching TickTick",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openIndexOnly()
			if err != nil {
				return err
			}
			defer a.Close()

			for _, id := range args {
				if err := a.index.Remove(cmd.Context(), id); err != nil {
					return err
				}
				log.Info().Str("task_id", id).Msg("task forgotten")
			}
			return nil
		},
	}
}
