package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"envbench/internal/cli"
	"envbench/internal/config"
	"envbench/internal/history"
	"envbench/internal/stats"
	"envbench/internal/summary"
)

func newHistoryCmd(v *viper.Viper) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List stored runs, or show the group summaries of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := history.Open(v.GetString("history.path"), nil)
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 0 {
				runs, err := store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				printRuns(runs)
				return nil
			}

			id, err := store.FindRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			groups, err := store.Groups(cmd.Context(), id)
			if err != nil {
				return err
			}
			printGroups(id, groups)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "number of runs to list (0 lists all)")
	cmd.Flags().String("db", config.DefaultHistoryPath, "history database path")
	mustBind(v, "history.path", cmd.Flags().Lookup("db"))
	return cmd
}

func printRuns(runs []history.Run) {
	cli.Header("RUN HISTORY")
	if len(runs) == 0 {
		cli.Infof("No runs stored")
		return
	}
	cli.TableHeader(fmt.Sprintf("%-36s", "Run"), fmt.Sprintf("%-19s", "Started"), fmt.Sprintf("%-8s", "Elapsed"),
		"Envs", "Endpoints", "Reps", "Done", "Aborted", "Skipped")
	for _, r := range runs {
		note := ""
		if r.Interrupted {
			note = cli.Grade("interrupted", 1)
		}
		cli.Linef("%-36s  %-19s  %-8s  %4d  %9d  %4d  %4d  %7d  %7d  %s",
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			cli.FormatDuration(r.FinishedAt.Sub(r.StartedAt)),
			r.Environments, r.Endpoints, r.Repetitions,
			r.Completed, r.Aborted, r.Skipped, note)
	}
}

func printGroups(id string, groups []history.Group) {
	cli.Header("RUN " + id)
	cli.TableHeader(fmt.Sprintf("%-14s", "Environment"), fmt.Sprintf("%-14s", "Endpoint"),
		fmt.Sprintf("%9s", "Mean RPS"), fmt.Sprintf("%7s", "CV%"), fmt.Sprintf("%-10s", "Stability"),
		fmt.Sprintf("%9s", "Mean Lat"), fmt.Sprintf("%9s", "P95"), "Errors")
	for _, g := range groups {
		cli.Linef("%-14s  %-14s  %9.1f  %7.1f  %-10s  %9s  %9s  %s",
			cli.Truncate(g.Environment, 14),
			cli.Truncate(g.Endpoint, 14),
			g.MeanRPS,
			g.CVPercentRPS,
			summary.StabilityLabel(stats.Stability(g.StabilityRPS)),
			cli.FormatMs(g.MeanLatencyMs),
			cli.FormatMs(g.MeanP95LatencyMs),
			cli.FormatRate(g.MeanErrorRate))
	}
}
