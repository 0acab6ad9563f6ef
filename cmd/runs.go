package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fuelmap-ja/stations-cli/internal/enrich"
	"github.com/fuelmap-ja/stations-cli/internal/model"
	"github.com/fuelmap-ja/stations-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect enrichment run history",
	Long:  "Commands for listing, viewing, and summarizing enrichment runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrichment runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUN ID\tSTATUS\tSTARTED\tRECORDS\tFALLBACKS\tDUPLICATES")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n",
				r.RunID, r.Status, r.StartedAt.Format("2006-01-02 15:04:05"),
				r.TotalRecords, r.TotalFallbacks, r.TotalDuplicates)
		}
		return w.Flush()
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Dump a run's metadata artifact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		meta, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		output, _ := cmd.Flags().GetString("output")
		withStations, _ := cmd.Flags().GetBool("stations")

		artifact := map[string]any{"run": meta}
		if withStations {
			stations, err := st.GetStations(ctx, args[0])
			if err != nil {
				return eris.Wrap(err, "runs show: stations")
			}
			artifact["stations"] = stations
		}

		switch output {
		case "yaml":
			out, err := yaml.Marshal(artifact)
			if err != nil {
				return eris.Wrap(err, "runs show: marshal yaml")
			}
			fmt.Print(string(out))
		case "json":
			out, err := json.MarshalIndent(artifact, "", "  ")
			if err != nil {
				return eris.Wrap(err, "runs show: marshal json")
			}
			fmt.Println(string(out))
		default:
			return eris.Errorf("unsupported output format: %s", output)
		}
		return nil
	},
}

// -- runs report --

var runsReportCmd = &cobra.Command{
	Use:   "report <run-id>",
	Short: "Print a human-readable run report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		meta, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs report")
		}

		fmt.Print(enrich.FormatReport(meta))
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (running|complete|failed)")
	runsListCmd.Flags().Int("limit", 20, "max runs to list")
	runsShowCmd.Flags().StringP("output", "o", "json", "output format (json|yaml)")
	runsShowCmd.Flags().Bool("stations", false, "include the enriched station records")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsReportCmd)
	rootCmd.AddCommand(runsCmd)
}
