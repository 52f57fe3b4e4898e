package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yeisme/sharevault/pkg/internal/model"
)

var (
	planCmd = &cobra.Command{
		Use:   "plan",
		Short: "manage the plan catalog",
	}

	planListCmd = &cobra.Command{
		Use:     "list",
		Short:   "list plans",
		Aliases: []string{"ls", "l"},
		RunE: func(cmd *cobra.Command, args []string) error {
			svcs, mgr, err := openServices(cmd.Context())
			if err != nil {
				return err
			}
			defer mgr.Close()

			plans, err := svcs.Plans.List(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tQUOTA (MB)\tPOLAR ID")

			for _, p := range plans {
				polar := ""
				if p.PolarID != nil {
					polar = *p.PolarID
				}

				fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", p.ID, p.Name, p.QuotaMB, polar)
			}

			return w.Flush()
		},
	}

	planAddFlags struct {
		id      int64
		name    string
		quotaMB int64
		polarID string
	}

	planAddCmd = &cobra.Command{
		Use:   "add",
		Short: "create or update a plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			svcs, mgr, err := openServices(cmd.Context())
			if err != nil {
				return err
			}
			defer mgr.Close()

			plan := &model.Plan{ID: planAddFlags.id, Name: planAddFlags.name, QuotaMB: planAddFlags.quotaMB}
			if planAddFlags.polarID != "" {
				plan.PolarID = &planAddFlags.polarID
			}

			if err := svcs.Plans.Upsert(cmd.Context(), plan); err != nil {
				return err
			}

			return printJSON(cmd, plan)
		},
	}
)

func registerPlanCommands() {
	f := planAddCmd.Flags()
	f.Int64Var(&planAddFlags.id, "id", 0, "plan id")
	f.StringVar(&planAddFlags.name, "name", "", "display name")
	f.Int64Var(&planAddFlags.quotaMB, "quota-mb", 0, "storage ceiling in MB")
	f.StringVar(&planAddFlags.polarID, "polar-id", "", "plan id at the billing provider")
	_ = planAddCmd.MarkFlagRequired("id")
	_ = planAddCmd.MarkFlagRequired("name")

	planCmd.AddCommand(planListCmd, planAddCmd)
	rootCmd.AddCommand(planCmd)
}
