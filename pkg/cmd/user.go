package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/yeisme/sharevault/pkg/internal/types"
	"github.com/yeisme/sharevault/pkg/rule"
)

var (
	userCmd = &cobra.Command{
		Use:   "user",
		Short: "provision users and plan assignments",
	}

	userAddFlags types.UpsertUserRequest

	userAddCmd = &cobra.Command{
		Use:   "add <user-id>",
		Short: "create or update a user profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := userAddFlags
			req.ID = args[0]

			if err := rule.ValidateStruct(&req); err != nil {
				return err
			}

			svcs, mgr, err := openServices(cmd.Context())
			if err != nil {
				return err
			}
			defer mgr.Close()

			user, err := svcs.Users.Upsert(cmd.Context(), &req)
			if err != nil {
				return err
			}

			return printJSON(cmd, user)
		},
	}

	setPlanFlags struct {
		planID         int64
		expires        string
		subscriptionID string
	}

	userSetPlanCmd = &cobra.Command{
		Use:   "set-plan <user-id>",
		Short: "assign a plan, optionally until an RFC 3339 time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := types.SetPlanRequest{PlanID: setPlanFlags.planID, SubscriptionID: setPlanFlags.subscriptionID}

			if setPlanFlags.expires != "" {
				t, err := time.Parse(time.RFC3339, setPlanFlags.expires)
				if err != nil {
					return err
				}

				req.ExpiresAt = &t
			}

			if err := rule.ValidateStruct(&req); err != nil {
				return err
			}

			svcs, mgr, err := openServices(cmd.Context())
			if err != nil {
				return err
			}
			defer mgr.Close()

			up, err := svcs.Users.SetPlan(cmd.Context(), args[0], &req)
			if err != nil {
				return err
			}

			return printJSON(cmd, up)
		},
	}

	userQuotaCmd = &cobra.Command{
		Use:   "quota <user-id>",
		Short: "show a user's usage against the effective plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svcs, mgr, err := openServices(cmd.Context())
			if err != nil {
				return err
			}
			defer mgr.Close()

			usage, err := svcs.Ledger.Usage(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return printJSON(cmd, usage)
		},
	}
)

func registerUserCommands() {
	f := userAddCmd.Flags()
	f.StringVar(&userAddFlags.Email, "email", "", "email address")
	f.StringVar(&userAddFlags.Name, "name", "", "display name")
	f.StringVar(&userAddFlags.AvatarURL, "avatar-url", "", "avatar image URL")

	f = userSetPlanCmd.Flags()
	f.Int64Var(&setPlanFlags.planID, "plan", 0, "plan id")
	f.StringVar(&setPlanFlags.expires, "expires", "", "assignment end, RFC 3339")
	f.StringVar(&setPlanFlags.subscriptionID, "subscription", "", "subscription id at the billing provider")
	_ = userSetPlanCmd.MarkFlagRequired("plan")

	userCmd.AddCommand(userAddCmd, userSetPlanCmd, userQuotaCmd)
	rootCmd.AddCommand(userCmd)
}
