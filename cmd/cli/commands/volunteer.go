package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zvmsbackend/zvms3/pkg/core/model"
	"github.com/zvmsbackend/zvms3/pkg/core/services"
	"github.com/zvmsbackend/zvms3/pkg/db"
)

// VolunteerCmd groups the volunteer lifecycle commands
func VolunteerCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "volunteer",
		Short: "Create, audit, join and browse volunteers",
	}

	cmd.AddCommand(
		volunteerListCmd(app),
		volunteerSearchCmd(app),
		volunteerMineCmd(app),
		volunteerShowCmd(app),
		volunteerCreateClassCmd(app),
		volunteerCreateAppointedCmd(app),
		volunteerCreateSpecialCmd(app),
		volunteerAuditCmd(app),
		volunteerSignupCmd(app),
		volunteerRollbackCmd(app),
		volunteerAcceptSignupCmd(app),
		volunteerModifyClassCmd(app),
		volunteerModifyAppointedCmd(app),
		volunteerModifySpecialCmd(app),
		volunteerDeleteCmd(app),
	)
	return cmd
}

func printVolunteerPage(result *services.Page[db.VolunteerSummary]) {
	fmt.Println()
	if len(result.Items) == 0 {
		fmt.Println("No volunteers found.")
	}
	for _, v := range result.Items {
		fmt.Printf("  %5d  %-32s %s%-10s%s %-8s %s\n",
			v.ID, v.Name, volunteerColor(v.Status), v.Status, colorReset, v.Type, v.HolderName)
	}
	fmt.Printf("\n%s\n\n", pageFooter(result.Total, result.Page, result.PageSize))
}

func pageFlag(cmd *cobra.Command) {
	cmd.Flags().Int("page", 1, "Page number")
}

func volunteerListCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all volunteers, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			page, _ := cmd.Flags().GetInt("page")
			result, err := services.ListVolunteers(app.Ctx, app.Store, app.Logger, page, app.Cfg.PageSize)
			if err != nil {
				return err
			}
			printVolunteerPage(result)
			return nil
		},
	}
	pageFlag(cmd)
	return cmd
}

func volunteerSearchCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "List volunteers whose name contains query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			page, _ := cmd.Flags().GetInt("page")
			result, err := services.SearchVolunteers(app.Ctx, app.Store, app.Logger, args[0], page, app.Cfg.PageSize)
			if err != nil {
				return err
			}
			printVolunteerPage(result)
			return nil
		},
	}
	pageFlag(cmd)
	return cmd
}

func volunteerMineCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mine",
		Short: "List the volunteers you hold, joined or are invited to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := app.Actor()
			if err != nil {
				return err
			}
			page, _ := cmd.Flags().GetInt("page")
			result, err := services.MyVolunteers(app.Ctx, app.Store, app.Logger, actor, page, app.Cfg.PageSize)
			if err != nil {
				return err
			}
			printVolunteerPage(result)
			return nil
		},
	}
	pageFlag(cmd)
	return cmd
}

func volunteerShowCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <volunteer_id>",
		Short: "Show a volunteer with its participants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "volunteer_id")
			if err != nil {
				return err
			}
			actor, err := app.Actor()
			if err != nil {
				return err
			}
			v, err := services.VolunteerInfo(app.Ctx, app.Store, app.Logger, actor, id)
			if err != nil {
				return err
			}

			fmt.Printf("\n%s (#%d)\n\n", v.Name, v.ID)
			fmt.Printf("Status:  %s%s%s\n", volunteerColor(v.Status), v.Status, colorReset)
			fmt.Printf("Kind:    %s\n", v.Kind)
			fmt.Printf("Type:    %s\n", v.Type)
			fmt.Printf("Date:    %s\n", formatDate(v.Time))
			fmt.Printf("Reward:  %s\n", formatMinutes(v.Reward))
			fmt.Printf("Holder:  %s (#%d)\n", v.HolderName, v.HolderID)
			if v.Description != "" {
				fmt.Printf("\n%s\n", v.Description)
			}

			if len(v.Quotas) > 0 {
				fmt.Printf("\nClass quotas:\n")
				for _, q := range v.Quotas {
					fmt.Printf("  class %-5d max %d\n", q.ClassID, q.Max)
				}
			}
			if v.Kind == model.VolKindInside {
				if v.CanSignup {
					fmt.Printf("\n%s✓ You can sign up%s\n", colorGreen, colorReset)
				} else {
					fmt.Printf("\n%sSignup closed for you%s\n", colorDim, colorReset)
				}
			}

			fmt.Printf("\nParticipants (%d):\n", len(v.Participants))
			for _, p := range v.Participants {
				marker := ""
				if !p.ThoughtVisible {
					marker = colorDim + " (reflection hidden)" + colorReset
				}
				fmt.Printf("  %5d  %-20s %s%s%s%s\n", p.UserID, p.UserName, thoughtColor(p.Status), p.Status, colorReset, marker)
			}
			if len(v.Signups) > 0 {
				fmt.Printf("\nSignups waiting for review (%d):\n", len(v.Signups))
				for _, p := range v.Signups {
					fmt.Printf("  %5d  %s\n", p.UserID, p.UserName)
				}
			}
			fmt.Println()
			return nil
		},
	}
}

func volunteerCreateClassCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-class <name> <date>",
		Short: "Create a volunteer that classes join through quotas",
		Long: `Create a volunteer that classes join through quotas. With --rrule one volunteer is
created for every occurrence of the rule, starting at <date>.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := app.Actor()
			if err != nil {
				return err
			}
			date, err := parseDate(args[1])
			if err != nil {
				return err
			}
			description, _ := cmd.Flags().GetString("description")
			reward, _ := cmd.Flags().GetInt("reward")
			quotaArgs, _ := cmd.Flags().GetStringSlice("quota")
			rule, _ := cmd.Flags().GetString("rrule")
			if rule == "" && cmd.Flags().Changed("series") {
				rule = app.Cfg.DefaultSeriesRule
			}

			req := services.ClassVolunteerRequest{Name: args[0], Description: description, Time: date, Reward: reward}
			for _, arg := range quotaArgs {
				q, err := parseQuota(arg)
				if err != nil {
					return err
				}
				req.Quotas = append(req.Quotas, q)
			}

			if rule == "" {
				id, err := services.CreateClassVolunteer(app.Ctx, app.Store, app.Notices, app.Logger, actor, req)
				if err != nil {
					return err
				}
				fmt.Printf("\n✓ Volunteer created with id %d\n\n", id)
				return nil
			}

			ids, err := services.PlanClassVolunteerSeries(app.Ctx, app.Store, app.Notices, app.Logger, actor, req, rule, app.Cfg.SeriesMaxOccurrences)
			if err != nil {
				return err
			}
			fmt.Printf("\n✓ Created %d volunteers:\n", len(ids))
			for _, id := range ids {
				fmt.Printf("  %d\n", id)
			}
			fmt.Println()
			return nil
		},
	}
	cmd.Flags().String("description", "", "Description")
	cmd.Flags().Int("reward", 0, "Nominal reward in minutes")
	cmd.Flags().StringSlice("quota", nil, "Class quota as <class id>:<max>, repeatable")
	cmd.Flags().String("rrule", "", "Recurrence rule for a series, e.g. FREQ=WEEKLY;COUNT=4")
	cmd.Flags().Bool("series", false, "Create a series using the configured default rule")
	cmd.MarkFlagRequired("quota")
	return cmd
}

func volunteerCreateAppointedCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-appointed <name> <inside|outside> <participant>...",
		Short: "Create a volunteer for named participants",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := app.Actor()
			if err != nil {
				return err
			}
			volType, err := parseVolType(args[1])
			if err != nil {
				return err
			}
			description, _ := cmd.Flags().GetString("description")
			reward, _ := cmd.Flags().GetInt("reward")

			id, err := services.CreateAppointedVolunteer(app.Ctx, app.Store, app.Notices, app.Logger, actor, services.AppointedVolunteerRequest{
				Name:         args[0],
				Description:  description,
				Type:         volType,
				Reward:       reward,
				Participants: args[2:],
			})
			if err != nil {
				return err
			}
			fmt.Printf("\n✓ Volunteer created with id %d\n\n", id)
			return nil
		},
	}
	cmd.Flags().String("description", "", "Description")
	cmd.Flags().Int("reward", 0, "Nominal reward in minutes")
	return cmd
}

func specialArgs(cmd *cobra.Command, args []string) (name string, volType model.VolType, grants []services.SpecialGrant, uniform []string, err error) {
	volType, err = parseVolType(args[1])
	if err != nil {
		return "", 0, nil, nil, err
	}
	grantArgs, _ := cmd.Flags().GetStringSlice("grant")
	for _, arg := range grantArgs {
		g, err := parseGrant(arg)
		if err != nil {
			return "", 0, nil, nil, err
		}
		grants = append(grants, g)
	}
	uniform = args[2:]
	if len(grants) > 0 && len(uniform) > 0 {
		return "", 0, nil, nil, fmt.Errorf("use either --grant or participant arguments, not both")
	}
	return args[0], volType, grants, uniform, nil
}

func volunteerCreateSpecialCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-special <name> <inside|outside|large> [participant...]",
		Short: "Grant time directly, with one reward for everyone or --grant per participant",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := app.Actor()
			if err != nil {
				return err
			}
			name, volType, grants, uniform, err := specialArgs(cmd, args)
			if err != nil {
				return err
			}
			description, _ := cmd.Flags().GetString("description")
			reward, _ := cmd.Flags().GetInt("reward")

			var id int64
			if len(grants) > 0 {
				id, err = services.CreateSpecialVolunteerEx(app.Ctx, app.Store, app.Notices, app.Logger, actor, services.SpecialVolunteerExRequest{
					Name: name, Description: description, Type: volType, Grants: grants,
				})
			} else {
				id, err = services.CreateSpecialVolunteer(app.Ctx, app.Store, app.Notices, app.Logger, actor, services.SpecialVolunteerRequest{
					Name: name, Description: description, Type: volType, Reward: reward, Participants: uniform,
				})
			}
			if err != nil {
				return err
			}
			fmt.Printf("\n✓ Special volunteer created with id %d\n\n", id)
			return nil
		},
	}
	cmd.Flags().String("description", "", "Description")
	cmd.Flags().Int("reward", 0, "Reward in minutes granted to every participant")
	cmd.Flags().StringSlice("grant", nil, "Individual grant as <user>:<minutes>, repeatable")
	return cmd
}

func volunteerAuditCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "audit <volunteer_id> <accept|reject>",
		Short: "Accept or reject a volunteer waiting for audit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "volunteer_id")
			if err != nil {
				return err
			}
			var decision model.VolStatus
			switch strings.ToLower(args[1]) {
			case "accept":
				decision = model.VolStatusAccepted
			case "reject":
				decision = model.VolStatusRejected
			default:
				return fmt.Errorf("decision must be accept or reject, got: %s", args[1])
			}
			actor, err := app.Actor()
			if err != nil {
				return err
			}

			if err := services.AuditVolunteer(app.Ctx, app.Store, app.Notices, app.Logger, actor, id, decision); err != nil {
				return err
			}
			fmt.Printf("\n✓ Volunteer %d is now %s\n\n", id, decision)
			return nil
		},
	}
}

func volunteerSignupCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "signup <volunteer_id>",
		Short: "Sign up for a class volunteer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "volunteer_id")
			if err != nil {
				return err
			}
			actor, err := app.Actor()
			if err != nil {
				return err
			}
			if err := services.SignupVolunteer(app.Ctx, app.Store, app.Notices, app.Logger, actor, id); err != nil {
				return err
			}
			fmt.Printf("\n✓ Signed up for volunteer %d\n\n", id)
			return nil
		},
	}
}

func volunteerRollbackCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <volunteer_id> [user_id]",
		Short: "Withdraw a signup, your own unless a user is given",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "volunteer_id")
			if err != nil {
				return err
			}
			actor, err := app.Actor()
			if err != nil {
				return err
			}
			userID := actor.UserID
			if len(args) > 1 {
				if userID, err = parseID(args[1], "user_id"); err != nil {
					return err
				}
			}
			if err := services.RollbackSignup(app.Ctx, app.Store, app.Logger, actor, id, userID); err != nil {
				return err
			}
			fmt.Printf("\n✓ Signup of user %d withdrawn\n\n", userID)
			return nil
		},
	}
}

func volunteerAcceptSignupCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "accept-signup <volunteer_id> <user_id>",
		Short: "Let a signed up classmate start a reflection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "volunteer_id")
			if err != nil {
				return err
			}
			userID, err := parseID(args[1], "user_id")
			if err != nil {
				return err
			}
			actor, err := app.Actor()
			if err != nil {
				return err
			}
			if err := services.AcceptSignup(app.Ctx, app.Store, app.Notices, app.Logger, actor, id, userID); err != nil {
				return err
			}
			fmt.Printf("\n✓ Signup of user %d accepted\n\n", userID)
			return nil
		},
	}
}

func volunteerModifyClassCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modify-class <volunteer_id> <name> <date>",
		Short: "Rewrite a class volunteer and replace its quotas",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "volunteer_id")
			if err != nil {
				return err
			}
			date, err := parseDate(args[2])
			if err != nil {
				return err
			}
			actor, err := app.Actor()
			if err != nil {
				return err
			}
			description, _ := cmd.Flags().GetString("description")
			reward, _ := cmd.Flags().GetInt("reward")
			quotaArgs, _ := cmd.Flags().GetStringSlice("quota")

			req := services.ClassVolunteerRequest{Name: args[1], Description: description, Time: date, Reward: reward}
			for _, arg := range quotaArgs {
				q, err := parseQuota(arg)
				if err != nil {
					return err
				}
				req.Quotas = append(req.Quotas, q)
			}
			if err := services.ModifyClassVolunteer(app.Ctx, app.Store, app.Logger, actor, id, req); err != nil {
				return err
			}
			fmt.Printf("\n✓ Volunteer %d modified\n\n", id)
			return nil
		},
	}
	cmd.Flags().String("description", "", "Description")
	cmd.Flags().Int("reward", 0, "Nominal reward in minutes")
	cmd.Flags().StringSlice("quota", nil, "Class quota as <class id>:<max>, repeatable")
	cmd.MarkFlagRequired("quota")
	return cmd
}

func volunteerModifyAppointedCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modify-appointed <volunteer_id> <name> <inside|outside> <participant>...",
		Short: "Rewrite an appointed volunteer and its participant list",
		Args:  cobra.MinimumNArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "volunteer_id")
			if err != nil {
				return err
			}
			volType, err := parseVolType(args[2])
			if err != nil {
				return err
			}
			actor, err := app.Actor()
			if err != nil {
				return err
			}
			description, _ := cmd.Flags().GetString("description")
			reward, _ := cmd.Flags().GetInt("reward")

			err = services.ModifyAppointedVolunteer(app.Ctx, app.Store, app.Logger, actor, id, services.AppointedVolunteerRequest{
				Name:         args[1],
				Description:  description,
				Type:         volType,
				Reward:       reward,
				Participants: args[3:],
			})
			if err != nil {
				return err
			}
			fmt.Printf("\n✓ Volunteer %d modified\n\n", id)
			return nil
		},
	}
	cmd.Flags().String("description", "", "Description")
	cmd.Flags().Int("reward", 0, "Nominal reward in minutes")
	return cmd
}

func volunteerModifySpecialCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modify-special <volunteer_id> <name> <inside|outside|large> [participant...]",
		Short: "Replace every grant of a special volunteer",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "volunteer_id")
			if err != nil {
				return err
			}
			name, volType, grants, uniform, err := specialArgs(cmd, args[1:])
			if err != nil {
				return err
			}
			actor, err := app.Actor()
			if err != nil {
				return err
			}
			description, _ := cmd.Flags().GetString("description")
			reward, _ := cmd.Flags().GetInt("reward")

			if len(grants) > 0 {
				err = services.ModifySpecialVolunteerEx(app.Ctx, app.Store, app.Notices, app.Logger, actor, id, services.SpecialVolunteerExRequest{
					Name: name, Description: description, Type: volType, Grants: grants,
				})
			} else {
				err = services.ModifySpecialVolunteer(app.Ctx, app.Store, app.Notices, app.Logger, actor, id, services.SpecialVolunteerRequest{
					Name: name, Description: description, Type: volType, Reward: reward, Participants: uniform,
				})
			}
			if err != nil {
				return err
			}
			fmt.Printf("\n✓ Volunteer %d modified\n\n", id)
			return nil
		},
	}
	cmd.Flags().String("description", "", "Description")
	cmd.Flags().Int("reward", 0, "Reward in minutes granted to every participant")
	cmd.Flags().StringSlice("grant", nil, "Individual grant as <user>:<minutes>, repeatable")
	return cmd
}

func volunteerDeleteCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <volunteer_id>",
		Short: "Delete a volunteer with its quotas, participants and pictures",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "volunteer_id")
			if err != nil {
				return err
			}
			actor, err := app.Actor()
			if err != nil {
				return err
			}
			app.Logger.Debug("volunteer delete command", zap.Int64("volunteer_id", id))
			if err := services.DeleteVolunteer(app.Ctx, app.Store, app.Logger, actor, id); err != nil {
				return err
			}
			fmt.Printf("\n✓ Volunteer %d deleted\n\n", id)
			return nil
		},
	}
}
