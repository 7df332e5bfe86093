package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zvmsbackend/zvms3/pkg/core/model"
	"github.com/zvmsbackend/zvms3/pkg/core/services"
	"github.com/zvmsbackend/zvms3/pkg/db"
)

// ThoughtCmd groups the reflection commands
func ThoughtCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thought",
		Short: "Write, review and browse reflections",
	}

	cmd.AddCommand(
		thoughtListCmd(app),
		thoughtMineCmd(app),
		thoughtUnauditedCmd(app),
		thoughtShowCmd(app),
		thoughtEditCmd(app),
		thoughtFirstAuditCmd(app),
		thoughtAcceptCmd(app),
		thoughtDecisionCmd(app, "reject", "Reject a reflection for good", services.RejectThought),
		thoughtDecisionCmd(app, "spike", "Send a reflection back to its author", services.SpikeThought),
		thoughtPictureCmd(app),
	)
	return cmd
}

func printThoughtPage(result *services.Page[db.ThoughtSummary]) {
	fmt.Println()
	if len(result.Items) == 0 {
		fmt.Println("No reflections found.")
	}
	for _, th := range result.Items {
		fmt.Printf("  %5d  %-28s %5d  %-16s %s%s%s\n",
			th.VolunteerID, th.VolunteerName, th.UserID, th.UserName, thoughtColor(th.Status), th.Status, colorReset)
	}
	fmt.Printf("\n%s\n\n", pageFooter(result.Total, result.Page, result.PageSize))
}

type thoughtLister func(app *AppContext, actor model.Actor, page int) (*services.Page[db.ThoughtSummary], error)

func thoughtPageCmd(app *AppContext, use, short string, list thoughtLister) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := app.Actor()
			if err != nil {
				return err
			}
			page, _ := cmd.Flags().GetInt("page")
			result, err := list(app, actor, page)
			if err != nil {
				return err
			}
			printThoughtPage(result)
			return nil
		},
	}
	pageFlag(cmd)
	return cmd
}

func thoughtListCmd(app *AppContext) *cobra.Command {
	return thoughtPageCmd(app, "list", "List every reflection past signup review",
		func(app *AppContext, actor model.Actor, page int) (*services.Page[db.ThoughtSummary], error) {
			return services.ListThoughts(app.Ctx, app.Store, app.Logger, actor, page, app.Cfg.PageSize)
		})
}

func thoughtMineCmd(app *AppContext) *cobra.Command {
	return thoughtPageCmd(app, "mine", "List your reflections",
		func(app *AppContext, actor model.Actor, page int) (*services.Page[db.ThoughtSummary], error) {
			return services.MyThoughts(app.Ctx, app.Store, app.Logger, actor, page, app.Cfg.PageSize)
		})
}

func thoughtUnauditedCmd(app *AppContext) *cobra.Command {
	return thoughtPageCmd(app, "unaudited", "List reflections waiting for your final audit",
		func(app *AppContext, actor model.Actor, page int) (*services.Page[db.ThoughtSummary], error) {
			return services.UnauditedThoughts(app.Ctx, app.Store, app.Logger, actor, page, app.Cfg.PageSize)
		})
}

func volunteerAndUser(app *AppContext, args []string) (model.Actor, int64, int64, error) {
	volunteerID, err := parseID(args[0], "volunteer_id")
	if err != nil {
		return model.Actor{}, 0, 0, err
	}
	userID, err := parseID(args[1], "user_id")
	if err != nil {
		return model.Actor{}, 0, 0, err
	}
	actor, err := app.Actor()
	if err != nil {
		return model.Actor{}, 0, 0, err
	}
	return actor, volunteerID, userID, nil
}

func thoughtShowCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <volunteer_id> <user_id>",
		Short: "Show one reflection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, volunteerID, userID, err := volunteerAndUser(app, args)
			if err != nil {
				return err
			}
			view, err := services.ThoughtInfo(app.Ctx, app.Store, app.Logger, actor, volunteerID, userID)
			if err != nil {
				return err
			}

			fmt.Printf("\n%s by %s (%s)\n\n", view.VolunteerName, view.UserName, view.ClassName)
			fmt.Printf("Status:  %s%s%s\n", thoughtColor(view.Status), view.Status, colorReset)
			fmt.Printf("Type:    %s\n", view.VolunteerType)
			if view.Status == model.ThoughtAccepted {
				fmt.Printf("Reward:  %s (nominal %s)\n", formatMinutes(view.Reward), formatMinutes(view.NominalReward))
			}
			fmt.Printf("\n%s\n", view.Thought)
			if len(view.Pictures) > 0 {
				fmt.Printf("\nPictures:\n")
				for _, p := range view.Pictures {
					fmt.Printf("  %s\n", p)
				}
			}
			fmt.Println()
			return nil
		},
	}
}

func thoughtEditCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <volunteer_id>",
		Short: "Save your reflection, optionally submitting it for audit",
		Long: `Save your reflection. --picture keeps pictures already attached to the volunteer,
--upload adds image files from disk. Without --text the current text is kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			volunteerID, err := parseID(args[0], "volunteer_id")
			if err != nil {
				return err
			}
			actor, err := app.Actor()
			if err != nil {
				return err
			}

			draft, err := services.PrepareEditThought(app.Ctx, app.Store, app.Logger, actor, volunteerID)
			if err != nil {
				return err
			}

			edit := services.ThoughtEdit{Thought: draft.Thought}
			if cmd.Flags().Changed("text") {
				edit.Thought, _ = cmd.Flags().GetString("text")
			}
			if cmd.Flags().Changed("picture") {
				edit.Pictures, _ = cmd.Flags().GetStringSlice("picture")
			} else {
				for _, p := range draft.Pictures {
					if p.Mine {
						edit.Pictures = append(edit.Pictures, p.Filename)
					}
				}
			}
			uploads, _ := cmd.Flags().GetStringSlice("upload")
			for _, path := range uploads {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read upload: %w", err)
				}
				edit.Uploads = append(edit.Uploads, services.Upload{Name: filepath.Base(path), Data: data})
			}
			edit.Submit, _ = cmd.Flags().GetBool("submit")

			if err := services.EditThought(app.Ctx, app.Store, app.Pictures, app.Logger, actor, volunteerID, actor.UserID, edit); err != nil {
				return err
			}
			if edit.Submit {
				fmt.Printf("\n✓ Reflection submitted for audit\n\n")
			} else {
				fmt.Printf("\n✓ Reflection saved\n\n")
			}
			return nil
		},
	}
	cmd.Flags().String("text", "", "Reflection text")
	cmd.Flags().StringSlice("picture", nil, "Attached picture to keep, repeatable")
	cmd.Flags().StringSlice("upload", nil, "Image file to attach, repeatable")
	cmd.Flags().Bool("submit", false, "Submit for audit")
	return cmd
}

func thoughtFirstAuditCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "first-audit <volunteer_id> <user_id>",
		Short: "Pass a classmate's reflection on to the final audit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, volunteerID, userID, err := volunteerAndUser(app, args)
			if err != nil {
				return err
			}
			if err := services.FirstAudit(app.Ctx, app.Store, app.Notices, app.Logger, actor, volunteerID, userID); err != nil {
				return err
			}
			fmt.Printf("\n✓ Reflection passed the first audit\n\n")
			return nil
		},
	}
}

func thoughtAcceptCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "accept <volunteer_id> <user_id> <minutes>",
		Short: "Accept a reflection and grant time",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, volunteerID, userID, err := volunteerAndUser(app, args)
			if err != nil {
				return err
			}
			reward, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("minutes must be a number, got: %s", args[2])
			}
			if err := services.AcceptThought(app.Ctx, app.Store, app.Notices, app.Logger, actor, volunteerID, userID, reward); err != nil {
				return err
			}
			fmt.Printf("\n✓ Reflection accepted, %s granted\n\n", formatMinutes(reward))
			return nil
		},
	}
}

type finalDecision func(ctx context.Context, store db.Store, notifier services.Notifier, logger *zap.Logger, actor model.Actor, volunteerID, userID int64) error

func thoughtDecisionCmd(app *AppContext, use, short string, decide finalDecision) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <volunteer_id> <user_id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, volunteerID, userID, err := volunteerAndUser(app, args)
			if err != nil {
				return err
			}
			if err := decide(app.Ctx, app.Store, app.Notices, app.Logger, actor, volunteerID, userID); err != nil {
				return err
			}
			fmt.Printf("\n✓ Done\n\n")
			return nil
		},
	}
}

func thoughtPictureCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "picture <filename> <output>",
		Short: "Copy a stored picture to a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := app.Pictures.Open(args[0])
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[1], data, 0644); err != nil {
				return fmt.Errorf("failed to write picture: %w", err)
			}
			fmt.Printf("\n✓ Wrote %d bytes to %s\n\n", len(data), args[1])
			return nil
		},
	}
}
