package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zvmsbackend/zvms3/pkg/core/services"
)

// ScoreCmd creates the score command
func ScoreCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "score [user_id]",
		Short: "Show the accepted volunteer time of a user, yourself by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var userID int64
			if len(args) > 0 {
				id, err := parseID(args[0], "user_id")
				if err != nil {
					return err
				}
				userID = id
			} else {
				actor, err := app.Actor()
				if err != nil {
					return err
				}
				userID = actor.UserID
			}

			scores, err := services.UserScores(app.Ctx, app.Store, app.Logger, userID)
			if err != nil {
				return err
			}

			fmt.Printf("\nVolunteer time of user %d\n\n", userID)
			fmt.Printf("  Inside:   %s\n", formatMinutes(scores.Inside))
			fmt.Printf("  Outside:  %s\n", formatMinutes(scores.Outside))
			fmt.Printf("  Large:    %s\n", formatMinutes(scores.Large))
			fmt.Printf("  Total:    %s\n\n", formatMinutes(scores.Inside+scores.Outside+scores.Large))
			return nil
		},
	}
}
