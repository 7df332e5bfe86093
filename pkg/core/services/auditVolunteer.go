package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/zvmsbackend/zvms3/pkg/core/apperr"
	"github.com/zvmsbackend/zvms3/pkg/core/model"
	"github.com/zvmsbackend/zvms3/pkg/core/policy"
	"github.com/zvmsbackend/zvms3/pkg/db"
)

// AuditVolunteer accepts or rejects an unaudited volunteer. Accepting it lets every
// participant waiting on the audit start a reflection.
func AuditVolunteer(ctx context.Context, store db.Store, notifier Notifier, logger *zap.Logger, actor model.Actor, volunteerID int64, decision model.VolStatus) error {
	if !policy.Can(actor, model.PermissionClass|model.PermissionManager) {
		return apperr.NotAuthorized(apperr.CodeNotAuthorized, "user_id", actor.UserID)
	}
	if decision != model.VolStatusAccepted && decision != model.VolStatusRejected {
		return apperr.Validation("decision", "must be accepted or rejected")
	}

	return runTx(ctx, store, notifier, logger, func(ctx context.Context, tx db.Tx, out *outbox) error {
		v, err := lockVolunteer(ctx, tx, volunteerID)
		if err != nil {
			return err
		}
		if v.Status != model.VolStatusUnaudited {
			return apperr.InvalidState(apperr.CodeCantAuditVolunteer,
				"volunteer_id", volunteerID, "status", v.Status.String())
		}

		if err := tx.SetVolunteerStatus(ctx, volunteerID, decision); err != nil {
			return fmt.Errorf("failed to set volunteer status: %w", err)
		}
		out.toUser(actor.UserID, v.HolderID, "Volunteer audited",
			fmt.Sprintf("%s was %s", v.Name, decision))

		if decision == model.VolStatusAccepted {
			participants, err := tx.ListParticipants(ctx, volunteerID)
			if err != nil {
				return fmt.Errorf("failed to fetch participants: %w", err)
			}
			promoted, err := tx.PromoteParticipations(ctx, volunteerID,
				model.ThoughtWaitingForSignupAudit, model.ThoughtDraft)
			if err != nil {
				return fmt.Errorf("failed to promote participations: %w", err)
			}
			for _, p := range participants {
				if p.Status == model.ThoughtWaitingForSignupAudit {
					out.toUser(actor.UserID, p.UserID, "Reflection open",
						fmt.Sprintf("You can now write a reflection for %s", v.Name))
				}
			}
			logger.Debug("Promoted participations", zap.Int64("volunteer_id", volunteerID), zap.Int("count", promoted))
		}

		logger.Info("Audited volunteer",
			zap.Int64("volunteer_id", volunteerID),
			zap.Int64("user_id", actor.UserID),
			zap.Stringer("decision", decision))
		return nil
	})
}
