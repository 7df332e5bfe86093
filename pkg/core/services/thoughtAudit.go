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

func notAuditable(volunteerID, userID int64, status model.ThoughtStatus) error {
	return apperr.InvalidState(apperr.CodeThoughtNotAuditable,
		"volunteer_id", volunteerID, "user_id", userID, "status", status.String())
}

// FirstAudit passes a submitted reflection on to the final audit
func FirstAudit(ctx context.Context, store db.Store, notifier Notifier, logger *zap.Logger, actor model.Actor, volunteerID, userID int64) error {
	if !policy.Can(actor, model.PermissionClass) {
		return apperr.NotAuthorized(apperr.CodeNotAuthorized, "user_id", actor.UserID)
	}

	return runTx(ctx, store, notifier, logger, func(ctx context.Context, tx db.Tx, out *outbox) error {
		p, err := getThought(ctx, tx, volunteerID, userID)
		if err != nil {
			return err
		}
		if p.Status != model.ThoughtWaitingForFirstAudit {
			return notAuditable(volunteerID, userID, p.Status)
		}
		v, err := getVolunteer(ctx, tx, volunteerID)
		if err != nil {
			return err
		}
		if !volunteerOpen(v) {
			return notAuditable(volunteerID, userID, p.Status)
		}

		p.Status = model.ThoughtWaitingForFinalAudit
		if err := tx.UpdateParticipation(ctx, p); err != nil {
			return fmt.Errorf("failed to update participation: %w", err)
		}
		out.toUser(actor.UserID, userID, "Reflection reviewed",
			fmt.Sprintf("Your reflection for %s passed the first audit", v.Name))

		logger.Info("First audit passed",
			zap.Int64("volunteer_id", volunteerID),
			zap.Int64("user_id", userID),
			zap.Int64("auditor_id", actor.UserID))
		return nil
	})
}

// finalAudit checks that the reflection waits for the final audit and that actor's
// role covers the volunteer's type, then applies decide and notifies the participant
func finalAudit(ctx context.Context, store db.Store, notifier Notifier, logger *zap.Logger, actor model.Actor, volunteerID, userID int64,
	decide func(p *db.Participation, v *db.Volunteer) (title, body string)) error {
	return runTx(ctx, store, notifier, logger, func(ctx context.Context, tx db.Tx, out *outbox) error {
		v, err := getVolunteer(ctx, tx, volunteerID)
		if err != nil {
			return err
		}
		p, err := getThought(ctx, tx, volunteerID, userID)
		if err != nil {
			return err
		}
		if p.Status != model.ThoughtWaitingForFinalAudit || !volunteerOpen(v) || !policy.CanFinalAudit(actor, v.Type) {
			return notAuditable(volunteerID, userID, p.Status)
		}

		title, body := decide(p, v)
		if err := tx.UpdateParticipation(ctx, p); err != nil {
			return fmt.Errorf("failed to update participation: %w", err)
		}
		out.toUser(actor.UserID, userID, title, body)

		logger.Info("Final audit",
			zap.Int64("volunteer_id", volunteerID),
			zap.Int64("user_id", userID),
			zap.Int64("auditor_id", actor.UserID),
			zap.Stringer("status", p.Status),
			zap.Int("reward", p.Reward))
		return nil
	})
}

// AcceptThought grants reward minutes, overriding the volunteer's nominal reward
func AcceptThought(ctx context.Context, store db.Store, notifier Notifier, logger *zap.Logger, actor model.Actor, volunteerID, userID int64, reward int) error {
	if reward < 0 {
		return apperr.Validation("reward", "must not be negative")
	}
	return finalAudit(ctx, store, notifier, logger, actor, volunteerID, userID, func(p *db.Participation, v *db.Volunteer) (string, string) {
		p.Status = model.ThoughtAccepted
		p.Reward = reward
		return "Reflection accepted", fmt.Sprintf("You were granted %d minutes for %s", reward, v.Name)
	})
}

// RejectThought rejects a reflection for good
func RejectThought(ctx context.Context, store db.Store, notifier Notifier, logger *zap.Logger, actor model.Actor, volunteerID, userID int64) error {
	return finalAudit(ctx, store, notifier, logger, actor, volunteerID, userID, func(p *db.Participation, v *db.Volunteer) (string, string) {
		p.Status = model.ThoughtRejected
		return "Reflection rejected", fmt.Sprintf("Your reflection for %s was rejected", v.Name)
	})
}

// SpikeThought sends a reflection back to its author, who may edit and resubmit it
func SpikeThought(ctx context.Context, store db.Store, notifier Notifier, logger *zap.Logger, actor model.Actor, volunteerID, userID int64) error {
	return finalAudit(ctx, store, notifier, logger, actor, volunteerID, userID, func(p *db.Participation, v *db.Volunteer) (string, string) {
		p.Status = model.ThoughtSpike
		return "Reflection returned", fmt.Sprintf("Your reflection for %s needs changes; edit and submit it again", v.Name)
	})
}
