package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/zvmsbackend/zvms3/pkg/core/apperr"
	"github.com/zvmsbackend/zvms3/pkg/core/model"
	"github.com/zvmsbackend/zvms3/pkg/core/policy"
	"github.com/zvmsbackend/zvms3/pkg/db"
)

// signupBlocker returns why actor cannot sign up for v, or "" when it can.
// With lock the caller's quota row stays locked until the transaction ends;
// read-only views pass false.
func signupBlocker(ctx context.Context, tx db.Tx, actor model.Actor, v *db.Volunteer, lock bool) (string, error) {
	kind, quotas, err := DetectKind(ctx, tx, v.ID, v.Status)
	if err != nil {
		return "", err
	}
	if kind != model.VolKindInside {
		return "not a class volunteer", nil
	}
	if v.Status != model.VolStatusAccepted {
		return "volunteer not accepted", nil
	}
	if v.Time == nil || dateOf(*v.Time).Before(today()) {
		return "volunteer already took place", nil
	}

	if lock {
		_, err = tx.GetParticipation(ctx, v.ID, actor.UserID)
	} else {
		_, err = tx.FindParticipation(ctx, v.ID, actor.UserID)
	}
	if err == nil {
		return "already signed up", nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return "", fmt.Errorf("failed to fetch participation: %w", err)
	}

	var quota *db.ClassQuota
	if lock {
		quota, err = tx.LockClassQuota(ctx, v.ID, actor.ClassID)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return "", fmt.Errorf("failed to lock class quota: %w", err)
		}
	} else {
		for i := range quotas {
			if quotas[i].ClassID == actor.ClassID {
				quota = &quotas[i]
			}
		}
	}
	if quota == nil {
		return "class not invited", nil
	}
	enrolled, err := tx.CountClassParticipants(ctx, v.ID, actor.ClassID)
	if err != nil {
		return "", fmt.Errorf("failed to count class participants: %w", err)
	}
	if enrolled >= quota.Max {
		return "class quota full", nil
	}
	return "", nil
}

// CanSignup reports whether actor may currently sign up for the volunteer
func CanSignup(ctx context.Context, store db.Store, logger *zap.Logger, actor model.Actor, volunteerID int64) (bool, error) {
	var ok bool
	err := runTx(ctx, store, nil, logger, func(ctx context.Context, tx db.Tx, _ *outbox) error {
		v, err := getVolunteer(ctx, tx, volunteerID)
		if err != nil {
			return err
		}
		reason, err := signupBlocker(ctx, tx, actor, v, false)
		ok = reason == ""
		return err
	})
	return ok, err
}

// SignupVolunteer enrols actor in a class-quota volunteer. Members without CLASS or
// MANAGER wait for their signup to be accepted before they can write a reflection.
func SignupVolunteer(ctx context.Context, store db.Store, notifier Notifier, logger *zap.Logger, actor model.Actor, volunteerID int64) error {
	return runTx(ctx, store, notifier, logger, func(ctx context.Context, tx db.Tx, out *outbox) error {
		v, err := getVolunteer(ctx, tx, volunteerID)
		if err != nil {
			return err
		}
		reason, err := signupBlocker(ctx, tx, actor, v, true)
		if err != nil {
			return err
		}
		if reason != "" {
			return apperr.InvalidState(apperr.CodeCantSignupForVolunteer,
				"volunteer_id", volunteerID, "reason", reason)
		}

		status := model.ThoughtWaitingForSignupAudit
		if policy.SelfAudits(actor) {
			status = model.ThoughtDraft
		}
		p := &db.Participation{UserID: actor.UserID, VolunteerID: volunteerID, Status: status}
		if err := tx.InsertParticipation(ctx, p); err != nil {
			if errors.Is(err, db.ErrConflict) {
				return apperr.InvalidState(apperr.CodeCantSignupForVolunteer,
					"volunteer_id", volunteerID, "reason", "already signed up")
			}
			return fmt.Errorf("failed to insert participation: %w", err)
		}

		logger.Info("Signed up for volunteer",
			zap.Int64("volunteer_id", volunteerID),
			zap.Int64("user_id", actor.UserID),
			zap.Stringer("status", status))
		return nil
	})
}

// RollbackSignup removes a participation together with its pictures. Only the
// participant or a CLASS actor may do it.
func RollbackSignup(ctx context.Context, store db.Store, logger *zap.Logger, actor model.Actor, volunteerID, userID int64) error {
	if !policy.OwnerOr(actor, userID, model.PermissionClass) {
		return apperr.NotAuthorized(apperr.CodeCantRollbackOthersSignup,
			"volunteer_id", volunteerID, "user_id", userID)
	}

	return runTx(ctx, store, nil, logger, func(ctx context.Context, tx db.Tx, _ *outbox) error {
		_, err := tx.GetParticipation(ctx, volunteerID, userID)
		if errors.Is(err, db.ErrNotFound) {
			return apperr.NotFound(apperr.CodeSignupNotExists, "volunteer_id", volunteerID, "user_id", userID)
		}
		if err != nil {
			return fmt.Errorf("failed to fetch participation: %w", err)
		}

		if err := tx.DeleteParticipation(ctx, volunteerID, userID); err != nil {
			return fmt.Errorf("failed to delete participation: %w", err)
		}
		if err := tx.DeletePictures(ctx, volunteerID, userID); err != nil {
			return fmt.Errorf("failed to delete pictures: %w", err)
		}

		logger.Info("Rolled back signup",
			zap.Int64("volunteer_id", volunteerID),
			zap.Int64("user_id", userID),
			zap.Int64("actor_id", actor.UserID))
		return nil
	})
}

// AcceptSignup lets a participant waiting for signup review start a reflection
func AcceptSignup(ctx context.Context, store db.Store, notifier Notifier, logger *zap.Logger, actor model.Actor, volunteerID, userID int64) error {
	if !policy.Can(actor, model.PermissionClass) {
		return apperr.NotAuthorized(apperr.CodeNotAuthorized, "user_id", actor.UserID)
	}

	return runTx(ctx, store, notifier, logger, func(ctx context.Context, tx db.Tx, out *outbox) error {
		p, err := tx.GetParticipation(ctx, volunteerID, userID)
		if errors.Is(err, db.ErrNotFound) {
			return apperr.NotFound(apperr.CodeSignupNotExists, "volunteer_id", volunteerID, "user_id", userID)
		}
		if err != nil {
			return fmt.Errorf("failed to fetch participation: %w", err)
		}
		if p.Status != model.ThoughtWaitingForSignupAudit {
			return apperr.InvalidState(apperr.CodeSignupNotWaiting,
				"volunteer_id", volunteerID, "user_id", userID, "status", p.Status.String())
		}

		v, err := getVolunteer(ctx, tx, volunteerID)
		if err != nil {
			return err
		}
		if !volunteerOpen(v) {
			return apperr.InvalidState(apperr.CodeCantAuditVolunteer,
				"volunteer_id", volunteerID, "status", v.Status.String())
		}

		p.Status = model.ThoughtDraft
		if err := tx.UpdateParticipation(ctx, p); err != nil {
			return fmt.Errorf("failed to update participation: %w", err)
		}
		out.toUser(actor.UserID, userID, "Signup accepted",
			fmt.Sprintf("You can now write a reflection for %s", v.Name))

		logger.Info("Accepted signup",
			zap.Int64("volunteer_id", volunteerID),
			zap.Int64("user_id", userID))
		return nil
	})
}
