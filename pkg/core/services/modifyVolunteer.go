package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zvmsbackend/zvms3/pkg/core/apperr"
	"github.com/zvmsbackend/zvms3/pkg/core/model"
	"github.com/zvmsbackend/zvms3/pkg/core/policy"
	"github.com/zvmsbackend/zvms3/pkg/db"
)

// VolunteerDraft is the current state of a volunteer as its modification form needs it
type VolunteerDraft struct {
	ID           int64
	Kind         model.VolKind
	Name         string
	Description  string
	Time         *time.Time
	Reward       int
	Type         model.VolType
	Participants []db.Participant
	Quotas       []db.ClassQuota
}

// lockForModify locks the volunteer and checks that actor may modify it. When want is
// non-zero the stored kind must match it.
func lockForModify(ctx context.Context, tx db.Tx, actor model.Actor, volunteerID int64, want model.VolKind) (*db.Volunteer, model.VolKind, []db.ClassQuota, error) {
	v, err := lockVolunteer(ctx, tx, volunteerID)
	if err != nil {
		return nil, 0, nil, err
	}
	if !policy.OwnerOr(actor, v.HolderID, model.PermissionManager) {
		return nil, 0, nil, apperr.NotAuthorized(apperr.CodeCantModifyOthersVolunteer,
			"volunteer_id", volunteerID, "holder_id", v.HolderID)
	}
	if v.Status == model.VolStatusRejected {
		return nil, 0, nil, apperr.InvalidState(apperr.CodeCantModifyRejected, "volunteer_id", volunteerID)
	}

	kind, quotas, err := DetectKind(ctx, tx, volunteerID, v.Status)
	if err != nil {
		return nil, 0, nil, err
	}
	if want != 0 && kind != want {
		return nil, 0, nil, apperr.InvalidState(apperr.CodeVolunteerKindMismatch,
			"volunteer_id", volunteerID, "expected", want.String(), "actual", kind.String())
	}
	return v, kind, quotas, nil
}

// PrepareModifyVolunteer returns everything needed to edit a volunteer, including its
// freshly detected kind
func PrepareModifyVolunteer(ctx context.Context, store db.Store, logger *zap.Logger, actor model.Actor, volunteerID int64) (*VolunteerDraft, error) {
	var draft *VolunteerDraft
	err := runTx(ctx, store, nil, logger, func(ctx context.Context, tx db.Tx, _ *outbox) error {
		v, kind, quotas, err := lockForModify(ctx, tx, actor, volunteerID, 0)
		if err != nil {
			return err
		}
		participants, err := tx.ListParticipants(ctx, volunteerID)
		if err != nil {
			return fmt.Errorf("failed to fetch participants: %w", err)
		}
		draft = &VolunteerDraft{
			ID:           v.ID,
			Kind:         kind,
			Name:         v.Name,
			Description:  v.Description,
			Time:         v.Time,
			Reward:       v.Reward,
			Type:         v.Type,
			Participants: participants,
			Quotas:       quotas,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return draft, nil
}

// ModifyClassVolunteer rewrites a class-quota volunteer and replaces all its quotas
func ModifyClassVolunteer(ctx context.Context, store db.Store, logger *zap.Logger, actor model.Actor, volunteerID int64, req ClassVolunteerRequest) error {
	if err := validateClassRequest(req); err != nil {
		return err
	}

	return runTx(ctx, store, nil, logger, func(ctx context.Context, tx db.Tx, _ *outbox) error {
		v, _, _, err := lockForModify(ctx, tx, actor, volunteerID, model.VolKindInside)
		if err != nil {
			return err
		}
		if err := checkQuotas(ctx, tx, logger, req.Quotas); err != nil {
			return err
		}

		scheduled := dateOf(req.Time)
		v.Name, v.Description, v.Reward, v.Time = req.Name, req.Description, req.Reward, &scheduled
		if err := tx.UpdateVolunteer(ctx, v); err != nil {
			return fmt.Errorf("failed to update volunteer: %w", err)
		}
		if err := tx.DeleteClassQuotas(ctx, volunteerID); err != nil {
			return fmt.Errorf("failed to delete class quotas: %w", err)
		}
		if err := tx.InsertClassQuotas(ctx, quotaRows(volunteerID, req.Quotas)); err != nil {
			return fmt.Errorf("failed to insert class quotas: %w", err)
		}

		logger.Info("Modified class volunteer",
			zap.Int64("volunteer_id", volunteerID),
			zap.Int64("user_id", actor.UserID),
			zap.Int("classes", len(req.Quotas)))
		return nil
	})
}

// ModifyAppointedVolunteer rewrites an appointed volunteer. Participants missing from
// the request are removed with their pictures; new ones start at the status the
// volunteer's audit state allows.
func ModifyAppointedVolunteer(ctx context.Context, store db.Store, logger *zap.Logger, actor model.Actor, volunteerID int64, req AppointedVolunteerRequest) error {
	if err := validateRequest(req); err != nil {
		return err
	}

	return runTx(ctx, store, nil, logger, func(ctx context.Context, tx db.Tx, _ *outbox) error {
		v, _, _, err := lockForModify(ctx, tx, actor, volunteerID, model.VolKindAppointed)
		if err != nil {
			return err
		}
		requested, err := resolveUsers(ctx, tx, req.Participants)
		if err != nil {
			return err
		}
		former, err := tx.ListParticipants(ctx, volunteerID)
		if err != nil {
			return fmt.Errorf("failed to fetch participants: %w", err)
		}

		keep := make(map[int64]bool, len(requested))
		for _, id := range requested {
			keep[id] = true
		}
		existing := make(map[int64]bool, len(former))
		removed := 0
		for _, p := range former {
			existing[p.UserID] = true
			if keep[p.UserID] {
				continue
			}
			if err := tx.DeleteParticipation(ctx, volunteerID, p.UserID); err != nil {
				return fmt.Errorf("failed to delete participation: %w", err)
			}
			if err := tx.DeletePictures(ctx, volunteerID, p.UserID); err != nil {
				return fmt.Errorf("failed to delete pictures: %w", err)
			}
			removed++
		}

		status := model.ThoughtDraft
		if v.Status == model.VolStatusUnaudited {
			status = model.ThoughtWaitingForSignupAudit
		}
		added := 0
		for _, id := range requested {
			if existing[id] {
				continue
			}
			if err := tx.InsertParticipation(ctx, &db.Participation{UserID: id, VolunteerID: volunteerID, Status: status}); err != nil {
				return fmt.Errorf("failed to insert participation: %w", err)
			}
			added++
		}

		v.Name, v.Description, v.Type, v.Reward = req.Name, req.Description, req.Type, req.Reward
		if err := tx.UpdateVolunteer(ctx, v); err != nil {
			return fmt.Errorf("failed to update volunteer: %w", err)
		}

		logger.Info("Modified appointed volunteer",
			zap.Int64("volunteer_id", volunteerID),
			zap.Int64("user_id", actor.UserID),
			zap.Int("added", added),
			zap.Int("removed", removed))
		return nil
	})
}

func modifySpecial(ctx context.Context, store db.Store, notifier Notifier, logger *zap.Logger, actor model.Actor, volunteerID int64,
	update func(v *db.Volunteer), resolve func(ctx context.Context, tx db.Tx) ([]grant, error)) error {
	if !policy.Can(actor, model.PermissionManager) {
		return apperr.NotAuthorized(apperr.CodeNotAuthorized, "user_id", actor.UserID)
	}

	return runTx(ctx, store, notifier, logger, func(ctx context.Context, tx db.Tx, out *outbox) error {
		v, _, _, err := lockForModify(ctx, tx, actor, volunteerID, model.VolKindSpecial)
		if err != nil {
			return err
		}
		grants, err := resolve(ctx, tx)
		if err != nil {
			return err
		}

		update(v)
		if err := tx.UpdateVolunteer(ctx, v); err != nil {
			return fmt.Errorf("failed to update volunteer: %w", err)
		}
		if err := tx.DeleteParticipations(ctx, volunteerID); err != nil {
			return fmt.Errorf("failed to delete participations: %w", err)
		}
		if err := insertGrants(ctx, tx, out, actor.UserID, v, grants); err != nil {
			return err
		}

		logger.Info("Modified special volunteer",
			zap.Int64("volunteer_id", volunteerID),
			zap.Int64("user_id", actor.UserID),
			zap.Int("participants", len(grants)))
		return nil
	})
}

// ModifySpecialVolunteer replaces every grant of a special volunteer with one uniform reward
func ModifySpecialVolunteer(ctx context.Context, store db.Store, notifier Notifier, logger *zap.Logger, actor model.Actor, volunteerID int64, req SpecialVolunteerRequest) error {
	if err := validateRequest(req); err != nil {
		return err
	}
	return modifySpecial(ctx, store, notifier, logger, actor, volunteerID,
		func(v *db.Volunteer) {
			v.Name, v.Description, v.Type, v.Reward = req.Name, req.Description, req.Type, req.Reward
		},
		func(ctx context.Context, tx db.Tx) ([]grant, error) {
			return uniformGrants(ctx, tx, req.Participants, req.Reward)
		})
}

// ModifySpecialVolunteerEx replaces every grant of a special volunteer with per-participant rewards
func ModifySpecialVolunteerEx(ctx context.Context, store db.Store, notifier Notifier, logger *zap.Logger, actor model.Actor, volunteerID int64, req SpecialVolunteerExRequest) error {
	if err := validateRequest(req); err != nil {
		return err
	}
	return modifySpecial(ctx, store, notifier, logger, actor, volunteerID,
		func(v *db.Volunteer) {
			v.Name, v.Description, v.Type, v.Reward = req.Name, req.Description, req.Type, 0
		},
		func(ctx context.Context, tx db.Tx) ([]grant, error) {
			return individualGrants(ctx, tx, req.Grants)
		})
}
