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

// SpecialVolunteerRequest grants the same reward to every participant
type SpecialVolunteerRequest struct {
	Name         string        `validate:"required,max=32"`
	Description  string        `validate:"max=1024"`
	Type         model.VolType `validate:"oneof=1 2 3"`
	Reward       int           `validate:"gte=0"`
	Participants []string      `validate:"required,min=1,dive,required"`
}

// SpecialGrant is one participant of a SpecialVolunteerExRequest
type SpecialGrant struct {
	Participant string `validate:"required"`
	Reward      int    `validate:"gte=0"`
}

// SpecialVolunteerExRequest grants each participant its own reward
type SpecialVolunteerExRequest struct {
	Name        string         `validate:"required,max=32"`
	Description string         `validate:"max=1024"`
	Type        model.VolType  `validate:"oneof=1 2 3"`
	Grants      []SpecialGrant `validate:"required,min=1,dive"`
}

type grant struct {
	userID int64
	reward int
}

func uniformGrants(ctx context.Context, tx db.UserQueries, identifiers []string, reward int) ([]grant, error) {
	ids, err := resolveUsers(ctx, tx, identifiers)
	if err != nil {
		return nil, err
	}
	grants := make([]grant, len(ids))
	for i, id := range ids {
		grants[i] = grant{userID: id, reward: reward}
	}
	return grants, nil
}

func individualGrants(ctx context.Context, tx db.UserQueries, requested []SpecialGrant) ([]grant, error) {
	identifiers := make([]string, len(requested))
	for i, g := range requested {
		identifiers[i] = g.Participant
	}
	ids, err := resolveUsers(ctx, tx, identifiers)
	if err != nil {
		return nil, err
	}
	grants := make([]grant, len(ids))
	for i, id := range ids {
		grants[i] = grant{userID: id, reward: requested[i].Reward}
	}
	return grants, nil
}

// insertGrants writes accepted participations; time credit is final immediately
func insertGrants(ctx context.Context, tx db.ParticipationQueries, out *outbox, sender int64, v *db.Volunteer, grants []grant) error {
	for _, g := range grants {
		p := &db.Participation{
			UserID:      g.userID,
			VolunteerID: v.ID,
			Status:      model.ThoughtAccepted,
			Reward:      g.reward,
		}
		if err := tx.InsertParticipation(ctx, p); err != nil {
			return fmt.Errorf("failed to insert participation: %w", err)
		}
		out.toUser(sender, g.userID, "Volunteer time granted",
			fmt.Sprintf("You were granted %d minutes for %s", g.reward, v.Name))
	}
	return nil
}

func createSpecial(ctx context.Context, store db.Store, notifier Notifier, logger *zap.Logger, actor model.Actor,
	v db.Volunteer, resolve func(ctx context.Context, tx db.Tx) ([]grant, error)) (int64, error) {
	if !policy.Can(actor, model.PermissionManager) {
		return 0, apperr.NotAuthorized(apperr.CodeNotAuthorized, "user_id", actor.UserID)
	}

	var id int64
	err := runTx(ctx, store, notifier, logger, func(ctx context.Context, tx db.Tx, out *outbox) error {
		grants, err := resolve(ctx, tx)
		if err != nil {
			return err
		}

		row := v
		row.Status = model.VolStatusSpecial
		row.HolderID = actor.UserID
		if err := tx.InsertVolunteer(ctx, &row); err != nil {
			return fmt.Errorf("failed to insert volunteer: %w", err)
		}
		id = row.ID

		if err := insertGrants(ctx, tx, out, actor.UserID, &row, grants); err != nil {
			return err
		}

		logger.Info("Created special volunteer",
			zap.Int64("volunteer_id", row.ID),
			zap.Int64("user_id", actor.UserID),
			zap.Int("participants", len(grants)))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// CreateSpecialVolunteer grants req.Reward to every participant without any audit
func CreateSpecialVolunteer(ctx context.Context, store db.Store, notifier Notifier, logger *zap.Logger, actor model.Actor, req SpecialVolunteerRequest) (int64, error) {
	if err := validateRequest(req); err != nil {
		return 0, err
	}
	v := db.Volunteer{Name: req.Name, Description: req.Description, Type: req.Type, Reward: req.Reward}
	return createSpecial(ctx, store, notifier, logger, actor, v, func(ctx context.Context, tx db.Tx) ([]grant, error) {
		return uniformGrants(ctx, tx, req.Participants, req.Reward)
	})
}

// CreateSpecialVolunteerEx grants each participant its own reward without any audit.
// The volunteer's nominal reward is zero.
func CreateSpecialVolunteerEx(ctx context.Context, store db.Store, notifier Notifier, logger *zap.Logger, actor model.Actor, req SpecialVolunteerExRequest) (int64, error) {
	if err := validateRequest(req); err != nil {
		return 0, err
	}
	v := db.Volunteer{Name: req.Name, Description: req.Description, Type: req.Type}
	return createSpecial(ctx, store, notifier, logger, actor, v, func(ctx context.Context, tx db.Tx) ([]grant, error) {
		return individualGrants(ctx, tx, req.Grants)
	})
}
