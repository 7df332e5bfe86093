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

// DeleteVolunteer removes a volunteer with its quotas, participations and picture
// references. Picture bytes stay in the store since other volunteers may share them.
func DeleteVolunteer(ctx context.Context, store db.Store, logger *zap.Logger, actor model.Actor, volunteerID int64) error {
	return runTx(ctx, store, nil, logger, func(ctx context.Context, tx db.Tx, _ *outbox) error {
		v, err := lockVolunteer(ctx, tx, volunteerID)
		if err != nil {
			return err
		}
		if !policy.OwnerOr(actor, v.HolderID, model.PermissionManager) {
			return apperr.NotAuthorized(apperr.CodeCantDeleteOthersVolunteer,
				"volunteer_id", volunteerID, "holder_id", v.HolderID)
		}

		if err := tx.DeleteClassQuotas(ctx, volunteerID); err != nil {
			return fmt.Errorf("failed to delete class quotas: %w", err)
		}
		if err := tx.DeleteVolunteerPictures(ctx, volunteerID); err != nil {
			return fmt.Errorf("failed to delete pictures: %w", err)
		}
		if err := tx.DeleteParticipations(ctx, volunteerID); err != nil {
			return fmt.Errorf("failed to delete participations: %w", err)
		}
		if err := tx.DeleteVolunteer(ctx, volunteerID); err != nil {
			return fmt.Errorf("failed to delete volunteer: %w", err)
		}

		logger.Info("Deleted volunteer",
			zap.Int64("volunteer_id", volunteerID),
			zap.Int64("user_id", actor.UserID))
		return nil
	})
}
