package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/zvmsbackend/zvms3/pkg/core/model"
	"github.com/zvmsbackend/zvms3/pkg/db"
)

// ResolveActor builds the identity context of a user given by id or username
func ResolveActor(ctx context.Context, store db.Store, logger *zap.Logger, identifier string) (model.Actor, error) {
	var actor model.Actor
	err := runTx(ctx, store, nil, logger, func(ctx context.Context, tx db.Tx, _ *outbox) error {
		u, err := resolveUser(ctx, tx, identifier)
		if err != nil {
			return err
		}
		actor = u.Actor()
		return nil
	})
	return actor, err
}
