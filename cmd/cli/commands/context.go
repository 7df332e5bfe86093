package commands

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/zvmsbackend/zvms3/internal/config"
	"github.com/zvmsbackend/zvms3/pkg/clients/noticeclient"
	"github.com/zvmsbackend/zvms3/pkg/clients/pictureclient"
	"github.com/zvmsbackend/zvms3/pkg/core/model"
	"github.com/zvmsbackend/zvms3/pkg/core/services"
	"github.com/zvmsbackend/zvms3/pkg/db"
	"github.com/zvmsbackend/zvms3/pkg/postgres"
)

// AppContext holds the application dependencies shared across all commands
type AppContext struct {
	Cfg      *config.Config
	Store    db.Store
	Postgres *postgres.DB // nil when running on the in-memory store
	Notices  *noticeclient.Client
	Pictures *pictureclient.Client
	Logger   *zap.Logger
	Ctx      context.Context

	// As names the acting user, by id or username
	As    string
	actor *model.Actor
}

// Actor resolves the acting user once per As value
func (a *AppContext) Actor() (model.Actor, error) {
	if a.actor != nil {
		return *a.actor, nil
	}
	if a.As == "" {
		return model.Actor{}, fmt.Errorf("this command needs --as <user>")
	}
	actor, err := services.ResolveActor(a.Ctx, a.Store, a.Logger, a.As)
	if err != nil {
		return model.Actor{}, fmt.Errorf("failed to resolve acting user %s: %w", a.As, err)
	}
	a.actor = &actor
	a.Logger.Debug("Resolved acting user",
		zap.Int64("user_id", actor.UserID),
		zap.Stringer("permission", actor.Permission))
	return actor, nil
}

// SwitchActor makes the next Actor call resolve identifier instead
func (a *AppContext) SwitchActor(identifier string) {
	a.As = identifier
	a.actor = nil
}
