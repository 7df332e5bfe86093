package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zvmsbackend/zvms3/cmd/cli/commands"
	"github.com/zvmsbackend/zvms3/internal/config"
	"github.com/zvmsbackend/zvms3/pkg/clients/noticeclient"
	"github.com/zvmsbackend/zvms3/pkg/clients/pictureclient"
	"github.com/zvmsbackend/zvms3/pkg/db/memdb"
	"github.com/zvmsbackend/zvms3/pkg/postgres"
	"github.com/zvmsbackend/zvms3/pkg/utils/logging"
)

var env string

func main() {
	app := &commands.AppContext{}

	rootCmd := &cobra.Command{
		Use:          "zvms",
		Short:        "zvms - volunteer time tracking",
		Long:         `A CLI for creating volunteers, signing up, writing reflections and auditing them.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp(app)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			shutdown(app)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.PersistentFlags().StringVar(&app.As, "as", "", "Acting user, by id or username")
	rootCmd.MarkPersistentFlagRequired("env")

	rootCmd.AddCommand(commands.MigrateCmd(app))
	rootCmd.AddCommand(commands.VolunteerCmd(app))
	rootCmd.AddCommand(commands.ThoughtCmd(app))
	rootCmd.AddCommand(commands.ScoreCmd(app))
	rootCmd.AddCommand(commands.InteractiveCmd(app))

	if err := rootCmd.Execute(); err != nil {
		shutdown(app)
		os.Exit(1)
	}
}

// initApp sets up config, logger, store, notice queue and picture store
func initApp(app *commands.AppContext) error {
	var err error
	app.Ctx = context.Background()

	app.Cfg, err = config.LoadWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app.Logger, err = logging.InitLogger(env, app.Cfg.LogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.Logger.Info("Starting application", zap.String("environment", env))

	if app.Cfg.DatabaseURL == config.MemoryDatabase {
		app.Logger.Info("Using in-memory store")
		store := memdb.New()
		if app.Cfg.MemorySeed != "" {
			seed, err := config.LoadSeed(app.Cfg.MemorySeed)
			if err != nil {
				return err
			}
			users := 0
			for _, class := range seed.Classes {
				classID := store.AddClass(class.Name)
				for _, u := range class.Users {
					store.AddUser(u.Name, classID, u.Permission())
					users++
				}
			}
			app.Logger.Debug("Seeded in-memory store",
				zap.Int("classes", len(seed.Classes)),
				zap.Int("users", users))
		}
		app.Store = store
	} else {
		app.Logger.Info("Connecting to database")
		app.Postgres, err = postgres.NewDB(app.Ctx, app.Cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		app.Store = app.Postgres
		app.Logger.Info("Database initialized successfully")
	}

	app.Pictures, err = pictureclient.NewClient(app.Cfg.PictureDir, app.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize picture store: %w", err)
	}

	ttl := time.Duration(app.Cfg.NoticeTTLDays) * 24 * time.Hour
	app.Notices = noticeclient.New(app.Store, app.Logger, ttl, app.Cfg.NoticeQueueSize)

	return nil
}

// shutdown flushes queued notices before the store goes away
func shutdown(app *commands.AppContext) {
	if app.Notices != nil {
		app.Notices.Close()
	}
	if app.Postgres != nil {
		app.Postgres.Close()
	}
	if app.Logger != nil {
		app.Logger.Sync()
	}
}
