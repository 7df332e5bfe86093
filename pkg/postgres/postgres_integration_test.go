//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/zvmsbackend/zvms3/pkg/core/model"
	"github.com/zvmsbackend/zvms3/pkg/db"
)

func startPostgres(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "zvms",
				"POSTGRES_PASSWORD": "zvms",
				"POSTGRES_DB":       "zvms",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate postgres: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	database, err := NewDB(ctx, fmt.Sprintf("postgres://zvms:zvms@%s:%s/zvms?sslmode=disable", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(database.Close)

	require.NoError(t, database.RunMigrations(ctx))
	return database
}

func seedClassAndUsers(t *testing.T, d *DB) (classID, secretaryID, studentID int64) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, d.pool.QueryRow(ctx, `INSERT INTO class (name) VALUES ('Class 1') RETURNING id`).Scan(&classID))
	require.NoError(t, d.pool.QueryRow(ctx, `
		INSERT INTO users (username, permission, classid) VALUES ('secretary', $1, $2) RETURNING userid
	`, int(model.PermissionClass), classID).Scan(&secretaryID))
	require.NoError(t, d.pool.QueryRow(ctx, `
		INSERT INTO users (username, permission, classid) VALUES ('student', 0, $1) RETURNING userid
	`, classID).Scan(&studentID))
	return classID, secretaryID, studentID
}

func TestRunMigrations_Idempotent(t *testing.T) {
	d := startPostgres(t)
	require.NoError(t, d.RunMigrations(context.Background()))
}

func TestVolunteerLifecycle(t *testing.T) {
	d := startPostgres(t)
	classID, secretaryID, studentID := seedClassAndUsers(t, d)
	ctx := context.Background()
	today := time.Now().UTC().Truncate(24 * time.Hour)

	var volunteerID int64
	err := d.InTx(ctx, func(ctx context.Context, tx db.Tx) error {
		n, err := tx.CountClassMembers(ctx, classID)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		v := &db.Volunteer{
			Name: "Library", Description: "Shelving", Status: model.VolStatusAccepted,
			HolderID: secretaryID, Type: model.VolTypeInside, Reward: 30, Time: &today,
		}
		require.NoError(t, tx.InsertVolunteer(ctx, v))
		volunteerID = v.ID
		require.NoError(t, tx.InsertClassQuotas(ctx, []db.ClassQuota{{ClassID: classID, VolunteerID: v.ID, Max: 2}}))
		return tx.InsertParticipation(ctx, &db.Participation{UserID: studentID, VolunteerID: v.ID, Status: model.ThoughtDraft})
	})
	require.NoError(t, err)

	err = d.InTx(ctx, func(ctx context.Context, tx db.Tx) error {
		return tx.InsertParticipation(ctx, &db.Participation{UserID: studentID, VolunteerID: volunteerID, Status: model.ThoughtDraft})
	})
	assert.ErrorIs(t, err, db.ErrConflict)

	err = d.InTx(ctx, func(ctx context.Context, tx db.Tx) error {
		q, err := tx.LockClassQuota(ctx, volunteerID, classID)
		require.NoError(t, err)
		assert.Equal(t, 2, q.Max)

		n, err := tx.CountClassParticipants(ctx, volunteerID, classID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		p, err := tx.GetParticipation(ctx, volunteerID, studentID)
		require.NoError(t, err)
		p.Status = model.ThoughtAccepted
		p.Reward = 30
		return tx.UpdateParticipation(ctx, p)
	})
	require.NoError(t, err)

	err = d.InTx(ctx, func(ctx context.Context, tx db.Tx) error {
		p, err := tx.FindParticipation(ctx, volunteerID, studentID)
		require.NoError(t, err)
		assert.Equal(t, model.ThoughtAccepted, p.Status)

		sums, err := tx.SumRewards(ctx, studentID)
		require.NoError(t, err)
		assert.Equal(t, map[model.VolType]int{model.VolTypeInside: 30}, sums)

		rows, total, err := tx.ListVolunteers(ctx, db.VolunteerFilter{RelatedUserID: studentID, RelatedClassID: classID})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, rows, 1)
		assert.Equal(t, "secretary", rows[0].HolderName)

		detail, err := tx.GetThoughtDetail(ctx, volunteerID, studentID)
		require.NoError(t, err)
		assert.Equal(t, "Class 1", detail.ClassName)
		assert.Equal(t, 30, detail.NominalReward)
		return nil
	})
	require.NoError(t, err)

	err = d.InTx(ctx, func(ctx context.Context, tx db.Tx) error {
		return tx.DeleteVolunteer(ctx, volunteerID)
	})
	require.NoError(t, err)

	err = d.InTx(ctx, func(ctx context.Context, tx db.Tx) error {
		_, err := tx.GetParticipation(ctx, volunteerID, studentID)
		assert.ErrorIs(t, err, db.ErrNotFound)
		quotas, err := tx.ListClassQuotas(ctx, volunteerID)
		require.NoError(t, err)
		assert.Empty(t, quotas)
		return nil
	})
	require.NoError(t, err)
}

func TestPictureClaimAndRollback(t *testing.T) {
	d := startPostgres(t)
	_, secretaryID, _ := seedClassAndUsers(t, d)
	ctx := context.Background()

	var volunteerID int64
	require.NoError(t, d.InTx(ctx, func(ctx context.Context, tx db.Tx) error {
		v := &db.Volunteer{Name: "Garden", Status: model.VolStatusAccepted, HolderID: secretaryID, Type: model.VolTypeOutside}
		if err := tx.InsertVolunteer(ctx, v); err != nil {
			return err
		}
		volunteerID = v.ID
		return nil
	}))

	rollback := fmt.Errorf("rollback")
	err := d.InTx(ctx, func(ctx context.Context, tx db.Tx) error {
		first, err := tx.ClaimPictureFile(ctx, "abc.png")
		require.NoError(t, err)
		assert.True(t, first)
		return rollback
	})
	require.ErrorIs(t, err, rollback)

	require.NoError(t, d.InTx(ctx, func(ctx context.Context, tx db.Tx) error {
		first, err := tx.ClaimPictureFile(ctx, "abc.png")
		require.NoError(t, err)
		assert.True(t, first, "claim rolled back with its transaction")

		inserted, err := tx.InsertPicture(ctx, db.Picture{VolunteerID: volunteerID, UserID: secretaryID, Filename: "abc.png"})
		require.NoError(t, err)
		assert.True(t, inserted)
		inserted, err = tx.InsertPicture(ctx, db.Picture{VolunteerID: volunteerID, UserID: secretaryID, Filename: "abc.png"})
		require.NoError(t, err)
		assert.False(t, inserted)
		return nil
	}))
}
