package memdb

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zvmsbackend/zvms3/pkg/core/model"
	"github.com/zvmsbackend/zvms3/pkg/db"
)

func TestInTx_RollsBackOnError(t *testing.T) {
	store := New()
	classID := store.AddClass("Class 1")
	userID := store.AddUser("alice", classID, 0)
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.InTx(ctx, func(ctx context.Context, tx db.Tx) error {
		v := &db.Volunteer{Name: "Cleanup", Status: model.VolStatusAccepted, HolderID: userID, Type: model.VolTypeInside}
		require.NoError(t, tx.InsertVolunteer(ctx, v))
		require.NoError(t, tx.InsertParticipation(ctx, &db.Participation{UserID: userID, VolunteerID: v.ID, Status: model.ThoughtDraft}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = store.InTx(ctx, func(ctx context.Context, tx db.Tx) error {
		rows, total, err := tx.ListVolunteers(ctx, db.VolunteerFilter{})
		require.NoError(t, err)
		assert.Empty(t, rows)
		assert.Equal(t, 0, total)

		_, err = tx.GetParticipation(ctx, 1, userID)
		assert.ErrorIs(t, err, db.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestInTx_CommitsOnSuccess(t *testing.T) {
	store := New()
	classID := store.AddClass("Class 1")
	userID := store.AddUser("alice", classID, 0)
	ctx := context.Background()

	var volunteerID int64
	require.NoError(t, store.InTx(ctx, func(ctx context.Context, tx db.Tx) error {
		v := &db.Volunteer{Name: "Cleanup", Status: model.VolStatusAccepted, HolderID: userID, Type: model.VolTypeInside}
		if err := tx.InsertVolunteer(ctx, v); err != nil {
			return err
		}
		volunteerID = v.ID
		return nil
	}))

	require.NoError(t, store.InTx(ctx, func(ctx context.Context, tx db.Tx) error {
		v, err := tx.GetVolunteer(ctx, volunteerID)
		require.NoError(t, err)
		assert.Equal(t, "Cleanup", v.Name)
		return nil
	}))
}

func TestInsertParticipation_Conflict(t *testing.T) {
	store := New()
	ctx := context.Background()

	err := store.InTx(ctx, func(ctx context.Context, tx db.Tx) error {
		p := &db.Participation{UserID: 1, VolunteerID: 1, Status: model.ThoughtDraft}
		require.NoError(t, tx.InsertParticipation(ctx, p))
		return tx.InsertParticipation(ctx, p)
	})
	assert.ErrorIs(t, err, db.ErrConflict)
}

func TestPictures_ClaimAndDedup(t *testing.T) {
	store := New()
	ctx := context.Background()

	require.NoError(t, store.InTx(ctx, func(ctx context.Context, tx db.Tx) error {
		pic := db.Picture{VolunteerID: 1, UserID: 2, Filename: "abc.png"}
		inserted, err := tx.InsertPicture(ctx, pic)
		require.NoError(t, err)
		assert.True(t, inserted)

		inserted, err = tx.InsertPicture(ctx, pic)
		require.NoError(t, err)
		assert.False(t, inserted)

		_, err = tx.InsertPicture(ctx, db.Picture{VolunteerID: 1, UserID: 3, Filename: "abc.png"})
		require.NoError(t, err)

		names, err := tx.ListPictureFilenames(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"abc.png"}, names)

		first, err := tx.ClaimPictureFile(ctx, "abc.png")
		require.NoError(t, err)
		assert.True(t, first)
		first, err = tx.ClaimPictureFile(ctx, "abc.png")
		require.NoError(t, err)
		assert.False(t, first)
		return nil
	}))
}

func TestFindClassSecretary_LowestID(t *testing.T) {
	store := New()
	classID := store.AddClass("Class 1")
	store.AddUser("plain", classID, 0)
	first := store.AddUser("secretary", classID, model.PermissionClass)
	store.AddUser("deputy", classID, model.PermissionClass|model.PermissionAuditor)
	ctx := context.Background()

	require.NoError(t, store.InTx(ctx, func(ctx context.Context, tx db.Tx) error {
		u, err := tx.FindClassSecretary(ctx, classID)
		require.NoError(t, err)
		assert.Equal(t, first, u.ID)

		_, err = tx.FindClassSecretary(ctx, classID+1)
		assert.ErrorIs(t, err, db.ErrNotFound)
		return nil
	}))
}

func TestInTx_CancelledContext(t *testing.T) {
	store := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := store.InTx(ctx, func(ctx context.Context, tx db.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
