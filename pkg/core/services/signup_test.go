package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zvmsbackend/zvms3/pkg/core/apperr"
	"github.com/zvmsbackend/zvms3/pkg/core/model"
	"github.com/zvmsbackend/zvms3/pkg/db"
)

func TestSignupVolunteer_QuotaAndAccept(t *testing.T) {
	f := newFixture(t)
	id := f.acceptedInside(t, 1)

	ok, err := CanSignup(f.ctx, f.store, f.logger, f.student, id)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, SignupVolunteer(f.ctx, f.store, f.notifier, f.logger, f.student, id))
	assert.Equal(t, model.ThoughtWaitingForSignupAudit, f.participation(t, id, f.student.UserID).Status)

	err = SignupVolunteer(f.ctx, f.store, f.notifier, f.logger, f.student, id)
	assert.ErrorIs(t, err, &apperr.Error{Code: apperr.CodeCantSignupForVolunteer}, "second signup")

	err = SignupVolunteer(f.ctx, f.store, f.notifier, f.logger, f.student2, id)
	assert.ErrorIs(t, err, &apperr.Error{Code: apperr.CodeCantSignupForVolunteer}, "quota of one is used")
	assert.Nil(t, f.participation(t, id, f.student2.UserID))

	ok, err = CanSignup(f.ctx, f.store, f.logger, f.student2, id)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, AcceptSignup(f.ctx, f.store, f.notifier, f.logger, f.secretary, id, f.student.UserID))
	assert.Equal(t, model.ThoughtDraft, f.participation(t, id, f.student.UserID).Status)
	assert.Len(t, f.notifier.to(f.student.UserID, false), 1)

	err = AcceptSignup(f.ctx, f.store, f.notifier, f.logger, f.secretary, id, f.student.UserID)
	assert.ErrorIs(t, err, &apperr.Error{Code: apperr.CodeSignupNotWaiting})
}

func TestSignupVolunteer_PrivilegedSkipsReview(t *testing.T) {
	f := newFixture(t)
	id := f.acceptedInside(t, 2)

	require.NoError(t, SignupVolunteer(f.ctx, f.store, f.notifier, f.logger, f.secretary, id))
	assert.Equal(t, model.ThoughtDraft, f.participation(t, id, f.secretary.UserID).Status)
}

func TestSignupVolunteer_Blocked(t *testing.T) {
	yesterday := fixedNow.AddDate(0, 0, -1)
	tomorrow := fixedNow.AddDate(0, 0, 1)

	tests := []struct {
		name  string
		setup func(f *fixture) int64
	}{
		{"class not invited", func(f *fixture) int64 {
			return f.insertVolunteer(t, db.Volunteer{Name: "Lab", Status: model.VolStatusAccepted, HolderID: f.manager.UserID,
				Type: model.VolTypeInside, Time: &tomorrow}, db.ClassQuota{ClassID: f.classB, Max: 1})
		}},
		{"unaudited", func(f *fixture) int64 {
			return f.insertVolunteer(t, db.Volunteer{Name: "Lab", Status: model.VolStatusUnaudited, HolderID: f.student2.UserID,
				Type: model.VolTypeInside, Time: &tomorrow}, db.ClassQuota{ClassID: f.classA, Max: 1})
		}},
		{"in the past", func(f *fixture) int64 {
			return f.insertVolunteer(t, db.Volunteer{Name: "Lab", Status: model.VolStatusAccepted, HolderID: f.secretary.UserID,
				Type: model.VolTypeInside, Time: &yesterday}, db.ClassQuota{ClassID: f.classA, Max: 1})
		}},
		{"appointed", func(f *fixture) int64 {
			return f.insertVolunteer(t, db.Volunteer{Name: "Lab", Status: model.VolStatusAccepted, HolderID: f.secretary.UserID,
				Type: model.VolTypeInside, Time: &tomorrow})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			id := tt.setup(f)

			err := SignupVolunteer(f.ctx, f.store, f.notifier, f.logger, f.student, id)
			assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
			assert.ErrorIs(t, err, &apperr.Error{Code: apperr.CodeCantSignupForVolunteer})
			assert.Nil(t, f.participation(t, id, f.student.UserID))
		})
	}
}

func TestSignupVolunteer_UnknownVolunteer(t *testing.T) {
	f := newFixture(t)
	err := SignupVolunteer(f.ctx, f.store, f.notifier, f.logger, f.student, 42)
	assert.ErrorIs(t, err, &apperr.Error{Code: apperr.CodeVolunteerNotExists})
}

func TestRollbackSignup_OthersNeedClassRole(t *testing.T) {
	f := newFixture(t)
	id := f.acceptedInside(t, 2)
	f.insertParticipation(t, db.Participation{UserID: f.student.UserID, VolunteerID: id, Status: model.ThoughtDraft, Thought: "kept"})

	err := RollbackSignup(f.ctx, f.store, f.logger, f.student2, id, f.student.UserID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotAuthorized, apperr.KindOf(err))
	assert.ErrorIs(t, err, &apperr.Error{Code: apperr.CodeCantRollbackOthersSignup})

	p := f.participation(t, id, f.student.UserID)
	require.NotNil(t, p)
	assert.Equal(t, model.ThoughtDraft, p.Status)
	assert.Equal(t, "kept", p.Thought)

	require.NoError(t, RollbackSignup(f.ctx, f.store, f.logger, f.secretary, id, f.student.UserID))
	assert.Nil(t, f.participation(t, id, f.student.UserID))
}

func TestRollbackSignup_SelfRemovesPictures(t *testing.T) {
	f := newFixture(t)
	id := f.acceptedInside(t, 2)
	f.insertParticipation(t, db.Participation{UserID: f.student.UserID, VolunteerID: id, Status: model.ThoughtDraft})
	require.NoError(t, EditThought(f.ctx, f.store, f.pictures, f.logger, f.student, id, f.student.UserID,
		ThoughtEdit{Uploads: []Upload{{Name: "a.png", Data: pngBytes(1)}}}))
	require.Len(t, f.userPictures(t, id, f.student.UserID), 1)

	require.NoError(t, RollbackSignup(f.ctx, f.store, f.logger, f.student, id, f.student.UserID))
	assert.Nil(t, f.participation(t, id, f.student.UserID))
	assert.Empty(t, f.userPictures(t, id, f.student.UserID))

	err := RollbackSignup(f.ctx, f.store, f.logger, f.student, id, f.student.UserID)
	assert.ErrorIs(t, err, &apperr.Error{Code: apperr.CodeSignupNotExists})
}

func TestAcceptSignup_Errors(t *testing.T) {
	f := newFixture(t)
	id := f.acceptedInside(t, 2)

	err := AcceptSignup(f.ctx, f.store, f.notifier, f.logger, f.manager, id, f.student.UserID)
	assert.Equal(t, apperr.KindNotAuthorized, apperr.KindOf(err))

	err = AcceptSignup(f.ctx, f.store, f.notifier, f.logger, f.secretary, id, f.student.UserID)
	assert.ErrorIs(t, err, &apperr.Error{Code: apperr.CodeSignupNotExists})
}
