package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zvmsbackend/zvms3/pkg/core/apperr"
	"github.com/zvmsbackend/zvms3/pkg/core/model"
	"github.com/zvmsbackend/zvms3/pkg/db"
)

func participantIDs(ps []db.Participant) []int64 {
	ids := make([]int64, len(ps))
	for i, p := range ps {
		ids[i] = p.UserID
	}
	return ids
}

func TestModifyClassVolunteer_ReplacesQuotas(t *testing.T) {
	f := newFixture(t)
	id := f.acceptedInside(t, 1)
	f.addUser("b-member", f.classB, 0)

	req := ClassVolunteerRequest{
		Name:   "Library v2",
		Time:   fixedNow.AddDate(0, 0, 3),
		Reward: 20,
		Quotas: []QuotaRequest{{ClassID: f.classB, Max: 3}},
	}
	require.NoError(t, ModifyClassVolunteer(f.ctx, f.store, f.logger, f.secretary, id, req))

	v := f.volunteer(t, id)
	assert.Equal(t, "Library v2", v.Name)
	assert.Equal(t, 20, v.Reward)
	assert.Equal(t, []db.ClassQuota{{VolunteerID: id, ClassID: f.classB, Max: 3}}, f.quotas(t, id))

	req.Quotas = []QuotaRequest{{ClassID: f.classB, Max: 10}}
	err := ModifyClassVolunteer(f.ctx, f.store, f.logger, f.secretary, id, req)
	assert.Equal(t, apperr.KindCapacityExceeded, apperr.KindOf(err))
	assert.Equal(t, 3, f.quotas(t, id)[0].Max, "failed modification leaves quotas alone")
}

func TestModifyVolunteer_Guards(t *testing.T) {
	f := newFixture(t)
	class := f.acceptedInside(t, 1)
	rejected := f.insertVolunteer(t, db.Volunteer{Name: "Old", Status: model.VolStatusRejected, HolderID: f.student.UserID, Type: model.VolTypeInside})
	appointedReq := AppointedVolunteerRequest{Name: "Help", Type: model.VolTypeInside, Participants: []string{"student"}}

	err := ModifyAppointedVolunteer(f.ctx, f.store, f.logger, f.secretary, class, appointedReq)
	assert.ErrorIs(t, err, &apperr.Error{Code: apperr.CodeVolunteerKindMismatch})

	err = ModifyAppointedVolunteer(f.ctx, f.store, f.logger, f.student, rejected, appointedReq)
	assert.ErrorIs(t, err, &apperr.Error{Code: apperr.CodeCantModifyRejected})

	err = ModifyAppointedVolunteer(f.ctx, f.store, f.logger, f.student2, class, appointedReq)
	assert.Equal(t, apperr.KindNotAuthorized, apperr.KindOf(err))
	assert.ErrorIs(t, err, &apperr.Error{Code: apperr.CodeCantModifyOthersVolunteer})

	_, err = PrepareModifyVolunteer(f.ctx, f.store, f.logger, f.student2, class)
	assert.ErrorIs(t, err, &apperr.Error{Code: apperr.CodeCantModifyOthersVolunteer})

	// managers may modify what others hold
	draft, err := PrepareModifyVolunteer(f.ctx, f.store, f.logger, f.manager, class)
	require.NoError(t, err)
	assert.Equal(t, model.VolKindInside, draft.Kind)
	assert.Equal(t, "Library", draft.Name)
	assert.Len(t, draft.Quotas, 1)
}

func TestModifyAppointedVolunteer_SetDifference(t *testing.T) {
	f := newFixture(t)
	id := f.insertVolunteer(t, db.Volunteer{Name: "Help", Status: model.VolStatusAccepted, HolderID: f.secretary.UserID, Type: model.VolTypeInside, Reward: 5})
	f.insertParticipation(t, db.Participation{UserID: f.student.UserID, VolunteerID: id, Status: model.ThoughtWaitingForFirstAudit, Thought: "kept"})
	f.insertParticipation(t, db.Participation{UserID: f.student2.UserID, VolunteerID: id, Status: model.ThoughtDraft})
	require.NoError(t, EditThought(f.ctx, f.store, f.pictures, f.logger, f.student2, id, f.student2.UserID,
		ThoughtEdit{Uploads: []Upload{{Name: "a.png", Data: pngBytes(9)}}}))

	req := AppointedVolunteerRequest{
		Name:         "Help more",
		Type:         model.VolTypeOutside,
		Reward:       15,
		Participants: []string{"student", "auditor"},
	}
	require.NoError(t, ModifyAppointedVolunteer(f.ctx, f.store, f.logger, f.secretary, id, req))

	kept := f.participation(t, id, f.student.UserID)
	require.NotNil(t, kept)
	assert.Equal(t, model.ThoughtWaitingForFirstAudit, kept.Status)
	assert.Equal(t, "kept", kept.Thought)

	assert.Nil(t, f.participation(t, id, f.student2.UserID))
	assert.Empty(t, f.userPictures(t, id, f.student2.UserID))

	added := f.participation(t, id, f.auditor.UserID)
	require.NotNil(t, added)
	assert.Equal(t, model.ThoughtDraft, added.Status)

	v := f.volunteer(t, id)
	assert.Equal(t, "Help more", v.Name)
	assert.Equal(t, model.VolTypeOutside, v.Type)
	assert.Equal(t, 15, v.Reward)
}

func TestModifyAppointedVolunteer_UnauditedAddsWaiting(t *testing.T) {
	f := newFixture(t)
	id := f.insertVolunteer(t, db.Volunteer{Name: "Help", Status: model.VolStatusUnaudited, HolderID: f.student.UserID, Type: model.VolTypeInside})
	f.insertParticipation(t, db.Participation{UserID: f.student.UserID, VolunteerID: id, Status: model.ThoughtWaitingForSignupAudit})

	req := AppointedVolunteerRequest{Name: "Help", Type: model.VolTypeInside, Participants: []string{"student", "student2"}}
	require.NoError(t, ModifyAppointedVolunteer(f.ctx, f.store, f.logger, f.student, id, req))
	assert.Equal(t, model.ThoughtWaitingForSignupAudit, f.participation(t, id, f.student2.UserID).Status)
}

func TestModifySpecialVolunteer_ReplacesGrants(t *testing.T) {
	f := newFixture(t)
	id, err := CreateSpecialVolunteer(f.ctx, f.store, f.notifier, f.logger, f.manager, SpecialVolunteerRequest{
		Name: "Marathon", Type: model.VolTypeLarge, Reward: 60, Participants: []string{"student", "student2"},
	})
	require.NoError(t, err)

	err = ModifySpecialVolunteerEx(f.ctx, f.store, f.notifier, f.logger, f.manager, id, SpecialVolunteerExRequest{
		Name: "Marathon", Type: model.VolTypeOutside,
		Grants: []SpecialGrant{{Participant: "student2", Reward: 45}, {Participant: "auditor", Reward: 15}},
	})
	require.NoError(t, err)

	assert.Nil(t, f.participation(t, id, f.student.UserID))
	assert.Equal(t, 45, f.participation(t, id, f.student2.UserID).Reward)
	assert.Equal(t, model.ThoughtAccepted, f.participation(t, id, f.auditor.UserID).Status)
	assert.Equal(t, 0, f.volunteer(t, id).Reward)

	scores, err := UserScores(f.ctx, f.store, f.logger, f.student2.UserID)
	require.NoError(t, err)
	assert.Equal(t, Scores{Outside: 45}, *scores)

	err = ModifySpecialVolunteer(f.ctx, f.store, f.notifier, f.logger, f.secretary, id, SpecialVolunteerRequest{
		Name: "Marathon", Type: model.VolTypeOutside, Reward: 1, Participants: []string{"student"},
	})
	assert.Equal(t, apperr.KindNotAuthorized, apperr.KindOf(err))

	class := f.acceptedInside(t, 1)
	err = ModifySpecialVolunteer(f.ctx, f.store, f.notifier, f.logger, f.manager, class, SpecialVolunteerRequest{
		Name: "Marathon", Type: model.VolTypeOutside, Reward: 1, Participants: []string{"student"},
	})
	assert.ErrorIs(t, err, &apperr.Error{Code: apperr.CodeVolunteerKindMismatch})
}

func TestPrepareModifyVolunteer_ListsParticipants(t *testing.T) {
	f := newFixture(t)
	id := f.insertVolunteer(t, db.Volunteer{Name: "Help", Status: model.VolStatusAccepted, HolderID: f.secretary.UserID, Type: model.VolTypeInside})
	f.insertParticipation(t, db.Participation{UserID: f.student2.UserID, VolunteerID: id, Status: model.ThoughtDraft})
	f.insertParticipation(t, db.Participation{UserID: f.student.UserID, VolunteerID: id, Status: model.ThoughtDraft})

	draft, err := PrepareModifyVolunteer(f.ctx, f.store, f.logger, f.secretary, id)
	require.NoError(t, err)
	assert.Equal(t, model.VolKindAppointed, draft.Kind)
	assert.Equal(t, []int64{f.student.UserID, f.student2.UserID}, participantIDs(draft.Participants))
	assert.Empty(t, draft.Quotas)
}
