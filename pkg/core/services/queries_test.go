package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zvmsbackend/zvms3/pkg/core/apperr"
	"github.com/zvmsbackend/zvms3/pkg/core/model"
	"github.com/zvmsbackend/zvms3/pkg/db"
)

func summaryIDs(items []db.VolunteerSummary) []int64 {
	ids := make([]int64, len(items))
	for i, s := range items {
		ids[i] = s.ID
	}
	return ids
}

func TestListVolunteers_Paging(t *testing.T) {
	f := newFixture(t)
	var ids []int64
	for i := 0; i < 5; i++ {
		ids = append(ids, f.acceptedInside(t, 1))
	}

	page, err := ListVolunteers(f.ctx, f.store, f.logger, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, []int64{ids[2], ids[1]}, summaryIDs(page.Items))

	page, err = ListVolunteers(f.ctx, f.store, f.logger, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{ids[0]}, summaryIDs(page.Items))
}

func TestSearchVolunteers(t *testing.T) {
	f := newFixture(t)
	f.acceptedInside(t, 1)
	park := f.insertVolunteer(t, db.Volunteer{Name: "Park cleanup", Status: model.VolStatusAccepted, HolderID: f.manager.UserID, Type: model.VolTypeOutside})

	page, err := SearchVolunteers(f.ctx, f.store, f.logger, "Park", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{park}, summaryIDs(page.Items))
	assert.Equal(t, "manager", page.Items[0].HolderName)

	_, err = SearchVolunteers(f.ctx, f.store, f.logger, "", 1, 10)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestMyVolunteers(t *testing.T) {
	f := newFixture(t)
	invited := f.acceptedInside(t, 2)
	heldByStudent2 := f.insertVolunteer(t, db.Volunteer{Name: "Own", Status: model.VolStatusUnaudited, HolderID: f.student2.UserID, Type: model.VolTypeInside})
	joined := f.insertVolunteer(t, db.Volunteer{Name: "Joined", Status: model.VolStatusAccepted, HolderID: f.manager.UserID, Type: model.VolTypeOutside})
	f.insertParticipation(t, db.Participation{UserID: f.student.UserID, VolunteerID: joined, Status: model.ThoughtDraft})
	unrelated := f.insertVolunteer(t, db.Volunteer{Name: "Other", Status: model.VolStatusAccepted, HolderID: f.manager.UserID, Type: model.VolTypeOutside})

	page, err := MyVolunteers(f.ctx, f.store, f.logger, f.student, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{joined, invited}, summaryIDs(page.Items))

	page, err = MyVolunteers(f.ctx, f.store, f.logger, f.secretary, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{heldByStudent2, invited}, summaryIDs(page.Items), "class members see classmates' volunteers")
	assert.NotContains(t, summaryIDs(page.Items), unrelated)
}

func TestVolunteerInfo_Visibility(t *testing.T) {
	f := newFixture(t)
	id := f.acceptedInside(t, 3)
	f.insertParticipation(t, db.Participation{UserID: f.student.UserID, VolunteerID: id, Status: model.ThoughtDraft, Thought: "secret"})
	f.insertParticipation(t, db.Participation{UserID: f.student2.UserID, VolunteerID: id, Status: model.ThoughtWaitingForSignupAudit})

	detail, err := VolunteerInfo(f.ctx, f.store, f.logger, f.secretary, id)
	require.NoError(t, err)
	assert.Equal(t, model.VolKindInside, detail.Kind)
	assert.Equal(t, "secretary", detail.HolderName)
	assert.True(t, detail.CanSignup)
	require.Len(t, detail.Participants, 1)
	assert.True(t, detail.Participants[0].ThoughtVisible)
	require.Len(t, detail.Signups, 1)
	assert.Equal(t, f.student2.UserID, detail.Signups[0].UserID)

	detail, err = VolunteerInfo(f.ctx, f.store, f.logger, f.student2, id)
	require.NoError(t, err)
	assert.False(t, detail.CanSignup, "already signed up")
	assert.Empty(t, detail.Signups)
	require.Len(t, detail.Participants, 1)
	assert.False(t, detail.Participants[0].ThoughtVisible)

	_, err = VolunteerInfo(f.ctx, f.store, f.logger, f.student, 999)
	assert.ErrorIs(t, err, &apperr.Error{Code: apperr.CodeVolunteerNotExists})
}

func TestThoughtInfo_Visibility(t *testing.T) {
	f := newFixture(t)
	id := walkToFinalAudit(t, f, model.VolTypeInside)
	outsider := f.addUser("outsider", f.classB, model.PermissionClass)

	for _, actor := range []model.Actor{f.student, f.secretary, f.manager, f.auditor} {
		view, err := ThoughtInfo(f.ctx, f.store, f.logger, actor, id, f.student.UserID)
		require.NoError(t, err)
		assert.Equal(t, "helped", view.Thought)
		assert.Len(t, view.Pictures, 1)
	}

	for _, actor := range []model.Actor{f.student2, outsider} {
		_, err := ThoughtInfo(f.ctx, f.store, f.logger, actor, id, f.student.UserID)
		assert.Equal(t, apperr.KindNotAuthorized, apperr.KindOf(err))
	}

	_, err := ThoughtInfo(f.ctx, f.store, f.logger, f.manager, id, f.student2.UserID)
	assert.ErrorIs(t, err, &apperr.Error{Code: apperr.CodeThoughtNotExists})
}

func TestThoughtLists(t *testing.T) {
	f := newFixture(t)
	inside := walkToFinalAudit(t, f, model.VolTypeInside)
	outside := walkToFinalAudit(t, f, model.VolTypeOutside)
	waiting := f.acceptedInside(t, 2)
	f.insertParticipation(t, db.Participation{UserID: f.student.UserID, VolunteerID: waiting, Status: model.ThoughtWaitingForSignupAudit})

	page, err := UnauditedThoughts(f.ctx, f.store, f.logger, f.auditor, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, inside, page.Items[0].VolunteerID)

	page, err = UnauditedThoughts(f.ctx, f.store, f.logger, f.manager, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, outside, page.Items[0].VolunteerID)

	_, err = UnauditedThoughts(f.ctx, f.store, f.logger, f.secretary, 1, 10)
	assert.Equal(t, apperr.KindNotAuthorized, apperr.KindOf(err))

	page, err = MyThoughts(f.ctx, f.store, f.logger, f.student, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total, "signups waiting for review are not thoughts yet")

	page, err = ListThoughts(f.ctx, f.store, f.logger, f.auditor, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	_, err = ListThoughts(f.ctx, f.store, f.logger, f.student, 1, 10)
	assert.Equal(t, apperr.KindNotAuthorized, apperr.KindOf(err))
}

func TestUserScores_UnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := UserScores(f.ctx, f.store, f.logger, 404)
	assert.ErrorIs(t, err, &apperr.Error{Code: apperr.CodeUserNotExists})
}

func TestFailedOperationsSendNothing(t *testing.T) {
	f := newFixture(t)
	id := f.acceptedInside(t, 1)
	require.NoError(t, SignupVolunteer(f.ctx, f.store, f.notifier, f.logger, f.student, id))

	assert.Error(t, SignupVolunteer(f.ctx, f.store, f.notifier, f.logger, f.student2, id))
	assert.Error(t, AcceptSignup(f.ctx, f.store, f.notifier, f.logger, f.secretary, id, f.student2.UserID))
	assert.Error(t, FirstAudit(f.ctx, f.store, f.notifier, f.logger, f.secretary, id, f.student.UserID))
	_, err := CreateAppointedVolunteer(f.ctx, f.store, f.notifier, f.logger, f.student, AppointedVolunteerRequest{
		Name: "Help", Type: model.VolTypeInside, Participants: []string{"student", "nobody"},
	})
	assert.Error(t, err)

	assert.Zero(t, f.notifier.count())
}

// lockCountingStore counts the row-locking reads made through its transactions
type lockCountingStore struct {
	db.Store
	locks int
}

type lockCountingTx struct {
	db.Tx
	store *lockCountingStore
}

func (s *lockCountingStore) InTx(ctx context.Context, fn func(ctx context.Context, tx db.Tx) error) error {
	return s.Store.InTx(ctx, func(ctx context.Context, tx db.Tx) error {
		return fn(ctx, &lockCountingTx{Tx: tx, store: s})
	})
}

func (t *lockCountingTx) GetParticipation(ctx context.Context, volunteerID, userID int64) (*db.Participation, error) {
	t.store.locks++
	return t.Tx.GetParticipation(ctx, volunteerID, userID)
}

func (t *lockCountingTx) LockClassQuota(ctx context.Context, volunteerID, classID int64) (*db.ClassQuota, error) {
	t.store.locks++
	return t.Tx.LockClassQuota(ctx, volunteerID, classID)
}

func (t *lockCountingTx) LockVolunteer(ctx context.Context, volunteerID int64) (*db.Volunteer, error) {
	t.store.locks++
	return t.Tx.LockVolunteer(ctx, volunteerID)
}

func TestReadOnlyViewsTakeNoRowLocks(t *testing.T) {
	f := newFixture(t)
	id := f.acceptedInside(t, 2)
	f.insertParticipation(t, db.Participation{UserID: f.student2.UserID, VolunteerID: id, Status: model.ThoughtDraft})
	store := &lockCountingStore{Store: f.store}

	detail, err := VolunteerInfo(f.ctx, store, f.logger, f.student, id)
	require.NoError(t, err)
	assert.True(t, detail.CanSignup)

	ok, err := CanSignup(f.ctx, store, f.logger, f.student, id)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CanSignup(f.ctx, store, f.logger, f.student2, id)
	require.NoError(t, err)
	assert.False(t, ok, "already signed up")

	draft, err := PrepareEditThought(f.ctx, store, f.logger, f.student2, id)
	require.NoError(t, err)
	assert.Equal(t, model.ThoughtDraft, draft.Status)

	_, err = PrepareEditThought(f.ctx, store, f.logger, f.student, id)
	assert.ErrorIs(t, err, &apperr.Error{Code: apperr.CodeThoughtNotExists})
	assert.Zero(t, store.locks)

	require.NoError(t, SignupVolunteer(f.ctx, store, f.notifier, f.logger, f.student, id))
	assert.Equal(t, 2, store.locks, "signup locks the participation and the quota row")
}
