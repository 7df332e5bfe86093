package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zvmsbackend/zvms3/pkg/core/model"
	"github.com/zvmsbackend/zvms3/pkg/db"
	"github.com/zvmsbackend/zvms3/pkg/db/memdb"
)

var fixedNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

type recordingNotifier struct {
	mu      sync.Mutex
	notices []model.Notice
}

func (r *recordingNotifier) Notify(n model.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recordingNotifier) to(target int64, broadcast bool) []model.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Notice
	for _, n := range r.notices {
		if n.TargetID == target && n.Broadcast == broadcast {
			out = append(out, n)
		}
	}
	return out
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notices)
}

type memPictures struct {
	files map[string][]byte
	saves int
}

func newMemPictures() *memPictures {
	return &memPictures{files: make(map[string][]byte)}
}

func (m *memPictures) Exists(filename string) (bool, error) {
	_, ok := m.files[filename]
	return ok, nil
}

func (m *memPictures) Save(filename string, data []byte) error {
	m.saves++
	m.files[filename] = data
	return nil
}

type fixture struct {
	ctx      context.Context
	store    *memdb.DB
	notifier *recordingNotifier
	pictures *memPictures
	logger   *zap.Logger

	classA int64
	classB int64

	secretary model.Actor // CLASS, class A
	student   model.Actor // class A
	student2  model.Actor // class A
	manager   model.Actor // MANAGER, class B
	auditor   model.Actor // AUDITOR, class B
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	now = func() time.Time { return fixedNow }
	t.Cleanup(func() { now = time.Now })

	f := &fixture{
		ctx:      context.Background(),
		store:    memdb.New(),
		notifier: &recordingNotifier{},
		pictures: newMemPictures(),
		logger:   zap.NewNop(),
	}
	f.classA = f.store.AddClass("Class A")
	f.classB = f.store.AddClass("Class B")
	f.secretary = f.addUser("secretary", f.classA, model.PermissionClass)
	f.student = f.addUser("student", f.classA, 0)
	f.student2 = f.addUser("student2", f.classA, 0)
	f.manager = f.addUser("manager", f.classB, model.PermissionManager)
	f.auditor = f.addUser("auditor", f.classB, model.PermissionAuditor)
	return f
}

func (f *fixture) addUser(name string, classID int64, perm model.Permission) model.Actor {
	id := f.store.AddUser(name, classID, perm)
	return model.Actor{UserID: id, Permission: perm, ClassID: classID}
}

func (f *fixture) insertVolunteer(t *testing.T, v db.Volunteer, quotas ...db.ClassQuota) int64 {
	t.Helper()
	require.NoError(t, f.store.InTx(f.ctx, func(ctx context.Context, tx db.Tx) error {
		if err := tx.InsertVolunteer(ctx, &v); err != nil {
			return err
		}
		for i := range quotas {
			quotas[i].VolunteerID = v.ID
		}
		return tx.InsertClassQuotas(ctx, quotas)
	}))
	return v.ID
}

func (f *fixture) insertParticipation(t *testing.T, p db.Participation) {
	t.Helper()
	require.NoError(t, f.store.InTx(f.ctx, func(ctx context.Context, tx db.Tx) error {
		return tx.InsertParticipation(ctx, &p)
	}))
}

// participation returns nil when the row does not exist
func (f *fixture) participation(t *testing.T, volunteerID, userID int64) *db.Participation {
	t.Helper()
	var p *db.Participation
	require.NoError(t, f.store.InTx(f.ctx, func(ctx context.Context, tx db.Tx) error {
		var err error
		p, err = tx.GetParticipation(ctx, volunteerID, userID)
		if errors.Is(err, db.ErrNotFound) {
			return nil
		}
		return err
	}))
	return p
}

func (f *fixture) volunteer(t *testing.T, volunteerID int64) *db.Volunteer {
	t.Helper()
	var v *db.Volunteer
	require.NoError(t, f.store.InTx(f.ctx, func(ctx context.Context, tx db.Tx) error {
		var err error
		v, err = tx.GetVolunteer(ctx, volunteerID)
		if errors.Is(err, db.ErrNotFound) {
			v = nil
			return nil
		}
		return err
	}))
	return v
}

func (f *fixture) quotas(t *testing.T, volunteerID int64) []db.ClassQuota {
	t.Helper()
	var quotas []db.ClassQuota
	require.NoError(t, f.store.InTx(f.ctx, func(ctx context.Context, tx db.Tx) error {
		var err error
		quotas, err = tx.ListClassQuotas(ctx, volunteerID)
		return err
	}))
	return quotas
}

func (f *fixture) userPictures(t *testing.T, volunteerID, userID int64) []string {
	t.Helper()
	var names []string
	require.NoError(t, f.store.InTx(f.ctx, func(ctx context.Context, tx db.Tx) error {
		var err error
		names, err = tx.ListUserPictures(ctx, volunteerID, userID)
		return err
	}))
	return names
}

// acceptedInside inserts an accepted class-quota volunteer for class A scheduled tomorrow
func (f *fixture) acceptedInside(t *testing.T, max int) int64 {
	t.Helper()
	tomorrow := fixedNow.AddDate(0, 0, 1)
	return f.insertVolunteer(t, db.Volunteer{
		Name:     "Library",
		Status:   model.VolStatusAccepted,
		HolderID: f.secretary.UserID,
		Type:     model.VolTypeInside,
		Reward:   10,
		Time:     &tomorrow,
	}, db.ClassQuota{ClassID: f.classA, Max: max})
}

// pngBytes returns a distinct payload that sniffs as image/png
func pngBytes(seed byte) []byte {
	return append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), seed, seed, seed)
}
