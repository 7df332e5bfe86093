// Package memdb is an in-memory db.Store.
//
// Transactions are serialised by a single mutex and a failed unit of work is undone
// by restoring a snapshot taken when it started, so every transaction behaves as if
// it ran at serializable isolation.
package memdb

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zvmsbackend/zvms3/pkg/core/model"
	"github.com/zvmsbackend/zvms3/pkg/db"
)

type pairKey struct {
	volunteerID int64
	otherID     int64
}

type state struct {
	users          map[int64]db.User
	classes        map[int64]db.Class
	volunteers     map[int64]db.Volunteer
	quotas         map[pairKey]db.ClassQuota    // otherID is the class
	participations map[pairKey]db.Participation // otherID is the user
	pictures       map[db.Picture]struct{}
	pictureFiles   map[string]struct{}
	notices        []db.Notice

	nextUserID      int64
	nextClassID     int64
	nextVolunteerID int64
	nextNoticeID    int64
}

func newState() *state {
	return &state{
		users:          make(map[int64]db.User),
		classes:        make(map[int64]db.Class),
		volunteers:     make(map[int64]db.Volunteer),
		quotas:         make(map[pairKey]db.ClassQuota),
		participations: make(map[pairKey]db.Participation),
		pictures:       make(map[db.Picture]struct{}),
		pictureFiles:   make(map[string]struct{}),
	}
}

func (s *state) clone() *state {
	c := *s
	c.users = make(map[int64]db.User, len(s.users))
	for k, v := range s.users {
		c.users[k] = v
	}
	c.classes = make(map[int64]db.Class, len(s.classes))
	for k, v := range s.classes {
		c.classes[k] = v
	}
	c.volunteers = make(map[int64]db.Volunteer, len(s.volunteers))
	for k, v := range s.volunteers {
		c.volunteers[k] = v
	}
	c.quotas = make(map[pairKey]db.ClassQuota, len(s.quotas))
	for k, v := range s.quotas {
		c.quotas[k] = v
	}
	c.participations = make(map[pairKey]db.Participation, len(s.participations))
	for k, v := range s.participations {
		c.participations[k] = v
	}
	c.pictures = make(map[db.Picture]struct{}, len(s.pictures))
	for k := range s.pictures {
		c.pictures[k] = struct{}{}
	}
	c.pictureFiles = make(map[string]struct{}, len(s.pictureFiles))
	for k := range s.pictureFiles {
		c.pictureFiles[k] = struct{}{}
	}
	c.notices = append([]db.Notice(nil), s.notices...)
	return &c
}

// DB is an in-memory store
type DB struct {
	mu sync.Mutex
	st *state
}

// New creates an empty store
func New() *DB {
	return &DB{st: newState()}
}

// InTx runs fn with exclusive access, restoring the previous state if fn fails
func (d *DB) InTx(ctx context.Context, fn func(ctx context.Context, tx db.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	snapshot := d.st.clone()
	if err := fn(ctx, &Tx{st: d.st}); err != nil {
		d.st = snapshot
		return err
	}
	return nil
}

// AddClass inserts a class and returns its id
func (d *DB) AddClass(name string) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.st.nextClassID++
	id := d.st.nextClassID
	d.st.classes[id] = db.Class{ID: id, Name: name}
	return id
}

// AddUser inserts a user and returns its id
func (d *DB) AddUser(name string, classID int64, perm model.Permission) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.st.nextUserID++
	id := d.st.nextUserID
	d.st.users[id] = db.User{ID: id, Name: name, Permission: perm, ClassID: classID}
	return id
}

// Notices returns every stored notice in insertion order
func (d *DB) Notices() []db.Notice {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]db.Notice(nil), d.st.notices...)
}

// Tx is the view of the store inside one unit of work
type Tx struct {
	st *state
}

var _ db.Tx = (*Tx)(nil)

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func page[T any](rows []T, limit, offset int) []T {
	if offset >= len(rows) {
		return []T{}
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

// Users and classes

func (t *Tx) GetUser(ctx context.Context, userID int64) (*db.User, error) {
	u, ok := t.st.users[userID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &u, nil
}

func (t *Tx) GetUserByName(ctx context.Context, username string) (*db.User, error) {
	for _, u := range t.st.users {
		if u.Name == username {
			found := u
			return &found, nil
		}
	}
	return nil, db.ErrNotFound
}

func (t *Tx) GetClass(ctx context.Context, classID int64) (*db.Class, error) {
	c, ok := t.st.classes[classID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &c, nil
}

func (t *Tx) CountClassMembers(ctx context.Context, classID int64) (int, error) {
	n := 0
	for _, u := range t.st.users {
		if u.ClassID == classID {
			n++
		}
	}
	return n, nil
}

func (t *Tx) FindClassSecretary(ctx context.Context, classID int64) (*db.User, error) {
	var found *db.User
	for _, u := range t.st.users {
		if u.ClassID != classID || u.Permission&model.PermissionClass == 0 {
			continue
		}
		if found == nil || u.ID < found.ID {
			c := u
			found = &c
		}
	}
	if found == nil {
		return nil, db.ErrNotFound
	}
	return found, nil
}

// Volunteers

func (t *Tx) InsertVolunteer(ctx context.Context, v *db.Volunteer) error {
	t.st.nextVolunteerID++
	v.ID = t.st.nextVolunteerID
	stored := *v
	stored.Time = copyTime(v.Time)
	t.st.volunteers[v.ID] = stored
	return nil
}

func (t *Tx) GetVolunteer(ctx context.Context, volunteerID int64) (*db.Volunteer, error) {
	v, ok := t.st.volunteers[volunteerID]
	if !ok {
		return nil, db.ErrNotFound
	}
	v.Time = copyTime(v.Time)
	return &v, nil
}

func (t *Tx) LockVolunteer(ctx context.Context, volunteerID int64) (*db.Volunteer, error) {
	return t.GetVolunteer(ctx, volunteerID)
}

func (t *Tx) UpdateVolunteer(ctx context.Context, v *db.Volunteer) error {
	existing, ok := t.st.volunteers[v.ID]
	if !ok {
		return db.ErrNotFound
	}
	existing.Name = v.Name
	existing.Description = v.Description
	existing.Type = v.Type
	existing.Reward = v.Reward
	existing.Time = copyTime(v.Time)
	t.st.volunteers[v.ID] = existing
	return nil
}

func (t *Tx) SetVolunteerStatus(ctx context.Context, volunteerID int64, status model.VolStatus) error {
	v, ok := t.st.volunteers[volunteerID]
	if !ok {
		return db.ErrNotFound
	}
	v.Status = status
	t.st.volunteers[volunteerID] = v
	return nil
}

func (t *Tx) DeleteVolunteer(ctx context.Context, volunteerID int64) error {
	if _, ok := t.st.volunteers[volunteerID]; !ok {
		return db.ErrNotFound
	}
	delete(t.st.volunteers, volunteerID)
	return nil
}

func (t *Tx) relatedTo(v db.Volunteer, f db.VolunteerFilter) bool {
	if v.HolderID == f.RelatedUserID {
		return true
	}
	if _, ok := t.st.participations[pairKey{v.ID, f.RelatedUserID}]; ok {
		return true
	}
	if _, ok := t.st.quotas[pairKey{v.ID, f.RelatedClassID}]; ok {
		return true
	}
	if f.IncludeClassmates {
		if holder, ok := t.st.users[v.HolderID]; ok && holder.ClassID == f.RelatedClassID {
			return true
		}
	}
	return false
}

func (t *Tx) ListVolunteers(ctx context.Context, f db.VolunteerFilter) ([]db.VolunteerSummary, int, error) {
	var rows []db.VolunteerSummary
	for _, v := range t.st.volunteers {
		if f.NameContains != "" && !strings.Contains(v.Name, f.NameContains) {
			continue
		}
		if f.RelatedUserID != 0 && !t.relatedTo(v, f) {
			continue
		}
		rows = append(rows, db.VolunteerSummary{
			ID:         v.ID,
			Name:       v.Name,
			Status:     v.Status,
			HolderID:   v.HolderID,
			HolderName: t.st.users[v.HolderID].Name,
			Type:       v.Type,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID > rows[j].ID })
	return page(rows, f.Limit, f.Offset), len(rows), nil
}

// Class quotas

func (t *Tx) ListClassQuotas(ctx context.Context, volunteerID int64) ([]db.ClassQuota, error) {
	var quotas []db.ClassQuota
	for k, q := range t.st.quotas {
		if k.volunteerID == volunteerID {
			quotas = append(quotas, q)
		}
	}
	sort.Slice(quotas, func(i, j int) bool { return quotas[i].ClassID < quotas[j].ClassID })
	return quotas, nil
}

func (t *Tx) InsertClassQuotas(ctx context.Context, quotas []db.ClassQuota) error {
	for _, q := range quotas {
		key := pairKey{q.VolunteerID, q.ClassID}
		if _, ok := t.st.quotas[key]; ok {
			return db.ErrConflict
		}
		t.st.quotas[key] = q
	}
	return nil
}

func (t *Tx) DeleteClassQuotas(ctx context.Context, volunteerID int64) error {
	for k := range t.st.quotas {
		if k.volunteerID == volunteerID {
			delete(t.st.quotas, k)
		}
	}
	return nil
}

func (t *Tx) LockClassQuota(ctx context.Context, volunteerID, classID int64) (*db.ClassQuota, error) {
	q, ok := t.st.quotas[pairKey{volunteerID, classID}]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &q, nil
}

func (t *Tx) CountClassParticipants(ctx context.Context, volunteerID, classID int64) (int, error) {
	n := 0
	for k := range t.st.participations {
		if k.volunteerID != volunteerID {
			continue
		}
		if u, ok := t.st.users[k.otherID]; ok && u.ClassID == classID {
			n++
		}
	}
	return n, nil
}

// Participations

func (t *Tx) GetParticipation(ctx context.Context, volunteerID, userID int64) (*db.Participation, error) {
	p, ok := t.st.participations[pairKey{volunteerID, userID}]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &p, nil
}

// FindParticipation is GetParticipation; transactions here are already serialised
func (t *Tx) FindParticipation(ctx context.Context, volunteerID, userID int64) (*db.Participation, error) {
	return t.GetParticipation(ctx, volunteerID, userID)
}

func (t *Tx) ListParticipants(ctx context.Context, volunteerID int64) ([]db.Participant, error) {
	var rows []db.Participant
	for k, p := range t.st.participations {
		if k.volunteerID != volunteerID {
			continue
		}
		u := t.st.users[p.UserID]
		rows = append(rows, db.Participant{
			UserID:   p.UserID,
			UserName: u.Name,
			ClassID:  u.ClassID,
			Status:   p.Status,
			Reward:   p.Reward,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].UserID < rows[j].UserID })
	return rows, nil
}

func (t *Tx) InsertParticipation(ctx context.Context, p *db.Participation) error {
	key := pairKey{p.VolunteerID, p.UserID}
	if _, ok := t.st.participations[key]; ok {
		return db.ErrConflict
	}
	t.st.participations[key] = *p
	return nil
}

func (t *Tx) UpdateParticipation(ctx context.Context, p *db.Participation) error {
	key := pairKey{p.VolunteerID, p.UserID}
	if _, ok := t.st.participations[key]; !ok {
		return db.ErrNotFound
	}
	t.st.participations[key] = *p
	return nil
}

func (t *Tx) DeleteParticipation(ctx context.Context, volunteerID, userID int64) error {
	delete(t.st.participations, pairKey{volunteerID, userID})
	return nil
}

func (t *Tx) DeleteParticipations(ctx context.Context, volunteerID int64) error {
	for k := range t.st.participations {
		if k.volunteerID == volunteerID {
			delete(t.st.participations, k)
		}
	}
	return nil
}

func (t *Tx) PromoteParticipations(ctx context.Context, volunteerID int64, from, to model.ThoughtStatus) (int, error) {
	n := 0
	for k, p := range t.st.participations {
		if k.volunteerID == volunteerID && p.Status == from {
			p.Status = to
			t.st.participations[k] = p
			n++
		}
	}
	return n, nil
}

func (t *Tx) ListThoughts(ctx context.Context, f db.ThoughtFilter) ([]db.ThoughtSummary, int, error) {
	var rows []db.ThoughtSummary
	for _, p := range t.st.participations {
		if p.Status == model.ThoughtWaitingForSignupAudit {
			continue
		}
		if f.UserID != 0 && p.UserID != f.UserID {
			continue
		}
		if f.Status != 0 && p.Status != f.Status {
			continue
		}
		v := t.st.volunteers[p.VolunteerID]
		if f.VolType != 0 && v.Type != f.VolType {
			continue
		}
		rows = append(rows, db.ThoughtSummary{
			UserID:        p.UserID,
			UserName:      t.st.users[p.UserID].Name,
			VolunteerID:   p.VolunteerID,
			VolunteerName: v.Name,
			Status:        p.Status,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].VolunteerID != rows[j].VolunteerID {
			return rows[i].VolunteerID > rows[j].VolunteerID
		}
		return rows[i].UserID < rows[j].UserID
	})
	return page(rows, f.Limit, f.Offset), len(rows), nil
}

func (t *Tx) GetThoughtDetail(ctx context.Context, volunteerID, userID int64) (*db.ThoughtDetail, error) {
	p, ok := t.st.participations[pairKey{volunteerID, userID}]
	if !ok {
		return nil, db.ErrNotFound
	}
	u := t.st.users[userID]
	v := t.st.volunteers[volunteerID]
	return &db.ThoughtDetail{
		UserID:        userID,
		UserName:      u.Name,
		ClassID:       u.ClassID,
		ClassName:     t.st.classes[u.ClassID].Name,
		VolunteerID:   volunteerID,
		VolunteerName: v.Name,
		VolunteerType: v.Type,
		Status:        p.Status,
		Thought:       p.Thought,
		Reward:        p.Reward,
		NominalReward: v.Reward,
	}, nil
}

func (t *Tx) SumRewards(ctx context.Context, userID int64) (map[model.VolType]int, error) {
	sums := make(map[model.VolType]int)
	for _, p := range t.st.participations {
		if p.UserID != userID || p.Status != model.ThoughtAccepted {
			continue
		}
		sums[t.st.volunteers[p.VolunteerID].Type] += p.Reward
	}
	return sums, nil
}

// Pictures

func (t *Tx) ListPictureFilenames(ctx context.Context, volunteerID int64) ([]string, error) {
	seen := make(map[string]struct{})
	var names []string
	for p := range t.st.pictures {
		if p.VolunteerID != volunteerID {
			continue
		}
		if _, ok := seen[p.Filename]; ok {
			continue
		}
		seen[p.Filename] = struct{}{}
		names = append(names, p.Filename)
	}
	sort.Strings(names)
	return names, nil
}

func (t *Tx) ListUserPictures(ctx context.Context, volunteerID, userID int64) ([]string, error) {
	var names []string
	for p := range t.st.pictures {
		if p.VolunteerID == volunteerID && p.UserID == userID {
			names = append(names, p.Filename)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (t *Tx) InsertPicture(ctx context.Context, p db.Picture) (bool, error) {
	if _, ok := t.st.pictures[p]; ok {
		return false, nil
	}
	t.st.pictures[p] = struct{}{}
	return true, nil
}

func (t *Tx) DeletePictures(ctx context.Context, volunteerID, userID int64) error {
	for p := range t.st.pictures {
		if p.VolunteerID == volunteerID && p.UserID == userID {
			delete(t.st.pictures, p)
		}
	}
	return nil
}

func (t *Tx) DeleteVolunteerPictures(ctx context.Context, volunteerID int64) error {
	for p := range t.st.pictures {
		if p.VolunteerID == volunteerID {
			delete(t.st.pictures, p)
		}
	}
	return nil
}

func (t *Tx) ClaimPictureFile(ctx context.Context, filename string) (bool, error) {
	if _, ok := t.st.pictureFiles[filename]; ok {
		return false, nil
	}
	t.st.pictureFiles[filename] = struct{}{}
	return true, nil
}

// Notices

func (t *Tx) InsertNotice(ctx context.Context, n *db.Notice) error {
	t.st.nextNoticeID++
	n.ID = t.st.nextNoticeID
	t.st.notices = append(t.st.notices, *n)
	return nil
}
