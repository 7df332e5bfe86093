package db

import (
	"context"
	"errors"

	"github.com/zvmsbackend/zvms3/pkg/core/model"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when an insert collides with an existing key
	ErrConflict = errors.New("record already exists")
)

// Store runs units of work. fn runs inside one transaction; if it returns an
// error every write it made is rolled back. Implementations may call fn more
// than once when the transaction has to be retried.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// UserQueries reads users and classes, which the core never writes
type UserQueries interface {
	GetUser(ctx context.Context, userID int64) (*User, error)
	GetUserByName(ctx context.Context, username string) (*User, error)
	GetClass(ctx context.Context, classID int64) (*Class, error)
	// CountClassMembers also keeps the class's membership stable until the transaction ends
	CountClassMembers(ctx context.Context, classID int64) (int, error)
	// FindClassSecretary returns the class member with the lowest id holding the class role
	FindClassSecretary(ctx context.Context, classID int64) (*User, error)
}

// VolunteerQueries manages volunteer rows
type VolunteerQueries interface {
	InsertVolunteer(ctx context.Context, v *Volunteer) error
	GetVolunteer(ctx context.Context, volunteerID int64) (*Volunteer, error)
	// LockVolunteer reads the row and holds it until the transaction ends
	LockVolunteer(ctx context.Context, volunteerID int64) (*Volunteer, error)
	UpdateVolunteer(ctx context.Context, v *Volunteer) error
	SetVolunteerStatus(ctx context.Context, volunteerID int64, status model.VolStatus) error
	DeleteVolunteer(ctx context.Context, volunteerID int64) error
	ListVolunteers(ctx context.Context, filter VolunteerFilter) ([]VolunteerSummary, int, error)
}

// QuotaQueries manages class_vol rows
type QuotaQueries interface {
	ListClassQuotas(ctx context.Context, volunteerID int64) ([]ClassQuota, error)
	InsertClassQuotas(ctx context.Context, quotas []ClassQuota) error
	DeleteClassQuotas(ctx context.Context, volunteerID int64) error
	// LockClassQuota serialises signups for one (volunteer, class) pair
	LockClassQuota(ctx context.Context, volunteerID, classID int64) (*ClassQuota, error)
	// CountClassParticipants counts participations of volunteerID held by members of classID
	CountClassParticipants(ctx context.Context, volunteerID, classID int64) (int, error)
}

// ParticipationQueries manages user_vol rows and the thought read models built on them
type ParticipationQueries interface {
	// GetParticipation reads the row and holds it until the transaction ends
	GetParticipation(ctx context.Context, volunteerID, userID int64) (*Participation, error)
	// FindParticipation reads the row without locking it
	FindParticipation(ctx context.Context, volunteerID, userID int64) (*Participation, error)
	ListParticipants(ctx context.Context, volunteerID int64) ([]Participant, error)
	InsertParticipation(ctx context.Context, p *Participation) error
	UpdateParticipation(ctx context.Context, p *Participation) error
	DeleteParticipation(ctx context.Context, volunteerID, userID int64) error
	DeleteParticipations(ctx context.Context, volunteerID int64) error
	PromoteParticipations(ctx context.Context, volunteerID int64, from, to model.ThoughtStatus) (int, error)
	ListThoughts(ctx context.Context, filter ThoughtFilter) ([]ThoughtSummary, int, error)
	GetThoughtDetail(ctx context.Context, volunteerID, userID int64) (*ThoughtDetail, error)
	SumRewards(ctx context.Context, userID int64) (map[model.VolType]int, error)
}

// PictureQueries manages picture reference rows and physical-object claims
type PictureQueries interface {
	ListPictureFilenames(ctx context.Context, volunteerID int64) ([]string, error)
	ListUserPictures(ctx context.Context, volunteerID, userID int64) ([]string, error)
	// InsertPicture is idempotent and reports whether a new row was written
	InsertPicture(ctx context.Context, p Picture) (bool, error)
	DeletePictures(ctx context.Context, volunteerID, userID int64) error
	DeleteVolunteerPictures(ctx context.Context, volunteerID int64) error
	// ClaimPictureFile reports true only for the first transaction ever to claim filename
	ClaimPictureFile(ctx context.Context, filename string) (bool, error)
}

// NoticeQueries stores delivered notifications
type NoticeQueries interface {
	InsertNotice(ctx context.Context, n *Notice) error
}

// Tx is everything a unit of work can do
type Tx interface {
	UserQueries
	VolunteerQueries
	QuotaQueries
	ParticipationQueries
	PictureQueries
	NoticeQueries
}
