package db

import (
	"time"

	"github.com/zvmsbackend/zvms3/pkg/core/model"
)

// User represents a user record
type User struct {
	ID         int64
	Name       string
	Permission model.Permission
	ClassID    int64
}

// Actor is the identity context for calls made by this user
func (u *User) Actor() model.Actor {
	return model.Actor{UserID: u.ID, Permission: u.Permission, ClassID: u.ClassID}
}

// Class represents a class record
type Class struct {
	ID   int64
	Name string
}

// Volunteer represents a volunteer record
type Volunteer struct {
	ID          int64
	Name        string
	Description string
	Status      model.VolStatus
	HolderID    int64
	Type        model.VolType
	Reward      int
	Time        *time.Time // nil for special grants
}

// ClassQuota represents a class_vol record
type ClassQuota struct {
	ClassID     int64
	VolunteerID int64
	Max         int
}

// Participation represents a user_vol record
type Participation struct {
	UserID      int64
	VolunteerID int64
	Status      model.ThoughtStatus
	Thought     string
	Reward      int
}

// Picture represents a picture reference record
type Picture struct {
	VolunteerID int64
	UserID      int64
	Filename    string
}

// Notice represents a stored notification
type Notice struct {
	ID        int64
	Title     string
	Content   string
	SenderID  int64
	Expire    time.Time
	TargetID  int64
	Broadcast bool // TargetID is a class
}

// VolunteerFilter selects volunteers for listing. Zero values disable a condition.
type VolunteerFilter struct {
	NameContains string
	// RelatedUserID selects volunteers held by, joined by, or open to the class of the user
	RelatedUserID  int64
	RelatedClassID int64
	// IncludeClassmates also selects volunteers held by members of RelatedClassID
	IncludeClassmates bool
	Limit             int
	Offset            int
}

// VolunteerSummary is a row of a volunteer listing
type VolunteerSummary struct {
	ID         int64
	Name       string
	Status     model.VolStatus
	HolderID   int64
	HolderName string
	Type       model.VolType
}

// Participant is a participation joined with its user
type Participant struct {
	UserID   int64
	UserName string
	ClassID  int64
	Status   model.ThoughtStatus
	Reward   int
}

// ThoughtFilter selects thoughts for listing. Rows waiting for signup audit are never listed.
type ThoughtFilter struct {
	UserID  int64
	Status  model.ThoughtStatus
	VolType model.VolType
	Limit   int
	Offset  int
}

// ThoughtSummary is a row of a thought listing
type ThoughtSummary struct {
	UserID        int64
	UserName      string
	VolunteerID   int64
	VolunteerName string
	Status        model.ThoughtStatus
}

// ThoughtDetail is a participation joined with its user, class and volunteer
type ThoughtDetail struct {
	UserID        int64
	UserName      string
	ClassID       int64
	ClassName     string
	VolunteerID   int64
	VolunteerName string
	VolunteerType model.VolType
	Status        model.ThoughtStatus
	Thought       string
	Reward        int
	NominalReward int
}
