package model

import "strings"

// Permission is a role bitmask carried by every user
type Permission int

const (
	PermissionClass     Permission = 1
	PermissionManager   Permission = 2
	PermissionAuditor   Permission = 4
	PermissionInspector Permission = 8
	PermissionAdmin     Permission = 16
)

var permissionNames = []struct {
	bit  Permission
	name string
}{
	{PermissionClass, "class"},
	{PermissionManager, "manager"},
	{PermissionAuditor, "auditor"},
	{PermissionInspector, "inspector"},
	{PermissionAdmin, "admin"},
}

// Has reports whether every bit of other is set
func (p Permission) Has(other Permission) bool {
	return p&other == other
}

func (p Permission) String() string {
	var names []string
	for _, pn := range permissionNames {
		if p&pn.bit != 0 {
			names = append(names, pn.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}

// ParsePermission combines role names such as "class" or "manager" into a mask
func ParsePermission(roles []string) (Permission, bool) {
	var p Permission
	for _, role := range roles {
		found := false
		for _, pn := range permissionNames {
			if strings.EqualFold(strings.TrimSpace(role), pn.name) {
				p |= pn.bit
				found = true
				break
			}
		}
		if !found {
			return 0, false
		}
	}
	return p, true
}

// VolStatus is the stored status of a volunteer
type VolStatus int

const (
	VolStatusUnaudited VolStatus = 1
	VolStatusAccepted  VolStatus = 2
	VolStatusRejected  VolStatus = 3
	VolStatusSpecial   VolStatus = 4
)

func (s VolStatus) String() string {
	switch s {
	case VolStatusUnaudited:
		return "unaudited"
	case VolStatusAccepted:
		return "accepted"
	case VolStatusRejected:
		return "rejected"
	case VolStatusSpecial:
		return "special"
	}
	return "unknown"
}

// VolType says where the work takes place
type VolType int

const (
	VolTypeInside  VolType = 1
	VolTypeOutside VolType = 2
	VolTypeLarge   VolType = 3
)

func (t VolType) IsValid() bool {
	return t == VolTypeInside || t == VolTypeOutside || t == VolTypeLarge
}

func (t VolType) String() string {
	switch t {
	case VolTypeInside:
		return "inside"
	case VolTypeOutside:
		return "outside"
	case VolTypeLarge:
		return "large"
	}
	return "unknown"
}

// VolKind is derived from a volunteer's status and quota rows, never stored
type VolKind int

const (
	VolKindInside    VolKind = 1
	VolKindAppointed VolKind = 2
	VolKindSpecial   VolKind = 3
)

func (k VolKind) String() string {
	switch k {
	case VolKindInside:
		return "inside"
	case VolKindAppointed:
		return "appointed"
	case VolKindSpecial:
		return "special"
	}
	return "unknown"
}

// ThoughtStatus is the status of a participation and its reflection
type ThoughtStatus int

const (
	ThoughtWaitingForSignupAudit ThoughtStatus = 1
	ThoughtDraft                 ThoughtStatus = 2
	ThoughtWaitingForFirstAudit  ThoughtStatus = 3
	ThoughtWaitingForFinalAudit  ThoughtStatus = 4
	ThoughtAccepted              ThoughtStatus = 5
	ThoughtRejected              ThoughtStatus = 6
	ThoughtSpike                 ThoughtStatus = 7
)

func (s ThoughtStatus) String() string {
	switch s {
	case ThoughtWaitingForSignupAudit:
		return "waiting for signup audit"
	case ThoughtDraft:
		return "draft"
	case ThoughtWaitingForFirstAudit:
		return "waiting for first audit"
	case ThoughtWaitingForFinalAudit:
		return "waiting for final audit"
	case ThoughtAccepted:
		return "accepted"
	case ThoughtRejected:
		return "rejected"
	case ThoughtSpike:
		return "spiked"
	}
	return "unknown"
}

// Actor is the identity a call is made on behalf of
type Actor struct {
	UserID     int64
	Permission Permission
	ClassID    int64
}

// Notice is a message for one user or, when Broadcast is set, for a whole class
type Notice struct {
	Title     string
	Body      string
	SenderID  int64
	TargetID  int64
	Broadcast bool
}
