// Package policy answers "who may act on this record" questions.
// Role checks and ownership checks are separate; callers OR them together.
package policy

import "github.com/zvmsbackend/zvms3/pkg/core/model"

// Authorized reports whether actor holds any bit of required.
// Admins satisfy every check unless allowAdmin is false.
func Authorized(required, actor model.Permission, allowAdmin bool) bool {
	if allowAdmin {
		required |= model.PermissionAdmin
	}
	return required&actor != 0
}

// Can is Authorized with the admin override enabled
func Can(actor model.Actor, required model.Permission) bool {
	return Authorized(required, actor.Permission, true)
}

// OwnerOr reports whether actor owns the record or holds one of the required roles
func OwnerOr(actor model.Actor, ownerID int64, required model.Permission) bool {
	return actor.UserID == ownerID || Can(actor, required)
}

// SelfAudits reports whether records created by actor skip manual review
func SelfAudits(actor model.Actor) bool {
	return Can(actor, model.PermissionClass|model.PermissionManager)
}

// CanFinalAudit routes outside-school work to managers and inside-school work to auditors
func CanFinalAudit(actor model.Actor, volType model.VolType) bool {
	switch volType {
	case model.VolTypeOutside:
		return Can(actor, model.PermissionManager)
	case model.VolTypeInside:
		return Can(actor, model.PermissionAuditor)
	}
	return false
}

// FinalAuditType is the volunteer type whose thoughts actor reviews at the final gate
func FinalAuditType(actor model.Actor) (model.VolType, bool) {
	switch {
	case Can(actor, model.PermissionManager):
		return model.VolTypeOutside, true
	case Can(actor, model.PermissionAuditor):
		return model.VolTypeInside, true
	}
	return 0, false
}

// CanViewThought reports whether actor may read the reflection of a participant
// who belongs to participantClass
func CanViewThought(actor model.Actor, participantID, participantClass int64) bool {
	if actor.UserID == participantID {
		return true
	}
	if Can(actor, model.PermissionManager|model.PermissionAuditor) {
		return true
	}
	return Can(actor, model.PermissionClass) && actor.ClassID == participantClass
}
