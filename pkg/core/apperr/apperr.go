// Package apperr defines the business faults returned by the core services.
//
// Every fault has a Kind (the caller-facing category) and a Code (the precise
// condition). Fields carries the ids and names needed to render a message without
// another query. Anything that is not an *Error is an internal failure and must be
// passed through Sanitize before it reaches a caller.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Kind is the category of a business fault
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindNotAuthorized
	KindInvalidState
	KindCapacityExceeded
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindNotAuthorized:
		return "not authorized"
	case KindInvalidState:
		return "invalid state"
	case KindCapacityExceeded:
		return "capacity exceeded"
	case KindValidation:
		return "validation failed"
	}
	return "internal error"
}

// Code identifies the exact condition
type Code int

const (
	CodeValidationFails           Code = 2
	CodeNotAuthorized             Code = 3
	CodeUserNotExists             Code = 6
	CodeClassOverflow             Code = 9
	CodeCantAuditVolunteer        Code = 10
	CodeCantSignupForVolunteer    Code = 11
	CodeSignupNotExists           Code = 12
	CodeCantRollbackOthersSignup  Code = 13
	CodeCantDeleteOthersVolunteer Code = 14
	CodeCantModifyOthersVolunteer Code = 15
	CodeVolunteerKindMismatch     Code = 17
	CodeCantModifyRejected        Code = 18
	CodeCantEditOthersThought     Code = 19
	CodeThoughtNotEditable        Code = 20
	CodePictureNotExists          Code = 21
	CodeFileDecodeFails           Code = 22
	CodeThoughtNotAuditable       Code = 23
	CodeVolunteerNotExists        Code = 24
	CodeThoughtNotExists          Code = 25
	CodeClassNotExists            Code = 26
	CodeSignupNotWaiting          Code = 27
)

var codeMessages = map[Code]string{
	CodeValidationFails:           "invalid input",
	CodeNotAuthorized:             "not authorized",
	CodeUserNotExists:             "user does not exist",
	CodeClassOverflow:             "class quota exceeds class size",
	CodeCantAuditVolunteer:        "volunteer cannot be audited",
	CodeCantSignupForVolunteer:    "cannot sign up for volunteer",
	CodeSignupNotExists:           "signup does not exist",
	CodeCantRollbackOthersSignup:  "cannot roll back another user's signup",
	CodeCantDeleteOthersVolunteer: "cannot delete another user's volunteer",
	CodeCantModifyOthersVolunteer: "cannot modify another user's volunteer",
	CodeVolunteerKindMismatch:     "volunteer kind mismatch",
	CodeCantModifyRejected:        "cannot modify a rejected volunteer",
	CodeCantEditOthersThought:     "cannot edit another user's thought",
	CodeThoughtNotEditable:        "thought is not editable",
	CodePictureNotExists:          "picture does not exist",
	CodeFileDecodeFails:           "uploaded file is not an image",
	CodeThoughtNotAuditable:       "thought cannot be audited",
	CodeVolunteerNotExists:        "volunteer does not exist",
	CodeThoughtNotExists:          "thought does not exist",
	CodeClassNotExists:            "class does not exist",
	CodeSignupNotWaiting:          "signup is not waiting for review",
}

// Error is a business fault
type Error struct {
	Kind   Kind
	Code   Code
	Fields map[string]any
}

func (e *Error) Error() string {
	msg, ok := codeMessages[e.Code]
	if !ok {
		msg = e.Kind.String()
	}
	if len(e.Fields) == 0 {
		return msg
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, e.Fields[k]))
	}
	return fmt.Sprintf("%s (%s)", msg, strings.Join(parts, ", "))
}

// Is matches another *Error with the same Code, so callers can compare against
// a bare template such as &Error{Code: CodeThoughtNotAuditable}
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Field returns a single context value
func (e *Error) Field(key string) any {
	return e.Fields[key]
}

// ErrInternal replaces every non-business error before it reaches a caller
var ErrInternal = errors.New("internal error")

func newError(kind Kind, code Code, kv ...any) *Error {
	e := &Error{Kind: kind, Code: code}
	if len(kv) > 0 {
		e.Fields = make(map[string]any, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			key, _ := kv[i].(string)
			e.Fields[key] = kv[i+1]
		}
	}
	return e
}

// NotFound builds a NotFound fault; kv are alternating key/value pairs
func NotFound(code Code, kv ...any) *Error {
	return newError(KindNotFound, code, kv...)
}

func NotAuthorized(code Code, kv ...any) *Error {
	return newError(KindNotAuthorized, code, kv...)
}

func InvalidState(code Code, kv ...any) *Error {
	return newError(KindInvalidState, code, kv...)
}

// CapacityExceeded names the class whose member count is too small
func CapacityExceeded(classID int64, requested, members int) *Error {
	return newError(KindCapacityExceeded, CodeClassOverflow,
		"class_id", classID, "requested", requested, "members", members)
}

func Validation(field, reason string) *Error {
	return newError(KindValidation, CodeValidationFails, "field", field, "reason", reason)
}

// BadInput is a validation fault with a more precise code than CodeValidationFails
func BadInput(code Code, kv ...any) *Error {
	return newError(KindValidation, code, kv...)
}

// KindOf returns the fault category of err, KindInternal for anything else
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the fault code of err, zero when err is not a business fault
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

// Sanitize passes business faults through and hides everything else
func Sanitize(logger *zap.Logger, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	logger.Error("Internal failure", zap.Error(err))
	return ErrInternal
}
