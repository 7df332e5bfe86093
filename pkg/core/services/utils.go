package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/zvmsbackend/zvms3/pkg/core/apperr"
	"github.com/zvmsbackend/zvms3/pkg/core/model"
	"github.com/zvmsbackend/zvms3/pkg/db"
)

// Notifier delivers notices. It must not block and never reports failure.
type Notifier interface {
	Notify(n model.Notice)
}

// PictureStore holds the bytes of uploaded pictures, addressed by filename
type PictureStore interface {
	Exists(filename string) (bool, error)
	Save(filename string, data []byte) error
}

var validate = validator.New()

// now is replaced in tests
var now = time.Now

// today is the current date at UTC midnight
func today() time.Time {
	return dateOf(now())
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// validateRequest maps the first failed validator rule to a Validation fault
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return apperr.Validation(verrs[0].Field(), verrs[0].Tag())
	}
	return fmt.Errorf("failed to validate request: %w", err)
}

// outbox collects the notices raised by a unit of work so they can be sent after commit
type outbox struct {
	notices []model.Notice
}

func (o *outbox) add(n model.Notice) {
	o.notices = append(o.notices, n)
}

func (o *outbox) toUser(sender, target int64, title, body string) {
	o.add(model.Notice{Title: title, Body: body, SenderID: sender, TargetID: target})
}

func (o *outbox) toClass(sender, classID int64, title, body string) {
	o.add(model.Notice{Title: title, Body: body, SenderID: sender, TargetID: classID, Broadcast: true})
}

// runTx runs fn in one transaction. Business faults pass through, other failures are
// logged and replaced by apperr.ErrInternal. Notices are only dispatched once the
// transaction has committed.
func runTx(ctx context.Context, store db.Store, notifier Notifier, logger *zap.Logger, fn func(ctx context.Context, tx db.Tx, out *outbox) error) error {
	out := &outbox{}
	err := store.InTx(ctx, func(ctx context.Context, tx db.Tx) error {
		// the store may retry fn, so notices from an aborted attempt are dropped
		out.notices = out.notices[:0]
		return fn(ctx, tx, out)
	})
	if err != nil {
		return apperr.Sanitize(logger, err)
	}

	if notifier == nil {
		return nil
	}
	for _, n := range out.notices {
		notifier.Notify(n)
	}
	logger.Debug("Dispatched notices", zap.Int("count", len(out.notices)))
	return nil
}

// resolveUser turns a numeric id or a username into a user
func resolveUser(ctx context.Context, tx db.UserQueries, identifier string) (*db.User, error) {
	var (
		u   *db.User
		err error
	)
	if id, perr := strconv.ParseInt(identifier, 10, 64); perr == nil {
		u, err = tx.GetUser(ctx, id)
	} else {
		u, err = tx.GetUserByName(ctx, identifier)
	}
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.NotFound(apperr.CodeUserNotExists, "identifier", identifier)
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// resolveUsers resolves every identifier in order. Two identifiers naming the same
// user are rejected.
func resolveUsers(ctx context.Context, tx db.UserQueries, identifiers []string) ([]int64, error) {
	ids := make([]int64, 0, len(identifiers))
	seen := make(map[int64]bool, len(identifiers))
	for _, identifier := range identifiers {
		u, err := resolveUser(ctx, tx, identifier)
		if err != nil {
			return nil, err
		}
		if seen[u.ID] {
			return nil, apperr.Validation("participants", "duplicate participant "+identifier)
		}
		seen[u.ID] = true
		ids = append(ids, u.ID)
	}
	return ids, nil
}

func lockVolunteer(ctx context.Context, tx db.VolunteerQueries, volunteerID int64) (*db.Volunteer, error) {
	v, err := tx.LockVolunteer(ctx, volunteerID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.NotFound(apperr.CodeVolunteerNotExists, "volunteer_id", volunteerID)
	}
	return v, err
}

func getVolunteer(ctx context.Context, tx db.VolunteerQueries, volunteerID int64) (*db.Volunteer, error) {
	v, err := tx.GetVolunteer(ctx, volunteerID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.NotFound(apperr.CodeVolunteerNotExists, "volunteer_id", volunteerID)
	}
	return v, err
}

// volunteerOpen reports whether participations of v may move along the thought
// pipeline. Unaudited and rejected volunteers grant no time.
func volunteerOpen(v *db.Volunteer) bool {
	return v.Status == model.VolStatusAccepted
}

func getThought(ctx context.Context, tx db.ParticipationQueries, volunteerID, userID int64) (*db.Participation, error) {
	p, err := tx.GetParticipation(ctx, volunteerID, userID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.NotFound(apperr.CodeThoughtNotExists, "volunteer_id", volunteerID, "user_id", userID)
	}
	return p, err
}

// Page is one page of a listing. Pages are numbered from 1.
type Page[T any] struct {
	Items    []T
	Total    int
	Page     int
	PageSize int
}

func pageBounds(page, pageSize int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		return 0, 0
	}
	return pageSize, (page - 1) * pageSize
}
