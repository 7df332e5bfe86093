package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/zvmsbackend/zvms3/pkg/core/apperr"
	"github.com/zvmsbackend/zvms3/pkg/core/model"
	"github.com/zvmsbackend/zvms3/pkg/core/policy"
	"github.com/zvmsbackend/zvms3/pkg/db"
)

// QuotaRequest is one class allowed to join a class-quota volunteer
type QuotaRequest struct {
	ClassID int64 `validate:"required"`
	Max     int   `validate:"gt=0"`
}

// ClassVolunteerRequest describes a class-quota volunteer
type ClassVolunteerRequest struct {
	Name        string         `validate:"required,max=32"`
	Description string         `validate:"max=1024"`
	Time        time.Time      `validate:"required"`
	Reward      int            `validate:"gte=0"`
	Quotas      []QuotaRequest `validate:"required,min=1,dive"`
}

// AppointedVolunteerRequest describes a volunteer whose participants are named up front
type AppointedVolunteerRequest struct {
	Name         string        `validate:"required,max=32"`
	Description  string        `validate:"max=1024"`
	Type         model.VolType `validate:"oneof=1 2"`
	Reward       int           `validate:"gte=0"`
	Participants []string      `validate:"required,min=1,dive,required"`
}

func validateClassRequest(req ClassVolunteerRequest) error {
	if err := validateRequest(req); err != nil {
		return err
	}
	if dateOf(req.Time).Before(today()) {
		return apperr.Validation("Time", "must not be in the past")
	}
	seen := make(map[int64]bool, len(req.Quotas))
	for _, q := range req.Quotas {
		if seen[q.ClassID] {
			return apperr.Validation("Quotas", fmt.Sprintf("class %d listed twice", q.ClassID))
		}
		seen[q.ClassID] = true
	}
	return nil
}

// checkQuotas fails with CapacityExceeded naming the first class whose member count
// is below the requested maximum. Membership stays locked until the transaction ends.
func checkQuotas(ctx context.Context, tx db.UserQueries, logger *zap.Logger, quotas []QuotaRequest) error {
	for _, q := range quotas {
		members, err := tx.CountClassMembers(ctx, q.ClassID)
		if errors.Is(err, db.ErrNotFound) {
			return apperr.NotFound(apperr.CodeClassNotExists, "class_id", q.ClassID)
		}
		if err != nil {
			return fmt.Errorf("failed to count class members: %w", err)
		}
		logger.Debug("Checked class capacity",
			zap.Int64("class_id", q.ClassID),
			zap.Int("members", members),
			zap.Int("requested", q.Max))
		if q.Max > members {
			return apperr.CapacityExceeded(q.ClassID, q.Max, members)
		}
	}
	return nil
}

func quotaRows(volunteerID int64, quotas []QuotaRequest) []db.ClassQuota {
	rows := make([]db.ClassQuota, len(quotas))
	for i, q := range quotas {
		rows[i] = db.ClassQuota{ClassID: q.ClassID, VolunteerID: volunteerID, Max: q.Max}
	}
	return rows
}

func createClassVolunteer(ctx context.Context, tx db.Tx, out *outbox, logger *zap.Logger, actor model.Actor, req ClassVolunteerRequest) (int64, error) {
	if err := validateClassRequest(req); err != nil {
		return 0, err
	}
	if err := checkQuotas(ctx, tx, logger, req.Quotas); err != nil {
		return 0, err
	}

	status := model.VolStatusUnaudited
	if policy.SelfAudits(actor) {
		status = model.VolStatusAccepted
	}
	scheduled := dateOf(req.Time)
	v := &db.Volunteer{
		Name:        req.Name,
		Description: req.Description,
		Status:      status,
		HolderID:    actor.UserID,
		Type:        model.VolTypeInside,
		Reward:      req.Reward,
		Time:        &scheduled,
	}
	if err := tx.InsertVolunteer(ctx, v); err != nil {
		return 0, fmt.Errorf("failed to insert volunteer: %w", err)
	}
	if err := tx.InsertClassQuotas(ctx, quotaRows(v.ID, req.Quotas)); err != nil {
		return 0, fmt.Errorf("failed to insert class quotas: %w", err)
	}

	for _, q := range req.Quotas {
		out.toClass(actor.UserID, q.ClassID, "New volunteer work",
			fmt.Sprintf("%s on %s is open to your class (%d places)", v.Name, scheduled.Format("2006-01-02"), q.Max))
	}

	logger.Info("Created class volunteer",
		zap.Int64("volunteer_id", v.ID),
		zap.Int64("user_id", actor.UserID),
		zap.Stringer("status", status),
		zap.Int("classes", len(req.Quotas)))
	return v.ID, nil
}

// CreateClassVolunteer creates a volunteer open to the members of the listed classes,
// each class capped at its quota
func CreateClassVolunteer(ctx context.Context, store db.Store, notifier Notifier, logger *zap.Logger, actor model.Actor, req ClassVolunteerRequest) (int64, error) {
	var id int64
	err := runTx(ctx, store, notifier, logger, func(ctx context.Context, tx db.Tx, out *outbox) error {
		var err error
		id, err = createClassVolunteer(ctx, tx, out, logger, actor, req)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// PlanClassVolunteerSeries creates one class-quota volunteer per occurrence of rule,
// starting at req.Time. Either every occurrence is created or none is.
func PlanClassVolunteerSeries(ctx context.Context, store db.Store, notifier Notifier, logger *zap.Logger, actor model.Actor, req ClassVolunteerRequest, rule string, maxOccurrences int) ([]int64, error) {
	dates, err := seriesDates(req.Time, rule, maxOccurrences)
	if err != nil {
		return nil, err
	}

	logger.Debug("Planning volunteer series", zap.String("rrule", rule), zap.Int("occurrences", len(dates)))

	var ids []int64
	err = runTx(ctx, store, notifier, logger, func(ctx context.Context, tx db.Tx, out *outbox) error {
		ids = ids[:0]
		for _, date := range dates {
			occurrence := req
			occurrence.Time = date
			id, err := createClassVolunteer(ctx, tx, out, logger, actor, occurrence)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func seriesDates(start time.Time, rule string, maxOccurrences int) ([]time.Time, error) {
	r, err := rrule.StrToRRule(rule)
	if err != nil {
		return nil, apperr.Validation("rule", err.Error())
	}
	r.DTStart(dateOf(start))

	next := r.Iterator()
	var dates []time.Time
	for {
		date, ok := next()
		if !ok {
			break
		}
		if len(dates) == maxOccurrences {
			return nil, apperr.Validation("rule", fmt.Sprintf("more than %d occurrences", maxOccurrences))
		}
		dates = append(dates, dateOf(date))
	}
	if len(dates) == 0 {
		return nil, apperr.Validation("rule", "no occurrences")
	}
	return dates, nil
}

// CreateAppointedVolunteer creates a volunteer with a fixed participant list. Creators
// without CLASS or MANAGER get an unaudited volunteer and their class secretary is
// asked to review it.
func CreateAppointedVolunteer(ctx context.Context, store db.Store, notifier Notifier, logger *zap.Logger, actor model.Actor, req AppointedVolunteerRequest) (int64, error) {
	if err := validateRequest(req); err != nil {
		return 0, err
	}

	var id int64
	err := runTx(ctx, store, notifier, logger, func(ctx context.Context, tx db.Tx, out *outbox) error {
		userIDs, err := resolveUsers(ctx, tx, req.Participants)
		if err != nil {
			return err
		}

		selfAudited := policy.SelfAudits(actor)
		status, thoughtStatus := model.VolStatusUnaudited, model.ThoughtWaitingForSignupAudit
		if selfAudited {
			status, thoughtStatus = model.VolStatusAccepted, model.ThoughtDraft
		}

		scheduled := today()
		v := &db.Volunteer{
			Name:        req.Name,
			Description: req.Description,
			Status:      status,
			HolderID:    actor.UserID,
			Type:        req.Type,
			Reward:      req.Reward,
			Time:        &scheduled,
		}
		if err := tx.InsertVolunteer(ctx, v); err != nil {
			return fmt.Errorf("failed to insert volunteer: %w", err)
		}
		id = v.ID

		for _, userID := range userIDs {
			p := &db.Participation{UserID: userID, VolunteerID: v.ID, Status: thoughtStatus}
			if err := tx.InsertParticipation(ctx, p); err != nil {
				return fmt.Errorf("failed to insert participation: %w", err)
			}
		}

		if !selfAudited {
			secretary, err := tx.FindClassSecretary(ctx, actor.ClassID)
			switch {
			case errors.Is(err, db.ErrNotFound):
				logger.Warn("No class secretary to review volunteer",
					zap.Int64("volunteer_id", v.ID),
					zap.Int64("class_id", actor.ClassID))
			case err != nil:
				return fmt.Errorf("failed to find class secretary: %w", err)
			default:
				out.toUser(actor.UserID, secretary.ID, "Volunteer awaiting review",
					fmt.Sprintf("%s needs your review", v.Name))
			}
		}

		logger.Info("Created appointed volunteer",
			zap.Int64("volunteer_id", v.ID),
			zap.Int64("user_id", actor.UserID),
			zap.Stringer("status", status),
			zap.Int("participants", len(userIDs)))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}
