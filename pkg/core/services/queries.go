package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zvmsbackend/zvms3/pkg/core/apperr"
	"github.com/zvmsbackend/zvms3/pkg/core/model"
	"github.com/zvmsbackend/zvms3/pkg/core/policy"
	"github.com/zvmsbackend/zvms3/pkg/db"
)

// ParticipantView is a participant as another user sees it
type ParticipantView struct {
	db.Participant
	ThoughtVisible bool
}

// VolunteerDetail is a volunteer as shown to one actor
type VolunteerDetail struct {
	ID           int64
	Name         string
	Description  string
	Status       model.VolStatus
	Kind         model.VolKind
	Type         model.VolType
	Reward       int
	Time         *time.Time
	HolderID     int64
	HolderName   string
	Quotas       []db.ClassQuota
	CanSignup    bool
	Participants []ParticipantView
	// Signups waiting for review; only filled for CLASS actors
	Signups []db.Participant
}

// VolunteerInfo returns a volunteer with its participants as actor may see them
func VolunteerInfo(ctx context.Context, store db.Store, logger *zap.Logger, actor model.Actor, volunteerID int64) (*VolunteerDetail, error) {
	var detail *VolunteerDetail
	err := runTx(ctx, store, nil, logger, func(ctx context.Context, tx db.Tx, _ *outbox) error {
		v, err := getVolunteer(ctx, tx, volunteerID)
		if err != nil {
			return err
		}
		kind, quotas, err := DetectKind(ctx, tx, volunteerID, v.Status)
		if err != nil {
			return err
		}
		holderName := ""
		holder, err := tx.GetUser(ctx, v.HolderID)
		switch {
		case err == nil:
			holderName = holder.Name
		case !errors.Is(err, db.ErrNotFound):
			return fmt.Errorf("failed to fetch holder: %w", err)
		}

		reason, err := signupBlocker(ctx, tx, actor, v, false)
		if err != nil {
			return err
		}

		participants, err := tx.ListParticipants(ctx, volunteerID)
		if err != nil {
			return fmt.Errorf("failed to fetch participants: %w", err)
		}

		detail = &VolunteerDetail{
			ID:          v.ID,
			Name:        v.Name,
			Description: v.Description,
			Status:      v.Status,
			Kind:        kind,
			Type:        v.Type,
			Reward:      v.Reward,
			Time:        v.Time,
			HolderID:    v.HolderID,
			HolderName:  holderName,
			Quotas:      quotas,
			CanSignup:   reason == "",
		}
		for _, p := range participants {
			if p.Status == model.ThoughtWaitingForSignupAudit {
				if policy.Can(actor, model.PermissionClass) {
					detail.Signups = append(detail.Signups, p)
				}
				continue
			}
			detail.Participants = append(detail.Participants, ParticipantView{
				Participant:    p,
				ThoughtVisible: policy.CanViewThought(actor, p.UserID, p.ClassID),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func listVolunteers(ctx context.Context, store db.Store, logger *zap.Logger, filter db.VolunteerFilter, page, pageSize int) (*Page[db.VolunteerSummary], error) {
	filter.Limit, filter.Offset = pageBounds(page, pageSize)

	result := &Page[db.VolunteerSummary]{Page: max(page, 1), PageSize: pageSize}
	err := runTx(ctx, store, nil, logger, func(ctx context.Context, tx db.Tx, _ *outbox) error {
		items, total, err := tx.ListVolunteers(ctx, filter)
		if err != nil {
			return fmt.Errorf("failed to list volunteers: %w", err)
		}
		result.Items, result.Total = items, total
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListVolunteers returns one page of every volunteer, newest first
func ListVolunteers(ctx context.Context, store db.Store, logger *zap.Logger, page, pageSize int) (*Page[db.VolunteerSummary], error) {
	return listVolunteers(ctx, store, logger, db.VolunteerFilter{}, page, pageSize)
}

// SearchVolunteers returns one page of the volunteers whose name contains query
func SearchVolunteers(ctx context.Context, store db.Store, logger *zap.Logger, query string, page, pageSize int) (*Page[db.VolunteerSummary], error) {
	if query == "" {
		return nil, apperr.Validation("query", "required")
	}
	return listVolunteers(ctx, store, logger, db.VolunteerFilter{NameContains: query}, page, pageSize)
}

// MyVolunteers returns the volunteers actor holds, joined, or is invited to through
// its class. CLASS actors also see the volunteers held by their classmates.
func MyVolunteers(ctx context.Context, store db.Store, logger *zap.Logger, actor model.Actor, page, pageSize int) (*Page[db.VolunteerSummary], error) {
	filter := db.VolunteerFilter{
		RelatedUserID:     actor.UserID,
		RelatedClassID:    actor.ClassID,
		IncludeClassmates: policy.Can(actor, model.PermissionClass),
	}
	return listVolunteers(ctx, store, logger, filter, page, pageSize)
}

func listThoughts(ctx context.Context, store db.Store, logger *zap.Logger, filter db.ThoughtFilter, page, pageSize int) (*Page[db.ThoughtSummary], error) {
	filter.Limit, filter.Offset = pageBounds(page, pageSize)

	result := &Page[db.ThoughtSummary]{Page: max(page, 1), PageSize: pageSize}
	err := runTx(ctx, store, nil, logger, func(ctx context.Context, tx db.Tx, _ *outbox) error {
		items, total, err := tx.ListThoughts(ctx, filter)
		if err != nil {
			return fmt.Errorf("failed to list thoughts: %w", err)
		}
		result.Items, result.Total = items, total
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListThoughts returns every reflection past signup review
func ListThoughts(ctx context.Context, store db.Store, logger *zap.Logger, actor model.Actor, page, pageSize int) (*Page[db.ThoughtSummary], error) {
	if !policy.Can(actor, model.PermissionManager|model.PermissionAuditor) {
		return nil, apperr.NotAuthorized(apperr.CodeNotAuthorized, "user_id", actor.UserID)
	}
	return listThoughts(ctx, store, logger, db.ThoughtFilter{}, page, pageSize)
}

// MyThoughts returns actor's own reflections
func MyThoughts(ctx context.Context, store db.Store, logger *zap.Logger, actor model.Actor, page, pageSize int) (*Page[db.ThoughtSummary], error) {
	return listThoughts(ctx, store, logger, db.ThoughtFilter{UserID: actor.UserID}, page, pageSize)
}

// UnauditedThoughts returns the reflections waiting for actor's final audit: outside
// work for managers, inside work for auditors
func UnauditedThoughts(ctx context.Context, store db.Store, logger *zap.Logger, actor model.Actor, page, pageSize int) (*Page[db.ThoughtSummary], error) {
	volType, ok := policy.FinalAuditType(actor)
	if !ok {
		return nil, apperr.NotAuthorized(apperr.CodeNotAuthorized, "user_id", actor.UserID)
	}
	filter := db.ThoughtFilter{Status: model.ThoughtWaitingForFinalAudit, VolType: volType}
	return listThoughts(ctx, store, logger, filter, page, pageSize)
}

// ThoughtView is a reflection with its pictures
type ThoughtView struct {
	db.ThoughtDetail
	Pictures []string
}

// ThoughtInfo returns one reflection if actor may read it
func ThoughtInfo(ctx context.Context, store db.Store, logger *zap.Logger, actor model.Actor, volunteerID, userID int64) (*ThoughtView, error) {
	var view *ThoughtView
	err := runTx(ctx, store, nil, logger, func(ctx context.Context, tx db.Tx, _ *outbox) error {
		detail, err := tx.GetThoughtDetail(ctx, volunteerID, userID)
		if errors.Is(err, db.ErrNotFound) {
			return apperr.NotFound(apperr.CodeThoughtNotExists, "volunteer_id", volunteerID, "user_id", userID)
		}
		if err != nil {
			return fmt.Errorf("failed to fetch thought: %w", err)
		}
		if !policy.CanViewThought(actor, userID, detail.ClassID) {
			return apperr.NotAuthorized(apperr.CodeNotAuthorized, "volunteer_id", volunteerID, "user_id", userID)
		}
		pictures, err := tx.ListUserPictures(ctx, volunteerID, userID)
		if err != nil {
			return fmt.Errorf("failed to fetch pictures: %w", err)
		}
		view = &ThoughtView{ThoughtDetail: *detail, Pictures: pictures}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Scores is the accepted volunteer time of a user in minutes, per volunteer type
type Scores struct {
	Inside  int
	Outside int
	Large   int
}

// UserScores totals the time granted to a user
func UserScores(ctx context.Context, store db.Store, logger *zap.Logger, userID int64) (*Scores, error) {
	var scores *Scores
	err := runTx(ctx, store, nil, logger, func(ctx context.Context, tx db.Tx, _ *outbox) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return apperr.NotFound(apperr.CodeUserNotExists, "user_id", userID)
			}
			return fmt.Errorf("failed to fetch user: %w", err)
		}
		sums, err := tx.SumRewards(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to sum rewards: %w", err)
		}
		scores = &Scores{
			Inside:  sums[model.VolTypeInside],
			Outside: sums[model.VolTypeOutside],
			Large:   sums[model.VolTypeLarge],
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return scores, nil
}
