package services

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/zvmsbackend/zvms3/pkg/core/apperr"
	"github.com/zvmsbackend/zvms3/pkg/core/model"
	"github.com/zvmsbackend/zvms3/pkg/db"
)

// Upload is a picture file sent with a reflection
type Upload struct {
	Name string // original filename, only its extension is kept
	Data []byte
}

// ThoughtEdit is a save or submit of a reflection
type ThoughtEdit struct {
	Thought string `validate:"max=65536"`
	// Pictures are filenames already attached to the volunteer; they replace the
	// participant's current picture references
	Pictures []string `validate:"dive,required"`
	Uploads  []Upload
	Submit   bool
}

// PictureChoice is a picture of the volunteer offered to a participant
type PictureChoice struct {
	Filename string
	Mine     bool
}

// ThoughtDraft is a reflection as its edit form needs it
type ThoughtDraft struct {
	VolunteerID int64
	Status      model.ThoughtStatus
	Thought     string
	Pictures    []PictureChoice
}

func canSave(status model.ThoughtStatus) bool {
	switch status {
	case model.ThoughtDraft, model.ThoughtWaitingForFirstAudit, model.ThoughtWaitingForFinalAudit, model.ThoughtSpike:
		return true
	}
	return false
}

func canSubmit(status model.ThoughtStatus) bool {
	return status == model.ThoughtDraft || status == model.ThoughtSpike
}

const maxExtensionLen = 8

// validExtension accepts a dot followed by at most maxExtensionLen letters or digits
func validExtension(ext string) bool {
	if len(ext) < 2 || len(ext) > maxExtensionLen+1 || ext[0] != '.' {
		return false
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// pictureName is the content-addressed filename of an upload
func pictureName(u Upload) (string, error) {
	mtype := mimetype.Detect(u.Data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return "", apperr.BadInput(apperr.CodeFileDecodeFails, "upload", u.Name, "mime", mtype.String())
	}
	ext := strings.ToLower(filepath.Ext(u.Name))
	if !validExtension(ext) {
		ext = mtype.Extension()
	}
	sum := md5.Sum(u.Data)
	return hex.EncodeToString(sum[:]) + ext, nil
}

// EditThought saves a reflection and replaces its picture references. With Submit
// the reflection goes to first audit. Bytes of an upload are written only by the
// first transaction that ever references its filename.
func EditThought(ctx context.Context, store db.Store, pictures PictureStore, logger *zap.Logger, actor model.Actor, volunteerID, userID int64, edit ThoughtEdit) error {
	if actor.UserID != userID {
		return apperr.NotAuthorized(apperr.CodeCantEditOthersThought,
			"volunteer_id", volunteerID, "user_id", userID)
	}
	if err := validateRequest(edit); err != nil {
		return err
	}

	names := make([]string, len(edit.Uploads))
	for i, u := range edit.Uploads {
		name, err := pictureName(u)
		if err != nil {
			return err
		}
		names[i] = name
	}

	return runTx(ctx, store, nil, logger, func(ctx context.Context, tx db.Tx, _ *outbox) error {
		p, err := getThought(ctx, tx, volunteerID, userID)
		if err != nil {
			return err
		}
		if (edit.Submit && !canSubmit(p.Status)) || !canSave(p.Status) {
			return apperr.InvalidState(apperr.CodeThoughtNotEditable,
				"volunteer_id", volunteerID, "user_id", userID, "status", p.Status.String())
		}
		if edit.Submit {
			v, err := getVolunteer(ctx, tx, volunteerID)
			if err != nil {
				return err
			}
			if !volunteerOpen(v) {
				return apperr.InvalidState(apperr.CodeThoughtNotEditable,
					"volunteer_id", volunteerID, "user_id", userID, "volunteer_status", v.Status.String())
			}
		}

		attached, err := tx.ListPictureFilenames(ctx, volunteerID)
		if err != nil {
			return fmt.Errorf("failed to fetch pictures: %w", err)
		}
		known := make(map[string]bool, len(attached))
		for _, name := range attached {
			known[name] = true
		}
		for _, name := range edit.Pictures {
			if !known[name] {
				return apperr.NotFound(apperr.CodePictureNotExists, "volunteer_id", volunteerID, "filename", name)
			}
		}

		if err := tx.DeletePictures(ctx, volunteerID, userID); err != nil {
			return fmt.Errorf("failed to delete pictures: %w", err)
		}
		for _, name := range edit.Pictures {
			if _, err := tx.InsertPicture(ctx, db.Picture{VolunteerID: volunteerID, UserID: userID, Filename: name}); err != nil {
				return fmt.Errorf("failed to insert picture: %w", err)
			}
		}

		for i, u := range edit.Uploads {
			if err := attachUpload(ctx, tx, pictures, logger, db.Picture{VolunteerID: volunteerID, UserID: userID, Filename: names[i]}, u.Data); err != nil {
				return err
			}
		}

		p.Thought = edit.Thought
		if edit.Submit {
			p.Status = model.ThoughtWaitingForFirstAudit
		}
		if err := tx.UpdateParticipation(ctx, p); err != nil {
			return fmt.Errorf("failed to update participation: %w", err)
		}

		logger.Info("Edited thought",
			zap.Int64("volunteer_id", volunteerID),
			zap.Int64("user_id", userID),
			zap.Bool("submit", edit.Submit),
			zap.Int("pictures", len(edit.Pictures)),
			zap.Int("uploads", len(edit.Uploads)))
		return nil
	})
}

func attachUpload(ctx context.Context, tx db.PictureQueries, pictures PictureStore, logger *zap.Logger, pic db.Picture, data []byte) error {
	if _, err := tx.InsertPicture(ctx, pic); err != nil {
		return fmt.Errorf("failed to insert picture: %w", err)
	}

	first, err := tx.ClaimPictureFile(ctx, pic.Filename)
	if err != nil {
		return fmt.Errorf("failed to claim picture file: %w", err)
	}
	if !first {
		logger.Debug("Picture already stored", zap.String("filename", pic.Filename))
		return nil
	}

	exists, err := pictures.Exists(pic.Filename)
	if err != nil {
		return fmt.Errorf("failed to check picture %s: %w", pic.Filename, err)
	}
	if exists {
		return nil
	}
	if err := pictures.Save(pic.Filename, data); err != nil {
		return fmt.Errorf("failed to save picture %s: %w", pic.Filename, err)
	}
	logger.Debug("Stored picture", zap.String("filename", pic.Filename), zap.Int("bytes", len(data)))
	return nil
}

// PrepareEditThought returns actor's reflection on a volunteer with every picture of
// that volunteer, marking the ones actor currently references
func PrepareEditThought(ctx context.Context, store db.Store, logger *zap.Logger, actor model.Actor, volunteerID int64) (*ThoughtDraft, error) {
	var draft *ThoughtDraft
	err := runTx(ctx, store, nil, logger, func(ctx context.Context, tx db.Tx, _ *outbox) error {
		p, err := tx.FindParticipation(ctx, volunteerID, actor.UserID)
		if errors.Is(err, db.ErrNotFound) {
			return apperr.NotFound(apperr.CodeThoughtNotExists, "volunteer_id", volunteerID, "user_id", actor.UserID)
		}
		if err != nil {
			return fmt.Errorf("failed to fetch participation: %w", err)
		}
		if !canSave(p.Status) {
			return apperr.InvalidState(apperr.CodeThoughtNotEditable,
				"volunteer_id", volunteerID, "user_id", actor.UserID, "status", p.Status.String())
		}

		all, err := tx.ListPictureFilenames(ctx, volunteerID)
		if err != nil {
			return fmt.Errorf("failed to fetch pictures: %w", err)
		}
		mine, err := tx.ListUserPictures(ctx, volunteerID, actor.UserID)
		if err != nil {
			return fmt.Errorf("failed to fetch pictures: %w", err)
		}
		used := make(map[string]bool, len(mine))
		for _, name := range mine {
			used[name] = true
		}

		draft = &ThoughtDraft{VolunteerID: volunteerID, Status: p.Status, Thought: p.Thought}
		for _, name := range all {
			draft.Pictures = append(draft.Pictures, PictureChoice{Filename: name, Mine: used[name]})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return draft, nil
}
