package postgres

import (
	"context"
	"fmt"

	"github.com/zvmsbackend/zvms3/pkg/db"
)

func (t *Tx) queryFilenames(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pictures: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan picture: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pictures: %w", err)
	}
	return names, nil
}

// ListPictureFilenames returns the distinct filenames attached to a volunteer
func (t *Tx) ListPictureFilenames(ctx context.Context, volunteerID int64) ([]string, error) {
	return t.queryFilenames(ctx, `
		SELECT DISTINCT filename FROM picture WHERE volid = $1 ORDER BY filename
	`, volunteerID)
}

// ListUserPictures returns the filenames a user attached to a volunteer
func (t *Tx) ListUserPictures(ctx context.Context, volunteerID, userID int64) ([]string, error) {
	return t.queryFilenames(ctx, `
		SELECT filename FROM picture WHERE volid = $1 AND userid = $2 ORDER BY filename
	`, volunteerID, userID)
}

// InsertPicture inserts a picture reference, doing nothing if it already exists
func (t *Tx) InsertPicture(ctx context.Context, p db.Picture) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
		INSERT INTO picture (volid, userid, filename)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, p.VolunteerID, p.UserID, p.Filename)
	if err != nil {
		return false, fmt.Errorf("failed to insert picture: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// DeletePictures deletes the picture references of one user on a volunteer
func (t *Tx) DeletePictures(ctx context.Context, volunteerID, userID int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM picture WHERE volid = $1 AND userid = $2`, volunteerID, userID); err != nil {
		return fmt.Errorf("failed to delete pictures: %w", err)
	}
	return nil
}

// DeleteVolunteerPictures deletes every picture reference of a volunteer
func (t *Tx) DeleteVolunteerPictures(ctx context.Context, volunteerID int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM picture WHERE volid = $1`, volunteerID); err != nil {
		return fmt.Errorf("failed to delete volunteer pictures: %w", err)
	}
	return nil
}

// ClaimPictureFile records that a physical object exists. Concurrent claimers of
// the same name block on the primary key until the first one ends; only one sees true.
func (t *Tx) ClaimPictureFile(ctx context.Context, filename string) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
		INSERT INTO picture_file (filename) VALUES ($1)
		ON CONFLICT DO NOTHING
	`, filename)
	if err != nil {
		return false, fmt.Errorf("failed to claim picture file: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
