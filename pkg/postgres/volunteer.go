package postgres

import (
	"context"
	"fmt"

	"github.com/zvmsbackend/zvms3/pkg/core/model"
	"github.com/zvmsbackend/zvms3/pkg/db"
)

const volunteerColumns = `id, name, description, status, holder, type, reward, scheduled_on`

func scanVolunteer(row interface{ Scan(...any) error }) (*db.Volunteer, error) {
	var v db.Volunteer
	if err := row.Scan(&v.ID, &v.Name, &v.Description, &v.Status, &v.HolderID, &v.Type, &v.Reward, &v.Time); err != nil {
		return nil, err
	}
	return &v, nil
}

// InsertVolunteer inserts a volunteer and sets its generated id
func (t *Tx) InsertVolunteer(ctx context.Context, v *db.Volunteer) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO volunteer (name, description, status, holder, type, reward, scheduled_on)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, v.Name, v.Description, v.Status, v.HolderID, v.Type, v.Reward, v.Time).Scan(&v.ID)
	if err != nil {
		return fmt.Errorf("failed to insert volunteer: %w", err)
	}
	return nil
}

// GetVolunteer retrieves a volunteer without locking it
func (t *Tx) GetVolunteer(ctx context.Context, volunteerID int64) (*db.Volunteer, error) {
	v, err := scanVolunteer(t.tx.QueryRow(ctx,
		`SELECT `+volunteerColumns+` FROM volunteer WHERE id = $1`, volunteerID))
	if err != nil {
		return nil, fmt.Errorf("failed to query volunteer %d: %w", volunteerID, notFound(err))
	}
	return v, nil
}

// LockVolunteer retrieves a volunteer and holds a row lock until the transaction ends
func (t *Tx) LockVolunteer(ctx context.Context, volunteerID int64) (*db.Volunteer, error) {
	v, err := scanVolunteer(t.tx.QueryRow(ctx,
		`SELECT `+volunteerColumns+` FROM volunteer WHERE id = $1 FOR UPDATE`, volunteerID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock volunteer %d: %w", volunteerID, notFound(err))
	}
	return v, nil
}

// UpdateVolunteer rewrites the editable fields of a volunteer
func (t *Tx) UpdateVolunteer(ctx context.Context, v *db.Volunteer) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE volunteer
		SET name = $2, description = $3, type = $4, reward = $5, scheduled_on = $6
		WHERE id = $1
	`, v.ID, v.Name, v.Description, v.Type, v.Reward, v.Time)
	if err != nil {
		return fmt.Errorf("failed to update volunteer %d: %w", v.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

// SetVolunteerStatus sets the status of a volunteer
func (t *Tx) SetVolunteerStatus(ctx context.Context, volunteerID int64, status model.VolStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE volunteer SET status = $2 WHERE id = $1`, volunteerID, status)
	if err != nil {
		return fmt.Errorf("failed to set status of volunteer %d: %w", volunteerID, err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

// DeleteVolunteer deletes a volunteer; quotas, participations and pictures cascade
func (t *Tx) DeleteVolunteer(ctx context.Context, volunteerID int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM volunteer WHERE id = $1`, volunteerID)
	if err != nil {
		return fmt.Errorf("failed to delete volunteer %d: %w", volunteerID, err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

const volunteerFilterWhere = `
	WHERE ($1::text = '' OR strpos(v.name, $1::text) > 0)
	  AND ($2::bigint = 0
	       OR v.holder = $2::bigint
	       OR EXISTS (SELECT 1 FROM user_vol uv WHERE uv.volid = v.id AND uv.userid = $2::bigint)
	       OR EXISTS (SELECT 1 FROM class_vol cv WHERE cv.volid = v.id AND cv.classid = $3::bigint)
	       OR ($4::boolean AND u.classid = $3::bigint))
`

// ListVolunteers returns one page of volunteers, newest first, and the total match count
func (t *Tx) ListVolunteers(ctx context.Context, f db.VolunteerFilter) ([]db.VolunteerSummary, int, error) {
	args := []any{f.NameContains, f.RelatedUserID, f.RelatedClassID, f.IncludeClassmates}

	var total int
	err := t.tx.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM volunteer v
		LEFT JOIN users u ON u.userid = v.holder
	`+volunteerFilterWhere, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count volunteers: %w", err)
	}

	rows, err := t.tx.Query(ctx, `
		SELECT v.id, v.name, v.status, v.holder, COALESCE(u.username, ''), v.type
		FROM volunteer v
		LEFT JOIN users u ON u.userid = v.holder
	`+volunteerFilterWhere+`
		ORDER BY v.id DESC
		LIMIT $5 OFFSET $6
	`, append(args, noLimit(f.Limit), f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query volunteers: %w", err)
	}
	defer rows.Close()

	summaries := []db.VolunteerSummary{}
	for rows.Next() {
		var s db.VolunteerSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Status, &s.HolderID, &s.HolderName, &s.Type); err != nil {
			return nil, 0, fmt.Errorf("failed to scan volunteer: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating volunteers: %w", err)
	}

	return summaries, total, nil
}
