package postgres

import (
	"context"
	"fmt"

	"github.com/zvmsbackend/zvms3/pkg/db"
)

// ListClassQuotas retrieves the quota rows of a volunteer ordered by class
func (t *Tx) ListClassQuotas(ctx context.Context, volunteerID int64) ([]db.ClassQuota, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT classid, volid, max
		FROM class_vol
		WHERE volid = $1
		ORDER BY classid
	`, volunteerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query class quotas: %w", err)
	}
	defer rows.Close()

	var quotas []db.ClassQuota
	for rows.Next() {
		var q db.ClassQuota
		if err := rows.Scan(&q.ClassID, &q.VolunteerID, &q.Max); err != nil {
			return nil, fmt.Errorf("failed to scan class quota: %w", err)
		}
		quotas = append(quotas, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating class quotas: %w", err)
	}
	return quotas, nil
}

// InsertClassQuotas inserts quota rows; a duplicate (volunteer, class) pair yields db.ErrConflict
func (t *Tx) InsertClassQuotas(ctx context.Context, quotas []db.ClassQuota) error {
	for _, q := range quotas {
		_, err := t.tx.Exec(ctx, `
			INSERT INTO class_vol (volid, classid, max)
			VALUES ($1, $2, $3)
		`, q.VolunteerID, q.ClassID, q.Max)
		if err != nil {
			if isUniqueViolation(err) {
				return db.ErrConflict
			}
			return fmt.Errorf("failed to insert class quota: %w", err)
		}
	}
	return nil
}

// DeleteClassQuotas deletes every quota row of a volunteer
func (t *Tx) DeleteClassQuotas(ctx context.Context, volunteerID int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM class_vol WHERE volid = $1`, volunteerID); err != nil {
		return fmt.Errorf("failed to delete class quotas: %w", err)
	}
	return nil
}

// LockClassQuota retrieves a quota row and holds it until the transaction ends
func (t *Tx) LockClassQuota(ctx context.Context, volunteerID, classID int64) (*db.ClassQuota, error) {
	var q db.ClassQuota
	err := t.tx.QueryRow(ctx, `
		SELECT classid, volid, max
		FROM class_vol
		WHERE volid = $1 AND classid = $2
		FOR UPDATE
	`, volunteerID, classID).Scan(&q.ClassID, &q.VolunteerID, &q.Max)
	if err != nil {
		return nil, fmt.Errorf("failed to lock class quota: %w", notFound(err))
	}
	return &q, nil
}

// CountClassParticipants counts participations of a volunteer held by members of a class
func (t *Tx) CountClassParticipants(ctx context.Context, volunteerID, classID int64) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM user_vol uv
		JOIN users u ON u.userid = uv.userid
		WHERE uv.volid = $1 AND u.classid = $2
	`, volunteerID, classID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count class participants: %w", err)
	}
	return n, nil
}
