package postgres

import (
	"context"
	"fmt"

	"github.com/zvmsbackend/zvms3/pkg/core/model"
	"github.com/zvmsbackend/zvms3/pkg/db"
)

const participationQuery = `
	SELECT userid, volid, status, thought, reward
	FROM user_vol
	WHERE volid = $1 AND userid = $2`

// GetParticipation retrieves a participation and holds its row until the transaction ends
func (t *Tx) GetParticipation(ctx context.Context, volunteerID, userID int64) (*db.Participation, error) {
	return t.queryParticipation(ctx, participationQuery+" FOR UPDATE", volunteerID, userID)
}

// FindParticipation retrieves a participation for read-only views
func (t *Tx) FindParticipation(ctx context.Context, volunteerID, userID int64) (*db.Participation, error) {
	return t.queryParticipation(ctx, participationQuery, volunteerID, userID)
}

func (t *Tx) queryParticipation(ctx context.Context, query string, volunteerID, userID int64) (*db.Participation, error) {
	var p db.Participation
	err := t.tx.QueryRow(ctx, query, volunteerID, userID).
		Scan(&p.UserID, &p.VolunteerID, &p.Status, &p.Thought, &p.Reward)
	if err != nil {
		return nil, fmt.Errorf("failed to query participation: %w", notFound(err))
	}
	return &p, nil
}

// ListParticipants retrieves the participations of a volunteer joined with their users
func (t *Tx) ListParticipants(ctx context.Context, volunteerID int64) ([]db.Participant, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT uv.userid, u.username, u.classid, uv.status, uv.reward
		FROM user_vol uv
		JOIN users u ON u.userid = uv.userid
		WHERE uv.volid = $1
		ORDER BY uv.userid
	`, volunteerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	var participants []db.Participant
	for rows.Next() {
		var p db.Participant
		if err := rows.Scan(&p.UserID, &p.UserName, &p.ClassID, &p.Status, &p.Reward); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participants: %w", err)
	}
	return participants, nil
}

// InsertParticipation inserts a participation; an existing (user, volunteer) pair yields db.ErrConflict
func (t *Tx) InsertParticipation(ctx context.Context, p *db.Participation) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO user_vol (userid, volid, status, thought, reward)
		VALUES ($1, $2, $3, $4, $5)
	`, p.UserID, p.VolunteerID, p.Status, p.Thought, p.Reward)
	if err != nil {
		if isUniqueViolation(err) {
			return db.ErrConflict
		}
		return fmt.Errorf("failed to insert participation: %w", err)
	}
	return nil
}

// UpdateParticipation rewrites status, thought and reward of a participation
func (t *Tx) UpdateParticipation(ctx context.Context, p *db.Participation) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE user_vol
		SET status = $3, thought = $4, reward = $5
		WHERE volid = $1 AND userid = $2
	`, p.VolunteerID, p.UserID, p.Status, p.Thought, p.Reward)
	if err != nil {
		return fmt.Errorf("failed to update participation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

// DeleteParticipation deletes one participation
func (t *Tx) DeleteParticipation(ctx context.Context, volunteerID, userID int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM user_vol WHERE volid = $1 AND userid = $2`, volunteerID, userID); err != nil {
		return fmt.Errorf("failed to delete participation: %w", err)
	}
	return nil
}

// DeleteParticipations deletes every participation of a volunteer
func (t *Tx) DeleteParticipations(ctx context.Context, volunteerID int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM user_vol WHERE volid = $1`, volunteerID); err != nil {
		return fmt.Errorf("failed to delete participations: %w", err)
	}
	return nil
}

// PromoteParticipations moves every participation of a volunteer in status from to status to
func (t *Tx) PromoteParticipations(ctx context.Context, volunteerID int64, from, to model.ThoughtStatus) (int, error) {
	tag, err := t.tx.Exec(ctx, `
		UPDATE user_vol SET status = $3
		WHERE volid = $1 AND status = $2
	`, volunteerID, from, to)
	if err != nil {
		return 0, fmt.Errorf("failed to promote participations: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

const thoughtFilterWhere = `
	WHERE uv.status <> 1
	  AND ($1::bigint = 0 OR uv.userid = $1::bigint)
	  AND ($2::smallint = 0 OR uv.status = $2::smallint)
	  AND ($3::smallint = 0 OR v.type = $3::smallint)
`

// ListThoughts returns one page of thoughts, newest volunteer first, and the total match count
func (t *Tx) ListThoughts(ctx context.Context, f db.ThoughtFilter) ([]db.ThoughtSummary, int, error) {
	args := []any{f.UserID, int(f.Status), int(f.VolType)}

	var total int
	err := t.tx.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM user_vol uv
		JOIN volunteer v ON v.id = uv.volid
	`+thoughtFilterWhere, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count thoughts: %w", err)
	}

	rows, err := t.tx.Query(ctx, `
		SELECT uv.userid, u.username, uv.volid, v.name, uv.status
		FROM user_vol uv
		JOIN volunteer v ON v.id = uv.volid
		JOIN users u ON u.userid = uv.userid
	`+thoughtFilterWhere+`
		ORDER BY uv.volid DESC, uv.userid
		LIMIT $4 OFFSET $5
	`, append(args, noLimit(f.Limit), f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query thoughts: %w", err)
	}
	defer rows.Close()

	summaries := []db.ThoughtSummary{}
	for rows.Next() {
		var s db.ThoughtSummary
		if err := rows.Scan(&s.UserID, &s.UserName, &s.VolunteerID, &s.VolunteerName, &s.Status); err != nil {
			return nil, 0, fmt.Errorf("failed to scan thought: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating thoughts: %w", err)
	}
	return summaries, total, nil
}

// GetThoughtDetail retrieves a participation joined with its user, class and volunteer
func (t *Tx) GetThoughtDetail(ctx context.Context, volunteerID, userID int64) (*db.ThoughtDetail, error) {
	var d db.ThoughtDetail
	err := t.tx.QueryRow(ctx, `
		SELECT uv.userid, u.username, u.classid, c.name,
		       uv.volid, v.name, v.type, uv.status, uv.thought, uv.reward, v.reward
		FROM user_vol uv
		JOIN users u ON u.userid = uv.userid
		JOIN class c ON c.id = u.classid
		JOIN volunteer v ON v.id = uv.volid
		WHERE uv.volid = $1 AND uv.userid = $2
	`, volunteerID, userID).Scan(&d.UserID, &d.UserName, &d.ClassID, &d.ClassName,
		&d.VolunteerID, &d.VolunteerName, &d.VolunteerType, &d.Status, &d.Thought, &d.Reward, &d.NominalReward)
	if err != nil {
		return nil, fmt.Errorf("failed to query thought: %w", notFound(err))
	}
	return &d, nil
}

// SumRewards totals the accepted rewards of a user per volunteer type
func (t *Tx) SumRewards(ctx context.Context, userID int64) (map[model.VolType]int, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT v.type, SUM(uv.reward)
		FROM user_vol uv
		JOIN volunteer v ON v.id = uv.volid
		WHERE uv.userid = $1 AND uv.status = $2
		GROUP BY v.type
	`, userID, model.ThoughtAccepted)
	if err != nil {
		return nil, fmt.Errorf("failed to sum rewards: %w", err)
	}
	defer rows.Close()

	sums := make(map[model.VolType]int)
	for rows.Next() {
		var volType model.VolType
		var sum int64
		if err := rows.Scan(&volType, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan reward sum: %w", err)
		}
		sums[volType] = int(sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reward sums: %w", err)
	}
	return sums, nil
}
