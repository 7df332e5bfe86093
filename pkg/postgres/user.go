package postgres

import (
	"context"
	"fmt"

	"github.com/zvmsbackend/zvms3/pkg/core/model"
	"github.com/zvmsbackend/zvms3/pkg/db"
)

// GetUser retrieves a user by id
func (t *Tx) GetUser(ctx context.Context, userID int64) (*db.User, error) {
	var u db.User
	err := t.tx.QueryRow(ctx, `
		SELECT userid, username, permission, classid
		FROM users
		WHERE userid = $1
	`, userID).Scan(&u.ID, &u.Name, &u.Permission, &u.ClassID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user %d: %w", userID, notFound(err))
	}
	return &u, nil
}

// GetUserByName retrieves a user by username
func (t *Tx) GetUserByName(ctx context.Context, username string) (*db.User, error) {
	var u db.User
	err := t.tx.QueryRow(ctx, `
		SELECT userid, username, permission, classid
		FROM users
		WHERE username = $1
	`, username).Scan(&u.ID, &u.Name, &u.Permission, &u.ClassID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user %q: %w", username, notFound(err))
	}
	return &u, nil
}

// GetClass retrieves a class by id
func (t *Tx) GetClass(ctx context.Context, classID int64) (*db.Class, error) {
	var c db.Class
	err := t.tx.QueryRow(ctx, `SELECT id, name FROM class WHERE id = $1`, classID).Scan(&c.ID, &c.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to query class %d: %w", classID, notFound(err))
	}
	return &c, nil
}

// CountClassMembers locks the class row against new members, then counts them.
// FOR UPDATE conflicts with the key-share lock a users insert takes on its class.
func (t *Tx) CountClassMembers(ctx context.Context, classID int64) (int, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `SELECT id FROM class WHERE id = $1 FOR UPDATE`, classID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to lock class %d: %w", classID, notFound(err))
	}

	var n int
	if err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE classid = $1`, classID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count members of class %d: %w", classID, err)
	}
	return n, nil
}

// FindClassSecretary returns the lowest-id class member holding the class role
func (t *Tx) FindClassSecretary(ctx context.Context, classID int64) (*db.User, error) {
	var u db.User
	err := t.tx.QueryRow(ctx, `
		SELECT userid, username, permission, classid
		FROM users
		WHERE classid = $1 AND permission & $2 <> 0
		ORDER BY userid
		LIMIT 1
	`, classID, int(model.PermissionClass)).Scan(&u.ID, &u.Name, &u.Permission, &u.ClassID)
	if err != nil {
		return nil, fmt.Errorf("failed to query secretary of class %d: %w", classID, notFound(err))
	}
	return &u, nil
}
