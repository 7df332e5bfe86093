package postgres

import (
	"context"
	"fmt"

	"github.com/zvmsbackend/zvms3/pkg/db"
)

// InsertNotice stores a notice and links it to its recipient user or class
func (t *Tx) InsertNotice(ctx context.Context, n *db.Notice) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO notice (title, content, sender, expire)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, n.Title, n.Content, n.SenderID, n.Expire.UTC()).Scan(&n.ID)
	if err != nil {
		return fmt.Errorf("failed to insert notice: %w", err)
	}

	link := `INSERT INTO user_notice (userid, noticeid) VALUES ($1, $2)`
	if n.Broadcast {
		link = `INSERT INTO class_notice (classid, noticeid) VALUES ($1, $2)`
	}
	_, err = t.tx.Exec(ctx, link, n.TargetID, n.ID)
	if err != nil {
		return fmt.Errorf("failed to insert notice recipient: %w", err)
	}
	return nil
}
