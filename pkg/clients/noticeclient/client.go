// Package noticeclient stores notifications raised by the services without making
// the caller wait. Notices are queued and written in batches by one worker.
package noticeclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zvmsbackend/zvms3/pkg/core/model"
	"github.com/zvmsbackend/zvms3/pkg/db"
)

const maxBatch = 32

var now = time.Now

// Client is a fire-and-forget notification sink backed by the store
type Client struct {
	store  db.Store
	logger *zap.Logger
	ttl    time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan model.Notice
	done   chan struct{}
}

// New starts the worker. Notices expire ttl after they are written; at most size
// notices wait in the queue.
func New(store db.Store, logger *zap.Logger, ttl time.Duration, size int) *Client {
	c := &Client{
		store:  store,
		logger: logger,
		ttl:    ttl,
		queue:  make(chan model.Notice, size),
		done:   make(chan struct{}),
	}
	go c.run()
	return c
}

// Notify queues a notice. It never blocks: when the queue is full or the client is
// closed the notice is dropped and logged.
func (c *Client) Notify(n model.Notice) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		c.logger.Warn("Dropped notice, client closed",
			zap.String("title", n.Title),
			zap.Int64("target_id", n.TargetID))
		return
	}

	select {
	case c.queue <- n:
	default:
		c.logger.Warn("Dropped notice, queue full",
			zap.String("title", n.Title),
			zap.Int64("target_id", n.TargetID),
			zap.Bool("broadcast", n.Broadcast))
	}
}

// Close stops accepting notices and waits until the queued ones are written
func (c *Client) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.queue)
	}
	c.mu.Unlock()
	<-c.done
}

func (c *Client) run() {
	defer close(c.done)

	for n := range c.queue {
		batch := []model.Notice{n}
	fill:
		for len(batch) < maxBatch {
			select {
			case next, ok := <-c.queue:
				if !ok {
					break fill
				}
				batch = append(batch, next)
			default:
				break fill
			}
		}
		c.write(batch)
	}
}

func (c *Client) write(batch []model.Notice) {
	batchID := uuid.NewString()
	expire := now().Add(c.ttl)

	err := c.store.InTx(context.Background(), func(ctx context.Context, tx db.Tx) error {
		for _, n := range batch {
			row := &db.Notice{
				Title:     n.Title,
				Content:   n.Body,
				SenderID:  n.SenderID,
				Expire:    expire,
				TargetID:  n.TargetID,
				Broadcast: n.Broadcast,
			}
			if err := tx.InsertNotice(ctx, row); err != nil {
				return fmt.Errorf("failed to insert notice: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		c.logger.Error("Failed to store notices",
			zap.String("batch_id", batchID),
			zap.Int("count", len(batch)),
			zap.Error(err))
		return
	}

	c.logger.Debug("Stored notices",
		zap.String("batch_id", batchID),
		zap.Int("count", len(batch)))
}
