package handlers

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Lina3386/moliya-bot/internal/chat"
)

// Dispatcher runs updates one at a time per user, in arrival order.
// Different users are processed concurrently.
type Dispatcher struct {
	handler *BotHandler
	log     *logrus.Logger

	mu      sync.Mutex
	queues  map[int64][]chat.Update
	closed  bool
	workers sync.WaitGroup
}

func NewDispatcher(handler *BotHandler, log *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		handler: handler,
		log:     log,
		queues:  make(map[int64][]chat.Update),
	}
}

// Dispatch queues the update; a worker exists for a user only while its queue is non-empty.
func (d *Dispatcher) Dispatch(ctx context.Context, u chat.Update) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		d.log.WithField("user_id", u.UserID).Warn("dispatcher closed, update dropped")
		return
	}
	queue, running := d.queues[u.UserID]
	d.queues[u.UserID] = append(queue, u)
	if running {
		return
	}
	d.workers.Add(1)
	go d.run(ctx, u.UserID)
}

func (d *Dispatcher) run(ctx context.Context, userID int64) {
	defer d.workers.Done()
	for {
		d.mu.Lock()
		queue := d.queues[userID]
		if len(queue) == 0 {
			delete(d.queues, userID)
			d.mu.Unlock()
			return
		}
		u := queue[0]
		d.queues[userID] = queue[1:]
		d.mu.Unlock()

		d.process(ctx, u)
	}
}

func (d *Dispatcher) process(ctx context.Context, u chat.Update) {
	defer func() {
		if r := recover(); r != nil {
			d.log.WithFields(logrus.Fields{
				"user_id": u.UserID,
				"panic":   r,
				"stack":   string(debug.Stack()),
			}).Error("💥 panic while handling update")
			d.handler.recoverUser(ctx, u)
		}
	}()
	d.handler.HandleUpdate(ctx, u)
}

// Close stops accepting updates and waits for queued ones to finish.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.workers.Wait()
	d.log.Info("⏹️ dispatcher drained")
	return nil
}
