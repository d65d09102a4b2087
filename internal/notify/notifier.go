package notify

import (
	"context"
	"time"

	"github.com/lynxops/sentinel/internal/store"
)

// OutboxNotifier enqueues alerts for the outbox worker to deliver. It
// satisfies the incident controller's Notifier interface.
type OutboxNotifier struct {
	Store   store.Store
	Channel string
}

func (n *OutboxNotifier) Notify(ctx context.Context, subjectID string, body string) error {
	_, err := Enqueue(ctx, n.Store, subjectID, n.Channel, body, time.Now())
	return err
}
