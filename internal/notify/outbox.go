package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lynxops/sentinel/internal/store"
)

// Poster delivers one rendered notification to a channel. Implementations
// wrap chat webhooks or pager APIs; tests substitute fakes.
type Poster interface {
	Post(channel string, body string) error
}

const (
	StatusPending = "pending"
	StatusSent    = "sent"
)

// Enqueue stores a pending notification due immediately. Delivery happens
// out of band via ProcessDue, so callers on the incident path never block
// on a flaky webhook.
func Enqueue(ctx context.Context, st store.Store, subjectID string, channel string, body string, now time.Time) (string, error) {
	if st == nil {
		return "", fmt.Errorf("missing store")
	}
	at := now.UTC().Format(time.RFC3339)
	rec := store.NotificationRecord{
		NotificationID: uuid.NewString(),
		SubjectID:      subjectID,
		Channel:        channel,
		Body:           body,
		Status:         StatusPending,
		NextAttemptAt:  at,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
	if err := st.PutNotification(ctx, rec); err != nil {
		return "", fmt.Errorf("enqueue notification: %w", err)
	}
	return rec.NotificationID, nil
}

// ProcessDue sends due pending notifications and updates their records.
// It applies exponential backoff when posting fails.
func ProcessDue(ctx context.Context, st store.Store, poster Poster, now time.Time, limit int) (int, error) {
	if st == nil {
		return 0, fmt.Errorf("missing store")
	}
	if poster == nil {
		return 0, nil
	}
	if limit <= 0 {
		limit = 50
	}

	due, err := st.ListNotificationsDue(ctx, now.UTC().Format(time.RFC3339), limit)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, rec := range due {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		if rec.Status != StatusPending {
			continue
		}

		if err := poster.Post(rec.Channel, rec.Body); err != nil {
			next := nextAttempt(rec.AttemptCount)
			rec.AttemptCount++
			rec.NextAttemptAt = now.UTC().Add(next).Format(time.RFC3339)
			msg := err.Error()
			rec.LastError = &msg
			rec.UpdatedAt = now.UTC().Format(time.RFC3339)
			if err := st.PutNotification(ctx, rec); err != nil {
				return processed, err
			}
			processed++
			continue
		}

		rec.Status = StatusSent
		sentAt := now.UTC().Format(time.RFC3339)
		rec.SentAt = &sentAt
		rec.UpdatedAt = sentAt
		if err := st.PutNotification(ctx, rec); err != nil {
			return processed, err
		}
		processed++
	}

	return processed, nil
}

func nextAttempt(attemptCount int) time.Duration {
	// 5s, 10s, 20s, 40s, 80s, 160s, ... capped at 5m.
	base := 5 * time.Second
	max := 5 * time.Minute
	if attemptCount <= 0 {
		return base
	}
	// Large counts would overflow the shift into a negative delay.
	if attemptCount >= 10 {
		return max
	}
	d := base << attemptCount
	if d > max {
		return max
	}
	return d
}

// RunWorker polls and processes due notifications until ctx is cancelled.
func RunWorker(ctx context.Context, st store.Store, poster Poster, pollInterval time.Duration) {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			_, _ = ProcessDue(ctx, st, poster, now, 25)
		}
	}
}
