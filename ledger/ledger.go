// Package ledger records which offers were already completed, per account
// and calendar day, so re-runs never repeat a rewarded activity.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"rewardsbot/botlog"
)

// Day keys expire well after the day they cover; rollover happens in the
// key space, records themselves are never deleted.
const keyTTL = 48 * time.Hour

// Ledger is the durable at-most-once completion store. When disabled it
// answers "not done" for everything, making the bot stateless across runs.
// Every storage failure degrades to "not done" / silent no-op.
type Ledger struct {
	client  *redis.Client
	enabled bool
	log     botlog.Logger
}

func New(redisAddr string, enabled bool, log botlog.Logger) *Ledger {
	if log == nil {
		log = botlog.Nop{}
	}
	var client *redis.Client
	if enabled {
		client = redis.NewClient(&redis.Options{Addr: redisAddr})
	}
	return &Ledger{client: client, enabled: enabled, log: log}
}

// NewWithClient wires an existing client, used by tests.
func NewWithClient(client *redis.Client, enabled bool, log botlog.Logger) *Ledger {
	if log == nil {
		log = botlog.Nop{}
	}
	return &Ledger{client: client, enabled: enabled, log: log}
}

func dayKey(email string, day time.Time) string {
	return fmt.Sprintf("rewards:ledger:%s:%s", email, day.Format("2006-01-02"))
}

// IsDone reports whether the offer was already completed for the account on
// the given day. Empty offer ids are never considered done.
func (l *Ledger) IsDone(ctx context.Context, email string, day time.Time, offerID string) bool {
	if !l.enabled || offerID == "" {
		return false
	}
	done, err := l.client.HExists(ctx, dayKey(email, day), offerID).Result()
	if err != nil {
		l.log.Warnf("ledger lookup failed, treating %q as not done: %v", offerID, err)
		return false
	}
	return done
}

// MarkDone records a completed offer. Idempotent; no-op for empty ids or
// when the ledger is disabled.
func (l *Ledger) MarkDone(ctx context.Context, email string, day time.Time, offerID string) {
	if !l.enabled || offerID == "" {
		return
	}
	key := dayKey(email, day)
	if err := l.client.HSet(ctx, key, offerID, "1").Err(); err != nil {
		l.log.Warnf("ledger write for %q failed: %v", offerID, err)
		return
	}
	if err := l.client.Expire(ctx, key, keyTTL).Err(); err != nil {
		l.log.Warnf("ledger expiry for %s failed: %v", key, err)
	}
}

// FilterPending returns the subset of offer ids not yet marked done.
func (l *Ledger) FilterPending(ctx context.Context, email string, day time.Time, offerIDs []string) []string {
	pending := make([]string, 0, len(offerIDs))
	for _, id := range offerIDs {
		if !l.IsDone(ctx, email, day, id) {
			pending = append(pending, id)
		}
	}
	return pending
}

// Close releases the underlying client.
func (l *Ledger) Close() error {
	if l.client == nil {
		return nil
	}
	return l.client.Close()
}
