package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/samwel-gachiri/agribackup-sub003/internal/model"
)

// QueueStore persists the pending-notarization queue and backfills the
// transaction reference onto the target record on completion.
type QueueStore interface {
	Enqueue(ctx context.Context, item model.PendingNotarization) error
	ListDue(ctx context.Context, now time.Time, maxAttempts, limit int) ([]model.PendingNotarization, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, txRef string, completedAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, attempts int, nextAttempt time.Time, lastError string) error
}

// Notarizer submits queued events to the ledger with bounded retry. The
// queue itself is the operational visibility surface: anything still
// uncompleted is observable via the pending listing.
type Notarizer struct {
	client      Client
	store       QueueStore
	log         zerolog.Logger
	interval    time.Duration
	callTimeout time.Duration
	baseBackoff time.Duration
	maxAttempts int
	batchSize   int
}

func NewNotarizer(client Client, store QueueStore, log zerolog.Logger, interval, callTimeout time.Duration, maxAttempts int) *Notarizer {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if callTimeout <= 0 {
		callTimeout = 5 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &Notarizer{
		client:      client,
		store:       store,
		log:         log,
		interval:    interval,
		callTimeout: callTimeout,
		baseBackoff: interval,
		maxAttempts: maxAttempts,
		batchSize:   50,
	}
}

// Submit queues the event and makes one immediate attempt. The returned
// reference is nil when the ledger was unavailable; the queue worker
// backfills it later. Submit never returns a ledger outage as an error.
func (n *Notarizer) Submit(ctx context.Context, item model.PendingNotarization) (*string, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	item.NextAttemptAt = time.Now()
	if err := n.store.Enqueue(ctx, item); err != nil {
		return nil, err
	}

	txRef, err := n.attempt(ctx, item)
	if err != nil {
		n.log.Warn().Err(err).
			Str("target_kind", string(item.TargetKind)).
			Str("target_id", item.TargetID.String()).
			Msg("ledger notarization deferred to retry queue")
		return nil, nil
	}
	return &txRef, nil
}

// Run drains the queue on a fixed interval until the context ends.
func (n *Notarizer) Run(ctx context.Context) {
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.processDue(ctx)
		}
	}
}

func (n *Notarizer) processDue(ctx context.Context) {
	due, err := n.store.ListDue(ctx, time.Now(), n.maxAttempts, n.batchSize)
	if err != nil {
		n.log.Error().Err(err).Msg("listing due notarizations failed")
		return
	}
	for _, item := range due {
		if _, err := n.attempt(ctx, item); err != nil {
			n.log.Warn().Err(err).
				Str("id", item.ID.String()).
				Int("attempts", item.Attempts+1).
				Msg("notarization attempt failed")
		}
	}
}

func (n *Notarizer) attempt(ctx context.Context, item model.PendingNotarization) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, n.callTimeout)
	defer cancel()

	txRef, err := n.client.RecordEvent(callCtx, item.EventType, item.PayloadHash, item.Fields)
	if err != nil {
		attempts := item.Attempts + 1
		next := time.Now().Add(n.backoff(attempts))
		if storeErr := n.store.MarkFailed(ctx, item.ID, attempts, next, err.Error()); storeErr != nil {
			n.log.Error().Err(storeErr).Str("id", item.ID.String()).Msg("recording notarization failure")
		}
		return "", err
	}

	if err := n.store.MarkCompleted(ctx, item.ID, txRef, time.Now()); err != nil {
		n.log.Error().Err(err).Str("id", item.ID.String()).Msg("recording notarization completion")
		return "", err
	}
	return txRef, nil
}

func (n *Notarizer) backoff(attempts int) time.Duration {
	d := n.baseBackoff
	for i := 1; i < attempts && d < 10*time.Minute; i++ {
		d *= 2
	}
	if d > 10*time.Minute {
		d = 10 * time.Minute
	}
	return d
}
