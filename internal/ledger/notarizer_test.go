package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/samwel-gachiri/agribackup-sub003/internal/model"
)

type stubClient struct {
	err   error
	txRef string
	calls int
}

func (c *stubClient) RecordEvent(context.Context, string, string, datatypes.JSONMap) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return c.txRef, nil
}

type memQueue struct {
	items map[uuid.UUID]*model.PendingNotarization
}

func newMemQueue() *memQueue {
	return &memQueue{items: make(map[uuid.UUID]*model.PendingNotarization)}
}

func (q *memQueue) Enqueue(_ context.Context, item model.PendingNotarization) error {
	q.items[item.ID] = &item
	return nil
}

func (q *memQueue) ListDue(_ context.Context, now time.Time, maxAttempts, limit int) ([]model.PendingNotarization, error) {
	var out []model.PendingNotarization
	for _, item := range q.items {
		if item.CompletedAt == nil && item.Attempts < maxAttempts && !item.NextAttemptAt.After(now) {
			out = append(out, *item)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (q *memQueue) MarkCompleted(_ context.Context, id uuid.UUID, txRef string, completedAt time.Time) error {
	item, ok := q.items[id]
	if !ok {
		return errors.New("unknown item")
	}
	item.TxRef = &txRef
	item.CompletedAt = &completedAt
	return nil
}

func (q *memQueue) MarkFailed(_ context.Context, id uuid.UUID, attempts int, nextAttempt time.Time, lastError string) error {
	item, ok := q.items[id]
	if !ok {
		return errors.New("unknown item")
	}
	item.Attempts = attempts
	item.NextAttemptAt = nextAttempt
	item.LastError = &lastError
	return nil
}

func newItem() model.PendingNotarization {
	return model.PendingNotarization{
		TargetKind:  model.NotarizationTargetTransfer,
		TargetID:    uuid.New(),
		EventType:   "TRANSFER_CONFIRMED",
		PayloadHash: "deadbeef",
	}
}

func TestSubmitReturnsRefWhenLedgerIsUp(t *testing.T) {
	queue := newMemQueue()
	client := &stubClient{txRef: "0xabc"}
	n := NewNotarizer(client, queue, zerolog.Nop(), time.Minute, time.Second, 5)

	ref, err := n.Submit(context.Background(), newItem())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if ref == nil || *ref != "0xabc" {
		t.Fatalf("ref = %v, want 0xabc", ref)
	}

	if len(queue.items) != 1 {
		t.Fatalf("queued items = %d, want 1", len(queue.items))
	}
	for _, item := range queue.items {
		if item.CompletedAt == nil {
			t.Error("immediate success left the item uncompleted")
		}
		if item.TxRef == nil || *item.TxRef != "0xabc" {
			t.Errorf("stored tx ref = %v, want 0xabc", item.TxRef)
		}
	}
}

func TestSubmitDefersOnOutage(t *testing.T) {
	queue := newMemQueue()
	client := &stubClient{err: ErrUnavailable}
	n := NewNotarizer(client, queue, zerolog.Nop(), time.Minute, time.Second, 5)

	ref, err := n.Submit(context.Background(), newItem())
	if err != nil {
		t.Fatalf("submit must not surface an outage, got %v", err)
	}
	if ref != nil {
		t.Fatalf("ref = %v, want nil while deferred", *ref)
	}

	for _, item := range queue.items {
		if item.CompletedAt != nil {
			t.Error("failed attempt marked completed")
		}
		if item.Attempts != 1 {
			t.Errorf("attempts = %d, want 1", item.Attempts)
		}
		if item.LastError == nil {
			t.Error("failed attempt recorded no error")
		}
		if !item.NextAttemptAt.After(time.Now()) {
			t.Error("failed attempt not scheduled into the future")
		}
	}
}

func TestProcessDueCompletesQueuedItems(t *testing.T) {
	queue := newMemQueue()
	client := &stubClient{err: ErrUnavailable}
	n := NewNotarizer(client, queue, zerolog.Nop(), time.Minute, time.Second, 5)

	if _, err := n.Submit(context.Background(), newItem()); err != nil {
		t.Fatal(err)
	}

	// Ledger comes back; force the retry window open.
	client.err = nil
	client.txRef = "0xretry"
	for _, item := range queue.items {
		item.NextAttemptAt = time.Now().Add(-time.Second)
	}

	n.processDue(context.Background())

	for _, item := range queue.items {
		if item.CompletedAt == nil {
			t.Fatal("retried item still uncompleted")
		}
		if item.TxRef == nil || *item.TxRef != "0xretry" {
			t.Errorf("tx ref = %v, want 0xretry", item.TxRef)
		}
	}
}

func TestListDueSkipsExhaustedItems(t *testing.T) {
	queue := newMemQueue()
	client := &stubClient{err: ErrUnavailable}
	n := NewNotarizer(client, queue, zerolog.Nop(), time.Minute, time.Second, 3)

	if _, err := n.Submit(context.Background(), newItem()); err != nil {
		t.Fatal(err)
	}
	for _, item := range queue.items {
		item.Attempts = 3
		item.NextAttemptAt = time.Now().Add(-time.Second)
	}

	calls := client.calls
	n.processDue(context.Background())
	if client.calls != calls {
		t.Error("exhausted item was retried past the attempt limit")
	}
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	n := NewNotarizer(&stubClient{}, newMemQueue(), zerolog.Nop(), 30*time.Second, time.Second, 10)

	if got := n.backoff(1); got != 30*time.Second {
		t.Errorf("backoff(1) = %s, want 30s", got)
	}
	if got := n.backoff(2); got != time.Minute {
		t.Errorf("backoff(2) = %s, want 1m", got)
	}
	prev := time.Duration(0)
	for attempts := 1; attempts <= 12; attempts++ {
		d := n.backoff(attempts)
		if d < prev {
			t.Fatalf("backoff shrank at attempt %d: %s < %s", attempts, d, prev)
		}
		if d > 10*time.Minute {
			t.Fatalf("backoff(%d) = %s exceeds the cap", attempts, d)
		}
		prev = d
	}
}
