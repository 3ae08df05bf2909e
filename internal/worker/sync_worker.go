package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"rentbook/internal/amqp"
	"rentbook/internal/sheets"
	"rentbook/internal/storage"
)

// Consumer delivers change messages until ctx is cancelled.
type Consumer interface {
	ConsumeChanges(ctx context.Context, handler amqp.Handler) error
}

// SyncWorker copies record changes from the change feed into a sheets.Mirror.
type SyncWorker struct {
	store  storage.DocumentStore
	mirror sheets.Mirror
}

// NewSyncWorker creates a worker. store may be nil, in which case Resync is
// unavailable and only live changes are mirrored.
func NewSyncWorker(store storage.DocumentStore, mirror sheets.Mirror) *SyncWorker {
	return &SyncWorker{store: store, mirror: mirror}
}

// HandleChange applies a single change message to the mirror.
func (w *SyncWorker) HandleChange(ctx context.Context, msg *amqp.RecordChangedMessage) error {
	slog.InfoContext(ctx, "Processing change message",
		"component", "worker",
		"collection", msg.Collection,
		"record_id", msg.ID,
		"op", msg.Op)

	switch msg.Op {
	case amqp.OpUpsert:
		if err := w.mirror.Upsert(ctx, msg.Collection, msg.ID, msg.Fields); err != nil {
			return fmt.Errorf("mirror upsert %s/%s: %w", msg.Collection, msg.ID, err)
		}
	case amqp.OpDelete:
		if err := w.mirror.Remove(ctx, msg.Collection, msg.ID); err != nil {
			return fmt.Errorf("mirror remove %s/%s: %w", msg.Collection, msg.ID, err)
		}
	default:
		return fmt.Errorf("unknown change op %q", msg.Op)
	}
	return nil
}

// Resync rewrites every mirrored collection from the store. Collections are
// attempted independently and their errors joined.
func (w *SyncWorker) Resync(ctx context.Context) error {
	if w.store == nil {
		return errors.New("resync requires a document store")
	}

	var errs []error
	for _, coll := range sheets.Collections() {
		docs, err := w.store.List(ctx, coll)
		if err != nil {
			errs = append(errs, fmt.Errorf("list %s: %w", coll, err))
			continue
		}
		docs = slices.DeleteFunc(docs, func(d storage.Document) bool {
			if d.Err != nil {
				slog.ErrorContext(ctx, "Unreadable document left out of resync", "component", "worker",
					"collection", coll, "id", d.ID, "error", d.Err)
			}
			return d.Err != nil
		})
		if err := w.mirror.Replace(ctx, coll, docs); err != nil {
			errs = append(errs, fmt.Errorf("replace %s: %w", coll, err))
			continue
		}
		slog.InfoContext(ctx, "Collection resynced", "component", "worker", "collection", coll, "count", len(docs))
	}
	return errors.Join(errs...)
}

// Run consumes the change feed and, when interval is positive, resyncs
// periodically as a backstop for lost messages. It returns when ctx ends.
func (w *SyncWorker) Run(ctx context.Context, consumer Consumer, interval time.Duration) error {
	if interval > 0 && w.store != nil {
		go w.resyncLoop(ctx, interval)
	}
	err := consumer.ConsumeChanges(ctx, w.HandleChange)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *SyncWorker) resyncLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Resync(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic resync failed", "component", "worker", "error", err)
			}
		}
	}
}
