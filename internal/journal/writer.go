// Package journal persists the ledger's transaction log in the background.
package journal

import (
	"context"
	"sync/atomic"
	"time"

	"papertrader/internal/ledger"

	"go.uber.org/zap"
)

// Store is the durable side of the journal.
type Store interface {
	SaveTransaction(ctx context.Context, tx ledger.Transaction) error
	DeleteAllTransactions(ctx context.Context) error
}

// op is a queued insert tagged with the reset generation it belongs to.
type op struct {
	tx  ledger.Transaction
	gen uint64
}

// Writer implements ledger.Journal. Record only enqueues and may drop when
// the queue is full. Reset bumps a generation counter instead of queueing,
// so it is never lost; the worker wipes the store once per new generation
// and skips inserts queued before it.
type Writer struct {
	ops     chan op
	wake    chan struct{}
	gen     atomic.Uint64
	store   Store
	timeout time.Duration
	dropped atomic.Int64
	done    chan struct{}
	logger  *zap.Logger

	// worker-owned
	applied uint64
}

func NewWriter(store Store, queueSize int, logger *zap.Logger) *Writer {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Writer{
		ops:     make(chan op, queueSize),
		wake:    make(chan struct{}, 1),
		store:   store,
		timeout: 2 * time.Second,
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// Record queues tx for persistence. It never blocks.
func (w *Writer) Record(tx ledger.Transaction) {
	select {
	case w.ops <- op{tx: tx, gen: w.gen.Load()}:
	default:
		w.dropped.Add(1)
		w.logger.Warn("journal queue full, dropping transaction",
			zap.String("tx_id", tx.ID.String()))
	}
}

// Reset schedules deletion of every persisted transaction. It never blocks.
func (w *Writer) Reset() {
	w.gen.Add(1)
	select {
	case w.wake <- struct{}{}:
	default: // a wake-up is already pending
	}
}

// StartWorker applies queued operations until ctx is done, then flushes
// what is still queued and closes Done.
func (w *Writer) StartWorker(ctx context.Context) {
	go func() {
		defer close(w.done)
		for {
			select {
			case o := <-w.ops:
				w.apply(ctx, o)
			case <-w.wake:
				w.catchUp(ctx)
			case <-ctx.Done():
				w.flush()
				return
			}
		}
	}()
}

// Done is closed once the worker has flushed and exited.
func (w *Writer) Done() <-chan struct{} {
	return w.done
}

// Dropped returns how many transactions were discarded because the queue was full.
func (w *Writer) Dropped() int {
	return int(w.dropped.Load())
}

func (w *Writer) flush() {
	for {
		select {
		case o := <-w.ops:
			w.apply(context.Background(), o)
		default:
			w.catchUp(context.Background())
			return
		}
	}
}

// catchUp wipes the store if a reset happened since the last wipe.
func (w *Writer) catchUp(ctx context.Context) {
	gen := w.gen.Load()
	if gen == w.applied {
		return
	}
	w.applied = gen

	opCtx, cancel := w.opContext(ctx)
	defer cancel()
	if err := w.store.DeleteAllTransactions(opCtx); err != nil {
		w.logger.Warn("failed to clear journal", zap.Error(err))
	}
}

func (w *Writer) apply(ctx context.Context, o op) {
	// the generation is read after dequeueing, so it is never behind o.gen
	w.catchUp(ctx)
	if o.gen != w.applied {
		return // queued before a reset
	}

	opCtx, cancel := w.opContext(ctx)
	defer cancel()
	if err := w.store.SaveTransaction(opCtx, o.tx); err != nil {
		w.logger.Warn("failed to persist transaction",
			zap.String("tx_id", o.tx.ID.String()),
			zap.String("symbol", o.tx.Symbol),
			zap.Error(err))
	}
}

func (w *Writer) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, w.timeout)
}
