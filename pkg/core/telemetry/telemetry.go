// Package telemetry records LLM call history into the ai_calls table
// (see pkg/core/store/schema.sql) without blocking the call path: records
// are pushed onto a bounded channel and drained by a background goroutine,
// dropping the oldest entry on overflow rather than applying backpressure.
package telemetry

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/y437li/infounit/pkg/core/llm"
)

// DefaultQueueSize bounds how many pending records the recorder buffers
// before it starts dropping the oldest one to make room for the newest.
const DefaultQueueSize = 256

// Recorder consumes llm.CallRecord values (wire it as a Gateway's onCall)
// and persists them asynchronously.
type Recorder struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	queue  chan llm.CallRecord
	done   chan struct{}
}

// NewRecorder starts the background drain loop. Call Close to stop it.
func NewRecorder(pool *pgxpool.Pool, logger *slog.Logger, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		pool:   pool,
		logger: logger,
		queue:  make(chan llm.CallRecord, queueSize),
		done:   make(chan struct{}),
	}
	go r.drain()
	return r
}

// Record is the onCall callback a Gateway invokes after every attempt. It
// never blocks the calling goroutine: if the queue is full, the oldest
// pending record is dropped to make room.
func (r *Recorder) Record(rec llm.CallRecord) {
	select {
	case r.queue <- rec:
	default:
		select {
		case <-r.queue:
		default:
		}
		select {
		case r.queue <- rec:
		default:
		}
	}
}

func (r *Recorder) drain() {
	ctx := context.Background()
	for {
		select {
		case rec, ok := <-r.queue:
			if !ok {
				close(r.done)
				return
			}
			r.persist(ctx, rec)
		}
	}
}

func (r *Recorder) persist(ctx context.Context, rec llm.CallRecord) {
	var errText string
	if rec.Err != nil {
		errText = rec.Err.Error()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO ai_calls (provider, model, purpose, prompt_tokens, output_tokens, latency_ms, succeeded, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
	`, rec.Provider, rec.Provider, rec.Purpose, rec.PromptTokens, rec.OutputTokens, rec.LatencyMS, rec.Succeeded, errText)
	if err != nil {
		r.logger.Error("llm_call_failed", "event", "telemetry_persist_failed", "provider", rec.Provider, "error", err)
	}
	if !rec.Succeeded {
		r.logger.Warn("llm_call_failed", "provider", rec.Provider, "purpose", rec.Purpose, "attempt", rec.Attempt, "error", errText)
	}
}

// Close stops the drain loop after flushing whatever is already queued.
func (r *Recorder) Close() {
	close(r.queue)
	<-r.done
}

// Event logs one of the pipeline's stable structured event names at the
// given level, attaching attrs as slog key/value pairs.
func Event(logger *slog.Logger, level slog.Level, event string, attrs ...any) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Log(context.Background(), level, event, attrs...)
}
