package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sessionguard/backend/internal/platform/clock"
)

// SystemActor is recorded when no actor is on the context and the call has no target user (e.g. sweeps).
const SystemActor = "_system"

// emitTimeout bounds a single sink write.
const emitTimeout = 5 * time.Second

// Sink receives audit events. Implementations may block briefly.
type Sink interface {
	Emit(ctx context.Context, e Event) error
}

// Auditor records one event per state-changing operation.
// Record is best-effort: failures are logged and never reach the caller.
type Auditor interface {
	Record(ctx context.Context, operation, targetUserID, outcome, detail string)
}

// Logger implements Auditor by dispatching events to a Sink asynchronously.
type Logger struct {
	sink  Sink
	log   *zap.Logger
	clock clock.Clock
	wg    sync.WaitGroup
}

// NewLogger returns a Logger writing to sink. sink may be nil, in which case events are only
// written to log at debug level. log may be nil.
func NewLogger(sink Sink, log *zap.Logger, clk clock.Clock) *Logger {
	if log == nil {
		log = zap.NewNop()
	}
	if clk == nil {
		clk = clock.System()
	}
	return &Logger{sink: sink, log: log, clock: clk}
}

// Record builds the event and emits it in a goroutine so the caller is not blocked.
// The goroutine uses a fresh context so request cancellation does not drop the event.
func (l *Logger) Record(ctx context.Context, operation, targetUserID, outcome, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = targetUserID
	}
	if actor == "" {
		actor = SystemActor
	}
	e := Event{
		ID:           uuid.New().String(),
		ActorID:      actor,
		TargetUserID: targetUserID,
		Operation:    operation,
		Outcome:      outcome,
		Detail:       detail,
		OccurredAt:   l.clock.Now(),
	}
	l.log.Debug("audit: event",
		zap.String("operation", e.Operation),
		zap.String("outcome", e.Outcome),
		zap.String("actor_id", e.ActorID),
		zap.String("target_user_id", e.TargetUserID),
	)
	if l.sink == nil {
		return
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		emitCtx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := l.sink.Emit(emitCtx, e); err != nil {
			l.log.Warn("audit: emit failed",
				zap.String("operation", e.Operation),
				zap.String("event_id", e.ID),
				zap.Error(err),
			)
		}
	}()
}

// Flush waits for in-flight emits. Call during shutdown before closing the sink.
func (l *Logger) Flush() {
	l.wg.Wait()
}

// Nop is an Auditor that drops every event.
type Nop struct{}

// Record does nothing.
func (Nop) Record(context.Context, string, string, string, string) {}
