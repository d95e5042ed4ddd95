package observability

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Methdul/newkingdom/internal/events"
)

// auditQueueSize bounds the in-flight audit backlog. When the queue is full
// the event is dropped and counted; audit recording must never block or
// fail a request.
const auditQueueSize = 1024

// AuditSink consumes security events from the dispatcher and writes the
// security-event trail through a dedicated worker goroutine.
type AuditSink struct {
	logger  *zap.Logger
	metrics *Metrics
	queue   chan events.Event
	done    chan struct{}
}

// NewAuditSink subscribes the sink to every security event type.
func NewAuditSink(logger *zap.Logger, metrics *Metrics, dispatcher events.Dispatcher) *AuditSink {
	sink := &AuditSink{
		logger:  logger.Named("audit"),
		metrics: metrics,
		queue:   make(chan events.Event, auditQueueSize),
		done:    make(chan struct{}),
	}

	for _, eventType := range []events.EventType{
		events.EventAuthSucceeded,
		events.EventAuthFailed,
		events.EventAccessDenied,
		events.EventSessionCreated,
		events.EventSessionRevoked,
		events.EventRateLimited,
	} {
		dispatcher.Subscribe(eventType, sink.enqueue)
	}
	return sink
}

// Start launches the worker. Stop it by cancelling ctx.
func (s *AuditSink) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-s.queue:
				s.write(event)
			}
		}
	}()
}

// Wait blocks until the worker has exited.
func (s *AuditSink) Wait() {
	<-s.done
}

func (s *AuditSink) enqueue(_ context.Context, event events.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	select {
	case s.queue <- event:
	default:
		s.metrics.RecordAuth("audit_dropped")
	}
	return nil
}

func (s *AuditSink) write(event events.Event) {
	s.metrics.RecordAuth(string(event.Type))
	s.logger.Info("security event",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("subject_id", event.SubjectID),
		zap.String("origin", event.Origin),
		zap.String("reason", event.Reason),
		zap.Time("timestamp", event.Timestamp),
	)
}
