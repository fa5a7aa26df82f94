package audit

import (
	"context"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

const otelScope = "sessionguard.audit"

// OTelSink emits audit events as OTel log records.
type OTelSink struct {
	logger otellog.Logger
}

// NewOTelSink returns a sink using provider, or nil when provider is nil.
func NewOTelSink(provider *sdklog.LoggerProvider) *OTelSink {
	if provider == nil {
		return nil
	}
	return &OTelSink{logger: provider.Logger(otelScope)}
}

// Emit converts e to a log record. Failed outcomes are recorded at WARN.
func (s *OTelSink) Emit(ctx context.Context, e Event) error {
	if s == nil {
		return nil
	}
	s.logger.Emit(ctx, eventRecord(e))
	return nil
}

func eventRecord(e Event) otellog.Record {
	rec := otellog.Record{}
	rec.SetTimestamp(e.OccurredAt)
	rec.SetBody(otellog.StringValue(e.Operation))
	rec.SetSeverity(otellog.SeverityInfo)
	if e.Outcome != OutcomeSuccess {
		rec.SetSeverity(otellog.SeverityWarn)
	}
	rec.AddAttributes(
		otellog.String("audit.id", e.ID),
		otellog.String("audit.actor_id", e.ActorID),
		otellog.String("audit.target_user_id", e.TargetUserID),
		otellog.String("audit.operation", e.Operation),
		otellog.String("audit.outcome", e.Outcome),
	)
	if e.Detail != "" {
		rec.AddAttributes(otellog.String("audit.detail", e.Detail))
	}
	return rec
}
