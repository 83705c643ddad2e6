package mq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shaiso/Questionary/internal/domain"
)

// EventLogWriter - хранилище журнала событий.
type EventLogWriter interface {
	InsertEventLog(ctx context.Context, e *domain.EventLog) error
}

// EventLogHandler возвращает Handler, записывающий каждое событие в журнал.
// Payload, который не является JSON-объектом, отклоняется.
func EventLogHandler(store EventLogWriter) Handler {
	return func(ctx context.Context, d *Delivery) error {
		msg := d.Message
		if !json.Valid(msg.Payload) || len(msg.Payload) == 0 || msg.Payload[0] != '{' {
			return fmt.Errorf("event %s: payload is not an object: %w", msg.ID, ErrReject)
		}

		created := msg.Timestamp
		if created.IsZero() {
			created = d.Raw.Timestamp
		}
		return store.InsertEventLog(ctx, &domain.EventLog{
			ID:        msg.ID,
			Type:      string(msg.Type),
			Payload:   msg.Payload,
			CreatedAt: created.UTC(),
		})
	}
}
