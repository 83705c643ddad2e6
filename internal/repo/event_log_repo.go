package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Questionary/internal/domain"
)

// EventLogRepo - журнал доменных событий, заполняемый потребителем очереди.
type EventLogRepo struct {
	pool *pgxpool.Pool
}

// NewEventLogRepo создаёт новый EventLogRepo.
func NewEventLogRepo(pool *pgxpool.Pool) *EventLogRepo {
	return &EventLogRepo{pool: pool}
}

// InsertEventLog добавляет запись. Повторная доставка того же
// сообщения (тот же ID) игнорируется.
func (r *EventLogRepo) InsertEventLog(ctx context.Context, e *domain.EventLog) error {
	query := `
		INSERT INTO event_logs (id, type, payload, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query, e.ID, e.Type, e.Payload, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

// ListEventLogs возвращает последние записи (новые первыми).
func (r *EventLogRepo) ListEventLogs(ctx context.Context, limit int) ([]domain.EventLog, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, type, payload, created_at
		FROM event_logs
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list event logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.EventLog
	for rows.Next() {
		var e domain.EventLog
		var payload []byte
		if err := rows.Scan(&e.ID, &e.Type, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event log: %w", err)
		}
		e.Payload = payload
		logs = append(logs, e)
	}
	return logs, rows.Err()
}
