package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Questionary/internal/domain"
)

// QuestionaryRepo - репозиторий анкет, ответов и заполненности разделов.
type QuestionaryRepo struct {
	pool *pgxpool.Pool
}

// NewQuestionaryRepo создаёт новый QuestionaryRepo.
func NewQuestionaryRepo(pool *pgxpool.Pool) *QuestionaryRepo {
	return &QuestionaryRepo{pool: pool}
}

// --- Анкеты ---

// CreateQuestionary создаёт анкету. Заполняет ID и CreatedAt.
func (r *QuestionaryRepo) CreateQuestionary(ctx context.Context, q *domain.Questionary) error {
	query := `
		INSERT INTO questionaries (template_id, creator_id, created_at)
		VALUES ($1, $2, NOW())
		RETURNING id, created_at
	`
	err := r.pool.QueryRow(ctx, query, q.TemplateID, q.CreatorID).Scan(&q.ID, &q.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert questionary: %w", err)
	}
	return nil
}

// GetQuestionary возвращает анкету по ID.
func (r *QuestionaryRepo) GetQuestionary(ctx context.Context, id int64) (*domain.Questionary, error) {
	query := `
		SELECT id, template_id, creator_id, created_at
		FROM questionaries
		WHERE id = $1
	`
	var q domain.Questionary
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&q.ID,
		&q.TemplateID,
		&q.CreatorID,
		&q.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get questionary: %w", err)
	}
	return &q, nil
}

// ListQuestionaries возвращает анкеты, опционально только одного шаблона.
func (r *QuestionaryRepo) ListQuestionaries(ctx context.Context, templateID *int64) ([]domain.Questionary, error) {
	query := `
		SELECT id, template_id, creator_id, created_at
		FROM questionaries
		WHERE $1::bigint IS NULL OR template_id = $1
		ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query, templateID)
	if err != nil {
		return nil, fmt.Errorf("list questionaries: %w", err)
	}
	defer rows.Close()

	var list []domain.Questionary
	for rows.Next() {
		var q domain.Questionary
		if err := rows.Scan(&q.ID, &q.TemplateID, &q.CreatorID, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan questionary: %w", err)
		}
		list = append(list, q)
	}
	return list, rows.Err()
}

// --- Ответы ---

// GetAnswers возвращает все ответы анкеты по ID вопроса.
func (r *QuestionaryRepo) GetAnswers(ctx context.Context, questionaryID int64) (map[string]domain.Answer, error) {
	query := `
		SELECT questionary_id, question_id, value, topic_id, sort_order, updated_at
		FROM answers
		WHERE questionary_id = $1
	`
	rows, err := r.pool.Query(ctx, query, questionaryID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	answers := make(map[string]domain.Answer)
	for rows.Next() {
		var a domain.Answer
		var value []byte
		if err := rows.Scan(
			&a.QuestionaryID,
			&a.QuestionID,
			&value,
			&a.TopicID,
			&a.SortOrder,
			&a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		a.Value = value
		answers[a.QuestionID] = a
	}
	return answers, rows.Err()
}

// SetAnswer создаёт или заменяет ответ.
func (r *QuestionaryRepo) SetAnswer(ctx context.Context, a *domain.Answer) error {
	query := `
		INSERT INTO answers (questionary_id, question_id, value, topic_id, sort_order, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (questionary_id, question_id) DO UPDATE
		SET value = EXCLUDED.value,
		    topic_id = EXCLUDED.topic_id,
		    sort_order = EXCLUDED.sort_order,
		    updated_at = EXCLUDED.updated_at
		RETURNING updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		a.QuestionaryID,
		a.QuestionID,
		a.Value,
		a.TopicID,
		a.SortOrder,
	).Scan(&a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert answer: %w", err)
	}
	return nil
}

// DeleteAnswer удаляет ответ. Отсутствие ответа не ошибка.
func (r *QuestionaryRepo) DeleteAnswer(ctx context.Context, questionaryID int64, questionID string) error {
	query := `DELETE FROM answers WHERE questionary_id = $1 AND question_id = $2`
	if _, err := r.pool.Exec(ctx, query, questionaryID, questionID); err != nil {
		return fmt.Errorf("delete answer: %w", err)
	}
	return nil
}

// --- Заполненность разделов ---

// GetCompletion возвращает сохранённую заполненность разделов.
func (r *QuestionaryRepo) GetCompletion(ctx context.Context, questionaryID int64) (map[int64]bool, error) {
	query := `
		SELECT topic_id, is_complete
		FROM topic_completion
		WHERE questionary_id = $1
	`
	rows, err := r.pool.Query(ctx, query, questionaryID)
	if err != nil {
		return nil, fmt.Errorf("list completion: %w", err)
	}
	defer rows.Close()

	completion := make(map[int64]bool)
	for rows.Next() {
		var topicID int64
		var done bool
		if err := rows.Scan(&topicID, &done); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		completion[topicID] = done
	}
	return completion, rows.Err()
}

// SaveCompletion заменяет снимок заполненности разделов анкеты.
func (r *QuestionaryRepo) SaveCompletion(ctx context.Context, questionaryID int64, completion []domain.TopicCompletion) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM topic_completion WHERE questionary_id = $1`, questionaryID); err != nil {
		return fmt.Errorf("delete completion: %w", err)
	}

	batch := &pgx.Batch{}
	for _, c := range completion {
		batch.Queue(`
			INSERT INTO topic_completion (questionary_id, topic_id, is_complete)
			VALUES ($1, $2, $3)
		`, questionaryID, c.TopicID, c.IsComplete)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert completion: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
