package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Questionary/internal/domain"
)

// QuestionRepo - репозиторий вопросов.
type QuestionRepo struct {
	pool *pgxpool.Pool
}

// NewQuestionRepo создаёт новый QuestionRepo.
func NewQuestionRepo(pool *pgxpool.Pool) *QuestionRepo {
	return &QuestionRepo{pool: pool}
}

// GetQuestion возвращает вопрос по ID.
func (r *QuestionRepo) GetQuestion(ctx context.Context, id string) (*domain.Question, error) {
	query := `
		SELECT id, data_type, natural_key, question, default_config, created_at
		FROM questions
		WHERE id = $1
	`
	q, err := scanQuestion(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get question: %w", err)
	}
	return q, nil
}

// ListQuestions возвращает все вопросы.
func (r *QuestionRepo) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	query := `
		SELECT id, data_type, natural_key, question, default_config, created_at
		FROM questions
		ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, *q)
	}
	return questions, rows.Err()
}

// CreateQuestion создаёт вопрос. Повтор ID: ErrAlreadyExists.
func (r *QuestionRepo) CreateQuestion(ctx context.Context, q *domain.Question) error {
	return insertQuestion(ctx, r.pool, q, false)
}

// UpdateQuestion обновляет текст, ключ и конфигурацию по умолчанию.
// Тип данных не меняется.
func (r *QuestionRepo) UpdateQuestion(ctx context.Context, q *domain.Question) error {
	cfg, err := domain.EncodeFieldConfig(q.DefaultConfig)
	if err != nil {
		return err
	}
	query := `
		UPDATE questions
		SET natural_key = $2, question = $3, default_config = $4
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, q.ID, q.NaturalKey, q.Question, cfg)
	if err != nil {
		return fmt.Errorf("update question: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// insertQuestion записывает вопрос. ignoreExisting пропускает уже
// существующий вопрос вместо ErrAlreadyExists.
func insertQuestion(ctx context.Context, q querier, question *domain.Question, ignoreExisting bool) error {
	cfg, err := domain.EncodeFieldConfig(question.DefaultConfig)
	if err != nil {
		return err
	}
	if question.CreatedAt.IsZero() {
		question.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO questions (id, data_type, natural_key, question, default_config, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if ignoreExisting {
		query += ` ON CONFLICT (id) DO NOTHING`
	}

	_, err = q.Exec(ctx, query,
		question.ID,
		string(question.DataType),
		question.NaturalKey,
		question.Question,
		cfg,
		question.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: question %s", ErrAlreadyExists, question.ID)
	}
	if err != nil {
		return fmt.Errorf("insert question %s: %w", question.ID, err)
	}
	return nil
}

func scanQuestion(row pgx.Row) (*domain.Question, error) {
	var q domain.Question
	var dataType string
	var cfgJSON []byte
	if err := row.Scan(
		&q.ID,
		&dataType,
		&q.NaturalKey,
		&q.Question,
		&cfgJSON,
		&q.CreatedAt,
	); err != nil {
		return nil, err
	}

	q.DataType = domain.DataType(dataType)
	cfg, err := domain.DecodeFieldConfig(q.DataType, cfgJSON)
	if err != nil {
		return nil, fmt.Errorf("question %s: %w", q.ID, err)
	}
	q.DefaultConfig = cfg
	return &q, nil
}
