package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Questionary/internal/domain"
)

// querier - общее подмножество *pgxpool.Pool и pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TemplateRepo - репозиторий шаблонов: templates, template_topics, template_fields.
//
// Шаблон читается и записывается целиком. Запись разделов и полей
// выполняется в одной транзакции с проверкой версии.
type TemplateRepo struct {
	pool *pgxpool.Pool
}

// NewTemplateRepo создаёт новый TemplateRepo.
func NewTemplateRepo(pool *pgxpool.Pool) *TemplateRepo {
	return &TemplateRepo{pool: pool}
}

// GetTemplate возвращает шаблон со всеми разделами и полями.
func (r *TemplateRepo) GetTemplate(ctx context.Context, id int64) (*domain.Template, error) {
	return loadTemplate(ctx, r.pool, id)
}

// ListTemplates возвращает шаблоны с фильтрацией.
func (r *TemplateRepo) ListTemplates(ctx context.Context, filter domain.TemplateFilter) ([]domain.Template, error) {
	var conditions []string
	var args []any
	argNum := 1

	if filter.IsArchived != nil {
		conditions = append(conditions, fmt.Sprintf("is_archived = $%d", argNum))
		args = append(args, *filter.IsArchived)
		argNum++
	}
	if filter.Category != nil {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argNum))
		args = append(args, string(*filter.Category))
		argNum++
	}

	query := `SELECT id FROM templates`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scan template id: %w", err)
	}

	templates := make([]domain.Template, 0, len(ids))
	for _, id := range ids {
		t, err := loadTemplate(ctx, r.pool, id)
		if err != nil {
			return nil, err
		}
		templates = append(templates, *t)
	}
	return templates, nil
}

// CreateTemplate сохраняет новый шаблон. Заполняет ID, Version и CreatedAt.
func (r *TemplateRepo) CreateTemplate(ctx context.Context, t *domain.Template) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO templates (name, description, category, is_archived, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 1, NOW(), NOW())
		RETURNING id, version, created_at
	`, t.Name, t.Description, string(t.Category), t.IsArchived).Scan(&t.ID, &t.Version, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}

	if err := writeStructure(ctx, tx, t); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// SaveTemplate атомарно заменяет шаблон, если его версия равна expectedVersion.
// Устаревший снимок: ErrStale. Вопросы полей, которых ещё нет, создаются.
func (r *TemplateRepo) SaveTemplate(ctx context.Context, t *domain.Template, expectedVersion int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var version int
	err = tx.QueryRow(ctx, `
		UPDATE templates
		SET name = $3, description = $4, category = $5, is_archived = $6,
		    version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING version
	`, t.ID, expectedVersion, t.Name, t.Description, string(t.Category), t.IsArchived).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.missOrStale(ctx, tx, t.ID, expectedVersion)
	}
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}

	// Поля удаляются каскадом вместе с разделами
	if _, err := tx.Exec(ctx, `DELETE FROM template_topics WHERE template_id = $1`, t.ID); err != nil {
		return fmt.Errorf("delete topics: %w", err)
	}
	if err := writeStructure(ctx, tx, t); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	t.Version = version
	return nil
}

// missOrStale различает отсутствующий шаблон и устаревшую версию.
func (r *TemplateRepo) missOrStale(ctx context.Context, q querier, id int64, expected int) error {
	var current int
	err := q.QueryRow(ctx, `SELECT version FROM templates WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get template version: %w", err)
	}
	return fmt.Errorf("%w: template %d is at version %d, expected %d", ErrStale, id, current, expected)
}

// writeStructure записывает разделы и поля шаблона.
func writeStructure(ctx context.Context, q querier, t *domain.Template) error {
	for i := range t.Topics {
		topic := &t.Topics[i]
		topic.TemplateID = t.ID

		_, err := q.Exec(ctx, `
			INSERT INTO template_topics (template_id, id, title, sort_order, is_enabled)
			VALUES ($1, $2, $3, $4, $5)
		`, t.ID, topic.ID, topic.Title, topic.SortOrder, topic.IsEnabled)
		if err != nil {
			return fmt.Errorf("insert topic %d: %w", topic.ID, err)
		}

		for j := range topic.Fields {
			if err := writeField(ctx, q, t.ID, &topic.Fields[j]); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeField создаёт вопрос поля (если его нет) и записывает поле.
func writeField(ctx context.Context, q querier, templateID int64, f *domain.QuestionTemplateRelation) error {
	if err := insertQuestion(ctx, q, &f.Question, true); err != nil {
		return err
	}

	cfg, err := domain.EncodeFieldConfig(f.Config)
	if err != nil {
		return err
	}

	var dependencyID *string
	var condition json.RawMessage
	if f.Dependency != nil {
		dependencyID = &f.Dependency.DependencyID
		condition, err = domain.EncodeFieldCondition(f.Dependency.Condition)
		if err != nil {
			return fmt.Errorf("field %s: %w", f.Question.ID, err)
		}
	}

	_, err = q.Exec(ctx, `
		INSERT INTO template_fields (template_id, question_id, topic_id, sort_order, config, dependency_id, condition)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, templateID, f.Question.ID, f.TopicID, f.SortOrder, cfg, dependencyID, condition)
	if err != nil {
		return fmt.Errorf("insert field %s: %w", f.Question.ID, err)
	}
	return nil
}

// loadTemplate читает шаблон целиком.
func loadTemplate(ctx context.Context, q querier, id int64) (*domain.Template, error) {
	var t domain.Template
	var category string
	err := q.QueryRow(ctx, `
		SELECT id, name, description, category, is_archived, version, created_at
		FROM templates
		WHERE id = $1
	`, id).Scan(
		&t.ID,
		&t.Name,
		&t.Description,
		&category,
		&t.IsArchived,
		&t.Version,
		&t.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	t.Category = domain.TemplateCategory(category)

	if err := loadTopics(ctx, q, &t); err != nil {
		return nil, err
	}
	if err := loadFields(ctx, q, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func loadTopics(ctx context.Context, q querier, t *domain.Template) error {
	rows, err := q.Query(ctx, `
		SELECT id, title, sort_order, is_enabled
		FROM template_topics
		WHERE template_id = $1
		ORDER BY sort_order, id
	`, t.ID)
	if err != nil {
		return fmt.Errorf("list topics: %w", err)
	}
	defer rows.Close()

	t.Topics = []domain.Topic{}
	for rows.Next() {
		topic := domain.Topic{TemplateID: t.ID, Fields: []domain.QuestionTemplateRelation{}}
		if err := rows.Scan(&topic.ID, &topic.Title, &topic.SortOrder, &topic.IsEnabled); err != nil {
			return fmt.Errorf("scan topic: %w", err)
		}
		t.Topics = append(t.Topics, topic)
	}
	return rows.Err()
}

// storedDependency - зависимость до типизации параметров.
type storedDependency struct {
	questionID   string
	dependencyID string
	condition    []byte
}

func loadFields(ctx context.Context, q querier, t *domain.Template) error {
	rows, err := q.Query(ctx, `
		SELECT
			f.question_id, f.topic_id, f.sort_order, f.config, f.dependency_id, f.condition,
			q.data_type, q.natural_key, q.question, q.default_config, q.created_at
		FROM template_fields f
		JOIN questions q ON q.id = f.question_id
		WHERE f.template_id = $1
		ORDER BY f.topic_id, f.sort_order
	`, t.ID)
	if err != nil {
		return fmt.Errorf("list fields: %w", err)
	}
	defer rows.Close()

	types := make(map[string]domain.DataType)
	var deps []storedDependency

	for rows.Next() {
		var f domain.QuestionTemplateRelation
		var dataType string
		var cfgJSON, defaultJSON, condJSON []byte
		var dependencyID *string

		if err := rows.Scan(
			&f.Question.ID,
			&f.TopicID,
			&f.SortOrder,
			&cfgJSON,
			&dependencyID,
			&condJSON,
			&dataType,
			&f.Question.NaturalKey,
			&f.Question.Question,
			&defaultJSON,
			&f.Question.CreatedAt,
		); err != nil {
			return fmt.Errorf("scan field: %w", err)
		}

		dt := domain.DataType(dataType)
		f.Question.DataType = dt
		if f.Config, err = domain.DecodeFieldConfig(dt, cfgJSON); err != nil {
			return fmt.Errorf("field %s: %w", f.Question.ID, err)
		}
		if f.Question.DefaultConfig, err = domain.DecodeFieldConfig(dt, defaultJSON); err != nil {
			return fmt.Errorf("question %s: %w", f.Question.ID, err)
		}
		types[f.Question.ID] = dt

		if dependencyID != nil {
			deps = append(deps, storedDependency{
				questionID:   f.Question.ID,
				dependencyID: *dependencyID,
				condition:    condJSON,
			})
		}

		topic, ok := t.Topic(f.TopicID)
		if !ok {
			return fmt.Errorf("field %s references missing topic %d", f.Question.ID, f.TopicID)
		}
		topic.Fields = append(topic.Fields, f)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	// Параметры условия типизируются по типу вопроса-цели
	for _, d := range deps {
		field, _ := t.Field(d.questionID)
		dep := &domain.FieldDependency{QuestionID: d.questionID, DependencyID: d.dependencyID}
		if target, ok := types[d.dependencyID]; ok {
			cond, err := domain.DecodeFieldCondition(target, d.condition)
			if err != nil {
				return fmt.Errorf("field %s: %w", d.questionID, err)
			}
			dep.Condition = cond
		}
		field.Dependency = dep
	}
	return nil
}
