package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shaiso/Questionary/internal/auth"
	"github.com/shaiso/Questionary/internal/domain"
	"github.com/shaiso/Questionary/internal/engine"
	"github.com/shaiso/Questionary/internal/repo"
	"github.com/shaiso/Questionary/internal/telemetry"
)

// TemplateStore - хранилище шаблонов.
type TemplateStore interface {
	// GetTemplate возвращает снимок шаблона (repo.ErrNotFound, если его нет).
	GetTemplate(ctx context.Context, id int64) (*domain.Template, error)

	// ListTemplates возвращает шаблоны по фильтру.
	ListTemplates(ctx context.Context, filter domain.TemplateFilter) ([]domain.Template, error)

	// CreateTemplate сохраняет новый шаблон, заполняет ID, Version и CreatedAt.
	CreateTemplate(ctx context.Context, t *domain.Template) error

	// SaveTemplate атомарно заменяет разделы и поля шаблона, если его
	// версия равна expectedVersion, и увеличивает t.Version. Иначе repo.ErrStale.
	// Вопросы полей, которых ещё нет в хранилище, создаются.
	SaveTemplate(ctx context.Context, t *domain.Template, expectedVersion int) error
}

// QuestionStore - хранилище вопросов.
type QuestionStore interface {
	GetQuestion(ctx context.Context, id string) (*domain.Question, error)
	ListQuestions(ctx context.Context) ([]domain.Question, error)
	CreateQuestion(ctx context.Context, q *domain.Question) error
	UpdateQuestion(ctx context.Context, q *domain.Question) error
}

// EventPublisher публикует доменные события.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType domain.EventType, payload any) error
}

// Service - редактор шаблонов: проверка прав, загрузка снимка,
// применение операции, сохранение с проверкой версии, событие.
type Service struct {
	templates TemplateStore
	questions QuestionStore
	authz     auth.Authorizer
	events    EventPublisher
	logger    *slog.Logger
}

// Config - зависимости Service. Events может быть nil.
type Config struct {
	Templates  TemplateStore
	Questions  QuestionStore
	Authorizer auth.Authorizer
	Events     EventPublisher
	Logger     *slog.Logger
}

// NewService создаёт новый Service.
func NewService(cfg Config) *Service {
	authz := cfg.Authorizer
	if authz == nil {
		authz = auth.RoleAuthorizer{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		templates: cfg.Templates,
		questions: cfg.Questions,
		authz:     authz,
		events:    cfg.Events,
		logger:    logger,
	}
}

// TemplateInput - данные нового шаблона.
type TemplateInput struct {
	Name        string
	Description string
	Category    domain.TemplateCategory
}

// TemplatePatch - изменение свойств шаблона. nil-поля не меняются.
type TemplatePatch struct {
	Name        *string
	Description *string
	IsArchived  *bool
}

// QuestionInput - данные нового вопроса.
type QuestionInput struct {
	DataType      domain.DataType
	NaturalKey    string
	Question      string
	DefaultConfig domain.FieldConfig
}

// QuestionPatch - изменение вопроса. DataType указывается только
// для проверки: сменить тип нельзя.
type QuestionPatch struct {
	DataType      *domain.DataType
	NaturalKey    *string
	Question      *string
	DefaultConfig domain.FieldConfig
}

// --- Шаблоны ---

// CreateTemplate создаёт шаблон с одним пустым разделом.
func (s *Service) CreateTemplate(ctx context.Context, p *auth.Principal, in TemplateInput) (*domain.Template, error) {
	if err := auth.Check(ctx, s.authz, p, auth.ActionEditTemplate, auth.Resource{}); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: template name is empty", ErrInvalidInput)
	}
	if in.Category == "" {
		in.Category = domain.CategoryProposal
	}
	if !in.Category.IsValid() {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, in.Category)
	}

	t := &domain.Template{
		Name:        in.Name,
		Description: in.Description,
		Category:    in.Category,
		Topics: []domain.Topic{
			{ID: 1, Title: DefaultTopicTitle, IsEnabled: true, Fields: []domain.QuestionTemplateRelation{}},
		},
	}
	if err := s.templates.CreateTemplate(ctx, t); err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}

	telemetry.WithTemplateID(s.logger, t.ID).Info("template created",
		"name", t.Name,
		"category", t.Category,
	)
	s.publishUpdated(ctx, p, t, "create_template")
	return t, nil
}

// ImportTemplate сохраняет готовый шаблон (например, разобранный
// engine.ParseTemplate) как новый. Разделы без ID нумеруются по порядку,
// вопросы полей создаются в хранилище.
func (s *Service) ImportTemplate(ctx context.Context, p *auth.Principal, t *domain.Template) (*domain.Template, error) {
	if err := auth.Check(ctx, s.authz, p, auth.ActionEditTemplate, auth.Resource{}); err != nil {
		return nil, err
	}
	if strings.TrimSpace(t.Name) == "" {
		return nil, fmt.Errorf("%w: template name is empty", ErrInvalidInput)
	}
	if t.Category == "" {
		t.Category = domain.CategoryProposal
	}
	if !t.Category.IsValid() {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, t.Category)
	}

	c := t.Clone()
	c.ID, c.Version = 0, 0
	for i := range c.Topics {
		if c.Topics[i].ID == 0 {
			c.Topics[i].ID = nextTopicID(c)
		}
		for j := range c.Topics[i].Fields {
			c.Topics[i].Fields[j].TopicID = c.Topics[i].ID
		}
	}
	if err := s.useStoredQuestions(ctx, c); err != nil {
		telemetry.TemplateEditsTotal.WithLabelValues("import_template", "rejected").Inc()
		return nil, err
	}
	if err := engine.ValidateTemplate(c); err != nil {
		telemetry.TemplateEditsTotal.WithLabelValues("import_template", "rejected").Inc()
		return nil, err
	}

	if err := s.templates.CreateTemplate(ctx, c); err != nil {
		telemetry.TemplateEditsTotal.WithLabelValues("import_template", "error").Inc()
		return nil, fmt.Errorf("import template: %w", err)
	}

	telemetry.TemplateEditsTotal.WithLabelValues("import_template", "ok").Inc()
	telemetry.WithTemplateID(s.logger, c.ID).Info("template imported",
		"topics", len(c.Topics),
		"fields", len(c.Fields()),
	)
	s.publishUpdated(ctx, p, c, "import_template")
	return c, nil
}

// useStoredQuestions заменяет вопросы полей, уже существующие в хранилище,
// их сохранённой версией. Вопрос с тем же ID и другим типом данных
// отклоняется: ErrDataTypeImmutable.
func (s *Service) useStoredQuestions(ctx context.Context, t *domain.Template) error {
	for _, f := range t.Fields() {
		stored, err := s.questions.GetQuestion(ctx, f.Question.ID)
		if errors.Is(err, repo.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("get question %s: %w", f.Question.ID, err)
		}
		if stored.DataType != f.Question.DataType {
			return fmt.Errorf("%w: %s is %s, imported as %s",
				ErrDataTypeImmutable, f.Question.ID, stored.DataType, f.Question.DataType)
		}
		f.Question = *stored
	}
	return nil
}

// GetTemplate возвращает шаблон.
func (s *Service) GetTemplate(ctx context.Context, p *auth.Principal, id int64) (*domain.Template, error) {
	if err := auth.Check(ctx, s.authz, p, auth.ActionReadTemplate, auth.Resource{}); err != nil {
		return nil, err
	}
	t, err := s.templates.GetTemplate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get template %d: %w", id, err)
	}
	return t, nil
}

// ListTemplates возвращает шаблоны по фильтру (архивность, категория).
func (s *Service) ListTemplates(ctx context.Context, p *auth.Principal, filter domain.TemplateFilter) ([]domain.Template, error) {
	if err := auth.Check(ctx, s.authz, p, auth.ActionReadTemplate, auth.Resource{}); err != nil {
		return nil, err
	}
	templates, err := s.templates.ListTemplates(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

// UpdateTemplate изменяет название, описание и признак архива.
func (s *Service) UpdateTemplate(ctx context.Context, p *auth.Principal, id int64, patch TemplatePatch) (*domain.Template, error) {
	return s.edit(ctx, p, id, "update_template", func(t *domain.Template) (*domain.Template, error) {
		c := t.Clone()
		if patch.Name != nil {
			if strings.TrimSpace(*patch.Name) == "" {
				return nil, fmt.Errorf("%w: template name is empty", ErrInvalidInput)
			}
			c.Name = *patch.Name
		}
		if patch.Description != nil {
			c.Description = *patch.Description
		}
		if patch.IsArchived != nil {
			c.IsArchived = *patch.IsArchived
		}
		return c, nil
	})
}

// --- Разделы ---

// CreateTopic добавляет раздел на позицию sortOrder.
func (s *Service) CreateTopic(ctx context.Context, p *auth.Principal, templateID int64, title string, sortOrder int) (*domain.Template, *domain.Topic, error) {
	var created *domain.Topic
	t, err := s.edit(ctx, p, templateID, "create_topic", func(t *domain.Template) (*domain.Template, error) {
		out, topic, err := CreateTopic(t, title, sortOrder)
		created = topic
		return out, err
	})
	if err != nil {
		return nil, nil, err
	}
	topic, _ := t.Topic(created.ID)
	return t, topic, nil
}

// UpdateTopic изменяет раздел.
func (s *Service) UpdateTopic(ctx context.Context, p *auth.Principal, templateID, topicID int64, patch TopicPatch) (*domain.Template, error) {
	return s.edit(ctx, p, templateID, "update_topic", func(t *domain.Template) (*domain.Template, error) {
		return UpdateTopic(t, topicID, patch)
	})
}

// DeleteTopic удаляет пустой раздел.
func (s *Service) DeleteTopic(ctx context.Context, p *auth.Principal, templateID, topicID int64) (*domain.Template, error) {
	return s.edit(ctx, p, templateID, "delete_topic", func(t *domain.Template) (*domain.Template, error) {
		return DeleteTopic(t, topicID)
	})
}

// ReorderTopics задаёт порядок разделов.
func (s *Service) ReorderTopics(ctx context.Context, p *auth.Principal, templateID int64, topicIDs []int64) (*domain.Template, error) {
	return s.edit(ctx, p, templateID, "reorder_topics", func(t *domain.Template) (*domain.Template, error) {
		return ReorderTopics(t, topicIDs)
	})
}

// --- Поля ---

// CreateField создаёт новый вопрос и добавляет его в конец раздела.
// Вопрос сохраняется вместе с шаблоном.
func (s *Service) CreateField(ctx context.Context, p *auth.Principal, templateID, topicID int64, dt domain.DataType) (*domain.Template, *domain.Question, error) {
	var created *domain.Question
	t, err := s.edit(ctx, p, templateID, "create_field", func(t *domain.Template) (*domain.Template, error) {
		out, q, err := CreateField(t, topicID, dt)
		created = q
		return out, err
	})
	if err != nil {
		return nil, nil, err
	}
	return t, created, nil
}

// AttachQuestion размещает существующий вопрос в разделе.
func (s *Service) AttachQuestion(ctx context.Context, p *auth.Principal, templateID, topicID int64, questionID string, sortOrder int) (*domain.Template, error) {
	if err := auth.Check(ctx, s.authz, p, auth.ActionEditTemplate, auth.Resource{}); err != nil {
		return nil, err
	}
	q, err := s.questions.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("get question %s: %w", questionID, err)
	}
	return s.edit(ctx, p, templateID, "attach_question", func(t *domain.Template) (*domain.Template, error) {
		return AttachQuestion(t, topicID, *q, sortOrder)
	})
}

// MoveQuestionToTopic переносит поле в другой раздел или на другую позицию.
func (s *Service) MoveQuestionToTopic(ctx context.Context, p *auth.Principal, templateID int64, questionID string, topicID int64, sortOrder int) (*domain.Template, error) {
	return s.edit(ctx, p, templateID, "move_field", func(t *domain.Template) (*domain.Template, error) {
		return MoveQuestionToTopic(t, questionID, topicID, sortOrder)
	})
}

// SetDependency задаёт или снимает зависимость поля.
func (s *Service) SetDependency(ctx context.Context, p *auth.Principal, templateID int64, questionID string, dep *domain.FieldDependency) (*domain.Template, error) {
	return s.edit(ctx, p, templateID, "set_dependency", func(t *domain.Template) (*domain.Template, error) {
		return SetDependency(t, questionID, dep)
	})
}

// DeleteField убирает поле из шаблона.
func (s *Service) DeleteField(ctx context.Context, p *auth.Principal, templateID int64, questionID string) (*domain.Template, error) {
	return s.edit(ctx, p, templateID, "delete_field", func(t *domain.Template) (*domain.Template, error) {
		return DeleteField(t, questionID)
	})
}

// UpdateFieldConfig заменяет конфигурацию поля.
func (s *Service) UpdateFieldConfig(ctx context.Context, p *auth.Principal, templateID int64, questionID string, cfg domain.FieldConfig) (*domain.Template, error) {
	return s.edit(ctx, p, templateID, "update_field_config", func(t *domain.Template) (*domain.Template, error) {
		return UpdateFieldConfig(t, questionID, cfg)
	})
}

// UpdateField применяет составное изменение поля одной записью.
func (s *Service) UpdateField(ctx context.Context, p *auth.Principal, templateID int64, questionID string, patch FieldPatch) (*domain.Template, error) {
	return s.edit(ctx, p, templateID, "update_field", func(t *domain.Template) (*domain.Template, error) {
		return UpdateField(t, questionID, patch)
	})
}

// --- Вопросы ---

// CreateQuestion создаёт вопрос вне шаблона.
func (s *Service) CreateQuestion(ctx context.Context, p *auth.Principal, in QuestionInput) (*domain.Question, error) {
	if err := auth.Check(ctx, s.authz, p, auth.ActionEditTemplate, auth.Resource{}); err != nil {
		return nil, err
	}
	if !in.DataType.IsValid() {
		return nil, fmt.Errorf("%w: unknown data type %q", ErrInvalidInput, in.DataType)
	}

	cfg := in.DefaultConfig
	if cfg == nil {
		cfg, _ = domain.NewFieldConfig(in.DataType)
	}
	if cfg.Kind() != in.DataType {
		return nil, fmt.Errorf("%w: %s config for %s question", ErrInvalidInput, cfg.Kind(), in.DataType)
	}

	id := NewQuestionID(in.DataType)
	q := &domain.Question{
		ID:            id,
		DataType:      in.DataType,
		NaturalKey:    in.NaturalKey,
		Question:      in.Question,
		DefaultConfig: cfg,
		CreatedAt:     time.Now().UTC(),
	}
	if q.NaturalKey == "" {
		q.NaturalKey = id
	}

	if err := s.questions.CreateQuestion(ctx, q); err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}
	s.logger.Info("question created", "question_id", q.ID, "data_type", q.DataType)
	return q, nil
}

// GetQuestion возвращает вопрос.
func (s *Service) GetQuestion(ctx context.Context, p *auth.Principal, id string) (*domain.Question, error) {
	if err := auth.Check(ctx, s.authz, p, auth.ActionReadTemplate, auth.Resource{}); err != nil {
		return nil, err
	}
	q, err := s.questions.GetQuestion(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get question %s: %w", id, err)
	}
	return q, nil
}

// ListQuestions возвращает все вопросы.
func (s *Service) ListQuestions(ctx context.Context, p *auth.Principal) ([]domain.Question, error) {
	if err := auth.Check(ctx, s.authz, p, auth.ActionReadTemplate, auth.Resource{}); err != nil {
		return nil, err
	}
	questions, err := s.questions.ListQuestions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return questions, nil
}

// UpdateQuestion изменяет текст, ключ и конфигурацию по умолчанию.
// Тип данных вопроса неизменяем: ErrDataTypeImmutable.
func (s *Service) UpdateQuestion(ctx context.Context, p *auth.Principal, id string, patch QuestionPatch) (*domain.Question, error) {
	if err := auth.Check(ctx, s.authz, p, auth.ActionEditTemplate, auth.Resource{}); err != nil {
		return nil, err
	}
	q, err := s.questions.GetQuestion(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get question %s: %w", id, err)
	}

	if patch.DataType != nil && *patch.DataType != q.DataType {
		return nil, fmt.Errorf("%w: %s is %s", ErrDataTypeImmutable, id, q.DataType)
	}
	if patch.NaturalKey != nil {
		if strings.TrimSpace(*patch.NaturalKey) == "" {
			return nil, fmt.Errorf("%w: natural key is empty", ErrInvalidInput)
		}
		q.NaturalKey = *patch.NaturalKey
	}
	if patch.Question != nil {
		q.Question = *patch.Question
	}
	if patch.DefaultConfig != nil {
		if patch.DefaultConfig.Kind() != q.DataType {
			return nil, fmt.Errorf("%w: %s config for %s question", ErrInvalidInput, patch.DefaultConfig.Kind(), q.DataType)
		}
		q.DefaultConfig = domain.CloneFieldConfig(patch.DefaultConfig)
	}

	if err := s.questions.UpdateQuestion(ctx, q); err != nil {
		return nil, fmt.Errorf("update question %s: %w", id, err)
	}
	return q, nil
}

// --- Вспомогательные методы ---

// edit выполняет структурное изменение шаблона.
//
// Снимок загружается, изменяется чистой функцией apply и сохраняется
// с проверкой версии.
func (s *Service) edit(ctx context.Context, p *auth.Principal, templateID int64, op string, apply func(*domain.Template) (*domain.Template, error)) (*domain.Template, error) {
	logger := telemetry.WithTemplateID(s.logger, templateID).With("operation", op)

	if err := auth.Check(ctx, s.authz, p, auth.ActionEditTemplate, auth.Resource{}); err != nil {
		telemetry.TemplateEditsTotal.WithLabelValues(op, "rejected").Inc()
		return nil, err
	}

	cur, err := s.templates.GetTemplate(ctx, templateID)
	if err != nil {
		telemetry.TemplateEditsTotal.WithLabelValues(op, "error").Inc()
		return nil, fmt.Errorf("get template %d: %w", templateID, err)
	}

	next, err := apply(cur)
	if err != nil {
		telemetry.TemplateEditsTotal.WithLabelValues(op, "rejected").Inc()
		logger.Warn("template edit rejected", "error", err)
		return nil, err
	}

	if err := s.templates.SaveTemplate(ctx, next, cur.Version); err != nil {
		result := "error"
		if errors.Is(err, repo.ErrStale) {
			result = "stale"
			logger.Warn("template changed concurrently", "version", cur.Version)
		}
		telemetry.TemplateEditsTotal.WithLabelValues(op, result).Inc()
		return nil, fmt.Errorf("save template %d: %w", templateID, err)
	}

	telemetry.TemplateEditsTotal.WithLabelValues(op, "ok").Inc()
	logger.Info("template updated", "version", next.Version)
	s.publishUpdated(ctx, p, next, op)

	return next, nil
}

// publishUpdated публикует template.updated. Ошибка публикации
// не отменяет сохранённое изменение.
func (s *Service) publishUpdated(ctx context.Context, p *auth.Principal, t *domain.Template, op string) {
	if s.events == nil {
		return
	}
	var userID int64
	if p != nil {
		userID = p.UserID
	}

	err := s.events.PublishEvent(ctx, domain.EventTemplateUpdated, domain.TemplateUpdatedEvent{
		TemplateID: t.ID,
		Version:    t.Version,
		Operation:  op,
		UserID:     userID,
	})
	if err != nil {
		telemetry.EventsPublishedTotal.WithLabelValues(string(domain.EventTemplateUpdated), "error").Inc()
		s.logger.Warn("failed to publish event",
			"type", domain.EventTemplateUpdated,
			"template_id", t.ID,
			"error", err,
		)
		return
	}
	telemetry.EventsPublishedTotal.WithLabelValues(string(domain.EventTemplateUpdated), "ok").Inc()
}
