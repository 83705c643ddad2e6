package questionary

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"time"

	"github.com/shaiso/Questionary/internal/auth"
	"github.com/shaiso/Questionary/internal/domain"
	"github.com/shaiso/Questionary/internal/engine"
	"github.com/shaiso/Questionary/internal/telemetry"
)

// TemplateReader - чтение шаблонов.
type TemplateReader interface {
	GetTemplate(ctx context.Context, id int64) (*domain.Template, error)
}

// Store - хранилище анкет и ответов.
type Store interface {
	CreateQuestionary(ctx context.Context, q *domain.Questionary) error
	GetQuestionary(ctx context.Context, id int64) (*domain.Questionary, error)
	ListQuestionaries(ctx context.Context, templateID *int64) ([]domain.Questionary, error)

	// GetAnswers возвращает все ответы анкеты (questionID → Answer),
	// включая ответы на вопросы, которых уже нет в шаблоне.
	GetAnswers(ctx context.Context, questionaryID int64) (map[string]domain.Answer, error)

	// SetAnswer создаёт или заменяет ответ, заполняет UpdatedAt.
	SetAnswer(ctx context.Context, a *domain.Answer) error

	// DeleteAnswer удаляет ответ. Отсутствие ответа не ошибка.
	DeleteAnswer(ctx context.Context, questionaryID int64, questionID string) error

	GetCompletion(ctx context.Context, questionaryID int64) (map[int64]bool, error)
	SaveCompletion(ctx context.Context, questionaryID int64, completion []domain.TopicCompletion) error
}

// EventPublisher публикует доменные события.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType domain.EventType, payload any) error
}

// Service вычисляет анкеты и принимает ответы.
type Service struct {
	templates TemplateReader
	store     Store
	conds     *engine.Conditions
	authz     auth.Authorizer
	events    EventPublisher
	logger    *slog.Logger
}

// Config - зависимости Service. Events может быть nil.
type Config struct {
	Templates  TemplateReader
	Store      Store
	Conditions *engine.Conditions
	Authorizer auth.Authorizer
	Events     EventPublisher
	Logger     *slog.Logger
}

// NewService создаёт новый Service.
func NewService(cfg Config) *Service {
	conds := cfg.Conditions
	if conds == nil {
		conds = engine.NewConditions()
	}
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
		store:     cfg.Store,
		conds:     conds,
		authz:     authz,
		events:    cfg.Events,
		logger:    logger,
	}
}

// AnswerResult - результат ответа на вопрос.
type AnswerResult struct {
	*Evaluation

	// Toggled - вопросы, чья активность изменилась из-за ответа.
	Toggled []string `json:"toggled"`
}

// CreateQuestionary создаёт анкету по шаблону. Архивный шаблон: ErrTemplateArchived.
func (s *Service) CreateQuestionary(ctx context.Context, p *auth.Principal, templateID int64) (*domain.Questionary, error) {
	if err := auth.Check(ctx, s.authz, p, auth.ActionCreateQuestionary, auth.Resource{}); err != nil {
		return nil, err
	}

	t, err := s.templates.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("get template %d: %w", templateID, err)
	}
	if t.IsArchived {
		return nil, fmt.Errorf("%w: %d", ErrTemplateArchived, templateID)
	}

	qn := &domain.Questionary{
		TemplateID: templateID,
		CreatorID:  p.UserID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.CreateQuestionary(ctx, qn); err != nil {
		return nil, fmt.Errorf("create questionary: %w", err)
	}

	telemetry.WithQuestionaryID(s.logger, qn.ID).Info("questionary created",
		"template_id", templateID,
		"creator_id", qn.CreatorID,
	)
	return qn, nil
}

// GetQuestionary возвращает анкету.
func (s *Service) GetQuestionary(ctx context.Context, p *auth.Principal, id int64) (*domain.Questionary, error) {
	qn, err := s.store.GetQuestionary(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get questionary %d: %w", id, err)
	}
	if err := auth.Check(ctx, s.authz, p, auth.ActionReadQuestionary, auth.Resource{OwnerID: qn.CreatorID}); err != nil {
		return nil, err
	}
	return qn, nil
}

// ListQuestionaries возвращает анкеты, доступные пользователю.
func (s *Service) ListQuestionaries(ctx context.Context, p *auth.Principal, templateID *int64) ([]domain.Questionary, error) {
	all, err := s.store.ListQuestionaries(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("list questionaries: %w", err)
	}

	visible := make([]domain.Questionary, 0, len(all))
	for _, qn := range all {
		if s.authz.Allowed(ctx, p, auth.ActionReadQuestionary, auth.Resource{OwnerID: qn.CreatorID}) {
			visible = append(visible, qn)
		}
	}
	return visible, nil
}

// Evaluate вычисляет анкету по текущему шаблону и ответам.
//
// Ошибка вычисления одного поля не прерывает вычисление: поле
// становится неактивным и попадает в Diagnostics.
func (s *Service) Evaluate(ctx context.Context, p *auth.Principal, questionaryID int64) (*Evaluation, error) {
	qn, err := s.GetQuestionary(ctx, p, questionaryID)
	if err != nil {
		return nil, err
	}

	t, stored, err := s.load(ctx, qn)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	answers := typeAnswers(t, stored)
	graph := engine.BuildGraph(t)
	active, diags := graph.ActiveQuestions(s.conds, answers.values)
	ev := evaluate(qn, t, answers, active, diags)
	s.observe(start, ev)

	return ev, nil
}

// AnswerQuestion проверяет и сохраняет ответ, затем заново вычисляет
// всю анкету и сохраняет заполненность разделов.
//
// raw - JSON значения; null очищает ответ. Ответ на вопрос вне шаблона,
// на скрытый вопрос или на оформление отклоняется с engine.ValidationError.
func (s *Service) AnswerQuestion(ctx context.Context, p *auth.Principal, questionaryID int64, questionID string, raw json.RawMessage) (*AnswerResult, error) {
	logger := telemetry.WithQuestionaryID(s.logger, questionaryID).With("question_id", questionID)

	qn, err := s.store.GetQuestionary(ctx, questionaryID)
	if err != nil {
		return nil, fmt.Errorf("get questionary %d: %w", questionaryID, err)
	}
	if err := auth.Check(ctx, s.authz, p, auth.ActionAnswerQuestionary, auth.Resource{OwnerID: qn.CreatorID}); err != nil {
		return nil, err
	}

	t, stored, err := s.load(ctx, qn)
	if err != nil {
		return nil, err
	}

	field, ok := t.Field(questionID)
	if !ok {
		telemetry.AnswersTotal.WithLabelValues("invalid").Inc()
		return nil, engine.NewValidationError(questionID, "question_id",
			"question is not in template", ErrQuestionNotInTemplate)
	}
	if !field.Question.DataType.IsAnswerable() {
		telemetry.AnswersTotal.WithLabelValues("invalid").Inc()
		return nil, engine.NewValidationError(questionID, "question_id",
			fmt.Sprintf("%s cannot be answered", field.Question.DataType), domain.ErrNotAnswerable)
	}

	value, err := domain.DecodeValue(field.Question.DataType, raw)
	if err != nil {
		telemetry.AnswersTotal.WithLabelValues("invalid").Inc()
		return nil, engine.NewValidationError(questionID, "value", err.Error(), engine.ErrAnswerType)
	}

	answers := typeAnswers(t, stored)
	graph := engine.BuildGraph(t)
	before, _ := graph.ActiveQuestions(s.conds, answers.values)
	if !before[questionID] {
		telemetry.AnswersTotal.WithLabelValues("invalid").Inc()
		return nil, engine.NewValidationError(questionID, "question_id",
			"question is hidden by its dependency", ErrInactiveQuestion)
	}

	if value != nil {
		if err := engine.ValidateAnswer(field, value); err != nil {
			telemetry.AnswersTotal.WithLabelValues("invalid").Inc()
			return nil, err
		}
	}

	if err := s.persistAnswer(ctx, qn.ID, field, value); err != nil {
		telemetry.AnswersTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if value != nil {
		answers.values[questionID] = *value
	} else {
		delete(answers.values, questionID)
	}

	active := maps.Clone(before)
	toggled, _ := graph.Refresh(s.conds, active, answers.values, questionID)
	sort.Strings(toggled)

	start := time.Now()
	full, diags := graph.ActiveQuestions(s.conds, answers.values)
	ev := evaluate(qn, t, answers, full, diags)
	s.observe(start, ev)

	if err := s.saveCompletion(ctx, ev); err != nil {
		telemetry.AnswersTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	telemetry.AnswersTotal.WithLabelValues("ok").Inc()
	logger.Info("answer saved",
		"cleared", value == nil,
		"toggled", len(toggled),
		"completed", ev.IsCompleted,
	)

	var userID int64
	if p != nil {
		userID = p.UserID
	}
	s.publish(ctx, domain.EventAnswerSubmitted, domain.AnswerSubmittedEvent{
		QuestionaryID: qn.ID,
		QuestionID:    questionID,
		UserID:        userID,
		Cleared:       value == nil,
		Toggled:       toggled,
	})

	return &AnswerResult{Evaluation: ev, Toggled: toggled}, nil
}

// --- Вспомогательные методы ---

// load загружает шаблон анкеты и все её ответы.
func (s *Service) load(ctx context.Context, qn *domain.Questionary) (*domain.Template, map[string]domain.Answer, error) {
	t, err := s.templates.GetTemplate(ctx, qn.TemplateID)
	if err != nil {
		return nil, nil, fmt.Errorf("get template %d: %w", qn.TemplateID, err)
	}
	stored, err := s.store.GetAnswers(ctx, qn.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("get answers: %w", err)
	}
	return t, stored, nil
}

// persistAnswer сохраняет ответ или удаляет его (value == nil).
func (s *Service) persistAnswer(ctx context.Context, questionaryID int64, field *domain.QuestionTemplateRelation, value *domain.Value) error {
	if value == nil {
		if err := s.store.DeleteAnswer(ctx, questionaryID, field.Question.ID); err != nil {
			return fmt.Errorf("delete answer: %w", err)
		}
		return nil
	}

	raw, err := value.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode answer: %w", err)
	}
	a := &domain.Answer{
		QuestionaryID: questionaryID,
		QuestionID:    field.Question.ID,
		Value:         raw,
		TopicID:       field.TopicID,
		SortOrder:     field.SortOrder,
	}
	if err := s.store.SetAnswer(ctx, a); err != nil {
		return fmt.Errorf("set answer: %w", err)
	}
	return nil
}

// saveCompletion сохраняет заполненность разделов и публикует
// topic.completed для разделов, чьё состояние изменилось.
func (s *Service) saveCompletion(ctx context.Context, ev *Evaluation) error {
	prev, err := s.store.GetCompletion(ctx, ev.QuestionaryID)
	if err != nil {
		return fmt.Errorf("get completion: %w", err)
	}

	completion := ev.Completion()
	if err := s.store.SaveCompletion(ctx, ev.QuestionaryID, completion); err != nil {
		return fmt.Errorf("save completion: %w", err)
	}

	for _, c := range completion {
		// Без прежнего снимка раздел считается незаполненным
		if was := prev[c.TopicID]; was == c.IsComplete {
			continue
		}
		s.publish(ctx, domain.EventTopicCompleted, domain.TopicCompletedEvent{
			QuestionaryID: ev.QuestionaryID,
			TopicID:       c.TopicID,
			IsComplete:    c.IsComplete,
		})
	}
	return nil
}

// observe записывает метрики вычисления.
func (s *Service) observe(start time.Time, ev *Evaluation) {
	telemetry.EvaluationDuration.Observe(time.Since(start).Seconds())
	if n := len(ev.Diagnostics); n > 0 {
		telemetry.EvaluationDiagnosticsTotal.Add(float64(n))
		s.logger.Warn("questionary evaluated with diagnostics",
			"questionary_id", ev.QuestionaryID,
			"template_id", ev.TemplateID,
			"diagnostics", n,
		)
	}
}

// publish публикует событие. Ошибка публикации только логируется.
func (s *Service) publish(ctx context.Context, eventType domain.EventType, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishEvent(ctx, eventType, payload); err != nil {
		telemetry.EventsPublishedTotal.WithLabelValues(string(eventType), "error").Inc()
		s.logger.Warn("failed to publish event", "type", eventType, "error", err)
		return
	}
	telemetry.EventsPublishedTotal.WithLabelValues(string(eventType), "ok").Inc()
}

// sortedTopics возвращает разделы в порядке SortOrder.
func sortedTopics(t *domain.Template) []domain.Topic {
	topics := make([]domain.Topic, len(t.Topics))
	copy(topics, t.Topics)
	sort.SliceStable(topics, func(i, j int) bool { return topics[i].SortOrder < topics[j].SortOrder })
	return topics
}

// sortedFields возвращает поля раздела в порядке SortOrder.
func sortedFields(topic domain.Topic) []domain.QuestionTemplateRelation {
	fields := make([]domain.QuestionTemplateRelation, len(topic.Fields))
	copy(fields, topic.Fields)
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].SortOrder < fields[j].SortOrder })
	return fields
}

// sortAnswers упорядочивает ответы по разделу, позиции и вопросу.
func sortAnswers(answers []domain.Answer) {
	sort.Slice(answers, func(i, j int) bool {
		a, b := answers[i], answers[j]
		if a.TopicID != b.TopicID {
			return a.TopicID < b.TopicID
		}
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		return a.QuestionID < b.QuestionID
	})
}
