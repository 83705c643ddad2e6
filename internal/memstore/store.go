// Package memstore - хранилище шаблонов, вопросов и анкет в памяти.
//
// Используется в тестах и в questionary-api при STORAGE=memory.
// Семантика совпадает с internal/repo: те же ошибки (repo.ErrNotFound,
// repo.ErrStale), атомарная замена шаблона с проверкой версии.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Questionary/internal/domain"
	"github.com/shaiso/Questionary/internal/repo"
)

// Store - потокобезопасное хранилище в памяти.
type Store struct {
	mu sync.RWMutex

	templates     map[int64]*domain.Template
	questions     map[string]*domain.Question
	questionaries map[int64]*domain.Questionary
	answers       map[int64]map[string]domain.Answer
	completion    map[int64]map[int64]bool
	events        []domain.EventLog

	nextTemplateID    int64
	nextQuestionaryID int64
}

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{
		templates:     make(map[int64]*domain.Template),
		questions:     make(map[string]*domain.Question),
		questionaries: make(map[int64]*domain.Questionary),
		answers:       make(map[int64]map[string]domain.Answer),
		completion:    make(map[int64]map[int64]bool),
	}
}

// --- Шаблоны ---

// GetTemplate возвращает копию шаблона с актуальными данными вопросов.
func (s *Store) GetTemplate(_ context.Context, id int64) (*domain.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.templates[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return s.snapshot(t), nil
}

// ListTemplates возвращает шаблоны по фильтру, упорядоченные по ID.
func (s *Store) ListTemplates(_ context.Context, filter domain.TemplateFilter) ([]domain.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.templates))
	for id, t := range s.templates {
		if filter.IsArchived != nil && t.IsArchived != *filter.IsArchived {
			continue
		}
		if filter.Category != nil && t.Category != *filter.Category {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if filter.Offset > 0 {
		ids = ids[min(filter.Offset, len(ids)):]
	}
	if filter.Limit > 0 && len(ids) > filter.Limit {
		ids = ids[:filter.Limit]
	}

	out := make([]domain.Template, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.snapshot(s.templates[id]))
	}
	return out, nil
}

// CreateTemplate сохраняет новый шаблон.
func (s *Store) CreateTemplate(_ context.Context, t *domain.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextTemplateID++
	t.ID = s.nextTemplateID
	t.Version = 1
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	for i := range t.Topics {
		t.Topics[i].TemplateID = t.ID
	}

	s.registerQuestions(t)
	s.templates[t.ID] = t.Clone()
	return nil
}

// SaveTemplate заменяет шаблон, если его версия равна expectedVersion.
func (s *Store) SaveTemplate(_ context.Context, t *domain.Template, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.templates[t.ID]
	if !ok {
		return repo.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return fmt.Errorf("%w: template %d is at version %d, expected %d",
			repo.ErrStale, t.ID, cur.Version, expectedVersion)
	}

	t.Version = expectedVersion + 1
	t.CreatedAt = cur.CreatedAt
	s.registerQuestions(t)
	s.templates[t.ID] = t.Clone()
	return nil
}

// registerQuestions создаёт вопросы полей, которых ещё нет в хранилище.
func (s *Store) registerQuestions(t *domain.Template) {
	for _, f := range t.Fields() {
		if _, exists := s.questions[f.Question.ID]; exists {
			continue
		}
		q := f.Question
		q.DefaultConfig = domain.CloneFieldConfig(q.DefaultConfig)
		s.questions[q.ID] = &q
	}
}

// snapshot возвращает копию шаблона, подставляя текущие данные вопросов.
func (s *Store) snapshot(t *domain.Template) *domain.Template {
	c := t.Clone()
	for _, f := range c.Fields() {
		if q, ok := s.questions[f.Question.ID]; ok {
			f.Question = *q
			f.Question.DefaultConfig = domain.CloneFieldConfig(q.DefaultConfig)
		}
	}
	return c
}

// --- Вопросы ---

// GetQuestion возвращает вопрос.
func (s *Store) GetQuestion(_ context.Context, id string) (*domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.questions[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	c := *q
	c.DefaultConfig = domain.CloneFieldConfig(q.DefaultConfig)
	return &c, nil
}

// ListQuestions возвращает все вопросы, упорядоченные по ID.
func (s *Store) ListQuestions(_ context.Context) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Question, 0, len(s.questions))
	for _, q := range s.questions {
		c := *q
		c.DefaultConfig = domain.CloneFieldConfig(q.DefaultConfig)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateQuestion сохраняет новый вопрос.
func (s *Store) CreateQuestion(_ context.Context, q *domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.questions[q.ID]; exists {
		return fmt.Errorf("%w: question %s", repo.ErrAlreadyExists, q.ID)
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}
	c := *q
	c.DefaultConfig = domain.CloneFieldConfig(q.DefaultConfig)
	s.questions[q.ID] = &c
	return nil
}

// UpdateQuestion заменяет вопрос.
func (s *Store) UpdateQuestion(_ context.Context, q *domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.questions[q.ID]; !exists {
		return repo.ErrNotFound
	}
	c := *q
	c.DefaultConfig = domain.CloneFieldConfig(q.DefaultConfig)
	s.questions[q.ID] = &c
	return nil
}

// --- Анкеты ---

// CreateQuestionary сохраняет новую анкету.
func (s *Store) CreateQuestionary(_ context.Context, q *domain.Questionary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextQuestionaryID++
	q.ID = s.nextQuestionaryID
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}
	c := *q
	s.questionaries[q.ID] = &c
	return nil
}

// GetQuestionary возвращает анкету.
func (s *Store) GetQuestionary(_ context.Context, id int64) (*domain.Questionary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.questionaries[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	c := *q
	return &c, nil
}

// ListQuestionaries возвращает анкеты (опционально одного шаблона).
func (s *Store) ListQuestionaries(_ context.Context, templateID *int64) ([]domain.Questionary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Questionary, 0, len(s.questionaries))
	for _, q := range s.questionaries {
		if templateID != nil && q.TemplateID != *templateID {
			continue
		}
		out = append(out, *q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetAnswers возвращает копию ответов анкеты.
func (s *Store) GetAnswers(_ context.Context, questionaryID int64) (map[string]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.Answer, len(s.answers[questionaryID]))
	for qid, a := range s.answers[questionaryID] {
		a.Value = append(json.RawMessage(nil), a.Value...)
		out[qid] = a
	}
	return out, nil
}

// SetAnswer создаёт или заменяет ответ.
func (s *Store) SetAnswer(_ context.Context, a *domain.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.questionaries[a.QuestionaryID]; !ok {
		return repo.ErrNotFound
	}
	a.UpdatedAt = time.Now().UTC()

	byQuestion, ok := s.answers[a.QuestionaryID]
	if !ok {
		byQuestion = make(map[string]domain.Answer)
		s.answers[a.QuestionaryID] = byQuestion
	}
	c := *a
	c.Value = append(json.RawMessage(nil), a.Value...)
	byQuestion[a.QuestionID] = c
	return nil
}

// DeleteAnswer удаляет ответ.
func (s *Store) DeleteAnswer(_ context.Context, questionaryID int64, questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.answers[questionaryID], questionID)
	return nil
}

// GetCompletion возвращает сохранённую заполненность разделов.
func (s *Store) GetCompletion(_ context.Context, questionaryID int64) (map[int64]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int64]bool, len(s.completion[questionaryID]))
	for topicID, done := range s.completion[questionaryID] {
		out[topicID] = done
	}
	return out, nil
}

// SaveCompletion заменяет снимок заполненности разделов анкеты.
func (s *Store) SaveCompletion(_ context.Context, questionaryID int64, completion []domain.TopicCompletion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[int64]bool, len(completion))
	for _, c := range completion {
		snapshot[c.TopicID] = c.IsComplete
	}
	s.completion[questionaryID] = snapshot
	return nil
}

// --- Журнал событий ---

// InsertEventLog добавляет запись в журнал. Повтор ID игнорируется.
func (s *Store) InsertEventLog(_ context.Context, e *domain.EventLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.events {
		if existing.ID == e.ID {
			return nil
		}
	}
	s.events = append(s.events, *e)
	return nil
}

// ListEventLogs возвращает последние записи журнала (новые первыми).
func (s *Store) ListEventLogs(_ context.Context, limit int) ([]domain.EventLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.EventLog, 0, len(s.events))
	for i := len(s.events) - 1; i >= 0; i-- {
		out = append(out, s.events[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// PublishEvent записывает событие прямо в журнал.
// Заменяет RabbitMQ в режиме разработки.
func (s *Store) PublishEvent(ctx context.Context, eventType domain.EventType, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return s.InsertEventLog(ctx, &domain.EventLog{
		ID:        uuid.NewString(),
		Type:      string(eventType),
		Payload:   body,
		CreatedAt: time.Now().UTC(),
	})
}
