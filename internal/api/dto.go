package api

import (
	"encoding/json"
	"fmt"

	"github.com/shaiso/Questionary/internal/domain"
	"github.com/shaiso/Questionary/internal/editor"
	"github.com/shaiso/Questionary/internal/engine"
)

// Шаблоны и разделы, вопросы и поля отдаются в собственном
// JSON-представлении domain. Здесь только тела запросов.

// Template DTOs

// CreateTemplateRequest - запрос на создание шаблона.
type CreateTemplateRequest struct {
	Name        string                  `json:"name"`
	Description string                  `json:"description,omitempty"`
	Category    domain.TemplateCategory `json:"category,omitempty"`
}

// UpdateTemplateRequest - запрос на обновление шаблона.
type UpdateTemplateRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	IsArchived  *bool   `json:"is_archived,omitempty"`
}

// Topic DTOs

// CreateTopicRequest - запрос на создание раздела.
// Без sort_order раздел добавляется в конец.
type CreateTopicRequest struct {
	Title     string `json:"title"`
	SortOrder *int   `json:"sort_order,omitempty"`
}

// UpdateTopicRequest - запрос на обновление раздела.
type UpdateTopicRequest struct {
	Title     *string `json:"title,omitempty"`
	IsEnabled *bool   `json:"is_enabled,omitempty"`
}

// ReorderTopicsRequest - новый порядок разделов.
type ReorderTopicsRequest struct {
	TopicIDs []int64 `json:"topic_ids"`
}

// CreatedTopicResponse - шаблон после добавления раздела и сам раздел.
type CreatedTopicResponse struct {
	Template *domain.Template `json:"template"`
	TopicID  int64            `json:"topic_id"`
}

// Field DTOs

// CreateFieldRequest - запрос на добавление поля в раздел.
//
// С question_id в раздел добавляется существующий вопрос,
// иначе создаётся новый вопрос типа data_type.
type CreateFieldRequest struct {
	TopicID    int64           `json:"topic_id"`
	DataType   domain.DataType `json:"data_type,omitempty"`
	QuestionID string          `json:"question_id,omitempty"`
	SortOrder  *int            `json:"sort_order,omitempty"`
}

// CreatedFieldResponse - шаблон после добавления поля и ID вопроса.
type CreatedFieldResponse struct {
	Template   *domain.Template `json:"template"`
	QuestionID string           `json:"question_id"`
}

// MoveFieldRequest - перенос поля в раздел на позицию.
type MoveFieldRequest struct {
	TopicID   int64 `json:"topic_id"`
	SortOrder int   `json:"sort_order"`
}

// DependencyRequest - зависимость поля.
type DependencyRequest struct {
	DependencyID string          `json:"dependency_id"`
	Condition    json.RawMessage `json:"condition"`
}

// UpdateFieldRequest - составное изменение поля.
//
// Config и Dependency разбираются по типам вопросов шаблона.
// "dependency": null снимает зависимость, отсутствие ключа её не меняет.
type UpdateFieldRequest struct {
	TopicID    *int64          `json:"topic_id,omitempty"`
	SortOrder  *int            `json:"sort_order,omitempty"`
	Config     json.RawMessage `json:"config,omitempty"`
	Dependency json.RawMessage `json:"dependency,omitempty"`
}

// Question DTOs

// CreateQuestionRequest - запрос на создание вопроса.
type CreateQuestionRequest struct {
	DataType      domain.DataType `json:"data_type"`
	NaturalKey    string          `json:"natural_key"`
	Question      string          `json:"question"`
	DefaultConfig json.RawMessage `json:"default_config,omitempty"`
}

// UpdateQuestionRequest - запрос на изменение вопроса.
type UpdateQuestionRequest struct {
	DataType      *domain.DataType `json:"data_type,omitempty"`
	NaturalKey    *string          `json:"natural_key,omitempty"`
	Question      *string          `json:"question,omitempty"`
	DefaultConfig json.RawMessage  `json:"default_config,omitempty"`
}

// Questionary DTOs

// CreateQuestionaryRequest - запрос на создание анкеты.
type CreateQuestionaryRequest struct {
	TemplateID int64 `json:"template_id"`
}

// AnswerRequest - ответ на вопрос. "value": null очищает ответ.
type AnswerRequest struct {
	Value json.RawMessage `json:"value"`
}

// decodeDependency разбирает зависимость поля questionID.
// Параметры условия типизируются по вопросу-цели в шаблоне t.
func decodeDependency(t *domain.Template, questionID string, raw json.RawMessage) (*domain.FieldDependency, error) {
	if isNull(raw) {
		return nil, nil
	}

	var req DependencyRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("%w: dependency: %v", editor.ErrInvalidInput, err)
	}
	target, ok := t.Field(req.DependencyID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", engine.ErrMissingDependency, req.DependencyID)
	}
	cond, err := domain.DecodeFieldCondition(target.Question.DataType, req.Condition)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", editor.ErrInvalidInput, err)
	}
	return &domain.FieldDependency{
		QuestionID:   questionID,
		DependencyID: req.DependencyID,
		Condition:    cond,
	}, nil
}

// decodeConfig разбирает конфигурацию поля типа dt. Пустой raw и null дают nil.
func decodeConfig(dt domain.DataType, raw json.RawMessage) (domain.FieldConfig, error) {
	if isNull(raw) {
		return nil, nil
	}
	cfg, err := domain.DecodeFieldConfig(dt, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", editor.ErrInvalidInput, err)
	}
	return cfg, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
