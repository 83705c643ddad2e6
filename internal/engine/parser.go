package engine

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/shaiso/Questionary/internal/domain"
)

// ParseTemplate разбирает шаблон из JSON и проверяет его структуру.
func ParseTemplate(data []byte) (*domain.Template, error) {
	var t domain.Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	if err := ValidateTemplate(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ValidateTemplate выполняет полную структурную проверку шаблона.
//
// Проверяет:
// - Уникальность ID разделов (0 допустим для ещё не сохранённых)
// - Плотность SortOrder разделов и полей (0..n-1 без повторов)
// - Соответствие TopicID поля его разделу
// - Уникальность вопросов в шаблоне
// - Соответствие типа конфигурации типу вопроса
// - Зависимости: оператор известен, цель существует, тип параметров совпадает, нет циклов
//
// Вызывается на границе хранилища перед каждой записью шаблона.
func ValidateTemplate(t *domain.Template) error {
	topicIDs := make(map[int64]bool)
	topicOrders := make([]int, 0, len(t.Topics))

	for i := range t.Topics {
		topic := &t.Topics[i]

		if topic.ID != 0 {
			if topicIDs[topic.ID] {
				return NewValidationError("", "topics",
					fmt.Sprintf("duplicate topic ID: %d", topic.ID), ErrDuplicateTopicID)
			}
			topicIDs[topic.ID] = true
		}
		topicOrders = append(topicOrders, topic.SortOrder)

		if err := validateTopicFields(topic); err != nil {
			return err
		}
	}

	if !isDense(topicOrders) {
		return NewValidationError("", "topics.sort_order",
			"topic sort orders must form 0..n-1", ErrSortOrder)
	}

	g := BuildGraph(t)
	if problems := g.Problems(); len(problems) > 0 {
		return problems[0]
	}

	return nil
}

// validateTopicFields проверяет поля одного раздела.
func validateTopicFields(topic *domain.Topic) error {
	orders := make([]int, 0, len(topic.Fields))

	for j := range topic.Fields {
		f := &topic.Fields[j]
		id := f.Question.ID

		if id == "" {
			return NewValidationError("", "question.id",
				fmt.Sprintf("field %d of topic %q has empty question ID", j, topic.Title), ErrDuplicateQuestion)
		}
		if f.TopicID != topic.ID {
			return NewValidationError(id, "topic_id",
				fmt.Sprintf("field topic %d, placed in topic %d", f.TopicID, topic.ID), ErrTopicMismatch)
		}
		if f.Config == nil || f.Config.Kind() != f.Question.DataType {
			return NewValidationError(id, "config",
				fmt.Sprintf("config does not match data type %s", f.Question.DataType), ErrConfigMismatch)
		}
		if f.Dependency != nil && f.Dependency.QuestionID != id {
			return NewValidationError(id, "dependency",
				fmt.Sprintf("dependency belongs to %s", f.Dependency.QuestionID), ErrTopicMismatch)
		}
		if f.Dependency != nil && !slices.Contains(domain.Operators(), f.Dependency.Condition.Operator) {
			return NewValidationError(id, "dependency.condition.operator",
				fmt.Sprintf("operator %q", f.Dependency.Condition.Operator), ErrUnsupportedOperator)
		}
		orders = append(orders, f.SortOrder)
	}

	if !isDense(orders) {
		return NewValidationError("", "fields.sort_order",
			fmt.Sprintf("field sort orders of topic %q must form 0..n-1", topic.Title), ErrSortOrder)
	}

	return nil
}

// isDense проверяет, что значения образуют перестановку 0..n-1.
func isDense(orders []int) bool {
	seen := make([]bool, len(orders))
	for _, o := range orders {
		if o < 0 || o >= len(orders) || seen[o] {
			return false
		}
		seen[o] = true
	}
	return true
}
