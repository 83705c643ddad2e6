package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// JSON-представление шаблона.
//
// Конфигурации полей и параметры условий типизированы, поэтому
// разбор идёт в два прохода: сначала собираются типы всех вопросов
// шаблона, затем по ним декодируются config и condition.params.

type dependencyJSON struct {
	DependencyID string          `json:"dependency_id"`
	Condition    json.RawMessage `json:"condition"`
}

type fieldJSON struct {
	Question   Question        `json:"question"`
	TopicID    int64           `json:"topic_id"`
	SortOrder  int             `json:"sort_order"`
	Config     json.RawMessage `json:"config,omitempty"`
	Dependency *dependencyJSON `json:"dependency,omitempty"`
}

type topicJSON struct {
	ID         int64       `json:"id"`
	TemplateID int64       `json:"template_id"`
	Title      string      `json:"title"`
	SortOrder  int         `json:"sort_order"`
	IsEnabled  bool        `json:"is_enabled"`
	Fields     []fieldJSON `json:"fields"`
}

type templateJSON struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Category    TemplateCategory `json:"category"`
	IsArchived  bool             `json:"is_archived"`
	Version     int              `json:"version"`
	CreatedAt   time.Time        `json:"created_at"`
	Topics      []topicJSON      `json:"topics"`
}

// MarshalJSON сериализует поле шаблона.
func (r QuestionTemplateRelation) MarshalJSON() ([]byte, error) {
	fj, err := encodeField(r)
	if err != nil {
		return nil, err
	}
	return json.Marshal(fj)
}

func encodeField(r QuestionTemplateRelation) (fieldJSON, error) {
	cfg, err := EncodeFieldConfig(r.Config)
	if err != nil {
		return fieldJSON{}, err
	}
	fj := fieldJSON{
		Question:  r.Question,
		TopicID:   r.TopicID,
		SortOrder: r.SortOrder,
		Config:    cfg,
	}
	if r.Dependency != nil {
		cond, err := EncodeFieldCondition(r.Dependency.Condition)
		if err != nil {
			return fieldJSON{}, err
		}
		fj.Dependency = &dependencyJSON{
			DependencyID: r.Dependency.DependencyID,
			Condition:    cond,
		}
	}
	return fj, nil
}

// MarshalJSON сериализует шаблон.
func (t Template) MarshalJSON() ([]byte, error) {
	tj := templateJSON{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Category:    t.Category,
		IsArchived:  t.IsArchived,
		Version:     t.Version,
		CreatedAt:   t.CreatedAt,
		Topics:      make([]topicJSON, len(t.Topics)),
	}
	for i, topic := range t.Topics {
		tp := topicJSON{
			ID:         topic.ID,
			TemplateID: topic.TemplateID,
			Title:      topic.Title,
			SortOrder:  topic.SortOrder,
			IsEnabled:  topic.IsEnabled,
			Fields:     make([]fieldJSON, len(topic.Fields)),
		}
		for j, f := range topic.Fields {
			fj, err := encodeField(f)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Question.ID, err)
			}
			tp.Fields[j] = fj
		}
		tj.Topics[i] = tp
	}
	return json.Marshal(tj)
}

// UnmarshalJSON разбирает шаблон с типизацией конфигураций и условий.
func (t *Template) UnmarshalJSON(data []byte) error {
	var tj templateJSON
	if err := json.Unmarshal(data, &tj); err != nil {
		return err
	}

	// Первый проход: типы вопросов
	types := make(map[string]DataType)
	for _, topic := range tj.Topics {
		for _, f := range topic.Fields {
			types[f.Question.ID] = f.Question.DataType
		}
	}

	// Второй проход: поля
	out := Template{
		ID:          tj.ID,
		Name:        tj.Name,
		Description: tj.Description,
		Category:    tj.Category,
		IsArchived:  tj.IsArchived,
		Version:     tj.Version,
		CreatedAt:   tj.CreatedAt,
		Topics:      make([]Topic, len(tj.Topics)),
	}
	for i, topic := range tj.Topics {
		tp := Topic{
			ID:         topic.ID,
			TemplateID: topic.TemplateID,
			Title:      topic.Title,
			SortOrder:  topic.SortOrder,
			IsEnabled:  topic.IsEnabled,
			Fields:     make([]QuestionTemplateRelation, len(topic.Fields)),
		}
		for j, f := range topic.Fields {
			field, err := decodeField(f, types)
			if err != nil {
				return fmt.Errorf("field %s: %w", f.Question.ID, err)
			}
			tp.Fields[j] = field
		}
		out.Topics[i] = tp
	}

	*t = out
	return nil
}

func decodeField(f fieldJSON, types map[string]DataType) (QuestionTemplateRelation, error) {
	cfg, err := DecodeFieldConfig(f.Question.DataType, f.Config)
	if err != nil {
		return QuestionTemplateRelation{}, err
	}
	r := QuestionTemplateRelation{
		Question:  f.Question,
		TopicID:   f.TopicID,
		SortOrder: f.SortOrder,
		Config:    cfg,
	}
	if f.Dependency != nil {
		target, ok := types[f.Dependency.DependencyID]
		if !ok {
			return QuestionTemplateRelation{}, fmt.Errorf("dependency on unknown question %q", f.Dependency.DependencyID)
		}
		cond, err := DecodeFieldCondition(target, f.Dependency.Condition)
		if err != nil {
			return QuestionTemplateRelation{}, err
		}
		r.Dependency = &FieldDependency{
			QuestionID:   f.Question.ID,
			DependencyID: f.Dependency.DependencyID,
			Condition:    cond,
		}
	}
	return r, nil
}
