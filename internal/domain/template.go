package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Operator - оператор условия зависимости.
//
// Набор операторов закрыт; добавление нового оператора - изменение
// этого перечисления и таблицы в engine.NewConditions.
type Operator string

const (
	// OperatorEQ - ответ равен параметру.
	OperatorEQ Operator = "eq"

	// OperatorNEQ - ответ не равен параметру.
	OperatorNEQ Operator = "neq"
)

// Operators возвращает все поддерживаемые операторы.
func Operators() []Operator {
	return []Operator{OperatorEQ, OperatorNEQ}
}

// TemplateCategory - категория шаблона.
type TemplateCategory string

const (
	// CategoryProposal - анкета предложения.
	CategoryProposal TemplateCategory = "PROPOSAL_QUESTIONARY"

	// CategorySample - декларация образца.
	CategorySample TemplateCategory = "SAMPLE_DECLARATION"
)

// IsValid возвращает true для известной категории.
func (c TemplateCategory) IsValid() bool {
	return c == CategoryProposal || c == CategorySample
}

// FieldCondition - условие видимости поля.
type FieldCondition struct {
	// Operator - оператор сравнения.
	Operator Operator

	// Params - значение, с которым сравнивается ответ.
	// Kind совпадает с DataType вопроса, от которого зависит поле.
	Params Value
}

type conditionJSON struct {
	Operator Operator        `json:"operator"`
	Params   json.RawMessage `json:"params"`
}

// EncodeFieldCondition сериализует условие.
func EncodeFieldCondition(c FieldCondition) (json.RawMessage, error) {
	params, err := c.Params.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode condition params: %w", err)
	}
	return json.Marshal(conditionJSON{Operator: c.Operator, Params: params})
}

// DecodeFieldCondition разбирает условие; параметры типизируются
// по DataType вопроса-цели зависимости.
func DecodeFieldCondition(target DataType, raw []byte) (FieldCondition, error) {
	var cj conditionJSON
	if err := json.Unmarshal(raw, &cj); err != nil {
		return FieldCondition{}, fmt.Errorf("decode condition: %w", err)
	}
	params, err := DecodeValue(target, cj.Params)
	if err != nil {
		return FieldCondition{}, fmt.Errorf("decode condition params: %w", err)
	}
	if params == nil {
		return FieldCondition{}, fmt.Errorf("%w: condition params are empty", ErrValueType)
	}
	return FieldCondition{Operator: cj.Operator, Params: *params}, nil
}

// FieldDependency - зависимость видимости поля от ответа на другой вопрос.
type FieldDependency struct {
	// QuestionID - поле, видимость которого зависит.
	QuestionID string

	// DependencyID - вопрос, от ответа на который зависит поле.
	DependencyID string

	// Condition - условие на ответ DependencyID.
	Condition FieldCondition
}

// QuestionTemplateRelation - размещение вопроса в шаблоне (поле шаблона).
type QuestionTemplateRelation struct {
	// Question - вопрос.
	Question Question

	// TopicID - раздел, в котором находится поле.
	TopicID int64

	// SortOrder - позиция внутри раздела (0..n-1).
	SortOrder int

	// Config - конфигурация поля в этом шаблоне (переопределяет DefaultConfig).
	Config FieldConfig

	// Dependency - условие видимости. nil - поле видно всегда.
	Dependency *FieldDependency
}

// IsRequired возвращает true, если поле обязательно.
func (r *QuestionTemplateRelation) IsRequired() bool {
	if r.Config == nil {
		return false
	}
	return r.Config.Common().Required
}

// Clone возвращает глубокую копию поля.
func (r QuestionTemplateRelation) Clone() QuestionTemplateRelation {
	c := r
	c.Question.DefaultConfig = CloneFieldConfig(r.Question.DefaultConfig)
	c.Config = CloneFieldConfig(r.Config)
	if r.Dependency != nil {
		dep := *r.Dependency
		dep.Condition.Params.Items = append([]string(nil), r.Dependency.Condition.Params.Items...)
		c.Dependency = &dep
	}
	return c
}

// Topic - раздел шаблона.
type Topic struct {
	// ID - идентификатор раздела. 0 - раздел ещё не сохранён.
	ID int64 `json:"id"`

	// TemplateID - шаблон, которому принадлежит раздел.
	TemplateID int64 `json:"template_id"`

	// Title - заголовок.
	Title string `json:"title"`

	// SortOrder - позиция в шаблоне (0..n-1).
	SortOrder int `json:"sort_order"`

	// IsEnabled - раздел включён. Выключенный раздел не показывается.
	IsEnabled bool `json:"is_enabled"`

	// Fields - поля раздела, упорядоченные по SortOrder.
	Fields []QuestionTemplateRelation `json:"fields"`
}

// Template - шаблон анкеты.
//
// Шаблон владеет своими разделами и полями (каскадное удаление).
// Вопросы шаблону не принадлежат.
type Template struct {
	// ID - идентификатор шаблона.
	ID int64 `json:"id"`

	// Name - название.
	Name string `json:"name"`

	// Description - описание.
	Description string `json:"description,omitempty"`

	// Category - категория шаблона.
	Category TemplateCategory `json:"category"`

	// IsArchived - архивный шаблон: новые анкеты по нему не создаются,
	// существующие остаются читаемыми.
	IsArchived bool `json:"is_archived"`

	// Version - номер снимка для оптимистичной блокировки.
	// Хранилище увеличивает его при каждом сохранении.
	Version int `json:"version"`

	// CreatedAt - время создания.
	CreatedAt time.Time `json:"created_at"`

	// Topics - разделы, упорядоченные по SortOrder.
	Topics []Topic `json:"topics"`
}

// Clone возвращает глубокую копию шаблона.
func (t *Template) Clone() *Template {
	c := *t
	c.Topics = make([]Topic, len(t.Topics))
	for i, topic := range t.Topics {
		ct := topic
		ct.Fields = make([]QuestionTemplateRelation, len(topic.Fields))
		for j, f := range topic.Fields {
			ct.Fields[j] = f.Clone()
		}
		c.Topics[i] = ct
	}
	return &c
}

// Topic возвращает раздел по ID.
func (t *Template) Topic(id int64) (*Topic, bool) {
	for i := range t.Topics {
		if t.Topics[i].ID == id {
			return &t.Topics[i], true
		}
	}
	return nil, false
}

// Field возвращает поле по ID вопроса.
func (t *Template) Field(questionID string) (*QuestionTemplateRelation, bool) {
	for i := range t.Topics {
		for j := range t.Topics[i].Fields {
			if t.Topics[i].Fields[j].Question.ID == questionID {
				return &t.Topics[i].Fields[j], true
			}
		}
	}
	return nil, false
}

// Fields возвращает все поля шаблона в порядке отображения.
func (t *Template) Fields() []*QuestionTemplateRelation {
	fields := make([]*QuestionTemplateRelation, 0)
	for i := range t.Topics {
		for j := range t.Topics[i].Fields {
			fields = append(fields, &t.Topics[i].Fields[j])
		}
	}
	return fields
}

// QuestionIDs возвращает множество ID вопросов шаблона.
func (t *Template) QuestionIDs() map[string]bool {
	ids := make(map[string]bool)
	for _, f := range t.Fields() {
		ids[f.Question.ID] = true
	}
	return ids
}
