package domain

import (
	"encoding/json"
	"time"
)

// Questionary - экземпляр шаблона, заполняемый для одного предложения.
//
// Анкета ссылается на шаблон по ID, но не фиксирует его версию:
// шаблон может измениться после создания анкеты, и вычисление
// анкеты должно это переносить.
type Questionary struct {
	// ID - идентификатор анкеты.
	ID int64 `json:"id"`

	// TemplateID - шаблон, по которому создана анкета.
	TemplateID int64 `json:"template_id"`

	// CreatorID - пользователь, создавший анкету.
	CreatorID int64 `json:"creator_id"`

	// CreatedAt - время создания.
	CreatedAt time.Time `json:"created_at"`
}

// Answer - сохранённый ответ на вопрос анкеты.
//
// Value хранится как JSON: типизация выполняется при чтении по
// текущему DataType вопроса. TopicID и SortOrder денормализованы
// для отображения и отражают положение поля в момент ответа.
type Answer struct {
	// QuestionaryID - анкета.
	QuestionaryID int64 `json:"questionary_id"`

	// QuestionID - вопрос.
	QuestionID string `json:"question_id"`

	// Value - значение ответа в JSON.
	Value json.RawMessage `json:"value"`

	// TopicID - раздел поля на момент ответа.
	TopicID int64 `json:"topic_id"`

	// SortOrder - позиция поля на момент ответа.
	SortOrder int `json:"sort_order"`

	// UpdatedAt - время последнего изменения.
	UpdatedAt time.Time `json:"updated_at"`
}

// TopicCompletion - сохранённый снимок заполненности раздела.
type TopicCompletion struct {
	QuestionaryID int64 `json:"questionary_id"`
	TopicID       int64 `json:"topic_id"`
	IsComplete    bool  `json:"is_complete"`
}

// EventLog - запись журнала событий.
type EventLog struct {
	// ID - идентификатор сообщения.
	ID string `json:"id"`

	// Type - тип события (routing key).
	Type string `json:"type"`

	// Payload - содержимое события.
	Payload json.RawMessage `json:"payload"`

	// CreatedAt - время события.
	CreatedAt time.Time `json:"created_at"`
}
