package domain

// EventType - тип доменного события (совпадает с routing key в RabbitMQ).
type EventType string

// Типы событий.
const (
	// EventTemplateUpdated - структура шаблона изменена.
	EventTemplateUpdated EventType = "template.updated"

	// EventAnswerSubmitted - ответ на вопрос анкеты сохранён или очищен.
	EventAnswerSubmitted EventType = "answer.submitted"

	// EventTopicCompleted - изменилась заполненность раздела анкеты.
	EventTopicCompleted EventType = "topic.completed"
)

// TemplateUpdatedEvent - payload события template.updated.
type TemplateUpdatedEvent struct {
	TemplateID int64  `json:"template_id"`
	Version    int    `json:"version"`
	Operation  string `json:"operation"`
	UserID     int64  `json:"user_id"`
}

// AnswerSubmittedEvent - payload события answer.submitted.
type AnswerSubmittedEvent struct {
	QuestionaryID int64    `json:"questionary_id"`
	QuestionID    string   `json:"question_id"`
	UserID        int64    `json:"user_id"`
	Cleared       bool     `json:"cleared"`
	Toggled       []string `json:"toggled,omitempty"`
}

// TopicCompletedEvent - payload события topic.completed.
type TopicCompletedEvent struct {
	QuestionaryID int64 `json:"questionary_id"`
	TopicID       int64 `json:"topic_id"`
	IsComplete    bool  `json:"is_complete"`
}
