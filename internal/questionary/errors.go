package questionary

import "errors"

// Ошибки анкет.
var (
	// ErrTemplateArchived - по архивному шаблону нельзя создать анкету.
	ErrTemplateArchived = errors.New("template is archived")

	// ErrQuestionNotInTemplate - вопроса нет в текущем шаблоне анкеты.
	ErrQuestionNotInTemplate = errors.New("question is not in template")

	// ErrInactiveQuestion - вопрос сейчас скрыт зависимостью.
	ErrInactiveQuestion = errors.New("question is not active")
)
