package engine

import (
	"fmt"
	"slices"
	"unicode/utf8"

	"github.com/shaiso/Questionary/internal/domain"
)

// ValidateAnswer проверяет значение ответа по типу и конфигурации поля.
//
// value == nil означает "ответа нет": это ошибка только для
// обязательного поля. Пустое значение (пустой текст, пустой выбор)
// для обязательного поля тоже считается отсутствием ответа.
func ValidateAnswer(field *domain.QuestionTemplateRelation, value *domain.Value) error {
	id := field.Question.ID

	if !field.Question.DataType.IsAnswerable() {
		return NewValidationError(id, "value",
			fmt.Sprintf("%s cannot be answered", field.Question.DataType), domain.ErrNotAnswerable)
	}

	if value != nil && value.Kind != field.Question.DataType {
		return NewValidationError(id, "value",
			fmt.Sprintf("expected %s, got %s", field.Question.DataType, value.Kind), ErrAnswerType)
	}

	if value == nil || value.IsEmpty() {
		if field.IsRequired() {
			return NewValidationError(id, "value", "answer is required", ErrRequired)
		}
		return nil
	}

	switch cfg := field.Config.(type) {
	case *domain.TextConfig:
		return validateText(id, cfg, value)
	case *domain.NumberConfig:
		return validateNumber(id, cfg, value)
	case *domain.DateConfig:
		return validateDate(id, cfg, value)
	case *domain.SelectionConfig:
		return validateSelection(id, cfg, value)
	case *domain.FileConfig:
		return validateFiles(id, cfg, value)
	case *domain.BooleanConfig:
		return nil
	default:
		return NewValidationError(id, "config",
			fmt.Sprintf("no config for %s", field.Question.DataType), ErrConfigMismatch)
	}
}

func validateText(id string, cfg *domain.TextConfig, v *domain.Value) error {
	n := utf8.RuneCountInString(v.Text)
	if cfg.Min != nil && n < *cfg.Min {
		return NewValidationError(id, "value",
			fmt.Sprintf("text must be at least %d characters", *cfg.Min), ErrOutOfRange)
	}
	if cfg.Max != nil && n > *cfg.Max {
		return NewValidationError(id, "value",
			fmt.Sprintf("text must be at most %d characters", *cfg.Max), ErrOutOfRange)
	}
	return nil
}

func validateNumber(id string, cfg *domain.NumberConfig, v *domain.Value) error {
	if cfg.Min != nil && v.Number < *cfg.Min {
		return NewValidationError(id, "value",
			fmt.Sprintf("number must be >= %g", *cfg.Min), ErrOutOfRange)
	}
	if cfg.Max != nil && v.Number > *cfg.Max {
		return NewValidationError(id, "value",
			fmt.Sprintf("number must be <= %g", *cfg.Max), ErrOutOfRange)
	}
	return nil
}

func validateDate(id string, cfg *domain.DateConfig, v *domain.Value) error {
	if cfg.MinDate != nil && v.Time.Before(*cfg.MinDate) {
		return NewValidationError(id, "value",
			fmt.Sprintf("date must not be before %s", cfg.MinDate.Format("2006-01-02")), ErrOutOfRange)
	}
	if cfg.MaxDate != nil && v.Time.After(*cfg.MaxDate) {
		return NewValidationError(id, "value",
			fmt.Sprintf("date must not be after %s", cfg.MaxDate.Format("2006-01-02")), ErrOutOfRange)
	}
	return nil
}

func validateSelection(id string, cfg *domain.SelectionConfig, v *domain.Value) error {
	if !cfg.IsMultipleSelect && len(v.Items) > 1 {
		return NewValidationError(id, "value",
			"only one option may be selected", ErrTooManyItems)
	}
	for _, item := range v.Items {
		if !slices.Contains(cfg.Options, item) {
			return NewValidationError(id, "value",
				fmt.Sprintf("unknown option: %s", item), ErrUnknownOption)
		}
	}
	return nil
}

func validateFiles(id string, cfg *domain.FileConfig, v *domain.Value) error {
	if cfg.MaxFiles > 0 && len(v.Items) > cfg.MaxFiles {
		return NewValidationError(id, "value",
			fmt.Sprintf("at most %d files allowed", cfg.MaxFiles), ErrTooManyItems)
	}
	return nil
}
