package engine

import "errors"

// Ошибки структуры шаблона.
var (
	// ErrDuplicateTopicID - несколько разделов с одинаковым ID.
	ErrDuplicateTopicID = errors.New("duplicate topic ID")

	// ErrDuplicateQuestion - вопрос встречается в шаблоне дважды.
	ErrDuplicateQuestion = errors.New("duplicate question in template")

	// ErrSortOrder - порядок разделов или полей не плотный (0..n-1).
	ErrSortOrder = errors.New("sort order is not dense")

	// ErrConfigMismatch - тип конфигурации не совпадает с типом вопроса.
	ErrConfigMismatch = errors.New("field config does not match question data type")

	// ErrTopicMismatch - поле ссылается не на свой раздел.
	ErrTopicMismatch = errors.New("field topic does not match its topic")

	// ErrMissingDependency - поле зависит от вопроса, которого нет в шаблоне.
	ErrMissingDependency = errors.New("field depends on unknown question")

	// ErrSelfDependency - поле зависит от самого себя.
	ErrSelfDependency = errors.New("field depends on itself")

	// ErrCyclicDependency - зависимости полей образуют цикл.
	ErrCyclicDependency = errors.New("cyclic dependency detected")

	// ErrParamsMismatch - тип параметра условия не совпадает с типом вопроса-цели.
	ErrParamsMismatch = errors.New("condition params do not match dependency data type")

	// ErrNotAnswerableTarget - поле зависит от вопроса без ответа (оформления).
	ErrNotAnswerableTarget = errors.New("field depends on a question that cannot be answered")
)

// Ошибки условий.
var (
	// ErrUnsupportedOperator - оператор условия не поддерживается.
	// Это дефект данных, а не ошибка пользователя.
	ErrUnsupportedOperator = errors.New("unsupported operator")
)

// Ошибки ответов.
var (
	// ErrRequired - обязательное поле без ответа.
	ErrRequired = errors.New("answer is required")

	// ErrAnswerType - значение ответа не соответствует типу вопроса.
	ErrAnswerType = errors.New("answer does not match data type")

	// ErrOutOfRange - значение вне допустимых границ.
	ErrOutOfRange = errors.New("answer is out of range")

	// ErrUnknownOption - выбран вариант, которого нет в списке.
	ErrUnknownOption = errors.New("unknown option")

	// ErrTooManyItems - выбрано больше вариантов или файлов, чем разрешено.
	ErrTooManyItems = errors.New("too many items")
)

// ValidationError - ошибка валидации с контекстом.
type ValidationError struct {
	QuestionID string // вопрос, где произошла ошибка
	Field      string // поле, вызвавшее ошибку
	Message    string // описание ошибки
	Err        error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.QuestionID != "" {
		return "question " + e.QuestionID + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(questionID, field, message string, err error) *ValidationError {
	return &ValidationError{
		QuestionID: questionID,
		Field:      field,
		Message:    message,
		Err:        err,
	}
}
