package editor

import (
	"errors"

	"github.com/shaiso/Questionary/internal/engine"
)

// Ошибки структурных изменений шаблона.
//
// Любая из них означает, что изменение отклонено целиком:
// исходный снимок шаблона не изменён.
var (
	// ErrInvalidOrder - недопустимая позиция или перестановка.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrTopicNotEmpty - удаляемый раздел содержит поля.
	ErrTopicNotEmpty = errors.New("topic is not empty")

	// ErrDependencyTargetInUse - от удаляемого поля зависят другие поля.
	ErrDependencyTargetInUse = errors.New("field is a dependency target")

	// ErrCyclicDependency - зависимость замкнула бы цикл.
	ErrCyclicDependency = engine.ErrCyclicDependency

	// ErrTopicNotFound - раздела нет в шаблоне.
	ErrTopicNotFound = errors.New("topic not found")

	// ErrFieldNotFound - вопроса нет в шаблоне.
	ErrFieldNotFound = errors.New("field not found")

	// ErrQuestionInTemplate - вопрос уже размещён в шаблоне.
	ErrQuestionInTemplate = engine.ErrDuplicateQuestion

	// ErrDataTypeImmutable - тип данных вопроса нельзя изменить.
	ErrDataTypeImmutable = errors.New("question data type cannot be changed")

	// ErrInvalidInput - некорректные входные данные (пустое имя и т.п.).
	ErrInvalidInput = errors.New("invalid input")
)
