package engine

import (
	"fmt"
	"slices"

	"github.com/shaiso/Questionary/internal/domain"
)

// Evaluator - функция проверки условия для одного оператора.
// answer и params имеют один и тот же Kind.
type Evaluator func(answer, params domain.Value) bool

// Conditions - таблица операторов условий.
//
// Строится один раз при старте процесса (NewConditions) и далее
// только читается, поэтому может разделяться между запросами без
// блокировок.
type Conditions struct {
	evaluators map[domain.Operator]Evaluator
}

// NewConditions создаёт таблицу со всеми поддерживаемыми операторами.
func NewConditions() *Conditions {
	ops := domain.Operators()
	c := &Conditions{
		evaluators: make(map[domain.Operator]Evaluator, len(ops)),
	}
	for _, op := range ops {
		c.evaluators[op] = evaluatorFor(op)
	}
	return c
}

// evaluatorFor сопоставляет оператору функцию вычисления.
// Новый оператор в domain.Operators без ветки здесь приведёт к панике
// при старте, а не к молчаливому "не выполнено" во время запроса.
func evaluatorFor(op domain.Operator) Evaluator {
	switch op {
	case domain.OperatorEQ:
		return equals
	case domain.OperatorNEQ:
		return func(answer, params domain.Value) bool {
			return !equals(answer, params)
		}
	default:
		panic(fmt.Sprintf("engine: no evaluator for operator %q", op))
	}
}

// equals - строгое равенство по типу данных.
//
// Для SELECTION_FROM_OPTIONS ответ - список выбранных вариантов,
// а параметр - один вариант: условие выполнено, если вариант выбран.
func equals(answer, params domain.Value) bool {
	if answer.Kind != params.Kind {
		return false
	}
	if answer.Kind == domain.DataTypeSelection && len(params.Items) == 1 {
		return slices.Contains(answer.Items, params.Items[0])
	}
	return answer.Equal(params)
}

// Supports возвращает true, если оператор есть в таблице.
func (c *Conditions) Supports(op domain.Operator) bool {
	_, ok := c.evaluators[op]
	return ok
}

// IsSatisfied проверяет условие для ответа.
//
// answer == nil (на вопрос ещё не ответили) - условие не выполнено
// для любого оператора, включая neq: зависимое поле скрыто,
// пока на вопрос-цель нет ответа.
// Неизвестный оператор возвращает ErrUnsupportedOperator.
func (c *Conditions) IsSatisfied(answer *domain.Value, op domain.Operator, params domain.Value) (bool, error) {
	eval, ok := c.evaluators[op]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnsupportedOperator, op)
	}
	if answer == nil {
		return false, nil
	}
	return eval(*answer, params), nil
}
