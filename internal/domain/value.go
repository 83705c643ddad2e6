package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"
)

// Ошибки разбора значений.
var (
	// ErrNotAnswerable - у вопроса этого типа не бывает ответа.
	ErrNotAnswerable = errors.New("data type has no answer value")

	// ErrValueType - JSON значения не соответствует типу данных.
	ErrValueType = errors.New("value does not match data type")
)

// dateOnly - формат даты без времени.
const dateOnly = "2006-01-02"

// Value - значение ответа (или параметр условия), типизированное по DataType.
//
// Заполнено только поле, соответствующее Kind:
//   - TEXT_INPUT             → Text
//   - NUMBER_INPUT           → Number
//   - DATE                   → Time
//   - BOOLEAN                → Bool
//   - SELECTION_FROM_OPTIONS → Items (выбранные варианты)
//   - FILE_UPLOAD            → Items (file id)
type Value struct {
	Kind   DataType
	Text   string
	Number float64
	Time   time.Time
	Bool   bool
	Items  []string
}

// TextValue создаёт текстовое значение.
func TextValue(s string) Value { return Value{Kind: DataTypeText, Text: s} }

// NumberValue создаёт числовое значение.
func NumberValue(n float64) Value { return Value{Kind: DataTypeNumber, Number: n} }

// DateValue создаёт значение даты.
func DateValue(t time.Time) Value { return Value{Kind: DataTypeDate, Time: t} }

// BoolValue создаёт булево значение.
func BoolValue(b bool) Value { return Value{Kind: DataTypeBoolean, Bool: b} }

// SelectionValue создаёт значение выбора.
func SelectionValue(options ...string) Value {
	return Value{Kind: DataTypeSelection, Items: options}
}

// FileValue создаёт значение загрузки файлов.
func FileValue(fileIDs ...string) Value {
	return Value{Kind: DataTypeFile, Items: fileIDs}
}

// IsEmpty возвращает true для "пустого" ответа: пустой текст,
// пустой список вариантов или файлов.
func (v Value) IsEmpty() bool {
	switch v.Kind {
	case DataTypeText:
		return v.Text == ""
	case DataTypeSelection, DataTypeFile:
		return len(v.Items) == 0
	case DataTypeDate:
		return v.Time.IsZero()
	default:
		return false
	}
}

// Equal - строгое равенство значений одного типа.
// Для DATE сравниваются моменты времени, для списков - состав и порядок.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case DataTypeText:
		return v.Text == o.Text
	case DataTypeNumber:
		return v.Number == o.Number
	case DataTypeDate:
		return v.Time.Equal(o.Time)
	case DataTypeBoolean:
		return v.Bool == o.Bool
	case DataTypeSelection, DataTypeFile:
		return slices.Equal(v.Items, o.Items)
	default:
		return false
	}
}

// String возвращает значение в человекочитаемом виде (для логов и CLI).
func (v Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<%s>", v.Kind)
	}
	return string(b)
}

// MarshalJSON сериализует значение в естественный JSON вид для его типа.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case DataTypeText:
		return json.Marshal(v.Text)
	case DataTypeNumber:
		return json.Marshal(v.Number)
	case DataTypeDate:
		return json.Marshal(v.Time.UTC().Format(time.RFC3339))
	case DataTypeBoolean:
		return json.Marshal(v.Bool)
	case DataTypeSelection, DataTypeFile:
		items := v.Items
		if items == nil {
			items = []string{}
		}
		return json.Marshal(items)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDataType, v.Kind)
	}
}

// DecodeValue разбирает JSON значения для типа dt.
// JSON null (или пустой raw) даёт nil - "ответа нет".
func DecodeValue(dt DataType, raw []byte) (*Value, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	v := Value{Kind: dt}
	switch dt {
	case DataTypeText:
		if err := json.Unmarshal(raw, &v.Text); err != nil {
			return nil, valueTypeError(dt, err)
		}
	case DataTypeNumber:
		if err := json.Unmarshal(raw, &v.Number); err != nil {
			return nil, valueTypeError(dt, err)
		}
	case DataTypeDate:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, valueTypeError(dt, err)
		}
		t, err := parseDate(s)
		if err != nil {
			return nil, valueTypeError(dt, err)
		}
		v.Time = t
	case DataTypeBoolean:
		if err := json.Unmarshal(raw, &v.Bool); err != nil {
			return nil, valueTypeError(dt, err)
		}
	case DataTypeSelection:
		// Одиночный выбор допускается строкой
		var single string
		if err := json.Unmarshal(raw, &single); err == nil {
			v.Items = []string{single}
			break
		}
		if err := json.Unmarshal(raw, &v.Items); err != nil {
			return nil, valueTypeError(dt, err)
		}
	case DataTypeFile:
		if err := json.Unmarshal(raw, &v.Items); err != nil {
			return nil, valueTypeError(dt, err)
		}
	case DataTypeEmbellishment:
		return nil, ErrNotAnswerable
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDataType, dt)
	}
	return &v, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(dateOnly, s)
}

func valueTypeError(dt DataType, err error) error {
	return fmt.Errorf("%w: expected %s: %v", ErrValueType, dt, err)
}
