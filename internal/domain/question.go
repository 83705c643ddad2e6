package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// DataType - тип данных вопроса.
//
// Определяет, какой конфигурацией описывается вопрос (FieldConfig)
// и какое значение хранится в ответе (Value).
type DataType string

const (
	// DataTypeText - свободный текст.
	DataTypeText DataType = "TEXT_INPUT"

	// DataTypeNumber - число.
	DataTypeNumber DataType = "NUMBER_INPUT"

	// DataTypeDate - дата (с временем или без).
	DataTypeDate DataType = "DATE"

	// DataTypeBoolean - флажок да/нет.
	DataTypeBoolean DataType = "BOOLEAN"

	// DataTypeSelection - выбор из списка вариантов.
	DataTypeSelection DataType = "SELECTION_FROM_OPTIONS"

	// DataTypeFile - загрузка файлов (хранится список file id).
	DataTypeFile DataType = "FILE_UPLOAD"

	// DataTypeEmbellishment - оформление (текстовый блок), ответа не имеет.
	DataTypeEmbellishment DataType = "EMBELLISHMENT"
)

// DataTypes возвращает все известные типы данных.
func DataTypes() []DataType {
	return []DataType{
		DataTypeText,
		DataTypeNumber,
		DataTypeDate,
		DataTypeBoolean,
		DataTypeSelection,
		DataTypeFile,
		DataTypeEmbellishment,
	}
}

// IsValid возвращает true для известного типа данных.
func (t DataType) IsValid() bool {
	for _, dt := range DataTypes() {
		if dt == t {
			return true
		}
	}
	return false
}

// IsAnswerable возвращает false для типов, у которых не бывает ответа.
func (t DataType) IsAnswerable() bool {
	return t != DataTypeEmbellishment
}

// Question - вопрос.
//
// Вопрос не принадлежит шаблону: один и тот же вопрос (по ID)
// может входить в несколько шаблонов через QuestionTemplateRelation.
// DataType после создания не меняется.
type Question struct {
	// ID - стабильный идентификатор вопроса (например, "text_input_3f2a9c").
	ID string `json:"id"`

	// DataType - тип данных вопроса.
	DataType DataType `json:"data_type"`

	// NaturalKey - человекочитаемый ключ.
	NaturalKey string `json:"natural_key"`

	// Question - текст вопроса.
	Question string `json:"question"`

	// DefaultConfig - конфигурация по умолчанию.
	// Копируется в QuestionTemplateRelation при добавлении в шаблон.
	DefaultConfig FieldConfig `json:"-"`

	// CreatedAt - время создания.
	CreatedAt time.Time `json:"created_at"`
}

type questionJSON struct {
	ID            string          `json:"id"`
	DataType      DataType        `json:"data_type"`
	NaturalKey    string          `json:"natural_key"`
	Question      string          `json:"question"`
	DefaultConfig json.RawMessage `json:"default_config,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// MarshalJSON сериализует вопрос вместе с типизированной конфигурацией.
func (q Question) MarshalJSON() ([]byte, error) {
	cfg, err := EncodeFieldConfig(q.DefaultConfig)
	if err != nil {
		return nil, err
	}
	return json.Marshal(questionJSON{
		ID:            q.ID,
		DataType:      q.DataType,
		NaturalKey:    q.NaturalKey,
		Question:      q.Question,
		DefaultConfig: cfg,
		CreatedAt:     q.CreatedAt,
	})
}

// UnmarshalJSON разбирает вопрос; конфигурация декодируется по DataType.
func (q *Question) UnmarshalJSON(data []byte) error {
	var raw questionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	cfg, err := DecodeFieldConfig(raw.DataType, raw.DefaultConfig)
	if err != nil {
		return fmt.Errorf("question %s: %w", raw.ID, err)
	}
	*q = Question{
		ID:            raw.ID,
		DataType:      raw.DataType,
		NaturalKey:    raw.NaturalKey,
		Question:      raw.Question,
		DefaultConfig: cfg,
		CreatedAt:     raw.CreatedAt,
	}
	return nil
}
