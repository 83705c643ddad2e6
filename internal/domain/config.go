package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrUnknownDataType - тип данных не поддерживается.
var ErrUnknownDataType = errors.New("unknown data type")

// FieldConfig - типизированная конфигурация поля.
//
// Конкретный тип определяется DataType вопроса: для TEXT_INPUT это
// *TextConfig, для NUMBER_INPUT - *NumberConfig и т.д.
// Интерфейс закрыт: реализации есть только в этом пакете.
type FieldConfig interface {
	// Kind возвращает тип данных, к которому относится конфигурация.
	Kind() DataType

	// Common возвращает общие для всех типов настройки.
	Common() BaseConfig

	sealed()
}

// BaseConfig - общие настройки поля.
type BaseConfig struct {
	// Required - поле обязательно для заполнения.
	Required bool `json:"required"`

	// SmallLabel - подпись под полем.
	SmallLabel string `json:"small_label,omitempty"`

	// Tooltip - всплывающая подсказка.
	Tooltip string `json:"tooltip,omitempty"`
}

// TextConfig - настройки текстового поля.
type TextConfig struct {
	BaseConfig
	Min         *int   `json:"min,omitempty"`
	Max         *int   `json:"max,omitempty"`
	Multiline   bool   `json:"multiline,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
}

// NumberConfig - настройки числового поля.
type NumberConfig struct {
	BaseConfig
	Min   *float64 `json:"min,omitempty"`
	Max   *float64 `json:"max,omitempty"`
	Units []string `json:"units,omitempty"`
}

// DateConfig - настройки поля даты.
type DateConfig struct {
	BaseConfig
	MinDate     *time.Time `json:"min_date,omitempty"`
	MaxDate     *time.Time `json:"max_date,omitempty"`
	IncludeTime bool       `json:"include_time,omitempty"`
}

// BooleanConfig - настройки флажка.
type BooleanConfig struct {
	BaseConfig
}

// SelectionConfig - настройки выбора из вариантов.
type SelectionConfig struct {
	BaseConfig
	Options          []string `json:"options"`
	IsMultipleSelect bool     `json:"is_multiple_select,omitempty"`
	Variant          string   `json:"variant,omitempty"` // "radio" или "dropdown"
}

// FileConfig - настройки загрузки файлов.
type FileConfig struct {
	BaseConfig
	FileTypes []string `json:"file_types,omitempty"`
	MaxFiles  int      `json:"max_files,omitempty"`
}

// EmbellishmentConfig - настройки текстового блока.
type EmbellishmentConfig struct {
	BaseConfig
	HTML        string `json:"html"`
	Plain       string `json:"plain,omitempty"`
	OmitFromPDF bool   `json:"omit_from_pdf,omitempty"`
}

func (*TextConfig) Kind() DataType          { return DataTypeText }
func (*NumberConfig) Kind() DataType        { return DataTypeNumber }
func (*DateConfig) Kind() DataType          { return DataTypeDate }
func (*BooleanConfig) Kind() DataType       { return DataTypeBoolean }
func (*SelectionConfig) Kind() DataType     { return DataTypeSelection }
func (*FileConfig) Kind() DataType          { return DataTypeFile }
func (*EmbellishmentConfig) Kind() DataType { return DataTypeEmbellishment }

func (c *TextConfig) Common() BaseConfig      { return c.BaseConfig }
func (c *NumberConfig) Common() BaseConfig    { return c.BaseConfig }
func (c *DateConfig) Common() BaseConfig      { return c.BaseConfig }
func (c *BooleanConfig) Common() BaseConfig   { return c.BaseConfig }
func (c *SelectionConfig) Common() BaseConfig { return c.BaseConfig }
func (c *FileConfig) Common() BaseConfig      { return c.BaseConfig }

// Common для оформления всегда возвращает Required=false: ответа у него нет.
func (c *EmbellishmentConfig) Common() BaseConfig {
	base := c.BaseConfig
	base.Required = false
	return base
}

func (*TextConfig) sealed()          {}
func (*NumberConfig) sealed()        {}
func (*DateConfig) sealed()          {}
func (*BooleanConfig) sealed()       {}
func (*SelectionConfig) sealed()     {}
func (*FileConfig) sealed()          {}
func (*EmbellishmentConfig) sealed() {}

// NewFieldConfig возвращает пустую конфигурацию для типа данных.
func NewFieldConfig(dt DataType) (FieldConfig, error) {
	switch dt {
	case DataTypeText:
		return &TextConfig{}, nil
	case DataTypeNumber:
		return &NumberConfig{}, nil
	case DataTypeDate:
		return &DateConfig{}, nil
	case DataTypeBoolean:
		return &BooleanConfig{}, nil
	case DataTypeSelection:
		return &SelectionConfig{Options: []string{}}, nil
	case DataTypeFile:
		return &FileConfig{}, nil
	case DataTypeEmbellishment:
		return &EmbellishmentConfig{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDataType, dt)
	}
}

// DecodeFieldConfig разбирает JSON конфигурации в тип, соответствующий dt.
// Пустой raw даёт конфигурацию по умолчанию.
func DecodeFieldConfig(dt DataType, raw []byte) (FieldConfig, error) {
	cfg, err := NewFieldConfig(dt)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("decode %s config: %w", dt, err)
	}
	return cfg, nil
}

// EncodeFieldConfig сериализует конфигурацию. nil даёт JSON null.
func EncodeFieldConfig(cfg FieldConfig) (json.RawMessage, error) {
	if cfg == nil {
		return json.RawMessage("null"), nil
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode %s config: %w", cfg.Kind(), err)
	}
	return b, nil
}

// CloneFieldConfig возвращает глубокую копию конфигурации.
func CloneFieldConfig(cfg FieldConfig) FieldConfig {
	if cfg == nil {
		return nil
	}
	raw, err := EncodeFieldConfig(cfg)
	if err != nil {
		return cfg
	}
	clone, err := DecodeFieldConfig(cfg.Kind(), raw)
	if err != nil {
		return cfg
	}
	return clone
}
