package editor

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Questionary/internal/domain"
	"github.com/shaiso/Questionary/internal/engine"
)

// Структурные изменения шаблона.
//
// Каждая операция работает со снимком: копирует шаблон, изменяет копию,
// восстанавливает плотность SortOrder и проверяет результат через
// engine.ValidateTemplate. Переданный шаблон никогда не изменяется,
// поэтому отклонённая операция не оставляет частичных изменений.

// DefaultTopicTitle - заголовок раздела, если он не задан.
const DefaultTopicTitle = "New topic"

// TopicPatch - частичное изменение раздела. nil-поля не меняются.
type TopicPatch struct {
	Title     *string
	IsEnabled *bool
}

// DependencyPatch - изменение зависимости поля.
// Dependency == nil снимает зависимость.
type DependencyPatch struct {
	Dependency *domain.FieldDependency
}

// FieldPatch - составное изменение поля шаблона. nil-поля не меняются.
type FieldPatch struct {
	TopicID    *int64
	SortOrder  *int
	Config     domain.FieldConfig
	Dependency *DependencyPatch
}

// NewQuestionID генерирует ID вопроса вида "text_input_3f2a9c1b0d4e".
func NewQuestionID(dt domain.DataType) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return strings.ToLower(string(dt)) + "_" + suffix
}

// CreateTopic вставляет раздел в позицию sortOrder.
// Разделы с позицией >= sortOrder сдвигаются на единицу;
// позиция больше числа разделов означает вставку в конец.
func CreateTopic(t *domain.Template, title string, sortOrder int) (*domain.Template, *domain.Topic, error) {
	if sortOrder < 0 {
		return nil, nil, fmt.Errorf("%w: negative sort order %d", ErrInvalidOrder, sortOrder)
	}
	if strings.TrimSpace(title) == "" {
		title = DefaultTopicTitle
	}

	c := prepare(t)
	pos := min(sortOrder, len(c.Topics))
	topic := domain.Topic{
		ID:         nextTopicID(c),
		TemplateID: c.ID,
		Title:      title,
		IsEnabled:  true,
		Fields:     []domain.QuestionTemplateRelation{},
	}
	c.Topics = slices.Insert(c.Topics, pos, topic)

	out, err := finish(c)
	if err != nil {
		return nil, nil, err
	}
	created, _ := out.Topic(topic.ID)
	return out, created, nil
}

// UpdateTopic изменяет заголовок и/или признак включения раздела.
func UpdateTopic(t *domain.Template, topicID int64, patch TopicPatch) (*domain.Template, error) {
	c := prepare(t)
	topic, ok := c.Topic(topicID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrTopicNotFound, topicID)
	}

	if patch.Title != nil {
		if strings.TrimSpace(*patch.Title) == "" {
			return nil, fmt.Errorf("%w: topic title is empty", ErrInvalidInput)
		}
		topic.Title = *patch.Title
	}
	if patch.IsEnabled != nil {
		topic.IsEnabled = *patch.IsEnabled
	}

	return finish(c)
}

// DeleteTopic удаляет пустой раздел и уплотняет порядок оставшихся.
// Раздел с полями не удаляется: ErrTopicNotEmpty.
func DeleteTopic(t *domain.Template, topicID int64) (*domain.Template, error) {
	c := prepare(t)
	idx := topicIndex(c, topicID)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %d", ErrTopicNotFound, topicID)
	}
	if n := len(c.Topics[idx].Fields); n > 0 {
		return nil, fmt.Errorf("%w: topic %d holds %d fields", ErrTopicNotEmpty, topicID, n)
	}

	c.Topics = slices.Delete(c.Topics, idx, idx+1)
	return finish(c)
}

// ReorderTopics расставляет разделы в порядке topicIDs.
// topicIDs должен быть перестановкой текущих ID разделов.
func ReorderTopics(t *domain.Template, topicIDs []int64) (*domain.Template, error) {
	c := prepare(t)
	if len(topicIDs) != len(c.Topics) {
		return nil, fmt.Errorf("%w: got %d topic ids, template has %d",
			ErrInvalidOrder, len(topicIDs), len(c.Topics))
	}

	reordered := make([]domain.Topic, 0, len(c.Topics))
	used := make(map[int64]bool, len(topicIDs))
	for _, id := range topicIDs {
		if used[id] {
			return nil, fmt.Errorf("%w: topic %d listed twice", ErrInvalidOrder, id)
		}
		used[id] = true

		idx := topicIndex(c, id)
		if idx < 0 {
			return nil, fmt.Errorf("%w: unknown topic %d", ErrInvalidOrder, id)
		}
		reordered = append(reordered, c.Topics[idx])
	}
	c.Topics = reordered

	return finish(c)
}

// MoveQuestionToTopic переносит поле в раздел topicID на позицию sortOrder.
// Порядок уплотняется и в исходном, и в целевом разделе.
func MoveQuestionToTopic(t *domain.Template, questionID string, topicID int64, sortOrder int) (*domain.Template, error) {
	if sortOrder < 0 {
		return nil, fmt.Errorf("%w: negative sort order %d", ErrInvalidOrder, sortOrder)
	}

	c := prepare(t)
	ti, fi := fieldIndex(c, questionID)
	if ti < 0 {
		return nil, fmt.Errorf("%w: %s", ErrFieldNotFound, questionID)
	}
	target := topicIndex(c, topicID)
	if target < 0 {
		return nil, fmt.Errorf("%w: %d", ErrTopicNotFound, topicID)
	}

	f := c.Topics[ti].Fields[fi]
	c.Topics[ti].Fields = slices.Delete(c.Topics[ti].Fields, fi, fi+1)

	f.TopicID = topicID
	pos := min(sortOrder, len(c.Topics[target].Fields))
	c.Topics[target].Fields = slices.Insert(c.Topics[target].Fields, pos, f)

	return finish(c)
}

// SetDependency задаёт или снимает (dep == nil) зависимость поля.
//
// Цель должна быть в шаблоне, оператор поддерживаться, а новая
// зависимость не должна замыкать цикл.
func SetDependency(t *domain.Template, questionID string, dep *domain.FieldDependency) (*domain.Template, error) {
	c := prepare(t)
	f, ok := c.Field(questionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFieldNotFound, questionID)
	}

	if dep == nil {
		f.Dependency = nil
		return finish(c)
	}

	target := dep.DependencyID
	op := dep.Condition.Operator
	if !slices.Contains(domain.Operators(), op) {
		return nil, engine.NewValidationError(questionID, "dependency.condition.operator",
			fmt.Sprintf("operator %q", op), engine.ErrUnsupportedOperator)
	}
	if _, exists := c.Field(target); !exists {
		return nil, engine.NewValidationError(questionID, "dependency.dependency_id",
			fmt.Sprintf("depends on unknown question: %s", target), engine.ErrMissingDependency)
	}
	if engine.BuildGraph(c).WouldCreateCycle(questionID, target) {
		return nil, engine.NewValidationError(questionID, "dependency.dependency_id",
			fmt.Sprintf("dependency on %s closes a cycle", target), ErrCyclicDependency)
	}

	params := dep.Condition.Params
	params.Items = slices.Clone(params.Items)
	f.Dependency = &domain.FieldDependency{
		QuestionID:   questionID,
		DependencyID: target,
		Condition:    domain.FieldCondition{Operator: op, Params: params},
	}

	return finish(c)
}

// CreateField создаёт новый вопрос типа dt и добавляет его в конец раздела.
func CreateField(t *domain.Template, topicID int64, dt domain.DataType) (*domain.Template, *domain.Question, error) {
	cfg, err := domain.NewFieldConfig(dt)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	topic, ok := t.Topic(topicID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %d", ErrTopicNotFound, topicID)
	}

	id := NewQuestionID(dt)
	q := domain.Question{
		ID:            id,
		DataType:      dt,
		NaturalKey:    id,
		DefaultConfig: cfg,
		CreatedAt:     time.Now().UTC(),
	}

	out, err := AttachQuestion(t, topicID, q, len(topic.Fields))
	if err != nil {
		return nil, nil, err
	}
	return out, &q, nil
}

// AttachQuestion размещает существующий вопрос в разделе на позиции sortOrder.
// Конфигурация поля - копия DefaultConfig вопроса.
func AttachQuestion(t *domain.Template, topicID int64, q domain.Question, sortOrder int) (*domain.Template, error) {
	if sortOrder < 0 {
		return nil, fmt.Errorf("%w: negative sort order %d", ErrInvalidOrder, sortOrder)
	}
	if !q.DataType.IsValid() {
		return nil, fmt.Errorf("%w: unknown data type %q", ErrInvalidInput, q.DataType)
	}

	c := prepare(t)
	if _, exists := c.Field(q.ID); exists {
		return nil, fmt.Errorf("%w: %s", ErrQuestionInTemplate, q.ID)
	}
	target := topicIndex(c, topicID)
	if target < 0 {
		return nil, fmt.Errorf("%w: %d", ErrTopicNotFound, topicID)
	}

	cfg := domain.CloneFieldConfig(q.DefaultConfig)
	if cfg == nil {
		cfg, _ = domain.NewFieldConfig(q.DataType)
	}
	q.DefaultConfig = domain.CloneFieldConfig(q.DefaultConfig)

	f := domain.QuestionTemplateRelation{
		Question: q,
		TopicID:  topicID,
		Config:   cfg,
	}
	pos := min(sortOrder, len(c.Topics[target].Fields))
	c.Topics[target].Fields = slices.Insert(c.Topics[target].Fields, pos, f)

	return finish(c)
}

// DeleteField убирает вопрос из шаблона. Сам вопрос не удаляется.
// Если от поля зависят другие поля: ErrDependencyTargetInUse.
func DeleteField(t *domain.Template, questionID string) (*domain.Template, error) {
	c := prepare(t)
	ti, fi := fieldIndex(c, questionID)
	if ti < 0 {
		return nil, fmt.Errorf("%w: %s", ErrFieldNotFound, questionID)
	}

	if dependents := dependentsOf(c, questionID); len(dependents) > 0 {
		return nil, fmt.Errorf("%w: %s is required by %s",
			ErrDependencyTargetInUse, questionID, strings.Join(dependents, ", "))
	}

	c.Topics[ti].Fields = slices.Delete(c.Topics[ti].Fields, fi, fi+1)
	return finish(c)
}

// UpdateFieldConfig заменяет конфигурацию поля в шаблоне.
// Тип конфигурации должен совпадать с типом вопроса.
func UpdateFieldConfig(t *domain.Template, questionID string, cfg domain.FieldConfig) (*domain.Template, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is empty", ErrInvalidInput)
	}

	c := prepare(t)
	f, ok := c.Field(questionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFieldNotFound, questionID)
	}
	if cfg.Kind() != f.Question.DataType {
		return nil, engine.NewValidationError(questionID, "config",
			fmt.Sprintf("%s config for %s question", cfg.Kind(), f.Question.DataType), engine.ErrConfigMismatch)
	}
	f.Config = domain.CloneFieldConfig(cfg)

	return finish(c)
}

// UpdateField применяет составное изменение поля: конфигурацию,
// перенос и зависимость. Изменение применяется целиком или не применяется.
func UpdateField(t *domain.Template, questionID string, patch FieldPatch) (*domain.Template, error) {
	cur := t
	var err error

	if patch.Config != nil {
		if cur, err = UpdateFieldConfig(cur, questionID, patch.Config); err != nil {
			return nil, err
		}
	}

	if patch.TopicID != nil || patch.SortOrder != nil {
		f, ok := cur.Field(questionID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrFieldNotFound, questionID)
		}
		topicID := f.TopicID
		if patch.TopicID != nil {
			topicID = *patch.TopicID
		}

		sortOrder := f.SortOrder
		if patch.SortOrder != nil {
			sortOrder = *patch.SortOrder
		} else if topicID != f.TopicID {
			if topic, ok := cur.Topic(topicID); ok {
				sortOrder = len(topic.Fields)
			}
		}

		if cur, err = MoveQuestionToTopic(cur, questionID, topicID, sortOrder); err != nil {
			return nil, err
		}
	}

	if patch.Dependency != nil {
		if cur, err = SetDependency(cur, questionID, patch.Dependency.Dependency); err != nil {
			return nil, err
		}
	}

	if cur == t {
		return finish(prepare(t))
	}
	return cur, nil
}

// prepare возвращает копию шаблона с разделами и полями,
// упорядоченными по SortOrder.
func prepare(t *domain.Template) *domain.Template {
	c := t.Clone()
	sort.SliceStable(c.Topics, func(i, j int) bool {
		return c.Topics[i].SortOrder < c.Topics[j].SortOrder
	})
	for i := range c.Topics {
		fields := c.Topics[i].Fields
		sort.SliceStable(fields, func(a, b int) bool {
			return fields[a].SortOrder < fields[b].SortOrder
		})
	}
	return c
}

// finish уплотняет порядок и проверяет шаблон.
func finish(c *domain.Template) (*domain.Template, error) {
	densify(c)
	if err := engine.ValidateTemplate(c); err != nil {
		return nil, err
	}
	return c, nil
}

// densify присваивает SortOrder 0..n-1 по позиции в срезах.
func densify(c *domain.Template) {
	for i := range c.Topics {
		topic := &c.Topics[i]
		topic.SortOrder = i
		topic.TemplateID = c.ID
		for j := range topic.Fields {
			topic.Fields[j].SortOrder = j
			topic.Fields[j].TopicID = topic.ID
		}
	}
}

func nextTopicID(c *domain.Template) int64 {
	var maxID int64
	for _, topic := range c.Topics {
		maxID = max(maxID, topic.ID)
	}
	return maxID + 1
}

func topicIndex(c *domain.Template, topicID int64) int {
	return slices.IndexFunc(c.Topics, func(topic domain.Topic) bool {
		return topic.ID == topicID
	})
}

func fieldIndex(c *domain.Template, questionID string) (int, int) {
	for i := range c.Topics {
		for j := range c.Topics[i].Fields {
			if c.Topics[i].Fields[j].Question.ID == questionID {
				return i, j
			}
		}
	}
	return -1, -1
}

// dependentsOf возвращает поля, напрямую зависящие от questionID.
func dependentsOf(c *domain.Template, questionID string) []string {
	ids := make([]string, 0)
	for _, f := range c.Fields() {
		if f.Dependency != nil && f.Dependency.DependencyID == questionID {
			ids = append(ids, f.Question.ID)
		}
	}
	return ids
}
