package editor

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shaiso/Questionary/internal/domain"
	"github.com/shaiso/Questionary/internal/engine"
)

// qtr создаёт поле с конфигурацией по умолчанию.
func qtr(id string, dt domain.DataType, topicID int64, order int) domain.QuestionTemplateRelation {
	cfg, _ := domain.NewFieldConfig(dt)
	def, _ := domain.NewFieldConfig(dt)
	return domain.QuestionTemplateRelation{
		Question:  domain.Question{ID: id, DataType: dt, NaturalKey: id, DefaultConfig: def},
		TopicID:   topicID,
		SortOrder: order,
		Config:    cfg,
	}
}

func withDep(f domain.QuestionTemplateRelation, target string, params domain.Value) domain.QuestionTemplateRelation {
	f.Dependency = &domain.FieldDependency{
		QuestionID:   f.Question.ID,
		DependencyID: target,
		Condition:    domain.FieldCondition{Operator: domain.OperatorEQ, Params: params},
	}
	return f
}

// sampleTemplate:
//
//	Topic 1: A (number), B (text, A == 1)
//	Topic 2: C (boolean)
//	Topic 3: пустой
func sampleTemplate() *domain.Template {
	return &domain.Template{
		ID:       5,
		Name:     "sample",
		Category: domain.CategoryProposal,
		Version:  1,
		Topics: []domain.Topic{
			{ID: 1, TemplateID: 5, Title: "One", SortOrder: 0, IsEnabled: true, Fields: []domain.QuestionTemplateRelation{
				qtr("A", domain.DataTypeNumber, 1, 0),
				withDep(qtr("B", domain.DataTypeText, 1, 1), "A", domain.NumberValue(1)),
			}},
			{ID: 2, TemplateID: 5, Title: "Two", SortOrder: 1, IsEnabled: true, Fields: []domain.QuestionTemplateRelation{
				qtr("C", domain.DataTypeBoolean, 2, 0),
			}},
			{ID: 3, TemplateID: 5, Title: "Three", SortOrder: 2, IsEnabled: true, Fields: []domain.QuestionTemplateRelation{}},
		},
	}
}

func mustJSON(t *testing.T, tmpl *domain.Template) string {
	t.Helper()
	b, err := json.Marshal(tmpl)
	if err != nil {
		t.Fatalf("marshal template: %v", err)
	}
	return string(b)
}

// assertDense проверяет плотность SortOrder разделов и полей.
func assertDense(t *testing.T, tmpl *domain.Template) {
	t.Helper()
	for i, topic := range tmpl.Topics {
		if topic.SortOrder != i {
			t.Errorf("topic %d: sort order %d at position %d", topic.ID, topic.SortOrder, i)
		}
		for j, f := range topic.Fields {
			if f.SortOrder != j {
				t.Errorf("field %s: sort order %d at position %d", f.Question.ID, f.SortOrder, j)
			}
			if f.TopicID != topic.ID {
				t.Errorf("field %s: topic %d, placed in %d", f.Question.ID, f.TopicID, topic.ID)
			}
		}
	}
}

func topicIDs(tmpl *domain.Template) []int64 {
	ids := make([]int64, len(tmpl.Topics))
	for i, topic := range tmpl.Topics {
		ids[i] = topic.ID
	}
	return ids
}

func fieldIDs(topic domain.Topic) []string {
	ids := make([]string, len(topic.Fields))
	for i, f := range topic.Fields {
		ids[i] = f.Question.ID
	}
	return ids
}

func equalIDs[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCreateTopic(t *testing.T) {
	tests := []struct {
		name      string
		sortOrder int
		wantPos   int
	}{
		{"at start", 0, 0},
		{"in the middle", 1, 1},
		{"at end", 3, 3},
		{"beyond end appends", 99, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := sampleTemplate()
			before := mustJSON(t, orig)

			out, topic, err := CreateTopic(orig, "New", tt.sortOrder)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(out.Topics) != 4 {
				t.Fatalf("expected 4 topics, got %d", len(out.Topics))
			}
			if out.Topics[tt.wantPos].ID != topic.ID {
				t.Errorf("new topic at %v, want position %d", topicIDs(out), tt.wantPos)
			}
			if topic.ID != 4 || topic.Title != "New" || !topic.IsEnabled {
				t.Errorf("unexpected topic: %+v", topic)
			}
			assertDense(t, out)

			if mustJSON(t, orig) != before {
				t.Error("input template was modified")
			}
		})
	}
}

func TestCreateTopic_DefaultTitle(t *testing.T) {
	_, topic, err := CreateTopic(sampleTemplate(), "  ", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if topic.Title != DefaultTopicTitle {
		t.Errorf("title = %q, want %q", topic.Title, DefaultTopicTitle)
	}
}

func TestCreateTopic_NegativeOrder(t *testing.T) {
	_, _, err := CreateTopic(sampleTemplate(), "x", -1)
	if !errors.Is(err, ErrInvalidOrder) {
		t.Errorf("expected ErrInvalidOrder, got %v", err)
	}
}

func TestUpdateTopic(t *testing.T) {
	title := "Renamed"
	disabled := false

	out, err := UpdateTopic(sampleTemplate(), 2, TopicPatch{Title: &title})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	topic, _ := out.Topic(2)
	if topic.Title != "Renamed" || !topic.IsEnabled {
		t.Errorf("unexpected topic after title patch: %+v", topic)
	}

	out, err = UpdateTopic(out, 2, TopicPatch{IsEnabled: &disabled})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	topic, _ = out.Topic(2)
	if topic.Title != "Renamed" || topic.IsEnabled {
		t.Errorf("unexpected topic after enabled patch: %+v", topic)
	}

	if _, err := UpdateTopic(sampleTemplate(), 42, TopicPatch{}); !errors.Is(err, ErrTopicNotFound) {
		t.Errorf("expected ErrTopicNotFound, got %v", err)
	}

	empty := ""
	if _, err := UpdateTopic(sampleTemplate(), 1, TopicPatch{Title: &empty}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDeleteTopic(t *testing.T) {
	t.Run("non-empty topic is blocked", func(t *testing.T) {
		orig := sampleTemplate()
		before := mustJSON(t, orig)

		_, err := DeleteTopic(orig, 1)
		if !errors.Is(err, ErrTopicNotEmpty) {
			t.Errorf("expected ErrTopicNotEmpty, got %v", err)
		}
		if mustJSON(t, orig) != before {
			t.Error("template changed after rejected delete")
		}
	})

	t.Run("empty topic", func(t *testing.T) {
		// Пустой раздел посередине: порядок остальных уплотняется
		tmpl := sampleTemplate()
		tmpl.Topics[1], tmpl.Topics[2] = tmpl.Topics[2], tmpl.Topics[1]
		tmpl.Topics[1].SortOrder, tmpl.Topics[2].SortOrder = 1, 2

		out, err := DeleteTopic(tmpl, 3)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := []int64{1, 2}; !equalIDs(topicIDs(out), want) {
			t.Errorf("topics = %v, want %v", topicIDs(out), want)
		}
		assertDense(t, out)
	})

	t.Run("unknown topic", func(t *testing.T) {
		if _, err := DeleteTopic(sampleTemplate(), 9); !errors.Is(err, ErrTopicNotFound) {
			t.Errorf("expected ErrTopicNotFound, got %v", err)
		}
	})
}

func TestReorderTopics(t *testing.T) {
	t.Run("identity keeps sort orders", func(t *testing.T) {
		orig := sampleTemplate()
		out, err := ReorderTopics(orig, []int64{1, 2, 3})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if mustJSON(t, out) != mustJSON(t, orig) {
			t.Error("identity reorder changed the template")
		}
	})

	t.Run("permutation", func(t *testing.T) {
		out, err := ReorderTopics(sampleTemplate(), []int64{3, 1, 2})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := []int64{3, 1, 2}; !equalIDs(topicIDs(out), want) {
			t.Errorf("topics = %v, want %v", topicIDs(out), want)
		}
		assertDense(t, out)
	})

	invalid := []struct {
		name string
		ids  []int64
	}{
		{"missing topic", []int64{1, 2}},
		{"duplicate topic", []int64{1, 1, 2}},
		{"unknown topic", []int64{1, 2, 7}},
		{"extra topic", []int64{1, 2, 3, 4}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReorderTopics(sampleTemplate(), tt.ids)
			if !errors.Is(err, ErrInvalidOrder) {
				t.Errorf("expected ErrInvalidOrder, got %v", err)
			}
		})
	}
}

func TestMoveQuestionToTopic(t *testing.T) {
	out, err := MoveQuestionToTopic(sampleTemplate(), "A", 2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want := []string{"B"}; !equalIDs(fieldIDs(out.Topics[0]), want) {
		t.Errorf("topic 1 fields = %v, want %v", fieldIDs(out.Topics[0]), want)
	}
	if want := []string{"A", "C"}; !equalIDs(fieldIDs(out.Topics[1]), want) {
		t.Errorf("topic 2 fields = %v, want %v", fieldIDs(out.Topics[1]), want)
	}
	assertDense(t, out)

	// Зависимость B → A сохраняется при переносе между разделами
	b, _ := out.Field("B")
	if b.Dependency == nil || b.Dependency.DependencyID != "A" {
		t.Errorf("dependency lost: %+v", b.Dependency)
	}
}

func TestMoveQuestionToTopic_WithinTopic(t *testing.T) {
	out, err := MoveQuestionToTopic(sampleTemplate(), "A", 1, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"B", "A"}; !equalIDs(fieldIDs(out.Topics[0]), want) {
		t.Errorf("fields = %v, want %v", fieldIDs(out.Topics[0]), want)
	}
	assertDense(t, out)
}

func TestMoveQuestionToTopic_Errors(t *testing.T) {
	if _, err := MoveQuestionToTopic(sampleTemplate(), "Z", 1, 0); !errors.Is(err, ErrFieldNotFound) {
		t.Errorf("expected ErrFieldNotFound, got %v", err)
	}
	if _, err := MoveQuestionToTopic(sampleTemplate(), "A", 9, 0); !errors.Is(err, ErrTopicNotFound) {
		t.Errorf("expected ErrTopicNotFound, got %v", err)
	}
	if _, err := MoveQuestionToTopic(sampleTemplate(), "A", 2, -1); !errors.Is(err, ErrInvalidOrder) {
		t.Errorf("expected ErrInvalidOrder, got %v", err)
	}
}

func TestSetDependency(t *testing.T) {
	t.Run("set", func(t *testing.T) {
		dep := &domain.FieldDependency{
			DependencyID: "A",
			Condition:    domain.FieldCondition{Operator: domain.OperatorNEQ, Params: domain.NumberValue(0)},
		}
		out, err := SetDependency(sampleTemplate(), "C", dep)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		c, _ := out.Field("C")
		if c.Dependency == nil || c.Dependency.QuestionID != "C" || c.Dependency.DependencyID != "A" {
			t.Errorf("unexpected dependency: %+v", c.Dependency)
		}
	})

	t.Run("clear", func(t *testing.T) {
		out, err := SetDependency(sampleTemplate(), "B", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		b, _ := out.Field("B")
		if b.Dependency != nil {
			t.Errorf("dependency not cleared: %+v", b.Dependency)
		}
	})

	rejected := []struct {
		name     string
		question string
		dep      *domain.FieldDependency
		wantErr  error
	}{
		{
			name:     "self dependency",
			question: "A",
			dep:      &domain.FieldDependency{DependencyID: "A", Condition: domain.FieldCondition{Operator: domain.OperatorEQ, Params: domain.NumberValue(1)}},
			wantErr:  ErrCyclicDependency,
		},
		{
			name:     "closes a loop",
			question: "A",
			dep:      &domain.FieldDependency{DependencyID: "B", Condition: domain.FieldCondition{Operator: domain.OperatorEQ, Params: domain.TextValue("x")}},
			wantErr:  ErrCyclicDependency,
		},
		{
			name:     "unknown target",
			question: "C",
			dep:      &domain.FieldDependency{DependencyID: "Z", Condition: domain.FieldCondition{Operator: domain.OperatorEQ, Params: domain.TextValue("x")}},
			wantErr:  engine.ErrMissingDependency,
		},
		{
			name:     "unsupported operator",
			question: "C",
			dep:      &domain.FieldDependency{DependencyID: "A", Condition: domain.FieldCondition{Operator: "gt", Params: domain.NumberValue(1)}},
			wantErr:  engine.ErrUnsupportedOperator,
		},
		{
			name:     "params of wrong type",
			question: "C",
			dep:      &domain.FieldDependency{DependencyID: "A", Condition: domain.FieldCondition{Operator: domain.OperatorEQ, Params: domain.TextValue("1")}},
			wantErr:  engine.ErrParamsMismatch,
		},
		{
			name:     "unknown field",
			question: "Z",
			dep:      nil,
			wantErr:  ErrFieldNotFound,
		},
	}

	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			orig := sampleTemplate()
			before := mustJSON(t, orig)

			out, err := SetDependency(orig, tt.question, tt.dep)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if out != nil {
				t.Error("rejected edit must not return a template")
			}
			if mustJSON(t, orig) != before {
				t.Error("template changed after rejected edit")
			}
		})
	}
}

func TestCreateField(t *testing.T) {
	out, q, err := CreateField(sampleTemplate(), 3, domain.DataTypeSelection)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if q.DataType != domain.DataTypeSelection || q.ID == "" {
		t.Errorf("unexpected question: %+v", q)
	}
	f, ok := out.Field(q.ID)
	if !ok {
		t.Fatal("created field not found")
	}
	if f.TopicID != 3 || f.SortOrder != 0 {
		t.Errorf("field placed at topic %d order %d", f.TopicID, f.SortOrder)
	}
	if _, ok := f.Config.(*domain.SelectionConfig); !ok {
		t.Errorf("expected *SelectionConfig, got %T", f.Config)
	}
	assertDense(t, out)

	if _, _, err := CreateField(sampleTemplate(), 3, "COLOR"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if _, _, err := CreateField(sampleTemplate(), 9, domain.DataTypeText); !errors.Is(err, ErrTopicNotFound) {
		t.Errorf("expected ErrTopicNotFound, got %v", err)
	}
}

func TestAttachQuestion(t *testing.T) {
	q := domain.Question{ID: "D", DataType: domain.DataTypeText, NaturalKey: "d", DefaultConfig: &domain.TextConfig{Multiline: true}}

	out, err := AttachQuestion(sampleTemplate(), 1, q, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"A", "D", "B"}; !equalIDs(fieldIDs(out.Topics[0]), want) {
		t.Errorf("fields = %v, want %v", fieldIDs(out.Topics[0]), want)
	}
	d, _ := out.Field("D")
	cfg, ok := d.Config.(*domain.TextConfig)
	if !ok || !cfg.Multiline {
		t.Errorf("config not copied from default: %+v", d.Config)
	}
	cfg.Multiline = false
	if !q.DefaultConfig.(*domain.TextConfig).Multiline {
		t.Error("field config shares memory with question default config")
	}
	assertDense(t, out)

	dup := q
	dup.ID = "A"
	if _, err := AttachQuestion(sampleTemplate(), 2, dup, 0); !errors.Is(err, ErrQuestionInTemplate) {
		t.Errorf("expected ErrQuestionInTemplate, got %v", err)
	}
}

func TestDeleteField(t *testing.T) {
	t.Run("dependency target is blocked", func(t *testing.T) {
		orig := sampleTemplate()
		before := mustJSON(t, orig)

		_, err := DeleteField(orig, "A")
		if !errors.Is(err, ErrDependencyTargetInUse) {
			t.Errorf("expected ErrDependencyTargetInUse, got %v", err)
		}
		if mustJSON(t, orig) != before {
			t.Error("template changed after rejected delete")
		}
	})

	t.Run("leaf field", func(t *testing.T) {
		out, err := DeleteField(sampleTemplate(), "B")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := []string{"A"}; !equalIDs(fieldIDs(out.Topics[0]), want) {
			t.Errorf("fields = %v, want %v", fieldIDs(out.Topics[0]), want)
		}
		assertDense(t, out)

		// После удаления B поле A можно удалить
		if _, err := DeleteField(out, "A"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestUpdateFieldConfig(t *testing.T) {
	maxLen := 10
	out, err := UpdateFieldConfig(sampleTemplate(), "B", &domain.TextConfig{
		BaseConfig: domain.BaseConfig{Required: true},
		Max:        &maxLen,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := out.Field("B")
	if !b.IsRequired() {
		t.Error("config not applied")
	}

	_, err = UpdateFieldConfig(sampleTemplate(), "B", &domain.NumberConfig{})
	if !errors.Is(err, engine.ErrConfigMismatch) {
		t.Errorf("expected ErrConfigMismatch, got %v", err)
	}
}

func TestUpdateField(t *testing.T) {
	topicID := int64(2)
	out, err := UpdateField(sampleTemplate(), "B", FieldPatch{
		TopicID:    &topicID,
		Config:     &domain.TextConfig{BaseConfig: domain.BaseConfig{Required: true}},
		Dependency: &DependencyPatch{Dependency: nil},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b, _ := out.Field("B")
	if b.TopicID != 2 || b.SortOrder != 1 {
		t.Errorf("B at topic %d order %d, want topic 2 order 1", b.TopicID, b.SortOrder)
	}
	if !b.IsRequired() || b.Dependency != nil {
		t.Errorf("unexpected field: required=%v dependency=%+v", b.IsRequired(), b.Dependency)
	}
	assertDense(t, out)

	// Ошибка на последнем шаге отменяет всё изменение
	orig := sampleTemplate()
	before := mustJSON(t, orig)
	_, err = UpdateField(orig, "A", FieldPatch{
		TopicID: &topicID,
		Dependency: &DependencyPatch{Dependency: &domain.FieldDependency{
			DependencyID: "B",
			Condition:    domain.FieldCondition{Operator: domain.OperatorEQ, Params: domain.TextValue("x")},
		}},
	})
	if !errors.Is(err, ErrCyclicDependency) {
		t.Errorf("expected ErrCyclicDependency, got %v", err)
	}
	if mustJSON(t, orig) != before {
		t.Error("template changed after rejected composite edit")
	}
}

func TestDensityAfterEditSequence(t *testing.T) {
	tmpl := sampleTemplate()

	steps := []struct {
		name  string
		apply func(*domain.Template) (*domain.Template, error)
	}{
		{"create topic at 1", func(t *domain.Template) (*domain.Template, error) {
			out, _, err := CreateTopic(t, "x", 1)
			return out, err
		}},
		{"move C to topic 3", func(t *domain.Template) (*domain.Template, error) {
			return MoveQuestionToTopic(t, "C", 3, 0)
		}},
		{"delete topic 2", func(t *domain.Template) (*domain.Template, error) {
			return DeleteTopic(t, 2)
		}},
		{"create field in topic 1", func(t *domain.Template) (*domain.Template, error) {
			out, _, err := CreateField(t, 1, domain.DataTypeDate)
			return out, err
		}},
		{"move B to topic 4 start", func(t *domain.Template) (*domain.Template, error) {
			return MoveQuestionToTopic(t, "B", 4, 0)
		}},
		{"delete B", func(t *domain.Template) (*domain.Template, error) {
			return DeleteField(t, "B")
		}},
		{"reorder", func(t *domain.Template) (*domain.Template, error) {
			return ReorderTopics(t, []int64{4, 3, 1})
		}},
		{"create topic at end", func(t *domain.Template) (*domain.Template, error) {
			out, _, err := CreateTopic(t, "y", 10)
			return out, err
		}},
	}

	for _, step := range steps {
		out, err := step.apply(tmpl)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", step.name, err)
		}
		assertDense(t, out)
		if err := engine.ValidateTemplate(out); err != nil {
			t.Fatalf("%s: invalid template: %v", step.name, err)
		}
		tmpl = out
	}
}

func TestNewQuestionID(t *testing.T) {
	a := NewQuestionID(domain.DataTypeText)
	b := NewQuestionID(domain.DataTypeText)

	if a == b {
		t.Error("ids must be unique")
	}
	if len(a) != len("text_input_")+12 || a[:len("text_input_")] != "text_input_" {
		t.Errorf("unexpected id format: %s", a)
	}
}
