package engine

import (
	"errors"
	"reflect"
	"sort"
	"testing"

	"github.com/shaiso/Questionary/internal/domain"
)

func TestBuildGraph_Chain(t *testing.T) {
	g := BuildGraph(chainTemplate())

	if g.Size() != 3 {
		t.Errorf("expected 3 nodes, got %d", g.Size())
	}
	if len(g.Edges()) != 2 {
		t.Errorf("expected 2 edges, got %d", len(g.Edges()))
	}
	if want := []string{"A", "B", "C"}; !reflect.DeepEqual(g.Order, want) {
		t.Errorf("Order = %v, want %v", g.Order, want)
	}
	if g.Dependency("A") != nil {
		t.Error("A should have no dependency")
	}
	if edge := g.Dependency("C"); edge == nil || edge.From != "B" {
		t.Errorf("C should depend on B, got %+v", edge)
	}
	if len(g.Problems()) != 0 {
		t.Errorf("unexpected problems: %v", g.Problems())
	}
}

func TestBuildGraph_OrderIgnoresDisplayOrder(t *testing.T) {
	// Зависимое поле стоит выше цели
	tmpl := singleTopic(
		dependsOn(field("B", domain.DataTypeText, 1, 0), "A", domain.OperatorEQ, domain.BoolValue(true)),
		field("A", domain.DataTypeBoolean, 1, 1),
	)
	g := BuildGraph(tmpl)

	if want := []string{"A", "B"}; !reflect.DeepEqual(g.Order, want) {
		t.Errorf("Order = %v, want %v", g.Order, want)
	}
}

func TestBuildGraph_Problems(t *testing.T) {
	tests := []struct {
		name    string
		tmpl    *domain.Template
		wantID  string
		wantErr error
	}{
		{
			name: "self dependency",
			tmpl: singleTopic(
				dependsOn(field("A", domain.DataTypeText, 1, 0), "A", domain.OperatorEQ, domain.TextValue("x")),
			),
			wantID:  "A",
			wantErr: ErrSelfDependency,
		},
		{
			name: "missing target",
			tmpl: singleTopic(
				dependsOn(field("A", domain.DataTypeText, 1, 0), "ghost", domain.OperatorEQ, domain.TextValue("x")),
			),
			wantID:  "A",
			wantErr: ErrMissingDependency,
		},
		{
			name: "params kind mismatch",
			tmpl: singleTopic(
				field("A", domain.DataTypeNumber, 1, 0),
				dependsOn(field("B", domain.DataTypeText, 1, 1), "A", domain.OperatorEQ, domain.TextValue("1")),
			),
			wantID:  "B",
			wantErr: ErrParamsMismatch,
		},
		{
			name: "embellishment target",
			tmpl: singleTopic(
				field("E", domain.DataTypeEmbellishment, 1, 0),
				dependsOn(field("B", domain.DataTypeText, 1, 1), "E", domain.OperatorEQ, domain.TextValue("x")),
			),
			wantID:  "B",
			wantErr: ErrNotAnswerableTarget,
		},
		{
			name: "cycle",
			tmpl: singleTopic(
				dependsOn(field("A", domain.DataTypeText, 1, 0), "B", domain.OperatorEQ, domain.TextValue("x")),
				dependsOn(field("B", domain.DataTypeText, 1, 1), "A", domain.OperatorEQ, domain.TextValue("y")),
			),
			wantID:  "A",
			wantErr: ErrCyclicDependency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := BuildGraph(tt.tmpl)

			node := g.Nodes[tt.wantID]
			if node == nil {
				t.Fatalf("node %s not found", tt.wantID)
			}
			if !errors.Is(node.Problem, tt.wantErr) {
				t.Errorf("problem = %v, want %v", node.Problem, tt.wantErr)
			}

			var ve *ValidationError
			if !errors.As(node.Problem, &ve) {
				t.Fatalf("expected *ValidationError, got %T", node.Problem)
			}
			if ve.QuestionID != tt.wantID {
				t.Errorf("QuestionID = %q, want %q", ve.QuestionID, tt.wantID)
			}
		})
	}
}

func TestBuildGraph_CycleMarksOnlyCycleMembers(t *testing.T) {
	// A ↔ B - цикл, C зависит от B, но сам на цикле не лежит
	tmpl := singleTopic(
		dependsOn(field("A", domain.DataTypeText, 1, 0), "B", domain.OperatorEQ, domain.TextValue("x")),
		dependsOn(field("B", domain.DataTypeText, 1, 1), "A", domain.OperatorEQ, domain.TextValue("y")),
		dependsOn(field("C", domain.DataTypeText, 1, 2), "B", domain.OperatorEQ, domain.TextValue("z")),
		field("D", domain.DataTypeText, 1, 3),
	)
	g := BuildGraph(tmpl)

	if !errors.Is(g.Nodes["A"].Problem, ErrCyclicDependency) {
		t.Errorf("A: expected cycle, got %v", g.Nodes["A"].Problem)
	}
	if !errors.Is(g.Nodes["B"].Problem, ErrCyclicDependency) {
		t.Errorf("B: expected cycle, got %v", g.Nodes["B"].Problem)
	}
	if g.Nodes["C"].Problem != nil {
		t.Errorf("C: expected no problem, got %v", g.Nodes["C"].Problem)
	}

	active, diags := g.ActiveQuestions(NewConditions(), map[string]domain.Value{
		"A": domain.TextValue("y"),
		"B": domain.TextValue("x"),
	})

	want := map[string]bool{"A": false, "B": false, "C": false, "D": true}
	if !reflect.DeepEqual(active, want) {
		t.Errorf("active = %v, want %v", active, want)
	}
	if len(diags) != 2 {
		t.Errorf("expected 2 diagnostics, got %d: %v", len(diags), diags)
	}
}

func TestWouldCreateCycle(t *testing.T) {
	g := BuildGraph(chainTemplate())

	tests := []struct {
		owner, target string
		want          bool
	}{
		{"A", "A", true},
		{"A", "B", true},
		{"A", "C", true},
		{"B", "C", true},
		{"C", "A", false},
		{"B", "A", false},
	}

	for _, tt := range tests {
		if got := g.WouldCreateCycle(tt.owner, tt.target); got != tt.want {
			t.Errorf("WouldCreateCycle(%s, %s) = %v, want %v", tt.owner, tt.target, got, tt.want)
		}
	}
}

func TestDependentsOf(t *testing.T) {
	tmpl := singleTopic(
		field("A", domain.DataTypeNumber, 1, 0),
		dependsOn(field("B", domain.DataTypeText, 1, 1), "A", domain.OperatorEQ, domain.NumberValue(1)),
		dependsOn(field("C", domain.DataTypeText, 1, 2), "B", domain.OperatorEQ, domain.TextValue("x")),
		dependsOn(field("D", domain.DataTypeText, 1, 3), "A", domain.OperatorNEQ, domain.NumberValue(2)),
		field("E", domain.DataTypeText, 1, 4),
	)
	g := BuildGraph(tmpl)

	got := g.DependentsOf("A")
	sorted := append([]string(nil), got...)
	sort.Strings(sorted)
	if want := []string{"B", "C", "D"}; !reflect.DeepEqual(sorted, want) {
		t.Errorf("DependentsOf(A) = %v, want %v", got, want)
	}

	// B раньше C в топологическом порядке
	pos := make(map[string]int)
	for i, id := range got {
		pos[id] = i
	}
	if pos["B"] > pos["C"] {
		t.Errorf("B must precede C, got %v", got)
	}

	if deps := g.DependentsOf("E"); len(deps) != 0 {
		t.Errorf("DependentsOf(E) = %v, want empty", deps)
	}
}

func TestActiveQuestions_SingleDependency(t *testing.T) {
	// Q2 видим только при Q1 == "yes"
	tmpl := singleTopic(
		field("Q1", domain.DataTypeText, 1, 0),
		dependsOn(field("Q2", domain.DataTypeText, 1, 1), "Q1", domain.OperatorEQ, domain.TextValue("yes")),
	)
	g := BuildGraph(tmpl)
	conds := NewConditions()

	tests := []struct {
		name    string
		answers map[string]domain.Value
		want    bool
	}{
		{"no answer", map[string]domain.Value{}, false},
		{"matching answer", map[string]domain.Value{"Q1": domain.TextValue("yes")}, true},
		{"other answer", map[string]domain.Value{"Q1": domain.TextValue("no")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			active, diags := g.ActiveQuestions(conds, tt.answers)
			if len(diags) != 0 {
				t.Fatalf("unexpected diagnostics: %v", diags)
			}
			if !active["Q1"] {
				t.Error("Q1 has no dependency and must be active")
			}
			if active["Q2"] != tt.want {
				t.Errorf("Q2 active = %v, want %v", active["Q2"], tt.want)
			}
		})
	}
}

func TestActiveQuestions_NEQWithoutAnswer(t *testing.T) {
	tmpl := singleTopic(
		field("Q1", domain.DataTypeText, 1, 0),
		dependsOn(field("Q2", domain.DataTypeText, 1, 1), "Q1", domain.OperatorNEQ, domain.TextValue("no")),
	)
	g := BuildGraph(tmpl)

	active, _ := g.ActiveQuestions(NewConditions(), map[string]domain.Value{})
	if active["Q2"] {
		t.Error("neq dependency without answer must be inactive")
	}

	active, _ = g.ActiveQuestions(NewConditions(), map[string]domain.Value{"Q1": domain.TextValue("maybe")})
	if !active["Q2"] {
		t.Error("neq dependency with different answer must be active")
	}
}

func TestActiveQuestions_Chain(t *testing.T) {
	g := BuildGraph(chainTemplate())
	conds := NewConditions()

	tests := []struct {
		name    string
		answers map[string]domain.Value
		want    map[string]bool
	}{
		{
			name:    "nothing answered",
			answers: map[string]domain.Value{},
			want:    map[string]bool{"A": true, "B": false, "C": false},
		},
		{
			name:    "A opens B",
			answers: map[string]domain.Value{"A": domain.NumberValue(1)},
			want:    map[string]bool{"A": true, "B": true, "C": false},
		},
		{
			name: "full chain",
			answers: map[string]domain.Value{
				"A": domain.NumberValue(1),
				"B": domain.TextValue("x"),
			},
			want: map[string]bool{"A": true, "B": true, "C": true},
		},
		{
			// Ответ на B остался, но B скрыт - C тоже скрыт
			name: "stale answer does not activate",
			answers: map[string]domain.Value{
				"A": domain.NumberValue(2),
				"B": domain.TextValue("x"),
			},
			want: map[string]bool{"A": true, "B": false, "C": false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			active, _ := g.ActiveQuestions(conds, tt.answers)
			if !reflect.DeepEqual(active, tt.want) {
				t.Errorf("active = %v, want %v", active, tt.want)
			}
		})
	}
}

func TestActiveQuestions_DisabledTopic(t *testing.T) {
	tmpl := &domain.Template{
		ID: 1,
		Topics: []domain.Topic{
			{ID: 1, SortOrder: 0, IsEnabled: false, Fields: []domain.QuestionTemplateRelation{
				field("A", domain.DataTypeBoolean, 1, 0),
			}},
			{ID: 2, SortOrder: 1, IsEnabled: true, Fields: []domain.QuestionTemplateRelation{
				dependsOn(field("B", domain.DataTypeText, 2, 0), "A", domain.OperatorEQ, domain.BoolValue(true)),
				field("C", domain.DataTypeText, 2, 1),
			}},
		},
	}
	g := BuildGraph(tmpl)

	active, _ := g.ActiveQuestions(NewConditions(), map[string]domain.Value{"A": domain.BoolValue(true)})

	want := map[string]bool{"A": false, "B": false, "C": true}
	if !reflect.DeepEqual(active, want) {
		t.Errorf("active = %v, want %v", active, want)
	}
}

func TestActiveQuestions_UnsupportedOperator(t *testing.T) {
	tmpl := singleTopic(
		field("A", domain.DataTypeText, 1, 0),
		dependsOn(field("B", domain.DataTypeText, 1, 1), "A", domain.Operator("contains"), domain.TextValue("x")),
		field("C", domain.DataTypeText, 1, 2),
	)
	g := BuildGraph(tmpl)

	active, diags := g.ActiveQuestions(NewConditions(), map[string]domain.Value{"A": domain.TextValue("x")})

	if active["B"] {
		t.Error("B with unsupported operator must be inactive")
	}
	if !active["A"] || !active["C"] {
		t.Error("other fields must not be affected")
	}
	if len(diags) != 1 || diags[0].QuestionID != "B" || !errors.Is(diags[0].Err, ErrUnsupportedOperator) {
		t.Errorf("unexpected diagnostics: %v", diags)
	}
}

func TestRefresh_MatchesFullRecompute(t *testing.T) {
	tmpl := singleTopic(
		field("A", domain.DataTypeNumber, 1, 0),
		dependsOn(field("B", domain.DataTypeText, 1, 1), "A", domain.OperatorEQ, domain.NumberValue(1)),
		dependsOn(field("C", domain.DataTypeText, 1, 2), "B", domain.OperatorEQ, domain.TextValue("x")),
		dependsOn(field("D", domain.DataTypeText, 1, 3), "A", domain.OperatorNEQ, domain.NumberValue(1)),
		field("E", domain.DataTypeText, 1, 4),
	)
	g := BuildGraph(tmpl)
	conds := NewConditions()

	answers := map[string]domain.Value{
		"A": domain.NumberValue(1),
		"B": domain.TextValue("x"),
	}
	active, _ := g.ActiveQuestions(conds, answers)

	steps := []struct {
		id     string
		value  *domain.Value
		toggle []string
	}{
		{"A", ptr(domain.NumberValue(2)), []string{"B", "C", "D"}},
		{"A", ptr(domain.NumberValue(1)), []string{"B", "C", "D"}},
		{"B", ptr(domain.TextValue("y")), []string{"C"}},
		{"B", nil, []string{}},
		{"E", ptr(domain.TextValue("free")), []string{}},
	}

	for i, step := range steps {
		if step.value == nil {
			delete(answers, step.id)
		} else {
			answers[step.id] = *step.value
		}

		flipped, _ := g.Refresh(conds, active, answers, step.id)
		full, _ := g.ActiveQuestions(conds, answers)

		if !reflect.DeepEqual(active, full) {
			t.Errorf("step %d: refreshed %v, full %v", i, active, full)
		}

		sort.Strings(flipped)
		if !reflect.DeepEqual(flipped, step.toggle) {
			t.Errorf("step %d: flipped %v, want %v", i, flipped, step.toggle)
		}
	}
}
