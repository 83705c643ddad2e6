package engine

import (
	"errors"
	"strings"
	"testing"

	"github.com/shaiso/Questionary/internal/domain"
)

const validTemplateJSON = `{
	"id": 7,
	"name": "Proposal",
	"category": "PROPOSAL_QUESTIONARY",
	"version": 3,
	"topics": [
		{
			"id": 1,
			"title": "General",
			"sort_order": 0,
			"is_enabled": true,
			"fields": [
				{
					"question": {"id": "has_samples", "data_type": "BOOLEAN", "natural_key": "has_samples", "question": "Samples?"},
					"topic_id": 1,
					"sort_order": 0,
					"config": {"required": true}
				},
				{
					"question": {"id": "sample_count", "data_type": "NUMBER_INPUT", "natural_key": "sample_count", "question": "How many?"},
					"topic_id": 1,
					"sort_order": 1,
					"config": {"required": true, "min": 1},
					"dependency": {"dependency_id": "has_samples", "condition": {"operator": "eq", "params": true}}
				}
			]
		},
		{
			"id": 2,
			"title": "Details",
			"sort_order": 1,
			"is_enabled": true,
			"fields": [
				{
					"question": {"id": "kind", "data_type": "SELECTION_FROM_OPTIONS", "natural_key": "kind", "question": "Kind"},
					"topic_id": 2,
					"sort_order": 0,
					"config": {"options": ["powder", "crystal"]},
					"dependency": {"dependency_id": "sample_count", "condition": {"operator": "neq", "params": 0}}
				}
			]
		}
	]
}`

func TestParseTemplate_Valid(t *testing.T) {
	tmpl, err := ParseTemplate([]byte(validTemplateJSON))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tmpl.ID != 7 || tmpl.Version != 3 {
		t.Errorf("unexpected header: id=%d version=%d", tmpl.ID, tmpl.Version)
	}
	if len(tmpl.Topics) != 2 {
		t.Fatalf("expected 2 topics, got %d", len(tmpl.Topics))
	}

	f, ok := tmpl.Field("sample_count")
	if !ok {
		t.Fatal("sample_count not found")
	}
	cfg, ok := f.Config.(*domain.NumberConfig)
	if !ok {
		t.Fatalf("expected *NumberConfig, got %T", f.Config)
	}
	if cfg.Min == nil || *cfg.Min != 1 || !cfg.Required {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if f.Dependency == nil || f.Dependency.Condition.Params.Kind != domain.DataTypeBoolean {
		t.Errorf("dependency params must be typed by target, got %+v", f.Dependency)
	}

	kind, _ := tmpl.Field("kind")
	if kind.Dependency.Condition.Params.Kind != domain.DataTypeNumber {
		t.Errorf("params kind = %s, want NUMBER_INPUT", kind.Dependency.Condition.Params.Kind)
	}
}

func TestParseTemplate_InvalidJSON(t *testing.T) {
	_, err := ParseTemplate([]byte(`{"topics": [`))
	if err == nil {
		t.Error("expected error for broken JSON")
	}
}

func TestParseTemplate_UnsupportedOperator(t *testing.T) {
	doc := strings.Replace(validTemplateJSON, `"operator": "neq"`, `"operator": "gt"`, 1)

	_, err := ParseTemplate([]byte(doc))
	if !errors.Is(err, ErrUnsupportedOperator) {
		t.Fatalf("expected ErrUnsupportedOperator, got %v", err)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.QuestionID != "kind" {
		t.Errorf("error must point at the dependent question, got %v", err)
	}
}

func TestValidateTemplate(t *testing.T) {
	tests := []struct {
		name    string
		tmpl    func() *domain.Template
		wantErr error
	}{
		{
			name:    "valid chain",
			tmpl:    chainTemplate,
			wantErr: nil,
		},
		{
			name: "empty template",
			tmpl: func() *domain.Template {
				return &domain.Template{Name: "empty"}
			},
			wantErr: nil,
		},
		{
			name: "duplicate topic id",
			tmpl: func() *domain.Template {
				tmpl := chainTemplate()
				tmpl.Topics = append(tmpl.Topics, domain.Topic{ID: 1, SortOrder: 1, IsEnabled: true})
				return tmpl
			},
			wantErr: ErrDuplicateTopicID,
		},
		{
			name: "topic order gap",
			tmpl: func() *domain.Template {
				tmpl := chainTemplate()
				tmpl.Topics = append(tmpl.Topics, domain.Topic{ID: 2, SortOrder: 2, IsEnabled: true})
				return tmpl
			},
			wantErr: ErrSortOrder,
		},
		{
			name: "field order duplicate",
			tmpl: func() *domain.Template {
				tmpl := chainTemplate()
				tmpl.Topics[0].Fields[2].SortOrder = 1
				return tmpl
			},
			wantErr: ErrSortOrder,
		},
		{
			name: "field in wrong topic",
			tmpl: func() *domain.Template {
				tmpl := chainTemplate()
				tmpl.Topics[0].Fields[1].TopicID = 9
				return tmpl
			},
			wantErr: ErrTopicMismatch,
		},
		{
			name: "config mismatch",
			tmpl: func() *domain.Template {
				tmpl := chainTemplate()
				tmpl.Topics[0].Fields[0].Config = &domain.TextConfig{}
				return tmpl
			},
			wantErr: ErrConfigMismatch,
		},
		{
			name: "unsupported operator",
			tmpl: func() *domain.Template {
				tmpl := chainTemplate()
				tmpl.Topics[0].Fields[1].Dependency.Condition.Operator = "gt"
				return tmpl
			},
			wantErr: ErrUnsupportedOperator,
		},
		{
			name: "duplicate question across topics",
			tmpl: func() *domain.Template {
				tmpl := chainTemplate()
				tmpl.Topics = append(tmpl.Topics, domain.Topic{
					ID: 2, SortOrder: 1, IsEnabled: true,
					Fields: []domain.QuestionTemplateRelation{field("A", domain.DataTypeNumber, 2, 0)},
				})
				return tmpl
			},
			wantErr: ErrDuplicateQuestion,
		},
		{
			name: "cycle",
			tmpl: func() *domain.Template {
				tmpl := chainTemplate()
				a := &tmpl.Topics[0].Fields[0]
				*a = dependsOn(*a, "C", domain.OperatorEQ, domain.TextValue("z"))
				return tmpl
			},
			wantErr: ErrCyclicDependency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTemplate(tt.tmpl())
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("q1", "value", "too long", ErrOutOfRange)

	if !errors.Is(err, ErrOutOfRange) {
		t.Error("ValidationError must unwrap to its base error")
	}
	if err.Error() == "" {
		t.Error("empty error message")
	}
}
