package engine

import (
	"github.com/shaiso/Questionary/internal/domain"
)

// field создаёт поле без зависимости.
func field(id string, dt domain.DataType, topicID int64, order int) domain.QuestionTemplateRelation {
	cfg, err := domain.NewFieldConfig(dt)
	if err != nil {
		panic(err)
	}
	return domain.QuestionTemplateRelation{
		Question:  domain.Question{ID: id, DataType: dt, NaturalKey: id, DefaultConfig: cfg},
		TopicID:   topicID,
		SortOrder: order,
		Config:    cfg,
	}
}

// dependsOn добавляет полю зависимость.
func dependsOn(f domain.QuestionTemplateRelation, target string, op domain.Operator, params domain.Value) domain.QuestionTemplateRelation {
	f.Dependency = &domain.FieldDependency{
		QuestionID:   f.Question.ID,
		DependencyID: target,
		Condition:    domain.FieldCondition{Operator: op, Params: params},
	}
	return f
}

// required делает поле обязательным.
func required(f domain.QuestionTemplateRelation) domain.QuestionTemplateRelation {
	switch cfg := f.Config.(type) {
	case *domain.TextConfig:
		cfg.Required = true
	case *domain.NumberConfig:
		cfg.Required = true
	case *domain.DateConfig:
		cfg.Required = true
	case *domain.BooleanConfig:
		cfg.Required = true
	case *domain.SelectionConfig:
		cfg.Required = true
	case *domain.FileConfig:
		cfg.Required = true
	}
	return f
}

// singleTopic создаёт шаблон с одним включённым разделом.
func singleTopic(fields ...domain.QuestionTemplateRelation) *domain.Template {
	for i := range fields {
		fields[i].TopicID = 1
		fields[i].SortOrder = i
	}
	return &domain.Template{
		ID:   1,
		Name: "test",
		Topics: []domain.Topic{
			{ID: 1, TemplateID: 1, Title: "Topic 1", SortOrder: 0, IsEnabled: true, Fields: fields},
		},
	}
}

// chainTemplate - A → B → C: B зависит от A == 1, C зависит от B == "x".
func chainTemplate() *domain.Template {
	return singleTopic(
		field("A", domain.DataTypeNumber, 1, 0),
		dependsOn(field("B", domain.DataTypeText, 1, 1), "A", domain.OperatorEQ, domain.NumberValue(1)),
		dependsOn(field("C", domain.DataTypeText, 1, 2), "B", domain.OperatorEQ, domain.TextValue("x")),
	)
}
