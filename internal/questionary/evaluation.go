package questionary

import (
	"fmt"

	"github.com/shaiso/Questionary/internal/domain"
	"github.com/shaiso/Questionary/internal/engine"
)

// Evaluation - вычисленное состояние анкеты.
//
// Порядок разделов и вопросов совпадает с SortOrder шаблона:
// это контракт отображения.
type Evaluation struct {
	// QuestionaryID - анкета.
	QuestionaryID int64 `json:"questionary_id"`

	// TemplateID и TemplateVersion - снимок шаблона, по которому вычислено.
	TemplateID      int64 `json:"template_id"`
	TemplateVersion int   `json:"template_version"`

	// Topics - включённые разделы шаблона.
	Topics []TopicState `json:"topics"`

	// IsCompleted - заполнены все разделы.
	IsCompleted bool `json:"is_completed"`

	// Diagnostics - поля, которые не удалось вычислить.
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`

	// Orphaned - ответы на вопросы, которых больше нет в шаблоне.
	// В хранилище они сохраняются.
	Orphaned []domain.Answer `json:"orphaned,omitempty"`
}

// TopicState - раздел анкеты.
type TopicState struct {
	TopicID     int64           `json:"topic_id"`
	Title       string          `json:"title"`
	SortOrder   int             `json:"sort_order"`
	IsCompleted bool            `json:"is_completed"`
	Questions   []QuestionState `json:"questions"`
}

// QuestionState - вопрос анкеты.
//
// Answer заполнен только для активного вопроса: ответ скрытого
// вопроса хранится, но не показывается.
type QuestionState struct {
	Field    domain.QuestionTemplateRelation `json:"field"`
	Answer   *domain.Value                   `json:"answer"`
	IsActive bool                            `json:"is_active"`
}

// Diagnostic - поле, деградировавшее до "неактивно, без ответа".
type Diagnostic struct {
	QuestionID string `json:"question_id"`
	Message    string `json:"message"`
}

// Topic возвращает состояние раздела по ID.
func (e *Evaluation) Topic(id int64) (*TopicState, bool) {
	for i := range e.Topics {
		if e.Topics[i].TopicID == id {
			return &e.Topics[i], true
		}
	}
	return nil, false
}

// Question возвращает состояние вопроса по ID.
func (e *Evaluation) Question(id string) (*QuestionState, bool) {
	for i := range e.Topics {
		for j := range e.Topics[i].Questions {
			if e.Topics[i].Questions[j].Field.Question.ID == id {
				return &e.Topics[i].Questions[j], true
			}
		}
	}
	return nil, false
}

// Completion возвращает заполненность разделов для сохранения.
func (e *Evaluation) Completion() []domain.TopicCompletion {
	out := make([]domain.TopicCompletion, len(e.Topics))
	for i, topic := range e.Topics {
		out[i] = domain.TopicCompletion{
			QuestionaryID: e.QuestionaryID,
			TopicID:       topic.TopicID,
			IsComplete:    topic.IsCompleted,
		}
	}
	return out
}

// answerSet - ответы анкеты, разобранные по текущему шаблону.
type answerSet struct {
	values   map[string]domain.Value
	orphaned []domain.Answer
	diags    []Diagnostic
}

// typeAnswers разбирает сохранённые ответы по типам вопросов шаблона.
// Ответы на отсутствующие в шаблоне вопросы попадают в orphaned,
// неразбираемые ответы - в диагностику.
func typeAnswers(t *domain.Template, stored map[string]domain.Answer) answerSet {
	set := answerSet{values: make(map[string]domain.Value, len(stored))}

	for qid, a := range stored {
		f, ok := t.Field(qid)
		if !ok {
			set.orphaned = append(set.orphaned, a)
			continue
		}
		if !f.Question.DataType.IsAnswerable() {
			continue
		}
		v, err := domain.DecodeValue(f.Question.DataType, a.Value)
		if err != nil {
			set.diags = append(set.diags, Diagnostic{
				QuestionID: qid,
				Message:    fmt.Sprintf("stored answer is unreadable: %v", err),
			})
			continue
		}
		if v != nil {
			set.values[qid] = *v
		}
	}

	sortAnswers(set.orphaned)
	return set
}

// evaluate строит состояние анкеты по шаблону, ответам и активности полей.
func evaluate(qn *domain.Questionary, t *domain.Template, answers answerSet, active map[string]bool, graphDiags []engine.Diagnostic) *Evaluation {
	ev := &Evaluation{
		QuestionaryID:   qn.ID,
		TemplateID:      t.ID,
		TemplateVersion: t.Version,
		Topics:          make([]TopicState, 0, len(t.Topics)),
		IsCompleted:     true,
		Orphaned:        answers.orphaned,
	}

	ev.Diagnostics = append(ev.Diagnostics, answers.diags...)
	for _, d := range graphDiags {
		ev.Diagnostics = append(ev.Diagnostics, Diagnostic{QuestionID: d.QuestionID, Message: d.Err.Error()})
	}

	for _, topic := range sortedTopics(t) {
		if !topic.IsEnabled {
			continue
		}

		ts := TopicState{
			TopicID:     topic.ID,
			Title:       topic.Title,
			SortOrder:   topic.SortOrder,
			IsCompleted: true,
			Questions:   make([]QuestionState, 0, len(topic.Fields)),
		}

		for _, f := range sortedFields(topic) {
			qs := QuestionState{Field: f, IsActive: active[f.Question.ID]}
			var value *domain.Value
			if v, ok := answers.values[f.Question.ID]; ok {
				value = &v
			}
			if qs.IsActive {
				qs.Answer = value
				if !isSatisfiedField(&f, value) {
					ts.IsCompleted = false
				}
			}
			ts.Questions = append(ts.Questions, qs)
		}

		if !ts.IsCompleted {
			ev.IsCompleted = false
		}
		ev.Topics = append(ev.Topics, ts)
	}

	return ev
}

// isSatisfiedField - активное поле не мешает заполненности раздела:
// необязательное или с допустимым ответом.
func isSatisfiedField(f *domain.QuestionTemplateRelation, value *domain.Value) bool {
	if !f.Question.DataType.IsAnswerable() || !f.IsRequired() {
		return true
	}
	return engine.ValidateAnswer(f, value) == nil
}
