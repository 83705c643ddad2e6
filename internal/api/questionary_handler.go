package api

import (
	"net/http"
	"strconv"

	"github.com/shaiso/Questionary/internal/auth"
	"github.com/shaiso/Questionary/internal/domain"
)

// ListQuestionaries возвращает анкеты, видимые пользователю.
// GET /api/v1/questionaries?template_id=1
func (h *Handler) ListQuestionaries(w http.ResponseWriter, r *http.Request) {
	var templateID *int64
	if v := r.URL.Query().Get("template_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			BadRequest(w, "invalid template_id")
			return
		}
		templateID = &id
	}

	list, err := h.questionaries.ListQuestionaries(r.Context(), auth.FromContext(r.Context()), templateID)
	if HandleError(w, h.logger, err) {
		return
	}
	if list == nil {
		list = []domain.Questionary{}
	}
	List(w, list, len(list))
}

// CreateQuestionary создаёт анкету по шаблону.
// POST /api/v1/questionaries
func (h *Handler) CreateQuestionary(w http.ResponseWriter, r *http.Request) {
	var req CreateQuestionaryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.TemplateID <= 0 {
		BadRequest(w, "template_id is required")
		return
	}

	qn, err := h.questionaries.CreateQuestionary(r.Context(), auth.FromContext(r.Context()), req.TemplateID)
	if HandleError(w, h.logger, err) {
		return
	}
	Created(w, qn)
}

// GetQuestionary возвращает анкету.
// GET /api/v1/questionaries/{id}
func (h *Handler) GetQuestionary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	qn, err := h.questionaries.GetQuestionary(r.Context(), auth.FromContext(r.Context()), id)
	if HandleError(w, h.logger, err) {
		return
	}
	Success(w, qn)
}

// EvaluateQuestionary вычисляет разделы, активность вопросов и заполненность.
// GET /api/v1/questionaries/{id}/evaluation
func (h *Handler) EvaluateQuestionary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	ev, err := h.questionaries.Evaluate(r.Context(), auth.FromContext(r.Context()), id)
	if HandleError(w, h.logger, err) {
		return
	}
	Success(w, ev)
}

// AnswerQuestion сохраняет или очищает ответ.
// PUT /api/v1/questionaries/{id}/answers/{question_id}
func (h *Handler) AnswerQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req AnswerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Value) == 0 {
		BadRequest(w, "value is required, use null to clear the answer")
		return
	}

	result, err := h.questionaries.AnswerQuestion(r.Context(), auth.FromContext(r.Context()), id, r.PathValue("question_id"), req.Value)
	if HandleError(w, h.logger, err) {
		return
	}
	Success(w, result)
}
