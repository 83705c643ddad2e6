package api

import (
	"net/http"

	"github.com/shaiso/Questionary/internal/auth"
	"github.com/shaiso/Questionary/internal/domain"
	"github.com/shaiso/Questionary/internal/editor"
)

// ListQuestions возвращает все вопросы.
// GET /api/v1/questions
func (h *Handler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.editor.ListQuestions(r.Context(), auth.FromContext(r.Context()))
	if HandleError(w, h.logger, err) {
		return
	}
	if questions == nil {
		questions = []domain.Question{}
	}
	List(w, questions, len(questions))
}

// CreateQuestion создаёт вопрос вне шаблона.
// POST /api/v1/questions
func (h *Handler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	var req CreateQuestionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	cfg, err := decodeConfig(req.DataType, req.DefaultConfig)
	if HandleError(w, h.logger, err) {
		return
	}

	q, err := h.editor.CreateQuestion(r.Context(), auth.FromContext(r.Context()), editor.QuestionInput{
		DataType:      req.DataType,
		NaturalKey:    req.NaturalKey,
		Question:      req.Question,
		DefaultConfig: cfg,
	})
	if HandleError(w, h.logger, err) {
		return
	}
	Created(w, q)
}

// GetQuestion возвращает вопрос.
// GET /api/v1/questions/{id}
func (h *Handler) GetQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := h.editor.GetQuestion(r.Context(), auth.FromContext(r.Context()), r.PathValue("id"))
	if HandleError(w, h.logger, err) {
		return
	}
	Success(w, q)
}

// UpdateQuestion изменяет вопрос. Тип данных изменить нельзя.
// PATCH /api/v1/questions/{id}
func (h *Handler) UpdateQuestion(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req UpdateQuestionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p := auth.FromContext(r.Context())

	patch := editor.QuestionPatch{
		DataType:   req.DataType,
		NaturalKey: req.NaturalKey,
		Question:   req.Question,
	}
	if !isNull(req.DefaultConfig) {
		current, err := h.editor.GetQuestion(r.Context(), p, id)
		if HandleError(w, h.logger, err) {
			return
		}
		if patch.DefaultConfig, err = decodeConfig(current.DataType, req.DefaultConfig); err != nil {
			HandleError(w, h.logger, err)
			return
		}
	}

	q, err := h.editor.UpdateQuestion(r.Context(), p, id, patch)
	if HandleError(w, h.logger, err) {
		return
	}
	Success(w, q)
}
