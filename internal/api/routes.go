package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
		Authenticate(h.jwtSecret, h.logger),
	)
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, chain(fn))
	}

	// Templates
	handle("GET /api/v1/templates", h.ListTemplates)
	handle("POST /api/v1/templates", h.CreateTemplate)
	handle("POST /api/v1/templates/import", h.ImportTemplate)
	handle("GET /api/v1/templates/{id}", h.GetTemplate)
	handle("PATCH /api/v1/templates/{id}", h.UpdateTemplate)

	// Topics
	handle("POST /api/v1/templates/{id}/topics", h.CreateTopic)
	handle("PUT /api/v1/templates/{id}/topics/order", h.ReorderTopics)
	handle("PATCH /api/v1/templates/{id}/topics/{topic_id}", h.UpdateTopic)
	handle("DELETE /api/v1/templates/{id}/topics/{topic_id}", h.DeleteTopic)

	// Fields
	handle("POST /api/v1/templates/{id}/fields", h.CreateField)
	handle("PATCH /api/v1/templates/{id}/fields/{question_id}", h.UpdateField)
	handle("DELETE /api/v1/templates/{id}/fields/{question_id}", h.DeleteField)
	handle("POST /api/v1/templates/{id}/fields/{question_id}/move", h.MoveField)
	handle("PUT /api/v1/templates/{id}/fields/{question_id}/config", h.SetFieldConfig)
	handle("PUT /api/v1/templates/{id}/fields/{question_id}/dependency", h.SetDependency)
	handle("DELETE /api/v1/templates/{id}/fields/{question_id}/dependency", h.RemoveDependency)

	// Questions
	handle("GET /api/v1/questions", h.ListQuestions)
	handle("POST /api/v1/questions", h.CreateQuestion)
	handle("GET /api/v1/questions/{id}", h.GetQuestion)
	handle("PATCH /api/v1/questions/{id}", h.UpdateQuestion)

	// Questionaries
	handle("GET /api/v1/questionaries", h.ListQuestionaries)
	handle("POST /api/v1/questionaries", h.CreateQuestionary)
	handle("GET /api/v1/questionaries/{id}", h.GetQuestionary)
	handle("GET /api/v1/questionaries/{id}/evaluation", h.EvaluateQuestionary)
	handle("PUT /api/v1/questionaries/{id}/answers/{question_id}", h.AnswerQuestion)
}
