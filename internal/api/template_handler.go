package api

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/shaiso/Questionary/internal/auth"
	"github.com/shaiso/Questionary/internal/domain"
	"github.com/shaiso/Questionary/internal/editor"
)

// appendPosition - позиция "в конец раздела/шаблона".
const appendPosition = math.MaxInt32

// ListTemplates возвращает шаблоны.
// GET /api/v1/templates?archived=false&category=PROPOSAL_QUESTIONARY&limit=20&offset=0
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	filter, ok := templateFilter(w, r)
	if !ok {
		return
	}

	templates, err := h.editor.ListTemplates(r.Context(), auth.FromContext(r.Context()), filter)
	if HandleError(w, h.logger, err) {
		return
	}
	if templates == nil {
		templates = []domain.Template{}
	}
	List(w, templates, len(templates))
}

// CreateTemplate создаёт шаблон.
// POST /api/v1/templates
func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req CreateTemplateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	t, err := h.editor.CreateTemplate(r.Context(), auth.FromContext(r.Context()), editor.TemplateInput{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
	})
	if HandleError(w, h.logger, err) {
		return
	}
	Created(w, t)
}

// ImportTemplate создаёт шаблон из полного JSON-документа.
// POST /api/v1/templates/import
func (h *Handler) ImportTemplate(w http.ResponseWriter, r *http.Request) {
	var doc domain.Template
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		BadRequest(w, "invalid template document: "+err.Error())
		return
	}

	t, err := h.editor.ImportTemplate(r.Context(), auth.FromContext(r.Context()), &doc)
	if HandleError(w, h.logger, err) {
		return
	}
	Created(w, t)
}

// GetTemplate возвращает шаблон по ID.
// GET /api/v1/templates/{id}
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	t, err := h.editor.GetTemplate(r.Context(), auth.FromContext(r.Context()), id)
	if HandleError(w, h.logger, err) {
		return
	}
	Success(w, t)
}

// UpdateTemplate изменяет свойства шаблона.
// PATCH /api/v1/templates/{id}
func (h *Handler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req UpdateTemplateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	t, err := h.editor.UpdateTemplate(r.Context(), auth.FromContext(r.Context()), id, editor.TemplatePatch{
		Name:        req.Name,
		Description: req.Description,
		IsArchived:  req.IsArchived,
	})
	if HandleError(w, h.logger, err) {
		return
	}
	Success(w, t)
}

// --- Разделы ---

// CreateTopic добавляет раздел.
// POST /api/v1/templates/{id}/topics
func (h *Handler) CreateTopic(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req CreateTopicRequest
	if !decodeBody(w, r, &req) {
		return
	}
	position := appendPosition
	if req.SortOrder != nil {
		position = *req.SortOrder
	}

	t, topic, err := h.editor.CreateTopic(r.Context(), auth.FromContext(r.Context()), id, req.Title, position)
	if HandleError(w, h.logger, err) {
		return
	}
	Created(w, CreatedTopicResponse{Template: t, TopicID: topic.ID})
}

// UpdateTopic изменяет заголовок или доступность раздела.
// PATCH /api/v1/templates/{id}/topics/{topic_id}
func (h *Handler) UpdateTopic(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	topicID, ok := pathID(w, r, "topic_id")
	if !ok {
		return
	}
	var req UpdateTopicRequest
	if !decodeBody(w, r, &req) {
		return
	}

	t, err := h.editor.UpdateTopic(r.Context(), auth.FromContext(r.Context()), id, topicID, editor.TopicPatch{
		Title:     req.Title,
		IsEnabled: req.IsEnabled,
	})
	if HandleError(w, h.logger, err) {
		return
	}
	Success(w, t)
}

// DeleteTopic удаляет пустой раздел.
// DELETE /api/v1/templates/{id}/topics/{topic_id}
func (h *Handler) DeleteTopic(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	topicID, ok := pathID(w, r, "topic_id")
	if !ok {
		return
	}

	t, err := h.editor.DeleteTopic(r.Context(), auth.FromContext(r.Context()), id, topicID)
	if HandleError(w, h.logger, err) {
		return
	}
	Success(w, t)
}

// ReorderTopics задаёт порядок разделов.
// PUT /api/v1/templates/{id}/topics/order
func (h *Handler) ReorderTopics(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req ReorderTopicsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	t, err := h.editor.ReorderTopics(r.Context(), auth.FromContext(r.Context()), id, req.TopicIDs)
	if HandleError(w, h.logger, err) {
		return
	}
	Success(w, t)
}

// --- Поля ---

// CreateField создаёт вопрос в разделе или размещает существующий.
// POST /api/v1/templates/{id}/fields
func (h *Handler) CreateField(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req CreateFieldRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p := auth.FromContext(r.Context())

	if req.QuestionID != "" {
		position := appendPosition
		if req.SortOrder != nil {
			position = *req.SortOrder
		}
		t, err := h.editor.AttachQuestion(r.Context(), p, id, req.TopicID, req.QuestionID, position)
		if HandleError(w, h.logger, err) {
			return
		}
		Created(w, CreatedFieldResponse{Template: t, QuestionID: req.QuestionID})
		return
	}

	t, q, err := h.editor.CreateField(r.Context(), p, id, req.TopicID, req.DataType)
	if HandleError(w, h.logger, err) {
		return
	}
	Created(w, CreatedFieldResponse{Template: t, QuestionID: q.ID})
}

// UpdateField применяет составное изменение поля.
// PATCH /api/v1/templates/{id}/fields/{question_id}
func (h *Handler) UpdateField(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	questionID := r.PathValue("question_id")
	var req UpdateFieldRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p := auth.FromContext(r.Context())

	t, field, err := h.field(r, id, questionID)
	if HandleError(w, h.logger, err) {
		return
	}

	cfg, err := decodeConfig(field.Question.DataType, req.Config)
	if HandleError(w, h.logger, err) {
		return
	}
	patch := editor.FieldPatch{TopicID: req.TopicID, SortOrder: req.SortOrder, Config: cfg}
	if len(req.Dependency) > 0 {
		dep, err := decodeDependency(t, questionID, req.Dependency)
		if HandleError(w, h.logger, err) {
			return
		}
		patch.Dependency = &editor.DependencyPatch{Dependency: dep}
	}

	updated, err := h.editor.UpdateField(r.Context(), p, id, questionID, patch)
	if HandleError(w, h.logger, err) {
		return
	}
	Success(w, updated)
}

// MoveField переносит поле в раздел на позицию.
// POST /api/v1/templates/{id}/fields/{question_id}/move
func (h *Handler) MoveField(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req MoveFieldRequest
	if !decodeBody(w, r, &req) {
		return
	}

	t, err := h.editor.MoveQuestionToTopic(r.Context(), auth.FromContext(r.Context()),
		id, r.PathValue("question_id"), req.TopicID, req.SortOrder)
	if HandleError(w, h.logger, err) {
		return
	}
	Success(w, t)
}

// SetFieldConfig заменяет конфигурацию поля.
// PUT /api/v1/templates/{id}/fields/{question_id}/config
func (h *Handler) SetFieldConfig(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	questionID := r.PathValue("question_id")
	var raw json.RawMessage
	if !decodeBody(w, r, &raw) {
		return
	}

	_, field, err := h.field(r, id, questionID)
	if HandleError(w, h.logger, err) {
		return
	}
	cfg, err := decodeConfig(field.Question.DataType, raw)
	if HandleError(w, h.logger, err) {
		return
	}
	if cfg == nil {
		BadRequest(w, "config is required")
		return
	}

	t, err := h.editor.UpdateFieldConfig(r.Context(), auth.FromContext(r.Context()), id, questionID, cfg)
	if HandleError(w, h.logger, err) {
		return
	}
	Success(w, t)
}

// SetDependency задаёт зависимость поля.
// PUT /api/v1/templates/{id}/fields/{question_id}/dependency
func (h *Handler) SetDependency(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	questionID := r.PathValue("question_id")
	var raw json.RawMessage
	if !decodeBody(w, r, &raw) {
		return
	}

	t, _, err := h.field(r, id, questionID)
	if HandleError(w, h.logger, err) {
		return
	}
	dep, err := decodeDependency(t, questionID, raw)
	if HandleError(w, h.logger, err) {
		return
	}
	if dep == nil {
		BadRequest(w, "dependency is required, use DELETE to remove it")
		return
	}

	updated, err := h.editor.SetDependency(r.Context(), auth.FromContext(r.Context()), id, questionID, dep)
	if HandleError(w, h.logger, err) {
		return
	}
	Success(w, updated)
}

// RemoveDependency снимает зависимость поля.
// DELETE /api/v1/templates/{id}/fields/{question_id}/dependency
func (h *Handler) RemoveDependency(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	t, err := h.editor.SetDependency(r.Context(), auth.FromContext(r.Context()), id, r.PathValue("question_id"), nil)
	if HandleError(w, h.logger, err) {
		return
	}
	Success(w, t)
}

// DeleteField убирает поле из шаблона.
// DELETE /api/v1/templates/{id}/fields/{question_id}
func (h *Handler) DeleteField(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	t, err := h.editor.DeleteField(r.Context(), auth.FromContext(r.Context()), id, r.PathValue("question_id"))
	if HandleError(w, h.logger, err) {
		return
	}
	Success(w, t)
}

// field загружает шаблон и его поле: по их типам разбираются
// конфигурация и условие зависимости.
func (h *Handler) field(r *http.Request, templateID int64, questionID string) (*domain.Template, *domain.QuestionTemplateRelation, error) {
	t, err := h.editor.GetTemplate(r.Context(), auth.FromContext(r.Context()), templateID)
	if err != nil {
		return nil, nil, err
	}
	f, ok := t.Field(questionID)
	if !ok {
		return nil, nil, editor.ErrFieldNotFound
	}
	return t, f, nil
}

// --- Разбор запроса ---

// pathID разбирает числовой параметр пути. При ошибке отвечает 400.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		BadRequest(w, "invalid "+name)
		return 0, false
	}
	return id, true
}

// decodeBody разбирает JSON тела запроса. При ошибке отвечает 400.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, "invalid request body")
		return false
	}
	return true
}

func templateFilter(w http.ResponseWriter, r *http.Request) (domain.TemplateFilter, bool) {
	var filter domain.TemplateFilter
	q := r.URL.Query()

	if v := q.Get("archived"); v != "" {
		archived, err := strconv.ParseBool(v)
		if err != nil {
			BadRequest(w, "invalid archived")
			return filter, false
		}
		filter.IsArchived = &archived
	}
	if v := q.Get("category"); v != "" {
		category := domain.TemplateCategory(v)
		if !category.IsValid() {
			BadRequest(w, "invalid category")
			return filter, false
		}
		filter.Category = &category
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				BadRequest(w, "invalid "+name)
				return filter, false
			}
			*dst = n
		}
	}
	return filter, true
}
