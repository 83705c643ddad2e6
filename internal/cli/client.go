package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из domain, CLI читает только нужные поля) ---

// TemplateResponse - шаблон из API.
type TemplateResponse struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category"`
	IsArchived  bool            `json:"is_archived"`
	Version     int             `json:"version"`
	CreatedAt   string          `json:"created_at"`
	Topics      []TopicResponse `json:"topics"`
}

// TopicResponse - раздел шаблона.
type TopicResponse struct {
	ID        int64           `json:"id"`
	Title     string          `json:"title"`
	SortOrder int             `json:"sort_order"`
	IsEnabled bool            `json:"is_enabled"`
	Fields    []FieldResponse `json:"fields"`
}

// FieldResponse - поле раздела.
type FieldResponse struct {
	Question   QuestionResponse    `json:"question"`
	TopicID    int64               `json:"topic_id"`
	SortOrder  int                 `json:"sort_order"`
	Config     json.RawMessage     `json:"config,omitempty"`
	Dependency *DependencyResponse `json:"dependency,omitempty"`
}

// DependencyResponse - зависимость поля.
type DependencyResponse struct {
	DependencyID string          `json:"dependency_id"`
	Condition    json.RawMessage `json:"condition"`
}

// QuestionResponse - вопрос из API.
type QuestionResponse struct {
	ID            string          `json:"id"`
	DataType      string          `json:"data_type"`
	NaturalKey    string          `json:"natural_key"`
	Question      string          `json:"question"`
	DefaultConfig json.RawMessage `json:"default_config,omitempty"`
	CreatedAt     string          `json:"created_at"`
}

// QuestionaryResponse - анкета из API.
type QuestionaryResponse struct {
	ID         int64  `json:"id"`
	TemplateID int64  `json:"template_id"`
	CreatorID  int64  `json:"creator_id"`
	CreatedAt  string `json:"created_at"`
}

// EvaluationResponse - вычисленное состояние анкеты.
type EvaluationResponse struct {
	QuestionaryID   int64                `json:"questionary_id"`
	TemplateID      int64                `json:"template_id"`
	TemplateVersion int                  `json:"template_version"`
	Topics          []TopicStateResponse `json:"topics"`
	IsCompleted     bool                 `json:"is_completed"`
	Diagnostics     []DiagnosticResponse `json:"diagnostics,omitempty"`
	Orphaned        []json.RawMessage    `json:"orphaned,omitempty"`

	// Toggled заполняется только в ответе на сохранение ответа.
	Toggled []string `json:"toggled,omitempty"`
}

// TopicStateResponse - раздел анкеты.
type TopicStateResponse struct {
	TopicID     int64                   `json:"topic_id"`
	Title       string                  `json:"title"`
	SortOrder   int                     `json:"sort_order"`
	IsCompleted bool                    `json:"is_completed"`
	Questions   []QuestionStateResponse `json:"questions"`
}

// QuestionStateResponse - вопрос анкеты.
type QuestionStateResponse struct {
	Field    FieldResponse   `json:"field"`
	Answer   json.RawMessage `json:"answer"`
	IsActive bool            `json:"is_active"`
}

// DiagnosticResponse - поле, которое не удалось вычислить.
type DiagnosticResponse struct {
	QuestionID string `json:"question_id"`
	Message    string `json:"message"`
}

// --- Request types ---

// CreateTemplateRequest - создание шаблона.
type CreateTemplateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
}

// UpdateTemplateRequest - обновление шаблона.
type UpdateTemplateRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	IsArchived  *bool   `json:"is_archived,omitempty"`
}

// CreateQuestionRequest - создание вопроса.
type CreateQuestionRequest struct {
	DataType      string          `json:"data_type"`
	NaturalKey    string          `json:"natural_key"`
	Question      string          `json:"question"`
	DefaultConfig json.RawMessage `json:"default_config,omitempty"`
}

// ListTemplatesOpts - параметры фильтрации шаблонов.
type ListTemplatesOpts struct {
	Archived string
	Category string
	Limit    int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code       string `json:"code"`
		Message    string `json:"message"`
		QuestionID string `json:"question_id,omitempty"`
	} `json:"error"`
}

// --- Client ---

// Client - HTTP-клиент для Questionary API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient создаёт клиент для API. token передаётся как Bearer.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Templates ---

// ListTemplates возвращает шаблоны с фильтрацией.
func (c *Client) ListTemplates(opts ListTemplatesOpts) ([]TemplateResponse, error) {
	params := url.Values{}
	if opts.Archived != "" {
		params.Set("archived", opts.Archived)
	}
	if opts.Category != "" {
		params.Set("category", opts.Category)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	var templates []TemplateResponse
	err := c.list("/api/v1/templates", params, &templates)
	return templates, err
}

// CreateTemplate создаёт пустой шаблон.
func (c *Client) CreateTemplate(req CreateTemplateRequest) (*TemplateResponse, error) {
	var t TemplateResponse
	err := c.post("/api/v1/templates", req, &t)
	return &t, err
}

// ImportTemplate создаёт шаблон из полного JSON-документа.
func (c *Client) ImportTemplate(doc json.RawMessage) (*TemplateResponse, error) {
	var t TemplateResponse
	err := c.post("/api/v1/templates/import", doc, &t)
	return &t, err
}

// GetTemplate возвращает шаблон по ID.
func (c *Client) GetTemplate(id string) (*TemplateResponse, error) {
	var t TemplateResponse
	err := c.get("/api/v1/templates/"+id, &t)
	return &t, err
}

// UpdateTemplate обновляет свойства шаблона.
func (c *Client) UpdateTemplate(id string, req UpdateTemplateRequest) (*TemplateResponse, error) {
	var t TemplateResponse
	err := c.patch("/api/v1/templates/"+id, req, &t)
	return &t, err
}

// --- Questions ---

// ListQuestions возвращает все вопросы.
func (c *Client) ListQuestions() ([]QuestionResponse, error) {
	var questions []QuestionResponse
	err := c.list("/api/v1/questions", nil, &questions)
	return questions, err
}

// CreateQuestion создаёт вопрос вне шаблона.
func (c *Client) CreateQuestion(req CreateQuestionRequest) (*QuestionResponse, error) {
	var q QuestionResponse
	err := c.post("/api/v1/questions", req, &q)
	return &q, err
}

// GetQuestion возвращает вопрос по ID.
func (c *Client) GetQuestion(id string) (*QuestionResponse, error) {
	var q QuestionResponse
	err := c.get("/api/v1/questions/"+url.PathEscape(id), &q)
	return &q, err
}

// --- Questionaries ---

// ListQuestionaries возвращает анкеты. Если templateID не пустой - фильтрует.
func (c *Client) ListQuestionaries(templateID string) ([]QuestionaryResponse, error) {
	params := url.Values{}
	if templateID != "" {
		params.Set("template_id", templateID)
	}

	var list []QuestionaryResponse
	err := c.list("/api/v1/questionaries", params, &list)
	return list, err
}

// CreateQuestionary создаёт анкету по шаблону.
func (c *Client) CreateQuestionary(templateID int64) (*QuestionaryResponse, error) {
	body := map[string]int64{"template_id": templateID}
	var qn QuestionaryResponse
	err := c.post("/api/v1/questionaries", body, &qn)
	return &qn, err
}

// Evaluate возвращает вычисленное состояние анкеты.
func (c *Client) Evaluate(id string) (*EvaluationResponse, error) {
	var ev EvaluationResponse
	err := c.get("/api/v1/questionaries/"+id+"/evaluation", &ev)
	return &ev, err
}

// Answer сохраняет ответ. value - JSON значения, null очищает ответ.
func (c *Client) Answer(id, questionID string, value json.RawMessage) (*EvaluationResponse, error) {
	body := map[string]json.RawMessage{"value": value}
	var ev EvaluationResponse
	err := c.put("/api/v1/questionaries/"+id+"/answers/"+url.PathEscape(questionID), body, &ev)
	return &ev, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) patch(path string, body any, result any) error {
	return c.doData(http.MethodPatch, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	if er.Error.QuestionID != "" {
		return fmt.Errorf("%s: %s (question %s)", er.Error.Code, er.Error.Message, er.Error.QuestionID)
	}
	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
