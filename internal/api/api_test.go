package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Questionary/internal/auth"
	"github.com/shaiso/Questionary/internal/editor"
	"github.com/shaiso/Questionary/internal/memstore"
	"github.com/shaiso/Questionary/internal/questionary"
	"github.com/shaiso/Questionary/internal/telemetry"
)

const testSecret = "test-secret"

type testServer struct {
	*httptest.Server
	store *memstore.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memstore.New()
	logger := telemetry.Discard()

	h := NewHandler(Config{
		Editor: editor.NewService(editor.Config{
			Templates: store,
			Questions: store,
			Events:    store,
			Logger:    logger,
		}),
		Questionaries: questionary.NewService(questionary.Config{
			Templates: store,
			Store:     store,
			Events:    store,
			Logger:    logger,
		}),
		JWTSecret: testSecret,
		Logger:    logger,
	})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, store: store}
}

func token(t *testing.T, userID int64, roles ...auth.Role) string {
	t.Helper()
	tok, err := auth.IssueToken(auth.Principal{UserID: userID, Roles: roles}, time.Hour, testSecret)
	require.NoError(t, err)
	return tok
}

// envelope - общий вид ответа API.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
	Error *ErrorDetail    `json:"error"`
}

func (s *testServer) do(t *testing.T, tok, method, path string, body any) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

type templateBody struct {
	ID      int64 `json:"id"`
	Version int   `json:"version"`
	Topics  []struct {
		ID     int64 `json:"id"`
		Fields []struct {
			Question struct {
				ID string `json:"id"`
			} `json:"question"`
		} `json:"fields"`
	} `json:"topics"`
}

type evaluationBody struct {
	IsCompleted bool `json:"is_completed"`
	Topics      []struct {
		TopicID   int64 `json:"topic_id"`
		Questions []struct {
			Field struct {
				Question struct {
					ID string `json:"id"`
				} `json:"question"`
			} `json:"field"`
			Answer   json.RawMessage `json:"answer"`
			IsActive bool            `json:"is_active"`
		} `json:"questions"`
	} `json:"topics"`
	Toggled []string `json:"toggled"`
}

func (e evaluationBody) active() map[string]bool {
	out := make(map[string]bool)
	for _, topic := range e.Topics {
		for _, q := range topic.Questions {
			out[q.Field.Question.ID] = q.IsActive
		}
	}
	return out
}

func TestAPI_ProposalFlow(t *testing.T) {
	srv := newTestServer(t)
	officer := token(t, 1, auth.RoleUserOfficer)
	user := token(t, 2, auth.RoleUser)
	stranger := token(t, 3, auth.RoleUser)

	// Шаблон с одним разделом
	status, env := srv.do(t, officer, http.MethodPost, "/api/v1/templates", CreateTemplateRequest{Name: "Proposal"})
	require.Equal(t, http.StatusCreated, status)
	tmpl := decode[templateBody](t, env.Data)
	require.Len(t, tmpl.Topics, 1)
	topicID := tmpl.Topics[0].ID

	// Флажок и текстовое поле, видимое при флажке
	status, env = srv.do(t, officer, http.MethodPost, "/api/v1/templates/1/fields", CreateFieldRequest{TopicID: topicID, DataType: "BOOLEAN"})
	require.Equal(t, http.StatusCreated, status)
	flag := decode[CreatedFieldResponse](t, env.Data).QuestionID

	status, env = srv.do(t, officer, http.MethodPost, "/api/v1/templates/1/fields", CreateFieldRequest{TopicID: topicID, DataType: "TEXT_INPUT"})
	require.Equal(t, http.StatusCreated, status)
	text := decode[CreatedFieldResponse](t, env.Data).QuestionID

	dependency := `{"dependency_id":"` + flag + `","condition":{"operator":"eq","params":true}}`
	status, _ = srv.do(t, officer, http.MethodPut, "/api/v1/templates/1/fields/"+text+"/dependency", dependency)
	require.Equal(t, http.StatusOK, status)
	status, _ = srv.do(t, officer, http.MethodPut, "/api/v1/templates/1/fields/"+text+"/config", `{"required":true}`)
	require.Equal(t, http.StatusOK, status)

	// Структурные отказы
	status, env = srv.do(t, officer, http.MethodDelete, "/api/v1/templates/1/fields/"+flag, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, ErrCodeInvalidState, env.Error.Code)

	status, _ = srv.do(t, officer, http.MethodDelete, "/api/v1/templates/1/topics/1", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = srv.do(t, user, http.MethodPost, "/api/v1/templates", CreateTemplateRequest{Name: "Nope"})
	assert.Equal(t, http.StatusForbidden, status)

	// Анкета пользователя
	status, env = srv.do(t, user, http.MethodPost, "/api/v1/questionaries", CreateQuestionaryRequest{TemplateID: tmpl.ID})
	require.Equal(t, http.StatusCreated, status)
	qn := decode[struct {
		ID int64 `json:"id"`
	}](t, env.Data)
	base := "/api/v1/questionaries/" + strconv.FormatInt(qn.ID, 10)

	status, env = srv.do(t, user, http.MethodGet, base+"/evaluation", nil)
	require.Equal(t, http.StatusOK, status)
	ev := decode[evaluationBody](t, env.Data)
	assert.Equal(t, map[string]bool{flag: true, text: false}, ev.active())
	assert.True(t, ev.IsCompleted, "hidden required field does not block completion")

	// Скрытый вопрос
	status, env = srv.do(t, user, http.MethodPut, base+"/answers/"+text, `{"value":"hello"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeValidation, env.Error.Code)
	assert.Equal(t, text, env.Error.QuestionID)

	// Ответ открывает текстовое поле
	status, env = srv.do(t, user, http.MethodPut, base+"/answers/"+flag, `{"value":true}`)
	require.Equal(t, http.StatusOK, status)
	ev = decode[evaluationBody](t, env.Data)
	assert.Equal(t, []string{text}, ev.Toggled)
	assert.True(t, ev.active()[text])
	assert.False(t, ev.IsCompleted)

	status, env = srv.do(t, user, http.MethodPut, base+"/answers/"+text, `{"value":"hello"}`)
	require.Equal(t, http.StatusOK, status)
	ev = decode[evaluationBody](t, env.Data)
	assert.Empty(t, ev.Toggled)
	assert.True(t, ev.IsCompleted)

	// Очистка ответа
	status, env = srv.do(t, user, http.MethodPut, base+"/answers/"+text, `{"value":null}`)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, decode[evaluationBody](t, env.Data).IsCompleted)

	status, _ = srv.do(t, user, http.MethodPut, base+"/answers/"+text, `{}`)
	assert.Equal(t, http.StatusBadRequest, status)

	// Чужая анкета
	status, _ = srv.do(t, stranger, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, env = srv.do(t, stranger, http.MethodGet, "/api/v1/questionaries", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, env.Total)

	// События попали в журнал
	logs, err := srv.store.ListEventLogs(t.Context(), 0)
	require.NoError(t, err)
	assert.NotEmpty(t, logs)
}

func TestAPI_Authentication(t *testing.T) {
	srv := newTestServer(t)

	status, env := srv.do(t, "", http.MethodGet, "/api/v1/templates", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeUnauthorized, env.Error.Code)

	forged, err := auth.IssueToken(auth.Principal{UserID: 1, Roles: []auth.Role{auth.RoleUserOfficer}}, time.Hour, "other")
	require.NoError(t, err)
	status, _ = srv.do(t, forged, http.MethodGet, "/api/v1/templates", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAPI_Errors(t *testing.T) {
	srv := newTestServer(t)
	officer := token(t, 1, auth.RoleUserOfficer)

	status, _ := srv.do(t, officer, http.MethodPost, "/api/v1/templates", CreateTemplateRequest{Name: "T"})
	require.Equal(t, http.StatusCreated, status)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   ErrorCode
	}{
		{"missing template", http.MethodGet, "/api/v1/templates/999", nil, http.StatusNotFound, ErrCodeNotFound},
		{"bad id", http.MethodGet, "/api/v1/templates/abc", nil, http.StatusBadRequest, ErrCodeBadRequest},
		{"bad body", http.MethodPost, "/api/v1/templates", "{", http.StatusBadRequest, ErrCodeBadRequest},
		{"empty name", http.MethodPost, "/api/v1/templates", CreateTemplateRequest{}, http.StatusBadRequest, ErrCodeBadRequest},
		{"bad category filter", http.MethodGet, "/api/v1/templates?category=OTHER", nil, http.StatusBadRequest, ErrCodeBadRequest},
		{"unknown topic", http.MethodPatch, "/api/v1/templates/1/topics/42", UpdateTopicRequest{}, http.StatusNotFound, ErrCodeNotFound},
		{"invalid reorder", http.MethodPut, "/api/v1/templates/1/topics/order", ReorderTopicsRequest{TopicIDs: []int64{1, 1}}, http.StatusUnprocessableEntity, ErrCodeInvalidState},
		{"unknown data type", http.MethodPost, "/api/v1/templates/1/fields", CreateFieldRequest{TopicID: 1, DataType: "VIDEO"}, http.StatusBadRequest, ErrCodeBadRequest},
		{"unknown field", http.MethodDelete, "/api/v1/templates/1/fields/nope", nil, http.StatusNotFound, ErrCodeNotFound},
		{"missing question", http.MethodGet, "/api/v1/questions/nope", nil, http.StatusNotFound, ErrCodeNotFound},
		{"missing questionary template", http.MethodPost, "/api/v1/questionaries", CreateQuestionaryRequest{}, http.StatusBadRequest, ErrCodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := srv.do(t, officer, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, status)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestAPI_TopicsAndQuestions(t *testing.T) {
	srv := newTestServer(t)
	officer := token(t, 1, auth.RoleUserOfficer)

	status, _ := srv.do(t, officer, http.MethodPost, "/api/v1/templates", CreateTemplateRequest{Name: "T"})
	require.Equal(t, http.StatusCreated, status)

	// Раздел в начало
	zero := 0
	status, env := srv.do(t, officer, http.MethodPost, "/api/v1/templates/1/topics", CreateTopicRequest{Title: "Intro", SortOrder: &zero})
	require.Equal(t, http.StatusCreated, status)
	created := decode[struct {
		Template templateBody `json:"template"`
		TopicID  int64        `json:"topic_id"`
	}](t, env.Data)
	assert.Equal(t, int64(2), created.TopicID)
	require.Len(t, created.Template.Topics, 2)
	assert.Equal(t, int64(2), created.Template.Topics[0].ID)

	status, env = srv.do(t, officer, http.MethodPut, "/api/v1/templates/1/topics/order", ReorderTopicsRequest{TopicIDs: []int64{1, 2}})
	require.Equal(t, http.StatusOK, status)
	tmpl := decode[templateBody](t, env.Data)
	assert.Equal(t, int64(1), tmpl.Topics[0].ID)

	// Вопрос из библиотеки размещается в разделе
	status, env = srv.do(t, officer, http.MethodPost, "/api/v1/questions",
		`{"data_type":"NUMBER_INPUT","natural_key":"budget","question":"Budget?","default_config":{"min":0}}`)
	require.Equal(t, http.StatusCreated, status)
	q := decode[struct {
		ID string `json:"id"`
	}](t, env.Data)

	status, _ = srv.do(t, officer, http.MethodPost, "/api/v1/templates/1/fields", CreateFieldRequest{TopicID: 2, QuestionID: q.ID})
	require.Equal(t, http.StatusCreated, status)
	status, _ = srv.do(t, officer, http.MethodPost, "/api/v1/templates/1/fields", CreateFieldRequest{TopicID: 1, QuestionID: q.ID})
	assert.Equal(t, http.StatusConflict, status)

	status, env = srv.do(t, officer, http.MethodPost, "/api/v1/templates/1/fields/"+q.ID+"/move", MoveFieldRequest{TopicID: 1})
	require.Equal(t, http.StatusOK, status)
	tmpl = decode[templateBody](t, env.Data)
	require.Len(t, tmpl.Topics[0].Fields, 1)
	assert.Equal(t, q.ID, tmpl.Topics[0].Fields[0].Question.ID)

	status, _ = srv.do(t, officer, http.MethodPut, "/api/v1/templates/1/fields/"+q.ID+"/config", `{"required":true,"max":10}`)
	assert.Equal(t, http.StatusOK, status)

	status, _ = srv.do(t, officer, http.MethodPatch, "/api/v1/questions/"+q.ID, `{"data_type":"TEXT_INPUT"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, env = srv.do(t, officer, http.MethodGet, "/api/v1/questions", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, env.Total)

	status, _ = srv.do(t, officer, http.MethodDelete, "/api/v1/templates/1/topics/2", nil)
	assert.Equal(t, http.StatusOK, status)
}

const importDoc = `{
	"name": "Imported",
	"topics": [
		{
			"title": "General",
			"sort_order": 0,
			"is_enabled": true,
			"fields": [
				{
					"question": {"id": "has_samples", "data_type": "BOOLEAN", "natural_key": "has_samples"},
					"sort_order": 0,
					"config": {"required": true}
				},
				{
					"question": {"id": "sample_count", "data_type": "NUMBER_INPUT", "natural_key": "sample_count"},
					"sort_order": 1,
					"dependency": {"dependency_id": "has_samples", "condition": {"operator": "eq", "params": true}}
				}
			]
		}
	]
}`

func TestAPI_ImportTemplate(t *testing.T) {
	srv := newTestServer(t)
	officer := token(t, 1, auth.RoleUserOfficer)

	status, env := srv.do(t, officer, http.MethodPost, "/api/v1/templates/import", importDoc)
	require.Equal(t, http.StatusCreated, status)
	tmpl := decode[templateBody](t, env.Data)
	assert.Equal(t, int64(1), tmpl.ID)
	require.Len(t, tmpl.Topics, 1)
	assert.Equal(t, int64(1), tmpl.Topics[0].ID)
	assert.Len(t, tmpl.Topics[0].Fields, 2)

	status, _ = srv.do(t, officer, http.MethodGet, "/api/v1/questions/sample_count", nil)
	require.Equal(t, http.StatusOK, status)

	cyclic := `{"name": "Cyclic", "topics": [{"title": "T", "sort_order": 0, "is_enabled": true, "fields": [
		{"question": {"id": "a", "data_type": "BOOLEAN"}, "sort_order": 0,
		 "dependency": {"dependency_id": "b", "condition": {"operator": "eq", "params": true}}},
		{"question": {"id": "b", "data_type": "BOOLEAN"}, "sort_order": 1,
		 "dependency": {"dependency_id": "a", "condition": {"operator": "eq", "params": true}}}
	]}]}`
	status, env = srv.do(t, officer, http.MethodPost, "/api/v1/templates/import", cyclic)
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeValidation, env.Error.Code)

	status, _ = srv.do(t, token(t, 2, auth.RoleUser), http.MethodPost, "/api/v1/templates/import", importDoc)
	assert.Equal(t, http.StatusForbidden, status)
}
