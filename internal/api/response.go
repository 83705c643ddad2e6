package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shaiso/Questionary/internal/auth"
	"github.com/shaiso/Questionary/internal/domain"
	"github.com/shaiso/Questionary/internal/editor"
	"github.com/shaiso/Questionary/internal/engine"
	"github.com/shaiso/Questionary/internal/questionary"
	"github.com/shaiso/Questionary/internal/repo"
)

// ErrorCode - код ошибки API.
type ErrorCode string

const (
	ErrCodeBadRequest    ErrorCode = "BAD_REQUEST"
	ErrCodeValidation    ErrorCode = "VALIDATION_ERROR"
	ErrCodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden     ErrorCode = "FORBIDDEN"
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeConflict      ErrorCode = "CONFLICT"
	ErrCodeInvalidState  ErrorCode = "INVALID_STATE"
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// ErrorResponse - структура ответа с ошибкой.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail - детали ошибки. QuestionID и Field заполняются
// для ошибок валидации ответа.
type ErrorDetail struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	QuestionID string    `json:"question_id,omitempty"`
	Field      string    `json:"field,omitempty"`
}

// DataResponse - структура успешного ответа.
type DataResponse struct {
	Data any `json:"data"`
}

// ListResponse - структура ответа со списком.
type ListResponse struct {
	Data  any `json:"data"`
	Total int `json:"total"`
}

// JSON отправляет JSON ответ.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Success отправляет успешный ответ с данными.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, DataResponse{Data: data})
}

// Created отправляет ответ о создании ресурса.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, DataResponse{Data: data})
}

// List отправляет ответ со списком.
func List(w http.ResponseWriter, data any, total int) {
	JSON(w, http.StatusOK, ListResponse{Data: data, Total: total})
}

// Error отправляет ответ с ошибкой.
func Error(w http.ResponseWriter, status int, code ErrorCode, message string) {
	JSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// BadRequest отправляет ошибку 400.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// Unauthorized отправляет ошибку 401.
func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// InternalError отправляет ошибку 500.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}

// Ошибки, после которых состояние не позволяет выполнить операцию.
var invalidStateErrors = []error{
	editor.ErrTopicNotEmpty,
	editor.ErrDependencyTargetInUse,
	editor.ErrInvalidOrder,
	editor.ErrDataTypeImmutable,
	engine.ErrCyclicDependency,
	engine.ErrSelfDependency,
	engine.ErrMissingDependency,
	engine.ErrNotAnswerableTarget,
	engine.ErrParamsMismatch,
	engine.ErrUnsupportedOperator,
	questionary.ErrTemplateArchived,
}

// Ошибки некорректных входных данных.
var badRequestErrors = []error{
	editor.ErrInvalidInput,
	engine.ErrConfigMismatch,
	domain.ErrUnknownDataType,
	domain.ErrValueType,
}

// HandleError преобразует ошибку сервиса в HTTP ответ.
// Возвращает false, если err == nil.
func HandleError(w http.ResponseWriter, logger *slog.Logger, err error) bool {
	if err == nil {
		return false
	}

	var verr *engine.ValidationError
	if errors.As(err, &verr) {
		JSON(w, http.StatusBadRequest, ErrorResponse{Error: ErrorDetail{
			Code:       ErrCodeValidation,
			Message:    verr.Error(),
			QuestionID: verr.QuestionID,
			Field:      verr.Field,
		}})
		return true
	}

	switch {
	case errors.Is(err, auth.ErrNotAuthorized):
		Error(w, http.StatusForbidden, ErrCodeForbidden, "not authorized")
	case errors.Is(err, repo.ErrNotFound),
		errors.Is(err, editor.ErrTopicNotFound),
		errors.Is(err, editor.ErrFieldNotFound):
		Error(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, repo.ErrStale),
		errors.Is(err, repo.ErrAlreadyExists),
		errors.Is(err, editor.ErrQuestionInTemplate):
		Error(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case isAny(err, invalidStateErrors):
		Error(w, http.StatusUnprocessableEntity, ErrCodeInvalidState, err.Error())
	case isAny(err, badRequestErrors):
		BadRequest(w, err.Error())
	default:
		InternalError(w, logger, err)
	}
	return true
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
