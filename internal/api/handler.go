package api

import (
	"log/slog"

	"github.com/shaiso/Questionary/internal/editor"
	"github.com/shaiso/Questionary/internal/questionary"
)

// Handler - главный обработчик API с зависимостями.
type Handler struct {
	editor        *editor.Service
	questionaries *questionary.Service
	jwtSecret     string
	logger        *slog.Logger
}

// Config - конфигурация для создания Handler.
type Config struct {
	Editor        *editor.Service
	Questionaries *questionary.Service

	// JWTSecret - ключ проверки токенов в заголовке Authorization.
	JWTSecret string

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		editor:        cfg.Editor,
		questionaries: cfg.Questionaries,
		jwtSecret:     cfg.JWTSecret,
		logger:        logger,
	}
}
