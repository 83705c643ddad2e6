package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound - запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists - запись уже существует (конфликт уникальности).
	ErrAlreadyExists = errors.New("already exists")

	// ErrStale - снимок устарел: запись изменена после чтения.
	ErrStale = errors.New("stale snapshot")
)
