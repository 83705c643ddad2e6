// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go             - Handler с DI (сервисы, секрет JWT, logger)
//   - routes.go              - регистрация маршрутов
//   - middleware.go          - middleware (recovery, logging, аутентификация)
//   - response.go            - JSON-ответы и отображение ошибок в статусы
//   - dto.go                 - тела запросов
//   - template_handler.go    - /templates: шаблоны, разделы, поля
//   - question_handler.go    - /questions
//   - questionary_handler.go - /questionaries: анкеты и ответы
//
// Все маршруты требуют заголовок Authorization: Bearer <JWT HS256>.
package api
