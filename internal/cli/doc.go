// Package cli реализует инструмент командной строки Questionary.
//
// # Обзор
//
// CLI - клиентская утилита для работы с Questionary API по HTTP.
// Шаблоны, вопросы и анкеты читаются и изменяются только через API.
// Локально выполняются две вещи: проверка документа шаблона
// (engine.ParseTemplate) и выпуск токена для отладки (auth.IssueToken).
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Questionary API. Инкапсулирует все HTTP-запросы,
// Bearer-токен, парсинг ответов (data, data+total, error)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080", token)
//	templates, err := client.ListTemplates(cli.ListTemplatesOpts{})
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) - по умолчанию
//   - JSON - с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) - в stderr.
// Это позволяет использовать pipe: questionary template show 1 --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - template: list, create, show, archive, import, validate
//   - question: list, create, show
//   - questionary: list, create, show, answer
//   - token
//
// Каждая группа создаётся через фабричную функцию (NewTemplateCmd и т.д.),
// принимающую clientFn и outputFn - замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
