// Package engine содержит движок динамических анкет.
//
// Включает:
//   - condition.go - таблица операторов условий (eq, neq) и их вычисление
//   - graph.go     - граф зависимостей полей шаблона: активность полей,
//     поиск циклов, транзитивные зависимые
//   - parser.go    - разбор и структурная валидация шаблона
//   - answer.go    - валидация ответа по типу и конфигурации поля
//
// Engine не обращается к хранилищам: он работает с переданным
// снимком шаблона и набором ответов.
package engine
