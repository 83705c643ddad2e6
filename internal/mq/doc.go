// Package mq публикует и потребляет доменные события через RabbitMQ.
//
// Структура:
//   - connection.go - соединение с брокером (reconnect, graceful shutdown)
//   - topology.go   - объявление exchanges, queues, bindings
//   - publisher.go  - публикация событий
//   - consumer.go   - потребление сообщений из очередей
//   - eventlog.go   - обработчик, пишущий события в журнал
//
// Типы событий (routing key в questionary.events):
//   - template.updated - структура шаблона изменена
//   - answer.submitted - ответ сохранён или очищен
//   - topic.completed  - изменилась заполненность раздела
package mq
