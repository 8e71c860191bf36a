// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений в очереди
//   - consumer.go   — потребление сообщений из очередей
//   - notifier.go   — мост между batch manager'ом и очередями
//
// Типы сообщений:
//   - batch.submitted — внешний продюсер ставит batch job в очередь
//   - batch.event     — событие жизненного цикла batch job
//   - run.finished    — run достиг терминального статуса
//
// Exchanges:
//   - restavrator.batches — сабмит и события batch jobs
//   - restavrator.runs    — события runs
//   - restavrator.dlq     — dead letter queue
//
// Брокер опционален: сервер работает и без него, теряя только внешний
// сабмит через очередь и публикацию событий.
package mq
